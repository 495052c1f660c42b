package geo

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	_ "github.com/lib/pq"
	"gopkg.in/yaml.v3"
	_ "modernc.org/sqlite"
)

// datasetFile is the on-disk layout of a YAML supplementary dataset.
type datasetFile struct {
	Locations []Location `yaml:"locations"`
}

// LoadYAML decodes a supplementary dataset of the form
//
//	locations:
//	  - name: Mysore
//	    region: Karnataka
//	    latitude: 12.2958
//	    longitude: 76.6394
func LoadYAML(r io.Reader) ([]Location, error) {
	var f datasetFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		if err == io.EOF {
			return nil, nil
		}
		return nil, fmt.Errorf("decoding location dataset: %w", err)
	}
	return f.Locations, nil
}

const locationsQuery = `SELECT name, region, latitude, longitude FROM locations ORDER BY name`

// LoadSQL reads supplementary locations from a table named locations.
func LoadSQL(ctx context.Context, db *sql.DB) ([]Location, error) {
	rows, err := db.QueryContext(ctx, locationsQuery)
	if err != nil {
		return nil, fmt.Errorf("querying locations: %w", err)
	}
	defer rows.Close()

	var out []Location
	for rows.Next() {
		var (
			loc    Location
			region sql.NullString
		)
		if err := rows.Scan(&loc.Name, &region, &loc.Latitude, &loc.Longitude); err != nil {
			return nil, fmt.Errorf("scanning location row: %w", err)
		}
		loc.Region = region.String
		out = append(out, loc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading location rows: %w", err)
	}
	return out, nil
}

// OpenDataset loads a supplementary dataset from source. YAML files are
// decoded directly; postgres:// URLs use lib/pq; sqlite: URLs and .db or
// .sqlite paths use the pure-Go SQLite driver.
func OpenDataset(ctx context.Context, source string) ([]Location, error) {
	switch {
	case source == "":
		return nil, nil

	case strings.HasPrefix(source, "postgres://"), strings.HasPrefix(source, "postgresql://"):
		return loadFromDriver(ctx, "postgres", source)

	case strings.HasPrefix(source, "sqlite:"):
		return loadFromDriver(ctx, "sqlite", strings.TrimPrefix(source, "sqlite:"))
	}

	switch strings.ToLower(filepath.Ext(source)) {
	case ".yaml", ".yml":
		f, err := os.Open(source)
		if err != nil {
			return nil, fmt.Errorf("opening location dataset: %w", err)
		}
		defer f.Close()
		return LoadYAML(f)

	case ".db", ".sqlite", ".sqlite3":
		return loadFromDriver(ctx, "sqlite", source)
	}

	return nil, fmt.Errorf("unsupported location dataset %q", source)
}

func loadFromDriver(ctx context.Context, driver, dsn string) ([]Location, error) {
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("opening %s dataset: %w", driver, err)
	}
	defer db.Close()

	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("connecting to %s dataset: %w", driver, err)
	}
	return LoadSQL(ctx, db)
}
