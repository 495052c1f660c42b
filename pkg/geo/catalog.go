package geo

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strings"
	"sync"

	"github.com/dhconnelly/rtreego"
	"golang.org/x/text/cases"
)

// ErrNotFound is returned when a name does not resolve to a catalog entry.
var ErrNotFound = errors.New("location not found")

// MaxSuggestions caps the number of names returned by Suggest.
const MaxSuggestions = 5

// Pair is an ordered origin/destination pair of location names.
type Pair struct {
	Origin      string `json:"origin"`
	Destination string `json:"destination"`
}

// Neighbor is a catalog entry together with its distance from a query point.
type Neighbor struct {
	Location
	DistanceKm float64 `json:"distance_km"`
}

// Catalog is an immutable registry of named locations. It is built once and
// is safe for concurrent use without locking.
type Catalog struct {
	locations []Location
	folded    []string
	byName    map[string]int
	pairs     []Pair
	tree      *rtreego.Rtree
}

type catalogOptions struct {
	supplement []Location
	pairs      []Pair
	logger     *slog.Logger
}

// Option configures catalog construction.
type Option func(*catalogOptions)

// WithSupplement adds entries from a supplementary dataset. Entries whose
// name is already present are ignored and invalid entries are skipped.
func WithSupplement(locations ...Location) Option {
	return func(o *catalogOptions) {
		o.supplement = append(o.supplement, locations...)
	}
}

// WithPopularPairs sets the popular routes reported by the catalog.
func WithPopularPairs(pairs ...Pair) Option {
	return func(o *catalogOptions) {
		o.pairs = append(o.pairs, pairs...)
	}
}

// WithLogger sets the logger used while loading.
func WithLogger(logger *slog.Logger) Option {
	return func(o *catalogOptions) {
		o.logger = logger
	}
}

// NewCatalog builds a catalog from curated entries and any supplementary data.
// Curated entries must be valid and unique.
func NewCatalog(curated []Location, opts ...Option) (*Catalog, error) {
	o := catalogOptions{logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}

	c := &Catalog{
		byName: make(map[string]int, len(curated)+len(o.supplement)),
	}

	for _, loc := range curated {
		if err := loc.Validate(); err != nil {
			return nil, fmt.Errorf("curated location %q: %w", loc.Name, err)
		}
		if !c.add(loc) {
			return nil, fmt.Errorf("duplicate curated location %q", loc.Name)
		}
	}

	added := 0
	for _, loc := range o.supplement {
		if err := loc.Validate(); err != nil {
			o.logger.Warn("skipping supplementary location", "name", loc.Name, "error", err)
			continue
		}
		if !c.add(loc) {
			o.logger.Debug("supplementary location shadowed by existing entry", "name", loc.Name)
			continue
		}
		added++
	}
	if len(o.supplement) > 0 {
		o.logger.Info("loaded supplementary locations", "offered", len(o.supplement), "added", added)
	}

	c.pairs = append(c.pairs, o.pairs...)
	c.tree = newSpatialIndex(c.locations)

	return c, nil
}

func (c *Catalog) add(loc Location) bool {
	key := fold(strings.TrimSpace(loc.Name))
	if _, exists := c.byName[key]; exists {
		return false
	}
	c.byName[key] = len(c.locations)
	c.locations = append(c.locations, loc)
	c.folded = append(c.folded, key)
	return true
}

var (
	defaultCatalog *Catalog
	defaultOnce    sync.Once
)

// Default returns the shared catalog built from the curated dataset.
func Default() *Catalog {
	defaultOnce.Do(func() {
		c, err := NewCatalog(curatedLocations, WithPopularPairs(popularPairs...))
		if err != nil {
			panic(fmt.Sprintf("building curated catalog: %v", err))
		}
		defaultCatalog = c
	})
	return defaultCatalog
}

func fold(s string) string {
	return cases.Fold().String(s)
}

// Lookup returns the location registered under name. Matching ignores case
// and surrounding whitespace.
func (c *Catalog) Lookup(name string) (Location, error) {
	i, ok := c.byName[fold(strings.TrimSpace(name))]
	if !ok {
		return Location{}, fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	return c.locations[i], nil
}

// Contains reports whether name resolves to a catalog entry.
func (c *Catalog) Contains(name string) bool {
	_, err := c.Lookup(name)
	return err == nil
}

// Coordinates returns the latitude and longitude of a named location.
func (c *Catalog) Coordinates(name string) (float64, float64, error) {
	loc, err := c.Lookup(name)
	if err != nil {
		return 0, 0, err
	}
	return loc.Latitude, loc.Longitude, nil
}

// Distance returns the great-circle distance in kilometers between two
// named locations. The distance from a location to itself is exactly zero.
func (c *Catalog) Distance(a, b string) (float64, error) {
	from, err := c.Lookup(a)
	if err != nil {
		return 0, err
	}
	to, err := c.Lookup(b)
	if err != nil {
		return 0, err
	}
	if from.Name == to.Name {
		return 0, nil
	}
	return from.DistanceTo(to), nil
}

// Suggest returns up to MaxSuggestions names containing partial, compared
// case-insensitively, in catalog order.
func (c *Catalog) Suggest(partial string) []string {
	needle := fold(strings.TrimSpace(partial))
	if needle == "" {
		return nil
	}

	var out []string
	for i, name := range c.folded {
		if strings.Contains(name, needle) {
			out = append(out, c.locations[i].Name)
			if len(out) == MaxSuggestions {
				break
			}
		}
	}
	return out
}

// Names returns every location name in catalog order.
func (c *Catalog) Names() []string {
	names := make([]string, len(c.locations))
	for i, loc := range c.locations {
		names[i] = loc.Name
	}
	return names
}

// Locations returns a copy of every catalog entry.
func (c *Catalog) Locations() []Location {
	out := make([]Location, len(c.locations))
	copy(out, c.locations)
	return out
}

// Len returns the number of entries.
func (c *Catalog) Len() int {
	return len(c.locations)
}

// PopularPairs returns the configured popular routes.
func (c *Catalog) PopularPairs() []Pair {
	out := make([]Pair, len(c.pairs))
	copy(out, c.pairs)
	return out
}

// WithinBox returns the entries inside box in catalog order.
func (c *Catalog) WithinBox(box BoundingBox) []Location {
	rect, err := rtreego.NewRectFromPoints(
		rtreego.Point{box.MinLat, box.MinLon},
		rtreego.Point{box.MaxLat, box.MaxLon},
	)
	if err != nil {
		return nil
	}

	hits := c.tree.SearchIntersect(rect)
	positions := make([]int, 0, len(hits))
	for _, hit := range hits {
		item, ok := hit.(*indexedLocation)
		if !ok {
			continue
		}
		loc := c.locations[item.pos]
		if box.Contains(loc.Latitude, loc.Longitude) {
			positions = append(positions, item.pos)
		}
	}
	sort.Ints(positions)

	out := make([]Location, len(positions))
	for i, pos := range positions {
		out[i] = c.locations[pos]
	}
	return out
}

// Nearby returns entries within radiusKm of a coordinate, closest first.
// A limit of zero or less returns every match.
func (c *Catalog) Nearby(lat, lon, radiusKm float64, limit int) []Neighbor {
	if radiusKm <= 0 {
		return nil
	}

	latDeg := radiusKm / EarthRadiusKm * 180 / math.Pi
	lonDeg := latDeg / math.Max(math.Cos(lat*math.Pi/180), 0.01)
	box := BoundingBox{
		MinLat: lat - latDeg,
		MinLon: lon - lonDeg,
		MaxLat: lat + latDeg,
		MaxLon: lon + lonDeg,
	}

	var out []Neighbor
	for _, loc := range c.WithinBox(box) {
		d := GreatCircleKm(lat, lon, loc.Latitude, loc.Longitude)
		if d <= radiusKm {
			out = append(out, Neighbor{Location: loc, DistanceKm: d})
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].DistanceKm < out[j].DistanceKm
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}
