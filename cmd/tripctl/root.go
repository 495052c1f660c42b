package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/NERVsystems/tripcarbon/pkg/cache"
	"github.com/NERVsystems/tripcarbon/pkg/geo"
	"github.com/NERVsystems/tripcarbon/pkg/provider"
	"github.com/NERVsystems/tripcarbon/pkg/trip"
	ver "github.com/NERVsystems/tripcarbon/pkg/version"
)

// Output formats accepted by --output.
const (
	outputAuto = "auto"
	outputJSON = "json"
	outputText = "text"
)

// app is the state shared by every subcommand.
type app struct {
	dataset     string
	providerURL string
	providerKey string
	output      string
	debug       bool
	timeout     time.Duration

	logger *slog.Logger
	engine *trip.Engine
	closer io.Closer
}

// isTerminal reports whether w is an interactive terminal.
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

func newRootCmd() *cobra.Command {
	a := &app{}

	cmd := &cobra.Command{
		Use:          "tripctl",
		Short:        "Trip emissions and alternative-route calculator",
		Long:         "tripctl computes trip CO2e, ranks lower-emission alternatives and plans waypoint routes.",
		Version:      ver.BuildVersion,
		SilenceUsage: true,
		Example: `  # Emissions of a two-person flight
  tripctl emissions --from Delhi --to Mumbai --mode flight --travelers 2

  # Rank the alternatives to driving
  tripctl alternatives --from Salem --to Chennai --baseline 50 --mode car

  # Evaluate a file of trips in parallel
  tripctl batch trips.yaml --output json`,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd)
		},
		PersistentPostRunE: func(*cobra.Command, []string) error {
			if a.closer != nil {
				return a.closer.Close()
			}
			return nil
		},
	}

	// A missing .env is normal.
	_ = godotenv.Load()

	pf := cmd.PersistentFlags()
	pf.StringVar(&a.dataset, "dataset", os.Getenv("TRIPCARBON_DATASET"), "supplementary locations: YAML file, SQLite file or postgres:// URL")
	pf.StringVar(&a.providerURL, "provider-url", os.Getenv("TRIPCARBON_PROVIDER_URL"), "external emissions/routing provider base URL")
	pf.StringVar(&a.providerKey, "provider-key", os.Getenv("TRIPCARBON_PROVIDER_KEY"), "external provider API key")
	pf.StringVarP(&a.output, "output", "o", outputAuto, "output format: auto, json or text")
	pf.BoolVar(&a.debug, "debug", false, "enable debug logging")
	pf.DurationVar(&a.timeout, "timeout", 30*time.Second, "overall time limit for the command")

	cmd.AddCommand(
		newEmissionsCmd(a),
		newAlternativesCmd(a),
		newPlanCmd(a),
		newBatchCmd(a),
		newCostCmd(a),
		newFactorsCmd(a),
		newLocationsCmd(a),
		newRoutesCmd(a),
	)
	return cmd
}

// setup resolves the output format and builds the engine.
func (a *app) setup(cmd *cobra.Command) error {
	level := slog.LevelWarn
	if a.debug {
		level = slog.LevelDebug
	}
	a.logger = slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))

	switch a.output {
	case outputAuto:
		a.output = outputJSON
		if isTerminal(cmd.OutOrStdout()) {
			a.output = outputText
		}
	case outputJSON, outputText:
	default:
		return fmt.Errorf("unknown output format %q (want auto, json or text)", a.output)
	}

	catalog := geo.Default()
	if a.dataset != "" {
		ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
		defer cancel()
		extra, err := geo.OpenDataset(ctx, a.dataset)
		if err != nil {
			return err
		}
		catalog, err = geo.NewCatalog(geo.CuratedLocations(),
			geo.WithSupplement(extra...),
			geo.WithPopularPairs(geo.DefaultPopularPairs()...),
			geo.WithLogger(a.logger),
		)
		if err != nil {
			return err
		}
	}

	opts := []trip.Option{trip.WithLogger(a.logger)}
	if a.providerURL != "" {
		client := provider.NewHTTPClient(a.providerURL, a.providerKey,
			provider.WithStore(cache.NewMemoryStore(time.Hour, 1000), time.Hour),
			provider.WithLogger(a.logger),
		)
		a.closer = client
		opts = append(opts, trip.WithProvider(client))
	}
	a.engine = trip.New(catalog, opts...)
	return nil
}

// context returns the command context bounded by --timeout.
func (a *app) context(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	if a.timeout > 0 {
		return context.WithTimeout(ctx, a.timeout)
	}
	return context.WithCancel(ctx)
}

// render writes v as indented JSON, or through text in text mode.
func (a *app) render(cmd *cobra.Command, v any, text func(w io.Writer) error) error {
	w := cmd.OutOrStdout()
	if a.output == outputText && text != nil {
		return text(w)
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printWarnings(w io.Writer, warnings []string) {
	for _, msg := range warnings {
		fmt.Fprintf(w, "warning: %s\n", msg)
	}
}
