package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/NERVsystems/tripcarbon/pkg/alternatives"
	"github.com/NERVsystems/tripcarbon/pkg/cost"
	"github.com/NERVsystems/tripcarbon/pkg/emissions"
	"github.com/NERVsystems/tripcarbon/pkg/trip"
)

// tripFlags binds the trip form to command flags.
type tripFlags struct {
	origin       string
	destination  string
	modes        []string
	travelers    int
	nights       int
	outbound     string
	returnDate   string
	lodgingClass string
	region       string
}

func (f *tripFlags) register(cmd *cobra.Command) {
	fl := cmd.Flags()
	fl.StringVar(&f.origin, "from", "", "origin location")
	fl.StringVar(&f.destination, "to", "", "destination location")
	fl.StringSliceVarP(&f.modes, "mode", "m", nil, "transport modes: flight, train, car, bus (repeatable)")
	fl.IntVarP(&f.travelers, "travelers", "n", 1, "number of travelers")
	fl.IntVar(&f.nights, "nights", 0, "nights of lodging")
	fl.StringVar(&f.outbound, "outbound", "", "outbound date, YYYY-MM-DD")
	fl.StringVar(&f.returnDate, "return", "", "return date, YYYY-MM-DD")
	fl.StringVar(&f.lodgingClass, "lodging-class", "", "lodging class: budget, standard or luxury")
	fl.StringVar(&f.region, "region", "", "region for factor adjustments")
}

func (f *tripFlags) input() trip.Input {
	return trip.Input{
		Origin:       f.origin,
		Destination:  f.destination,
		OutboundDate: f.outbound,
		ReturnDate:   f.returnDate,
		Modes:        f.modes,
		Travelers:    f.travelers,
		Nights:       f.nights,
		LodgingClass: f.lodgingClass,
		Region:       f.region,
	}
}

type emissionsReport struct {
	DistanceKm float64             `json:"distance_km"`
	Emissions  emissions.Result    `json:"emissions"`
	Breakdown  emissions.Breakdown `json:"breakdown"`
}

func newEmissionsCmd(a *app) *cobra.Command {
	var (
		tf       tripFlags
		distance float64
	)

	cmd := &cobra.Command{
		Use:   "emissions",
		Short: "Compute the CO2e of a trip",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			t, err := tf.input().Request()
			if err != nil {
				return err
			}
			ctx, cancel := a.context(cmd)
			defer cancel()

			var warnings []string
			var d float64
			switch {
			case cmd.Flags().Changed("distance"):
				if err := emissions.ValidateDistance(distance); err != nil {
					return err
				}
				d = distance
			case len(t.Modes) > 0:
				d, err = a.engine.ResolveDistance(ctx, t.Origin, t.Destination)
				if err != nil {
					warnings = append(warnings, err.Error())
				}
			}

			res := a.engine.ComputeEmissions(ctx, t, d)
			res.Warnings = append(warnings, res.Warnings...)
			report := emissionsReport{DistanceKm: d, Emissions: res, Breakdown: res.Breakdown()}

			return a.render(cmd, report, func(w io.Writer) error {
				tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
				fmt.Fprintf(tw, "distance\t%.2f km\n", report.DistanceKm)
				for _, m := range emissions.TransportModes() {
					if v, ok := res.PerModeKg[m]; ok {
						fmt.Fprintf(tw, "%s\t%.3f kg\n", m, v)
					}
				}
				fmt.Fprintf(tw, "accommodation\t%.3f kg\n", res.AccommodationKg)
				fmt.Fprintf(tw, "total\t%.3f kg\n", res.TotalKg)
				fmt.Fprintf(tw, "per person\t%.3f kg\n", res.PerPersonKg)
				if err := tw.Flush(); err != nil {
					return err
				}
				printWarnings(w, res.Warnings)
				return nil
			})
		},
	}
	tf.register(cmd)
	cmd.Flags().Float64Var(&distance, "distance", 0, "trip distance in km (resolved from the catalog when omitted)")
	return cmd
}

func newAlternativesCmd(a *app) *cobra.Command {
	var (
		origin, destination string
		baseline            float64
		baselineCost        float64
		selected            []string
		region              string
		class               string
	)

	cmd := &cobra.Command{
		Use:   "alternatives",
		Short: "Rank lower-emission ways of making a trip",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			modes, err := trip.ParseModes(selected)
			if err != nil {
				return err
			}
			req := alternatives.Request{
				Origin:       origin,
				Destination:  destination,
				BaselineKg:   baseline,
				Selected:     modes,
				Region:       emissions.Region(region),
				ServiceClass: class,
			}
			if cmd.Flags().Changed("baseline-cost") {
				req.BaselineCost = &baselineCost
			}

			ctx, cancel := a.context(cmd)
			defer cancel()
			res, err := a.engine.Alternatives(ctx, req)
			if err != nil {
				return err
			}
			return a.render(cmd, res, func(w io.Writer) error {
				if err := writeOptions(w, res); err != nil {
					return err
				}
				printWarnings(w, res.Warnings)
				return nil
			})
		},
	}

	fl := cmd.Flags()
	fl.StringVar(&origin, "from", "", "origin location")
	fl.StringVar(&destination, "to", "", "destination location")
	fl.Float64Var(&baseline, "baseline", 0, "baseline emissions in kg CO2e")
	fl.Float64Var(&baselineCost, "baseline-cost", 0, "baseline cost per person")
	fl.StringSliceVarP(&selected, "mode", "m", nil, "modes the traveler selected")
	fl.StringVar(&region, "region", "", "region for factor adjustments")
	fl.StringVar(&class, "class", cost.StandardClass, "service class for cost estimates")
	_ = cmd.MarkFlagRequired("from")
	_ = cmd.MarkFlagRequired("to")
	return cmd
}

func writeOptions(w io.Writer, res alternatives.Result) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "MODE\tDISTANCE KM\tHOURS\tCO2E KG\tSAVINGS KG\tSAVINGS %\tCOST\tSELECTED")
	for _, o := range res.Options {
		fmt.Fprintf(tw, "%s\t%.2f\t%.2f\t%.3f\t%.3f\t%.2f\t%.2f\t%t\n",
			o.Mode, o.DistanceKm, o.DurationHours, o.EmissionsKg,
			o.EmissionsSavingsKg, o.SavingsPercent(res.BaselineKg), o.Cost, o.Selected)
	}
	return tw.Flush()
}

func newPlanCmd(a *app) *cobra.Command {
	var tf tripFlags

	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Assess a trip: emissions, alternatives and route variants",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			t, err := tf.input().Request()
			if err != nil {
				return err
			}
			ctx, cancel := a.context(cmd)
			defer cancel()

			plan, err := a.engine.Plan(ctx, t)
			if err != nil {
				return err
			}
			return a.render(cmd, plan, func(w io.Writer) error {
				fmt.Fprintf(w, "plan %s: %s -> %s, %.2f km\n", plan.ID, t.Origin, t.Destination, plan.DistanceKm)
				fmt.Fprintf(w, "total %.3f kg CO2e, %.3f kg per person (transport %.2f%%, accommodation %.2f%%)\n",
					plan.Emissions.TotalKg, plan.Emissions.PerPersonKg,
					plan.Breakdown.TransportPct, plan.Breakdown.AccommodationPct)
				if plan.Alternatives != nil {
					fmt.Fprintln(w)
					if err := writeOptions(w, *plan.Alternatives); err != nil {
						return err
					}
				}
				if len(plan.Variants) > 0 {
					fmt.Fprintln(w)
					if err := writeVariants(w, plan.Variants); err != nil {
						return err
					}
				}
				printWarnings(w, append(plan.Warnings, plan.Emissions.Warnings...))
				return nil
			})
		},
	}
	tf.register(cmd)
	return cmd
}

// loadTrips reads trip forms from a JSON or YAML list, or from a document
// with a top-level "trips" list. "-" reads standard input.
func loadTrips(r io.Reader) ([]trip.Input, error) {
	var doc any
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil {
		if err == io.EOF {
			return nil, nil
		}
		return nil, fmt.Errorf("decoding trips: %w", err)
	}
	if m, ok := doc.(map[string]any); ok {
		doc = m["trips"]
	}
	if _, ok := doc.([]any); !ok {
		return nil, fmt.Errorf("trips must be a list")
	}

	// The trip form carries json tags; reuse them for YAML input.
	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("decoding trips: %w", err)
	}
	var inputs []trip.Input
	if err := json.Unmarshal(raw, &inputs); err != nil {
		return nil, fmt.Errorf("decoding trips: %w", err)
	}
	return inputs, nil
}

func newBatchCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "batch FILE",
		Short: "Plan every trip in a JSON or YAML file concurrently",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var r io.Reader = cmd.InOrStdin()
			if args[0] != "-" {
				f, err := os.Open(args[0])
				if err != nil {
					return err
				}
				defer f.Close()
				r = f
			}

			inputs, err := loadTrips(r)
			if err != nil {
				return err
			}

			trips := make([]emissions.TripRequest, len(inputs))
			invalid := make(map[int]error)
			for i, in := range inputs {
				trips[i], err = in.Request()
				if err != nil {
					invalid[i] = err
				}
			}

			ctx, cancel := a.context(cmd)
			defer cancel()
			results, err := a.engine.EvaluateBatch(ctx, trips)
			if err != nil {
				return err
			}
			for i, verr := range invalid {
				results[i].Plan = nil
				results[i].Error = verr.Error()
			}

			return a.render(cmd, results, func(w io.Writer) error {
				tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
				fmt.Fprintln(tw, "#\tORIGIN\tDESTINATION\tDISTANCE KM\tTOTAL KG\tPER PERSON KG\tLOWEST MODE\tERROR")
				for _, r := range results {
					in := inputs[r.Index]
					if r.Plan == nil {
						fmt.Fprintf(tw, "%d\t%s\t%s\t-\t-\t-\t-\t%s\n", r.Index, in.Origin, in.Destination, r.Error)
						continue
					}
					lowest := "-"
					if r.Plan.Alternatives != nil {
						if best, ok := r.Plan.Alternatives.BestByEmissions(); ok {
							lowest = string(best.Mode)
						}
					}
					fmt.Fprintf(tw, "%d\t%s\t%s\t%.2f\t%.3f\t%.3f\t%s\t\n", r.Index, in.Origin, in.Destination,
						r.Plan.DistanceKm, r.Plan.Emissions.TotalKg, r.Plan.Emissions.PerPersonKg, lowest)
				}
				return tw.Flush()
			})
		},
	}
	return cmd
}

func newCostCmd(a *app) *cobra.Command {
	var (
		mode                string
		origin, destination string
		distance            float64
		travelers           int
		class               string
	)

	cmd := &cobra.Command{
		Use:   "cost",
		Short: "Estimate the cost of a trip by mode and service class",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			m, err := emissions.ParseMode(mode)
			if err != nil || !m.IsTransport() {
				return fmt.Errorf("unsupported transport mode %q", mode)
			}
			if travelers < 1 {
				return fmt.Errorf("travelers must be at least 1")
			}

			d := distance
			if !cmd.Flags().Changed("distance") {
				if origin == "" || destination == "" {
					return fmt.Errorf("give --distance or both --from and --to")
				}
				ctx, cancel := a.context(cmd)
				defer cancel()
				if d, err = a.engine.ResolveDistance(ctx, origin, destination); err != nil {
					return err
				}
			} else if err := emissions.ValidateDistance(d); err != nil {
				return err
			}

			b := cost.Estimate(m, d, travelers, class)
			return a.render(cmd, b, func(w io.Writer) error {
				tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
				fmt.Fprintf(tw, "mode\t%s (%s)\n", b.Mode, b.ServiceClass)
				fmt.Fprintf(tw, "distance\t%.2f km at %.2f per km\n", d, b.RatePerKm)
				fmt.Fprintf(tw, "base\t%.2f\n", b.BaseCost)
				fmt.Fprintf(tw, "distance cost\t%.2f\n", b.DistanceCost)
				fmt.Fprintf(tw, "total\t%.2f\n", b.Total)
				fmt.Fprintf(tw, "per person\t%.2f\n", b.PerPerson)
				return tw.Flush()
			})
		},
	}

	fl := cmd.Flags()
	fl.StringVarP(&mode, "mode", "m", "", "transport mode")
	fl.StringVar(&origin, "from", "", "origin location")
	fl.StringVar(&destination, "to", "", "destination location")
	fl.Float64Var(&distance, "distance", 0, "distance in km")
	fl.IntVarP(&travelers, "travelers", "n", 1, "number of travelers")
	fl.StringVar(&class, "class", cost.StandardClass, "service class")
	_ = cmd.MarkFlagRequired("mode")
	return cmd
}

type factorReport struct {
	Mode       emissions.Mode   `json:"mode"`
	DistanceKm float64          `json:"distance_km"`
	Region     emissions.Region `json:"region,omitempty"`
	Factor     float64          `json:"factor"`
}

func newFactorsCmd(a *app) *cobra.Command {
	var (
		mode     string
		distance float64
		region   string
	)

	cmd := &cobra.Command{
		Use:   "factors",
		Short: "Show the emission factor table, or one adjusted factor",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var model emissions.Model
			if mode == "" {
				table := model.Table()
				return a.render(cmd, table, func(w io.Writer) error {
					tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
					fmt.Fprintln(tw, "MODE\tBASE\tDISTANCE SENSITIVITY\tUNIT")
					for _, f := range table {
						fmt.Fprintf(tw, "%s\t%.3f\t%.3f\t%s\n", f.Mode, f.Base, f.DistanceSensitivity, f.Unit)
					}
					return tw.Flush()
				})
			}

			m, err := emissions.ParseMode(mode)
			if err != nil {
				return err
			}
			r := factorReport{
				Mode:       m,
				DistanceKm: distance,
				Region:     emissions.Region(region),
				Factor:     model.Factor(m, distance, emissions.Region(region)),
			}
			return a.render(cmd, r, func(w io.Writer) error {
				_, err := fmt.Fprintf(w, "%s at %.2f km: %.4f kg CO2e\n", r.Mode, r.DistanceKm, r.Factor)
				return err
			})
		},
	}

	fl := cmd.Flags()
	fl.StringVarP(&mode, "mode", "m", "", "mode to evaluate (whole table when omitted)")
	fl.Float64Var(&distance, "distance", 0, "distance in km for distance-sensitive factors")
	fl.StringVar(&region, "region", "", "region for factor adjustments")
	return cmd
}
