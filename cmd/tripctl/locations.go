package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/NERVsystems/tripcarbon/pkg/geo"
	"github.com/NERVsystems/tripcarbon/pkg/route"
	"github.com/NERVsystems/tripcarbon/pkg/trip"
	"github.com/NERVsystems/tripcarbon/pkg/waypoints"
)

func newLocationsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "locations",
		Short: "Query the location catalog",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List every known location",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				locs := a.engine.Catalog().Locations()
				return a.render(cmd, locs, func(w io.Writer) error {
					return writeLocations(w, locs)
				})
			},
		},
		&cobra.Command{
			Use:   "suggest QUERY",
			Short: "Suggest location names matching a partial name",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				names := a.engine.Catalog().Suggest(args[0])
				if names == nil {
					names = []string{}
				}
				return a.render(cmd, names, func(w io.Writer) error {
					_, err := fmt.Fprintln(w, strings.Join(names, "\n"))
					return err
				})
			},
		},
		&cobra.Command{
			Use:   "distance FROM TO",
			Short: "Great-circle distance between two locations",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				d, err := a.engine.Catalog().Distance(args[0], args[1])
				if err != nil {
					return suggestOnNotFound(a, err, args...)
				}
				out := map[string]any{"from": args[0], "to": args[1], "distance_km": d}
				return a.render(cmd, out, func(w io.Writer) error {
					_, err := fmt.Fprintf(w, "%s -> %s: %.2f km\n", args[0], args[1], d)
					return err
				})
			},
		},
		newNearbyCmd(a),
	)
	return cmd
}

func newNearbyCmd(a *app) *cobra.Command {
	var (
		radius float64
		limit  int
	)
	cmd := &cobra.Command{
		Use:   "nearby NAME",
		Short: "Locations within a radius of a known location",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			center, err := a.engine.Catalog().Lookup(args[0])
			if err != nil {
				return suggestOnNotFound(a, err, args[0])
			}
			// The center itself is always the first match.
			want := limit
			if want > 0 {
				want++
			}
			near := []geo.Neighbor{}
			for _, n := range a.engine.Catalog().Nearby(center.Latitude, center.Longitude, radius, want) {
				if n.Name != center.Name {
					near = append(near, n)
				}
			}
			if limit > 0 && len(near) > limit {
				near = near[:limit]
			}
			return a.render(cmd, near, func(w io.Writer) error {
				tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
				fmt.Fprintln(tw, "NAME\tREGION\tDISTANCE KM")
				for _, n := range near {
					fmt.Fprintf(tw, "%s\t%s\t%.2f\n", n.Name, n.Region, n.DistanceKm)
				}
				return tw.Flush()
			})
		},
	}
	cmd.Flags().Float64VarP(&radius, "radius", "r", 200, "search radius in km")
	cmd.Flags().IntVarP(&limit, "limit", "l", 10, "maximum number of results")
	return cmd
}

func writeLocations(w io.Writer, locs []geo.Location) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tREGION\tLAT\tLON")
	for _, l := range locs {
		fmt.Fprintf(tw, "%s\t%s\t%.4f\t%.4f\n", l.Name, l.Region, l.Latitude, l.Longitude)
	}
	return tw.Flush()
}

// suggestOnNotFound adds close catalog names to an unknown-location error.
func suggestOnNotFound(a *app, err error, names ...string) error {
	if !trip.IsNotFound(err) {
		return err
	}
	for _, n := range names {
		if a.engine.Catalog().Contains(n) {
			continue
		}
		if s := a.engine.Catalog().Suggest(n); len(s) > 0 {
			return fmt.Errorf("%w (did you mean: %s?)", err, strings.Join(s, ", "))
		}
	}
	return err
}

func newRoutesCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "routes",
		Short: "Predict routes and plan waypoint variants",
	}
	cmd.AddCommand(
		newVariantsCmd(a),
		newCompareCmd(a),
		newRecommendCmd(a),
		&cobra.Command{
			Use:   "shortest FROM TO",
			Short: "The shortest waypoint variant between two locations",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				v, err := a.engine.Planner().Shortest(args[0], args[1])
				if err != nil {
					return suggestOnNotFound(a, err, args...)
				}
				return a.render(cmd, v, func(w io.Writer) error {
					return writeVariants(w, []waypoints.Variant{v})
				})
			},
		},
		&cobra.Command{
			Use:   "popular",
			Short: "List popular origin/destination pairs",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				pairs := a.engine.Catalog().PopularPairs()
				return a.render(cmd, pairs, func(w io.Writer) error {
					for _, p := range pairs {
						if _, err := fmt.Fprintf(w, "%s -> %s\n", p.Origin, p.Destination); err != nil {
							return err
						}
					}
					return nil
				})
			},
		},
	)
	return cmd
}

func newVariantsCmd(a *app) *cobra.Command {
	var maxWaypoints, numVariants int
	cmd := &cobra.Command{
		Use:   "variants FROM TO",
		Short: "Waypoint variants between two locations, best first",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := a.context(cmd)
			defer cancel()
			vs, err := a.engine.Variants(ctx, args[0], args[1], maxWaypoints, numVariants)
			if err != nil {
				return suggestOnNotFound(a, err, args...)
			}
			return a.render(cmd, vs, func(w io.Writer) error {
				return writeVariants(w, vs)
			})
		},
	}
	cmd.Flags().IntVar(&maxWaypoints, "max-waypoints", waypoints.DefaultMaxWaypoints, "maximum intermediate waypoints")
	cmd.Flags().IntVar(&numVariants, "num-variants", waypoints.DefaultNumVariants, "number of variants to return")
	return cmd
}

func writeVariants(w io.Writer, vs []waypoints.Variant) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ROUTE\tDISTANCE KM\tSHORTCUT\tWAYPOINTS")
	for _, v := range vs {
		via := strings.Join(v.Waypoints, ", ")
		if via == "" {
			via = "-"
		}
		fmt.Fprintf(tw, "%s\t%.2f\t%t\t%s\n", v.Name, v.DistanceKm, v.IsShortcut, via)
	}
	return tw.Flush()
}

func writePredictions(w io.Writer, ps []route.Prediction) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "MODE\tDISTANCE KM\tHOURS\tSTOPS\tAVG KM/H")
	for _, p := range ps {
		fmt.Fprintf(tw, "%s\t%.2f\t%.2f\t%d\t%.1f\n", p.Mode, p.DistanceKm, p.DurationHours, p.Stops, p.AvgSpeedKmh)
	}
	return tw.Flush()
}

func newCompareCmd(a *app) *cobra.Command {
	var modes []string
	cmd := &cobra.Command{
		Use:   "compare FROM TO",
		Short: "Predict distance and duration for each transport mode",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ms, err := trip.ParseModes(modes)
			if err != nil {
				return err
			}
			ctx, cancel := a.context(cmd)
			defer cancel()
			preds, warnings := a.engine.Routes(ctx, args[0], args[1], ms...)
			out := map[string]any{"routes": preds, "warnings": warnings}
			return a.render(cmd, out, func(w io.Writer) error {
				if err := writePredictions(w, preds); err != nil {
					return err
				}
				printWarnings(w, warnings)
				return nil
			})
		},
	}
	cmd.Flags().StringSliceVarP(&modes, "mode", "m", nil, "modes to compare (all when omitted)")
	return cmd
}

func newRecommendCmd(a *app) *cobra.Command {
	var (
		priority    string
		maxHours    float64
		maxDistance float64
	)
	cmd := &cobra.Command{
		Use:   "recommend FROM TO",
		Short: "Recommend transport modes by speed, distance or comfort",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !a.engine.Catalog().Contains(args[0]) || !a.engine.Catalog().Contains(args[1]) {
				return suggestOnNotFound(a, fmt.Errorf("%s -> %s: %w", args[0], args[1], geo.ErrNotFound), args...)
			}
			preds := a.engine.Predictor().Recommend(args[0], args[1], route.Preferences{
				Priority:         route.ParsePriority(priority),
				MaxDurationHours: maxHours,
				MaxDistanceKm:    maxDistance,
			})
			return a.render(cmd, preds, func(w io.Writer) error {
				return writePredictions(w, preds)
			})
		},
	}
	cmd.Flags().StringVar(&priority, "priority", string(route.PrioritySpeed), "speed, distance or comfort")
	cmd.Flags().Float64Var(&maxHours, "max-hours", 0, "drop routes longer than this many hours")
	cmd.Flags().Float64Var(&maxDistance, "max-distance", 0, "drop routes longer than this many km")
	return cmd
}
