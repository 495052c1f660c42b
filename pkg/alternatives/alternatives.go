// Package alternatives generates and ranks lower-emission transport options for a trip.
package alternatives

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sort"

	"github.com/NERVsystems/tripcarbon/pkg/cost"
	"github.com/NERVsystems/tripcarbon/pkg/emissions"
	"github.com/NERVsystems/tripcarbon/pkg/route"
)

// ErrNoAlternatives is returned when no candidate mode could be resolved.
var ErrNoAlternatives = errors.New("no alternatives available")

// Predictor predicts a route for one mode.
type Predictor interface {
	Predict(origin, destination string, mode emissions.Mode) route.Prediction
}

// Option is one alternative way of making the trip. Emissions and cost are per person.
type Option struct {
	Mode               emissions.Mode `json:"mode"`
	DistanceKm         float64        `json:"distance_km"`
	DurationHours      float64        `json:"duration_hours"`
	EmissionsKg        float64        `json:"emissions_kg"`
	Cost               float64        `json:"cost"`
	EmissionsSavingsKg float64        `json:"emissions_savings_kg"`
	CostDifference     float64        `json:"cost_difference"`
	Stops              int            `json:"estimated_stops"`
	Selected           bool           `json:"selected"`
}

// SavingsPercent returns the savings as a percentage of baselineKg.
func (o Option) SavingsPercent(baselineKg float64) float64 {
	if baselineKg <= 0 {
		return 0
	}
	return round(o.EmissionsSavingsKg/baselineKg*100, 2)
}

// Request describes the trip to find alternatives for. A nil BaselineCost
// leaves cost differences at zero.
type Request struct {
	Origin       string           `json:"origin"`
	Destination  string           `json:"destination"`
	BaselineKg   float64          `json:"baseline_emissions_kg"`
	BaselineCost *float64         `json:"baseline_cost,omitempty"`
	Modes        []emissions.Mode `json:"modes,omitempty"`
	Selected     []emissions.Mode `json:"selected_modes,omitempty"`
	Region       emissions.Region `json:"region,omitempty"`
	ServiceClass string           `json:"service_class,omitempty"`
}

// Result holds the ranked options, lowest emissions first.
type Result struct {
	Options      []Option `json:"alternatives"`
	BaselineKg   float64  `json:"baseline_emissions_kg"`
	BaselineCost *float64 `json:"baseline_cost,omitempty"`
	Warnings     []string `json:"warnings,omitempty"`
}

// Engine generates alternatives from route predictions, emission factors and costs.
type Engine struct {
	predictor Predictor
	factors   emissions.FactorSource
	logger    *slog.Logger
}

// NewEngine creates an Engine. A nil factor source uses emissions.Model.
func NewEngine(predictor Predictor, factors emissions.FactorSource, logger *slog.Logger) *Engine {
	if factors == nil {
		factors = emissions.Model{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{predictor: predictor, factors: factors, logger: logger}
}

// Generate evaluates each candidate mode and returns the options sorted by
// emissions, then cost, duration and mode name.
func (e *Engine) Generate(req Request) (Result, error) {
	modes := req.Modes
	if len(modes) == 0 {
		modes = emissions.TransportModes()
	}
	selected := make(map[emissions.Mode]bool, len(req.Selected))
	for _, m := range req.Selected {
		selected[m] = true
	}

	res := Result{BaselineKg: req.BaselineKg, BaselineCost: req.BaselineCost}
	seen := make(map[emissions.Mode]bool, len(modes))

	for _, m := range modes {
		if seen[m] {
			continue
		}
		seen[m] = true

		if !m.IsTransport() {
			res.Warnings = append(res.Warnings, fmt.Sprintf("unsupported transport mode %q skipped", m))
			continue
		}

		pred := e.predictor.Predict(req.Origin, req.Destination, m)
		if !pred.Resolved || pred.DistanceKm <= 0 {
			res.Warnings = append(res.Warnings, fmt.Sprintf("%s skipped: no route between %s and %s", m, req.Origin, req.Destination))
			continue
		}

		factor := e.factors.Factor(m, pred.DistanceKm, req.Region)
		if factor <= 0 {
			res.Warnings = append(res.Warnings, fmt.Sprintf("%s skipped: no emission factor available", m))
			continue
		}

		kg := round(factor*pred.DistanceKm, 3)
		c := cost.Cost(m, pred.DistanceKm, 1, req.ServiceClass)

		opt := Option{
			Mode:               m,
			DistanceKm:         pred.DistanceKm,
			DurationHours:      pred.DurationHours,
			EmissionsKg:        kg,
			Cost:               c,
			EmissionsSavingsKg: req.BaselineKg - kg,
			Stops:              pred.Stops,
			Selected:           selected[m],
		}
		if req.BaselineCost != nil {
			opt.CostDifference = round(c-*req.BaselineCost, 2)
		}
		res.Options = append(res.Options, opt)
	}

	if len(res.Options) == 0 {
		e.logger.Warn("no alternatives resolved", "origin", req.Origin, "destination", req.Destination)
		return res, fmt.Errorf("%w: %s to %s", ErrNoAlternatives, req.Origin, req.Destination)
	}

	sortOptions(res.Options)
	return res, nil
}

func sortOptions(opts []Option) {
	sort.SliceStable(opts, func(i, j int) bool {
		a, b := opts[i], opts[j]
		if a.EmissionsKg != b.EmissionsKg {
			return a.EmissionsKg < b.EmissionsKg
		}
		if a.Cost != b.Cost {
			return a.Cost < b.Cost
		}
		if a.DurationHours != b.DurationHours {
			return a.DurationHours < b.DurationHours
		}
		return a.Mode < b.Mode
	})
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
