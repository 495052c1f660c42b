package emissions

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
)

// Result is the outcome of aggregating a trip's emissions. Values are kg CO2e
// rounded to three decimals.
type Result struct {
	TotalKg         float64          `json:"total_co2e_kg"`
	PerModeKg       map[Mode]float64 `json:"transport_emissions"`
	AccommodationKg float64          `json:"accommodation_emissions"`
	PerPersonKg     float64          `json:"per_person_emissions"`
	Warnings        []string         `json:"warnings,omitempty"`
	UsedFallback    bool             `json:"used_fallback,omitempty"`
}

// TransportKg sums the per-mode emissions.
func (r Result) TransportKg() float64 {
	var sum float64
	for _, v := range r.PerModeKg {
		sum += v
	}
	return round(sum, 3)
}

// Breakdown splits the total into transport and accommodation shares.
type Breakdown struct {
	TransportPct     float64 `json:"transport_percentage"`
	AccommodationPct float64 `json:"accommodation_percentage"`
}

// Breakdown returns percentage shares of the total, or zeros for an empty result.
func (r Result) Breakdown() Breakdown {
	if r.TotalKg <= 0 {
		return Breakdown{}
	}
	return Breakdown{
		TransportPct:     round(r.TransportKg()/r.TotalKg*100, 2),
		AccommodationPct: round(r.AccommodationKg/r.TotalKg*100, 2),
	}
}

// Aggregator combines per-mode transport emissions with accommodation.
type Aggregator struct {
	factors FactorSource
	logger  *slog.Logger
}

// NewAggregator creates an Aggregator. A nil source uses Model.
func NewAggregator(factors FactorSource, logger *slog.Logger) *Aggregator {
	if factors == nil {
		factors = Model{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Aggregator{factors: factors, logger: logger}
}

// Aggregate computes the emissions for trip over distanceKm. Problems are
// reported as warnings on the result; only an unrecoverable request yields a
// zero result.
func (a *Aggregator) Aggregate(trip TripRequest, distanceKm float64) Result {
	res := Result{PerModeKg: map[Mode]float64{}}

	var verrs ValidationErrors
	if err := trip.Validate(); err != nil && !errors.As(err, &verrs) {
		verrs = ValidationErrors{err.Error()}
	}
	res.Warnings = append(res.Warnings, verrs...)

	if trip.Travelers < 1 || (len(trip.Modes) == 0 && trip.Nights <= 0) {
		a.logger.Warn("trip cannot be assessed", "origin", trip.Origin, "destination", trip.Destination, "warnings", len(res.Warnings))
		return res
	}

	travelers := float64(trip.Travelers)
	var transport float64

	if len(trip.Modes) > 0 {
		if err := ValidateDistance(distanceKm); err != nil {
			res.Warnings = append(res.Warnings, "transport skipped: "+err.Error())
		} else if distanceKm == 0 {
			res.Warnings = append(res.Warnings, "transport skipped: resolved distance is zero")
		} else {
			seen := make(map[Mode]bool, len(trip.Modes))
			for _, m := range trip.Modes {
				if !m.IsTransport() || seen[m] {
					continue
				}
				seen[m] = true

				f := a.factors.Factor(m, distanceKm, trip.Region)
				if f <= 0 || math.IsNaN(f) {
					res.Warnings = append(res.Warnings, fmt.Sprintf("%s omitted: no emission factor available", m))
					continue
				}
				kg := distanceKm * f * travelers
				transport += kg
				res.PerModeKg[m] = round(kg, 3)
			}
		}
	}

	var lodging float64
	if trip.Nights > 0 && trip.Nights <= MaxNights {
		f := a.factors.Factor(Lodging, 0, trip.Region)
		if f <= 0 || math.IsNaN(f) {
			res.Warnings = append(res.Warnings, "accommodation omitted: no emission factor available")
		} else {
			lodging = float64(trip.Nights) * f * travelers * trip.LodgingClass.Multiplier()
		}
	}

	total := transport + lodging
	if total == 0 {
		res.Warnings = append(res.Warnings, "no valid emissions could be calculated")
	}

	res.AccommodationKg = round(lodging, 3)
	res.TotalKg = round(total, 3)
	res.PerPersonKg = round(total/travelers, 3)
	return res
}
