// Package route predicts travel distance, duration and stops per transport mode.
package route

import (
	"math"
	"sort"
	"strings"

	"github.com/NERVsystems/tripcarbon/pkg/emissions"
)

// DistanceSource resolves the great-circle distance between two named places.
type DistanceSource interface {
	Distance(a, b string) (float64, error)
}

type modeProfile struct {
	inefficiency float64
	speedKmh     float64
	overheadH    float64
	comfort      int
}

// Road and rail routes are longer than the great circle; overheads cover
// check-in, boarding and transfers.
var profiles = map[emissions.Mode]modeProfile{
	emissions.Flight: {inefficiency: 1.0, speedKmh: 500, overheadH: 3.0, comfort: 4},
	emissions.Train:  {inefficiency: 1.15, speedKmh: 60, overheadH: 1.0, comfort: 3},
	emissions.Car:    {inefficiency: 1.2, speedKmh: 50, overheadH: 0.5, comfort: 2},
	emissions.Bus:    {inefficiency: 1.25, speedKmh: 45, overheadH: 1.0, comfort: 1},
}

var fallbackProfile = modeProfile{inefficiency: 1.2, speedKmh: 50, overheadH: 0.5}

const minDurationHours = 0.5

func profileFor(mode emissions.Mode) modeProfile {
	if p, ok := profiles[mode]; ok {
		return p
	}
	return fallbackProfile
}

// Prediction is the estimated route for one mode.
type Prediction struct {
	Mode          emissions.Mode `json:"mode"`
	DistanceKm    float64        `json:"distance_km"`
	DurationHours float64        `json:"duration_hours"`
	Stops         int            `json:"estimated_stops"`
	AvgSpeedKmh   float64        `json:"average_speed_kmh"`
	Resolved      bool           `json:"resolved"`
}

// Predictor estimates routes between catalog locations.
type Predictor struct {
	distances DistanceSource
}

// NewPredictor creates a Predictor resolving distances from src.
func NewPredictor(src DistanceSource) *Predictor {
	return &Predictor{distances: src}
}

// Predict estimates the route by mode. Unresolvable endpoints yield an
// unresolved prediction with zero distance.
func (p *Predictor) Predict(origin, destination string, mode emissions.Mode) Prediction {
	d, err := p.distances.Distance(origin, destination)
	if err != nil {
		return Prediction{Mode: mode}
	}
	return Estimate(mode, d)
}

// PredictAll predicts every transport mode in canonical order.
func (p *Predictor) PredictAll(origin, destination string) []Prediction {
	d, err := p.distances.Distance(origin, destination)
	modes := emissions.TransportModes()
	out := make([]Prediction, 0, len(modes))
	for _, m := range modes {
		if err != nil {
			out = append(out, Prediction{Mode: m})
			continue
		}
		out = append(out, Estimate(m, d))
	}
	return out
}

// Estimate predicts the route by mode given the great-circle distance.
func Estimate(mode emissions.Mode, greatCircleKm float64) Prediction {
	prof := profileFor(mode)
	if greatCircleKm < 0 || math.IsNaN(greatCircleKm) {
		greatCircleKm = 0
	}

	dist := greatCircleKm * prof.inefficiency
	dur := round2(math.Max(dist/prof.speedKmh+prof.overheadH, minDurationHours))

	return Prediction{
		Mode:          mode,
		DistanceKm:    round2(dist),
		DurationHours: dur,
		Stops:         EstimateStops(dist, mode),
		AvgSpeedKmh:   round2(dist / math.Max(dur-prof.overheadH, 0.1)),
		Resolved:      true,
	}
}

// Measured builds a prediction from an externally measured route distance
// and duration. A non-positive duration is re-estimated from the mode's speed.
func Measured(mode emissions.Mode, distanceKm, durationHours float64) Prediction {
	if distanceKm <= 0 || math.IsNaN(distanceKm) {
		return Prediction{Mode: mode}
	}
	prof := profileFor(mode)
	if durationHours <= 0 || math.IsNaN(durationHours) {
		durationHours = distanceKm/prof.speedKmh + prof.overheadH
	}
	dur := round2(math.Max(durationHours, minDurationHours))
	return Prediction{
		Mode:          mode,
		DistanceKm:    round2(distanceKm),
		DurationHours: dur,
		Stops:         EstimateStops(distanceKm, mode),
		AvgSpeedKmh:   round2(distanceKm / math.Max(dur-prof.overheadH, 0.1)),
		Resolved:      true,
	}
}

// EstimateStops returns the expected number of intermediate stops.
func EstimateStops(distanceKm float64, mode emissions.Mode) int {
	if distanceKm < 0 {
		distanceKm = 0
	}
	switch mode {
	case emissions.Flight:
		return 0
	case emissions.Train:
		return max(1, int(distanceKm/100))
	case emissions.Car:
		return max(0, int(distanceKm/200))
	case emissions.Bus:
		return max(1, int(distanceKm/50))
	}
	return 0
}

// Compare predicts the given modes (all when empty) and sorts resolved
// routes by duration, fastest first.
func (p *Predictor) Compare(origin, destination string, modes ...emissions.Mode) []Prediction {
	if len(modes) == 0 {
		modes = emissions.TransportModes()
	}
	var out []Prediction
	for _, m := range modes {
		if pr := p.Predict(origin, destination, m); pr.Resolved {
			out = append(out, pr)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].DurationHours < out[j].DurationHours
	})
	return out
}

// Priority orders recommendations.
type Priority string

const (
	PrioritySpeed    Priority = "speed"
	PriorityDistance Priority = "distance"
	PriorityComfort  Priority = "comfort"
)

// ParsePriority maps free text to a Priority, defaulting to speed.
func ParsePriority(s string) Priority {
	switch Priority(strings.ToLower(strings.TrimSpace(s))) {
	case PriorityDistance:
		return PriorityDistance
	case PriorityComfort:
		return PriorityComfort
	}
	return PrioritySpeed
}

// Preferences constrain and order recommendations. Zero limits are ignored.
type Preferences struct {
	Priority         Priority `json:"priority"`
	MaxDurationHours float64  `json:"max_duration_hours,omitempty"`
	MaxDistanceKm    float64  `json:"max_distance_km,omitempty"`
}

// Recommend returns the resolved routes satisfying prefs, best first.
func (p *Predictor) Recommend(origin, destination string, prefs Preferences) []Prediction {
	var out []Prediction
	for _, pr := range p.PredictAll(origin, destination) {
		if !pr.Resolved {
			continue
		}
		if prefs.MaxDurationHours > 0 && pr.DurationHours > prefs.MaxDurationHours {
			continue
		}
		if prefs.MaxDistanceKm > 0 && pr.DistanceKm > prefs.MaxDistanceKm {
			continue
		}
		out = append(out, pr)
	}

	var less func(a, b Prediction) bool
	switch prefs.Priority {
	case PriorityDistance:
		less = func(a, b Prediction) bool { return a.DistanceKm < b.DistanceKm }
	case PriorityComfort:
		less = func(a, b Prediction) bool { return profileFor(a.Mode).comfort > profileFor(b.Mode).comfort }
	default:
		less = func(a, b Prediction) bool { return a.DurationHours < b.DurationHours }
	}
	sort.SliceStable(out, func(i, j int) bool { return less(out[i], out[j]) })
	return out
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
