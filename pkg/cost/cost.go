// Package cost estimates ticket and fuel costs (INR) for a trip by mode and service class.
package cost

import (
	"math"
	"sort"
	"strings"

	"github.com/NERVsystems/tripcarbon/pkg/emissions"
)

// StandardClass is the service class used when none, or an unknown one, is given.
const StandardClass = "standard"

var baseCosts = map[emissions.Mode]float64{
	emissions.Flight: 500,
	emissions.Train:  50,
	emissions.Car:    0,
	emissions.Bus:    25,
}

// INR per km, keyed by service class.
var perKmRates = map[emissions.Mode]map[string]float64{
	emissions.Flight: {
		"standard": 8.0,
		"budget":   6.0,
		"premium":  12.0,
		"economy":  6.0,
		"business": 12.0,
	},
	emissions.Train: {
		"standard": 1.2,
		"budget":   0.8,
		"premium":  2.5,
		"sleeper":  0.8,
		"ac_3tier": 1.2,
		"ac_2tier": 1.8,
		"ac_1tier": 2.5,
	},
	emissions.Car: {
		"standard": 6.0,
		"budget":   4.8,
		"premium":  6.0,
		"petrol":   5.5,
		"diesel":   4.8,
		"electric": 2.0,
	},
	emissions.Bus: {
		"standard": 2.5,
		"budget":   1.5,
		"premium":  3.5,
		"ordinary": 1.5,
		"ac":       2.5,
		"volvo":    3.5,
	},
}

// Rate returns the per-km rate for mode and class, falling back to the
// standard class. Unknown modes yield 0.
func Rate(mode emissions.Mode, class string) float64 {
	rates, ok := perKmRates[mode]
	if !ok {
		return 0
	}
	if r, ok := rates[strings.ToLower(strings.TrimSpace(class))]; ok {
		return r
	}
	return rates[StandardClass]
}

// Classes lists the service classes known for mode.
func Classes(mode emissions.Mode) []string {
	rates := perKmRates[mode]
	out := make([]string, 0, len(rates))
	for c := range rates {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

// Cost returns (base + distance × rate) × travelers. Negative distance or
// travelers count as zero.
func Cost(mode emissions.Mode, distanceKm float64, travelers int, class string) float64 {
	return Estimate(mode, distanceKm, travelers, class).Total
}

// Breakdown itemises a cost estimate. Values are rounded to 2 decimals.
type Breakdown struct {
	Mode         emissions.Mode `json:"mode"`
	ServiceClass string         `json:"service_class"`
	Total        float64        `json:"total_cost"`
	PerPerson    float64        `json:"cost_per_person"`
	BaseCost     float64        `json:"base_cost"`
	DistanceCost float64        `json:"distance_cost"`
	RatePerKm    float64        `json:"rate_per_km"`
}

// Estimate returns the itemised cost of carrying travelers distanceKm by mode.
func Estimate(mode emissions.Mode, distanceKm float64, travelers int, class string) Breakdown {
	if class == "" {
		class = StandardClass
	}
	b := Breakdown{Mode: mode, ServiceClass: class}

	base, ok := baseCosts[mode]
	if !ok {
		return b
	}
	if distanceKm < 0 || math.IsNaN(distanceKm) {
		distanceKm = 0
	}
	n := float64(travelers)
	if n < 0 {
		n = 0
	}

	rate := Rate(mode, class)
	perPerson := base + distanceKm*rate

	b.RatePerKm = rate
	b.BaseCost = round2(base * n)
	b.DistanceCost = round2(distanceKm * rate * n)
	b.PerPerson = round2(perPerson)
	b.Total = round2(perPerson * n)
	return b
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
