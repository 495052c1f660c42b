// Package emissions computes CO2e emission factors and aggregates trip emissions.
package emissions

import (
	"fmt"
	"math"
	"strings"
)

// Mode is a transport mode, or Lodging for accommodation.
type Mode string

const (
	Flight  Mode = "Flight"
	Train   Mode = "Train"
	Car     Mode = "Car"
	Bus     Mode = "Bus"
	Lodging Mode = "Lodging"
)

var transportModes = []Mode{Flight, Train, Car, Bus}

// TransportModes returns the supported transport modes in canonical order.
func TransportModes() []Mode {
	out := make([]Mode, len(transportModes))
	copy(out, transportModes)
	return out
}

// IsTransport reports whether m is one of the supported transport modes.
func (m Mode) IsTransport() bool {
	switch m {
	case Flight, Train, Car, Bus:
		return true
	}
	return false
}

// ParseMode resolves a mode name case-insensitively. "hotel" is accepted as
// an alias for Lodging.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "flight":
		return Flight, nil
	case "train":
		return Train, nil
	case "car":
		return Car, nil
	case "bus":
		return Bus, nil
	case "lodging", "hotel":
		return Lodging, nil
	}
	return "", fmt.Errorf("unsupported mode %q (supported: Flight, Train, Car, Bus)", s)
}

// Region selects regional adjustments to emission factors.
type Region string

const (
	// RegionDomestic is the default region: domestic travel in India.
	RegionDomestic Region = "domestic"
	RegionIndia    Region = "IN"
)

func (r Region) isIndia() bool {
	switch strings.ToUpper(string(r)) {
	case "", "DOMESTIC", "IN", "INDIA":
		return true
	}
	return false
}

// Code returns the ISO country code used when querying external sources.
func (r Region) Code() string {
	if r.isIndia() {
		return string(RegionIndia)
	}
	return strings.ToUpper(string(r))
}

// LodgingClass scales accommodation emissions.
type LodgingClass string

const (
	LodgingBudget   LodgingClass = "budget"
	LodgingStandard LodgingClass = "standard"
	LodgingLuxury   LodgingClass = "luxury"
)

// Multiplier returns the accommodation multiplier; unknown classes count as standard.
func (c LodgingClass) Multiplier() float64 {
	switch LodgingClass(strings.ToLower(string(c))) {
	case LodgingBudget:
		return 0.7
	case LodgingLuxury:
		return 1.5
	}
	return 1.0
}

type factorSpec struct {
	base        float64
	sensitivity float64
}

// kg CO2e per passenger-km, or per night for Lodging.
var factorTable = map[Mode]factorSpec{
	Flight:  {base: 0.255, sensitivity: 0.0001},
	Train:   {base: 0.041, sensitivity: 0},
	Car:     {base: 0.171, sensitivity: -0.00005},
	Bus:     {base: 0.089, sensitivity: -0.00002},
	Lodging: {base: 30.0},
}

var indiaMultipliers = map[Mode]float64{
	Train: 0.95,
	Car:   1.05,
}

const (
	distanceCapKm  = 2000.0
	minFactor      = 0.01
	maxFactorRatio = 1.5
)

// FactorSource yields an emission factor for a mode at a distance.
type FactorSource interface {
	Factor(mode Mode, distanceKm float64, region Region) float64
}

// Model is the deterministic heuristic factor model. The zero value is ready to use.
type Model struct{}

// Factor returns kg CO2e per km for transport modes and per night for Lodging.
// Unknown modes yield 0. Non-positive distances yield the unadjusted base factor.
func (Model) Factor(mode Mode, distanceKm float64, region Region) float64 {
	row, ok := factorTable[mode]
	if !ok {
		return 0
	}
	if mode == Lodging || distanceKm <= 0 || math.IsNaN(distanceKm) {
		return row.base
	}

	adjusted := row.base + row.sensitivity*math.Min(distanceKm, distanceCapKm)
	if region.isIndia() {
		if m, ok := indiaMultipliers[mode]; ok {
			adjusted *= m
		}
	}

	adjusted = math.Max(minFactor, math.Min(adjusted, row.base*maxFactorRatio))
	return round(adjusted, 4)
}

// FactorInfo describes one row of the factor table.
type FactorInfo struct {
	Mode                Mode    `json:"mode"`
	Base                float64 `json:"base"`
	DistanceSensitivity float64 `json:"distance_sensitivity"`
	Unit                string  `json:"unit"`
}

// Table describes the factors the model is built on.
func (Model) Table() []FactorInfo {
	modes := append(TransportModes(), Lodging)
	out := make([]FactorInfo, 0, len(modes))
	for _, m := range modes {
		row := factorTable[m]
		unit := "kg CO2e per passenger-km"
		if m == Lodging {
			unit = "kg CO2e per guest-night"
		}
		out = append(out, FactorInfo{
			Mode:                m,
			Base:                row.base,
			DistanceSensitivity: row.sensitivity,
			Unit:                unit,
		})
	}
	return out
}

// Fixed returns preset factors and defers to Fallback for modes it does not
// list. A nil Fallback yields 0 for unlisted modes.
type Fixed struct {
	Factors  map[Mode]float64
	Fallback FactorSource
}

// Factor implements FactorSource.
func (f Fixed) Factor(mode Mode, distanceKm float64, region Region) float64 {
	if v, ok := f.Factors[mode]; ok {
		return v
	}
	if f.Fallback != nil {
		return f.Fallback.Factor(mode, distanceKm, region)
	}
	return 0
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
