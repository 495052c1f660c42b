package alternatives

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NERVsystems/tripcarbon/pkg/emissions"
	"github.com/NERVsystems/tripcarbon/pkg/geo"
	"github.com/NERVsystems/tripcarbon/pkg/route"
)

type stubPredictor map[emissions.Mode]route.Prediction

func (s stubPredictor) Predict(_, _ string, mode emissions.Mode) route.Prediction {
	return s[mode]
}

func newDefaultEngine() *Engine {
	return NewEngine(route.NewPredictor(geo.Default()), emissions.Model{}, nil)
}

func TestGenerateSalemChennai(t *testing.T) {
	baseline := 150.0
	res, err := newDefaultEngine().Generate(Request{
		Origin:      "Salem",
		Destination: "Chennai",
		BaselineKg:  baseline,
		Selected:    []emissions.Mode{emissions.Car},
	})
	require.NoError(t, err)
	require.Len(t, res.Options, 4)
	assert.Empty(t, res.Warnings)

	assert.Equal(t, emissions.Train, res.Options[0].Mode)
	assert.Equal(t, emissions.Flight, res.Options[3].Mode)

	seen := map[emissions.Mode]bool{}
	for i, o := range res.Options {
		assert.False(t, seen[o.Mode], "duplicate mode %s", o.Mode)
		seen[o.Mode] = true

		if i > 0 {
			assert.LessOrEqual(t, res.Options[i-1].EmissionsKg, o.EmissionsKg)
		}
		assert.Equal(t, baseline-o.EmissionsKg, o.EmissionsSavingsKg)
		assert.GreaterOrEqual(t, o.EmissionsKg, 0.0)
		assert.GreaterOrEqual(t, o.Cost, 0.0)
		assert.Zero(t, o.CostDifference)
		assert.Equal(t, o.Mode == emissions.Car, o.Selected)
	}
}

func TestGenerateSavingsExact(t *testing.T) {
	for _, baseline := range []float64{500.5555, 123.4567891, 912} {
		res, err := newDefaultEngine().Generate(Request{
			Origin:      "Delhi",
			Destination: "Mumbai",
			BaselineKg:  baseline,
		})
		require.NoError(t, err)
		require.NotEmpty(t, res.Options)
		for _, o := range res.Options {
			assert.Equal(t, baseline-o.EmissionsKg, o.EmissionsSavingsKg, "%s at baseline %v", o.Mode, baseline)
		}

		scaled := res.Scale(3)
		for _, o := range scaled.Options {
			assert.Equal(t, scaled.BaselineKg-o.EmissionsKg, o.EmissionsSavingsKg, "scaled %s", o.Mode)
		}
	}
}

func TestGenerateCostDifference(t *testing.T) {
	baselineCost := 1000.0
	res, err := newDefaultEngine().Generate(Request{
		Origin:       "Delhi",
		Destination:  "Mumbai",
		BaselineKg:   300,
		BaselineCost: &baselineCost,
	})
	require.NoError(t, err)
	for _, o := range res.Options {
		assert.InDelta(t, o.Cost-baselineCost, o.CostDifference, 0.01)
	}
}

func TestGenerateUnknownLocation(t *testing.T) {
	res, err := newDefaultEngine().Generate(Request{Origin: "Atlantis", Destination: "Chennai", BaselineKg: 10})
	require.ErrorIs(t, err, ErrNoAlternatives)
	assert.Len(t, res.Warnings, 4)
}

func TestGenerateSkipsUnusableModes(t *testing.T) {
	pred := stubPredictor{
		emissions.Train: {Mode: emissions.Train, DistanceKm: 100, DurationHours: 2, Resolved: true},
		emissions.Bus:   {Mode: emissions.Bus, DistanceKm: 0, Resolved: true},
		emissions.Car:   {Mode: emissions.Car, DistanceKm: 100, DurationHours: 2.5, Resolved: true},
	}
	factors := emissions.Fixed{Factors: map[emissions.Mode]float64{emissions.Train: 0.04}}

	res, err := NewEngine(pred, factors, nil).Generate(Request{
		Origin:      "A",
		Destination: "B",
		Modes:       []emissions.Mode{emissions.Train, emissions.Bus, emissions.Car, emissions.Train, "Boat"},
	})
	require.NoError(t, err)
	require.Len(t, res.Options, 1)
	assert.Equal(t, emissions.Train, res.Options[0].Mode)
	assert.InDelta(t, 4, res.Options[0].EmissionsKg, 1e-9)
	assert.InDelta(t, -4, res.Options[0].EmissionsSavingsKg, 1e-9)
	assert.Len(t, res.Warnings, 3)
}

func TestGenerateTieBreaks(t *testing.T) {
	pred := stubPredictor{
		emissions.Flight: {Mode: emissions.Flight, DistanceKm: 100, DurationHours: 1, Resolved: true},
		emissions.Train:  {Mode: emissions.Train, DistanceKm: 100, DurationHours: 3, Resolved: true},
		emissions.Car:    {Mode: emissions.Car, DistanceKm: 100, DurationHours: 2, Resolved: true},
		emissions.Bus:    {Mode: emissions.Bus, DistanceKm: 100, DurationHours: 2, Resolved: true},
	}
	same := map[emissions.Mode]float64{}
	for _, m := range emissions.TransportModes() {
		same[m] = 0.1
	}

	res, err := NewEngine(pred, emissions.Fixed{Factors: same}, nil).Generate(Request{Origin: "A", Destination: "B"})
	require.NoError(t, err)

	var got []emissions.Mode
	for _, o := range res.Options {
		got = append(got, o.Mode)
	}
	// Car costs 600, Bus 275, Train 170, Flight 1300.
	assert.Equal(t, []emissions.Mode{emissions.Train, emissions.Bus, emissions.Car, emissions.Flight}, got)
}

func TestResultAccessors(t *testing.T) {
	baselineCost := 500.0
	r := Result{
		BaselineKg:   100,
		BaselineCost: &baselineCost,
		Options: []Option{
			{Mode: emissions.Train, EmissionsKg: 10, Cost: 400, DurationHours: 8, EmissionsSavingsKg: 90},
			{Mode: emissions.Bus, EmissionsKg: 20, Cost: 200, DurationHours: 10, EmissionsSavingsKg: 80},
			{Mode: emissions.Flight, EmissionsKg: 70, Cost: 900, DurationHours: 3, EmissionsSavingsKg: 30},
		},
	}

	best, ok := r.BestByEmissions()
	require.True(t, ok)
	assert.Equal(t, emissions.Train, best.Mode)

	best, ok = r.BestByCost()
	require.True(t, ok)
	assert.Equal(t, emissions.Bus, best.Mode)

	best, ok = r.BestByDuration(5)
	require.True(t, ok)
	assert.Equal(t, emissions.Flight, best.Mode)

	best, ok = r.BestByDuration(0)
	require.True(t, ok)
	assert.Equal(t, emissions.Flight, best.Mode)

	_, ok = r.BestByDuration(1)
	assert.False(t, ok)

	assert.Equal(t, 90.0, r.Options[0].SavingsPercent(r.BaselineKg))
	assert.Zero(t, r.Options[0].SavingsPercent(0))

	ranked := r.RankBySavings()
	assert.Equal(t, emissions.Train, ranked[0].Mode)
	assert.Equal(t, emissions.Flight, ranked[2].Mode)

	filtered := r.FilterModes(emissions.Bus, emissions.Car)
	require.Len(t, filtered.Options, 1)
	assert.Equal(t, emissions.Bus, filtered.Options[0].Mode)
	assert.Len(t, r.Options, 3)

	scaled := r.Scale(2)
	assert.Equal(t, 20.0, scaled.Options[0].EmissionsKg)
	assert.Equal(t, 80.0, scaled.Options[0].EmissionsSavingsKg)
	assert.Equal(t, 300.0, scaled.Options[0].CostDifference)
	assert.Equal(t, 10.0, r.Options[0].EmissionsKg)

	sum := r.Summarize()
	assert.Equal(t, 3, sum.Count)
	assert.Equal(t, []emissions.Mode{emissions.Train, emissions.Bus, emissions.Flight}, sum.Modes)
	assert.Equal(t, Stats{Min: 10, Max: 70, Avg: 33.333}, sum.Emissions)
	assert.Equal(t, Stats{Min: 200, Max: 900, Avg: 500}, sum.Cost)
}

func TestEmptyResultAccessors(t *testing.T) {
	var r Result
	_, ok := r.BestByEmissions()
	assert.False(t, ok)
	_, ok = r.BestByCost()
	assert.False(t, ok)
	_, ok = r.BestByDuration(0)
	assert.False(t, ok)
	assert.Equal(t, Summary{}, r.Summarize())
}
