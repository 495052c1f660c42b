package alternatives

import (
	"sort"

	"github.com/NERVsystems/tripcarbon/pkg/emissions"
)

// BestByEmissions returns the lowest-emission option.
func (r Result) BestByEmissions() (Option, bool) {
	if len(r.Options) == 0 {
		return Option{}, false
	}
	return r.Options[0], true
}

// BestByCost returns the cheapest option, preferring lower emissions on ties.
func (r Result) BestByCost() (Option, bool) {
	ranked := r.RankByCost()
	if len(ranked) == 0 {
		return Option{}, false
	}
	return ranked[0], true
}

// BestByDuration returns the lowest-emission option taking at most maxHours.
// A non-positive maxHours returns the fastest option.
func (r Result) BestByDuration(maxHours float64) (Option, bool) {
	if maxHours <= 0 {
		var best Option
		found := false
		for _, o := range r.Options {
			if !found || o.DurationHours < best.DurationHours {
				best, found = o, true
			}
		}
		return best, found
	}
	for _, o := range r.Options {
		if o.DurationHours <= maxHours {
			return o, true
		}
	}
	return Option{}, false
}

// RankByCost returns the options ordered by cost, cheapest first.
func (r Result) RankByCost() []Option {
	out := make([]Option, len(r.Options))
	copy(out, r.Options)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Cost < out[j].Cost })
	return out
}

// RankBySavings returns the options ordered by emissions savings, largest first.
func (r Result) RankBySavings() []Option {
	out := make([]Option, len(r.Options))
	copy(out, r.Options)
	sort.SliceStable(out, func(i, j int) bool { return out[i].EmissionsSavingsKg > out[j].EmissionsSavingsKg })
	return out
}

// FilterModes keeps only the options for the given modes.
func (r Result) FilterModes(modes ...emissions.Mode) Result {
	keep := make(map[emissions.Mode]bool, len(modes))
	for _, m := range modes {
		keep[m] = true
	}
	out := r
	out.Options = nil
	for _, o := range r.Options {
		if keep[o.Mode] {
			out.Options = append(out.Options, o)
		}
	}
	return out
}

// Scale converts per-person options into totals for the given number of
// travelers. Savings and cost differences are recomputed against the baseline.
func (r Result) Scale(travelers int) Result {
	if travelers < 1 {
		travelers = 1
	}
	n := float64(travelers)
	out := r
	out.Options = make([]Option, len(r.Options))
	for i, o := range r.Options {
		o.EmissionsKg = round(o.EmissionsKg*n, 3)
		o.Cost = round(o.Cost*n, 2)
		o.EmissionsSavingsKg = r.BaselineKg - o.EmissionsKg
		if r.BaselineCost != nil {
			o.CostDifference = round(o.Cost-*r.BaselineCost, 2)
		}
		out.Options[i] = o
	}
	return out
}

// Stats summarises one metric across the options.
type Stats struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
	Avg float64 `json:"avg"`
}

// Summary describes the spread of the options.
type Summary struct {
	Count     int              `json:"count"`
	Modes     []emissions.Mode `json:"modes"`
	Emissions Stats            `json:"emissions_kg"`
	Cost      Stats            `json:"cost"`
	Duration  Stats            `json:"duration_hours"`
	Savings   Stats            `json:"emissions_savings_kg"`
}

// Summarize computes summary statistics over the options.
func (r Result) Summarize() Summary {
	s := Summary{Count: len(r.Options)}
	if s.Count == 0 {
		return s
	}
	var em, co, du, sa []float64
	for _, o := range r.Options {
		s.Modes = append(s.Modes, o.Mode)
		em = append(em, o.EmissionsKg)
		co = append(co, o.Cost)
		du = append(du, o.DurationHours)
		sa = append(sa, o.EmissionsSavingsKg)
	}
	s.Emissions = stats(em, 3)
	s.Cost = stats(co, 2)
	s.Duration = stats(du, 2)
	s.Savings = stats(sa, 3)
	return s
}

func stats(vals []float64, places int) Stats {
	st := Stats{Min: vals[0], Max: vals[0]}
	var sum float64
	for _, v := range vals {
		st.Min = min(st.Min, v)
		st.Max = max(st.Max, v)
		sum += v
	}
	st.Avg = round(sum/float64(len(vals)), places)
	return st
}
