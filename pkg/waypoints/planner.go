// Package waypoints plans route variants through intermediate towns and
// picks the shortest of them.
package waypoints

import (
	"fmt"
	"math"
	"slices"
	"sort"
	"strings"

	"github.com/NERVsystems/tripcarbon/pkg/geo"
)

const (
	DefaultMaxWaypoints = 3
	DefaultNumVariants  = 3

	// Candidates may add at most half the direct distance.
	maxDetourRatio = 1.5
	boxBuffer      = 0.1
	shortcutRatio  = 0.98
	optimizeOver   = 5
)

// Variant IDs for generated routes.
const (
	IDDirect = "direct"
	IDMiddle = "via_middle"
	IDFirst  = "via_first"
	IDLast   = "via_last"
	IDAll    = "via_all"
)

var priority = map[string]int{
	IDDirect: 2,
	IDMiddle: 3,
	IDFirst:  4,
	IDLast:   5,
	IDAll:    6,
}

// Variant is a route through an ordered list of waypoints.
type Variant struct {
	ID          string   `json:"route_id"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Waypoints   []string `json:"waypoints"`
	DistanceKm  float64  `json:"total_distance_km"`
	IsDirect    bool     `json:"is_direct"`
	IsShortcut  bool     `json:"is_shortcut"`
	Curated     bool     `json:"curated"`
	Unresolved  []string `json:"unresolved,omitempty"`
}

// Planner builds waypoint variants over a location catalog.
type Planner struct {
	catalog *geo.Catalog
}

// NewPlanner creates a Planner over catalog.
func NewPlanner(catalog *geo.Catalog) *Planner {
	return &Planner{catalog: catalog}
}

func (p *Planner) endpoints(origin, destination string) (geo.Location, geo.Location, error) {
	o, err := p.catalog.Lookup(origin)
	if err != nil {
		return geo.Location{}, geo.Location{}, err
	}
	d, err := p.catalog.Lookup(destination)
	if err != nil {
		return geo.Location{}, geo.Location{}, err
	}
	return o, d, nil
}

// Intermediate returns up to maxWaypoints towns between origin and
// destination, ordered from origin to destination. Curated corridors are
// used when known, in either direction.
func (p *Planner) Intermediate(origin, destination string, maxWaypoints int) ([]string, error) {
	o, d, err := p.endpoints(origin, destination)
	if err != nil {
		return nil, err
	}
	if maxWaypoints <= 0 {
		maxWaypoints = DefaultMaxWaypoints
	}

	if wps, ok := curatedRoutes[pairKey{o.Name, d.Name}]; ok {
		return truncate(wps, maxWaypoints), nil
	}
	if wps, ok := curatedRoutes[pairKey{d.Name, o.Name}]; ok {
		return reversed(truncate(wps, maxWaypoints)), nil
	}
	return p.dynamicCandidates(o, d, maxWaypoints), nil
}

type candidate struct {
	name     string
	progress float64
}

func (p *Planner) dynamicCandidates(o, d geo.Location, maxWaypoints int) []string {
	direct := o.DistanceTo(d)
	if direct == 0 {
		return nil
	}

	var cands []candidate
	for _, loc := range p.catalog.WithinBox(geo.BoxAround(o, d).Expand(boxBuffer)) {
		if loc.Name == o.Name || loc.Name == d.Name {
			continue
		}
		toOrigin := o.DistanceTo(loc)
		toDest := loc.DistanceTo(d)
		if toOrigin+toDest > direct*maxDetourRatio {
			continue
		}
		cands = append(cands, candidate{name: loc.Name, progress: toOrigin / (toOrigin + toDest)})
	}
	if len(cands) == 0 {
		return nil
	}

	sort.SliceStable(cands, func(i, j int) bool {
		return cands[i].progress < cands[j].progress
	})

	if maxWaypoints == 1 {
		return []string{cands[len(cands)/2].name}
	}

	step := float64(len(cands)) / float64(maxWaypoints+1)
	var out []string
	seen := make(map[int]bool)
	for i := 1; i <= maxWaypoints; i++ {
		idx := int(float64(i) * step)
		if idx >= len(cands) || seen[idx] {
			continue
		}
		seen[idx] = true
		out = append(out, cands[idx].name)
	}
	return out
}

// Variants generates up to numVariants routes between origin and
// destination, curated shortcuts first, then direct, then the waypoint
// routes. Unknown endpoints return geo.ErrNotFound.
func (p *Planner) Variants(origin, destination string, maxWaypoints, numVariants int) ([]Variant, error) {
	o, d, err := p.endpoints(origin, destination)
	if err != nil {
		return nil, err
	}
	if numVariants <= 0 {
		numVariants = DefaultNumVariants
	}

	var variants []Variant
	add := func(v Variant) {
		for _, existing := range variants {
			if slices.Equal(existing.Waypoints, v.Waypoints) {
				return
			}
		}
		variants = append(variants, v)
	}

	for _, sc := range curatedShortcuts[pairKey{o.Name, d.Name}] {
		add(Variant{
			ID:          sc.id,
			Name:        "Shortcut via " + strings.Join(sc.waypoints, ", "),
			Description: fmt.Sprintf("Curated route via %s", strings.Join(sc.waypoints, ", ")),
			Waypoints:   append([]string(nil), sc.waypoints...),
			Curated:     true,
		})
	}

	add(Variant{
		ID:          IDDirect,
		Name:        "Direct Route",
		Description: "Shortest direct path between origin and destination",
		Waypoints:   []string{},
		IsDirect:    true,
	})

	mids, err := p.Intermediate(o.Name, d.Name, maxWaypoints)
	if err != nil {
		return nil, err
	}
	if len(mids) > 0 {
		middle := mids[len(mids)/2]
		add(Variant{
			ID:          IDMiddle,
			Name:        "Via " + middle,
			Description: fmt.Sprintf("Balanced route via %s", middle),
			Waypoints:   []string{middle},
		})
		add(Variant{
			ID:          IDFirst,
			Name:        "Via " + mids[0],
			Description: fmt.Sprintf("Route via %s, closer to the origin", mids[0]),
			Waypoints:   []string{mids[0]},
		})
	}
	if len(mids) >= 2 {
		last := mids[len(mids)-1]
		add(Variant{
			ID:          IDLast,
			Name:        "Via " + last,
			Description: fmt.Sprintf("Route via %s, closer to the destination", last),
			Waypoints:   []string{last},
		})
		add(Variant{
			ID:          IDAll,
			Name:        "Scenic Route via " + strings.Join(mids, ", "),
			Description: fmt.Sprintf("Scenic route through %d towns", len(mids)),
			Waypoints:   append([]string(nil), mids...),
		})
	}

	sort.SliceStable(variants, func(i, j int) bool {
		return rank(variants[i]) < rank(variants[j])
	})
	if len(variants) > numVariants {
		variants = variants[:numVariants]
	}

	direct := o.DistanceTo(d)
	for i := range variants {
		v := &variants[i]
		v.DistanceKm, v.Unresolved = p.PathDistance(path(o.Name, v.Waypoints, d.Name))
		v.IsShortcut = !v.IsDirect && len(v.Unresolved) == 0 && v.DistanceKm < direct*shortcutRatio
	}
	return variants, nil
}

func rank(v Variant) int {
	if v.Curated {
		return 1
	}
	if r, ok := priority[v.ID]; ok {
		return r
	}
	return 10
}

// PathDistance sums the great-circle segments along names. Segments touching
// an unknown name contribute nothing; unknown names are returned once each.
func (p *Planner) PathDistance(names []string) (float64, []string) {
	var (
		total      float64
		unresolved []string
	)
	locs := make([]*geo.Location, len(names))
	for i, n := range names {
		loc, err := p.catalog.Lookup(n)
		if err != nil {
			if !slices.Contains(unresolved, n) {
				unresolved = append(unresolved, n)
			}
			continue
		}
		locs[i] = &loc
	}
	for i := 0; i+1 < len(locs); i++ {
		if locs[i] != nil && locs[i+1] != nil {
			total += locs[i].DistanceTo(*locs[i+1])
		}
	}
	return round2(total), unresolved
}

// PathCoordinates returns the resolvable locations along the route in order.
func (p *Planner) PathCoordinates(origin, destination string, waypoints []string) []geo.Location {
	var out []geo.Location
	for _, n := range path(origin, waypoints, destination) {
		if loc, err := p.catalog.Lookup(n); err == nil {
			out = append(out, loc)
		}
	}
	return out
}

// Shortest returns the shortest of the candidate variants.
func (p *Planner) Shortest(origin, destination string) (Variant, error) {
	variants, err := p.Variants(origin, destination, DefaultMaxWaypoints, optimizeOver)
	if err != nil {
		return Variant{}, err
	}
	best := variants[0]
	for _, v := range variants[1:] {
		if v.DistanceKm < best.DistanceKm {
			best = v
		}
	}
	return best, nil
}

func path(origin string, waypoints []string, destination string) []string {
	out := make([]string, 0, len(waypoints)+2)
	out = append(out, origin)
	out = append(out, waypoints...)
	return append(out, destination)
}

func truncate(s []string, n int) []string {
	if len(s) > n {
		s = s[:n]
	}
	return append([]string(nil), s...)
}

func reversed(s []string) []string {
	out := slices.Clone(s)
	slices.Reverse(out)
	return out
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
