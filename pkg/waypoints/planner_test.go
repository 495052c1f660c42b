package waypoints

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NERVsystems/tripcarbon/pkg/geo"
)

func ids(vs []Variant) []string {
	out := make([]string, len(vs))
	for i, v := range vs {
		out[i] = v.ID
	}
	return out
}

func TestVariantsCuratedShortcuts(t *testing.T) {
	p := NewPlanner(geo.Default())

	vs, err := p.Variants("Chennai", "Coimbatore", 3, 3)
	require.NoError(t, err)
	assert.Equal(t, []string{"shortcut_via_salem", "scenic_via_vellore", IDDirect}, ids(vs))
	assert.Equal(t, []string{"Salem"}, vs[0].Waypoints)
	assert.True(t, vs[0].Curated)
	assert.True(t, vs[2].IsDirect)

	direct := vs[2].DistanceKm
	assert.InDelta(t, 427.4, direct, 1)
	for _, v := range vs {
		assert.GreaterOrEqual(t, v.DistanceKm, direct-0.01)
		assert.False(t, v.IsShortcut)
		assert.Empty(t, v.Unresolved)
	}

	back, err := p.Variants("coimbatore", "chennai", 3, 3)
	require.NoError(t, err)
	assert.Equal(t, []string{"Salem", "Vellore"}, back[1].Waypoints)
}

func TestVariantsDeduplicatesAndOrders(t *testing.T) {
	p := NewPlanner(geo.Default())

	vs, err := p.Variants("Chennai", "Coimbatore", 3, 10)
	require.NoError(t, err)
	// The middle waypoint is Salem, already covered by the curated shortcut.
	assert.Equal(t, []string{"shortcut_via_salem", "scenic_via_vellore", IDDirect, IDFirst, IDLast, IDAll}, ids(vs))
	assert.Equal(t, []string{"Vellore", "Salem", "Erode"}, vs[5].Waypoints)

	seen := map[string]bool{}
	for _, v := range vs {
		key := ""
		for _, w := range v.Waypoints {
			key += w + "/"
		}
		assert.False(t, seen[key], "duplicate waypoint sequence %q", key)
		seen[key] = true
	}
}

func TestVariantsDynamic(t *testing.T) {
	p := NewPlanner(geo.Default())

	vs, err := p.Variants("Salem", "Chennai", 0, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{IDDirect, IDMiddle, IDFirst}, ids(vs))
	assert.Equal(t, []string{"Kanchipuram"}, vs[1].Waypoints)
	assert.Equal(t, []string{"Vellore"}, vs[2].Waypoints)
}

func TestVariantsSameCity(t *testing.T) {
	vs, err := NewPlanner(geo.Default()).Variants("Chennai", "Chennai", 3, 3)
	require.NoError(t, err)
	require.Len(t, vs, 1)
	assert.True(t, vs[0].IsDirect)
	assert.Zero(t, vs[0].DistanceKm)
}

func TestVariantsUnknownLocation(t *testing.T) {
	_, err := NewPlanner(geo.Default()).Variants("Atlantis", "Chennai", 3, 3)
	assert.ErrorIs(t, err, geo.ErrNotFound)

	_, err = NewPlanner(geo.Default()).Shortest("Chennai", "Atlantis")
	assert.ErrorIs(t, err, geo.ErrNotFound)
}

func TestIntermediate(t *testing.T) {
	p := NewPlanner(geo.Default())

	tests := []struct {
		name     string
		from, to string
		max      int
		want     []string
	}{
		{"curated truncated", "Delhi", "Mumbai", 2, []string{"Jaipur", "Ajmer"}},
		{"curated reverse entry", "Mumbai", "Delhi", 3, []string{"Vadodara", "Ahmedabad", "Ajmer"}},
		{"dynamic evenly spaced", "Chennai", "Kochi", 3, []string{"Vellore", "Tiruchirappalli", "Madurai"}},
		{"dynamic single takes the middle", "Delhi", "Goa", 1, []string{"Ajmer"}},
		{"dynamic without duplicates", "Kolkata", "Delhi", 3, []string{"Varanasi", "Agra"}},
		{"no candidates", "Mumbai", "Pune", 3, nil},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := p.Intermediate(tc.from, tc.to, tc.max)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestPathDistance(t *testing.T) {
	c := geo.Default()
	p := NewPlanner(c)

	direct, err := c.Distance("Chennai", "Salem")
	require.NoError(t, err)

	d, unresolved := p.PathDistance([]string{"Chennai", "Salem"})
	assert.InDelta(t, direct, d, 0.01)
	assert.Empty(t, unresolved)

	d, unresolved = p.PathDistance([]string{"Chennai", "Atlantis", "Salem"})
	assert.Zero(t, d)
	assert.Equal(t, []string{"Atlantis"}, unresolved)

	leg, _ := c.Distance("Chennai", "Vellore")
	d, unresolved = p.PathDistance([]string{"Chennai", "Vellore", "Atlantis", "Atlantis"})
	assert.InDelta(t, leg, d, 0.01)
	assert.Equal(t, []string{"Atlantis"}, unresolved)
}

func TestShortest(t *testing.T) {
	v, err := NewPlanner(geo.Default()).Shortest("Chennai", "Coimbatore")
	require.NoError(t, err)
	assert.Equal(t, IDDirect, v.ID)
}

func TestPathCoordinates(t *testing.T) {
	locs := NewPlanner(geo.Default()).PathCoordinates("Chennai", "Coimbatore", []string{"Atlantis", "Salem"})
	require.Len(t, locs, 3)
	assert.Equal(t, "Chennai", locs[0].Name)
	assert.Equal(t, "Salem", locs[1].Name)
	assert.Equal(t, "Coimbatore", locs[2].Name)
}
