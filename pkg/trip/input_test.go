package trip

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NERVsystems/tripcarbon/pkg/emissions"
)

func TestInputRequest(t *testing.T) {
	req, err := Input{
		Origin:       " Salem ",
		Destination:  "Chennai",
		OutboundDate: "2024-03-01",
		ReturnDate:   "2024-03-04",
		Modes:        []string{"train", "BUS"},
		Nights:       3,
		LodgingClass: "Luxury",
	}.Request()
	require.NoError(t, err)
	assert.Equal(t, "Salem", req.Origin)
	assert.Equal(t, 1, req.Travelers)
	assert.Equal(t, []emissions.Mode{emissions.Train, emissions.Bus}, req.Modes)
	assert.Equal(t, emissions.LodgingLuxury, req.LodgingClass)
	require.NotNil(t, req.ReturnDate)
	assert.True(t, req.ReturnDate.After(req.OutboundDate))
}

func TestInputRequestCollectsErrors(t *testing.T) {
	_, err := Input{
		Origin:       "Salem",
		Destination:  "Chennai",
		OutboundDate: "01/03/2024",
		ReturnDate:   "2024-02-01",
		Modes:        []string{"rocket"},
		Travelers:    -2,
	}.Request()
	require.Error(t, err)

	var ve emissions.ValidationErrors
	require.ErrorAs(t, err, &ve)
	joined := ve.Error()
	assert.Contains(t, joined, "unsupported transport modes: rocket")
	assert.Contains(t, joined, "outbound_date")
	assert.Contains(t, joined, "travelers")
}

func TestInputRequestAccommodationOnly(t *testing.T) {
	req, err := Input{Origin: "Chennai", Destination: "Chennai", Nights: 2}.Request()
	require.NoError(t, err)
	assert.Empty(t, req.Modes)
	assert.Equal(t, 2, req.Nights)
}
