package trip

import (
	"fmt"
	"strings"
	"time"

	"github.com/NERVsystems/tripcarbon/pkg/emissions"
)

// DateLayout is the calendar date format accepted for travel dates.
const DateLayout = "2006-01-02"

// Input is the loosely typed trip form accepted over MCP and REST. Modes
// are matched case-insensitively; travelers defaults to 1.
type Input struct {
	Origin       string   `json:"origin"`
	Destination  string   `json:"destination"`
	OutboundDate string   `json:"outbound_date,omitempty"`
	ReturnDate   string   `json:"return_date,omitempty"`
	Modes        []string `json:"modes,omitempty"`
	Travelers    int      `json:"travelers,omitempty"`
	Nights       int      `json:"nights,omitempty"`
	LodgingClass string   `json:"lodging_class,omitempty"`
	Region       string   `json:"region,omitempty"`
}

// Request converts the form into a validated TripRequest. Every problem is
// reported in one emissions.ValidationErrors.
func (in Input) Request() (emissions.TripRequest, error) {
	var errs emissions.ValidationErrors

	t := emissions.TripRequest{
		Origin:       strings.TrimSpace(in.Origin),
		Destination:  strings.TrimSpace(in.Destination),
		Travelers:    in.Travelers,
		Nights:       in.Nights,
		LodgingClass: emissions.LodgingClass(strings.ToLower(strings.TrimSpace(in.LodgingClass))),
		Region:       emissions.Region(strings.TrimSpace(in.Region)),
	}
	if t.Travelers == 0 {
		t.Travelers = 1
	}

	modes, err := ParseModes(in.Modes)
	if err != nil {
		errs = append(errs, err.Error())
	}
	t.Modes = modes

	if in.OutboundDate != "" {
		d, err := time.Parse(DateLayout, in.OutboundDate)
		if err != nil {
			errs = append(errs, fmt.Sprintf("outbound_date must be YYYY-MM-DD, got %q", in.OutboundDate))
		}
		t.OutboundDate = d
	}
	if in.ReturnDate != "" {
		d, err := time.Parse(DateLayout, in.ReturnDate)
		if err != nil {
			errs = append(errs, fmt.Sprintf("return_date must be YYYY-MM-DD, got %q", in.ReturnDate))
		} else {
			t.ReturnDate = &d
		}
	}

	if verr := t.Validate(); verr != nil {
		if ve, ok := verr.(emissions.ValidationErrors); ok {
			errs = append(errs, ve...)
		} else {
			errs = append(errs, verr.Error())
		}
	}
	if len(errs) > 0 {
		return t, errs
	}
	return t, nil
}
