package emissions

import (
	"fmt"
	"math"
	"strings"
	"time"
)

const (
	MaxDistanceKm = 50000.0
	MaxTravelers  = 100
	MaxNights     = 365
)

// TripRequest describes a trip to be assessed.
type TripRequest struct {
	Origin       string       `json:"origin"`
	Destination  string       `json:"destination"`
	OutboundDate time.Time    `json:"outbound_date"`
	ReturnDate   *time.Time   `json:"return_date,omitempty"`
	Modes        []Mode       `json:"modes"`
	Travelers    int          `json:"travelers"`
	Nights       int          `json:"nights"`
	LodgingClass LodgingClass `json:"lodging_class,omitempty"`
	Region       Region       `json:"region,omitempty"`
}

// ValidationErrors collects every problem found in a request.
type ValidationErrors []string

func (v ValidationErrors) Error() string {
	return "invalid trip: " + strings.Join(v, "; ")
}

// Validate checks the request and returns nil or a ValidationErrors.
func (t TripRequest) Validate() error {
	var errs ValidationErrors

	if len(t.Modes) > 0 {
		if strings.TrimSpace(t.Origin) == "" {
			errs = append(errs, "origin is required")
		}
		if strings.TrimSpace(t.Destination) == "" {
			errs = append(errs, "destination is required")
		}
		if t.Origin != "" && strings.EqualFold(strings.TrimSpace(t.Origin), strings.TrimSpace(t.Destination)) {
			errs = append(errs, "origin and destination must differ when transport modes are given")
		}
	}

	if t.Travelers < 1 || t.Travelers > MaxTravelers {
		errs = append(errs, fmt.Sprintf("travelers must be between 1 and %d, got %d", MaxTravelers, t.Travelers))
	}
	if t.Nights < 0 || t.Nights > MaxNights {
		errs = append(errs, fmt.Sprintf("nights must be between 0 and %d, got %d", MaxNights, t.Nights))
	}
	for _, m := range t.Modes {
		if !m.IsTransport() {
			errs = append(errs, fmt.Sprintf("unsupported transport mode %q", m))
		}
	}
	if len(t.Modes) == 0 && t.Nights <= 0 {
		errs = append(errs, "at least one transport mode or a positive number of nights is required")
	}
	if t.ReturnDate != nil && !t.OutboundDate.IsZero() && !t.ReturnDate.After(t.OutboundDate) {
		errs = append(errs, "return date must be after the outbound date")
	}

	if len(errs) == 0 {
		return nil
	}
	return errs
}

// ValidateDistance rejects negative, non-finite or implausibly long distances.
func ValidateDistance(km float64) error {
	if math.IsNaN(km) || math.IsInf(km, 0) {
		return fmt.Errorf("distance must be a finite number")
	}
	if km < 0 || km > MaxDistanceKm {
		return fmt.Errorf("distance must be between 0 and %.0f km, got %.2f", MaxDistanceKm, km)
	}
	return nil
}
