package provider

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/NERVsystems/tripcarbon/pkg/core"
	"github.com/NERVsystems/tripcarbon/pkg/emissions"
	"github.com/NERVsystems/tripcarbon/pkg/geo"
	"github.com/NERVsystems/tripcarbon/pkg/route"
)

var fastRetry = core.RetryOptions{
	MaxAttempts:   3,
	InitialDelay:  time.Millisecond,
	MaxDelay:      5 * time.Millisecond,
	Multiplier:    2,
	MaxRetryAfter: 10 * time.Millisecond,
}

func newTestClient(t *testing.T, h http.HandlerFunc) (*HTTPClient, *atomic.Int32) {
	t.Helper()
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		h(w, r)
	}))
	t.Cleanup(srv.Close)

	c := NewHTTPClient(srv.URL, "test-key",
		WithRetryOptions(fastRetry),
		WithRateLimit(rate.Inf, 1),
	)
	t.Cleanup(func() { _ = c.Close() })
	return c, &calls
}

func TestMissingKeyShortCircuits(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, "")
	defer c.Close()
	assert.False(t, c.Configured())

	_, err := c.FetchEmissionFactor(context.Background(), emissions.Train, 300, emissions.RegionDomestic)
	assert.ErrorIs(t, err, ErrUnavailable)
	_, err = c.FetchRoute(context.Background(), "Salem", "Chennai", emissions.Train)
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.ErrorIs(t, c.Check(context.Background()), ErrUnavailable)
	assert.Zero(t, calls.Load())
}

func TestFetchEmissionFactor(t *testing.T) {
	c, calls := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/estimate", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var body estimateRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "IN", body.EmissionFactor.Region)
		assert.Equal(t, "km", body.Parameters.DistanceUnit)

		_ = json.NewEncoder(w).Encode(estimateResponse{CO2e: 0.04 * body.Parameters.Distance, CO2eUnit: "kg"})
	})

	ctx := context.Background()
	f, err := c.FetchEmissionFactor(ctx, emissions.Train, 300, emissions.RegionDomestic)
	require.NoError(t, err)
	assert.InDelta(t, 0.04, f, 1e-9)

	// served from cache
	f, err = c.FetchEmissionFactor(ctx, emissions.Train, 300.2, "")
	require.NoError(t, err)
	assert.InDelta(t, 0.04, f, 1e-9)
	assert.EqualValues(t, 1, calls.Load())
}

func TestFetchLodgingFactor(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var body estimateRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "night", body.Parameters.Unit)
		assert.Equal(t, 1, body.Parameters.Number)
		_, _ = w.Write([]byte(`{"co2e": 25.5, "co2e_unit": "kg"}`))
	})

	f, err := c.FetchEmissionFactor(context.Background(), emissions.Lodging, 0, "")
	require.NoError(t, err)
	assert.Equal(t, 25.5, f)
}

func TestRetryBehaviour(t *testing.T) {
	tests := []struct {
		name      string
		statuses  []int
		header    string
		wantCalls int32
		wantErr   error
	}{
		{"recovers from 5xx", []int{500, 503, 200}, "", 3, nil},
		{"gives up after max attempts", []int{502, 502, 502}, "", 3, core.NewError(core.ErrServiceUnavailable, "")},
		{"no retry on 401", []int{401}, "", 1, ErrUnauthorized},
		{"no retry on 403", []int{403}, "", 1, ErrUnauthorized},
		{"no retry on 404", []int{404}, "", 1, core.NewError(core.ErrNotFound, "")},
		{"429 honours capped Retry-After", []int{429, 200}, "120", 2, nil},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var n atomic.Int32
			c, calls := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				i := int(n.Add(1)) - 1
				status := tc.statuses[min(i, len(tc.statuses)-1)]
				if status != http.StatusOK {
					if tc.header != "" {
						w.Header().Set("Retry-After", tc.header)
					}
					w.WriteHeader(status)
					return
				}
				_, _ = w.Write([]byte(`{"distance_km": 321.4, "duration_hours": 6.2}`))
			})

			start := time.Now()
			info, err := c.FetchRoute(context.Background(), "Salem", "Chennai", emissions.Train)
			assert.Less(t, time.Since(start), 2*time.Second)
			assert.Equal(t, tc.wantCalls, calls.Load())
			if tc.wantErr != nil {
				assert.ErrorIs(t, err, tc.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, 321.4, info.DistanceKm)
		})
	}
}

func TestFetchRouteCachesAndValidates(t *testing.T) {
	c, calls := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/route", r.URL.Path)
		switch r.URL.Query().Get("mode") {
		case "car":
			_, _ = w.Write([]byte(`{"distance_km": 340, "duration_hours": 6.5, "path": ["Salem", "Vellore", "Chennai"]}`))
		default:
			_, _ = w.Write([]byte(`{"distance_km": 0}`))
		}
	})

	ctx := context.Background()
	info, err := c.FetchRoute(ctx, "Salem", "Chennai", emissions.Car)
	require.NoError(t, err)
	assert.Equal(t, []string{"Salem", "Vellore", "Chennai"}, info.Path)

	_, err = c.FetchRoute(ctx, "salem", "CHENNAI", emissions.Car)
	require.NoError(t, err)
	assert.EqualValues(t, 1, calls.Load())

	_, err = c.FetchRoute(ctx, "Salem", "Chennai", emissions.Bus)
	assert.ErrorIs(t, err, ErrInvalidResponse)
}

func TestCheck(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/status" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = w.Write([]byte(`{"ok":true}`))
	})
	assert.NoError(t, c.Check(context.Background()))
	assert.Equal(t, Status{Name: "http", Configured: true, BaseURL: c.baseURL, Cache: "memory"}, c.Status())
}

func TestReason(t *testing.T) {
	assert.Equal(t, "", Reason(nil))
	assert.Equal(t, "SERVICE_UNAVAILABLE", Reason(ErrUnavailable))
	assert.Equal(t, "UNAUTHORIZED", Reason(core.ServiceError("api", 401, "denied")))
	assert.Equal(t, "timeout", Reason(context.DeadlineExceeded))
	assert.Equal(t, "error", Reason(errors.New("boom")))
}

type stubProvider struct {
	factor float64
	route  RouteInfo
	err    error
	calls  atomic.Int32
}

func (s *stubProvider) FetchEmissionFactor(context.Context, emissions.Mode, float64, emissions.Region) (float64, error) {
	s.calls.Add(1)
	return s.factor, s.err
}

func (s *stubProvider) FetchRoute(context.Context, string, string, emissions.Mode) (RouteInfo, error) {
	s.calls.Add(1)
	return s.route, s.err
}

func TestResolverFallback(t *testing.T) {
	predictor := route.NewPredictor(geo.Default())
	model := emissions.Model{}

	t.Run("no provider is local without annotation", func(t *testing.T) {
		s := NewResolver(nil, predictor, nil).Session(context.Background())
		assert.Equal(t, model.Factor(emissions.Car, 300, ""), s.Factor(emissions.Car, 300, ""))
		assert.Equal(t, predictor.Predict("Salem", "Chennai", emissions.Car), s.Predict("Salem", "Chennai", emissions.Car))
		assert.False(t, s.UsedFallback())
		assert.Empty(t, s.Warnings())
	})

	t.Run("failing provider falls back and is annotated once", func(t *testing.T) {
		p := &stubProvider{err: ErrUnavailable}
		s := NewResolver(p, predictor, nil).Session(context.Background())

		assert.Equal(t, model.Factor(emissions.Train, 300, ""), s.Factor(emissions.Train, 300, ""))
		assert.Equal(t, model.Factor(emissions.Bus, 300, ""), s.Factor(emissions.Bus, 300, ""))
		assert.Equal(t, model.Factor(emissions.Train, 300, ""), s.Factor(emissions.Train, 300, ""))
		assert.EqualValues(t, 2, p.calls.Load(), "factors are memoized per session")

		pr := s.Predict("Salem", "Chennai", emissions.Train)
		assert.Equal(t, predictor.Predict("Salem", "Chennai", emissions.Train), pr)

		assert.True(t, s.UsedFallback())
		assert.Len(t, s.Warnings(), 2)
	})

	t.Run("provider answers are used", func(t *testing.T) {
		p := &stubProvider{factor: 0.05, route: RouteInfo{DistanceKm: 350, DurationHours: 6.5}}
		s := NewResolver(p, predictor, nil).Session(context.Background())

		assert.Equal(t, 0.05, s.Factor(emissions.Train, 300, ""))
		pr := s.Predict("Salem", "Chennai", emissions.Train)
		assert.Equal(t, 350.0, pr.DistanceKm)
		assert.True(t, pr.Resolved)
		assert.False(t, s.UsedFallback())
	})

	t.Run("unusable route falls back", func(t *testing.T) {
		p := &stubProvider{route: RouteInfo{DistanceKm: 0}}
		s := NewResolver(p, predictor, nil).WithCallTimeout(time.Second).Session(context.Background())
		pr := s.Predict("Salem", "Chennai", emissions.Bus)
		assert.Equal(t, predictor.Predict("Salem", "Chennai", emissions.Bus), pr)
		assert.True(t, s.UsedFallback())
	})
}
