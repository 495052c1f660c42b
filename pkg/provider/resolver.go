package provider

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/NERVsystems/tripcarbon/pkg/emissions"
	"github.com/NERVsystems/tripcarbon/pkg/monitoring"
	"github.com/NERVsystems/tripcarbon/pkg/route"
	"github.com/NERVsystems/tripcarbon/pkg/tracing"
)

const defaultCallTimeout = 5 * time.Second

// Resolver answers factor and route lookups from a Provider when one is set
// and from the local heuristics otherwise or on any provider failure.
type Resolver struct {
	provider  Provider
	model     emissions.FactorSource
	predictor *route.Predictor
	timeout   time.Duration
	logger    *slog.Logger
}

// NewResolver creates a Resolver. p may be nil, in which case every lookup is
// local and no fallback is reported.
func NewResolver(p Provider, predictor *route.Predictor, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{
		provider:  p,
		model:     emissions.Model{},
		predictor: predictor,
		timeout:   defaultCallTimeout,
		logger:    logger,
	}
}

// WithCallTimeout returns a copy of r bounding each provider call by d.
func (r *Resolver) WithCallTimeout(d time.Duration) *Resolver {
	cp := *r
	if d > 0 {
		cp.timeout = d
	}
	return &cp
}

// HasProvider reports whether lookups go to an external provider first.
func (r *Resolver) HasProvider() bool { return r.provider != nil }

// Session returns a per-request view bound to ctx. It satisfies both
// emissions.FactorSource and alternatives.Predictor.
func (r *Resolver) Session(ctx context.Context) *Session {
	return &Session{
		ctx:     ctx,
		r:       r,
		factors: make(map[factorKey]float64),
		warned:  make(map[string]bool),
	}
}

type factorKey struct {
	mode   emissions.Mode
	km     float64
	region emissions.Region
}

// Session memoizes provider answers for one request and records whether
// any of them came from the fallback path.
type Session struct {
	ctx          context.Context
	r            *Resolver
	mu           sync.Mutex
	factors      map[factorKey]float64
	usedFallback bool
	warned       map[string]bool
	warnings     []string
}

// Factor implements emissions.FactorSource.
func (s *Session) Factor(mode emissions.Mode, distanceKm float64, region emissions.Region) float64 {
	if s.r.provider == nil {
		return s.r.model.Factor(mode, distanceKm, region)
	}

	key := factorKey{mode, distanceKm, region}
	s.mu.Lock()
	if f, ok := s.factors[key]; ok {
		s.mu.Unlock()
		return f
	}
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(s.ctx, s.r.timeout)
	defer cancel()

	f, err := s.r.provider.FetchEmissionFactor(ctx, mode, distanceKm, region)
	if err != nil {
		s.fallback(tracing.OperationEmissionFactor, mode, err)
		f = s.r.model.Factor(mode, distanceKm, region)
	}

	s.mu.Lock()
	s.factors[key] = f
	s.mu.Unlock()
	return f
}

// Predict implements alternatives.Predictor.
func (s *Session) Predict(origin, destination string, mode emissions.Mode) route.Prediction {
	if s.r.provider == nil {
		return s.r.predictor.Predict(origin, destination, mode)
	}

	ctx, cancel := context.WithTimeout(s.ctx, s.r.timeout)
	defer cancel()

	info, err := s.r.provider.FetchRoute(ctx, origin, destination, mode)
	if err == nil {
		if p := route.Measured(mode, info.DistanceKm, info.DurationHours); p.Resolved {
			return p
		}
		err = ErrInvalidResponse
	}
	s.fallback(tracing.OperationRoute, mode, err)
	return s.r.predictor.Predict(origin, destination, mode)
}

func (s *Session) fallback(operation string, mode emissions.Mode, err error) {
	reason := Reason(err)
	monitoring.RecordProviderFallback(operation, reason)
	tracing.AddEvent(s.ctx, "provider_fallback")

	s.mu.Lock()
	defer s.mu.Unlock()
	s.usedFallback = true
	if s.warned[operation] {
		return
	}
	s.warned[operation] = true
	s.warnings = append(s.warnings, fmt.Sprintf("used fallback %s data: provider %s", operation, reason))
	s.r.logger.Info("provider lookup failed, using local estimate",
		"operation", operation,
		"mode", mode,
		"reason", reason,
	)
}

// UsedFallback reports whether any lookup fell back to local estimates.
func (s *Session) UsedFallback() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.usedFallback
}

// Warnings returns one message per operation that fell back.
func (s *Session) Warnings() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.warnings...)
}
