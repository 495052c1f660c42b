// Package trip is the host-facing entry point: it resolves distances,
// computes emissions and alternatives, and assembles complete trip plans.
package trip

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/NERVsystems/tripcarbon/pkg/alternatives"
	"github.com/NERVsystems/tripcarbon/pkg/emissions"
	"github.com/NERVsystems/tripcarbon/pkg/geo"
	"github.com/NERVsystems/tripcarbon/pkg/monitoring"
	"github.com/NERVsystems/tripcarbon/pkg/provider"
	"github.com/NERVsystems/tripcarbon/pkg/route"
	"github.com/NERVsystems/tripcarbon/pkg/tracing"
	"github.com/NERVsystems/tripcarbon/pkg/waypoints"
)

const defaultBatchLimit = 8

// Engine wires the catalog, predictors and optional provider together.
// It holds no mutable state and is safe for concurrent use.
type Engine struct {
	catalog     *geo.Catalog
	predictor   *route.Predictor
	planner     *waypoints.Planner
	provider    provider.Provider
	callTimeout time.Duration
	resolver    *provider.Resolver
	batchLimit  int
	logger      *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithProvider routes factor and route lookups through p first.
func WithProvider(p provider.Provider) Option {
	return func(e *Engine) { e.provider = p }
}

// WithCallTimeout bounds each provider call.
func WithCallTimeout(d time.Duration) Option {
	return func(e *Engine) { e.callTimeout = d }
}

// WithBatchLimit caps the number of trips EvaluateBatch works on at once.
func WithBatchLimit(n int) Option {
	return func(e *Engine) { e.batchLimit = n }
}

// WithLogger sets the engine logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

// New creates an Engine over catalog. A nil catalog uses geo.Default().
func New(catalog *geo.Catalog, opts ...Option) *Engine {
	if catalog == nil {
		catalog = geo.Default()
	}
	e := &Engine{
		catalog:    catalog,
		batchLimit: defaultBatchLimit,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.predictor = route.NewPredictor(catalog)
	e.planner = waypoints.NewPlanner(catalog)
	e.resolver = provider.NewResolver(e.provider, e.predictor, e.logger).WithCallTimeout(e.callTimeout)
	return e
}

// Catalog returns the location catalog the engine resolves names against.
func (e *Engine) Catalog() *geo.Catalog { return e.catalog }

// Predictor returns the route predictor.
func (e *Engine) Predictor() *route.Predictor { return e.predictor }

// Planner returns the waypoint planner.
func (e *Engine) Planner() *waypoints.Planner { return e.planner }

// Resolver returns the provider resolver with its local fallback.
func (e *Engine) Resolver() *provider.Resolver { return e.resolver }

// ResolveDistance returns the great-circle distance between two catalog
// locations. Unknown names wrap geo.ErrNotFound.
func (e *Engine) ResolveDistance(ctx context.Context, origin, destination string) (float64, error) {
	_, span := tracing.StartSpan(ctx, "trip.resolve_distance",
		trace.WithAttributes(
			attribute.String(tracing.AttrTripOrigin, origin),
			attribute.String(tracing.AttrTripDestination, destination),
		),
	)
	defer span.End()

	d, err := e.catalog.Distance(origin, destination)
	if err != nil {
		tracing.Fail(span, err, "unknown location")
		return 0, err
	}
	span.SetAttributes(attribute.Float64(tracing.AttrTripDistanceKm, d))
	return d, nil
}

// ComputeEmissions aggregates the trip's emissions over distanceKm. It never
// fails; problems are reported as warnings on the result.
func (e *Engine) ComputeEmissions(ctx context.Context, t emissions.TripRequest, distanceKm float64) emissions.Result {
	ctx, span := tracing.StartSpan(ctx, "trip.compute_emissions",
		trace.WithAttributes(tracing.TripAttributes(t.Origin, t.Destination, modeNames(t.Modes), t.Travelers)...),
	)
	defer span.End()

	session := e.resolver.Session(ctx)
	res := e.computeEmissions(session, t, distanceKm)

	span.SetAttributes(
		attribute.Int(tracing.AttrTripWarnings, len(res.Warnings)),
		attribute.Bool(tracing.AttrTripFallback, res.UsedFallback),
	)
	return res
}

func (e *Engine) computeEmissions(session *provider.Session, t emissions.TripRequest, distanceKm float64) emissions.Result {
	res := emissions.NewAggregator(session, e.logger).Aggregate(t, distanceKm)
	res.UsedFallback = session.UsedFallback()
	res.Warnings = append(res.Warnings, session.Warnings()...)

	switch {
	case res.TotalKg == 0:
		monitoring.RecordComputation(monitoring.KindEmissions, monitoring.OutcomeFailed)
	case len(res.Warnings) > 0:
		monitoring.RecordComputation(monitoring.KindEmissions, monitoring.OutcomeWarnings)
	default:
		monitoring.RecordComputation(monitoring.KindEmissions, monitoring.OutcomeOK)
	}
	return res
}

// ComputeAlternatives ranks every transport mode for the trip against the
// baseline emissions. selected marks the modes the traveler chose.
func (e *Engine) ComputeAlternatives(ctx context.Context, origin, destination string, baselineKg float64, selected []emissions.Mode) (alternatives.Result, error) {
	return e.Alternatives(ctx, alternatives.Request{
		Origin:      origin,
		Destination: destination,
		BaselineKg:  baselineKg,
		Selected:    selected,
	})
}

// Alternatives runs the alternatives engine for a fully specified request.
func (e *Engine) Alternatives(ctx context.Context, req alternatives.Request) (alternatives.Result, error) {
	ctx, span := tracing.StartSpan(ctx, "trip.compute_alternatives",
		trace.WithAttributes(
			attribute.String(tracing.AttrTripOrigin, req.Origin),
			attribute.String(tracing.AttrTripDestination, req.Destination),
		),
	)
	defer span.End()

	res, err := e.alternatives(e.resolver.Session(ctx), req)
	if err != nil {
		tracing.Fail(span, err, "no alternatives")
	}
	return res, err
}

func (e *Engine) alternatives(session *provider.Session, req alternatives.Request) (alternatives.Result, error) {
	res, err := alternatives.NewEngine(session, session, e.logger).Generate(req)
	res.Warnings = append(res.Warnings, session.Warnings()...)
	if err != nil {
		monitoring.RecordComputation(monitoring.KindAlternatives, monitoring.OutcomeFailed)
		return res, err
	}
	if len(res.Warnings) > 0 {
		monitoring.RecordComputation(monitoring.KindAlternatives, monitoring.OutcomeWarnings)
	} else {
		monitoring.RecordComputation(monitoring.KindAlternatives, monitoring.OutcomeOK)
	}
	return res, nil
}

// Plan is the complete assessment of one trip.
type Plan struct {
	ID           string                `json:"id"`
	CreatedAt    time.Time             `json:"created_at"`
	Trip         emissions.TripRequest `json:"trip"`
	DistanceKm   float64               `json:"distance_km"`
	Emissions    emissions.Result      `json:"emissions"`
	Breakdown    emissions.Breakdown   `json:"breakdown"`
	Alternatives *alternatives.Result  `json:"alternatives,omitempty"`
	Variants     []waypoints.Variant   `json:"route_variants,omitempty"`
	Warnings     []string              `json:"warnings,omitempty"`
}

// Plan validates the trip and computes its emissions, its alternatives
// against the trip total and its waypoint variants. Only an invalid trip is
// an error; every other problem becomes a warning.
func (e *Engine) Plan(ctx context.Context, t emissions.TripRequest) (Plan, error) {
	ctx, span := tracing.StartSpan(ctx, "trip.plan",
		trace.WithAttributes(tracing.TripAttributes(t.Origin, t.Destination, modeNames(t.Modes), t.Travelers)...),
	)
	defer span.End()

	if err := t.Validate(); err != nil {
		tracing.Fail(span, err, "invalid trip")
		monitoring.RecordComputation(monitoring.KindPlan, monitoring.OutcomeFailed)
		return Plan{}, err
	}

	plan := Plan{
		ID:        ulid.Make().String(),
		CreatedAt: time.Now().UTC(),
		Trip:      t,
	}
	session := e.resolver.Session(ctx)

	if len(t.Modes) > 0 {
		d, err := e.ResolveDistance(ctx, t.Origin, t.Destination)
		if err != nil {
			plan.Warnings = append(plan.Warnings, err.Error())
		}
		plan.DistanceKm = d
	}

	plan.Emissions = e.computeEmissions(session, t, plan.DistanceKm)
	plan.Breakdown = plan.Emissions.Breakdown()

	if len(t.Modes) > 0 && plan.DistanceKm > 0 {
		alts, err := e.alternatives(session, alternatives.Request{
			Origin:      t.Origin,
			Destination: t.Destination,
			BaselineKg:  plan.Emissions.TotalKg,
			Selected:    t.Modes,
			Region:      t.Region,
		})
		if err != nil {
			plan.Warnings = append(plan.Warnings, err.Error())
		} else {
			plan.Alternatives = &alts
		}

		variants, err := e.planner.Variants(t.Origin, t.Destination, waypoints.DefaultMaxWaypoints, waypoints.DefaultNumVariants)
		if err != nil {
			plan.Warnings = append(plan.Warnings, err.Error())
		}
		plan.Variants = variants
		monitoring.RecordComputation(monitoring.KindVariants, outcome(err, nil))
	}

	span.SetAttributes(attribute.Int(tracing.AttrTripWarnings, len(plan.Warnings)+len(plan.Emissions.Warnings)))
	monitoring.RecordComputation(monitoring.KindPlan, outcome(nil, append(plan.Warnings, plan.Emissions.Warnings...)))
	e.logger.Debug("trip planned",
		"id", plan.ID,
		"origin", t.Origin,
		"destination", t.Destination,
		"total_kg", plan.Emissions.TotalKg,
		"used_fallback", plan.Emissions.UsedFallback,
	)
	return plan, nil
}

// Variants returns the waypoint variants between origin and destination.
func (e *Engine) Variants(ctx context.Context, origin, destination string, maxWaypoints, numVariants int) ([]waypoints.Variant, error) {
	_, span := tracing.StartSpan(ctx, "trip.variants")
	defer span.End()

	v, err := e.planner.Variants(origin, destination, maxWaypoints, numVariants)
	monitoring.RecordComputation(monitoring.KindVariants, outcome(err, nil))
	if err != nil {
		tracing.Fail(span, err, "no variants")
		return nil, err
	}
	return v, nil
}

// Routes predicts the given modes (every transport mode when empty),
// preferring provider routes and falling back to local estimates. The
// returned warnings describe any fallback.
func (e *Engine) Routes(ctx context.Context, origin, destination string, modes ...emissions.Mode) ([]route.Prediction, []string) {
	ctx, span := tracing.StartSpan(ctx, "trip.routes",
		trace.WithAttributes(
			attribute.String(tracing.AttrTripOrigin, origin),
			attribute.String(tracing.AttrTripDestination, destination),
		),
	)
	defer span.End()

	if len(modes) == 0 {
		modes = emissions.TransportModes()
	}
	session := e.resolver.Session(ctx)
	out := make([]route.Prediction, 0, len(modes))
	for _, m := range modes {
		out = append(out, session.Predict(origin, destination, m))
	}
	span.SetAttributes(attribute.Bool(tracing.AttrTripFallback, session.UsedFallback()))
	return out, session.Warnings()
}

func outcome(err error, warnings []string) string {
	switch {
	case err != nil:
		return monitoring.OutcomeFailed
	case len(warnings) > 0:
		return monitoring.OutcomeWarnings
	}
	return monitoring.OutcomeOK
}

func modeNames(modes []emissions.Mode) []string {
	out := make([]string, len(modes))
	for i, m := range modes {
		out[i] = string(m)
	}
	return out
}

// IsNotFound reports whether err came from an unknown location.
func IsNotFound(err error) bool {
	return errors.Is(err, geo.ErrNotFound)
}

// ParseModes parses mode names, reporting every unknown one.
func ParseModes(names []string) ([]emissions.Mode, error) {
	var modes []emissions.Mode
	var bad []string
	for _, n := range names {
		if strings.TrimSpace(n) == "" {
			continue
		}
		m, err := emissions.ParseMode(n)
		if err != nil || !m.IsTransport() {
			bad = append(bad, n)
			continue
		}
		modes = append(modes, m)
	}
	if len(bad) > 0 {
		return modes, fmt.Errorf("unsupported transport modes: %s", strings.Join(bad, ", "))
	}
	return modes, nil
}
