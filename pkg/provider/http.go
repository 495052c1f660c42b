package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/url"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"github.com/NERVsystems/tripcarbon/pkg/cache"
	"github.com/NERVsystems/tripcarbon/pkg/core"
	"github.com/NERVsystems/tripcarbon/pkg/emissions"
	"github.com/NERVsystems/tripcarbon/pkg/monitoring"
	"github.com/NERVsystems/tripcarbon/pkg/tracing"
	"github.com/NERVsystems/tripcarbon/pkg/version"
)

const (
	defaultCacheTTL       = time.Hour
	defaultRouteCacheSize = 256
	defaultStoreItems     = 1000
	maxResponseBytes      = 1 << 20
)

// activityIDs maps modes to the provider's activity identifiers.
var activityIDs = map[emissions.Mode]string{
	emissions.Flight:  "passenger_flight-route_type_domestic-aircraft_type_na-distance_na-class_na-rf_na",
	emissions.Train:   "passenger_train-route_type_national_rail-fuel_source_na",
	emissions.Car:     "passenger_vehicle-vehicle_type_car-fuel_source_petrol-engine_size_na-vehicle_age_na-vehicle_weight_na",
	emissions.Bus:     "passenger_vehicle-vehicle_type_bus-fuel_source_diesel-engine_size_na-vehicle_age_na-vehicle_weight_na",
	emissions.Lodging: "accommodation-type_hotel",
}

type estimateFactor struct {
	ActivityID string `json:"activity_id"`
	Source     string `json:"source"`
	Region     string `json:"region"`
	Year       int    `json:"year"`
}

type estimateParameters struct {
	Distance     float64 `json:"distance,omitempty"`
	DistanceUnit string  `json:"distance_unit,omitempty"`
	Number       int     `json:"number,omitempty"`
	Unit         string  `json:"unit,omitempty"`
}

type estimateRequest struct {
	EmissionFactor estimateFactor     `json:"emission_factor"`
	Parameters     estimateParameters `json:"parameters"`
}

type estimateResponse struct {
	CO2e     float64 `json:"co2e"`
	CO2eUnit string  `json:"co2e_unit"`
}

// HTTPClient is a Provider backed by a JSON HTTP API authenticated with a
// bearer key.
type HTTPClient struct {
	name      string
	baseURL   string
	apiKey    string
	client    *http.Client
	retry     core.RetryOptions
	limiter   *rate.Limiter
	store     cache.Store
	ttl       time.Duration
	routeSize int
	routes    *lru.Cache[string, RouteInfo]
	group     singleflight.Group
	logger    *slog.Logger
}

// Option configures an HTTPClient.
type Option func(*HTTPClient)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *HTTPClient) { c.client = client }
}

// WithRetryOptions overrides the retry policy for provider calls.
func WithRetryOptions(opts core.RetryOptions) Option {
	return func(c *HTTPClient) { c.retry = opts }
}

// WithRateLimit sets the client-side token bucket. rate.Inf disables it.
func WithRateLimit(limit rate.Limit, burst int) Option {
	return func(c *HTTPClient) { c.limiter = rate.NewLimiter(limit, burst) }
}

// WithStore caches responses in store for ttl.
func WithStore(store cache.Store, ttl time.Duration) Option {
	return func(c *HTTPClient) {
		c.store = store
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

// WithRouteCacheSize sets how many resolved routes are kept in memory.
func WithRouteCacheSize(n int) Option {
	return func(c *HTTPClient) { c.routeSize = n }
}

// WithLogger sets the client logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *HTTPClient) { c.logger = logger }
}

// WithName sets the provider label used in metrics and traces.
func WithName(name string) Option {
	return func(c *HTTPClient) { c.name = name }
}

// NewHTTPClient creates a client for the API at baseURL. An empty apiKey
// yields a client whose every call fails fast with ErrUnavailable.
func NewHTTPClient(baseURL, apiKey string, opts ...Option) *HTTPClient {
	c := &HTTPClient{
		name:      "http",
		baseURL:   strings.TrimRight(baseURL, "/"),
		apiKey:    apiKey,
		client:    &http.Client{Timeout: 10 * time.Second},
		retry:     core.DefaultRetryOptions,
		limiter:   rate.NewLimiter(rate.Limit(1), 1),
		ttl:       defaultCacheTTL,
		routeSize: defaultRouteCacheSize,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.store == nil {
		c.store = cache.NewMemoryStore(c.ttl, defaultStoreItems)
	}

	routes, err := lru.New[string, RouteInfo](c.routeSize)
	if err != nil {
		routes, _ = lru.New[string, RouteInfo](16)
	}
	c.routes = routes
	c.logger = c.logger.With("provider", c.name)
	return c
}

// Configured reports whether the client has both a base URL and a key.
func (c *HTTPClient) Configured() bool {
	return c.baseURL != "" && c.apiKey != ""
}

// Name returns the provider label.
func (c *HTTPClient) Name() string { return c.name }

// Status describes the client for health output.
type Status struct {
	Name       string       `json:"name"`
	Configured bool         `json:"configured"`
	BaseURL    string       `json:"base_url,omitempty"`
	Cache      string       `json:"cache"`
	CacheStats *cache.Stats `json:"cache_stats,omitempty"`
}

// Status reports configuration and cache state.
func (c *HTTPClient) Status() Status {
	st := Status{Name: c.name, Configured: c.Configured(), BaseURL: c.baseURL, Cache: c.store.Kind()}
	if m, ok := c.store.(*cache.MemoryStore); ok {
		stats := m.Stats()
		st.CacheStats = &stats
	}
	return st
}

// Close releases the response cache.
func (c *HTTPClient) Close() error {
	return c.store.Close()
}

// FetchEmissionFactor asks the provider for the factor of mode at distanceKm.
// Transport factors are per km, derived from the estimate for the whole
// distance; the lodging factor is per night.
func (c *HTTPClient) FetchEmissionFactor(ctx context.Context, mode emissions.Mode, distanceKm float64, region emissions.Region) (float64, error) {
	if !c.Configured() {
		return 0, ErrUnavailable
	}
	activity, ok := activityIDs[mode]
	if !ok {
		return 0, core.NewError(core.ErrUnsupportedMode, fmt.Sprintf("no provider activity for mode %q", mode))
	}

	distanceKm = math.Max(math.Round(distanceKm), 1)
	key := fmt.Sprintf("factor:%s:%s:%.0f", mode, region.Code(), distanceKm)
	if mode == emissions.Lodging {
		key = fmt.Sprintf("factor:%s:%s", mode, region.Code())
	}

	var factor float64
	if c.getCached(ctx, key, &factor) {
		return factor, nil
	}

	v, err, _ := c.group.Do(key, func() (interface{}, error) {
		body := estimateRequest{
			EmissionFactor: estimateFactor{
				ActivityID: activity,
				Source:     "DEFRA",
				Region:     region.Code(),
				Year:       2023,
			},
		}
		if mode == emissions.Lodging {
			body.Parameters = estimateParameters{Number: 1, Unit: "night"}
		} else {
			body.Parameters = estimateParameters{Distance: distanceKm, DistanceUnit: "km"}
		}
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}

		var out estimateResponse
		err = c.call(ctx, tracing.OperationEmissionFactor, func() (*http.Request, error) {
			return c.newRequest(ctx, http.MethodPost, c.baseURL+"/estimate", bytes.NewReader(payload))
		}, &out)
		if err != nil {
			return nil, err
		}

		f := out.CO2e
		if mode != emissions.Lodging {
			f /= distanceKm
		}
		if f <= 0 || math.IsNaN(f) || math.IsInf(f, 0) {
			return nil, ErrInvalidResponse
		}
		c.setCached(ctx, key, f)
		return f, nil
	})
	if err != nil {
		return 0, err
	}
	return v.(float64), nil
}

// FetchRoute asks the provider for the measured route by mode.
func (c *HTTPClient) FetchRoute(ctx context.Context, origin, destination string, mode emissions.Mode) (RouteInfo, error) {
	if !c.Configured() {
		return RouteInfo{}, ErrUnavailable
	}

	key := strings.ToLower(fmt.Sprintf("route:%s:%s:%s", origin, destination, mode))
	if info, ok := c.routes.Get(key); ok {
		monitoring.RecordCacheHit(tracing.CacheTypeMemory)
		return info, nil
	}

	var info RouteInfo
	if c.getCached(ctx, key, &info) {
		c.routes.Add(key, info)
		return info, nil
	}

	v, err, _ := c.group.Do(key, func() (interface{}, error) {
		q := url.Values{}
		q.Set("origin", origin)
		q.Set("destination", destination)
		q.Set("mode", strings.ToLower(string(mode)))
		target := c.baseURL + "/route?" + q.Encode()

		var out RouteInfo
		err := c.call(ctx, tracing.OperationRoute, func() (*http.Request, error) {
			return c.newRequest(ctx, http.MethodGet, target, nil)
		}, &out)
		if err != nil {
			return nil, err
		}
		if out.DistanceKm <= 0 || math.IsNaN(out.DistanceKm) || out.DurationHours < 0 {
			return nil, ErrInvalidResponse
		}
		c.routes.Add(key, out)
		c.setCached(ctx, key, out)
		return out, nil
	})
	if err != nil {
		return RouteInfo{}, err
	}
	return v.(RouteInfo), nil
}

// Check probes the provider's status endpoint once, without retries.
func (c *HTTPClient) Check(ctx context.Context) error {
	if !c.Configured() {
		return ErrUnavailable
	}
	opts := c.retry
	opts.MaxAttempts = 1
	resp, err := core.WithRetryFactory(ctx, func() (*http.Request, error) {
		return c.newRequest(ctx, http.MethodGet, c.baseURL+"/status", nil)
	}, c.client, opts)
	if err != nil {
		return err
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return resp.Body.Close()
}

func (c *HTTPClient) newRequest(ctx context.Context, method, target string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "tripcarbon/"+version.BuildVersion)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

// call performs one rate-limited, retried request and decodes the JSON body into out.
func (c *HTTPClient) call(ctx context.Context, operation string, factory core.RequestFactory, out any) error {
	ctx, span := tracing.StartSpan(ctx, "provider."+operation,
		trace.WithAttributes(
			attribute.String(tracing.AttrProviderName, c.name),
			attribute.String(tracing.AttrProviderOperation, operation),
		),
	)
	defer span.End()

	if err := c.waitForRateLimit(ctx); err != nil {
		span.SetStatus(codes.Error, "rate limit wait aborted")
		return err
	}

	start := time.Now()
	resp, err := core.WithRetryFactory(ctx, factory, c.client, c.retry)
	if err != nil {
		monitoring.RecordProviderRequest(c.name, operation, time.Since(start), false)
		monitoring.RecordError("provider", Reason(err))
		tracing.Fail(span, err, "provider request failed")
		c.logger.Warn("provider request failed", "operation", operation, "error", err)
		return err
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(out); err != nil {
		monitoring.RecordProviderRequest(c.name, operation, time.Since(start), false)
		span.SetStatus(codes.Error, "decode failed")
		c.logger.Warn("provider response not decodable", "operation", operation, "error", err)
		return ErrInvalidResponse
	}

	monitoring.RecordProviderRequest(c.name, operation, time.Since(start), true)
	span.SetStatus(codes.Ok, "")
	return nil
}

func (c *HTTPClient) waitForRateLimit(ctx context.Context) error {
	if c.limiter.Allow() {
		return nil
	}

	monitoring.RecordRateLimitExceeded(c.name)
	tracing.AddEvent(ctx, "rate_limit_wait",
		trace.WithAttributes(attribute.String(tracing.AttrRateLimitService, c.name)),
	)

	start := time.Now()
	err := c.limiter.Wait(ctx)
	wait := time.Since(start)
	monitoring.RecordRateLimitWait(c.name, wait)
	tracing.SetAttributes(ctx, attribute.Int64(tracing.AttrRateLimitWaitMs, wait.Milliseconds()))
	return err
}

func (c *HTTPClient) getCached(ctx context.Context, key string, v any) bool {
	kind := c.store.Kind()
	b, ok, err := c.store.Get(ctx, key)
	if err != nil {
		c.logger.Debug("cache read failed", "key", key, "error", err)
	}
	if !ok || err != nil {
		monitoring.RecordCacheMiss(kind)
		tracing.SetAttributes(ctx, tracing.CacheAttributes(kind, false, key)...)
		return false
	}
	if err := json.Unmarshal(b, v); err != nil {
		monitoring.RecordCacheMiss(kind)
		return false
	}
	monitoring.RecordCacheHit(kind)
	tracing.SetAttributes(ctx, tracing.CacheAttributes(kind, true, key)...)
	return true
}

func (c *HTTPClient) setCached(ctx context.Context, key string, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		return
	}
	if err := c.store.Set(ctx, key, b, c.ttl); err != nil {
		c.logger.Debug("cache write failed", "key", key, "error", err)
	}
}
