package monitoring

import (
	"context"
	"encoding/json"
	"net/http"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/NERVsystems/tripcarbon/pkg/version"
)

// Dependency states.
const (
	ConnConnected    = "connected"
	ConnDegraded     = "degraded"
	ConnDisconnected = "disconnected"
	ConnError        = "error"
)

// Service states.
const (
	StatusHealthy   = "healthy"
	StatusDegraded  = "degraded"
	StatusUnhealthy = "unhealthy"
)

const systemMetricsInterval = 15 * time.Second

// HealthChecker folds the state of the service's dependencies into one
// status. A failing required dependency makes the service unhealthy; a
// failing optional one, such as an emissions provider the engine can
// fall back from, only degrades it.
type HealthChecker struct {
	serviceName string
	version     string
	startTime   time.Time

	mu          sync.RWMutex
	connections map[string]*ConnStatus
	optional    map[string]bool
	transport   *TransportInfo

	ctx    context.Context
	cancel context.CancelFunc
}

// NewHealthChecker starts runtime metric collection until Shutdown.
func NewHealthChecker(serviceName, version string) *HealthChecker {
	ctx, cancel := context.WithCancel(context.Background())
	hc := &HealthChecker{
		serviceName: serviceName,
		version:     version,
		startTime:   time.Now(),
		connections: make(map[string]*ConnStatus),
		optional:    make(map[string]bool),
		ctx:         ctx,
		cancel:      cancel,
	}
	go hc.collectSystemMetrics()
	return hc
}

// MarkOptional declares that the service keeps working without name.
func (h *HealthChecker) MarkOptional(name string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.optional[name] = true
	if c, ok := h.connections[name]; ok {
		c.Optional = true
	}
}

// UpdateConnection records the latest probe of name. Consecutive failures
// are counted until the next success.
func (h *HealthChecker) UpdateConnection(name, status string, latencyMs int64, err error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	next := &ConnStatus{
		Status:    status,
		Latency:   latencyMs,
		Optional:  h.optional[name],
		CheckedAt: time.Now(),
	}
	if err != nil {
		next.LastError = err.Error()
	}
	if failing(status) {
		next.Failures = 1
		if prev, ok := h.connections[name]; ok {
			next.Failures = prev.Failures + 1
		}
	}
	h.connections[name] = next
}

func (h *HealthChecker) RemoveConnection(name string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.connections, name)
	delete(h.optional, name)
}

// SetTransport attaches transport details to health output.
func (h *HealthChecker) SetTransport(info TransportInfo) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.transport = &info
}

// SetActiveSessions updates the session count of the current transport.
func (h *HealthChecker) SetActiveSessions(n int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.transport == nil {
		h.transport = &TransportInfo{Type: "http"}
	}
	h.transport.ActiveSessions = n
}

func failing(status string) bool {
	return status == ConnError || status == ConnDisconnected
}

// overallStatus derives the service status from its dependencies.
func overallStatus(conns map[string]ConnStatus) string {
	status := StatusHealthy
	for _, c := range conns {
		switch {
		case failing(c.Status) && !c.Optional:
			return StatusUnhealthy
		case failing(c.Status), c.Status == ConnDegraded:
			status = StatusDegraded
		}
	}
	return status
}

// GetHealth snapshots dependencies, runtime stats and transport details.
func (h *HealthChecker) GetHealth() ServiceHealth {
	h.mu.RLock()
	conns := make(map[string]ConnStatus, len(h.connections))
	failures := 0
	for name, c := range h.connections {
		conns[name] = *c
		if failing(c.Status) {
			failures++
		}
	}
	var transport *TransportInfo
	if h.transport != nil {
		t := *h.transport
		transport = &t
	}
	h.mu.RUnlock()

	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	uptime := time.Since(h.startTime)

	return ServiceHealth{
		Service:       h.serviceName,
		Version:       h.version,
		Status:        overallStatus(conns),
		Uptime:        uptime,
		UptimeSeconds: int64(uptime.Seconds()),
		StartTime:     h.startTime,
		Connections:   conns,
		Transport:     transport,
		Metrics: map[string]interface{}{
			"goroutines":           runtime.NumGoroutine(),
			"memory_alloc_mb":      m.Alloc / 1024 / 1024,
			"gc_runs":              m.NumGC,
			"version_info":         version.Info(),
			"dependencies":         len(conns),
			"failing_dependencies": failures,
		},
	}
}

func writeHealthJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func httpStatusFor(status string) int {
	if status == StatusUnhealthy {
		return http.StatusServiceUnavailable
	}
	return http.StatusOK
}

// HealthHandler serves the full ServiceHealth document. Degraded still
// answers 200.
func (h *HealthChecker) HealthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		health := h.GetHealth()
		writeHealthJSON(w, httpStatusFor(health.Status), health)
	}
}

// ReadinessHandler answers 503 while a required dependency is failing.
func (h *HealthChecker) ReadinessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := h.GetHealth().Status
		writeHealthJSON(w, httpStatusFor(status), map[string]interface{}{
			"ready":  status != StatusUnhealthy,
			"status": status,
		})
	}
}

// LivenessHandler always answers 200 while the process runs.
func (h *HealthChecker) LivenessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeHealthJSON(w, http.StatusOK, map[string]interface{}{
			"alive":  true,
			"uptime": time.Since(h.startTime).Round(time.Second).String(),
		})
	}
}

func (h *HealthChecker) collectSystemMetrics() {
	ticker := time.NewTicker(systemMetricsInterval)
	defer ticker.Stop()

	for {
		h.updateSystemMetrics()
		select {
		case <-h.ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (h *HealthChecker) updateSystemMetrics() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	GoRoutines.Set(float64(runtime.NumGoroutine()))
	MemoryUsage.Set(float64(m.Alloc))
	GCRuns.Set(float64(m.NumGC))

	info := version.Info()
	SystemInfo.WithLabelValues(info["version"], info["go_version"], info["commit"], info["build_date"]).Set(1)
}

// Shutdown stops background collection.
func (h *HealthChecker) Shutdown() {
	h.cancel()
}

// CheckFunc probes one dependency.
type CheckFunc func(ctx context.Context) error

// ConnectionMonitor probes a dependency on an interval and reports each
// result to a HealthChecker. A probe that succeeds but takes longer than
// half the interval is reported as degraded.
type ConnectionMonitor struct {
	name     string
	health   *HealthChecker
	check    CheckFunc
	interval time.Duration

	ctx     context.Context
	cancel  context.CancelFunc
	started atomic.Bool
	done    chan struct{}
}

func NewConnectionMonitor(name string, hc *HealthChecker, check CheckFunc, interval time.Duration) *ConnectionMonitor {
	ctx, cancel := context.WithCancel(context.Background())
	return &ConnectionMonitor{
		name:     name,
		health:   hc,
		check:    check,
		interval: interval,
		ctx:      ctx,
		cancel:   cancel,
		done:     make(chan struct{}),
	}
}

// Start probes immediately and then once per interval until Stop.
func (cm *ConnectionMonitor) Start() {
	if cm.started.CompareAndSwap(false, true) {
		go cm.run()
	}
}

// Stop cancels any probe in flight and waits for the loop to exit.
func (cm *ConnectionMonitor) Stop() {
	cm.cancel()
	if cm.started.Load() {
		<-cm.done
	}
}

func (cm *ConnectionMonitor) run() {
	defer close(cm.done)

	ticker := time.NewTicker(cm.interval)
	defer ticker.Stop()

	for {
		cm.probe()
		select {
		case <-cm.ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// probe runs one check bounded by the interval. Results of a probe cut
// short by Stop are dropped.
func (cm *ConnectionMonitor) probe() {
	ctx, cancel := context.WithTimeout(cm.ctx, cm.interval)
	defer cancel()

	start := time.Now()
	err := cm.check(ctx)
	elapsed := time.Since(start)

	if cm.ctx.Err() != nil {
		return
	}

	status := ConnConnected
	switch {
	case err != nil:
		status = ConnError
	case elapsed > cm.interval/2:
		status = ConnDegraded
	}
	cm.health.UpdateConnection(cm.name, status, elapsed.Milliseconds(), err)
}

// TransportInfo holds transport configuration and status
type TransportInfo struct {
	Type           string `json:"type"` // "http" or "stdio"
	HTTPAddr       string `json:"http_addr,omitempty"`
	APIAddr        string `json:"api_addr,omitempty"`
	ActiveSessions int    `json:"active_sessions,omitempty"`
}

// ServiceHealth is the body of the /health endpoint.
type ServiceHealth struct {
	Service       string                 `json:"service"`
	Version       string                 `json:"version"`
	Status        string                 `json:"status"` // "healthy", "degraded", "unhealthy"
	Uptime        time.Duration          `json:"uptime"`
	UptimeSeconds int64                  `json:"uptime_seconds"`
	StartTime     time.Time              `json:"start_time,omitempty"`
	Connections   map[string]ConnStatus  `json:"connections"`
	Metrics       map[string]interface{} `json:"metrics,omitempty"`
	Transport     *TransportInfo         `json:"transport,omitempty"`
}

// ConnStatus is the last observed state of a dependency.
type ConnStatus struct {
	Status    string    `json:"status"` // "connected", "degraded", "disconnected", "error"
	Latency   int64     `json:"latency_ms,omitempty"`
	LastError string    `json:"last_error,omitempty"`
	Failures  int       `json:"consecutive_failures,omitempty"`
	Optional  bool      `json:"optional,omitempty"`
	CheckedAt time.Time `json:"checked_at"`
}
