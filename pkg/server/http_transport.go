package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	mcpserver "github.com/mark3labs/mcp-go/server"
	"golang.org/x/time/rate"

	"github.com/NERVsystems/tripcarbon/pkg/core"
	"github.com/NERVsystems/tripcarbon/pkg/monitoring"
)

// APIPrefix is where the REST host API is mounted.
const APIPrefix = "/api/v1"

// HTTPTransportConfig configures the HTTP listener shared by MCP over SSE,
// the probes and the REST API.
type HTTPTransportConfig struct {
	Addr    string `json:"addr"`
	BaseURL string `json:"base_url"` // advertised by service discovery; derived from the request when empty

	AuthType  string `json:"auth_type"`  // none, bearer, basic or jwt
	AuthToken string `json:"auth_token"` // bearer token, user:password or JWT secret

	SSEEndpoint string `json:"sse_endpoint"`
	MsgEndpoint string `json:"msg_endpoint"`

	RateLimit      float64 `json:"rate_limit"` // per client IP per second; 0 disables
	RateBurst      int     `json:"rate_burst"`
	MaxRequestSize int64   `json:"max_request_size"`
	MaxHeaderBytes int     `json:"max_header_bytes"`

	TLSCertFile string `json:"tls_cert_file"`
	TLSKeyFile  string `json:"tls_key_file"`
	ForceHTTPS  bool   `json:"force_https"`
}

func DefaultHTTPTransportConfig() HTTPTransportConfig {
	return HTTPTransportConfig{
		Addr:           ":7082",
		AuthType:       core.AuthNone,
		SSEEndpoint:    "/sse",
		MsgEndpoint:    "/message",
		RateLimit:      10,
		RateBurst:      20,
		MaxRequestSize: 1 << 20,
		MaxHeaderBytes: 1 << 20,
	}
}

// withDefaults fills the zero fields of c that have no useful zero value.
func (c HTTPTransportConfig) withDefaults() HTTPTransportConfig {
	def := DefaultHTTPTransportConfig()
	if c.AuthType == "" {
		c.AuthType = def.AuthType
	}
	if c.SSEEndpoint == "" {
		c.SSEEndpoint = def.SSEEndpoint
	}
	if c.MsgEndpoint == "" {
		c.MsgEndpoint = def.MsgEndpoint
	}
	if c.MaxRequestSize <= 0 {
		c.MaxRequestSize = def.MaxRequestSize
	}
	if c.MaxHeaderBytes <= 0 {
		c.MaxHeaderBytes = def.MaxHeaderBytes
	}
	if c.RateLimit > 0 && c.RateBurst <= 0 {
		c.RateBurst = 1
	}
	return c
}

// HTTPTransport serves MCP over HTTP+SSE next to the probes and, once
// mounted, the REST API.
type HTTPTransport struct {
	config      HTTPTransportConfig
	logger      *slog.Logger
	sseServer   *mcpserver.SSEServer
	mux         *http.ServeMux
	rateLimiter *RateLimiter

	mu            sync.RWMutex
	httpSrv       *http.Server
	healthChecker *monitoring.HealthChecker
	apiMounted    bool
}

func NewHTTPTransport(mcpServer *mcpserver.MCPServer, config HTTPTransportConfig, logger *slog.Logger) *HTTPTransport {
	if logger == nil {
		logger = slog.Default()
	}
	config = config.withDefaults()

	switch {
	case !core.ValidAuthType(config.AuthType):
		logger.Warn("unknown auth type, protected requests will be refused", "auth_type", config.AuthType)
	case config.AuthType != core.AuthNone && config.AuthToken != "":
		if err := core.ValidateAuthToken(config.AuthToken); err != nil {
			logger.Warn("weak authentication token", "error", err.Error())
		}
	}

	t := &HTTPTransport{
		config: config,
		logger: logger,
		sseServer: mcpserver.NewSSEServer(mcpServer,
			mcpserver.WithSSEEndpoint(config.SSEEndpoint),
			mcpserver.WithMessageEndpoint(config.MsgEndpoint),
			mcpserver.WithBaseURL(config.BaseURL),
		),
		mux: http.NewServeMux(),
	}
	if config.RateLimit > 0 {
		t.rateLimiter = NewRateLimiter(rate.Limit(config.RateLimit), config.RateBurst)
	}
	t.setupRoutes()
	return t
}

// SetHealthChecker makes the probes report hc and tells hc about this transport.
func (t *HTTPTransport) SetHealthChecker(hc *monitoring.HealthChecker) {
	t.mu.Lock()
	t.healthChecker = hc
	t.mu.Unlock()
	if hc != nil {
		hc.SetTransport(monitoring.TransportInfo{Type: "http", HTTPAddr: t.config.Addr})
	}
}

// MountAPI serves handler under APIPrefix behind the transport's auth.
// Only the first call has any effect.
func (t *HTTPTransport) MountAPI(handler http.Handler) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.apiMounted {
		return
	}
	t.mux.Handle(APIPrefix+"/", t.httpsEnforcement(t.authMiddleware(handler).ServeHTTP))
	t.apiMounted = true
}

// mcpEndpoint describes one MCP route for its /debug page.
type mcpEndpoint struct {
	path        string
	handler     http.Handler
	description string
	usage       string
}

func (t *HTTPTransport) setupRoutes() {
	t.mux.HandleFunc("/", t.httpsEnforcement(t.handleServiceDiscovery))

	// Probes stay public and skip HTTPS redirects.
	t.mux.HandleFunc("/health", getOnly(t.probe((*monitoring.HealthChecker).HealthHandler, map[string]any{"status": "ok"})))
	t.mux.HandleFunc("/ready", getOnly(t.probe((*monitoring.HealthChecker).ReadinessHandler, map[string]any{"ready": true, "status": "ok"})))
	t.mux.HandleFunc("/live", getOnly(t.probe((*monitoring.HealthChecker).LivenessHandler, map[string]any{"alive": true})))

	for _, ep := range []mcpEndpoint{
		{t.config.SSEEndpoint, t.sseServer.SSEHandler(), "Server-Sent Events stream for MCP sessions", "GET with Accept: text/event-stream"},
		{t.config.MsgEndpoint, t.sseServer.MessageHandler(), "JSON-RPC endpoint for MCP messages", "POST JSON-RPC with the sessionId query parameter"},
	} {
		guarded := t.httpsEnforcement(t.authMiddleware(ep.handler).ServeHTTP)
		t.mux.Handle(ep.path, guarded)
		t.mux.Handle(ep.path+"/", guarded)
		t.mux.HandleFunc(ep.path+"/debug", getOnly(t.describe(ep)))
	}
}

func getOnly(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.Header().Set("Allow", http.MethodGet)
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		next(w, r)
	}
}

// httpsEnforcement redirects plain HTTP to HTTPS when ForceHTTPS is set.
func (t *HTTPTransport) httpsEnforcement(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !t.config.ForceHTTPS || r.TLS != nil {
			next(w, r)
			return
		}
		target := "https://" + r.Host + r.RequestURI
		t.logger.Debug("redirecting to https", "client_ip", getIP(r), "target", target)
		http.Redirect(w, r, target, http.StatusMovedPermanently)
	}
}

func (t *HTTPTransport) isPublicPath(path string) bool {
	switch path {
	case "/", "/health", "/ready", "/live",
		t.config.SSEEndpoint + "/debug", t.config.MsgEndpoint + "/debug":
		return true
	}
	return false
}

// authenticate checks r against the configured scheme.
func (t *HTTPTransport) authenticate(r *http.Request) core.AuthResult {
	if t.config.AuthType != core.AuthBasic {
		return core.Authenticate(t.config.AuthType, r.Header.Get("Authorization"), "", "", t.config.AuthToken)
	}
	user, pass, ok := r.BasicAuth()
	if !ok {
		return core.AuthResult{Error: "missing basic auth credentials"}
	}
	return core.AuthenticateBasic(user, pass, t.config.AuthToken)
}

// authMiddleware guards the MCP endpoints and the REST API.
func (t *HTTPTransport) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if t.config.AuthType == core.AuthNone || t.isPublicPath(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		result := t.authenticate(r)
		if result.Authorized {
			if result.Subject != "" {
				r = r.WithContext(withSubject(r.Context(), result.Subject))
			}
			next.ServeHTTP(w, r)
			return
		}

		t.logger.Warn("authentication failed",
			"remote_addr", getIP(r),
			"path", r.URL.Path,
			"auth_type", t.config.AuthType,
			"error", result.Error,
			"auth_duration", result.Duration)
		monitoring.RecordError("http", "auth")
		t.challenge(w, r)
	})
}

// challenge answers an unauthenticated request in the surface's own format.
func (t *HTTPTransport) challenge(w http.ResponseWriter, r *http.Request) {
	if t.config.AuthType == core.AuthBasic {
		w.Header().Set("WWW-Authenticate", `Basic realm="tripcarbon"`)
	} else {
		w.Header().Set("WWW-Authenticate", "Bearer")
	}
	if surfaceOf(r.URL.Path) == surfaceAPI {
		writeAPIError(w, core.NewError(core.ErrUnauthorized, "Authentication required"))
		return
	}
	t.writeJSON(w, http.StatusUnauthorized, map[string]any{
		"jsonrpc": "2.0",
		"id":      nil,
		"error":   map[string]any{"code": -32602, "message": "Authentication required"},
	})
}

func (t *HTTPTransport) baseURL(r *http.Request) string {
	if t.config.BaseURL != "" {
		return t.config.BaseURL
	}
	scheme := "http"
	if r.TLS != nil || t.config.ForceHTTPS || t.tlsEnabled() {
		scheme = "https"
	}
	return scheme + "://" + r.Host
}

func (t *HTTPTransport) tlsEnabled() bool {
	return t.config.TLSCertFile != "" && t.config.TLSKeyFile != ""
}

// handleServiceDiscovery tells MCP clients where the endpoints live.
func (t *HTTPTransport) handleServiceDiscovery(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	base := t.baseURL(r)
	endpoints := map[string]string{
		"sse":     base + t.config.SSEEndpoint,
		"message": base + t.config.MsgEndpoint,
	}
	t.mu.RLock()
	if t.apiMounted {
		endpoints["api"] = base + APIPrefix
	}
	t.mu.RUnlock()

	t.writeJSON(w, http.StatusOK, map[string]any{
		"service":      ServerName,
		"transport":    "HTTP+SSE",
		"endpoints":    endpoints,
		"capabilities": map[string]bool{"tools": true, "prompts": true},
		"auth": map[string]any{
			"required": t.config.AuthType != core.AuthNone,
			"type":     t.config.AuthType,
		},
	})
}

// probe serves a health checker handler, or a static body when none is set.
func (t *HTTPTransport) probe(pick func(*monitoring.HealthChecker) http.HandlerFunc, fallback map[string]any) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		t.mu.RLock()
		hc := t.healthChecker
		t.mu.RUnlock()
		if hc == nil {
			t.writeJSON(w, http.StatusOK, fallback)
			return
		}
		pick(hc)(w, r)
	}
}

func (t *HTTPTransport) describe(ep mcpEndpoint) http.HandlerFunc {
	body := map[string]string{
		"endpoint":    ep.path,
		"description": ep.description,
		"usage":       ep.usage,
		"transport":   "HTTP+SSE",
	}
	return func(w http.ResponseWriter, _ *http.Request) {
		t.writeJSON(w, http.StatusOK, body)
	}
}

func (t *HTTPTransport) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		t.logger.Error("failed to encode response", "error", err)
	}
}

// Handler returns the mux behind the middleware chain. The rate limiter
// runs first so rejected clients cost nothing further.
func (t *HTTPTransport) Handler() http.Handler {
	handler := http.Handler(t.mux)
	handler = TracingMiddleware()(handler)
	handler = LoggingMiddleware(t.logger)(handler)
	handler = RequestIDMiddleware(handler)
	handler = SecurityHeaders(handler)
	handler = RequestSizeLimiter(t.config.MaxRequestSize)(handler)
	if t.rateLimiter != nil {
		handler = t.rateLimiter.Middleware(handler)
	}
	return handler
}

// Start serves until Shutdown and then returns http.ErrServerClosed.
func (t *HTTPTransport) Start() error {
	t.mu.Lock()
	if t.httpSrv != nil {
		t.mu.Unlock()
		return core.NewError(core.ErrInternalError, "HTTP transport already started").
			WithGuidance("Stop the running transport before starting it again.")
	}
	// No WriteTimeout: SSE streams stay open.
	srv := &http.Server{
		Addr:              t.config.Addr,
		Handler:           t.Handler(),
		ReadTimeout:       30 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    t.config.MaxHeaderBytes,
	}
	t.httpSrv = srv
	api := t.apiMounted
	t.mu.Unlock()

	tls := t.tlsEnabled()
	t.logger.Info("starting HTTP transport",
		"addr", t.config.Addr,
		"sse_endpoint", t.config.SSEEndpoint,
		"message_endpoint", t.config.MsgEndpoint,
		"api", api,
		"auth_type", t.config.AuthType,
		"tls", tls,
		"force_https", t.config.ForceHTTPS)
	if t.config.ForceHTTPS && !tls {
		t.logger.Warn("force_https is set without TLS certificates; plain requests only get redirects")
	}

	if tls {
		return srv.ListenAndServeTLS(t.config.TLSCertFile, t.config.TLSKeyFile)
	}
	return srv.ListenAndServe()
}

// Shutdown stops the rate limiter sweeper, closes SSE sessions and drains
// the server. It is safe to call more than once.
func (t *HTTPTransport) Shutdown(ctx context.Context) error {
	t.mu.Lock()
	srv := t.httpSrv
	t.httpSrv = nil
	t.mu.Unlock()

	if t.rateLimiter != nil {
		t.rateLimiter.Stop()
	}
	if srv == nil {
		return nil
	}

	t.logger.Info("shutting down HTTP transport")
	if err := t.sseServer.Shutdown(ctx); err != nil {
		t.logger.Error("SSE server shutdown failed", "error", err)
	}
	return srv.Shutdown(ctx)
}

// GetConfig returns the effective configuration.
func (t *HTTPTransport) GetConfig() HTTPTransportConfig {
	return t.config
}
