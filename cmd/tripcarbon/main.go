package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	"github.com/NERVsystems/tripcarbon/pkg/cache"
	"github.com/NERVsystems/tripcarbon/pkg/geo"
	"github.com/NERVsystems/tripcarbon/pkg/monitoring"
	"github.com/NERVsystems/tripcarbon/pkg/provider"
	"github.com/NERVsystems/tripcarbon/pkg/server"
	"github.com/NERVsystems/tripcarbon/pkg/tracing"
	"github.com/NERVsystems/tripcarbon/pkg/trip"
	ver "github.com/NERVsystems/tripcarbon/pkg/version"
)

const checkInterval = 30 * time.Second

// parseFlags registers every flag on fs with its environment fallback and
// parses args.
func parseFlags(fs *flag.FlagSet, args []string) (*config, error) {
	c := &config{}

	fs.BoolVar(&c.showVersion, "version", false, "Display version information")
	fs.BoolVar(&c.debug, "debug", false, "Enable debug logging")

	// HTTP transport flags
	fs.BoolVar(&c.enableHTTP, "enable-http", false, "Enable HTTP+SSE transport and the REST API (in addition to stdio)")
	fs.BoolVar(&c.httpOnly, "http-only", false, "Run HTTP transport only, skip stdio (requires --enable-http)")
	fs.StringVar(&c.httpAddr, "http-addr", ":7082", "HTTP server address")
	fs.StringVar(&c.httpBaseURL, "http-base-url", "", "Base URL for HTTP transport (auto-detected if empty)")
	fs.StringVar(&c.httpAuthType, "http-auth-type", envOr("TRIPCARBON_AUTH_TYPE", "none"), "HTTP authentication type: none, bearer, basic, jwt")
	fs.StringVar(&c.httpAuthToken, "http-auth-token", os.Getenv("TRIPCARBON_AUTH_TOKEN"), "Bearer token, user:password, or JWT signing secret")
	fs.Float64Var(&c.httpRateLimit, "http-rate-limit", 10, "Requests per second per client IP (0 disables)")
	fs.IntVar(&c.httpRateBurst, "http-rate-burst", 20, "Per-client burst size")
	fs.BoolVar(&c.enableAPI, "enable-api", true, "Mount the REST API under /api/v1 on the HTTP transport")

	// Monitoring flags
	fs.BoolVar(&c.enableMonitoring, "enable-monitoring", true, "Enable Prometheus metrics and health endpoints")
	fs.StringVar(&c.monitoringAddr, "monitoring-addr", ":9090", "Monitoring server address")

	// Data and provider flags
	fs.StringVar(&c.dataset, "dataset", os.Getenv("TRIPCARBON_DATASET"), "Supplementary locations: YAML file, SQLite file or postgres:// URL")
	fs.StringVar(&c.providerURL, "provider-url", os.Getenv("TRIPCARBON_PROVIDER_URL"), "Base URL of the external emissions/routing provider")
	fs.StringVar(&c.providerKey, "provider-key", os.Getenv("TRIPCARBON_PROVIDER_KEY"), "API key for the external provider")
	fs.Float64Var(&c.providerRPS, "provider-rps", 1.0, "Provider rate limit in requests per second")
	fs.IntVar(&c.providerBurst, "provider-burst", 1, "Provider rate limit burst size")
	fs.DurationVar(&c.callTimeout, "provider-timeout", 5*time.Second, "Timeout for each provider call")
	fs.DurationVar(&c.cacheTTL, "cache-ttl", time.Hour, "Lifetime of cached provider responses")

	// Shared cache flags
	fs.StringVar(&c.redisAddr, "redis-addr", os.Getenv("REDIS_ADDR"), "Redis address for the shared provider cache (in-process cache if empty)")
	fs.StringVar(&c.redisPassword, "redis-password", os.Getenv("REDIS_PASSWORD"), "Redis password")
	fs.IntVar(&c.redisDB, "redis-db", envInt("REDIS_DB", 0), "Redis database number")

	fs.IntVar(&c.batchLimit, "batch-limit", 8, "Trips evaluated concurrently in a batch")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	return c, nil
}

func main() {
	// A missing .env is normal.
	_ = godotenv.Load()

	cfg, err := parseFlags(flag.CommandLine, os.Args[1:])
	if err != nil {
		os.Exit(2)
	}

	// Configure logging
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel(cfg),
	}))
	slog.SetDefault(logger)

	// Show version and exit if requested
	if cfg.showVersion {
		fmt.Println(ver.String())
		return
	}

	if err := cfg.validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(2)
	}

	if !cfg.debug {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := run(cfg, logger); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
	logger.Info("server stopped")
}

func run(cfg *config, logger *slog.Logger) error {
	// Create context for graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize OpenTelemetry tracing
	shutdownTracing, err := tracing.InitTracing(ctx, ver.BuildVersion)
	if err != nil {
		logger.Error("failed to initialize tracing", "error", err)
		// Continue without tracing - it's not critical
	} else {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdownTracing(shutdownCtx); err != nil {
				logger.Error("error shutting down tracing", "error", err)
			}
		}()
		if endpoint := tracing.ConfigFromEnv().Endpoint; endpoint != "" {
			logger.Info("OpenTelemetry tracing enabled", "endpoint", endpoint)
		}
	}

	catalog, err := loadCatalog(ctx, cfg.dataset, logger)
	if err != nil {
		return err
	}

	logger.Info("starting trip emissions MCP server",
		"version", ver.BuildVersion,
		"log_level", logLevel(cfg).String(),
		"locations", catalog.Len(),
		"provider_configured", cfg.providerURL != "",
		"redis", cfg.redisAddr != "",
		"http_enabled", cfg.enableHTTP,
		"monitoring_enabled", cfg.enableMonitoring,
		"monitoring_addr", cfg.monitoringAddr)

	// Initialize health checker
	var healthChecker *monitoring.HealthChecker
	if cfg.enableMonitoring {
		healthChecker = monitoring.NewHealthChecker(monitoring.ServiceName, ver.BuildVersion)
		defer healthChecker.Shutdown()

		catalogMonitor := monitoring.NewConnectionMonitor("catalog", healthChecker, func(context.Context) error {
			if catalog.Len() == 0 {
				return errors.New("location catalog is empty")
			}
			return nil
		}, checkInterval)
		catalogMonitor.Start()
		defer catalogMonitor.Stop()
	}

	opts := []trip.Option{
		trip.WithLogger(logger),
		trip.WithCallTimeout(cfg.callTimeout),
		trip.WithBatchLimit(cfg.batchLimit),
	}

	if cfg.providerURL != "" {
		store := openStore(ctx, cfg, logger)
		client := provider.NewHTTPClient(cfg.providerURL, cfg.providerKey,
			provider.WithStore(store, cfg.cacheTTL),
			provider.WithRateLimit(rate.Limit(cfg.providerRPS), cfg.providerBurst),
			provider.WithLogger(logger),
		)
		defer func() {
			if err := client.Close(); err != nil {
				logger.Warn("closing provider", "error", err)
			}
		}()
		opts = append(opts, trip.WithProvider(client))

		if healthChecker != nil {
			// Local estimates cover a provider outage.
			healthChecker.MarkOptional(client.Name())
			providerMonitor := monitoring.NewConnectionMonitor(client.Name(), healthChecker, client.Check, checkInterval)
			providerMonitor.Start()
			defer providerMonitor.Stop()
		}
		logger.Info("external provider enabled",
			"url", cfg.providerURL,
			"cache", store.Kind(),
			"rps", cfg.providerRPS,
			"burst", cfg.providerBurst)
	}

	engine := trip.New(catalog, opts...)

	s, err := server.NewServer(engine, healthChecker, logger)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	// Start monitoring server if enabled (Prometheus metrics only)
	if cfg.enableMonitoring {
		startMetricsServer(ctx, cfg.monitoringAddr, logger)
	}

	// Start HTTP transport in background if enabled (non-blocking)
	if cfg.enableHTTP {
		httpTransport := server.NewHTTPTransport(s.GetMCPServer(), server.HTTPTransportConfig{
			Addr:      cfg.httpAddr,
			BaseURL:   cfg.httpBaseURL,
			AuthType:  cfg.httpAuthType,
			AuthToken: cfg.httpAuthToken,
			RateLimit: cfg.httpRateLimit,
			RateBurst: cfg.httpRateBurst,
		}, logger)

		if healthChecker != nil {
			httpTransport.SetHealthChecker(healthChecker)
		}
		if cfg.enableAPI {
			httpTransport.MountAPI(server.NewAPI(engine, healthChecker, logger).Handler())
		}

		go func() {
			logger.Info("starting HTTP+SSE transport", "addr", cfg.httpAddr, "api", cfg.enableAPI)
			if err := httpTransport.Start(); err != nil && err != http.ErrServerClosed {
				logger.Error("HTTP transport error", "error", err)
				stop()
			}
		}()

		go func() {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()

			if err := httpTransport.Shutdown(shutdownCtx); err != nil {
				logger.Error("failed to shutdown HTTP transport", "error", err)
			}
		}()
	}

	// Transport startup logic:
	// - HTTP disabled: stdio blocks on the main goroutine
	// - HTTP enabled: stdio runs in the background unless httpOnly
	switch {
	case !cfg.enableHTTP:
		logger.Info("transport_enabled", "type", "stdio", "mode", "blocking")
		return s.ServeStdio(ctx)

	case cfg.httpOnly:
		logger.Info("server_ready", "transports", []string{"http"}, "http_only", true)

	default:
		go func() {
			logger.Info("transport_enabled", "type", "stdio", "mode", "background")
			if err := s.ServeStdio(ctx); err != nil {
				// HTTP transport may still be useful
				logger.Error("stdio transport error", "error", err)
			}
		}()
		logger.Info("server_ready", "transports", []string{"stdio", "http"})
	}

	<-ctx.Done()
	logger.Info("shutdown signal received")
	return nil
}

func logLevel(cfg *config) slog.Level {
	if cfg.debug {
		return slog.LevelDebug
	}
	return slog.LevelInfo
}

// loadCatalog builds the catalog from the curated data plus the optional
// supplementary dataset.
func loadCatalog(ctx context.Context, source string, logger *slog.Logger) (*geo.Catalog, error) {
	if source == "" {
		return geo.Default(), nil
	}

	loadCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	extra, err := geo.OpenDataset(loadCtx, source)
	if err != nil {
		return nil, fmt.Errorf("loading dataset: %w", err)
	}
	return geo.NewCatalog(geo.CuratedLocations(),
		geo.WithSupplement(extra...),
		geo.WithPopularPairs(geo.DefaultPopularPairs()...),
		geo.WithLogger(logger),
	)
}

// openStore connects to Redis when configured and falls back to an
// in-process cache when it is unreachable.
func openStore(ctx context.Context, cfg *config, logger *slog.Logger) cache.Store {
	if cfg.redisAddr != "" {
		dialCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()

		store, err := cache.DialRedis(dialCtx, cfg.redisAddr, cfg.redisPassword, cfg.redisDB)
		if err == nil {
			return store
		}
		logger.Warn("redis unavailable, using in-process cache", "addr", cfg.redisAddr, "error", err)
		monitoring.RecordError("cache", "redis_unavailable")
	}
	return cache.NewMemoryStore(cfg.cacheTTL, 10000)
}

func startMetricsServer(ctx context.Context, addr string, logger *slog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	monitoringServer := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 30 * time.Second, // Prevent Slowloris attacks
	}

	go func() {
		logger.Info("starting Prometheus metrics server", "addr", addr)
		if err := monitoringServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("monitoring server error", "error", err)
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := monitoringServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("failed to shutdown monitoring server", "error", err)
		}
	}()
}
