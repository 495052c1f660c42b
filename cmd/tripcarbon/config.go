package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/NERVsystems/tripcarbon/pkg/core"
)

// config holds every command-line setting. Flags win over the environment.
type config struct {
	showVersion bool
	debug       bool

	// HTTP transport
	enableHTTP    bool
	httpOnly      bool
	httpAddr      string
	httpBaseURL   string
	httpAuthType  string
	httpAuthToken string
	httpRateLimit float64
	httpRateBurst int
	enableAPI     bool

	// Monitoring
	enableMonitoring bool
	monitoringAddr   string

	// Location data and provider
	dataset       string
	providerURL   string
	providerKey   string
	providerRPS   float64
	providerBurst int
	callTimeout   time.Duration
	cacheTTL      time.Duration

	// Shared cache
	redisAddr     string
	redisPassword string
	redisDB       int

	batchLimit int
}

// envOr returns the value of key, or def when it is unset or empty.
func envOr(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

// envInt is envOr for integers; malformed values fall back to def.
func envInt(key string, def int) int {
	if v, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return v
	}
	return def
}

// validate rejects combinations the server cannot start with.
func (c *config) validate() error {
	if c.httpOnly && !c.enableHTTP {
		return fmt.Errorf("--http-only requires --enable-http")
	}
	if !core.ValidAuthType(c.httpAuthType) {
		return fmt.Errorf("unsupported --http-auth-type %q (want none, bearer, basic or jwt)", c.httpAuthType)
	}
	switch c.httpAuthType {
	case core.AuthBearer, core.AuthJWT:
		if err := core.ValidateAuthToken(c.httpAuthToken); err != nil {
			return fmt.Errorf("--http-auth-token: %w", err)
		}
	case core.AuthBasic:
		if !strings.Contains(c.httpAuthToken, ":") {
			return fmt.Errorf("--http-auth-token must be user:password for basic auth")
		}
	}
	if c.providerURL != "" && c.providerKey == "" {
		return fmt.Errorf("a provider URL was given without a provider key")
	}
	if c.providerRPS <= 0 || c.providerBurst < 1 {
		return fmt.Errorf("provider rate limit must be positive")
	}
	if c.batchLimit < 1 {
		return fmt.Errorf("--batch-limit must be at least 1")
	}
	return nil
}
