package server

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/time/rate"

	"github.com/NERVsystems/tripcarbon/pkg/core"
	"github.com/NERVsystems/tripcarbon/pkg/monitoring"
)

const (
	defaultMaxVisitors = 10000
	visitorIdleTimeout = 3 * time.Minute
)

// RateLimiter applies a token bucket per client IP. Buckets live in an LRU
// so the least recently seen client is dropped once the table is full.
type RateLimiter struct {
	visitors *lru.Cache[string, *visitor]
	rate     rate.Limit
	burst    int
	cleanup  chan struct{}
	stopOnce sync.Once
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewRateLimiter allows r requests per second with burst b for every client.
func NewRateLimiter(r rate.Limit, b int) *RateLimiter {
	return newRateLimiter(r, b, defaultMaxVisitors)
}

func newRateLimiter(r rate.Limit, b, maxVisitors int) *RateLimiter {
	visitors, err := lru.New[string, *visitor](maxVisitors)
	if err != nil {
		visitors, _ = lru.New[string, *visitor](defaultMaxVisitors)
	}
	rl := &RateLimiter{
		visitors: visitors,
		rate:     r,
		burst:    b,
		cleanup:  make(chan struct{}),
	}
	go rl.sweep()
	return rl
}

func (rl *RateLimiter) sweep() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.removeIdle(visitorIdleTimeout)
		case <-rl.cleanup:
			return
		}
	}
}

// removeIdle drops clients not seen within idle.
func (rl *RateLimiter) removeIdle(idle time.Duration) {
	for _, ip := range rl.visitors.Keys() {
		if v, ok := rl.visitors.Peek(ip); ok && time.Since(v.lastSeen) > idle {
			rl.visitors.Remove(ip)
		}
	}
}

// Stop ends the idle sweep. It is safe to call more than once.
func (rl *RateLimiter) Stop() {
	rl.stopOnce.Do(func() { close(rl.cleanup) })
}

func (rl *RateLimiter) allow(ip string) bool {
	v, ok := rl.visitors.Get(ip)
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(rl.rate, rl.burst)}
		// A concurrent first request from the same client may win; use its bucket.
		if prev, found, _ := rl.visitors.PeekOrAdd(ip, v); found {
			v = prev
		}
	}
	v.lastSeen = time.Now()
	return v.limiter.Allow()
}

// Middleware rejects requests over the client's budget with 429.
func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !rl.allow(getIP(r)) {
			monitoring.RecordRateLimitExceeded("http")
			w.Header().Set("Retry-After", "1")
			if strings.HasPrefix(r.URL.Path, APIPrefix) {
				writeAPIError(w, core.NewError(core.ErrRateLimit, "too many requests").
					WithGuidance("Retry after one second."))
				return
			}
			http.Error(w, "Too Many Requests", http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// getIP returns the first valid address of X-Forwarded-For, then X-Real-IP,
// then the connection's remote address.
func getIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		if ip := strings.TrimSpace(first); net.ParseIP(ip) != nil {
			return ip
		}
	}
	if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); net.ParseIP(ip) != nil {
		return ip
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
