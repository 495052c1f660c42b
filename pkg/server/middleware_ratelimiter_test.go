package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"golang.org/x/time/rate"

	"github.com/NERVsystems/tripcarbon/pkg/core"
)

func TestRateLimiterMiddleware(t *testing.T) {
	rl := NewRateLimiter(rate.Every(time.Second), 1)
	t.Cleanup(rl.Stop)

	handler := rl.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	send := func(path, remote string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		req.RemoteAddr = remote
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec
	}

	if rec := send("/mcp", "1.2.3.4:1234"); rec.Code != http.StatusOK {
		t.Fatalf("first request: expected 200, got %d", rec.Code)
	}

	rec := send("/mcp", "1.2.3.4:1234")
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("second request: expected 429, got %d", rec.Code)
	}
	if rec.Header().Get("Retry-After") != "1" {
		t.Error("expected Retry-After: 1")
	}

	// Different client, own bucket.
	if rec := send("/mcp", "5.6.7.8:1234"); rec.Code != http.StatusOK {
		t.Fatalf("other client: expected 200, got %d", rec.Code)
	}

	// REST callers get the structured error body.
	rec = send(APIPrefix+"/emissions", "5.6.7.8:1234")
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("api request: expected 429, got %d", rec.Code)
	}
	var body core.MCPError
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode api error: %v", err)
	}
	if body.Code != string(core.ErrRateLimit) {
		t.Errorf("expected %s, got %s", core.ErrRateLimit, body.Code)
	}
}

func TestRateLimiterDropsLeastRecentClient(t *testing.T) {
	rl := newRateLimiter(rate.Every(time.Minute), 1, 2)
	t.Cleanup(rl.Stop)

	if !rl.allow("1.1.1.1") || !rl.allow("2.2.2.2") {
		t.Fatal("first request of each client should pass")
	}
	rl.allow("3.3.3.3") // pushes out 1.1.1.1

	if rl.visitors.Contains("1.1.1.1") {
		t.Error("least recently seen client was kept")
	}
	if rl.visitors.Len() != 2 {
		t.Errorf("expected 2 clients, got %d", rl.visitors.Len())
	}
	// A dropped client starts over with a full bucket.
	if !rl.allow("1.1.1.1") {
		t.Error("returning client should get a fresh bucket")
	}
}

func TestRateLimiterRemoveIdle(t *testing.T) {
	rl := NewRateLimiter(rate.Every(time.Minute), 1)
	t.Cleanup(rl.Stop)
	t.Cleanup(rl.Stop) // idempotent

	rl.allow("1.1.1.1")
	rl.removeIdle(time.Hour)
	if !rl.visitors.Contains("1.1.1.1") {
		t.Fatal("recent client removed")
	}
	time.Sleep(2 * time.Millisecond)
	rl.removeIdle(time.Millisecond)
	if rl.visitors.Len() != 0 {
		t.Errorf("idle client kept: %v", rl.visitors.Keys())
	}
}

func TestGetIP(t *testing.T) {
	tests := []struct {
		name   string
		header map[string]string
		remote string
		want   string
	}{
		{"forwarded", map[string]string{"X-Forwarded-For": "9.9.9.9, 10.0.0.1"}, "1.1.1.1:80", "9.9.9.9"},
		{"forwarded ipv6", map[string]string{"X-Forwarded-For": " 2001:db8::1 "}, "1.1.1.1:80", "2001:db8::1"},
		{"real ip", map[string]string{"X-Real-IP": "8.8.8.8"}, "1.1.1.1:80", "8.8.8.8"},
		{"bogus forwarded", map[string]string{"X-Forwarded-For": "not-an-ip"}, "1.1.1.1:80", "1.1.1.1"},
		{"remote only", nil, "2.2.2.2:443", "2.2.2.2"},
		{"remote without port", nil, "unix", "unix"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remote
			for k, v := range tt.header {
				req.Header.Set(k, v)
			}
			if got := getIP(req); got != tt.want {
				t.Errorf("getIP() = %s, want %s", got, tt.want)
			}
		})
	}
}
