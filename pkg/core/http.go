package core

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/NERVsystems/tripcarbon/pkg/tracing"
	"github.com/NERVsystems/tripcarbon/pkg/version"
)

// RetryOptions configures WithRetryFactory.
type RetryOptions struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
	// MaxRetryAfter caps the wait requested by a 429 Retry-After header.
	MaxRetryAfter time.Duration
}

var DefaultRetryOptions = RetryOptions{
	MaxAttempts:   3,
	InitialDelay:  500 * time.Millisecond,
	MaxDelay:      10 * time.Second,
	Multiplier:    2,
	MaxRetryAfter: 30 * time.Second,
}

// DefaultClient is used when WithRetryFactory is given a nil client.
var DefaultClient = &http.Client{
	Timeout: 30 * time.Second,
	Transport: &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	},
}

// RequestFactory builds a fresh request per attempt so bodies can be resent.
type RequestFactory func() (*http.Request, error)

// Retryable reports whether a response status is worth retrying.
// Authentication failures and missing resources never are.
func Retryable(status int) bool {
	return status == http.StatusTooManyRequests ||
		status == http.StatusRequestTimeout ||
		status >= http.StatusInternalServerError
}

// RetryAfter parses a Retry-After header given in seconds or as an HTTP date.
func RetryAfter(header string, now time.Time) (time.Duration, bool) {
	if header == "" {
		return 0, false
	}
	if secs, err := strconv.Atoi(header); err == nil {
		return time.Duration(secs) * time.Second, secs >= 0
	}
	t, err := http.ParseTime(header)
	if err != nil {
		return 0, false
	}
	return max(t.Sub(now), 0), true
}

// backoff yields the exponential delays between attempts.
type backoff struct {
	next time.Duration
	opts RetryOptions
}

func (b *backoff) step() time.Duration {
	d := b.next
	b.next = min(time.Duration(float64(b.next)*b.opts.Multiplier), b.opts.MaxDelay)
	return d
}

// waitFor picks the pause before the next attempt: the server's Retry-After
// on a 429, capped by MaxRetryAfter, otherwise the next backoff step.
func (b *backoff) waitFor(resp *http.Response) time.Duration {
	d := b.step()
	if resp == nil || resp.StatusCode != http.StatusTooManyRequests {
		return d
	}
	if ra, ok := RetryAfter(resp.Header.Get("Retry-After"), time.Now()); ok {
		d = ra
		if b.opts.MaxRetryAfter > 0 {
			d = min(d, b.opts.MaxRetryAfter)
		}
	}
	return d
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4<<10))
	_ = resp.Body.Close()
}

// WithRetryFactory sends the request built by factory until it gets a 2xx
// response, a status Retryable rejects, or the attempts run out. The caller
// owns the returned body.
func WithRetryFactory(ctx context.Context, factory RequestFactory, client *http.Client, options RetryOptions) (*http.Response, error) {
	ctx, span := tracing.StartSpan(ctx, "http.retry",
		trace.WithAttributes(attribute.Int(tracing.AttrRetryMaxAttempts, options.MaxAttempts)))
	defer span.End()

	if client == nil {
		client = DefaultClient
	}
	attempts := max(options.MaxAttempts, 1)
	b := &backoff{next: options.InitialDelay, opts: options}
	logger := slog.Default()

	var lastErr error
	for attempt := 1; ; attempt++ {
		req, err := factory()
		if err != nil {
			tracing.Fail(span, err, "request creation failed")
			return nil, NewError(ErrInternalError, "building request: "+err.Error())
		}
		req = req.WithContext(ctx)
		if req.Header.Get("User-Agent") == "" {
			req.Header.Set("User-Agent", "tripcarbon/"+version.BuildVersion)
		}

		resp, err := client.Do(req)
		if ctx.Err() != nil {
			if resp != nil {
				drain(resp)
			}
			tracing.Fail(span, ctx.Err(), "request cancelled")
			return nil, ctx.Err()
		}

		if err == nil && resp.StatusCode >= 200 && resp.StatusCode < 300 {
			span.SetAttributes(
				attribute.String(tracing.AttrHTTPMethod, req.Method),
				attribute.Int(tracing.AttrHTTPStatusCode, resp.StatusCode),
				attribute.Int(tracing.AttrRetryAttempts, attempt),
			)
			return resp, nil
		}

		if err != nil {
			lastErr = err
			logger.Warn("request failed", "url", req.URL.Redacted(), "attempt", attempt, "error", err)
		} else {
			lastErr = ServiceError(req.URL.Host, resp.StatusCode, fmt.Sprintf("HTTP status %d", resp.StatusCode))
			logger.Warn("request returned error status", "url", req.URL.Redacted(), "attempt", attempt, "status", resp.StatusCode)
			drain(resp)
			if !Retryable(resp.StatusCode) {
				span.SetAttributes(attribute.Int(tracing.AttrHTTPStatusCode, resp.StatusCode))
				tracing.Fail(span, lastErr, "non-retryable status")
				return nil, lastErr
			}
		}

		if attempt >= attempts {
			break
		}

		wait := b.waitFor(resp)
		tracing.AddEvent(ctx, "retry", trace.WithAttributes(
			attribute.Int("attempt", attempt+1),
			attribute.Int64("delay_ms", wait.Milliseconds()),
		))
		timer := time.NewTimer(wait)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			tracing.Fail(span, ctx.Err(), "request cancelled")
			return nil, ctx.Err()
		}
	}

	span.SetAttributes(attribute.Int(tracing.AttrRetryAttempts, attempts))
	tracing.Fail(span, lastErr, "retries exhausted")

	var mcpErr *MCPError
	if errors.As(lastErr, &mcpErr) {
		return nil, mcpErr.WithGuidance(fmt.Sprintf("Gave up after %d attempts. %s", attempts, mcpErr.Guidance))
	}
	return nil, NewError(ErrNetworkError, fmt.Sprintf("gave up after %d attempts: %v", attempts, lastErr)).
		WithGuidance("The provider could not be reached. Local estimates are used in the meantime.")
}
