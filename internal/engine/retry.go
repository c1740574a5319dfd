package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"
)

// RetryConfig bounds the retry loop for upstream calls.
type RetryConfig struct {
	Attempts int           // total tries, the first included
	BaseWait time.Duration // wait before the second try; doubles per retry
	MaxWait  time.Duration
}

// DefaultRetryConfig suits the Innertube and Spotify endpoints: both
// rate-limit with 429s that clear within a few seconds.
var DefaultRetryConfig = RetryConfig{
	Attempts: 4,
	BaseWait: 500 * time.Millisecond,
	MaxWait:  10 * time.Second,
}

// RetryDo runs fn until it succeeds, fails with a non-transient error, or
// the attempt budget runs out. Context cancellation wins over the backoff
// sleep.
func RetryDo[T any](ctx context.Context, rc RetryConfig, fn func() (T, error)) (T, error) {
	var zero T
	wait := rc.BaseWait

	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return zero, err
		}

		result, err := fn()
		if err == nil {
			return result, nil
		}
		if !isTransient(err) || attempt >= rc.Attempts {
			return zero, err
		}

		slog.Debug("upstream call failed, backing off",
			slog.Int("attempt", attempt),
			slog.Duration("wait", wait),
			slog.Any("error", err))
		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return zero, ctx.Err()
		}
		if wait *= 2; wait > rc.MaxWait {
			wait = rc.MaxWait
		}
	}
}

// RetryHTTP wraps an HTTP call so that transient statuses (429, 5xx) trigger
// another attempt. Every other status comes back to the caller as a normal
// response: a 403 from the player endpoint must reach the browser fallback,
// and a 400 is a hard failure no retry can fix.
func RetryHTTP(ctx context.Context, rc RetryConfig, fn func() (*http.Response, error)) (*http.Response, error) {
	return RetryDo(ctx, rc, func() (*http.Response, error) {
		resp, err := fn()
		if err != nil {
			return nil, err
		}
		if IsRetryableStatus(resp.StatusCode) {
			resp.Body.Close()
			return nil, &upstreamStatusError{code: resp.StatusCode}
		}
		return resp, nil
	})
}

// upstreamStatusError marks a transient HTTP status from an upstream.
type upstreamStatusError struct {
	code int
}

func (e *upstreamStatusError) Error() string {
	return fmt.Sprintf("upstream status %d", e.code)
}

// isTransient reports whether err is worth another attempt: a retryable
// status, a connection-level failure, or a timeout.
func isTransient(err error) bool {
	var statusErr *upstreamStatusError
	var opErr *net.OpError
	var dnsErr *net.DNSError
	if errors.As(err, &statusErr) || errors.As(err, &opErr) || errors.As(err, &dnsErr) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// IsRetryableStatus reports whether an HTTP status is transient.
func IsRetryableStatus(code int) bool {
	switch code {
	case http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	}
	return false
}
