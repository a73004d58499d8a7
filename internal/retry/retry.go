// Parksense - Parking and Traffic Telemetry Integration
// Copyright 2026 Ming Hsu (minghsu)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/minghsu/parksense

// Package retry wraps operations with configurable retry and backoff.
//
// Only retryable failures are retried: vendor rate limiting (HTTP 429,
// surfaced as *RateLimitError), transient HTTP statuses (5xx and 408,
// surfaced as *TransientError), and plain network errors. Vendor-level
// logical failures are not errors at all in this codebase — adapters return
// a nil snapshot for those — so anything reaching the retry wrapper as a
// non-retryable error fails fast.
package retry

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/minghsu/parksense/internal/logging"
	"github.com/minghsu/parksense/internal/metrics"
)

// Strategy selects how the delay grows between attempts.
type Strategy string

const (
	// StrategyExponential delays base·2^(n−1) before retry n.
	StrategyExponential Strategy = "exponential"
	// StrategyLinear delays base·n before retry n.
	StrategyLinear Strategy = "linear"
)

// RateLimitError indicates the vendor answered HTTP 429. It is a typed
// error so the retry wrapper can distinguish it from ordinary failures
// and apply backoff rather than fail fast.
type RateLimitError struct {
	Vendor     string
	RetryAfter time.Duration // zero when the vendor sent no Retry-After hint
}

func (e *RateLimitError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("%s rate limited (HTTP 429), retry after %s", e.Vendor, e.RetryAfter)
	}
	return fmt.Sprintf("%s rate limited (HTTP 429)", e.Vendor)
}

// TransientError indicates a server-side or timeout HTTP status (5xx, 408)
// that is worth retrying.
type TransientError struct {
	Vendor string
	Status int
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("%s transient HTTP error: status %d", e.Vendor, e.Status)
}

// IsTransientStatus reports whether an HTTP status code is worth retrying.
func IsTransientStatus(status int) bool {
	return status >= 500 || status == http.StatusRequestTimeout
}

// IsRetryable reports whether err should trigger another attempt.
func IsRetryable(err error) bool {
	var rl *RateLimitError
	if errors.As(err, &rl) {
		return true
	}
	var tr *TransientError
	if errors.As(err, &tr) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

// Policy wraps an operation with retry and backoff.
type Policy struct {
	// Attempts is the total number of tries, including the first.
	// Default: 3
	Attempts int
	// BaseDelay seeds the backoff sequence. Default: 1s
	BaseDelay time.Duration
	// Strategy selects linear or exponential growth. Default: exponential
	Strategy Strategy
}

// DefaultPolicy returns the policy used when configuration supplies nothing:
// 3 attempts, 1s base delay, exponential backoff.
func DefaultPolicy() Policy {
	return Policy{
		Attempts:  3,
		BaseDelay: time.Second,
		Strategy:  StrategyExponential,
	}
}

// Delay returns the wait before retry attempt n (1-based): base·2^(n−1) for
// exponential, base·n for linear.
func (p Policy) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	switch p.Strategy {
	case StrategyLinear:
		return p.BaseDelay * time.Duration(attempt)
	default:
		return p.BaseDelay * time.Duration(1<<uint(attempt-1))
	}
}

// Do runs fn until it succeeds, fails with a non-retryable error, or the
// attempt budget is exhausted. The wait between attempts honors ctx; a
// *RateLimitError carrying a Retry-After hint overrides the computed delay.
func (p Policy) Do(ctx context.Context, operation string, fn func(ctx context.Context) error) error {
	attempts := p.Attempts
	if attempts <= 0 {
		attempts = 3
	}
	base := p.BaseDelay
	if base <= 0 {
		base = time.Second
	}
	policy := Policy{Attempts: attempts, BaseDelay: base, Strategy: p.Strategy}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}
		if !IsRetryable(lastErr) {
			return lastErr
		}
		if attempt == attempts {
			break
		}

		delay := policy.Delay(attempt)
		var rl *RateLimitError
		if errors.As(lastErr, &rl) && rl.RetryAfter > 0 {
			delay = rl.RetryAfter
		}

		metrics.RetryAttempts.WithLabelValues(operation).Inc()
		logging.Warn().
			Err(lastErr).
			Str("operation", operation).
			Int("attempt", attempt).
			Dur("delay", delay).
			Msg("retryable failure, backing off")

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operation, attempts, lastErr)
}
