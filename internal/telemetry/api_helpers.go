// Parksense - Parking and Traffic Telemetry Integration
// Copyright 2026 Ming Hsu (minghsu)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/minghsu/parksense

package telemetry

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/minghsu/parksense/internal/retry"
)

// maxErrorBodySize limits how much of a response body is read for error
// reporting, preventing unbounded allocation on large error responses.
const maxErrorBodySize = 64 * 1024 // 64KB

// readBodyForError reads the response body for error reporting (max 64KB).
// Returns a placeholder if reading fails.
func readBodyForError(r io.Reader) []byte {
	body, err := io.ReadAll(io.LimitReader(r, maxErrorBodySize))
	if err != nil {
		return []byte("(failed to read response body)")
	}
	if len(body) == maxErrorBodySize {
		return append(body, []byte("\n... (truncated)")...)
	}
	return body
}

// newHTTPClient builds the fixed-timeout client used by vendor adapters.
// Each call is bounded by this timeout; cycle-level cancellation belongs to
// the external scheduler.
func newHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &http.Client{Timeout: timeout}
}

// postForm performs a form-encoded POST with context.
func postForm(ctx context.Context, client *http.Client, reqURL string, form url.Values) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, reqURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return client.Do(req)
}

// statusError converts a non-2xx status into the right error kind for the
// retry wrapper: 5xx and 408 are transient, everything else is nil so the
// caller treats it as a vendor-level failure ("no data this cycle").
func statusError(vendor string, status int) error {
	if retry.IsTransientStatus(status) {
		return &retry.TransientError{Vendor: vendor, Status: status}
	}
	return nil
}

// parseRetryAfter reads a Retry-After header expressed in seconds.
// Returns zero when absent or malformed.
func parseRetryAfter(h http.Header) time.Duration {
	v := h.Get("Retry-After")
	if v == "" {
		return 0
	}
	d, err := time.ParseDuration(v + "s")
	if err != nil {
		return 0
	}
	return d
}
