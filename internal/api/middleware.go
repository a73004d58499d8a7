// Parksense - Parking and Traffic Telemetry Integration
// Copyright 2026 Ming Hsu (minghsu)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/minghsu/parksense

package api

import (
	"net/http"
	"time"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/minghsu/parksense/internal/logging"
)

// RequestIDWithLogging wraps chi's RequestID middleware so every request
// carries an X-Request-ID header, and logs one access line per request with
// that ID for correlation.
func RequestIDWithLogging() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		chiRequestID := chimiddleware.RequestID(next)

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requestID := r.Header.Get("X-Request-ID")
			if requestID == "" {
				requestID = uuid.NewString()
				r.Header.Set("X-Request-ID", requestID)
			}
			w.Header().Set("X-Request-ID", requestID)

			start := time.Now()
			chiRequestID.ServeHTTP(w, r)

			logging.Debug().
				Str("request_id", requestID).
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Dur("duration", time.Since(start)).
				Msg("request handled")
		})
	}
}
