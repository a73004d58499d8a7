// Parksense - Parking and Traffic Telemetry Integration
// Copyright 2026 Ming Hsu (minghsu)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/minghsu/parksense

// Package api provides the HTTP ops surface: health, metrics, device
// freshness, and on-demand fetch endpoints for the external scheduler.
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Router assembles the ops HTTP surface around a telemetry handler.
type Router struct {
	handler *Handler
}

// NewRouter creates a router serving the given handler.
func NewRouter(handler *Handler) *Router {
	return &Router{handler: handler}
}

// Setup builds the chi handler tree. Health and metrics stay outside the
// rate-limited API group so monitoring is never throttled by fetch traffic.
func (rt *Router) Setup() http.Handler {
	r := chi.NewRouter()

	r.Use(RequestIDWithLogging())
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)

	r.Get("/healthz", rt.handler.Healthz)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(httprate.LimitByIP(100, time.Minute))

		r.Get("/devices/freshness", rt.handler.DeviceFreshness)
		r.Get("/devices/status-log", rt.handler.DeviceStatusLog)
		r.Post("/sweep", rt.handler.Sweep)
		r.Post("/parking/fetch", rt.handler.ParkingFetch)
		r.Post("/traffic/fetch", rt.handler.TrafficFetch)
	})

	return r
}
