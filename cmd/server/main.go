// Parksense - Parking and Traffic Telemetry Integration
// Copyright 2026 Ming Hsu (minghsu)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/minghsu/parksense

// Package main is the entry point for the Parksense telemetry server.
//
// Parksense integrates municipal parking vendors and the national traffic
// data platform (TDX) behind one normalized API. The server initializes in
// order:
//
//  1. Configuration: layered defaults, config file, environment (Koanf v2)
//  2. Logging: zerolog, JSON or console
//  3. Telemetry manager: vendor adapters, shared credential cache, retry
//     policy, per-vendor circuit breakers, device freshness store
//  4. HTTP server: health, Prometheus metrics, and the ops API
//
// Configuration is loaded via Koanf v2 with layered sources (highest
// priority wins):
//   - Environment variables (PARKSENSE_ prefix, e.g. PARKSENSE_TDX_CLIENT_ID)
//   - Config file (path from PARKSENSE_CONFIG)
//   - Built-in defaults
//
// The server shuts down gracefully on SIGINT and SIGTERM, waiting up to 10s
// for in-flight requests.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/minghsu/parksense/internal/api"
	"github.com/minghsu/parksense/internal/config"
	"github.com/minghsu/parksense/internal/logging"
	"github.com/minghsu/parksense/internal/telemetry"
)

// shutdownTimeout bounds the graceful drain of in-flight requests.
const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		// Config is not available yet; the default logger carries this.
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	logging.Info().
		Str("city", cfg.TDX.City).
		Bool("mp_configured", cfg.MP.BaseURL != "").
		Bool("nhr_configured", cfg.NHR.Endpoint != "").
		Bool("tdx_configured", cfg.TDX.ClientID != "").
		Msg("Starting Parksense")

	manager := telemetry.NewManager(cfg, nil)
	router := api.NewRouter(api.NewHandler(manager))

	server := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:           router.Setup(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       cfg.Server.Timeout,
		WriteTimeout:      cfg.Server.Timeout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logging.Info().Str("addr", server.Addr).Msg("HTTP server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		logging.Info().Msg("Shutdown signal received, draining connections")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logging.Fatal().Err(err).Msg("Server exited with error")
	}
	logging.Info().Msg("Parksense stopped")
}
