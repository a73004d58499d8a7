// Parksense - Parking and Traffic Telemetry Integration
// Copyright 2026 Ming Hsu (minghsu)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/minghsu/parksense

/*
manager.go - Telemetry Facade

Manager is the collaborator-facing surface of the telemetry layer. An
external scheduler invokes it once per device per cycle:

	FetchParking  - dispatches to the vendor adapter for the device's protocol
	FetchTraffic  - fetches live roadway data and refreshes device freshness
	SweepStaleDevices - flips devices offline when their data goes stale

Vendor calls run through a per-vendor circuit breaker inside the retry
wrapper. Ordinary vendor failures (error codes, malformed payloads) never
surface as errors: the result is a nil snapshot meaning "no data this
cycle", and the scheduler aggregates per-device outcomes into its own run
summary. Only context cancellation propagates.
*/

package telemetry

import (
	"context"
	"errors"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/minghsu/parksense/internal/config"
	"github.com/minghsu/parksense/internal/credcache"
	"github.com/minghsu/parksense/internal/logging"
	"github.com/minghsu/parksense/internal/metrics"
	"github.com/minghsu/parksense/internal/retry"
)

// Manager coordinates vendor adapters, shared credentials, retries and
// circuit breakers behind one scheduler-facing API. Safe for concurrent use
// across devices and protocol types; there is no cross-device locking.
type Manager struct {
	cfg   *config.Config
	creds *credcache.Cache
	store FreshnessStore

	mp  *MPClient
	yp  *YPClient
	nb  *NBClient
	nhr *NHRClient
	tdx *TDXClient

	sweeper *Sweeper
	policy  retry.Policy

	breakers map[string]*gobreaker.CircuitBreaker[any]
}

// NewManager wires a Manager from configuration. A nil store gets an
// in-memory freshness store; callers needing durable freshness inject their
// own implementation.
func NewManager(cfg *config.Config, store FreshnessStore) *Manager {
	if store == nil {
		store = NewMemoryFreshnessStore()
	}
	creds := credcache.New()

	strategy := retry.StrategyExponential
	if cfg.Retry.Strategy == "linear" {
		strategy = retry.StrategyLinear
	}

	m := &Manager{
		cfg:     cfg,
		creds:   creds,
		store:   store,
		mp:      NewMPClient(cfg.MP, creds),
		yp:      NewYPClient(cfg.Server.Timeout),
		nb:      NewNBClient(cfg.Server.Timeout),
		nhr:     NewNHRClient(cfg.NHR),
		tdx:     NewTDXClient(cfg.TDX, creds, store),
		sweeper: NewSweeper(store, cfg.Staleness.Threshold),
		policy: retry.Policy{
			Attempts:  cfg.Retry.Attempts,
			BaseDelay: cfg.Retry.BaseDelay,
			Strategy:  strategy,
		},
		breakers: make(map[string]*gobreaker.CircuitBreaker[any]),
	}

	for _, name := range []string{"mp", "yp", "nb", "ap", "nhr", "tdx"} {
		m.breakers[name] = newVendorBreaker(name)
	}
	return m
}

// Freshness exposes the device freshness store to the ops surface.
func (m *Manager) Freshness() FreshnessStore {
	return m.store
}

// RegisterDevice pre-creates a freshness record for a configured device.
func (m *Manager) RegisterDevice(serial string) {
	m.store.Register(serial)
}

// FetchParking retrieves a normalized occupancy snapshot for one parking
// device. A nil snapshot with nil error means the vendor produced no usable
// data this cycle; the only returned errors are context cancellations.
func (m *Manager) FetchParking(ctx context.Context, system ParkingSystemType, apiURL, serial string, totalSpaces int) (*ParkingSnapshot, error) {
	vendor := string(system)
	start := time.Now()

	var snapshot *ParkingSnapshot
	err := m.policy.Do(ctx, "parking_"+vendor, func(ctx context.Context) error {
		result, err := breakerExecute(m.breakers[vendor], func() (any, error) {
			return m.dispatchParking(ctx, system, apiURL, serial, totalSpaces)
		})
		if err != nil {
			return err
		}
		snapshot, _ = result.(*ParkingSnapshot)
		return nil
	})

	switch {
	case err == nil && snapshot != nil:
		metrics.ObserveFetch(vendor, metrics.OutcomeSuccess, start)
		return snapshot, nil
	case err == nil:
		metrics.ObserveFetch(vendor, metrics.OutcomeNoData, start)
		return nil, nil
	case errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
		return nil, err
	default:
		metrics.ObserveFetch(vendor, metrics.OutcomeError, start)
		logging.Warn().Err(err).Str("vendor", vendor).Str("serial", serial).Msg("parking fetch failed, no data this cycle")
		return nil, nil
	}
}

// dispatchParking routes to the adapter for the device's protocol.
func (m *Manager) dispatchParking(ctx context.Context, system ParkingSystemType, apiURL, serial string, totalSpaces int) (*ParkingSnapshot, error) {
	switch system {
	case SystemMP:
		if m.cfg.MP.BaseURL == "" {
			logging.Warn().Str("serial", serial).Msg("mp fetch skipped: vendor base_url not configured")
			return nil, nil
		}
		return m.mp.Fetch(ctx, serial)
	case SystemYP:
		return m.yp.Fetch(ctx, apiURL, serial)
	case SystemNB:
		return m.nb.Fetch(ctx, apiURL, serial, totalSpaces)
	case SystemNHR:
		if m.cfg.NHR.Endpoint == "" {
			logging.Warn().Str("serial", serial).Msg("nhr fetch skipped: vendor endpoint not configured")
			return nil, nil
		}
		return m.nhr.Fetch(ctx, serial, totalSpaces)
	default:
		// AP devices are detected but have no integrated fetch protocol.
		logging.Warn().Str("system", string(system)).Str("serial", serial).Msg("no adapter for parking system")
		return nil, nil
	}
}

// FetchTraffic retrieves a normalized traffic snapshot for the roadway
// segment identified by eTagNumber. An empty city falls back to the
// configured default. A nil snapshot with nil error means no usable data
// this cycle.
func (m *Manager) FetchTraffic(ctx context.Context, eTagNumber, city string) (*TrafficSnapshot, error) {
	if city == "" {
		city = m.cfg.TDX.City
	}
	if m.cfg.TDX.ClientID == "" {
		logging.Warn().Str("etag", eTagNumber).Msg("tdx fetch skipped: credentials not configured")
		return nil, nil
	}
	start := time.Now()

	var snapshot *TrafficSnapshot
	err := m.policy.Do(ctx, "traffic_tdx", func(ctx context.Context) error {
		result, err := breakerExecute(m.breakers["tdx"], func() (any, error) {
			return m.tdx.FetchLive(ctx, eTagNumber, city)
		})
		if err != nil {
			return err
		}
		snapshot, _ = result.(*TrafficSnapshot)
		return nil
	})

	switch {
	case err == nil && snapshot != nil:
		metrics.ObserveFetch("tdx", metrics.OutcomeSuccess, start)
		return snapshot, nil
	case err == nil:
		metrics.ObserveFetch("tdx", metrics.OutcomeNoData, start)
		return nil, nil
	case errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
		return nil, err
	default:
		metrics.ObserveFetch("tdx", metrics.OutcomeError, start)
		logging.Warn().Err(err).Str("etag", eTagNumber).Msg("traffic fetch failed, no data this cycle")
		return nil, nil
	}
}

// SweepStaleDevices runs one staleness pass over all traffic devices and
// returns its summary. Performs no network I/O.
func (m *Manager) SweepStaleDevices(ctx context.Context) StalenessReport {
	return m.sweeper.Sweep(ctx)
}
