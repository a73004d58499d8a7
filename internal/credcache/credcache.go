// Parksense - Parking and Traffic Telemetry Integration
// Copyright 2026 Ming Hsu (minghsu)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/minghsu/parksense

// Package credcache provides a thread-safe store for short-lived vendor
// credentials (session IDs, OAuth tokens) with per-entry expiry and an
// at-most-one-in-flight-refresh guarantee per key.
//
// The cache is an injected service instance, not process-wide state; each
// adapter receives the same *Cache and shares credentials through well-known
// keys such as "mp_sid" and "tdx_token".
//
// Refresh coordination uses a per-key lock with a double-checked read:
// the fast path reads under RLock and returns any unexpired value without
// taking the key lock. On a miss the caller acquires the key lock, re-checks
// the cache (a concurrent caller may have refreshed while it waited), and
// only then invokes the refresh function. A failed refresh leaves the cache
// unchanged and propagates only to the caller that executed it; waiters
// acquire the lock in turn and retry independently.
package credcache

import (
	"context"
	"sync"
	"time"

	"github.com/minghsu/parksense/internal/logging"
	"github.com/minghsu/parksense/internal/metrics"
)

// RefreshFunc produces a fresh credential value, typically by performing a
// vendor login or OAuth token call.
type RefreshFunc func(ctx context.Context) (string, error)

// TTLRefreshFunc produces a fresh credential value together with its TTL,
// for credentials whose lifetime is dictated by the issuer (OAuth expires_in).
type TTLRefreshFunc func(ctx context.Context) (string, time.Duration, error)

// entry is a cached credential with its expiry instant.
type entry struct {
	value     string
	expiresAt time.Time
}

// Cache is a thread-safe credential store with per-entry TTL.
//
// Safe for concurrent use. Under N concurrent GetOrRefresh calls for the
// same absent or expired key, the refresh function executes exactly once
// (absent failures) and all N callers observe the same resulting value.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]entry

	// gateMu guards gates; each key gets its own refresh lock so that
	// refreshing one credential never serializes reads of another.
	gateMu sync.Mutex
	gates  map[string]*sync.Mutex

	// now is replaceable in tests for deterministic expiry checks.
	now func() time.Time
}

// New creates an empty credential cache.
func New() *Cache {
	return &Cache{
		entries: make(map[string]entry),
		gates:   make(map[string]*sync.Mutex),
		now:     time.Now,
	}
}

// Get returns the cached value for key if present and unexpired.
// An entry is never returned once now >= expiresAt.
func (c *Cache) Get(key string) (string, bool) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()

	if !ok || !c.now().Before(e.expiresAt) {
		return "", false
	}
	return e.value, true
}

// Set stores value under key with the given TTL, overwriting any prior entry.
func (c *Cache) Set(key, value string, ttl time.Duration) {
	c.mu.Lock()
	c.entries[key] = entry{value: value, expiresAt: c.now().Add(ttl)}
	c.mu.Unlock()
}

// Invalidate removes the entry for key, forcing the next GetOrRefresh to
// perform a refresh. Used when a vendor rejects a cached credential.
func (c *Cache) Invalidate(key string) {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
}

// GetOrRefresh returns the cached value for key, refreshing it first if the
// entry is absent or expired.
//
// Fast path: an unexpired entry is returned immediately without taking the
// key lock. Otherwise the key's refresh lock is acquired, the cache is
// re-checked, and only if still stale is refresh invoked and its result
// stored with ttl. The lock is released unconditionally, including when
// refresh fails; in that case the cache is left unchanged and the error is
// returned to this caller only.
func (c *Cache) GetOrRefresh(ctx context.Context, key string, ttl time.Duration, refresh RefreshFunc) (string, error) {
	return c.GetOrRefreshTTL(ctx, key, func(ctx context.Context) (string, time.Duration, error) {
		v, err := refresh(ctx)
		return v, ttl, err
	})
}

// GetOrRefreshTTL behaves like GetOrRefresh but lets the refresh function
// choose the TTL, for issuer-dictated credential lifetimes.
func (c *Cache) GetOrRefreshTTL(ctx context.Context, key string, refresh TTLRefreshFunc) (string, error) {
	if v, ok := c.Get(key); ok {
		metrics.CredentialCacheHits.WithLabelValues(key).Inc()
		return v, nil
	}
	metrics.CredentialCacheMisses.WithLabelValues(key).Inc()

	gate := c.gate(key)
	gate.Lock()
	defer gate.Unlock()

	// Double-check: a concurrent caller may have refreshed while this
	// caller waited for the gate.
	if v, ok := c.Get(key); ok {
		return v, nil
	}

	value, ttl, err := refresh(ctx)
	if err != nil {
		metrics.CredentialRefreshTotal.WithLabelValues(key, metrics.OutcomeError).Inc()
		logging.Warn().Err(err).Str("key", key).Msg("credential refresh failed")
		return "", err
	}

	c.Set(key, value, ttl)
	metrics.CredentialRefreshTotal.WithLabelValues(key, metrics.OutcomeSuccess).Inc()
	logging.Debug().Str("key", key).Dur("ttl", ttl).Msg("credential refreshed")
	return value, nil
}

// gate returns the refresh lock for key, creating it on first use.
// Locks are never removed; the key space is a small fixed set of
// logical credentials.
func (c *Cache) gate(key string) *sync.Mutex {
	c.gateMu.Lock()
	defer c.gateMu.Unlock()

	m, ok := c.gates[key]
	if !ok {
		m = &sync.Mutex{}
		c.gates[key] = m
	}
	return m
}
