// Parksense - Parking and Traffic Telemetry Integration
// Copyright 2026 Ming Hsu (minghsu)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/minghsu/parksense

package telemetry

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/minghsu/parksense/internal/logging"
	"github.com/minghsu/parksense/internal/metrics"
)

// maxStatusLogEntries bounds the in-memory status log.
const maxStatusLogEntries = 1000

// FreshnessStore tracks per-device data freshness. The traffic client marks
// devices online on successful fetches; the sweeper flips stale devices
// offline. Implementations must be safe for concurrent use; callers that
// need durable freshness supply their own implementation.
type FreshnessStore interface {
	// Register creates a freshness record for serial if absent. New devices
	// start offline with no lastSeenAt.
	Register(serial string)
	// MarkOnline sets the device online with lastSeenAt = seenAt, creating
	// the record if absent.
	MarkOnline(serial string, seenAt time.Time)
	// SetStatus updates only the status of an existing device.
	SetStatus(serial string, status DeviceStatus)
	// List returns a snapshot of all freshness records.
	List() []DeviceFreshness
	// AppendStatusLog records a status transition.
	AppendStatusLog(entry StatusLogEntry)
	// StatusLog returns recorded transitions, oldest first.
	StatusLog() []StatusLogEntry
}

// MemoryFreshnessStore is the in-memory FreshnessStore used when the caller
// does not supply a persistent one.
type MemoryFreshnessStore struct {
	mu      sync.RWMutex
	devices map[string]*DeviceFreshness
	log     []StatusLogEntry
}

// NewMemoryFreshnessStore creates an empty in-memory freshness store.
func NewMemoryFreshnessStore() *MemoryFreshnessStore {
	return &MemoryFreshnessStore{devices: make(map[string]*DeviceFreshness)}
}

// Register creates a record for serial if absent.
func (s *MemoryFreshnessStore) Register(serial string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.devices[serial]; !ok {
		s.devices[serial] = &DeviceFreshness{Serial: serial, Status: StatusOffline}
	}
}

// MarkOnline sets the device online with the given observation time.
func (s *MemoryFreshnessStore) MarkOnline(serial string, seenAt time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.devices[serial]
	if !ok {
		d = &DeviceFreshness{Serial: serial}
		s.devices[serial] = d
	}
	seen := seenAt
	d.LastSeenAt = &seen
	d.Status = StatusOnline
}

// SetStatus updates the status of an existing device; unknown serials are
// ignored.
func (s *MemoryFreshnessStore) SetStatus(serial string, status DeviceStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if d, ok := s.devices[serial]; ok {
		d.Status = status
	}
}

// List returns a copy of all records.
func (s *MemoryFreshnessStore) List() []DeviceFreshness {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]DeviceFreshness, 0, len(s.devices))
	for _, d := range s.devices {
		copied := *d
		if d.LastSeenAt != nil {
			seen := *d.LastSeenAt
			copied.LastSeenAt = &seen
		}
		out = append(out, copied)
	}
	return out
}

// AppendStatusLog records a transition, dropping the oldest entries beyond
// the bound.
func (s *MemoryFreshnessStore) AppendStatusLog(entry StatusLogEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.log = append(s.log, entry)
	if len(s.log) > maxStatusLogEntries {
		s.log = s.log[len(s.log)-maxStatusLogEntries:]
	}
}

// StatusLog returns a copy of recorded transitions.
func (s *MemoryFreshnessStore) StatusLog() []StatusLogEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]StatusLogEntry, len(s.log))
	copy(out, s.log)
	return out
}

// Sweeper flips traffic devices offline when their data goes stale. It is
// invoked by the external scheduler, performs no network I/O, and only
// evaluates previously recorded freshness.
type Sweeper struct {
	store     FreshnessStore
	threshold time.Duration

	// now is replaceable in tests.
	now func() time.Time
}

// NewSweeper creates a sweeper over store with the given staleness
// threshold.
func NewSweeper(store FreshnessStore, threshold time.Duration) *Sweeper {
	if threshold <= 0 {
		threshold = 70 * time.Minute
	}
	return &Sweeper{
		store:     store,
		threshold: threshold,
		now:       time.Now,
	}
}

// Sweep passes over all devices and marks those whose last data is older
// than the threshold offline. The flip is idempotent: a device already
// offline is counted but not re-logged. Devices that have never reported
// are counted by their current status and left untouched.
func (s *Sweeper) Sweep(ctx context.Context) StalenessReport {
	start := time.Now()
	now := s.now()

	report := StalenessReport{
		SweepID:      uuid.NewString(),
		SweptAt:      now,
		NewlyOffline: []string{},
	}

	for _, d := range s.store.List() {
		if err := ctx.Err(); err != nil {
			break
		}
		report.Total++

		stale := d.LastSeenAt != nil && now.Sub(*d.LastSeenAt) > s.threshold
		if stale && d.Status != StatusOffline {
			s.store.SetStatus(d.Serial, StatusOffline)
			s.store.AppendStatusLog(StatusLogEntry{
				Serial:    d.Serial,
				Status:    StatusOffline,
				ChangedAt: now,
			})
			report.NewlyOffline = append(report.NewlyOffline, d.Serial)
			report.Offline++
			metrics.DevicesNewlyOffline.Inc()
			logging.Info().
				Str("serial", d.Serial).
				Time("last_seen", *d.LastSeenAt).
				Msg("device marked offline by staleness sweep")
			continue
		}

		if d.Status == StatusOffline || stale {
			report.Offline++
		} else {
			report.Online++
		}
	}

	metrics.DevicesOnline.Set(float64(report.Online))
	metrics.DevicesOffline.Set(float64(report.Offline))
	metrics.StalenessSweepDuration.Observe(time.Since(start).Seconds())

	logging.Info().
		Str("sweep_id", report.SweepID).
		Int("total", report.Total).
		Int("online", report.Online).
		Int("offline", report.Offline).
		Int("newly_offline", len(report.NewlyOffline)).
		Msg("staleness sweep complete")

	return report
}
