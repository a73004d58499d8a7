// Parksense - Parking and Traffic Telemetry Integration
// Copyright 2026 Ming Hsu (minghsu)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/minghsu/parksense

package telemetry

import "time"

// ParkingSystemType identifies which vendor protocol a parking device
// speaks. Determined once per device from its configured URL; never changes
// at runtime.
type ParkingSystemType string

// Known parking system variants.
const (
	SystemMP  ParkingSystemType = "mp"
	SystemYP  ParkingSystemType = "yp"
	SystemNB  ParkingSystemType = "nb"
	SystemAP  ParkingSystemType = "ap"
	SystemNHR ParkingSystemType = "nhr"
)

// ParkingSnapshot is the normalized result of one parking fetch.
//
// The three counts follow per-vendor conventions: some vendors report
// admitted totals, others do not, and no cross-vendor normalization is
// performed beyond the per-vendor derivation formulas. Callers must not
// assume the fields are comparable across vendors.
type ParkingSnapshot struct {
	// ParkedCount is the number of vehicles currently inside.
	ParkedCount int `json:"parkedCount"`
	// RemainingCount is the number of free spaces.
	RemainingCount int `json:"remainingCount"`
	// AdmittedCount is the vendor-reported admitted total, or 0 for vendors
	// that do not report one (NB, NHR).
	AdmittedCount int `json:"admittedCount"`
}

// TrafficSnapshot is the normalized result of one traffic fetch for a
// single roadway segment.
type TrafficSnapshot struct {
	TravelTime     float64   `json:"travelTime"`
	SpaceMeanSpeed float64   `json:"spaceMeanSpeed"` // clamped to >= 0
	VehicleCount   int       `json:"vehicleCount"`
	CollectedAt    time.Time `json:"collectedAt"`
}

// DeviceStatus is the derived online/offline state of a traffic device.
type DeviceStatus string

// Device status values.
const (
	StatusOnline  DeviceStatus = "online"
	StatusOffline DeviceStatus = "offline"
)

// DeviceFreshness records when a device last produced data and the status
// derived from that freshness. Created implicitly when a device is first
// seen; never deleted by this layer.
type DeviceFreshness struct {
	Serial     string       `json:"serial"`
	LastSeenAt *time.Time   `json:"lastSeenAt,omitempty"`
	Status     DeviceStatus `json:"status"`
}

// StatusLogEntry records a status transition applied by the staleness sweep.
type StatusLogEntry struct {
	Serial    string       `json:"serial"`
	Status    DeviceStatus `json:"status"`
	ChangedAt time.Time    `json:"changedAt"`
}

// StalenessReport summarizes one staleness sweep.
type StalenessReport struct {
	SweepID      string    `json:"sweepId"`
	SweptAt      time.Time `json:"sweptAt"`
	Total        int       `json:"total"`
	Online       int       `json:"online"`
	Offline      int       `json:"offline"`
	NewlyOffline []string  `json:"newlyOffline"`
}
