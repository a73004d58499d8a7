// Parksense - Parking and Traffic Telemetry Integration
// Copyright 2026 Ming Hsu (minghsu)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/minghsu/parksense

/*
handlers.go - Ops Surface Handlers

The fetch endpoints exist for the external scheduler and for manual
diagnosis; each one maps directly onto a telemetry.Manager operation. A
fetch that produced no usable data is a 200 with a null snapshot, mirroring
the manager's "no data this cycle" contract, so callers can tell "vendor
had nothing" apart from transport-level failure.
*/

package api

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"

	"github.com/minghsu/parksense/internal/logging"
	"github.com/minghsu/parksense/internal/telemetry"
)

// maxRequestBodySize bounds fetch request bodies.
const maxRequestBodySize = 1 << 20

var validate = validator.New(validator.WithRequiredStructEnabled())

// Handler serves the ops endpoints over a telemetry manager.
type Handler struct {
	manager *telemetry.Manager
}

// NewHandler creates a handler over manager.
func NewHandler(manager *telemetry.Manager) *Handler {
	return &Handler{manager: manager}
}

// parkingFetchRequest asks for one parking device's occupancy. An empty
// system is detected from the device URL.
type parkingFetchRequest struct {
	APIURL      string `json:"apiUrl"`
	Serial      string `json:"serial" validate:"required"`
	TotalSpaces int    `json:"totalSpaces" validate:"gte=0"`
	System      string `json:"system" validate:"omitempty,oneof=mp yp nb ap nhr"`
}

// parkingFetchResponse carries the resolved system and the snapshot, null
// when the vendor produced no usable data.
type parkingFetchResponse struct {
	System   telemetry.ParkingSystemType `json:"system"`
	Snapshot *telemetry.ParkingSnapshot  `json:"snapshot"`
}

// trafficFetchRequest asks for one roadway segment's live telemetry. An
// empty city falls back to the configured default.
type trafficFetchRequest struct {
	ETagNumber string `json:"eTagNumber" validate:"required"`
	City       string `json:"city"`
}

type trafficFetchResponse struct {
	Snapshot *telemetry.TrafficSnapshot `json:"snapshot"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Error().Err(err).Msg("failed to encode response")
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// decodeRequest decodes and validates a JSON request body into v.
func decodeRequest(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return false
	}
	if err := validate.Struct(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request: "+err.Error())
		return false
	}
	return true
}

// Healthz reports process liveness.
func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// DeviceFreshness lists all known traffic devices with their freshness.
func (h *Handler) DeviceFreshness(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.manager.Freshness().List())
}

// DeviceStatusLog lists recorded status transitions, oldest first.
func (h *Handler) DeviceStatusLog(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.manager.Freshness().StatusLog())
}

// Sweep runs one staleness pass and returns its report.
func (h *Handler) Sweep(w http.ResponseWriter, r *http.Request) {
	report := h.manager.SweepStaleDevices(r.Context())
	writeJSON(w, http.StatusOK, report)
}

// ParkingFetch fetches one parking device's occupancy on demand.
func (h *Handler) ParkingFetch(w http.ResponseWriter, r *http.Request) {
	var req parkingFetchRequest
	if !decodeRequest(w, r, &req) {
		return
	}

	system := telemetry.ParkingSystemType(req.System)
	if req.System == "" {
		system = telemetry.DetectParkingSystem(req.APIURL)
	}

	snapshot, err := h.manager.FetchParking(r.Context(), system, req.APIURL, req.Serial, req.TotalSpaces)
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, parkingFetchResponse{System: system, Snapshot: snapshot})
}

// TrafficFetch fetches one roadway segment's live telemetry on demand.
func (h *Handler) TrafficFetch(w http.ResponseWriter, r *http.Request) {
	var req trafficFetchRequest
	if !decodeRequest(w, r, &req) {
		return
	}

	snapshot, err := h.manager.FetchTraffic(r.Context(), req.ETagNumber, req.City)
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, trafficFetchResponse{Snapshot: snapshot})
}
