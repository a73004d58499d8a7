// Parksense - Parking and Traffic Telemetry Integration
// Copyright 2026 Ming Hsu (minghsu)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/minghsu/parksense

package telemetry

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/goccy/go-json"

	"github.com/minghsu/parksense/internal/logging"
)

// nbResponse is the NB vendor's space report. status 1 means success.
// NB does not report admitted totals.
type nbResponse struct {
	Status        int `json:"status"`
	ParkingSpaces int `json:"parkingSpaces"`
}

// NBClient fetches occupancy from the NB parking vendor: a bare POST to the
// device's configured URL, no authentication.
type NBClient struct {
	httpClient *http.Client
}

// NewNBClient creates an NB adapter.
func NewNBClient(timeout time.Duration) *NBClient {
	return &NBClient{httpClient: newHTTPClient(timeout)}
}

// Fetch retrieves remaining spaces for one device. The vendor reports only
// free spaces, so the parked count is derived from the device's configured
// total and the admitted count is always 0.
func (c *NBClient) Fetch(ctx context.Context, apiURL, serial string, totalSpaces int) (*ParkingSnapshot, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, apiURL, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create nb request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("nb request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		if terr := statusError("nb", resp.StatusCode); terr != nil {
			return nil, terr
		}
		logging.Warn().Int("status", resp.StatusCode).Str("serial", serial).Msg("nb fetch rejected")
		return nil, nil
	}

	var parsed nbResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		logging.Warn().Err(err).Str("serial", serial).Msg("nb response malformed")
		return nil, nil
	}
	if parsed.Status != 1 {
		logging.Warn().Int("vendor_status", parsed.Status).Str("serial", serial).Msg("nb vendor reported error status")
		return nil, nil
	}

	return &ParkingSnapshot{
		ParkedCount:    totalSpaces - parsed.ParkingSpaces,
		RemainingCount: parsed.ParkingSpaces,
		AdmittedCount:  0,
	}, nil
}
