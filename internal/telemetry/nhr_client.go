// Parksense - Parking and Traffic Telemetry Integration
// Copyright 2026 Ming Hsu (minghsu)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/minghsu/parksense

package telemetry

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/goccy/go-json"

	"github.com/minghsu/parksense/internal/config"
	"github.com/minghsu/parksense/internal/logging"
)

// nhrEntry is one element of the NHR response array. retCode must equal 1;
// the vendor reports only vehicles inside.
type nhrEntry struct {
	RetCode int `json:"retCode"`
	RetVal  struct {
		NormalInCar int `json:"normalInCar"`
	} `json:"retVal"`
}

// NHRClient fetches occupancy from the NHR parking vendor, which exposes one
// fixed endpoint for all devices addressed by serial (pno).
type NHRClient struct {
	cfg        config.NHRConfig
	httpClient *http.Client
}

// NewNHRClient creates an NHR adapter.
func NewNHRClient(cfg config.NHRConfig) *NHRClient {
	return &NHRClient{
		cfg:        cfg,
		httpClient: newHTTPClient(cfg.Timeout),
	}
}

// Fetch retrieves the current occupancy for one device. The remaining count
// is derived from the device's configured total; the admitted count is
// always 0 for this vendor.
func (c *NHRClient) Fetch(ctx context.Context, serial string, totalSpaces int) (*ParkingSnapshot, error) {
	form := url.Values{}
	form.Set("pno", serial)

	resp, err := postForm(ctx, c.httpClient, c.cfg.Endpoint, form)
	if err != nil {
		return nil, fmt.Errorf("nhr request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		if terr := statusError("nhr", resp.StatusCode); terr != nil {
			return nil, terr
		}
		logging.Warn().Int("status", resp.StatusCode).Str("serial", serial).Msg("nhr fetch rejected")
		return nil, nil
	}

	var entries []nhrEntry
	if err := json.NewDecoder(resp.Body).Decode(&entries); err != nil {
		logging.Warn().Err(err).Str("serial", serial).Msg("nhr response malformed")
		return nil, nil
	}
	if len(entries) == 0 {
		logging.Warn().Str("serial", serial).Msg("nhr response empty")
		return nil, nil
	}
	if entries[0].RetCode != 1 {
		logging.Warn().Int("ret_code", entries[0].RetCode).Str("serial", serial).Msg("nhr vendor reported error retCode")
		return nil, nil
	}

	inCar := entries[0].RetVal.NormalInCar
	return &ParkingSnapshot{
		ParkedCount:    inCar,
		RemainingCount: totalSpaces - inCar,
		AdmittedCount:  0,
	}, nil
}
