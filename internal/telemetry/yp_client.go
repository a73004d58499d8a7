// Parksense - Parking and Traffic Telemetry Integration
// Copyright 2026 Ming Hsu (minghsu)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/minghsu/parksense

package telemetry

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/minghsu/parksense/internal/logging"
)

// ypCarTypeStandard is the vehicle class this system tracks in YP space
// reports.
const ypCarTypeStandard = 1

// ypRequest is the plaintext payload before obfuscation. Field order is part
// of the wire shape.
type ypRequest struct {
	Type   int    `json:"Type"`
	Target string `json:"Target"`
	API    string `json:"API"`
}

// ypSpaceEntry is one per-vehicle-class space report.
type ypSpaceEntry struct {
	CarType   int `json:"carType"`
	AllSpace  int `json:"allSpace"`
	LeftSpace int `json:"leftSpace"`
}

type ypResponse struct {
	Space []ypSpaceEntry `json:"space"`
}

// YPClient fetches occupancy from the YP parking vendor, which POSTs the
// obfuscated payload to the device's own configured URL.
type YPClient struct {
	httpClient *http.Client

	// now is replaceable in tests so keyA is deterministic.
	now func() time.Time
}

// NewYPClient creates a YP adapter.
func NewYPClient(timeout time.Duration) *YPClient {
	return &YPClient{
		httpClient: newHTTPClient(timeout),
		now:        time.Now,
	}
}

// Fetch retrieves the current occupancy for one device from its configured
// URL. Vendor-level failures are logged and reported as no data (nil, nil).
func (c *YPClient) Fetch(ctx context.Context, apiURL, serial string) (*ParkingSnapshot, error) {
	plaintext, err := json.Marshal(ypRequest{Type: 1, Target: serial, API: "GetCarSpace"})
	if err != nil {
		return nil, fmt.Errorf("failed to build yp request: %w", err)
	}

	encoded := ypEncode(string(plaintext), ypKeyA(c.now()))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, apiURL, strings.NewReader(encoded))
	if err != nil {
		return nil, fmt.Errorf("failed to create yp request: %w", err)
	}
	req.Header.Set("Content-Type", "text/plain")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("yp request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		if terr := statusError("yp", resp.StatusCode); terr != nil {
			return nil, terr
		}
		logging.Warn().Int("status", resp.StatusCode).Str("serial", serial).Msg("yp fetch rejected")
		return nil, nil
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodySize))
	if err != nil {
		return nil, fmt.Errorf("failed to read yp response: %w", err)
	}

	decoded, err := ypDecode(strings.TrimSpace(string(body)))
	if err != nil {
		logging.Warn().Err(err).Str("serial", serial).Msg("yp response failed to decode")
		return nil, nil
	}

	var parsed ypResponse
	if err := json.Unmarshal([]byte(decoded), &parsed); err != nil {
		logging.Warn().Err(err).Str("serial", serial).Msg("yp response malformed after decode")
		return nil, nil
	}

	for _, entry := range parsed.Space {
		if entry.CarType == ypCarTypeStandard {
			return &ParkingSnapshot{
				ParkedCount:    entry.AllSpace - entry.LeftSpace,
				RemainingCount: entry.LeftSpace,
				AdmittedCount:  entry.AllSpace,
			}, nil
		}
	}

	logging.Warn().Str("serial", serial).Msg("yp response carried no standard car-type entry")
	return nil, nil
}
