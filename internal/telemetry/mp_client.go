// Parksense - Parking and Traffic Telemetry Integration
// Copyright 2026 Ming Hsu (minghsu)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/minghsu/parksense

/*
mp_client.go - MP Parking Vendor Adapter

The MP vendor authenticates with an account/password login that issues a
short-lived session ID (sid). Subsequent car-count requests carry the sid
plus a per-request signature:

	keyVal = hex(sha1("microprogram@parkPLS+" + sid + "+" + serial))

The sid is shared across devices and cached under "mp_sid" with a 1-hour TTL.
*/

package telemetry

import (
	"context"
	"crypto/sha1" //nolint:gosec // SHA-1 is the vendor-mandated signature digest
	"encoding/hex"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/minghsu/parksense/internal/config"
	"github.com/minghsu/parksense/internal/credcache"
	"github.com/minghsu/parksense/internal/logging"
)

// mpSIDKey is the credential cache key for the shared MP session ID.
const mpSIDKey = "mp_sid"

// mpSignaturePrefix is the vendor-fixed secret prefix of the keyVal digest.
const mpSignaturePrefix = "microprogram@parkPLS"

// mpLoginEntry is one element of the login response array.
type mpLoginEntry struct {
	SID string `json:"sid"`
}

// mpCarNumEntry is one element of the car-count response array.
// retCode 0 signals a vendor-side error.
type mpCarNumEntry struct {
	RetCode int `json:"retCode"`
	RetVal  struct {
		NormalInCar      int `json:"normalInCar"`
		NormalSurplusCar int `json:"normalSurplusCar"`
	} `json:"retVal"`
}

// MPClient fetches occupancy from the MP parking vendor.
type MPClient struct {
	cfg        config.MPConfig
	creds      *credcache.Cache
	httpClient *http.Client
}

// NewMPClient creates an MP adapter sharing the given credential cache.
func NewMPClient(cfg config.MPConfig, creds *credcache.Cache) *MPClient {
	return &MPClient{
		cfg:        cfg,
		creds:      creds,
		httpClient: newHTTPClient(cfg.Timeout),
	}
}

// mpKeyVal computes the per-request signature: lowercase hex SHA-1 of
// "microprogram@parkPLS+<sid>+<serial>".
func mpKeyVal(sid, serial string) string {
	sum := sha1.Sum([]byte(mpSignaturePrefix + "+" + sid + "+" + serial)) //nolint:gosec // vendor contract
	return hex.EncodeToString(sum[:])
}

// login performs the vendor login and extracts the session ID from the
// first element of the JSON array response.
func (c *MPClient) login(ctx context.Context) (string, error) {
	form := url.Values{}
	form.Set("account", c.cfg.Account)
	form.Set("passwd", c.cfg.Password)

	resp, err := postForm(ctx, c.httpClient, strings.TrimSuffix(c.cfg.BaseURL, "/")+"/api/apiLogin", form)
	if err != nil {
		return "", fmt.Errorf("mp login request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		if terr := statusError("mp", resp.StatusCode); terr != nil {
			return "", terr
		}
		return "", fmt.Errorf("mp login returned status %d: %s", resp.StatusCode, readBodyForError(resp.Body))
	}

	var entries []mpLoginEntry
	if err := json.NewDecoder(resp.Body).Decode(&entries); err != nil {
		return "", fmt.Errorf("failed to decode mp login response: %w", err)
	}
	if len(entries) == 0 || entries[0].SID == "" {
		return "", fmt.Errorf("mp login response carried no sid")
	}
	return entries[0].SID, nil
}

// Fetch retrieves the current occupancy for one device.
//
// Vendor-level failures (error retCode, empty or malformed response) are
// logged and reported as no data (nil, nil); only transient HTTP failures
// and credential refresh errors surface as errors for the retry wrapper.
func (c *MPClient) Fetch(ctx context.Context, serial string) (*ParkingSnapshot, error) {
	sid, err := c.creds.GetOrRefresh(ctx, mpSIDKey, c.sidTTL(), c.login)
	if err != nil {
		return nil, fmt.Errorf("mp session unavailable: %w", err)
	}

	form := url.Values{}
	form.Set("sid", sid)
	form.Set("pno", serial)
	form.Set("keyVal", mpKeyVal(sid, serial))

	resp, err := postForm(ctx, c.httpClient, strings.TrimSuffix(c.cfg.BaseURL, "/")+"/api/getCarNumInfo", form)
	if err != nil {
		return nil, fmt.Errorf("mp car count request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		if terr := statusError("mp", resp.StatusCode); terr != nil {
			return nil, terr
		}
		logging.Warn().Int("status", resp.StatusCode).Str("serial", serial).Msg("mp car count rejected")
		return nil, nil
	}

	var entries []mpCarNumEntry
	if err := json.NewDecoder(resp.Body).Decode(&entries); err != nil {
		logging.Warn().Err(err).Str("serial", serial).Msg("mp car count response malformed")
		return nil, nil
	}
	if len(entries) == 0 {
		logging.Warn().Str("serial", serial).Msg("mp car count response empty")
		return nil, nil
	}
	if entries[0].RetCode == 0 {
		logging.Warn().Str("serial", serial).Msg("mp vendor reported error retCode")
		return nil, nil
	}

	inCar := entries[0].RetVal.NormalInCar
	surplus := entries[0].RetVal.NormalSurplusCar
	return &ParkingSnapshot{
		ParkedCount:    inCar - surplus,
		RemainingCount: surplus,
		AdmittedCount:  inCar,
	}, nil
}

func (c *MPClient) sidTTL() time.Duration {
	if c.cfg.SIDTTL > 0 {
		return c.cfg.SIDTTL
	}
	return time.Hour
}
