// Parksense - Parking and Traffic Telemetry Integration
// Copyright 2026 Ming Hsu (minghsu)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/minghsu/parksense

/*
tdx_client.go - National Traffic Data Platform (TDX) Client

TDX authenticates with an OAuth2 client-credentials grant. The bearer token
is cached under "tdx_token" with a TTL derived from the grant's expires_in,
shaved by five minutes so a token is never used close to its expiry.

Live ETag data is fetched per city; the record matching a device's
configured ETag pair ID is reduced to a normalized TrafficSnapshot for the
vehicle class this system tracks. A successful match also refreshes the
device's freshness record as a side effect.

Rate limiting (HTTP 429) surfaces as a typed retry.RateLimitError on purpose:
the retry wrapper needs the signal to back off, unlike ordinary vendor
failures which are plain "no data" results.
*/

package telemetry

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/goccy/go-json"
	"golang.org/x/time/rate"

	"github.com/minghsu/parksense/internal/config"
	"github.com/minghsu/parksense/internal/credcache"
	"github.com/minghsu/parksense/internal/logging"
	"github.com/minghsu/parksense/internal/metrics"
	"github.com/minghsu/parksense/internal/retry"
)

// tdxTokenKey is the credential cache key for the TDX bearer token.
const tdxTokenKey = "tdx_token"

// tdxVehicleTypeTracked is the ETag flow vehicle class this system tracks.
const tdxVehicleTypeTracked = 3

// tdxTokenSafetyMargin is shaved off the issuer's expires_in so a cached
// token is never presented near its expiry.
const tdxTokenSafetyMargin = 300 * time.Second

// tdxTokenMinTTL floors the cache TTL when the issuer's lifetime is short.
const tdxTokenMinTTL = 300 * time.Second

// tdxTokenDefaultLifetime substitutes a missing or non-positive expires_in.
const tdxTokenDefaultLifetime = 3600

type tdxTokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
}

// tdxFlow is one per-vehicle-type flow record within an ETag pair.
type tdxFlow struct {
	VehicleType    int     `json:"VehicleType"`
	TravelTime     float64 `json:"TravelTime"`
	SpaceMeanSpeed float64 `json:"SpaceMeanSpeed"`
	VehicleCount   int     `json:"VehicleCount"`
}

// tdxETagPairLive is one roadway segment record in the live feed.
type tdxETagPairLive struct {
	ETagPairID      string    `json:"ETagPairID"`
	DataCollectTime time.Time `json:"DataCollectTime"`
	Flows           []tdxFlow `json:"Flows"`
}

type tdxLiveResponse struct {
	ETagPairLives []tdxETagPairLive `json:"ETagPairLives"`
}

// TDXClient fetches live roadway telemetry from the national traffic data
// platform and maintains device freshness as a side effect.
type TDXClient struct {
	cfg        config.TDXConfig
	creds      *credcache.Cache
	store      FreshnessStore
	httpClient *http.Client
	limiter    *rate.Limiter
}

// NewTDXClient creates a TDX adapter sharing the given credential cache and
// freshness store.
func NewTDXClient(cfg config.TDXConfig, creds *credcache.Cache, store FreshnessStore) *TDXClient {
	rps := cfg.RatePerSecond
	if rps <= 0 {
		rps = 5
	}
	return &TDXClient{
		cfg:        cfg,
		creds:      creds,
		store:      store,
		httpClient: newHTTPClient(cfg.Timeout),
		limiter:    rate.NewLimiter(rate.Limit(rps), 1),
	}
}

// fetchToken performs the OAuth2 client-credentials grant and returns the
// bearer token with its cache TTL: max(expires_in − 300, 300) seconds, with
// a non-positive expires_in replaced by 3600.
func (c *TDXClient) fetchToken(ctx context.Context) (string, time.Duration, error) {
	form := url.Values{}
	form.Set("grant_type", "client_credentials")
	form.Set("client_id", c.cfg.ClientID)
	form.Set("client_secret", c.cfg.ClientSecret)

	resp, err := postForm(ctx, c.httpClient, c.cfg.AuthURL, form)
	if err != nil {
		return "", 0, fmt.Errorf("tdx token request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		if terr := statusError("tdx", resp.StatusCode); terr != nil {
			return "", 0, terr
		}
		return "", 0, fmt.Errorf("tdx token request returned status %d: %s",
			resp.StatusCode, readBodyForError(resp.Body))
	}

	var token tdxTokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&token); err != nil {
		return "", 0, fmt.Errorf("failed to decode tdx token response: %w", err)
	}
	if token.AccessToken == "" {
		return "", 0, fmt.Errorf("tdx token response carried no access_token")
	}

	expiresIn := token.ExpiresIn
	if expiresIn <= 0 {
		expiresIn = tdxTokenDefaultLifetime
	}
	ttl := time.Duration(expiresIn)*time.Second - tdxTokenSafetyMargin
	if ttl < tdxTokenMinTTL {
		ttl = tdxTokenMinTTL
	}
	return token.AccessToken, ttl, nil
}

// FetchLive retrieves live ETag data for city and reduces it to a snapshot
// for the segment identified by eTagNumber.
//
// HTTP 429 surfaces as *retry.RateLimitError so the retry wrapper can back
// off. Other non-success statuses and a missing segment or flow are logged
// and reported as no data (nil, nil). On a successful match the device's
// freshness record is set online with lastSeenAt = the data collection time.
func (c *TDXClient) FetchLive(ctx context.Context, eTagNumber, city string) (*TrafficSnapshot, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	token, err := c.creds.GetOrRefreshTTL(ctx, tdxTokenKey, c.fetchToken)
	if err != nil {
		return nil, fmt.Errorf("tdx token unavailable: %w", err)
	}

	reqURL := fmt.Sprintf("%s/v2/Road/Traffic/Live/ETag/City/%s?top=1000&format=JSON", c.cfg.DataBaseURL, city)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create tdx live request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("tdx live request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusTooManyRequests {
		metrics.RateLimitHits.WithLabelValues("tdx").Inc()
		return nil, &retry.RateLimitError{Vendor: "tdx", RetryAfter: parseRetryAfter(resp.Header)}
	}
	if resp.StatusCode != http.StatusOK {
		if terr := statusError("tdx", resp.StatusCode); terr != nil {
			return nil, terr
		}
		logging.Warn().Int("status", resp.StatusCode).Str("etag", eTagNumber).Msg("tdx live fetch rejected")
		return nil, nil
	}

	var live tdxLiveResponse
	if err := json.NewDecoder(resp.Body).Decode(&live); err != nil {
		logging.Warn().Err(err).Str("etag", eTagNumber).Msg("tdx live response malformed")
		return nil, nil
	}

	for _, pair := range live.ETagPairLives {
		if pair.ETagPairID != eTagNumber {
			continue
		}
		for _, flow := range pair.Flows {
			if flow.VehicleType != tdxVehicleTypeTracked {
				continue
			}
			speed := flow.SpaceMeanSpeed
			if speed < 0 {
				speed = 0
			}
			snapshot := &TrafficSnapshot{
				TravelTime:     flow.TravelTime,
				SpaceMeanSpeed: speed,
				VehicleCount:   flow.VehicleCount,
				CollectedAt:    pair.DataCollectTime,
			}
			c.store.MarkOnline(eTagNumber, pair.DataCollectTime)
			return snapshot, nil
		}
		logging.Warn().Str("etag", eTagNumber).Msg("tdx segment carried no tracked vehicle-type flow")
		return nil, nil
	}

	logging.Warn().Str("etag", eTagNumber).Str("city", city).Msg("tdx live data carried no matching segment")
	return nil, nil
}
