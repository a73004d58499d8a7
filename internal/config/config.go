// Parksense - Parking and Traffic Telemetry Integration
// Copyright 2026 Ming Hsu (minghsu)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/minghsu/parksense

// Package config loads and validates Parksense configuration.
//
// Configuration loading order (koanf v2):
//  1. Defaults: built-in sensible defaults for all optional settings
//  2. Config file: optional YAML file (config.yaml) for persistent settings
//  3. Environment variables: PARKSENSE_* overrides any setting
//
// Config is immutable after Load() and safe for concurrent reads.
package config

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig    `koanf:"server"`
	MP        MPConfig        `koanf:"mp"`
	NHR       NHRConfig       `koanf:"nhr"`
	TDX       TDXConfig       `koanf:"tdx"`
	Retry     RetryConfig     `koanf:"retry"`
	Staleness StalenessConfig `koanf:"staleness"`
	Logging   LoggingConfig   `koanf:"logging"`
}

// ServerConfig configures the scheduler-facing ops HTTP server.
type ServerConfig struct {
	Host    string        `koanf:"host"`
	Port    int           `koanf:"port" validate:"gte=1,lte=65535"`
	Timeout time.Duration `koanf:"timeout"`
}

// MPConfig configures the MP parking vendor integration.
// The login and car-count endpoints live on a vendor-wide base URL;
// per-device data is addressed by the device serial (pno).
type MPConfig struct {
	BaseURL  string        `koanf:"base_url" validate:"omitempty,url"`
	Account  string        `koanf:"account"`
	Password string        `koanf:"password"`
	SIDTTL   time.Duration `koanf:"sid_ttl"`
	Timeout  time.Duration `koanf:"timeout"`
}

// NHRConfig configures the NHR parking vendor integration, which exposes a
// single fixed endpoint for all devices.
type NHRConfig struct {
	Endpoint string        `koanf:"endpoint" validate:"omitempty,url"`
	Timeout  time.Duration `koanf:"timeout"`
}

// TDXConfig configures the national traffic data platform client.
type TDXConfig struct {
	ClientID     string        `koanf:"client_id"`
	ClientSecret string        `koanf:"client_secret"`
	AuthURL      string        `koanf:"auth_url" validate:"omitempty,url"`
	DataBaseURL  string        `koanf:"data_base_url" validate:"omitempty,url"`
	City         string        `koanf:"city"`
	Timeout      time.Duration `koanf:"timeout"`
	// RatePerSecond caps outbound TDX requests client-side; the platform
	// enforces its own quota with HTTP 429.
	RatePerSecond float64 `koanf:"rate_per_second"`
}

// RetryConfig configures the retry wrapper applied to vendor calls.
type RetryConfig struct {
	Attempts  int           `koanf:"attempts" validate:"gte=1,lte=10"`
	BaseDelay time.Duration `koanf:"base_delay"`
	// Strategy is "exponential" (base·2^(n−1)) or "linear" (base·n).
	Strategy string `koanf:"strategy" validate:"oneof=exponential linear"`
}

// StalenessConfig configures the device staleness sweep.
type StalenessConfig struct {
	// Threshold is how old a device's last data may be before the device is
	// flipped offline. The traffic platform is polled hourly, so the default
	// of 70 minutes tolerates one late cycle.
	Threshold time.Duration `koanf:"threshold"`
}

// LoggingConfig configures log output.
type LoggingConfig struct {
	Level  string `koanf:"level" validate:"oneof=trace debug info warn error fatal panic disabled"`
	Format string `koanf:"format" validate:"oneof=json console"`
	Caller bool   `koanf:"caller"`
}

// Validate checks structural constraints via validator tags plus the
// cross-field rules tags cannot express.
func (c *Config) Validate() error {
	v := validator.New(validator.WithRequiredStructEnabled())
	if err := v.Struct(c); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}

	// TDX credentials come as a pair or not at all.
	if (c.TDX.ClientID == "") != (c.TDX.ClientSecret == "") {
		return fmt.Errorf("config validation failed: tdx client_id and client_secret must both be set")
	}
	if c.MP.BaseURL != "" && (c.MP.Account == "" || c.MP.Password == "") {
		return fmt.Errorf("config validation failed: mp base_url requires account and password")
	}
	if c.Staleness.Threshold <= 0 {
		return fmt.Errorf("config validation failed: staleness threshold must be positive")
	}
	return nil
}
