// Parksense - Parking and Traffic Telemetry Integration
// Copyright 2026 Ming Hsu (minghsu)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/minghsu/parksense

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config must validate: %v", err)
	}

	if cfg.Staleness.Threshold != 70*time.Minute {
		t.Errorf("expected 70m staleness threshold, got %s", cfg.Staleness.Threshold)
	}
	if cfg.Retry.Attempts != 3 {
		t.Errorf("expected 3 retry attempts, got %d", cfg.Retry.Attempts)
	}
	if cfg.Retry.Strategy != "exponential" {
		t.Errorf("expected exponential strategy, got %s", cfg.Retry.Strategy)
	}
	if cfg.MP.SIDTTL != time.Hour {
		t.Errorf("expected 1h MP session TTL, got %s", cfg.MP.SIDTTL)
	}
}

func TestValidateRejectsPartialTDXCredentials(t *testing.T) {
	cfg := Default()
	cfg.TDX.ClientID = "id-only"

	if err := cfg.Validate(); err == nil {
		t.Error("expected validation error for client_id without client_secret")
	}
}

func TestValidateRejectsMPWithoutCredentials(t *testing.T) {
	cfg := Default()
	cfg.MP.BaseURL = "https://mp.example.com"

	if err := cfg.Validate(); err == nil {
		t.Error("expected validation error for mp base_url without account/password")
	}
}

func TestValidateRejectsBadStrategy(t *testing.T) {
	cfg := Default()
	cfg.Retry.Strategy = "fibonacci"

	if err := cfg.Validate(); err == nil {
		t.Error("expected validation error for unknown retry strategy")
	}
}

func TestLoadAppliesEnvOverrides(t *testing.T) {
	t.Setenv("PARKSENSE_TDX_CLIENT_ID", "env-client")
	t.Setenv("PARKSENSE_TDX_CLIENT_SECRET", "env-secret")
	t.Setenv("PARKSENSE_LOGGING_LEVEL", "debug")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.TDX.ClientID != "env-client" {
		t.Errorf("expected env override for tdx client_id, got %q", cfg.TDX.ClientID)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("expected env override for logging level, got %q", cfg.Logging.Level)
	}
}

func TestLoadReadsConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yaml := `
staleness:
  threshold: 90m
retry:
  attempts: 5
  strategy: linear
`
	if err := os.WriteFile(path, []byte(yaml), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv(ConfigPathEnvVar, path)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Staleness.Threshold != 90*time.Minute {
		t.Errorf("expected 90m threshold from file, got %s", cfg.Staleness.Threshold)
	}
	if cfg.Retry.Attempts != 5 || cfg.Retry.Strategy != "linear" {
		t.Errorf("expected file retry overrides, got %+v", cfg.Retry)
	}
	// Untouched sections keep their defaults.
	if cfg.Server.Port != 8245 {
		t.Errorf("expected default port 8245, got %d", cfg.Server.Port)
	}
}

func TestEnvTransform(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"PARKSENSE_TDX_CLIENT_ID", "tdx.client_id"},
		{"PARKSENSE_RETRY_BASE_DELAY", "retry.base_delay"},
		{"PARKSENSE_SERVER_PORT", "server.port"},
	}

	for _, tt := range tests {
		if got := envTransform(tt.in); got != tt.want {
			t.Errorf("envTransform(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
