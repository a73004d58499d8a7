// Parksense - Parking and Traffic Telemetry Integration
// Copyright 2026 Ming Hsu (minghsu)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/minghsu/parksense

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists the paths where config files are searched in
// order of priority. The first file found wins.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/parksense/config.yaml",
	"/etc/parksense/config.yml",
}

// ConfigPathEnvVar overrides the config file search path.
const ConfigPathEnvVar = "PARKSENSE_CONFIG"

// envPrefix namespaces all environment overrides, e.g.
// PARKSENSE_TDX_CLIENT_ID -> tdx.client_id.
const envPrefix = "PARKSENSE_"

// Default returns a Config with all default values applied.
// Defaults are applied first, then overridden by config file and env vars.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:    "0.0.0.0",
			Port:    8245,
			Timeout: 30 * time.Second,
		},
		MP: MPConfig{
			BaseURL:  "",
			Account:  "",
			Password: "",
			SIDTTL:   time.Hour, // vendor sessions live roughly an hour
			Timeout:  10 * time.Second,
		},
		NHR: NHRConfig{
			Endpoint: "",
			Timeout:  10 * time.Second,
		},
		TDX: TDXConfig{
			AuthURL:       "https://tdx.transportdata.tw/auth/realms/TDXConnect/protocol/openid-connect/token",
			DataBaseURL:   "https://tdx.transportdata.tw/api/basic",
			City:          "Taoyuan",
			Timeout:       30 * time.Second,
			RatePerSecond: 5,
		},
		Retry: RetryConfig{
			Attempts:  3,
			BaseDelay: time.Second,
			Strategy:  "exponential",
		},
		Staleness: StalenessConfig{
			Threshold: 70 * time.Minute,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
	}
}

// Load reads configuration in three layers: built-in defaults, an optional
// YAML file, then PARKSENSE_* environment variables. The merged result is
// validated before being returned.
func Load() (*Config, error) {
	k := koanf.New(".")

	// Layer 1: defaults from struct
	if err := k.Load(structs.Provider(Default(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// Layer 2: optional config file
	if path := findConfigFile(); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	// Layer 3: environment variables (highest priority)
	// PARKSENSE_TDX_CLIENT_ID -> tdx.client_id
	if err := k.Load(env.Provider(envPrefix, ".", envTransform), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// findConfigFile returns the first existing config file path, honoring the
// PARKSENSE_CONFIG override. Empty string means no file layer.
func findConfigFile() string {
	if path := os.Getenv(ConfigPathEnvVar); path != "" {
		return path
	}
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// envTransform maps PARKSENSE_SECTION_SUB_KEY to section.sub_key.
// The first underscore separates the section; the rest stays joined so
// multi-word keys like base_delay survive.
func envTransform(key string) string {
	key = strings.ToLower(strings.TrimPrefix(key, envPrefix))
	parts := strings.SplitN(key, "_", 2)
	if len(parts) == 1 {
		return parts[0]
	}
	return parts[0] + "." + parts[1]
}
