// Refectory - Campus Dining Menu Cache and API
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/refectory

// Package config provides centralized configuration for all Refectory
// components: the upstream menu provider, the DuckDB store, the refresh
// orchestrator, the HTTP server, and logging.
//
// Configuration Loading Order (Koanf v2):
//  1. Defaults: built-in sensible defaults for all settings
//  2. Config File: optional YAML config file (config.yaml)
//  3. Environment Variables: override any setting
//
// Config is immutable after Load() and safe for concurrent reads.
package config

import (
	"fmt"
	"net/url"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Upstream UpstreamConfig `koanf:"upstream"`
	Database DatabaseConfig `koanf:"database"`
	Refresh  RefreshConfig  `koanf:"refresh"`
	Server   ServerConfig   `koanf:"server"`
	API      APIConfig      `koanf:"api"`
	Security SecurityConfig `koanf:"security"`
	Logging  LoggingConfig  `koanf:"logging"`
}

// UpstreamConfig holds connection settings for the dining menu provider.
//
// Environment Variables:
//   - UPSTREAM_BASE_URL: provider API base URL (required)
//   - UPSTREAM_LOCATION_ID: dining facility identifier (required)
//   - UPSTREAM_TIMEOUT: per-request timeout (default: 5s)
//   - UPSTREAM_USER_AGENT: User-Agent header sent upstream
//   - UPSTREAM_RATE_LIMIT: max requests per second (default: 2)
//   - UPSTREAM_RETRY_ATTEMPTS: max retries on HTTP 429 (default: 3)
type UpstreamConfig struct {
	BaseURL       string        `koanf:"base_url"`
	LocationID    string        `koanf:"location_id"`
	Timeout       time.Duration `koanf:"timeout"`
	UserAgent     string        `koanf:"user_agent"`
	RateLimit     float64       `koanf:"rate_limit"`
	RetryAttempts int           `koanf:"retry_attempts"`
	RetryDelay    time.Duration `koanf:"retry_delay"`
}

// DatabaseConfig holds DuckDB settings.
//
// Environment Variables:
//   - DUCKDB_PATH: database file path (default: /data/refectory.duckdb)
//   - DUCKDB_MAX_MEMORY: memory limit (default: 512MB)
//   - DUCKDB_THREADS: worker threads, 0 = runtime.NumCPU()
type DatabaseConfig struct {
	Path      string `koanf:"path"`
	MaxMemory string `koanf:"max_memory"`
	Threads   int    `koanf:"threads"`
}

// RefreshConfig holds refresh-orchestration settings.
//
// Staleness is the freshness threshold: a date whose oldest row is older
// than now minus Staleness is refreshed in the background on the next read.
//
// Environment Variables:
//   - REFRESH_STALENESS: freshness threshold (default: 72h)
type RefreshConfig struct {
	Staleness time.Duration `koanf:"staleness"`
}

// ServerConfig holds HTTP server settings.
//
// Environment Variables:
//   - HTTP_PORT: listen port (default: 8380)
//   - HTTP_HOST: bind address (default: 0.0.0.0)
//   - HTTP_TIMEOUT: read/write timeout (default: 30s)
type ServerConfig struct {
	Port    int           `koanf:"port"`
	Host    string        `koanf:"host"`
	Timeout time.Duration `koanf:"timeout"`
}

// APIConfig holds API behavior limits for the search and listing endpoints.
type APIConfig struct {
	SearchMinLength  int `koanf:"search_min_length"`
	SearchMaxLength  int `koanf:"search_max_length"`
	SearchLimit      int `koanf:"search_limit"`
	SearchWindowDays int `koanf:"search_window_days"`
}

// SecurityConfig holds rate limiting and CORS settings.
//
// Environment Variables:
//   - RATE_LIMIT_REQUESTS / RATE_LIMIT_WINDOW / RATE_LIMIT_DISABLED
//   - CORS_ORIGINS: comma separated allowed origins
type SecurityConfig struct {
	RateLimitRequests int           `koanf:"rate_limit_requests"`
	RateLimitWindow   time.Duration `koanf:"rate_limit_window"`
	RateLimitDisabled bool          `koanf:"rate_limit_disabled"`
	CORSOrigins       []string      `koanf:"cors_origins"`
}

// LoggingConfig holds log output settings.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// Validate checks required fields and value ranges.
func (c *Config) Validate() error {
	if c.Upstream.BaseURL == "" {
		return fmt.Errorf("upstream.base_url is required (set UPSTREAM_BASE_URL)")
	}
	if _, err := url.ParseRequestURI(c.Upstream.BaseURL); err != nil {
		return fmt.Errorf("upstream.base_url is not a valid URL: %w", err)
	}
	if c.Upstream.LocationID == "" {
		return fmt.Errorf("upstream.location_id is required (set UPSTREAM_LOCATION_ID)")
	}
	if c.Upstream.Timeout <= 0 {
		return fmt.Errorf("upstream.timeout must be positive, got %s", c.Upstream.Timeout)
	}
	if c.Refresh.Staleness <= 0 {
		return fmt.Errorf("refresh.staleness must be positive, got %s", c.Refresh.Staleness)
	}
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be in [1, 65535], got %d", c.Server.Port)
	}
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}
	if c.API.SearchMinLength < 1 || c.API.SearchMaxLength < c.API.SearchMinLength {
		return fmt.Errorf("invalid search length bounds [%d, %d]",
			c.API.SearchMinLength, c.API.SearchMaxLength)
	}
	return nil
}

// Addr returns the host:port string for the HTTP listener.
func (c *ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
