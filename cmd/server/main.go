// Refectory - Campus Dining Menu Cache and API
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/refectory

// Package main is the entry point for the Refectory server.
//
// Refectory caches campus dining hall menus in DuckDB and serves them
// over a small REST API. Menus are pulled from the dining provider's
// API on demand: the first read of a date fetches it synchronously,
// later reads are served from the cache, and stale dates are refreshed
// in the background by a supervised worker.
//
// # Application Architecture
//
// The server initializes components in the following order:
//
//  1. Configuration: Koanf v2 layered loading (defaults, config.yaml,
//     environment variables)
//  2. Database: DuckDB menu cache (items, menus, menu_items)
//  3. Upstream client: rate-limited HTTP fetcher behind a circuit breaker
//  4. Refresh orchestrator: per-date deduplication and the FIFO worker queue
//  5. Supervisor tree: refresh worker and HTTP server as supervised services
//
// # Configuration
//
// Configuration is loaded via Koanf v2 with layered sources (highest
// priority wins): environment variables, config.yaml, built-in defaults.
// Required settings:
//   - UPSTREAM_BASE_URL: dining provider API base URL
//   - UPSTREAM_LOCATION_ID: dining facility identifier
//
// # Signal Handling
//
// The server handles graceful shutdown on SIGINT and SIGTERM: the HTTP
// server stops accepting connections and drains in-flight requests (10s
// timeout), the refresh worker finishes its current fetch, and the
// database connection closes last.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tomtom215/refectory/internal/api"
	"github.com/tomtom215/refectory/internal/config"
	"github.com/tomtom215/refectory/internal/database"
	"github.com/tomtom215/refectory/internal/fetch"
	"github.com/tomtom215/refectory/internal/logging"
	"github.com/tomtom215/refectory/internal/menu"
	"github.com/tomtom215/refectory/internal/refresh"
	"github.com/tomtom215/refectory/internal/supervisor"
)

func main() {
	// Load configuration first to get logging settings
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	logging.Info().
		Str("upstream_url", cfg.Upstream.BaseURL).
		Str("location_id", cfg.Upstream.LocationID).
		Str("db_path", cfg.Database.Path).
		Dur("staleness", cfg.Refresh.Staleness).
		Msg("Configuration loaded")

	db, err := database.New(&cfg.Database)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize database")
	}
	defer func() {
		if err := db.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing database")
		}
	}()
	logging.Info().Msg("Database initialized successfully")

	// Upstream fetcher with circuit breaker for fault tolerance. The
	// breaker keeps a flapping provider from absorbing every request.
	fetcher := fetch.NewBreakerClient(fetch.NewClient(&cfg.Upstream))

	orchestrator := refresh.New(fetcher, db)
	menuService := menu.NewService(db, orchestrator, cfg.Refresh.Staleness)

	handler := api.NewHandler(menuService, db, db, &cfg.API)
	router := api.NewRouter(handler, &cfg.Security)

	server := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      router.Setup(),
		ReadTimeout:  cfg.Server.Timeout,
		WriteTimeout: cfg.Server.Timeout,
		IdleTimeout:  60 * time.Second,
	}

	// Bridge zerolog to slog for sutureslog compatibility
	tree := supervisor.NewTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())
	tree.Add(orchestrator)
	tree.Add(supervisor.NewHTTPServerService(server, 10*time.Second))
	logging.Info().Str("addr", server.Addr).Msg("Services added to supervisor tree")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logging.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
		cancel()
	}()

	logging.Info().Msg("Starting supervisor tree")
	if err := tree.Serve(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logging.Error().Err(err).Msg("Supervisor tree error")
	}

	unstopped, _ := tree.UnstoppedServiceReport()
	for _, svc := range unstopped {
		logging.Warn().Str("service", svc.Name).Msg("Service failed to stop within timeout")
	}

	logging.Info().Msg("Application stopped gracefully")
}
