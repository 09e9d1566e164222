// Refectory - Campus Dining Menu Cache and API
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/refectory

// Package main is a one-shot CLI that fetches a range of dates into the
// menu cache. Useful for seeding a fresh database or re-pulling a week
// after an upstream correction:
//
//	backfill -start 2026-09-01 -end 2026-09-07
//	backfill -start 2026-09-01 -end 2026-09-07 -force
//
// Without -force, dates that are already stored and fresh are skipped.
// Fetches run sequentially through the same rate-limited client the
// server uses.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/tomtom215/refectory/internal/config"
	"github.com/tomtom215/refectory/internal/database"
	"github.com/tomtom215/refectory/internal/fetch"
	"github.com/tomtom215/refectory/internal/logging"
	"github.com/tomtom215/refectory/internal/menu"
	"github.com/tomtom215/refectory/internal/refresh"
)

func main() {
	start := flag.String("start", "", "first date to fetch (YYYY-MM-DD, required)")
	end := flag.String("end", "", "last date to fetch (YYYY-MM-DD, defaults to start)")
	force := flag.Bool("force", false, "re-fetch dates that are already stored and fresh")
	flag.Parse()

	if err := run(*start, *end, *force); err != nil {
		fmt.Fprintln(os.Stderr, "backfill:", err)
		os.Exit(1)
	}
}

func run(start, end string, force bool) error {
	if end == "" {
		end = start
	}
	if !menu.ValidDate(start) || !menu.ValidDate(end) {
		return fmt.Errorf("invalid date range %q..%q, want YYYY-MM-DD", start, end)
	}
	from, _ := time.Parse("2006-01-02", start)
	to, _ := time.Parse("2006-01-02", end)
	if to.Before(from) {
		return fmt.Errorf("end date %s precedes start date %s", end, start)
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}
	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	db, err := database.New(&cfg.Database)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing database")
		}
	}()

	client := fetch.NewClient(&cfg.Upstream)
	ctx := context.Background()

	var fetched, skipped, failed int
	for d := from; !d.After(to); d = d.AddDate(0, 0, 1) {
		date := d.Format("2006-01-02")

		if !force {
			rows, err := db.ReadRows(ctx, date)
			if err != nil {
				return fmt.Errorf("read stored rows for %s: %w", date, err)
			}
			if len(rows) > 0 && !refresh.Stale(rows, time.Now(), cfg.Refresh.Staleness) {
				logging.Debug().Str("date", date).Msg("Already fresh, skipping")
				skipped++
				continue
			}
		}

		payload, err := client.FetchDay(ctx, date)
		if err != nil {
			logging.Error().Err(err).Str("date", date).Msg("Fetch failed")
			failed++
			continue
		}
		if err := db.ReplaceDate(ctx, payload); err != nil {
			logging.Error().Err(err).Str("date", date).Msg("Store failed")
			failed++
			continue
		}
		logging.Info().Str("date", date).Msg("Backfilled")
		fetched++
	}

	logging.Info().
		Int("fetched", fetched).
		Int("skipped", skipped).
		Int("failed", failed).
		Msg("Backfill complete")

	if failed > 0 {
		return fmt.Errorf("%d of %d dates failed", failed, fetched+skipped+failed)
	}
	return nil
}
