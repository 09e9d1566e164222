// Refectory - Campus Dining Menu Cache and API
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/refectory

/*
database_schema.go - Database Schema Management

This file manages the DuckDB schema for the menu cache.

Tables:
  - items: Catalog of dining hall items keyed by name. Rows accumulate
    across days and are never overwritten, so descriptions and nutrition
    stay queryable after an item rotates off the menu.
  - menus: One row per (date, meal, location) serving, or per (date, meal)
    when a whole meal is closed. The location column uses the empty string
    for meal-level rows so the uniqueness constraint deduplicates them
    (a nullable column would treat every NULL as distinct).
  - menu_items: Links menus rows to items rows.

Staleness is tracked per row via last_updated (Unix seconds); a date is
considered stale when its OLDEST row passes the threshold, so a partially
updated date re-fetches as a whole.
*/

//nolint:staticcheck // File documentation, not package doc
package database

import (
	"context"
	"fmt"
	"time"
)

// schemaContext returns a context with timeout for schema operations
func schemaContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 60*time.Second)
}

// createTables creates the core database tables
func (db *DB) createTables() error {
	ctx, cancel := schemaContext()
	defer cancel()

	for _, query := range tableCreationQueries() {
		if _, err := db.conn.ExecContext(ctx, query); err != nil {
			return fmt.Errorf("failed to execute query: %s: %w", query, err)
		}
	}

	return nil
}

// tableCreationQueries returns the table creation SQL statements
func tableCreationQueries() []string {
	return []string{
		`CREATE SEQUENCE IF NOT EXISTS menus_id_seq`,

		`CREATE TABLE IF NOT EXISTS items (
			name TEXT PRIMARY KEY,
			description TEXT NOT NULL DEFAULT '',
			portion TEXT NOT NULL DEFAULT '',
			ingredients TEXT NOT NULL DEFAULT '',
			nutrients TEXT NOT NULL DEFAULT '{}',
			filters TEXT NOT NULL DEFAULT '[]',
			image TEXT NOT NULL DEFAULT '',
			image_source TEXT NOT NULL DEFAULT ''
		)`,

		`CREATE TABLE IF NOT EXISTS menus (
			id BIGINT PRIMARY KEY DEFAULT nextval('menus_id_seq'),
			date TEXT NOT NULL,
			meal TEXT NOT NULL,
			location TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL,
			last_updated BIGINT NOT NULL,
			UNIQUE (date, meal, location)
		)`,

		`CREATE TABLE IF NOT EXISTS menu_items (
			menu_id BIGINT NOT NULL REFERENCES menus (id),
			item_name TEXT NOT NULL REFERENCES items (name),
			PRIMARY KEY (menu_id, item_name)
		)`,
	}
}

// createIndexes creates secondary indexes for common query patterns
func (db *DB) createIndexes() error {
	ctx, cancel := schemaContext()
	defer cancel()

	indexes := []string{
		// Day reads and staleness checks filter on date
		`CREATE INDEX IF NOT EXISTS idx_menus_date ON menus (date)`,
		// Search joins menu_items by item name within a date window
		`CREATE INDEX IF NOT EXISTS idx_menu_items_item ON menu_items (item_name)`,
	}

	for _, query := range indexes {
		if _, err := db.conn.ExecContext(ctx, query); err != nil {
			return fmt.Errorf("failed to create index: %s: %w", query, err)
		}
	}

	return nil
}
