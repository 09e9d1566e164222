// Refectory - Campus Dining Menu Cache and API
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/refectory

package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/refectory/internal/logging"
	"github.com/tomtom215/refectory/internal/metrics"
	"github.com/tomtom215/refectory/internal/models"
)

// ReadRows returns every menu row stored for the given date, joined with
// the linked item names. Meal-level rows (whole meal closed, or a closed
// location) come back with a nil ItemName. The slice is empty when the
// date has never been fetched.
func (db *DB) ReadRows(ctx context.Context, date string) ([]models.MenuRow, error) {
	start := time.Now()
	defer observeQuery("read_rows", "menus", start)

	query := `
		SELECT m.meal, m.location, m.status, m.last_updated, mi.item_name
		FROM menus m
		LEFT JOIN menu_items mi ON m.id = mi.menu_id
		WHERE m.date = ?
		ORDER BY m.meal, m.location, mi.item_name`

	rows, err := db.conn.QueryContext(ctx, query, date)
	if err != nil {
		metrics.DBQueryErrors.Inc()
		return nil, fmt.Errorf("failed to read menu rows for %s: %w", date, err)
	}
	defer closeQuietly(rows)

	var result []models.MenuRow
	for rows.Next() {
		var (
			r        models.MenuRow
			location string
			updated  int64
			itemName sql.NullString
		)
		if err := rows.Scan(&r.Meal, &location, &r.Status, &updated, &itemName); err != nil {
			metrics.DBQueryErrors.Inc()
			return nil, fmt.Errorf("failed to scan menu row: %w", err)
		}
		r.Date = date
		if location != "" {
			r.Location = &location
		}
		r.LastUpdated = time.Unix(updated, 0)
		if itemName.Valid {
			r.ItemName = &itemName.String
		}
		result = append(result, r)
	}
	if err := rows.Err(); err != nil {
		metrics.DBQueryErrors.Inc()
		return nil, fmt.Errorf("failed to iterate menu rows: %w", err)
	}

	return result, nil
}

// ReplaceDate atomically replaces everything stored for a date with the
// contents of a fresh upstream payload. Existing rows for the date are
// deleted and rewritten inside one transaction, so concurrent readers
// see either the old day or the new day, never a half-written mix.
//
// Items referenced by the payload are upserted into the catalog with
// ON CONFLICT DO NOTHING: the first description wins and catalog rows
// survive after an item rotates off the menu.
func (db *DB) ReplaceDate(ctx context.Context, payload *models.MenuPayload) error {
	start := time.Now()
	defer observeQuery("replace_date", "menus", start)

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		metrics.DBQueryErrors.Inc()
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer rollbackQuietly(tx)

	if err := deleteDate(ctx, tx, payload.Date); err != nil {
		metrics.DBQueryErrors.Inc()
		return err
	}

	now := time.Now().Unix()
	for _, meal := range models.Meals {
		mp, ok := payload.Meals[meal]
		if !ok || mp.Closed {
			// Whole meal closed: single meal-level row, no items.
			if err := insertMenuRow(ctx, tx, payload.Date, meal, "", models.StatusClosed, now, nil); err != nil {
				metrics.DBQueryErrors.Inc()
				return err
			}
			continue
		}
		// A served meal with zero locations writes no rows at all;
		// readers cannot tell it apart from missing data and will
		// re-fetch, which is the safer failure mode.
		for _, loc := range mp.Locations {
			status := models.StatusOpen
			if len(loc.Items) == 0 {
				status = models.StatusClosed
			}
			if err := insertMenuRow(ctx, tx, payload.Date, meal, loc.Name, status, now, loc.Items); err != nil {
				metrics.DBQueryErrors.Inc()
				return err
			}
		}
	}

	if err := tx.Commit(); err != nil {
		metrics.DBQueryErrors.Inc()
		return fmt.Errorf("failed to commit menu replacement for %s: %w", payload.Date, err)
	}

	logging.Debug().Str("date", payload.Date).Msg("Replaced stored menus for date")
	return nil
}

// deleteDate removes the menu rows and item links for a date
func deleteDate(ctx context.Context, tx *sql.Tx, date string) error {
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM menu_items WHERE menu_id IN (SELECT id FROM menus WHERE date = ?)`, date); err != nil {
		return fmt.Errorf("failed to delete menu item links for %s: %w", date, err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM menus WHERE date = ?`, date); err != nil {
		return fmt.Errorf("failed to delete menus for %s: %w", date, err)
	}
	return nil
}

// insertMenuRow writes one menus row plus its item catalog entries and links.
// location is the empty string for meal-level rows.
func insertMenuRow(ctx context.Context, tx *sql.Tx, date string, meal models.Meal, location string, status models.MenuStatus, updated int64, items []models.Item) error {
	var menuID int64
	err := tx.QueryRowContext(ctx,
		`INSERT INTO menus (date, meal, location, status, last_updated)
		 VALUES (?, ?, ?, ?, ?) RETURNING id`,
		date, string(meal), location, string(status), updated).Scan(&menuID)
	if err != nil {
		return fmt.Errorf("failed to insert menu row %s/%s/%q: %w", date, meal, location, err)
	}

	for i := range items {
		if err := upsertItem(ctx, tx, &items[i]); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO menu_items (menu_id, item_name) VALUES (?, ?) ON CONFLICT DO NOTHING`,
			menuID, items[i].Name); err != nil {
			return fmt.Errorf("failed to link item %q to menu %d: %w", items[i].Name, menuID, err)
		}
	}
	return nil
}

// upsertItem inserts an item into the catalog if it is not already there.
// DuckDB-native ON CONFLICT DO NOTHING keeps the first recorded version.
func upsertItem(ctx context.Context, tx *sql.Tx, item *models.Item) error {
	nutrients, err := json.Marshal(item.Nutrients)
	if err != nil {
		return fmt.Errorf("failed to encode nutrients for %q: %w", item.Name, err)
	}
	filters, err := json.Marshal(item.Filters)
	if err != nil {
		return fmt.Errorf("failed to encode filters for %q: %w", item.Name, err)
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO items (name, description, portion, ingredients, nutrients, filters, image, image_source)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?) ON CONFLICT DO NOTHING`,
		item.Name, item.Description, item.Portion, item.Ingredients,
		string(nutrients), string(filters), item.Image, item.ImageSource); err != nil {
		return fmt.Errorf("failed to upsert item %q: %w", item.Name, err)
	}
	return nil
}

// rollbackQuietly rolls back a transaction, ignoring the error returned
// after a successful commit (sql.ErrTxDone)
func rollbackQuietly(tx *sql.Tx) {
	_ = tx.Rollback()
}

// observeQuery records the duration of a database operation
func observeQuery(operation, table string, start time.Time) {
	metrics.DBQueryDuration.WithLabelValues(operation, table).Observe(time.Since(start).Seconds())
}
