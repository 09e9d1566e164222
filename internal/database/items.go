// Refectory - Campus Dining Menu Cache and API
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/refectory

package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/refectory/internal/metrics"
	"github.com/tomtom215/refectory/internal/models"
)

// GetItem fetches one catalog item by exact name.
// Returns ErrItemNotFound when no row matches.
func (db *DB) GetItem(ctx context.Context, name string) (*models.Item, error) {
	start := time.Now()
	defer observeQuery("get_item", "items", start)

	row := db.conn.QueryRowContext(ctx,
		`SELECT name, description, portion, ingredients, nutrients, filters, image, image_source
		 FROM items WHERE name = ?`, name)

	var (
		item      models.Item
		nutrients string
		filters   string
	)
	err := row.Scan(&item.Name, &item.Description, &item.Portion, &item.Ingredients,
		&nutrients, &filters, &item.Image, &item.ImageSource)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrItemNotFound
	}
	if err != nil {
		metrics.DBQueryErrors.Inc()
		return nil, fmt.Errorf("failed to fetch item %q: %w", name, err)
	}

	if err := json.Unmarshal([]byte(nutrients), &item.Nutrients); err != nil {
		return nil, fmt.Errorf("failed to decode nutrients for %q: %w", name, err)
	}
	if err := json.Unmarshal([]byte(filters), &item.Filters); err != nil {
		return nil, fmt.Errorf("failed to decode filters for %q: %w", name, err)
	}

	return &item, nil
}

// ListItems returns a compact summary of every catalog item, keyed by
// name: calories, protein, and image URL. Items missing a nutrient
// simply omit that field.
func (db *DB) ListItems(ctx context.Context) (map[string]models.ItemSummary, error) {
	start := time.Now()
	defer observeQuery("list_items", "items", start)

	rows, err := db.conn.QueryContext(ctx, `SELECT name, nutrients, image FROM items`)
	if err != nil {
		metrics.DBQueryErrors.Inc()
		return nil, fmt.Errorf("failed to list items: %w", err)
	}
	defer closeQuietly(rows)

	result := make(map[string]models.ItemSummary)
	for rows.Next() {
		var name, nutrientsJSON, image string
		if err := rows.Scan(&name, &nutrientsJSON, &image); err != nil {
			metrics.DBQueryErrors.Inc()
			return nil, fmt.Errorf("failed to scan item summary: %w", err)
		}

		var nutrients map[string]string
		if err := json.Unmarshal([]byte(nutrientsJSON), &nutrients); err != nil {
			return nil, fmt.Errorf("failed to decode nutrients for %q: %w", name, err)
		}

		result[name] = models.ItemSummary{
			Calories: nutrients["Calories"],
			Protein:  nutrients["Protein"],
			Image:    image,
		}
	}
	if err := rows.Err(); err != nil {
		metrics.DBQueryErrors.Inc()
		return nil, fmt.Errorf("failed to iterate items: %w", err)
	}

	return result, nil
}

// SearchItems finds scheduled items whose name contains the query,
// case-insensitively, within the date window [from, to]. The result maps
// each date to the sorted distinct item names served on it, capped at
// limit matching rows.
func (db *DB) SearchItems(ctx context.Context, query, from, to string, limit int) (map[string][]string, error) {
	start := time.Now()
	defer observeQuery("search_items", "menu_items", start)

	rows, err := db.conn.QueryContext(ctx,
		`SELECT m.date, mi.item_name
		 FROM menus m JOIN menu_items mi ON m.id = mi.menu_id
		 WHERE mi.item_name ILIKE ? AND m.date BETWEEN ? AND ?
		 ORDER BY m.date
		 LIMIT ?`,
		"%"+query+"%", from, to, limit)
	if err != nil {
		metrics.DBQueryErrors.Inc()
		return nil, fmt.Errorf("failed to search items for %q: %w", query, err)
	}
	defer closeQuietly(rows)

	seen := make(map[string]map[string]struct{})
	for rows.Next() {
		var date, name string
		if err := rows.Scan(&date, &name); err != nil {
			metrics.DBQueryErrors.Inc()
			return nil, fmt.Errorf("failed to scan search result: %w", err)
		}
		if seen[date] == nil {
			seen[date] = make(map[string]struct{})
		}
		seen[date][name] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		metrics.DBQueryErrors.Inc()
		return nil, fmt.Errorf("failed to iterate search results: %w", err)
	}

	result := make(map[string][]string, len(seen))
	for date, names := range seen {
		list := make([]string, 0, len(names))
		for name := range names {
			list = append(list, name)
		}
		sort.Strings(list)
		result[date] = list
	}

	return result, nil
}
