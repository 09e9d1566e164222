// Refectory - Campus Dining Menu Cache and API
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/refectory

package refresh

import (
	"time"

	"github.com/tomtom215/refectory/internal/models"
)

// DefaultMaxAge is the staleness threshold applied when configuration
// does not override it.
const DefaultMaxAge = 72 * time.Hour

// Stale reports whether stored rows for a date are due for a refresh.
// The check uses the OLDEST row: a date where only some rows were
// rewritten still counts as stale, so a partially updated day re-fetches
// as a whole. An empty slice is not stale, it is absent - callers must
// distinguish the two cases.
func Stale(rows []models.MenuRow, now time.Time, maxAge time.Duration) bool {
	if len(rows) == 0 {
		return false
	}
	if maxAge <= 0 {
		maxAge = DefaultMaxAge
	}

	oldest := rows[0].LastUpdated
	for _, r := range rows[1:] {
		if r.LastUpdated.Before(oldest) {
			oldest = r.LastUpdated
		}
	}
	return now.Sub(oldest) > maxAge
}
