// Refectory - Campus Dining Menu Cache and API
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/refectory

package refresh

import (
	"testing"
	"time"

	"github.com/tomtom215/refectory/internal/models"
)

func rowUpdatedAt(ts time.Time) models.MenuRow {
	return models.MenuRow{
		Date:        "2026-09-01",
		Meal:        models.MealLunch,
		Status:      models.StatusClosed,
		LastUpdated: ts,
	}
}

func TestStale(t *testing.T) {
	now := time.Date(2026, 9, 4, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name   string
		rows   []models.MenuRow
		maxAge time.Duration
		want   bool
	}{
		{
			name: "all rows current",
			rows: []models.MenuRow{rowUpdatedAt(now), rowUpdatedAt(now)},
			want: false,
		},
		{
			name: "all rows just inside threshold",
			rows: []models.MenuRow{rowUpdatedAt(now.Add(-71 * time.Hour))},
			want: false,
		},
		{
			name: "oldest row past threshold despite fresh siblings",
			rows: []models.MenuRow{
				rowUpdatedAt(now),
				rowUpdatedAt(now.Add(-73 * time.Hour)),
				rowUpdatedAt(now),
			},
			want: true,
		},
		{
			name: "empty row set is absent, not stale",
			rows: nil,
			want: false,
		},
		{
			name:   "custom threshold",
			rows:   []models.MenuRow{rowUpdatedAt(now.Add(-2 * time.Hour))},
			maxAge: time.Hour,
			want:   true,
		},
		{
			name:   "zero threshold falls back to default",
			rows:   []models.MenuRow{rowUpdatedAt(now.Add(-24 * time.Hour))},
			maxAge: 0,
			want:   false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Stale(tt.rows, now, tt.maxAge); got != tt.want {
				t.Errorf("Stale() = %v, want %v", got, tt.want)
			}
		})
	}
}
