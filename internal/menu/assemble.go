// Refectory - Campus Dining Menu Cache and API
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/refectory

package menu

import (
	"sort"

	"github.com/tomtom215/refectory/internal/models"
)

// Assemble builds the three-meal day view from raw stored rows. It is a
// pure function of the row set: row order never changes the result, and
// item lists come back sorted.
//
// Row interpretation:
//   - A row with no location is meal-level. Closed status collapses the
//     whole meal to closed, discarding any location rows for it.
//   - A row with a location and no item name (or closed status) marks
//     that single location closed.
//   - Remaining rows contribute one item name to their location.
//
// After all rows are placed, a meal whose every recorded location is
// closed collapses to closed as well. A meal with no rows at all stays
// an empty mapping, which readers treat as no data rather than closed.
func Assemble(rows []models.MenuRow) *models.DayMenus {
	day := &models.DayMenus{}

	for i := range rows {
		row := &rows[i]
		mm := day.Meal(row.Meal)
		if mm == nil {
			// Unknown meal name in storage, nothing to attach it to.
			continue
		}
		if mm.Closed {
			continue
		}

		if row.Status == models.StatusClosed || row.ItemName == nil {
			if row.Location == nil {
				mm.Closed = true
				mm.Locations = nil
				continue
			}
			if mm.Locations == nil {
				mm.Locations = make(map[string]*models.LocationEntry)
			}
			if e := mm.Locations[*row.Location]; e == nil || len(e.Items) == 0 {
				mm.Locations[*row.Location] = &models.LocationEntry{Closed: true}
			}
			continue
		}

		if row.Location == nil {
			// An open meal-level row carries no items to attach.
			continue
		}
		if mm.Locations == nil {
			mm.Locations = make(map[string]*models.LocationEntry)
		}
		e := mm.Locations[*row.Location]
		if e == nil {
			e = &models.LocationEntry{}
			mm.Locations[*row.Location] = e
		}
		e.Closed = false
		e.Items = append(e.Items, *row.ItemName)
	}

	for _, meal := range models.Meals {
		mm := day.Meal(meal)
		if mm.Closed || len(mm.Locations) == 0 {
			continue
		}
		allClosed := true
		for _, e := range mm.Locations {
			if !e.Closed {
				sort.Strings(e.Items)
				allClosed = false
			}
		}
		if allClosed {
			mm.Closed = true
			mm.Locations = nil
		}
	}

	return day
}
