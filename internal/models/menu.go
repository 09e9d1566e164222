// Refectory - Campus Dining Menu Cache and API
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/refectory

// Package models defines the core data types shared across Refectory:
// persisted menu rows, upstream menu payloads, refresh tasks, and the
// assembled per-day response shape served by the API.
package models

import "time"

// Meal identifies one of the three daily meal periods.
type Meal string

const (
	MealBreakfast Meal = "breakfast"
	MealLunch     Meal = "lunch"
	MealDinner    Meal = "dinner"
)

// Meals lists all meal periods in serving order.
var Meals = []Meal{MealBreakfast, MealLunch, MealDinner}

// Valid reports whether m is one of the three known meal periods.
func (m Meal) Valid() bool {
	switch m {
	case MealBreakfast, MealLunch, MealDinner:
		return true
	}
	return false
}

// MenuStatus is the persisted open/closed marker on a menu row.
type MenuStatus string

const (
	StatusOpen   MenuStatus = "open"
	StatusClosed MenuStatus = "closed"
)

// MenuRow is one flattened (meal, location, item) row read from the store.
// Semantics:
//   - Status == closed with a nil Location: the entire meal is closed.
//   - Status == closed with a Location: that one location is closed.
//   - Status == open with a nil ItemName: a location with zero linked items
//     (produced by the LEFT JOIN when a menu has no menu_items rows).
type MenuRow struct {
	Date        string
	Meal        Meal
	Location    *string
	Status      MenuStatus
	ItemName    *string
	LastUpdated time.Time
}

// RefreshTask is one unit of refresh work. Identity is Date alone: a plain
// and a forced request for the same date collapse to a single task.
type RefreshTask struct {
	Date  string
	Force bool
}

// Item is a single dish with its upstream metadata. Nutrients and Filters
// are stored as JSON columns in the items table.
type Item struct {
	Name        string            `json:"name"`
	Description string            `json:"description,omitempty"`
	Portion     string            `json:"portion,omitempty"`
	Ingredients string            `json:"ingredients,omitempty"`
	Nutrients   map[string]string `json:"nutrients,omitempty"`
	Filters     []string          `json:"filters,omitempty"`
	Image       string            `json:"image,omitempty"`
	ImageSource string            `json:"image_source,omitempty"`
}

// ItemSummary is the compact representation returned by the items listing.
type ItemSummary struct {
	Calories string `json:"calories,omitempty"`
	Protein  string `json:"protein,omitempty"`
	Image    string `json:"image,omitempty"`
}

// LocationMenu is one serving location within a meal period as reported by
// the upstream provider.
type LocationMenu struct {
	Name  string
	Items []Item
}

// MealPayload is the fetched state of one meal period. Closed means the
// provider reported no service for the period; a closed payload carries no
// locations.
type MealPayload struct {
	Closed    bool
	Locations []LocationMenu
}

// MenuPayload is the complete fetched state of one date. Meals absent from
// the map are treated as closed when the payload is persisted. A payload
// for a fully closed facility has all three meals present and closed.
type MenuPayload struct {
	Date  string
	Meals map[Meal]MealPayload
}

// AllClosedPayload returns a payload marking every meal period closed,
// used when the upstream reports no periods for a date.
func AllClosedPayload(date string) *MenuPayload {
	meals := make(map[Meal]MealPayload, len(Meals))
	for _, m := range Meals {
		meals[m] = MealPayload{Closed: true}
	}
	return &MenuPayload{Date: date, Meals: meals}
}
