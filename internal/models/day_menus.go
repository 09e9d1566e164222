// Refectory - Campus Dining Menu Cache and API
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/refectory

package models

import "github.com/goccy/go-json"

// LocationEntry is one location inside an assembled meal: either the
// location is closed, or it carries the list of item names served there.
type LocationEntry struct {
	Closed bool
	Items  []string
}

// MarshalJSON renders a closed location as {"closed":true} and an open one
// as {"items":[...]}. An open location with no items still renders an empty
// items array rather than null.
func (e LocationEntry) MarshalJSON() ([]byte, error) {
	if e.Closed {
		return json.Marshal(struct {
			Closed bool `json:"closed"`
		}{true})
	}
	items := e.Items
	if items == nil {
		items = []string{}
	}
	return json.Marshal(struct {
		Items []string `json:"items"`
	}{items})
}

// MealMenu is one assembled meal period. Closed collapses the whole meal to
// {"closed":true}; otherwise Locations maps location name to its entry. A
// meal with no recorded locations and no closed marker renders as an empty
// object, preserving the upstream's ambiguous no-data case as-is.
type MealMenu struct {
	Closed    bool
	Locations map[string]*LocationEntry
}

// MarshalJSON renders the closed-collapsed or per-location form.
func (m MealMenu) MarshalJSON() ([]byte, error) {
	if m.Closed {
		return json.Marshal(struct {
			Closed bool `json:"closed"`
		}{true})
	}
	locs := m.Locations
	if locs == nil {
		locs = map[string]*LocationEntry{}
	}
	return json.Marshal(locs)
}

// DayMenus is the assembled response for one date.
type DayMenus struct {
	Breakfast MealMenu `json:"breakfast"`
	Lunch     MealMenu `json:"lunch"`
	Dinner    MealMenu `json:"dinner"`
}

// Meal returns a pointer to the MealMenu for the given period, or nil for
// an unknown period.
func (d *DayMenus) Meal(m Meal) *MealMenu {
	switch m {
	case MealBreakfast:
		return &d.Breakfast
	case MealLunch:
		return &d.Lunch
	case MealDinner:
		return &d.Dinner
	}
	return nil
}
