// Refectory - Campus Dining Menu Cache and API
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/refectory

package fetch

// Wire types for the dining provider API. The periods endpoint lists the
// meal periods served on a date; an empty list means the facility is closed
// for every meal that day. The menu endpoint returns one period's categories
// (serving locations) with their items.

type periodsResponse struct {
	Periods []periodRef `json:"periods"`
}

type periodRef struct {
	ID   string `json:"id"`
	Slug string `json:"slug"`
}

type menuResponse struct {
	Period struct {
		Categories []categoryPayload `json:"categories"`
	} `json:"period"`
}

type categoryPayload struct {
	Name  string        `json:"name"`
	Items []itemPayload `json:"items"`
}

type itemPayload struct {
	Name        string            `json:"name"`
	Desc        string            `json:"desc"`
	Portion     string            `json:"portion"`
	Ingredients string            `json:"ingredients"`
	Nutrients   []nutrientPayload `json:"nutrients"`
	Filters     []filterPayload   `json:"filters"`
}

type nutrientPayload struct {
	Name         string `json:"name"`
	ValueNumeric string `json:"valueNumeric"`
	UOM          string `json:"uom"`
}

type filterPayload struct {
	Name string `json:"name"`
	Type string `json:"type"`
}
