// Refectory - Campus Dining Menu Cache and API
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/refectory

/*
service.go - Menu Query Facade

GetMenus is the one read path the API exposes for day menus. It hides
the cache lifecycle behind three sentinel errors:

  - ErrInvalidDate: the date string is not a real YYYY-MM-DD date.
  - ErrPending: a refresh for the date is running; ask again shortly.
  - ErrNotFound: a refresh completed but produced nothing for the date.

Freshness policy: stored rows older than the configured threshold
(judged by the OLDEST row for the date) are still served, but a
background refresh is enqueued first so the next reader gets fresh
data. A date with no stored rows blocks on a synchronous fetch instead,
since there is nothing to serve meanwhile. When another caller is
already fetching the same cold date, the second caller gets ErrPending
rather than a duplicate upstream hit - except when the duplicate is
merely queued behind the worker, where stale-but-present rows are
served as usual.
*/

//nolint:staticcheck // File documentation, not package doc
package menu

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tomtom215/refectory/internal/logging"
	"github.com/tomtom215/refectory/internal/models"
	"github.com/tomtom215/refectory/internal/refresh"
)

var (
	// ErrInvalidDate is returned for date strings that do not parse as
	// a calendar date in YYYY-MM-DD form.
	ErrInvalidDate = errors.New("invalid date")
	// ErrPending is returned when the date is being refreshed and there
	// is nothing stored to serve yet.
	ErrPending = errors.New("refresh pending")
	// ErrNotFound is returned when a completed refresh stored no rows
	// for the date.
	ErrNotFound = errors.New("no menus found for date")
)

// Store reads stored menu rows.
type Store interface {
	ReadRows(ctx context.Context, date string) ([]models.MenuRow, error)
}

// Refresher is the slice of the refresh orchestrator the facade needs.
type Refresher interface {
	Enqueue(date string, force bool) bool
	RefreshNow(ctx context.Context, date string, force bool) error
	StateOf(date string) refresh.State
}

// Service answers menu queries from the cache, triggering refreshes as
// the freshness policy demands.
type Service struct {
	store     Store
	refresher Refresher
	maxAge    time.Duration

	now func() time.Time // injectable for tests
}

// NewService creates the query facade. maxAge <= 0 falls back to the
// default staleness threshold.
func NewService(store Store, refresher Refresher, maxAge time.Duration) *Service {
	if maxAge <= 0 {
		maxAge = refresh.DefaultMaxAge
	}
	return &Service{
		store:     store,
		refresher: refresher,
		maxAge:    maxAge,
		now:       time.Now,
	}
}

// GetMenus returns the assembled menus for a date, applying the
// freshness policy described in the file header.
func (s *Service) GetMenus(ctx context.Context, date string) (*models.DayMenus, error) {
	if !ValidDate(date) {
		return nil, ErrInvalidDate
	}

	rows, err := s.store.ReadRows(ctx, date)
	if err != nil {
		return nil, fmt.Errorf("failed to read stored menus: %w", err)
	}

	if len(rows) == 0 {
		return s.fetchCold(ctx, date)
	}

	if refresh.Stale(rows, s.now(), s.maxAge) {
		switch s.refresher.StateOf(date) {
		case refresh.StateInFlight:
			// Fresh data lands momentarily; stale rows would only be
			// served for one more response, so report pending instead.
			return nil, ErrPending
		case refresh.StateQueued:
			// Already scheduled, serve what we have.
		case refresh.StateAbsent:
			s.refresher.Enqueue(date, false)
			logging.Debug().Str("date", date).Msg("Stale menus served, refresh enqueued")
		}
	}

	return Assemble(rows), nil
}

// fetchCold handles a date with nothing stored: fetch synchronously,
// then read back and assemble.
func (s *Service) fetchCold(ctx context.Context, date string) (*models.DayMenus, error) {
	if s.refresher.StateOf(date) != refresh.StateAbsent {
		return nil, ErrPending
	}

	err := s.refresher.RefreshNow(ctx, date, false)
	if errors.Is(err, refresh.ErrAlreadyPending) {
		// Lost the race to another caller fetching the same date.
		return nil, ErrPending
	}
	if err != nil {
		return nil, fmt.Errorf("upstream refresh failed: %w", err)
	}

	rows, err := s.store.ReadRows(ctx, date)
	if err != nil {
		return nil, fmt.Errorf("failed to read stored menus: %w", err)
	}
	if len(rows) == 0 {
		return nil, ErrNotFound
	}
	return Assemble(rows), nil
}

// ForceRefresh schedules a background re-fetch of a date regardless of
// freshness. Returns false when a refresh for the date was already
// queued or in flight, in which case the existing refresh stands.
func (s *Service) ForceRefresh(date string) (bool, error) {
	if !ValidDate(date) {
		return false, ErrInvalidDate
	}
	return s.refresher.Enqueue(date, true), nil
}

// ValidDate reports whether the string is a real calendar date in
// YYYY-MM-DD form. The round-trip comparison rejects strings the parser
// would otherwise normalize, such as 2026-1-05.
func ValidDate(date string) bool {
	t, err := time.Parse("2006-01-02", date)
	if err != nil {
		return false
	}
	return t.Format("2006-01-02") == date
}
