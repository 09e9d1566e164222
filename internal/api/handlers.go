// Refectory - Campus Dining Menu Cache and API
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/refectory

package api

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"time"
	"unicode/utf8"

	"github.com/go-chi/chi/v5"

	"github.com/tomtom215/refectory/internal/config"
	"github.com/tomtom215/refectory/internal/database"
	"github.com/tomtom215/refectory/internal/menu"
	"github.com/tomtom215/refectory/internal/models"
)

// ItemStore is the item catalog surface the handlers need.
type ItemStore interface {
	GetItem(ctx context.Context, name string) (*models.Item, error)
	ListItems(ctx context.Context) (map[string]models.ItemSummary, error)
	SearchItems(ctx context.Context, query, from, to string, limit int) (map[string][]string, error)
}

// Pinger checks storage liveness for the readiness probe.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handler holds dependencies for all HTTP handlers.
type Handler struct {
	menus *menu.Service
	items ItemStore
	db    Pinger
	cfg   *config.APIConfig

	now func() time.Time // injectable for tests
}

// NewHandler creates the handler set.
func NewHandler(menus *menu.Service, items ItemStore, db Pinger, cfg *config.APIConfig) *Handler {
	return &Handler{
		menus: menus,
		items: items,
		db:    db,
		cfg:   cfg,
		now:   time.Now,
	}
}

// Menus serves GET /api/v1/menus/{date}: the assembled three-meal view
// for the date, refreshing the cache per the freshness policy.
func (h *Handler) Menus(w http.ResponseWriter, r *http.Request) {
	date := chi.URLParam(r, "date")

	day, err := h.menus.GetMenus(r.Context(), date)
	switch {
	case errors.Is(err, menu.ErrInvalidDate):
		respondError(w, http.StatusBadRequest, "Invalid date format.", nil)
	case errors.Is(err, menu.ErrPending):
		respondJSON(w, http.StatusAccepted, map[string]string{"status": "pending", "date": date})
	case errors.Is(err, menu.ErrNotFound):
		respondError(w, http.StatusNotFound, "No menus found for this date.", nil)
	case err != nil:
		respondError(w, http.StatusInternalServerError, "Failed to refresh menus for this date.", err)
	default:
		respondJSON(w, http.StatusOK, day)
	}
}

// RefreshMenus serves POST /api/v1/menus/{date}/refresh: schedules a
// forced background refresh. Responds 202 when accepted, 200 when a
// refresh for the date was already pending.
func (h *Handler) RefreshMenus(w http.ResponseWriter, r *http.Request) {
	date := chi.URLParam(r, "date")

	accepted, err := h.menus.ForceRefresh(date)
	switch {
	case errors.Is(err, menu.ErrInvalidDate):
		respondError(w, http.StatusBadRequest, "Invalid date format.", nil)
	case err != nil:
		respondError(w, http.StatusInternalServerError, "Failed to schedule refresh.", err)
	case accepted:
		respondJSON(w, http.StatusAccepted, map[string]string{"status": "accepted", "date": date})
	default:
		respondJSON(w, http.StatusOK, map[string]string{"status": "pending", "date": date})
	}
}

// Items serves GET /api/v1/items: a summary of every known item.
func (h *Handler) Items(w http.ResponseWriter, r *http.Request) {
	items, err := h.items.ListItems(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to list items.", err)
		return
	}
	respondJSON(w, http.StatusOK, items)
}

// Item serves GET /api/v1/items/{name}: full detail for one item.
func (h *Handler) Item(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	item, err := h.items.GetItem(r.Context(), name)
	if err != nil {
		if errors.Is(err, database.ErrItemNotFound) {
			respondError(w, http.StatusNotFound, "Item not found", nil)
			return
		}
		respondError(w, http.StatusInternalServerError, "Failed to fetch item.", err)
		return
	}
	respondJSON(w, http.StatusOK, item)
}

// Search serves GET /api/v1/search/{query}: dates in the upcoming window
// mapped to item names matching the query.
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	query := chi.URLParam(r, "query")
	if decoded, err := url.PathUnescape(query); err == nil {
		query = decoded
	}
	// Length bounds count characters, not bytes, so multibyte queries
	// are measured the same as ASCII ones.
	if n := utf8.RuneCountInString(query); n < h.cfg.SearchMinLength || n > h.cfg.SearchMaxLength {
		respondError(w, http.StatusBadRequest, "Invalid search query", nil)
		return
	}

	from := h.now().Format("2006-01-02")
	to := h.now().AddDate(0, 0, h.cfg.SearchWindowDays).Format("2006-01-02")

	results, err := h.items.SearchItems(r.Context(), query, from, to, h.cfg.SearchLimit)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Search failed.", err)
		return
	}
	respondJSON(w, http.StatusOK, results)
}

// HealthLive serves GET /api/v1/health/live: process is up.
func (h *Handler) HealthLive(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// HealthReady serves GET /api/v1/health/ready: storage is reachable.
func (h *Handler) HealthReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := h.db.Ping(ctx); err != nil {
		respondError(w, http.StatusServiceUnavailable, "Database unavailable.", err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
