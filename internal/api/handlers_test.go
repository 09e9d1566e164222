// Refectory - Campus Dining Menu Cache and API
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/refectory

package api

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/tomtom215/refectory/internal/config"
	"github.com/tomtom215/refectory/internal/database"
	"github.com/tomtom215/refectory/internal/menu"
	"github.com/tomtom215/refectory/internal/models"
	"github.com/tomtom215/refectory/internal/refresh"
)

type fakeStore struct {
	rows map[string][]models.MenuRow
	err  error
}

func (s *fakeStore) ReadRows(_ context.Context, date string) ([]models.MenuRow, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.rows[date], nil
}

type fakeRefresher struct {
	state      refresh.State
	enqueued   []string
	refreshErr error
	onRefresh  func(date string)
	busy       bool
}

func (r *fakeRefresher) Enqueue(date string, _ bool) bool {
	if r.busy {
		return false
	}
	r.enqueued = append(r.enqueued, date)
	return true
}

func (r *fakeRefresher) RefreshNow(_ context.Context, date string, _ bool) error {
	if r.refreshErr != nil {
		return r.refreshErr
	}
	if r.onRefresh != nil {
		r.onRefresh(date)
	}
	return nil
}

func (r *fakeRefresher) StateOf(string) refresh.State { return r.state }

type fakeItems struct {
	item    *models.Item
	itemErr error
	list    map[string]models.ItemSummary
	results map[string][]string
}

func (f *fakeItems) GetItem(context.Context, string) (*models.Item, error) {
	return f.item, f.itemErr
}

func (f *fakeItems) ListItems(context.Context) (map[string]models.ItemSummary, error) {
	return f.list, nil
}

func (f *fakeItems) SearchItems(context.Context, string, string, string, int) (map[string][]string, error) {
	return f.results, nil
}

type fakePinger struct{ err error }

func (p *fakePinger) Ping(context.Context) error { return p.err }

func strPtr(s string) *string { return &s }

// mixedDayRows is a day with a closed breakfast, one open lunch
// location, and a closed dinner.
func mixedDayRows(date string, age time.Duration) []models.MenuRow {
	updated := time.Now().Add(-age)
	return []models.MenuRow{
		{Date: date, Meal: models.MealBreakfast, Status: models.StatusClosed, LastUpdated: updated},
		{Date: date, Meal: models.MealLunch, Location: strPtr("LocationX"), Status: models.StatusOpen, ItemName: strPtr("Pasta"), LastUpdated: updated},
		{Date: date, Meal: models.MealLunch, Location: strPtr("LocationX"), Status: models.StatusOpen, ItemName: strPtr("Salad"), LastUpdated: updated},
		{Date: date, Meal: models.MealDinner, Status: models.StatusClosed, LastUpdated: updated},
	}
}

type testEnv struct {
	store     *fakeStore
	refresher *fakeRefresher
	items     *fakeItems
	pinger    *fakePinger
	server    http.Handler
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	env := &testEnv{
		store:     &fakeStore{rows: map[string][]models.MenuRow{}},
		refresher: &fakeRefresher{},
		items:     &fakeItems{},
		pinger:    &fakePinger{},
	}
	apiCfg := &config.APIConfig{
		SearchMinLength:  3,
		SearchMaxLength:  50,
		SearchLimit:      100,
		SearchWindowDays: 30,
	}
	handler := NewHandler(menu.NewService(env.store, env.refresher, 72*time.Hour), env.items, env.pinger, apiCfg)
	router := NewRouter(handler, &config.SecurityConfig{
		RateLimitDisabled: true,
		RateLimitWindow:   time.Minute,
		CORSOrigins:       []string{"*"},
	})
	env.server = router.Setup()
	return env
}

func (env *testEnv) request(t *testing.T, method, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	rec := httptest.NewRecorder()
	env.server.ServeHTTP(rec, req)
	return rec
}

func TestMenus_FreshDay(t *testing.T) {
	env := newTestEnv(t)
	env.store.rows["2026-09-01"] = mixedDayRows("2026-09-01", time.Hour)

	rec := env.request(t, http.MethodGet, "/api/v1/menus/2026-09-01")

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200; body: %s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "application/json") {
		t.Errorf("content type = %q, want application/json", ct)
	}
	want := `{"breakfast":{"closed":true},"lunch":{"LocationX":{"items":["Pasta","Salad"]}},"dinner":{"closed":true}}`
	if got := strings.TrimSpace(rec.Body.String()); got != want {
		t.Errorf("body = %s, want %s", got, want)
	}
	if len(env.refresher.enqueued) != 0 {
		t.Errorf("fresh data should not trigger a refresh, enqueued %v", env.refresher.enqueued)
	}
}

func TestMenus_StaleDayServedAndEnqueued(t *testing.T) {
	env := newTestEnv(t)
	env.store.rows["2026-09-01"] = mixedDayRows("2026-09-01", 100*time.Hour)

	rec := env.request(t, http.MethodGet, "/api/v1/menus/2026-09-01")

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want stale data served with 200", rec.Code)
	}
	if len(env.refresher.enqueued) != 1 || env.refresher.enqueued[0] != "2026-09-01" {
		t.Errorf("enqueued = %v, want exactly one background refresh", env.refresher.enqueued)
	}
}

func TestMenus_InvalidDate(t *testing.T) {
	env := newTestEnv(t)

	for _, date := range []string{"not-a-date", "2026-1-05", "2026-02-30", "20260901"} {
		rec := env.request(t, http.MethodGet, "/api/v1/menus/"+date)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("menus/%s status = %d, want 400", date, rec.Code)
		}
		if !strings.Contains(rec.Body.String(), "Invalid date format.") {
			t.Errorf("menus/%s body = %s, want an invalid-date error", date, rec.Body.String())
		}
	}
}

func TestMenus_ColdDateFetchesSynchronously(t *testing.T) {
	env := newTestEnv(t)
	env.refresher.onRefresh = func(date string) {
		env.store.rows[date] = mixedDayRows(date, 0)
	}

	rec := env.request(t, http.MethodGet, "/api/v1/menus/2026-09-01")

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 after synchronous fetch; body: %s", rec.Code, rec.Body.String())
	}
}

func TestMenus_ColdDateInFlightReturns202(t *testing.T) {
	env := newTestEnv(t)
	env.refresher.state = refresh.StateInFlight

	rec := env.request(t, http.MethodGet, "/api/v1/menus/2026-09-01")

	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202 while the fetch is in flight", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"pending"`) {
		t.Errorf("body = %s, want a pending status", rec.Body.String())
	}
}

func TestMenus_ColdDateUpstreamFailure(t *testing.T) {
	env := newTestEnv(t)
	env.refresher.refreshErr = errors.New("provider unreachable")

	rec := env.request(t, http.MethodGet, "/api/v1/menus/2026-09-01")

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500 on upstream failure", rec.Code)
	}
}

func TestMenus_ColdDateEmptyAfterRefresh(t *testing.T) {
	env := newTestEnv(t)
	// Refresh succeeds but stores nothing for the date.

	rec := env.request(t, http.MethodGet, "/api/v1/menus/2026-09-01")

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404 when a refresh produced no rows", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "No menus found for this date.") {
		t.Errorf("body = %s, want a not-found message", rec.Body.String())
	}
}

func TestRefreshMenus(t *testing.T) {
	t.Run("accepted", func(t *testing.T) {
		env := newTestEnv(t)
		rec := env.request(t, http.MethodPost, "/api/v1/menus/2026-09-01/refresh")
		if rec.Code != http.StatusAccepted {
			t.Fatalf("status = %d, want 202", rec.Code)
		}
		if !strings.Contains(rec.Body.String(), `"accepted"`) {
			t.Errorf("body = %s, want an accepted status", rec.Body.String())
		}
		if len(env.refresher.enqueued) != 1 {
			t.Errorf("enqueued = %v, want one forced refresh", env.refresher.enqueued)
		}
	})

	t.Run("already pending", func(t *testing.T) {
		env := newTestEnv(t)
		env.refresher.busy = true
		rec := env.request(t, http.MethodPost, "/api/v1/menus/2026-09-01/refresh")
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200 when already pending", rec.Code)
		}
		if !strings.Contains(rec.Body.String(), `"pending"`) {
			t.Errorf("body = %s, want a pending status", rec.Body.String())
		}
	})

	t.Run("invalid date", func(t *testing.T) {
		env := newTestEnv(t)
		rec := env.request(t, http.MethodPost, "/api/v1/menus/bogus/refresh")
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("status = %d, want 400", rec.Code)
		}
	})
}

func TestItems_List(t *testing.T) {
	env := newTestEnv(t)
	env.items.list = map[string]models.ItemSummary{
		"Pasta": {Calories: "320", Protein: "12g"},
	}

	rec := env.request(t, http.MethodGet, "/api/v1/items")

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"calories":"320"`) {
		t.Errorf("body = %s, want the calorie summary", rec.Body.String())
	}
}

func TestItem_Detail(t *testing.T) {
	env := newTestEnv(t)
	env.items.item = &models.Item{
		Name:      "Pasta",
		Nutrients: map[string]string{"Calories": "320"},
		Filters:   []string{"Vegetarian"},
	}

	rec := env.request(t, http.MethodGet, "/api/v1/items/Pasta")

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"Vegetarian"`) {
		t.Errorf("body = %s, want the filter list", rec.Body.String())
	}
}

func TestItem_NotFound(t *testing.T) {
	env := newTestEnv(t)
	env.items.itemErr = database.ErrItemNotFound

	rec := env.request(t, http.MethodGet, "/api/v1/items/Unicorn")

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "Item not found") {
		t.Errorf("body = %s, want a not-found error", rec.Body.String())
	}
}

func TestSearch(t *testing.T) {
	t.Run("results", func(t *testing.T) {
		env := newTestEnv(t)
		env.items.results = map[string][]string{
			"2026-09-01": {"Pasta"},
		}
		rec := env.request(t, http.MethodGet, "/api/v1/search/pasta")
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200", rec.Code)
		}
		if !strings.Contains(rec.Body.String(), `"2026-09-01"`) {
			t.Errorf("body = %s, want dates keyed by match", rec.Body.String())
		}
	})

	t.Run("query too short", func(t *testing.T) {
		env := newTestEnv(t)
		rec := env.request(t, http.MethodGet, "/api/v1/search/ab")
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("status = %d, want 400 for a two-character query", rec.Code)
		}
		if !strings.Contains(rec.Body.String(), "Invalid search query") {
			t.Errorf("body = %s, want a query validation error", rec.Body.String())
		}
	})

	t.Run("query too long", func(t *testing.T) {
		env := newTestEnv(t)
		rec := env.request(t, http.MethodGet, "/api/v1/search/"+strings.Repeat("a", 51))
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("status = %d, want 400 for an oversized query", rec.Code)
		}
	})

	t.Run("length bounds count characters not bytes", func(t *testing.T) {
		env := newTestEnv(t)

		// Two CJK characters: six bytes but only two characters, below
		// the three-character minimum.
		rec := env.request(t, http.MethodGet, "/api/v1/search/"+url.PathEscape("寿司"))
		if rec.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400 for a two-character query", rec.Code)
		}

		// Twenty CJK characters: sixty bytes but well under the
		// fifty-character maximum.
		rec = env.request(t, http.MethodGet, "/api/v1/search/"+url.PathEscape(strings.Repeat("麺", 20)))
		if rec.Code != http.StatusOK {
			t.Errorf("status = %d, want 200 for a twenty-character query", rec.Code)
		}
	})
}

func TestHealth(t *testing.T) {
	t.Run("live", func(t *testing.T) {
		env := newTestEnv(t)
		rec := env.request(t, http.MethodGet, "/api/v1/health/live")
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200", rec.Code)
		}
	})

	t.Run("ready ok", func(t *testing.T) {
		env := newTestEnv(t)
		rec := env.request(t, http.MethodGet, "/api/v1/health/ready")
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200", rec.Code)
		}
	})

	t.Run("ready storage down", func(t *testing.T) {
		env := newTestEnv(t)
		env.pinger.err = errors.New("connection refused")
		rec := env.request(t, http.MethodGet, "/api/v1/health/ready")
		if rec.Code != http.StatusServiceUnavailable {
			t.Fatalf("status = %d, want 503 when storage is unreachable", rec.Code)
		}
	})
}

func TestRouter_RequestIDHeader(t *testing.T) {
	env := newTestEnv(t)
	rec := env.request(t, http.MethodGet, "/api/v1/health/live")
	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("responses should carry an X-Request-ID header")
	}
}

func TestRouter_UnknownRoute(t *testing.T) {
	env := newTestEnv(t)
	rec := env.request(t, http.MethodGet, "/api/v1/nonsense")
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404 for unknown routes", rec.Code)
	}
}
