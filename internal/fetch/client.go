// Refectory - Campus Dining Menu Cache and API
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/refectory

// Package fetch retrieves daily menus from the upstream dining provider.
//
// The client performs two kinds of requests per date: one periods lookup
// (which meal periods are served) and one menu lookup per served meal.
// A date with no periods is valid data meaning every meal is closed, not an
// error. All failures are reported as *UpstreamError.
//
// Resilience:
//   - bounded per-request timeout (config, single-digit seconds)
//   - x/time rate limiter bounding request rate against the provider
//   - exponential backoff retry on HTTP 429 (1s, 2s, 4s, ...)
//   - optional circuit breaker wrapper (see breaker.go)
package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/goccy/go-json"
	"golang.org/x/time/rate"

	"github.com/tomtom215/refectory/internal/config"
	"github.com/tomtom215/refectory/internal/logging"
	"github.com/tomtom215/refectory/internal/metrics"
	"github.com/tomtom215/refectory/internal/models"
)

// maxErrorBodySize caps how much of an error response body is read for
// diagnostics, preventing unbounded allocation on large error pages.
const maxErrorBodySize = 64 * 1024

// Fetcher is the interface consumed by the refresh orchestrator and the
// backfill CLI. Implemented by Client and BreakerClient.
type Fetcher interface {
	FetchDay(ctx context.Context, date string) (*models.MenuPayload, error)
}

// Client talks to the dining provider HTTP API.
//
// Thread Safety: safe for concurrent use; each call builds its own request.
type Client struct {
	baseURL    string
	locationID string
	userAgent  string
	client     *http.Client
	limiter    *rate.Limiter
	maxRetries int
	retryDelay time.Duration
}

// NewClient creates a provider client from configuration.
func NewClient(cfg *config.UpstreamConfig) *Client {
	rl := cfg.RateLimit
	if rl <= 0 {
		rl = 2
	}
	return &Client{
		baseURL:    cfg.BaseURL,
		locationID: cfg.LocationID,
		userAgent:  cfg.UserAgent,
		client: &http.Client{
			Timeout: cfg.Timeout,
		},
		limiter:    rate.NewLimiter(rate.Limit(rl), 1),
		maxRetries: cfg.RetryAttempts,
		retryDelay: cfg.RetryDelay,
	}
}

// FetchDay retrieves the full menu payload for one date (YYYY-MM-DD).
//
// A provider response with no periods yields an all-closed payload. Meal
// periods with slugs outside breakfast/lunch/dinner are ignored. The menus
// for served periods are fetched sequentially so the worker's bound of one
// concurrent refresh also bounds concurrent load on the provider.
func (c *Client) FetchDay(ctx context.Context, date string) (*models.MenuPayload, error) {
	var periods periodsResponse
	periodsURL := fmt.Sprintf("%s/location/%s/periods?date=%s", c.baseURL, c.locationID, date)
	if err := c.getJSON(ctx, "periods", date, periodsURL, &periods); err != nil {
		return nil, err
	}

	if len(periods.Periods) == 0 {
		logging.Debug().Str("date", date).Msg("Upstream reports facility closed")
		return models.AllClosedPayload(date), nil
	}

	payload := &models.MenuPayload{
		Date:  date,
		Meals: make(map[models.Meal]models.MealPayload, len(models.Meals)),
	}

	for _, period := range periods.Periods {
		meal := models.Meal(period.Slug)
		if !meal.Valid() {
			continue
		}

		var menu menuResponse
		menuURL := fmt.Sprintf("%s/location/%s/periods/%s?date=%s",
			c.baseURL, c.locationID, period.ID, date)
		if err := c.getJSON(ctx, "menu", date, menuURL, &menu); err != nil {
			return nil, err
		}

		locations := make([]models.LocationMenu, 0, len(menu.Period.Categories))
		for _, category := range menu.Period.Categories {
			locations = append(locations, normalizeCategory(category))
		}
		payload.Meals[meal] = models.MealPayload{Locations: locations}
	}

	return payload, nil
}

// getJSON performs a rate-limited GET with 429 backoff and decodes the JSON
// body into out.
func (c *Client) getJSON(ctx context.Context, endpoint, date, reqURL string, out interface{}) error {
	resp, err := c.doRequestWithRateLimit(ctx, endpoint, reqURL)
	if err != nil {
		metrics.UpstreamRequestsTotal.WithLabelValues(endpoint, "error").Inc()
		return upstreamErr(endpoint, date, err)
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			logging.Warn().Err(cerr).Msg("Failed to close upstream response body")
		}
	}()

	if resp.StatusCode != http.StatusOK {
		body := readBodyForError(resp.Body)
		metrics.UpstreamRequestsTotal.WithLabelValues(endpoint, "error").Inc()
		return upstreamErr(endpoint, date,
			fmt.Errorf("unexpected status %d: %s", resp.StatusCode, body))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		metrics.UpstreamRequestsTotal.WithLabelValues(endpoint, "error").Inc()
		return upstreamErr(endpoint, date, fmt.Errorf("failed to decode response: %w", err))
	}

	metrics.UpstreamRequestsTotal.WithLabelValues(endpoint, "success").Inc()
	return nil
}

// doRequestWithRateLimit performs a GET honoring the client rate limiter,
// retrying on HTTP 429 with exponential backoff (retryDelay, 2x per
// attempt). The context bounds both the limiter wait and the backoff wait.
func (c *Client) doRequestWithRateLimit(ctx context.Context, endpoint, reqURL string) (*http.Response, error) {
	for attempt := 0; ; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, http.NoBody)
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("User-Agent", c.userAgent)
		req.Header.Set("Accept", "application/json")

		start := time.Now()
		resp, err := c.client.Do(req)
		metrics.UpstreamRequestDuration.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
		if err != nil {
			return nil, fmt.Errorf("HTTP request failed: %w", err)
		}

		if resp.StatusCode != http.StatusTooManyRequests {
			return resp, nil
		}

		// Rate limited by the provider; drain and retry with backoff.
		if cerr := resp.Body.Close(); cerr != nil {
			logging.Warn().Err(cerr).Msg("Failed to close rate-limited response body")
		}
		metrics.UpstreamRequestsTotal.WithLabelValues(endpoint, "rate_limited").Inc()

		if attempt >= c.maxRetries {
			return nil, fmt.Errorf("rate limited after %d retries", c.maxRetries)
		}

		delay := c.retryDelay * time.Duration(1<<uint(attempt))
		logging.Warn().
			Str("endpoint", endpoint).
			Dur("backoff", delay).
			Int("attempt", attempt+1).
			Msg("Upstream rate limited, backing off")

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// readBodyForError reads at most maxErrorBodySize bytes for diagnostics.
func readBodyForError(r io.Reader) []byte {
	body, err := io.ReadAll(io.LimitReader(r, maxErrorBodySize))
	if err != nil {
		return []byte("(failed to read response body)")
	}
	if len(body) == maxErrorBodySize {
		return append(body, []byte("... (truncated)")...)
	}
	return body
}
