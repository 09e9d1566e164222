// Refectory - Campus Dining Menu Cache and API
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/refectory

// Package api provides HTTP routing and handlers using the Chi router.
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tomtom215/refectory/internal/config"
	"github.com/tomtom215/refectory/internal/middleware"
)

// Router wires handlers, middleware, and routes.
type Router struct {
	handler  *Handler
	security *config.SecurityConfig
}

// NewRouter creates the route layer.
func NewRouter(handler *Handler, security *config.SecurityConfig) *Router {
	return &Router{
		handler:  handler,
		security: security,
	}
}

// Setup builds the complete route tree.
func (router *Router) Setup() http.Handler {
	r := chi.NewRouter()

	// Global middleware, applied to all routes in order
	r.Use(middleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: router.security.CORSOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
		MaxAge:         300,
	}))

	// Health endpoints: permissive rate limiting so monitors can poll
	r.Route("/api/v1/health", func(r chi.Router) {
		r.Use(httprate.LimitByIP(1000, router.security.RateLimitWindow))
		r.Get("/live", router.handler.HealthLive)
		r.Get("/ready", router.handler.HealthReady)
	})

	// Core API endpoints
	r.Route("/api/v1", func(r chi.Router) {
		if !router.security.RateLimitDisabled {
			r.Use(httprate.LimitByIP(router.security.RateLimitRequests, router.security.RateLimitWindow))
		}
		r.Use(middleware.PrometheusMetrics)

		r.Get("/menus/{date}", router.handler.Menus)
		r.Post("/menus/{date}/refresh", router.handler.RefreshMenus)
		r.Get("/items", router.handler.Items)
		r.Get("/items/{name}", router.handler.Item)
		r.Get("/search/{query}", router.handler.Search)
	})

	// Prometheus scrape endpoint, outside the API rate limit
	r.Handle("/metrics", promhttp.Handler())

	return r
}
