// Discordeerr - Seerr Request Notifications for Discord
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/discordeerr

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tomtom215/discordeerr/internal/middleware"
)

// RouterConfig wires the handlers and limits into the router.
type RouterConfig struct {
	Webhook *WebhookHandler
	Health  *HealthHandler

	// WebhookRateLimit is the per-IP request ceiling per minute on the
	// webhook route. Zero disables rate limiting.
	WebhookRateLimit int
}

// NewRouter builds the chi router for the HTTP listener.
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(chimiddleware.Recoverer)

	r.Route("/webhook", func(r chi.Router) {
		r.Use(middleware.Prometheus("/webhook"))
		if cfg.WebhookRateLimit > 0 {
			r.Use(httprate.LimitByIP(cfg.WebhookRateLimit, time.Minute))
		}
		r.Post("/", cfg.Webhook.ServeHTTP)
	})

	r.Route("/health", func(r chi.Router) {
		r.Use(middleware.Prometheus("/health"))
		r.Use(httprate.LimitByIP(300, time.Minute))
		r.Get("/", cfg.Health.Live)
		r.Get("/ready", cfg.Health.Ready)
	})

	r.Handle("/metrics", promhttp.Handler())

	return r
}
