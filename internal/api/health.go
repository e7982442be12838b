// Discordeerr - Seerr Request Notifications for Discord
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/discordeerr

package api

import (
	"context"
	"net/http"
	"time"
)

// Pinger checks the link store connection.
type Pinger interface {
	Ping(ctx context.Context) error
}

// GatewayStatus reports whether the Discord gateway session is up.
type GatewayStatus interface {
	Ready() bool
}

// SeerrChecker verifies the Seerr instance is reachable.
type SeerrChecker interface {
	TestConnection(ctx context.Context) (string, error)
}

// HealthHandler serves liveness and readiness probes.
type HealthHandler struct {
	store   Pinger
	gateway GatewayStatus
	seerr   SeerrChecker
}

// NewHealthHandler creates the health handler. Any dependency may be nil;
// nil dependencies are skipped by the readiness check.
func NewHealthHandler(store Pinger, gateway GatewayStatus, seerr SeerrChecker) *HealthHandler {
	return &HealthHandler{store: store, gateway: gateway, seerr: seerr}
}

// Live handles GET /health: process liveness only, always 200.
func (h *HealthHandler) Live(w http.ResponseWriter, r *http.Request) {
	NewResponseWriter(w, r).Success(map[string]string{"status": "ok"})
}

// Ready handles GET /health/ready: checks the store, the Discord gateway,
// and the Seerr API, returning 503 when any dependency is down.
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	components := map[string]string{}
	healthy := true

	if h.store != nil {
		if err := h.store.Ping(ctx); err != nil {
			components["database"] = "down: " + err.Error()
			healthy = false
		} else {
			components["database"] = "ok"
		}
	}

	if h.gateway != nil {
		if h.gateway.Ready() {
			components["discord"] = "ok"
		} else {
			components["discord"] = "disconnected"
			healthy = false
		}
	}

	if h.seerr != nil {
		if version, err := h.seerr.TestConnection(ctx); err != nil {
			components["seerr"] = "down: " + err.Error()
			healthy = false
		} else {
			components["seerr"] = "ok (v" + version + ")"
		}
	}

	rw := NewResponseWriter(w, r)
	status := "ok"
	if !healthy {
		status = "degraded"
	}
	body := map[string]any{
		"status":     status,
		"components": components,
	}
	if healthy {
		rw.Success(body)
		return
	}
	rw.writeJSON(http.StatusServiceUnavailable, APIResponse{Success: false, Data: body})
}
