// Discordeerr - Seerr Request Notifications for Discord
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/discordeerr

package api

import (
	"context"
	"crypto/subtle"
	"io"
	"net/http"

	"github.com/goccy/go-json"

	"github.com/tomtom215/discordeerr/internal/logging"
	"github.com/tomtom215/discordeerr/internal/metrics"
	"github.com/tomtom215/discordeerr/internal/models"
	"github.com/tomtom215/discordeerr/internal/notify"
)

// maxWebhookBody bounds the accepted payload size. Seerr payloads are a
// few KB; anything near the cap is not a webhook.
const maxWebhookBody = 1 << 20

// EventSink accepts normalized events for asynchronous delivery.
// Implemented by the notify worker.
type EventSink interface {
	Enqueue(task notify.Task) bool
}

// EventStore logs inbound webhooks. Implemented by the store.
type EventStore interface {
	LogEvent(ctx context.Context, eventType string, payload string) (int64, error)
}

// WebhookHandler receives Seerr webhook posts, validates them, and hands
// them to the dispatch queue. The HTTP response is written as soon as the
// event is queued so Seerr never waits on Discord.
type WebhookHandler struct {
	authHeader string
	sink       EventSink
	events     EventStore
}

// NewWebhookHandler creates the webhook handler. An empty authHeader
// disables authentication; anyone who can reach the port can then post
// webhooks, so deployments should either set WEBHOOK_AUTH_HEADER or keep
// the listener off untrusted networks.
func NewWebhookHandler(authHeader string, sink EventSink, events EventStore) *WebhookHandler {
	return &WebhookHandler{authHeader: authHeader, sink: sink, events: events}
}

// ServeHTTP handles POST /webhook.
func (h *WebhookHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	log := logging.Ctx(r.Context())

	if !h.authorized(r) {
		metrics.RecordWebhook("unknown", "unauthorized")
		log.Warn().Str("remote", r.RemoteAddr).Msg("webhook rejected: bad authorization header")
		rw.Unauthorized("invalid authorization header")
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		metrics.RecordWebhook("unknown", "malformed")
		rw.BadRequest("failed to read request body")
		return
	}

	var payload models.WebhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		metrics.RecordWebhook("unknown", "malformed")
		log.Warn().Err(err).Msg("webhook rejected: malformed JSON")
		rw.BadRequest("malformed JSON payload")
		return
	}

	event := models.Normalize(&payload)
	eventType := string(event.Type)
	metrics.RecordWebhook(eventType, "accepted")

	var logID int64
	if h.events != nil {
		logID, err = h.events.LogEvent(r.Context(), eventType, string(body))
		if err != nil {
			// Delivery still proceeds; only the audit row is lost.
			log.Error().Err(err).Msg("failed to log webhook event")
		}
	}

	if !h.sink.Enqueue(notify.Task{Event: event, LogID: logID}) {
		log.Error().Str("type", eventType).Msg("dispatch queue full, dropping event")
	}

	log.Info().Str("type", eventType).Bool("known", event.Known).Msg("webhook accepted")
	rw.Success(map[string]any{
		"received": true,
		"type":     eventType,
	})
}

// authorized compares the Authorization header against the configured
// secret in constant time.
func (h *WebhookHandler) authorized(r *http.Request) bool {
	if h.authHeader == "" {
		return true
	}
	got := r.Header.Get("Authorization")
	return subtle.ConstantTimeCompare([]byte(got), []byte(h.authHeader)) == 1
}
