// Discordeerr - Seerr Request Notifications for Discord
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/discordeerr

// Package metrics defines the Prometheus instruments exposed on /metrics.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// WebhooksReceived counts inbound webhook requests by notification
	// type and handling status (accepted, unauthorized, malformed).
	WebhooksReceived = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "discordeerr_webhooks_received_total",
			Help: "Inbound Seerr webhooks by notification type and status.",
		},
		[]string{"type", "status"},
	)

	// NotificationsDelivered counts delivery outcomes by notification
	// type and channel (dm, channel, fallback, failed).
	NotificationsDelivered = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "discordeerr_notifications_delivered_total",
			Help: "Notification delivery outcomes by type and destination.",
		},
		[]string{"type", "outcome"},
	)

	// DispatchQueueDepth tracks the async dispatch queue backlog.
	DispatchQueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "discordeerr_dispatch_queue_depth",
			Help: "Events waiting in the dispatch queue.",
		},
	)

	// SeerrRequestDuration observes Seerr API round trips.
	SeerrRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "discordeerr_seerr_request_duration_seconds",
			Help:    "Seerr API request latency by endpoint and result.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"endpoint", "result"},
	)

	// HTTPRequestDuration observes inbound HTTP handling.
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "discordeerr_http_request_duration_seconds",
			Help:    "Inbound HTTP request latency by route and status code.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route", "code"},
	)

	// CommandsHandled counts slash command invocations by command and
	// result (ok, denied, error).
	CommandsHandled = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "discordeerr_commands_handled_total",
			Help: "Slash command invocations by command and result.",
		},
		[]string{"command", "result"},
	)
)

// RecordWebhook counts one inbound webhook.
func RecordWebhook(notificationType, status string) {
	WebhooksReceived.WithLabelValues(notificationType, status).Inc()
}

// RecordDelivery counts one delivery outcome.
func RecordDelivery(notificationType, outcome string) {
	NotificationsDelivered.WithLabelValues(notificationType, outcome).Inc()
}

// RecordCommand counts one slash command invocation.
func RecordCommand(command, result string) {
	CommandsHandled.WithLabelValues(command, result).Inc()
}

// ObserveSeerrRequest records one Seerr API round trip.
func ObserveSeerrRequest(endpoint string, elapsed time.Duration, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	SeerrRequestDuration.WithLabelValues(endpoint, result).Observe(elapsed.Seconds())
}
