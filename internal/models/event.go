// Discordeerr - Seerr Request Notifications for Discord
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/discordeerr

package models

import "strings"

// NotificationType classifies a webhook payload after normalization.
type NotificationType string

const (
	TypeRequestPending      NotificationType = "request_pending_approval"
	TypeRequestAutoApproved NotificationType = "request_auto_approved"
	TypeRequestApproved     NotificationType = "request_approved"
	TypeRequestDeclined     NotificationType = "request_declined"
	TypeRequestAvailable    NotificationType = "request_available"
	TypeRequestFailed       NotificationType = "request_failed"
	TypeIssueReported       NotificationType = "issue_reported"
	TypeIssueComment        NotificationType = "issue_comment"
	TypeIssueResolved       NotificationType = "issue_resolved"
	TypeIssueReopened       NotificationType = "issue_reopened"
	TypeTest                NotificationType = "test"
)

// rawTypeMap maps Seerr's notification_type values to normalized types.
var rawTypeMap = map[string]NotificationType{
	"MEDIA_PENDING":       TypeRequestPending,
	"MEDIA_AUTO_APPROVED": TypeRequestAutoApproved,
	"MEDIA_APPROVED":      TypeRequestApproved,
	"MEDIA_DECLINED":      TypeRequestDeclined,
	"MEDIA_AVAILABLE":     TypeRequestAvailable,
	"MEDIA_FAILED":        TypeRequestFailed,
	"ISSUE_CREATED":       TypeIssueReported,
	"ISSUE_COMMENT":       TypeIssueComment,
	"ISSUE_RESOLVED":      TypeIssueResolved,
	"ISSUE_REOPENED":      TypeIssueReopened,
	"TEST_NOTIFICATION":   TypeTest,
}

// NotificationEvent is a webhook payload after type normalization.
type NotificationEvent struct {
	// Type is the normalized notification type. For raw types this service
	// has never seen, Type carries the lowercased raw string and Known is
	// false; such events still render and deliver via the generic path.
	Type    NotificationType
	Known   bool
	Payload *WebhookPayload
}

// Normalize classifies a payload. It never fails: an empty or unknown
// notification_type yields an unknown-typed event that downstream code
// treats generically.
func Normalize(p *WebhookPayload) *NotificationEvent {
	if p == nil {
		p = &WebhookPayload{}
	}
	raw := strings.TrimSpace(p.NotificationType)
	if t, ok := rawTypeMap[strings.ToUpper(raw)]; ok {
		return &NotificationEvent{Type: t, Known: true, Payload: p}
	}
	t := NotificationType(strings.ToLower(raw))
	if t == "" {
		t = "unclassified"
	}
	return &NotificationEvent{Type: t, Known: false, Payload: p}
}

// AdminOnly reports whether this event type is for operators rather than
// the requesting user. Admin-only events are always posted to the shared
// channel and never sent as DMs. Unknown types route as admin-only so
// nothing new is ever silently DMed to the wrong person.
func (e *NotificationEvent) AdminOnly() bool {
	if !e.Known {
		return true
	}
	switch e.Type {
	case TypeRequestPending, TypeRequestAutoApproved, TypeRequestFailed,
		TypeIssueReported, TypeTest:
		return true
	}
	return false
}

// DMTarget returns the Discord ID and Seerr username of the user this
// event should be DMed to, per the payload section that names them.
// Either or both may be empty.
func (e *NotificationEvent) DMTarget() (discordID, seerrUsername string) {
	p := e.Payload
	switch e.Type {
	case TypeRequestApproved, TypeRequestDeclined, TypeRequestAvailable:
		return p.NotifyUserSettingsDiscord, p.NotifyUserUsername
	case TypeIssueResolved, TypeIssueReopened:
		return p.ReportedBySettingsDiscord, p.ReportedByUsername
	case TypeIssueComment:
		return p.CommentedBySettingsDiscord, p.CommentedByUsername
	}
	return "", ""
}

// IsIssue reports whether the event concerns an issue rather than a
// request lifecycle change.
func (e *NotificationEvent) IsIssue() bool {
	switch e.Type {
	case TypeIssueReported, TypeIssueComment, TypeIssueResolved, TypeIssueReopened:
		return true
	}
	return false
}
