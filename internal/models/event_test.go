// Discordeerr - Seerr Request Notifications for Discord
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/discordeerr

package models

import "testing"

func TestNormalizeKnownTypes(t *testing.T) {
	t.Parallel()

	tests := []struct {
		raw  string
		want NotificationType
	}{
		{"MEDIA_PENDING", TypeRequestPending},
		{"MEDIA_AUTO_APPROVED", TypeRequestAutoApproved},
		{"MEDIA_APPROVED", TypeRequestApproved},
		{"MEDIA_DECLINED", TypeRequestDeclined},
		{"MEDIA_AVAILABLE", TypeRequestAvailable},
		{"MEDIA_FAILED", TypeRequestFailed},
		{"ISSUE_CREATED", TypeIssueReported},
		{"ISSUE_COMMENT", TypeIssueComment},
		{"ISSUE_RESOLVED", TypeIssueResolved},
		{"ISSUE_REOPENED", TypeIssueReopened},
		{"TEST_NOTIFICATION", TypeTest},
		{"media_approved", TypeRequestApproved}, // case-insensitive
	}

	for _, tt := range tests {
		ev := Normalize(&WebhookPayload{NotificationType: tt.raw})
		if ev.Type != tt.want {
			t.Errorf("Normalize(%q).Type = %q, want %q", tt.raw, ev.Type, tt.want)
		}
		if !ev.Known {
			t.Errorf("Normalize(%q).Known = false, want true", tt.raw)
		}
	}
}

func TestNormalizeUnknownTypePassesThrough(t *testing.T) {
	t.Parallel()

	ev := Normalize(&WebhookPayload{NotificationType: "MEDIA_SOMETHING_NEW"})
	if ev.Known {
		t.Error("unknown type marked Known")
	}
	if ev.Type != "media_something_new" {
		t.Errorf("Type = %q, want lowercased raw value", ev.Type)
	}
	if !ev.AdminOnly() {
		t.Error("unknown type should route to the channel only")
	}
}

func TestNormalizeEmptyPayload(t *testing.T) {
	t.Parallel()

	ev := Normalize(nil)
	if ev.Payload == nil {
		t.Fatal("Normalize(nil).Payload is nil")
	}
	if ev.Type != "unclassified" {
		t.Errorf("Type = %q, want unclassified", ev.Type)
	}
	if ev.Known {
		t.Error("empty payload marked Known")
	}
}

func TestAdminOnlyRouting(t *testing.T) {
	t.Parallel()

	adminOnly := []NotificationType{
		TypeRequestPending, TypeRequestAutoApproved, TypeRequestFailed,
		TypeIssueReported, TypeTest,
	}
	for _, typ := range adminOnly {
		ev := &NotificationEvent{Type: typ, Known: true, Payload: &WebhookPayload{}}
		if !ev.AdminOnly() {
			t.Errorf("%s.AdminOnly() = false, want true", typ)
		}
	}

	userFacing := []NotificationType{
		TypeRequestApproved, TypeRequestDeclined, TypeRequestAvailable,
		TypeIssueComment, TypeIssueResolved, TypeIssueReopened,
	}
	for _, typ := range userFacing {
		ev := &NotificationEvent{Type: typ, Known: true, Payload: &WebhookPayload{}}
		if ev.AdminOnly() {
			t.Errorf("%s.AdminOnly() = true, want false", typ)
		}
	}
}

func TestDMTargetPerType(t *testing.T) {
	t.Parallel()

	payload := &WebhookPayload{
		NotifyUserUsername:         "alice",
		NotifyUserSettingsDiscord:  "111111111111111111",
		ReportedByUsername:         "bob",
		ReportedBySettingsDiscord:  "222222222222222222",
		CommentedByUsername:        "carol",
		CommentedBySettingsDiscord: "333333333333333333",
	}

	tests := []struct {
		typ      NotificationType
		wantID   string
		wantUser string
	}{
		{TypeRequestApproved, "111111111111111111", "alice"},
		{TypeRequestDeclined, "111111111111111111", "alice"},
		{TypeRequestAvailable, "111111111111111111", "alice"},
		{TypeIssueResolved, "222222222222222222", "bob"},
		{TypeIssueReopened, "222222222222222222", "bob"},
		{TypeIssueComment, "333333333333333333", "carol"},
		{TypeRequestPending, "", ""},
		{TypeTest, "", ""},
	}

	for _, tt := range tests {
		ev := &NotificationEvent{Type: tt.typ, Known: true, Payload: payload}
		id, user := ev.DMTarget()
		if id != tt.wantID || user != tt.wantUser {
			t.Errorf("%s.DMTarget() = (%q, %q), want (%q, %q)", tt.typ, id, user, tt.wantID, tt.wantUser)
		}
	}
}

func TestRequestedSeasons(t *testing.T) {
	t.Parallel()

	p := &WebhookPayload{Extra: []MediaExtra{
		{Name: "Requested By", Value: "alice"},
		{Name: "Requested Seasons", Value: "1, 3"},
	}}
	if got := p.RequestedSeasons(); got != "1, 3" {
		t.Errorf("RequestedSeasons() = %q, want %q", got, "1, 3")
	}

	empty := &WebhookPayload{}
	if got := empty.RequestedSeasons(); got != "" {
		t.Errorf("RequestedSeasons() on empty payload = %q, want empty", got)
	}
}
