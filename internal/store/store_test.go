// Discordeerr - Seerr Request Notifications for Discord
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/discordeerr

package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"
)

// newTestStore opens a store backed by a fresh temp database.
func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "links.db"))
	if err != nil {
		t.Fatalf("Open() = %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestUpsertAndFind(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	ctx := context.Background()

	link := Link{DiscordID: "111111111111111111", SeerrUserID: 7, SeerrUsername: "alice", LinkedBy: LinkedBySelf}
	if err := s.UpsertLink(ctx, link); err != nil {
		t.Fatalf("UpsertLink() = %v", err)
	}

	got, err := s.FindByDiscordID(ctx, "111111111111111111")
	if err != nil {
		t.Fatalf("FindByDiscordID() = %v", err)
	}
	if got.SeerrUsername != "alice" || got.SeerrUserID != 7 {
		t.Errorf("found link = %+v", got)
	}
	if got.LinkedAt.IsZero() {
		t.Error("LinkedAt not populated")
	}

	// Username lookup is case-insensitive.
	if _, err := s.FindBySeerrUsername(ctx, "ALICE"); err != nil {
		t.Errorf("FindBySeerrUsername(ALICE) = %v", err)
	}

	if _, err := s.FindByDiscordID(ctx, "999999999999999999"); !errors.Is(err, ErrNotFound) {
		t.Errorf("FindByDiscordID(missing) = %v, want ErrNotFound", err)
	}
}

func TestUpsertSamePairIsIdempotent(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	ctx := context.Background()

	link := Link{DiscordID: "111111111111111111", SeerrUserID: 7, SeerrUsername: "alice", LinkedBy: LinkedBySelf}
	if err := s.UpsertLink(ctx, link); err != nil {
		t.Fatalf("first UpsertLink() = %v", err)
	}
	if err := s.UpsertLink(ctx, link); err != nil {
		t.Fatalf("second UpsertLink() = %v", err)
	}

	links, err := s.ListLinks(ctx)
	if err != nil {
		t.Fatalf("ListLinks() = %v", err)
	}
	if len(links) != 1 {
		t.Errorf("len(links) = %d, want 1", len(links))
	}
}

func TestUpsertConflictLeavesStoreUnchanged(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	ctx := context.Background()

	if err := s.UpsertLink(ctx, Link{DiscordID: "111111111111111111", SeerrUserID: 7, SeerrUsername: "alice", LinkedBy: LinkedBySelf}); err != nil {
		t.Fatalf("seed UpsertLink() = %v", err)
	}

	tests := []struct {
		name      string
		link      Link
		wantField string
	}{
		{
			name:      "discord id already linked elsewhere",
			link:      Link{DiscordID: "111111111111111111", SeerrUserID: 9, SeerrUsername: "bob", LinkedBy: LinkedBySelf},
			wantField: "discord_id",
		},
		{
			name:      "username already held by another discord account",
			link:      Link{DiscordID: "222222222222222222", SeerrUserID: 7, SeerrUsername: "alice", LinkedBy: LinkedBySelf},
			wantField: "seerr_username",
		},
		{
			name:      "username conflict is case-insensitive",
			link:      Link{DiscordID: "222222222222222222", SeerrUserID: 7, SeerrUsername: "Alice", LinkedBy: LinkedBySelf},
			wantField: "seerr_username",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := s.UpsertLink(ctx, tt.link)
			var conflict *ConflictError
			if !errors.As(err, &conflict) {
				t.Fatalf("UpsertLink() = %v, want *ConflictError", err)
			}
			if conflict.Field != tt.wantField {
				t.Errorf("conflict field = %q, want %q", conflict.Field, tt.wantField)
			}
		})
	}

	// The seed link is untouched and no rows were added.
	links, err := s.ListLinks(ctx)
	if err != nil {
		t.Fatalf("ListLinks() = %v", err)
	}
	if len(links) != 1 || links[0].SeerrUsername != "alice" {
		t.Errorf("store changed by conflicting writes: %+v", links)
	}
}

func TestForceLinkDisplacesBothSides(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	ctx := context.Background()

	// Two existing links: one holds the target discord ID, the other the
	// target username.
	seed := []Link{
		{DiscordID: "111111111111111111", SeerrUserID: 1, SeerrUsername: "alice", LinkedBy: LinkedBySelf},
		{DiscordID: "222222222222222222", SeerrUserID: 2, SeerrUsername: "bob", LinkedBy: LinkedBySelf},
	}
	for _, l := range seed {
		if err := s.UpsertLink(ctx, l); err != nil {
			t.Fatalf("seed UpsertLink(%s) = %v", l.SeerrUsername, err)
		}
	}

	displaced, err := s.ForceLink(ctx, Link{
		DiscordID: "111111111111111111", SeerrUserID: 2, SeerrUsername: "bob", LinkedBy: LinkedByAdmin,
	})
	if err != nil {
		t.Fatalf("ForceLink() = %v", err)
	}
	if len(displaced) != 2 {
		t.Fatalf("len(displaced) = %d, want 2", len(displaced))
	}

	links, err := s.ListLinks(ctx)
	if err != nil {
		t.Fatalf("ListLinks() = %v", err)
	}
	if len(links) != 1 {
		t.Fatalf("len(links) = %d, want exactly the forced link", len(links))
	}
	got := links[0]
	if got.DiscordID != "111111111111111111" || got.SeerrUsername != "bob" || got.LinkedBy != LinkedByAdmin {
		t.Errorf("forced link = %+v", got)
	}

	// No intermediate state: neither displaced pair resolves anymore.
	if _, err := s.FindBySeerrUsername(ctx, "alice"); !errors.Is(err, ErrNotFound) {
		t.Errorf("alice still linked after force: %v", err)
	}
	if _, err := s.FindByDiscordID(ctx, "222222222222222222"); !errors.Is(err, ErrNotFound) {
		t.Errorf("bob's old discord ID still linked after force: %v", err)
	}
}

func TestRemoveLink(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	ctx := context.Background()

	if err := s.UpsertLink(ctx, Link{DiscordID: "111111111111111111", SeerrUserID: 1, SeerrUsername: "alice", LinkedBy: LinkedBySelf}); err != nil {
		t.Fatalf("UpsertLink() = %v", err)
	}

	removed, err := s.RemoveLink(ctx, "111111111111111111")
	if err != nil || !removed {
		t.Fatalf("RemoveLink() = (%v, %v), want (true, nil)", removed, err)
	}

	removed, err = s.RemoveLink(ctx, "111111111111111111")
	if err != nil || removed {
		t.Fatalf("second RemoveLink() = (%v, %v), want (false, nil)", removed, err)
	}
}

func TestRemoveLinkBySeerrUsername(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	ctx := context.Background()

	if err := s.UpsertLink(ctx, Link{DiscordID: "111111111111111111", SeerrUserID: 1, SeerrUsername: "alice", LinkedBy: LinkedBySelf}); err != nil {
		t.Fatalf("UpsertLink() = %v", err)
	}

	removed, err := s.RemoveLinkBySeerrUsername(ctx, "ALICE")
	if err != nil || !removed {
		t.Fatalf("RemoveLinkBySeerrUsername() = (%v, %v), want (true, nil)", removed, err)
	}
}

func TestFindConflictsOnLegacyDuplicates(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	ctx := context.Background()

	// Simulate rows written by an earlier version without uniqueness
	// checks: same username under two Discord accounts.
	for _, l := range []Link{
		{DiscordID: "111111111111111111", SeerrUserID: 1, SeerrUsername: "alice"},
		{DiscordID: "222222222222222222", SeerrUserID: 1, SeerrUsername: "Alice"},
		{DiscordID: "333333333333333333", SeerrUserID: 3, SeerrUsername: "carol"},
	} {
		if _, err := s.db.ExecContext(ctx,
			`INSERT INTO links (discord_id, seerr_user_id, seerr_username, linked_by) VALUES (?, ?, ?, 'self')`,
			l.DiscordID, l.SeerrUserID, l.SeerrUsername); err != nil {
			t.Fatalf("raw insert: %v", err)
		}
	}

	conflicts, err := s.FindConflicts(ctx)
	if err != nil {
		t.Fatalf("FindConflicts() = %v", err)
	}
	if len(conflicts) != 1 {
		t.Fatalf("len(conflicts) = %d, want 1: %+v", len(conflicts), conflicts)
	}
	c := conflicts[0]
	if c.Field != "seerr_username" || c.Value != "alice" {
		t.Errorf("conflict = %+v", c)
	}
	if len(c.Links) != 2 {
		t.Errorf("len(conflict.Links) = %d, want 2", len(c.Links))
	}
}

func TestWebhookEventLog(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	ctx := context.Background()

	id, err := s.LogEvent(ctx, "request_approved", `{"subject":"Dune"}`)
	if err != nil {
		t.Fatalf("LogEvent() = %v", err)
	}
	if err := s.MarkEventProcessed(ctx, id, true, false, 7); err != nil {
		t.Fatalf("MarkEventProcessed() = %v", err)
	}

	events, err := s.RecentEvents(ctx, 10)
	if err != nil {
		t.Fatalf("RecentEvents() = %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("len(events) = %d, want 1", len(events))
	}
	ev := events[0]
	if ev.EventType != "request_approved" || !ev.Processed || !ev.SentDM || ev.SentChannel {
		t.Errorf("event = %+v", ev)
	}
	if ev.SeerrUserID != 7 {
		t.Errorf("SeerrUserID = %d, want the resolved recipient", ev.SeerrUserID)
	}
}

func TestMarkEventProcessedKeepsZeroRecipient(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	ctx := context.Background()

	id, err := s.LogEvent(ctx, "request_pending_approval", `{}`)
	if err != nil {
		t.Fatalf("LogEvent() = %v", err)
	}
	if err := s.MarkEventProcessed(ctx, id, false, true, 0); err != nil {
		t.Fatalf("MarkEventProcessed() = %v", err)
	}

	events, err := s.RecentEvents(ctx, 1)
	if err != nil {
		t.Fatalf("RecentEvents() = %v", err)
	}
	if events[0].SeerrUserID != 0 {
		t.Errorf("SeerrUserID = %d, want 0 for channel-only delivery", events[0].SeerrUserID)
	}
}

func TestPruneEvents(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	ctx := context.Background()

	// An expired row, backdated past the retention window.
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO webhook_events (event_type, payload, created_at) VALUES ('test', '{}', '2020-01-01 00:00:00')`); err != nil {
		t.Fatalf("raw insert: %v", err)
	}
	if _, err := s.LogEvent(ctx, "request_available", `{}`); err != nil {
		t.Fatalf("LogEvent() = %v", err)
	}

	n, err := s.PruneEvents(ctx, 30*24*time.Hour)
	if err != nil {
		t.Fatalf("PruneEvents() = %v", err)
	}
	if n != 1 {
		t.Errorf("pruned = %d, want 1", n)
	}

	events, err := s.RecentEvents(ctx, 10)
	if err != nil {
		t.Fatalf("RecentEvents() = %v", err)
	}
	if len(events) != 1 || events[0].EventType != "request_available" {
		t.Errorf("surviving events = %+v, want only the recent one", events)
	}
}

func TestOpenCreatesParentDirectory(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "nested", "dir", "links.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() = %v", err)
	}
	defer s.Close()

	if err := s.Ping(context.Background()); err != nil {
		t.Errorf("Ping() = %v", err)
	}
}
