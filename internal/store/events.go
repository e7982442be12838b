// Discordeerr - Seerr Request Notifications for Discord
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/discordeerr

package store

import (
	"context"
	"fmt"
	"time"
)

// WebhookEvent is one logged inbound webhook and its delivery outcome.
type WebhookEvent struct {
	ID          int64
	EventType   string
	SeerrUserID int64
	Payload     string
	Processed   bool
	SentDM      bool
	SentChannel bool
	CreatedAt   time.Time
}

// LogEvent records an inbound webhook before dispatch and returns the row
// ID for the later outcome update. The recipient is unknown at intake;
// MarkEventProcessed fills it in after target resolution.
func (s *Store) LogEvent(ctx context.Context, eventType string, payload string) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO webhook_events (event_type, payload) VALUES (?, ?)`,
		eventType, payload)
	if err != nil {
		return 0, fmt.Errorf("failed to log webhook event: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read event id: %w", err)
	}
	return id, nil
}

// MarkEventProcessed records the delivery outcome of a logged event.
// seerrUserID is the resolved recipient's Seerr account, or 0 when the
// event had no linked recipient.
func (s *Store) MarkEventProcessed(ctx context.Context, id int64, sentDM, sentChannel bool, seerrUserID int64) error {
	var err error
	if seerrUserID > 0 {
		_, err = s.db.ExecContext(ctx,
			`UPDATE webhook_events SET processed = 1, sent_dm = ?, sent_channel = ?, seerr_user_id = ? WHERE id = ?`,
			boolToInt(sentDM), boolToInt(sentChannel), seerrUserID, id)
	} else {
		_, err = s.db.ExecContext(ctx,
			`UPDATE webhook_events SET processed = 1, sent_dm = ?, sent_channel = ? WHERE id = ?`,
			boolToInt(sentDM), boolToInt(sentChannel), id)
	}
	if err != nil {
		return fmt.Errorf("failed to mark event processed: %w", err)
	}
	return nil
}

// RecentEvents returns the newest logged events, up to limit.
func (s *Store) RecentEvents(ctx context.Context, limit int) ([]WebhookEvent, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, event_type, seerr_user_id, payload, processed, sent_dm, sent_channel, created_at
		 FROM webhook_events ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close()

	var events []WebhookEvent
	for rows.Next() {
		var ev WebhookEvent
		var createdAt string
		if err := rows.Scan(&ev.ID, &ev.EventType, &ev.SeerrUserID, &ev.Payload,
			&ev.Processed, &ev.SentDM, &ev.SentChannel, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		ev.CreatedAt = parseTimestamp(createdAt)
		events = append(events, ev)
	}
	return events, rows.Err()
}

// PruneEvents deletes events older than the retention window and returns
// the number removed.
func (s *Store) PruneEvents(ctx context.Context, olderThan time.Duration) (int64, error) {
	cutoff := time.Now().UTC().Add(-olderThan).Format("2006-01-02 15:04:05")
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM webhook_events WHERE created_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to prune events: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count pruned events: %w", err)
	}
	return n, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
