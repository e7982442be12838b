// Discordeerr - Seerr Request Notifications for Discord
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/discordeerr

// Package store persists the Discord-to-Seerr account links and the
// inbound webhook event log in a single SQLite database file.
//
// Uniqueness of the mapping (one link per Discord ID, one per Seerr
// username) is enforced by the write operations inside immediate
// transactions rather than by a UNIQUE index. Databases created by
// earlier versions can contain duplicate rows; an index would make such a
// file unusable, while write-time enforcement keeps it readable and lets
// FindConflicts report the duplicates for cleanup.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite" // registers the "sqlite" driver
)

// LinkedBySelf and LinkedByAdmin record who created a link.
const (
	LinkedBySelf  = "self"
	LinkedByAdmin = "admin"
)

// Link maps one Discord account to one Seerr account.
type Link struct {
	DiscordID     string
	SeerrUserID   int64
	SeerrUsername string
	LinkedBy      string
	LinkedAt      time.Time
}

// Conflict is a set of links that violate uniqueness on one side of the
// mapping, as found in legacy data.
type Conflict struct {
	// Field is the duplicated side: "discord_id" or "seerr_username".
	Field string

	// Value is the duplicated key.
	Value string

	Links []Link
}

// Store is the SQLite-backed link store. Safe for concurrent use.
type Store struct {
	db *sql.DB
}

// Open opens (creating if necessary) the database at path and applies
// migrations. The parent directory is created when missing.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	dsn := "file:" + path + "?_txlock=immediate" +
		"&_pragma=busy_timeout(5000)" +
		"&_pragma=journal_mode(WAL)" +
		"&_pragma=foreign_keys(1)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite serializes writers; a single connection avoids SQLITE_BUSY
	// churn under concurrent command handling.
	db.SetMaxOpenConns(1)

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping verifies the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

var migrations = []string{
	`CREATE TABLE IF NOT EXISTS links (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		discord_id TEXT NOT NULL,
		seerr_user_id INTEGER NOT NULL,
		seerr_username TEXT NOT NULL,
		linked_by TEXT NOT NULL DEFAULT 'self',
		linked_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE INDEX IF NOT EXISTS idx_links_discord_id ON links(discord_id)`,
	`CREATE INDEX IF NOT EXISTS idx_links_seerr_username ON links(LOWER(seerr_username))`,
	`CREATE TABLE IF NOT EXISTS webhook_events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		event_type TEXT NOT NULL,
		seerr_user_id INTEGER NOT NULL DEFAULT 0,
		payload TEXT,
		processed INTEGER NOT NULL DEFAULT 0,
		sent_dm INTEGER NOT NULL DEFAULT 0,
		sent_channel INTEGER NOT NULL DEFAULT 0,
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE INDEX IF NOT EXISTS idx_webhook_events_created ON webhook_events(created_at)`,
}

func (s *Store) migrate() error {
	for _, stmt := range migrations {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}
	return nil
}

// UpsertLink creates the link, or refreshes it when the exact same
// Discord-to-Seerr pair already exists. If either side is already linked
// elsewhere it returns a *ConflictError and leaves the store unchanged.
func (s *Store) UpsertLink(ctx context.Context, link Link) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	existing, err := findOneTx(ctx, tx, "discord_id = ?", link.DiscordID)
	if err != nil {
		return err
	}
	if existing != nil && !sameAccount(*existing, link) {
		return &ConflictError{Field: "discord_id", Existing: *existing}
	}

	byName, err := findOneTx(ctx, tx, "LOWER(seerr_username) = LOWER(?)", link.SeerrUsername)
	if err != nil {
		return err
	}
	if byName != nil && byName.DiscordID != link.DiscordID {
		return &ConflictError{Field: "seerr_username", Existing: *byName}
	}

	if existing != nil {
		_, err = tx.ExecContext(ctx,
			`UPDATE links SET seerr_user_id = ?, seerr_username = ?, linked_by = ?, linked_at = CURRENT_TIMESTAMP
			 WHERE discord_id = ?`,
			link.SeerrUserID, link.SeerrUsername, link.LinkedBy, link.DiscordID)
	} else {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO links (discord_id, seerr_user_id, seerr_username, linked_by) VALUES (?, ?, ?, ?)`,
			link.DiscordID, link.SeerrUserID, link.SeerrUsername, link.LinkedBy)
	}
	if err != nil {
		return fmt.Errorf("failed to write link: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit link: %w", err)
	}
	return nil
}

// ForceLink installs the link unconditionally, removing any existing link
// on either side in the same transaction. It returns the displaced links
// so callers can log the takeover. An empty slice means nothing was
// displaced.
func (s *Store) ForceLink(ctx context.Context, link Link) ([]Link, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	displaced, err := findAllTx(ctx, tx,
		"discord_id = ? OR LOWER(seerr_username) = LOWER(?)", link.DiscordID, link.SeerrUsername)
	if err != nil {
		return nil, err
	}

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM links WHERE discord_id = ? OR LOWER(seerr_username) = LOWER(?)`,
		link.DiscordID, link.SeerrUsername); err != nil {
		return nil, fmt.Errorf("failed to clear prior links: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO links (discord_id, seerr_user_id, seerr_username, linked_by) VALUES (?, ?, ?, ?)`,
		link.DiscordID, link.SeerrUserID, link.SeerrUsername, link.LinkedBy); err != nil {
		return nil, fmt.Errorf("failed to write link: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit link: %w", err)
	}

	// A displaced row matching the new pair exactly is a re-link, not a
	// takeover worth reporting.
	kept := displaced[:0]
	for _, d := range displaced {
		if !sameAccount(d, link) || d.DiscordID != link.DiscordID {
			kept = append(kept, d)
		}
	}
	return kept, nil
}

// RemoveLink deletes the link for a Discord ID. It reports whether a link
// existed.
func (s *Store) RemoveLink(ctx context.Context, discordID string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM links WHERE discord_id = ?`, discordID)
	if err != nil {
		return false, fmt.Errorf("failed to remove link: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to count removed links: %w", err)
	}
	return n > 0, nil
}

// RemoveLinkBySeerrUsername deletes the link for a Seerr username. It
// reports whether a link existed.
func (s *Store) RemoveLinkBySeerrUsername(ctx context.Context, username string) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM links WHERE LOWER(seerr_username) = LOWER(?)`, username)
	if err != nil {
		return false, fmt.Errorf("failed to remove link: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to count removed links: %w", err)
	}
	return n > 0, nil
}

// FindByDiscordID returns the link for a Discord ID, or ErrNotFound.
func (s *Store) FindByDiscordID(ctx context.Context, discordID string) (*Link, error) {
	link, err := s.findOne(ctx, "discord_id = ?", discordID)
	if err != nil {
		return nil, err
	}
	if link == nil {
		return nil, ErrNotFound
	}
	return link, nil
}

// FindBySeerrUsername returns the link for a Seerr username
// (case-insensitive), or ErrNotFound.
func (s *Store) FindBySeerrUsername(ctx context.Context, username string) (*Link, error) {
	link, err := s.findOne(ctx, "LOWER(seerr_username) = LOWER(?)", username)
	if err != nil {
		return nil, err
	}
	if link == nil {
		return nil, ErrNotFound
	}
	return link, nil
}

// ListLinks returns all links ordered by Seerr username.
func (s *Store) ListLinks(ctx context.Context) ([]Link, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT discord_id, seerr_user_id, seerr_username, linked_by, linked_at
		 FROM links ORDER BY LOWER(seerr_username), linked_at`)
	if err != nil {
		return nil, fmt.Errorf("failed to list links: %w", err)
	}
	defer rows.Close()
	return scanLinks(rows)
}

// FindConflicts returns groups of links sharing a Discord ID or a Seerr
// username. A healthy store returns no conflicts; duplicates can only
// come from data written outside the write-time checks.
func (s *Store) FindConflicts(ctx context.Context) ([]Conflict, error) {
	var conflicts []Conflict

	byDiscord, err := s.duplicateKeys(ctx, "discord_id", "discord_id")
	if err != nil {
		return nil, err
	}
	for _, key := range byDiscord {
		links, err := s.findAll(ctx, "discord_id = ?", key)
		if err != nil {
			return nil, err
		}
		conflicts = append(conflicts, Conflict{Field: "discord_id", Value: key, Links: links})
	}

	byName, err := s.duplicateKeys(ctx, "LOWER(seerr_username)", "seerr_username")
	if err != nil {
		return nil, err
	}
	for _, key := range byName {
		links, err := s.findAll(ctx, "LOWER(seerr_username) = ?", key)
		if err != nil {
			return nil, err
		}
		conflicts = append(conflicts, Conflict{Field: "seerr_username", Value: key, Links: links})
	}

	return conflicts, nil
}

// duplicateKeys returns the values of groupExpr that appear on more than
// one row.
func (s *Store) duplicateKeys(ctx context.Context, groupExpr, field string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		fmt.Sprintf(`SELECT %s FROM links GROUP BY %s HAVING COUNT(*) > 1`, groupExpr, groupExpr))
	if err != nil {
		return nil, fmt.Errorf("failed to scan for duplicate %s: %w", field, err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, fmt.Errorf("failed to scan duplicate key: %w", err)
		}
		keys = append(keys, key)
	}
	return keys, rows.Err()
}

func (s *Store) findOne(ctx context.Context, where string, args ...any) (*Link, error) {
	links, err := s.findAll(ctx, where, args...)
	if err != nil {
		return nil, err
	}
	if len(links) == 0 {
		return nil, nil
	}
	return &links[0], nil
}

func (s *Store) findAll(ctx context.Context, where string, args ...any) ([]Link, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT discord_id, seerr_user_id, seerr_username, linked_by, linked_at FROM links WHERE `+where+
			` ORDER BY linked_at`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query links: %w", err)
	}
	defer rows.Close()
	return scanLinks(rows)
}

func findOneTx(ctx context.Context, tx *sql.Tx, where string, args ...any) (*Link, error) {
	links, err := findAllTx(ctx, tx, where, args...)
	if err != nil {
		return nil, err
	}
	if len(links) == 0 {
		return nil, nil
	}
	return &links[0], nil
}

func findAllTx(ctx context.Context, tx *sql.Tx, where string, args ...any) ([]Link, error) {
	rows, err := tx.QueryContext(ctx,
		`SELECT discord_id, seerr_user_id, seerr_username, linked_by, linked_at FROM links WHERE `+where+
			` ORDER BY linked_at`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query links: %w", err)
	}
	defer rows.Close()
	return scanLinks(rows)
}

func scanLinks(rows *sql.Rows) ([]Link, error) {
	var links []Link
	for rows.Next() {
		var l Link
		var linkedAt string
		if err := rows.Scan(&l.DiscordID, &l.SeerrUserID, &l.SeerrUsername, &l.LinkedBy, &linkedAt); err != nil {
			return nil, fmt.Errorf("failed to scan link: %w", err)
		}
		l.LinkedAt = parseTimestamp(linkedAt)
		links = append(links, l)
	}
	return links, rows.Err()
}

// parseTimestamp handles the formats SQLite emits for CURRENT_TIMESTAMP.
func parseTimestamp(s string) time.Time {
	for _, layout := range []string{
		"2006-01-02 15:04:05",
		time.RFC3339,
		"2006-01-02 15:04:05.999999999-07:00",
	} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

// sameAccount reports whether two links point at the same Seerr account.
func sameAccount(a, b Link) bool {
	return a.SeerrUserID == b.SeerrUserID &&
		strings.EqualFold(a.SeerrUsername, b.SeerrUsername)
}
