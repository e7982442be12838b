// Discordeerr - Seerr Request Notifications for Discord
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/discordeerr

package store

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when no link matches the lookup key.
var ErrNotFound = errors.New("link not found")

// ConflictError reports a link write that would violate uniqueness on
// either side of the mapping. The store is unchanged when it is returned.
type ConflictError struct {
	// Field is the side that collided: "discord_id" or "seerr_username".
	Field string

	// Existing is the link already holding the contested value.
	Existing Link
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("link conflict on %s: %s is already linked to Seerr user %q (discord %s)",
		e.Field, e.contestedValue(), e.Existing.SeerrUsername, e.Existing.DiscordID)
}

func (e *ConflictError) contestedValue() string {
	if e.Field == "discord_id" {
		return e.Existing.DiscordID
	}
	return e.Existing.SeerrUsername
}
