// Discordeerr - Seerr Request Notifications for Discord
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/discordeerr

package seerr

// PermissionAdmin is the admin bit in the Seerr permissions bitmask.
const PermissionAdmin = 2

// User is a Seerr account as returned by the user endpoints.
type User struct {
	ID               int64  `json:"id"`
	Username         string `json:"username"`
	PlexUsername     string `json:"plexUsername"`
	JellyfinUsername string `json:"jellyfinUsername"`
	DisplayName      string `json:"displayName"`
	Email            string `json:"email"`
	Permissions      int64  `json:"permissions"`
	RequestCount     int64  `json:"requestCount"`
}

// EffectiveUsername returns the best display handle for the account.
// Seerr users created via Plex or Jellyfin import often have no local
// username, so fall through the identity fields in order.
func (u *User) EffectiveUsername() string {
	for _, name := range []string{u.Username, u.PlexUsername, u.JellyfinUsername, u.DisplayName, u.Email} {
		if name != "" {
			return name
		}
	}
	return ""
}

// IsAdmin reports whether the account holds admin privilege. The initial
// Seerr account (ID 1) is always an admin regardless of its bitmask.
func (u *User) IsAdmin() bool {
	return u.ID == 1 || u.Permissions&PermissionAdmin != 0
}

// UserSettings is the notification-relevant slice of a user's main
// settings.
type UserSettings struct {
	Username  string `json:"username"`
	DiscordID string `json:"discordId"`
}

// RequestStats aggregates a user's requests by status.
type RequestStats struct {
	Total      int
	Pending    int
	Approved   int
	Declined   int
	Processing int
	Available  int
}

// Request status codes used by the Seerr API.
const (
	statusPending    = 1
	statusApproved   = 2
	statusDeclined   = 3
	statusProcessing = 4
	statusAvailable  = 5
)

type usersPage struct {
	PageInfo struct {
		Pages   int `json:"pages"`
		Page    int `json:"page"`
		Results int `json:"results"`
	} `json:"pageInfo"`
	Results []User `json:"results"`
}

type requestsPage struct {
	PageInfo struct {
		Pages   int `json:"pages"`
		Page    int `json:"page"`
		Results int `json:"results"`
	} `json:"pageInfo"`
	Results []struct {
		ID     int64 `json:"id"`
		Status int   `json:"status"`
	} `json:"results"`
}

type statusResponse struct {
	Version string `json:"version"`
}
