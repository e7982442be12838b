// Discordeerr - Seerr Request Notifications for Discord
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/discordeerr

// Package models defines the Seerr webhook payload and its normalized
// event form.
package models

import "strings"

// MediaExtra is a name/value pair attached to the webhook payload.
// Seerr uses these for request details such as the season list of a TV
// request ("Requested Seasons": "1, 2").
type MediaExtra struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// WebhookPayload is the flattened JSON body Seerr posts to the webhook
// endpoint. Every field is optional: Seerr omits whole sections depending
// on the notification type, and payload templates are user-editable, so
// nothing here may be assumed present.
type WebhookPayload struct {
	NotificationType string `json:"notification_type"`
	Event            string `json:"event"`
	Subject          string `json:"subject"`
	Message          string `json:"message"`
	Image            string `json:"image"`

	// Media section.
	MediaType     string `json:"media_type"`
	MediaTmdbID   string `json:"media_tmdbid"`
	MediaTvdbID   string `json:"media_tvdbid"`
	MediaStatus   string `json:"media_status"`
	MediaStatus4K string `json:"media_status4k"`

	// Request section.
	RequestID                   string `json:"request_id"`
	RequestedByEmail            string `json:"requestedBy_email"`
	RequestedByUsername         string `json:"requestedBy_username"`
	RequestedByAvatar           string `json:"requestedBy_avatar"`
	RequestedBySettingsDiscord  string `json:"requestedBy_settings_discordId"`
	RequestedBySettingsTelegram string `json:"requestedBy_settings_telegramChatId"`

	// Recipient section: the Seerr user this notification is for.
	NotifyUserEmail            string `json:"notifyuser_email"`
	NotifyUserUsername         string `json:"notifyuser_username"`
	NotifyUserAvatar           string `json:"notifyuser_avatar"`
	NotifyUserSettingsDiscord  string `json:"notifyuser_settings_discordId"`
	NotifyUserSettingsTelegram string `json:"notifyuser_settings_telegramChatId"`

	// Issue section.
	IssueID                   string `json:"issue_id"`
	IssueType                 string `json:"issue_type"`
	IssueStatus               string `json:"issue_status"`
	ReportedByEmail           string `json:"reportedBy_email"`
	ReportedByUsername        string `json:"reportedBy_username"`
	ReportedByAvatar          string `json:"reportedBy_avatar"`
	ReportedBySettingsDiscord string `json:"reportedBy_settings_discordId"`

	// Comment section.
	CommentMessage             string `json:"comment_message"`
	CommentedByUsername        string `json:"commentedBy_username"`
	CommentedByAvatar          string `json:"commentedBy_avatar"`
	CommentedBySettingsDiscord string `json:"commentedBy_settings_discordId"`

	Extra []MediaExtra `json:"extra"`
}

// RequestedSeasons returns the season list of a TV request from the extra
// pairs, or "" when absent.
func (p *WebhookPayload) RequestedSeasons() string {
	for _, e := range p.Extra {
		if strings.Contains(strings.ToLower(e.Name), "season") && e.Value != "" {
			return e.Value
		}
	}
	return ""
}
