// Discordeerr - Seerr Request Notifications for Discord
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/discordeerr

// Package notify renders normalized Seerr events into Discord messages
// and delivers them, DM first with channel fallback.
package notify

import (
	"strings"

	"github.com/bwmarrin/discordgo"

	"github.com/tomtom215/discordeerr/internal/models"
)

// Embed colors per notification family.
const (
	colorOrange = 0xE67E22 // pending action
	colorPurple = 0x9B59B6 // approved, moving through processing
	colorRed    = 0xE74C3C // declined or failed
	colorGreen  = 0x2ECC71 // available or resolved
	colorBlue   = 0x3498DB // informational
	colorGold   = 0xF1C40F // reopened
)

// placeholderTitle stands in when a payload carries no subject.
const placeholderTitle = "Unknown"

// Formatter turns notification events into rendered Discord messages.
type Formatter struct {
	// seerrURL is the Seerr web root used for media links and buttons.
	seerrURL string
}

// NewFormatter creates a formatter linking back to the given Seerr
// instance.
func NewFormatter(seerrURL string) *Formatter {
	return &Formatter{seerrURL: strings.TrimRight(seerrURL, "/")}
}

// RenderedMessage is a ready-to-send Discord message.
type RenderedMessage struct {
	Embed      *discordgo.MessageEmbed
	Components []discordgo.MessageComponent
}

// Format renders an event. It never fails: missing payload fields degrade
// to placeholders so a sparse or unknown payload still produces a usable
// message.
func (f *Formatter) Format(event *models.NotificationEvent) *RenderedMessage {
	p := event.Payload

	embed := &discordgo.MessageEmbed{
		Title:       title(event),
		Description: p.Message,
		Color:       color(event.Type),
	}

	if subject := p.Subject; subject != "" {
		// The subject ("Dune (2021)") is the media name; surface it as a
		// field so the type-specific title stays scannable.
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name:   "Title",
			Value:  subject,
			Inline: false,
		})
	} else {
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name:   "Title",
			Value:  placeholderTitle,
			Inline: false,
		})
	}

	if mediaURL := f.mediaURL(p); mediaURL != "" {
		embed.URL = mediaURL
	}
	if p.Image != "" {
		embed.Thumbnail = &discordgo.MessageEmbedThumbnail{URL: p.Image}
	}
	if p.RequestedByUsername != "" {
		embed.Author = &discordgo.MessageEmbedAuthor{
			Name:    "Requested by " + p.RequestedByUsername,
			IconURL: p.RequestedByAvatar,
		}
	}

	if p.MediaType != "" {
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name:   "Type",
			Value:  strings.ToUpper(p.MediaType[:1]) + p.MediaType[1:],
			Inline: true,
		})
	}
	if status := statusText(event.Type); status != "" {
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name:   "Status",
			Value:  status,
			Inline: true,
		})
	}
	if seasons := p.RequestedSeasons(); seasons != "" && p.MediaType == "tv" {
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name:   "Seasons",
			Value:  seasons,
			Inline: true,
		})
	}
	if event.Type == models.TypeRequestFailed && p.Message != "" {
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name:   "Error",
			Value:  truncate(p.Message, 1024),
			Inline: false,
		})
	}
	if event.Type == models.TypeIssueComment && p.CommentMessage != "" {
		name := "Comment"
		if p.CommentedByUsername != "" {
			name = "Comment from " + p.CommentedByUsername
		}
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name:   name,
			Value:  truncate(p.CommentMessage, 1024),
			Inline: false,
		})
	}
	if event.IsIssue() && p.IssueType != "" {
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name:   "Issue Type",
			Value:  p.IssueType,
			Inline: true,
		})
	}

	return &RenderedMessage{
		Embed:      embed,
		Components: f.components(event),
	}
}

// components builds the link-button row for the event.
func (f *Formatter) components(event *models.NotificationEvent) []discordgo.MessageComponent {
	if f.seerrURL == "" {
		return nil
	}

	var button discordgo.Button
	if event.IsIssue() {
		url := f.seerrURL + "/issues"
		if id := event.Payload.IssueID; id != "" {
			url += "/" + id
		}
		button = discordgo.Button{
			Label: "View Issue",
			Style: discordgo.LinkButton,
			URL:   url,
		}
	} else {
		button = discordgo.Button{
			Label: "View Requests",
			Style: discordgo.LinkButton,
			URL:   f.seerrURL + "/requests",
		}
	}

	return []discordgo.MessageComponent{
		discordgo.ActionsRow{Components: []discordgo.MessageComponent{button}},
	}
}

// mediaURL links the embed to the media page when the payload names one.
func (f *Formatter) mediaURL(p *models.WebhookPayload) string {
	if f.seerrURL == "" || p.MediaTmdbID == "" {
		return ""
	}
	if p.MediaType == "tv" {
		return f.seerrURL + "/tv/" + p.MediaTmdbID
	}
	return f.seerrURL + "/movie/" + p.MediaTmdbID
}

// title maps the event type to a human headline.
func title(event *models.NotificationEvent) string {
	switch event.Type {
	case models.TypeRequestPending:
		return "New Request Pending Approval"
	case models.TypeRequestAutoApproved:
		return "Request Auto-Approved"
	case models.TypeRequestApproved:
		return "Request Approved"
	case models.TypeRequestDeclined:
		return "Request Declined"
	case models.TypeRequestAvailable:
		return "Now Available"
	case models.TypeRequestFailed:
		return "Request Failed"
	case models.TypeIssueReported:
		return "Issue Reported"
	case models.TypeIssueComment:
		return "New Issue Comment"
	case models.TypeIssueResolved:
		return "Issue Resolved"
	case models.TypeIssueReopened:
		return "Issue Reopened"
	case models.TypeTest:
		return "Test Notification"
	}
	// Unknown types get their raw name so operators can see what Seerr
	// started sending.
	return "Notification: " + string(event.Type)
}

// statusText maps the event type to the request status line.
func statusText(t models.NotificationType) string {
	switch t {
	case models.TypeRequestPending:
		return "Pending Approval"
	case models.TypeRequestAutoApproved, models.TypeRequestApproved:
		return "Processing"
	case models.TypeRequestDeclined:
		return "Declined"
	case models.TypeRequestAvailable:
		return "Available"
	case models.TypeRequestFailed:
		return "Failed"
	case models.TypeIssueReported, models.TypeIssueReopened:
		return "Open"
	case models.TypeIssueResolved:
		return "Resolved"
	}
	return ""
}

// color maps the event type to the embed accent color.
func color(t models.NotificationType) int {
	switch t {
	case models.TypeRequestPending:
		return colorOrange
	case models.TypeRequestAutoApproved, models.TypeRequestApproved:
		return colorPurple
	case models.TypeRequestDeclined, models.TypeRequestFailed:
		return colorRed
	case models.TypeRequestAvailable, models.TypeIssueResolved:
		return colorGreen
	case models.TypeIssueReported:
		return colorOrange
	case models.TypeIssueReopened:
		return colorGold
	}
	return colorBlue
}

// truncate clips s to max runes with an ellipsis. Discord caps embed
// field values at 1024 characters.
func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max-1]) + "…"
}
