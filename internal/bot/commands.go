// Discordeerr - Seerr Request Notifications for Discord
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/discordeerr

package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"

	"github.com/tomtom215/discordeerr/internal/logging"
	"github.com/tomtom215/discordeerr/internal/metrics"
	"github.com/tomtom215/discordeerr/internal/seerr"
	"github.com/tomtom215/discordeerr/internal/store"
)

// commandDefinitions is the full slash command table.
var commandDefinitions = []*discordgo.ApplicationCommand{
	{
		Name:        "link-account",
		Description: "Link your Discord account to your Seerr account",
		Options: []*discordgo.ApplicationCommandOption{
			{
				Type:        discordgo.ApplicationCommandOptionString,
				Name:        "seerr-username",
				Description: "Your Seerr username",
				Required:    true,
			},
		},
	},
	{
		Name:        "unlink-account",
		Description: "Remove the link between your Discord and Seerr accounts",
	},
	{
		Name:        "status",
		Description: "Show your account link and request statistics",
	},
	{
		Name:        "health",
		Description: "Admin: check bot, database, and Seerr connectivity",
	},
	{
		Name:        "users",
		Description: "Admin: list all linked accounts",
	},
	{
		Name:        "force-link-member",
		Description: "Admin: link a server member to a Seerr account, displacing existing links",
		Options: []*discordgo.ApplicationCommandOption{
			{
				Type:        discordgo.ApplicationCommandOptionUser,
				Name:        "member",
				Description: "The server member to link",
				Required:    true,
			},
			{
				Type:        discordgo.ApplicationCommandOptionString,
				Name:        "seerr-username",
				Description: "The Seerr username to link them to",
				Required:    true,
			},
		},
	},
	{
		Name:        "unlink-member",
		Description: "Admin: unlink a server member",
		Options: []*discordgo.ApplicationCommandOption{
			{
				Type:        discordgo.ApplicationCommandOptionUser,
				Name:        "member",
				Description: "The server member to unlink",
				Required:    true,
			},
		},
	},
	{
		Name:        "force-link",
		Description: "Admin: link a raw Discord ID to a Seerr account, displacing existing links",
		Options: []*discordgo.ApplicationCommandOption{
			{
				Type:        discordgo.ApplicationCommandOptionString,
				Name:        "discord-id",
				Description: "The Discord user ID (17-20 digits)",
				Required:    true,
			},
			{
				Type:        discordgo.ApplicationCommandOptionString,
				Name:        "seerr-username",
				Description: "The Seerr username to link",
				Required:    true,
			},
		},
	},
	{
		Name:        "unlink-user",
		Description: "Admin: unlink by Seerr username",
		Options: []*discordgo.ApplicationCommandOption{
			{
				Type:        discordgo.ApplicationCommandOptionString,
				Name:        "seerr-username",
				Description: "The Seerr username to unlink",
				Required:    true,
			},
		},
	},
	{
		Name:        "sync",
		Description: "Admin: re-register the slash command table",
	},
	{
		Name:        "check-discord-id",
		Description: "Admin: look up link status for a Discord ID and report conflicts",
		Options: []*discordgo.ApplicationCommandOption{
			{
				Type:        discordgo.ApplicationCommandOptionString,
				Name:        "discord-id",
				Description: "The Discord user ID to check",
				Required:    true,
			},
		},
	},
	{
		Name:        "reset-commands",
		Description: "Admin: delete and re-register all slash commands",
	},
}

// handleInteraction routes slash command invocations.
func (b *Bot) handleInteraction(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if i.Type != discordgo.InteractionApplicationCommand {
		return
	}

	name := i.ApplicationCommandData().Name
	invoker := interactionUser(i)
	if invoker == nil {
		return
	}

	// Ack immediately; command work may take several Seerr round trips.
	err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{Flags: discordgo.MessageFlagsEphemeral},
	})
	if err != nil {
		logging.Error().Err(err).Str("command", name).Msg("failed to ack interaction")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	opts := optionMap(i.ApplicationCommandData().Options)
	content, cmdErr := b.runCommand(ctx, name, invoker, opts)
	if cmdErr != nil {
		logging.Error().Err(cmdErr).Str("command", name).Str("invoker", invoker.ID).Msg("command failed")
		metrics.RecordCommand(name, "error")
		content = "Something went wrong handling the command. Check the bot logs."
	} else {
		metrics.RecordCommand(name, "ok")
	}

	if _, err := s.InteractionResponseEdit(i.Interaction, &discordgo.WebhookEdit{
		Content: &content,
	}); err != nil {
		logging.Error().Err(err).Str("command", name).Msg("failed to edit interaction response")
	}
}

// runCommand executes one command and returns the reply text.
func (b *Bot) runCommand(ctx context.Context, name string, invoker *discordgo.User, opts options) (string, error) {
	switch name {
	case "link-account":
		return b.linkAccount(ctx, invoker.ID, opts.str("seerr-username"))
	case "unlink-account":
		return b.unlinkAccount(ctx, invoker.ID)
	case "status":
		return b.statusSummary(ctx, invoker.ID)
	case "health":
		return b.adminGated(ctx, name, invoker.ID, b.healthSummary)
	case "users":
		return b.adminGated(ctx, name, invoker.ID, b.usersSummary)
	case "force-link-member":
		return b.adminGated(ctx, name, invoker.ID, func(ctx context.Context) (string, error) {
			return b.forceLink(ctx, opts.userID("member"), opts.str("seerr-username"))
		})
	case "unlink-member":
		return b.adminGated(ctx, name, invoker.ID, func(ctx context.Context) (string, error) {
			return b.unlinkDiscordID(ctx, opts.userID("member"))
		})
	case "force-link":
		return b.adminGated(ctx, name, invoker.ID, func(ctx context.Context) (string, error) {
			return b.forceLink(ctx, opts.str("discord-id"), opts.str("seerr-username"))
		})
	case "unlink-user":
		return b.adminGated(ctx, name, invoker.ID, func(ctx context.Context) (string, error) {
			return b.unlinkSeerrUser(ctx, opts.str("seerr-username"))
		})
	case "sync":
		return b.adminGated(ctx, name, invoker.ID, func(context.Context) (string, error) {
			if err := b.registerCommands(); err != nil {
				return "", err
			}
			return "Command table re-registered.", nil
		})
	case "check-discord-id":
		return b.adminGated(ctx, name, invoker.ID, func(ctx context.Context) (string, error) {
			return b.checkDiscordID(ctx, opts.str("discord-id"))
		})
	case "reset-commands":
		return b.adminGated(ctx, name, invoker.ID, func(context.Context) (string, error) {
			if err := b.resetCommands(); err != nil {
				return "", err
			}
			return "All commands deleted and re-registered.", nil
		})
	}
	return "Unknown command.", nil
}

// linkAccount links the invoker to a Seerr account. The invoker must have
// their Discord ID registered in the target Seerr profile; this is the
// proof of ownership that keeps one user from claiming another's account.
func (b *Bot) linkAccount(ctx context.Context, invokerID, username string) (string, error) {
	if username == "" {
		return "Usage: /link-account seerr-username:<your Seerr username>", nil
	}

	user, err := b.seerr.GetUserByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, seerr.ErrUserNotFound) {
			return fmt.Sprintf("No Seerr account named **%s** was found.", username), nil
		}
		return "", fmt.Errorf("seerr lookup failed: %w", err)
	}

	settings, err := b.seerr.GetUserSettings(ctx, user.ID)
	if err != nil {
		return "", fmt.Errorf("seerr settings lookup failed: %w", err)
	}
	if settings.DiscordID == "" {
		return fmt.Sprintf("The Seerr account **%s** has no Discord ID set. "+
			"Add your Discord ID under Settings → Notifications in Seerr, then retry.", username), nil
	}
	if settings.DiscordID != invokerID {
		return fmt.Sprintf("The Seerr account **%s** is registered to a different Discord ID. "+
			"Update the Discord ID in your Seerr profile if this account is yours.", username), nil
	}

	err = b.store.UpsertLink(ctx, store.Link{
		DiscordID:     invokerID,
		SeerrUserID:   user.ID,
		SeerrUsername: user.EffectiveUsername(),
		LinkedBy:      store.LinkedBySelf,
	})
	var conflict *store.ConflictError
	if errors.As(err, &conflict) {
		return conflictMessage(conflict), nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to save link: %w", err)
	}

	logging.Info().Str("discord_id", invokerID).Str("seerr_user", user.EffectiveUsername()).Msg("account linked")
	return fmt.Sprintf("Linked! You'll now receive request notifications for **%s** by DM.", user.EffectiveUsername()), nil
}

// unlinkAccount removes the invoker's own link.
func (b *Bot) unlinkAccount(ctx context.Context, invokerID string) (string, error) {
	removed, err := b.store.RemoveLink(ctx, invokerID)
	if err != nil {
		return "", fmt.Errorf("failed to remove link: %w", err)
	}
	if !removed {
		return "Your account isn't linked to anything.", nil
	}
	logging.Info().Str("discord_id", invokerID).Msg("account unlinked")
	return "Unlinked. You'll no longer receive request notifications by DM.", nil
}

// statusSummary shows the invoker's link and their Seerr request stats.
func (b *Bot) statusSummary(ctx context.Context, invokerID string) (string, error) {
	link, err := b.store.FindByDiscordID(ctx, invokerID)
	if errors.Is(err, store.ErrNotFound) {
		return "Your account isn't linked. Use `/link-account` to start receiving DM notifications.", nil
	}
	if err != nil {
		return "", fmt.Errorf("link lookup failed: %w", err)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Linked to Seerr account **%s** (since %s).\n",
		link.SeerrUsername, link.LinkedAt.Format("2006-01-02"))

	stats, err := b.seerr.GetRequestStats(ctx, link.SeerrUserID)
	if err != nil {
		sb.WriteString("Request statistics are unavailable right now.")
		logging.Warn().Err(err).Msg("request stats lookup failed")
		return sb.String(), nil
	}

	fmt.Fprintf(&sb, "Requests: %d total, %d pending, %d processing, %d available, %d declined.",
		stats.Total, stats.Pending, stats.Approved+stats.Processing, stats.Available, stats.Declined)
	return sb.String(), nil
}

// conflictMessage renders a link conflict for the invoker.
func conflictMessage(c *store.ConflictError) string {
	if c.Field == "discord_id" {
		return fmt.Sprintf("Your Discord account is already linked to **%s**. "+
			"Use `/unlink-account` first if you want to relink.", c.Existing.SeerrUsername)
	}
	return fmt.Sprintf("The Seerr account **%s** is already linked to another Discord user. "+
		"Ask an admin to resolve it with `/force-link` if this is wrong.", c.Existing.SeerrUsername)
}

// options indexes interaction options by name.
type options map[string]*discordgo.ApplicationCommandInteractionDataOption

func optionMap(opts []*discordgo.ApplicationCommandInteractionDataOption) options {
	m := make(options, len(opts))
	for _, opt := range opts {
		m[opt.Name] = opt
	}
	return m
}

func (o options) str(name string) string {
	if opt, ok := o[name]; ok {
		return strings.TrimSpace(opt.StringValue())
	}
	return ""
}

// userID returns the selected user's ID for a user-type option.
func (o options) userID(name string) string {
	if opt, ok := o[name]; ok {
		if v, ok := opt.Value.(string); ok {
			return v
		}
	}
	return ""
}

// interactionUser returns the invoking user for guild and DM contexts.
func interactionUser(i *discordgo.InteractionCreate) *discordgo.User {
	if i.Member != nil && i.Member.User != nil {
		return i.Member.User
	}
	return i.User
}
