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

	"github.com/go-playground/validator/v10"

	"github.com/tomtom215/discordeerr/internal/logging"
	"github.com/tomtom215/discordeerr/internal/metrics"
	"github.com/tomtom215/discordeerr/internal/seerr"
	"github.com/tomtom215/discordeerr/internal/store"
	"github.com/tomtom215/discordeerr/internal/validation"
)

const notAdminMessage = "You need a linked Seerr account with admin privileges to use this command."

// forceLinkInput is the validated input of /force-link and
// /force-link-member.
type forceLinkInput struct {
	DiscordID     string `validate:"required,discordid"`
	SeerrUsername string `validate:"required"`
}

// discordIDInput is the validated input of ID-targeted admin commands.
type discordIDInput struct {
	DiscordID string `validate:"required,discordid"`
}

// inputMessage renders a validation failure for the invoker.
func inputMessage(err error) string {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		switch {
		case fe.Field() == "SeerrUsername":
			return "A Seerr username is required."
		case fe.Tag() == "discordid":
			return fmt.Sprintf("`%v` is not a valid Discord ID (expected 17-20 digits).", fe.Value())
		default:
			return "A Discord ID is required."
		}
	}
	return "Invalid input."
}

// adminGated verifies the invoker's admin privilege against Seerr before
// running fn. The check is a fresh round trip on every invocation: a
// demoted admin loses access immediately, not when some cache expires.
func (b *Bot) adminGated(ctx context.Context, command, invokerID string, fn func(context.Context) (string, error)) (string, error) {
	link, err := b.store.FindByDiscordID(ctx, invokerID)
	if errors.Is(err, store.ErrNotFound) {
		metrics.RecordCommand(command, "denied")
		return notAdminMessage, nil
	}
	if err != nil {
		return "", fmt.Errorf("link lookup failed: %w", err)
	}

	isAdmin, err := b.seerr.VerifyAdmin(ctx, link.SeerrUserID)
	if err != nil {
		return "", fmt.Errorf("admin verification failed: %w", err)
	}
	if !isAdmin {
		metrics.RecordCommand(command, "denied")
		logging.Warn().
			Str("command", command).
			Str("invoker", invokerID).
			Str("seerr_user", link.SeerrUsername).
			Msg("admin command denied")
		return notAdminMessage, nil
	}

	return fn(ctx)
}

// healthSummary reports database, Seerr, and gateway health.
func (b *Bot) healthSummary(ctx context.Context) (string, error) {
	var sb strings.Builder
	sb.WriteString("**Health**\n")

	if err := b.store.Ping(ctx); err != nil {
		fmt.Fprintf(&sb, "Database: down (%v)\n", err)
	} else {
		sb.WriteString("Database: ok\n")
	}

	if version, err := b.seerr.TestConnection(ctx); err != nil {
		fmt.Fprintf(&sb, "Seerr: unreachable (%v)\n", err)
	} else {
		fmt.Fprintf(&sb, "Seerr: ok (v%s)\n", version)
	}

	if b.Ready() {
		sb.WriteString("Gateway: connected")
	} else {
		sb.WriteString("Gateway: disconnected")
	}
	return sb.String(), nil
}

// usersSummary lists all links and the Seerr account count.
func (b *Bot) usersSummary(ctx context.Context) (string, error) {
	links, err := b.store.ListLinks(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to list links: %w", err)
	}

	var sb strings.Builder
	if users, err := b.seerr.GetUsers(ctx); err == nil {
		fmt.Fprintf(&sb, "%d Seerr accounts, %d linked to Discord.\n", len(users), len(links))
	} else {
		fmt.Fprintf(&sb, "%d accounts linked to Discord (Seerr unreachable).\n", len(links))
	}

	if len(links) == 0 {
		sb.WriteString("No links yet.")
		return sb.String(), nil
	}
	for _, link := range links {
		fmt.Fprintf(&sb, "• **%s** ↔ <@%s> (%s, %s)\n",
			link.SeerrUsername, link.DiscordID, link.LinkedBy, link.LinkedAt.Format("2006-01-02"))
	}
	return strings.TrimRight(sb.String(), "\n"), nil
}

// forceLink links a Discord ID to a Seerr account, displacing whatever
// held either side. Used by /force-link and /force-link-member.
func (b *Bot) forceLink(ctx context.Context, discordID, username string) (string, error) {
	if err := validation.Struct(forceLinkInput{DiscordID: discordID, SeerrUsername: username}); err != nil {
		return inputMessage(err), nil
	}

	user, err := b.seerr.GetUserByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, seerr.ErrUserNotFound) {
			return fmt.Sprintf("No Seerr account named **%s** was found.", username), nil
		}
		return "", fmt.Errorf("seerr lookup failed: %w", err)
	}

	displaced, err := b.store.ForceLink(ctx, store.Link{
		DiscordID:     discordID,
		SeerrUserID:   user.ID,
		SeerrUsername: user.EffectiveUsername(),
		LinkedBy:      store.LinkedByAdmin,
	})
	if err != nil {
		return "", fmt.Errorf("failed to force link: %w", err)
	}

	for _, old := range displaced {
		logging.Info().
			Str("new_discord_id", discordID).
			Str("new_seerr_user", user.EffectiveUsername()).
			Str("displaced_discord_id", old.DiscordID).
			Str("displaced_seerr_user", old.SeerrUsername).
			Msg("force-link displaced an existing link")
	}

	msg := fmt.Sprintf("Force-linked <@%s> to **%s**.", discordID, user.EffectiveUsername())
	if len(displaced) > 0 {
		parts := make([]string, 0, len(displaced))
		for _, old := range displaced {
			parts = append(parts, fmt.Sprintf("<@%s> ↔ **%s**", old.DiscordID, old.SeerrUsername))
		}
		msg += " Displaced: " + strings.Join(parts, ", ") + "."
	}
	return msg, nil
}

// unlinkDiscordID removes a link by Discord ID. Used by /unlink-member.
func (b *Bot) unlinkDiscordID(ctx context.Context, discordID string) (string, error) {
	if err := validation.Struct(discordIDInput{DiscordID: discordID}); err != nil {
		return inputMessage(err), nil
	}
	removed, err := b.store.RemoveLink(ctx, discordID)
	if err != nil {
		return "", fmt.Errorf("failed to remove link: %w", err)
	}
	if !removed {
		return fmt.Sprintf("<@%s> isn't linked to any Seerr account.", discordID), nil
	}
	logging.Info().Str("discord_id", discordID).Msg("link removed by admin")
	return fmt.Sprintf("Unlinked <@%s>.", discordID), nil
}

// unlinkSeerrUser removes a link by Seerr username. Used by /unlink-user.
func (b *Bot) unlinkSeerrUser(ctx context.Context, username string) (string, error) {
	if username == "" {
		return "A Seerr username is required.", nil
	}
	removed, err := b.store.RemoveLinkBySeerrUsername(ctx, username)
	if err != nil {
		return "", fmt.Errorf("failed to remove link: %w", err)
	}
	if !removed {
		return fmt.Sprintf("**%s** isn't linked to any Discord account.", username), nil
	}
	logging.Info().Str("seerr_user", username).Msg("link removed by admin")
	return fmt.Sprintf("Unlinked **%s**.", username), nil
}

// checkDiscordID reports link status for an ID, whether any Seerr
// profile has it registered, and any uniqueness conflicts present in
// the store.
func (b *Bot) checkDiscordID(ctx context.Context, discordID string) (string, error) {
	if err := validation.Struct(discordIDInput{DiscordID: discordID}); err != nil {
		return inputMessage(err), nil
	}

	var sb strings.Builder
	link, err := b.store.FindByDiscordID(ctx, discordID)
	switch {
	case errors.Is(err, store.ErrNotFound):
		fmt.Fprintf(&sb, "<@%s> is not linked to any Seerr account.\n", discordID)
	case err != nil:
		return "", fmt.Errorf("link lookup failed: %w", err)
	default:
		fmt.Fprintf(&sb, "<@%s> is linked to **%s** (%s, since %s).\n",
			discordID, link.SeerrUsername, link.LinkedBy, link.LinkedAt.Format("2006-01-02"))
	}

	user, err := b.seerr.FindUserByDiscordID(ctx, discordID)
	switch {
	case errors.Is(err, seerr.ErrUserNotFound):
		sb.WriteString("No Seerr profile has this Discord ID registered.\n")
	case err != nil:
		logging.Warn().Err(err).Msg("seerr discord-id scan failed")
		sb.WriteString("Seerr profile check is unavailable right now.\n")
	default:
		fmt.Fprintf(&sb, "Registered in the Seerr profile of **%s**.\n", user.EffectiveUsername())
	}

	conflicts, err := b.store.FindConflicts(ctx)
	if err != nil {
		return "", fmt.Errorf("conflict scan failed: %w", err)
	}
	if len(conflicts) == 0 {
		sb.WriteString("No conflicts in the link table.")
		return sb.String(), nil
	}

	sb.WriteString("⚠ Conflicts found:\n")
	for _, c := range conflicts {
		fmt.Fprintf(&sb, "• duplicate %s `%s`:", c.Field, c.Value)
		for _, l := range c.Links {
			fmt.Fprintf(&sb, " <@%s>↔**%s**", l.DiscordID, l.SeerrUsername)
		}
		sb.WriteString("\n")
	}
	sb.WriteString("Resolve with `/force-link` or `/unlink-user`.")
	return sb.String(), nil
}
