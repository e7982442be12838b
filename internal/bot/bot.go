// Discordeerr - Seerr Request Notifications for Discord
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/discordeerr

// Package bot runs the Discord gateway session: it delivers notifications
// (DM and channel) and serves the slash command surface for account
// linking and administration.
package bot

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/tomtom215/discordeerr/internal/logging"
	"github.com/tomtom215/discordeerr/internal/notify"
	"github.com/tomtom215/discordeerr/internal/seerr"
	"github.com/tomtom215/discordeerr/internal/store"
)

// LinkStore is the link-store surface the command handlers use.
type LinkStore interface {
	UpsertLink(ctx context.Context, link store.Link) error
	ForceLink(ctx context.Context, link store.Link) ([]store.Link, error)
	RemoveLink(ctx context.Context, discordID string) (bool, error)
	RemoveLinkBySeerrUsername(ctx context.Context, username string) (bool, error)
	FindByDiscordID(ctx context.Context, discordID string) (*store.Link, error)
	FindBySeerrUsername(ctx context.Context, username string) (*store.Link, error)
	ListLinks(ctx context.Context) ([]store.Link, error)
	FindConflicts(ctx context.Context) ([]store.Conflict, error)
	Ping(ctx context.Context) error
}

// SeerrAPI is the Seerr client surface the command handlers use.
type SeerrAPI interface {
	TestConnection(ctx context.Context) (string, error)
	GetUsers(ctx context.Context) ([]seerr.User, error)
	GetUserByID(ctx context.Context, id int64) (*seerr.User, error)
	GetUserByUsername(ctx context.Context, username string) (*seerr.User, error)
	FindUserByDiscordID(ctx context.Context, discordID string) (*seerr.User, error)
	GetUserSettings(ctx context.Context, userID int64) (*seerr.UserSettings, error)
	GetRequestStats(ctx context.Context, userID int64) (*seerr.RequestStats, error)
	VerifyAdmin(ctx context.Context, userID int64) (bool, error)
}

// Config holds bot construction parameters.
type Config struct {
	// Token is the bot token, without the "Bot " prefix.
	Token string

	// GuildID scopes command registration to one guild; empty registers
	// globally (propagation can take up to an hour).
	GuildID string
}

// Bot is the Discord gateway session plus command handling state.
type Bot struct {
	session *discordgo.Session
	store   LinkStore
	seerr   SeerrAPI
	guildID string

	ready atomic.Bool

	mu         sync.Mutex
	registered []*discordgo.ApplicationCommand
}

// New creates the bot and wires its gateway handlers. The session is not
// opened until Serve runs.
func New(cfg Config, linkStore LinkStore, seerrAPI SeerrAPI) (*Bot, error) {
	session, err := discordgo.New("Bot " + cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("failed to create discord session: %w", err)
	}

	session.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMessages |
		discordgo.IntentsDirectMessages

	b := &Bot{
		session: session,
		store:   linkStore,
		seerr:   seerrAPI,
		guildID: cfg.GuildID,
	}

	session.AddHandler(func(s *discordgo.Session, r *discordgo.Ready) {
		b.ready.Store(true)
		logging.Info().
			Str("username", r.User.Username).
			Int("guilds", len(r.Guilds)).
			Msg("discord gateway ready")
	})
	session.AddHandler(func(s *discordgo.Session, d *discordgo.Disconnect) {
		b.ready.Store(false)
		logging.Warn().Msg("discord gateway disconnected")
	})
	session.AddHandler(b.handleInteraction)

	return b, nil
}

// Ready reports whether the gateway session is connected.
func (b *Bot) Ready() bool {
	return b.ready.Load()
}

// Serve implements suture.Service: it opens the gateway session, registers
// the slash commands, and holds the connection until the context ends.
func (b *Bot) Serve(ctx context.Context) error {
	if err := b.session.Open(); err != nil {
		return fmt.Errorf("failed to open discord gateway: %w", err)
	}
	defer func() {
		b.ready.Store(false)
		if err := b.session.Close(); err != nil {
			logging.Error().Err(err).Msg("failed to close discord session")
		}
	}()

	if err := b.registerCommands(); err != nil {
		return err
	}

	<-ctx.Done()
	return ctx.Err()
}

// String implements fmt.Stringer for supervisor logging.
func (b *Bot) String() string {
	return "discord-bot"
}

// registerCommands upserts the slash command table.
func (b *Bot) registerCommands() error {
	appID := b.session.State.User.ID
	registered := make([]*discordgo.ApplicationCommand, 0, len(commandDefinitions))
	for _, def := range commandDefinitions {
		cmd, err := b.session.ApplicationCommandCreate(appID, b.guildID, def)
		if err != nil {
			return fmt.Errorf("failed to register command %s: %w", def.Name, err)
		}
		registered = append(registered, cmd)
	}

	b.mu.Lock()
	b.registered = registered
	b.mu.Unlock()

	logging.Info().Int("count", len(registered)).Str("guild", b.guildID).Msg("slash commands registered")
	return nil
}

// resetCommands deletes every registered command (including stale ones
// from previous runs) and registers the current table fresh.
func (b *Bot) resetCommands() error {
	appID := b.session.State.User.ID
	existing, err := b.session.ApplicationCommands(appID, b.guildID)
	if err != nil {
		return fmt.Errorf("failed to list commands: %w", err)
	}
	for _, cmd := range existing {
		if err := b.session.ApplicationCommandDelete(appID, b.guildID, cmd.ID); err != nil {
			return fmt.Errorf("failed to delete command %s: %w", cmd.Name, err)
		}
	}
	return b.registerCommands()
}

// SendDM implements notify.Messenger: deliver a rendered message to the
// user's DM channel.
func (b *Bot) SendDM(ctx context.Context, discordID string, msg *notify.RenderedMessage) error {
	channel, err := b.session.UserChannelCreate(discordID, discordgo.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("failed to open DM channel: %w", err)
	}
	return b.send(ctx, channel.ID, msg)
}

// SendChannel implements notify.Messenger: post a rendered message to a
// channel.
func (b *Bot) SendChannel(ctx context.Context, channelID string, msg *notify.RenderedMessage) error {
	return b.send(ctx, channelID, msg)
}

func (b *Bot) send(ctx context.Context, channelID string, msg *notify.RenderedMessage) error {
	_, err := b.session.ChannelMessageSendComplex(channelID, &discordgo.MessageSend{
		Embed:      msg.Embed,
		Components: msg.Components,
	}, discordgo.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("failed to send message: %w", err)
	}
	return nil
}

// commandTimeout bounds the work behind one slash command, including the
// Seerr round trips.
const commandTimeout = 30 * time.Second
