// Discordeerr - Seerr Request Notifications for Discord
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/discordeerr

// Package main is the entry point for the Discordeerr server.
//
// Discordeerr relays Seerr (Overseerr/Jellyseerr) webhook notifications to
// Discord. Users who link their accounts with /link-account receive request
// updates by direct message; everything else lands in a shared channel.
//
// # Startup order
//
//  1. Configuration: Koanf v2 layered sources (env > config.yaml > defaults)
//  2. Link store: SQLite database for Discord/Seerr account links
//  3. Seerr client: API access with a circuit breaker
//  4. Discord bot: gateway session and slash commands
//  5. Dispatch worker: async queue between webhook intake and Discord
//  6. HTTP server: webhook receiver, health, and metrics endpoints
//
// All long-running components run under a suture supervisor tree, so a
// gateway disconnect or listener crash restarts that component without
// taking the process down.
//
// # Configuration
//
// Required environment variables:
//   - DISCORD_TOKEN: bot token
//   - SEERR_URL: base URL of the Seerr instance
//   - SEERR_API_KEY: Seerr API key
//   - NOTIFICATION_CHANNEL_ID: shared fallback channel
//
// Optional:
//   - DISCORD_GUILD_ID: register commands in one guild (instant propagation)
//   - WEBHOOK_AUTH_HEADER: shared secret for the webhook endpoint
//   - WEBHOOK_HOST / WEBHOOK_PORT: listener address (default 0.0.0.0:5000)
//   - DATABASE_PATH: SQLite file (default /data/discordeerr.db)
//   - LOG_LEVEL / LOG_FORMAT: logging tuning
//
// # Signal handling
//
// SIGINT and SIGTERM trigger graceful shutdown: the listener drains
// in-flight requests, the dispatch queue finishes its current event, and
// the gateway session closes.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tomtom215/discordeerr/internal/api"
	"github.com/tomtom215/discordeerr/internal/bot"
	"github.com/tomtom215/discordeerr/internal/config"
	"github.com/tomtom215/discordeerr/internal/logging"
	"github.com/tomtom215/discordeerr/internal/notify"
	"github.com/tomtom215/discordeerr/internal/seerr"
	"github.com/tomtom215/discordeerr/internal/store"
	"github.com/tomtom215/discordeerr/internal/supervisor"
	"github.com/tomtom215/discordeerr/internal/supervisor/services"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	logging.Info().
		Str("seerr_url", cfg.Seerr.URL).
		Str("db_path", cfg.Database.Path).
		Str("channel_id", cfg.Notify.ChannelID).
		Bool("webhook_auth", cfg.Webhook.AuthHeader != "").
		Msg("Configuration loaded")
	if cfg.Webhook.AuthHeader == "" {
		logging.Warn().Msg("WEBHOOK_AUTH_HEADER is not set; anyone who can reach the webhook port can post notifications")
	}

	linkStore, err := store.Open(cfg.Database.Path)
	if err != nil {
		logging.Fatal().Err(err).Str("path", cfg.Database.Path).Msg("Failed to open link store")
	}
	defer func() {
		if err := linkStore.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing link store")
		}
	}()
	logging.Info().Str("path", cfg.Database.Path).Msg("Link store ready")

	seerrClient := seerr.New(seerr.Config{
		BaseURL:          cfg.Seerr.URL,
		APIKey:           cfg.Seerr.APIKey,
		Timeout:          cfg.Seerr.Timeout,
		BreakerThreshold: cfg.Seerr.BreakerThreshold,
		BreakerTimeout:   cfg.Seerr.BreakerTimeout,
	})
	if version, err := seerrClient.TestConnection(context.Background()); err != nil {
		logging.Warn().Err(err).Msg("Seerr is unreachable at startup (will retry on demand)")
	} else {
		logging.Info().Str("version", version).Msg("Connected to Seerr")
	}

	discordBot, err := bot.New(bot.Config{
		Token:   cfg.Discord.Token,
		GuildID: cfg.Discord.GuildID,
	}, linkStore, seerrClient)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to create Discord bot")
	}

	dispatcher := notify.NewDispatcher(notify.DispatcherConfig{
		Messenger: discordBot,
		Links:     linkStore,
		Formatter: notify.NewFormatter(cfg.Seerr.URL),
		ChannelID: cfg.Notify.ChannelID,
		SendRate:  cfg.Notify.SendRate,
		SendBurst: cfg.Notify.SendBurst,
	})
	worker := notify.NewWorker(dispatcher, linkStore, cfg.Notify.QueueSize)

	router := api.NewRouter(api.RouterConfig{
		Webhook:          api.NewWebhookHandler(cfg.Webhook.AuthHeader, worker, linkStore),
		Health:           api.NewHealthHandler(linkStore, discordBot, seerrClient),
		WebhookRateLimit: cfg.Webhook.RateLimit,
	})

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Webhook.Host, cfg.Webhook.Port),
		Handler:      router,
		ReadTimeout:  cfg.Webhook.Timeout,
		WriteTimeout: cfg.Webhook.Timeout,
		IdleTimeout:  60 * time.Second,
	}

	tree := supervisor.NewTree(logging.Slog(), supervisor.DefaultTreeConfig())
	tree.AddDiscordService(discordBot)
	tree.AddDiscordService(worker)
	tree.AddAPIService(services.NewHTTPServerService(server, 10*time.Second))
	logging.Info().Str("addr", server.Addr).Msg("Services added to supervisor tree")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logging.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
		cancel()
	}()

	logging.Info().Msg("Starting supervisor tree")
	for err := range tree.ServeBackground(ctx) {
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor tree error")
		}
	}

	unstopped, _ := tree.UnstoppedServiceReport()
	for _, svc := range unstopped {
		logging.Warn().Str("service", svc.Name).Msg("Service failed to stop within timeout")
	}

	logging.Info().Msg("Stopped gracefully")
}
