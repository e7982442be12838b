// Discordeerr - Seerr Request Notifications for Discord
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/discordeerr

// Package config loads and validates Discordeerr configuration.
//
// Configuration is layered with clear precedence: environment variables
// override an optional YAML config file, which overrides built-in defaults.
// A local .env file is honored for development.
package config

import (
	"time"
)

// Config is the root configuration for the service.
type Config struct {
	Discord  DiscordConfig  `koanf:"discord"`
	Seerr    SeerrConfig    `koanf:"seerr"`
	Notify   NotifyConfig   `koanf:"notify"`
	Webhook  WebhookConfig  `koanf:"webhook"`
	Database DatabaseConfig `koanf:"database"`
	Logging  LoggingConfig  `koanf:"logging"`
}

// DiscordConfig holds the bot credentials and gateway options.
type DiscordConfig struct {
	// Token is the bot token (DISCORD_TOKEN). Required.
	Token string `koanf:"token"`

	// GuildID scopes slash command registration to a single guild for
	// instant propagation (DISCORD_GUILD_ID). Empty registers globally.
	GuildID string `koanf:"guild_id"`
}

// SeerrConfig holds the Seerr (Overseerr/Jellyseerr) API connection.
type SeerrConfig struct {
	// URL is the base URL of the Seerr instance (SEERR_URL). Required.
	URL string `koanf:"url"`

	// APIKey authenticates against the Seerr API (SEERR_API_KEY). Required.
	APIKey string `koanf:"api_key"`

	// Timeout bounds each Seerr API request.
	Timeout time.Duration `koanf:"timeout"`

	// BreakerThreshold is the consecutive-failure count that opens the
	// circuit breaker around Seerr API calls.
	BreakerThreshold uint32 `koanf:"breaker_threshold"`

	// BreakerTimeout is how long the breaker stays open before probing.
	BreakerTimeout time.Duration `koanf:"breaker_timeout"`
}

// NotifyConfig controls notification delivery.
type NotifyConfig struct {
	// ChannelID is the shared fallback channel (NOTIFICATION_CHANNEL_ID).
	// Required: every notification that cannot be delivered by DM lands here.
	ChannelID string `koanf:"channel_id"`

	// SendRate caps outbound Discord sends per second.
	SendRate float64 `koanf:"send_rate"`

	// SendBurst is the burst allowance for outbound sends.
	SendBurst int `koanf:"send_burst"`

	// QueueSize bounds the async dispatch queue between the webhook
	// receiver and the Discord sender.
	QueueSize int `koanf:"queue_size"`
}

// WebhookConfig holds the inbound HTTP listener settings.
type WebhookConfig struct {
	Host string `koanf:"host"`
	Port int    `koanf:"port"`

	// AuthHeader is the shared secret expected verbatim in the
	// Authorization header (WEBHOOK_AUTH_HEADER). Empty disables the
	// check and any caller can post webhooks.
	AuthHeader string `koanf:"auth_header"`

	// Timeout bounds request read/write on the HTTP server.
	Timeout time.Duration `koanf:"timeout"`

	// RateLimit is the per-IP request ceiling per minute on /webhook.
	RateLimit int `koanf:"rate_limit"`
}

// DatabaseConfig holds the SQLite link store location.
type DatabaseConfig struct {
	// Path is the SQLite database file (DATABASE_PATH).
	Path string `koanf:"path"`
}

// LoggingConfig mirrors logging.Config for the koanf layer.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// defaultConfig returns a Config with all default values. Defaults are
// applied first, then overridden by config file and env vars.
func defaultConfig() *Config {
	return &Config{
		Discord: DiscordConfig{
			Token:   "",
			GuildID: "",
		},
		Seerr: SeerrConfig{
			URL:              "",
			APIKey:           "",
			Timeout:          10 * time.Second,
			BreakerThreshold: 5,
			BreakerTimeout:   30 * time.Second,
		},
		Notify: NotifyConfig{
			ChannelID: "",
			SendRate:  5,
			SendBurst: 5,
			QueueSize: 256,
		},
		Webhook: WebhookConfig{
			Host:       "0.0.0.0",
			Port:       5000,
			AuthHeader: "",
			Timeout:    30 * time.Second,
			RateLimit:  120,
		},
		Database: DatabaseConfig{
			Path: "/data/discordeerr.db",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
	}
}
