// Discordeerr - Seerr Request Notifications for Discord
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/discordeerr

package config

import (
	"fmt"
	"net/url"
	"strings"
)

// Validate checks the configuration for correctness and returns an error
// naming the offending environment variable so startup failures are
// actionable without reading code.
func (c *Config) Validate() error {
	if err := c.validateDiscord(); err != nil {
		return err
	}
	if err := c.validateSeerr(); err != nil {
		return err
	}
	if err := c.validateNotify(); err != nil {
		return err
	}
	if err := c.validateWebhook(); err != nil {
		return err
	}
	if err := c.validateDatabase(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateDiscord() error {
	if c.Discord.Token == "" {
		return fmt.Errorf("discord token is required (set DISCORD_TOKEN)")
	}
	return nil
}

func (c *Config) validateSeerr() error {
	if c.Seerr.URL == "" {
		return fmt.Errorf("seerr URL is required (set SEERR_URL)")
	}
	u, err := url.Parse(c.Seerr.URL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("seerr URL %q is not a valid URL (set SEERR_URL)", c.Seerr.URL)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("seerr URL must use http or https, got %q (set SEERR_URL)", u.Scheme)
	}
	if c.Seerr.APIKey == "" {
		return fmt.Errorf("seerr API key is required (set SEERR_API_KEY)")
	}
	if c.Seerr.Timeout <= 0 {
		return fmt.Errorf("seerr timeout must be positive (set SEERR_TIMEOUT)")
	}
	return nil
}

func (c *Config) validateNotify() error {
	if c.Notify.ChannelID == "" {
		return fmt.Errorf("notification channel is required (set NOTIFICATION_CHANNEL_ID)")
	}
	if !isSnowflake(c.Notify.ChannelID) {
		return fmt.Errorf("notification channel %q is not a Discord channel ID (set NOTIFICATION_CHANNEL_ID)", c.Notify.ChannelID)
	}
	if c.Notify.SendRate <= 0 {
		return fmt.Errorf("notify send rate must be positive (set NOTIFY_SEND_RATE)")
	}
	if c.Notify.QueueSize <= 0 {
		return fmt.Errorf("notify queue size must be positive (set NOTIFY_QUEUE_SIZE)")
	}
	return nil
}

func (c *Config) validateWebhook() error {
	if c.Webhook.Port < 1 || c.Webhook.Port > 65535 {
		return fmt.Errorf("webhook port %d out of range 1-65535 (set WEBHOOK_PORT)", c.Webhook.Port)
	}
	if c.Webhook.Timeout <= 0 {
		return fmt.Errorf("webhook timeout must be positive (set WEBHOOK_TIMEOUT)")
	}
	return nil
}

func (c *Config) validateDatabase() error {
	if strings.TrimSpace(c.Database.Path) == "" {
		return fmt.Errorf("database path is required (set DATABASE_PATH)")
	}
	return nil
}

// isSnowflake reports whether s looks like a Discord snowflake ID.
// Snowflakes are 17-20 digit decimal strings.
func isSnowflake(s string) bool {
	if len(s) < 17 || len(s) > 20 {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
