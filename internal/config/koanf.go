// Discordeerr - Seerr Request Notifications for Discord
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/discordeerr

package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists the paths where config files are searched in
// order of priority. The first file found wins.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/discordeerr/config.yaml",
	"/etc/discordeerr/config.yml",
}

// ConfigPathEnvVar overrides the config file path.
const ConfigPathEnvVar = "CONFIG_PATH"

// Load builds the configuration from three layers:
//
//  1. Defaults: built-in sensible defaults
//  2. Config file: optional YAML file (if present)
//  3. Environment variables: override any setting
//
// A .env file in the working directory is loaded first so that container
// and development setups behave the same.
func Load() (*Config, error) {
	// Missing .env is fine; only explicit files matter.
	_ = godotenv.Load()

	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if configPath := findConfigFile(); configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	// DEBUG_MODE is a convenience switch that wins over LOG_LEVEL.
	if isTruthy(os.Getenv("DEBUG_MODE")) {
		cfg.Logging.Level = "debug"
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// findConfigFile searches for a config file in the default paths.
// Returns the first file found, or empty string if none exists.
func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// envTransformFunc maps environment variable names to koanf config paths.
// Unmapped variables are dropped so unrelated environment noise cannot
// leak into the configuration.
//
// Examples:
//   - DISCORD_TOKEN -> discord.token
//   - SEERR_API_KEY -> seerr.api_key
//   - WEBHOOK_PORT  -> webhook.port
func envTransformFunc(key string) string {
	envMappings := map[string]string{
		"discord_token":           "discord.token",
		"discord_guild_id":        "discord.guild_id",
		"seerr_url":               "seerr.url",
		"seerr_api_key":           "seerr.api_key",
		"seerr_timeout":           "seerr.timeout",
		"seerr_breaker_threshold": "seerr.breaker_threshold",
		"seerr_breaker_timeout":   "seerr.breaker_timeout",
		"notification_channel_id": "notify.channel_id",
		"notify_send_rate":        "notify.send_rate",
		"notify_send_burst":       "notify.send_burst",
		"notify_queue_size":       "notify.queue_size",
		"webhook_host":            "webhook.host",
		"webhook_port":            "webhook.port",
		"webhook_auth_header":     "webhook.auth_header",
		"webhook_timeout":         "webhook.timeout",
		"webhook_rate_limit":      "webhook.rate_limit",
		"database_path":           "database.path",
		"log_level":               "logging.level",
		"log_format":              "logging.format",
		"log_caller":              "logging.caller",
	}

	if path, ok := envMappings[strings.ToLower(key)]; ok {
		return path
	}
	return ""
}

// isTruthy reports whether an env var value means "on".
func isTruthy(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}
