// Discordeerr - Seerr Request Notifications for Discord
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/discordeerr

// Package validation wraps go-playground/validator with the custom rules
// used across command and API input handling.
package validation

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	validate *validator.Validate
	once     sync.Once
)

// Validator returns the shared validator instance with custom rules
// registered. The instance is safe for concurrent use.
func Validator() *validator.Validate {
	once.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		// Registration only fails for empty tag names.
		_ = validate.RegisterValidation("discordid", validateDiscordID)
	})
	return validate
}

// validateDiscordID checks the discordid tag: a Discord snowflake is a
// 17-20 digit decimal string.
func validateDiscordID(fl validator.FieldLevel) bool {
	return IsDiscordID(fl.Field().String())
}

// IsDiscordID reports whether s is a plausible Discord user/channel ID.
func IsDiscordID(s string) bool {
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

// Struct validates a struct. Failures are returned as a readable error
// listing the failed fields; the underlying validator.ValidationErrors
// stays reachable through errors.As for callers that render per-field
// messages.
func Struct(v any) error {
	err := Validator().Struct(v)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}

	fields := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, fmt.Sprintf("%s (%s)", fe.Field(), fe.Tag()))
	}
	return fmt.Errorf("validation failed on %s: %w", strings.Join(fields, ", "), verrs)
}
