// Discordeerr - Seerr Request Notifications for Discord
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/discordeerr

package validation

import (
	"strings"
	"testing"
)

func TestIsDiscordID(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input string
		want  bool
	}{
		{"123456789012345678", true},  // 18 digits
		{"12345678901234567", true},   // 17 digits
		{"12345678901234567890", true}, // 20 digits
		{"1234567890123456", false},   // 16 digits
		{"123456789012345678901", false},
		{"12345678901234567a", false},
		{"not-an-id", false},
		{"", false},
		{"<@123456789012345678>", false}, // mention, not raw ID
	}

	for _, tt := range tests {
		if got := IsDiscordID(tt.input); got != tt.want {
			t.Errorf("IsDiscordID(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestStructDiscordIDTag(t *testing.T) {
	t.Parallel()

	type linkRequest struct {
		DiscordID string `validate:"required,discordid"`
		Username  string `validate:"required"`
	}

	if err := Struct(linkRequest{DiscordID: "123456789012345678", Username: "alice"}); err != nil {
		t.Fatalf("valid request rejected: %v", err)
	}

	err := Struct(linkRequest{DiscordID: "abc", Username: "alice"})
	if err == nil {
		t.Fatal("invalid discord ID accepted")
	}
	if !strings.Contains(err.Error(), "DiscordID") {
		t.Errorf("error %q does not name the failing field", err)
	}

	if err := Struct(linkRequest{DiscordID: "123456789012345678"}); err == nil {
		t.Fatal("missing username accepted")
	}
}
