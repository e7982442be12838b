// Discordeerr - Seerr Request Notifications for Discord
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/discordeerr

// Package seerr is a minimal client for the Seerr (Overseerr/Jellyseerr)
// REST API, covering the user and request endpoints this service needs.
// All calls go through a circuit breaker so a down Seerr instance fails
// fast instead of stalling command handlers.
package seerr

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/tomtom215/discordeerr/internal/metrics"
)

// ErrUserNotFound is returned when no Seerr account matches the lookup.
var ErrUserNotFound = errors.New("seerr user not found")

// pageSize is the take parameter for paginated endpoints.
const pageSize = 100

// Config holds client construction parameters.
type Config struct {
	// BaseURL is the Seerr instance root, e.g. "http://seerr:5055".
	BaseURL string

	// APIKey is sent as X-Api-Key on every request.
	APIKey string

	// Timeout bounds each HTTP request.
	Timeout time.Duration

	// BreakerThreshold is the consecutive-failure count that opens the
	// breaker. Zero uses the default of 5.
	BreakerThreshold uint32

	// BreakerTimeout is how long the breaker stays open. Zero uses 30s.
	BreakerTimeout time.Duration
}

// Client talks to one Seerr instance. Safe for concurrent use.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
	breaker *gobreaker.CircuitBreaker[[]byte]
}

// New creates a Seerr API client.
func New(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	threshold := cfg.BreakerThreshold
	if threshold == 0 {
		threshold = 5
	}
	breakerTimeout := cfg.BreakerTimeout
	if breakerTimeout <= 0 {
		breakerTimeout = 30 * time.Second
	}

	settings := gobreaker.Settings{
		Name:    "seerr-api",
		Timeout: breakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
	}

	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		http:    &http.Client{Timeout: cfg.Timeout},
		breaker: gobreaker.NewCircuitBreaker[[]byte](settings),
	}
}

// BaseURL returns the configured Seerr root URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// get performs a breaker-wrapped GET against an API path and returns the
// response body.
func (c *Client) get(ctx context.Context, path string) ([]byte, error) {
	return c.breaker.Execute(func() ([]byte, error) {
		start := time.Now()
		body, err := c.doGet(ctx, path)
		metrics.ObserveSeerrRequest(pathLabel(path), time.Since(start), err)
		return body, err
	})
}

func (c *Client) doGet(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/v1"+path, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("X-Api-Key", c.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("seerr request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read seerr response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, ErrUserNotFound
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("seerr returned status %d for %s", resp.StatusCode, path)
	}
	return body, nil
}

// pathLabel collapses per-user paths into a bounded metric label.
func pathLabel(path string) string {
	parts := strings.Split(strings.TrimPrefix(path, "/"), "/")
	for i, p := range parts {
		if p != "" && p[0] >= '0' && p[0] <= '9' {
			parts[i] = "{id}"
		}
	}
	label := strings.Join(parts, "/")
	if i := strings.IndexByte(label, '?'); i >= 0 {
		label = label[:i]
	}
	return label
}

// TestConnection verifies the instance is reachable and the API key is
// accepted. Returns the reported Seerr version.
func (c *Client) TestConnection(ctx context.Context) (string, error) {
	body, err := c.get(ctx, "/status")
	if err != nil {
		return "", err
	}
	var status statusResponse
	if err := json.Unmarshal(body, &status); err != nil {
		return "", fmt.Errorf("failed to decode status: %w", err)
	}
	return status.Version, nil
}

// GetUsers returns all Seerr accounts, following pagination.
func (c *Client) GetUsers(ctx context.Context) ([]User, error) {
	var users []User
	for skip := 0; ; skip += pageSize {
		body, err := c.get(ctx, fmt.Sprintf("/user?take=%d&skip=%d", pageSize, skip))
		if err != nil {
			return nil, err
		}
		var page usersPage
		if err := json.Unmarshal(body, &page); err != nil {
			return nil, fmt.Errorf("failed to decode user page: %w", err)
		}
		users = append(users, page.Results...)
		if len(page.Results) < pageSize {
			return users, nil
		}
	}
}

// GetUserByID returns one Seerr account.
func (c *Client) GetUserByID(ctx context.Context, id int64) (*User, error) {
	body, err := c.get(ctx, fmt.Sprintf("/user/%d", id))
	if err != nil {
		return nil, err
	}
	var user User
	if err := json.Unmarshal(body, &user); err != nil {
		return nil, fmt.Errorf("failed to decode user: %w", err)
	}
	return &user, nil
}

// GetUserByUsername finds the account whose effective username matches,
// case-insensitively. Returns ErrUserNotFound when absent.
func (c *Client) GetUserByUsername(ctx context.Context, username string) (*User, error) {
	users, err := c.GetUsers(ctx)
	if err != nil {
		return nil, err
	}
	for i := range users {
		if strings.EqualFold(users[i].EffectiveUsername(), username) {
			return &users[i], nil
		}
	}
	return nil, ErrUserNotFound
}

// GetUserSettings returns a user's main notification settings, including
// the Discord ID registered in their Seerr profile.
func (c *Client) GetUserSettings(ctx context.Context, userID int64) (*UserSettings, error) {
	body, err := c.get(ctx, fmt.Sprintf("/user/%d/settings/main", userID))
	if err != nil {
		return nil, err
	}
	var settings UserSettings
	if err := json.Unmarshal(body, &settings); err != nil {
		return nil, fmt.Errorf("failed to decode user settings: %w", err)
	}
	return &settings, nil
}

// FindUserByDiscordID scans all accounts for one whose profile carries
// the given Discord ID. Returns ErrUserNotFound when no profile matches.
func (c *Client) FindUserByDiscordID(ctx context.Context, discordID string) (*User, error) {
	users, err := c.GetUsers(ctx)
	if err != nil {
		return nil, err
	}
	for i := range users {
		settings, err := c.GetUserSettings(ctx, users[i].ID)
		if err != nil {
			if errors.Is(err, ErrUserNotFound) {
				continue
			}
			return nil, err
		}
		if settings.DiscordID == discordID {
			return &users[i], nil
		}
	}
	return nil, ErrUserNotFound
}

// GetRequestStats aggregates a user's requests by status.
func (c *Client) GetRequestStats(ctx context.Context, userID int64) (*RequestStats, error) {
	stats := &RequestStats{}
	for skip := 0; ; skip += pageSize {
		body, err := c.get(ctx, fmt.Sprintf("/user/%d/requests?take=%d&skip=%d", userID, pageSize, skip))
		if err != nil {
			return nil, err
		}
		var page requestsPage
		if err := json.Unmarshal(body, &page); err != nil {
			return nil, fmt.Errorf("failed to decode request page: %w", err)
		}
		for _, r := range page.Results {
			stats.Total++
			switch r.Status {
			case statusPending:
				stats.Pending++
			case statusApproved:
				stats.Approved++
			case statusDeclined:
				stats.Declined++
			case statusProcessing:
				stats.Processing++
			case statusAvailable:
				stats.Available++
			}
		}
		if len(page.Results) < pageSize {
			return stats, nil
		}
	}
}

// VerifyAdmin checks, with a fresh API round trip, that the Seerr account
// still holds admin privilege.
func (c *Client) VerifyAdmin(ctx context.Context, userID int64) (bool, error) {
	user, err := c.GetUserByID(ctx, userID)
	if err != nil {
		return false, err
	}
	return user.IsAdmin(), nil
}
