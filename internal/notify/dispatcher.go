// Discordeerr - Seerr Request Notifications for Discord
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/discordeerr

package notify

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/discordgo"
	"golang.org/x/time/rate"

	"github.com/tomtom215/discordeerr/internal/logging"
	"github.com/tomtom215/discordeerr/internal/metrics"
	"github.com/tomtom215/discordeerr/internal/models"
	"github.com/tomtom215/discordeerr/internal/store"
)

// maxRateLimitRetries bounds how often a single send is retried after the
// platform reports a rate limit before giving up to the fallback path.
const maxRateLimitRetries = 2

// maxRetryWait caps the per-retry wait even when the platform advises a
// longer pause; beyond this the fallback is more useful than the DM.
const maxRetryWait = 10 * time.Second

// Messenger sends rendered messages to Discord. Implemented by the bot
// session; faked in tests.
type Messenger interface {
	SendDM(ctx context.Context, discordID string, msg *RenderedMessage) error
	SendChannel(ctx context.Context, channelID string, msg *RenderedMessage) error
}

// LinkResolver is the link-store lookup surface the dispatcher needs.
type LinkResolver interface {
	FindByDiscordID(ctx context.Context, discordID string) (*store.Link, error)
	FindBySeerrUsername(ctx context.Context, username string) (*store.Link, error)
}

// Outcome reports where a notification ended up.
type Outcome struct {
	// DMSent is true when the direct message was delivered.
	DMSent bool

	// ChannelPosted is true when a message was posted to the shared
	// channel, whether as the primary route or as fallback.
	ChannelPosted bool

	// Fallback is true when the channel post happened because a DM was
	// attempted or intended but could not be delivered.
	Fallback bool

	// Recipient is the Discord ID the DM went to (or was attempted for).
	Recipient string

	// SeerrUserID is the resolved recipient's Seerr account, or 0 when
	// no linked recipient was found.
	SeerrUserID int64
}

// Dispatcher routes rendered notifications: admin events to the shared
// channel, user events as DMs with exactly one channel fallback post when
// the DM cannot be delivered.
type Dispatcher struct {
	messenger Messenger
	links     LinkResolver
	formatter *Formatter
	channelID string
	limiter   *rate.Limiter
}

// DispatcherConfig holds dispatcher construction parameters.
type DispatcherConfig struct {
	Messenger Messenger
	Links     LinkResolver
	Formatter *Formatter

	// ChannelID is the shared notification channel.
	ChannelID string

	// SendRate and SendBurst pace outbound Discord sends.
	SendRate  float64
	SendBurst int
}

// NewDispatcher creates a dispatcher.
func NewDispatcher(cfg DispatcherConfig) *Dispatcher {
	if cfg.SendRate <= 0 {
		cfg.SendRate = 5
	}
	if cfg.SendBurst <= 0 {
		cfg.SendBurst = 5
	}
	return &Dispatcher{
		messenger: cfg.Messenger,
		links:     cfg.Links,
		formatter: cfg.Formatter,
		channelID: cfg.ChannelID,
		limiter:   rate.NewLimiter(rate.Limit(cfg.SendRate), cfg.SendBurst),
	}
}

// Dispatch renders and delivers one event. The returned Outcome is valid
// even when err is non-nil; err reports total delivery failure (neither
// DM nor channel post landed).
func (d *Dispatcher) Dispatch(ctx context.Context, event *models.NotificationEvent) (Outcome, error) {
	msg := d.formatter.Format(event)
	eventType := string(event.Type)

	if event.AdminOnly() {
		if err := d.sendChannel(ctx, msg); err != nil {
			metrics.RecordDelivery(eventType, "failed")
			return Outcome{}, err
		}
		metrics.RecordDelivery(eventType, "channel")
		return Outcome{ChannelPosted: true}, nil
	}

	target, seerrUserID := d.resolveTarget(ctx, event)
	if target == "" {
		// No linked recipient: the shared channel is the primary route,
		// not a degraded one, but it still counts as fallback for
		// observability.
		if err := d.sendChannel(ctx, msg); err != nil {
			metrics.RecordDelivery(eventType, "failed")
			return Outcome{}, err
		}
		metrics.RecordDelivery(eventType, "fallback")
		return Outcome{ChannelPosted: true, Fallback: true}, nil
	}

	if err := d.sendDM(ctx, target, msg); err != nil {
		logging.Ctx(ctx).Warn().
			Err(err).
			Str("recipient", target).
			Str("type", eventType).
			Msg("DM delivery failed, falling back to channel")

		if cerr := d.sendChannel(ctx, msg); cerr != nil {
			metrics.RecordDelivery(eventType, "failed")
			return Outcome{Recipient: target, SeerrUserID: seerrUserID}, errors.Join(err, cerr)
		}
		metrics.RecordDelivery(eventType, "fallback")
		return Outcome{ChannelPosted: true, Fallback: true, Recipient: target, SeerrUserID: seerrUserID}, nil
	}

	metrics.RecordDelivery(eventType, "dm")
	return Outcome{DMSent: true, Recipient: target, SeerrUserID: seerrUserID}, nil
}

// resolveTarget finds the linked Discord ID and Seerr account for a
// user-facing event. The payload's Discord ID is only trusted when the
// account is actually linked; an unlinked ID means the user never opted
// in to DMs from this service.
func (d *Dispatcher) resolveTarget(ctx context.Context, event *models.NotificationEvent) (string, int64) {
	discordID, seerrUsername := event.DMTarget()

	if discordID != "" {
		link, err := d.links.FindByDiscordID(ctx, discordID)
		if err == nil {
			return discordID, link.SeerrUserID
		}
		if !errors.Is(err, store.ErrNotFound) {
			logging.Ctx(ctx).Error().Err(err).Msg("link lookup by discord ID failed")
		}
	}

	if seerrUsername != "" {
		link, err := d.links.FindBySeerrUsername(ctx, seerrUsername)
		if err == nil {
			return link.DiscordID, link.SeerrUserID
		}
		if !errors.Is(err, store.ErrNotFound) {
			logging.Ctx(ctx).Error().Err(err).Msg("link lookup by username failed")
		}
	}

	return "", 0
}

// sendDM delivers a DM, honoring the send pacer and retrying a bounded
// number of times when Discord reports a rate limit.
func (d *Dispatcher) sendDM(ctx context.Context, discordID string, msg *RenderedMessage) error {
	var lastErr error
	for attempt := 0; attempt <= maxRateLimitRetries; attempt++ {
		if err := d.limiter.Wait(ctx); err != nil {
			return err
		}

		lastErr = d.messenger.SendDM(ctx, discordID, msg)
		if lastErr == nil {
			return nil
		}

		wait, retryable := retryAfter(lastErr)
		if !retryable {
			return lastErr
		}
		if err := sleepCtx(ctx, wait); err != nil {
			return lastErr
		}
	}
	return lastErr
}

func (d *Dispatcher) sendChannel(ctx context.Context, msg *RenderedMessage) error {
	if err := d.limiter.Wait(ctx); err != nil {
		return err
	}
	return d.messenger.SendChannel(ctx, d.channelID, msg)
}

// retryAfter extracts the advised wait from a Discord rate-limit error.
func retryAfter(err error) (time.Duration, bool) {
	var rl *discordgo.RateLimitError
	if !errors.As(err, &rl) {
		return 0, false
	}
	wait := rl.RetryAfter
	if wait <= 0 {
		wait = time.Second
	}
	if wait > maxRetryWait {
		wait = maxRetryWait
	}
	return wait, true
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
