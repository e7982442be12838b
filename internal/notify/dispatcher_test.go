// Discordeerr - Seerr Request Notifications for Discord
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/discordeerr

package notify

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/tomtom215/discordeerr/internal/models"
	"github.com/tomtom215/discordeerr/internal/store"
)

// fakeMessenger records sends and fails on demand.
type fakeMessenger struct {
	mu           sync.Mutex
	dmErr        []error // errors returned per DM attempt, then nil
	dms          []string
	channelPosts []string
	channelErr   error
}

func (m *fakeMessenger) SendDM(_ context.Context, discordID string, _ *RenderedMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.dmErr) > 0 {
		err := m.dmErr[0]
		m.dmErr = m.dmErr[1:]
		if err != nil {
			return err
		}
	}
	m.dms = append(m.dms, discordID)
	return nil
}

func (m *fakeMessenger) SendChannel(_ context.Context, channelID string, _ *RenderedMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.channelErr != nil {
		return m.channelErr
	}
	m.channelPosts = append(m.channelPosts, channelID)
	return nil
}

// fakeLinks resolves from a fixed map.
type fakeLinks struct {
	byDiscordID map[string]store.Link
	byUsername  map[string]store.Link
}

func (l *fakeLinks) FindByDiscordID(_ context.Context, id string) (*store.Link, error) {
	if link, ok := l.byDiscordID[id]; ok {
		return &link, nil
	}
	return nil, store.ErrNotFound
}

func (l *fakeLinks) FindBySeerrUsername(_ context.Context, username string) (*store.Link, error) {
	if link, ok := l.byUsername[username]; ok {
		return &link, nil
	}
	return nil, store.ErrNotFound
}

func newTestDispatcher(t *testing.T, m *fakeMessenger, links *fakeLinks) *Dispatcher {
	t.Helper()
	if links == nil {
		links = &fakeLinks{}
	}
	return NewDispatcher(DispatcherConfig{
		Messenger: m,
		Links:     links,
		Formatter: NewFormatter("http://seerr.local:5055"),
		ChannelID: "900000000000000000",
		SendRate:  1000, // keep tests fast
		SendBurst: 1000,
	})
}

func availableEvent() *models.NotificationEvent {
	return models.Normalize(&models.WebhookPayload{
		NotificationType:          "MEDIA_AVAILABLE",
		Subject:                   "Dune (2021)",
		NotifyUserUsername:        "alice",
		NotifyUserSettingsDiscord: "111111111111111111",
	})
}

func TestDispatchLinkedUserGetsOneDMZeroChannelPosts(t *testing.T) {
	t.Parallel()

	m := &fakeMessenger{}
	links := &fakeLinks{byDiscordID: map[string]store.Link{
		"111111111111111111": {DiscordID: "111111111111111111", SeerrUserID: 5, SeerrUsername: "alice"},
	}}
	d := newTestDispatcher(t, m, links)

	outcome, err := d.Dispatch(context.Background(), availableEvent())
	if err != nil {
		t.Fatalf("Dispatch() = %v", err)
	}
	if !outcome.DMSent || outcome.ChannelPosted || outcome.Fallback {
		t.Errorf("outcome = %+v, want DM only", outcome)
	}
	if outcome.SeerrUserID != 5 {
		t.Errorf("SeerrUserID = %d, want the resolved link's account", outcome.SeerrUserID)
	}
	if len(m.dms) != 1 || m.dms[0] != "111111111111111111" {
		t.Errorf("dms = %v, want exactly one to the linked user", m.dms)
	}
	if len(m.channelPosts) != 0 {
		t.Errorf("channelPosts = %v, want none after DM success", m.channelPosts)
	}
}

func TestDispatchUnlinkedUserGetsOneChannelPost(t *testing.T) {
	t.Parallel()

	m := &fakeMessenger{}
	d := newTestDispatcher(t, m, &fakeLinks{}) // empty store

	outcome, err := d.Dispatch(context.Background(), availableEvent())
	if err != nil {
		t.Fatalf("Dispatch() = %v", err)
	}
	if outcome.DMSent || !outcome.ChannelPosted || !outcome.Fallback {
		t.Errorf("outcome = %+v, want channel fallback", outcome)
	}
	if len(m.dms) != 0 {
		t.Errorf("dms = %v, want none for unlinked user", m.dms)
	}
	if len(m.channelPosts) != 1 {
		t.Errorf("channelPosts = %v, want exactly one", m.channelPosts)
	}
}

func TestDispatchResolvesTargetByUsernameWhenPayloadHasNoID(t *testing.T) {
	t.Parallel()

	m := &fakeMessenger{}
	links := &fakeLinks{byUsername: map[string]store.Link{
		"alice": {DiscordID: "111111111111111111", SeerrUsername: "alice"},
	}}
	d := newTestDispatcher(t, m, links)

	event := models.Normalize(&models.WebhookPayload{
		NotificationType:   "MEDIA_APPROVED",
		NotifyUserUsername: "alice",
		// No notifyuser_settings_discordId in the payload.
	})

	outcome, err := d.Dispatch(context.Background(), event)
	if err != nil {
		t.Fatalf("Dispatch() = %v", err)
	}
	if !outcome.DMSent || outcome.Recipient != "111111111111111111" {
		t.Errorf("outcome = %+v, want DM via username lookup", outcome)
	}
}

func TestDispatchDMFailureFallsBackExactlyOnce(t *testing.T) {
	t.Parallel()

	m := &fakeMessenger{dmErr: []error{errors.New("cannot send messages to this user")}}
	links := &fakeLinks{byDiscordID: map[string]store.Link{
		"111111111111111111": {DiscordID: "111111111111111111"},
	}}
	d := newTestDispatcher(t, m, links)

	outcome, err := d.Dispatch(context.Background(), availableEvent())
	if err != nil {
		t.Fatalf("Dispatch() = %v, fallback should succeed", err)
	}
	if outcome.DMSent || !outcome.ChannelPosted || !outcome.Fallback {
		t.Errorf("outcome = %+v, want fallback after DM failure", outcome)
	}
	if len(m.dms) != 0 {
		t.Errorf("dms = %v, want none delivered", m.dms)
	}
	if len(m.channelPosts) != 1 {
		t.Errorf("channelPosts = %v, want exactly one fallback post", m.channelPosts)
	}
}

func TestDispatchRetriesRateLimitThenSucceeds(t *testing.T) {
	t.Parallel()

	rlErr := &discordgo.RateLimitError{RateLimit: &discordgo.RateLimit{
		TooManyRequests: &discordgo.TooManyRequests{RetryAfter: time.Millisecond},
	}}
	m := &fakeMessenger{dmErr: []error{rlErr}}
	links := &fakeLinks{byDiscordID: map[string]store.Link{
		"111111111111111111": {DiscordID: "111111111111111111"},
	}}
	d := newTestDispatcher(t, m, links)

	outcome, err := d.Dispatch(context.Background(), availableEvent())
	if err != nil {
		t.Fatalf("Dispatch() = %v", err)
	}
	if !outcome.DMSent {
		t.Errorf("outcome = %+v, want DM after rate-limit retry", outcome)
	}
	if len(m.channelPosts) != 0 {
		t.Errorf("channelPosts = %v, want none", m.channelPosts)
	}
}

func TestDispatchRateLimitExhaustionFallsBack(t *testing.T) {
	t.Parallel()

	rlErr := &discordgo.RateLimitError{RateLimit: &discordgo.RateLimit{
		TooManyRequests: &discordgo.TooManyRequests{RetryAfter: time.Millisecond},
	}}
	m := &fakeMessenger{dmErr: []error{rlErr, rlErr, rlErr}}
	links := &fakeLinks{byDiscordID: map[string]store.Link{
		"111111111111111111": {DiscordID: "111111111111111111"},
	}}
	d := newTestDispatcher(t, m, links)

	outcome, err := d.Dispatch(context.Background(), availableEvent())
	if err != nil {
		t.Fatalf("Dispatch() = %v", err)
	}
	if outcome.DMSent || !outcome.Fallback {
		t.Errorf("outcome = %+v, want fallback after retries exhausted", outcome)
	}
	if len(m.channelPosts) != 1 {
		t.Errorf("channelPosts = %v, want exactly one", m.channelPosts)
	}
}

func TestDispatchAdminEventGoesToChannelOnly(t *testing.T) {
	t.Parallel()

	m := &fakeMessenger{}
	// Even a linked requester must not be DMed for admin-only events.
	links := &fakeLinks{byDiscordID: map[string]store.Link{
		"111111111111111111": {DiscordID: "111111111111111111"},
	}}
	d := newTestDispatcher(t, m, links)

	event := models.Normalize(&models.WebhookPayload{
		NotificationType:          "MEDIA_PENDING",
		Subject:                   "Dune (2021)",
		NotifyUserSettingsDiscord: "111111111111111111",
	})

	outcome, err := d.Dispatch(context.Background(), event)
	if err != nil {
		t.Fatalf("Dispatch() = %v", err)
	}
	if outcome.DMSent || !outcome.ChannelPosted || outcome.Fallback {
		t.Errorf("outcome = %+v, want plain channel post", outcome)
	}
	if len(m.dms) != 0 {
		t.Errorf("dms = %v, want none for admin event", m.dms)
	}
}

func TestDispatchTotalFailureReturnsError(t *testing.T) {
	t.Parallel()

	m := &fakeMessenger{
		dmErr:      []error{errors.New("dm refused"), errors.New("dm refused"), errors.New("dm refused")},
		channelErr: errors.New("channel gone"),
	}
	links := &fakeLinks{byDiscordID: map[string]store.Link{
		"111111111111111111": {DiscordID: "111111111111111111"},
	}}
	d := newTestDispatcher(t, m, links)

	if _, err := d.Dispatch(context.Background(), availableEvent()); err == nil {
		t.Fatal("Dispatch() = nil, want error when both routes fail")
	}
}

func TestWorkerRecordsOutcome(t *testing.T) {
	t.Parallel()

	m := &fakeMessenger{}
	d := newTestDispatcher(t, m, &fakeLinks{byDiscordID: map[string]store.Link{
		"111111111111111111": {DiscordID: "111111111111111111", SeerrUserID: 7, SeerrUsername: "alice"},
	}})
	logger := &fakeEventLogger{}
	w := NewWorker(d, logger, 8)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = w.Serve(ctx)
	}()

	if !w.Enqueue(Task{Event: availableEvent(), LogID: 42}) {
		t.Fatal("Enqueue() = false")
	}

	deadline := time.After(2 * time.Second)
	for {
		logger.mu.Lock()
		n := len(logger.calls)
		logger.mu.Unlock()
		if n > 0 {
			break
		}
		select {
		case <-deadline:
			t.Fatal("worker never recorded the outcome")
		case <-time.After(5 * time.Millisecond):
		}
	}

	cancel()
	<-done

	logger.mu.Lock()
	defer logger.mu.Unlock()
	call := logger.calls[0]
	if call.id != 42 || !call.sentDM || call.sentChannel {
		t.Errorf("recorded outcome = %+v", call)
	}
	if call.seerrUserID != 7 {
		t.Errorf("recorded seerr user = %d, want the resolved recipient", call.seerrUserID)
	}
}

func TestWorkerPrunesExpiredEventsOnStart(t *testing.T) {
	t.Parallel()

	d := newTestDispatcher(t, &fakeMessenger{}, &fakeLinks{})
	logger := &fakeEventLogger{}
	w := NewWorker(d, logger, 8)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = w.Serve(ctx)
	}()

	deadline := time.After(2 * time.Second)
	for {
		logger.mu.Lock()
		n := logger.prunes
		logger.mu.Unlock()
		if n > 0 {
			break
		}
		select {
		case <-deadline:
			t.Fatal("worker never ran the retention sweep")
		case <-time.After(5 * time.Millisecond):
		}
	}

	cancel()
	<-done
}

type fakeEventLogger struct {
	mu     sync.Mutex
	calls  []processedCall
	prunes int
}

type processedCall struct {
	id                  int64
	sentDM, sentChannel bool
	seerrUserID         int64
}

func (l *fakeEventLogger) MarkEventProcessed(_ context.Context, id int64, sentDM, sentChannel bool, seerrUserID int64) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls = append(l.calls, processedCall{id: id, sentDM: sentDM, sentChannel: sentChannel, seerrUserID: seerrUserID})
	return nil
}

func (l *fakeEventLogger) PruneEvents(_ context.Context, _ time.Duration) (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.prunes++
	return 0, nil
}
