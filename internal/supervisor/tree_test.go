// Discordeerr - Seerr Request Notifications for Discord
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/discordeerr

package supervisor

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/tomtom215/discordeerr/internal/logging"
)

// countingService counts how many times the supervisor starts it.
type countingService struct {
	starts atomic.Int32
	fail   bool
}

func (s *countingService) Serve(ctx context.Context) error {
	s.starts.Add(1)
	if s.fail && s.starts.Load() == 1 {
		return errors.New("first run fails")
	}
	<-ctx.Done()
	return ctx.Err()
}

func (s *countingService) String() string { return "counting-service" }

func TestTreeDefaults(t *testing.T) {
	t.Parallel()

	tree := NewTree(logging.Slog(), TreeConfig{})
	if tree.config.FailureThreshold != 5.0 {
		t.Errorf("FailureThreshold = %v, want 5.0", tree.config.FailureThreshold)
	}
	if tree.config.ShutdownTimeout != 10*time.Second {
		t.Errorf("ShutdownTimeout = %v, want 10s", tree.config.ShutdownTimeout)
	}
}

func TestTreeRunsAndRestartsServices(t *testing.T) {
	t.Parallel()

	tree := NewTree(logging.Slog(), TreeConfig{FailureBackoff: 10 * time.Millisecond})
	svc := &countingService{fail: true}
	tree.AddDiscordService(svc)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = tree.Serve(ctx)
		close(done)
	}()

	deadline := time.After(2 * time.Second)
	for svc.starts.Load() < 2 {
		select {
		case <-deadline:
			t.Fatalf("service restarted %d times, want >= 2", svc.starts.Load())
		case <-time.After(5 * time.Millisecond):
		}
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("tree did not stop after cancel")
	}
}

func TestTreeStopsAPILayer(t *testing.T) {
	t.Parallel()

	tree := NewTree(logging.Slog(), TreeConfig{})
	svc := &countingService{}
	tree.AddAPIService(svc)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	err := tree.Serve(ctx)
	if err != nil && !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Serve returned %v", err)
	}
	if svc.starts.Load() != 1 {
		t.Errorf("starts = %d, want 1", svc.starts.Load())
	}
}
