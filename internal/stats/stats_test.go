package stats

import (
	"context"
	"testing"
	"time"

	"gardenbot/internal/eventbus"
	"gardenbot/pkg/logx"
)

func TestSnapshotAndReset(t *testing.T) {
	c := &Counters{}
	c.MessagesSent.Add(3)
	c.FeedErrors.Add(1)

	snap := c.SnapshotAndReset()
	if snap.MessagesSent != 3 || snap.FeedErrors != 1 {
		t.Fatalf("snapshot = %+v", snap)
	}

	snap = c.SnapshotAndReset()
	if snap.MessagesSent != 0 || snap.FeedErrors != 0 {
		t.Fatalf("counters not reset: %+v", snap)
	}
}

func TestServiceCountsReconnects(t *testing.T) {
	c := &Counters{}
	bus := eventbus.New()
	s := New(Config{Enabled: true}, c, logx.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := s.Start(ctx, bus); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer s.Stop()

	bus.Publish(eventbus.Event{Type: eventbus.TypeFeedConnected})
	bus.Publish(eventbus.Event{Type: eventbus.TypeFeedDisconnected})
	bus.Publish(eventbus.Event{Type: eventbus.TypeFeedConnected})

	deadline := time.Now().Add(2 * time.Second)
	for c.Reconnects.Load() != 2 {
		if time.Now().After(deadline) {
			t.Fatalf("reconnects = %d, want 2", c.Reconnects.Load())
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestServiceDisabledIsNoop(t *testing.T) {
	s := New(Config{Enabled: false}, &Counters{}, logx.Nop())
	if err := s.Start(context.Background(), nil); err != nil {
		t.Fatalf("Start: %v", err)
	}
	s.Stop()
}

func TestServiceRejectsBadSpec(t *testing.T) {
	s := New(Config{Enabled: true, Spec: "not a cron spec"}, &Counters{}, logx.Nop())
	if err := s.Start(context.Background(), nil); err == nil {
		t.Fatalf("bad cron spec must fail Start")
	}
}
