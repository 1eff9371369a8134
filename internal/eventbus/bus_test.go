package eventbus

import (
	"testing"
	"time"
)

func TestPublishSubscribe(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe(4)
	defer unsub()

	b.Publish(Event{Type: TypeFeedConnected})

	select {
	case e := <-ch:
		if e.Type != TypeFeedConnected {
			t.Fatalf("event type = %q", e.Type)
		}
		if e.Time.IsZero() {
			t.Fatalf("publish must stamp the time")
		}
	case <-time.After(time.Second):
		t.Fatalf("event not delivered")
	}
}

func TestPublishDropsOnFullBuffer(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe(1)
	defer unsub()

	// Second publish must not block, the subscriber never reads.
	done := make(chan struct{})
	go func() {
		b.Publish(Event{Type: TypeBroadcastDone})
		b.Publish(Event{Type: TypeBroadcastDone})
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("Publish blocked on a full subscriber")
	}
	if len(ch) != 1 {
		t.Fatalf("buffer len = %d, want 1", len(ch))
	}
}

func TestPublishAfterUnsubscribe(t *testing.T) {
	b := New()
	_, unsub := b.Subscribe(1)
	unsub()
	unsub() // idempotent

	// Must not panic on the closed channel.
	b.Publish(Event{Type: TypeFeedGivenUp})
}
