package supervisor

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"gardenbot/pkg/logx"
)

func TestGoCapturesFirstError(t *testing.T) {
	s := New(context.Background(), WithLogger(logx.Nop()))

	s.Go("ok", func(ctx context.Context) error { return nil })
	s.Go("bad", func(ctx context.Context) error { return errors.New("boom") })

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	err := s.Wait(ctx)
	if err == nil || err.Error() != "bad: boom" {
		t.Fatalf("Wait err = %v", err)
	}
}

func TestCancelOnError(t *testing.T) {
	s := New(context.Background(), WithLogger(logx.Nop()), WithCancelOnError(true))

	released := make(chan struct{})
	s.Go("long", func(ctx context.Context) error {
		defer close(released)
		<-ctx.Done()
		return ctx.Err()
	})
	s.Go("failer", func(ctx context.Context) error { return errors.New("fatal") })

	select {
	case <-released:
	case <-time.After(2 * time.Second):
		t.Fatalf("peer goroutine was not cancelled after the failure")
	}
}

func TestGoRecoversPanic(t *testing.T) {
	s := New(context.Background(), WithLogger(logx.Nop()))

	s.Go("panicker", func(ctx context.Context) error { panic("oops") })

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	err := s.Wait(ctx)
	if err == nil || err.Error() != "panic in panicker: oops" {
		t.Fatalf("Wait err = %v", err)
	}
}

func TestStopCancelsAndWaits(t *testing.T) {
	s := New(context.Background(), WithLogger(logx.Nop()))

	var stopped atomic.Bool
	s.Go0("waiter", func(ctx context.Context) {
		<-ctx.Done()
		stopped.Store(true)
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := s.Stop(ctx); err != nil {
		t.Fatalf("Stop err = %v", err)
	}
	if !stopped.Load() {
		t.Fatalf("Stop returned before the goroutine exited")
	}
}
