// Package stats keeps cheap operational counters and flushes them to the log
// on a cron schedule (default: every 5 minutes), resetting after each flush.
package stats

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/robfig/cron/v3"

	"gardenbot/internal/eventbus"
	"gardenbot/pkg/logx"
)

const defaultSpec = "*/5 * * * *"

// Counters is shared by the pipeline components; all fields are atomic.
type Counters struct {
	MessagesSent   atomic.Uint64
	SendFailures   atomic.Uint64
	Broadcasts     atomic.Uint64
	FeedEvents     atomic.Uint64
	FeedErrors     atomic.Uint64
	Reconnects     atomic.Uint64
	RateLimitWaits atomic.Uint64
	Commands       atomic.Uint64
}

// Snapshot is one flushed window of counter values.
type Snapshot struct {
	MessagesSent   uint64
	SendFailures   uint64
	Broadcasts     uint64
	FeedEvents     uint64
	FeedErrors     uint64
	Reconnects     uint64
	RateLimitWaits uint64
	Commands       uint64
}

// SnapshotAndReset atomically drains every counter.
func (c *Counters) SnapshotAndReset() Snapshot {
	return Snapshot{
		MessagesSent:   c.MessagesSent.Swap(0),
		SendFailures:   c.SendFailures.Swap(0),
		Broadcasts:     c.Broadcasts.Swap(0),
		FeedEvents:     c.FeedEvents.Swap(0),
		FeedErrors:     c.FeedErrors.Swap(0),
		Reconnects:     c.Reconnects.Swap(0),
		RateLimitWaits: c.RateLimitWaits.Swap(0),
		Commands:       c.Commands.Swap(0),
	}
}

type Config struct {
	Enabled bool
	Spec    string
}

// Service schedules the periodic flush and folds feed connection-state
// events from the bus into the counters.
type Service struct {
	counters *Counters
	log      logx.Logger

	mu     sync.Mutex
	cfg    Config
	c      *cron.Cron
	unsub  func()
	stopCh chan struct{}
}

func New(cfg Config, counters *Counters, log logx.Logger) *Service {
	return &Service{cfg: cfg, counters: counters, log: log}
}

func (s *Service) Counters() *Counters { return s.counters }

func (s *Service) Start(ctx context.Context, bus eventbus.Bus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.cfg.Enabled || s.stopCh != nil {
		return nil
	}
	s.stopCh = make(chan struct{})

	spec := strings.TrimSpace(s.cfg.Spec)
	if spec == "" {
		spec = defaultSpec
	}
	s.c = cron.New()
	if _, err := s.c.AddFunc(spec, s.flush); err != nil {
		s.c = nil
		s.stopCh = nil
		return err
	}
	s.c.Start()

	if bus != nil {
		ch, unsub := bus.Subscribe(16)
		s.unsub = unsub
		stopCh := s.stopCh
		go func() {
			for {
				select {
				case <-ctx.Done():
					return
				case <-stopCh:
					return
				case ev, ok := <-ch:
					if !ok {
						return
					}
					if ev.Type == eventbus.TypeFeedConnected {
						s.counters.Reconnects.Add(1)
					}
				}
			}
		}()
	}

	s.log.Info("stats started", logx.String("spec", spec))
	return nil
}

func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopCh == nil {
		return
	}
	close(s.stopCh)
	s.stopCh = nil
	if s.c != nil {
		<-s.c.Stop().Done()
		s.c = nil
	}
	if s.unsub != nil {
		s.unsub()
		s.unsub = nil
	}
	// Final flush so a shutdown doesn't silently discard a window.
	s.flush()
}

func (s *Service) flush() {
	snap := s.counters.SnapshotAndReset()
	s.log.Info("stats",
		logx.Uint64("messages_sent", snap.MessagesSent),
		logx.Uint64("send_failures", snap.SendFailures),
		logx.Uint64("broadcasts", snap.Broadcasts),
		logx.Uint64("feed_events", snap.FeedEvents),
		logx.Uint64("feed_errors", snap.FeedErrors),
		logx.Uint64("reconnects", snap.Reconnects),
		logx.Uint64("rate_limit_waits", snap.RateLimitWaits),
		logx.Uint64("commands", snap.Commands),
	)
}
