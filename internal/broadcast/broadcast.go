// Package broadcast fans one formatted notification out to every current
// subscriber. Sends run concurrently and independently; one recipient's
// failure never aborts or delays the others.
package broadcast

import (
	"context"
	"sync"
	"time"

	"gardenbot/internal/eventbus"
	"gardenbot/internal/stats"
	"gardenbot/internal/store"
	"gardenbot/internal/transport"
	"gardenbot/pkg/logx"
)

type Config struct {
	// Timeout bounds one whole broadcast run; 0 disables the bound.
	Timeout time.Duration
	// MaxConcurrent caps in-flight sends within one run; 0 means unbounded.
	MaxConcurrent int
}

type Service struct {
	store    store.Store
	sender   transport.Sender
	bus      eventbus.Bus
	counters *stats.Counters
	log      logx.Logger

	mu  sync.Mutex
	cfg Config
}

// New builds the broadcaster. bus and counters may be nil.
func New(cfg Config, st store.Store, sender transport.Sender, bus eventbus.Bus, counters *stats.Counters, log logx.Logger) *Service {
	return &Service{cfg: cfg, store: st, sender: sender, bus: bus, counters: counters, log: log}
}

// Apply swaps config at runtime (hot reload).
func (s *Service) Apply(cfg Config) {
	s.mu.Lock()
	s.cfg = cfg
	s.mu.Unlock()
}

// Result summarizes one broadcast run.
type Result struct {
	Category string
	Total    int
	Failed   int
	Took     time.Duration
}

// Broadcast loads all subscribers and sends text to each. Every attempt is
// awaited before return; failures are logged per recipient and never
// retried. A store failure aborts the run and is returned; an empty
// subscriber list is a no-op.
func (s *Service) Broadcast(ctx context.Context, text, category string) error {
	start := time.Now()

	s.mu.Lock()
	cfg := s.cfg
	s.mu.Unlock()

	if cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Timeout)
		defer cancel()
	}

	ids, err := s.store.ListAll(ctx)
	if err != nil {
		s.log.Error("broadcast aborted: subscriber list unavailable",
			logx.String("category", category), logx.Err(err))
		return err
	}
	if len(ids) == 0 {
		s.log.Debug("broadcast skipped: no subscribers", logx.String("category", category))
		return nil
	}

	var sem chan struct{}
	if cfg.MaxConcurrent > 0 {
		sem = make(chan struct{}, cfg.MaxConcurrent)
	}

	var (
		wg     sync.WaitGroup
		failMu sync.Mutex
		failed int
	)
	for _, id := range ids {
		id := id
		wg.Add(1)
		go func() {
			defer wg.Done()
			if sem != nil {
				sem <- struct{}{}
				defer func() { <-sem }()
			}
			if _, err := s.sender.SendText(ctx, transport.Recipient{ID: id}, text); err != nil {
				failMu.Lock()
				failed++
				failMu.Unlock()
				s.log.Warn("broadcast send failed",
					logx.String("category", category), logx.String("recipient", id), logx.Err(err))
			}
		}()
	}
	wg.Wait()

	if s.counters != nil {
		s.counters.Broadcasts.Add(1)
	}

	res := Result{Category: category, Total: len(ids), Failed: failed, Took: time.Since(start)}
	fields := []logx.Field{
		logx.String("category", category),
		logx.Int("total", res.Total),
		logx.Int("failed", res.Failed),
		logx.Duration("took", res.Took),
	}
	if failed > 0 {
		s.log.Warn("broadcast finished with failures", fields...)
	} else {
		s.log.Info("broadcast finished", fields...)
	}
	if s.bus != nil {
		s.bus.Publish(eventbus.Event{Type: eventbus.TypeBroadcastDone, Data: res})
	}
	return nil
}
