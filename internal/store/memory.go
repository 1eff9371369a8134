package store

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"
)

// Memory is a map-backed Store. Used for tests and for running without a
// database file; state is lost on restart.
type Memory struct {
	mu   sync.Mutex
	subs map[string]Subscriber
}

func NewMemory() *Memory {
	return &Memory{subs: map[string]Subscriber{}}
}

func (m *Memory) Add(ctx context.Context, identity string) (AddResult, error) {
	identity = strings.TrimSpace(identity)
	if identity == "" {
		return AlreadySubscribed, errors.New("store: empty identity")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.subs[identity]; ok {
		return AlreadySubscribed, nil
	}
	m.subs[identity] = Subscriber{Identity: identity, SubscribedAt: time.Now()}
	return Inserted, nil
}

func (m *Memory) Remove(ctx context.Context, identity string) (RemoveResult, error) {
	identity = strings.TrimSpace(identity)
	if identity == "" {
		return NotSubscribed, errors.New("store: empty identity")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.subs[identity]; !ok {
		return NotSubscribed, nil
	}
	delete(m.subs, identity)
	return Removed, nil
}

func (m *Memory) ListAll(ctx context.Context) ([]string, error) {
	m.mu.Lock()
	out := make([]Subscriber, 0, len(m.subs))
	for _, s := range m.subs {
		out = append(out, s)
	}
	m.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].SubscribedAt.Before(out[j].SubscribedAt) })
	ids := make([]string, len(out))
	for i, s := range out {
		ids[i] = s.Identity
	}
	return ids, nil
}

func (m *Memory) Close() error { return nil }
