// Package store persists subscriber identities. It is the only component
// that owns subscriber state; everything else works off transient query
// results.
package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"gardenbot/internal/config"
	"gardenbot/pkg/logx"
)

// AddResult reports the outcome of Add.
type AddResult int

const (
	Inserted AddResult = iota
	AlreadySubscribed
)

// RemoveResult reports the outcome of Remove.
type RemoveResult int

const (
	Removed RemoveResult = iota
	NotSubscribed
)

// Subscriber is one persisted record. Identity is unique; records are created
// on subscribe, destroyed on unsubscribe, never otherwise mutated.
type Subscriber struct {
	Identity     string
	SubscribedAt time.Time
}

type Store interface {
	// Add registers an identity. Idempotent: adding an existing identity
	// reports AlreadySubscribed and leaves the record untouched.
	Add(ctx context.Context, identity string) (AddResult, error)
	// Remove drops an identity. Removing an unknown identity reports
	// NotSubscribed, not an error.
	Remove(ctx context.Context, identity string) (RemoveResult, error)
	// ListAll returns every subscriber identity.
	ListAll(ctx context.Context) ([]string, error)
	Close() error
}

// Open builds a Store from config. Drivers: "sqlite", "memory".
func Open(cfg config.StoreConfig, log logx.Logger) (Store, error) {
	switch strings.TrimSpace(cfg.Driver) {
	case "sqlite":
		busy, err := config.ParseDurationField("store.busy_timeout", cfg.BusyTimeout)
		if err != nil {
			return nil, fmt.Errorf("store: %w", err)
		}
		return openSQLite(cfg.Path, busy, log)
	case "memory":
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("store: unknown driver %q", cfg.Driver)
	}
}
