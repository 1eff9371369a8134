package store

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"gardenbot/pkg/logx"
)

//go:embed migrations.sql
var migrationsFS embed.FS

type sqliteStore struct {
	db  *sql.DB
	log logx.Logger
}

func openSQLite(path string, busyTimeout time.Duration, log logx.Logger) (Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("store: sqlite path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// SQLite prefers a small number of concurrent writers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if busyTimeout > 0 {
		_, _ = db.Exec(fmt.Sprintf("PRAGMA busy_timeout = %d", busyTimeout.Milliseconds()))
	}
	_, _ = db.Exec("PRAGMA journal_mode = WAL")
	_, _ = db.Exec("PRAGMA synchronous = NORMAL")

	st := &sqliteStore{db: db, log: log}
	if err := st.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return st, nil
}

func (s *sqliteStore) migrate(ctx context.Context) error {
	b, err := migrationsFS.ReadFile("migrations.sql")
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, string(b))
	return err
}

func (s *sqliteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Add relies on the PRIMARY KEY for uniqueness, so concurrent subscribes for
// the same identity cannot produce duplicate records.
func (s *sqliteStore) Add(ctx context.Context, identity string) (AddResult, error) {
	identity = strings.TrimSpace(identity)
	if identity == "" {
		return AlreadySubscribed, errors.New("store: empty identity")
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO subscribers(identity, subscribed_at) VALUES(?, ?)
		 ON CONFLICT(identity) DO NOTHING`,
		identity, time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return AlreadySubscribed, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return AlreadySubscribed, err
	}
	if n == 0 {
		return AlreadySubscribed, nil
	}
	return Inserted, nil
}

func (s *sqliteStore) Remove(ctx context.Context, identity string) (RemoveResult, error) {
	identity = strings.TrimSpace(identity)
	if identity == "" {
		return NotSubscribed, errors.New("store: empty identity")
	}
	res, err := s.db.ExecContext(ctx, `DELETE FROM subscribers WHERE identity = ?`, identity)
	if err != nil {
		return NotSubscribed, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return NotSubscribed, err
	}
	if n == 0 {
		return NotSubscribed, nil
	}
	return Removed, nil
}

func (s *sqliteStore) ListAll(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT identity FROM subscribers ORDER BY subscribed_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}
