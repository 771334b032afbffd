// Package store persists scans, arbitrage opportunities, listings and orders
// in a local SQLite database.
package store

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when an update targets a missing row.
var ErrNotFound = errors.New("record not found")

// Store is safe for concurrent use; writes are serialised.
type Store struct {
	db *sql.DB
	mu sync.Mutex
}

// Open opens (or creates) the database at path and applies the schema.
func Open(path string) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("store: create dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("store: open db: %w", err)
	}
	if path == ":memory:" {
		// Every pooled connection would otherwise get its own empty database.
		db.SetMaxOpenConns(1)
	} else if _, err := db.Exec(`PRAGMA journal_mode=WAL`); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: wal mode: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: migrate: %w", err)
	}
	return s, nil
}

// DB exposes the underlying handle so sibling stores can share the file.
func (s *Store) DB() *sql.DB { return s.db }

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS scans (
			id           INTEGER PRIMARY KEY AUTOINCREMENT,
			platform     TEXT NOT NULL,
			query        TEXT NOT NULL,
			result_count INTEGER NOT NULL DEFAULT 0,
			created_at   INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS opportunities (
			id            INTEGER PRIMARY KEY AUTOINCREMENT,
			query         TEXT NOT NULL,
			buy_platform  TEXT NOT NULL,
			buy_price     REAL NOT NULL,
			sell_platform TEXT NOT NULL,
			sell_price    REAL NOT NULL,
			est_profit    REAL NOT NULL,
			created_at    INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS listings (
			id              INTEGER PRIMARY KEY AUTOINCREMENT,
			platform        TEXT NOT NULL,
			external_id     TEXT NOT NULL DEFAULT '',
			title           TEXT NOT NULL,
			price           REAL NOT NULL,
			source_platform TEXT NOT NULL DEFAULT '',
			source_cost     REAL NOT NULL DEFAULT 0,
			status          TEXT NOT NULL DEFAULT 'active',
			created_at      INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS orders (
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			platform    TEXT NOT NULL,
			external_id TEXT NOT NULL DEFAULT '',
			listing_id  INTEGER NOT NULL DEFAULT 0,
			sale_price  REAL NOT NULL DEFAULT 0,
			cost        REAL NOT NULL DEFAULT 0,
			fees        REAL NOT NULL DEFAULT 0,
			status      TEXT NOT NULL DEFAULT 'pending',
			tracking    TEXT NOT NULL DEFAULT '',
			created_at  INTEGER NOT NULL,
			updated_at  INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_opportunities_profit ON opportunities(est_profit)`,
		`CREATE INDEX IF NOT EXISTS idx_orders_status ON orders(status)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("migrate %q: %w", stmt[:40], err)
		}
	}
	return nil
}

func unix(t time.Time) int64 {
	if t.IsZero() {
		t = time.Now()
	}
	return t.Unix()
}
