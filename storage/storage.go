// Package storage persists the seen-set of listing keys in a single
// SQLite file.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"time"

	_ "modernc.org/sqlite"

	"github.com/gilsadis1/rentalsbot/pkg/rental"
)

const schema = `
CREATE TABLE IF NOT EXISTS seen (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	source_name TEXT NOT NULL,
	listing_key TEXT NOT NULL UNIQUE,
	first_seen_at TEXT NOT NULL
)`

// Store is the persisted seen-set. Identifiers only ever accumulate;
// deleting the database file is the documented way to reset history.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
	path   string
}

// Open opens or creates the seen-set database at path. A file that
// cannot be opened as a SQLite database is discarded and recreated, so
// a corrupt or truncated state file degrades to a fresh history instead
// of failing the run.
func Open(path string, logger *slog.Logger) (*Store, error) {
	db, err := openAndInit(path)
	if err != nil {
		logger.Warn("Seen-set database unusable, starting with fresh history",
			"path", path,
			"error", err)
		if rmErr := os.Remove(path); rmErr != nil && !os.IsNotExist(rmErr) {
			return nil, fmt.Errorf("remove corrupt database: %w", rmErr)
		}
		db, err = openAndInit(path)
		if err != nil {
			return nil, fmt.Errorf("recreate database: %w", err)
		}
	}

	return &Store{db: db, logger: logger, path: path}, nil
}

func openAndInit(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// The sqlite driver defers real file access until the first
	// statement, so schema creation doubles as the corruption check.
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	return db, nil
}

// Contains reports whether key was recorded as seen in a previous run.
func (s *Store) Contains(ctx context.Context, key string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx, "SELECT 1 FROM seen WHERE listing_key = ?", key).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("query seen: %w", err)
	}
	return true, nil
}

// MarkSeen records every listing as seen at ts. Re-marking an already
// recorded key is a no-op, so the call is idempotent.
func (s *Store) MarkSeen(ctx context.Context, listings []*rental.Listing, ts time.Time) error {
	if len(listings) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	stamp := ts.UTC().Format(time.RFC3339)
	for _, l := range listings {
		if _, err := tx.ExecContext(ctx,
			"INSERT OR IGNORE INTO seen (source_name, listing_key, first_seen_at) VALUES (?, ?, ?)",
			l.Source, l.URL, stamp); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("insert seen %s: %w", l.URL, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit seen: %w", err)
	}

	s.logger.Info("Seen-set updated", "path", s.path, "marked", len(listings))
	return nil
}

// Count returns the number of recorded identifiers.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM seen").Scan(&n); err != nil {
		return 0, fmt.Errorf("count seen: %w", err)
	}
	return n, nil
}

// Close flushes and closes the backing database.
func (s *Store) Close() error {
	return s.db.Close()
}
