package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/mattn/go-sqlite3"

	"student-rooms/internal/logger"
)

// SQLiteStore keeps the ledger in a seen_options table.
type SQLiteStore struct {
	*seenSet
	path string
	conn *sql.DB
	log  logger.Logger
}

// NewSQLiteStore opens (or creates) the database at path.
func NewSQLiteStore(path string, log logger.Logger) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create ledger dir: %w", err)
	}
	s := &SQLiteStore{
		seenSet: newSeenSet(),
		path:    path,
		log:     log.With(logger.Component("ledger"), logger.String("path", path)),
	}
	if err := s.open(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) open() error {
	conn, err := sql.Open("sqlite3", s.path)
	if err != nil {
		return fmt.Errorf("open ledger db: %w", err)
	}
	// One writer; also keeps the file lock simple.
	conn.SetMaxOpenConns(1)
	s.conn = conn
	return nil
}

func (s *SQLiteStore) init(ctx context.Context) error {
	_, err := s.conn.ExecContext(ctx, `
	CREATE TABLE IF NOT EXISTS seen_options (
		dedup_key TEXT PRIMARY KEY,
		first_seen TEXT NOT NULL
	);
	`)
	return err
}

// Load creates the table if needed and reads every row. A file that is not
// a valid database is moved aside to <path>.corrupt and recreated.
func (s *SQLiteStore) Load(ctx context.Context) (LoadStatus, error) {
	info, statErr := os.Stat(s.path)
	existed := statErr == nil && info.Size() > 0

	entries, err := s.readAll(ctx)
	if isCorrupt(err) {
		s.log.Warn("Ledger database is corrupt, moving it aside", logger.Err(err))
		if err := s.recreate(ctx); err != nil {
			return StatusCorrupt, err
		}
		return StatusCorrupt, nil
	}
	if err != nil {
		return StatusAbsent, err
	}

	s.merge(entries)
	if !existed && len(entries) == 0 {
		return StatusAbsent, nil
	}
	return StatusLoaded, nil
}

func (s *SQLiteStore) readAll(ctx context.Context) (map[string]time.Time, error) {
	if err := s.init(ctx); err != nil {
		return nil, err
	}
	rows, err := s.conn.QueryContext(ctx, "SELECT dedup_key, first_seen FROM seen_options")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := map[string]time.Time{}
	for rows.Next() {
		var key, ts string
		if err := rows.Scan(&key, &ts); err != nil {
			return nil, err
		}
		at, err := time.Parse(time.RFC3339, ts)
		if err != nil {
			at = time.Now().UTC().Truncate(time.Second)
		}
		entries[key] = at
	}
	return entries, rows.Err()
}

func (s *SQLiteStore) recreate(ctx context.Context) error {
	s.conn.Close()
	if err := os.Rename(s.path, s.path+".corrupt"); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("move corrupt ledger: %w", err)
	}
	if err := s.open(); err != nil {
		return err
	}
	return s.init(ctx)
}

func isCorrupt(err error) bool {
	var sqliteErr sqlite3.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	return sqliteErr.Code == sqlite3.ErrNotADB || sqliteErr.Code == sqlite3.ErrCorrupt
}

// Flush inserts the keys added since the last flush. Existing rows keep
// their first-seen time.
func (s *SQLiteStore) Flush(ctx context.Context) error {
	pending := s.takePending()
	if len(pending) == 0 {
		return nil
	}
	if err := s.insert(ctx, pending); err != nil {
		s.restorePending(pending)
		return fmt.Errorf("flush ledger: %w", err)
	}
	return nil
}

func (s *SQLiteStore) insert(ctx context.Context, entries map[string]time.Time) error {
	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, "INSERT OR IGNORE INTO seen_options (dedup_key, first_seen) VALUES (?, ?)")
	if err != nil {
		return err
	}
	defer stmt.Close()

	for key, at := range entries {
		if _, err := stmt.ExecContext(ctx, key, at.Format(time.RFC3339)); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.conn.Close()
}
