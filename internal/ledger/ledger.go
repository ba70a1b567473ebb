// Package ledger remembers which room options have already been reported.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"student-rooms/internal/logger"
)

// LoadStatus describes what Load found.
type LoadStatus int

const (
	// StatusAbsent means there was no previous ledger.
	StatusAbsent LoadStatus = iota
	// StatusLoaded means a ledger was read.
	StatusLoaded
	// StatusCorrupt means the ledger was unreadable, fully or in part, and
	// the unreadable part was treated as empty.
	StatusCorrupt
)

func (s LoadStatus) String() string {
	switch s {
	case StatusLoaded:
		return "loaded"
	case StatusCorrupt:
		return "corrupt"
	default:
		return "absent"
	}
}

// Backend names accepted by Open.
const (
	BackendJSON   = "json"
	BackendSQLite = "sqlite"
	BackendRedis  = "redis"
	BackendMemory = "memory"
)

// ErrUnknownBackend is returned by Open for unsupported backends.
var ErrUnknownBackend = errors.New("unknown ledger backend")

// Store is the set of dedup keys seen so far. Keys are only ever added.
type Store interface {
	HasSeen(key string) bool
	// MarkSeen records key. The first-seen time of a known key is kept.
	MarkSeen(key string, at time.Time)
	FirstSeen(key string) (time.Time, bool)
	Load(ctx context.Context) (LoadStatus, error)
	Flush(ctx context.Context) error
	Len() int
	Close() error
}

// Config selects and configures a backend.
type Config struct {
	Backend       string
	Path          string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisKey      string
}

// Open builds the configured store. It does not load it.
func Open(cfg Config, log logger.Logger) (Store, error) {
	switch cfg.Backend {
	case "", BackendJSON:
		path := cfg.Path
		if path == "" {
			path = DefaultPath("seen_options.json")
		}
		return NewFileStore(path, log), nil
	case BackendSQLite:
		path := cfg.Path
		if path == "" {
			path = DefaultPath("seen_options.db")
		}
		return NewSQLiteStore(path, log)
	case BackendRedis:
		return NewRedisStore(RedisOptions{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			Key:      cfg.RedisKey,
		}, log), nil
	case BackendMemory:
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, cfg.Backend)
	}
}

// DefaultPath returns name inside $XDG_DATA_HOME/student-rooms-cli, falling
// back to ~/.local/share.
func DefaultPath(name string) string {
	base := os.Getenv("XDG_DATA_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			home = "."
		}
		base = filepath.Join(home, ".local", "share")
	}
	return filepath.Join(base, "student-rooms-cli", name)
}

// seenSet is the in-memory state shared by every backend. pending holds
// the keys added since the last successful flush.
type seenSet struct {
	mu      sync.RWMutex
	seen    map[string]time.Time
	pending map[string]time.Time
}

func newSeenSet() *seenSet {
	return &seenSet{seen: map[string]time.Time{}, pending: map[string]time.Time{}}
}

func (s *seenSet) HasSeen(key string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.seen[key]
	return ok
}

func (s *seenSet) MarkSeen(key string, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.seen[key]; ok {
		return
	}
	at = at.UTC().Truncate(time.Second)
	s.seen[key] = at
	s.pending[key] = at
}

func (s *seenSet) FirstSeen(key string) (time.Time, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	at, ok := s.seen[key]
	return at, ok
}

func (s *seenSet) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.seen)
}

// merge adds loaded entries without overriding earlier first-seen times.
func (s *seenSet) merge(entries map[string]time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, at := range entries {
		if cur, ok := s.seen[k]; !ok || at.Before(cur) {
			s.seen[k] = at
		}
	}
}

func (s *seenSet) snapshot() map[string]time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]time.Time, len(s.seen))
	for k, v := range s.seen {
		out[k] = v
	}
	return out
}

// takePending hands the unflushed keys to a writer. On failure the writer
// gives them back with restorePending.
func (s *seenSet) takePending() map[string]time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.pending
	s.pending = map[string]time.Time{}
	return out
}

func (s *seenSet) restorePending(entries map[string]time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, v := range entries {
		if _, ok := s.pending[k]; !ok {
			s.pending[k] = v
		}
	}
}
