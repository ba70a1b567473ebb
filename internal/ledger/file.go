package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"student-rooms/internal/logger"
)

// FileStore persists the ledger as a JSON object mapping dedup keys to
// RFC3339 first-seen timestamps.
type FileStore struct {
	*seenSet
	path string
	log  logger.Logger
}

// NewFileStore returns a store backed by path.
func NewFileStore(path string, log logger.Logger) *FileStore {
	return &FileStore{
		seenSet: newSeenSet(),
		path:    path,
		log:     log.With(logger.Component("ledger"), logger.String("path", path)),
	}
}

// Path returns the backing file.
func (f *FileStore) Path() string { return f.path }

// Load reads the file. A missing file is StatusAbsent and an unparseable
// one is StatusCorrupt; both leave the store empty and return no error.
func (f *FileStore) Load(ctx context.Context) (LoadStatus, error) {
	if err := ctx.Err(); err != nil {
		return StatusAbsent, err
	}
	data, err := os.ReadFile(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		return StatusAbsent, nil
	}
	if err != nil {
		return StatusAbsent, fmt.Errorf("read ledger: %w", err)
	}

	var raw map[string]string
	if err := json.Unmarshal(data, &raw); err != nil {
		f.log.Warn("Ledger file is corrupt, starting empty", logger.Err(err))
		return StatusCorrupt, nil
	}

	entries := make(map[string]time.Time, len(raw))
	now := time.Now().UTC().Truncate(time.Second)
	for key, ts := range raw {
		at, err := time.Parse(time.RFC3339, ts)
		if err != nil {
			at = now
		}
		entries[key] = at
	}
	f.merge(entries)
	f.log.Debug("Ledger loaded", logger.Int("entries", len(entries)))
	return StatusLoaded, nil
}

// Flush rewrites the whole file atomically: a temp file in the same
// directory is written, synced and renamed over the target.
func (f *FileStore) Flush(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	pending := f.takePending()

	out := make(map[string]string, f.Len())
	for key, at := range f.snapshot() {
		out[key] = at.Format(time.RFC3339)
	}
	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		f.restorePending(pending)
		return fmt.Errorf("encode ledger: %w", err)
	}
	if err := writeAtomic(f.path, data); err != nil {
		f.restorePending(pending)
		return err
	}
	return nil
}

func (f *FileStore) Close() error { return nil }

func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create ledger dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".seen_options-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp ledger: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp ledger: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync temp ledger: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp ledger: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("replace ledger: %w", err)
	}
	return nil
}
