package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// File is the persistent backend: memory semantics plus a JSON
// document rewritten on every mutating operation. The single mutex
// serializes reads, writes and the maintenance sweep, so persistence
// never races with itself.
type File struct {
	mu    sync.Mutex
	table table
	path  string
	log   *slog.Logger
}

// NewFile creates a file backend persisting to cfg.FilePath. A missing
// or corrupt file is treated as "start empty" and logged, not fatal;
// only an unusable parent directory fails construction.
func NewFile(cfg Config, log *slog.Logger) (*File, error) {
	if log == nil {
		log = slog.Default()
	}
	if cfg.FilePath == "" {
		return nil, errors.New("store: file backend requires file_path")
	}

	if dir := filepath.Dir(cfg.FilePath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("store: create state directory: %w", err)
		}
	}

	f := &File{
		table: newTable(cfg.DefaultTTL()),
		path:  cfg.FilePath,
		log:   log,
	}
	f.load()
	return f, nil
}

// load rehydrates the entry map from disk.
func (f *File) load() {
	data, err := os.ReadFile(f.path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			f.log.Warn("state file unreadable, starting empty", "path", f.path, "error", err)
		}
		return
	}

	entries := make(map[string]*Entry)
	if err := json.Unmarshal(data, &entries); err != nil {
		f.log.Warn("state file corrupt, starting empty", "path", f.path, "error", err)
		return
	}

	f.table.entries = entries
	f.log.Debug("state file loaded", "path", f.path, "keys", len(entries))
}

// persist writes the full entry map atomically (temp file + rename).
// Caller holds f.mu.
func (f *File) persist() error {
	data, err := json.MarshalIndent(f.table.entries, "", "  ")
	if err != nil {
		return fmt.Errorf("store: encode state: %w", err)
	}

	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("store: write state: %w", err)
	}
	if err := os.Rename(tmp, f.path); err != nil {
		return fmt.Errorf("store: replace state: %w", err)
	}
	return nil
}

// Set creates or updates the entry for key and persists.
func (f *File) Set(ctx context.Context, key string, value any, ttl time.Duration) Result {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.table.set(key, value, ttl)
	if err := f.persist(); err != nil {
		return errResult(err)
	}
	return okResult(nil)
}

// Get returns the value for key, or nil data when absent or expired.
// Reclaiming an expired entry persists the deletion.
func (f *File) Get(ctx context.Context, key string) Result {
	f.mu.Lock()
	defer f.mu.Unlock()

	entry, ok, reclaimed := f.table.get(key)
	if reclaimed {
		if err := f.persist(); err != nil {
			f.log.Warn("state persist after expiry failed", "key", key, "error", err)
		}
	}
	if !ok {
		return okResult(nil)
	}
	return okResult(entry.Value)
}

// Delete removes key and persists, reporting whether it existed.
func (f *File) Delete(ctx context.Context, key string) Result {
	f.mu.Lock()
	defer f.mu.Unlock()

	existed := f.table.delete(key)
	if existed {
		if err := f.persist(); err != nil {
			return errResult(err)
		}
	}
	return okResult(existed)
}

// Exists reports whether key is present and unexpired.
func (f *File) Exists(ctx context.Context, key string) Result {
	f.mu.Lock()
	defer f.mu.Unlock()

	_, ok, reclaimed := f.table.get(key)
	if reclaimed {
		if err := f.persist(); err != nil {
			f.log.Warn("state persist after expiry failed", "key", key, "error", err)
		}
	}
	return okResult(ok)
}

// Keys returns the unexpired keys matching pattern, sorted.
func (f *File) Keys(ctx context.Context, pattern string) Result {
	f.mu.Lock()
	defer f.mu.Unlock()

	keys, err := f.table.keys(pattern)
	if err != nil {
		return errResult(err)
	}
	return okResult(keys)
}

// Clear removes every entry and persists the empty map.
func (f *File) Clear(ctx context.Context) Result {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.table.clear()
	if err := f.persist(); err != nil {
		return errResult(err)
	}
	return okResult(nil)
}

// Stats returns backend counters.
func (f *File) Stats(ctx context.Context) Result {
	f.mu.Lock()
	defer f.mu.Unlock()

	return okResult(f.table.stats(TypeFile))
}

// Maintenance sweeps expired entries and persists once per sweep, not
// once per deletion.
func (f *File) Maintenance(ctx context.Context) Result {
	f.mu.Lock()
	defer f.mu.Unlock()

	removed := f.table.sweep()
	if removed > 0 {
		if err := f.persist(); err != nil {
			return errResult(err)
		}
		f.log.Debug("state store sweep", "backend", TypeFile, "removed", removed)
	}
	return okResult(removed)
}

// Close is a no-op; every mutation is already on disk.
func (f *File) Close() error {
	return nil
}
