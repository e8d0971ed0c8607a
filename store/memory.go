package store

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"
)

// table is the entry map plus counters shared by the memory and file
// backends. Callers hold the backend mutex around every method.
type table struct {
	entries    map[string]*Entry
	defaultTTL time.Duration

	hits      int64
	misses    int64
	sets      int64
	deletes   int64
	sweeps    int64
	lastSweep time.Time
}

func newTable(defaultTTL time.Duration) table {
	return table{
		entries:    make(map[string]*Entry),
		defaultTTL: defaultTTL,
	}
}

func (t *table) set(key string, value any, ttl time.Duration) {
	now := time.Now()
	if ttl <= 0 {
		ttl = t.defaultTTL
	}

	var ttlMs *int64
	if ttl > 0 {
		ms := ttl.Milliseconds()
		ttlMs = &ms
	}

	if entry, ok := t.entries[key]; ok {
		entry.Value = value
		entry.Updated = now
		entry.TTLMs = ttlMs
	} else {
		t.entries[key] = &Entry{
			Value:        value,
			Created:      now,
			Updated:      now,
			TTLMs:        ttlMs,
			LastAccessed: now,
		}
	}
	t.sets++
}

// get returns the live entry for key, deleting it as a side effect
// when expired. The second return reports presence, the third whether
// an expired entry was reclaimed (the file backend persists on that).
func (t *table) get(key string) (*Entry, bool, bool) {
	entry, ok := t.entries[key]
	if !ok {
		t.misses++
		return nil, false, false
	}

	if entry.expired(time.Now()) {
		delete(t.entries, key)
		t.misses++
		return nil, false, true
	}

	entry.AccessCount++
	entry.LastAccessed = time.Now()
	t.hits++
	return entry, true, false
}

func (t *table) delete(key string) bool {
	_, ok := t.entries[key]
	if ok {
		delete(t.entries, key)
		t.deletes++
	}
	return ok
}

func (t *table) keys(pattern string) ([]string, error) {
	re, err := compilePattern(pattern)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	keys := make([]string, 0, len(t.entries))
	for key, entry := range t.entries {
		if entry.expired(now) {
			continue
		}
		if re == nil || re.MatchString(key) {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

func (t *table) clear() {
	t.entries = make(map[string]*Entry)
}

// sweep removes every expired entry and returns how many went.
func (t *table) sweep() int {
	now := time.Now()
	removed := 0
	for key, entry := range t.entries {
		if entry.expired(now) {
			delete(t.entries, key)
			removed++
		}
	}
	t.sweeps++
	t.lastSweep = now
	return removed
}

func (t *table) stats(backend string) Stats {
	return Stats{
		Backend:   backend,
		Keys:      len(t.entries),
		Hits:      t.hits,
		Misses:    t.misses,
		Sets:      t.sets,
		Deletes:   t.deletes,
		Sweeps:    t.sweeps,
		LastSweep: t.lastSweep,
	}
}

// Memory is the in-process backend. State does not survive restarts.
type Memory struct {
	mu    sync.Mutex
	table table
	log   *slog.Logger
}

// NewMemory creates a memory backend from cfg.
func NewMemory(cfg Config, log *slog.Logger) *Memory {
	if log == nil {
		log = slog.Default()
	}
	return &Memory{
		table: newTable(cfg.DefaultTTL()),
		log:   log,
	}
}

// Set creates or updates the entry for key.
func (m *Memory) Set(ctx context.Context, key string, value any, ttl time.Duration) Result {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.table.set(key, value, ttl)
	return okResult(nil)
}

// Get returns the value for key, or nil data when absent or expired.
func (m *Memory) Get(ctx context.Context, key string) Result {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok, _ := m.table.get(key)
	if !ok {
		return okResult(nil)
	}
	return okResult(entry.Value)
}

// Delete removes key, reporting whether it existed.
func (m *Memory) Delete(ctx context.Context, key string) Result {
	m.mu.Lock()
	defer m.mu.Unlock()

	return okResult(m.table.delete(key))
}

// Exists reports whether key is present and unexpired.
func (m *Memory) Exists(ctx context.Context, key string) Result {
	m.mu.Lock()
	defer m.mu.Unlock()

	_, ok, _ := m.table.get(key)
	return okResult(ok)
}

// Keys returns the unexpired keys matching pattern, sorted.
func (m *Memory) Keys(ctx context.Context, pattern string) Result {
	m.mu.Lock()
	defer m.mu.Unlock()

	keys, err := m.table.keys(pattern)
	if err != nil {
		return errResult(err)
	}
	return okResult(keys)
}

// Clear removes every entry.
func (m *Memory) Clear(ctx context.Context) Result {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.table.clear()
	return okResult(nil)
}

// Stats returns backend counters.
func (m *Memory) Stats(ctx context.Context) Result {
	m.mu.Lock()
	defer m.mu.Unlock()

	return okResult(m.table.stats(TypeMemory))
}

// Maintenance sweeps expired entries, returning how many were removed.
func (m *Memory) Maintenance(ctx context.Context) Result {
	m.mu.Lock()
	defer m.mu.Unlock()

	removed := m.table.sweep()
	if removed > 0 {
		m.log.Debug("state store sweep", "backend", TypeMemory, "removed", removed)
	}
	return okResult(removed)
}

// Close is a no-op for the memory backend.
func (m *Memory) Close() error {
	return nil
}
