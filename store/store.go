// Package store provides the bot's durable key/value state: a small
// pluggable store with per-entry TTL, lazy expiry on read and a
// periodic maintenance sweep. Two backends exist today, an in-process
// map and a JSON-file-backed variant that survives restarts; redis and
// sqlite are reserved backend tags that fail fast at construction.
//
// Every operation returns a Result envelope instead of raising for
// expected failure modes, so a persistence hiccup degrades to "treat
// as uninitialized" rather than crashing a call path. The Manager type
// wraps a backend with plain Go error helpers for callers that prefer
// them.
package store

import (
	"context"
	"regexp"
	"strings"
	"time"
)

// Config selects and tunes a backend. Durations are carried as
// millisecond integers so the YAML shape matches the wire/API shape.
type Config struct {
	// Type is one of "memory", "file", "redis" or "sqlite". Empty
	// selects memory.
	Type string `yaml:"type" json:"type"`
	// FilePath locates the JSON document for the file backend.
	FilePath string `yaml:"file_path" json:"file_path"`
	// DefaultTTLMs applies to entries stored without an explicit TTL;
	// zero means entries never expire.
	DefaultTTLMs int `yaml:"default_ttl_ms" json:"default_ttl_ms"`
	// CleanupIntervalMs is the maintenance sweep period; default 60s.
	CleanupIntervalMs int `yaml:"cleanup_interval_ms" json:"cleanup_interval_ms"`
}

// DefaultTTL returns the default entry TTL as a duration.
func (c Config) DefaultTTL() time.Duration {
	if c.DefaultTTLMs <= 0 {
		return 0
	}
	return time.Duration(c.DefaultTTLMs) * time.Millisecond
}

// CleanupInterval returns the sweep period, defaulting to one minute.
func (c Config) CleanupInterval() time.Duration {
	if c.CleanupIntervalMs <= 0 {
		return time.Minute
	}
	return time.Duration(c.CleanupIntervalMs) * time.Millisecond
}

// Entry is one stored record with its bookkeeping metadata. The JSON
// shape is the file backend's on-disk format: timestamps serialize as
// RFC 3339 strings, TTL as milliseconds.
type Entry struct {
	Value        any       `json:"value"`
	Created      time.Time `json:"created"`
	Updated      time.Time `json:"updated"`
	TTLMs        *int64    `json:"ttl,omitempty"`
	AccessCount  int64     `json:"accessCount"`
	LastAccessed time.Time `json:"lastAccessed"`
}

// expired reports whether the entry's TTL has elapsed relative to its
// last update. Entries without a TTL never expire.
func (e *Entry) expired(now time.Time) bool {
	if e.TTLMs == nil {
		return false
	}
	return now.Sub(e.Updated) > time.Duration(*e.TTLMs)*time.Millisecond
}

// Result is the envelope returned by every store operation.
type Result struct {
	Success   bool      `json:"success"`
	Data      any       `json:"data,omitempty"`
	Error     string    `json:"error,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

func okResult(data any) Result {
	return Result{Success: true, Data: data, Timestamp: time.Now()}
}

func errResult(err error) Result {
	return Result{Success: false, Error: err.Error(), Timestamp: time.Now()}
}

// Stats describes one backend instance.
type Stats struct {
	Backend   string    `json:"backend"`
	Keys      int       `json:"keys"`
	Hits      int64     `json:"hits"`
	Misses    int64     `json:"misses"`
	Sets      int64     `json:"sets"`
	Deletes   int64     `json:"deletes"`
	Sweeps    int64     `json:"sweeps"`
	LastSweep time.Time `json:"lastSweep,omitzero"`
}

// Store is the backend-agnostic contract. A ttl of zero on Set applies
// the configured default; expired entries are logically absent on
// Get/Exists and physically removed by Maintenance.
type Store interface {
	Set(ctx context.Context, key string, value any, ttl time.Duration) Result
	Get(ctx context.Context, key string) Result
	Delete(ctx context.Context, key string) Result
	Exists(ctx context.Context, key string) Result
	Keys(ctx context.Context, pattern string) Result
	Clear(ctx context.Context) Result
	Stats(ctx context.Context) Result
	Maintenance(ctx context.Context) Result
	Close() error
}

// compilePattern translates a key pattern into a regexp. Only "*" is
// special (matches any run of characters); everything else is literal.
// An empty pattern matches all keys.
func compilePattern(pattern string) (*regexp.Regexp, error) {
	if pattern == "" {
		return nil, nil
	}

	parts := strings.Split(pattern, "*")
	for i, part := range parts {
		parts[i] = regexp.QuoteMeta(part)
	}
	return regexp.Compile("^" + strings.Join(parts, ".*") + "$")
}
