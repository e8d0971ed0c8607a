package store

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Backend type tags accepted by Config.Type.
const (
	TypeMemory = "memory"
	TypeFile   = "file"
	TypeRedis  = "redis"
	TypeSQLite = "sqlite"
)

// Manager owns one backend instance and exposes plain Go error helpers
// over the Result envelope. Construct one per process and pass it
// down; there is deliberately no package-level singleton.
type Manager struct {
	store    Store
	interval time.Duration
	log      *slog.Logger
}

// NewManager resolves cfg.Type once and constructs the backend. The
// redis and sqlite tags are reserved and fail fast here rather than at
// first use.
func NewManager(cfg Config, log *slog.Logger) (*Manager, error) {
	if log == nil {
		log = slog.Default()
	}

	var backend Store
	switch cfg.Type {
	case TypeMemory, "":
		backend = NewMemory(cfg, log)
	case TypeFile:
		f, err := NewFile(cfg, log)
		if err != nil {
			return nil, err
		}
		backend = f
	case TypeRedis, TypeSQLite:
		return nil, fmt.Errorf("store: %s backend not implemented", cfg.Type)
	default:
		return nil, fmt.Errorf("store: unknown backend type %q", cfg.Type)
	}

	return &Manager{
		store:    backend,
		interval: cfg.CleanupInterval(),
		log:      log,
	}, nil
}

// Store exposes the underlying backend for callers that want the full
// envelope contract.
func (m *Manager) Store() Store {
	return m.store
}

// Set stores value under key; a zero ttl applies the configured
// default.
func (m *Manager) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	return unwrapErr(m.store.Set(ctx, key, value, ttl))
}

// Get returns the value for key, or nil when absent or expired.
func (m *Manager) Get(ctx context.Context, key string) (any, error) {
	r := m.store.Get(ctx, key)
	if !r.Success {
		return nil, fmt.Errorf("store: %s", r.Error)
	}
	return r.Data, nil
}

// Delete removes key, reporting whether it existed.
func (m *Manager) Delete(ctx context.Context, key string) (bool, error) {
	r := m.store.Delete(ctx, key)
	if !r.Success {
		return false, fmt.Errorf("store: %s", r.Error)
	}
	existed, _ := r.Data.(bool)
	return existed, nil
}

// Exists reports whether key is present and unexpired.
func (m *Manager) Exists(ctx context.Context, key string) (bool, error) {
	r := m.store.Exists(ctx, key)
	if !r.Success {
		return false, fmt.Errorf("store: %s", r.Error)
	}
	ok, _ := r.Data.(bool)
	return ok, nil
}

// RunMaintenance sweeps expired entries on the configured interval
// until ctx is done. Run it in its own goroutine.
func (m *Manager) RunMaintenance(ctx context.Context) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if r := m.store.Maintenance(ctx); !r.Success {
				m.log.Warn("state store maintenance failed", "error", r.Error)
			}
		}
	}
}

// Close releases backend resources.
func (m *Manager) Close() error {
	return m.store.Close()
}

func unwrapErr(r Result) error {
	if r.Success {
		return nil
	}
	return fmt.Errorf("store: %s", r.Error)
}
