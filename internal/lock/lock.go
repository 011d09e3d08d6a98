// Package lock serializes work per key. Manager holds an in-process mutex
// for each key in use and, when configured, a distributed lock on top so
// several replicas can share one database.
package lock

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/abhisek/vitalq/internal/logging"
)

// DefaultTTL bounds how long a distributed lock survives a crashed holder.
const DefaultTTL = 30 * time.Second

// UnlockFunc releases a distributed lock.
type UnlockFunc func(ctx context.Context) error

// Locker is a distributed lock. Lock blocks until the lock is held or ctx
// is done.
type Locker interface {
	Lock(ctx context.Context, key string, ttl time.Duration) (UnlockFunc, error)
}

type entry struct {
	mu   sync.Mutex
	refs int
}

// Manager hands out per-key mutual exclusion. Entries are reference
// counted and dropped when the last holder or waiter leaves.
type Manager struct {
	mu      sync.Mutex
	entries map[string]*entry

	locker Locker
	ttl    time.Duration
	log    *slog.Logger
}

// Option configures a Manager.
type Option func(*Manager)

// WithLocker adds a distributed lock around every critical section.
func WithLocker(l Locker) Option {
	return func(m *Manager) { m.locker = l }
}

// WithTTL sets the distributed lock TTL.
func WithTTL(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.ttl = d
		}
	}
}

// WithLogger sets the logger for release failures.
func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) { m.log = l }
}

// NewManager creates a Manager.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		entries: make(map[string]*entry),
		ttl:     DefaultTTL,
		log:     logging.NewNop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Manager) acquire(key string) *entry {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[key]
	if !ok {
		e = &entry{}
		m.entries[key] = e
	}
	e.refs++
	return e
}

func (m *Manager) release(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[key]
	if !ok {
		return
	}
	e.refs--
	if e.refs <= 0 {
		delete(m.entries, key)
	}
}

// Held returns the number of keys with a holder or waiter.
func (m *Manager) Held() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

// WithLock runs fn while holding the lock for key.
func (m *Manager) WithLock(ctx context.Context, key string, fn func(context.Context) error) error {
	e := m.acquire(key)
	e.mu.Lock()
	defer func() {
		e.mu.Unlock()
		m.release(key)
	}()

	if m.locker != nil {
		unlock, err := m.locker.Lock(ctx, key, m.ttl)
		if err != nil {
			return fmt.Errorf("acquire distributed lock %q: %w", key, err)
		}
		defer func() {
			if err := unlock(context.WithoutCancel(ctx)); err != nil {
				m.log.Warn("failed to release distributed lock; it will expire",
					"key", key, "ttl", m.ttl, "error", err)
			}
		}()
	}

	return fn(ctx)
}
