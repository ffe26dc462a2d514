// Package registry holds the server-resident mapping from session identifiers
// to live connection credentials, with a periodic TTL sweep. It is constructed
// once at process start and handed to every request path; nothing else holds a
// reference to its entries.
package registry

import (
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/tabledock/tabledock/conn"
)

const (
	// DefaultRetention is how long an unused entry survives.
	DefaultRetention = time.Hour
	// DefaultSweepInterval is how often the sweep runs.
	DefaultSweepInterval = 30 * time.Minute
)

// ErrNotFound indicates the session id is not registered.
var ErrNotFound = errors.New("connection not found")

// Entry is a registered connection plus its registry bookkeeping.
type Entry struct {
	Connection   conn.Connection
	RegisteredAt time.Time
	LastUsed     time.Time
}

// Registry is the process-wide session store. All access, including the
// sweep, goes through one mutex so a lookup can never race a concurrent
// eviction of the same key.
type Registry struct {
	mu        sync.RWMutex
	entries   map[string]*Entry
	retention time.Duration
	logger    zerolog.Logger
	stopCh    chan struct{}
	stopOnce  sync.Once
}

// New creates a registry and starts its sweep ticker for the lifetime of the
// process (until Stop).
func New(logger zerolog.Logger, retention, sweepInterval time.Duration) *Registry {
	if retention <= 0 {
		retention = DefaultRetention
	}
	if sweepInterval <= 0 {
		sweepInterval = DefaultSweepInterval
	}
	r := &Registry{
		entries:   map[string]*Entry{},
		retention: retention,
		logger:    logger,
		stopCh:    make(chan struct{}),
	}
	go r.sweepLoop(sweepInterval)
	return r
}

func (r *Registry) sweepLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			r.Sweep()
		case <-r.stopCh:
			return
		}
	}
}

// Register inserts or overwrites the entry for id, stamping both timestamps
// to now. Registering the same id twice is not an error.
func (r *Registry) Register(id string, c conn.Connection) {
	now := time.Now()
	r.mu.Lock()
	r.entries[id] = &Entry{Connection: c, RegisteredAt: now, LastUsed: now}
	r.mu.Unlock()

	r.logger.Info().Str("connection_id", id).Str("region", c.Region).Msg("registered connection")
}

// Lookup returns the connection for id and refreshes its LastUsed stamp.
func (r *Registry) Lookup(id string) (conn.Connection, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.entries[id]
	if !ok {
		r.logger.Warn().Str("connection_id", id).Msg("connection not found")
		return conn.Connection{}, ErrNotFound
	}
	entry.LastUsed = time.Now()
	return entry.Connection, nil
}

// Unregister removes the entry for id and reports whether anything was
// removed.
func (r *Registry) Unregister(id string) bool {
	r.mu.Lock()
	_, ok := r.entries[id]
	delete(r.entries, id)
	r.mu.Unlock()

	if ok {
		r.logger.Info().Str("connection_id", id).Msg("unregistered connection")
	}
	return ok
}

// Listing is one registered session as reported by List.
type Listing struct {
	ID           string
	Connection   conn.Connection
	RegisteredAt time.Time
	LastUsed     time.Time
}

// List snapshots the registered sessions.
func (r *Registry) List() []Listing {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Listing, 0, len(r.entries))
	for id, e := range r.entries {
		out = append(out, Listing{
			ID:           id,
			Connection:   e.Connection,
			RegisteredAt: e.RegisteredAt,
			LastUsed:     e.LastUsed,
		})
	}
	return out
}

// Sweep evicts every entry whose LastUsed is older than the retention window.
// It holds the same lock as Register/Lookup, so the read-then-delete per key
// is atomic with respect to in-flight lookups.
func (r *Registry) Sweep() int {
	cutoff := time.Now().Add(-r.retention)

	r.mu.Lock()
	var swept int
	for id, e := range r.entries {
		if e.LastUsed.Before(cutoff) {
			delete(r.entries, id)
			swept++
		}
	}
	r.mu.Unlock()

	if swept > 0 {
		r.logger.Info().Int("count", swept).Msg("swept stale connections")
	}
	return swept
}

// Len reports the number of registered sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// Stop halts the sweep goroutine. Safe to call more than once.
func (r *Registry) Stop() {
	r.stopOnce.Do(func() { close(r.stopCh) })
}
