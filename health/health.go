// Package health tracks connectivity of the single active connection and
// drives rate-limited automatic reconnects until the operator disconnects.
package health

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/tabledock/tabledock/conn"
	"github.com/tabledock/tabledock/persist"
)

// Status is the visible connectivity state.
type Status string

const (
	StatusDisconnected Status = "disconnected"
	StatusConnecting   Status = "connecting"
	StatusTesting      Status = "testing"
	StatusConnected    Status = "connected"
	StatusError        Status = "error"
	StatusReconnecting Status = "reconnecting"
)

// DefaultRetryDelay separates an error from the automatic reconnect attempt.
const DefaultRetryDelay = 3 * time.Second

const currentBlobName = "current_connection"

// Tester probes a connection, typically by listing tables through the API.
type Tester interface {
	Test(ctx context.Context, c conn.Connection) error
}

// TesterFunc adapts a function to the Tester interface.
type TesterFunc func(ctx context.Context, c conn.Connection) error

func (f TesterFunc) Test(ctx context.Context, c conn.Connection) error { return f(ctx, c) }

// Machine is the per-active-connection health state machine. Transitions are
// surfaced as status values, never as panics or silent failures.
type Machine struct {
	mu         sync.Mutex
	logger     zerolog.Logger
	tester     Tester
	storage    persist.Store
	retryDelay time.Duration

	status  Status
	current *conn.Connection
	timer   *time.Timer
	subs    []func(Status)
}

// New builds a machine, restoring any persisted current connection. The
// restored connection starts disconnected until it is set or tested.
func New(logger zerolog.Logger, tester Tester, storage persist.Store) *Machine {
	m := &Machine{
		logger:     logger,
		tester:     tester,
		storage:    storage,
		retryDelay: DefaultRetryDelay,
		status:     StatusDisconnected,
	}
	m.restore()
	return m
}

func (m *Machine) restore() {
	data, err := m.storage.Load(currentBlobName)
	if err != nil {
		if !errors.Is(err, persist.ErrNotFound) {
			m.logger.Error().Err(err).Msg("failed to load current connection")
		}
		return
	}
	var c conn.Connection
	if err := json.Unmarshal(data, &c); err != nil {
		m.logger.Error().Err(err).Msg("failed to decode current connection")
		return
	}
	m.current = &c
}

// Subscribe registers an observer of status changes, notified synchronously
// in registration order.
func (m *Machine) Subscribe(fn func(Status)) {
	m.mu.Lock()
	m.subs = append(m.subs, fn)
	m.mu.Unlock()
}

// Status returns the current visible status.
func (m *Machine) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}

// Current returns the current connection, if one is set.
func (m *Machine) Current() (conn.Connection, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current == nil {
		return conn.Connection{}, false
	}
	return *m.current, true
}

// setStatus transitions to s, manages the reconnect timer, then notifies
// observers. Entering error arms exactly one retry timer, replacing any
// pending one; entering connected or disconnected cancels it.
func (m *Machine) setStatus(s Status) {
	m.mu.Lock()
	m.status = s

	switch s {
	case StatusError:
		if m.timer != nil {
			m.timer.Stop()
		}
		m.timer = time.AfterFunc(m.retryDelay, func() {
			m.AutoReconnect(context.Background())
		})
	case StatusConnected, StatusDisconnected:
		if m.timer != nil {
			m.timer.Stop()
			m.timer = nil
		}
	}

	subs := append(([]func(Status))(nil), m.subs...)
	m.mu.Unlock()

	for _, fn := range subs {
		fn(s)
	}
}

// SetConnection makes c the current connection, persists it, and moves
// optimistically to connected.
func (m *Machine) SetConnection(c conn.Connection) {
	m.mu.Lock()
	m.current = &c
	m.mu.Unlock()

	m.save(&c)
	m.setStatus(StatusConnected)
}

// Disconnect clears the current connection and returns to the initial state.
// This is the only way to end the reconnect loop.
func (m *Machine) Disconnect() {
	m.mu.Lock()
	m.current = nil
	m.mu.Unlock()

	m.save(nil)
	m.setStatus(StatusDisconnected)
}

func (m *Machine) save(c *conn.Connection) {
	if c == nil {
		if err := m.storage.Clear(currentBlobName); err != nil {
			m.logger.Error().Err(err).Msg("failed to clear current connection")
		}
		return
	}
	data, err := json.Marshal(c)
	if err != nil {
		m.logger.Error().Err(err).Msg("failed to encode current connection")
		return
	}
	if err := m.storage.Save(currentBlobName, data); err != nil {
		m.logger.Error().Err(err).Msg("failed to save current connection")
	}
}

// TestCurrent probes the current connection and resolves to connected or
// error. With no current connection the status becomes error.
func (m *Machine) TestCurrent(ctx context.Context) bool {
	m.mu.Lock()
	current := m.current
	m.mu.Unlock()

	if current == nil {
		m.setStatus(StatusError)
		return false
	}

	m.setStatus(StatusTesting)
	if err := m.tester.Test(ctx, *current); err != nil {
		m.logger.Warn().Err(err).Str("connection_id", current.ID).Msg("connection test failed")
		m.setStatus(StatusError)
		return false
	}

	m.setStatus(StatusConnected)
	return true
}

// Reconnect re-runs the connection test on operator request.
func (m *Machine) Reconnect(ctx context.Context) bool {
	m.mu.Lock()
	hasCurrent := m.current != nil
	m.mu.Unlock()

	if !hasCurrent {
		return false
	}
	return m.TestCurrent(ctx)
}

// AutoReconnect is the timer-driven retry: it announces reconnecting, then
// re-runs the test. Failure re-enters error, which re-arms the timer,
// producing an unbounded but rate-limited loop.
func (m *Machine) AutoReconnect(ctx context.Context) bool {
	m.mu.Lock()
	hasCurrent := m.current != nil
	m.mu.Unlock()

	if !hasCurrent {
		return false
	}

	m.logger.Info().Msg("attempting automatic reconnect")
	m.setStatus(StatusReconnecting)
	return m.TestCurrent(ctx)
}
