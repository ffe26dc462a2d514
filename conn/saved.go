package conn

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/tabledock/tabledock/persist"
)

const savedBlobName = "connections"

// Saved manages the operator's list of stored connections, persisted through
// the injected storage port. It is the durable counterpart of the per-run
// open-session state held by the sessions package.
type Saved struct {
	store persist.Store
	conns []Connection
}

// LoadSaved reads the stored connection list. A missing blob yields an empty
// list; a corrupt blob is an error so the operator's data is never silently
// discarded.
func LoadSaved(store persist.Store) (*Saved, error) {
	s := &Saved{store: store}

	data, err := store.Load(savedBlobName)
	if err != nil {
		if errors.Is(err, persist.ErrNotFound) {
			return s, nil
		}
		return nil, fmt.Errorf("failed to load saved connections: %w", err)
	}
	if err := json.Unmarshal(data, &s.conns); err != nil {
		return nil, fmt.Errorf("failed to decode saved connections: %w", err)
	}
	return s, nil
}

func (s *Saved) flush() error {
	data, err := json.Marshal(s.conns)
	if err != nil {
		return fmt.Errorf("failed to encode saved connections: %w", err)
	}
	return s.store.Save(savedBlobName, data)
}

// All returns the stored connections in insertion order.
func (s *Saved) All() []Connection {
	out := make([]Connection, len(s.conns))
	copy(out, s.conns)
	return out
}

// Add appends a new connection and persists the list.
func (s *Saved) Add(c Connection) error {
	s.conns = append(s.conns, c)
	return s.flush()
}

// Update applies fn to the connection with the given id and refreshes its
// LastUsed stamp. Unknown ids are a no-op.
func (s *Saved) Update(id string, fn func(*Connection)) error {
	for i := range s.conns {
		if s.conns[i].ID == id {
			fn(&s.conns[i])
			s.conns[i].LastUsed = time.Now()
			return s.flush()
		}
	}
	return nil
}

// MarkUsed refreshes the LastUsed stamp for the given connection.
func (s *Saved) MarkUsed(id string) error {
	return s.Update(id, func(*Connection) {})
}

// Remove deletes the connection with the given id.
func (s *Saved) Remove(id string) error {
	for i := range s.conns {
		if s.conns[i].ID == id {
			s.conns = append(s.conns[:i], s.conns[i+1:]...)
			return s.flush()
		}
	}
	return nil
}

// Find returns the stored connection with the given id, if present.
func (s *Saved) Find(id string) (Connection, bool) {
	for _, c := range s.conns {
		if c.ID == id {
			return c, true
		}
	}
	return Connection{}, false
}

// Clear removes every stored connection.
func (s *Saved) Clear() error {
	s.conns = nil
	return s.store.Clear(savedBlobName)
}
