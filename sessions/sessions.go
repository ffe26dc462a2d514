// Package sessions holds the client-resident multi-tab state: an ordered
// collection of open connections, one active pointer, and per-session UI
// sub-state. All transitions are synchronous reactions to discrete events;
// observers are notified in registration order after each change.
package sessions

import (
	"sync"

	"github.com/rs/zerolog"

	"github.com/tabledock/tabledock/conn"
)

// ViewTab names the data view shown for a selected table.
type ViewTab string

// ViewTabTable is the default data view.
const ViewTabTable ViewTab = "table"

// OpenSession is the UI-facing state of one open connection. Sub-state never
// leaks between sessions; accessors hand out copies.
type OpenSession struct {
	Connection    conn.Connection
	SelectedTable string
	ActiveViewTab ViewTab
	IsLoading     bool
	Error         string
	Tables        []string
	TablesLoading bool
	TablesError   string
}

func (s OpenSession) clone() OpenSession {
	cp := s
	cp.Tables = append([]string(nil), s.Tables...)
	return cp
}

// Tab describes one connection tab for rendering.
type Tab struct {
	ID       string
	Title    string
	Closable bool
}

// Orchestrator owns the open-session collection. The zero value is not
// usable; construct with New.
type Orchestrator struct {
	mu       sync.Mutex
	logger   zerolog.Logger
	order    []string
	sessions map[string]*OpenSession
	activeID string

	subscribers []func()
	onActive    []func(conn.Connection)
}

func New(logger zerolog.Logger) *Orchestrator {
	return &Orchestrator{
		logger:   logger,
		sessions: map[string]*OpenSession{},
	}
}

// Subscribe registers an observer called synchronously after every state
// change, in registration order.
func (o *Orchestrator) Subscribe(fn func()) {
	o.mu.Lock()
	o.subscribers = append(o.subscribers, fn)
	o.mu.Unlock()
}

// OnActiveConnection registers a callback invoked whenever a session becomes
// active, carrying that session's connection. This is how the single-active
// connection view stays synchronized.
func (o *Orchestrator) OnActiveConnection(fn func(conn.Connection)) {
	o.mu.Lock()
	o.onActive = append(o.onActive, fn)
	o.mu.Unlock()
}

func (o *Orchestrator) notifyLocked() []func() {
	return append(([]func())(nil), o.subscribers...)
}

func runAll(fns []func()) {
	for _, fn := range fns {
		fn()
	}
}

// Open inserts a session for the connection with default sub-state, marks it
// active, and returns its id. Re-opening an already-open id overwrites the
// entry, keeping its position.
func (o *Orchestrator) Open(c conn.Connection) string {
	o.mu.Lock()
	id := c.ID
	if _, exists := o.sessions[id]; !exists {
		o.order = append(o.order, id)
	}
	o.sessions[id] = &OpenSession{
		Connection:    c,
		ActiveViewTab: ViewTabTable,
	}
	o.activeID = id
	active := append(([]func(conn.Connection))(nil), o.onActive...)
	subs := o.notifyLocked()
	o.mu.Unlock()

	for _, fn := range active {
		fn(c)
	}
	runAll(subs)
	return id
}

// Close removes the session. If it was active, the first remaining session in
// open order becomes active, or none if no sessions remain.
func (o *Orchestrator) Close(id string) {
	o.mu.Lock()
	delete(o.sessions, id)
	for i, existing := range o.order {
		if existing == id {
			o.order = append(o.order[:i], o.order[i+1:]...)
			break
		}
	}
	if o.activeID == id {
		o.activeID = ""
		if len(o.order) > 0 {
			o.activeID = o.order[0]
		}
	}
	subs := o.notifyLocked()
	o.mu.Unlock()

	runAll(subs)
}

// SetActive marks the session active and propagates its connection to the
// synchronized single-active view. Unknown ids are logged and ignored.
func (o *Orchestrator) SetActive(id string) {
	o.mu.Lock()
	sess, ok := o.sessions[id]
	if !ok {
		o.mu.Unlock()
		o.logger.Warn().Str("session_id", id).Msg("no open session for id")
		return
	}
	o.activeID = id
	c := sess.Connection
	active := append(([]func(conn.Connection))(nil), o.onActive...)
	subs := o.notifyLocked()
	o.mu.Unlock()

	for _, fn := range active {
		fn(c)
	}
	runAll(subs)
}

// SelectTable sets the selected table on the active session. A non-empty name
// resets the data view to its default; an empty name clears the selection and
// leaves the view tab unchanged.
func (o *Orchestrator) SelectTable(tableName string) {
	o.mu.Lock()
	sess, ok := o.sessions[o.activeID]
	if !ok {
		o.mu.Unlock()
		return
	}
	sess.SelectedTable = tableName
	if tableName != "" {
		sess.ActiveViewTab = ViewTabTable
	}
	subs := o.notifyLocked()
	o.mu.Unlock()

	runAll(subs)
}

// SetActiveDataTab switches the data view of whichever session is active.
func (o *Orchestrator) SetActiveDataTab(tab ViewTab) {
	o.mu.Lock()
	sess, ok := o.sessions[o.activeID]
	if !ok {
		o.mu.Unlock()
		return
	}
	sess.ActiveViewTab = tab
	subs := o.notifyLocked()
	o.mu.Unlock()

	runAll(subs)
}

// SetTables replaces the cached table list and table-loading state of the
// identified session.
func (o *Orchestrator) SetTables(id string, tables []string, loading bool, tablesErr string) {
	o.mu.Lock()
	sess, ok := o.sessions[id]
	if !ok {
		o.mu.Unlock()
		return
	}
	sess.Tables = append([]string(nil), tables...)
	sess.TablesLoading = loading
	sess.TablesError = tablesErr
	subs := o.notifyLocked()
	o.mu.Unlock()

	runAll(subs)
}

// SetLoading sets the loading flag of the identified session.
func (o *Orchestrator) SetLoading(id string, loading bool) {
	o.mu.Lock()
	sess, ok := o.sessions[id]
	if !ok {
		o.mu.Unlock()
		return
	}
	sess.IsLoading = loading
	subs := o.notifyLocked()
	o.mu.Unlock()

	runAll(subs)
}

// SetError sets the error message of the identified session.
func (o *Orchestrator) SetError(id string, message string) {
	o.mu.Lock()
	sess, ok := o.sessions[id]
	if !ok {
		o.mu.Unlock()
		return
	}
	sess.Error = message
	subs := o.notifyLocked()
	o.mu.Unlock()

	runAll(subs)
}

// ActiveID returns the active session id, or empty if none is open.
func (o *Orchestrator) ActiveID() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.activeID
}

// Active returns a copy of the active session.
func (o *Orchestrator) Active() (OpenSession, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	sess, ok := o.sessions[o.activeID]
	if !ok {
		return OpenSession{}, false
	}
	return sess.clone(), true
}

// Session returns a copy of the identified session.
func (o *Orchestrator) Session(id string) (OpenSession, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	sess, ok := o.sessions[id]
	if !ok {
		return OpenSession{}, false
	}
	return sess.clone(), true
}

// ConnectionByID returns the connection behind an open session.
func (o *Orchestrator) ConnectionByID(id string) (conn.Connection, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	sess, ok := o.sessions[id]
	if !ok {
		return conn.Connection{}, false
	}
	return sess.Connection, true
}

// Tabs lists the open sessions in open order for rendering.
func (o *Orchestrator) Tabs() []Tab {
	o.mu.Lock()
	defer o.mu.Unlock()
	tabs := make([]Tab, 0, len(o.order))
	for _, id := range o.order {
		sess, ok := o.sessions[id]
		if !ok {
			continue
		}
		tabs = append(tabs, Tab{ID: id, Title: sess.Connection.Name, Closable: true})
	}
	return tabs
}

// HasOpen reports whether any session is open.
func (o *Orchestrator) HasOpen() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.sessions) > 0
}
