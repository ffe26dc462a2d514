package sessions

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/tj/assert"

	"github.com/tabledock/tabledock/conn"
)

func testConnection(id, name string) conn.Connection {
	return conn.Connection{ID: id, Name: name, Region: "us-east-1"}
}

func TestOpenSetsActive(t *testing.T) {
	o := New(zerolog.Nop())

	id := o.Open(testConnection("c1", "first"))
	assert.Equal(t, "c1", id)
	assert.Equal(t, "c1", o.ActiveID())

	sess, ok := o.Active()
	assert.True(t, ok)
	assert.Equal(t, ViewTabTable, sess.ActiveViewTab)
	assert.Equal(t, "", sess.SelectedTable)
}

func TestReopenOverwritesKeepingPosition(t *testing.T) {
	o := New(zerolog.Nop())

	o.Open(testConnection("c1", "first"))
	o.Open(testConnection("c2", "second"))
	o.SetTables("c1", []string{"users"}, false, "")

	// re-opening c1 resets its sub-state but keeps tab order
	o.Open(testConnection("c1", "first again"))

	tabs := o.Tabs()
	assert.Len(t, tabs, 2)
	assert.Equal(t, "c1", tabs[0].ID)
	assert.Equal(t, "first again", tabs[0].Title)

	sess, ok := o.Session("c1")
	assert.True(t, ok)
	assert.Empty(t, sess.Tables)
}

func TestCloseActivePicksFirstRemaining(t *testing.T) {
	o := New(zerolog.Nop())

	o.Open(testConnection("c1", "first"))
	o.Open(testConnection("c2", "second"))
	o.Open(testConnection("c3", "third"))
	assert.Equal(t, "c3", o.ActiveID())

	o.Close("c3")
	assert.Equal(t, "c1", o.ActiveID())

	o.Close("c2")
	assert.Equal(t, "c1", o.ActiveID())

	o.Close("c1")
	assert.Equal(t, "", o.ActiveID())
	assert.False(t, o.HasOpen())
}

func TestCloseInactiveKeepsActive(t *testing.T) {
	o := New(zerolog.Nop())

	o.Open(testConnection("c1", "first"))
	o.Open(testConnection("c2", "second"))

	o.Close("c1")
	assert.Equal(t, "c2", o.ActiveID())
}

func TestSetActiveUnknownIsNoOp(t *testing.T) {
	o := New(zerolog.Nop())

	o.Open(testConnection("c1", "first"))

	var propagated []string
	o.OnActiveConnection(func(c conn.Connection) {
		propagated = append(propagated, c.ID)
	})

	o.SetActive("ghost")
	assert.Equal(t, "c1", o.ActiveID())
	assert.Empty(t, propagated)
}

func TestSetActivePropagatesConnection(t *testing.T) {
	o := New(zerolog.Nop())

	var propagated []string
	o.OnActiveConnection(func(c conn.Connection) {
		propagated = append(propagated, c.ID)
	})

	o.Open(testConnection("c1", "first"))
	o.Open(testConnection("c2", "second"))
	o.SetActive("c1")

	assert.Equal(t, []string{"c1", "c2", "c1"}, propagated)
}

func TestSelectTable(t *testing.T) {
	o := New(zerolog.Nop())
	o.Open(testConnection("c1", "first"))

	t.Run("choosing a table resets the view tab", func(t *testing.T) {
		o.SetActiveDataTab(ViewTab("json"))
		o.SelectTable("users")

		sess, _ := o.Active()
		assert.Equal(t, "users", sess.SelectedTable)
		assert.Equal(t, ViewTabTable, sess.ActiveViewTab)
	})

	t.Run("clearing the table leaves the view tab unchanged", func(t *testing.T) {
		o.SelectTable("users")
		o.SetActiveDataTab(ViewTab("json"))
		o.SelectTable("")

		sess, _ := o.Active()
		assert.Equal(t, "", sess.SelectedTable)
		assert.Equal(t, ViewTab("json"), sess.ActiveViewTab)
	})

	t.Run("no active session is a no-op", func(t *testing.T) {
		empty := New(zerolog.Nop())
		empty.SelectTable("users")
		assert.False(t, empty.HasOpen())
	})
}

func TestSubStateIsolation(t *testing.T) {
	o := New(zerolog.Nop())
	o.Open(testConnection("a", "A"))
	o.Open(testConnection("b", "B"))

	o.SetTables("a", []string{"users", "orders"}, true, "")
	o.SetLoading("a", true)
	o.SetError("a", "boom")

	b, ok := o.Session("b")
	assert.True(t, ok)
	assert.Empty(t, b.Tables)
	assert.False(t, b.TablesLoading)
	assert.False(t, b.IsLoading)
	assert.Equal(t, "", b.Error)

	a, ok := o.Session("a")
	assert.True(t, ok)
	assert.Equal(t, []string{"users", "orders"}, a.Tables)
	assert.True(t, a.TablesLoading)
	assert.True(t, a.IsLoading)
	assert.Equal(t, "boom", a.Error)
}

func TestSessionReturnsCopy(t *testing.T) {
	o := New(zerolog.Nop())
	o.Open(testConnection("a", "A"))
	o.SetTables("a", []string{"users"}, false, "")

	sess, _ := o.Session("a")
	sess.Tables[0] = "mutated"
	sess.IsLoading = true

	again, _ := o.Session("a")
	assert.Equal(t, []string{"users"}, again.Tables)
	assert.False(t, again.IsLoading)
}

func TestSubscribersNotifiedInOrder(t *testing.T) {
	o := New(zerolog.Nop())

	var calls []string
	o.Subscribe(func() { calls = append(calls, "first") })
	o.Subscribe(func() { calls = append(calls, "second") })

	o.Open(testConnection("c1", "first"))

	assert.Equal(t, []string{"first", "second"}, calls)
}

func TestSetSubStateForUnknownSession(t *testing.T) {
	o := New(zerolog.Nop())
	o.Open(testConnection("c1", "first"))

	o.SetTables("ghost", []string{"x"}, false, "")
	o.SetLoading("ghost", true)
	o.SetError("ghost", "x")

	sess, _ := o.Session("c1")
	assert.Empty(t, sess.Tables)
	assert.False(t, sess.IsLoading)
}
