package conn

import (
	"testing"
	"time"

	"github.com/tj/assert"

	"github.com/tabledock/tabledock/persist"
)

func TestSavedRoundtrip(t *testing.T) {
	store := persist.NewMemory()

	s, err := LoadSaved(store)
	assert.NoError(t, err)
	assert.Empty(t, s.All())

	a := New("alpha", "us-east-1", Credentials{AccessKeyID: "dummy", SecretAccessKey: "dummy"}, "")
	b := New("beta", "eu-west-1", Credentials{AccessKeyID: "dummy", SecretAccessKey: "dummy"}, "")
	assert.NoError(t, s.Add(a))
	assert.NoError(t, s.Add(b))

	// a fresh load sees both, in insertion order
	reloaded, err := LoadSaved(store)
	assert.NoError(t, err)
	all := reloaded.All()
	assert.Len(t, all, 2)
	assert.Equal(t, "alpha", all[0].Name)
	assert.Equal(t, "beta", all[1].Name)
}

func TestSavedUpdateRefreshesLastUsed(t *testing.T) {
	store := persist.NewMemory()
	s, _ := LoadSaved(store)

	c := New("alpha", "us-east-1", Credentials{AccessKeyID: "dummy", SecretAccessKey: "dummy"}, "")
	c.LastUsed = time.Now().Add(-time.Hour)
	assert.NoError(t, s.Add(c))

	assert.NoError(t, s.Update(c.ID, func(u *Connection) {
		u.Name = "renamed"
	}))

	got, ok := s.Find(c.ID)
	assert.True(t, ok)
	assert.Equal(t, "renamed", got.Name)
	assert.True(t, got.LastUsed.After(c.LastUsed))
}

func TestSavedUpdateUnknownIDIsNoop(t *testing.T) {
	store := persist.NewMemory()
	s, _ := LoadSaved(store)

	assert.NoError(t, s.Update("missing", func(*Connection) {
		t.Fatal("should not be called")
	}))
}

func TestSavedMarkUsed(t *testing.T) {
	store := persist.NewMemory()
	s, _ := LoadSaved(store)

	c := New("alpha", "us-east-1", Credentials{AccessKeyID: "dummy", SecretAccessKey: "dummy"}, "")
	c.LastUsed = time.Now().Add(-time.Hour)
	assert.NoError(t, s.Add(c))
	assert.NoError(t, s.MarkUsed(c.ID))

	got, _ := s.Find(c.ID)
	assert.True(t, got.LastUsed.After(c.LastUsed))
}

func TestSavedRemove(t *testing.T) {
	store := persist.NewMemory()
	s, _ := LoadSaved(store)

	a := New("alpha", "us-east-1", Credentials{AccessKeyID: "dummy", SecretAccessKey: "dummy"}, "")
	b := New("beta", "eu-west-1", Credentials{AccessKeyID: "dummy", SecretAccessKey: "dummy"}, "")
	assert.NoError(t, s.Add(a))
	assert.NoError(t, s.Add(b))

	assert.NoError(t, s.Remove(a.ID))
	all := s.All()
	assert.Len(t, all, 1)
	assert.Equal(t, "beta", all[0].Name)

	_, ok := s.Find(a.ID)
	assert.False(t, ok)

	// removing an unknown id changes nothing
	assert.NoError(t, s.Remove("missing"))
	assert.Len(t, s.All(), 1)
}

func TestSavedClear(t *testing.T) {
	store := persist.NewMemory()
	s, _ := LoadSaved(store)

	assert.NoError(t, s.Add(New("alpha", "us-east-1", Credentials{AccessKeyID: "dummy", SecretAccessKey: "dummy"}, "")))
	assert.NoError(t, s.Clear())
	assert.Empty(t, s.All())

	reloaded, err := LoadSaved(store)
	assert.NoError(t, err)
	assert.Empty(t, reloaded.All())
}

func TestLoadSavedCorruptBlob(t *testing.T) {
	store := persist.NewMemory()
	assert.NoError(t, store.Save("connections", []byte("{not json")))

	_, err := LoadSaved(store)
	assert.Error(t, err)
}
