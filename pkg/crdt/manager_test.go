package crdt

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManagerAppendTextPublishesUpdateAndContent(t *testing.T) {
	m := NewManager("actor-a")

	updates := m.SubscribeUpdates("note-1")
	contents := m.SubscribeContent("note-1")

	require.NoError(t, m.AppendText("note-1", "hello"))

	select {
	case ev := <-updates:
		assert.Equal(t, "note-1", ev.NoteID)
		assert.NotEmpty(t, ev.Update)
	case <-time.After(time.Second):
		t.Fatal("expected an update event")
	}

	select {
	case ev := <-contents:
		assert.Equal(t, "hello", ev.Text)
	case <-time.After(time.Second):
		t.Fatal("expected a content event")
	}
}

func TestManagerApplyRemoteUnknownNoteCreatesReplica(t *testing.T) {
	source := NewManager("actor-a")
	require.NoError(t, source.AppendText("note-1", "hi"))
	update, err := source.State("note-1")
	require.NoError(t, err)

	dest := NewManager("actor-b")
	assert.False(t, dest.Has("note-1"))
	require.NoError(t, dest.ApplyRemote("note-1", update))
	assert.True(t, dest.Has("note-1"))
	assert.Equal(t, "hi", dest.TextSnapshot("note-1"))
}

func TestManagerStateOnUnknownNoteErrors(t *testing.T) {
	m := NewManager("actor-a")
	_, err := m.State("missing")
	assert.Error(t, err)
}

func TestManagerTextSnapshotOnUnknownNoteIsEmpty(t *testing.T) {
	m := NewManager("actor-a")
	assert.Equal(t, "", m.TextSnapshot("missing"))
}

func TestManagerDestroyClosesSubscriptions(t *testing.T) {
	m := NewManager("actor-a")
	require.NoError(t, m.AppendText("note-1", "hi"))
	updates := m.SubscribeUpdates("note-1")

	m.Destroy("note-1")

	_, ok := <-updates
	assert.False(t, ok, "subscription channel should be closed on destroy")
	assert.False(t, m.Has("note-1"))
}

func TestManagerSeedHTML(t *testing.T) {
	m := NewManager("actor-a")
	require.NoError(t, m.SeedHTML("note-1", "<p>hello</p><p>world</p>"))
	assert.Equal(t, "hello\nworld", m.TextSnapshot("note-1"))
}
