package facade

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inkwell-labs/notesync/pkg/storage"
)

func openTestNotebook(t *testing.T) *Notebook {
	t.Helper()
	nb, err := Open(Config{
		DataDir:    t.TempDir(),
		Actor:      "test-device",
		ServerHTTP: "http://example.invalid",
		ServerWS:   "ws://example.invalid/api/ws",
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = nb.Close() })
	return nb
}

func TestCreateAndListNotes(t *testing.T) {
	nb := openTestNotebook(t)

	note, err := nb.CreateNote("my note", nil)
	require.NoError(t, err)
	require.NotEmpty(t, note.ID)

	notes, err := nb.ListNotes(storage.AllNotes())
	require.NoError(t, err)
	require.Len(t, notes, 1)
	assert.Equal(t, "my note", notes[0].Title)
}

func TestAppendTextUpdatesSnapshotAndQueuesPending(t *testing.T) {
	nb := openTestNotebook(t)

	note, err := nb.CreateNote("note", nil)
	require.NoError(t, err)

	require.NoError(t, nb.AppendText(note.ID, "hello"))
	assert.Equal(t, "hello", nb.NoteText(note.ID))

	// One pending change from CreateNote's metadata, one from the edit.
	status := nb.Status(note.ID)
	assert.Equal(t, 2, status.PendingUpdateCount)
}

func TestUpdateNoteTitlePersists(t *testing.T) {
	nb := openTestNotebook(t)

	note, err := nb.CreateNote("original", nil)
	require.NoError(t, err)

	require.NoError(t, nb.UpdateNoteTitle(note.ID, "renamed"))

	notes, err := nb.ListNotes(storage.AllNotes())
	require.NoError(t, err)
	assert.Equal(t, "renamed", notes[0].Title)
}

func TestDeleteNoteTombstones(t *testing.T) {
	nb := openTestNotebook(t)

	note, err := nb.CreateNote("to delete", nil)
	require.NoError(t, err)
	require.NoError(t, nb.DeleteNote(note.ID))

	notes, err := nb.ListNotes(storage.AllNotes())
	require.NoError(t, err)
	require.Len(t, notes, 1)
	assert.True(t, notes[0].IsDeleted)
}
