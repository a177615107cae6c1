package storage

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inkwell-labs/notesync/pkg/crdt"
	"github.com/inkwell-labs/notesync/pkg/types"
)

func openTestStore(t *testing.T) *BoltStore {
	t.Helper()
	store, err := NewBoltStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestSaveAndGetNote(t *testing.T) {
	store := openTestStore(t)

	note := &types.Note{ID: "note-1", Title: "hello", UpdatedAt: time.Now()}
	require.NoError(t, store.SaveNote(note))

	got, err := store.GetNote("note-1")
	require.NoError(t, err)
	assert.Equal(t, "hello", got.Title)
}

func TestListNotesFolderFilter(t *testing.T) {
	store := openTestStore(t)

	folderA := "folder-a"
	require.NoError(t, store.SaveNote(&types.Note{ID: "in-a", Title: "in a", FolderID: &folderA, UpdatedAt: time.Now()}))
	require.NoError(t, store.SaveNote(&types.Note{ID: "in-b", Title: "in b", FolderID: stringPtr("folder-b"), UpdatedAt: time.Now()}))
	require.NoError(t, store.SaveNote(&types.Note{ID: "loose", Title: "no folder", UpdatedAt: time.Now()}))

	all, err := store.ListNotes(AllNotes())
	require.NoError(t, err)
	assert.Len(t, all, 3)

	inA, err := store.ListNotes(NotesInFolder(folderA))
	require.NoError(t, err)
	require.Len(t, inA, 1)
	assert.Equal(t, "in-a", inA[0].ID)

	uncategorised, err := store.ListNotes(UncategorisedNotes())
	require.NoError(t, err)
	require.Len(t, uncategorised, 1)
	assert.Equal(t, "loose", uncategorised[0].ID)
}

func stringPtr(s string) *string { return &s }

func TestNotesUpdatedSince(t *testing.T) {
	store := openTestStore(t)

	base := time.Now()
	old := &types.Note{ID: "old", Title: "old", UpdatedAt: base.Add(-time.Hour)}
	newer := &types.Note{ID: "new", Title: "new", UpdatedAt: base.Add(time.Hour)}
	require.NoError(t, store.SaveNote(old))
	require.NoError(t, store.SaveNote(newer))

	results, err := store.NotesUpdatedSince(base)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "new", results[0].ID)
}

func TestApplyPulledNotesLastWriterWins(t *testing.T) {
	store := openTestStore(t)

	base := time.Now()
	local := &types.Note{ID: "note-1", Title: "local edit", UpdatedAt: base}
	require.NoError(t, store.SaveNote(local))

	// An older pulled version must not overwrite the newer local edit.
	stale := &types.Note{ID: "note-1", Title: "stale", UpdatedAt: base.Add(-time.Minute)}
	require.NoError(t, store.ApplyPulledNotes([]*types.Note{stale}))

	got, err := store.GetNote("note-1")
	require.NoError(t, err)
	assert.Equal(t, "local edit", got.Title)

	// A newer pulled version must win.
	fresh := &types.Note{ID: "note-1", Title: "fresh", UpdatedAt: base.Add(time.Minute)}
	require.NoError(t, store.ApplyPulledNotes([]*types.Note{fresh}))

	got, err = store.GetNote("note-1")
	require.NoError(t, err)
	assert.Equal(t, "fresh", got.Title)
}

func TestApplyPulledNotesIsIdempotent(t *testing.T) {
	store := openTestStore(t)

	note := &types.Note{ID: "note-1", Title: "v1", UpdatedAt: time.Now()}
	require.NoError(t, store.ApplyPulledNotes([]*types.Note{note}))
	require.NoError(t, store.ApplyPulledNotes([]*types.Note{note}))

	got, err := store.GetNote("note-1")
	require.NoError(t, err)
	assert.Equal(t, "v1", got.Title)
}

func TestApplyCrdtUpdateMergesIntoExistingState(t *testing.T) {
	store := openTestStore(t)

	source := crdt.NewReplica("actor-a")
	source.AppendText("hello")
	firstState, err := source.State()
	require.NoError(t, err)

	require.NoError(t, store.ApplyCrdtUpdate("note-1", firstState))

	source.AppendText(" world")
	delta, err := source.DiffSince(map[string]uint64{"actor-a": 1})
	require.NoError(t, err)
	require.NoError(t, store.ApplyCrdtUpdate("note-1", delta))

	persisted, err := store.GetCrdt("note-1")
	require.NoError(t, err)

	replay := crdt.NewReplica("actor-b")
	require.NoError(t, replay.Load(persisted.YDocState))
	assert.Equal(t, "hello world", replay.TextSnapshot())
}

func TestCrdtUpdatedSince(t *testing.T) {
	store := openTestStore(t)
	base := time.Now()

	require.NoError(t, store.SaveCrdt(&types.CrdtState{NoteID: "old", UpdatedAt: base.Add(-time.Hour)}))
	require.NoError(t, store.SaveCrdt(&types.CrdtState{NoteID: "new", UpdatedAt: base.Add(time.Hour)}))

	results, err := store.CrdtUpdatedSince(base)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "new", results[0].NoteID)
}
