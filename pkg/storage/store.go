// Package storage implements the Local Persistence Port: the contract the
// sync coordinator uses to read and write notes and CRDT replica state, plus
// a BoltDB-backed implementation.
package storage

import (
	"time"

	"github.com/inkwell-labs/notesync/pkg/types"
)

// FolderFilterMode selects how ListNotes narrows its result set by folder.
type FolderFilterMode int

const (
	// FolderAll returns every note regardless of folder assignment.
	FolderAll FolderFilterMode = iota
	// FolderSpecific returns only notes whose FolderID matches FolderFilter.FolderID.
	FolderSpecific
	// FolderUncategorised returns only notes with no folder assigned.
	FolderUncategorised
)

// FolderFilter narrows ListNotes to all notes, one specific folder, or notes
// with no folder at all.
type FolderFilter struct {
	Mode     FolderFilterMode
	FolderID string // meaningful only when Mode == FolderSpecific
}

// AllNotes matches every note.
func AllNotes() FolderFilter { return FolderFilter{Mode: FolderAll} }

// NotesInFolder matches notes assigned to folderID.
func NotesInFolder(folderID string) FolderFilter {
	return FolderFilter{Mode: FolderSpecific, FolderID: folderID}
}

// UncategorisedNotes matches notes with no folder assigned.
func UncategorisedNotes() FolderFilter { return FolderFilter{Mode: FolderUncategorised} }

// Matches reports whether note satisfies the filter.
func (f FolderFilter) Matches(note *types.Note) bool {
	switch f.Mode {
	case FolderSpecific:
		return note.FolderID != nil && *note.FolderID == f.FolderID
	case FolderUncategorised:
		return note.FolderID == nil
	default:
		return true
	}
}

// NoteStore is the note-metadata half of the Local Persistence Port.
type NoteStore interface {
	ListNotes(filter FolderFilter) ([]*types.Note, error)
	GetNote(id string) (*types.Note, error)
	SaveNote(note *types.Note) error
	DeleteNote(id string) error
	NotesUpdatedSince(since time.Time) ([]*types.Note, error)
	ApplyPulledNotes(notes []*types.Note) error
}

// CrdtBlobStore is the CRDT-state half of the Local Persistence Port, kept
// as a separate interface from NoteStore.
type CrdtBlobStore interface {
	SaveCrdt(state *types.CrdtState) error
	GetCrdt(noteID string) (*types.CrdtState, error)
	ListAllCrdt() ([]*types.CrdtState, error)
	CrdtUpdatedSince(since time.Time) ([]*types.CrdtState, error)
	ApplyCrdtUpdate(noteID string, delta []byte) error
}

// Store is the full persistence contract, embedding both halves. The sync
// coordinator and the façade take a Store and call every operation through
// it, so a backing store implements all of them; neither degrades when a
// store lacks an operation.
type Store interface {
	NoteStore
	CrdtBlobStore
	Close() error
}
