// Package types holds the data model shared across the sync core: notes,
// their CRDT replica state, and the bookkeeping used to track per-note sync
// progress.
package types

import "time"

// Note is a single note as seen by the rest of the application. Content is
// the last known plain/rich-text snapshot; the authoritative editable state
// lives in the CRDT replica. Content is refreshed from the replica when a
// sync cycle reconciles pulled metadata for the note; local edits and
// streamed remote updates do not write it back.
type Note struct {
	ID        string
	Title     string
	Content   string
	FolderID  *string
	IsDeleted bool
	IsCanvas  bool
	UpdatedAt time.Time
}

// CrdtState is the persisted form of a note's CRDT replica: the encoded
// operation log (YDocState) and its state vector, both opaque blobs from the
// storage layer's point of view.
type CrdtState struct {
	NoteID      string
	YDocState   []byte
	StateVector []byte
	UpdatedAt   time.Time
}

// SyncState describes where a single note stands in the sync lifecycle.
type SyncState string

const (
	SyncStateSynced   SyncState = "synced"
	SyncStatePending  SyncState = "pending"
	SyncStateSyncing  SyncState = "syncing"
	SyncStateConflict SyncState = "conflict"
)

// SyncStatus is the coordinator's per-note view of sync progress.
type SyncStatus struct {
	NoteID             string
	State              SyncState
	LastSyncedAt       time.Time
	PendingUpdateCount int
}

// PendingUpdate is a CRDT update (or metadata change) queued for push to the
// server because the transport was unavailable or a push attempt failed.
type PendingUpdate struct {
	NoteID    string
	Payload   []byte // base64-decoded CRDT update bytes, nil for metadata-only entries
	IsMeta    bool
	Meta      *NoteMetadataUpdate
	QueuedAt  time.Time
	Attempts  int
}

// NoteMetadataUpdate carries a note's scalar fields across the wire. Content
// is the plain/rich-text preview snapshot, not the authoritative CRDT
// state: it rides alongside the other metadata fields so a peer that has
// never opened the note in a CRDT-aware editor still gets something to
// show, per the external NoteMetadataUpdate contract.
type NoteMetadataUpdate struct {
	NoteID    string
	Title     *string
	Content   *string
	FolderID  *string
	IsDeleted *bool
	IsCanvas  *bool
	UpdatedAt time.Time
}
