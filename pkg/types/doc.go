/*
Package types defines the core data structures shared across the sync core.

This package contains the types that represent a note, its CRDT replica
state, and the bookkeeping used to track per-note sync progress. These
types are used by pkg/crdt, pkg/storage, pkg/sync, and pkg/facade for state
management, persistence, and wire communication.

# Architecture

The types package is the foundation of the sync core's data model. It
defines:

  - Note identity and metadata (title, folder, deletion, canvas flag)
  - CRDT replica state as persisted blobs (op log, state vector)
  - Sync lifecycle state per note (pending, syncing, synced, conflict)
  - The pending-update queue entry shape (the sync coordinator itself
    keeps only per-note pending counts)
  - The metadata-only update shape that travels across the wire

All types are designed to be:
  - Serializable (JSON over the wire, gob for CRDT blobs)
  - Self-documenting (clear field names and comments)
  - Safe to copy by value where small (SyncStatus snapshots)

# Core Types

Note Identity:
  - Note: a single note's metadata plus its last-known content snapshot
  - CrdtState: the persisted encoded op log and state vector for one note

Sync Lifecycle:
  - SyncState: pending, syncing, synced, or conflict
  - SyncStatus: a point-in-time view of one note's sync progress
  - PendingUpdate: a queued CRDT update or metadata change awaiting push
  - NoteMetadataUpdate: the non-content fields of a note, as pushed/pulled

# Usage

Creating a Note:

	note := &types.Note{
		ID:        uuid.NewString(),
		Title:     "grocery list",
		FolderID:  nil,
		UpdatedAt: time.Now(),
	}

Tracking Sync Progress:

	status := &types.SyncStatus{
		NoteID:             note.ID,
		State:              types.SyncStatePending,
		PendingUpdateCount: 1,
	}

Queuing a Metadata-Only Change:

	update := types.PendingUpdate{
		NoteID: note.ID,
		IsMeta: true,
		Meta: &types.NoteMetadataUpdate{
			NoteID:    note.ID,
			Title:     ptr("renamed"),
			UpdatedAt: time.Now(),
		},
	}

# State Machine

A note's SyncState follows:

	Synced → Pending → Syncing → Synced
	                       ↓
	                    Pending (request failed; a later cycle picks it up)

Valid state transitions:
  - Synced → Pending (a local edit or metadata change)
  - Pending → Syncing (sync coordinator begins a push/pull cycle)
  - Syncing → Synced (cycle completes without error)
  - Syncing → Pending (the sync request fails; a later cycle picks the
    note up again)

The coordinator never sets Conflict.

# Design Patterns

Enumeration Pattern:

	Enums use typed string constants for safety and clarity:
	  type SyncState string
	  const (
	      SyncStatePending SyncState = "pending"
	      SyncStateSynced  SyncState = "synced"
	  )

Optional Fields:

	Optional fields use pointers so "unset" and "explicitly cleared" are
	distinguishable on the wire:
	  - *string FolderID: nil = no folder, non-nil empty = moved to root
	  - *bool IsDeleted: nil in NoteMetadataUpdate = field not included

# Integration Points

This package integrates with:

  - pkg/storage: persists Note and CrdtState to BoltDB as JSON
  - pkg/crdt: produces the encoded op log and state vector kept in CrdtState
  - pkg/sync: owns the SyncStatus map and the per-note pending counts
  - pkg/transport: marshals NoteMetadataUpdate across the websocket frame
  - pkg/facade: exposes Note and SyncStatus to callers

# Thread Safety

All types in this package are plain data structures:
  - Read-safe: can be read concurrently from multiple goroutines
  - Write-unsafe: mutations must be synchronized by callers
  - SyncStatus snapshots returned by the sync package are always copies,
    never the tracker's live pointer

# See Also

  - pkg/storage for the persistence layer
  - pkg/sync for the coordinator that mutates SyncStatus
  - pkg/crdt for the replica implementation behind CrdtState
*/
package types
