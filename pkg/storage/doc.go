/*
Package storage implements the Local Persistence Port: the contract the
sync coordinator uses to read and write notes and CRDT replica state, plus
a BoltDB-backed implementation.

The storage package implements Store using BoltDB as the underlying
database, providing ACID transactions for local note metadata and CRDT
replica blobs. All data is serialized as JSON and stored in separate
buckets, with a secondary timestamp-ordered index bucket per entity to
serve "updated since" queries without a full scan.

# Architecture

BoltDB (bbolt) provides embedded, transactional storage with zero external
dependencies:

	┌──────────────────── BOLTDB STORAGE ──────────────────────┐
	│                                                            │
	│  ┌────────────────────────────────────────────┐          │
	│  │            BoltStore                        │          │
	│  │  - File: <dataDir>/notesync.db              │          │
	│  │  - Format: B+tree with MVCC                 │          │
	│  │  - Transactions: ACID with fsync            │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                      │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │              Bucket Structure                │          │
	│  │  ┌────────────────────────────┐             │          │
	│  │  │ notes              (Note ID)│             │          │
	│  │  │ crdt_states        (Note ID)│             │          │
	│  │  │ notes_by_updated_at (ts+ID) │             │          │
	│  │  │ crdt_by_updated_at  (ts+ID) │             │          │
	│  │  └────────────────────────────┘             │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                      │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │        Transaction Management                │          │
	│  │  - Read: db.View() - Concurrent reads       │          │
	│  │  - Write: db.Update() - Serialized writes   │          │
	│  │  - Rollback: Automatic on error             │          │
	│  │  - Commit: Automatic on success + fsync     │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                      │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │          JSON Serialization                  │          │
	│  │  - Marshal: Go struct → JSON bytes          │          │
	│  │  - Unmarshal: JSON bytes → Go struct        │          │
	│  └────────────────────────────────────────────┘           │
	└────────────────────────────────────────────────────────┘

# Core Components

BoltStore:
  - Implements Store using BoltDB
  - Single database file per device
  - Automatic bucket creation on initialization

Buckets:
  - notes: note metadata and last-known content snapshot
  - crdt_states: encoded op log + state vector per note
  - notes_by_updated_at: lexically-sortable index (unix-nano + note ID)
  - crdt_by_updated_at: same index shape for CRDT state

Transaction Model:
  - Read transactions: db.View() - concurrent, consistent snapshots
  - Write transactions: db.Update() - serialized, atomic commits
  - Durability: fsync on commit

# Operations

Note Operations:

SaveNote / GetNote / ListNotes / DeleteNote:
  - Upsert, key lookup, filtered bucket scan, and key delete respectively
  - SaveNote also updates the timestamp index
  - ListNotes takes a FolderFilter: all notes, one specific folder, or
    notes with no folder assigned

NotesUpdatedSince:
  - Seeks the timestamp index past `since`, walks forward
  - Avoids a full bucket scan for incremental-sync queries

ApplyPulledNotes:
  - Upserts server-provided notes with last-writer-wins on UpdatedAt
  - A pulled note only overwrites the local copy if strictly newer, so
    replaying the same pull twice or out of order never regresses a
    newer local edit

CRDT Operations:

SaveCrdt / GetCrdt / ListAllCrdt / CrdtUpdatedSince:
  - Same shape as the note operations, over the crdt_states bucket

ApplyCrdtUpdate:
  - Loads existing state into a scratch crdt.Replica, applies the
    incoming delta, re-encodes, and persists
  - Idempotent: Replica.ApplyRemote dedupes by op ID, so applying the
    same delta twice is a no-op

# Usage

Creating a Store:

	store, err := storage.NewBoltStore("/home/user/.local/share/notesync")
	if err != nil {
		log.Fatal(err)
	}
	defer store.Close()

Note Operations:

	note := &types.Note{
		ID:        uuid.NewString(),
		Title:     "grocery list",
		UpdatedAt: time.Now(),
	}
	err := store.SaveNote(note)

	note, err := store.GetNote(note.ID)
	notes, err := store.ListNotes(storage.AllNotes())
	notes, err := store.ListNotes(storage.NotesInFolder(folderID))
	notes, err := store.NotesUpdatedSince(lastSync)

CRDT Operations:

	state, err := store.GetCrdt(note.ID)
	err = store.ApplyCrdtUpdate(note.ID, deltaBytes)

# Integration Points

This package integrates with:

  - pkg/sync: reads/writes notes and CRDT state every sync cycle
  - pkg/crdt: ApplyCrdtUpdate replays deltas through a scratch Replica
  - pkg/facade: ListNotes/CreateNote/etc. on the public Notebook type
  - pkg/metrics: SaveNote, GetNote, ApplyPulledNotes, SaveCrdt, and
    ApplyCrdtUpdate time themselves and count their own failures; the
    other methods are not instrumented

# Design Patterns

Upsert Pattern:
  - Save methods double as create and update (db.Put)
  - No separate "exists" check needed

Idempotent Applies:
  - ApplyPulledNotes and ApplyCrdtUpdate are both safe to call twice with
    the same input

Capability Interfaces:
  - NoteStore and CrdtBlobStore are separate interfaces embedded by Store
  - The sync coordinator and the façade take the full Store, so a backing
    store implements every method of both; neither type-asserts for one
    half alone, and there is no degraded mode for a store lacking an
    operation

# See Also

  - pkg/crdt for the replica implementation behind CrdtState
  - pkg/types for the Note/CrdtState definitions
  - BoltDB documentation: https://github.com/etcd-io/bbolt
*/
package storage
