package storage

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/inkwell-labs/notesync/pkg/crdt"
	"github.com/inkwell-labs/notesync/pkg/errs"
	"github.com/inkwell-labs/notesync/pkg/metrics"
	"github.com/inkwell-labs/notesync/pkg/types"
)

var (
	bucketNotes     = []byte("notes")
	bucketCrdt      = []byte("crdt_states")
	bucketNotesByTs = []byte("notes_by_updated_at")
	bucketCrdtByTs  = []byte("crdt_by_updated_at")
)

// BoltStore implements Store on top of a single BoltDB file, one bucket per
// entity plus a secondary timestamp-ordered index bucket used to serve the
// *_updated_since queries without a full table scan.
type BoltStore struct {
	db *bolt.DB
}

// NewBoltStore opens (creating if necessary) a BoltDB-backed store rooted
// at dataDir.
func NewBoltStore(dataDir string) (*BoltStore, error) {
	dbPath := filepath.Join(dataDir, "notesync.db")

	db, err := bolt.Open(dbPath, 0600, nil)
	if err != nil {
		return nil, errs.Storage("storage.open", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, bucket := range [][]byte{bucketNotes, bucketCrdt, bucketNotesByTs, bucketCrdtByTs} {
			if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
				return fmt.Errorf("create bucket %s: %w", bucket, err)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, errs.Storage("storage.open", err)
	}

	return &BoltStore{db: db}, nil
}

// Close closes the underlying database file.
func (s *BoltStore) Close() error {
	return s.db.Close()
}

// tsKey builds a lexically-sortable index key: unix-nano timestamp followed
// by the entity ID, so a bucket cursor naturally yields updated_at order.
func tsKey(ts time.Time, id string) []byte {
	key := make([]byte, 8+len(id))
	binary.BigEndian.PutUint64(key, uint64(ts.UnixNano()))
	copy(key[8:], id)
	return key
}

// --- Notes ---

func (s *BoltStore) SaveNote(note *types.Note) error {
	timer := metrics.NewTimer()
	defer timer.ObserveDurationVec(metrics.StorageOpDuration, "save_note")

	err := s.db.Update(func(tx *bolt.Tx) error {
		data, err := json.Marshal(note)
		if err != nil {
			return err
		}
		if err := tx.Bucket(bucketNotes).Put([]byte(note.ID), data); err != nil {
			return err
		}
		return tx.Bucket(bucketNotesByTs).Put(tsKey(note.UpdatedAt, note.ID), []byte(note.ID))
	})
	if err != nil {
		metrics.StorageErrorsTotal.WithLabelValues("save_note").Inc()
	}
	return err
}

func (s *BoltStore) GetNote(id string) (*types.Note, error) {
	timer := metrics.NewTimer()
	defer timer.ObserveDurationVec(metrics.StorageOpDuration, "get_note")

	var note types.Note
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketNotes).Get([]byte(id))
		if data == nil {
			return fmt.Errorf("note not found: %s", id)
		}
		return json.Unmarshal(data, &note)
	})
	if err != nil {
		metrics.StorageErrorsTotal.WithLabelValues("get_note").Inc()
		return nil, errs.Storage("storage.get_note", err)
	}
	return &note, nil
}

// ListNotes returns notes matching filter: every note, only those in a
// specific folder, or only those with no folder assigned.
func (s *BoltStore) ListNotes(filter FolderFilter) ([]*types.Note, error) {
	var notes []*types.Note
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketNotes).ForEach(func(k, v []byte) error {
			var note types.Note
			if err := json.Unmarshal(v, &note); err != nil {
				return err
			}
			if !filter.Matches(&note) {
				return nil
			}
			notes = append(notes, &note)
			return nil
		})
	})
	if err != nil {
		return nil, errs.Storage("storage.list_notes", err)
	}
	return notes, nil
}

func (s *BoltStore) DeleteNote(id string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketNotes).Delete([]byte(id))
	})
}

// NotesUpdatedSince returns notes with UpdatedAt strictly after since, walked
// via the timestamp index rather than a full scan.
func (s *BoltStore) NotesUpdatedSince(since time.Time) ([]*types.Note, error) {
	var notes []*types.Note
	err := s.db.View(func(tx *bolt.Tx) error {
		idx := tx.Bucket(bucketNotesByTs)
		notesBkt := tx.Bucket(bucketNotes)
		c := idx.Cursor()
		start := make([]byte, 8)
		binary.BigEndian.PutUint64(start, uint64(since.UnixNano())+1)
		for k, id := c.Seek(start); k != nil; k, id = c.Next() {
			data := notesBkt.Get(id)
			if data == nil {
				continue
			}
			var note types.Note
			if err := json.Unmarshal(data, &note); err != nil {
				return err
			}
			notes = append(notes, &note)
		}
		return nil
	})
	if err != nil {
		return nil, errs.Storage("storage.notes_updated_since", err)
	}
	return notes, nil
}

// ApplyPulledNotes upserts server-provided notes using last-writer-wins on
// UpdatedAt: a pulled note only overwrites the local copy if its timestamp
// is strictly greater, so re-applying the same pull (or an out-of-order
// retry) never regresses a newer local edit.
func (s *BoltStore) ApplyPulledNotes(notes []*types.Note) error {
	timer := metrics.NewTimer()
	defer timer.ObserveDurationVec(metrics.StorageOpDuration, "apply_pulled_notes")

	err := s.db.Update(func(tx *bolt.Tx) error {
		notesBkt := tx.Bucket(bucketNotes)
		idx := tx.Bucket(bucketNotesByTs)
		for _, pulled := range notes {
			existing := notesBkt.Get([]byte(pulled.ID))
			if existing != nil {
				var current types.Note
				if err := json.Unmarshal(existing, &current); err != nil {
					return err
				}
				if !pulled.UpdatedAt.After(current.UpdatedAt) {
					continue
				}
				if err := idx.Delete(tsKey(current.UpdatedAt, current.ID)); err != nil {
					return err
				}
			}
			data, err := json.Marshal(pulled)
			if err != nil {
				return err
			}
			if err := notesBkt.Put([]byte(pulled.ID), data); err != nil {
				return err
			}
			if err := idx.Put(tsKey(pulled.UpdatedAt, pulled.ID), []byte(pulled.ID)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		metrics.StorageErrorsTotal.WithLabelValues("apply_pulled_notes").Inc()
	}
	return err
}

// --- CRDT state ---

func (s *BoltStore) SaveCrdt(state *types.CrdtState) error {
	timer := metrics.NewTimer()
	defer timer.ObserveDurationVec(metrics.StorageOpDuration, "save_crdt")

	err := s.db.Update(func(tx *bolt.Tx) error {
		data, err := json.Marshal(state)
		if err != nil {
			return err
		}
		if err := tx.Bucket(bucketCrdt).Put([]byte(state.NoteID), data); err != nil {
			return err
		}
		return tx.Bucket(bucketCrdtByTs).Put(tsKey(state.UpdatedAt, state.NoteID), []byte(state.NoteID))
	})
	if err != nil {
		metrics.StorageErrorsTotal.WithLabelValues("save_crdt").Inc()
	}
	return err
}

func (s *BoltStore) GetCrdt(noteID string) (*types.CrdtState, error) {
	var state types.CrdtState
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketCrdt).Get([]byte(noteID))
		if data == nil {
			return fmt.Errorf("crdt state not found: %s", noteID)
		}
		return json.Unmarshal(data, &state)
	})
	if err != nil {
		return nil, errs.Storage("storage.get_crdt", err)
	}
	return &state, nil
}

func (s *BoltStore) ListAllCrdt() ([]*types.CrdtState, error) {
	var states []*types.CrdtState
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketCrdt).ForEach(func(k, v []byte) error {
			var state types.CrdtState
			if err := json.Unmarshal(v, &state); err != nil {
				return err
			}
			states = append(states, &state)
			return nil
		})
	})
	if err != nil {
		return nil, errs.Storage("storage.list_all_crdt", err)
	}
	return states, nil
}

func (s *BoltStore) CrdtUpdatedSince(since time.Time) ([]*types.CrdtState, error) {
	var states []*types.CrdtState
	err := s.db.View(func(tx *bolt.Tx) error {
		idx := tx.Bucket(bucketCrdtByTs)
		crdtBkt := tx.Bucket(bucketCrdt)
		c := idx.Cursor()
		start := make([]byte, 8)
		binary.BigEndian.PutUint64(start, uint64(since.UnixNano())+1)
		for k, id := c.Seek(start); k != nil; k, id = c.Next() {
			data := crdtBkt.Get(id)
			if data == nil {
				continue
			}
			var state types.CrdtState
			if err := json.Unmarshal(data, &state); err != nil {
				return err
			}
			states = append(states, &state)
		}
		return nil
	})
	if err != nil {
		return nil, errs.Storage("storage.crdt_updated_since", err)
	}
	return states, nil
}

// ApplyCrdtUpdate merges delta (an encoded CRDT update) into the persisted
// state for noteID by replaying both through a scratch replica, then
// re-persists the merged state and vector. Applying the same delta twice is
// a no-op because Replica.ApplyRemote dedupes by op ID.
func (s *BoltStore) ApplyCrdtUpdate(noteID string, delta []byte) error {
	timer := metrics.NewTimer()
	defer timer.ObserveDurationVec(metrics.StorageOpDuration, "apply_crdt_update")

	existing, err := s.GetCrdt(noteID)
	if err != nil {
		existing = &types.CrdtState{NoteID: noteID}
	}

	scratch := crdt.NewReplica("storage-merge")
	if len(existing.YDocState) > 0 {
		if err := scratch.Load(existing.YDocState); err != nil {
			metrics.StorageErrorsTotal.WithLabelValues("apply_crdt_update").Inc()
			return errs.Decode("storage.apply_crdt_update", err)
		}
	}
	if err := scratch.ApplyRemote(delta); err != nil {
		metrics.StorageErrorsTotal.WithLabelValues("apply_crdt_update").Inc()
		return errs.Decode("storage.apply_crdt_update", err)
	}

	state, err := scratch.State()
	if err != nil {
		metrics.StorageErrorsTotal.WithLabelValues("apply_crdt_update").Inc()
		return errs.Invariant("storage.apply_crdt_update", err)
	}
	vector, err := scratch.StateVector()
	if err != nil {
		metrics.StorageErrorsTotal.WithLabelValues("apply_crdt_update").Inc()
		return errs.Invariant("storage.apply_crdt_update", err)
	}

	return s.SaveCrdt(&types.CrdtState{
		NoteID:      noteID,
		YDocState:   state,
		StateVector: vector,
		UpdatedAt:   time.Now(),
	})
}
