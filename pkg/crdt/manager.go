// Package crdt implements the CRDT Document Manager: one RGA-based replica
// per note, with idempotent load/apply, diff-since-vector export, and
// update/content observers for the sync coordinator and editor binding to
// subscribe to.
package crdt

import (
	"sync"

	"github.com/inkwell-labs/notesync/pkg/codec"
	"github.com/inkwell-labs/notesync/pkg/errs"
	"github.com/inkwell-labs/notesync/pkg/log"
)

type entry struct {
	replica *Replica
	hub     *observerHub
}

// Manager owns the set of live replicas for the current session. One
// Manager exists per process; notes are loaded into it lazily via
// GetOrCreate.
type Manager struct {
	mu    sync.Mutex
	actor string
	docs  map[string]*entry
}

// NewManager creates a Document Manager. actor is this device/process's
// replica identity, used to stamp every op this process originates.
func NewManager(actor string) *Manager {
	return &Manager{
		actor: actor,
		docs:  make(map[string]*entry),
	}
}

func (m *Manager) getOrCreateLocked(noteID string) *entry {
	e, ok := m.docs[noteID]
	if !ok {
		e = &entry{
			replica: NewReplica(m.actor),
			hub:     newObserverHub(),
		}
		m.docs[noteID] = e
	}
	return e
}

// GetOrCreate returns the replica for noteID, creating an empty one if this
// is the first time this note has been touched in this session.
func (m *Manager) GetOrCreate(noteID string) *Replica {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.getOrCreateLocked(noteID).replica
}

// Has reports whether a replica for noteID currently exists in memory. An
// entry that exists but has no ops still counts as present: callers that
// need "never touched" semantics should track that separately.
func (m *Manager) Has(noteID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.docs[noteID]
	return ok
}

// OpCounts returns the operation-log length of every replica currently held
// in memory, keyed by note ID. Used for metrics reporting only.
func (m *Manager) OpCounts() map[string]int {
	m.mu.Lock()
	docs := make([]*entry, 0, len(m.docs))
	ids := make([]string, 0, len(m.docs))
	for id, e := range m.docs {
		ids = append(ids, id)
		docs = append(docs, e)
	}
	m.mu.Unlock()

	counts := make(map[string]int, len(docs))
	for i, e := range docs {
		counts[ids[i]] = e.replica.OpCount()
	}
	return counts
}

// Load installs a previously-persisted op log into noteID's replica,
// creating the entry if needed. Safe to call on a replica that already has
// content: already-seen ops are skipped.
func (m *Manager) Load(noteID string, state []byte) error {
	m.mu.Lock()
	e := m.getOrCreateLocked(noteID)
	m.mu.Unlock()

	if err := e.replica.Load(state); err != nil {
		return err
	}
	m.publishContent(noteID, e)
	return nil
}

// ApplyRemote merges a remote update into noteID's replica and publishes a
// content-change event if the replica existed (or was just created for this
// call). Re-applying an already-seen update is a no-op by construction.
func (m *Manager) ApplyRemote(noteID string, update []byte) error {
	m.mu.Lock()
	e := m.getOrCreateLocked(noteID)
	m.mu.Unlock()

	if err := e.replica.ApplyRemote(update); err != nil {
		log.WithNoteID(noteID).Error().Err(err).Msg("failed to apply remote update")
		return err
	}
	m.publishContent(noteID, e)
	return nil
}

// AppendText performs a local edit (appending text to the end of the
// document), publishing both an update event (for the transport to push)
// and a content event.
func (m *Manager) AppendText(noteID, text string) error {
	m.mu.Lock()
	e := m.getOrCreateLocked(noteID)
	m.mu.Unlock()

	op := e.replica.AppendText(text)
	update, err := e.replica.DiffSince(map[string]uint64{op.ID.Actor: op.ID.Seq - 1})
	if err != nil {
		return errs.Invariant("crdt.append_text", err)
	}
	e.hub.publishUpdate(&UpdateEvent{NoteID: noteID, Update: update})
	m.publishContent(noteID, e)
	return nil
}

// State returns the full encoded op log for noteID.
func (m *Manager) State(noteID string) ([]byte, error) {
	r, ok := m.lookup(noteID)
	if !ok {
		return nil, errs.Invariant("crdt.state", errUnknownNote(noteID))
	}
	return r.State()
}

// StateVector returns the encoded state vector for noteID.
func (m *Manager) StateVector(noteID string) ([]byte, error) {
	r, ok := m.lookup(noteID)
	if !ok {
		return nil, errs.Invariant("crdt.state_vector", errUnknownNote(noteID))
	}
	return r.StateVector()
}

// DiffSince returns the encoded update containing only ops newer than
// vector for noteID. An unknown/empty vector yields the full state.
func (m *Manager) DiffSince(noteID string, vector map[string]uint64) ([]byte, error) {
	r, ok := m.lookup(noteID)
	if !ok {
		return nil, errs.Invariant("crdt.diff_since", errUnknownNote(noteID))
	}
	return r.DiffSince(vector)
}

// TextSnapshot returns the current plain-text rendering of noteID's
// replica, or the empty string if the replica doesn't exist yet (the
// documented empty-replica floor).
func (m *Manager) TextSnapshot(noteID string) string {
	r, ok := m.lookup(noteID)
	if !ok {
		return ""
	}
	return r.TextSnapshot()
}

// SeedHTML parses html and seeds noteID's replica with the resulting
// block/inline structure. Intended for first-time import of notes authored
// outside the CRDT, e.g. HTML clipped from the web.
func (m *Manager) SeedHTML(noteID, html string) error {
	nodes, err := codec.ParseSeedHTML(html)
	if err != nil {
		return err
	}
	m.mu.Lock()
	e := m.getOrCreateLocked(noteID)
	m.mu.Unlock()

	e.replica.SeedFromHTML(nodes)
	m.publishContent(noteID, e)
	return nil
}

// Destroy drops noteID's in-memory replica and closes its observer
// channels. Persisted state is untouched; a subsequent GetOrCreate/Load
// starts a fresh in-memory replica.
func (m *Manager) Destroy(noteID string) {
	m.mu.Lock()
	e, ok := m.docs[noteID]
	if ok {
		delete(m.docs, noteID)
	}
	m.mu.Unlock()

	if ok {
		e.hub.closeAll()
	}
}

// SubscribeUpdates registers for local-update events on noteID, used by
// the sync coordinator to learn about edits that need pushing.
func (m *Manager) SubscribeUpdates(noteID string) <-chan *UpdateEvent {
	m.mu.Lock()
	e := m.getOrCreateLocked(noteID)
	m.mu.Unlock()
	return e.hub.subscribeUpdates()
}

// UnsubscribeUpdates removes a subscription created by SubscribeUpdates.
func (m *Manager) UnsubscribeUpdates(noteID string, sub <-chan *UpdateEvent) {
	m.mu.Lock()
	e, ok := m.docs[noteID]
	m.mu.Unlock()
	if ok {
		e.hub.unsubscribeUpdates(sub.(updateSub))
	}
}

// SubscribeContent registers for content-change events on noteID.
func (m *Manager) SubscribeContent(noteID string) <-chan *ContentEvent {
	m.mu.Lock()
	e := m.getOrCreateLocked(noteID)
	m.mu.Unlock()
	return e.hub.subscribeContent()
}

// UnsubscribeContent removes a subscription created by SubscribeContent.
func (m *Manager) UnsubscribeContent(noteID string, sub <-chan *ContentEvent) {
	m.mu.Lock()
	e, ok := m.docs[noteID]
	m.mu.Unlock()
	if ok {
		e.hub.unsubscribeContent(sub.(contentSub))
	}
}

func (m *Manager) lookup(noteID string) (*Replica, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.docs[noteID]
	if !ok {
		return nil, false
	}
	return e.replica, true
}

func (m *Manager) publishContent(noteID string, e *entry) {
	e.hub.publishContent(&ContentEvent{NoteID: noteID, Text: e.replica.TextSnapshot()})
}

type unknownNoteError struct{ noteID string }

func (e *unknownNoteError) Error() string { return "crdt: unknown note " + e.noteID }

func errUnknownNote(noteID string) error { return &unknownNoteError{noteID: noteID} }
