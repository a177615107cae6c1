// Package facade exposes the one public entry point notes-app UI code is
// meant to use: a thin wrapper over the document manager, persistence port,
// transport, and sync coordinator, in the same one-method-per-operation
// style as this codebase's other client-facing wrapper types.
package facade

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/inkwell-labs/notesync/pkg/crdt"
	"github.com/inkwell-labs/notesync/pkg/events"
	"github.com/inkwell-labs/notesync/pkg/metrics"
	"github.com/inkwell-labs/notesync/pkg/storage"
	"github.com/inkwell-labs/notesync/pkg/sync"
	"github.com/inkwell-labs/notesync/pkg/transport"
	"github.com/inkwell-labs/notesync/pkg/types"
)

// Notebook is the public façade over the local-first sync core. One
// Notebook exists per running client session.
type Notebook struct {
	store       storage.Store
	manager     *crdt.Manager
	transport   *transport.Transport
	coordinator *sync.Coordinator
	broker      *events.Broker
	collector   *metrics.Collector
}

// Config bundles everything needed to stand up a Notebook.
type Config struct {
	DataDir    string
	Actor      string // this device's CRDT replica identity
	ServerHTTP string // base URL for POST /api/sync/crdt
	ServerWS   string // ws(s):// URL for the streaming transport
	AuthToken  string
}

// Open builds a Notebook: a BoltDB-backed store, a document manager seeded
// with this device's actor identity, a reconnecting transport, and a sync
// coordinator wired to all three. It does not connect to the network; call
// Connect to start streaming sync.
func Open(cfg Config) (*Notebook, error) {
	store, err := storage.NewBoltStore(cfg.DataDir)
	if err != nil {
		metrics.RegisterComponent("storage", false, err.Error())
		return nil, err
	}
	metrics.RegisterComponent("storage", true, "")
	metrics.RegisterComponent("transport", false, "not connected")

	manager := crdt.NewManager(cfg.Actor)
	tr := transport.New(cfg.ServerWS, cfg.AuthToken, transport.DefaultBackoff)
	http := sync.NewHTTPClient(cfg.ServerHTTP, cfg.AuthToken)

	broker := events.NewBroker()
	broker.Start()
	coordinator := sync.New(store, manager, tr, http, broker)
	collector := metrics.NewCollector(manager)
	collector.Start()

	nb := &Notebook{store: store, manager: manager, transport: tr, coordinator: coordinator, broker: broker, collector: collector}
	if err := nb.loadPersistedReplicas(); err != nil {
		_ = store.Close()
		return nil, err
	}
	return nb, nil
}

func (nb *Notebook) loadPersistedReplicas() error {
	states, err := nb.store.ListAllCrdt()
	if err != nil {
		return err
	}
	for _, s := range states {
		if err := nb.manager.Load(s.NoteID, s.YDocState); err != nil {
			return err
		}
	}
	return nil
}

// Close stops the coordinator, transport, and metrics collector, and
// releases the store.
func (nb *Notebook) Close() error {
	nb.collector.Stop()
	nb.coordinator.Stop()
	nb.transport.Disconnect()
	return nb.store.Close()
}

// ListNotes returns notes matching filter, including tombstoned ones;
// callers filter on IsDeleted for the visible list.
func (nb *Notebook) ListNotes(filter storage.FolderFilter) ([]*types.Note, error) {
	return nb.store.ListNotes(filter)
}

// CreateNote creates a new note with a freshly generated ID and an empty
// CRDT replica, persists it, and returns it.
func (nb *Notebook) CreateNote(title string, folderID *string) (*types.Note, error) {
	note := &types.Note{
		ID:        uuid.NewString(),
		Title:     title,
		FolderID:  folderID,
		UpdatedAt: time.Now(),
	}
	if err := nb.store.SaveNote(note); err != nil {
		return nil, err
	}
	nb.manager.GetOrCreate(note.ID)
	_ = nb.transport.Subscribe(note.ID)
	nb.coordinator.MetadataChanged(&types.NoteMetadataUpdate{
		NoteID:    note.ID,
		Title:     &note.Title,
		FolderID:  note.FolderID,
		UpdatedAt: note.UpdatedAt,
	})
	return note, nil
}

// UpdateNoteTitle changes a note's title and queues the metadata change for
// push on the next sync cycle.
func (nb *Notebook) UpdateNoteTitle(noteID, title string) error {
	return nb.updateMetadata(noteID, func(m *types.NoteMetadataUpdate) {
		m.Title = &title
	})
}

// MoveNote reassigns a note to a different folder (or nil for no folder)
// and queues the metadata change for push.
func (nb *Notebook) MoveNote(noteID string, folderID *string) error {
	if folderID == nil {
		root := ""
		folderID = &root
	}
	return nb.updateMetadata(noteID, func(m *types.NoteMetadataUpdate) {
		m.FolderID = folderID
	})
}

// DeleteNote tombstones a note locally and queues the deletion for push.
// Notes are never hard-deleted from the local store; IsDeleted governs
// visibility. The in-memory replica is destroyed and the note unsubscribed
// from the transport, since a tombstoned note has no business staying live.
func (nb *Notebook) DeleteNote(noteID string) error {
	deleted := true
	if err := nb.updateMetadata(noteID, func(m *types.NoteMetadataUpdate) {
		m.IsDeleted = &deleted
	}); err != nil {
		return err
	}
	nb.manager.Destroy(noteID)
	_ = nb.transport.Unsubscribe(noteID)
	return nil
}

func (nb *Notebook) updateMetadata(noteID string, mutate func(*types.NoteMetadataUpdate)) error {
	note, err := nb.store.GetNote(noteID)
	if err != nil {
		return err
	}

	meta := &types.NoteMetadataUpdate{NoteID: noteID, UpdatedAt: time.Now()}
	mutate(meta)

	if meta.Title != nil {
		note.Title = *meta.Title
	}
	if meta.FolderID != nil {
		if *meta.FolderID == "" {
			note.FolderID = nil
		} else {
			note.FolderID = meta.FolderID
		}
	}
	if meta.IsDeleted != nil {
		note.IsDeleted = *meta.IsDeleted
	}
	if meta.IsCanvas != nil {
		note.IsCanvas = *meta.IsCanvas
	}
	note.UpdatedAt = meta.UpdatedAt

	if err := nb.store.SaveNote(note); err != nil {
		return err
	}
	nb.coordinator.MetadataChanged(meta)
	return nil
}

// AppendText performs a local edit on noteID's CRDT replica and queues the
// resulting update for push.
func (nb *Notebook) AppendText(noteID, text string) error {
	updates := nb.manager.SubscribeUpdates(noteID)
	defer nb.manager.UnsubscribeUpdates(noteID, updates)

	if err := nb.manager.AppendText(noteID, text); err != nil {
		return err
	}

	select {
	case u := <-updates:
		nb.coordinator.NoteChanged(noteID, u.Update)
	default:
	}
	return nil
}

// NoteText returns the current plain-text rendering of a note's replica.
func (nb *Notebook) NoteText(noteID string) string {
	return nb.manager.TextSnapshot(noteID)
}

// SelectNote returns a handle for subscribing to live content changes on a
// note, used when a note is opened for editing in the UI. If the transport
// is connected it also subscribes to that note's streaming updates.
func (nb *Notebook) SelectNote(noteID string) <-chan *crdt.ContentEvent {
	switch nb.transport.State() {
	case transport.StateConnected, transport.StateSyncing:
		_ = nb.transport.Subscribe(noteID)
	}
	return nb.manager.SubscribeContent(noteID)
}

// DeselectNote releases a handle obtained from SelectNote.
func (nb *Notebook) DeselectNote(noteID string, sub <-chan *crdt.ContentEvent) {
	nb.manager.UnsubscribeContent(noteID, sub)
}

// Status returns the current sync status for a single note.
func (nb *Notebook) Status(noteID string) *types.SyncStatus {
	return nb.coordinator.Status(noteID)
}

// AllStatuses returns the sync status of every tracked note.
func (nb *Notebook) AllStatuses() []*types.SyncStatus {
	return nb.coordinator.AllStatuses()
}

// Connect starts the streaming transport and the coordinator's background
// loops, then subscribes to every known note.
func (nb *Notebook) Connect(ctx context.Context) error {
	nb.transport.Connect(ctx)
	nb.coordinator.Start(ctx)

	notes, err := nb.store.ListNotes(storage.AllNotes())
	if err != nil {
		return err
	}
	for _, n := range notes {
		_ = nb.transport.Subscribe(n.ID)
	}
	return nil
}

// Disconnect stops streaming sync and the coordinator's background loops.
func (nb *Notebook) Disconnect() {
	nb.coordinator.Stop()
	nb.transport.Disconnect()
}

// TriggerFullSync runs one full_sync cycle immediately, bypassing the
// debounce timer. Intended for a manual "sync now" action.
func (nb *Notebook) TriggerFullSync(ctx context.Context) error {
	return nb.coordinator.FullSync(ctx)
}

// Events returns a subscription to sync-cycle and per-note status events,
// for a UI layer to drive sync indicators. Transport connection-state events
// are published on the transport's own broker, which this subscription does
// not include.
func (nb *Notebook) Events() events.Subscriber {
	return nb.broker.Subscribe()
}
