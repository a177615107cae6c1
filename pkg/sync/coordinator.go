// Package sync implements the Sync Coordinator: it orchestrates the CRDT
// Document Manager, the Local Persistence Port, and the Streaming Sync
// Transport into full and incremental sync cycles, owning the debounce and
// content-snapshot timers described for this component.
package sync

import (
	"context"
	"sync"
	"time"

	"github.com/inkwell-labs/notesync/pkg/codec"
	"github.com/inkwell-labs/notesync/pkg/crdt"
	"github.com/inkwell-labs/notesync/pkg/errs"
	"github.com/inkwell-labs/notesync/pkg/events"
	"github.com/inkwell-labs/notesync/pkg/log"
	"github.com/inkwell-labs/notesync/pkg/metrics"
	"github.com/inkwell-labs/notesync/pkg/storage"
	"github.com/inkwell-labs/notesync/pkg/transport"
	"github.com/inkwell-labs/notesync/pkg/types"
)

// Debounce windows. Kept as two independent constants per design: the sync
// debounce and the content-snapshot timer serve different purposes (network
// push vs local durability) and must not be unified into one timer, since
// collapsing them would tie snapshot persistence to network availability.
const (
	SyncDebounce     = 2000 * time.Millisecond
	SnapshotInterval = 1500 * time.Millisecond
)

// Coordinator ties together the document manager, store, and transport.
type Coordinator struct {
	store     storage.Store
	manager   *crdt.Manager
	transport *transport.Transport
	http      *HTTPClient
	status    *statusTracker
	broker    *events.Broker

	mu           sync.Mutex
	pendingCount map[string]int
	lastSyncAt   time.Time
	syncRunning  sync.Mutex // TryLock-style guard against overlapping full syncs

	debounceTimer *time.Timer
	snapshotTimer *time.Timer
	stopCh        chan struct{}
	wg            sync.WaitGroup
}

// New builds a Coordinator. broker is the shared event broker notes use to
// announce status changes; it must already be started.
func New(store storage.Store, manager *crdt.Manager, tr *transport.Transport, http *HTTPClient, broker *events.Broker) *Coordinator {
	return &Coordinator{
		store:        store,
		manager:      manager,
		transport:    tr,
		http:         http,
		status:       newStatusTracker(broker),
		broker:       broker,
		pendingCount: make(map[string]int),
		stopCh:       make(chan struct{}),
	}
}

// Start launches the background loops: the transport's incoming-frame
// consumers and the content-snapshot ticker. The sync debounce timer is not
// started here; NoteChanged and MetadataChanged arm it.
func (c *Coordinator) Start(ctx context.Context) {
	c.wg.Add(4)
	go c.consumeIncomingUpdates(ctx)
	go c.consumeIncomingMetadata(ctx)
	go c.consumeIncomingSyncResponses(ctx)
	go c.snapshotLoop(ctx)
}

// Stop signals all background loops to exit, cancels any pending debounce
// timer, and waits for the loops to return.
func (c *Coordinator) Stop() {
	c.mu.Lock()
	if c.debounceTimer != nil {
		c.debounceTimer.Stop()
	}
	c.mu.Unlock()

	select {
	case <-c.stopCh:
	default:
		close(c.stopCh)
	}
	c.wg.Wait()
}

// Status returns a point-in-time copy of noteID's sync status.
func (c *Coordinator) Status(noteID string) *types.SyncStatus {
	return c.status.get(noteID)
}

// AllStatuses returns a snapshot of every tracked note's sync status.
func (c *Coordinator) AllStatuses() []*types.SyncStatus {
	return c.status.all()
}

// NoteChanged is called by the façade whenever a local edit produces a new
// CRDT update; it marks the note pending and (re)starts the debounce timer
// rather than pushing immediately, so rapid consecutive edits coalesce into
// one network round trip. The update bytes themselves aren't retained here:
// the next sync cycle reads the authoritative state straight from the
// Document Manager.
func (c *Coordinator) NoteChanged(noteID string, update []byte) {
	c.mu.Lock()
	c.pendingCount[noteID]++
	count := c.pendingCount[noteID]
	c.mu.Unlock()

	metrics.PendingQueueDepth.Inc()
	c.status.setPendingCount(noteID, count)
	c.status.transition(noteID, types.SyncStatePending)
	c.scheduleDebounce()
}

// MetadataChanged marks noteID pending following the same debounce path as
// content changes.
func (c *Coordinator) MetadataChanged(meta *types.NoteMetadataUpdate) {
	c.mu.Lock()
	c.pendingCount[meta.NoteID]++
	count := c.pendingCount[meta.NoteID]
	c.mu.Unlock()

	metrics.PendingQueueDepth.Inc()
	c.status.setPendingCount(meta.NoteID, count)
	c.status.transition(meta.NoteID, types.SyncStatePending)
	c.scheduleDebounce()
}

func (c *Coordinator) clearPending(noteID string) {
	c.mu.Lock()
	n := c.pendingCount[noteID]
	delete(c.pendingCount, noteID)
	c.mu.Unlock()
	metrics.PendingQueueDepth.Sub(float64(n))
}

func (c *Coordinator) scheduleDebounce() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.debounceTimer != nil && c.debounceTimer.Stop() {
		metrics.SyncDebounceResets.Inc()
	}
	c.debounceTimer = time.AfterFunc(SyncDebounce, func() {
		if err := c.IncrementalSync(context.Background()); err != nil {
			log.Errorf("sync: incremental sync failed", err)
		}
	})
}

// buildSyncRequest implements steps 1-5 of full_sync: list notes and CRDT
// states, decide should_push per note, classify each note as in-memory,
// persisted-only, content-only, or empty, and assemble the request.
func (c *Coordinator) buildSyncRequest() (*CrdtSyncRequest, error) {
	notes, err := c.store.ListNotes(storage.AllNotes())
	if err != nil {
		return nil, errs.Storage("sync.list_notes", err)
	}
	crdtStates, err := c.store.ListAllCrdt()
	if err != nil {
		return nil, errs.Storage("sync.list_all_crdt", err)
	}
	crdtByNote := make(map[string]*types.CrdtState, len(crdtStates))
	for _, s := range crdtStates {
		crdtByNote[s.NoteID] = s
	}

	c.mu.Lock()
	lastSync := c.lastSyncAt
	c.mu.Unlock()

	req := &CrdtSyncRequest{
		StateVectors: make(map[string][]byte),
		Updates:      make(map[string][]byte),
	}

	for _, note := range notes {
		shouldPush := lastSync.IsZero() || note.UpdatedAt.After(lastSync) || c.manager.Has(note.ID)

		content := note.Content
		if c.manager.Has(note.ID) {
			content = c.manager.TextSnapshot(note.ID)
		}

		switch {
		case c.manager.Has(note.ID):
			c.classifyInMemory(note.ID, shouldPush, req)
		case crdtByNote[note.ID] != nil:
			c.classifyPersistedOnly(note.ID, crdtByNote[note.ID], shouldPush, req)
		case note.Content != "":
			c.classifyContentOnly(note.ID, note.Content, shouldPush, req)
		default:
			c.classifyEmpty(note.ID, req)
		}

		if shouldPush {
			meta := noteToMetadataUpdate(note)
			meta.Content = &content
			req.Metadata = append(req.Metadata, meta)
		}
	}

	return req, nil
}

func (c *Coordinator) classifyInMemory(noteID string, shouldPush bool, req *CrdtSyncRequest) {
	vector, err := c.manager.StateVector(noteID)
	if err != nil {
		log.Errorf("sync: failed to read state vector for "+noteID, err)
		return
	}
	req.StateVectors[noteID] = vector

	if !shouldPush {
		return
	}
	state, err := c.manager.State(noteID)
	if err != nil {
		log.Errorf("sync: failed to read state for "+noteID, err)
		return
	}
	if len(state) > crdt.EmptyStateFloor {
		req.Updates[noteID] = state
	}
}

func (c *Coordinator) classifyPersistedOnly(noteID string, state *types.CrdtState, shouldPush bool, req *CrdtSyncRequest) {
	vector := state.StateVector
	if len(vector) == 0 {
		if err := c.manager.Load(noteID, state.YDocState); err == nil {
			if v, err := c.manager.StateVector(noteID); err == nil {
				vector = v
			}
		}
	}
	req.StateVectors[noteID] = vector

	if shouldPush {
		req.Updates[noteID] = state.YDocState
	}
}

func (c *Coordinator) classifyContentOnly(noteID, content string, shouldPush bool, req *CrdtSyncRequest) {
	if err := c.manager.SeedHTML(noteID, content); err != nil {
		log.Errorf("sync: failed to seed replica from content for "+noteID, err)
		return
	}
	vector, err := c.manager.StateVector(noteID)
	if err != nil {
		log.Errorf("sync: failed to read state vector for "+noteID, err)
		return
	}
	req.StateVectors[noteID] = vector

	state, err := c.manager.State(noteID)
	if err == nil && shouldPush && len(state) > crdt.EmptyStateFloor {
		req.Updates[noteID] = state
	}

	go c.persistSeededCrdt(noteID)
}

func (c *Coordinator) persistSeededCrdt(noteID string) {
	state, err := c.manager.State(noteID)
	if err != nil {
		return
	}
	vector, err := c.manager.StateVector(noteID)
	if err != nil {
		return
	}
	if err := c.store.SaveCrdt(&types.CrdtState{
		NoteID:      noteID,
		YDocState:   state,
		StateVector: vector,
		UpdatedAt:   time.Now(),
	}); err != nil {
		log.Errorf("sync: failed to persist seeded replica", err)
	}
}

func (c *Coordinator) classifyEmpty(noteID string, req *CrdtSyncRequest) {
	c.manager.GetOrCreate(noteID)
	vector, err := c.manager.StateVector(noteID)
	if err != nil {
		return
	}
	req.StateVectors[noteID] = vector
}

func noteToMetadataUpdate(note *types.Note) *types.NoteMetadataUpdate {
	title := note.Title
	content := note.Content
	isDeleted := note.IsDeleted
	isCanvas := note.IsCanvas
	return &types.NoteMetadataUpdate{
		NoteID:    note.ID,
		Title:     &title,
		Content:   &content,
		FolderID:  note.FolderID,
		IsDeleted: &isDeleted,
		IsCanvas:  &isCanvas,
		UpdatedAt: note.UpdatedAt,
	}
}

// FullSync runs the complete nine-step reconciliation documented for this
// component:
//  1. list notes and CRDT states, indexed by note id
//  2. decide should_push per note
//  3. compute each note's content snapshot
//  4. classify each note as in-memory, persisted-only, content-only, or empty
//  5. build the CrdtSyncRequest (state vectors, updates, metadata)
//  6. POST to the server
//  7. apply returned updates to the Document Manager, then persist them
//  8. reconcile returned metadata against the local note table
//  9. advance last_sync from the response's server_time
func (c *Coordinator) FullSync(ctx context.Context) error {
	kind := "full"
	timer := metrics.NewTimer()
	if !c.syncRunning.TryLock() {
		metrics.SyncCyclesTotal.WithLabelValues(kind, "error").Inc()
		return errs.Invariant("sync.full_sync", errAlreadyRunning)
	}
	defer c.syncRunning.Unlock()

	c.broker.Publish(&events.Event{Type: events.EventSyncStarted})

	c.transport.BeginSync()
	defer c.transport.EndSync()

	req, err := c.buildSyncRequest()
	if err != nil {
		metrics.SyncCyclesTotal.WithLabelValues(kind, "error").Inc()
		timer.ObserveDurationVec(metrics.SyncCycleDuration, kind)
		c.broker.Publish(&events.Event{Type: events.EventSyncFailed, Metadata: map[string]string{"error": err.Error()}})
		return err
	}

	touched := touchedNotes(req)
	for noteID := range touched {
		c.status.transition(noteID, types.SyncStateSyncing)
	}

	resp, err := c.http.SyncCRDT(ctx, *req)
	if err != nil {
		for noteID := range touched {
			c.status.transition(noteID, types.SyncStatePending)
		}
		metrics.SyncCyclesTotal.WithLabelValues(kind, "error").Inc()
		timer.ObserveDurationVec(metrics.SyncCycleDuration, kind)
		c.broker.Publish(&events.Event{Type: events.EventSyncFailed, Metadata: map[string]string{"error": err.Error()}})
		return err
	}

	metrics.UpdatesPushedTotal.Add(float64(len(req.Updates)))
	metrics.MetadataPushedTotal.Add(float64(len(req.Metadata)))
	metrics.UpdatesPulledTotal.Add(float64(len(resp.Updates)))
	metrics.MetadataPulledTotal.Add(float64(len(resp.Metadata)))

	if err := c.applyPulled(resp); err != nil {
		metrics.SyncCyclesTotal.WithLabelValues(kind, "error").Inc()
		timer.ObserveDurationVec(metrics.SyncCycleDuration, kind)
		c.broker.Publish(&events.Event{Type: events.EventSyncFailed, Metadata: map[string]string{"error": err.Error()}})
		return err
	}
	c.reconcileMetadata(resp)

	c.mu.Lock()
	if resp.ServerTime.IsZero() {
		c.lastSyncAt = time.Now()
	} else {
		c.lastSyncAt = resp.ServerTime
	}
	c.mu.Unlock()

	for noteID := range touched {
		c.clearPending(noteID)
		c.status.transition(noteID, types.SyncStateSynced)
	}
	metrics.SyncCyclesTotal.WithLabelValues(kind, "ok").Inc()
	timer.ObserveDurationVec(metrics.SyncCycleDuration, kind)
	c.broker.Publish(&events.Event{Type: events.EventSyncCompleted})
	return nil
}

// IncrementalSync is the debounce-triggered counterpart to FullSync. If the
// transport is connected it assembles the same request payload and sends it
// as a single sync_request frame, letting the response arrive
// asynchronously over the streaming channel; otherwise, or if the
// transport refuses because a sync is already in flight, it falls back to
// a full request/response cycle.
func (c *Coordinator) IncrementalSync(ctx context.Context) error {
	if c.transport.State() != transport.StateConnected {
		return c.FullSync(ctx)
	}

	req, err := c.buildSyncRequest()
	if err != nil {
		return c.FullSync(ctx)
	}

	if err := c.transport.RequestSync(toFramePayload(req)); err != nil {
		return c.FullSync(ctx)
	}

	for noteID := range touchedNotes(req) {
		c.status.transition(noteID, types.SyncStateSyncing)
	}
	return nil
}

func toFramePayload(req *CrdtSyncRequest) transport.SyncFramePayload {
	p := transport.SyncFramePayload{
		StateVectors: make(map[string]string, len(req.StateVectors)),
		Updates:      make(map[string]string, len(req.Updates)),
		Metadata:     req.Metadata,
	}
	for noteID, v := range req.StateVectors {
		p.StateVectors[noteID] = codec.ToBase64(v)
	}
	for noteID, u := range req.Updates {
		p.Updates[noteID] = codec.ToBase64(u)
	}
	return p
}

func touchedNotes(req *CrdtSyncRequest) map[string]struct{} {
	set := make(map[string]struct{})
	for noteID := range req.StateVectors {
		set[noteID] = struct{}{}
	}
	for noteID := range req.Updates {
		set[noteID] = struct{}{}
	}
	for _, m := range req.Metadata {
		set[m.NoteID] = struct{}{}
	}
	return set
}

// applyPulled implements step 7: every non-empty update in the response is
// applied to the Document Manager as a remote/sync origin, then the
// post-merge state is persisted. A bad update for one note is logged and
// skipped rather than aborting the rest of the response.
func (c *Coordinator) applyPulled(resp *CrdtSyncResponse) error {
	for noteID, update := range resp.Updates {
		if len(update) == 0 {
			continue
		}
		if err := c.manager.ApplyRemote(noteID, update); err != nil {
			log.Errorf("sync: failed to apply pulled update for "+noteID, err)
			continue
		}
		state, err := c.manager.State(noteID)
		if err != nil {
			continue
		}
		vector, err := c.manager.StateVector(noteID)
		if err != nil {
			continue
		}
		if err := c.store.SaveCrdt(&types.CrdtState{
			NoteID:      noteID,
			YDocState:   state,
			StateVector: vector,
			UpdatedAt:   time.Now(),
		}); err != nil {
			log.Errorf("sync: failed to persist pulled update for "+noteID, err)
		}
	}
	return nil
}

// reconcileMetadata implements step 8: tombstone, insert, update-if-newer,
// or ignore each returned metadata entry against the local note table.
// Per-note failures are logged and skipped.
func (c *Coordinator) reconcileMetadata(resp *CrdtSyncResponse) {
	for _, m := range resp.Metadata {
		local, err := c.store.GetNote(m.NoteID)
		exists := err == nil

		if m.IsDeleted != nil && *m.IsDeleted {
			note := &types.Note{ID: m.NoteID}
			if exists {
				note = local
			}
			note.IsDeleted = true
			note.UpdatedAt = m.UpdatedAt
			if err := c.store.SaveNote(note); err != nil {
				log.Errorf("sync: failed to tombstone "+m.NoteID, err)
			}
			continue
		}

		if !exists {
			note := &types.Note{ID: m.NoteID, UpdatedAt: m.UpdatedAt}
			applyMetadataScalars(note, m)
			note.Content = reconciledContent(c, m, resp)
			if err := c.store.SaveNote(note); err != nil {
				log.Errorf("sync: failed to insert "+m.NoteID, err)
			}
			continue
		}

		if m.UpdatedAt.After(local.UpdatedAt) {
			applyMetadataScalars(local, m)
			local.Content = reconciledContent(c, m, resp)
			local.UpdatedAt = m.UpdatedAt
			if err := c.store.SaveNote(local); err != nil {
				log.Errorf("sync: failed to update "+m.NoteID, err)
			}
		}
		// else: server entry is stale relative to the local row; ignore.
	}
}

// reconciledContent picks the Manager's live text snapshot when this cycle
// pulled a CRDT update for the note, falling back to the server-supplied
// scalar content otherwise.
func reconciledContent(c *Coordinator, m *types.NoteMetadataUpdate, resp *CrdtSyncResponse) string {
	if u, ok := resp.Updates[m.NoteID]; ok && len(u) > 0 {
		return c.manager.TextSnapshot(m.NoteID)
	}
	if m.Content != nil {
		return *m.Content
	}
	return ""
}

func applyMetadataScalars(note *types.Note, m *types.NoteMetadataUpdate) {
	if m.Title != nil {
		note.Title = *m.Title
	}
	if m.FolderID != nil {
		note.FolderID = m.FolderID
	}
	if m.IsCanvas != nil {
		note.IsCanvas = *m.IsCanvas
	}
}

func (c *Coordinator) consumeIncomingUpdates(ctx context.Context) {
	defer c.wg.Done()
	for {
		select {
		case u, ok := <-c.transport.IncomingUpdates():
			if !ok {
				return
			}
			if err := c.manager.ApplyRemote(u.NoteID, u.Update); err != nil {
				log.Errorf("sync: failed to apply incoming update", err)
				continue
			}
			if err := c.store.ApplyCrdtUpdate(u.NoteID, u.Update); err != nil {
				log.Errorf("sync: failed to persist incoming update", err)
			}
		case <-c.stopCh:
			return
		case <-ctx.Done():
			return
		}
	}
}

func (c *Coordinator) consumeIncomingMetadata(ctx context.Context) {
	defer c.wg.Done()
	for {
		select {
		case m, ok := <-c.transport.IncomingMetadata():
			if !ok {
				return
			}
			note, err := c.store.GetNote(m.NoteID)
			if err != nil {
				note = &types.Note{ID: m.NoteID}
			}
			applyMetadataScalars(note, m)
			if m.IsDeleted != nil {
				note.IsDeleted = *m.IsDeleted
			}
			note.UpdatedAt = m.UpdatedAt
			if err := c.store.ApplyPulledNotes([]*types.Note{note}); err != nil {
				log.Errorf("sync: failed to persist incoming metadata", err)
			}
		case <-c.stopCh:
			return
		case <-ctx.Done():
			return
		}
	}
}

// consumeIncomingSyncResponses applies the response to a transport-based
// request_sync once it arrives, mirroring the final steps of FullSync.
func (c *Coordinator) consumeIncomingSyncResponses(ctx context.Context) {
	defer c.wg.Done()
	for {
		select {
		case resp, ok := <-c.transport.IncomingSyncResponses():
			if !ok {
				return
			}
			crdtResp := &CrdtSyncResponse{
				Updates:    resp.Updates,
				Metadata:   resp.Metadata,
				ServerTime: resp.ServerTime,
			}
			touched := make(map[string]struct{})
			for noteID := range crdtResp.Updates {
				touched[noteID] = struct{}{}
			}
			for _, m := range crdtResp.Metadata {
				touched[m.NoteID] = struct{}{}
			}

			if err := c.applyPulled(crdtResp); err != nil {
				log.Errorf("sync: failed to apply sync_response", err)
			}
			c.reconcileMetadata(crdtResp)

			c.mu.Lock()
			if !crdtResp.ServerTime.IsZero() {
				c.lastSyncAt = crdtResp.ServerTime
			}
			c.mu.Unlock()

			for noteID := range touched {
				c.clearPending(noteID)
				c.status.transition(noteID, types.SyncStateSynced)
			}
		case <-c.stopCh:
			return
		case <-ctx.Done():
			return
		}
	}
}

// snapshotLoop persists the in-memory CRDT state of every touched note to
// the store every SnapshotInterval, independent of the sync debounce: this
// is local durability, not network sync, so it runs on its own clock.
func (c *Coordinator) snapshotLoop(ctx context.Context) {
	defer c.wg.Done()
	ticker := time.NewTicker(SnapshotInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			c.snapshotAll()
		case <-c.stopCh:
			return
		case <-ctx.Done():
			return
		}
	}
}

func (c *Coordinator) snapshotAll() {
	for _, s := range c.status.all() {
		state, err := c.manager.State(s.NoteID)
		if err != nil {
			continue
		}
		vector, err := c.manager.StateVector(s.NoteID)
		if err != nil {
			continue
		}
		if err := c.store.SaveCrdt(&types.CrdtState{
			NoteID:      s.NoteID,
			YDocState:   state,
			StateVector: vector,
			UpdatedAt:   time.Now(),
		}); err != nil {
			log.Errorf("sync: failed to snapshot replica", err)
		}
	}
}

var errAlreadyRunning = errSentinel("sync already running")

type errSentinel string

func (e errSentinel) Error() string { return string(e) }
