package sync

import (
	"sync"
	"time"

	"github.com/inkwell-labs/notesync/pkg/events"
	"github.com/inkwell-labs/notesync/pkg/types"
)

// statusTracker owns the per-note SyncStatus map and broadcasts transitions
// so the public façade can expose live status to the UI layer.
type statusTracker struct {
	mu     sync.Mutex
	byNote map[string]*types.SyncStatus
	broker *events.Broker
}

func newStatusTracker(broker *events.Broker) *statusTracker {
	return &statusTracker{
		byNote: make(map[string]*types.SyncStatus),
		broker: broker,
	}
}

func (t *statusTracker) get(noteID string) *types.SyncStatus {
	t.mu.Lock()
	defer t.mu.Unlock()
	s, ok := t.byNote[noteID]
	if !ok {
		s = &types.SyncStatus{NoteID: noteID, State: types.SyncStateSynced}
		t.byNote[noteID] = s
	}
	cp := *s
	return &cp
}

func (t *statusTracker) transition(noteID string, state types.SyncState) {
	t.mu.Lock()
	s, ok := t.byNote[noteID]
	if !ok {
		s = &types.SyncStatus{NoteID: noteID}
		t.byNote[noteID] = s
	}
	s.State = state
	if state == types.SyncStateSynced {
		s.LastSyncedAt = time.Now()
		s.PendingUpdateCount = 0
	}
	t.mu.Unlock()

	t.broker.Publish(&events.Event{
		Type:     events.EventNoteStatusChanged,
		Message:  string(state),
		Metadata: map[string]string{"note_id": noteID},
	})
}

func (t *statusTracker) setPendingCount(noteID string, count int) {
	t.mu.Lock()
	s, ok := t.byNote[noteID]
	if !ok {
		s = &types.SyncStatus{NoteID: noteID, State: types.SyncStatePending}
		t.byNote[noteID] = s
	}
	s.PendingUpdateCount = count
	t.mu.Unlock()
}

func (t *statusTracker) all() []*types.SyncStatus {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]*types.SyncStatus, 0, len(t.byNote))
	for _, s := range t.byNote {
		cp := *s
		out = append(out, &cp)
	}
	return out
}
