package sync

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/inkwell-labs/notesync/pkg/events"
	"github.com/inkwell-labs/notesync/pkg/types"
)

func newTestTracker() *statusTracker {
	broker := events.NewBroker()
	broker.Start()
	return newStatusTracker(broker)
}

func TestStatusTrackerDefaultsToSynced(t *testing.T) {
	tracker := newTestTracker()
	status := tracker.get("note-1")
	assert.Equal(t, types.SyncStateSynced, status.State)
}

func TestStatusTrackerTransitionToSyncedResetsPending(t *testing.T) {
	tracker := newTestTracker()
	tracker.setPendingCount("note-1", 3)
	tracker.transition("note-1", types.SyncStateSynced)

	status := tracker.get("note-1")
	assert.Equal(t, types.SyncStateSynced, status.State)
	assert.Equal(t, 0, status.PendingUpdateCount)
	assert.False(t, status.LastSyncedAt.IsZero())
}

func TestStatusTrackerGetReturnsACopy(t *testing.T) {
	tracker := newTestTracker()
	first := tracker.get("note-1")
	first.State = types.SyncStateConflict

	second := tracker.get("note-1")
	assert.Equal(t, types.SyncStateSynced, second.State, "mutating a returned status must not affect the tracker's internal state")
}

func TestStatusTrackerAll(t *testing.T) {
	tracker := newTestTracker()
	tracker.get("note-1")
	tracker.get("note-2")

	all := tracker.all()
	assert.Len(t, all, 2)
}
