package sync

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inkwell-labs/notesync/pkg/crdt"
	"github.com/inkwell-labs/notesync/pkg/events"
	"github.com/inkwell-labs/notesync/pkg/storage"
	"github.com/inkwell-labs/notesync/pkg/transport"
	"github.com/inkwell-labs/notesync/pkg/types"
)

func newTestCoordinator(t *testing.T, handler http.HandlerFunc) (*Coordinator, storage.Store) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	store, err := storage.NewBoltStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	manager := crdt.NewManager("actor-a")
	tr := transport.New("ws://example.invalid/api/ws", "", transport.DefaultBackoff)
	httpClient := NewHTTPClient(server.URL, "")
	broker := events.NewBroker()
	broker.Start()

	c := New(store, manager, tr, httpClient, broker)
	t.Cleanup(func() {
		c.mu.Lock()
		if c.debounceTimer != nil {
			c.debounceTimer.Stop()
		}
		c.mu.Unlock()
	})
	return c, store
}

func TestNoteChangedMarksNotePending(t *testing.T) {
	c, _ := newTestCoordinator(t, func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("server should not be called before a sync runs")
	})

	c.NoteChanged("note-1", []byte("update"))

	status := c.Status("note-1")
	assert.Equal(t, types.SyncStatePending, status.State)
	assert.Equal(t, 1, status.PendingUpdateCount)
}

func TestFullSyncPushesInMemoryReplicaAndInsertsPulledMetadata(t *testing.T) {
	var received syncRequest
	c, store := newTestCoordinator(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))

		serverTime := time.Now().UTC()
		resp := syncResponse{
			Metadata: []wireMetadata{{
				NoteID:    "note-2",
				Title:     strPtr("from server"),
				UpdatedAt: serverTime.Format(time.RFC3339Nano),
			}},
			ServerTime: serverTime.Format(time.RFC3339Nano),
		}
		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	})

	require.NoError(t, store.SaveNote(&types.Note{ID: "note-1", Title: "local note", UpdatedAt: time.Now()}))
	require.NoError(t, c.manager.AppendText("note-1", "hello"))

	require.NoError(t, c.FullSync(t.Context()))

	require.Contains(t, received.Updates, "note-1")
	require.Contains(t, received.StateVectors, "note-1")

	pulled, err := store.GetNote("note-2")
	require.NoError(t, err)
	assert.Equal(t, "from server", pulled.Title)

	assert.Equal(t, types.SyncStateSynced, c.Status("note-1").State)
}

func TestFullSyncRefusesOverlap(t *testing.T) {
	blockCh := make(chan struct{})
	c, _ := newTestCoordinator(t, func(w http.ResponseWriter, r *http.Request) {
		<-blockCh
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(syncResponse{ServerTime: time.Now().UTC().Format(time.RFC3339Nano)})
	})

	done := make(chan error, 1)
	go func() { done <- c.FullSync(t.Context()) }()

	// Give the first sync time to acquire the lock before trying a second.
	time.Sleep(50 * time.Millisecond)
	err := c.FullSync(t.Context())
	assert.Error(t, err)

	close(blockCh)
	require.NoError(t, <-done)
}

func TestFullSyncSeedsContentOnlyNoteAndPersistsReplica(t *testing.T) {
	c, store := newTestCoordinator(t, func(w http.ResponseWriter, r *http.Request) {
		var req syncRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Contains(t, req.StateVectors, "note-1")
		require.Contains(t, req.Updates, "note-1")

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(syncResponse{ServerTime: time.Now().UTC().Format(time.RFC3339Nano)})
	})

	require.NoError(t, store.SaveNote(&types.Note{
		ID:        "note-1",
		Title:     "seeded from content",
		Content:   "<p>hi</p>",
		UpdatedAt: time.Now(),
	}))

	require.NoError(t, c.FullSync(t.Context()))

	// persistSeededCrdt runs in the background; give it a moment to land.
	require.Eventually(t, func() bool {
		states, err := store.ListAllCrdt()
		return err == nil && len(states) == 1
	}, time.Second, 10*time.Millisecond)
}

func TestFullSyncMetadataTiebreakIgnoresEqualTimestamp(t *testing.T) {
	ts := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c, store := newTestCoordinator(t, func(w http.ResponseWriter, r *http.Request) {
		resp := syncResponse{
			Metadata: []wireMetadata{{
				NoteID:    "note-1",
				Title:     strPtr("server title"),
				UpdatedAt: ts.Format(time.RFC3339Nano),
			}},
			ServerTime: time.Now().UTC().Format(time.RFC3339Nano),
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	})

	require.NoError(t, store.SaveNote(&types.Note{ID: "note-1", Title: "local title", UpdatedAt: ts}))

	require.NoError(t, c.FullSync(t.Context()))

	got, err := store.GetNote("note-1")
	require.NoError(t, err)
	assert.Equal(t, "local title", got.Title, "equal timestamps must not overwrite the local row")
}

func TestFullSyncTombstonePropagation(t *testing.T) {
	ts := time.Now().UTC()
	c, store := newTestCoordinator(t, func(w http.ResponseWriter, r *http.Request) {
		deleted := true
		resp := syncResponse{
			Metadata: []wireMetadata{{
				NoteID:    "note-1",
				IsDeleted: &deleted,
				UpdatedAt: ts.Format(time.RFC3339Nano),
			}},
			ServerTime: ts.Format(time.RFC3339Nano),
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	})

	require.NoError(t, store.SaveNote(&types.Note{ID: "note-1", Title: "to delete", UpdatedAt: ts.Add(-time.Hour)}))

	require.NoError(t, c.FullSync(t.Context()))

	got, err := store.GetNote("note-1")
	require.NoError(t, err)
	assert.True(t, got.IsDeleted)
}

func strPtr(s string) *string { return &s }
