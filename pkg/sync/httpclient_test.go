package sync

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inkwell-labs/notesync/pkg/errs"
)

func TestSyncCRDTSuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/sync/crdt", r.URL.Path)
		assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))

		var req syncRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Len(t, req.Updates, 1)
		require.Contains(t, req.Updates, "note-1")

		resp := syncResponse{
			Updates:    map[string]string{"note-1": "aGVsbG8="},
			ServerTime: time.Now().UTC().Format(time.RFC3339Nano),
		}
		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL, "test-token")
	resp, err := client.SyncCRDT(t.Context(), CrdtSyncRequest{
		Updates: map[string][]byte{"note-1": []byte("hi")},
	})
	require.NoError(t, err)
	require.Contains(t, resp.Updates, "note-1")
	assert.Equal(t, []byte("hello"), resp.Updates["note-1"])
}

func TestSyncCRDTUnauthorized(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL, "bad-token")
	_, err := client.SyncCRDT(t.Context(), CrdtSyncRequest{})
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.KindAuth))
}

func TestSyncCRDTServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL, "")
	_, err := client.SyncCRDT(t.Context(), CrdtSyncRequest{})
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.KindNetwork))
}
