package transport

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inkwell-labs/notesync/pkg/types"
)

func TestMarshalUnmarshalMetadataRoundTrip(t *testing.T) {
	title := "new title"
	deleted := true
	meta := &types.NoteMetadataUpdate{
		NoteID:    "note-1",
		Title:     &title,
		IsDeleted: &deleted,
		UpdatedAt: time.Now().UTC().Truncate(time.Millisecond),
	}

	payload, err := marshalMetadata(meta)
	require.NoError(t, err)

	decoded, err := unmarshalMetadata(Frame{NoteID: "note-1", Payload: payload})
	require.NoError(t, err)

	assert.Equal(t, meta.NoteID, decoded.NoteID)
	require.NotNil(t, decoded.Title)
	assert.Equal(t, *meta.Title, *decoded.Title)
	require.NotNil(t, decoded.IsDeleted)
	assert.Equal(t, *meta.IsDeleted, *decoded.IsDeleted)
	assert.True(t, meta.UpdatedAt.Equal(decoded.UpdatedAt))
}

func TestMarshalSyncRequestPayload(t *testing.T) {
	title := "note title"
	meta := &types.NoteMetadataUpdate{
		NoteID:    "note-1",
		Title:     &title,
		UpdatedAt: time.Now().UTC().Truncate(time.Millisecond),
	}
	payload, err := marshalSyncRequest(SyncFramePayload{
		StateVectors: map[string]string{"note-1": "AQID"},
		Updates:      map[string]string{"note-1": "BAUG"},
		Metadata:     []*types.NoteMetadataUpdate{meta},
	})
	require.NoError(t, err)
	assert.Contains(t, string(payload), "state_vectors")
	assert.Contains(t, string(payload), "AQID")
}

func TestUnmarshalSyncResponseFrame(t *testing.T) {
	frame := Frame{
		Type:    FrameSyncResponse,
		Payload: []byte(`{"updates":{"note-1":"AQID"},"metadata":[],"server_time":"2024-01-01T00:00:00Z"}`),
	}
	resp, err := unmarshalSyncResponse(frame)
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3}, resp.Updates["note-1"])
	assert.False(t, resp.ServerTime.IsZero())
}
