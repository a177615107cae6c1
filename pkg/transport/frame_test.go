package transport

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeUpdateFrame(t *testing.T) {
	frame, err := encodeUpdateFrame("note-1", "aGVsbG8=")
	require.NoError(t, err)
	assert.Equal(t, FrameUpdate, frame.Type)
	assert.Equal(t, "note-1", frame.NoteID)

	b64, err := decodeUpdatePayload(frame)
	require.NoError(t, err)
	assert.Equal(t, "aGVsbG8=", b64)
}

func TestDecodeUpdatePayloadRejectsMalformedJSON(t *testing.T) {
	frame := Frame{Type: FrameUpdate, Payload: []byte("not json")}
	_, err := decodeUpdatePayload(frame)
	assert.Error(t, err)
}
