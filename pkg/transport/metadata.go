package transport

import (
	"encoding/json"
	"time"

	"github.com/inkwell-labs/notesync/pkg/codec"
	"github.com/inkwell-labs/notesync/pkg/types"
)

// wireMetadata is the JSON shape of a NoteMetadataUpdate on the wire,
// matching the external NoteMetadataUpdate contract.
type wireMetadata struct {
	NoteID    string  `json:"id"`
	Title     *string `json:"title,omitempty"`
	Content   *string `json:"content,omitempty"`
	FolderID  *string `json:"folder_id,omitempty"`
	IsDeleted *bool   `json:"is_deleted,omitempty"`
	IsCanvas  *bool   `json:"is_canvas,omitempty"`
	UpdatedAt string  `json:"updated_at"`
}

func toWireMetadata(m *types.NoteMetadataUpdate) wireMetadata {
	return wireMetadata{
		NoteID:    m.NoteID,
		Title:     m.Title,
		Content:   m.Content,
		FolderID:  m.FolderID,
		IsDeleted: m.IsDeleted,
		IsCanvas:  m.IsCanvas,
		UpdatedAt: m.UpdatedAt.UTC().Format(time.RFC3339Nano),
	}
}

func fromWireMetadata(w wireMetadata) (*types.NoteMetadataUpdate, error) {
	ts, err := time.Parse(time.RFC3339Nano, w.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &types.NoteMetadataUpdate{
		NoteID:    w.NoteID,
		Title:     w.Title,
		Content:   w.Content,
		FolderID:  w.FolderID,
		IsDeleted: w.IsDeleted,
		IsCanvas:  w.IsCanvas,
		UpdatedAt: ts,
	}, nil
}

func marshalMetadata(m *types.NoteMetadataUpdate) (json.RawMessage, error) {
	return json.Marshal(toWireMetadata(m))
}

func unmarshalMetadata(f Frame) (*types.NoteMetadataUpdate, error) {
	var w wireMetadata
	if err := json.Unmarshal(f.Payload, &w); err != nil {
		return nil, err
	}
	return fromWireMetadata(w)
}

// SyncFramePayload is the payload carried by a sync_request frame, mirroring
// the POST /api/sync/crdt request body: per-note state vectors and pending
// updates (both base64), plus the metadata changes riding along.
type SyncFramePayload struct {
	StateVectors map[string]string `json:"state_vectors,omitempty"`
	Updates      map[string]string `json:"updates,omitempty"`
	Metadata     []*types.NoteMetadataUpdate
}

type wireSyncRequest struct {
	StateVectors map[string]string `json:"state_vectors,omitempty"`
	Updates      map[string]string `json:"updates,omitempty"`
	Metadata     []wireMetadata    `json:"metadata,omitempty"`
}

func marshalSyncRequest(p SyncFramePayload) (json.RawMessage, error) {
	wire := wireSyncRequest{StateVectors: p.StateVectors, Updates: p.Updates}
	for _, m := range p.Metadata {
		wire.Metadata = append(wire.Metadata, toWireMetadata(m))
	}
	return json.Marshal(wire)
}

// SyncFrameResponse is the payload carried by a sync_response frame,
// mirroring the POST /api/sync/crdt response body.
type SyncFrameResponse struct {
	Updates    map[string][]byte
	Metadata   []*types.NoteMetadataUpdate
	ServerTime time.Time
}

type wireSyncResponse struct {
	Updates    map[string]string `json:"updates,omitempty"`
	Metadata   []wireMetadata    `json:"metadata,omitempty"`
	ServerTime string            `json:"server_time,omitempty"`
}

func unmarshalSyncResponse(f Frame) (*SyncFrameResponse, error) {
	var wire wireSyncResponse
	if err := json.Unmarshal(f.Payload, &wire); err != nil {
		return nil, err
	}
	resp := &SyncFrameResponse{Updates: make(map[string][]byte, len(wire.Updates))}
	for noteID, b64 := range wire.Updates {
		raw, err := codec.FromBase64(b64)
		if err != nil {
			return nil, err
		}
		resp.Updates[noteID] = raw
	}
	for _, w := range wire.Metadata {
		m, err := fromWireMetadata(w)
		if err != nil {
			return nil, err
		}
		resp.Metadata = append(resp.Metadata, m)
	}
	if wire.ServerTime != "" {
		t, err := time.Parse(time.RFC3339Nano, wire.ServerTime)
		if err != nil {
			return nil, err
		}
		resp.ServerTime = t
	}
	return resp, nil
}
