package sync

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/inkwell-labs/notesync/pkg/codec"
	"github.com/inkwell-labs/notesync/pkg/errs"
	"github.com/inkwell-labs/notesync/pkg/metrics"
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

// syncRequest is the POST /api/sync/crdt request body, matching the
// external interface exactly: maps of note_id to base64 payload, plus a
// flat metadata list.
type syncRequest struct {
	StateVectors map[string]string `json:"state_vectors,omitempty"`
	Updates      map[string]string `json:"updates,omitempty"`
	Metadata     []wireMetadata    `json:"metadata,omitempty"`
}

// syncResponse is the POST /api/sync/crdt response body.
type syncResponse struct {
	Updates    map[string]string `json:"updates,omitempty"`
	Metadata   []wireMetadata    `json:"metadata,omitempty"`
	ServerTime string            `json:"server_time"`
}

// HTTPClient implements the request/response half of full_sync: a single
// POST to /api/sync/crdt carrying this device's outgoing state vectors,
// updates, and metadata, answered with everything the server has that this
// device is missing.
type HTTPClient struct {
	baseURL string
	token   string
	client  *http.Client
}

// NewHTTPClient builds a client with a fixed per-call timeout, mirroring
// the one-call-one-deadline convention used for this codebase's other
// outbound RPCs.
func NewHTTPClient(baseURL, token string) *HTTPClient {
	return &HTTPClient{
		baseURL: baseURL,
		token:   token,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

// CrdtSyncRequest is the coordinator-facing input to SyncCRDT, keyed by
// note ID per the external CrdtSyncRequest shape.
type CrdtSyncRequest struct {
	StateVectors map[string][]byte
	Updates      map[string][]byte
	Metadata     []*types.NoteMetadataUpdate
}

// CrdtSyncResponse is the coordinator-facing output of SyncCRDT.
type CrdtSyncResponse struct {
	Updates    map[string][]byte
	Metadata   []*types.NoteMetadataUpdate
	ServerTime time.Time
}

// SyncCRDT performs one POST /api/sync/crdt round trip.
func (c *HTTPClient) SyncCRDT(ctx context.Context, req CrdtSyncRequest) (*CrdtSyncResponse, error) {
	timer := metrics.NewTimer()
	defer timer.ObserveDuration(metrics.HTTPSyncRequestDuration)

	body, err := encodeSyncRequest(req)
	if err != nil {
		metrics.HTTPSyncRequestsTotal.WithLabelValues("encode_error").Inc()
		return nil, errs.Protocol("sync.http.encode_request", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/sync/crdt", bytes.NewReader(body))
	if err != nil {
		metrics.HTTPSyncRequestsTotal.WithLabelValues("network_error").Inc()
		return nil, errs.Network("sync.http.new_request", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.client.Do(httpReq)
	if err != nil {
		metrics.HTTPSyncRequestsTotal.WithLabelValues("network_error").Inc()
		return nil, errs.Network("sync.http.do", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		metrics.HTTPSyncRequestsTotal.WithLabelValues("auth_error").Inc()
		return nil, errs.Auth("sync.http.sync_crdt", fmt.Errorf("status %d", resp.StatusCode))
	}
	if resp.StatusCode != http.StatusOK {
		metrics.HTTPSyncRequestsTotal.WithLabelValues("network_error").Inc()
		return nil, errs.Network("sync.http.sync_crdt", fmt.Errorf("unexpected status %d", resp.StatusCode))
	}

	var wire syncResponse
	if err := json.NewDecoder(resp.Body).Decode(&wire); err != nil {
		metrics.HTTPSyncRequestsTotal.WithLabelValues("decode_error").Inc()
		return nil, errs.Decode("sync.http.decode_response", err)
	}
	metrics.HTTPSyncRequestsTotal.WithLabelValues("ok").Inc()
	return decodeSyncResponse(wire)
}

func encodeSyncRequest(req CrdtSyncRequest) ([]byte, error) {
	wire := syncRequest{}
	if len(req.StateVectors) > 0 {
		wire.StateVectors = make(map[string]string, len(req.StateVectors))
		for noteID, v := range req.StateVectors {
			wire.StateVectors[noteID] = codec.ToBase64(v)
		}
	}
	if len(req.Updates) > 0 {
		wire.Updates = make(map[string]string, len(req.Updates))
		for noteID, u := range req.Updates {
			wire.Updates[noteID] = codec.ToBase64(u)
		}
	}
	for _, m := range req.Metadata {
		wire.Metadata = append(wire.Metadata, toWireMetadata(m))
	}
	return json.Marshal(wire)
}

func decodeSyncResponse(wire syncResponse) (*CrdtSyncResponse, error) {
	resp := &CrdtSyncResponse{Updates: make(map[string][]byte, len(wire.Updates))}
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
