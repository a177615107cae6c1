// Package transport implements the Streaming Sync Transport: a reconnecting
// websocket channel carrying the JSON frame envelope defined in frame.go,
// with exponential-backoff reconnection grounded on the same
// ticker/select/stopCh monitor-loop shape used elsewhere in this codebase
// for long-running background loops.
package transport

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/inkwell-labs/notesync/pkg/codec"
	"github.com/inkwell-labs/notesync/pkg/errs"
	"github.com/inkwell-labs/notesync/pkg/events"
	"github.com/inkwell-labs/notesync/pkg/log"
	"github.com/inkwell-labs/notesync/pkg/metrics"
	"github.com/inkwell-labs/notesync/pkg/types"
)

// State is the transport's connection state machine:
// disconnected -> connecting -> connected -> (syncing <-> connected) -> disconnected.
type State string

const (
	StateDisconnected State = "disconnected"
	StateConnecting   State = "connecting"
	StateConnected    State = "connected"
	StateSyncing      State = "syncing"
)

// BackoffConfig controls reconnect pacing: delay = BaseDelay * 2^attempt,
// giving up after MaxAttempts consecutive dial failures.
type BackoffConfig struct {
	BaseDelay   time.Duration
	MaxAttempts int
}

// DefaultBackoff matches the documented defaults: 1s base delay, 10 max
// attempts before the transport settles into disconnected.
var DefaultBackoff = BackoffConfig{BaseDelay: time.Second, MaxAttempts: 10}

// IncomingUpdate is a remote CRDT update received over the transport,
// already base64-decoded.
type IncomingUpdate struct {
	NoteID string
	Update []byte
}

// Transport is a single reconnecting websocket client. One Transport
// instance serves the whole session; per-note traffic is multiplexed over
// it via subscribe/unsubscribe frames.
type Transport struct {
	url     string
	token   string
	backoff BackoffConfig
	dialer  *websocket.Dialer
	broker  *events.Broker

	mu          sync.Mutex
	conn        *websocket.Conn
	state       State
	subscribed  map[string]bool
	stopCh      chan struct{}
	stopped     bool
	writeMu     sync.Mutex

	incomingUpdates   chan IncomingUpdate
	incomingMeta      chan *types.NoteMetadataUpdate
	incomingSyncResps chan *SyncFrameResponse
}

// New creates a Transport targeting a ws(s)://host/api/ws endpoint. token
// is appended as the `token` query parameter, per the external interface.
func New(wsURL, token string, backoff BackoffConfig) *Transport {
	broker := events.NewBroker()
	broker.Start()
	return &Transport{
		url:             wsURL,
		token:           token,
		backoff:         backoff,
		dialer:          websocket.DefaultDialer,
		broker:          broker,
		state:             StateDisconnected,
		subscribed:        make(map[string]bool),
		incomingUpdates:   make(chan IncomingUpdate, 256),
		incomingMeta:      make(chan *types.NoteMetadataUpdate, 64),
		incomingSyncResps: make(chan *SyncFrameResponse, 8),
	}
}

// State returns the transport's current connection state.
func (t *Transport) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Events returns a subscription to connection-state change events.
func (t *Transport) Events() events.Subscriber {
	return t.broker.Subscribe()
}

// IncomingUpdates returns the channel of remote CRDT updates arriving over
// the transport, for the sync coordinator to drain and apply.
func (t *Transport) IncomingUpdates() <-chan IncomingUpdate {
	return t.incomingUpdates
}

// IncomingMetadata returns the channel of remote note metadata changes.
func (t *Transport) IncomingMetadata() <-chan *types.NoteMetadataUpdate {
	return t.incomingMeta
}

// IncomingSyncResponses returns the channel of sync_response frames received
// in answer to RequestSync, for the sync coordinator to apply.
func (t *Transport) IncomingSyncResponses() <-chan *SyncFrameResponse {
	return t.incomingSyncResps
}

// Connect starts the reconnect loop in the background and returns
// immediately; connection progress is observable via State() and Events().
func (t *Transport) Connect(ctx context.Context) {
	t.mu.Lock()
	t.stopCh = make(chan struct{})
	t.stopped = false
	t.mu.Unlock()

	go t.run(ctx)
}

// Disconnect closes the current connection (if any) with the intentional
// close code 1000 and stops the reconnect loop.
func (t *Transport) Disconnect() {
	t.mu.Lock()
	if t.stopped || t.stopCh == nil {
		t.mu.Unlock()
		return
	}
	t.stopped = true
	close(t.stopCh)
	conn := t.conn
	t.conn = nil
	t.mu.Unlock()

	if conn != nil {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		_ = conn.Close()
	}
	t.setState(StateDisconnected)
}

// Subscribe sends a subscribe frame for noteID and remembers it so it is
// re-sent automatically after a reconnect.
func (t *Transport) Subscribe(noteID string) error {
	t.mu.Lock()
	t.subscribed[noteID] = true
	t.mu.Unlock()
	return t.send(Frame{Type: FrameSubscribe, NoteID: noteID})
}

// Unsubscribe sends an unsubscribe frame for noteID and forgets it.
func (t *Transport) Unsubscribe(noteID string) error {
	t.mu.Lock()
	delete(t.subscribed, noteID)
	t.mu.Unlock()
	return t.send(Frame{Type: FrameUnsubscribe, NoteID: noteID})
}

// PushUpdate sends a local CRDT update for noteID.
func (t *Transport) PushUpdate(noteID string, update []byte) error {
	frame, err := encodeUpdateFrame(noteID, codec.ToBase64(update))
	if err != nil {
		return errs.Protocol("transport.push_update", err)
	}
	return t.send(frame)
}

// PushMetadata sends a note metadata change.
func (t *Transport) PushMetadata(meta *types.NoteMetadataUpdate) (err error) {
	payload, err := marshalMetadata(meta)
	if err != nil {
		return errs.Protocol("transport.push_metadata", err)
	}
	return t.send(Frame{Type: FrameNoteMetadata, NoteID: meta.NoteID, Payload: payload})
}

// RequestSync sends one sync_request frame carrying the state vectors,
// pending updates, and metadata the coordinator has already assembled. It
// fails if a sync is already in flight on this transport.
func (t *Transport) RequestSync(p SyncFramePayload) error {
	t.mu.Lock()
	if t.state == StateSyncing {
		t.mu.Unlock()
		return errs.Invariant("transport.request_sync", fmt.Errorf("sync already in flight"))
	}
	t.mu.Unlock()

	payload, err := marshalSyncRequest(p)
	if err != nil {
		return errs.Protocol("transport.request_sync", err)
	}
	t.BeginSync()
	if err := t.send(Frame{Type: FrameSyncRequest, Payload: payload}); err != nil {
		t.EndSync()
		return err
	}
	return nil
}

// BeginSync transitions connected -> syncing, purely informational for
// observers; it does not affect reconnect behavior.
func (t *Transport) BeginSync() {
	t.mu.Lock()
	if t.state == StateConnected {
		t.state = StateSyncing
		metrics.TransportState.Set(3)
	}
	t.mu.Unlock()
}

// EndSync transitions syncing -> connected.
func (t *Transport) EndSync() {
	t.mu.Lock()
	if t.state == StateSyncing {
		t.state = StateConnected
		metrics.TransportState.Set(2)
	}
	t.mu.Unlock()
}

func (t *Transport) send(frame Frame) error {
	t.mu.Lock()
	conn := t.conn
	t.mu.Unlock()
	if conn == nil {
		return errs.Network("transport.send", fmt.Errorf("not connected"))
	}
	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	if err := conn.WriteJSON(frame); err != nil {
		return errs.Network("transport.send", err)
	}
	return nil
}

func (t *Transport) run(ctx context.Context) {
	attempt := 0
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.stopCh:
			return
		default:
		}

		t.setState(StateConnecting)
		conn, err := t.dial(ctx)
		if err != nil {
			attempt++
			metrics.TransportReconnectsTotal.Inc()
			if attempt > t.backoff.MaxAttempts {
				log.Error("transport: exceeded max reconnect attempts, giving up")
				t.setState(StateDisconnected)
				return
			}
			delay := t.backoff.BaseDelay * time.Duration(1<<uint(attempt-1))
			t.broker.Publish(&events.Event{Type: events.EventTransportReconnecting, Message: fmt.Sprintf("attempt %d in %s", attempt, delay)})
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return
			case <-t.stopCh:
				return
			}
			continue
		}

		attempt = 0
		t.mu.Lock()
		t.conn = conn
		t.mu.Unlock()
		t.setState(StateConnected)
		t.resubscribeAll()

		t.readLoop(conn)

		t.mu.Lock()
		if t.conn == conn {
			t.conn = nil
		}
		stopped := t.stopped
		t.mu.Unlock()
		if stopped {
			return
		}
		t.setState(StateDisconnected)
	}
}

func (t *Transport) dial(ctx context.Context) (*websocket.Conn, error) {
	u, err := url.Parse(t.url)
	if err != nil {
		return nil, err
	}
	q := u.Query()
	q.Set("token", t.token)
	u.RawQuery = q.Encode()

	conn, _, err := t.dialer.DialContext(ctx, u.String(), http.Header{})
	if err != nil {
		return nil, err
	}
	return conn, nil
}

func (t *Transport) resubscribeAll() {
	t.mu.Lock()
	notes := make([]string, 0, len(t.subscribed))
	for id := range t.subscribed {
		notes = append(notes, id)
	}
	t.mu.Unlock()

	for _, id := range notes {
		_ = t.send(Frame{Type: FrameSubscribe, NoteID: id})
	}
}

func (t *Transport) readLoop(conn *websocket.Conn) {
	for {
		var frame Frame
		if err := conn.ReadJSON(&frame); err != nil {
			_ = conn.Close()
			return
		}
		t.dispatch(frame)
	}
}

func (t *Transport) dispatch(frame Frame) {
	switch frame.Type {
	case FrameUpdate:
		b64, err := decodeUpdatePayload(frame)
		if err != nil {
			log.Errorf("transport: malformed update frame for "+frame.NoteID, err)
			metrics.TransportFramesDroppedTotal.WithLabelValues("malformed").Inc()
			return
		}
		update, err := codec.FromBase64(b64)
		if err != nil {
			log.Errorf("transport: malformed update payload for "+frame.NoteID, err)
			metrics.TransportFramesDroppedTotal.WithLabelValues("malformed").Inc()
			return
		}
		select {
		case t.incomingUpdates <- IncomingUpdate{NoteID: frame.NoteID, Update: update}:
		case <-t.stopCh:
		}

	case FrameNoteMetadata:
		meta, err := unmarshalMetadata(frame)
		if err != nil {
			log.Errorf("transport: malformed metadata frame for "+frame.NoteID, err)
			metrics.TransportFramesDroppedTotal.WithLabelValues("malformed").Inc()
			return
		}
		select {
		case t.incomingMeta <- meta:
		case <-t.stopCh:
		}

	case FrameSyncResponse:
		resp, err := unmarshalSyncResponse(frame)
		if err != nil {
			log.Errorf("transport: malformed sync_response frame", err)
			metrics.TransportFramesDroppedTotal.WithLabelValues("malformed").Inc()
			t.EndSync()
			return
		}
		t.EndSync()
		select {
		case t.incomingSyncResps <- resp:
		case <-t.stopCh:
		}

	case FrameAwareness, FrameSubscribe, FrameUnsubscribe, FrameSyncRequest:
		// Reserved/client-originated types the client never acts on when
		// received; accept and drop per the "unknown types are ignored"
		// contract.

	default:
		log.Errorf("transport: unrecognized frame type "+string(frame.Type), errUnrecognizedFrame)
		metrics.TransportFramesDroppedTotal.WithLabelValues("unrecognized").Inc()
	}
}

var errUnrecognizedFrame = fmt.Errorf("unrecognized frame type")

func (t *Transport) setState(s State) {
	t.mu.Lock()
	t.state = s
	t.mu.Unlock()

	switch s {
	case StateDisconnected:
		metrics.TransportState.Set(0)
		metrics.UpdateComponent("transport", false, "disconnected")
	case StateConnecting:
		metrics.TransportState.Set(1)
		metrics.UpdateComponent("transport", false, "connecting")
	case StateConnected:
		metrics.TransportState.Set(2)
		metrics.UpdateComponent("transport", true, "")
	case StateSyncing:
		metrics.TransportState.Set(3)
		metrics.UpdateComponent("transport", true, "")
	}

	var evType events.EventType
	switch s {
	case StateConnecting:
		evType = events.EventTransportConnecting
	case StateConnected:
		evType = events.EventTransportConnected
	case StateDisconnected:
		evType = events.EventTransportDisconnected
	default:
		return
	}
	t.broker.Publish(&events.Event{Type: evType})
}
