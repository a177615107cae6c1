package crdt

import "sync"

// UpdateEvent carries a local change to a replica as an encoded CRDT update,
// ready to be pushed over the transport. NoteID ties the event back to the
// note the replica belongs to.
type UpdateEvent struct {
	NoteID string
	Update []byte
}

// ContentEvent carries a post-apply plain-text snapshot of a replica,
// published after both local edits and remote applies so any listener
// (e.g. the editor binding, out of scope here) can refresh its view.
type ContentEvent struct {
	NoteID string
	Text   string
}

// updateSub and contentSub are the subscriber channel types for the two
// observer kinds the Document Manager exposes.
type updateSub chan *UpdateEvent
type contentSub chan *ContentEvent

// observerHub fans out update/content events to subscribers, following the
// same buffered-channel, non-blocking-broadcast shape as the cluster event
// broker: a slow subscriber drops events rather than stalling the manager.
type observerHub struct {
	mu       sync.RWMutex
	updates  map[updateSub]bool
	contents map[contentSub]bool
}

func newObserverHub() *observerHub {
	return &observerHub{
		updates:  make(map[updateSub]bool),
		contents: make(map[contentSub]bool),
	}
}

func (h *observerHub) subscribeUpdates() updateSub {
	h.mu.Lock()
	defer h.mu.Unlock()
	sub := make(updateSub, 32)
	h.updates[sub] = true
	return sub
}

func (h *observerHub) unsubscribeUpdates(sub updateSub) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.updates[sub]; ok {
		delete(h.updates, sub)
		close(sub)
	}
}

func (h *observerHub) subscribeContent() contentSub {
	h.mu.Lock()
	defer h.mu.Unlock()
	sub := make(contentSub, 32)
	h.contents[sub] = true
	return sub
}

func (h *observerHub) unsubscribeContent(sub contentSub) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.contents[sub]; ok {
		delete(h.contents, sub)
		close(sub)
	}
}

func (h *observerHub) publishUpdate(ev *UpdateEvent) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for sub := range h.updates {
		select {
		case sub <- ev:
		default:
		}
	}
}

func (h *observerHub) publishContent(ev *ContentEvent) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for sub := range h.contents {
		select {
		case sub <- ev:
		default:
		}
	}
}

func (h *observerHub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for sub := range h.updates {
		delete(h.updates, sub)
		close(sub)
	}
	for sub := range h.contents {
		delete(h.contents, sub)
		close(sub)
	}
}
