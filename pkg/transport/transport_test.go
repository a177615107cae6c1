package transport

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBackoffDelayGrowsExponentially(t *testing.T) {
	cfg := BackoffConfig{BaseDelay: time.Second, MaxAttempts: 5}

	delays := make([]time.Duration, 0, 4)
	for attempt := 1; attempt <= 4; attempt++ {
		delays = append(delays, cfg.BaseDelay*time.Duration(1<<uint(attempt-1)))
	}

	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second, 4 * time.Second, 8 * time.Second}, delays)
}

func TestNewTransportStartsDisconnected(t *testing.T) {
	tr := New("ws://example.invalid/api/ws", "token", DefaultBackoff)
	assert.Equal(t, StateDisconnected, tr.State())
}

func TestSubscribeTracksNoteWithoutConnection(t *testing.T) {
	tr := New("ws://example.invalid/api/ws", "token", DefaultBackoff)
	err := tr.Subscribe("note-1")
	assert.Error(t, err, "sending on a transport with no live connection must fail, not panic")
	assert.True(t, tr.subscribed["note-1"], "the note is remembered for replay on reconnect")
}

func TestBeginEndSyncRequiresConnectedState(t *testing.T) {
	tr := New("ws://example.invalid/api/ws", "token", DefaultBackoff)
	// Not connected: BeginSync must not transition state.
	tr.BeginSync()
	assert.Equal(t, StateDisconnected, tr.State())
	// Not syncing: EndSync must not transition state either.
	tr.EndSync()
	assert.Equal(t, StateDisconnected, tr.State())
}
