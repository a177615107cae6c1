package errs

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorUnwrap(t *testing.T) {
	cause := errors.New("boom")
	err := Storage("storage.save_note", cause)

	assert.True(t, errors.Is(err, cause))
	assert.Equal(t, cause, err.Unwrap())
}

func TestIsMatchesKindThroughWrapping(t *testing.T) {
	cause := Network("transport.send", errors.New("connection refused"))
	wrapped := fmt.Errorf("sync: push failed: %w", cause)

	assert.True(t, Is(wrapped, KindNetwork))
	assert.False(t, Is(wrapped, KindStorage))
}

func TestIsReturnsFalseForPlainError(t *testing.T) {
	assert.False(t, Is(errors.New("plain"), KindStorage))
}

func TestErrorMessageIncludesOpAndKind(t *testing.T) {
	err := Auth("sync.http.sync_crdt", errors.New("status 401"))
	assert.Contains(t, err.Error(), "sync.http.sync_crdt")
	assert.Contains(t, err.Error(), "auth")
}
