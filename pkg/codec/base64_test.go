package codec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inkwell-labs/notesync/pkg/errs"
)

func TestBase64RoundTrip(t *testing.T) {
	original := []byte{0x00, 0x01, 0xff, 'h', 'i'}
	encoded := ToBase64(original)
	decoded, err := FromBase64(encoded)
	require.NoError(t, err)
	assert.Equal(t, original, decoded)
}

func TestFromBase64RejectsMalformedInput(t *testing.T) {
	_, err := FromBase64("not-valid-base64!!")
	assert.Error(t, err)
	assert.True(t, errs.Is(err, errs.KindDecode))
}
