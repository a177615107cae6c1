// Package codec implements the binary codec component: base64 transcoding
// for CRDT update bytes on the wire, and HTML-to-CRDT-seed parsing for
// notes imported as rendered HTML.
package codec

import (
	"encoding/base64"

	"github.com/inkwell-labs/notesync/pkg/errs"
)

// ToBase64 encodes raw CRDT update/state bytes using standard RFC4648
// base64 with padding, matching the wire format in the sync protocol.
func ToBase64(data []byte) string {
	return base64.StdEncoding.EncodeToString(data)
}

// FromBase64 decodes a base64 string back to raw bytes. Malformed input
// (bad padding, invalid characters) is reported as a DecodeError.
func FromBase64(s string) ([]byte, error) {
	b, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, errs.Decode("codec.from_base64", err)
	}
	return b, nil
}
