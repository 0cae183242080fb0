// Package payload serializes a memory's note, timestamp and photo into the
// plaintext that gets sealed, and back.
package payload

import (
	"errors"
	"fmt"
	"time"
)

// ErrDecode indicates a structurally malformed payload. It is only ever
// produced after the ciphertext authenticated, so it points at a schema
// mismatch rather than at the wrong tokens.
var ErrDecode = errors.New("payload: malformed")

// ErrInvalidContents indicates Contents that cannot be encoded.
var ErrInvalidContents = errors.New("payload: invalid contents")

// Contents is the logical memory record.
type Contents struct {
	Note      string
	Timestamp time.Time
	Image     []byte
	ImageMIME string
}

// Codec converts Contents to and from bytes for one schema version.
type Codec interface {
	Encode(c Contents) ([]byte, error)
	Decode(b []byte) (Contents, error)
}

var codecs = map[int]Codec{
	1: legacyJSON{},
	2: tagged{},
	3: tagged{},
}

// ForSchema selects the codec recorded by a memory's schema version.
func ForSchema(version int) (Codec, error) {
	c, ok := codecs[version]
	if !ok {
		return nil, fmt.Errorf("%w: no codec for schema %d", ErrDecode, version)
	}
	return c, nil
}

// Encode serializes with the tagged binary format.
func Encode(c Contents) ([]byte, error) {
	return tagged{}.Encode(c)
}

// Decode parses the tagged binary format.
func Decode(b []byte) (Contents, error) {
	return tagged{}.Decode(b)
}

func decodeErr(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrDecode, fmt.Sprintf(format, args...))
}
