package payload

import (
	"encoding/binary"
	"fmt"
	"time"
	"unicode/utf8"
)

const taggedFormatVersion = 1

// Field tags. New tags may be appended; decoders skip tags they do not know.
// tagTimestamp holds unix nanoseconds and only covers the years 1678 to 2262;
// it is still read for memories sealed before tagInstant existed.
const (
	tagNote      byte = 1
	tagTimestamp byte = 2
	tagImage     byte = 3
	tagImageMIME byte = 4
	tagInstant   byte = 5
)

// MaxFieldLength bounds a single field so a corrupt length cannot force a
// huge allocation. Encode refuses anything Decode would refuse.
const MaxFieldLength = 64 << 20

// instantLength is int64 unix seconds followed by uint32 nanoseconds.
const instantLength = 12

// tagged is a versioned tag-length-value encoding:
//
//	version(1) { tag(1) length(uvarint) value(length) }*
//
// When both timestamp tags are present the instant wins.
type tagged struct{}

func (tagged) Encode(c Contents) ([]byte, error) {
	if !utf8.ValidString(c.Note) {
		return nil, fmt.Errorf("%w: note is not valid utf-8", ErrInvalidContents)
	}
	for name, n := range map[string]int{"note": len(c.Note), "image": len(c.Image), "image mime": len(c.ImageMIME)} {
		if n > MaxFieldLength {
			return nil, fmt.Errorf("%w: %s exceeds %d bytes", ErrInvalidContents, name, MaxFieldLength)
		}
	}

	out := make([]byte, 0, 1+len(c.Note)+len(c.Image)+len(c.ImageMIME)+32)
	out = append(out, taggedFormatVersion)
	out = appendField(out, tagNote, []byte(c.Note))

	var ts [instantLength]byte
	binary.BigEndian.PutUint64(ts[:8], uint64(c.Timestamp.Unix()))
	binary.BigEndian.PutUint32(ts[8:], uint32(c.Timestamp.Nanosecond()))
	out = appendField(out, tagInstant, ts[:])

	out = appendField(out, tagImage, c.Image)
	if c.ImageMIME != "" {
		out = appendField(out, tagImageMIME, []byte(c.ImageMIME))
	}
	return out, nil
}

func appendField(out []byte, tag byte, value []byte) []byte {
	out = append(out, tag)
	out = binary.AppendUvarint(out, uint64(len(value)))
	return append(out, value...)
}

func (tagged) Decode(b []byte) (Contents, error) {
	if len(b) == 0 {
		return Contents{}, decodeErr("empty payload")
	}
	if b[0] != taggedFormatVersion {
		return Contents{}, decodeErr("unknown format version %d", b[0])
	}

	var (
		c    Contents
		seen = make(map[byte]bool)
		rest = b[1:]
	)
	for len(rest) > 0 {
		tag := rest[0]
		n, size := binary.Uvarint(rest[1:])
		if size <= 0 {
			return Contents{}, decodeErr("bad length for tag %d", tag)
		}
		rest = rest[1+size:]
		if n > MaxFieldLength || n > uint64(len(rest)) {
			return Contents{}, decodeErr("field %d truncated", tag)
		}
		value := rest[:n]
		rest = rest[n:]

		if tag >= tagNote && tag <= tagInstant && seen[tag] {
			return Contents{}, decodeErr("duplicate field %d", tag)
		}
		seen[tag] = true

		switch tag {
		case tagNote:
			if !utf8.Valid(value) {
				return Contents{}, decodeErr("note is not valid utf-8")
			}
			c.Note = string(value)
		case tagTimestamp:
			if len(value) != 8 {
				return Contents{}, decodeErr("timestamp must be 8 bytes, got %d", len(value))
			}
			if !seen[tagInstant] {
				c.Timestamp = time.Unix(0, int64(binary.BigEndian.Uint64(value))).UTC()
			}
		case tagInstant:
			if len(value) != instantLength {
				return Contents{}, decodeErr("instant must be %d bytes, got %d", instantLength, len(value))
			}
			nanos := binary.BigEndian.Uint32(value[8:])
			if nanos >= uint32(time.Second) {
				return Contents{}, decodeErr("instant nanoseconds out of range")
			}
			c.Timestamp = time.Unix(int64(binary.BigEndian.Uint64(value[:8])), int64(nanos)).UTC()
		case tagImage:
			c.Image = append([]byte(nil), value...)
		case tagImageMIME:
			c.ImageMIME = string(value)
		}
	}

	for _, required := range []byte{tagNote, tagImage} {
		if !seen[required] {
			return Contents{}, decodeErr("missing field %d", required)
		}
	}
	if !seen[tagTimestamp] && !seen[tagInstant] {
		return Contents{}, decodeErr("missing timestamp")
	}
	return c, nil
}
