// Package header implements the Enard container's unencrypted header: a
// typed in-memory representation plus a deterministic byte-exact
// serialiser/parser pair.
//
// Serialise is required to be byte-identical for a byte-identical header,
// since the MAC binder feeds these bytes directly into HMAC-SHA-256 and any
// nondeterminism there would make round-trip verification fail.
package header

import (
	"encoding/binary"
	"errors"
	"fmt"
)

const (
	// MaxNameLen is the largest cipher name, IV, or metadata name length
	// the single-byte length prefixes can express.
	MaxNameLen = 255

	// MaxMetadataEntries is the largest metadata count the single-byte
	// count field can express.
	MaxMetadataEntries = 255

	// MaxValueLen is the largest metadata value length the two-byte
	// length prefix can express.
	MaxValueLen = 65535

	// prefixSize is the size in bytes of the fixed prefix (magic, version,
	// H, D) that precedes the header on disk; the header itself must be
	// padded so that prefixSize+len(header) is a multiple of alignment.
	prefixSize = 20
	alignment  = 8
)

var (
	// ErrTruncatedHeader is returned when a length prefix would read past
	// the declared header size H.
	ErrTruncatedHeader = errors.New("enard/header: truncated header")

	// ErrMetadataOverflow is returned when a metadata entry's declared
	// length would read past the declared header size H, or the parsed
	// metadata count is inconsistent with the remaining bytes.
	ErrMetadataOverflow = errors.New("enard/header: metadata overflow")

	// ErrNonZeroPadding is returned when the trailing padding region
	// contains non-zero bytes. The padding is MAC-covered, so tampered
	// padding is already caught by authentication; this check rejects it
	// defensively before that point, per spec's recommendation.
	ErrNonZeroPadding = errors.New("enard/header: non-zero padding")

	// ErrNameTooLong is returned by the builder when a cipher name, IV,
	// or metadata name exceeds MaxNameLen bytes.
	ErrNameTooLong = errors.New("enard/header: name exceeds 255 bytes")

	// ErrValueTooLong is returned by the builder when a metadata value
	// exceeds MaxValueLen bytes.
	ErrValueTooLong = errors.New("enard/header: value exceeds 65535 bytes")

	// ErrTooManyEntries is returned by the builder when more than
	// MaxMetadataEntries metadata entries are supplied.
	ErrTooManyEntries = errors.New("enard/header: more than 255 metadata entries")
)

// MetadataEntry is an opaque (name, value) pair attached to a container.
// Names are not required to be unique; order is preserved on round-trip.
type MetadataEntry struct {
	Name  []byte
	Value []byte
}

// Header is the typed, in-memory representation of an Enard container's
// unencrypted header.
type Header struct {
	CipherName []byte
	IV         []byte
	Metadata   []MetadataEntry
}

// Validate checks the field-length invariants without serialising. It is
// called automatically by Serialize, but callers building a Header by hand
// can call it early to fail fast.
func (h *Header) Validate() error {
	if len(h.CipherName) > MaxNameLen {
		return fmt.Errorf("%w: cipher name", ErrNameTooLong)
	}
	if len(h.IV) > MaxNameLen {
		return fmt.Errorf("%w: iv", ErrNameTooLong)
	}
	if len(h.Metadata) > MaxMetadataEntries {
		return ErrTooManyEntries
	}
	for _, e := range h.Metadata {
		if len(e.Name) > MaxNameLen {
			return fmt.Errorf("%w: metadata name %q", ErrNameTooLong, e.Name)
		}
		if len(e.Value) > MaxValueLen {
			return fmt.Errorf("%w: metadata value for %q", ErrValueTooLong, e.Name)
		}
	}
	return nil
}

// unpaddedLen returns the serialised length before any trailing padding is
// appended.
func (h *Header) unpaddedLen() int {
	n := 1 + len(h.CipherName)
	n += 1 + len(h.IV)
	n++ // metadata count
	for _, e := range h.Metadata {
		n += 1 + len(e.Name)
		n += 2 + len(e.Value)
	}
	return n
}

// PaddedLen returns H, the total serialised header length including
// trailing zero padding, such that prefixSize+H is a multiple of the
// on-disk alignment.
func (h *Header) PaddedLen() uint32 {
	n := h.unpaddedLen()
	return uint32(n + padLen(n))
}

// padLen returns the number of zero padding bytes needed so that
// prefixSize+unpadded is a multiple of alignment.
func padLen(unpadded int) int {
	total := prefixSize + unpadded
	rem := total % alignment
	if rem == 0 {
		return 0
	}
	return alignment - rem
}

// Serialize deterministically encodes h into its on-disk byte layout,
// including trailing zero padding. The same in-memory Header always
// produces byte-identical output.
func (h *Header) Serialize() ([]byte, error) {
	if err := h.Validate(); err != nil {
		return nil, err
	}

	unpadded := h.unpaddedLen()
	pad := padLen(unpadded)
	buf := make([]byte, unpadded+pad)

	off := 0
	off = putBlock8(buf, off, h.CipherName)
	off = putBlock8(buf, off, h.IV)

	buf[off] = byte(len(h.Metadata))
	off++

	for _, e := range h.Metadata {
		off = putBlock8(buf, off, e.Name)
		off = putBlock16(buf, off, e.Value)
	}

	// Remaining bytes are already zero from make(); nothing further to write.
	return buf, nil
}

func putBlock8(buf []byte, off int, b []byte) int {
	buf[off] = byte(len(b))
	off++
	copy(buf[off:], b)
	return off + len(b)
}

func putBlock16(buf []byte, off int, b []byte) int {
	binary.LittleEndian.PutUint16(buf[off:], uint16(len(b)))
	off += 2
	copy(buf[off:], b)
	return off + len(b)
}

// Parse consumes exactly len(data) bytes (which callers must have already
// truncated to H, the on-disk header length) and returns the decoded
// Header. It fails if any length prefix would read past the end of data,
// if the metadata count is inconsistent with the remaining bytes, or if
// the trailing padding region contains a non-zero byte.
func Parse(data []byte) (*Header, error) {
	h := &Header{}
	off := 0

	name, next, err := readBlock8(data, off)
	if err != nil {
		return nil, err
	}
	h.CipherName = name
	off = next

	iv, next, err := readBlock8(data, off)
	if err != nil {
		return nil, err
	}
	h.IV = iv
	off = next

	if off >= len(data) {
		return nil, fmt.Errorf("%w: missing metadata count", ErrTruncatedHeader)
	}
	count := int(data[off])
	off++

	h.Metadata = make([]MetadataEntry, 0, count)
	for i := 0; i < count; i++ {
		name, next, err := readBlock8(data, off)
		if err != nil {
			return nil, fmt.Errorf("%w: metadata entry %d name", ErrMetadataOverflow, i)
		}
		off = next

		value, next, err := readBlock16(data, off)
		if err != nil {
			return nil, fmt.Errorf("%w: metadata entry %d value", ErrMetadataOverflow, i)
		}
		off = next

		h.Metadata = append(h.Metadata, MetadataEntry{Name: name, Value: value})
	}

	for _, b := range data[off:] {
		if b != 0 {
			return nil, ErrNonZeroPadding
		}
	}

	return h, nil
}

func readBlock8(data []byte, off int) ([]byte, int, error) {
	if off >= len(data) {
		return nil, 0, ErrTruncatedHeader
	}
	n := int(data[off])
	off++
	if off+n > len(data) {
		return nil, 0, ErrTruncatedHeader
	}
	out := make([]byte, n)
	copy(out, data[off:off+n])
	return out, off + n, nil
}

func readBlock16(data []byte, off int) ([]byte, int, error) {
	if off+2 > len(data) {
		return nil, 0, ErrTruncatedHeader
	}
	n := int(binary.LittleEndian.Uint16(data[off:]))
	off += 2
	if off+n > len(data) {
		return nil, 0, ErrTruncatedHeader
	}
	out := make([]byte, n)
	copy(out, data[off:off+n])
	return out, off + n, nil
}
