// Package enard implements the Enard container codec: the writer/reader
// pair that produces and consumes the on-disk layout built from
// github.com/bindernews/enard/header, github.com/bindernews/enard/cipher,
// and github.com/bindernews/enard/mac.
//
// An Enard file is magic(6) | version(2) | H(4) | D(8) | header(H) |
// ciphertext(D) | tag(32), all little-endian, with the ciphertext region
// beginning at a file offset that is a multiple of 8.
package enard

import (
	"encoding/binary"

	"github.com/bindernews/enard/mac"
)

// Magic is the fixed 6-byte sequence every Enard container begins with.
var Magic = [6]byte{0x03, 'E', 'N', 'A', 'R', 'D'}

// Version is the only format version this package understands.
const Version uint16 = 1

// prefixSize is the size in bytes of magic+version+H+D.
const prefixSize = 6 + 2 + 4 + 8

// TagSize is the size in bytes of the trailing MAC tag.
const TagSize = mac.TagSize

// VerifyMode selects when Reader authenticates the container.
type VerifyMode int

const (
	// VerifyEager streams and authenticates the entire ciphertext region
	// before the Reader is usable; this is the default. No plaintext is
	// surfaced if authentication fails.
	VerifyEager VerifyMode = iota

	// VerifyLazy allows random-access reads immediately; the caller must
	// call Reader.Verify explicitly (or Reader.ReadAll, which verifies as
	// a side effect) before trusting any plaintext returned so far.
	VerifyLazy
)

type prefix struct {
	version uint16
	h       uint32
	d       uint64
}

func encodePrefix(p prefix) []byte {
	buf := make([]byte, prefixSize)
	copy(buf[0:6], Magic[:])
	binary.LittleEndian.PutUint16(buf[6:8], p.version)
	binary.LittleEndian.PutUint32(buf[8:12], p.h)
	binary.LittleEndian.PutUint64(buf[12:20], p.d)
	return buf
}

func decodePrefix(buf []byte) (prefix, bool) {
	var p prefix
	if len(buf) != prefixSize {
		return p, false
	}
	if [6]byte(buf[0:6]) != Magic {
		return p, false
	}
	p.version = binary.LittleEndian.Uint16(buf[6:8])
	p.h = binary.LittleEndian.Uint32(buf[8:12])
	p.d = binary.LittleEndian.Uint64(buf[12:20])
	return p, true
}

// dataSizeOffset is the absolute file offset of the D field, used by the
// writer to backpatch the real payload size once streaming completes.
const dataSizeOffset = 12
