// Package mac implements the Enard MAC binder: HMAC-SHA-256 over a key
// derived from the caller's master key, fed the serialised header followed
// by the ciphertext, with constant-time tag comparison.
//
// The derivation pattern (HMAC the master key over a fixed domain string
// to get a purpose-specific key, then HMAC again over the payload) follows
// the conventional HKDF-style use of HMAC, reduced to a single derivation
// step with one fixed domain string, and produces a single
// whole-container tag.
package mac

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"errors"
	"hash"
)

// DomainSeparator is the ASCII string HMAC-SHA-256 is keyed over (with the
// master key) to derive the MAC key. Implementations MUST use this exact
// string to interoperate.
const DomainSeparator = "enard-mac-v01"

// TagSize is the fixed length in bytes of an Enard MAC tag.
const TagSize = sha256.Size

// ErrMismatch is returned by Verify when the computed tag does not match
// the supplied tag.
var ErrMismatch = errors.New("enard/mac: authentication failed")

// DeriveKey derives the MAC key from a user-supplied master key via
// HMAC-SHA-256 keyed by the master key over DomainSeparator. The master
// key itself is not retained by anything downstream of this call.
func DeriveKey(masterKey []byte) []byte {
	h := hmac.New(sha256.New, masterKey)
	h.Write([]byte(DomainSeparator))
	return h.Sum(nil)
}

// Binder accumulates the bytes covered by the container MAC (the
// serialised header, then the ciphertext region) and produces or verifies
// the final 32-byte tag.
type Binder struct {
	h hash.Hash
}

// NewBinder returns a Binder keyed with macKey (as produced by DeriveKey).
func NewBinder(macKey []byte) *Binder {
	return &Binder{h: hmac.New(sha256.New, macKey)}
}

// Write feeds more covered bytes into the binder. Errors are never
// returned by the underlying HMAC implementation; the return values exist
// to satisfy io.Writer so a Binder can be used as a TeeReader/MultiWriter
// target while streaming ciphertext.
func (b *Binder) Write(p []byte) (int, error) {
	return b.h.Write(p)
}

// Sum returns the final 32-byte tag over everything written so far. It
// does not reset the binder; callers finalise once.
func (b *Binder) Sum() []byte {
	return b.h.Sum(nil)
}

// Verify computes the final tag and compares it against want in constant
// time, returning ErrMismatch on any difference (including a length
// mismatch).
func (b *Binder) Verify(want []byte) error {
	got := b.Sum()
	if len(got) != len(want) || subtle.ConstantTimeCompare(got, want) != 1 {
		return ErrMismatch
	}
	return nil
}
