// Package cipher implements the Enard stream-cipher capability abstraction:
// a small interface describing how a named stream cipher is constructed
// from a key and IV and positioned at an arbitrary byte offset, plus a
// name-keyed registry dispatching to concrete implementations.
//
// The shape follows gitlab.com/yawning/hs1siv's chacha20.go, which wraps
// golang.org/x/crypto/chacha20 behind a narrow, package-local helper rather
// than exposing the upstream cipher.Stream type directly.
package cipher

import (
	"errors"
	"fmt"

	"github.com/bindernews/enard/internal/zeroize"
)

var (
	// ErrUnknownCipher is returned by the registry when no Capability is
	// registered under the requested name.
	ErrUnknownCipher = errors.New("enard/cipher: unknown cipher")

	// ErrInvalidKeyLength is returned when a key does not match a
	// cipher's required KeySize.
	ErrInvalidKeyLength = errors.New("enard/cipher: invalid key length")

	// ErrInvalidIVLength is returned when an IV does not match a
	// cipher's required IVSize.
	ErrInvalidIVLength = errors.New("enard/cipher: invalid iv length")
)

// Stream is a keystream positioned at some byte offset into a logical
// ciphertext region. XORKeyStream advances the position by len(data);
// SeekTo repositions it directly. The keystream produced after SeekTo(n)
// must be indistinguishable from one produced by generating sequentially
// from byte 0 up to n and discarding the prefix.
type Stream interface {
	// SeekTo repositions the keystream so the next byte it produces is
	// the keystream byte at absolute index offset.
	SeekTo(offset uint64) error

	// XORKeyStream XORs the keystream into data in place, advancing the
	// position by len(data).
	XORKeyStream(data []byte)

	// Close zeroises any retained key material.
	Close() error
}

// Capability describes a stream cipher that can be instantiated from a key
// and IV of fixed, cipher-specific lengths.
type Capability interface {
	// Name is the ASCII identifier stored in the header's cipher-name
	// field and used to look the Capability up in a Registry.
	Name() string

	// KeySize is the number of key bytes New requires.
	KeySize() int

	// IVSize is the number of IV bytes New requires.
	IVSize() int

	// New constructs a Stream positioned at offset 0.
	New(key, iv []byte) (Stream, error)
}

// Registry dispatches a cipher name to a Capability. The zero value is not
// usable; use NewRegistry or DefaultRegistry.
type Registry struct {
	caps map[string]Capability
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{caps: make(map[string]Capability)}
}

// DefaultRegistry returns a Registry pre-populated with the ciphers this
// package ships: "chacha12" and "chacha20".
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(NewChaCha12())
	r.Register(NewChaCha20())
	return r
}

// Register adds or replaces a Capability under its own Name().
func (r *Registry) Register(c Capability) {
	r.caps[c.Name()] = c
}

// New looks up name and constructs a Stream from key and iv, validating
// their lengths against the Capability's requirements.
func (r *Registry) New(name string, key, iv []byte) (Stream, error) {
	c, ok := r.caps[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownCipher, name)
	}
	if len(key) != c.KeySize() {
		return nil, fmt.Errorf("%w: %s requires %d bytes, got %d", ErrInvalidKeyLength, name, c.KeySize(), len(key))
	}
	if len(iv) != c.IVSize() {
		return nil, fmt.Errorf("%w: %s requires %d bytes, got %d", ErrInvalidIVLength, name, c.IVSize(), len(iv))
	}
	return c.New(key, iv)
}

// Get returns the Capability registered under name, if any.
func (r *Registry) Get(name string) (Capability, bool) {
	c, ok := r.caps[name]
	return c, ok
}

// discard advances s past n keystream bytes without returning them, used
// by SeekTo implementations to reach a byte offset that isn't a multiple
// of the underlying block size.
func discard(s Stream, n int) {
	if n <= 0 {
		return
	}
	buf := make([]byte, n)
	s.XORKeyStream(buf)
	zeroize.Bytes(buf)
}
