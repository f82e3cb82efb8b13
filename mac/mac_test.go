package mac

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDeriveKeyDeterministic(t *testing.T) {
	require := require.New(t)

	master := bytes.Repeat([]byte{0x42}, 32)
	require.Equal(DeriveKey(master), DeriveKey(master))
	require.Len(DeriveKey(master), TagSize)
}

func TestDomainSeparatorExactValue(t *testing.T) {
	// Regression guard: DomainSeparator's exact bytes must not change,
	// since interop depends on them matching other implementations.
	require.Equal(t, "enard-mac-v01", DomainSeparator)
}

func TestBinderRoundTrip(t *testing.T) {
	require := require.New(t)

	key := DeriveKey(bytes.Repeat([]byte{1}, 32))
	header := []byte("fake-header-bytes")
	ciphertext := []byte("fake-ciphertext-bytes")

	b1 := NewBinder(key)
	b1.Write(header)
	b1.Write(ciphertext)
	tag := b1.Sum()
	require.Len(tag, TagSize)

	b2 := NewBinder(key)
	b2.Write(header)
	b2.Write(ciphertext)
	require.NoError(b2.Verify(tag))
}

func TestBinderVerifyRejectsMismatch(t *testing.T) {
	require := require.New(t)

	key := DeriveKey(bytes.Repeat([]byte{1}, 32))
	b1 := NewBinder(key)
	b1.Write([]byte("header"))
	b1.Write([]byte("ciphertext"))
	tag := b1.Sum()
	tag[0] ^= 0xFF

	b2 := NewBinder(key)
	b2.Write([]byte("header"))
	b2.Write([]byte("ciphertext"))
	require.ErrorIs(b2.Verify(tag), ErrMismatch)
}

func TestBinderVerifyRejectsWrongLength(t *testing.T) {
	key := DeriveKey(bytes.Repeat([]byte{1}, 32))
	b := NewBinder(key)
	b.Write([]byte("x"))
	require.ErrorIs(t, b.Verify([]byte{1, 2, 3}), ErrMismatch)
}
