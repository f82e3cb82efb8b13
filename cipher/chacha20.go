package cipher

import (
	"errors"

	rtchacha20 "golang.org/x/crypto/chacha20"

	"github.com/bindernews/enard/internal/zeroize"
)

// blockSize is the keystream block size shared by ChaCha20/12: both
// generate 64 bytes of keystream per round of the block function,
// regardless of round count.
const blockSize = 64

// chacha20Capability is the full-round ChaCha20 stream cipher
// (RFC 8439 parameters), backed by golang.org/x/crypto/chacha20.
type chacha20Capability struct{}

// NewChaCha20 returns the Capability registered under the name "chacha20".
func NewChaCha20() Capability { return chacha20Capability{} }

func (chacha20Capability) Name() string { return "chacha20" }
func (chacha20Capability) KeySize() int { return rtchacha20.KeySize }
func (chacha20Capability) IVSize() int  { return rtchacha20.NonceSize }

func (chacha20Capability) New(key, iv []byte) (Stream, error) {
	s := &chacha20Stream{}
	copy(s.key[:], key)
	copy(s.iv[:], iv)
	if err := s.rewind(0); err != nil {
		return nil, err
	}
	return s, nil
}

type chacha20Stream struct {
	key [rtchacha20.KeySize]byte
	iv  [rtchacha20.NonceSize]byte
	c   *rtchacha20.Cipher
}

func (s *chacha20Stream) rewind(blockOffset uint32) error {
	c, err := rtchacha20.NewUnauthenticatedCipher(s.key[:], s.iv[:])
	if err != nil {
		return err
	}
	c.SetCounter(blockOffset)
	s.c = c
	return nil
}

// SeekTo repositions the keystream to the given absolute byte offset. The
// underlying cipher only supports resetting to a block boundary, so this
// reconstructs the cipher at the containing block and discards the
// leading bytes within it.
func (s *chacha20Stream) SeekTo(offset uint64) error {
	block := offset / blockSize
	if block > 0xFFFFFFFF {
		return errors.New("enard/cipher: seek offset too large for chacha20 block counter")
	}
	if err := s.rewind(uint32(block)); err != nil {
		return err
	}
	discard(s, int(offset%blockSize))
	return nil
}

func (s *chacha20Stream) XORKeyStream(data []byte) {
	s.c.XORKeyStream(data, data)
}

func (s *chacha20Stream) Close() error {
	zeroize.Bytes(s.key[:])
	zeroize.Bytes(s.iv[:])
	if s.c != nil {
		*s.c = rtchacha20.Cipher{}
	}
	return nil
}
