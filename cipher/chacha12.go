package cipher

import (
	"errors"

	"github.com/aead/chacha20/chacha"

	"github.com/bindernews/enard/internal/zeroize"
)

// chacha20Rounds12 is the reduced-round ChaCha variant Enard ships as
// "chacha12": the pack's teacher (hs1siv) only ever uses the full 20-round
// ChaCha20, so the round-parametric primitive is drawn from
// github.com/aead/chacha20/chacha, the one pack dependency exposing ChaCha
// with a selectable round count (8, 12 or 20).
const chacha20Rounds12 = 12

type chacha12Capability struct{}

// NewChaCha12 returns the Capability registered under the name "chacha12".
func NewChaCha12() Capability { return chacha12Capability{} }

func (chacha12Capability) Name() string { return "chacha12" }
func (chacha12Capability) KeySize() int { return chacha.KeySize }
func (chacha12Capability) IVSize() int  { return chacha.INonceSize }

func (chacha12Capability) New(key, iv []byte) (Stream, error) {
	s := &chacha12Stream{}
	copy(s.key[:], key)
	copy(s.iv[:], iv)
	if err := s.rewind(0); err != nil {
		return nil, err
	}
	return s, nil
}

type chacha12Stream struct {
	key [chacha.KeySize]byte
	iv  [chacha.INonceSize]byte
	c   *chacha.Cipher
}

func (s *chacha12Stream) rewind(block uint64) error {
	c, err := chacha.NewCipher(s.iv[:], s.key[:], chacha20Rounds12)
	if err != nil {
		return err
	}
	c.SetCounter(block)
	s.c = c
	return nil
}

// SeekTo repositions the keystream to the given absolute byte offset,
// reconstructing the cipher at the containing 64-byte block and discarding
// any leading bytes within it.
func (s *chacha12Stream) SeekTo(offset uint64) error {
	block := offset / blockSize
	if err := s.rewind(block); err != nil {
		return errors.New("enard/cipher: failed to seek chacha12: " + err.Error())
	}
	discard(s, int(offset%blockSize))
	return nil
}

func (s *chacha12Stream) XORKeyStream(data []byte) {
	s.c.XORKeyStream(data, data)
}

func (s *chacha12Stream) Close() error {
	zeroize.Bytes(s.key[:])
	zeroize.Bytes(s.iv[:])
	if s.c != nil {
		*s.c = chacha.Cipher{}
	}
	return nil
}
