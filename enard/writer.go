package enard

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/bindernews/enard/cipher"
	"github.com/bindernews/enard/header"
	"github.com/bindernews/enard/internal/zeroize"
	"github.com/bindernews/enard/mac"
)

// Sink is the collaborator contract a Writer's output must satisfy:
// sequential writes plus a single backpatch seek to offset 12 for the
// final data-size field.
type Sink interface {
	io.Writer
	io.Seeker
}

// WriterConfig configures a single Writer session.
type WriterConfig struct {
	// Registry supplies the cipher Capability named by CipherName. If
	// nil, cipher.DefaultRegistry() is used.
	Registry *cipher.Registry

	// CipherName selects the stream cipher, e.g. "chacha12" (default
	// recommendation) or "chacha20".
	CipherName string

	// MasterKey is used directly as the cipher key and is the seed for
	// the derived MAC key; its length must match the selected cipher's
	// KeySize. It is not retained by the Writer once opened.
	MasterKey []byte

	// IV is the explicit IV to use when RandomIV is false. It is used as
	// given: its length must match the cipher's IVSize, otherwise
	// NewWriter fails with cipher.ErrInvalidIVLength. No default IV is
	// substituted for an empty one.
	IV []byte

	// RandomIV draws an IV of the cipher's required length from a
	// cryptographically secure RNG, ignoring IV.
	RandomIV bool

	// Metadata is attached to the header verbatim, in order.
	Metadata []header.MetadataEntry
}

// Writer produces a single well-formed Enard container from a plaintext
// byte stream written via Write, with the final data-size field and MAC
// tag committed on Close.
type Writer struct {
	sink     Sink
	stream   cipher.Stream
	binder   *mac.Binder
	dataSize uint64
	closed   bool
	chunk    []byte
}

// NewWriter builds and writes the Enard header to sink, instantiates the
// configured cipher, and returns a Writer ready to accept plaintext via
// Write. The returned Writer must be closed with Close to finalize D and
// the MAC tag; failing to do so leaves a truncated, unusable file.
func NewWriter(sink Sink, cfg WriterConfig) (*Writer, error) {
	registry := cfg.Registry
	if registry == nil {
		registry = cipher.DefaultRegistry()
	}

	cap, ok := registry.Get(cfg.CipherName)
	if !ok {
		return nil, fmt.Errorf("%w: %q", cipher.ErrUnknownCipher, cfg.CipherName)
	}

	iv := cfg.IV
	if cfg.RandomIV {
		iv = make([]byte, cap.IVSize())
		if _, err := rand.Read(iv); err != nil {
			return nil, wrapIO("generate iv", err)
		}
	}

	h := &header.Header{
		CipherName: []byte(cfg.CipherName),
		IV:         iv,
		Metadata:   cfg.Metadata,
	}
	hdrBytes, err := h.Serialize()
	if err != nil {
		return nil, err
	}

	stream, err := registry.New(cfg.CipherName, cfg.MasterKey, iv)
	if err != nil {
		return nil, err
	}

	macKey := mac.DeriveKey(cfg.MasterKey)
	binder := mac.NewBinder(macKey)
	zeroize.Bytes(macKey)

	p := prefix{version: Version, h: uint32(len(hdrBytes)), d: 0}
	if _, err := sink.Write(encodePrefix(p)); err != nil {
		return nil, wrapIO("write prefix", err)
	}
	if _, err := sink.Write(hdrBytes); err != nil {
		return nil, wrapIO("write header", err)
	}
	binder.Write(hdrBytes)

	return &Writer{
		sink:   sink,
		stream: stream,
		binder: binder,
		chunk:  make([]byte, 32*1024),
	}, nil
}

// Write encrypts p and appends it to the ciphertext region, feeding the
// produced ciphertext into the MAC and counting it into D. p is processed
// in chunks of up to 32 KiB; if an error is returned, chunks of p handled
// before the failure remain written to the sink.
func (w *Writer) Write(p []byte) (int, error) {
	if w.closed {
		return 0, ErrClosed
	}

	total := len(p)
	for len(p) > 0 {
		n := len(p)
		if n > len(w.chunk) {
			n = len(w.chunk)
		}
		buf := w.chunk[:n]
		copy(buf, p[:n])
		w.stream.XORKeyStream(buf)

		if w.dataSize+uint64(n) < w.dataSize {
			return 0, ErrPayloadTooLarge
		}

		if _, err := w.sink.Write(buf); err != nil {
			return 0, wrapIO("write ciphertext", err)
		}
		w.binder.Write(buf)
		w.dataSize += uint64(n)
		p = p[n:]
	}
	return total, nil
}

// Close finalizes the MAC tag, writes it, and backpatches the true
// plaintext length D at offset 12. The Writer and its cipher state must
// not be used after Close.
func (w *Writer) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true
	defer w.stream.Close()

	tag := w.binder.Sum()
	if _, err := w.sink.Write(tag); err != nil {
		return wrapIO("write tag", err)
	}

	if _, err := w.sink.Seek(dataSizeOffset, io.SeekStart); err != nil {
		return wrapIO("seek to backpatch data size", err)
	}
	var dBuf [8]byte
	binary.LittleEndian.PutUint64(dBuf[:], w.dataSize)
	if _, err := w.sink.Write(dBuf[:]); err != nil {
		return wrapIO("backpatch data size", err)
	}
	return nil
}
