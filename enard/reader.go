package enard

import (
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/bindernews/enard/cipher"
	"github.com/bindernews/enard/header"
	"github.com/bindernews/enard/internal/zeroize"
	"github.com/bindernews/enard/mac"
)

// Source is the collaborator contract a Reader's input must satisfy: a
// byte source supporting positioned reads (via Seek+Read) and a length
// query is not required directly, since D is read from the container
// itself.
type Source interface {
	io.Reader
	io.Seeker
}

const defaultCopyBufSize = 32 * 1024

// ReaderConfig configures a single Reader session.
type ReaderConfig struct {
	// Registry supplies the cipher Capability named by the header's
	// cipher-name field. If nil, cipher.DefaultRegistry() is used.
	Registry *cipher.Registry

	// MasterKey is used directly as the cipher key and is the seed for
	// the derived MAC key; it is not retained once the Reader is opened.
	MasterKey []byte

	// Verify selects the authentication policy. The zero value is
	// VerifyEager.
	Verify VerifyMode
}

// Reader parses and (by default) authenticates an Enard container, then
// exposes a seekable view over its plaintext.
type Reader struct {
	src        Source
	stream     cipher.Stream
	h          *header.Header
	headerRaw  []byte
	macKey     []byte
	tag        []byte
	ciphOffset int64
	dataSize   uint64
	pos        uint64
	streamPos  uint64
	streamSet  bool
	verifyMode VerifyMode
	verified   bool
	closed     bool
}

// Open reads the fixed prefix and header from src, constructs the cipher
// named by the header, and (under VerifyEager, the default) authenticates
// the entire ciphertext region before returning. No plaintext byte is
// trusted before this call succeeds.
func Open(src Source, cfg ReaderConfig) (*Reader, error) {
	if _, err := src.Seek(0, io.SeekStart); err != nil {
		return nil, wrapIO("seek to start", err)
	}

	prefixBuf := make([]byte, prefixSize)
	if _, err := io.ReadFull(src, prefixBuf); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, fmt.Errorf("%w: prefix shorter than %d bytes", header.ErrTruncatedHeader, prefixSize)
		}
		return nil, wrapIO("read prefix", err)
	}

	p, ok := decodePrefix(prefixBuf)
	if !ok {
		return nil, ErrBadMagic
	}
	if p.version != Version {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedVersion, p.version)
	}

	headerRaw := make([]byte, p.h)
	if _, err := io.ReadFull(src, headerRaw); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, fmt.Errorf("%w: declared header size %d", header.ErrTruncatedHeader, p.h)
		}
		return nil, wrapIO("read header", err)
	}

	if (prefixSize+int64(p.h))%8 != 0 {
		return nil, fmt.Errorf("%w: 20+%d is not a multiple of 8", ErrMisalignedHeader, p.h)
	}

	hdr, err := header.Parse(headerRaw)
	if err != nil {
		return nil, err
	}

	registry := cfg.Registry
	if registry == nil {
		registry = cipher.DefaultRegistry()
	}
	stream, err := registry.New(string(hdr.CipherName), cfg.MasterKey, hdr.IV)
	if err != nil {
		return nil, err
	}

	ciphOffset := prefixSize + int64(p.h)
	if p.d > uint64(math.MaxInt64-ciphOffset-int64(TagSize)) {
		stream.Close()
		return nil, fmt.Errorf("%w: data size %d overflows a representable file offset", header.ErrTruncatedHeader, p.d)
	}

	tagOffset := ciphOffset + int64(p.d)
	tag := make([]byte, TagSize)
	if _, err := src.Seek(tagOffset, io.SeekStart); err != nil {
		stream.Close()
		return nil, wrapIO("seek to tag", err)
	}
	if _, err := io.ReadFull(src, tag); err != nil {
		stream.Close()
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, fmt.Errorf("%w: file shorter than declared container size", header.ErrTruncatedHeader)
		}
		return nil, wrapIO("read tag", err)
	}

	macKey := mac.DeriveKey(cfg.MasterKey)

	r := &Reader{
		src:        src,
		stream:     stream,
		h:          hdr,
		headerRaw:  headerRaw,
		macKey:     macKey,
		tag:        tag,
		ciphOffset: ciphOffset,
		dataSize:   p.d,
		verifyMode: cfg.Verify,
	}

	if cfg.Verify == VerifyEager {
		if err := r.Verify(); err != nil {
			r.Close()
			return nil, err
		}
	}

	return r, nil
}

// Verify streams the entire ciphertext region and compares the computed
// MAC tag against the one stored in the container, in constant time. It is
// a no-op if the container has already been verified (eagerly at Open, or
// by a previous call). On failure, ErrMacMismatch is returned and no
// further plaintext may be treated as trusted.
func (r *Reader) Verify() error {
	if r.verified {
		return nil
	}

	binder := mac.NewBinder(r.macKey)
	binder.Write(r.headerRaw)

	buf := make([]byte, defaultCopyBufSize)
	remaining := r.dataSize
	offset := r.ciphOffset
	for remaining > 0 {
		n := uint64(len(buf))
		if n > remaining {
			n = remaining
		}
		nRead, err := readAt(r.src, offset, buf[:n])
		if err != nil {
			return err
		}
		binder.Write(buf[:nRead])
		offset += int64(nRead)
		remaining -= uint64(nRead)
	}

	if err := binder.Verify(r.tag); err != nil {
		return fmt.Errorf("%w", ErrMacMismatch)
	}
	r.verified = true
	return nil
}

// ReadAll reads the full plaintext in one call, verifying the MAC as a
// side effect if this Reader uses VerifyLazy and hasn't verified yet. If
// verification fails, the returned bytes must be treated as poisoned.
func (r *Reader) ReadAll() ([]byte, error) {
	if r.closed {
		return nil, ErrClosed
	}
	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}
	out := make([]byte, r.dataSize)
	if _, err := io.ReadFull(r, out); err != nil && err != io.EOF {
		return nil, err
	}
	if err := r.Verify(); err != nil {
		return out, err
	}
	return out, nil
}

// Read reads up to len(buf) bytes from the current plaintext position,
// advancing it. It returns 0, io.EOF at the end of the plaintext.
func (r *Reader) Read(buf []byte) (int, error) {
	if r.closed {
		return 0, ErrClosed
	}
	if r.pos >= r.dataSize {
		return 0, io.EOF
	}

	n := uint64(len(buf))
	if room := r.dataSize - r.pos; n > room {
		n = room
	}
	if n == 0 {
		return 0, io.EOF
	}

	dst := buf[:n]
	nRead, err := readAt(r.src, r.ciphOffset+int64(r.pos), dst)
	if err != nil {
		return 0, err
	}

	if !r.streamSet || r.streamPos != r.pos {
		if err := r.stream.SeekTo(r.pos); err != nil {
			return 0, err
		}
		r.streamSet = true
	}
	r.stream.XORKeyStream(dst[:nRead])
	r.streamPos = r.pos + uint64(nRead)

	r.pos += uint64(nRead)
	return nRead, nil
}

// Seek sets the current plaintext position per whence/offset (io.Seeker
// semantics). The target must lie in [0, Len()]; it is not clamped. It
// fails with ErrInvalidSeek on an out-of-range target, leaving the
// position unchanged. Seeking is O(1) and
// does not touch the underlying source until the next Read.
func (r *Reader) Seek(offset int64, whence int) (int64, error) {
	if r.closed {
		return 0, ErrClosed
	}

	var base int64
	switch whence {
	case io.SeekStart:
		base = 0
	case io.SeekCurrent:
		base = int64(r.pos)
	case io.SeekEnd:
		base = int64(r.dataSize)
	default:
		return 0, fmt.Errorf("%w: invalid whence %d", ErrInvalidSeek, whence)
	}

	target := base + offset
	if target < 0 || target > int64(r.dataSize) {
		return 0, fmt.Errorf("%w: position %d outside [0, %d]", ErrInvalidSeek, target, r.dataSize)
	}

	r.pos = uint64(target)
	return target, nil
}

// Len returns D, the plaintext's known length in bytes.
func (r *Reader) Len() uint64 { return r.dataSize }

// CipherName returns the cipher name recorded in the header.
func (r *Reader) CipherName() string { return string(r.h.CipherName) }

// IV returns a copy of the IV recorded in the header.
func (r *Reader) IV() []byte {
	return append([]byte(nil), r.h.IV...)
}

// Metadata returns a copy of the header's metadata entries, in order.
func (r *Reader) Metadata() []header.MetadataEntry {
	out := make([]header.MetadataEntry, len(r.h.Metadata))
	for i, e := range r.h.Metadata {
		out[i] = header.MetadataEntry{
			Name:  append([]byte(nil), e.Name...),
			Value: append([]byte(nil), e.Value...),
		}
	}
	return out
}

// Close zeroises the derived MAC key and the cipher's key schedule. The
// Reader must not be used afterward.
func (r *Reader) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true
	zeroize.Bytes(r.macKey)
	return r.stream.Close()
}

func readAt(src Source, offset int64, buf []byte) (int, error) {
	if _, err := src.Seek(offset, io.SeekStart); err != nil {
		return 0, wrapIO("seek", err)
	}
	n, err := io.ReadFull(src, buf)
	if err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return n, fmt.Errorf("%w: ciphertext region shorter than declared data size", header.ErrTruncatedHeader)
		}
		return n, wrapIO("read", err)
	}
	return n, nil
}
