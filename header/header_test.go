package header

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSerializeRoundTrip(t *testing.T) {
	require := require.New(t)

	h := &Header{
		CipherName: []byte("chacha12"),
		IV:         bytes.Repeat([]byte{0}, 12),
		Metadata: []MetadataEntry{
			{Name: []byte("title"), Value: []byte("demo")},
		},
	}

	buf, err := h.Serialize()
	require.NoError(err)
	require.EqualValues(h.PaddedLen(), len(buf))

	got, err := Parse(buf)
	require.NoError(err)
	require.Equal(h.CipherName, got.CipherName)
	require.Equal(h.IV, got.IV)
	require.Equal(h.Metadata, got.Metadata)
}

func TestPaddedLenScenario1(t *testing.T) {
	// From spec.md §8 scenario 1: cipher-name="chacha12", empty IV, no
	// metadata.
	h := &Header{CipherName: []byte("chacha12")}
	require.EqualValues(t, 12, h.PaddedLen())
}

func TestSerializeDeterministic(t *testing.T) {
	require := require.New(t)

	h := &Header{
		CipherName: []byte("chacha20"),
		IV:         []byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12},
		Metadata: []MetadataEntry{
			{Name: []byte("a"), Value: []byte("1")},
			{Name: []byte("b"), Value: []byte("2")},
		},
	}

	a, err := h.Serialize()
	require.NoError(err)
	b, err := h.Serialize()
	require.NoError(err)
	require.Equal(a, b)
}

func TestParseEmptyIVAndMetadata(t *testing.T) {
	require := require.New(t)

	h := &Header{CipherName: []byte("chacha12")}
	buf, err := h.Serialize()
	require.NoError(err)

	got, err := Parse(buf)
	require.NoError(err)
	require.Empty(got.IV)
	require.Empty(got.Metadata)
}

func TestParseMaximalMetadata(t *testing.T) {
	require := require.New(t)

	h := &Header{CipherName: []byte("chacha20")}
	name := bytes.Repeat([]byte{'n'}, MaxNameLen)
	value := bytes.Repeat([]byte{'v'}, MaxValueLen)
	for i := 0; i < MaxMetadataEntries; i++ {
		h.Metadata = append(h.Metadata, MetadataEntry{Name: name, Value: value})
	}

	buf, err := h.Serialize()
	require.NoError(err)

	got, err := Parse(buf)
	require.NoError(err)
	require.Len(got.Metadata, MaxMetadataEntries)
	require.Equal(name, got.Metadata[0].Name)
	require.Equal(value, got.Metadata[0].Value)
}

func TestValidateRejectsOversizedFields(t *testing.T) {
	require := require.New(t)

	h := &Header{CipherName: bytes.Repeat([]byte{'a'}, 256)}
	_, err := h.Serialize()
	require.ErrorIs(err, ErrNameTooLong)

	h2 := &Header{
		CipherName: []byte("chacha12"),
		Metadata:   []MetadataEntry{{Value: bytes.Repeat([]byte{'v'}, MaxValueLen+1)}},
	}
	_, err = h2.Serialize()
	require.ErrorIs(err, ErrValueTooLong)
}

func TestParseTruncated(t *testing.T) {
	require := require.New(t)

	h := &Header{CipherName: []byte("chacha12")}
	buf, err := h.Serialize()
	require.NoError(err)

	_, err = Parse(buf[:3])
	require.ErrorIs(err, ErrTruncatedHeader)
}

func TestParseMetadataOverflow(t *testing.T) {
	require := require.New(t)

	// name length prefix is 1 but count claims 3 entries follow with
	// nothing else in the buffer.
	buf := []byte{1, 'c', 0, 3}
	_, err := Parse(buf)
	require.ErrorIs(err, ErrMetadataOverflow)
}

func TestParseRejectsNonZeroPadding(t *testing.T) {
	require := require.New(t)

	h := &Header{CipherName: []byte("chacha12")}
	buf, err := h.Serialize()
	require.NoError(err)
	require.NotEqual(len(buf), h.unpaddedLen(), "fixture must have at least one padding byte")

	buf[len(buf)-1] = 0x01
	_, err = Parse(buf)
	require.ErrorIs(err, ErrNonZeroPadding)
}
