package a2s

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReader_TypedAccessorsAdvanceCursorInOrder(t *testing.T) {
	// u8=0x2A, i16=-5, u32=0xCAFEBABE, string="go\x00", then 2 trailing bytes.
	buf := []byte{0x2A, 0xFB, 0xFF, 0xBE, 0xBA, 0xFE, 0xCA, 'g', 'o', 0x00, 0x01, 0x02}
	r := newReader(buf)

	u8, err := r.readU8()
	require.NoError(t, err)
	assert.Equal(t, uint8(0x2A), u8)

	i16, err := r.readI16()
	require.NoError(t, err)
	assert.Equal(t, int16(-5), i16)

	u32, err := r.readU32()
	require.NoError(t, err)
	assert.Equal(t, uint32(0xCAFEBABE), u32)

	s, err := r.readString()
	require.NoError(t, err)
	assert.Equal(t, "go", s)

	assert.Equal(t, 2, r.remaining())
	require.NoError(t, r.skip(2))
	assert.Equal(t, 0, r.remaining())
}

func TestReader_TruncatedReadsFail(t *testing.T) {
	r := newReader([]byte{0x01})
	_, err := r.readU32()
	assert.ErrorIs(t, err, ErrTruncated)
}

func TestReader_UnterminatedStringFails(t *testing.T) {
	r := newReader([]byte{'a', 'b', 'c'})
	_, err := r.readString()
	assert.ErrorIs(t, err, ErrTruncatedString)
}

func TestReader_SkipPastEndFails(t *testing.T) {
	r := newReader([]byte{0x01, 0x02})
	assert.ErrorIs(t, r.skip(3), ErrTruncated)
}
