package util

import (
	"encoding/binary"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCursorFixedWidth(t *testing.T) {
	data := []byte{0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0xff}
	c := NewCursor("test", binary.BigEndian, data, 0)

	u8, err := c.Uint8()
	require.NoError(t, err)
	assert.Equal(t, uint8(0x01), u8)

	u16, err := c.Uint16()
	require.NoError(t, err)
	assert.Equal(t, uint16(0x0203), u16)

	u32, err := c.Uint32()
	require.NoError(t, err)
	assert.Equal(t, uint32(0x04050607), u32)

	i8, err := c.Int8()
	require.NoError(t, err)
	assert.Equal(t, int8(-1), i8)

	assert.Equal(t, uint64(8), c.Pos())
	assert.Equal(t, uint64(0), c.Len())
}

func TestCursorUnderflowDoesNotAdvance(t *testing.T) {
	c := NewCursor("test", binary.BigEndian, []byte{0x01, 0x02, 0x03}, 1)

	_, err := c.Uint32()
	require.Error(t, err)

	var derr *DecodeError
	require.True(t, errors.As(err, &derr))
	assert.Equal(t, uint64(1), derr.Offset)
	assert.Equal(t, uint64(1), c.Pos())

	v, err := c.Uint16()
	require.NoError(t, err)
	assert.Equal(t, uint16(0x0203), v)
}

func TestCursorSubLimit(t *testing.T) {
	c := NewCursor("test", binary.BigEndian, []byte{0, 1, 2, 3, 4, 5}, 0)
	sub := c.Sub("sub", 2, 4)

	b, err := sub.Bytes(2)
	require.NoError(t, err)
	assert.Equal(t, []byte{2, 3}, b)

	_, err = sub.Uint8()
	assert.Error(t, err)

	_, err = sub.Peek()
	assert.Error(t, err)

	// the parent cursor is untouched
	assert.Equal(t, uint64(0), c.Pos())
}

func TestCursorLEB128(t *testing.T) {
	data := []byte{0xe5, 0x8e, 0x26, 0x7d, 0x80}
	c := NewCursor("test", binary.BigEndian, data, 0)

	u, err := c.ULEB128()
	require.NoError(t, err)
	assert.Equal(t, uint64(624485), u)

	s, err := c.SLEB128()
	require.NoError(t, err)
	assert.Equal(t, int64(-3), s)

	_, err = c.ULEB128()
	assert.Error(t, err)
	assert.Equal(t, uint64(4), c.Pos())
}

func TestCursorStrings(t *testing.T) {
	data := []byte("main.c\x00bmp.c\x00nul")
	c := NewCursor("test", binary.BigEndian, data, 0)

	s, err := c.CString()
	require.NoError(t, err)
	assert.Equal(t, "main.c", s)
	assert.Equal(t, uint64(7), c.Pos())

	p, err := c.Peek()
	require.NoError(t, err)
	assert.Equal(t, uint8('b'), p)
	assert.Equal(t, uint64(7), c.Pos())

	s, err = c.CStringAt(7)
	require.NoError(t, err)
	assert.Equal(t, "bmp.c", s)

	c.Seek(13)
	_, err = c.CString()
	assert.Error(t, err)

	_, err = c.CStringAt(100)
	assert.Error(t, err)
}
