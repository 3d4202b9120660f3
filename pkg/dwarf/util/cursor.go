// Package util provides the bounds checked byte cursor the ELF and DWARF
// decoders read through.
package util

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/hitzhangjie/m68kdbg/pkg/dwarf/leb128"
)

// DecodeError is returned when a read would run past the end of the data
// the cursor is allowed to see, or when an encoded value is malformed.
type DecodeError struct {
	Name   string
	Offset uint64
	Err    string
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decoding %s at offset %#x: %s", e.Name, e.Offset, e.Err)
}

// Cursor reads sequentially from an immutable byte buffer. Positions are
// absolute offsets into the buffer, so values read through a cursor can be
// reported and patched at their real file offset.
type Cursor struct {
	name  string
	order binary.ByteOrder
	data  []byte
	off   uint64
	limit uint64
}

// NewCursor returns a cursor over all of data starting at off.
func NewCursor(name string, order binary.ByteOrder, data []byte, off uint64) *Cursor {
	return &Cursor{
		name:  name,
		order: order,
		data:  data,
		off:   off,
		limit: uint64(len(data)),
	}
}

// Sub returns a cursor positioned at off which cannot read at or beyond
// limit. limit is clamped to the end of the underlying buffer.
func (c *Cursor) Sub(name string, off, limit uint64) *Cursor {
	if limit > uint64(len(c.data)) {
		limit = uint64(len(c.data))
	}
	return &Cursor{name: name, order: c.order, data: c.data, off: off, limit: limit}
}

// Order returns the byte order used for fixed width reads.
func (c *Cursor) Order() binary.ByteOrder { return c.order }

// Pos returns the current absolute offset.
func (c *Cursor) Pos() uint64 { return c.off }

// Limit returns the offset the cursor cannot read past.
func (c *Cursor) Limit() uint64 { return c.limit }

// Len returns the number of readable bytes left.
func (c *Cursor) Len() uint64 {
	if c.off >= c.limit {
		return 0
	}
	return c.limit - c.off
}

// Seek moves the cursor to the absolute offset off.
func (c *Cursor) Seek(off uint64) { c.off = off }

func (c *Cursor) error(s string) error {
	return &DecodeError{Name: c.name, Offset: c.off, Err: s}
}

func (c *Cursor) next(n uint64) ([]byte, error) {
	if c.off > c.limit || c.limit-c.off < n {
		return nil, c.error(fmt.Sprintf("underflow reading %d bytes", n))
	}
	b := c.data[c.off : c.off+n]
	c.off += n
	return b, nil
}

// Skip advances the cursor by n bytes.
func (c *Cursor) Skip(n uint64) error {
	_, err := c.next(n)
	return err
}

// Bytes returns the next n bytes. The returned slice aliases the buffer.
func (c *Cursor) Bytes(n uint64) ([]byte, error) {
	return c.next(n)
}

// Peek returns the next byte without advancing.
func (c *Cursor) Peek() (uint8, error) {
	if c.off >= c.limit {
		return 0, c.error("underflow peeking byte")
	}
	return c.data[c.off], nil
}

func (c *Cursor) Uint8() (uint8, error) {
	b, err := c.next(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (c *Cursor) Int8() (int8, error) {
	v, err := c.Uint8()
	return int8(v), err
}

func (c *Cursor) Uint16() (uint16, error) {
	b, err := c.next(2)
	if err != nil {
		return 0, err
	}
	return c.order.Uint16(b), nil
}

func (c *Cursor) Uint32() (uint32, error) {
	b, err := c.next(4)
	if err != nil {
		return 0, err
	}
	return c.order.Uint32(b), nil
}

func (c *Cursor) Uint64() (uint64, error) {
	b, err := c.next(8)
	if err != nil {
		return 0, err
	}
	return c.order.Uint64(b), nil
}

// ULEB128 reads an unsigned LEB128 number.
func (c *Cursor) ULEB128() (uint64, error) {
	if c.off >= c.limit {
		return 0, c.error("underflow reading ULEB128")
	}
	v, n := leb128.DecodeUnsigned(c.data[c.off:c.limit])
	if n == 0 {
		return 0, c.error("unterminated ULEB128")
	}
	c.off += uint64(n)
	return v, nil
}

// SLEB128 reads a signed LEB128 number.
func (c *Cursor) SLEB128() (int64, error) {
	if c.off >= c.limit {
		return 0, c.error("underflow reading SLEB128")
	}
	v, n := leb128.DecodeSigned(c.data[c.off:c.limit])
	if n == 0 {
		return 0, c.error("unterminated SLEB128")
	}
	c.off += uint64(n)
	return v, nil
}

// CString reads a NUL-terminated string and moves past the terminator.
func (c *Cursor) CString() (string, error) {
	if c.off >= c.limit {
		return "", c.error("underflow reading string")
	}
	i := bytes.IndexByte(c.data[c.off:c.limit], 0)
	if i < 0 {
		return "", c.error("unterminated string")
	}
	s := string(c.data[c.off : c.off+uint64(i)])
	c.off += uint64(i) + 1
	return s, nil
}

// CStringAt returns the NUL-terminated string starting at the absolute
// offset off without moving the cursor. The whole buffer is searched, not
// only the cursor's range, since string tables live in other sections.
func (c *Cursor) CStringAt(off uint64) (string, error) {
	if off >= uint64(len(c.data)) {
		return "", &DecodeError{Name: c.name, Offset: off, Err: "string offset out of range"}
	}
	i := bytes.IndexByte(c.data[off:], 0)
	if i < 0 {
		return "", &DecodeError{Name: c.name, Offset: off, Err: "unterminated string"}
	}
	return string(c.data[off : off+uint64(i)]), nil
}
