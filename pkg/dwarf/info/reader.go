package info

import (
	"fmt"

	"github.com/hitzhangjie/m68kdbg/pkg/dwarf/util"
)

// Range is a half open range of file offsets.
type Range struct {
	Start, End uint64
}

// Contains reports whether off lies in r.
func (r Range) Contains(off uint64) bool {
	return r.Start <= off && off < r.End
}

// entryReader decodes the DIEs of one unit into a Tree.
type entryReader struct {
	c        *util.Cursor
	abbrevs  AbbrevTable
	str      Range
	addrSize uint8
	tree     *Tree
}

// ReadEntries decodes the entry at the cursor position using abbrevs.
//
// When topLevelOnly is set exactly one entry is decoded, without its
// children. Otherwise the entry's whole subtree is decoded. The unit's
// top-level entry is not followed by a null entry, unlike the sibling lists
// of its descendants.
func ReadEntries(c *util.Cursor, abbrevs AbbrevTable, str Range, addrSize uint8, topLevelOnly bool) (*Tree, error) {
	r := &entryReader{
		c:        c,
		abbrevs:  abbrevs,
		str:      str,
		addrSize: addrSize,
		tree:     &Tree{},
	}

	off := c.Pos()
	code, err := c.ULEB128()
	if err != nil {
		return nil, err
	}
	if code == 0 {
		return r.tree, nil
	}
	idx, err := r.readEntry(off, code, -1)
	if err != nil {
		return nil, err
	}
	if !topLevelOnly && r.tree.Entries[idx].HasChildren {
		if err := r.readSiblings(idx); err != nil {
			return nil, err
		}
	}
	return r.tree, nil
}

// readSiblings decodes a null terminated list of entries owned by parent.
func (r *entryReader) readSiblings(parent int) error {
	for {
		// tolerate a unit whose last sibling list runs into its end
		if r.c.Len() == 0 {
			return nil
		}
		off := r.c.Pos()
		code, err := r.c.ULEB128()
		if err != nil {
			return err
		}
		if code == 0 {
			return nil
		}

		idx, err := r.readEntry(off, code, parent)
		if err != nil {
			return err
		}
		if r.tree.Entries[idx].HasChildren {
			if err := r.readSiblings(idx); err != nil {
				return err
			}
		}
	}
}

// readEntry decodes the attributes of the entry starting at off whose
// abbreviation code has already been read, and links it below parent.
func (r *entryReader) readEntry(off, code uint64, parent int) (int, error) {
	abbrev, ok := r.abbrevs[code]
	if !ok {
		return -1, &ErrUnknownAbbrev{Code: code, Offset: off}
	}

	e := &Entry{
		Offset:      off,
		AbbrevCode:  code,
		Tag:         abbrev.Tag,
		HasChildren: abbrev.Children,
		Parent:      parent,
		Fields:      make([]Field, 0, len(abbrev.Attrs)),
	}
	for _, spec := range abbrev.Attrs {
		valOff := r.c.Pos()
		val, err := r.readForm(spec)
		if err != nil {
			return -1, err
		}
		e.Fields = append(e.Fields, Field{Attr: spec.Attr, Form: spec.Form, Val: val, Offset: valOff})
	}

	idx := len(r.tree.Entries)
	r.tree.Entries = append(r.tree.Entries, e)
	if parent >= 0 {
		p := r.tree.Entries[parent]
		p.Children = append(p.Children, idx)
	}
	return idx, nil
}

// readForm decodes one attribute value and moves the cursor past it.
func (r *entryReader) readForm(spec AttrSpec) (interface{}, error) {
	c := r.c
	switch spec.Form {
	case FormAddr:
		switch r.addrSize {
		case 8:
			return c.Uint64()
		default:
			v, err := c.Uint32()
			return uint64(v), err
		}

	case FormData1, FormRef1, FormFlag:
		v, err := c.Uint8()
		return uint64(v), err

	case FormData2, FormRef2:
		v, err := c.Uint16()
		return uint64(v), err

	case FormData4, FormSecOffset, FormRef4:
		v, err := c.Uint32()
		return uint64(v), err

	case FormData8:
		return c.Uint64()

	case FormUdata:
		return c.ULEB128()

	case FormSdata:
		return c.SLEB128()

	case FormString:
		return c.CString()

	case FormStrp:
		off, err := c.Uint32()
		if err != nil {
			return nil, err
		}
		strOff := r.str.Start + uint64(off)
		if !r.str.Contains(strOff) {
			return nil, fmt.Errorf("string offset %#x at %#x is outside .debug_str", off, c.Pos()-4)
		}
		return c.CStringAt(strOff)

	case FormImplicitConst:
		return spec.Implicit, nil

	case FormFlagPresent:
		return uint64(1), nil

	case FormExprloc:
		n, err := c.ULEB128()
		if err != nil {
			return nil, err
		}
		return r.block(n)

	case FormBlock1:
		n, err := c.Uint8()
		if err != nil {
			return nil, err
		}
		return r.block(uint64(n))
	}

	return nil, &ErrUnsupportedForm{Form: spec.Form, Offset: c.Pos()}
}

// block reads n bytes and describes them the way objdump prints blocks.
func (r *entryReader) block(n uint64) (string, error) {
	b, err := r.c.Bytes(n)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%d byte block: %x", n, b), nil
}
