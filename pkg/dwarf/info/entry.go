package info

import (
	"fmt"
)

// Field is one decoded attribute of an entry.
type Field struct {
	Attr Attr
	Form Form
	// Val is uint64 for addresses, references, flags and unsigned
	// constants, int64 for signed constants, and string for strings and
	// blocks.
	Val interface{}
	// Offset is the file offset the value was decoded from.
	Offset uint64
}

// Uint returns the field value as an unsigned number.
func (f *Field) Uint() (uint64, bool) {
	switch v := f.Val.(type) {
	case uint64:
		return v, true
	case int64:
		return uint64(v), true
	}
	return 0, false
}

// Entry is a Debugging Information Entry. Entries live in the arena of a
// Tree and refer to their relatives by index.
type Entry struct {
	Offset      uint64
	AbbrevCode  uint64
	Tag         Tag
	Fields      []Field
	HasChildren bool

	// Parent is the index of the parent entry, -1 for the unit's root.
	Parent   int
	Children []int
}

// Field returns the field for attr, or nil.
func (e *Entry) Field(attr Attr) *Field {
	for i := range e.Fields {
		if e.Fields[i].Attr == attr {
			return &e.Fields[i]
		}
	}
	return nil
}

// Val returns the value of attr, or nil.
func (e *Entry) Val(attr Attr) interface{} {
	if f := e.Field(attr); f != nil {
		return f.Val
	}
	return nil
}

// Name returns DW_AT_name when it is a string.
func (e *Entry) Name() (string, bool) {
	s, ok := e.Val(AttrName).(string)
	return s, ok
}

// LowPC returns DW_AT_low_pc.
func (e *Entry) LowPC() (uint64, bool) {
	f := e.Field(AttrLowpc)
	if f == nil {
		return 0, false
	}
	return f.Uint()
}

// HighPC returns the end address of the entry, one past its last byte.
//
// DWARF v4 section 2.17.2 interprets DW_AT_high_pc by the class of its
// form: an address is absolute, a constant is an offset from DW_AT_low_pc.
func (e *Entry) HighPC() (uint64, bool) {
	f := e.Field(AttrHighpc)
	if f == nil {
		return 0, false
	}
	v, ok := f.Uint()
	if !ok {
		return 0, false
	}

	switch f.Form.Class() {
	case ClassAddress:
		return v, true
	case ClassConstant:
		lowpc, ok := e.LowPC()
		if !ok {
			return 0, false
		}
		return lowpc + v, true
	}
	return 0, false
}

// PCRange returns [lowpc, highpc) of the entry.
func (e *Entry) PCRange() (lowpc, highpc uint64, ok bool) {
	if lowpc, ok = e.LowPC(); !ok {
		return 0, 0, false
	}
	if highpc, ok = e.HighPC(); !ok {
		return 0, 0, false
	}
	return lowpc, highpc, true
}

// ContainsPC reports whether pc lies in [lowpc, highpc).
func (e *Entry) ContainsPC(pc uint64) bool {
	lowpc, highpc, ok := e.PCRange()
	return ok && lowpc <= pc && pc < highpc
}

// Tree is the arena holding the entries of one compilation unit, in the
// pre-order they appear in .debug_info. Index 0 is the unit's root.
type Tree struct {
	Entries []*Entry
}

// Root returns the unit's top-level entry.
func (t *Tree) Root() *Entry {
	if len(t.Entries) == 0 {
		return nil
	}
	return t.Entries[0]
}

// Parent returns the parent of e, or nil for the root.
func (t *Tree) Parent(e *Entry) *Entry {
	if e.Parent < 0 || e.Parent >= len(t.Entries) {
		return nil
	}
	return t.Entries[e.Parent]
}

// Children returns the direct children of e.
func (t *Tree) Children(e *Entry) []*Entry {
	children := make([]*Entry, 0, len(e.Children))
	for _, idx := range e.Children {
		children = append(children, t.Entries[idx])
	}
	return children
}

// Depth returns how many ancestors e has.
func (t *Tree) Depth(e *Entry) int {
	depth := 0
	for p := t.Parent(e); p != nil; p = t.Parent(p) {
		depth++
	}
	return depth
}

// Flatten returns every entry in pre-order.
func (t *Tree) Flatten() []*Entry {
	return t.Entries
}

// ErrUnsupportedForm reports an attribute form the decoder cannot size.
type ErrUnsupportedForm struct {
	Form   Form
	Offset uint64
}

func (err *ErrUnsupportedForm) Error() string {
	return fmt.Sprintf("%s at %#x is unsupported", err.Form, err.Offset)
}

// ErrUnknownAbbrev reports a DIE using a code missing from the unit's
// abbreviation table.
type ErrUnknownAbbrev struct {
	Code   uint64
	Offset uint64
}

func (err *ErrUnknownAbbrev) Error() string {
	return fmt.Sprintf("unknown abbreviation code %d at %#x", err.Code, err.Offset)
}
