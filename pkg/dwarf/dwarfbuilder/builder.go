// Package dwarfbuilder provides a way to build DWARF sections with
// arbitrary contents, and wrap them in a 32-bit big-endian ELF image.
package dwarfbuilder

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/hitzhangjie/m68kdbg/pkg/dwarf/info"
	"github.com/hitzhangjie/m68kdbg/pkg/dwarf/leb128"
)

// Address is a 4-byte target address, encoded as DW_FORM_addr.
type Address uint32

// Strp is a string stored in .debug_str, encoded as DW_FORM_strp.
type Strp string

// SecOffset is an offset into another section, encoded as
// DW_FORM_sec_offset.
type SecOffset uint32

// ImplicitConst is a constant stored in the abbreviation, encoded as
// DW_FORM_implicit_const.
type ImplicitConst int64

// Exprloc is a DWARF expression, encoded as DW_FORM_exprloc.
type Exprloc []byte

// Raw is a value with an explicit form and pre-encoded bytes.
type Raw struct {
	Form  info.Form
	Bytes []byte
}

// Rela is a relocation record against .debug_info.
type Rela struct {
	Offset uint32
	Info   uint32
	Addend int32
}

// R_68K_32 is the absolute 32-bit m68k relocation type.
const R_68K_32 = 1

type tagDescr struct {
	tag      info.Tag
	attrs    []info.AttrSpec
	children bool
}

type tagState struct {
	off int
	tagDescr
}

// Builder builds .debug_info, .debug_abbrev, .debug_str, .debug_line and
// their RELA sections. All units share one abbreviation table at offset 0.
type Builder struct {
	order binary.ByteOrder

	info   bytes.Buffer
	str    bytes.Buffer
	line   bytes.Buffer
	relocs []Rela

	lineRelocs []Rela

	abbrevs  []tagDescr
	tagStack []*tagState

	unitStart int
	inUnit    bool
}

// New creates a new big-endian DWARF builder.
func New() *Builder {
	return &Builder{order: binary.BigEndian}
}

// BeginUnit writes a compilation unit header of the given DWARF version and
// opens its DW_TAG_compile_unit entry named name.
func (b *Builder) BeginUnit(version uint16, name string) {
	if b.inUnit {
		panic("BeginUnit inside an open unit")
	}
	b.inUnit = true
	b.unitStart = b.info.Len()

	b.put(uint32(0)) // unit_length
	b.put(version)
	if version >= 5 {
		b.info.WriteByte(0x01) // DW_UT_compile
		b.info.WriteByte(4)    // address_size
		b.put(uint32(0))       // debug_abbrev_offset
	} else {
		b.put(uint32(0)) // debug_abbrev_offset
		b.info.WriteByte(4)
	}

	b.TagOpen(info.TagCompileUnit, name)
}

// EndUnit closes the compilation unit entry and patches the unit length.
func (b *Builder) EndUnit() {
	if !b.inUnit {
		panic("EndUnit without BeginUnit")
	}
	b.TagClose()
	if len(b.tagStack) > 0 {
		panic(fmt.Sprintf("unbalanced TagOpen/TagClose %d", len(b.tagStack)))
	}
	data := b.info.Bytes()
	b.order.PutUint32(data[b.unitStart:], uint32(len(data)-b.unitStart-4))
	b.inUnit = false
}

// InfoOffset returns the current .debug_info offset.
func (b *Builder) InfoOffset() uint32 {
	return uint32(b.info.Len())
}

// TagOpen starts a new DIE, call TagClose after adding all attributes and
// children elements. An empty name adds no DW_AT_name.
func (b *Builder) TagOpen(tag info.Tag, name string) uint32 {
	if len(b.tagStack) > 0 {
		b.tagStack[len(b.tagStack)-1].children = true
	}
	ts := &tagState{off: b.info.Len()}
	ts.tag = tag
	b.info.WriteByte(0)
	b.tagStack = append(b.tagStack, ts)
	if name != "" {
		b.Attr(info.AttrName, name)
	}
	return uint32(ts.off)
}

// SetHasChildren sets the current DIE as having children (even if none are
// added).
func (b *Builder) SetHasChildren() {
	if len(b.tagStack) <= 0 {
		panic("SetHasChildren with no open tags")
	}
	b.tagStack[len(b.tagStack)-1].children = true
}

// TagClose closes the current DIE.
func (b *Builder) TagClose() {
	if len(b.tagStack) <= 0 {
		panic("TagClose with no open tags")
	}
	tag := b.tagStack[len(b.tagStack)-1]
	b.info.Bytes()[tag.off] = b.abbrevFor(tag.tagDescr)
	if tag.children {
		b.info.WriteByte(0)
	}
	b.tagStack = b.tagStack[:len(b.tagStack)-1]
}

// Attr adds an attribute to the current DIE. The form is chosen from the
// type of val.
func (b *Builder) Attr(attr info.Attr, val interface{}) {
	tag := b.current()
	spec := info.AttrSpec{Attr: attr}

	switch x := val.(type) {
	case string:
		spec.Form = info.FormString
		b.info.WriteString(x)
		b.info.WriteByte(0)
	case Strp:
		spec.Form = info.FormStrp
		b.put(b.strOffset(string(x)))
	case uint8:
		spec.Form = info.FormData1
		b.info.WriteByte(x)
	case uint16:
		spec.Form = info.FormData2
		b.put(x)
	case uint32:
		spec.Form = info.FormData4
		b.put(x)
	case Address:
		spec.Form = info.FormAddr
		b.put(uint32(x))
	case SecOffset:
		spec.Form = info.FormSecOffset
		b.put(uint32(x))
	case ImplicitConst:
		spec.Form = info.FormImplicitConst
		spec.Implicit = int64(x)
	case bool:
		if !x {
			panic("DW_FORM_flag_present cannot encode false")
		}
		spec.Form = info.FormFlagPresent
	case Exprloc:
		spec.Form = info.FormExprloc
		b.info.Write(encodeULEB128(uint64(len(x))))
		b.info.Write(x)
	case Raw:
		spec.Form = x.Form
		b.info.Write(x.Bytes)
	default:
		panic(fmt.Sprintf("unknown value type %T", val))
	}

	tag.attrs = append(tag.attrs, spec)
}

// AttrReloc adds a 4-byte attribute of form whose bytes are left zero and
// filled by a .rela.debug_info record carrying addend.
func (b *Builder) AttrReloc(attr info.Attr, form info.Form, addend int32) {
	tag := b.current()
	b.relocs = append(b.relocs, Rela{
		Offset: uint32(b.info.Len()),
		Info:   1<<8 | R_68K_32,
		Addend: addend,
	})
	b.put(uint32(0))
	tag.attrs = append(tag.attrs, info.AttrSpec{Attr: attr, Form: form})
}

// AddLineProgram appends lp to .debug_line and returns its offset, the
// value for DW_AT_stmt_list.
func (b *Builder) AddLineProgram(lp *LineProgram) SecOffset {
	off := SecOffset(b.line.Len())
	data, start := lp.encode(b.order)
	for _, r := range lp.relocs {
		b.lineRelocs = append(b.lineRelocs, Rela{
			Offset: uint32(off) + uint32(start+r.pos),
			Info:   1<<8 | R_68K_32,
			Addend: r.addend,
		})
	}
	b.line.Write(data)
	return off
}

func (b *Builder) current() *tagState {
	if len(b.tagStack) <= 0 {
		panic("Attr with no open tags")
	}
	tag := b.tagStack[len(b.tagStack)-1]
	if tag.children {
		panic("Can't add attributes after adding children")
	}
	return tag
}

func (b *Builder) put(v interface{}) {
	binary.Write(&b.info, b.order, v)
}

func (b *Builder) strOffset(s string) uint32 {
	if i := bytes.Index(b.str.Bytes(), append([]byte(s), 0)); i >= 0 && (i == 0 || b.str.Bytes()[i-1] == 0) {
		return uint32(i)
	}
	off := uint32(b.str.Len())
	b.str.WriteString(s)
	b.str.WriteByte(0)
	return off
}

func sameTagDescr(a, b tagDescr) bool {
	if a.tag != b.tag || a.children != b.children || len(a.attrs) != len(b.attrs) {
		return false
	}
	for i := range a.attrs {
		if a.attrs[i] != b.attrs[i] {
			return false
		}
	}
	return true
}

// abbrevFor returns the abbreviation code for tag, adding it to the table
// when it is new.
func (b *Builder) abbrevFor(tag tagDescr) byte {
	for i := range b.abbrevs {
		if sameTagDescr(b.abbrevs[i], tag) {
			return byte(i + 1)
		}
	}
	if len(b.abbrevs)+1 >= 0x80 {
		panic("too many abbreviations")
	}
	b.abbrevs = append(b.abbrevs, tag)
	return byte(len(b.abbrevs))
}

func (b *Builder) makeAbbrevTable() []byte {
	var abbrev bytes.Buffer

	for i := range b.abbrevs {
		abbrev.Write(encodeULEB128(uint64(i + 1)))
		abbrev.Write(encodeULEB128(uint64(b.abbrevs[i].tag)))
		if b.abbrevs[i].children {
			abbrev.WriteByte(0x01)
		} else {
			abbrev.WriteByte(0x00)
		}
		for _, spec := range b.abbrevs[i].attrs {
			abbrev.Write(encodeULEB128(uint64(spec.Attr)))
			abbrev.Write(encodeULEB128(uint64(spec.Form)))
			if spec.Form == info.FormImplicitConst {
				abbrev.Write(encodeSLEB128(spec.Implicit))
			}
		}
		abbrev.WriteByte(0)
		abbrev.WriteByte(0)
	}
	abbrev.WriteByte(0)

	return abbrev.Bytes()
}

// Sections holds the contents of the built sections.
type Sections struct {
	Abbrev   []byte
	Info     []byte
	Str      []byte
	Line     []byte
	RelaInfo []byte
	RelaLine []byte
}

// Build returns all the sections.
func (b *Builder) Build() (*Sections, error) {
	if b.inUnit {
		return nil, fmt.Errorf("unit is still open")
	}

	secs := &Sections{
		Abbrev: b.makeAbbrevTable(),
		Info:   append([]byte(nil), b.info.Bytes()...),
		Str:    append([]byte(nil), b.str.Bytes()...),
		Line:   append([]byte(nil), b.line.Bytes()...),
	}
	secs.RelaInfo = b.encodeRelocs(b.relocs)
	secs.RelaLine = b.encodeRelocs(b.lineRelocs)
	return secs, nil
}

func (b *Builder) encodeRelocs(relocs []Rela) []byte {
	var out []byte
	for _, r := range relocs {
		var rec [12]byte
		b.order.PutUint32(rec[0:], r.Offset)
		b.order.PutUint32(rec[4:], r.Info)
		b.order.PutUint32(rec[8:], uint32(r.Addend))
		out = append(out, rec[:]...)
	}
	return out
}

func encodeULEB128(v uint64) []byte { return leb128.EncodeUnsigned(nil, v) }

func encodeSLEB128(v int64) []byte { return leb128.EncodeSigned(nil, v) }
