// Package elf reads the section header table of a 32-bit ELF object and
// applies the RELA relocations the DWARF sections of an unlinked object need.
//
// Only what the DWARF resolver consumes is decoded: section names, types,
// file ranges and links.
package elf

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/hitzhangjie/m68kdbg/pkg/dwarf/util"
	"github.com/hitzhangjie/m68kdbg/pkg/logflags"
)

// ELF header field offsets (32-bit layout)
const (
	offIdentClass = 0x04
	offIdentData  = 0x05
	offShoff      = 0x20
	offShentsize  = 0x2e
	offShnum      = 0x30
	offShstrndx   = 0x32

	headerSize = 0x34

	elfClass32   = 1
	elfDataLSB   = 1
	elfDataMSB   = 2
	shdrMinBytes = 0x28
)

var elfMagic = []byte{0x7f, 'E', 'L', 'F'}

// File is a parsed section header table over the raw object bytes.
type File struct {
	ByteOrder binary.ByteOrder
	Sections  Sections

	data []byte
}

// NewFile decodes the section table of the ELF image in data. data is kept,
// not copied.
func NewFile(data []byte) (*File, error) {
	if len(data) < headerSize || !bytes.Equal(data[:4], elfMagic) {
		return nil, fmt.Errorf("not an ELF file")
	}
	if data[offIdentClass] != elfClass32 {
		return nil, fmt.Errorf("unsupported ELF class %d, only 32-bit objects are supported", data[offIdentClass])
	}

	var order binary.ByteOrder
	switch data[offIdentData] {
	case elfDataMSB:
		order = binary.BigEndian
	case elfDataLSB:
		order = binary.LittleEndian
	default:
		return nil, fmt.Errorf("unknown ELF data encoding %d", data[offIdentData])
	}

	f := &File{ByteOrder: order, data: data}
	if err := f.parseSections(); err != nil {
		return nil, err
	}
	return f, nil
}

// Data returns the raw object bytes shared by every reader.
func (f *File) Data() []byte { return f.data }

// Cursor returns a cursor over the whole image positioned at off.
func (f *File) Cursor(name string, off uint64) *util.Cursor {
	return util.NewCursor(name, f.ByteOrder, f.data, off)
}

func (f *File) parseSections() error {
	hdr := f.Cursor("elf header", offShoff)
	shoff, err := hdr.Uint32()
	if err != nil {
		return err
	}
	hdr.Seek(offShentsize)
	shentsize, err := hdr.Uint16()
	if err != nil {
		return err
	}
	shnum, err := hdr.Uint16()
	if err != nil {
		return err
	}
	shstrndx, err := hdr.Uint16()
	if err != nil {
		return err
	}
	if shnum > 0 && shentsize < shdrMinBytes {
		return fmt.Errorf("invalid section header entry size %d", shentsize)
	}

	if logflags.ELF() {
		logflags.ELFLogger().Debugf("section header table at %#x, %d entries of %d bytes, names in section %d",
			shoff, shnum, shentsize, shstrndx)
	}

	// names are resolved against the string table section
	var strtab *Section
	if shstrndx < shnum {
		strtab, err = f.parseSection(uint64(shoff) + uint64(shstrndx)*uint64(shentsize))
		if err != nil {
			return fmt.Errorf("read section name table: %w", err)
		}
	}

	for idx := uint16(0); idx < shnum; idx++ {
		sec, err := f.parseSection(uint64(shoff) + uint64(idx)*uint64(shentsize))
		if err != nil {
			return fmt.Errorf("read section header %d: %w", idx, err)
		}
		if sec.Type == SHT_NULL {
			continue
		}
		if strtab != nil {
			sec.Name, err = f.Cursor("section names", 0).CStringAt(uint64(strtab.Offset) + uint64(sec.NameOffset))
			if err != nil {
				return fmt.Errorf("read name of section %d: %w", idx, err)
			}
		}
		sec.Index = int(idx)
		f.Sections = append(f.Sections, sec)
	}

	return nil
}

func (f *File) parseSection(off uint64) (*Section, error) {
	c := f.Cursor("section header", off)

	var (
		sec Section
		typ uint32
		err error
	)
	if sec.NameOffset, err = c.Uint32(); err != nil {
		return nil, err
	}
	if typ, err = c.Uint32(); err != nil {
		return nil, err
	}
	sec.Type = SectionType(typ)
	if err = c.Skip(8); err != nil { // sh_flags, sh_addr
		return nil, err
	}
	if sec.Offset, err = c.Uint32(); err != nil {
		return nil, err
	}
	if sec.Size, err = c.Uint32(); err != nil {
		return nil, err
	}
	if sec.Link, err = c.Uint32(); err != nil {
		return nil, err
	}
	if sec.Info, err = c.Uint32(); err != nil {
		return nil, err
	}
	return &sec, nil
}
