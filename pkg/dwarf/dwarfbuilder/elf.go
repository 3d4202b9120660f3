package dwarfbuilder

import (
	"bytes"
	"encoding/binary"
	"strings"

	"github.com/hitzhangjie/m68kdbg/pkg/elf"
)

// ELF32 header and section header sizes
const (
	elfHeaderSize = 0x34
	shdrSize      = 0x28
)

type elfSection struct {
	name string
	typ  elf.SectionType
	data []byte
	info uint32
}

// ELF wraps the sections in a big-endian ELF32 relocatable m68k object.
// Sections named in omit are left out, as are the RELA sections without
// records.
func (s *Sections) ELF(omit ...string) []byte {
	skip := map[string]bool{}
	for _, name := range omit {
		skip[name] = true
	}

	all := []elfSection{
		{name: elf.DebugInfo, typ: elf.SHT_PROGBITS, data: s.Info},
		{name: elf.DebugAbbrev, typ: elf.SHT_PROGBITS, data: s.Abbrev},
		{name: elf.DebugStr, typ: elf.SHT_PROGBITS, data: s.Str},
		{name: elf.DebugLine, typ: elf.SHT_PROGBITS, data: s.Line},
		{name: elf.RelaDebugInfo, typ: elf.SHT_RELA, data: s.RelaInfo},
		{name: elf.RelaDebugLine, typ: elf.SHT_RELA, data: s.RelaLine},
	}
	if len(s.RelaInfo) == 0 {
		skip[elf.RelaDebugInfo] = true
	}
	if len(s.RelaLine) == 0 {
		skip[elf.RelaDebugLine] = true
	}

	// index 0 is the null section
	secs := []elfSection{{}}
	// a RELA section's sh_info is the index of the section it patches
	index := map[string]uint32{}
	for _, sec := range all {
		if skip[sec.name] {
			continue
		}
		index[sec.name] = uint32(len(secs))
		if sec.typ == elf.SHT_RELA {
			sec.info = index[strings.TrimPrefix(sec.name, ".rela")]
		}
		secs = append(secs, sec)
	}

	var shstrtab bytes.Buffer
	shstrtab.WriteByte(0)
	nameOffs := make([]uint32, len(secs)+1)
	for i := 1; i < len(secs); i++ {
		nameOffs[i] = uint32(shstrtab.Len())
		shstrtab.WriteString(secs[i].name)
		shstrtab.WriteByte(0)
	}
	nameOffs[len(secs)] = uint32(shstrtab.Len())
	shstrtab.WriteString(".shstrtab")
	shstrtab.WriteByte(0)
	secs = append(secs, elfSection{name: ".shstrtab", typ: elf.SHT_STRTAB, data: shstrtab.Bytes()})

	order := binary.BigEndian
	var out bytes.Buffer
	out.Write(make([]byte, elfHeaderSize))

	offsets := make([]uint32, len(secs))
	for i := 1; i < len(secs); i++ {
		for out.Len()%4 != 0 {
			out.WriteByte(0)
		}
		offsets[i] = uint32(out.Len())
		out.Write(secs[i].data)
	}
	for out.Len()%4 != 0 {
		out.WriteByte(0)
	}
	shoff := uint32(out.Len())

	for i, sec := range secs {
		var shdr [shdrSize]byte
		if i > 0 {
			order.PutUint32(shdr[0x00:], nameOffs[i])
			order.PutUint32(shdr[0x04:], uint32(sec.typ))
			order.PutUint32(shdr[0x10:], offsets[i])
			order.PutUint32(shdr[0x14:], uint32(len(sec.data)))
			order.PutUint32(shdr[0x1c:], sec.info)
			order.PutUint32(shdr[0x20:], 1) // sh_addralign
			if sec.typ == elf.SHT_RELA {
				order.PutUint32(shdr[0x24:], 12) // sh_entsize
			}
		}
		out.Write(shdr[:])
	}

	img := out.Bytes()
	copy(img, []byte{0x7f, 'E', 'L', 'F', 1, 2, 1})
	order.PutUint16(img[0x10:], 1) // ET_REL
	order.PutUint16(img[0x12:], 4) // EM_68K
	order.PutUint32(img[0x14:], 1) // EV_CURRENT
	order.PutUint32(img[0x20:], shoff)
	order.PutUint16(img[0x28:], elfHeaderSize)
	order.PutUint16(img[0x2e:], shdrSize)
	order.PutUint16(img[0x30:], uint16(len(secs)))
	order.PutUint16(img[0x32:], uint16(len(secs)-1))
	return img
}
