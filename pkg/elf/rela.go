package elf

import (
	"encoding/binary"
	"fmt"

	"github.com/hitzhangjie/m68kdbg/pkg/logflags"
)

const relaEntrySize = 12

// RelaInfo is the r_info field of a relocation record.
type RelaInfo int32

// Sym returns the symbol table index packed in r_info.
func (i RelaInfo) Sym() uint32 { return uint32(i) >> 8 }

// Type returns the relocation type packed in r_info.
func (i RelaInfo) Type() uint8 { return uint8(uint32(i) & 0xff) }

// Relocation is one Elf32_Rela record.
type Relocation struct {
	Offset int32
	Info   RelaInfo
	Addend int32
}

// Relocations is the decoded content of a RELA section.
type Relocations []Relocation

// ParseRelocations decodes the 12-byte records of the RELA section sec.
func (f *File) ParseRelocations(sec *Section) (Relocations, error) {
	if sec.Size%relaEntrySize != 0 {
		return nil, fmt.Errorf("section %s size %d is not a multiple of %d", sec.Name, sec.Size, relaEntrySize)
	}

	c := f.Cursor(sec.Name, uint64(sec.Offset))
	relocs := make(Relocations, 0, sec.Size/relaEntrySize)
	for c.Pos() < sec.End() {
		var (
			r   Relocation
			v   uint32
			err error
		)
		if v, err = c.Uint32(); err != nil {
			return nil, err
		}
		r.Offset = int32(v)
		if v, err = c.Uint32(); err != nil {
			return nil, err
		}
		r.Info = RelaInfo(v)
		if v, err = c.Uint32(); err != nil {
			return nil, err
		}
		r.Addend = int32(v)
		relocs = append(relocs, r)
	}

	if logflags.ELF() {
		logflags.ELFLogger().Debugf("%s: %d relocation records", sec.Name, len(relocs))
	}
	return relocs, nil
}

// Apply patches the addend of every record whose r_offset lies in [lo, hi)
// into data at base+r_offset, overwriting the placeholder left by the
// assembler. The symbol index in r_info is not consulted: the addend alone
// is taken as the final value, which holds for section-relative relocations
// against sections placed at address zero.
//
// r_offset is taken relative to the start of the patched section, and
// records outside the unit's own [lo, hi) are skipped. For every unit but
// the first this differs on purpose from reading r_offset relative to the
// unit header, which only ever agreed with the linker for the first unit.
//
// It returns the number of records applied.
func (rs Relocations) Apply(data []byte, order binary.ByteOrder, base uint64, lo, hi int64) (int, error) {
	n := 0
	for _, r := range rs {
		if int64(r.Offset) < lo || int64(r.Offset) >= hi {
			continue
		}
		off := base + uint64(r.Offset)
		if off+4 > uint64(len(data)) {
			return n, fmt.Errorf("relocation at %#x is beyond the end of the file", off)
		}
		order.PutUint32(data[off:off+4], uint32(r.Addend))
		n++
	}
	return n, nil
}
