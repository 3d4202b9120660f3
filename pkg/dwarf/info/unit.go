// Package info decodes .debug_info: abbreviation tables, DIE trees and the
// sequence of compilation units.
//
// see DWARFv4 chapter 7.5 "Format of Debugging Information".
package info

import (
	"encoding/binary"
	"fmt"

	"github.com/hitzhangjie/m68kdbg/pkg/dwarf/util"
	"github.com/hitzhangjie/m68kdbg/pkg/logflags"
)

// Relocator patches the bytes of a unit before they are decoded. lo and hi
// delimit the unit as offsets relative to the start of .debug_info.
type Relocator interface {
	Relocate(lo, hi uint64) error
}

// Sections locates the sections the decoder reads, as file offset ranges
// into Data.
type Sections struct {
	Data   []byte
	Order  binary.ByteOrder
	Info   Range
	Abbrev Range
	Str    Range
}

// CompileUnit is one contribution to .debug_info: a header followed by a
// single top-level DIE and its children.
//
// see DWARFv4 7.5.1.1 compilation unit header
type CompileUnit struct {
	Offset       uint64
	UnitLength   uint32
	Version      uint16
	UnitType     uint8
	AbbrevOffset uint32
	AddrSize     uint8
	// DIEOffset is the file offset of the top-level DIE.
	DIEOffset uint64

	secs    *Sections
	abbrevs AbbrevTable
	top     *Entry
}

// End returns the file offset just past the unit.
func (cu *CompileUnit) End() uint64 {
	return cu.Offset + uint64(cu.UnitLength) + 4
}

// Abbrevs returns the unit's abbreviation table.
func (cu *CompileUnit) Abbrevs() AbbrevTable {
	return cu.abbrevs
}

func (cu *CompileUnit) cursor() *util.Cursor {
	return util.NewCursor(".debug_info", cu.secs.Order, cu.secs.Data, 0).Sub(".debug_info", cu.DIEOffset, cu.End())
}

// TopLevel decodes the unit's top-level DIE without its children.
func (cu *CompileUnit) TopLevel() (*Entry, error) {
	if cu.top != nil {
		return cu.top, nil
	}
	tree, err := ReadEntries(cu.cursor(), cu.abbrevs, cu.secs.Str, cu.AddrSize, true)
	if err != nil {
		return nil, err
	}
	if tree.Root() == nil {
		return nil, fmt.Errorf("compile unit at %#x has no top-level entry", cu.Offset)
	}
	cu.top = tree.Root()
	return cu.top, nil
}

// Tree decodes every DIE of the unit.
func (cu *CompileUnit) Tree() (*Tree, error) {
	return ReadEntries(cu.cursor(), cu.abbrevs, cu.secs.Str, cu.AddrSize, false)
}

// UnitIterator walks the compilation units of .debug_info in order. It is
// forward only: start again with a new iterator.
type UnitIterator struct {
	secs  *Sections
	reloc Relocator
	off   uint64
	err   error
}

// NewUnitIterator returns an iterator positioned at the first unit. reloc may
// be nil when the object needs no relocation.
func NewUnitIterator(secs *Sections, reloc Relocator) *UnitIterator {
	return &UnitIterator{secs: secs, reloc: reloc, off: secs.Info.Start}
}

// Offset returns the file offset of the next unit header.
func (it *UnitIterator) Offset() uint64 {
	return it.off
}

// Next decodes the next unit. It returns nil, nil after the last one.
func (it *UnitIterator) Next() (*CompileUnit, error) {
	if it.err != nil {
		return nil, it.err
	}
	if it.off >= it.secs.Info.End {
		return nil, nil
	}

	cu, err := it.parseUnit(it.off)
	if err != nil {
		it.err = fmt.Errorf("compile unit at %#x: %w", it.off, err)
		return nil, it.err
	}
	it.off = cu.End()
	return cu, nil
}

func (it *UnitIterator) parseUnit(off uint64) (*CompileUnit, error) {
	secs := it.secs
	c := util.NewCursor(".debug_info", secs.Order, secs.Data, 0).Sub(".debug_info", off, secs.Info.End)

	cu := &CompileUnit{Offset: off, secs: secs}

	var err error
	if cu.UnitLength, err = c.Uint32(); err != nil {
		return nil, err
	}
	if cu.UnitLength >= 0xfffffff0 {
		return nil, fmt.Errorf("64-bit DWARF is not supported")
	}
	if cu.End() > secs.Info.End {
		return nil, fmt.Errorf("unit length %#x runs past the end of .debug_info", cu.UnitLength)
	}

	// the header itself may carry relocations (debug_abbrev_offset)
	if it.reloc != nil {
		lo := off - secs.Info.Start
		if err := it.reloc.Relocate(lo, lo+uint64(cu.UnitLength)+4); err != nil {
			return nil, err
		}
	}

	if cu.Version, err = c.Uint16(); err != nil {
		return nil, err
	}
	switch {
	case cu.Version >= 2 && cu.Version <= 4:
		if cu.AbbrevOffset, err = c.Uint32(); err != nil {
			return nil, err
		}
		if cu.AddrSize, err = c.Uint8(); err != nil {
			return nil, err
		}
	case cu.Version == 5:
		if cu.UnitType, err = c.Uint8(); err != nil {
			return nil, err
		}
		if cu.AddrSize, err = c.Uint8(); err != nil {
			return nil, err
		}
		if cu.AbbrevOffset, err = c.Uint32(); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unsupported DWARF version %d", cu.Version)
	}
	cu.DIEOffset = c.Pos()

	abbrevOff := secs.Abbrev.Start + uint64(cu.AbbrevOffset)
	if !secs.Abbrev.Contains(abbrevOff) {
		return nil, fmt.Errorf("abbreviation offset %#x is outside .debug_abbrev", cu.AbbrevOffset)
	}
	ac := util.NewCursor(".debug_abbrev", secs.Order, secs.Data, 0).Sub(".debug_abbrev", abbrevOff, secs.Abbrev.End)
	if cu.abbrevs, err = ParseAbbrevTable(ac); err != nil {
		return nil, err
	}

	if logflags.DWARF() {
		logflags.DWARFLogger().Debugf("unit at %#x: length %#x, version %d, abbrev offset %#x, %d abbreviations",
			cu.Offset, cu.UnitLength, cu.Version, cu.AbbrevOffset, len(cu.abbrevs))
	}
	return cu, nil
}
