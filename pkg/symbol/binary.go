package symbol

import (
	"fmt"
	"os"

	"github.com/hitzhangjie/m68kdbg/pkg/dwarf/info"
	"github.com/hitzhangjie/m68kdbg/pkg/elf"
	"github.com/hitzhangjie/m68kdbg/pkg/logflags"
)

// BinaryInfo binary info
//
// It owns the object image for its whole lifetime. The image is only ever
// written by relocation, once per unit, before that unit is decoded.
type BinaryInfo struct {
	File *elf.File

	DebugInfo   *elf.Section
	DebugAbbrev *elf.Section
	DebugStr    *elf.Section
	DebugLine   *elf.Section

	InfoRelocs elf.Relocations
	LineRelocs elf.Relocations

	secs *info.Sections

	// units and line tables already relocated, by section relative offset
	infoApplied map[uint64]bool
	lineApplied map[uint64]bool
}

// Analyze reads the ELF object `execFile` and returns its binary info.
func Analyze(execFile string) (*BinaryInfo, error) {
	data, err := os.ReadFile(execFile)
	if err != nil {
		return nil, err
	}
	return newBinaryInfo(data)
}

// New returns the binary info of the ELF image in data. data is copied.
func New(data []byte) (*BinaryInfo, error) {
	return newBinaryInfo(append([]byte(nil), data...))
}

func newBinaryInfo(data []byte) (*BinaryInfo, error) {
	file, err := elf.NewFile(data)
	if err != nil {
		return nil, err
	}

	bi := &BinaryInfo{
		File:        file,
		infoApplied: make(map[uint64]bool),
		lineApplied: make(map[uint64]bool),
	}

	// check the sections every lookup needs
	for _, v := range []struct {
		name string
		sec  **elf.Section
	}{
		{elf.DebugInfo, &bi.DebugInfo},
		{elf.DebugAbbrev, &bi.DebugAbbrev},
		{elf.DebugStr, &bi.DebugStr},
		{elf.DebugLine, &bi.DebugLine},
	} {
		sec, err := file.Sections.Find(v.name)
		if err != nil {
			return nil, err
		}
		if _, err := sec.Data(data); err != nil {
			return nil, err
		}
		*v.sec = sec
	}

	// relocations are absent from linked images
	if sec := file.Sections.Lookup(elf.RelaDebugInfo); sec != nil {
		if bi.InfoRelocs, err = file.ParseRelocations(sec); err != nil {
			return nil, err
		}
	}
	if sec := file.Sections.Lookup(elf.RelaDebugLine); sec != nil {
		if bi.LineRelocs, err = file.ParseRelocations(sec); err != nil {
			return nil, err
		}
	}

	bi.secs = &info.Sections{
		Data:   data,
		Order:  file.ByteOrder,
		Info:   sectionRange(bi.DebugInfo),
		Abbrev: sectionRange(bi.DebugAbbrev),
		Str:    sectionRange(bi.DebugStr),
	}

	if logflags.Symbol() {
		logflags.SymbolLogger().Debugf("analyzed: %d sections, %d .debug_info relocations, %d .debug_line relocations",
			len(file.Sections), len(bi.InfoRelocs), len(bi.LineRelocs))
	}
	return bi, nil
}

func sectionRange(sec *elf.Section) info.Range {
	return info.Range{Start: uint64(sec.Offset), End: sec.End()}
}

// Relocate applies the .rela.debug_info records of the unit spanning
// [lo, hi) of .debug_info. A unit is relocated at most once.
func (bi *BinaryInfo) Relocate(lo, hi uint64) error {
	if len(bi.InfoRelocs) == 0 || bi.infoApplied[lo] {
		return nil
	}
	n, err := bi.InfoRelocs.Apply(bi.secs.Data, bi.secs.Order, uint64(bi.DebugInfo.Offset), int64(lo), int64(hi))
	if err != nil {
		return err
	}
	bi.infoApplied[lo] = true
	if logflags.Symbol() {
		logflags.SymbolLogger().Debugf("unit [%#x, %#x): applied %d relocations", lo, hi, n)
	}
	return nil
}

// relocateLine applies the .rela.debug_line records of the line table at
// off, once.
func (bi *BinaryInfo) relocateLine(off uint64) error {
	if len(bi.LineRelocs) == 0 || bi.lineApplied[off] {
		return nil
	}
	c := bi.File.Cursor(elf.DebugLine, uint64(bi.DebugLine.Offset)+off)
	length, err := c.Uint32()
	if err != nil {
		return err
	}
	hi := off + uint64(length) + 4
	n, err := bi.LineRelocs.Apply(bi.secs.Data, bi.secs.Order, uint64(bi.DebugLine.Offset), int64(off), int64(hi))
	if err != nil {
		return err
	}
	bi.lineApplied[off] = true
	if logflags.Symbol() {
		logflags.SymbolLogger().Debugf("line table [%#x, %#x): applied %d relocations", off, hi, n)
	}
	return nil
}

// Units returns an iterator over the compilation units, from the start of
// .debug_info.
func (bi *BinaryInfo) Units() *UnitIterator {
	return &UnitIterator{bi: bi, it: info.NewUnitIterator(bi.secs, bi)}
}

// UnitIterator yields the compilation units of a BinaryInfo in section
// order.
type UnitIterator struct {
	bi *BinaryInfo
	it *info.UnitIterator
}

// Next returns the next unit, or nil after the last one.
func (it *UnitIterator) Next() (*CompileUnit, error) {
	cu, err := it.it.Next()
	if err != nil || cu == nil {
		return nil, err
	}
	return &CompileUnit{CompileUnit: cu, bi: it.bi}, nil
}

// CompileUnits returns every compilation unit.
func (bi *BinaryInfo) CompileUnits() ([]*CompileUnit, error) {
	var units []*CompileUnit
	it := bi.Units()
	for {
		cu, err := it.Next()
		if err != nil {
			return nil, err
		}
		if cu == nil {
			return units, nil
		}
		units = append(units, cu)
	}
}

// Functions returns every subprogram with a code range, in section order.
func (bi *BinaryInfo) Functions() ([]*Function, error) {
	units, err := bi.CompileUnits()
	if err != nil {
		return nil, err
	}

	var fns []*Function
	for _, cu := range units {
		cufns, err := cu.Functions()
		if err != nil {
			return nil, fmt.Errorf("compile unit at %#x: %w", cu.Offset, err)
		}
		fns = append(fns, cufns...)
	}
	return fns, nil
}
