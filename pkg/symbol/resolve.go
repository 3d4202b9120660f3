package symbol

import (
	"fmt"

	"github.com/hitzhangjie/m68kdbg/pkg/dwarf/info"
	"github.com/hitzhangjie/m68kdbg/pkg/dwarf/line"
	"github.com/hitzhangjie/m68kdbg/pkg/logflags"
)

// ErrFunctionNotFound is returned when no subprogram covers a PC.
type ErrFunctionNotFound struct {
	PC uint64
}

func (err *ErrFunctionNotFound) Error() string {
	return fmt.Sprintf("no function covers %#x", err.PC)
}

// ErrLineNotFound is returned when the line table of the unit holding
// Function has no row covering PC.
type ErrLineNotFound struct {
	PC       uint64
	Function string
}

func (err *ErrLineNotFound) Error() string {
	return fmt.Sprintf("no line covers %#x in function %s", err.PC, err.Function)
}

// Location is the source position of a PC.
type Location struct {
	PC       uint64
	Function string
	File     string
	Line     int64
	Column   uint64
}

// PCToFunction returns the function whose range covers PC.
//
// Units are visited in section order. A unit whose own range does not
// cover pc is skipped without decoding its entries. The first subprogram
// covering pc, in pre-order, wins.
func (bi *BinaryInfo) PCToFunction(pc uint64) (*Function, error) {
	it := bi.Units()
	for {
		cu, err := it.Next()
		if err != nil {
			return nil, err
		}
		if cu == nil {
			break
		}

		top, err := cu.TopLevel()
		if err != nil {
			return nil, err
		}
		if !top.ContainsPC(pc) {
			continue
		}
		if logflags.Symbol() {
			logflags.SymbolLogger().Debugf("pc %#x: unit %s at %#x covers it", pc, cu.Name(), cu.Offset)
		}

		tree, err := cu.Tree()
		if err != nil {
			return nil, err
		}
		for _, e := range tree.Flatten() {
			if e.Tag != info.TagSubprogram || !e.ContainsPC(pc) {
				continue
			}
			fn, _ := newFunction(cu, e)
			return fn, nil
		}
	}

	return nil, &ErrFunctionNotFound{PC: pc}
}

// PCToFileLine returns the file, line and column of pc by running the line
// program of cu.
//
// The row describing pc is the last row at or below pc whose successor is
// above it. A row ending a sequence describes no instruction, so it never
// starts such a pair.
func (bi *BinaryInfo) PCToFileLine(cu *CompileUnit, pc uint64) (*Location, error) {
	prog, err := cu.LineProgram()
	if err != nil {
		return nil, err
	}
	if prog == nil {
		return nil, &ErrLineNotFound{PC: pc}
	}

	rows, err := prog.Rows()
	if err != nil {
		return nil, err
	}
	if logflags.Symbol() {
		logflags.SymbolLogger().Debugf("pc %#x: line table at %#x has %d rows", pc, prog.Offset, len(rows))
	}

	var prev *line.Row
	for i := range rows {
		curr := &rows[i]
		if prev != nil && !prev.EndSequence && prev.Address <= pc && pc < curr.Address {
			file, ok := prog.FileName(prev.File, cu.CompDir())
			if !ok {
				return nil, fmt.Errorf("line table at %#x: file index %d is out of range", prog.Offset, prev.File)
			}
			return &Location{
				PC:     pc,
				File:   file,
				Line:   prev.Line,
				Column: prev.Column,
			}, nil
		}
		prev = curr
	}

	return nil, &ErrLineNotFound{PC: pc}
}

// Lookup resolves pc to its function and source position.
func (bi *BinaryInfo) Lookup(pc uint64) (*Location, error) {
	fn, err := bi.PCToFunction(pc)
	if err != nil {
		return nil, err
	}

	loc, err := bi.PCToFileLine(fn.CU, pc)
	if err != nil {
		if lerr, ok := err.(*ErrLineNotFound); ok {
			lerr.Function = fn.Name
		}
		return nil, err
	}
	loc.Function = fn.Name
	return loc, nil
}
