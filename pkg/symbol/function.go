package symbol

import (
	"github.com/hitzhangjie/m68kdbg/pkg/dwarf/info"
)

// Function function
//
// see DWARFv4 3.3 subroutine and entry point entries
type Function struct {
	Name   string
	LowPC  uint64
	HighPC uint64
	// Offset is the file offset of the subprogram entry.
	Offset uint64

	CU *CompileUnit
}

// newFunction builds a Function from a DW_TAG_subprogram entry. It reports
// false for subprograms without code, like declarations and abstract
// instances of inlined functions.
func newFunction(cu *CompileUnit, e *info.Entry) (*Function, bool) {
	lowpc, highpc, ok := e.PCRange()
	if !ok {
		return nil, false
	}
	name, _ := e.Name()
	return &Function{
		Name:   name,
		LowPC:  lowpc,
		HighPC: highpc,
		Offset: e.Offset,
		CU:     cu,
	}, true
}

// Contains reports whether pc lies in [LowPC, HighPC).
func (f *Function) Contains(pc uint64) bool {
	return f.LowPC <= pc && pc < f.HighPC
}
