package symbol

import (
	"fmt"

	"github.com/hitzhangjie/m68kdbg/pkg/dwarf/info"
	"github.com/hitzhangjie/m68kdbg/pkg/dwarf/line"
	"github.com/hitzhangjie/m68kdbg/pkg/elf"
)

// CompileUnit compilation unit
//
// see DWARFv4 3.1.1 normal and partial compilation unit entries
type CompileUnit struct {
	*info.CompileUnit
	bi *BinaryInfo
}

func (cu *CompileUnit) stringAttr(attr info.Attr) string {
	top, err := cu.TopLevel()
	if err != nil {
		return ""
	}
	s, _ := top.Val(attr).(string)
	return s
}

// Name returns DW_AT_name of the unit, usually the primary source file.
func (cu *CompileUnit) Name() string {
	return cu.stringAttr(info.AttrName)
}

// CompDir returns DW_AT_comp_dir of the unit.
func (cu *CompileUnit) CompDir() string {
	return cu.stringAttr(info.AttrCompDir)
}

// StmtList returns the .debug_line offset of the unit's line table.
func (cu *CompileUnit) StmtList() (uint64, bool, error) {
	top, err := cu.TopLevel()
	if err != nil {
		return 0, false, err
	}
	f := top.Field(info.AttrStmtList)
	if f == nil {
		return 0, false, nil
	}
	off, ok := f.Uint()
	return off, ok, nil
}

// LineProgram decodes the unit's line table. It returns nil when the unit
// has no DW_AT_stmt_list.
func (cu *CompileUnit) LineProgram() (*line.Program, error) {
	off, ok, err := cu.StmtList()
	if err != nil || !ok {
		return nil, err
	}

	bi := cu.bi
	sec := bi.DebugLine
	if off >= uint64(sec.Size) {
		return nil, fmt.Errorf("DW_AT_stmt_list %#x is outside %s", off, elf.DebugLine)
	}
	if err := bi.relocateLine(off); err != nil {
		return nil, err
	}

	c := bi.File.Cursor(elf.DebugLine, 0).Sub(elf.DebugLine, uint64(sec.Offset)+off, sec.End())
	return line.Parse(c)
}

// Functions returns the subprograms of the unit that have a code range.
func (cu *CompileUnit) Functions() ([]*Function, error) {
	tree, err := cu.Tree()
	if err != nil {
		return nil, err
	}

	var fns []*Function
	for _, e := range tree.Flatten() {
		if e.Tag != info.TagSubprogram {
			continue
		}
		if fn, ok := newFunction(cu, e); ok {
			fns = append(fns, fn)
		}
	}
	return fns, nil
}
