// Package line decodes .debug_line: the line table header and the line
// number program that expands into the address to source line matrix.
package line

import (
	"fmt"

	"github.com/hitzhangjie/m68kdbg/pkg/dwarf/util"
	"github.com/hitzhangjie/m68kdbg/pkg/logflags"
)

// Header is the fixed part of a line table header.
//
// see DWARFv4 6.2.4 The Line Number Program Header
type Header struct {
	Offset        uint64
	UnitLength    uint32
	Version       uint16
	HeaderLength  uint32
	MinInstLength uint8
	MaxOpsPerInst uint8
	DefaultIsStmt bool
	LineBase      int8
	LineRange     uint8
	OpcodeBase    uint8
	StdOpLengths  []uint8
}

// FileEntry is one entry of the file_names table.
type FileEntry struct {
	Name     string
	DirIndex uint64
	MTime    uint64
	Length   uint64
}

// Program is a decoded line table: its header, directory and file tables,
// and the byte range of the opcodes.
type Program struct {
	Header
	IncludeDirs []string
	Files       []FileEntry

	// Start and End delimit the opcodes as file offsets.
	Start, End uint64

	c *util.Cursor
}

// parseContext carries the state shared by the header parse steps.
type parseContext struct {
	c    *util.Cursor
	prog *Program
}

type parsefunc func(*parseContext) error

// Parse decodes the line table starting at the cursor position. The cursor
// must be able to see the whole table.
func Parse(c *util.Cursor) (*Program, error) {
	ctx := &parseContext{
		c:    c,
		prog: &Program{Header: Header{Offset: c.Pos()}},
	}

	for _, fn := range []parsefunc{parseHeader, parseIncludeDirs, parseFileEntries} {
		if err := fn(ctx); err != nil {
			return nil, fmt.Errorf("line table at %#x: %w", ctx.prog.Offset, err)
		}
	}

	p := ctx.prog
	p.c = c.Sub(".debug_line", p.Start, p.End)
	if logflags.Line() {
		logflags.LineLogger().Debugf("line table at %#x: version %d, %d dirs, %d files, program [%#x, %#x)",
			p.Offset, p.Version, len(p.IncludeDirs), len(p.Files), p.Start, p.End)
	}
	return p, nil
}

func parseHeader(ctx *parseContext) error {
	c, p := ctx.c, ctx.prog

	var err error
	if p.UnitLength, err = c.Uint32(); err != nil {
		return err
	}
	if p.UnitLength >= 0xfffffff0 {
		return fmt.Errorf("64-bit DWARF is not supported")
	}
	p.End = p.Offset + uint64(p.UnitLength) + 4
	if p.End > c.Limit() {
		return fmt.Errorf("unit length %#x runs past the end of .debug_line", p.UnitLength)
	}

	if p.Version, err = c.Uint16(); err != nil {
		return err
	}
	if p.Version < 2 || p.Version > 4 {
		return fmt.Errorf("unsupported line table version %d", p.Version)
	}
	if p.HeaderLength, err = c.Uint32(); err != nil {
		return err
	}
	p.Start = c.Pos() + uint64(p.HeaderLength)
	if p.Start > p.End {
		return fmt.Errorf("header length %#x runs past the end of the unit", p.HeaderLength)
	}

	if p.MinInstLength, err = c.Uint8(); err != nil {
		return err
	}
	p.MaxOpsPerInst = 1
	if p.Version >= 4 {
		if p.MaxOpsPerInst, err = c.Uint8(); err != nil {
			return err
		}
		if p.MaxOpsPerInst == 0 {
			return fmt.Errorf("maximum_operations_per_instruction is zero")
		}
	}

	isStmt, err := c.Uint8()
	if err != nil {
		return err
	}
	p.DefaultIsStmt = isStmt != 0
	if p.LineBase, err = c.Int8(); err != nil {
		return err
	}
	if p.LineRange, err = c.Uint8(); err != nil {
		return err
	}
	if p.LineRange == 0 {
		return fmt.Errorf("line_range is zero")
	}
	if p.OpcodeBase, err = c.Uint8(); err != nil {
		return err
	}
	if p.OpcodeBase == 0 {
		return fmt.Errorf("opcode_base is zero")
	}

	lengths, err := c.Bytes(uint64(p.OpcodeBase - 1))
	if err != nil {
		return err
	}
	p.StdOpLengths = append([]uint8(nil), lengths...)
	return nil
}

func parseIncludeDirs(ctx *parseContext) error {
	c, p := ctx.c, ctx.prog
	for {
		dir, err := c.CString()
		if err != nil {
			return err
		}
		if dir == "" {
			return nil
		}
		p.IncludeDirs = append(p.IncludeDirs, dir)
	}
}

func parseFileEntries(ctx *parseContext) error {
	c, p := ctx.c, ctx.prog
	for {
		name, err := c.CString()
		if err != nil {
			return err
		}
		if name == "" {
			return nil
		}

		f := FileEntry{Name: name}
		if f.DirIndex, err = c.ULEB128(); err != nil {
			return err
		}
		if f.MTime, err = c.ULEB128(); err != nil {
			return err
		}
		if f.Length, err = c.ULEB128(); err != nil {
			return err
		}
		p.Files = append(p.Files, f)
	}
}

// FileName returns the path of the 1-based file entry idx, joined with its
// include directory. Directory index 0 stands for compDir, the compilation
// directory of the unit, or no directory at all when compDir is empty.
func (p *Program) FileName(idx uint64, compDir string) (string, bool) {
	if idx == 0 || idx > uint64(len(p.Files)) {
		return "", false
	}
	f := p.Files[idx-1]

	switch {
	case f.DirIndex == 0:
		if compDir == "" {
			return f.Name, true
		}
		return compDir + "/" + f.Name, true
	case f.DirIndex <= uint64(len(p.IncludeDirs)):
		return p.IncludeDirs[f.DirIndex-1] + "/" + f.Name, true
	}
	return "", false
}
