package line_test

import (
	"encoding/binary"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hitzhangjie/m68kdbg/pkg/dwarf/dwarfbuilder"
	"github.com/hitzhangjie/m68kdbg/pkg/dwarf/line"
	"github.com/hitzhangjie/m68kdbg/pkg/dwarf/util"
)

func parse(t *testing.T, lp *dwarfbuilder.LineProgram) *line.Program {
	t.Helper()

	// a leading pad checks that offsets are absolute
	data := append([]byte{0xaa, 0xbb}, lp.Bytes(binary.BigEndian)...)
	c := util.NewCursor(".debug_line", binary.BigEndian, data, 2)
	prog, err := line.Parse(c)
	require.NoError(t, err)
	return prog
}

func files() []line.FileEntry {
	return []line.FileEntry{
		{Name: "main.c", DirIndex: 1},
		{Name: "bmp.h", DirIndex: 2},
		{Name: "gen.c", DirIndex: 0},
	}
}

func TestParseHeader(t *testing.T) {
	lp := dwarfbuilder.NewLineProgram([]string{"src", "inc"}, files()...)
	lp.SetAddress(0x200).Copy().EndSequence()

	prog := parse(t, lp)
	assert.Equal(t, uint64(2), prog.Offset)
	assert.Equal(t, uint16(3), prog.Version)
	assert.Equal(t, uint8(1), prog.MinInstLength)
	assert.Equal(t, uint8(1), prog.MaxOpsPerInst)
	assert.True(t, prog.DefaultIsStmt)
	assert.Equal(t, int8(-5), prog.LineBase)
	assert.Equal(t, uint8(14), prog.LineRange)
	assert.Equal(t, uint8(13), prog.OpcodeBase)
	assert.Len(t, prog.StdOpLengths, 12)
	assert.Equal(t, []string{"src", "inc"}, prog.IncludeDirs)
	assert.Equal(t, files(), prog.Files)
	assert.Equal(t, prog.Offset+uint64(prog.UnitLength)+4, prog.End)
	assert.Equal(t, prog.Offset+10+uint64(prog.HeaderLength), prog.Start)
}

func TestParseHeaderVersion4(t *testing.T) {
	lp := dwarfbuilder.NewLineProgram(nil, line.FileEntry{Name: "a.c"})
	lp.Version = 4
	lp.MaxOpsPerInst = 1
	lp.SetAddress(0x10).Copy()

	prog := parse(t, lp)
	assert.Equal(t, uint16(4), prog.Version)
	rows, err := prog.Rows()
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, uint64(0x10), rows[0].Address)
}

func TestParseHeaderUnsupportedVersion(t *testing.T) {
	lp := dwarfbuilder.NewLineProgram(nil)
	lp.Version = 5

	data := lp.Bytes(binary.BigEndian)
	_, err := line.Parse(util.NewCursor(".debug_line", binary.BigEndian, data, 0))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported line table version 5")
}

func TestParseHeaderTruncated(t *testing.T) {
	lp := dwarfbuilder.NewLineProgram([]string{"src"}, files()...)
	data := lp.Bytes(binary.BigEndian)

	_, err := line.Parse(util.NewCursor(".debug_line", binary.BigEndian, data[:len(data)-4], 0))
	require.Error(t, err)
}

func TestSpecialOpcodeSequence(t *testing.T) {
	lp := dwarfbuilder.NewLineProgram(nil, line.FileEntry{Name: "main.c"})
	op := lp.SpecialOpcode(2, 1)
	require.Equal(t, uint8(47), op)
	lp.SetAddress(0x1000).Copy().Op(op).EndSequence()

	prog := parse(t, lp)
	sm := prog.NewStateMachine()

	row, err := sm.Next()
	require.NoError(t, err)
	assert.Equal(t, uint64(0x1000), row.Address)
	assert.Equal(t, int64(1), row.Line)
	assert.False(t, row.EndSequence)

	row, err = sm.Next()
	require.NoError(t, err)
	assert.Equal(t, uint64(0x1002), row.Address)
	assert.Equal(t, int64(2), row.Line)
	assert.False(t, row.EndSequence)

	row, err = sm.Next()
	require.NoError(t, err)
	assert.Equal(t, uint64(0x1002), row.Address)
	assert.Equal(t, int64(2), row.Line)
	assert.True(t, row.EndSequence)

	// registers are back to their initial values
	assert.Equal(t, line.Row{File: 1, Line: 1, IsStmt: true}, sm.State())

	_, err = sm.Next()
	assert.Equal(t, io.EOF, err)
}

func TestNegateStmtAndAdvanceLine(t *testing.T) {
	lp := dwarfbuilder.NewLineProgram(nil, line.FileEntry{Name: "main.c"})
	lp.SetAddress(0x100).
		AdvanceLine(9).Copy().
		NegateStmt().Copy().
		AdvanceLine(-3).Copy().
		NegateStmt().Copy()

	rows, err := parse(t, lp).Rows()
	require.NoError(t, err)
	require.Len(t, rows, 4)

	assert.Equal(t, line.Row{Address: 0x100, File: 1, Line: 10, IsStmt: true}, rows[0])
	assert.Equal(t, line.Row{Address: 0x100, File: 1, Line: 10, IsStmt: false}, rows[1])
	assert.Equal(t, line.Row{Address: 0x100, File: 1, Line: 7, IsStmt: false}, rows[2])
	assert.Equal(t, line.Row{Address: 0x100, File: 1, Line: 7, IsStmt: true}, rows[3])
}

func TestRegisters(t *testing.T) {
	lp := dwarfbuilder.NewLineProgram(nil, files()...)
	lp.SetAddress(0x2000).
		SetFile(2).SetColumn(5).SetDiscriminator(3).Copy().
		AdvancePC(6).Copy().
		ConstAddPC().Copy().
		Special(1, 0).
		EndSequence().
		SetAddress(0x3000).Copy()

	rows, err := parse(t, lp).Rows()
	require.NoError(t, err)
	require.Len(t, rows, 6)

	assert.Equal(t, uint64(0x2000), rows[0].Address)
	assert.Equal(t, uint64(2), rows[0].File)
	assert.Equal(t, uint64(5), rows[0].Column)
	assert.Equal(t, uint64(3), rows[0].Discriminator)

	// the discriminator only applies to one row
	assert.Equal(t, uint64(0x2006), rows[1].Address)
	assert.Equal(t, uint64(0), rows[1].Discriminator)
	assert.Equal(t, uint64(5), rows[1].Column)

	// (255 - 13) / 14 = 17
	assert.Equal(t, uint64(0x2006+17), rows[2].Address)
	assert.Equal(t, int64(1), rows[2].Line)

	assert.Equal(t, uint64(0x2006+18), rows[3].Address)

	assert.True(t, rows[4].EndSequence)
	assert.False(t, rows[4].IsStmt)

	assert.Equal(t, line.Row{Address: 0x3000, File: 1, Line: 1, IsStmt: true}, rows[5])
}

func TestMinInstLength(t *testing.T) {
	lp := dwarfbuilder.NewLineProgram(nil, line.FileEntry{Name: "main.c"})
	lp.MinInstLength = 2
	lp.SetAddress(0x100).AdvancePC(3).Copy().Special(2, 0)

	rows, err := parse(t, lp).Rows()
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, uint64(0x106), rows[0].Address)
	assert.Equal(t, uint64(0x10a), rows[1].Address)
}

func TestUnsupportedOpcodes(t *testing.T) {
	tests := []struct {
		name     string
		ops      []byte
		opcode   uint8
		extended bool
	}{
		{"set_basic_block", []byte{line.DW_LNS_set_basic_block}, line.DW_LNS_set_basic_block, false},
		{"fixed_advance_pc", []byte{line.DW_LNS_fixed_advance_pc, 0, 2}, line.DW_LNS_fixed_advance_pc, false},
		{"prologue_end", []byte{line.DW_LNS_prologue_end}, line.DW_LNS_prologue_end, false},
		{"epilogue_begin", []byte{line.DW_LNS_epilogue_begin}, line.DW_LNS_epilogue_begin, false},
		{"set_isa", []byte{line.DW_LNS_set_isa, 1}, line.DW_LNS_set_isa, false},
		{"define_file", []byte{0, 3, line.DW_LNE_define_file, 'a', 0}, line.DW_LNE_define_file, true},
		{"user extended", []byte{0, 1, 0x80}, 0x80, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lp := dwarfbuilder.NewLineProgram(nil, line.FileEntry{Name: "main.c"})
			lp.SetAddress(0x100).Copy()
			prog := parse(t, lp.Op(tt.ops...))
			opOff := prog.End - uint64(len(tt.ops))

			_, err := prog.Rows()
			require.Error(t, err)

			var operr *line.ErrUnsupportedOpcode
			require.True(t, errors.As(err, &operr))
			assert.Equal(t, tt.opcode, operr.Opcode)
			assert.Equal(t, tt.extended, operr.Extended)
			assert.Equal(t, opOff, operr.Offset)
		})
	}
}

func TestSetAddressOperandSize(t *testing.T) {
	lp := dwarfbuilder.NewLineProgram(nil, line.FileEntry{Name: "main.c"})
	lp.Op(0, 9, line.DW_LNE_set_address, 0, 0, 0, 0, 0, 0, 0x12, 0x34).Copy()
	rows, err := parse(t, lp).Rows()
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, uint64(0x1234), rows[0].Address)

	lp = dwarfbuilder.NewLineProgram(nil, line.FileEntry{Name: "main.c"})
	lp.Op(0, 3, line.DW_LNE_set_address, 0x12, 0x34).Copy()
	_, err = parse(t, lp).Rows()
	require.Error(t, err)
}

func TestFileName(t *testing.T) {
	lp := dwarfbuilder.NewLineProgram([]string{"src", "/usr/include"}, files()...)
	prog := parse(t, lp)

	tests := []struct {
		idx     uint64
		compDir string
		want    string
		ok      bool
	}{
		{1, "", "src/main.c", true},
		{2, "/work", "/usr/include/bmp.h", true},
		{3, "/work", "/work/gen.c", true},
		{3, "", "gen.c", true},
		{0, "", "", false},
		{4, "", "", false},
	}
	for _, tt := range tests {
		got, ok := prog.FileName(tt.idx, tt.compDir)
		assert.Equal(t, tt.ok, ok, "file %d", tt.idx)
		assert.Equal(t, tt.want, got, "file %d", tt.idx)
	}
}

func TestFileNameBadDirectory(t *testing.T) {
	lp := dwarfbuilder.NewLineProgram([]string{"src"}, line.FileEntry{Name: "x.c", DirIndex: 4})
	_, ok := parse(t, lp).FileName(1, "")
	assert.False(t, ok)
}
