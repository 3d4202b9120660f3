package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hitzhangjie/m68kdbg/pkg/dwarf/dwarfbuilder"
	"github.com/hitzhangjie/m68kdbg/pkg/dwarf/info"
	"github.com/hitzhangjie/m68kdbg/pkg/dwarf/line"
)

// writeROM writes a relocatable image with one unit, main.c, covering
// [0x2000, 0x2010) and returns its path.
func writeROM(t *testing.T) string {
	t.Helper()

	b := dwarfbuilder.New()
	lp := dwarfbuilder.NewLineProgram(nil, line.FileEntry{Name: "main.c"})
	lp.SetAddress(0x2000).AdvanceLine(9).SetColumn(2).Copy().AdvancePC(0x10).EndSequence()
	off := b.AddLineProgram(lp)

	b.BeginUnit(4, "main.c")
	b.Attr(info.AttrCompDir, "/work")
	b.AttrReloc(info.AttrLowpc, info.FormAddr, 0x2000)
	b.Attr(info.AttrHighpc, uint32(0x10))
	b.Attr(info.AttrStmtList, off)
	b.TagOpen(info.TagSubprogram, "main")
	b.AttrReloc(info.AttrLowpc, info.FormAddr, 0x2000)
	b.Attr(info.AttrHighpc, uint32(0x10))
	b.TagClose()
	b.EndUnit()

	secs, err := b.Build()
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "rom.out")
	require.NoError(t, os.WriteFile(path, secs.ELF(), 0o644))
	return path
}

func run(t *testing.T, args ...string) string {
	t.Helper()

	out := &bytes.Buffer{}
	rootCmd.SetOut(out)
	rootCmd.SetArgs(args)
	require.NoError(t, rootCmd.Execute())
	return out.String()
}

func TestOneShotLookup(t *testing.T) {
	path := writeROM(t)

	assert.Equal(t, ">main /work/main.c 10 2\n", run(t, "--elf", path, "0x2008"))
	assert.Equal(t, ">not found in decode_funcname\n", run(t, "--elf", path, "2010"))
}

func TestMissingELF(t *testing.T) {
	rootCmd.SetArgs([]string{"--elf", filepath.Join(t.TempDir(), "none.out"), "2000"})
	assert.Error(t, rootCmd.Execute())
}

func TestDump(t *testing.T) {
	path := writeROM(t)

	for _, tt := range []struct {
		sub  string
		want []string
	}{
		{"sections", []string{".debug_info", ".rela.debug_info", "RELA", "PROGBITS"}},
		{"relocs", []string{".rela.debug_info", "0x2000"}},
		{"abbrev", []string{"DW_TAG_compile_unit", "DW_TAG_subprogram", "DW_AT_low_pc:DW_FORM_addr"}},
		{"units", []string{"main.c", "/work", "0x2000", "0x2010"}},
		{"funcs", []string{"main", "0x2000", "0x2010"}},
		{"lines", []string{"/work/main.c", "0x2000", "10", "true"}},
	} {
		txt := run(t, "dump", tt.sub, "--elf", path)
		for _, want := range tt.want {
			assert.Contains(t, txt, want, "dump %s", tt.sub)
		}
	}
}

func TestLogFlagsWithoutLog(t *testing.T) {
	path := writeROM(t)

	rootCmd.SetArgs([]string{"--elf", path, "--log-output", "symbol", "2000"})
	assert.Error(t, rootCmd.Execute())
	rootCmd.SetArgs([]string{"--elf", path, "--log-output", "", "2000"})
	assert.NoError(t, rootCmd.Execute())
}
