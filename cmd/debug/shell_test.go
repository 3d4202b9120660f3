package debug

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hitzhangjie/m68kdbg/pkg/dwarf/dwarfbuilder"
	"github.com/hitzhangjie/m68kdbg/pkg/dwarf/info"
	"github.com/hitzhangjie/m68kdbg/pkg/dwarf/line"
	"github.com/hitzhangjie/m68kdbg/pkg/logflags"
	"github.com/hitzhangjie/m68kdbg/pkg/symbol"
)

// newROM returns the binary info of an image with three units:
//
//	main.c     [0x2000, 0x2020)  init [0x2000, 0x2010), main [0x2010, 0x2020)
//	nolines.c  [0x3000, 0x3010)  orphan, without a line table
//	broken.c   [0x4000, 0x4010)  broken, stmt_list outside .debug_line
func newROM(t *testing.T) *symbol.BinaryInfo {
	t.Helper()

	b := dwarfbuilder.New()

	lp := dwarfbuilder.NewLineProgram([]string{"src"}, line.FileEntry{Name: "main.c", DirIndex: 1})
	lp.SetAddress(0x2000).Copy(). // 0x2000 line 1
		Special(0x10, 2). // 0x2010 line 3
		SetColumn(9).Special(4, 1). // 0x2014 line 4
		AdvancePC(0xc).EndSequence()
	off := b.AddLineProgram(lp)

	b.BeginUnit(4, "main.c")
	b.Attr(info.AttrLowpc, dwarfbuilder.Address(0x2000))
	b.Attr(info.AttrHighpc, uint32(0x20))
	b.Attr(info.AttrStmtList, off)
	b.TagOpen(info.TagSubprogram, "init")
	b.Attr(info.AttrLowpc, dwarfbuilder.Address(0x2000))
	b.Attr(info.AttrHighpc, uint32(0x10))
	b.TagClose()
	b.TagOpen(info.TagSubprogram, "main")
	b.Attr(info.AttrLowpc, dwarfbuilder.Address(0x2010))
	b.Attr(info.AttrHighpc, dwarfbuilder.Address(0x2020))
	b.TagClose()
	b.EndUnit()

	b.BeginUnit(4, "nolines.c")
	b.Attr(info.AttrLowpc, dwarfbuilder.Address(0x3000))
	b.Attr(info.AttrHighpc, uint32(0x10))
	b.TagOpen(info.TagSubprogram, "orphan")
	b.Attr(info.AttrLowpc, dwarfbuilder.Address(0x3000))
	b.Attr(info.AttrHighpc, uint32(0x10))
	b.TagClose()
	b.EndUnit()

	b.BeginUnit(4, "broken.c")
	b.Attr(info.AttrLowpc, dwarfbuilder.Address(0x4000))
	b.Attr(info.AttrHighpc, uint32(0x10))
	b.Attr(info.AttrStmtList, dwarfbuilder.SecOffset(0xffff))
	b.TagOpen(info.TagSubprogram, "broken")
	b.Attr(info.AttrLowpc, dwarfbuilder.Address(0x4000))
	b.Attr(info.AttrHighpc, uint32(0x10))
	b.TagClose()
	b.EndUnit()

	secs, err := b.Build()
	require.NoError(t, err)
	bi, err := symbol.New(secs.ELF())
	require.NoError(t, err)
	return bi
}

func newSession(t *testing.T, input string) (*DebugSession, *bytes.Buffer) {
	t.Helper()

	out := &bytes.Buffer{}
	s := NewDebugSession(newROM(t), strings.NewReader(input), out)
	CurrentSession = s
	t.Cleanup(func() { CurrentSession = nil })
	return s, out
}

func TestParseAddress(t *testing.T) {
	for _, tt := range []struct {
		in   string
		want uint64
	}{
		{"2000", 0x2000},
		{"0x2000", 0x2000},
		{"0X00ff", 0xff},
		{"deadBEEF", 0xdeadbeef},
	} {
		pc, err := ParseAddress(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, pc, tt.in)
	}

	for _, in := range []string{"", "0x", "main", "-1", "12 34"} {
		_, err := ParseAddress(in)
		assert.Error(t, err, in)
	}
}

func TestLookup(t *testing.T) {
	bi := newROM(t)

	tests := []struct {
		addr string
		want string
	}{
		{"2000", ">init src/main.c 1 0"},
		{"0x200f", ">init src/main.c 1 0"},
		{"2010", ">main src/main.c 3 0"},
		{"201f", ">main src/main.c 4 9"},
		{"1000", ">not found in decode_funcname"},
		{"2020", ">not found in decode_funcname"},
		{"3004", ">not found in decode_file_line, funcname: orphan"},
		{"4000", ">not found"},
		{"xyz", ">not found"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Lookup(bi, tt.addr), tt.addr)
	}
}

func TestPipeSession(t *testing.T) {
	input := strings.Join([]string{
		"2000",
		"",
		"  0x2010  ",
		"lookup 3004 1000",
		"where 201f",
		"func 2014",
		"func 5000",
		"bogus",
		"quit",
		"2000",
	}, "\n")

	s, out := newSession(t, input)
	require.False(t, s.Interactive())
	s.Start()

	want := []string{
		">init src/main.c 1 0",
		">main src/main.c 3 0",
		">not found in decode_file_line, funcname: orphan",
		">not found in decode_funcname",
		">main src/main.c 4 9",
		"main [0x2010, 0x2020) in main.c",
		">not found in decode_funcname",
		">not found",
	}
	assert.Equal(t, want, strings.Split(strings.TrimSuffix(out.String(), "\n"), "\n"))
	assert.True(t, s.stopped())
	assert.Equal(t, uint64(6), s.seq.Load())
}

// replies returns the lines of out that answer a query.
func replies(out string) []string {
	var lines []string
	for _, ln := range strings.Split(out, "\n") {
		if strings.HasPrefix(ln, ">") {
			lines = append(lines, ln)
		}
	}
	return lines
}

func TestPipeSessionHelpFlag(t *testing.T) {
	input := strings.Join([]string{
		"lookup --help",
		"2000",
		"units -h",
		"2010",
		"units",
		"quit",
	}, "\n")

	s, out := newSession(t, input)
	s.Start()

	want := []string{
		">not found",
		">init src/main.c 1 0",
		">main src/main.c 3 0",
	}
	assert.Equal(t, want, replies(out.String()))
	// the usage of units, then its table
	assert.Contains(t, out.String(), "help for units")
	assert.Contains(t, out.String(), "COMP_DIR")

	help, err := unitsCmd.Flags().GetBool("help")
	require.NoError(t, err)
	assert.False(t, help)
}

func TestPipeSessionAlwaysReplies(t *testing.T) {
	s, out := newSession(t, "-2000\n--\n-h\nlookup\n2000\nquit\n")
	s.Start()

	assert.Equal(t, ">not found\n>not found\n>not found\n>not found\n>init src/main.c 1 0\n", out.String())
}

func TestLookupReportsCause(t *testing.T) {
	buf := &bytes.Buffer{}
	logflags.SetOutput(buf)
	defer logflags.Close()

	assert.Equal(t, ">not found", Lookup(newROM(t), "4000"))
	assert.Contains(t, buf.String(), "level=error")
	assert.Contains(t, buf.String(), "DW_AT_stmt_list")
}

func TestPipeSessionEndOfInput(t *testing.T) {
	s, out := newSession(t, "2000\n3000")

	var exited bool
	s.AtExit(func() { exited = true })
	s.Start()

	assert.Equal(t, ">init src/main.c 1 0\n>not found in decode_file_line, funcname: orphan\n", out.String())
	assert.True(t, exited)
	assert.False(t, s.stopped())
}

func TestStopTwice(t *testing.T) {
	s, _ := newSession(t, "")
	s.Stop()
	assert.NotPanics(t, s.Stop)
}

func TestListings(t *testing.T) {
	s, out := newSession(t, "units\nfuncs\n")
	s.Start()

	txt := out.String()
	for _, want := range []string{"main.c", "nolines.c", "broken.c", "0xffff", "init", "orphan", "0x2010"} {
		assert.Contains(t, txt, want)
	}
}

func TestHelpMessageByGroups(t *testing.T) {
	_, _ = newSession(t, "")

	msg := helpMessageByGroups(debugRootCmd)
	resolve := strings.Index(msg, "- [resolve]")
	infos := strings.Index(msg, "- [info]")
	other := strings.Index(msg, "- [other]")
	require.True(t, resolve >= 0 && infos > resolve && other > infos, msg)

	assert.Contains(t, msg, "lookup")
	assert.Contains(t, msg, "units")
	assert.Contains(t, msg, "exit")
	assert.Contains(t, msg, "help")
}

func TestCompleter(t *testing.T) {
	assert.ElementsMatch(t, []string{"func", "funcs"}, completer("fu"))
	assert.Contains(t, completer("q"), "quit")
}
