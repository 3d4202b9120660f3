package elf_test

import (
	"encoding/binary"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hitzhangjie/m68kdbg/pkg/dwarf/dwarfbuilder"
	"github.com/hitzhangjie/m68kdbg/pkg/dwarf/info"
	"github.com/hitzhangjie/m68kdbg/pkg/elf"
)

// image returns an object with one unit whose low_pc is relocated to
// 0x1234, and the .debug_info offset of that low_pc.
func image(t *testing.T) ([]byte, uint32) {
	t.Helper()

	b := dwarfbuilder.New()
	b.BeginUnit(4, "a.c")
	off := b.InfoOffset()
	b.AttrReloc(info.AttrLowpc, info.FormAddr, 0x1234)
	b.EndUnit()

	secs, err := b.Build()
	require.NoError(t, err)
	return secs.ELF(), off
}

func TestNewFile(t *testing.T) {
	img, _ := image(t)

	f, err := elf.NewFile(img)
	require.NoError(t, err)
	assert.Equal(t, binary.BigEndian, f.ByteOrder)

	var names []string
	for i, sec := range f.Sections {
		names = append(names, sec.Name)
		assert.Equal(t, i+1, sec.Index, sec.Name)
		data, err := sec.Data(img)
		require.NoError(t, err)
		assert.Len(t, data, int(sec.Size))
	}
	assert.Equal(t, []string{
		elf.DebugInfo, elf.DebugAbbrev, elf.DebugStr, elf.DebugLine, elf.RelaDebugInfo, ".shstrtab",
	}, names)

	rela := f.Sections.Lookup(elf.RelaDebugInfo)
	require.NotNil(t, rela)
	assert.Equal(t, elf.SHT_RELA, rela.Type)
	assert.Equal(t, uint32(1), rela.Info)
	assert.Equal(t, elf.SHT_PROGBITS, f.Sections.Lookup(elf.DebugInfo).Type)
}

func TestNewFileErrors(t *testing.T) {
	img, _ := image(t)

	tests := []struct {
		name  string
		patch func([]byte) []byte
	}{
		{"short", func(b []byte) []byte { return b[:0x20] }},
		{"magic", func(b []byte) []byte { b[1] = 'X'; return b }},
		{"class64", func(b []byte) []byte { b[4] = 2; return b }},
		{"encoding", func(b []byte) []byte { b[5] = 3; return b }},
		{"shoff", func(b []byte) []byte { binary.BigEndian.PutUint32(b[0x20:], 0xffffff); return b }},
		{"shentsize", func(b []byte) []byte { binary.BigEndian.PutUint16(b[0x2e:], 8); return b }},
	}
	for _, tt := range tests {
		data := tt.patch(append([]byte(nil), img...))
		_, err := elf.NewFile(data)
		assert.Error(t, err, tt.name)
	}
}

func TestFind(t *testing.T) {
	img, _ := image(t)
	f, err := elf.NewFile(img)
	require.NoError(t, err)

	sec, err := f.Sections.Find(elf.DebugLine)
	require.NoError(t, err)
	assert.Equal(t, elf.DebugLine, sec.Name)

	assert.Nil(t, f.Sections.Lookup(elf.RelaDebugLine))
	_, err = f.Sections.Find(elf.RelaDebugLine)
	var merr *elf.ErrMissingSection
	require.True(t, errors.As(err, &merr))
	assert.Equal(t, elf.RelaDebugLine, merr.Name)
}

func TestSectionDataOutOfRange(t *testing.T) {
	sec := &elf.Section{Name: ".debug_info", Offset: 0x10, Size: 0x20}
	_, err := sec.Data(make([]byte, 0x2f))
	assert.Error(t, err)

	data, err := sec.Data(make([]byte, 0x30))
	require.NoError(t, err)
	assert.Len(t, data, 0x20)
}

func TestRelocations(t *testing.T) {
	img, off := image(t)
	f, err := elf.NewFile(img)
	require.NoError(t, err)

	relocs, err := f.ParseRelocations(f.Sections.Lookup(elf.RelaDebugInfo))
	require.NoError(t, err)
	require.Len(t, relocs, 1)

	r := relocs[0]
	assert.Equal(t, int32(off), r.Offset)
	assert.Equal(t, int32(0x1234), r.Addend)
	assert.Equal(t, uint8(dwarfbuilder.R_68K_32), r.Info.Type())
	assert.Equal(t, uint32(1), r.Info.Sym())

	base := uint64(f.Sections.Lookup(elf.DebugInfo).Offset)
	at := base + uint64(off)
	assert.Equal(t, uint32(0), binary.BigEndian.Uint32(img[at:]))

	// outside [lo, hi): untouched
	n, err := relocs.Apply(img, f.ByteOrder, base, int64(off)+1, 0x100)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	assert.Equal(t, uint32(0), binary.BigEndian.Uint32(img[at:]))

	n, err = relocs.Apply(img, f.ByteOrder, base, 0, int64(off)+1)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, uint32(0x1234), binary.BigEndian.Uint32(img[at:]))

	_, err = relocs.Apply(img, f.ByteOrder, uint64(len(img)), 0, 0x100)
	assert.Error(t, err)
}

func TestParseRelocationsBadSize(t *testing.T) {
	img, _ := image(t)
	f, err := elf.NewFile(img)
	require.NoError(t, err)

	sec := *f.Sections.Lookup(elf.RelaDebugInfo)
	sec.Size = 13
	_, err = f.ParseRelocations(&sec)
	assert.Error(t, err)
}

func TestSectionTypeString(t *testing.T) {
	assert.Equal(t, "RELA", elf.SHT_RELA.String())
	assert.Equal(t, "PROGBITS", elf.SHT_PROGBITS.String())
	assert.Equal(t, "0x70000000", elf.SectionType(0x70000000).String())
}
