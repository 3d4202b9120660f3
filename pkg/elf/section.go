package elf

import (
	"fmt"
)

// Names of the sections the resolver reads.
const (
	DebugInfo     = ".debug_info"
	DebugAbbrev   = ".debug_abbrev"
	DebugStr      = ".debug_str"
	DebugLine     = ".debug_line"
	RelaDebugInfo = ".rela.debug_info"
	RelaDebugLine = ".rela.debug_line"
)

// SectionType is the sh_type field of a section header.
type SectionType uint32

//nolint:golint
const (
	SHT_NULL     SectionType = 0
	SHT_PROGBITS SectionType = 1
	SHT_SYMTAB   SectionType = 2
	SHT_STRTAB   SectionType = 3
	SHT_RELA     SectionType = 4
	SHT_HASH     SectionType = 5
	SHT_DYNAMIC  SectionType = 6
	SHT_NOTE     SectionType = 7
	SHT_NOBITS   SectionType = 8
	SHT_REL      SectionType = 9
	SHT_SHLIB    SectionType = 10
	SHT_DYNSYM   SectionType = 11
)

var sectionTypeNames = map[SectionType]string{
	SHT_NULL:     "NULL",
	SHT_PROGBITS: "PROGBITS",
	SHT_SYMTAB:   "SYMTAB",
	SHT_STRTAB:   "STRTAB",
	SHT_RELA:     "RELA",
	SHT_HASH:     "HASH",
	SHT_DYNAMIC:  "DYNAMIC",
	SHT_NOTE:     "NOTE",
	SHT_NOBITS:   "NOBITS",
	SHT_REL:      "REL",
	SHT_SHLIB:    "SHLIB",
	SHT_DYNSYM:   "DYNSYM",
}

func (t SectionType) String() string {
	if s, ok := sectionTypeNames[t]; ok {
		return s
	}
	return fmt.Sprintf("%#x", uint32(t))
}

// Section is one used entry of the section header table.
type Section struct {
	Index      int
	Name       string
	NameOffset uint32
	Type       SectionType
	Offset     uint32
	Size       uint32
	Link       uint32
	Info       uint32
}

// End returns the file offset just past the section.
func (s *Section) End() uint64 {
	return uint64(s.Offset) + uint64(s.Size)
}

// Data returns the section's bytes out of the object image data.
func (s *Section) Data(data []byte) ([]byte, error) {
	if s.End() > uint64(len(data)) {
		return nil, fmt.Errorf("section %s [%#x, %#x) is beyond the end of the file", s.Name, s.Offset, s.End())
	}
	return data[s.Offset:s.End()], nil
}

// ErrMissingSection reports a required section absent from the object.
type ErrMissingSection struct {
	Name string
}

func (err *ErrMissingSection) Error() string {
	return fmt.Sprintf("missing %s section", err.Name)
}

// Sections is the ordered list of used section headers.
type Sections []*Section

// Lookup returns the section called name, or nil.
func (ss Sections) Lookup(name string) *Section {
	for _, s := range ss {
		if s.Name == name {
			return s
		}
	}
	return nil
}

// Find returns the section called name, failing with *ErrMissingSection
// when the object has none.
func (ss Sections) Find(name string) (*Section, error) {
	s := ss.Lookup(name)
	if s == nil {
		return nil, &ErrMissingSection{Name: name}
	}
	return s, nil
}
