package info

import (
	"fmt"

	"github.com/hitzhangjie/m68kdbg/pkg/dwarf/util"
)

// AttrSpec is one (attribute, form) pair of an abbreviation.
type AttrSpec struct {
	Attr Attr
	Form Form
	// Implicit is the value of a DW_FORM_implicit_const attribute, stored
	// in the abbreviation instead of the DIE.
	Implicit int64
}

// Abbrev describes the layout shared by every DIE using its code.
type Abbrev struct {
	Code     uint64
	Tag      Tag
	Children bool
	Attrs    []AttrSpec
}

// AbbrevTable maps abbreviation codes to their declaration.
type AbbrevTable map[uint64]*Abbrev

// ParseAbbrevTable decodes the abbreviation table starting at the cursor
// position, stopping at the zero code that terminates it.
func ParseAbbrevTable(c *util.Cursor) (AbbrevTable, error) {
	table := AbbrevTable{}

	for {
		code, err := c.ULEB128()
		if err != nil {
			return nil, fmt.Errorf("invalid abbreviation code: %w", err)
		}
		if code == 0 {
			break
		}

		tag, err := c.ULEB128()
		if err != nil {
			return nil, fmt.Errorf("invalid tag of abbreviation %d: %w", code, err)
		}
		children, err := c.Uint8()
		if err != nil {
			return nil, fmt.Errorf("invalid children flag of abbreviation %d: %w", code, err)
		}

		abbrev := &Abbrev{Code: code, Tag: Tag(tag), Children: children != 0}
		for {
			attr, err := c.ULEB128()
			if err != nil {
				return nil, fmt.Errorf("invalid attribute of abbreviation %d: %w", code, err)
			}
			form, err := c.ULEB128()
			if err != nil {
				return nil, fmt.Errorf("invalid form of abbreviation %d: %w", code, err)
			}
			if attr == 0 && form == 0 {
				break
			}

			spec := AttrSpec{Attr: Attr(attr), Form: Form(form)}
			if spec.Form == FormImplicitConst {
				if spec.Implicit, err = c.SLEB128(); err != nil {
					return nil, fmt.Errorf("invalid implicit constant of abbreviation %d: %w", code, err)
				}
			}
			abbrev.Attrs = append(abbrev.Attrs, spec)
		}

		table[code] = abbrev
	}

	return table, nil
}
