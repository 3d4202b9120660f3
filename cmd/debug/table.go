package debug

import (
	"fmt"
	"io"
	"strconv"

	"github.com/olekukonko/tablewriter"

	"github.com/hitzhangjie/m68kdbg/pkg/symbol"
)

// NewTable returns a borderless, left aligned table writing to w.
func NewTable(w io.Writer, header ...string) *tablewriter.Table {
	table := tablewriter.NewWriter(w)
	table.SetHeader(header)
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(false)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetBorder(false)
	return table
}

// Hex formats v as a 0x prefixed hexadecimal number.
func Hex(v uint64) string {
	return fmt.Sprintf("%#x", v)
}

// PrintUnits writes one row per compilation unit of bi.
func PrintUnits(w io.Writer, bi *symbol.BinaryInfo) error {
	units, err := bi.CompileUnits()
	if err != nil {
		return err
	}

	table := NewTable(w, "OFFSET", "VERSION", "NAME", "COMP_DIR", "LOW_PC", "HIGH_PC", "STMT_LIST")
	for _, cu := range units {
		top, err := cu.TopLevel()
		if err != nil {
			return err
		}

		row := []string{Hex(cu.Offset), strconv.Itoa(int(cu.Version)), cu.Name(), cu.CompDir(), "-", "-", "-"}
		if lowpc, highpc, ok := top.PCRange(); ok {
			row[4], row[5] = Hex(lowpc), Hex(highpc)
		}
		off, ok, err := cu.StmtList()
		if err != nil {
			return err
		}
		if ok {
			row[6] = Hex(off)
		}
		table.Append(row)
	}
	table.Render()
	return nil
}

// PrintFunctions writes one row per function of bi.
func PrintFunctions(w io.Writer, bi *symbol.BinaryInfo) error {
	fns, err := bi.Functions()
	if err != nil {
		return err
	}

	table := NewTable(w, "NAME", "LOW_PC", "HIGH_PC", "UNIT")
	for _, fn := range fns {
		table.Append([]string{fn.Name, Hex(fn.LowPC), Hex(fn.HighPC), fn.CU.Name()})
	}
	table.Render()
	return nil
}
