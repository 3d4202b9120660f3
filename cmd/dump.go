/*
Copyright © 2020 hit.zhangjie@gmail.com

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package cmd

import (
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/hitzhangjie/m68kdbg/cmd/debug"
	"github.com/hitzhangjie/m68kdbg/pkg/elf"
	"github.com/hitzhangjie/m68kdbg/pkg/symbol"
)

// dumpCmd represents the dump command
var dumpCmd = &cobra.Command{
	Use:   "dump",
	Short: "print the tables decoded from the ELF object",
	Long: `Print the tables m68kdbg decodes from the ELF object: the section
headers, the relocation records, the abbreviation tables, the compilation
units and the line number matrices.`,
}

func newDumpCmd(use, short string, fn func(io.Writer, *symbol.BinaryInfo) error) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			bi, err := loadBinary()
			if err != nil {
				return err
			}
			return fn(cmd.OutOrStdout(), bi)
		},
	}
}

func init() {
	dumpCmd.AddCommand(
		newDumpCmd("sections", "print the section headers", dumpSections),
		newDumpCmd("relocs", "print the .debug_info and .debug_line relocations", dumpRelocs),
		newDumpCmd("abbrev", "print the abbreviation table of every unit", dumpAbbrevs),
		newDumpCmd("units", "print the compilation units", debug.PrintUnits),
		newDumpCmd("funcs", "print the functions with a code range", debug.PrintFunctions),
		newDumpCmd("lines", "print the line number matrix of every unit", dumpLines),
	)
	rootCmd.AddCommand(dumpCmd)
}

func dumpSections(w io.Writer, bi *symbol.BinaryInfo) error {
	table := debug.NewTable(w, "IDX", "NAME", "TYPE", "OFFSET", "SIZE", "LINK", "INFO")
	for _, sec := range bi.File.Sections {
		table.Append([]string{
			strconv.Itoa(sec.Index),
			sec.Name,
			sec.Type.String(),
			debug.Hex(uint64(sec.Offset)),
			debug.Hex(uint64(sec.Size)),
			strconv.Itoa(int(sec.Link)),
			strconv.Itoa(int(sec.Info)),
		})
	}
	table.Render()
	return nil
}

func dumpRelocs(w io.Writer, bi *symbol.BinaryInfo) error {
	table := debug.NewTable(w, "SECTION", "OFFSET", "TYPE", "SYM", "ADDEND")
	for _, v := range []struct {
		name   string
		relocs elf.Relocations
	}{
		{elf.RelaDebugInfo, bi.InfoRelocs},
		{elf.RelaDebugLine, bi.LineRelocs},
	} {
		for _, r := range v.relocs {
			table.Append([]string{
				v.name,
				debug.Hex(uint64(uint32(r.Offset))),
				strconv.Itoa(int(r.Info.Type())),
				strconv.Itoa(int(r.Info.Sym())),
				debug.Hex(uint64(uint32(r.Addend))),
			})
		}
	}
	table.Render()
	return nil
}

func dumpAbbrevs(w io.Writer, bi *symbol.BinaryInfo) error {
	units, err := bi.CompileUnits()
	if err != nil {
		return err
	}

	table := debug.NewTable(w, "UNIT", "CODE", "TAG", "CHILDREN", "ATTRIBUTES")
	for _, cu := range units {
		abbrevs := cu.Abbrevs()
		codes := make([]uint64, 0, len(abbrevs))
		for code := range abbrevs {
			codes = append(codes, code)
		}
		sort.Slice(codes, func(i, j int) bool { return codes[i] < codes[j] })

		for _, code := range codes {
			a := abbrevs[code]
			attrs := make([]string, 0, len(a.Attrs))
			for _, spec := range a.Attrs {
				attrs = append(attrs, fmt.Sprintf("%s:%s", spec.Attr, spec.Form))
			}
			table.Append([]string{
				debug.Hex(cu.Offset),
				strconv.FormatUint(code, 10),
				a.Tag.String(),
				strconv.FormatBool(a.Children),
				strings.Join(attrs, " "),
			})
		}
	}
	table.Render()
	return nil
}

func dumpLines(w io.Writer, bi *symbol.BinaryInfo) error {
	units, err := bi.CompileUnits()
	if err != nil {
		return err
	}

	table := debug.NewTable(w, "UNIT", "ADDRESS", "FILE", "LINE", "COLUMN", "STMT", "END")
	for _, cu := range units {
		prog, err := cu.LineProgram()
		if err != nil {
			return fmt.Errorf("compile unit %s: %w", cu.Name(), err)
		}
		if prog == nil {
			continue
		}
		rows, err := prog.Rows()
		if err != nil {
			return fmt.Errorf("compile unit %s: %w", cu.Name(), err)
		}
		for _, row := range rows {
			file, ok := prog.FileName(row.File, cu.CompDir())
			if !ok {
				file = fmt.Sprintf("#%d", row.File)
			}
			table.Append([]string{
				cu.Name(),
				debug.Hex(row.Address),
				file,
				strconv.FormatInt(row.Line, 10),
				strconv.FormatUint(row.Column, 10),
				strconv.FormatBool(row.IsStmt),
				strconv.FormatBool(row.EndSequence),
			})
		}
	}
	table.Render()
	return nil
}
