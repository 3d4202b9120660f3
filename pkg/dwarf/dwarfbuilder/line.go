package dwarfbuilder

import (
	"bytes"
	"encoding/binary"

	"github.com/hitzhangjie/m68kdbg/pkg/dwarf/line"
)

// standard_opcode_lengths for opcodes 1 to 12
var stdOpLengths = []uint8{0, 1, 1, 1, 1, 0, 0, 0, 1, 0, 0, 1}

// LineProgram builds one line table. The opcode methods append to the
// program and return lp so calls can be chained.
type LineProgram struct {
	Version       uint16
	MinInstLength uint8
	MaxOpsPerInst uint8
	DefaultIsStmt bool
	LineBase      int8
	LineRange     uint8
	OpcodeBase    uint8
	IncludeDirs   []string
	Files         []line.FileEntry

	ops bytes.Buffer
	// addends of the relocated set_address operands, by position in ops
	relocs []lineReloc
}

type lineReloc struct {
	pos    int
	addend int32
}

// NewLineProgram returns a version 3 line table with the header values GCC
// emits for m68k.
func NewLineProgram(dirs []string, files ...line.FileEntry) *LineProgram {
	return &LineProgram{
		Version:       3,
		MinInstLength: 1,
		MaxOpsPerInst: 1,
		DefaultIsStmt: true,
		LineBase:      -5,
		LineRange:     14,
		OpcodeBase:    13,
		IncludeDirs:   dirs,
		Files:         files,
	}
}

// SpecialOpcode returns the special opcode advancing the address by
// addrDelta instructions and the line by lineDelta.
func (lp *LineProgram) SpecialOpcode(addrDelta uint64, lineDelta int) uint8 {
	return uint8(int(lineDelta)-int(lp.LineBase)+int(lp.LineRange)*int(addrDelta)) + lp.OpcodeBase
}

func (lp *LineProgram) extended(opcode uint8, operand []byte) *LineProgram {
	lp.ops.WriteByte(0)
	lp.ops.Write(encodeULEB128(uint64(len(operand) + 1)))
	lp.ops.WriteByte(opcode)
	lp.ops.Write(operand)
	return lp
}

// SetAddress appends DW_LNE_set_address with a 4-byte operand.
func (lp *LineProgram) SetAddress(addr uint32) *LineProgram {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], addr)
	return lp.extended(line.DW_LNE_set_address, b[:])
}

// SetAddressReloc appends DW_LNE_set_address with a zero operand filled by
// a .rela.debug_line record carrying addend.
func (lp *LineProgram) SetAddressReloc(addend int32) *LineProgram {
	// opcode 0, length 5, DW_LNE_set_address
	lp.relocs = append(lp.relocs, lineReloc{pos: lp.ops.Len() + 3, addend: addend})
	return lp.extended(line.DW_LNE_set_address, make([]byte, 4))
}

// EndSequence appends DW_LNE_end_sequence.
func (lp *LineProgram) EndSequence() *LineProgram {
	return lp.extended(line.DW_LNE_end_sequence, nil)
}

// SetDiscriminator appends DW_LNE_set_discriminator.
func (lp *LineProgram) SetDiscriminator(d uint64) *LineProgram {
	return lp.extended(line.DW_LNE_set_discriminator, encodeULEB128(d))
}

// Copy appends DW_LNS_copy.
func (lp *LineProgram) Copy() *LineProgram {
	lp.ops.WriteByte(line.DW_LNS_copy)
	return lp
}

// AdvancePC appends DW_LNS_advance_pc.
func (lp *LineProgram) AdvancePC(n uint64) *LineProgram {
	lp.ops.WriteByte(line.DW_LNS_advance_pc)
	lp.ops.Write(encodeULEB128(n))
	return lp
}

// AdvanceLine appends DW_LNS_advance_line.
func (lp *LineProgram) AdvanceLine(n int64) *LineProgram {
	lp.ops.WriteByte(line.DW_LNS_advance_line)
	lp.ops.Write(encodeSLEB128(n))
	return lp
}

// SetFile appends DW_LNS_set_file.
func (lp *LineProgram) SetFile(n uint64) *LineProgram {
	lp.ops.WriteByte(line.DW_LNS_set_file)
	lp.ops.Write(encodeULEB128(n))
	return lp
}

// SetColumn appends DW_LNS_set_column.
func (lp *LineProgram) SetColumn(n uint64) *LineProgram {
	lp.ops.WriteByte(line.DW_LNS_set_column)
	lp.ops.Write(encodeULEB128(n))
	return lp
}

// NegateStmt appends DW_LNS_negate_stmt.
func (lp *LineProgram) NegateStmt() *LineProgram {
	lp.ops.WriteByte(line.DW_LNS_negate_stmt)
	return lp
}

// ConstAddPC appends DW_LNS_const_add_pc.
func (lp *LineProgram) ConstAddPC() *LineProgram {
	lp.ops.WriteByte(line.DW_LNS_const_add_pc)
	return lp
}

// Special appends a special opcode, see SpecialOpcode.
func (lp *LineProgram) Special(addrDelta uint64, lineDelta int) *LineProgram {
	lp.ops.WriteByte(lp.SpecialOpcode(addrDelta, lineDelta))
	return lp
}

// Op appends raw opcode bytes.
func (lp *LineProgram) Op(b ...byte) *LineProgram {
	lp.ops.Write(b)
	return lp
}

// Bytes encodes the whole line table.
func (lp *LineProgram) Bytes(order binary.ByteOrder) []byte {
	b, _ := lp.encode(order)
	return b
}

// encode returns the line table and the offset of its first opcode.
func (lp *LineProgram) encode(order binary.ByteOrder) ([]byte, int) {
	var hdr bytes.Buffer
	hdr.WriteByte(lp.MinInstLength)
	if lp.Version >= 4 {
		hdr.WriteByte(lp.MaxOpsPerInst)
	}
	if lp.DefaultIsStmt {
		hdr.WriteByte(1)
	} else {
		hdr.WriteByte(0)
	}
	hdr.WriteByte(uint8(lp.LineBase))
	hdr.WriteByte(lp.LineRange)
	hdr.WriteByte(lp.OpcodeBase)
	for i := 0; i < int(lp.OpcodeBase)-1; i++ {
		if i < len(stdOpLengths) {
			hdr.WriteByte(stdOpLengths[i])
		} else {
			hdr.WriteByte(0)
		}
	}
	for _, dir := range lp.IncludeDirs {
		hdr.WriteString(dir)
		hdr.WriteByte(0)
	}
	hdr.WriteByte(0)
	for _, f := range lp.Files {
		hdr.WriteString(f.Name)
		hdr.WriteByte(0)
		hdr.Write(encodeULEB128(f.DirIndex))
		hdr.Write(encodeULEB128(f.MTime))
		hdr.Write(encodeULEB128(f.Length))
	}
	hdr.WriteByte(0)

	var out bytes.Buffer
	binary.Write(&out, order, uint32(2+4+hdr.Len()+lp.ops.Len())) // unit_length
	binary.Write(&out, order, lp.Version)
	binary.Write(&out, order, uint32(hdr.Len())) // header_length
	out.Write(hdr.Bytes())
	start := out.Len()
	out.Write(lp.ops.Bytes())
	return out.Bytes(), start
}
