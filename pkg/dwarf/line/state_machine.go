package line

import (
	"fmt"
	"io"

	"github.com/hitzhangjie/m68kdbg/pkg/dwarf/util"
)

// Row is a snapshot of the line state machine registers, one row of the
// line matrix.
type Row struct {
	Address       uint64
	OpIndex       uint64
	File          uint64
	Line          int64
	Column        uint64
	IsStmt        bool
	BasicBlock    bool
	EndSequence   bool
	PrologueEnd   bool
	EpilogueBegin bool
	ISA           uint64
	Discriminator uint64
}

// Standard opcodes
const (
	DW_LNS_copy             = 1
	DW_LNS_advance_pc       = 2
	DW_LNS_advance_line     = 3
	DW_LNS_set_file         = 4
	DW_LNS_set_column       = 5
	DW_LNS_negate_stmt      = 6
	DW_LNS_set_basic_block  = 7
	DW_LNS_const_add_pc     = 8
	DW_LNS_fixed_advance_pc = 9
	DW_LNS_prologue_end     = 10
	DW_LNS_epilogue_begin   = 11
	DW_LNS_set_isa          = 12
)

// Extended opcodes
const (
	DW_LNE_end_sequence      = 1
	DW_LNE_set_address       = 2
	DW_LNE_define_file       = 3
	DW_LNE_set_discriminator = 4
)

// ErrUnsupportedOpcode is returned for an opcode the state machine does not
// implement.
type ErrUnsupportedOpcode struct {
	Opcode   uint8
	Extended bool
	Offset   uint64
}

func (err *ErrUnsupportedOpcode) Error() string {
	if err.Extended {
		return fmt.Sprintf("extended opcode %d at %#x is unsupported", err.Opcode, err.Offset)
	}
	return fmt.Sprintf("opcode %d at %#x is unsupported", err.Opcode, err.Offset)
}

// opcodefn executes one opcode whose byte has been read from sm.c and
// reports whether it appended a row to the matrix.
type opcodefn func(sm *StateMachine) (bool, error)

var standardopcodes = map[uint8]opcodefn{
	DW_LNS_copy:         copyfn,
	DW_LNS_advance_pc:   advancepc,
	DW_LNS_advance_line: advanceline,
	DW_LNS_set_file:     setfile,
	DW_LNS_set_column:   setcolumn,
	DW_LNS_negate_stmt:  negatestmt,
	DW_LNS_const_add_pc: constaddpc,
}

var extendedopcodes = map[uint8]opcodefn{
	DW_LNE_end_sequence:      endsequence,
	DW_LNE_set_address:       setaddress,
	DW_LNE_set_discriminator: setdiscriminator,
}

// StateMachine runs a line number program. It is forward only; create a new
// one to start over.
type StateMachine struct {
	prog  *Program
	c     *util.Cursor
	state Row
	row   Row

	// opOff is the offset of the opcode being executed
	opOff uint64
	// extEnd is the end of the extended opcode being executed
	extEnd uint64
}

// NewStateMachine returns a state machine at the start of p's program.
func (p *Program) NewStateMachine() *StateMachine {
	sm := &StateMachine{
		prog: p,
		c:    p.c.Sub(".debug_line", p.Start, p.End),
	}
	sm.reset()
	return sm
}

func (sm *StateMachine) reset() {
	sm.state = Row{
		File:   1,
		Line:   1,
		IsStmt: sm.prog.DefaultIsStmt,
	}
}

// State returns the current registers.
func (sm *StateMachine) State() Row {
	return sm.state
}

// Next executes opcodes until one appends a row, and returns that row. It
// returns io.EOF once the program is exhausted.
func (sm *StateMachine) Next() (Row, error) {
	for sm.c.Len() > 0 {
		sm.opOff = sm.c.Pos()
		opcode, err := sm.c.Uint8()
		if err != nil {
			return Row{}, err
		}

		var emitted bool
		switch {
		case opcode >= sm.prog.OpcodeBase:
			emitted = sm.special(opcode)
		case opcode == 0:
			emitted, err = sm.extended()
		default:
			fn, ok := standardopcodes[opcode]
			if !ok {
				return Row{}, &ErrUnsupportedOpcode{Opcode: opcode, Offset: sm.opOff}
			}
			emitted, err = fn(sm)
		}
		if err != nil {
			return Row{}, err
		}
		if emitted {
			return sm.row, nil
		}
	}
	return Row{}, io.EOF
}

// Rows runs the whole program and returns the line matrix.
func (p *Program) Rows() ([]Row, error) {
	var rows []Row
	sm := p.NewStateMachine()
	for {
		row, err := sm.Next()
		if err == io.EOF {
			return rows, nil
		}
		if err != nil {
			return nil, err
		}
		rows = append(rows, row)
	}
}

// emit appends the current registers to the matrix and clears the
// registers that only apply to a single row.
func (sm *StateMachine) emit() {
	sm.row = sm.state
	sm.state.Discriminator = 0
	sm.state.BasicBlock = false
	sm.state.PrologueEnd = false
	sm.state.EpilogueBegin = false
}

// advance moves address and op_index by operationAdvance operations.
//
// see DWARFv4 6.2.5.1 Special Opcodes
func (sm *StateMachine) advance(operationAdvance uint64) {
	p := sm.prog
	maxOps := uint64(p.MaxOpsPerInst)
	sm.state.Address += uint64(p.MinInstLength) * ((sm.state.OpIndex + operationAdvance) / maxOps)
	sm.state.OpIndex = (sm.state.OpIndex + operationAdvance) % maxOps
}

func (sm *StateMachine) special(opcode uint8) bool {
	p := sm.prog
	adjusted := uint64(opcode - p.OpcodeBase)
	sm.advance(adjusted / uint64(p.LineRange))
	sm.state.Line += int64(p.LineBase) + int64(adjusted%uint64(p.LineRange))
	sm.emit()
	return true
}

func (sm *StateMachine) extended() (bool, error) {
	length, err := sm.c.ULEB128()
	if err != nil {
		return false, err
	}
	if length == 0 || length > sm.c.Len() {
		return false, fmt.Errorf("extended opcode at %#x has bad length %d", sm.opOff, length)
	}
	sm.extEnd = sm.c.Pos() + length

	opcode, err := sm.c.Uint8()
	if err != nil {
		return false, err
	}
	fn, ok := extendedopcodes[opcode]
	if !ok {
		return false, &ErrUnsupportedOpcode{Opcode: opcode, Extended: true, Offset: sm.opOff}
	}
	emitted, err := fn(sm)
	if err != nil {
		return false, err
	}
	sm.c.Seek(sm.extEnd)
	return emitted, nil
}

func copyfn(sm *StateMachine) (bool, error) {
	sm.emit()
	return true, nil
}

func advancepc(sm *StateMachine) (bool, error) {
	operand, err := sm.c.ULEB128()
	if err != nil {
		return false, err
	}
	sm.state.Address += operand * uint64(sm.prog.MinInstLength)
	return false, nil
}

func advanceline(sm *StateMachine) (bool, error) {
	operand, err := sm.c.SLEB128()
	if err != nil {
		return false, err
	}
	sm.state.Line += operand
	return false, nil
}

func setfile(sm *StateMachine) (bool, error) {
	operand, err := sm.c.ULEB128()
	if err != nil {
		return false, err
	}
	sm.state.File = operand
	return false, nil
}

func setcolumn(sm *StateMachine) (bool, error) {
	operand, err := sm.c.ULEB128()
	if err != nil {
		return false, err
	}
	sm.state.Column = operand
	return false, nil
}

func negatestmt(sm *StateMachine) (bool, error) {
	sm.state.IsStmt = !sm.state.IsStmt
	return false, nil
}

func constaddpc(sm *StateMachine) (bool, error) {
	p := sm.prog
	adjusted := uint64(255 - p.OpcodeBase)
	sm.advance(adjusted / uint64(p.LineRange))
	return false, nil
}

func endsequence(sm *StateMachine) (bool, error) {
	sm.state.EndSequence = true
	sm.state.IsStmt = false
	sm.emit()
	sm.reset()
	return true, nil
}

func setaddress(sm *StateMachine) (bool, error) {
	var err error
	switch sm.extEnd - sm.c.Pos() {
	case 4:
		var addr uint32
		addr, err = sm.c.Uint32()
		sm.state.Address = uint64(addr)
	case 8:
		sm.state.Address, err = sm.c.Uint64()
	default:
		return false, fmt.Errorf("DW_LNE_set_address at %#x has a %d byte operand", sm.opOff, sm.extEnd-sm.c.Pos())
	}
	if err != nil {
		return false, err
	}
	sm.state.OpIndex = 0
	return false, nil
}

func setdiscriminator(sm *StateMachine) (bool, error) {
	operand, err := sm.c.ULEB128()
	if err != nil {
		return false, err
	}
	sm.state.Discriminator = operand
	return false, nil
}
