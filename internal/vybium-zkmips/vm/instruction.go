// Package vm implements the native zkMIPS machine: its closed instruction
// set, the machine state and the tracing execution engine.
package vm

import (
	"fmt"
	"strings"

	"github.com/vybium/vybium-crypto/pkg/vybium-crypto/field"
)

// Opcode is a native instruction opcode. The set is closed: every switch over
// Opcode in the engine and in the constraint reducer is exhaustive.
type Opcode uint32

const (
	// ========== Arithmetic ==========

	// Add sets dst to src1 + src2
	Add Opcode = iota
	// Sub sets dst to src1 - src2
	Sub
	// Mull sets dst to the low word of src1 * src2
	Mull
	// Umulh sets dst to the high word of the unsigned product src1 * src2
	Umulh
	// Udiv sets dst to the unsigned quotient src1 / src2
	Udiv
	// Umod sets dst to the unsigned remainder src1 % src2
	Umod

	// ========== Logical ==========

	And
	Or
	Xor
	// Not sets dst to the bitwise complement of src1
	Not
	// Shl shifts src1 left by the low ShiftBits bits of src2
	Shl
	// Shr shifts src1 right (logical) by the low ShiftBits bits of src2
	Shr

	// ========== Comparison (dst <- 0 or 1) ==========

	// Cmpe tests src1 == src2
	Cmpe
	// Cmpne tests src1 != src2
	Cmpne
	// Cmpa tests src1 > src2 (unsigned)
	Cmpa
	// Cmpae tests src1 >= src2 (unsigned)
	Cmpae
	// Cmpg tests src1 > src2 (signed)
	Cmpg
	// Cmpge tests src1 >= src2 (signed)
	Cmpge

	// Mov copies src1 into dst
	Mov

	// ========== Control flow ==========
	// Conditional branches compare src1 with src2 and jump to the program
	// index held in Dst.

	Beq
	Bne
	// Blt branches if src1 < src2 (signed)
	Blt
	// Bge branches if src1 >= src2 (signed)
	Bge
	// Bltu branches if src1 < src2 (unsigned)
	Bltu
	// Bgeu branches if src1 >= src2 (unsigned)
	Bgeu
	// Jmp jumps to the program index src1
	Jmp

	// ========== Memory and tapes ==========

	// Load sets dst to memory[src1 + src2]
	Load
	// Store sets memory[src1 + src2] to register Dst
	Store
	// Read pulls the next word of tape src1 (0 public, 1 private) into dst
	Read

	// Answer halts the machine with answer src1
	Answer

	// NumOpcodes is the size of the instruction set
	NumOpcodes = iota
)

// Class groups opcodes by the shape of their semantics.
type Class int

const (
	ClassArithmetic Class = iota
	ClassLogical
	ClassComparison
	ClassMove
	ClassBranch
	ClassJump
	ClassMemory
	ClassTape
	ClassHalt
)

// OpcodeInfo describes an opcode's operand usage
type OpcodeInfo struct {
	Opcode      Opcode
	Name        string
	Description string
	Class       Class
	WritesDst   bool // dst register receives the result
	UsesSrc2    bool // src2 is read
}

// AllOpcodes maps each opcode to its info
var AllOpcodes = map[Opcode]OpcodeInfo{
	Add:    {Add, "ADD", "dst = src1 + src2", ClassArithmetic, true, true},
	Sub:    {Sub, "SUB", "dst = src1 - src2", ClassArithmetic, true, true},
	Mull:   {Mull, "MULL", "dst = low(src1 * src2)", ClassArithmetic, true, true},
	Umulh:  {Umulh, "UMULH", "dst = high(src1 * src2)", ClassArithmetic, true, true},
	Udiv:   {Udiv, "UDIV", "dst = src1 / src2", ClassArithmetic, true, true},
	Umod:   {Umod, "UMOD", "dst = src1 % src2", ClassArithmetic, true, true},
	And:    {And, "AND", "dst = src1 & src2", ClassLogical, true, true},
	Or:     {Or, "OR", "dst = src1 | src2", ClassLogical, true, true},
	Xor:    {Xor, "XOR", "dst = src1 ^ src2", ClassLogical, true, true},
	Not:    {Not, "NOT", "dst = ^src1", ClassLogical, true, false},
	Shl:    {Shl, "SHL", "dst = src1 << src2", ClassLogical, true, true},
	Shr:    {Shr, "SHR", "dst = src1 >> src2", ClassLogical, true, true},
	Cmpe:   {Cmpe, "CMPE", "dst = src1 == src2", ClassComparison, true, true},
	Cmpne:  {Cmpne, "CMPNE", "dst = src1 != src2", ClassComparison, true, true},
	Cmpa:   {Cmpa, "CMPA", "dst = src1 >u src2", ClassComparison, true, true},
	Cmpae:  {Cmpae, "CMPAE", "dst = src1 >=u src2", ClassComparison, true, true},
	Cmpg:   {Cmpg, "CMPG", "dst = src1 >s src2", ClassComparison, true, true},
	Cmpge:  {Cmpge, "CMPGE", "dst = src1 >=s src2", ClassComparison, true, true},
	Mov:    {Mov, "MOV", "dst = src1", ClassMove, true, false},
	Beq:    {Beq, "BEQ", "if src1 == src2 goto dst", ClassBranch, false, true},
	Bne:    {Bne, "BNE", "if src1 != src2 goto dst", ClassBranch, false, true},
	Blt:    {Blt, "BLT", "if src1 <s src2 goto dst", ClassBranch, false, true},
	Bge:    {Bge, "BGE", "if src1 >=s src2 goto dst", ClassBranch, false, true},
	Bltu:   {Bltu, "BLTU", "if src1 <u src2 goto dst", ClassBranch, false, true},
	Bgeu:   {Bgeu, "BGEU", "if src1 >=u src2 goto dst", ClassBranch, false, true},
	Jmp:    {Jmp, "JMP", "goto src1", ClassJump, false, false},
	Load:   {Load, "LOAD", "dst = mem[src1 + src2]", ClassMemory, true, true},
	Store:  {Store, "STORE", "mem[src1 + src2] = dst", ClassMemory, false, true},
	Read:   {Read, "READ", "dst = next word of tape src1", ClassTape, true, false},
	Answer: {Answer, "ANSWER", "halt with answer src1", ClassHalt, false, false},
}

// String returns the opcode name
func (op Opcode) String() string {
	if info, ok := AllOpcodes[op]; ok {
		return info.Name
	}
	return fmt.Sprintf("Opcode(%d)", uint32(op))
}

// Info returns the opcode info
func (op Opcode) Info() (OpcodeInfo, bool) {
	info, ok := AllOpcodes[op]
	return info, ok
}

// Valid reports whether op belongs to the instruction set.
func (op Opcode) Valid() bool {
	return op < NumOpcodes
}

// WritesDst reports whether the opcode writes its dst register
func (op Opcode) WritesDst() bool {
	return AllOpcodes[op].WritesDst
}

// UsesSrc2 reports whether the opcode reads its second source operand
func (op Opcode) UsesSrc2() bool {
	return AllOpcodes[op].UsesSrc2
}

// IsBranch reports whether the opcode is a conditional branch
func (op Opcode) IsBranch() bool {
	return AllOpcodes[op].Class == ClassBranch
}

// ParseOpcode looks an opcode up by its (case-insensitive) name.
func ParseOpcode(name string) (Opcode, bool) {
	upper := strings.ToUpper(name)
	for op := Opcode(0); op < NumOpcodes; op++ {
		if AllOpcodes[op].Name == upper {
			return op, true
		}
	}
	return 0, false
}

// OperandKind distinguishes register operands from immediates
type OperandKind uint32

const (
	KindRegister OperandKind = iota
	KindImmediate
)

// Operand is a register index or an immediate word
type Operand struct {
	Kind  OperandKind
	Value uint32
}

// Reg returns a register operand
func Reg(index uint32) Operand {
	return Operand{Kind: KindRegister, Value: index}
}

// Imm returns an immediate operand, wrapped to the word size
func Imm(value uint32) Operand {
	return Operand{Kind: KindImmediate, Value: value & WordMask}
}

// IsImmediate reports whether the operand is an immediate
func (o Operand) IsImmediate() bool {
	return o.Kind == KindImmediate
}

// String renders the operand in artifact syntax: rN or #N
func (o Operand) String() string {
	if o.IsImmediate() {
		return fmt.Sprintf("#%d", o.Value)
	}
	return fmt.Sprintf("r%d", o.Value)
}

// Instruction is a single native instruction.
//
// Dst is the destination register for value-producing opcodes, the source
// register for Store and the target program index for conditional branches.
type Instruction struct {
	Op   Opcode
	Dst  uint32
	Src1 Operand
	Src2 Operand
}

// NewInstruction creates an instruction and validates its register fields
func NewInstruction(op Opcode, dst uint32, src1, src2 Operand) (Instruction, error) {
	inst := Instruction{Op: op, Dst: dst, Src1: src1, Src2: src2}
	if err := inst.validateOperands(); err != nil {
		return Instruction{}, err
	}
	return inst, nil
}

func (i Instruction) validateOperands() error {
	if !i.Op.Valid() {
		return fmt.Errorf("unknown opcode: %d", uint32(i.Op))
	}
	if !i.Op.IsBranch() && i.Dst >= NumRegisters {
		return fmt.Errorf("%s: register r%d out of range", i.Op, i.Dst)
	}
	for _, src := range []Operand{i.Src1, i.Src2} {
		switch src.Kind {
		case KindRegister:
			if src.Value >= NumRegisters {
				return fmt.Errorf("%s: register r%d out of range", i.Op, src.Value)
			}
		case KindImmediate:
			if src.Value&^WordMask != 0 {
				return fmt.Errorf("%s: immediate %d exceeds %d bits", i.Op, src.Value, RegisterLength)
			}
		default:
			return fmt.Errorf("%s: unknown operand kind %d", i.Op, src.Kind)
		}
	}
	if i.Op == Read && (!i.Src1.IsImmediate() || i.Src1.Value > uint32(PrivateTape)) {
		return fmt.Errorf("READ: tape operand must be #0 or #1, got %s", i.Src1)
	}
	return nil
}

// String renders the instruction in canonical artifact syntax
func (i Instruction) String() string {
	return fmt.Sprintf("%s %d %s %s", i.Op, i.Dst, i.Src1, i.Src2)
}

// Words encodes the instruction as field elements:
// opcode, dst, kind1, value1, kind2, value2.
func (i Instruction) Words() []field.Element {
	return []field.Element{
		field.New(uint64(i.Op)),
		field.New(uint64(i.Dst)),
		field.New(uint64(i.Src1.Kind)),
		field.New(uint64(i.Src1.Value)),
		field.New(uint64(i.Src2.Kind)),
		field.New(uint64(i.Src2.Value)),
	}
}
