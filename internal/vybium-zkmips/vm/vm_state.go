package vm

import (
	"fmt"
)

// Status is the run state of a machine: Loaded -> Running -> {Halted, Faulted}
type Status int

const (
	Loaded Status = iota
	Running
	Halted
	Faulted
)

func (s Status) String() string {
	switch s {
	case Loaded:
		return "loaded"
	case Running:
		return "running"
	case Halted:
		return "halted"
	case Faulted:
		return "faulted"
	}
	return fmt.Sprintf("status(%d)", int(s))
}

// VMState is the complete mutable state of one run. It is owned by a single
// engine; the program and tapes it references are shared read-only.
type VMState struct {
	Program *Program

	Registers [NumRegisters]uint32
	PC        int
	Memory    *Memory

	PublicTape  *Tape
	PrivateTape *Tape

	CycleCount uint64
	Status     Status
	Answer     uint32
}

// NewVMState creates a machine in the Loaded state
func NewVMState(program *Program, privateTape []uint32, opts Options) *VMState {
	opts = opts.withDefaults()
	return &VMState{
		Program:     program,
		PC:          opts.StartOffset,
		Memory:      NewMemory(opts.AddressSpace),
		PublicTape:  NewTape(PublicTape, program.PublicTape),
		PrivateTape: NewTape(PrivateTape, privateTape),
		Status:      Loaded,
	}
}

// Step executes one instruction and returns its cycle record. A fault moves
// the machine to Faulted and is returned as a *Fault.
func (vm *VMState) Step() (Cycle, error) {
	if vm.Status == Halted || vm.Status == Faulted {
		return Cycle{}, ErrMachineHalted
	}
	vm.Status = Running

	if vm.PC < 0 || vm.PC >= vm.Program.Len() {
		return Cycle{}, vm.fault(fmt.Errorf("%w: pc %d outside program of %d instructions",
			ErrUnresolvedBranchTarget, vm.PC, vm.Program.Len()))
	}
	inst := vm.Program.Instructions[vm.PC]

	c := Cycle{
		Cycle:       vm.CycleCount,
		PC:          vm.PC,
		Instruction: inst,
		A:           vm.operand(inst.Src1),
		B:           vm.operand(inst.Src2),
		NextPC:      vm.PC + 1,
	}

	if err := vm.ExecuteInstruction(&c); err != nil {
		return Cycle{}, vm.fault(err)
	}

	vm.PC = c.NextPC
	vm.CycleCount++
	return c, nil
}

func (vm *VMState) fault(err error) error {
	vm.Status = Faulted
	f := &Fault{Cycle: vm.CycleCount, PC: vm.PC, Err: err}
	if vm.PC >= 0 && vm.PC < vm.Program.Len() {
		f.Op = vm.Program.Instructions[vm.PC].Op
		f.Fetched = true
	}
	return f
}

func (vm *VMState) operand(o Operand) uint32 {
	if o.IsImmediate() {
		return o.Value
	}
	return vm.Registers[o.Value]
}

func (vm *VMState) writeDst(c *Cycle, value uint32) {
	dst := c.Instruction.Dst
	c.DstBefore = vm.Registers[dst]
	c.Result = value & WordMask
	if dst != 0 {
		vm.Registers[dst] = c.Result
	}
}

func boolWord(b bool) uint32 {
	if b {
		return 1
	}
	return 0
}

// ExecuteInstruction applies the semantics of the cycle's instruction
func (vm *VMState) ExecuteInstruction(c *Cycle) error {
	inst := c.Instruction
	a, b := c.A, c.B

	switch inst.Op {
	// Arithmetic
	case Add:
		vm.writeDst(c, Wrap(uint64(a)+uint64(b)))
	case Sub:
		vm.writeDst(c, Wrap(uint64(a)-uint64(b)))
	case Mull:
		vm.writeDst(c, Wrap(uint64(a)*uint64(b)))
	case Umulh:
		vm.writeDst(c, Wrap((uint64(a)*uint64(b))>>RegisterLength))
	case Udiv:
		if b == 0 {
			return ErrDivisionByZero
		}
		vm.writeDst(c, a/b)
	case Umod:
		if b == 0 {
			return ErrDivisionByZero
		}
		vm.writeDst(c, a%b)

	// Logical
	case And:
		vm.writeDst(c, a&b)
	case Or:
		vm.writeDst(c, a|b)
	case Xor:
		vm.writeDst(c, a^b)
	case Not:
		vm.writeDst(c, ^a)
	case Shl:
		vm.writeDst(c, Wrap(uint64(a)<<(b%RegisterLength)))
	case Shr:
		vm.writeDst(c, a>>(b%RegisterLength))

	// Comparison
	case Cmpe:
		vm.writeDst(c, boolWord(a == b))
	case Cmpne:
		vm.writeDst(c, boolWord(a != b))
	case Cmpa:
		vm.writeDst(c, boolWord(a > b))
	case Cmpae:
		vm.writeDst(c, boolWord(a >= b))
	case Cmpg:
		vm.writeDst(c, boolWord(Signed(a) > Signed(b)))
	case Cmpge:
		vm.writeDst(c, boolWord(Signed(a) >= Signed(b)))

	case Mov:
		vm.writeDst(c, a)

	// Control flow
	case Beq, Bne, Blt, Bge, Bltu, Bgeu:
		if BranchTaken(inst.Op, a, b) {
			c.NextPC = int(inst.Dst)
		}
	case Jmp:
		if int64(a) >= int64(vm.Program.Len()) {
			return fmt.Errorf("%w: jump to %d outside program of %d instructions",
				ErrUnresolvedBranchTarget, a, vm.Program.Len())
		}
		c.NextPC = int(a)

	// Memory
	case Load:
		addr := Wrap(uint64(a) + uint64(b))
		value, err := vm.Memory.Read(addr)
		if err != nil {
			return err
		}
		c.Mem = &MemAccess{Address: addr, Value: value}
		vm.writeDst(c, value)
	case Store:
		addr := Wrap(uint64(a) + uint64(b))
		value := vm.Registers[inst.Dst]
		if err := vm.Memory.Write(addr, value); err != nil {
			return err
		}
		c.DstBefore = value
		c.Result = value
		c.Mem = &MemAccess{Address: addr, Value: value, Write: true}

	// Tapes
	case Read:
		tape := vm.PublicTape
		if TapeID(a) == PrivateTape {
			tape = vm.PrivateTape
		}
		index, value, err := tape.Next()
		if err != nil {
			return err
		}
		c.Tape = &TapeRead{Tape: tape.id, Index: index, Value: value}
		vm.writeDst(c, value)

	case Answer:
		vm.Answer = a
		vm.Status = Halted
		c.NextPC = c.PC

	default:
		return fmt.Errorf("unknown instruction: %d", uint32(inst.Op))
	}

	return nil
}

// BranchTaken evaluates a conditional branch predicate
func BranchTaken(op Opcode, a, b uint32) bool {
	switch op {
	case Beq:
		return a == b
	case Bne:
		return a != b
	case Blt:
		return Signed(a) < Signed(b)
	case Bge:
		return Signed(a) >= Signed(b)
	case Bltu:
		return a < b
	case Bgeu:
		return a >= b
	}
	return false
}
