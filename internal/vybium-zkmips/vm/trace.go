package vm

import "slices"

// MemAccess is the RAM access performed by a Load or Store cycle
type MemAccess struct {
	Address uint32
	Value   uint32
	Write   bool
}

// TapeRead is the tape word consumed by a Read cycle
type TapeRead struct {
	Tape  TapeID
	Index int
	Value uint32
}

// Cycle records one executed instruction.
type Cycle struct {
	Cycle       uint64
	PC          int
	Instruction Instruction

	// Operand values as read before execution
	A uint32
	B uint32

	// DstBefore is the destination register's value before the cycle;
	// Result is the value written to it, or the stored word for Store.
	DstBefore uint32
	Result    uint32

	Mem  *MemAccess
	Tape *TapeRead

	NextPC int
}

// Trace is the complete record of a halted run. It is immutable once
// returned by the engine.
type Trace struct {
	Cycles      []Cycle
	Answer      uint32
	StartOffset int

	// Per-instruction execution counts, indexed by program counter
	Multiplicities []uint64

	// Tape contents and final cursors
	PublicTape   []uint32
	PrivateTape  []uint32
	PublicReads  int
	PrivateReads int
}

// Len returns the number of executed cycles
func (t *Trace) Len() int {
	return len(t.Cycles)
}

// Equal reports whether two traces record the same run
func (t *Trace) Equal(other *Trace) bool {
	if t == nil || other == nil {
		return t == other
	}
	if t.Answer != other.Answer || t.StartOffset != other.StartOffset ||
		len(t.Cycles) != len(other.Cycles) ||
		t.PublicReads != other.PublicReads || t.PrivateReads != other.PrivateReads {
		return false
	}
	if !slices.Equal(t.Multiplicities, other.Multiplicities) ||
		!slices.Equal(t.PublicTape, other.PublicTape) || !slices.Equal(t.PrivateTape, other.PrivateTape) {
		return false
	}
	for i := range t.Cycles {
		if !t.Cycles[i].equal(&other.Cycles[i]) {
			return false
		}
	}
	return true
}

func (c *Cycle) equal(o *Cycle) bool {
	if c.Cycle != o.Cycle || c.PC != o.PC || c.Instruction != o.Instruction ||
		c.A != o.A || c.B != o.B || c.DstBefore != o.DstBefore ||
		c.Result != o.Result || c.NextPC != o.NextPC {
		return false
	}
	if (c.Mem == nil) != (o.Mem == nil) || (c.Mem != nil && *c.Mem != *o.Mem) {
		return false
	}
	if (c.Tape == nil) != (o.Tape == nil) || (c.Tape != nil && *c.Tape != *o.Tape) {
		return false
	}
	return true
}
