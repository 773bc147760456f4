package vm

import (
	"fmt"
	"strings"
)

// RegisterNames holds the MIPS ABI name of every register, without the $.
var RegisterNames = [NumRegisters]string{
	"zero", "at", "v0", "v1", "a0", "a1", "a2", "a3",
	"t0", "t1", "t2", "t3", "t4", "t5", "t6", "t7",
	"s0", "s1", "s2", "s3", "s4", "s5", "s6", "s7",
	"t8", "t9", "k0", "k1", "gp", "sp", "fp", "ra",
}

// RegisterName returns the $-prefixed ABI name of register i
func RegisterName(i uint32) string {
	if i >= NumRegisters {
		return fmt.Sprintf("$r%d", i)
	}
	return "$" + RegisterNames[i]
}

// Source renders the program as canonical zkMIPS. Branch and jump targets
// are emitted as L<pc> labels; assembling the rendering against the same
// public tape reproduces the program.
func (p *Program) Source() string {
	targets := make(map[uint32]bool)
	for _, inst := range p.Instructions {
		switch {
		case inst.Op.IsBranch():
			targets[inst.Dst] = true
		case inst.Op == Jmp && inst.Src1.IsImmediate():
			targets[inst.Src1.Value] = true
		}
	}

	label := func(pc uint32) string {
		return fmt.Sprintf("L%d", pc)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "# %d instructions, %d labels\n", len(p.Instructions), len(targets))

	for pc, inst := range p.Instructions {
		if targets[uint32(pc)] {
			fmt.Fprintf(&sb, "%s:\n", label(uint32(pc)))
		}
		sb.WriteString("\t")
		sb.WriteString(inst.source(label))
		sb.WriteString("\n")
	}
	return sb.String()
}

func sourceOperand(o Operand) string {
	if o.IsImmediate() {
		return fmt.Sprintf("%d", o.Value)
	}
	return RegisterName(o.Value)
}

func (i Instruction) source(label func(uint32) string) string {
	name := strings.ToLower(i.Op.String())
	rd := RegisterName(i.Dst)
	s1, s2 := sourceOperand(i.Src1), sourceOperand(i.Src2)

	switch AllOpcodes[i.Op].Class {
	case ClassArithmetic, ClassLogical, ClassComparison:
		if i.Op == Not {
			return fmt.Sprintf("not %s, %s", rd, s1)
		}
		return fmt.Sprintf("%s %s, %s, %s", name, rd, s1, s2)
	case ClassMove:
		return fmt.Sprintf("mov %s, %s", rd, s1)
	case ClassBranch:
		return fmt.Sprintf("%s %s, %s, %s", name, s1, s2, label(i.Dst))
	case ClassJump:
		if i.Src1.IsImmediate() {
			return fmt.Sprintf("j %s", label(i.Src1.Value))
		}
		return fmt.Sprintf("jr %s", s1)
	case ClassMemory:
		mnemonic := "lw"
		if i.Op == Store {
			mnemonic = "sw"
		}
		if !i.Src1.IsImmediate() && i.Src2.IsImmediate() {
			return fmt.Sprintf("%s %s, %d(%s)", mnemonic, rd, i.Src2.Value, s1)
		}
		return fmt.Sprintf("%s %s, %s, %s", name, rd, s1, s2)
	case ClassTape:
		if TapeID(i.Src1.Value) == PrivateTape {
			return fmt.Sprintf("secread %s", rd)
		}
		return fmt.Sprintf("pubread %s", rd)
	case ClassHalt:
		return fmt.Sprintf("answer %s", s1)
	}
	return fmt.Sprintf("# %s", i)
}
