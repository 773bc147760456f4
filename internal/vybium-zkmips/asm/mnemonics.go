package asm

import (
	"fmt"

	"github.com/vybium/vybium-zkmips/internal/vybium-zkmips/vm"
)

// form is the operand shape of a mnemonic
type form int

const (
	formALU         form = iota // op rd, s1, s2
	formALUSwap                 // op rd, s1, s2 lowered as op rd, s2, s1
	formUnary                   // op rd, s1
	formLoadAddr                // la rd, label
	formBranch                  // op s1, s2, target
	formBranchSwap              // op s1, s2, target lowered as op s2, s1, target
	formJump                    // j target
	formJumpReg                 // jr rs
	formJumpAny                 // jmp target|rs
	formMem                     // lw/sw rt, off(base)
	formMemRaw                  // load/store rd, s1, s2
	formRead                    // read rd, tape
	formReadPublic              // pubread rd
	formReadPrivate             // secread rd
	formAnswer                  // answer s1
)

var formArity = map[form]int{
	formALU:         3,
	formALUSwap:     3,
	formUnary:       2,
	formLoadAddr:    2,
	formBranch:      3,
	formBranchSwap:  3,
	formJump:        1,
	formJumpReg:     1,
	formJumpAny:     1,
	formMem:         2,
	formMemRaw:      3,
	formRead:        2,
	formReadPublic:  1,
	formReadPrivate: 1,
	formAnswer:      1,
}

type mnemonic struct {
	op   vm.Opcode
	form form
}

// mnemonics maps every native zkMIPS mnemonic, lower-case, onto its opcode.
// Each lowers to exactly one instruction.
var mnemonics = map[string]mnemonic{
	"add": {vm.Add, formALU}, "addu": {vm.Add, formALU}, "addi": {vm.Add, formALU}, "addiu": {vm.Add, formALU},
	"sub": {vm.Sub, formALU}, "subu": {vm.Sub, formALU},
	"mul": {vm.Mull, formALU}, "mult": {vm.Mull, formALU}, "multu": {vm.Mull, formALU}, "mull": {vm.Mull, formALU},
	"mulhu": {vm.Umulh, formALU}, "umulh": {vm.Umulh, formALU},
	"divu": {vm.Udiv, formALU}, "div": {vm.Udiv, formALU}, "udiv": {vm.Udiv, formALU},
	"remu": {vm.Umod, formALU}, "rem": {vm.Umod, formALU}, "umod": {vm.Umod, formALU},

	"and": {vm.And, formALU}, "andi": {vm.And, formALU},
	"or": {vm.Or, formALU}, "ori": {vm.Or, formALU},
	"xor": {vm.Xor, formALU}, "xori": {vm.Xor, formALU},
	"not": {vm.Not, formUnary},
	"sll": {vm.Shl, formALU}, "sllv": {vm.Shl, formALU}, "shl": {vm.Shl, formALU},
	"srl": {vm.Shr, formALU}, "srlv": {vm.Shr, formALU}, "shr": {vm.Shr, formALU},

	"seq": {vm.Cmpe, formALU}, "cmpe": {vm.Cmpe, formALU},
	"sne": {vm.Cmpne, formALU}, "cmpne": {vm.Cmpne, formALU},
	"sgtu": {vm.Cmpa, formALU}, "cmpa": {vm.Cmpa, formALU},
	"sgeu": {vm.Cmpae, formALU}, "cmpae": {vm.Cmpae, formALU},
	"sgt": {vm.Cmpg, formALU}, "cmpg": {vm.Cmpg, formALU},
	"sge": {vm.Cmpge, formALU}, "cmpge": {vm.Cmpge, formALU},
	"slt": {vm.Cmpg, formALUSwap}, "slti": {vm.Cmpg, formALUSwap},
	"sltu": {vm.Cmpa, formALUSwap}, "sltiu": {vm.Cmpa, formALUSwap},
	"sle":  {vm.Cmpge, formALUSwap},
	"sleu": {vm.Cmpae, formALUSwap},

	"move": {vm.Mov, formUnary}, "mov": {vm.Mov, formUnary}, "li": {vm.Mov, formUnary},
	"la": {vm.Mov, formLoadAddr},

	"beq": {vm.Beq, formBranch}, "bne": {vm.Bne, formBranch},
	"blt": {vm.Blt, formBranch}, "bge": {vm.Bge, formBranch},
	"bltu": {vm.Bltu, formBranch}, "bgeu": {vm.Bgeu, formBranch},
	"bgt": {vm.Blt, formBranchSwap}, "ble": {vm.Bge, formBranchSwap},
	"bgtu": {vm.Bltu, formBranchSwap}, "bleu": {vm.Bgeu, formBranchSwap},
	"j": {vm.Jmp, formJump}, "b": {vm.Jmp, formJump},
	"jr":  {vm.Jmp, formJumpReg},
	"jmp": {vm.Jmp, formJumpAny},

	"lw": {vm.Load, formMem}, "sw": {vm.Store, formMem},
	"load": {vm.Load, formMemRaw}, "store": {vm.Store, formMemRaw},

	"pubread": {vm.Read, formReadPublic},
	"secread": {vm.Read, formReadPrivate},
	"read":    {vm.Read, formRead},

	"answer": {vm.Answer, formAnswer},
}

// targetField is the instruction field a label is patched into
type targetField int

const (
	targetNone targetField = iota
	targetDst
	targetSrc1
)

// pending is a lowered instruction whose label operand, if any, is resolved
// once every label is known.
type pending struct {
	inst   vm.Instruction
	label  string
	field  targetField
	line   int
	text   string
	macros []string
}

// lower resolves a native statement into one instruction.
func (a *Assembler) lower(st *statement, m mnemonic, f *frame) (pending, error) {
	if want := formArity[m.form]; len(st.args) != want {
		return pending{}, fmt.Errorf("%w: %s takes %d operands, got %d", ErrArityMismatch, st.mnemonic, want, len(st.args))
	}

	p := pending{inst: vm.Instruction{Op: m.op, Src1: vm.Imm(0), Src2: vm.Imm(0)}}
	var err error
	reg := func(x *arg) uint32 {
		if err != nil {
			return 0
		}
		var v value
		v, err = a.resolve(x, posReg, f)
		return v.n
	}
	opnd := func(x *arg) vm.Operand {
		if err != nil {
			return vm.Operand{}
		}
		var v value
		v, err = a.resolve(x, posRegOrImm, f)
		return v.operand()
	}
	target := func(x *arg, field targetField) {
		if err != nil {
			return
		}
		var v value
		v, err = a.resolve(x, posLabel, f)
		if err != nil {
			return
		}
		if v.kind == valLabel {
			p.label, p.field = v.label, field
			return
		}
		if field == targetDst {
			p.inst.Dst = v.n
		} else {
			p.inst.Src1 = vm.Imm(v.n)
		}
	}

	args := st.args
	switch m.form {
	case formALU:
		p.inst.Dst, p.inst.Src1, p.inst.Src2 = reg(args[0]), opnd(args[1]), opnd(args[2])
	case formALUSwap:
		p.inst.Dst, p.inst.Src1, p.inst.Src2 = reg(args[0]), opnd(args[2]), opnd(args[1])
	case formUnary:
		p.inst.Dst, p.inst.Src1 = reg(args[0]), opnd(args[1])
	case formLoadAddr:
		p.inst.Dst = reg(args[0])
		target(args[1], targetSrc1)
	case formBranch:
		p.inst.Src1, p.inst.Src2 = opnd(args[0]), opnd(args[1])
		target(args[2], targetDst)
	case formBranchSwap:
		p.inst.Src1, p.inst.Src2 = opnd(args[1]), opnd(args[0])
		target(args[2], targetDst)
	case formJump:
		target(args[0], targetSrc1)
	case formJumpReg:
		p.inst.Src1 = vm.Reg(reg(args[0]))
	case formJumpAny:
		var v value
		if v, err = a.resolve(args[0], posAny, f); err == nil {
			switch v.kind {
			case valLabel:
				p.label, p.field = v.label, targetSrc1
			default:
				p.inst.Src1 = v.operand()
			}
		}
	case formMem:
		p.inst.Dst = reg(args[0])
		if err == nil {
			p.inst.Src1, p.inst.Src2, err = a.resolveMem(args[1], f)
		}
	case formMemRaw:
		p.inst.Dst, p.inst.Src1, p.inst.Src2 = reg(args[0]), opnd(args[1]), opnd(args[2])
	case formRead:
		p.inst.Dst = reg(args[0])
		if err == nil {
			var v value
			if v, err = a.resolve(args[1], posImm, f); err == nil && v.n > uint32(vm.PrivateTape) {
				err = fmt.Errorf("%w: tape %d, expected 0 (public) or 1 (private)", ErrAmbiguousOperand, v.n)
			}
			p.inst.Src1 = vm.Imm(v.n)
		}
	case formReadPublic:
		p.inst.Dst, p.inst.Src1 = reg(args[0]), vm.Imm(uint32(vm.PublicTape))
	case formReadPrivate:
		p.inst.Dst, p.inst.Src1 = reg(args[0]), vm.Imm(uint32(vm.PrivateTape))
	case formAnswer:
		p.inst.Src1 = opnd(args[0])
	}
	if err != nil {
		return pending{}, err
	}

	if a.opts.Strict && m.op.WritesDst() && p.inst.Dst == 0 {
		return pending{}, fmt.Errorf("%w: %s", ErrZeroDestination, st.mnemonic)
	}
	return p, nil
}
