package asm

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/vybium/vybium-zkmips/internal/vybium-zkmips/macros"
	"github.com/vybium/vybium-zkmips/internal/vybium-zkmips/vm"
)

// registers maps every accepted register spelling, without the $, to its
// index: ABI names, $0..$31 and $r0..$r31.
var registers = func() map[string]uint32 {
	m := make(map[string]uint32, 3*vm.NumRegisters+1)
	for i, name := range vm.RegisterNames {
		m[name] = uint32(i)
		m[strconv.Itoa(i)] = uint32(i)
		m["r"+strconv.Itoa(i)] = uint32(i)
	}
	m["s8"] = 30
	return m
}()

// ParseRegister resolves a $-prefixed register token
func ParseRegister(tok string) (uint32, error) {
	if !strings.HasPrefix(tok, "$") {
		return 0, fmt.Errorf("%w: %q is not a register", ErrAmbiguousOperand, tok)
	}
	idx, ok := registers[strings.ToLower(tok[1:])]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrUnknownRegister, tok)
	}
	return idx, nil
}

type valueKind int

const (
	valReg valueKind = iota
	valImm
	valLabel
)

func (k valueKind) String() string {
	switch k {
	case valReg:
		return "register"
	case valImm:
		return "immediate"
	}
	return "label"
}

// value is a resolved operand
type value struct {
	kind  valueKind
	n     uint32 // register index or immediate word
	label string
}

func (v value) operand() vm.Operand {
	if v.kind == valReg {
		return vm.Reg(v.n)
	}
	return vm.Imm(v.n)
}

// position is what an operand slot accepts
type position int

const (
	posReg position = iota
	posImm
	posRegOrImm
	posLabel // label or immediate
	posAny   // register, label or immediate
)

func (p position) String() string {
	switch p {
	case posReg:
		return "register"
	case posImm:
		return "immediate"
	case posRegOrImm:
		return "register or immediate"
	case posLabel:
		return "label"
	}
	return "operand"
}

func (p position) accepts(k valueKind) bool {
	switch p {
	case posReg:
		return k == valReg
	case posImm:
		return k == valImm
	case posRegOrImm:
		return k == valReg || k == valImm
	case posLabel:
		return k == valLabel || k == valImm
	}
	return true
}

func paramPosition(kind macros.Kind) position {
	switch kind {
	case macros.KindReg:
		return posReg
	case macros.KindImm:
		return posImm
	}
	return posLabel
}

// resolve turns an argument into a value accepted by pos. Placeholders and
// local labels are looked up in the innermost expansion frame.
func (a *Assembler) resolve(x *arg, pos position, f *frame) (value, error) {
	var v value
	switch {
	case x.slot != "":
		if f == nil {
			return value{}, fmt.Errorf("%w: %%%s outside a macro body", ErrUnboundPlaceholder, x.slot)
		}
		bound, ok := f.args[x.slot]
		if !ok {
			return value{}, fmt.Errorf("%w: %%%s in %s", ErrUnboundPlaceholder, x.slot, f.name)
		}
		v = bound
	case x.mem != nil:
		return value{}, fmt.Errorf("%w: memory operand %s where a %s is expected", ErrAmbiguousOperand, x, pos)
	default:
		var err error
		if v, err = a.resolveToken(x.text, pos, f); err != nil {
			return value{}, err
		}
	}
	if !pos.accepts(v.kind) {
		return value{}, fmt.Errorf("%w: %s is a %s, expected %s", ErrAmbiguousOperand, x, v.kind, pos)
	}
	return v, nil
}

func (a *Assembler) resolveToken(tok string, pos position, f *frame) (value, error) {
	switch {
	case isExpr(tok):
		n, err := evalExpr(tok, a.equ)
		if err != nil {
			return value{}, err
		}
		return a.immediate(n)
	case strings.HasPrefix(tok, "$"):
		idx, err := ParseRegister(tok)
		if err != nil {
			return value{}, err
		}
		return value{kind: valReg, n: idx}, nil
	case isNumber(tok):
		n, err := ParseNumber(tok)
		if err != nil {
			return value{}, err
		}
		return a.immediate(n)
	case isLocalLabel(tok):
		if f == nil {
			return value{}, fmt.Errorf("%w: local label %s outside a macro body", ErrAmbiguousOperand, tok)
		}
		return value{kind: valLabel, label: f.local(tok)}, nil
	case isIdent(tok):
		if n, ok := a.equ[tok]; ok {
			return a.immediate(n)
		}
		if pos == posLabel || pos == posAny {
			return value{kind: valLabel, label: tok}, nil
		}
	}
	return value{}, fmt.Errorf("%w: %q is neither a register nor an immediate", ErrAmbiguousOperand, tok)
}

func (a *Assembler) immediate(n int64) (value, error) {
	w, err := EncodeImmediate(n, a.opts.Strict)
	if err != nil {
		return value{}, err
	}
	return value{kind: valImm, n: w}, nil
}

// resolveMem resolves an offset(base) operand into base and offset
// operands. A bare register is taken as the base and a bare immediate as the
// offset from $zero.
func (a *Assembler) resolveMem(x *arg, f *frame) (vm.Operand, vm.Operand, error) {
	if x.mem == nil {
		v, err := a.resolve(x, posRegOrImm, f)
		if err != nil {
			return vm.Operand{}, vm.Operand{}, err
		}
		if v.kind == valReg {
			return v.operand(), vm.Imm(0), nil
		}
		return vm.Reg(0), v.operand(), nil
	}

	base, err := a.resolve(x.mem.base, posReg, f)
	if err != nil {
		return vm.Operand{}, vm.Operand{}, err
	}
	offset := vm.Imm(0)
	if x.mem.offset != nil {
		v, err := a.resolve(x.mem.offset, posImm, f)
		if err != nil {
			return vm.Operand{}, vm.Operand{}, err
		}
		offset = v.operand()
	}
	return base.operand(), offset, nil
}
