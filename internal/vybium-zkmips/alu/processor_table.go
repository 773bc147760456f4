package alu

import (
	"fmt"
	"strings"

	"github.com/vybium/vybium-crypto/pkg/vybium-crypto/field"

	"github.com/vybium/vybium-zkmips/internal/vybium-zkmips/protocols"
	"github.com/vybium/vybium-zkmips/internal/vybium-zkmips/vm"
)

const wordBits = vm.RegisterLength

// Processor table main columns
const (
	pClk = iota
	pPC
	pHalted
	pOpcode
	pDst
	pKind1
	pVal1
	pKind2
	pVal2
	pA
	pB
	pRes
	pX
	pY
	pCarry
	pFlag
	pInv
	pPow
	pDstInv
	pDstNZ
	pPubCursor
	pPrivCursor
	pAnswer
	pSel

	pABits             = pSel + vm.NumOpcodes
	pBBits             = pABits + wordBits
	pRBits             = pBBits + wordBits
	pXBits             = pRBits + wordBits
	pYBits             = pXBits + wordBits
	processorMainWidth = pYBits + wordBits
)

// Processor table auxiliary columns, per repetition
const (
	auxMemoryProduct = iota
	auxProgramSum
	auxTapeSum
	processorAuxWidth
)

var processorScalarColumns = []string{
	"clk", "pc", "halted", "opcode", "dst", "kind1", "val1", "kind2", "val2",
	"a", "b", "res", "x", "y", "carry", "flag", "inv", "pow",
	"dst_inv", "dst_nz", "pub_cursor", "priv_cursor", "answer",
}

var bitBlocks = []struct {
	name string
	word int
	base int
}{
	{"a", pA, pABits},
	{"b", pB, pBBits},
	{"res", pRes, pRBits},
	{"x", pX, pXBits},
	{"y", pY, pYBits},
}

func processorColumns() []string {
	columns := make([]string, 0, processorMainWidth)
	columns = append(columns, processorScalarColumns...)
	for op := vm.Opcode(0); op < vm.NumOpcodes; op++ {
		columns = append(columns, "sel_"+strings.ToLower(op.String()))
	}
	for _, blk := range bitBlocks {
		for i := 0; i < wordBits; i++ {
			columns = append(columns, fmt.Sprintf("%s_bit_%d", blk.name, i))
		}
	}
	return columns
}

func processorAuxColumns(repetitions int) []string {
	names := make([]string, 0, repetitions*processorAuxWidth)
	for r := 0; r < repetitions; r++ {
		names = append(names,
			fmt.Sprintf("memory_product_%d", r),
			fmt.Sprintf("program_sum_%d", r),
			fmt.Sprintf("tape_sum_%d", r))
	}
	return names
}

// Opcode groups used by the selector sums
var (
	writeOps      []vm.Opcode
	branchOps     []vm.Opcode
	sequentialOps []vm.Opcode
)

func init() {
	for op := vm.Opcode(0); op < vm.NumOpcodes; op++ {
		info := vm.AllOpcodes[op]
		if info.WritesDst {
			writeOps = append(writeOps, op)
		}
		switch info.Class {
		case vm.ClassBranch:
			branchOps = append(branchOps, op)
		case vm.ClassJump, vm.ClassHalt:
		default:
			sequentialOps = append(sequentialOps, op)
		}
	}
}

func sel(row []field.Element, op vm.Opcode) field.Element {
	return row[pSel+int(op)]
}

func selSum(row []field.Element, ops []vm.Opcode) field.Element {
	acc := field.Zero
	for _, op := range ops {
		acc = acc.Add(row[pSel+int(op)])
	}
	return acc
}

// ========== Witness ==========

// flip maps two's complement order onto unsigned order
func flip(v uint64) uint64 {
	return v ^ uint64(vm.SignBit)
}

// above witnesses p > q with x = p-q-1 when true and q-p otherwise
func above(p, q uint64) (bool, uint64) {
	if p > q {
		return true, p - q - 1
	}
	return false, q - p
}

// aboveEq witnesses p >= q with x = p-q when true and q-p-1 otherwise
func aboveEq(p, q uint64) (bool, uint64) {
	if p >= q {
		return true, p - q
	}
	return false, q - p - 1
}

// fillCycleRow writes the main columns of one executed cycle. pub and priv
// are the tape cursors before the cycle.
func fillCycleRow(row []field.Element, c *vm.Cycle, pub, priv int) {
	inst := c.Instruction
	a, b, res := uint64(c.A), uint64(c.B), uint64(c.Result)
	mask := uint64(vm.WordMask)
	shift := b % wordBits
	pow := uint64(1) << shift

	var x, y, carry uint64
	var flag bool
	inv := field.Zero

	switch inst.Op {
	case vm.Add:
		carry = (a + b) >> wordBits
	case vm.Sub:
		if a < b {
			carry = 1
		}
	case vm.Mull:
		x = (a * b) >> wordBits
		inv = inverseOrZero(fe(x).Sub(wordMax))
	case vm.Umulh:
		x = (a * b) & mask
		inv = inverseOrZero(fe(res).Sub(wordMax))
	case vm.Udiv:
		if b != 0 {
			x = a % b
			y = (b - x - 1) & mask
			inv = fe(b).Inverse()
		}
	case vm.Umod:
		if b != 0 {
			x = a / b
			y = (b - res - 1) & mask
			inv = fe(b).Inverse()
		}
	case vm.And, vm.Or, vm.Xor, vm.Not:
	case vm.Shl:
		x = (a << shift) >> wordBits
		inv = inverseOrZero(fe(x).Sub(wordMax))
	case vm.Shr:
		x = a & (pow - 1)
		y = pow - x - 1
	case vm.Cmpe, vm.Beq:
		flag = a == b
		inv = inverseOrZero(fe(a).Sub(fe(b)))
	case vm.Cmpne, vm.Bne:
		flag = a != b
		inv = inverseOrZero(fe(a).Sub(fe(b)))
	case vm.Cmpa:
		flag, x = above(a, b)
	case vm.Bltu:
		flag, x = above(b, a)
	case vm.Cmpae, vm.Bgeu:
		flag, x = aboveEq(a, b)
	case vm.Cmpg:
		flag, x = above(flip(a), flip(b))
	case vm.Blt:
		flag, x = above(flip(b), flip(a))
	case vm.Cmpge, vm.Bge:
		flag, x = aboveEq(flip(a), flip(b))
	case vm.Mov, vm.Jmp, vm.Read, vm.Answer:
	case vm.Load, vm.Store:
		y = uint64(c.Mem.Address)
		carry = (a + b) >> wordBits
	}

	row[pClk] = fe(c.Cycle)
	row[pPC] = fe(uint64(c.PC))
	row[pHalted] = field.Zero
	row[pOpcode] = fe(uint64(inst.Op))
	row[pDst] = fe(uint64(inst.Dst))
	row[pKind1] = fe(uint64(inst.Src1.Kind))
	row[pVal1] = fe(uint64(inst.Src1.Value))
	row[pKind2] = fe(uint64(inst.Src2.Kind))
	row[pVal2] = fe(uint64(inst.Src2.Value))
	row[pA] = fe(a)
	row[pB] = fe(b)
	row[pRes] = fe(res)
	row[pX] = fe(x)
	row[pY] = fe(y)
	row[pCarry] = fe(carry)
	row[pFlag] = boolElem(flag)
	row[pInv] = inv
	row[pPow] = fe(pow)
	row[pDstInv] = inverseOrZero(fe(uint64(inst.Dst)))
	row[pDstNZ] = boolElem(inst.Dst != 0)
	row[pPubCursor] = fe(uint64(pub))
	row[pPrivCursor] = fe(uint64(priv))
	row[pAnswer] = field.Zero
	row[pSel+int(inst.Op)] = field.One

	setBits(row, pABits, wordBits, a)
	setBits(row, pBBits, wordBits, b)
	setBits(row, pRBits, wordBits, res)
	setBits(row, pXBits, wordBits, x)
	setBits(row, pYBits, wordBits, y)
}

// fillPaddingRow writes a halted row after the last cycle
func fillPaddingRow(row []field.Element, clk uint64, pc, pub, priv int, answer uint32) {
	row[pClk] = fe(clk)
	row[pPC] = fe(uint64(pc))
	row[pHalted] = field.One
	row[pKind1] = fe(uint64(vm.KindImmediate))
	row[pKind2] = fe(uint64(vm.KindImmediate))
	row[pPow] = field.One
	row[pPubCursor] = fe(uint64(pub))
	row[pPrivCursor] = fe(uint64(priv))
	row[pAnswer] = fe(uint64(answer))
}

// ========== Arguments ==========

type memorySlot struct {
	active, space, addr, ts, write, value field.Element
}

// memorySlots returns the four register and RAM accesses a row makes, with
// timestamps 4*clk + slot.
func memorySlots(row []field.Element) [4]memorySlot {
	live := field.One.Sub(row[pHalted])
	ts := row[pClk].Mul(fe(4))
	load, store := sel(row, vm.Load), sel(row, vm.Store)
	writes := selSum(row, writeOps).Mul(row[pDstNZ])

	return [4]memorySlot{
		{live.Mul(field.One.Sub(row[pKind1])), field.Zero, row[pVal1], ts, field.Zero, row[pA]},
		{live.Mul(field.One.Sub(row[pKind2])), field.Zero, row[pVal2], ts.Add(fe(1)), field.Zero, row[pB]},
		{load.Add(store), field.One, row[pY], ts.Add(fe(2)), store, row[pRes]},
		{writes.Add(store), field.Zero, row[pDst], ts.Add(fe(3)), writes, row[pRes]},
	}
}

// slotProduct is the factor a row contributes to the memory permutation;
// inactive slots contribute 1.
func slotProduct(row []field.Element, ch *Challenges) field.Element {
	acc := field.One
	for _, s := range memorySlots(row) {
		den := ch.memoryDen(s.space, s.addr, s.ts, s.write, s.value)
		acc = acc.Mul(s.active.Mul(den).Add(field.One.Sub(s.active)))
	}
	return acc
}

func processorProgramDen(row []field.Element, ch *Challenges) field.Element {
	return ch.programDen([]field.Element{
		row[pPC], row[pOpcode], row[pDst], row[pKind1], row[pVal1], row[pKind2], row[pVal2],
	})
}

// tape cursor of a read: the public cursor for tape 0, the private for tape 1
func readCursor(row []field.Element) field.Element {
	a := row[pA]
	return field.One.Sub(a).Mul(row[pPubCursor]).Add(a.Mul(row[pPrivCursor]))
}

func processorTapeDen(row []field.Element, ch *Challenges) field.Element {
	return ch.tapeDen(row[pA], readCursor(row), row[pRes])
}

// fillProcessorAux computes the running product and log-derivative sums of
// one repetition.
func fillProcessorAux(t *Table, r int, ch *Challenges) error {
	base := processorMainWidth + r*processorAuxWidth
	rp, ps, ts := field.One, field.Zero, field.Zero
	for i, row := range t.Rows {
		if !row[pHalted].Equal(field.One) {
			den := processorProgramDen(row, ch)
			if den.IsZero() {
				return fmt.Errorf("%w: program lookup, row %d", protocols.ErrChallengeCollision, i)
			}
			ps = ps.Add(den.Inverse())
		}
		if !sel(row, vm.Read).IsZero() {
			den := processorTapeDen(row, ch)
			if den.IsZero() {
				return fmt.Errorf("%w: tape lookup, row %d", protocols.ErrChallengeCollision, i)
			}
			ts = ts.Add(sel(row, vm.Read).Mul(den.Inverse()))
		}
		row[base+auxMemoryProduct] = rp
		row[base+auxProgramSum] = ps
		row[base+auxTapeSum] = ts
		rp = rp.Mul(slotProduct(row, ch))
	}
	return nil
}

// ========== Constraints ==========

type rowConstraint struct {
	name   string
	degree int
	eval   func(row []field.Element) field.Element
}

type operand func(row []field.Element) field.Element

var (
	opA operand = func(row []field.Element) field.Element { return row[pA] }
	opB operand = func(row []field.Element) field.Element { return row[pB] }

	// signed operands shifted into unsigned order: v + 2^(W-1) - top*2^W
	opSA operand = func(row []field.Element) field.Element {
		return row[pA].Add(halfW).Sub(row[pABits+wordBits-1].Mul(twoW))
	}
	opSB operand = func(row []field.Element) field.Element {
		return row[pB].Add(halfW).Sub(row[pBBits+wordBits-1].Mul(twoW))
	}
)

// gtConstraint checks flag = p > q through the range-checked offset x
func gtConstraint(p, q operand) rowConstraint {
	return rowConstraint{"above", 2, func(row []field.Element) field.Element {
		flag, pv, qv := row[pFlag], p(row), q(row)
		taken := flag.Mul(pv.Sub(qv).Sub(field.One))
		notTaken := field.One.Sub(flag).Mul(qv.Sub(pv))
		return row[pX].Sub(taken.Add(notTaken))
	}}
}

// geConstraint checks flag = p >= q through the range-checked offset x
func geConstraint(p, q operand) rowConstraint {
	return rowConstraint{"above_or_equal", 2, func(row []field.Element) field.Element {
		flag, pv, qv := row[pFlag], p(row), q(row)
		taken := flag.Mul(pv.Sub(qv))
		notTaken := field.One.Sub(flag).Mul(qv.Sub(pv).Sub(field.One))
		return row[pX].Sub(taken.Add(notTaken))
	}}
}

func eqConstraints() []rowConstraint {
	return []rowConstraint{
		{"equal_zero_product", 2, func(row []field.Element) field.Element {
			return row[pA].Sub(row[pB]).Mul(row[pFlag])
		}},
		{"equal_inverse", 2, func(row []field.Element) field.Element {
			return row[pFlag].Sub(field.One).Add(row[pA].Sub(row[pB]).Mul(row[pInv]))
		}},
	}
}

func neConstraints() []rowConstraint {
	return []rowConstraint{
		{"not_equal_zero_product", 2, func(row []field.Element) field.Element {
			return row[pA].Sub(row[pB]).Mul(field.One.Sub(row[pFlag]))
		}},
		{"not_equal_inverse", 2, func(row []field.Element) field.Element {
			return row[pFlag].Sub(row[pA].Sub(row[pB]).Mul(row[pInv]))
		}},
	}
}

var resIsFlag = rowConstraint{"result_is_flag", 1, func(row []field.Element) field.Element {
	return row[pRes].Sub(row[pFlag])
}}

// bitwiseConstraint checks res bit by bit against f applied to the operand bits
func bitwiseConstraint(name string, f func(a, b field.Element) field.Element) rowConstraint {
	return rowConstraint{name, 2, func(row []field.Element) field.Element {
		acc := row[pRes]
		for i := 0; i < wordBits; i++ {
			acc = acc.Sub(f(row[pABits+i], row[pBBits+i]).Mul(pow2[i]))
		}
		return acc
	}}
}

var addressConstraint = rowConstraint{"address", 1, func(row []field.Element) field.Element {
	return row[pA].Add(row[pB]).Sub(row[pY]).Sub(row[pCarry].Mul(twoW))
}}

// canonicalSplit rules out hi*2^W + lo >= p, the second decomposition of a
// small product: hi = 2^W-1 forces lo = 0. inv is (hi - (2^W-1))^-1 or 0.
func canonicalSplit(hi, lo int) rowConstraint {
	return rowConstraint{"canonical_split", 3, func(row []field.Element) field.Element {
		isMax := field.One.Sub(row[hi].Sub(wordMax).Mul(row[pInv]))
		return row[lo].Mul(isMax)
	}}
}

var divisorInverse = rowConstraint{"divisor_nonzero", 2, func(row []field.Element) field.Element {
	return row[pB].Mul(row[pInv]).Sub(field.One)
}}

// opcodeConstraints returns the semantics of op. Each constraint is gated by
// the op's selector by the caller.
func opcodeConstraints(op vm.Opcode) []rowConstraint {
	switch op {
	case vm.Add:
		return []rowConstraint{{"sum", 1, func(row []field.Element) field.Element {
			return row[pA].Add(row[pB]).Sub(row[pRes]).Sub(row[pCarry].Mul(twoW))
		}}}
	case vm.Sub:
		return []rowConstraint{{"difference", 1, func(row []field.Element) field.Element {
			return row[pA].Sub(row[pB]).Sub(row[pRes]).Add(row[pCarry].Mul(twoW))
		}}}
	case vm.Mull:
		return []rowConstraint{
			{"product", 2, func(row []field.Element) field.Element {
				return row[pA].Mul(row[pB]).Sub(row[pX].Mul(twoW)).Sub(row[pRes])
			}},
			canonicalSplit(pX, pRes),
		}
	case vm.Umulh:
		return []rowConstraint{
			{"product", 2, func(row []field.Element) field.Element {
				return row[pA].Mul(row[pB]).Sub(row[pRes].Mul(twoW)).Sub(row[pX])
			}},
			canonicalSplit(pRes, pX),
		}
	case vm.Udiv:
		return []rowConstraint{
			{"division", 2, func(row []field.Element) field.Element {
				return row[pA].Sub(row[pRes].Mul(row[pB])).Sub(row[pX])
			}},
			{"remainder_bound", 1, func(row []field.Element) field.Element {
				return row[pY].Sub(row[pB].Sub(row[pX]).Sub(field.One))
			}},
			divisorInverse,
		}
	case vm.Umod:
		return []rowConstraint{
			{"division", 2, func(row []field.Element) field.Element {
				return row[pA].Sub(row[pX].Mul(row[pB])).Sub(row[pRes])
			}},
			{"remainder_bound", 1, func(row []field.Element) field.Element {
				return row[pY].Sub(row[pB].Sub(row[pRes]).Sub(field.One))
			}},
			divisorInverse,
		}
	case vm.And:
		return []rowConstraint{bitwiseConstraint("and", func(a, b field.Element) field.Element {
			return a.Mul(b)
		})}
	case vm.Or:
		return []rowConstraint{bitwiseConstraint("or", func(a, b field.Element) field.Element {
			return a.Add(b).Sub(a.Mul(b))
		})}
	case vm.Xor:
		return []rowConstraint{bitwiseConstraint("xor", func(a, b field.Element) field.Element {
			return a.Add(b).Sub(a.Mul(b).Mul(fe(2)))
		})}
	case vm.Not:
		return []rowConstraint{{"complement", 1, func(row []field.Element) field.Element {
			return row[pRes].Add(row[pA]).Sub(wordMax)
		}}}
	case vm.Shl:
		return []rowConstraint{
			{"shift", 2, func(row []field.Element) field.Element {
				return row[pA].Mul(row[pPow]).Sub(row[pX].Mul(twoW)).Sub(row[pRes])
			}},
			canonicalSplit(pX, pRes),
		}
	case vm.Shr:
		return []rowConstraint{
			{"shift", 2, func(row []field.Element) field.Element {
				return row[pA].Sub(row[pRes].Mul(row[pPow])).Sub(row[pX])
			}},
			{"shift_remainder_bound", 1, func(row []field.Element) field.Element {
				return row[pY].Sub(row[pPow].Sub(row[pX]).Sub(field.One))
			}},
		}
	case vm.Cmpe:
		return append(eqConstraints(), resIsFlag)
	case vm.Cmpne:
		return append(neConstraints(), resIsFlag)
	case vm.Cmpa:
		return []rowConstraint{gtConstraint(opA, opB), resIsFlag}
	case vm.Cmpae:
		return []rowConstraint{geConstraint(opA, opB), resIsFlag}
	case vm.Cmpg:
		return []rowConstraint{gtConstraint(opSA, opSB), resIsFlag}
	case vm.Cmpge:
		return []rowConstraint{geConstraint(opSA, opSB), resIsFlag}
	case vm.Mov:
		return []rowConstraint{{"copy", 1, func(row []field.Element) field.Element {
			return row[pRes].Sub(row[pA])
		}}}
	case vm.Beq:
		return eqConstraints()
	case vm.Bne:
		return neConstraints()
	case vm.Blt:
		return []rowConstraint{gtConstraint(opSB, opSA)}
	case vm.Bge:
		return []rowConstraint{geConstraint(opSA, opSB)}
	case vm.Bltu:
		return []rowConstraint{gtConstraint(opB, opA)}
	case vm.Bgeu:
		return []rowConstraint{geConstraint(opA, opB)}
	case vm.Jmp, vm.Answer:
		return nil
	case vm.Load, vm.Store:
		return []rowConstraint{addressConstraint}
	case vm.Read:
		return []rowConstraint{
			{"tape_is_bit", 2, func(row []field.Element) field.Element {
				return isBool(row[pA])
			}},
			{"tape_is_immediate", 1, func(row []field.Element) field.Element {
				return field.One.Sub(row[pKind1])
			}},
		}
	}
	panic(fmt.Sprintf("alu: no constraints for opcode %d", uint32(op)))
}

// nextPC is the program counter a row hands to its successor
func nextPC(row []field.Element) field.Element {
	pc := row[pPC]
	seq := selSum(row, sequentialOps).Mul(pc.Add(field.One))
	flag := row[pFlag]
	branch := selSum(row, branchOps).Mul(
		flag.Mul(row[pDst]).Add(field.One.Sub(flag).Mul(pc.Add(field.One))))
	jump := sel(row, vm.Jmp).Mul(row[pA])
	stay := sel(row, vm.Answer).Add(row[pHalted]).Mul(pc)
	return seq.Add(branch).Add(jump).Add(stay)
}

// processorAIR builds the processor constraints for a run starting at start
// and claiming answer.
func processorAIR(start int, answer field.Element, challenges []Challenges) *protocols.AIRConstraints {
	air := protocols.NewAIRConstraints()

	// Initial
	air.AddInitialConstraint("clk_starts_at_0", 1, func(row []field.Element) field.Element {
		return row[pClk]
	})
	air.AddInitialConstraint("pc_starts_at_offset", 1, func(row []field.Element) field.Element {
		return row[pPC].Sub(fe(uint64(start)))
	})
	air.AddInitialConstraint("not_halted", 1, func(row []field.Element) field.Element {
		return row[pHalted]
	})
	air.AddInitialConstraint("pub_cursor_starts_at_0", 1, func(row []field.Element) field.Element {
		return row[pPubCursor]
	})
	air.AddInitialConstraint("priv_cursor_starts_at_0", 1, func(row []field.Element) field.Element {
		return row[pPrivCursor]
	})
	air.AddInitialConstraint("answer_starts_at_0", 1, func(row []field.Element) field.Element {
		return row[pAnswer]
	})

	// Selectors and decoding
	air.AddConsistencyConstraint("halted_is_bit", 2, func(row []field.Element) field.Element {
		return isBool(row[pHalted])
	})
	for op := vm.Opcode(0); op < vm.NumOpcodes; op++ {
		col := pSel + int(op)
		air.AddConsistencyConstraint("sel_"+strings.ToLower(op.String())+"_is_bit", 2,
			func(row []field.Element) field.Element {
				return isBool(row[col])
			})
	}
	air.AddConsistencyConstraint("one_selector_unless_halted", 1, func(row []field.Element) field.Element {
		return selSum(row, allOps).Sub(field.One.Sub(row[pHalted]))
	})
	air.AddConsistencyConstraint("opcode_decode", 1, func(row []field.Element) field.Element {
		acc := row[pOpcode]
		for op := vm.Opcode(0); op < vm.NumOpcodes; op++ {
			acc = acc.Sub(fe(uint64(op)).Mul(sel(row, op)))
		}
		return acc
	})
	air.AddConsistencyConstraint("kind1_is_bit", 2, func(row []field.Element) field.Element {
		return isBool(row[pKind1])
	})
	air.AddConsistencyConstraint("kind2_is_bit", 2, func(row []field.Element) field.Element {
		return isBool(row[pKind2])
	})
	air.AddConsistencyConstraint("src1_immediate", 2, func(row []field.Element) field.Element {
		return row[pKind1].Mul(row[pA].Sub(row[pVal1]))
	})
	air.AddConsistencyConstraint("src2_immediate", 2, func(row []field.Element) field.Element {
		return row[pKind2].Mul(row[pB].Sub(row[pVal2]))
	})
	air.AddConsistencyConstraint("carry_is_bit", 2, func(row []field.Element) field.Element {
		return isBool(row[pCarry])
	})
	air.AddConsistencyConstraint("flag_is_bit", 2, func(row []field.Element) field.Element {
		return isBool(row[pFlag])
	})

	// Range checks
	for _, blk := range bitBlocks {
		for i := 0; i < wordBits; i++ {
			col := blk.base + i
			air.AddConsistencyConstraint(fmt.Sprintf("%s_bit_%d_is_bit", blk.name, i), 2,
				func(row []field.Element) field.Element {
					return isBool(row[col])
				})
		}
		word, base := blk.word, blk.base
		air.AddConsistencyConstraint(blk.name+"_recompose", 1, func(row []field.Element) field.Element {
			return row[word].Sub(recompose(row, base, wordBits))
		})
	}
	air.AddConsistencyConstraint("shift_power", vm.ShiftBits, func(row []field.Element) field.Element {
		acc := field.One
		for i := 0; i < vm.ShiftBits; i++ {
			step := fe(uint64(1)<<(uint64(1)<<uint(i)) - 1)
			acc = acc.Mul(field.One.Add(step.Mul(row[pBBits+i])))
		}
		return row[pPow].Sub(acc)
	})
	air.AddConsistencyConstraint("dst_nz", 2, func(row []field.Element) field.Element {
		return row[pDstNZ].Sub(row[pDst].Mul(row[pDstInv]))
	})
	air.AddConsistencyConstraint("dst_nz_inverse", 2, func(row []field.Element) field.Element {
		return row[pDst].Mul(field.One.Sub(row[pDstNZ]))
	})
	air.AddConsistencyConstraint("no_result", 2, func(row []field.Element) field.Element {
		silent := selSum(row, branchOps).Add(sel(row, vm.Jmp)).Add(sel(row, vm.Answer)).Add(row[pHalted])
		return silent.Mul(row[pRes])
	})

	// Per-opcode semantics
	for op := vm.Opcode(0); op < vm.NumOpcodes; op++ {
		col := pSel + int(op)
		prefix := strings.ToLower(op.String()) + "_"
		for _, c := range opcodeConstraints(op) {
			eval := c.eval
			air.AddConsistencyConstraint(prefix+c.name, c.degree+1, func(row []field.Element) field.Element {
				return row[col].Mul(eval(row))
			})
		}
	}

	// Transitions
	air.AddTransitionConstraint("clk_increments", 1, func(cur, next []field.Element) field.Element {
		return next[pClk].Sub(cur[pClk]).Sub(field.One)
	})
	air.AddTransitionConstraint("halted_after_answer", 1, func(cur, next []field.Element) field.Element {
		return next[pHalted].Sub(cur[pHalted]).Sub(sel(cur, vm.Answer))
	})
	air.AddTransitionConstraint("pc_update", 3, func(cur, next []field.Element) field.Element {
		return next[pPC].Sub(nextPC(cur))
	})
	air.AddTransitionConstraint("answer_update", 2, func(cur, next []field.Element) field.Element {
		s := sel(cur, vm.Answer)
		return next[pAnswer].Sub(s.Mul(cur[pA]).Add(field.One.Sub(s).Mul(cur[pAnswer])))
	})
	air.AddTransitionConstraint("pub_cursor_update", 2, func(cur, next []field.Element) field.Element {
		step := sel(cur, vm.Read).Mul(field.One.Sub(cur[pA]))
		return next[pPubCursor].Sub(cur[pPubCursor]).Sub(step)
	})
	air.AddTransitionConstraint("priv_cursor_update", 2, func(cur, next []field.Element) field.Element {
		step := sel(cur, vm.Read).Mul(cur[pA])
		return next[pPrivCursor].Sub(cur[pPrivCursor]).Sub(step)
	})

	// Terminal
	air.AddTerminalConstraint("halted", 1, func(row []field.Element) field.Element {
		return row[pHalted].Sub(field.One)
	})
	air.AddTerminalConstraint("answer_is_claimed", 1, func(row []field.Element) field.Element {
		return row[pAnswer].Sub(answer)
	})

	// Arguments
	for r := range challenges {
		ch := &challenges[r]
		base := processorMainWidth + r*processorAuxWidth
		rp, ps, ts := base+auxMemoryProduct, base+auxProgramSum, base+auxTapeSum

		air.AddInitialConstraint(fmt.Sprintf("memory_product_%d_starts_at_1", r), 1,
			func(row []field.Element) field.Element {
				return row[rp].Sub(field.One)
			})
		air.AddInitialConstraint(fmt.Sprintf("program_sum_%d_first_row", r), 2,
			func(row []field.Element) field.Element {
				return row[ps].Mul(processorProgramDen(row, ch)).Sub(field.One.Sub(row[pHalted]))
			})
		air.AddInitialConstraint(fmt.Sprintf("tape_sum_%d_first_row", r), 3,
			func(row []field.Element) field.Element {
				return row[ts].Mul(processorTapeDen(row, ch)).Sub(sel(row, vm.Read))
			})

		air.AddTransitionConstraint(fmt.Sprintf("memory_product_%d", r), 13,
			func(cur, next []field.Element) field.Element {
				return next[rp].Sub(cur[rp].Mul(slotProduct(cur, ch)))
			})
		air.AddTransitionConstraint(fmt.Sprintf("program_sum_%d", r), 2,
			func(cur, next []field.Element) field.Element {
				diff := next[ps].Sub(cur[ps])
				return diff.Mul(processorProgramDen(next, ch)).Sub(field.One.Sub(next[pHalted]))
			})
		air.AddTransitionConstraint(fmt.Sprintf("tape_sum_%d", r), 3,
			func(cur, next []field.Element) field.Element {
				diff := next[ts].Sub(cur[ts])
				return diff.Mul(processorTapeDen(next, ch)).Sub(sel(next, vm.Read))
			})
	}

	return air
}

var allOps = func() []vm.Opcode {
	ops := make([]vm.Opcode, vm.NumOpcodes)
	for i := range ops {
		ops[i] = vm.Opcode(i)
	}
	return ops
}()
