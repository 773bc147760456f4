package alu

import (
	"cmp"
	"fmt"
	"slices"

	"github.com/vybium/vybium-crypto/pkg/vybium-crypto/field"

	"github.com/vybium/vybium-zkmips/internal/vybium-zkmips/protocols"
	"github.com/vybium/vybium-zkmips/internal/vybium-zkmips/vm"
)

// Memory table main columns
const (
	mSpace = iota
	mAddr
	mTS
	mWrite
	mValue
	mSame
	mKeyInv
	mLimbs
	memoryMainWidth = mLimbs + numLimbs
)

// Memory table auxiliary columns, per repetition
const (
	auxPermutation = iota
	auxRangeSum
	memoryAuxWidth
)

const (
	numLimbs  = 6
	limbBits  = 8
	limbMask  = 1<<limbBits - 1
	keyStride = uint64(1) << 32
)

// Address spaces
const (
	RegisterSpace = 0
	RAMSpace      = 1
)

// Access is one register or RAM access, ordered by timestamp 4*clk + slot.
type Access struct {
	Space     uint64
	Address   uint64
	Timestamp uint64
	Write     bool
	Value     uint32
}

func (a Access) key() uint64 {
	return a.Space*keyStride + a.Address
}

// accessesOf lists the accesses of one cycle in slot order: src1 read, src2
// read, RAM access, dst write (or the register read of a STORE).
func accessesOf(c *vm.Cycle) []Access {
	inst := c.Instruction
	ts := 4 * c.Cycle
	var out []Access
	if !inst.Src1.IsImmediate() {
		out = append(out, Access{RegisterSpace, uint64(inst.Src1.Value), ts, false, c.A})
	}
	if !inst.Src2.IsImmediate() {
		out = append(out, Access{RegisterSpace, uint64(inst.Src2.Value), ts + 1, false, c.B})
	}
	switch inst.Op {
	case vm.Load:
		out = append(out, Access{RAMSpace, uint64(c.Mem.Address), ts + 2, false, c.Result})
	case vm.Store:
		out = append(out, Access{RAMSpace, uint64(c.Mem.Address), ts + 2, true, c.Result})
		out = append(out, Access{RegisterSpace, uint64(inst.Dst), ts + 3, false, c.Result})
	}
	if inst.Op.WritesDst() && inst.Dst != 0 {
		out = append(out, Access{RegisterSpace, uint64(inst.Dst), ts + 3, true, c.Result})
	}
	return out
}

// sortAccesses orders accesses by (space, address, timestamp)
func sortAccesses(accesses []Access) {
	slices.SortFunc(accesses, func(x, y Access) int {
		if c := cmp.Compare(x.key(), y.key()); c != 0 {
			return c
		}
		return cmp.Compare(x.Timestamp, y.Timestamp)
	})
}

// checkAccesses replays sorted accesses: every read must return the last
// value written to its address, or zero before the first write.
func checkAccesses(sorted []Access) error {
	var last uint32
	for i, a := range sorted {
		if i == 0 || a.key() != sorted[i-1].key() {
			last = 0
		}
		if !a.Write && a.Value != last {
			space := "register"
			if a.Space == RAMSpace {
				space = "RAM"
			}
			return &ReductionError{
				Table: MemoryTable.String(),
				Row:   i,
				Err: fmt.Errorf("%w: %s %d read %d at timestamp %d, expected %d",
					ErrInconsistentMemoryArgument, space, a.Address, a.Value, a.Timestamp, last),
			}
		}
		last = a.Value
	}
	return nil
}

func memoryColumns() []string {
	columns := []string{"space", "addr", "ts", "write", "value", "same", "key_inv"}
	for i := 0; i < numLimbs; i++ {
		columns = append(columns, fmt.Sprintf("delta_limb_%d", i))
	}
	return columns
}

func memoryAuxColumns(repetitions int) []string {
	names := make([]string, 0, repetitions*memoryAuxWidth)
	for r := 0; r < repetitions; r++ {
		names = append(names, fmt.Sprintf("permutation_%d", r), fmt.Sprintf("range_sum_%d", r))
	}
	return names
}

// buildMemoryTable lays sorted accesses out as rows and returns the table
// along with the range multiplicities of its delta limbs.
func buildMemoryTable(sorted []Access) (*Table, []uint64) {
	t := newTable(MemoryTable, memoryColumns(), len(sorted))
	counts := make([]uint64, 1<<limbBits)
	for i, a := range sorted {
		row := t.Rows[i]
		row[mSpace] = fe(a.Space)
		row[mAddr] = fe(a.Address)
		row[mTS] = fe(a.Timestamp)
		row[mWrite] = boolElem(a.Write)
		row[mValue] = fe(uint64(a.Value))

		var delta uint64
		if i > 0 {
			prev := sorted[i-1]
			if a.key() == prev.key() {
				row[mSame] = field.One
				delta = a.Timestamp - prev.Timestamp - 1
			} else {
				row[mKeyInv] = fe(a.key() - prev.key()).Inverse()
				delta = a.key() - prev.key() - 1
			}
		}
		for k := 0; k < numLimbs; k++ {
			limb := (delta >> (k * limbBits)) & limbMask
			row[mLimbs+k] = fe(limb)
			counts[limb]++
		}
	}
	return t, counts
}

func memoryKey(row []field.Element) field.Element {
	return row[mSpace].Mul(fe(keyStride)).Add(row[mAddr])
}

func memoryRowDen(row []field.Element, ch *Challenges) field.Element {
	return ch.memoryDen(row[mSpace], row[mAddr], row[mTS], row[mWrite], row[mValue])
}

func limbDens(row []field.Element, ch *Challenges) []field.Element {
	dens := make([]field.Element, numLimbs)
	for k := range dens {
		dens[k] = ch.rangeDen(row[mLimbs+k])
	}
	return dens
}

var limbMultiplicities = func() []field.Element {
	out := make([]field.Element, numLimbs)
	for i := range out {
		out[i] = field.One
	}
	return out
}()

func fillMemoryAux(t *Table, r int, ch *Challenges) error {
	base := memoryMainWidth + r*memoryAuxWidth
	symbols := make([]field.Element, t.Height())
	limbs := make([]field.Element, 0, t.Height()*numLimbs)
	for i, row := range t.Rows {
		symbols[i] = ch.MemoryAlpha.Sub(memoryRowDen(row, ch))
		limbs = append(limbs, row[mLimbs:mLimbs+numLimbs]...)
	}
	products := protocols.RunningProduct(symbols, field.One, ch.MemoryAlpha)
	sums, err := protocols.RunningLogDerivative(limbs, nil, field.Zero, ch.RangeBeta)
	if err != nil {
		return fmt.Errorf("memory range lookup: %w", err)
	}
	for i, row := range t.Rows {
		row[base+auxPermutation] = products[i]
		row[base+auxRangeSum] = sums[(i+1)*numLimbs-1]
	}
	return nil
}

func memoryAIR(challenges []Challenges) *protocols.AIRConstraints {
	air := protocols.NewAIRConstraints()

	air.AddInitialConstraint("first_row_not_same", 1, func(row []field.Element) field.Element {
		return row[mSame]
	})
	air.AddInitialConstraint("first_read_is_zero", 2, func(row []field.Element) field.Element {
		return field.One.Sub(row[mWrite]).Mul(row[mValue])
	})

	air.AddConsistencyConstraint("space_is_bit", 2, func(row []field.Element) field.Element {
		return isBool(row[mSpace])
	})
	air.AddConsistencyConstraint("write_is_bit", 2, func(row []field.Element) field.Element {
		return isBool(row[mWrite])
	})
	air.AddConsistencyConstraint("same_is_bit", 2, func(row []field.Element) field.Element {
		return isBool(row[mSame])
	})

	air.AddTransitionConstraint("same_key_inverse", 2, func(cur, next []field.Element) field.Element {
		dk := memoryKey(next).Sub(memoryKey(cur))
		return dk.Mul(next[mKeyInv]).Sub(field.One.Sub(next[mSame]))
	})
	air.AddTransitionConstraint("same_key", 2, func(cur, next []field.Element) field.Element {
		return next[mSame].Mul(memoryKey(next).Sub(memoryKey(cur)))
	})
	air.AddTransitionConstraint("sorted", 2, func(cur, next []field.Element) field.Element {
		delta := recomposeLimbs(next)
		same := next[mSame]
		dts := next[mTS].Sub(cur[mTS]).Sub(field.One)
		dk := memoryKey(next).Sub(memoryKey(cur)).Sub(field.One)
		return delta.Sub(same.Mul(dts).Add(field.One.Sub(same).Mul(dk)))
	})
	air.AddTransitionConstraint("read_returns_last_value", 3, func(cur, next []field.Element) field.Element {
		return field.One.Sub(next[mWrite]).Mul(next[mValue].Sub(next[mSame].Mul(cur[mValue])))
	})

	for r := range challenges {
		ch := &challenges[r]
		base := memoryMainWidth + r*memoryAuxWidth
		mp, rs := base+auxPermutation, base+auxRangeSum

		air.AddInitialConstraint(fmt.Sprintf("permutation_%d_first_row", r), 2,
			func(row []field.Element) field.Element {
				return row[mp].Sub(memoryRowDen(row, ch))
			})
		air.AddInitialConstraint(fmt.Sprintf("range_sum_%d_first_row", r), numLimbs+1,
			func(row []field.Element) field.Element {
				return protocols.LogDerivativeStep(row[rs], limbDens(row, ch), limbMultiplicities)
			})
		air.AddTransitionConstraint(fmt.Sprintf("permutation_%d", r), 2,
			func(cur, next []field.Element) field.Element {
				return next[mp].Sub(cur[mp].Mul(memoryRowDen(next, ch)))
			})
		air.AddTransitionConstraint(fmt.Sprintf("range_sum_%d", r), numLimbs+1,
			func(cur, next []field.Element) field.Element {
				return protocols.LogDerivativeStep(next[rs].Sub(cur[rs]), limbDens(next, ch), limbMultiplicities)
			})
	}
	return air
}

func recomposeLimbs(row []field.Element) field.Element {
	acc := field.Zero
	for k := 0; k < numLimbs; k++ {
		acc = acc.Add(row[mLimbs+k].Mul(pow2[k*limbBits]))
	}
	return acc
}
