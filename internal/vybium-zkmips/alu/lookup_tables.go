package alu

import (
	"fmt"

	"github.com/vybium/vybium-crypto/pkg/vybium-crypto/field"

	"github.com/vybium/vybium-zkmips/internal/vybium-zkmips/protocols"
	"github.com/vybium/vybium-zkmips/internal/vybium-zkmips/vm"
)

// ========== Program table ==========

// Program table main columns: one row per instruction
const (
	gPC = iota
	gOpcode
	gDst
	gKind1
	gVal1
	gKind2
	gVal2
	gMult
	programMainWidth
)

func programColumns() []string {
	return []string{"pc", "opcode", "dst", "kind1", "val1", "kind2", "val2", "multiplicity"}
}

func buildProgramTable(program *vm.Program, multiplicities []uint64) *Table {
	t := newTable(ProgramTable, programColumns(), program.Len())
	for pc, inst := range program.Instructions {
		row := t.Rows[pc]
		row[gPC] = fe(uint64(pc))
		copy(row[gOpcode:gVal2+1], inst.Words())
		row[gMult] = fe(multiplicities[pc])
	}
	return t
}

func programRowDen(row []field.Element, ch *Challenges) field.Element {
	return ch.programDen(row[gPC : gVal2+1])
}

func fillProgramAux(t *Table, r int, ch *Challenges) error {
	col := programMainWidth + r
	symbols := make([]field.Element, t.Height())
	mults := make([]field.Element, t.Height())
	for i, row := range t.Rows {
		symbols[i] = ch.ProgramGamma.Sub(programRowDen(row, ch))
		mults[i] = row[gMult]
	}
	sums, err := protocols.RunningLogDerivative(symbols, mults, field.Zero, ch.ProgramGamma)
	if err != nil {
		return fmt.Errorf("program lookup: %w", err)
	}
	for i, row := range t.Rows {
		row[col] = sums[i]
	}
	return nil
}

// programAIR pins every row to the attested program
func programAIR(program *vm.Program, challenges []Challenges) *protocols.AIRConstraints {
	air := protocols.NewAIRConstraints()

	air.AddInitialConstraint("pc_starts_at_0", 1, func(row []field.Element) field.Element {
		return row[gPC]
	})
	air.AddTransitionConstraint("pc_increments", 1, func(cur, next []field.Element) field.Element {
		return next[gPC].Sub(cur[gPC]).Sub(field.One)
	})
	air.AddTerminalConstraint("covers_program", 1, func(row []field.Element) field.Element {
		return row[gPC].Sub(fe(uint64(program.Len() - 1)))
	})

	for pc, inst := range program.Instructions {
		words := inst.Words()
		for k, name := range []string{"opcode", "dst", "kind1", "val1", "kind2", "val2"} {
			col, want := gOpcode+k, words[k]
			air.AddBoundaryConstraint(fmt.Sprintf("pc_%d_%s", pc, name), pc, 1,
				func(row []field.Element) field.Element {
					return row[col].Sub(want)
				})
		}
	}

	for r := range challenges {
		ch := &challenges[r]
		col := programMainWidth + r
		air.AddInitialConstraint(fmt.Sprintf("lookup_sum_%d_first_row", r), 2,
			func(row []field.Element) field.Element {
				return row[col].Mul(programRowDen(row, ch)).Sub(row[gMult])
			})
		air.AddTransitionConstraint(fmt.Sprintf("lookup_sum_%d", r), 2,
			func(cur, next []field.Element) field.Element {
				return next[col].Sub(cur[col]).Mul(programRowDen(next, ch)).Sub(next[gMult])
			})
	}
	return air
}

// ========== Tape table ==========

// Tape table main columns: public words first, then private words
const (
	tTape = iota
	tIndex
	tValue
	tMult
	tapeMainWidth
)

func tapeColumns() []string {
	return []string{"tape", "index", "value", "multiplicity"}
}

func buildTapeTable(public, private []uint32, cycles []vm.Cycle) *Table {
	t := newTable(TapeTable, tapeColumns(), len(public)+len(private))
	for i, w := range public {
		row := t.Rows[i]
		row[tTape] = fe(uint64(vm.PublicTape))
		row[tIndex] = fe(uint64(i))
		row[tValue] = fe(uint64(w))
	}
	for i, w := range private {
		row := t.Rows[len(public)+i]
		row[tTape] = fe(uint64(vm.PrivateTape))
		row[tIndex] = fe(uint64(i))
		row[tValue] = fe(uint64(w))
	}

	counts := make([]uint64, t.Height())
	for i := range cycles {
		read := cycles[i].Tape
		if read == nil {
			continue
		}
		row := read.Index
		if read.Tape == vm.PrivateTape {
			if row >= len(private) {
				continue
			}
			row += len(public)
		} else if row >= len(public) {
			continue
		}
		counts[row]++
	}
	for i, n := range counts {
		t.Rows[i][tMult] = fe(n)
	}
	return t
}

func tapeRowDen(row []field.Element, ch *Challenges) field.Element {
	return ch.tapeDen(row[tTape], row[tIndex], row[tValue])
}

func fillTapeAux(t *Table, r int, ch *Challenges) error {
	col := tapeMainWidth + r
	sum := field.Zero
	for i, row := range t.Rows {
		if !row[tMult].IsZero() {
			den := tapeRowDen(row, ch)
			if den.IsZero() {
				return fmt.Errorf("%w: tape lookup, row %d", protocols.ErrChallengeCollision, i)
			}
			sum = sum.Add(row[tMult].Mul(den.Inverse()))
		}
		row[col] = sum
	}
	return nil
}

// tapeAIR fixes the public section to the claimed public tape
func tapeAIR(public []uint32, height int, challenges []Challenges) *protocols.AIRConstraints {
	air := protocols.NewAIRConstraints()

	air.AddInitialConstraint("index_starts_at_0", 1, func(row []field.Element) field.Element {
		return row[tIndex]
	})
	air.AddConsistencyConstraint("tape_is_bit", 2, func(row []field.Element) field.Element {
		return isBool(row[tTape])
	})
	air.AddTransitionConstraint("tape_monotone", 2, func(cur, next []field.Element) field.Element {
		return isBool(next[tTape].Sub(cur[tTape]))
	})
	air.AddTransitionConstraint("index_increments", 2, func(cur, next []field.Element) field.Element {
		switched := next[tTape].Sub(cur[tTape])
		same := field.One.Sub(switched).Mul(next[tIndex].Sub(cur[tIndex]).Sub(field.One))
		return same.Add(switched.Mul(next[tIndex]))
	})

	for i, w := range public {
		want := fe(uint64(w))
		air.AddBoundaryConstraint(fmt.Sprintf("public_%d_tape", i), i, 1, func(row []field.Element) field.Element {
			return row[tTape].Sub(fe(uint64(vm.PublicTape)))
		})
		air.AddBoundaryConstraint(fmt.Sprintf("public_%d_value", i), i, 1, func(row []field.Element) field.Element {
			return row[tValue].Sub(want)
		})
	}
	if len(public) < height {
		air.AddBoundaryConstraint("private_section", len(public), 1, func(row []field.Element) field.Element {
			return row[tTape].Sub(fe(uint64(vm.PrivateTape)))
		})
	}

	for r := range challenges {
		ch := &challenges[r]
		col := tapeMainWidth + r
		air.AddInitialConstraint(fmt.Sprintf("lookup_sum_%d_first_row", r), 2,
			func(row []field.Element) field.Element {
				return row[col].Mul(tapeRowDen(row, ch)).Sub(row[tMult])
			})
		air.AddTransitionConstraint(fmt.Sprintf("lookup_sum_%d", r), 2,
			func(cur, next []field.Element) field.Element {
				return next[col].Sub(cur[col]).Mul(tapeRowDen(next, ch)).Sub(next[tMult])
			})
	}
	return air
}

// ========== Range table ==========

// Range table main columns: the values 0..255
const (
	rValue = iota
	rMult
	rangeMainWidth
)

const rangeSize = 1 << limbBits

func buildRangeTable(counts []uint64) *Table {
	t := newTable(RangeTable, []string{"value", "multiplicity"}, rangeSize)
	for v := 0; v < rangeSize; v++ {
		t.Rows[v][rValue] = fe(uint64(v))
		t.Rows[v][rMult] = fe(counts[v])
	}
	return t
}

func fillRangeAux(t *Table, r int, ch *Challenges) error {
	col := rangeMainWidth + r
	values := make([]field.Element, t.Height())
	mults := make([]field.Element, t.Height())
	for i, row := range t.Rows {
		values[i] = row[rValue]
		mults[i] = row[rMult]
	}
	sums, err := protocols.RunningLogDerivative(values, mults, field.Zero, ch.RangeBeta)
	if err != nil {
		return fmt.Errorf("range lookup: %w", err)
	}
	for i, row := range t.Rows {
		row[col] = sums[i]
	}
	return nil
}

func rangeAIR(challenges []Challenges) *protocols.AIRConstraints {
	air := protocols.NewAIRConstraints()

	air.AddInitialConstraint("value_starts_at_0", 1, func(row []field.Element) field.Element {
		return row[rValue]
	})
	air.AddTransitionConstraint("value_increments", 1, func(cur, next []field.Element) field.Element {
		return next[rValue].Sub(cur[rValue]).Sub(field.One)
	})
	air.AddTerminalConstraint("value_ends_at_255", 1, func(row []field.Element) field.Element {
		return row[rValue].Sub(fe(rangeSize - 1))
	})

	for r := range challenges {
		ch := &challenges[r]
		col := rangeMainWidth + r
		air.AddInitialConstraint(fmt.Sprintf("lookup_sum_%d_first_row", r), 2,
			func(row []field.Element) field.Element {
				return row[col].Mul(ch.rangeDen(row[rValue])).Sub(row[rMult])
			})
		air.AddTransitionConstraint(fmt.Sprintf("lookup_sum_%d", r), 2,
			func(cur, next []field.Element) field.Element {
				return next[col].Sub(cur[col]).Mul(ch.rangeDen(next[rValue])).Sub(next[rMult])
			})
	}
	return air
}

func lookupAuxColumns(prefix string, repetitions int) []string {
	names := make([]string, repetitions)
	for r := range names {
		names[r] = fmt.Sprintf("%s_%d", prefix, r)
	}
	return names
}
