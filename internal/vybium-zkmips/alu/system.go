package alu

import (
	"context"
	"fmt"

	"github.com/vybium/vybium-crypto/pkg/vybium-crypto/field"
	"github.com/vybium/vybium-crypto/pkg/vybium-crypto/hash"

	"github.com/vybium/vybium-zkmips/internal/vybium-zkmips/protocols"
)

// ConstraintSystem is the reduced form of one execution: five tables, each
// with its AIR, and the cross-table arguments tying their terminals.
type ConstraintSystem struct {
	Claim       *protocols.Claim
	Challenges  []Challenges
	Commitments []hash.Digest

	SecurityParameter int
	Repetitions       int

	tables [numTables]*Table
}

// Arguments lists the cross-table arguments of every constraint system
var Arguments = []protocols.CrossTableArgument{
	{Name: "memory_consistency", Type: protocols.PermutationArgumentType, Source: "processor", Target: "memory"},
	{Name: "program_attestation", Type: protocols.LookupArgumentType, Source: "processor", Target: "program"},
	{Name: "tape_reads", Type: protocols.LookupArgumentType, Source: "processor", Target: "tape"},
	{Name: "timestamp_range", Type: protocols.LookupArgumentType, Source: "memory", Target: "range"},
}

// Table returns the table with the given id
func (cs *ConstraintSystem) Table(id TableID) *Table {
	return cs.tables[id]
}

// Tables returns all tables in TableID order
func (cs *ConstraintSystem) Tables() []*Table {
	return cs.tables[:]
}

// NumConstraints counts the constraints of all tables, plus one terminal
// equality per cross-table argument and repetition.
func (cs *ConstraintSystem) NumConstraints() int {
	n := len(Arguments) * cs.Repetitions
	for _, t := range cs.tables {
		n += t.AIR.NumConstraints()
	}
	return n
}

// MaxDegree is the highest constraint degree over all tables
func (cs *ConstraintSystem) MaxDegree() int {
	d := 0
	for _, t := range cs.tables {
		d = max(d, t.AIR.MaxDegree())
	}
	return d
}

// Check reports whether every constraint holds
func (cs *ConstraintSystem) Check() error {
	return cs.CheckContext(context.Background())
}

// CheckContext evaluates each table's AIR, then the cross-table terminal
// equalities. The first failure is returned as a *ReductionError wrapping
// ErrConstraintViolation.
func (cs *ConstraintSystem) CheckContext(ctx context.Context) error {
	for _, t := range cs.tables {
		v, err := t.AIR.Check(ctx, t.Rows)
		if err != nil {
			return err
		}
		if v != nil {
			return &ReductionError{
				Table: t.ID.String(),
				Row:   v.Row,
				Err:   fmt.Errorf("%w: %w", ErrConstraintViolation, v),
			}
		}
	}
	return cs.checkArguments()
}

func (cs *ConstraintSystem) checkArguments() error {
	processor, memory := cs.tables[ProcessorTable], cs.tables[MemoryTable]
	program, tape, rng := cs.tables[ProgramTable], cs.tables[TapeTable], cs.tables[RangeTable]

	for r := 0; r < cs.Repetitions; r++ {
		pBase := processorMainWidth + r*processorAuxWidth
		mBase := memoryMainWidth + r*memoryAuxWidth
		pairs := []struct {
			source, target field.Element
		}{
			{processor.terminal(pBase+auxMemoryProduct, field.One), memory.terminal(mBase+auxPermutation, field.One)},
			{processor.terminal(pBase+auxProgramSum, field.Zero), program.terminal(programMainWidth+r, field.Zero)},
			{processor.terminal(pBase+auxTapeSum, field.Zero), tape.terminal(tapeMainWidth+r, field.Zero)},
			{memory.terminal(mBase+auxRangeSum, field.Zero), rng.terminal(rangeMainWidth+r, field.Zero)},
		}
		for i, p := range pairs {
			if !p.source.Equal(p.target) {
				arg := Arguments[i]
				return &ReductionError{
					Table: arg.Source,
					Row:   -1,
					Err: fmt.Errorf("%w: %s %s argument %q, repetition %d: %d != %d",
						ErrConstraintViolation, arg.Target, arg.Type, arg.Name, r,
						p.source.Value(), p.target.Value()),
				}
			}
		}
	}
	return nil
}
