package alu

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/vybium/vybium-crypto/pkg/vybium-crypto/field"
	"github.com/vybium/vybium-crypto/pkg/vybium-crypto/hash"
	"golang.org/x/sync/errgroup"

	"github.com/vybium/vybium-zkmips/internal/vybium-zkmips/logs"
	"github.com/vybium/vybium-zkmips/internal/vybium-zkmips/protocols"
	"github.com/vybium/vybium-zkmips/internal/vybium-zkmips/utils"
	"github.com/vybium/vybium-zkmips/internal/vybium-zkmips/vm"
)

// Options tunes a reduction
type Options struct {
	// SecurityParameter is the target soundness in bits of the permutation
	// and lookup arguments.
	SecurityParameter int

	// HashFunction selects the Fiat-Shamir transcript hash; empty means sha3.
	HashFunction string

	Logger *slog.Logger

	// Unchecked skips the memory replay, leaving inconsistencies for the
	// constraint checks to find.
	Unchecked bool
}

// Reduce turns a halted trace of program into a constraint system. Only the
// first privateTapeLen words of the trace's private tape are committed to;
// reads past them make the system unsatisfiable.
func Reduce(trace *vm.Trace, program *vm.Program, privateTapeLen, securityParameter int) (*ConstraintSystem, error) {
	return ReduceWithOptions(context.Background(), trace, program, privateTapeLen,
		Options{SecurityParameter: securityParameter})
}

// ReduceUnchecked is Reduce without the memory replay. Its result may fail
// Check where Reduce would have returned ErrInconsistentMemoryArgument.
func ReduceUnchecked(trace *vm.Trace, program *vm.Program, privateTapeLen, securityParameter int) (*ConstraintSystem, error) {
	return ReduceWithOptions(context.Background(), trace, program, privateTapeLen,
		Options{SecurityParameter: securityParameter, Unchecked: true})
}

// ReduceWithOptions is Reduce with a context and explicit options
func ReduceWithOptions(ctx context.Context, trace *vm.Trace, program *vm.Program, privateTapeLen int,
	opts Options,
) (*ConstraintSystem, error) {
	if opts.SecurityParameter <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidSecurityParameter, opts.SecurityParameter)
	}
	logger := opts.Logger
	if logger == nil {
		logger = logs.Discard()
	}
	if program == nil {
		return nil, malformed(-1, "program cannot be nil")
	}
	if err := validateTrace(trace, program, privateTapeLen); err != nil {
		return nil, err
	}
	started := time.Now()

	cycles := trace.Cycles
	public := trace.PublicTape
	private := trace.PrivateTape[:privateTapeLen]

	// Phase 1: processor, program and tape tables
	pubCursors, privCursors := make([]int, len(cycles)+1), make([]int, len(cycles)+1)
	multiplicities := make([]uint64, program.Len())
	for i := range cycles {
		pubCursors[i+1], privCursors[i+1] = pubCursors[i], privCursors[i]
		if read := cycles[i].Tape; read != nil {
			if read.Tape == vm.PrivateTape {
				privCursors[i+1]++
			} else {
				pubCursors[i+1]++
			}
		}
		multiplicities[cycles[i].PC]++
	}

	height := utils.NextPowerOfTwo(len(cycles) + 1)
	processor := newTable(ProcessorTable, processorColumns(), height)
	var programTable, tapeTable *Table

	g, gctx := errgroup.WithContext(ctx)
	for start := 0; start < height; start += protocols.DefaultChunkSize {
		end := min(start+protocols.DefaultChunkSize, height)
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			last := &cycles[len(cycles)-1]
			for i := start; i < end; i++ {
				if i < len(cycles) {
					fillCycleRow(processor.Rows[i], &cycles[i], pubCursors[i], privCursors[i])
					continue
				}
				fillPaddingRow(processor.Rows[i], uint64(i), last.NextPC,
					pubCursors[len(cycles)], privCursors[len(cycles)], trace.Answer)
			}
			return nil
		})
	}
	g.Go(func() error {
		programTable = buildProgramTable(program, multiplicities)
		return nil
	})
	g.Go(func() error {
		tapeTable = buildTapeTable(public, private, cycles)
		return nil
	})

	// Phase 2: memory and range tables
	accesses := make([]Access, 0, 3*len(cycles))
	for i := range cycles {
		accesses = append(accesses, accessesOf(&cycles[i])...)
	}
	sortAccesses(accesses)
	if !opts.Unchecked {
		if err := checkAccesses(accesses); err != nil {
			_ = g.Wait()
			return nil, err
		}
	}
	memory, counts := buildMemoryTable(accesses)
	rangeTable := buildRangeTable(counts)

	if err := g.Wait(); err != nil {
		return nil, err
	}
	tables := [numTables]*Table{processor, memory, programTable, tapeTable, rangeTable}
	logger.Debug("tables built",
		"processor", processor.Height(),
		"memory", memory.Height(),
		"program", programTable.Height(),
		"tape", tapeTable.Height())

	// Phase 3: commit, then derive challenges from the claim and commitments
	claim := protocols.NewClaim(program.Digest(), vm.RegisterLength).
		WithInput(program.PublicTape).
		WithOutput(trace.Answer)
	claimHash, err := claim.Hash()
	if err != nil {
		return nil, err
	}

	commitments := make([]hash.Digest, numTables)
	g, gctx = errgroup.WithContext(ctx)
	for id, t := range tables {
		g.Go(func() error {
			root, err := protocols.Commit(gctx, t.Rows, t.MainWidth)
			if err != nil {
				return fmt.Errorf("commit %s table: %w", t.ID, err)
			}
			commitments[id] = root
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	repetitions, err := Repetitions(opts.SecurityParameter, len(accesses)+height)
	if err != nil {
		return nil, err
	}
	challenges := SampleChallenges(opts.HashFunction, claimHash, commitments, repetitions)

	// Phase 4: auxiliary columns
	processor.extend(processorAuxColumns(repetitions))
	memory.extend(memoryAuxColumns(repetitions))
	programTable.extend(lookupAuxColumns("lookup_sum", repetitions))
	tapeTable.extend(lookupAuxColumns("lookup_sum", repetitions))
	rangeTable.extend(lookupAuxColumns("lookup_sum", repetitions))

	fillers := [numTables]func(*Table, int, *Challenges) error{
		ProcessorTable: fillProcessorAux,
		MemoryTable:    fillMemoryAux,
		ProgramTable:   fillProgramAux,
		TapeTable:      fillTapeAux,
		RangeTable:     fillRangeAux,
	}
	g, gctx = errgroup.WithContext(ctx)
	for id, t := range tables {
		g.Go(func() error {
			for r := range challenges {
				if err := gctx.Err(); err != nil {
					return err
				}
				if err := fillers[id](t, r, &challenges[r]); err != nil {
					return &ReductionError{Table: t.ID.String(), Row: -1, Err: err}
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	processor.AIR = processorAIR(trace.StartOffset, field.New(uint64(trace.Answer)), challenges)
	memory.AIR = memoryAIR(challenges)
	programTable.AIR = programAIR(program, challenges)
	tapeTable.AIR = tapeAIR(program.PublicTape, tapeTable.Height(), challenges)
	rangeTable.AIR = rangeAIR(challenges)

	cs := &ConstraintSystem{
		Claim:             claim,
		Challenges:        challenges,
		Commitments:       commitments,
		SecurityParameter: opts.SecurityParameter,
		Repetitions:       repetitions,
		tables:            tables,
	}
	logger.Info("trace reduced",
		"cycles", len(cycles),
		"accesses", len(accesses),
		"repetitions", repetitions,
		"constraints", cs.NumConstraints(),
		"max_degree", cs.MaxDegree(),
		"elapsed", time.Since(started))
	return cs, nil
}

// validateTrace checks that trace is a halted run of program
func validateTrace(trace *vm.Trace, program *vm.Program, privateTapeLen int) error {
	if trace == nil || len(trace.Cycles) == 0 {
		return malformed(-1, "empty trace")
	}
	for i := range trace.Cycles {
		c := &trace.Cycles[i]
		if c.Cycle != uint64(i) {
			return malformed(i, "cycle counter %d", c.Cycle)
		}
		if c.PC < 0 || c.PC >= program.Len() {
			return malformed(i, "pc %d outside program of %d instructions", c.PC, program.Len())
		}
		if c.Instruction != program.Instructions[c.PC] {
			return malformed(i, "instruction does not match program at pc %d", c.PC)
		}
		if c.Instruction.Op == vm.Answer && i != len(trace.Cycles)-1 {
			return malformed(i, "answer before the last cycle")
		}
		switch c.Instruction.Op {
		case vm.Load, vm.Store:
			if c.Mem == nil {
				return malformed(i, "%s without a memory access", c.Instruction.Op)
			}
		case vm.Read:
			if c.Tape == nil {
				return malformed(i, "read without a tape word")
			}
		}
	}

	last := &trace.Cycles[len(trace.Cycles)-1]
	if last.Instruction.Op != vm.Answer {
		return malformed(len(trace.Cycles)-1, "trace does not end in answer")
	}
	if trace.Answer != last.A {
		return malformed(len(trace.Cycles)-1, "answer %d does not match operand %d", trace.Answer, last.A)
	}
	if trace.StartOffset != trace.Cycles[0].PC {
		return malformed(0, "start offset %d does not match pc %d", trace.StartOffset, trace.Cycles[0].PC)
	}
	if len(trace.PublicTape) != len(program.PublicTape) {
		return malformed(-1, "public tape has %d words, program embeds %d",
			len(trace.PublicTape), len(program.PublicTape))
	}
	for i, w := range trace.PublicTape {
		if w != program.PublicTape[i] {
			return malformed(-1, "public tape word %d differs from the program's", i)
		}
	}
	if privateTapeLen < 0 || privateTapeLen > len(trace.PrivateTape) {
		return malformed(-1, "private tape length %d outside 0..%d", privateTapeLen, len(trace.PrivateTape))
	}
	return nil
}
