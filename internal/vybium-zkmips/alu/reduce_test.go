package alu

import (
	"context"
	"errors"
	"slices"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vybium/vybium-crypto/pkg/vybium-crypto/field"

	"github.com/vybium/vybium-zkmips/internal/vybium-zkmips/vm"
)

const lambda = 60

type builder struct {
	insts []vm.Instruction
}

func (b *builder) emit(op vm.Opcode, dst uint32, src1, src2 vm.Operand) int {
	b.insts = append(b.insts, vm.Instruction{Op: op, Dst: dst, Src1: src1, Src2: src2})
	return len(b.insts) - 1
}

// target points the branch at pc to the next instruction to be emitted
func (b *builder) target(pc int) {
	b.insts[pc].Dst = uint32(len(b.insts))
}

func (b *builder) program(publicTape ...uint32) *vm.Program {
	return vm.NewProgram(b.insts, publicTape)
}

func execute(t *testing.T, p *vm.Program, private []uint32, start int) *vm.Trace {
	t.Helper()
	opts := vm.DefaultOptions()
	opts.StartOffset = start
	_, trace, err := vm.Run(context.Background(), p, private, opts)
	require.NoError(t, err)
	return trace
}

func factorialProgram() *vm.Program {
	var b builder
	b.emit(vm.Mov, 1, vm.Imm(5), vm.Imm(0))
	b.emit(vm.Mov, 2, vm.Imm(1), vm.Imm(0))
	b.emit(vm.Mull, 2, vm.Reg(2), vm.Reg(1))
	b.emit(vm.Sub, 1, vm.Reg(1), vm.Imm(1))
	b.emit(vm.Bne, 2, vm.Reg(1), vm.Imm(0))
	b.emit(vm.Answer, 0, vm.Reg(2), vm.Imm(0))
	return b.program()
}

// everyOpcodeProgram executes each opcode at least once, with taken and
// fall-through branches, both tapes and a RAM round trip.
func everyOpcodeProgram() *vm.Program {
	var b builder
	r := vm.Reg
	i := vm.Imm
	b.emit(vm.Mov, 1, i(0xF0F0), i(0))
	b.emit(vm.Mov, 2, i(7), i(0))
	b.emit(vm.Mov, 4, i(vm.WordMask), i(0))
	b.emit(vm.Add, 3, r(1), r(2))
	b.emit(vm.Add, 3, r(4), r(2))
	b.emit(vm.Add, 0, r(1), r(2))
	b.emit(vm.Sub, 3, r(2), r(1))
	b.emit(vm.Mull, 3, r(1), r(1))
	b.emit(vm.Umulh, 3, r(1), r(1))
	b.emit(vm.Udiv, 3, r(1), r(2))
	b.emit(vm.Umod, 3, r(1), r(2))
	b.emit(vm.And, 3, r(1), r(2))
	b.emit(vm.Or, 3, r(1), r(2))
	b.emit(vm.Xor, 3, r(1), r(2))
	b.emit(vm.Not, 3, r(1), i(0))
	b.emit(vm.Shl, 3, r(1), r(2))
	b.emit(vm.Shr, 3, r(1), r(2))
	b.emit(vm.Cmpe, 3, r(1), r(2))
	b.emit(vm.Cmpne, 3, r(1), r(2))
	b.emit(vm.Cmpa, 3, r(1), r(2))
	b.emit(vm.Cmpae, 3, r(2), r(1))
	b.emit(vm.Cmpg, 3, r(4), r(2))
	b.emit(vm.Cmpge, 3, r(2), r(4))

	b.emit(vm.Read, 5, i(uint32(vm.PublicTape)), i(0))
	b.emit(vm.Read, 6, i(uint32(vm.PrivateTape)), i(0))
	b.emit(vm.Read, 7, i(uint32(vm.PublicTape)), i(0))
	b.emit(vm.Store, 5, r(2), i(3))
	b.emit(vm.Load, 8, r(2), i(3))
	b.emit(vm.Load, 9, i(100), i(0))

	beq := b.emit(vm.Beq, 0, r(5), r(8))
	b.emit(vm.Mov, 10, i(99), i(0))
	b.target(beq)
	b.emit(vm.Bne, 0, r(5), r(8))
	blt := b.emit(vm.Blt, 0, r(4), r(2))
	b.emit(vm.Mov, 10, i(98), i(0))
	b.target(blt)
	b.emit(vm.Bltu, 0, r(4), r(2))
	bge := b.emit(vm.Bge, 0, r(2), r(4))
	b.emit(vm.Mov, 10, i(97), i(0))
	b.target(bge)
	b.emit(vm.Bgeu, 0, r(2), r(4))
	jmp := b.emit(vm.Jmp, 0, i(0), i(0))
	b.emit(vm.Mov, 10, i(96), i(0))
	b.insts[jmp].Src1 = i(uint32(len(b.insts)))

	b.emit(vm.Add, 10, r(5), r(6))
	b.emit(vm.Add, 10, r(10), r(7))
	b.emit(vm.Add, 10, r(10), r(8))
	b.emit(vm.Answer, 0, r(10), i(0))
	return b.program(11, 22)
}

func TestReduceFactorial(t *testing.T) {
	p := factorialProgram()
	trace := execute(t, p, nil, 0)

	cs, err := Reduce(trace, p, 0, lambda)
	require.NoError(t, err)
	require.NoError(t, cs.Check())

	answer, err := cs.Claim.Answer()
	require.NoError(t, err)
	assert.Equal(t, uint64(120), answer.Value())
	assert.Equal(t, 18, trace.Len())
	assert.Equal(t, 32, cs.Table(ProcessorTable).Height())
	assert.Equal(t, p.Len(), cs.Table(ProgramTable).Height())
	assert.Equal(t, 0, cs.Table(TapeTable).Height())
	assert.Equal(t, rangeSize, cs.Table(RangeTable).Height())
	assert.Len(t, cs.Tables(), int(numTables))
}

func TestReduceEveryOpcode(t *testing.T) {
	p := everyOpcodeProgram()
	trace := execute(t, p, []uint32{33}, 0)
	assert.Equal(t, uint32(11+33+22+11), trace.Answer)

	cs, err := Reduce(trace, p, 1, lambda)
	require.NoError(t, err)
	require.NoError(t, cs.Check())

	processor := cs.Table(ProcessorTable)
	for op := vm.Opcode(0); op < vm.NumOpcodes; op++ {
		column := "sel_" + strings.ToLower(op.String())
		used := false
		for row := 0; row < processor.Height() && !used; row++ {
			v, ok := processor.Cell(row, column)
			require.True(t, ok, column)
			used = v.Equal(field.One)
		}
		assert.True(t, used, "%s never executed", op)
	}
	assert.Equal(t, 3, cs.Table(TapeTable).Height())
}

func TestReduceFromStartOffset(t *testing.T) {
	var b builder
	b.emit(vm.Mov, 1, vm.Imm(7), vm.Imm(0))
	b.emit(vm.Answer, 0, vm.Reg(1), vm.Imm(0))
	p := b.program()
	trace := execute(t, p, nil, 1)
	assert.Equal(t, uint32(0), trace.Answer)

	cs, err := Reduce(trace, p, 0, lambda)
	require.NoError(t, err)
	require.NoError(t, cs.Check())
}

func TestReduceWithoutMemoryAccesses(t *testing.T) {
	var b builder
	b.emit(vm.Answer, 0, vm.Imm(7), vm.Imm(0))
	p := b.program()
	trace := execute(t, p, nil, 0)

	cs, err := Reduce(trace, p, 0, lambda)
	require.NoError(t, err)
	assert.Equal(t, 0, cs.Table(MemoryTable).Height())
	assert.Equal(t, 2, cs.Table(ProcessorTable).Height())
	require.NoError(t, cs.Check())
}

func TestRepetitions(t *testing.T) {
	tests := []struct {
		lambda, n, want int
	}{
		{60, 100, 2},
		{128, 1 << 20, 3},
		{1, 1, 1},
		{44, 1 << 20, 1},
		{45, 1 << 20, 2},
	}
	for _, tt := range tests {
		got, err := Repetitions(tt.lambda, tt.n)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, "lambda=%d n=%d", tt.lambda, tt.n)
	}

	_, err := Repetitions(0, 10)
	assert.ErrorIs(t, err, ErrInvalidSecurityParameter)
}

func TestReduceRejectsSecurityParameter(t *testing.T) {
	p := factorialProgram()
	trace := execute(t, p, nil, 0)
	_, err := Reduce(trace, p, 0, 0)
	assert.ErrorIs(t, err, ErrInvalidSecurityParameter)
}

func TestReduceRepetitionsScaleWithLambda(t *testing.T) {
	p := factorialProgram()
	trace := execute(t, p, nil, 0)

	low, err := Reduce(trace, p, 0, 40)
	require.NoError(t, err)
	high, err := Reduce(trace, p, 0, 160)
	require.NoError(t, err)
	assert.Equal(t, 1, low.Repetitions)
	assert.Equal(t, 3, high.Repetitions)
	assert.Len(t, high.Challenges, 3)
	assert.Greater(t, high.NumConstraints(), low.NumConstraints())
	require.NoError(t, high.Check())
}

func cloneTrace(trace *vm.Trace) *vm.Trace {
	cp := *trace
	cp.Cycles = slices.Clone(trace.Cycles)
	cp.PublicTape = slices.Clone(trace.PublicTape)
	return &cp
}

func TestReduceMalformedTrace(t *testing.T) {
	p := everyOpcodeProgram()
	trace := execute(t, p, []uint32{33}, 0)
	last := len(trace.Cycles) - 1

	tests := []struct {
		name       string
		mutate     func(tr *vm.Trace) *vm.Trace
		privateLen int
	}{
		{"nil", func(*vm.Trace) *vm.Trace { return nil }, 1},
		{"empty", func(tr *vm.Trace) *vm.Trace { tr.Cycles = nil; return tr }, 1},
		{"cycle counter", func(tr *vm.Trace) *vm.Trace { tr.Cycles[3].Cycle = 9; return tr }, 1},
		{"pc out of range", func(tr *vm.Trace) *vm.Trace { tr.Cycles[3].PC = p.Len(); return tr }, 1},
		{"instruction mismatch", func(tr *vm.Trace) *vm.Trace {
			tr.Cycles[3].Instruction.Dst++
			return tr
		}, 1},
		{"no answer", func(tr *vm.Trace) *vm.Trace { tr.Cycles = tr.Cycles[:last]; return tr }, 1},
		{"wrong answer", func(tr *vm.Trace) *vm.Trace { tr.Answer++; return tr }, 1},
		{"start offset", func(tr *vm.Trace) *vm.Trace { tr.StartOffset = 2; return tr }, 1},
		{"public tape", func(tr *vm.Trace) *vm.Trace { tr.PublicTape[0] = 12; return tr }, 1},
		{"private tape length", func(tr *vm.Trace) *vm.Trace { return tr }, 2},
		{"negative private tape length", func(tr *vm.Trace) *vm.Trace { return tr }, -1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Reduce(tt.mutate(cloneTrace(trace)), p, tt.privateLen, lambda)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrMalformedTrace)

			var re *ReductionError
			require.True(t, errors.As(err, &re))
			assert.Equal(t, "trace", re.Table)
		})
	}
}

func memoryProgram() *vm.Program {
	var b builder
	b.emit(vm.Mov, 1, vm.Imm(42), vm.Imm(0))
	b.emit(vm.Store, 1, vm.Imm(8), vm.Imm(0))
	b.emit(vm.Load, 2, vm.Imm(8), vm.Imm(0))
	b.emit(vm.Answer, 0, vm.Reg(2), vm.Imm(0))
	return b.program()
}

func TestInconsistentMemory(t *testing.T) {
	p := memoryProgram()
	trace := cloneTrace(execute(t, p, nil, 0))
	trace.Cycles[2].Result = 41

	_, err := Reduce(trace, p, 0, lambda)
	require.ErrorIs(t, err, ErrInconsistentMemoryArgument)
	var re *ReductionError
	require.True(t, errors.As(err, &re))
	assert.Equal(t, "memory", re.Table)

	cs, err := ReduceUnchecked(trace, p, 0, lambda)
	require.NoError(t, err)
	err = cs.Check()
	require.ErrorIs(t, err, ErrConstraintViolation)
	require.True(t, errors.As(err, &re))
	assert.Equal(t, "memory", re.Table)
}

func TestTamperedProcessorCell(t *testing.T) {
	p := factorialProgram()
	cs, err := Reduce(execute(t, p, nil, 0), p, 0, lambda)
	require.NoError(t, err)

	// row 3 is the first SUB
	processor := cs.Table(ProcessorTable)
	processor.Rows[3][pRes] = processor.Rows[3][pRes].Add(field.One)

	err = cs.Check()
	require.ErrorIs(t, err, ErrConstraintViolation)
	var re *ReductionError
	require.True(t, errors.As(err, &re))
	assert.Equal(t, "processor", re.Table)
	assert.Equal(t, 3, re.Row)
}

// A product below 2^W-1 has a second split hi*2^W + lo = a*b + p with
// hi = 2^W-1, which the product constraint alone accepts in the 32-bit build.
func TestNonCanonicalProductSplit(t *testing.T) {
	var b builder
	b.emit(vm.Mov, 1, vm.Imm(1), vm.Imm(0))
	b.emit(vm.Mull, 2, vm.Reg(1), vm.Reg(1))
	b.emit(vm.Answer, 0, vm.Reg(2), vm.Imm(0))
	p := b.program()

	trace := execute(t, p, nil, 0)
	trace.Cycles[1].Result = 2
	trace.Cycles[2].A = 2
	trace.Answer = 2

	cs, err := ReduceUnchecked(trace, p, 0, lambda)
	require.NoError(t, err)

	row := cs.Table(ProcessorTable).Rows[1]
	row[pX] = wordMax
	setBits(row, pXBits, wordBits, uint64(vm.WordMask))

	err = cs.Check()
	require.ErrorIs(t, err, ErrConstraintViolation)
	var re *ReductionError
	require.True(t, errors.As(err, &re))
	assert.Equal(t, "processor", re.Table)
	assert.Equal(t, 1, re.Row)
	if vm.RegisterLength == 32 {
		assert.Contains(t, err.Error(), "mull_canonical_split")
	}
}

func TestLargestProductsStayCanonical(t *testing.T) {
	var b builder
	b.emit(vm.Mov, 1, vm.Imm(vm.WordMask), vm.Imm(0))
	b.emit(vm.Mull, 2, vm.Reg(1), vm.Reg(1))
	b.emit(vm.Umulh, 3, vm.Reg(1), vm.Reg(1))
	b.emit(vm.Shl, 4, vm.Reg(1), vm.Imm(wordBits-1))
	b.emit(vm.Add, 5, vm.Reg(2), vm.Reg(3))
	b.emit(vm.Add, 5, vm.Reg(5), vm.Reg(4))
	b.emit(vm.Answer, 0, vm.Reg(5), vm.Imm(0))
	p := b.program()

	cs, err := Reduce(execute(t, p, nil, 0), p, 0, lambda)
	require.NoError(t, err)
	require.NoError(t, cs.Check())
}

func TestTamperedProgramTable(t *testing.T) {
	p := factorialProgram()
	cs, err := Reduce(execute(t, p, nil, 0), p, 0, lambda)
	require.NoError(t, err)

	cs.Table(ProgramTable).Rows[0][gOpcode] = fe(uint64(vm.Add))
	err = cs.Check()
	require.ErrorIs(t, err, ErrConstraintViolation)
	var re *ReductionError
	require.True(t, errors.As(err, &re))
	assert.Equal(t, "program", re.Table)
	assert.Equal(t, 0, re.Row)
}

func TestTamperedPublicTape(t *testing.T) {
	p := everyOpcodeProgram()
	cs, err := Reduce(execute(t, p, []uint32{33}, 0), p, 1, lambda)
	require.NoError(t, err)

	cs.Table(TapeTable).Rows[0][tValue] = fe(12)
	err = cs.Check()
	require.ErrorIs(t, err, ErrConstraintViolation)
	var re *ReductionError
	require.True(t, errors.As(err, &re))
	assert.Equal(t, "tape", re.Table)
	assert.Equal(t, 0, re.Row)
}

func TestUncommittedPrivateTape(t *testing.T) {
	p := everyOpcodeProgram()
	trace := execute(t, p, []uint32{33}, 0)

	cs, err := Reduce(trace, p, 0, lambda)
	require.NoError(t, err)
	err = cs.Check()
	require.ErrorIs(t, err, ErrConstraintViolation)
	var re *ReductionError
	require.True(t, errors.As(err, &re))
	assert.Equal(t, -1, re.Row)
	assert.Contains(t, err.Error(), "tape_reads")
}

func TestChallengesAreDeterministic(t *testing.T) {
	p := factorialProgram()
	trace := execute(t, p, nil, 0)

	a, err := Reduce(trace, p, 0, lambda)
	require.NoError(t, err)
	b, err := Reduce(trace, p, 0, lambda)
	require.NoError(t, err)
	assert.Equal(t, a.Commitments, b.Commitments)
	assert.Equal(t, a.Challenges, b.Challenges)

	c, err := ReduceWithOptions(context.Background(), trace, p, 0,
		Options{SecurityParameter: lambda, HashFunction: "sha256"})
	require.NoError(t, err)
	assert.Equal(t, a.Commitments, c.Commitments)
	assert.NotEqual(t, a.Challenges, c.Challenges)
	require.NoError(t, c.Check())
}

func TestCheckCancelled(t *testing.T) {
	p := factorialProgram()
	cs, err := Reduce(execute(t, p, nil, 0), p, 0, lambda)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, cs.CheckContext(ctx), context.Canceled)
}

func TestDegreeAndCount(t *testing.T) {
	p := factorialProgram()
	cs, err := Reduce(execute(t, p, nil, 0), p, 0, lambda)
	require.NoError(t, err)

	assert.Equal(t, 13, cs.MaxDegree())
	total := len(Arguments) * cs.Repetitions
	for _, table := range cs.Tables() {
		total += table.AIR.NumConstraints()
	}
	assert.Equal(t, total, cs.NumConstraints())
}
