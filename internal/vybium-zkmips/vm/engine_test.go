package vm

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func program(insts ...Instruction) *Program {
	return NewProgram(insts, nil)
}

func inst(op Opcode, dst uint32, src1, src2 Operand) Instruction {
	return Instruction{Op: op, Dst: dst, Src1: src1, Src2: src2}
}

// binop computes op(a, b) through the engine by loading both operands into
// registers first.
func binop(t *testing.T, op Opcode, a, b uint32) uint32 {
	t.Helper()
	p := program(
		inst(Mov, 8, Imm(a), Imm(0)),
		inst(Mov, 9, Imm(b), Imm(0)),
		inst(op, 10, Reg(8), Reg(9)),
		inst(Answer, 0, Reg(10), Imm(0)),
	)
	answer, _, err := Run(context.Background(), p, nil, DefaultOptions())
	require.NoError(t, err)
	return answer
}

func TestArithmeticWraparound(t *testing.T) {
	top := WordMask
	tests := []struct {
		name string
		op   Opcode
		a, b uint32
		want uint32
	}{
		{"add", Add, 40, 2, 42},
		{"add wraps", Add, top, 2, 1},
		{"sub", Sub, 44, 2, 42},
		{"sub wraps", Sub, 0, 1, top},
		{"mull", Mull, 6, 7, 42},
		{"mull wraps", Mull, top, top, 1},
		{"umulh", Umulh, top, top, top - 1},
		{"umulh small", Umulh, 6, 7, 0},
		{"udiv", Udiv, 85, 2, 42},
		{"umod", Umod, 85, 43, 42},
		{"and", And, 0b1100, 0b1010, 0b1000},
		{"or", Or, 0b1100, 0b1010, 0b1110},
		{"xor", Xor, 0b1100, 0b1010, 0b0110},
		{"shl", Shl, 1, 4, 16},
		{"shl drops overflow", Shl, SignBit | 1, 1, 2},
		{"shl masks amount", Shl, 1, RegisterLength + 1, 2},
		{"shr", Shr, 64, 2, 16},
		{"shr is logical", Shr, SignBit, RegisterLength - 1, 1},
		{"cmpe true", Cmpe, 5, 5, 1},
		{"cmpe false", Cmpe, 5, 6, 0},
		{"cmpne", Cmpne, 5, 6, 1},
		{"cmpa unsigned", Cmpa, top, 1, 1},
		{"cmpae equal", Cmpae, 3, 3, 1},
		{"cmpg signed", Cmpg, top, 1, 0},
		{"cmpg positive", Cmpg, 2, 1, 1},
		{"cmpge signed", Cmpge, 1, top, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, binop(t, tt.op, tt.a, tt.b))
		})
	}
}

func TestArithmeticMatchesModularMath(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	mod := uint64(1) << RegisterLength
	for i := 0; i < 25; i++ {
		a := rng.Uint32() & WordMask
		b := rng.Uint32() & WordMask
		assert.Equal(t, uint32((uint64(a)+uint64(b))%mod), binop(t, Add, a, b))
		assert.Equal(t, uint32((uint64(a)+mod-uint64(b))%mod), binop(t, Sub, a, b))
		assert.Equal(t, uint32((uint64(a)*uint64(b))%mod), binop(t, Mull, a, b))
	}
}

func TestNot(t *testing.T) {
	p := program(
		inst(Not, 8, Imm(0), Imm(0)),
		inst(Answer, 0, Reg(8), Imm(0)),
	)
	answer, _, err := Run(context.Background(), p, nil, DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, WordMask, answer)
}

func TestZeroRegisterIsHardwired(t *testing.T) {
	p := program(
		inst(Mov, 0, Imm(7), Imm(0)),
		inst(Add, 8, Reg(0), Imm(1)),
		inst(Answer, 0, Reg(8), Imm(0)),
	)
	answer, trace, err := Run(context.Background(), p, nil, DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, uint32(1), answer)
	assert.Equal(t, uint32(7), trace.Cycles[0].Result)
}

func TestBranches(t *testing.T) {
	neg := WordMask // -1
	tests := []struct {
		op    Opcode
		a, b  uint32
		taken bool
	}{
		{Beq, 3, 3, true},
		{Beq, 3, 4, false},
		{Bne, 3, 4, true},
		{Blt, neg, 0, true},
		{Bltu, neg, 0, false},
		{Bge, 0, neg, true},
		{Bgeu, 0, neg, false},
	}
	for _, tt := range tests {
		t.Run(tt.op.String(), func(t *testing.T) {
			p := program(
				inst(tt.op, 3, Imm(tt.a), Imm(tt.b)),
				inst(Mov, 8, Imm(1), Imm(0)),
				inst(Answer, 0, Reg(8), Imm(0)),
				inst(Mov, 8, Imm(2), Imm(0)),
				inst(Answer, 0, Reg(8), Imm(0)),
			)
			answer, _, err := Run(context.Background(), p, nil, DefaultOptions())
			require.NoError(t, err)
			if tt.taken {
				assert.Equal(t, uint32(2), answer)
			} else {
				assert.Equal(t, uint32(1), answer)
			}
		})
	}
}

func TestRegisterJump(t *testing.T) {
	p := program(
		inst(Mov, 31, Imm(3), Imm(0)),
		inst(Jmp, 0, Reg(31), Imm(0)),
		inst(Answer, 0, Imm(1), Imm(0)),
		inst(Answer, 0, Imm(2), Imm(0)),
	)
	answer, _, err := Run(context.Background(), p, nil, DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, uint32(2), answer)
}

func TestMemoryDefaultReadAndRoundTrip(t *testing.T) {
	p := program(
		inst(Load, 8, Imm(1000), Imm(7)),
		inst(Mov, 9, Imm(13), Imm(0)),
		inst(Store, 9, Imm(1000), Imm(7)),
		inst(Load, 10, Imm(1007), Imm(0)),
		inst(Add, 10, Reg(10), Reg(8)),
		inst(Answer, 0, Reg(10), Imm(0)),
	)
	answer, trace, err := Run(context.Background(), p, nil, DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, uint32(13), answer)

	require.NotNil(t, trace.Cycles[0].Mem)
	assert.Equal(t, MemAccess{Address: 1007, Value: 0}, *trace.Cycles[0].Mem)
	assert.Equal(t, MemAccess{Address: 1007, Value: 13, Write: true}, *trace.Cycles[2].Mem)
}

func TestTapes(t *testing.T) {
	p := NewProgram([]Instruction{
		inst(Read, 8, Imm(uint32(PublicTape)), Imm(0)),
		inst(Read, 9, Imm(uint32(PrivateTape)), Imm(0)),
		inst(Read, 10, Imm(uint32(PrivateTape)), Imm(0)),
		inst(Add, 8, Reg(8), Reg(9)),
		inst(Add, 8, Reg(8), Reg(10)),
		inst(Answer, 0, Reg(8), Imm(0)),
	}, []uint32{100})

	answer, trace, err := Run(context.Background(), p, []uint32{20, 3}, DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, uint32(123), answer)
	assert.Equal(t, 1, trace.PublicReads)
	assert.Equal(t, 2, trace.PrivateReads)

	var indices []int
	for _, c := range trace.Cycles {
		if c.Tape != nil && c.Tape.Tape == PrivateTape {
			indices = append(indices, c.Tape.Index)
		}
	}
	assert.Equal(t, []int{0, 1}, indices)
}

func TestFaults(t *testing.T) {
	tests := []struct {
		name    string
		program *Program
		opts    Options
		want    error
	}{
		{
			name: "tape exhausted",
			program: program(
				inst(Read, 8, Imm(1), Imm(0)),
				inst(Read, 8, Imm(1), Imm(0)),
				inst(Answer, 0, Reg(8), Imm(0)),
			),
			want: ErrTapeExhausted,
		},
		{
			name: "out of range memory",
			program: program(
				inst(Load, 8, Imm(64), Imm(0)),
				inst(Answer, 0, Reg(8), Imm(0)),
			),
			opts: Options{AddressSpace: 64},
			want: ErrOutOfRangeMemory,
		},
		{
			name: "division by zero",
			program: program(
				inst(Udiv, 8, Imm(1), Reg(0)),
				inst(Answer, 0, Reg(8), Imm(0)),
			),
			want: ErrDivisionByZero,
		},
		{
			name: "modulo by zero",
			program: program(
				inst(Umod, 8, Imm(1), Imm(0)),
				inst(Answer, 0, Reg(8), Imm(0)),
			),
			want: ErrDivisionByZero,
		},
		{
			name: "jump through register out of program",
			program: program(
				inst(Mov, 31, Imm(99), Imm(0)),
				inst(Jmp, 0, Reg(31), Imm(0)),
				inst(Answer, 0, Imm(0), Imm(0)),
			),
			want: ErrUnresolvedBranchTarget,
		},
		{
			name: "start offset out of program",
			program: program(
				inst(Answer, 0, Imm(0), Imm(0)),
			),
			opts: Options{StartOffset: 5},
			want: ErrUnresolvedBranchTarget,
		},
		{
			name: "cycle limit",
			program: program(
				inst(Jmp, 0, Imm(0), Imm(0)),
				inst(Answer, 0, Imm(0), Imm(0)),
			),
			opts: Options{MaxCycles: 100},
			want: ErrCycleLimitExceeded,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, trace, err := Run(context.Background(), tt.program, []uint32{9}, tt.opts)
			require.Error(t, err)
			assert.Nil(t, trace)
			assert.ErrorIs(t, err, tt.want)

			var fault *Fault
			assert.True(t, errors.As(err, &fault), "expected *Fault, got %T", err)
		})
	}
}

func TestStepAfterHalt(t *testing.T) {
	p := program(inst(Answer, 0, Imm(4), Imm(0)))
	state := NewVMState(p, nil, DefaultOptions())
	_, err := state.Step()
	require.NoError(t, err)
	assert.Equal(t, Halted, state.Status)

	_, err = state.Step()
	assert.ErrorIs(t, err, ErrMachineHalted)
}

func TestStartOffset(t *testing.T) {
	p := program(
		inst(Answer, 0, Imm(1), Imm(0)),
		inst(Answer, 0, Imm(2), Imm(0)),
	)
	answer, trace, err := Run(context.Background(), p, nil, Options{StartOffset: 1})
	require.NoError(t, err)
	assert.Equal(t, uint32(2), answer)
	assert.Equal(t, 1, trace.StartOffset)
}

func TestDeterminism(t *testing.T) {
	p := NewProgram([]Instruction{
		inst(Read, 8, Imm(0), Imm(0)),
		inst(Mov, 9, Imm(1), Imm(0)),
		inst(Mull, 9, Reg(9), Reg(8)),
		inst(Sub, 8, Reg(8), Imm(1)),
		inst(Bne, 2, Reg(8), Imm(0)),
		inst(Answer, 0, Reg(9), Imm(0)),
	}, []uint32{6})

	a1, t1, err := Run(context.Background(), p, nil, DefaultOptions())
	require.NoError(t, err)
	a2, t2, err := Run(context.Background(), p, nil, DefaultOptions())
	require.NoError(t, err)

	assert.Equal(t, uint32(720), a1)
	assert.Equal(t, a1, a2)
	assert.True(t, t1.Equal(t2))
	assert.Equal(t, uint64(6), t1.Multiplicities[2])
}

func TestTraceEqualComparesTapes(t *testing.T) {
	p := NewProgram([]Instruction{
		inst(Read, 8, Imm(0), Imm(0)),
		inst(Answer, 0, Reg(8), Imm(0)),
	}, []uint32{5, 9})
	_, base, err := Run(context.Background(), p, []uint32{1}, DefaultOptions())
	require.NoError(t, err)

	tests := []struct {
		name   string
		mutate func(tr *Trace)
	}{
		{"public tape", func(tr *Trace) { tr.PublicTape = []uint32{5, 10} }},
		{"private tape", func(tr *Trace) { tr.PrivateTape = []uint32{2} }},
		{"multiplicities", func(tr *Trace) { tr.Multiplicities[1]++ }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, other, err := Run(context.Background(), p, []uint32{1}, DefaultOptions())
			require.NoError(t, err)
			require.True(t, base.Equal(other))
			tt.mutate(other)
			assert.False(t, base.Equal(other))
		})
	}
}

func TestAnswerOnly(t *testing.T) {
	p := program(inst(Answer, 0, Imm(19), Imm(0)))
	answer, trace, err := Run(context.Background(), p, nil, Options{AnswerOnly: true})
	require.NoError(t, err)
	assert.Equal(t, uint32(19), answer)
	assert.Nil(t, trace)
}

func TestContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	p := program(inst(Answer, 0, Imm(1), Imm(0)))
	_, _, err := Run(ctx, p, nil, DefaultOptions())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSigned(t *testing.T) {
	assert.Equal(t, int64(-1), Signed(WordMask))
	assert.Equal(t, int64(5), Signed(5))
	assert.Equal(t, -(int64(1) << (RegisterLength - 1)), Signed(SignBit))
	assert.True(t, FitsWord(-1))
	assert.True(t, FitsWord(int64(WordMask)))
	assert.False(t, FitsWord(int64(WordMask)+1))
	assert.False(t, FitsWord(math.MinInt64))
}
