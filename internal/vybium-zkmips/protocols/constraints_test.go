package protocols

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vybium/vybium-crypto/pkg/vybium-crypto/field"
)

// counterAIR constrains a single column counting up from start to end.
func counterAIR(start, end uint64) *AIRConstraints {
	air := NewAIRConstraints()
	air.AddInitialConstraint("starts", 1, func(row []field.Element) field.Element {
		return row[0].Sub(field.New(start))
	})
	air.AddConsistencyConstraint("flag_is_bit", 2, func(row []field.Element) field.Element {
		return row[1].Mul(field.One.Sub(row[1]))
	})
	air.AddTransitionConstraint("increments", 1, func(cur, next []field.Element) field.Element {
		return next[0].Sub(cur[0]).Sub(field.One)
	})
	air.AddTerminalConstraint("ends", 1, func(row []field.Element) field.Element {
		return row[0].Sub(field.New(end))
	})
	return air
}

func counterRows(n int) [][]field.Element {
	rows := make([][]field.Element, n)
	for i := range rows {
		rows[i] = []field.Element{field.New(uint64(i)), field.New(uint64(i % 2))}
	}
	return rows
}

func TestCheckAcceptsValidRows(t *testing.T) {
	for _, n := range []int{1, 2, DefaultChunkSize, 3*DefaultChunkSize + 5} {
		air := counterAIR(0, uint64(n-1))
		v, err := air.Check(context.Background(), counterRows(n))
		require.NoError(t, err)
		assert.Nil(t, v, "n=%d", n)
	}
}

func TestCheckReportsLowestRow(t *testing.T) {
	n := 2*DefaultChunkSize + 10
	air := counterAIR(0, uint64(n-1))

	rows := counterRows(n)
	rows[DefaultChunkSize+3][1] = field.New(2)
	rows[2*DefaultChunkSize+1][1] = field.New(5)
	v, err := air.Check(context.Background(), rows)
	require.NoError(t, err)
	require.NotNil(t, v)
	assert.Equal(t, Consistency, v.Kind)
	assert.Equal(t, "flag_is_bit", v.Constraint)
	assert.Equal(t, DefaultChunkSize+3, v.Row)

	rows = counterRows(n)
	rows[7][0] = field.New(100)
	v, err = air.Check(context.Background(), rows)
	require.NoError(t, err)
	require.NotNil(t, v)
	assert.Equal(t, Transition, v.Kind)
	assert.Equal(t, 6, v.Row)
	assert.Contains(t, v.Error(), "increments")
}

func TestCheckInitialAndTerminal(t *testing.T) {
	air := counterAIR(1, 4)
	v, err := air.Check(context.Background(), counterRows(4))
	require.NoError(t, err)
	require.NotNil(t, v)
	assert.Equal(t, Initial, v.Kind)
	assert.Equal(t, 0, v.Row)

	air = counterAIR(0, 9)
	v, err = air.Check(context.Background(), counterRows(4))
	require.NoError(t, err)
	require.NotNil(t, v)
	assert.Equal(t, Terminal, v.Kind)
	assert.Equal(t, 3, v.Row)
}

func TestBoundaryConstraints(t *testing.T) {
	air := NewAIRConstraints()
	air.AddBoundaryConstraint("row_two_is_two", 2, 1, func(row []field.Element) field.Element {
		return row[0].Sub(field.New(2))
	})
	air.AddBoundaryConstraint("row_eight_exists", 8, 1, func(row []field.Element) field.Element {
		return field.Zero
	})

	v, err := air.Check(context.Background(), counterRows(10))
	require.NoError(t, err)
	assert.Nil(t, v)

	v, err = air.Check(context.Background(), counterRows(5))
	require.NoError(t, err)
	require.NotNil(t, v)
	assert.Equal(t, Boundary, v.Kind)
	assert.Equal(t, 8, v.Row)

	rows := counterRows(10)
	rows[2][0] = field.New(3)
	v, err = air.Check(context.Background(), rows)
	require.NoError(t, err)
	require.NotNil(t, v)
	assert.Equal(t, "row_two_is_two", v.Constraint)
}

func TestCheckEmptyTable(t *testing.T) {
	v, err := counterAIR(0, 0).Check(context.Background(), nil)
	require.NoError(t, err)
	assert.Nil(t, v)
}

func TestCheckCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := counterAIR(0, 9).Check(ctx, counterRows(10))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDegreeAndCount(t *testing.T) {
	air := counterAIR(0, 1)
	assert.Equal(t, 2, air.MaxDegree())
	assert.Equal(t, 4, air.NumConstraints())
}
