package integration_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	zkmips "github.com/vybium/vybium-zkmips/pkg/vybium-zkmips"
)

// Test01_Scenarios assembles every program under testdata, runs it with
// full reduction and checks the answer.
//
// Related example: examples/01_factorial/main.go
func Test01_Scenarios(t *testing.T) {
	for _, sc := range scenarios {
		t.Run(sc.name, func(t *testing.T) {
			t.Parallel()

			artifact := assemble(t, sc.name)
			answer, trace, err := zkmips.Run(context.Background(), artifact,
				optional(t, testdata(sc.name+".aux")), 0, 60, false, false, false)
			require.NoError(t, err)
			assert.Equal(t, sc.answer, answer)
			require.NotNil(t, trace)
			assert.Equal(t, sc.answer, trace.Answer)
		})
	}
}

// Test01_AnswerOnlyAgrees checks that skipping the reduction does not
// change any answer.
func Test01_AnswerOnlyAgrees(t *testing.T) {
	for _, sc := range scenarios {
		t.Run(sc.name, func(t *testing.T) {
			t.Parallel()

			artifact := assemble(t, sc.name)
			aux := optional(t, testdata(sc.name+".aux"))
			answer, _, err := zkmips.Run(context.Background(), artifact, aux, 0, 60, false, false, true)
			require.NoError(t, err)
			assert.Equal(t, sc.answer, answer)

			traced, trace, err := zkmips.Run(context.Background(), artifact, aux, 0, 60, false, true, false)
			require.NoError(t, err)
			assert.Equal(t, sc.answer, traced)
			assert.NotEmpty(t, trace.Cycles)
		})
	}
}

// Test01_StartOffset skips the two immediate loads of lw_sw, so both stored
// words are zero.
func Test01_StartOffset(t *testing.T) {
	artifact := assemble(t, "lw_sw")

	answer, trace, err := zkmips.Run(context.Background(), artifact, "", 2, 60, false, false, false)
	require.NoError(t, err)
	assert.Equal(t, uint32(0), answer)
	assert.Equal(t, 2, trace.Cycles[0].PC)
}
