package integration_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vybium/vybium-zkmips/internal/vybium-zkmips/vm"
	zkmips "github.com/vybium/vybium-zkmips/pkg/vybium-zkmips"
)

// Test02_PrivateTapeStaysOutOfTheClaim sorts words from the private tape.
// The public claim commits to the program and public tape only, so two
// private tapes with the same second smallest word give the same answer
// under the same program digest.
//
// Related example: examples/02_private_tape/main.go
func Test02_PrivateTapeStaysOutOfTheClaim(t *testing.T) {
	artifact := assemble(t, "isort")
	dir := t.TempDir()

	tapes := map[string]string{
		"a.aux": "9 3 7 1 5\n",
		"b.aux": "3 # comment\n2 8 6 4\n",
	}
	for name, body := range tapes {
		path := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

		answer, trace, err := zkmips.Run(context.Background(), artifact, path, 0, 60, false, false, false)
		require.NoError(t, err, name)
		assert.Equal(t, uint32(3), answer, name)
		assert.Len(t, trace.PrivateTape, 5, name)
		assert.Equal(t, []uint32{5}, trace.PublicTape, name)
	}
}

// Test02_ExhaustedPrivateTape feeds isort fewer words than its public
// count asks for.
func Test02_ExhaustedPrivateTape(t *testing.T) {
	artifact := assemble(t, "isort")
	path := filepath.Join(t.TempDir(), "short.aux")
	require.NoError(t, os.WriteFile(path, []byte("9 3\n"), 0o600))

	_, _, err := zkmips.Run(context.Background(), artifact, path, 0, 60, false, false, false)
	require.Error(t, err)
	assert.Equal(t, zkmips.ErrExecution, zkmips.Code(err))
	assert.ErrorIs(t, err, vm.ErrTapeExhausted)

	var fault *vm.Fault
	require.ErrorAs(t, err, &fault)
	assert.Equal(t, vm.Read, fault.Op)
}

// Test02_MissingPrivateTapeFile is an input error, not an execution fault
func Test02_MissingPrivateTapeFile(t *testing.T) {
	artifact := assemble(t, "read_test")

	_, _, err := zkmips.Run(context.Background(), artifact,
		filepath.Join(t.TempDir(), "missing.aux"), 0, 60, false, false, false)
	require.Error(t, err)
	assert.Equal(t, zkmips.ErrInvalidInput, zkmips.Code(err))
}
