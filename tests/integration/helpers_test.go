package integration_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	zkmips "github.com/vybium/vybium-zkmips/pkg/vybium-zkmips"
)

// scenario is a program under testdata/ with optional tapes next to it
type scenario struct {
	name   string
	answer uint32
}

var scenarios = []scenario{
	{"factorial", 120},
	{"fib", 55},
	{"isort", 3},
	{"lw_sw", 13},
	{"min_test", 19},
	{"simple_add", 40},
	{"collatz", 5},
	{"swap_test", 22},
	{"read_test", 4},
}

func testdata(name string) string {
	return filepath.Join("testdata", name)
}

// optional returns path if it exists and "" otherwise
func optional(t *testing.T, path string) string {
	t.Helper()
	if _, err := os.Stat(path); err != nil {
		require.ErrorIs(t, err, os.ErrNotExist)
		return ""
	}
	return path
}

// assemble copies the scenario's source into a temporary directory, so
// parallel tests never share an artifact, and assembles it there.
func assemble(t *testing.T, name string) string {
	t.Helper()
	src, err := os.ReadFile(testdata(name + ".zmips"))
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), name+".zmips")
	require.NoError(t, os.WriteFile(path, src, 0o600))

	artifact, err := zkmips.Assemble(path, optional(t, testdata(name+".pub")), testdata("macros.json"), false)
	require.NoError(t, err)
	t.Cleanup(func() { _ = os.Remove(artifact) })
	return artifact
}
