package macros

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const jsonDefs = `{
  "macros": {
    "beqz": {
      "params": [{"name": "r", "kind": "reg"}, {"name": "l", "kind": "label"}],
      "body": ["beq %r, $zero, %l"]
    },
    "NOP": {
      "body": ["add $zero, $zero, $zero"]
    }
  }
}`

const cueDefs = `
macros: inc: {
	params: [{name: "r", kind: "reg"}]
	body: ["addi %r, %r, 1"]
}
`

func TestParseJSON(t *testing.T) {
	set, err := Parse("defs.json", []byte(jsonDefs))
	require.NoError(t, err)
	assert.Equal(t, []string{"beqz", "nop"}, set.Names())

	d, ok := set.Lookup("BEQZ")
	require.True(t, ok)
	assert.Equal(t, "beqz", d.Name)
	assert.Equal(t, 2, d.Arity())
	assert.Equal(t, Param{Name: "l", Kind: KindLabel}, d.Params[1])
	assert.Equal(t, []string{"beq %r, $zero, %l"}, d.Body)

	nop, ok := set.Lookup("nop")
	require.True(t, ok)
	assert.Equal(t, 0, nop.Arity())
}

func TestParseCUE(t *testing.T) {
	set, err := Parse("defs.cue", []byte(cueDefs))
	require.NoError(t, err)
	d, ok := set.Lookup("inc")
	require.True(t, ok)
	assert.Equal(t, KindReg, d.Params[0].Kind)
}

func TestSchemaRejects(t *testing.T) {
	tests := map[string]string{
		"unknown kind":  `{"macros": {"m": {"params": [{"name": "x", "kind": "float"}], "body": []}}}`,
		"unknown field": `{"macros": {"m": {"body": [], "doc": "nope"}}}`,
		"bad name":      `{"macros": {"m": {"params": [{"name": "1x", "kind": "reg"}], "body": []}}}`,
		"top level":     `{"macro": {}}`,
		"syntax":        `{"macros": `,
	}
	for name, src := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Parse("bad.json", []byte(src))
			assert.Error(t, err)
		})
	}
}

func TestRepeatedParameter(t *testing.T) {
	_, err := NewSet(Definition{Name: "m", Params: []Param{{"a", KindReg}, {"a", KindImm}}})
	assert.ErrorIs(t, err, ErrInvalidParameter)
}

func TestLoadMerges(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.json")
	b := filepath.Join(dir, "b.cue")
	require.NoError(t, os.WriteFile(a, []byte(jsonDefs), 0o644))
	require.NoError(t, os.WriteFile(b, []byte(cueDefs), 0o644))

	set, err := Load(a, b)
	require.NoError(t, err)
	assert.Equal(t, 3, set.Len())

	_, err = Load(a, a)
	assert.ErrorIs(t, err, ErrDuplicateMacro)

	empty, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 0, empty.Len())
}

func TestEmpty(t *testing.T) {
	set := Empty()
	assert.Equal(t, 0, set.Len())
	_, ok := set.Lookup("inc")
	assert.False(t, ok)

	parsed, err := Parse("defs.cue", []byte(cueDefs))
	require.NoError(t, err)
	merged, err := set.Merge(parsed)
	require.NoError(t, err)
	assert.Equal(t, []string{"inc"}, merged.Names())
}
