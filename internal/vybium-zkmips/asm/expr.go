package asm

import (
	"fmt"
	"strings"

	"go.starlark.net/starlark"
	"go.starlark.net/syntax"
)

// maxExprSteps bounds the work of a single expression
const maxExprSteps = 100_000

// isExpr reports whether tok is a $(...) compile-time expression
func isExpr(tok string) bool {
	return strings.HasPrefix(tok, "$(") && strings.HasSuffix(tok, ")")
}

// evalExpr evaluates a $(...) expression. The .equ constants are visible as
// predeclared integers.
func evalExpr(tok string, equ map[string]int64) (int64, error) {
	expr := tok[2 : len(tok)-1]

	thread := starlark.Thread{Name: "asm"}
	thread.SetMaxExecutionSteps(maxExprSteps)
	opts := syntax.FileOptions{}
	pred := starlark.StringDict{}
	for name, value := range equ {
		pred[name] = starlark.MakeInt64(value)
	}

	prog := "rc = " + expr + "\n"
	dict, err := starlark.ExecFileOptions(&opts, &thread, "expr", prog, pred)
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %v", ErrSyntax, tok, err)
	}
	rc, ok := dict["rc"].(starlark.Int)
	if !ok {
		return 0, fmt.Errorf("%w: %s is not an integer", ErrSyntax, tok)
	}
	v, ok := rc.Int64()
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrImmediateRange, tok)
	}
	return v, nil
}
