package asm

import (
	"errors"
	"fmt"
	"strings"

	"github.com/vybium/vybium-zkmips/internal/vybium-zkmips/translate"
)

// Assembly errors. All of them are fatal to the assembly and are reported
// wrapped in an *Error carrying the source location.
var (
	ErrUnknownRegister  = errors.New(translate.From("unknown register"))
	ErrAmbiguousOperand = errors.New(translate.From("ambiguous operand"))
	ErrMacroCycle       = errors.New(translate.From("macro cycle"))
	ErrArityMismatch    = errors.New(translate.From("arity mismatch"))
	ErrUnresolvedMacro  = errors.New(translate.From("unresolved macro"))

	ErrUnknownLabel       = errors.New(translate.From("unknown label"))
	ErrDuplicateLabel     = errors.New(translate.From("duplicate label"))
	ErrUnknownDirective   = errors.New(translate.From("unknown directive"))
	ErrImmediateRange     = errors.New(translate.From("immediate out of range"))
	ErrZeroDestination    = errors.New(translate.From("$zero used as destination"))
	ErrUnboundPlaceholder = errors.New(translate.From("unbound macro placeholder"))
	ErrSyntax             = errors.New(translate.From("syntax error"))
)

// Error locates an assembly error in the source. Macros lists the
// expansion stack, outermost first, when the error arose inside a macro
// body.
type Error struct {
	File   string
	Line   int
	Text   string
	Macros []string
	Err    error
}

func (e *Error) Error() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s:%d: %v", e.File, e.Line, e.Err)
	if len(e.Macros) > 0 {
		fmt.Fprintf(&sb, " (in macro %s)", strings.Join(e.Macros, " > "))
	}
	if e.Text != "" {
		fmt.Fprintf(&sb, "\n\t%s", e.Text)
	}
	return sb.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}
