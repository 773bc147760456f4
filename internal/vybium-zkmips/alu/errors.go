package alu

import (
	"errors"
	"fmt"

	"github.com/vybium/vybium-zkmips/internal/vybium-zkmips/translate"
)

var (
	ErrMalformedTrace             = errors.New(translate.From("malformed trace"))
	ErrInconsistentMemoryArgument = errors.New(translate.From("inconsistent memory argument"))
	ErrConstraintViolation        = errors.New(translate.From("constraint violation"))
	ErrInvalidSecurityParameter   = errors.New(translate.From("invalid security parameter"))
)

// ReductionError locates a reduction or constraint failure in a table. Row
// is -1 when the failure is not tied to one row.
type ReductionError struct {
	Table string
	Row   int
	Err   error
}

func (e *ReductionError) Error() string {
	if e.Row < 0 {
		return fmt.Sprintf("%s table: %v", e.Table, e.Err)
	}
	return fmt.Sprintf("%s table, row %d: %v", e.Table, e.Row, e.Err)
}

func (e *ReductionError) Unwrap() error {
	return e.Err
}

func malformed(row int, format string, args ...any) error {
	return &ReductionError{
		Table: "trace",
		Row:   row,
		Err:   fmt.Errorf("%w: %s", ErrMalformedTrace, fmt.Sprintf(format, args...)),
	}
}
