package vm

import (
	"errors"
	"fmt"

	"github.com/vybium/vybium-zkmips/internal/vybium-zkmips/translate"
)

// Execution faults. A faulted run is never retried: execution is
// deterministic, so the same inputs reproduce the same fault.
var (
	ErrTapeExhausted          = errors.New(translate.From("tape exhausted"))
	ErrOutOfRangeMemory       = errors.New(translate.From("memory access out of range"))
	ErrDivisionByZero         = errors.New(translate.From("division by zero"))
	ErrUnresolvedBranchTarget = errors.New(translate.From("unresolved branch target"))
	ErrCycleLimitExceeded     = errors.New(translate.From("cycle limit exceeded"))

	ErrMalformedProgram = errors.New(translate.From("malformed program"))
	ErrMachineHalted    = errors.New(translate.From("machine already halted"))
)

// Fault is an execution fault annotated with the cycle and program counter
// at which it happened.
type Fault struct {
	Cycle   uint64
	PC      int
	Op      Opcode
	Fetched bool // Op is meaningful
	Err     error
}

func (f *Fault) Error() string {
	if !f.Fetched {
		return fmt.Sprintf("execution fault at cycle %d, pc %d: %v", f.Cycle, f.PC, f.Err)
	}
	return fmt.Sprintf("execution fault at cycle %d, pc %d (%s): %v", f.Cycle, f.PC, f.Op, f.Err)
}

func (f *Fault) Unwrap() error {
	return f.Err
}
