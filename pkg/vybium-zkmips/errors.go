package zkmips

import (
	"errors"
	"fmt"

	"github.com/vybium/vybium-zkmips/internal/vybium-zkmips/alu"
	"github.com/vybium/vybium-zkmips/internal/vybium-zkmips/asm"
	"github.com/vybium/vybium-zkmips/internal/vybium-zkmips/vm"
)

// ErrorCode represents a zkMIPS error code
type ErrorCode int

const (
	// ErrUnknown represents an unknown error
	ErrUnknown ErrorCode = iota

	// ErrAssembly represents a source, macro or tape file error
	ErrAssembly

	// ErrExecution represents an execution fault
	ErrExecution

	// ErrReduction represents a trace that could not be reduced
	ErrReduction

	// ErrInvalidConfig represents an invalid configuration error
	ErrInvalidConfig

	// ErrInvalidInput represents an unreadable or malformed input
	ErrInvalidInput

	// ErrConstraintViolation represents an unsatisfied constraint system
	ErrConstraintViolation
)

var codeNames = map[ErrorCode]string{
	ErrUnknown:             "unknown",
	ErrAssembly:            "assembly",
	ErrExecution:           "execution",
	ErrReduction:           "reduction",
	ErrInvalidConfig:       "invalid config",
	ErrInvalidInput:        "invalid input",
	ErrConstraintViolation: "constraint violation",
}

func (c ErrorCode) String() string {
	if name, ok := codeNames[c]; ok {
		return name
	}
	return fmt.Sprintf("code(%d)", int(c))
}

// ZKMipsError represents a zkMIPS error
type ZKMipsError struct {
	Code    ErrorCode
	Message string
	Cause   error
}

// Error returns the error message
func (e *ZKMipsError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("zkmips %s error: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("zkmips %s error: %s", e.Code, e.Message)
}

// Unwrap returns the cause of the error
func (e *ZKMipsError) Unwrap() error {
	return e.Cause
}

// Is checks if the error matches the target error by code
func (e *ZKMipsError) Is(target error) bool {
	t, ok := target.(*ZKMipsError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// Code returns the code of err, or ErrUnknown when err is not a *ZKMipsError
func Code(err error) ErrorCode {
	var ze *ZKMipsError
	if errors.As(err, &ze) {
		return ze.Code
	}
	return ErrUnknown
}

func newError(code ErrorCode, message string, cause error) error {
	return &ZKMipsError{Code: code, Message: message, Cause: cause}
}

// classify maps an internal error onto its code
func classify(err error) ErrorCode {
	var asmErr *asm.Error
	var fault *vm.Fault
	switch {
	case errors.As(err, &asmErr):
		return ErrAssembly
	case errors.As(err, &fault):
		return ErrExecution
	case errors.Is(err, alu.ErrConstraintViolation):
		return ErrConstraintViolation
	case errors.Is(err, alu.ErrInvalidSecurityParameter):
		return ErrInvalidConfig
	case errors.Is(err, alu.ErrMalformedTrace), errors.Is(err, alu.ErrInconsistentMemoryArgument):
		return ErrReduction
	case errors.Is(err, vm.ErrMalformedProgram):
		return ErrInvalidInput
	}
	return ErrUnknown
}

// wrap classifies err, falling back to code when nothing more specific
// applies. A nil err stays nil.
func wrap(code ErrorCode, message string, err error) error {
	if err == nil {
		return nil
	}
	var ze *ZKMipsError
	if errors.As(err, &ze) {
		return err
	}
	if c := classify(err); c != ErrUnknown {
		code = c
	}
	return newError(code, message, err)
}
