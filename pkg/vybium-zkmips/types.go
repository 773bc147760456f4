package zkmips

import (
	"github.com/vybium/vybium-zkmips/internal/vybium-zkmips/alu"
	"github.com/vybium/vybium-zkmips/internal/vybium-zkmips/macros"
	"github.com/vybium/vybium-zkmips/internal/vybium-zkmips/protocols"
	"github.com/vybium/vybium-zkmips/internal/vybium-zkmips/utils"
	"github.com/vybium/vybium-zkmips/internal/vybium-zkmips/vm"
)

// RegisterLength is the word size of this build in bits
const RegisterLength = vm.RegisterLength

// Program is an assembled program with its embedded public tape
type Program = vm.Program

// Trace is the record of a halted run
type Trace = vm.Trace

// Cycle is one executed instruction of a trace
type Cycle = vm.Cycle

// ConstraintSystem is the reduced form of one execution
type ConstraintSystem = alu.ConstraintSystem

// Claim is the public statement a constraint system attests to
type Claim = protocols.Claim

// MacroSet is a set of macro definitions
type MacroSet = macros.Set

// Config holds the execution, assembly and reduction tunables
type Config = utils.Config

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return utils.DefaultConfig()
}

// Result is the outcome of Execute
type Result struct {
	Answer  uint32
	Program *Program
	Trace   *Trace

	// System is nil when the run was not reduced
	System *ConstraintSystem
}
