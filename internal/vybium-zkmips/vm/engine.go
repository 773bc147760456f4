package vm

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/vybium/vybium-zkmips/internal/vybium-zkmips/logs"
)

// ctxPollInterval is how many cycles run between context checks
const ctxPollInterval = 1024

// Options configures a run
type Options struct {
	StartOffset  int
	MaxCycles    uint64
	AddressSpace uint64

	// AnswerOnly drops the cycle records; Run then returns a nil trace.
	AnswerOnly bool

	// Verbose logs every cycle at debug level
	Verbose bool
	Logger  *slog.Logger
}

// DefaultOptions returns the engine defaults
func DefaultOptions() Options {
	return Options{
		MaxCycles:    1 << 20,
		AddressSpace: 1 << 20,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.MaxCycles == 0 {
		o.MaxCycles = d.MaxCycles
	}
	if o.AddressSpace == 0 {
		o.AddressSpace = d.AddressSpace
	}
	return o
}

// Run executes program to completion against the given private tape and
// returns the answer and the execution trace.
func Run(ctx context.Context, program *Program, privateTape []uint32, opts Options) (uint32, *Trace, error) {
	if program == nil {
		return 0, nil, fmt.Errorf("program cannot be nil")
	}
	if err := program.Validate(); err != nil {
		return 0, nil, err
	}
	vm := NewVMState(program, privateTape, opts)
	trace, err := vm.Run(ctx, opts)
	if err != nil {
		return 0, nil, err
	}
	return vm.Answer, trace, nil
}

// Run drives the machine from Loaded until it halts or faults
func (vm *VMState) Run(ctx context.Context, opts Options) (*Trace, error) {
	if vm.Status != Loaded {
		return nil, fmt.Errorf("cannot run a %s machine", vm.Status)
	}
	opts = opts.withDefaults()
	logger := opts.Logger
	if logger == nil {
		logger = logs.Discard()
	}

	recorder, err := NewTraceRecorder(vm, opts.AnswerOnly)
	if err != nil {
		return nil, err
	}

	logger.Info("execution started",
		"instructions", vm.Program.Len(),
		"start", vm.PC,
		"public_tape", vm.PublicTape.Len(),
		"private_tape", vm.PrivateTape.Len())

	for vm.Status != Halted {
		if vm.CycleCount >= opts.MaxCycles {
			return nil, vm.fault(fmt.Errorf("%w: %d cycles", ErrCycleLimitExceeded, opts.MaxCycles))
		}
		if vm.CycleCount%ctxPollInterval == 0 {
			if err := ctx.Err(); err != nil {
				return nil, fmt.Errorf("execution aborted at cycle %d: %w", vm.CycleCount, err)
			}
		}

		c, err := vm.Step()
		if err != nil {
			logger.Error("execution faulted", "err", err)
			return nil, err
		}
		recorder.RecordCycle(c)

		if opts.Verbose {
			logger.Debug("cycle",
				"n", c.Cycle,
				"pc", c.PC,
				"inst", c.Instruction.String(),
				"a", logs.Hex(c.A),
				"b", logs.Hex(c.B),
				"result", logs.Hex(c.Result),
				"next", c.NextPC)
		}
	}

	logger.Info("execution halted", "cycles", vm.CycleCount, "answer", vm.Answer)
	return recorder.Finish(vm)
}
