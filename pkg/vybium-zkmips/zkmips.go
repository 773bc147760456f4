package zkmips

import (
	"context"
	"log/slog"

	"github.com/vybium/vybium-zkmips/internal/vybium-zkmips/alu"
	"github.com/vybium/vybium-zkmips/internal/vybium-zkmips/asm"
	"github.com/vybium/vybium-zkmips/internal/vybium-zkmips/macros"
	"github.com/vybium/vybium-zkmips/internal/vybium-zkmips/vm"
)

// Assemble assembles the source at sourcePath against the public tape at
// publicTapePath and the macro definitions at macroSource. Either path may
// be empty. It writes the lowered artifact next to the source and returns
// its path; the caller removes it.
func Assemble(sourcePath, publicTapePath, macroSource string, strict bool) (string, error) {
	var paths []string
	if macroSource != "" {
		paths = append(paths, macroSource)
	}
	set, err := macros.Load(paths...)
	if err != nil {
		return "", wrap(ErrAssembly, "failed to load macros", err)
	}

	opts := asm.DefaultOptions()
	opts.Strict = strict
	opts.Logger = slog.Default()
	out, err := asm.AssembleFile(sourcePath, publicTapePath, set, opts, "")
	if err != nil {
		return "", wrap(ErrAssembly, "failed to assemble "+sourcePath, err)
	}
	return out, nil
}

// LoadMacros reads and merges macro definition files
func LoadMacros(paths ...string) (*MacroSet, error) {
	set, err := macros.Load(paths...)
	if err != nil {
		return nil, wrap(ErrAssembly, "failed to load macros", err)
	}
	return set, nil
}

// Run executes the artifact at programPath with the private tape at
// privateTapePath, starting at startOffset. Unless answerOnly or traceOnly
// is set, the trace is reduced with securityParameter bits of soundness and
// checked. verbose logs every cycle through slog.Default at debug level.
func Run(ctx context.Context, programPath, privateTapePath string, startOffset, securityParameter int,
	verbose, traceOnly, answerOnly bool,
) (uint32, *Trace, error) {
	cfg := DefaultConfig().
		WithStartOffset(startOffset).
		WithSecurityParameter(securityParameter)
	if err := cfg.Validate(); err != nil {
		return 0, nil, newError(ErrInvalidConfig, "invalid run configuration", err)
	}

	program, err := vm.LoadProgram(programPath)
	if err != nil {
		return 0, nil, wrap(ErrInvalidInput, "failed to load "+programPath, err)
	}
	privateTape, err := asm.ReadTape(privateTapePath, cfg.Strict)
	if err != nil {
		return 0, nil, wrap(ErrInvalidInput, "failed to read private tape", err)
	}

	result, err := run(ctx, program, privateTape, cfg, verbose, traceOnly, answerOnly)
	if err != nil {
		return 0, nil, err
	}
	return result.Answer, result.Trace, nil
}

// Execute assembles src in memory, runs it and reduces the trace
func Execute(ctx context.Context, src string, publicTape, privateTape []uint32, cfg *Config) (*Result, error) {
	return ExecuteWithMacros(ctx, src, nil, publicTape, privateTape, cfg)
}

// ExecuteWithMacros is Execute with a macro set; a nil set has no macros
func ExecuteWithMacros(ctx context.Context, src string, set *MacroSet, publicTape, privateTape []uint32,
	cfg *Config,
) (*Result, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, newError(ErrInvalidConfig, "invalid configuration", err)
	}
	if set == nil {
		set = macros.Empty()
	}

	opts := asm.DefaultOptions()
	opts.Strict = cfg.Strict
	opts.MaxMacroDepth = cfg.MaxMacroDepth
	opts.Logger = slog.Default()
	program, err := asm.AssembleSource(src, "<source>", publicTape, set, opts)
	if err != nil {
		return nil, wrap(ErrAssembly, "failed to assemble source", err)
	}
	return run(ctx, program, privateTape, cfg, false, false, false)
}

// Reduce reduces and checks the trace of program
func Reduce(ctx context.Context, trace *Trace, program *Program, privateTapeLen int, cfg *Config) (*ConstraintSystem, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	cs, err := alu.ReduceWithOptions(ctx, trace, program, privateTapeLen, alu.Options{
		SecurityParameter: cfg.SecurityParameter,
		HashFunction:      cfg.HashFunction,
		Logger:            slog.Default(),
	})
	if err != nil {
		return nil, wrap(ErrReduction, "failed to reduce trace", err)
	}
	if err := cs.CheckContext(ctx); err != nil {
		return nil, wrap(ErrConstraintViolation, "constraint system is unsatisfied", err)
	}
	return cs, nil
}

func run(ctx context.Context, program *Program, privateTape []uint32, cfg *Config,
	verbose, traceOnly, answerOnly bool,
) (*Result, error) {
	answer, trace, err := vm.Run(ctx, program, privateTape, vm.Options{
		StartOffset:  cfg.StartOffset,
		MaxCycles:    cfg.MaxCycles,
		AddressSpace: cfg.AddressSpace,
		AnswerOnly:   answerOnly,
		Verbose:      verbose,
		Logger:       slog.Default(),
	})
	if err != nil {
		return nil, wrap(ErrExecution, "execution failed", err)
	}

	result := &Result{Answer: answer, Program: program, Trace: trace}
	if answerOnly || traceOnly {
		return result, nil
	}
	if result.System, err = Reduce(ctx, trace, program, len(privateTape), cfg); err != nil {
		return nil, err
	}
	return result, nil
}
