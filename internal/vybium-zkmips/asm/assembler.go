// Package asm assembles zkMIPS source into native programs: it resolves
// operands, expands typed macros and lowers every logical instruction to
// exactly one native instruction.
package asm

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/vybium/vybium-zkmips/internal/vybium-zkmips/logs"
	"github.com/vybium/vybium-zkmips/internal/vybium-zkmips/macros"
	"github.com/vybium/vybium-zkmips/internal/vybium-zkmips/vm"
)

// ArtifactExt is the extension of lowered program artifacts
const ArtifactExt = ".zkm"

// Options configures an assembler
type Options struct {
	// Strict rejects immediates that do not fit a word and $zero as a
	// destination instead of truncating and discarding.
	Strict bool

	MaxMacroDepth int
	Logger        *slog.Logger
}

// DefaultOptions returns the non-strict defaults
func DefaultOptions() Options {
	return Options{MaxMacroDepth: 16}
}

// Assembler is a two-pass zkMIPS assembler. The first pass expands macros
// and lowers statements, recording label positions; the second pass patches
// label operands. An Assembler is not safe for concurrent use.
type Assembler struct {
	opts   Options
	macros *MacroTable
	logger *slog.Logger

	file       string
	equ        map[string]int64
	labels     map[string]int
	out        []pending
	expansions int
}

// NewAssembler creates an assembler over a compiled macro table, which may
// be nil.
func NewAssembler(table *MacroTable, opts Options) *Assembler {
	if opts.MaxMacroDepth <= 0 {
		opts.MaxMacroDepth = DefaultOptions().MaxMacroDepth
	}
	logger := opts.Logger
	if logger == nil {
		logger = logs.Discard()
	}
	return &Assembler{opts: opts, macros: table, logger: logger}
}

// Assemble reads zkMIPS source from r and returns the lowered program with
// publicTape embedded. name is used in error locations.
func (a *Assembler) Assemble(name string, r io.Reader, publicTape []uint32) (*vm.Program, error) {
	a.file = name
	a.equ = make(map[string]int64)
	a.labels = make(map[string]int)
	a.out = a.out[:0]
	a.expansions = 0

	scanner := bufio.NewScanner(r)
	line := 0
	for scanner.Scan() {
		line++
		st, err := parseStatement(scanner.Text(), line)
		if err != nil {
			return nil, a.locate(line, scanner.Text(), err)
		}
		if st == nil {
			continue
		}
		if err := a.statement(st, nil); err != nil {
			return nil, a.locate(st.line, st.text, err)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}

	instructions := make([]vm.Instruction, len(a.out))
	for i, p := range a.out {
		if p.field != targetNone {
			pc, ok := a.labels[p.label]
			if !ok {
				return nil, &Error{File: name, Line: p.line, Text: p.text, Macros: p.macros,
					Err: fmt.Errorf("%w: %s", ErrUnknownLabel, p.label)}
			}
			if p.field == targetDst {
				p.inst.Dst = uint32(pc)
			} else {
				p.inst.Src1 = vm.Imm(uint32(pc))
			}
		}
		instructions[i] = p.inst
	}

	program := vm.NewProgram(instructions, publicTape)
	if err := program.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}

	a.logger.Debug("assembled program",
		"file", name,
		"instructions", program.Len(),
		"labels", len(a.labels),
		"expansions", a.expansions,
		"public_tape", len(publicTape))
	return program, nil
}

func (a *Assembler) locate(line int, text string, err error) error {
	e := &Error{File: a.file, Line: line, Text: strings.TrimSpace(text), Err: err}
	var ee *expansionError
	if errors.As(err, &ee) {
		e.Macros = ee.stack
		e.Err = ee.err
	}
	return e
}

// statement assembles one statement, at top level when f is nil or inside
// the macro expansion f.
func (a *Assembler) statement(st *statement, f *frame) error {
	for _, label := range st.labels {
		if isLocalLabel(label) {
			if f == nil {
				return fmt.Errorf("%w: local label %s outside a macro body", ErrSyntax, label)
			}
			label = f.local(label)
		}
		if _, ok := a.labels[label]; ok {
			return fmt.Errorf("%w: %s", ErrDuplicateLabel, label)
		}
		a.labels[label] = len(a.out)
	}

	switch {
	case st.mnemonic == "":
		return nil
	case strings.HasPrefix(st.mnemonic, "."):
		return a.directive(st, f)
	}

	if m, ok := mnemonics[st.mnemonic]; ok {
		p, err := a.lower(st, m, f)
		if err != nil {
			return err
		}
		p.line, p.text = st.line, st.text
		if f != nil {
			p.macros = f.stack()
		}
		a.out = append(a.out, p)
		return nil
	}

	if tpl, ok := a.macros.lookup(st.mnemonic); ok {
		return a.expand(st, tpl, f)
	}
	return fmt.Errorf("%w: %s", ErrUnresolvedMacro, st.mnemonic)
}

func (a *Assembler) directive(st *statement, f *frame) error {
	switch st.mnemonic {
	case ".text", ".globl", ".global":
		return nil
	case ".equ", ".set":
		if len(st.args) != 2 {
			return fmt.Errorf("%w: %s takes a name and a value", ErrArityMismatch, st.mnemonic)
		}
		name := st.args[0].text
		if !isIdent(name) {
			return fmt.Errorf("%w: %q is not a constant name", ErrSyntax, st.args[0])
		}
		if _, ok := a.equ[name]; ok {
			return fmt.Errorf("%w: constant %s redefined", ErrSyntax, name)
		}
		v, err := a.constant(st.args[1], f)
		if err != nil {
			return err
		}
		a.equ[name] = v
		return nil
	}
	return fmt.Errorf("%w: %s", ErrUnknownDirective, st.mnemonic)
}

// constant evaluates an .equ value without truncating it to a word.
func (a *Assembler) constant(x *arg, f *frame) (int64, error) {
	switch {
	case x.slot != "":
		v, err := a.resolve(x, posImm, f)
		return int64(v.n), err
	case x.mem != nil:
	case isExpr(x.text):
		return evalExpr(x.text, a.equ)
	case isNumber(x.text):
		return ParseNumber(x.text)
	default:
		if v, ok := a.equ[x.text]; ok {
			return v, nil
		}
	}
	return 0, fmt.Errorf("%w: %q is not a constant", ErrAmbiguousOperand, x)
}

// AssembleSource assembles src in memory
func AssembleSource(src, name string, publicTape []uint32, set *macros.Set, opts Options) (*vm.Program, error) {
	table, err := NewMacroTable(set)
	if err != nil {
		return nil, err
	}
	return NewAssembler(table, opts).Assemble(name, strings.NewReader(src), publicTape)
}

// ArtifactPath returns the default artifact path for a source file: the
// source path with its extension replaced by .zkm.
func ArtifactPath(sourcePath string) string {
	return strings.TrimSuffix(sourcePath, filepath.Ext(sourcePath)) + ArtifactExt
}

// AssembleFile assembles sourcePath against the public tape at
// publicTapePath (which may be empty) and writes the artifact to out, or to
// ArtifactPath(sourcePath) when out is empty. It returns the artifact path.
func AssembleFile(sourcePath, publicTapePath string, set *macros.Set, opts Options, out string) (string, error) {
	tape, err := ReadTape(publicTapePath, opts.Strict)
	if err != nil {
		return "", err
	}

	f, err := os.Open(sourcePath)
	if err != nil {
		return "", err
	}
	defer f.Close()

	table, err := NewMacroTable(set)
	if err != nil {
		return "", err
	}
	program, err := NewAssembler(table, opts).Assemble(sourcePath, f, tape)
	if err != nil {
		return "", err
	}

	if out == "" {
		out = ArtifactPath(sourcePath)
	}
	if err := program.WriteFile(out); err != nil {
		return "", fmt.Errorf("failed to write artifact: %w", err)
	}
	return out, nil
}
