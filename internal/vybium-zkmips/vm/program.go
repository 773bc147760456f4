package vm

import (
	"bufio"
	"bytes"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/vybium/vybium-crypto/pkg/vybium-crypto/field"
	"github.com/vybium/vybium-crypto/pkg/vybium-crypto/hash"
)

// Program is an assembled, immutable native program together with the public
// tape embedded at assembly time.
type Program struct {
	Instructions []Instruction
	PublicTape   []uint32
	WordSize     int
}

// NewProgram creates a program for the build's word size
func NewProgram(instructions []Instruction, publicTape []uint32) *Program {
	return &Program{
		Instructions: instructions,
		PublicTape:   publicTape,
		WordSize:     RegisterLength,
	}
}

// Len returns the number of instructions
func (p *Program) Len() int {
	return len(p.Instructions)
}

// Validate checks the program invariants: known opcodes, in-range registers
// and immediates, and branch targets inside the program.
func (p *Program) Validate() error {
	if p.WordSize != RegisterLength {
		return fmt.Errorf("%w: program assembled for %d-bit words, machine has %d",
			ErrMalformedProgram, p.WordSize, RegisterLength)
	}
	if len(p.Instructions) == 0 {
		return fmt.Errorf("%w: empty program", ErrMalformedProgram)
	}
	for pc, inst := range p.Instructions {
		if err := inst.validateOperands(); err != nil {
			return fmt.Errorf("%w: pc %d: %v", ErrMalformedProgram, pc, err)
		}
		if inst.Op.IsBranch() && int(inst.Dst) >= len(p.Instructions) {
			return fmt.Errorf("%w: pc %d: branch target %d", ErrUnresolvedBranchTarget, pc, inst.Dst)
		}
		if inst.Op == Jmp && inst.Src1.IsImmediate() && int(inst.Src1.Value) >= len(p.Instructions) {
			return fmt.Errorf("%w: pc %d: jump target %d", ErrUnresolvedBranchTarget, pc, inst.Src1.Value)
		}
	}
	for i, w := range p.PublicTape {
		if w&^WordMask != 0 {
			return fmt.Errorf("%w: public tape word %d exceeds %d bits", ErrMalformedProgram, i, RegisterLength)
		}
	}
	return nil
}

// Digest attests to the program: a variable-length hash over the word size,
// every encoded instruction and the embedded public tape.
func (p *Program) Digest() hash.Digest {
	elements := make([]field.Element, 0, 2+6*len(p.Instructions)+len(p.PublicTape))
	elements = append(elements, field.New(uint64(p.WordSize)), field.New(uint64(len(p.Instructions))))
	for _, inst := range p.Instructions {
		elements = append(elements, inst.Words()...)
	}
	for _, w := range p.PublicTape {
		elements = append(elements, field.New(uint64(w)))
	}
	return hash.HashVarlen(elements)
}

const tapeWordsPerLine = 16

// MarshalText renders the canonical artifact form. Output is a pure function
// of the program, so identical programs serialize byte-identically.
func (p *Program) MarshalText() ([]byte, error) {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, ".wordsize %d\n", p.WordSize)
	for i := 0; i < len(p.PublicTape); i += tapeWordsPerLine {
		end := min(i+tapeWordsPerLine, len(p.PublicTape))
		buf.WriteString(".pubtape")
		for _, w := range p.PublicTape[i:end] {
			fmt.Fprintf(&buf, " %d", w)
		}
		buf.WriteByte('\n')
	}
	for _, inst := range p.Instructions {
		buf.WriteString(inst.String())
		buf.WriteByte('\n')
	}
	return buf.Bytes(), nil
}

// UnmarshalText parses the canonical artifact form
func (p *Program) UnmarshalText(text []byte) error {
	parsed := Program{}
	scanner := bufio.NewScanner(bytes.NewReader(text))
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		switch fields[0] {
		case ".wordsize":
			if len(fields) != 2 {
				return fmt.Errorf("%w: line %d: .wordsize takes one value", ErrMalformedProgram, lineNo)
			}
			n, err := strconv.Atoi(fields[1])
			if err != nil {
				return fmt.Errorf("%w: line %d: %v", ErrMalformedProgram, lineNo, err)
			}
			parsed.WordSize = n
		case ".pubtape":
			for _, f := range fields[1:] {
				w, err := strconv.ParseUint(f, 10, 32)
				if err != nil {
					return fmt.Errorf("%w: line %d: %v", ErrMalformedProgram, lineNo, err)
				}
				parsed.PublicTape = append(parsed.PublicTape, uint32(w))
			}
		default:
			inst, err := parseInstruction(fields)
			if err != nil {
				return fmt.Errorf("%w: line %d: %v", ErrMalformedProgram, lineNo, err)
			}
			parsed.Instructions = append(parsed.Instructions, inst)
		}
	}
	if err := scanner.Err(); err != nil {
		return err
	}
	*p = parsed
	return nil
}

func parseInstruction(fields []string) (Instruction, error) {
	if len(fields) != 4 {
		return Instruction{}, fmt.Errorf("expected 4 fields, got %d", len(fields))
	}
	op, ok := ParseOpcode(fields[0])
	if !ok {
		return Instruction{}, fmt.Errorf("unknown opcode %q", fields[0])
	}
	dst, err := strconv.ParseUint(fields[1], 10, 32)
	if err != nil {
		return Instruction{}, fmt.Errorf("dst: %v", err)
	}
	src1, err := parseOperand(fields[2])
	if err != nil {
		return Instruction{}, err
	}
	src2, err := parseOperand(fields[3])
	if err != nil {
		return Instruction{}, err
	}
	return Instruction{Op: op, Dst: uint32(dst), Src1: src1, Src2: src2}, nil
}

func parseOperand(s string) (Operand, error) {
	if len(s) < 2 {
		return Operand{}, fmt.Errorf("malformed operand %q", s)
	}
	v, err := strconv.ParseUint(s[1:], 10, 32)
	if err != nil {
		return Operand{}, fmt.Errorf("operand %q: %v", s, err)
	}
	switch s[0] {
	case 'r':
		return Operand{Kind: KindRegister, Value: uint32(v)}, nil
	case '#':
		return Operand{Kind: KindImmediate, Value: uint32(v)}, nil
	}
	return Operand{}, fmt.Errorf("malformed operand %q", s)
}

// WriteFile stores the artifact at path
func (p *Program) WriteFile(path string) error {
	text, err := p.MarshalText()
	if err != nil {
		return err
	}
	return os.WriteFile(path, text, 0o644)
}

// LoadProgram reads and validates an artifact written by WriteFile
func LoadProgram(path string) (*Program, error) {
	text, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read program: %w", err)
	}
	p := &Program{}
	if err := p.UnmarshalText(text); err != nil {
		return nil, err
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}
