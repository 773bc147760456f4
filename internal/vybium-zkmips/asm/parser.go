package asm

import (
	"fmt"
	"strings"
)

// arg is one unresolved operand of a statement. Exactly one of text, slot
// and mem is set.
type arg struct {
	text string  // literal token
	slot string  // %name macro placeholder
	mem  *memArg // offset(base)
}

type memArg struct {
	offset *arg // nil when omitted
	base   *arg
}

func (a *arg) String() string {
	switch {
	case a.slot != "":
		return "%" + a.slot
	case a.mem != nil:
		if a.mem.offset == nil {
			return "(" + a.mem.base.String() + ")"
		}
		return a.mem.offset.String() + "(" + a.mem.base.String() + ")"
	}
	return a.text
}

// statement is one parsed source line
type statement struct {
	line     int
	text     string
	labels   []string
	mnemonic string // lower-case
	args     []*arg
}

func isIdentStart(c byte) bool {
	return c == '_' || c == '.' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentChar(c byte) bool {
	return isIdentStart(c) || (c >= '0' && c <= '9')
}

func isIdent(s string) bool {
	if s == "" || !isIdentStart(s[0]) {
		return false
	}
	for i := 1; i < len(s); i++ {
		if !isIdentChar(s[i]) {
			return false
		}
	}
	return true
}

// isLocalLabel reports whether s names a macro-local label (@name)
func isLocalLabel(s string) bool {
	return len(s) > 1 && s[0] == '@' && isIdent(s[1:])
}

// stripComment cuts the line at the first # or ; that is not inside a
// character literal or an expression.
func stripComment(line string) string {
	quoted := false
	depth := 0
	for i := 0; i < len(line); i++ {
		c := line[i]
		switch {
		case quoted && c == '\\':
			i++
		case c == '\'':
			quoted = !quoted
		case quoted:
		case c == '(':
			depth++
		case c == ')':
			depth--
		case (c == '#' || c == ';') && depth == 0:
			return line[:i]
		}
	}
	return line
}

// splitArgs splits on commas outside quotes and parentheses
func splitArgs(s string) []string {
	var out []string
	quoted := false
	depth := 0
	start := 0
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case quoted && c == '\\':
			i++
		case c == '\'':
			quoted = !quoted
		case quoted:
		case c == '(':
			depth++
		case c == ')':
			depth--
		case c == ',' && depth == 0:
			out = append(out, strings.TrimSpace(s[start:i]))
			start = i + 1
		}
	}
	return append(out, strings.TrimSpace(s[start:]))
}

func parseArg(tok string) (*arg, error) {
	if tok == "" {
		return nil, fmt.Errorf("%w: empty operand", ErrSyntax)
	}
	if tok[0] == '%' {
		if !isIdent(tok[1:]) {
			return nil, fmt.Errorf("%w: malformed placeholder %q", ErrSyntax, tok)
		}
		return &arg{slot: tok[1:]}, nil
	}
	if tok[len(tok)-1] == ')' && !isExpr(tok) {
		open := matchingParen(tok)
		if open < 0 {
			return nil, fmt.Errorf("%w: unbalanced parentheses in %q", ErrSyntax, tok)
		}
		base, err := parseArg(strings.TrimSpace(tok[open+1 : len(tok)-1]))
		if err != nil {
			return nil, err
		}
		m := &memArg{base: base}
		if offset := strings.TrimSpace(tok[:open]); offset != "" {
			if m.offset, err = parseArg(offset); err != nil {
				return nil, err
			}
		}
		return &arg{mem: m}, nil
	}
	return &arg{text: tok}, nil
}

// matchingParen returns the index of the ( matching the final ) of tok
func matchingParen(tok string) int {
	depth := 0
	for i := len(tok) - 1; i >= 0; i-- {
		switch tok[i] {
		case ')':
			depth++
		case '(':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

// parseStatement parses one line. It returns nil for blank and comment-only
// lines.
func parseStatement(text string, line int) (*statement, error) {
	rest := strings.TrimSpace(stripComment(text))
	if rest == "" {
		return nil, nil
	}
	st := &statement{line: line, text: strings.TrimSpace(text)}

	for {
		colon := strings.IndexByte(rest, ':')
		if colon <= 0 {
			break
		}
		name := strings.TrimSpace(rest[:colon])
		if !isIdent(name) && !isLocalLabel(name) {
			break
		}
		st.labels = append(st.labels, name)
		rest = strings.TrimSpace(rest[colon+1:])
	}
	if rest == "" {
		return st, nil
	}

	mnemonic, operands := rest, ""
	if sp := strings.IndexAny(rest, " \t"); sp >= 0 {
		mnemonic, operands = rest[:sp], rest[sp+1:]
	}
	st.mnemonic = strings.ToLower(mnemonic)

	operands = strings.TrimSpace(operands)
	if operands == "" {
		return st, nil
	}
	for _, tok := range splitArgs(operands) {
		a, err := parseArg(tok)
		if err != nil {
			return nil, err
		}
		st.args = append(st.args, a)
	}
	return st, nil
}
