package asm

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/vybium/vybium-zkmips/internal/vybium-zkmips/vm"
)

// ParseNumber parses an integer literal: decimal, 0x hex, 0b binary or 0o
// octal, with _ separators and an optional sign, or a character literal
// such as 'a' or '\n'.
func ParseNumber(tok string) (int64, error) {
	if tok == "" {
		return 0, fmt.Errorf("%w: empty number", ErrSyntax)
	}
	if tok[0] == '\'' {
		return parseChar(tok)
	}

	neg := false
	s := tok
	switch s[0] {
	case '-':
		neg = true
		s = s[1:]
	case '+':
		s = s[1:]
	}

	base := 10
	if len(s) > 2 && s[0] == '0' {
		switch s[1] {
		case 'x', 'X':
			base = 16
		case 'b', 'B':
			base = 2
		case 'o', 'O':
			base = 8
		}
		if base != 10 {
			s = s[2:]
		}
	}
	if s == "" || s[0] == '_' || s[len(s)-1] == '_' || strings.Contains(s, "__") {
		return 0, fmt.Errorf("%w: malformed number %q", ErrSyntax, tok)
	}

	u, err := strconv.ParseUint(strings.ReplaceAll(s, "_", ""), base, 64)
	if err != nil {
		if ne, ok := err.(*strconv.NumError); ok && ne.Err == strconv.ErrRange {
			return 0, fmt.Errorf("%w: %s", ErrImmediateRange, tok)
		}
		return 0, fmt.Errorf("%w: malformed number %q", ErrSyntax, tok)
	}
	if neg {
		if u > 1<<63 {
			return 0, fmt.Errorf("%w: %s", ErrImmediateRange, tok)
		}
		return -int64(u), nil
	}
	if u > math.MaxInt64 {
		return 0, fmt.Errorf("%w: %s", ErrImmediateRange, tok)
	}
	return int64(u), nil
}

func parseChar(tok string) (int64, error) {
	s, err := strconv.Unquote(tok)
	if err != nil {
		return 0, fmt.Errorf("%w: malformed character literal %s", ErrSyntax, tok)
	}
	r, size := utf8.DecodeRuneInString(s)
	if size != len(s) {
		return 0, fmt.Errorf("%w: malformed character literal %s", ErrSyntax, tok)
	}
	return int64(r), nil
}

// isNumber reports whether tok looks like a numeric or character literal
func isNumber(tok string) bool {
	if tok == "" {
		return false
	}
	if tok[0] == '\'' {
		return true
	}
	if tok[0] == '-' || tok[0] == '+' {
		tok = tok[1:]
	}
	return tok != "" && tok[0] >= '0' && tok[0] <= '9'
}

// EncodeImmediate encodes v as a word. Negative values are two's complement.
// In strict mode a value outside both the signed and unsigned word range is
// rejected; otherwise it is truncated.
func EncodeImmediate(v int64, strict bool) (uint32, error) {
	if strict && !vm.FitsWord(v) {
		return 0, fmt.Errorf("%w: %d does not fit %d bits", ErrImmediateRange, v, vm.RegisterLength)
	}
	return vm.Wrap(uint64(v)), nil
}
