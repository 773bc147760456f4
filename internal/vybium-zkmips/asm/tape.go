package asm

import (
	"bufio"
	"io"
	"os"
	"strings"
)

// ParseTape reads whitespace-separated words in the immediate grammar.
// Comments start with # or ;.
func ParseTape(name string, r io.Reader, strict bool) ([]uint32, error) {
	var words []uint32
	scanner := bufio.NewScanner(r)
	line := 0
	for scanner.Scan() {
		line++
		text := stripComment(scanner.Text())
		for _, tok := range strings.Fields(text) {
			n, err := ParseNumber(tok)
			if err != nil {
				return nil, &Error{File: name, Line: line, Text: strings.TrimSpace(scanner.Text()), Err: err}
			}
			w, err := EncodeImmediate(n, strict)
			if err != nil {
				return nil, &Error{File: name, Line: line, Text: strings.TrimSpace(scanner.Text()), Err: err}
			}
			words = append(words, w)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return words, nil
}

// ReadTape parses the tape file at path. An empty path is an empty tape.
func ReadTape(path string, strict bool) ([]uint32, error) {
	if path == "" {
		return nil, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ParseTape(path, f, strict)
}
