// Package macros loads zkMIPS macro definitions. Definition files are CUE
// (plain JSON is valid CUE) and are validated against a closed schema before
// they are decoded.
package macros

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"

	"github.com/vybium/vybium-zkmips/internal/vybium-zkmips/translate"
)

var (
	ErrDuplicateMacro   = errors.New(translate.From("duplicate macro definition"))
	ErrInvalidParameter = errors.New(translate.From("invalid macro parameter"))
)

// Kind is the type of a macro parameter slot.
type Kind string

const (
	KindReg   Kind = "reg"
	KindImm   Kind = "imm"
	KindLabel Kind = "label"
)

// Param is a named, typed macro parameter
type Param struct {
	Name string `json:"name"`
	Kind Kind   `json:"kind"`
}

// Definition is one macro: its parameters and the body statements, in
// which %name refers to a parameter and @name to a macro-local label.
type Definition struct {
	Name   string   `json:"-"`
	Params []Param  `json:"params"`
	Body   []string `json:"body"`
}

// Arity returns the number of parameters
func (d Definition) Arity() int {
	return len(d.Params)
}

func (d Definition) validate() error {
	seen := make(map[string]bool, len(d.Params))
	for _, p := range d.Params {
		if p.Name == "" {
			return fmt.Errorf("%w: %s: empty parameter name", ErrInvalidParameter, d.Name)
		}
		if seen[p.Name] {
			return fmt.Errorf("%w: %s: parameter %q repeated", ErrInvalidParameter, d.Name, p.Name)
		}
		seen[p.Name] = true
		switch p.Kind {
		case KindReg, KindImm, KindLabel:
		default:
			return fmt.Errorf("%w: %s: parameter %q has kind %q", ErrInvalidParameter, d.Name, p.Name, p.Kind)
		}
	}
	return nil
}

// Set is an immutable collection of macro definitions keyed by lower-case
// name.
type Set struct {
	defs map[string]Definition
}

// NewSet builds a set from definitions
func NewSet(defs ...Definition) (*Set, error) {
	s := &Set{defs: make(map[string]Definition, len(defs))}
	for _, d := range defs {
		if err := s.add(d); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Empty returns a set with no macros
func Empty() *Set {
	return &Set{defs: map[string]Definition{}}
}

func (s *Set) add(d Definition) error {
	d.Name = strings.ToLower(d.Name)
	if _, ok := s.defs[d.Name]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateMacro, d.Name)
	}
	if err := d.validate(); err != nil {
		return err
	}
	s.defs[d.Name] = d
	return nil
}

// Lookup finds a macro by (case-insensitive) name
func (s *Set) Lookup(name string) (Definition, bool) {
	if s == nil {
		return Definition{}, false
	}
	d, ok := s.defs[strings.ToLower(name)]
	return d, ok
}

// Names returns the macro names in sorted order
func (s *Set) Names() []string {
	if s == nil {
		return nil
	}
	names := make([]string, 0, len(s.defs))
	for name := range s.defs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of definitions
func (s *Set) Len() int {
	if s == nil {
		return 0
	}
	return len(s.defs)
}

// Merge returns a set holding the definitions of both sets
func (s *Set) Merge(other *Set) (*Set, error) {
	merged := &Set{defs: make(map[string]Definition, s.Len()+other.Len())}
	for _, set := range []*Set{s, other} {
		for _, name := range set.Names() {
			if err := merged.add(set.defs[name]); err != nil {
				return nil, err
			}
		}
	}
	return merged, nil
}

const schemaSrc = `
macros: [string]: close({
	params?: [...close({
		name: =~"^[A-Za-z_][A-Za-z0-9_]*$"
		kind: "reg" | "imm" | "label"
	})]
	body: [...string]
})
`

type document struct {
	Macros map[string]Definition `json:"macros"`
}

// Parse decodes a definition file. filename is used in diagnostics only.
func Parse(filename string, content []byte) (*Set, error) {
	ctx := cuecontext.New()

	schema := ctx.CompileString("close({" + schemaSrc + "})")
	if err := schema.Err(); err != nil {
		return nil, err
	}

	value := ctx.CompileBytes(content, cue.Filename(filename))
	if err := value.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", filename, err)
	}
	if err := schema.Unify(value).Validate(cue.Concrete(true)); err != nil {
		return nil, fmt.Errorf("%s: %w", filename, err)
	}

	var doc document
	if err := value.Decode(&doc); err != nil {
		return nil, fmt.Errorf("%s: %w", filename, err)
	}

	defs := make([]Definition, 0, len(doc.Macros))
	for name, d := range doc.Macros {
		d.Name = name
		defs = append(defs, d)
	}
	sort.Slice(defs, func(i, j int) bool { return defs[i].Name < defs[j].Name })

	set, err := NewSet(defs...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filename, err)
	}
	return set, nil
}

// Load reads and merges definition files. With no paths it returns an empty
// set.
func Load(paths ...string) (*Set, error) {
	set := Empty()
	for _, path := range paths {
		content, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		parsed, err := Parse(path, content)
		if err != nil {
			return nil, err
		}
		if set, err = set.Merge(parsed); err != nil {
			return nil, err
		}
	}
	return set, nil
}
