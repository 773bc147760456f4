package asm

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/vybium/vybium-zkmips/internal/vybium-zkmips/macros"
)

// template is a macro definition with its body parsed into statements.
// Placeholders stay typed arguments until expansion binds them.
type template struct {
	def  macros.Definition
	body []*statement
}

// MacroTable holds compiled macro templates. It is immutable and can be
// shared by concurrent assemblers.
type MacroTable struct {
	templates map[string]*template
}

// NewMacroTable parses every body in set once and rejects definitions that
// shadow native mnemonics, use unknown placeholders or reference each other
// cyclically.
func NewMacroTable(set *macros.Set) (*MacroTable, error) {
	t := &MacroTable{templates: make(map[string]*template, set.Len())}
	for _, name := range set.Names() {
		def, _ := set.Lookup(name)
		if _, native := mnemonics[name]; native {
			return nil, fmt.Errorf("%w: macro %s shadows a native mnemonic", ErrSyntax, name)
		}
		tpl, err := compile(def)
		if err != nil {
			return nil, err
		}
		t.templates[name] = tpl
	}
	if err := t.checkCycles(); err != nil {
		return nil, err
	}
	return t, nil
}

func compile(def macros.Definition) (*template, error) {
	params := make(map[string]bool, len(def.Params))
	for _, p := range def.Params {
		params[p.Name] = true
	}

	tpl := &template{def: def}
	for i, line := range def.Body {
		st, err := parseStatement(line, i+1)
		if err != nil {
			return nil, fmt.Errorf("macro %s, body line %d: %w", def.Name, i+1, err)
		}
		if st == nil {
			continue
		}
		for _, l := range st.labels {
			if !isLocalLabel(l) {
				return nil, fmt.Errorf("%w: macro %s defines global label %s", ErrSyntax, def.Name, l)
			}
		}
		for _, x := range st.args {
			if err := checkSlots(x, params); err != nil {
				return nil, fmt.Errorf("macro %s, body line %d: %w", def.Name, i+1, err)
			}
		}
		tpl.body = append(tpl.body, st)
	}
	return tpl, nil
}

func checkSlots(x *arg, params map[string]bool) error {
	switch {
	case x == nil:
		return nil
	case x.slot != "":
		if !params[x.slot] {
			return fmt.Errorf("%w: %%%s", ErrUnboundPlaceholder, x.slot)
		}
	case x.mem != nil:
		if err := checkSlots(x.mem.offset, params); err != nil {
			return err
		}
		return checkSlots(x.mem.base, params)
	}
	return nil
}

// checkCycles walks the invocation graph between macros.
func (t *MacroTable) checkCycles() error {
	const (
		unvisited = iota
		active
		done
	)
	state := make(map[string]int, len(t.templates))
	var path []string

	var visit func(name string) error
	visit = func(name string) error {
		switch state[name] {
		case active:
			return fmt.Errorf("%w: %s > %s", ErrMacroCycle, strings.Join(path, " > "), name)
		case done:
			return nil
		}
		state[name] = active
		path = append(path, name)
		for _, st := range t.templates[name].body {
			if _, ok := t.templates[st.mnemonic]; ok {
				if err := visit(st.mnemonic); err != nil {
					return err
				}
			}
		}
		path = path[:len(path)-1]
		state[name] = done
		return nil
	}

	for _, name := range t.Names() {
		if err := visit(name); err != nil {
			return err
		}
	}
	return nil
}

func (t *MacroTable) lookup(name string) (*template, bool) {
	if t == nil {
		return nil, false
	}
	tpl, ok := t.templates[name]
	return tpl, ok
}

// Names returns the macro names in sorted order
func (t *MacroTable) Names() []string {
	if t == nil {
		return nil
	}
	names := make([]string, 0, len(t.templates))
	for name := range t.templates {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// frame is one active macro expansion.
type frame struct {
	parent *frame
	name   string
	id     int
	args   map[string]value
}

// local renames a macro-local label uniquely for this expansion
func (f *frame) local(label string) string {
	return label[1:] + "@" + f.name + "." + strconv.Itoa(f.id)
}

func (f *frame) depth() int {
	n := 0
	for ; f != nil; f = f.parent {
		n++
	}
	return n
}

func (f *frame) active(name string) bool {
	for ; f != nil; f = f.parent {
		if f.name == name {
			return true
		}
	}
	return false
}

// stack lists the expansion chain, outermost first
func (f *frame) stack() []string {
	var names []string
	for ; f != nil; f = f.parent {
		names = append([]string{f.name}, names...)
	}
	return names
}

// expansionError carries the macro stack of an error raised inside a body
type expansionError struct {
	stack []string
	err   error
}

func (e *expansionError) Error() string { return e.err.Error() }
func (e *expansionError) Unwrap() error { return e.err }

// expand binds the invocation's arguments to the macro's typed slots and
// assembles the body in a fresh frame.
func (a *Assembler) expand(st *statement, tpl *template, f *frame) error {
	name := tpl.def.Name
	if f.active(name) {
		return fmt.Errorf("%w: %s re-entered (%s)", ErrMacroCycle, name, strings.Join(f.stack(), " > "))
	}
	if f.depth() >= a.opts.MaxMacroDepth {
		return fmt.Errorf("%w: expansion deeper than %d", ErrMacroCycle, a.opts.MaxMacroDepth)
	}
	if len(st.args) != tpl.def.Arity() {
		return fmt.Errorf("%w: %s takes %d arguments, got %d", ErrArityMismatch, name, tpl.def.Arity(), len(st.args))
	}

	args := make(map[string]value, len(st.args))
	for i, p := range tpl.def.Params {
		v, err := a.resolve(st.args[i], paramPosition(p.Kind), f)
		if err != nil {
			return fmt.Errorf("%s argument %d (%s %s): %w", name, i+1, p.Kind, p.Name, err)
		}
		args[p.Name] = v
	}

	a.expansions++
	inner := &frame{parent: f, name: name, id: a.expansions, args: args}
	for _, body := range tpl.body {
		if err := a.statement(body, inner); err != nil {
			var ee *expansionError
			if errors.As(err, &ee) {
				return err
			}
			return &expansionError{stack: inner.stack(), err: err}
		}
	}
	return nil
}
