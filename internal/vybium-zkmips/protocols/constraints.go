// Package protocols holds the table-independent parts of the constraint
// system: AIR constraint sets and their local satisfaction check, the
// cross-table argument accumulators, the claim and trace commitments.
package protocols

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/vybium/vybium-crypto/pkg/vybium-crypto/field"
)

// ConstraintKind says which rows a constraint applies to
type ConstraintKind int

const (
	// Initial constraints apply to the first row
	Initial ConstraintKind = iota
	// Consistency constraints apply to every row
	Consistency
	// Transition constraints apply to every pair of consecutive rows
	Transition
	// Terminal constraints apply to the last row
	Terminal
	// Boundary constraints apply to one fixed row
	Boundary
)

func (k ConstraintKind) String() string {
	switch k {
	case Initial:
		return "initial"
	case Consistency:
		return "consistency"
	case Transition:
		return "transition"
	case Terminal:
		return "terminal"
	case Boundary:
		return "boundary"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// AIRConstraints is the constraint set of one table.
//
// Constraints are divided the usual way:
// 1. Initial: the first row
// 2. Consistency: within a single row
// 3. Transition: between consecutive rows
// 4. Terminal: the last row
// plus boundary constraints pinned to one row index, used for public data.
//
// Every constraint is satisfied when it evaluates to zero.
type AIRConstraints struct {
	initialConstraints     []*ConstraintPolynomial
	consistencyConstraints []*ConstraintPolynomial
	transitionConstraints  []*TransitionConstraintPolynomial
	terminalConstraints    []*ConstraintPolynomial
	boundaryConstraints    []*BoundaryConstraint
}

// ConstraintPolynomial represents a constraint over a single row
type ConstraintPolynomial struct {
	Name      string
	Degree    int
	Evaluator func(row []field.Element) field.Element
}

// TransitionConstraintPolynomial represents a constraint over two consecutive rows
type TransitionConstraintPolynomial struct {
	Name      string
	Degree    int
	Evaluator func(current, next []field.Element) field.Element
}

// BoundaryConstraint is a single-row constraint pinned to Row
type BoundaryConstraint struct {
	ConstraintPolynomial
	Row int
}

// NewAIRConstraints creates an empty constraint set
func NewAIRConstraints() *AIRConstraints {
	return &AIRConstraints{}
}

// AddInitialConstraint adds an initial (first row) constraint
func (air *AIRConstraints) AddInitialConstraint(name string, degree int,
	eval func(row []field.Element) field.Element,
) {
	air.initialConstraints = append(air.initialConstraints, &ConstraintPolynomial{
		Name:      name,
		Degree:    degree,
		Evaluator: eval,
	})
}

// AddConsistencyConstraint adds a consistency constraint
func (air *AIRConstraints) AddConsistencyConstraint(name string, degree int,
	eval func(row []field.Element) field.Element,
) {
	air.consistencyConstraints = append(air.consistencyConstraints, &ConstraintPolynomial{
		Name:      name,
		Degree:    degree,
		Evaluator: eval,
	})
}

// AddTransitionConstraint adds a transition constraint
func (air *AIRConstraints) AddTransitionConstraint(name string, degree int,
	eval func(current, next []field.Element) field.Element,
) {
	air.transitionConstraints = append(air.transitionConstraints, &TransitionConstraintPolynomial{
		Name:      name,
		Degree:    degree,
		Evaluator: eval,
	})
}

// AddTerminalConstraint adds a terminal (last row) constraint
func (air *AIRConstraints) AddTerminalConstraint(name string, degree int,
	eval func(row []field.Element) field.Element,
) {
	air.terminalConstraints = append(air.terminalConstraints, &ConstraintPolynomial{
		Name:      name,
		Degree:    degree,
		Evaluator: eval,
	})
}

// AddBoundaryConstraint adds a constraint on row index row
func (air *AIRConstraints) AddBoundaryConstraint(name string, row, degree int,
	eval func(row []field.Element) field.Element,
) {
	air.boundaryConstraints = append(air.boundaryConstraints, &BoundaryConstraint{
		ConstraintPolynomial: ConstraintPolynomial{Name: name, Degree: degree, Evaluator: eval},
		Row:                  row,
	})
}

// MaxDegree returns the maximum degree of all constraints
func (air *AIRConstraints) MaxDegree() int {
	maxDeg := 0
	for _, c := range air.initialConstraints {
		maxDeg = max(maxDeg, c.Degree)
	}
	for _, c := range air.consistencyConstraints {
		maxDeg = max(maxDeg, c.Degree)
	}
	for _, c := range air.transitionConstraints {
		maxDeg = max(maxDeg, c.Degree)
	}
	for _, c := range air.terminalConstraints {
		maxDeg = max(maxDeg, c.Degree)
	}
	for _, c := range air.boundaryConstraints {
		maxDeg = max(maxDeg, c.Degree)
	}
	return maxDeg
}

// NumConstraints returns the total number of constraints
func (air *AIRConstraints) NumConstraints() int {
	return len(air.initialConstraints) +
		len(air.consistencyConstraints) +
		len(air.transitionConstraints) +
		len(air.terminalConstraints) +
		len(air.boundaryConstraints)
}

// Violation identifies the first constraint a table fails
type Violation struct {
	Kind       ConstraintKind
	Constraint string
	Row        int
	Value      field.Element
}

func (v *Violation) Error() string {
	return fmt.Sprintf("%s constraint %q violated at row %d (evaluates to %d)",
		v.Kind, v.Constraint, v.Row, v.Value.Value())
}

// before orders violations by row, then by kind
func (v *Violation) before(o *Violation) bool {
	if o == nil {
		return true
	}
	if v.Row != o.Row {
		return v.Row < o.Row
	}
	return v.Kind < o.Kind
}

// DefaultChunkSize is the number of rows each checking goroutine scans
const DefaultChunkSize = 256

// Check evaluates every constraint over rows and returns the violation at
// the lowest row, or nil when all constraints hold. Rows are scanned in
// parallel chunks.
func (air *AIRConstraints) Check(ctx context.Context, rows [][]field.Element) (*Violation, error) {
	n := len(rows)
	var first *Violation

	if n > 0 {
		first = air.checkRow(Initial, air.initialConstraints, rows[0], 0, first)
	}
	for _, c := range air.boundaryConstraints {
		if c.Row >= n {
			v := &Violation{Kind: Boundary, Constraint: c.Name, Row: c.Row}
			if v.before(first) {
				first = v
			}
			continue
		}
		if value := c.Evaluator(rows[c.Row]); !value.IsZero() {
			v := &Violation{Kind: Boundary, Constraint: c.Name, Row: c.Row, Value: value}
			if v.before(first) {
				first = v
			}
		}
	}

	numChunks := (n + DefaultChunkSize - 1) / DefaultChunkSize
	found := make([]*Violation, numChunks)
	g, gctx := errgroup.WithContext(ctx)
	for chunk := 0; chunk < numChunks; chunk++ {
		start := chunk * DefaultChunkSize
		end := min(start+DefaultChunkSize, n)
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			found[chunk] = air.checkRange(rows, start, end)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	for _, v := range found {
		if v != nil && v.before(first) {
			first = v
		}
	}

	if n > 0 {
		first = air.checkRow(Terminal, air.terminalConstraints, rows[n-1], n-1, first)
	}
	return first, nil
}

func (air *AIRConstraints) checkRow(kind ConstraintKind, constraints []*ConstraintPolynomial,
	row []field.Element, index int, first *Violation,
) *Violation {
	for _, c := range constraints {
		if value := c.Evaluator(row); !value.IsZero() {
			v := &Violation{Kind: kind, Constraint: c.Name, Row: index, Value: value}
			if v.before(first) {
				return v
			}
			return first
		}
	}
	return first
}

// checkRange scans rows [start, end) for the first consistency or
// transition violation.
func (air *AIRConstraints) checkRange(rows [][]field.Element, start, end int) *Violation {
	for i := start; i < end; i++ {
		for _, c := range air.consistencyConstraints {
			if value := c.Evaluator(rows[i]); !value.IsZero() {
				return &Violation{Kind: Consistency, Constraint: c.Name, Row: i, Value: value}
			}
		}
		if i+1 < len(rows) {
			for _, c := range air.transitionConstraints {
				if value := c.Evaluator(rows[i], rows[i+1]); !value.IsZero() {
					return &Violation{Kind: Transition, Constraint: c.Name, Row: i, Value: value}
				}
			}
		}
	}
	return nil
}
