// Package alu reduces a zkMIPS execution trace to an AIR-style constraint
// system: a processor table with one row per cycle, a sorted memory table
// tied to it by a permutation argument, and program, tape and range tables
// tied to it by log-derivative lookups.
package alu

import (
	"github.com/vybium/vybium-crypto/pkg/vybium-crypto/field"

	"github.com/vybium/vybium-zkmips/internal/vybium-zkmips/protocols"
	"github.com/vybium/vybium-zkmips/internal/vybium-zkmips/vm"
)

// TableID identifies each table of the constraint system
type TableID int

const (
	// ProcessorTable records one row per cycle
	ProcessorTable TableID = iota

	// MemoryTable holds register and RAM accesses sorted by address
	MemoryTable

	// ProgramTable provides program attestation
	ProgramTable

	// TapeTable holds the public and private tape words
	TapeTable

	// RangeTable holds the values 0..255
	RangeTable

	numTables
)

// String returns the name of the table
func (id TableID) String() string {
	switch id {
	case ProcessorTable:
		return "processor"
	case MemoryTable:
		return "memory"
	case ProgramTable:
		return "program"
	case TapeTable:
		return "tape"
	case RangeTable:
		return "range"
	default:
		return "unknown"
	}
}

// Table is one table of the constraint system. Rows hold the main columns
// followed by the auxiliary columns of every repetition.
type Table struct {
	ID        TableID
	Columns   []string
	MainWidth int
	Rows      [][]field.Element
	AIR       *protocols.AIRConstraints
}

func newTable(id TableID, columns []string, height int) *Table {
	rows := make([][]field.Element, height)
	cells := make([]field.Element, height*len(columns))
	for i := range cells {
		cells[i] = field.Zero
	}
	for i := range rows {
		rows[i] = cells[i*len(columns) : (i+1)*len(columns) : (i+1)*len(columns)]
	}
	return &Table{ID: id, Columns: columns, MainWidth: len(columns), Rows: rows}
}

// Height returns the number of rows
func (t *Table) Height() int {
	return len(t.Rows)
}

// Column returns the index of the named column, or -1
func (t *Table) Column(name string) int {
	for i, c := range t.Columns {
		if c == name {
			return i
		}
	}
	return -1
}

// Cell returns the value at row and named column
func (t *Table) Cell(row int, column string) (field.Element, bool) {
	col := t.Column(column)
	if col < 0 || row < 0 || row >= len(t.Rows) {
		return field.Zero, false
	}
	return t.Rows[row][col], true
}

// extend appends zeroed auxiliary columns to every row
func (t *Table) extend(names []string) {
	t.Columns = append(t.Columns, names...)
	for i, row := range t.Rows {
		aux := make([]field.Element, len(names))
		for j := range aux {
			aux[j] = field.Zero
		}
		t.Rows[i] = append(row, aux...)
	}
}

// terminal returns the last value of column col, or empty for an empty table
func (t *Table) terminal(col int, empty field.Element) field.Element {
	if len(t.Rows) == 0 {
		return empty
	}
	return t.Rows[len(t.Rows)-1][col]
}

var (
	twoW    = field.New(uint64(1) << vm.RegisterLength)
	halfW   = field.New(uint64(1) << (vm.RegisterLength - 1))
	wordMax = field.New(uint64(vm.WordMask))

	// pow2[i] = 2^i
	pow2 = func() []field.Element {
		out := make([]field.Element, 64)
		for i := range out {
			out[i] = field.New(uint64(1) << i)
		}
		return out
	}()
)

func fe(v uint64) field.Element {
	return field.New(v)
}

func boolElem(b bool) field.Element {
	if b {
		return field.One
	}
	return field.Zero
}

func inverseOrZero(e field.Element) field.Element {
	if e.IsZero() {
		return field.Zero
	}
	return e.Inverse()
}

// isBool is b * (1 - b)
func isBool(b field.Element) field.Element {
	return b.Mul(field.One.Sub(b))
}

// recompose returns sum(row[base+i] * 2^i) over n bits
func recompose(row []field.Element, base, n int) field.Element {
	acc := field.Zero
	for i := 0; i < n; i++ {
		acc = acc.Add(row[base+i].Mul(pow2[i]))
	}
	return acc
}

// setBits writes the low n bits of v into row[base:]
func setBits(row []field.Element, base, n int, v uint64) {
	for i := 0; i < n; i++ {
		row[base+i] = fe((v >> i) & 1)
	}
}
