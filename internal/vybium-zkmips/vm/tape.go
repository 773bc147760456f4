package vm

import "fmt"

// TapeID selects one of the two input tapes
type TapeID uint32

const (
	PublicTape TapeID = iota
	PrivateTape
)

func (id TapeID) String() string {
	switch id {
	case PublicTape:
		return "public"
	case PrivateTape:
		return "private"
	}
	return fmt.Sprintf("tape(%d)", uint32(id))
}

// Tape is a read-once input stream. The backing words are shared read-only;
// only the cursor is owned by the machine.
type Tape struct {
	id     TapeID
	words  []uint32
	cursor int
}

// NewTape creates a tape positioned at its first word
func NewTape(id TapeID, words []uint32) *Tape {
	return &Tape{id: id, words: words}
}

// Next consumes the next word, returning its index
func (t *Tape) Next() (int, uint32, error) {
	if t.cursor >= len(t.words) {
		return t.cursor, 0, fmt.Errorf("%w: %s tape has %d words", ErrTapeExhausted, t.id, len(t.words))
	}
	index := t.cursor
	t.cursor++
	return index, t.words[index], nil
}

// Cursor returns the index of the next word to be read
func (t *Tape) Cursor() int {
	return t.cursor
}

// Len returns the declared tape length
func (t *Tape) Len() int {
	return len(t.words)
}
