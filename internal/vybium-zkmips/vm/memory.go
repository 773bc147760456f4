package vm

import "fmt"

// Memory is a sparse word-addressable store. Addresses that were never
// written read as zero.
type Memory struct {
	words map[uint32]uint32
	limit uint64
}

// NewMemory creates an empty memory holding addressSpace words
func NewMemory(addressSpace uint64) *Memory {
	return &Memory{
		words: make(map[uint32]uint32),
		limit: addressSpace,
	}
}

func (m *Memory) check(addr uint32) error {
	if uint64(addr) >= m.limit {
		return fmt.Errorf("%w: address %d, address space %d words", ErrOutOfRangeMemory, addr, m.limit)
	}
	return nil
}

// Read returns the word at addr
func (m *Memory) Read(addr uint32) (uint32, error) {
	if err := m.check(addr); err != nil {
		return 0, err
	}
	return m.words[addr], nil
}

// Write stores value at addr
func (m *Memory) Write(addr, value uint32) error {
	if err := m.check(addr); err != nil {
		return err
	}
	m.words[addr] = value & WordMask
	return nil
}

// Touched returns the number of addresses ever written
func (m *Memory) Touched() int {
	return len(m.words)
}
