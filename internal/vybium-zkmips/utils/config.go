package utils

import (
	"fmt"
)

// Config holds the tunables shared by the assembler, the execution engine
// and the constraint reducer.
type Config struct {
	// Execution bounds
	MaxCycles    uint64 // Hard cycle cap; runs that do not halt within it fault
	AddressSpace uint64 // Number of addressable memory words
	StartOffset  int    // Program counter of the first executed instruction

	// Assembly
	Strict        bool // Reject immediates and tape words that do not fit a word
	MaxMacroDepth int  // Bound on nested macro expansion

	// Reduction
	SecurityParameter int    // Target soundness in bits for the permutation and lookup arguments
	HashFunction      string // Fiat-Shamir transcript hash: "sha3" or "sha256"
}

// DefaultConfig returns the configuration used by the CLI and the tests.
func DefaultConfig() *Config {
	return &Config{
		MaxCycles:         1 << 20,
		AddressSpace:      1 << 20,
		StartOffset:       0,
		Strict:            false,
		MaxMacroDepth:     16,
		SecurityParameter: 60,
		HashFunction:      "sha3",
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.MaxCycles == 0 {
		return fmt.Errorf("max cycles must be positive")
	}

	if c.AddressSpace == 0 {
		return fmt.Errorf("address space must be positive")
	}

	if c.AddressSpace > 1<<32 {
		return fmt.Errorf("address space (%d) exceeds 2^32 words", c.AddressSpace)
	}

	if c.StartOffset < 0 {
		return fmt.Errorf("start offset must not be negative, got %d", c.StartOffset)
	}

	if c.MaxMacroDepth <= 0 {
		return fmt.Errorf("max macro depth must be positive")
	}

	if c.SecurityParameter <= 0 {
		return fmt.Errorf("security parameter must be positive, got %d", c.SecurityParameter)
	}

	if c.HashFunction != "sha256" && c.HashFunction != "sha3" {
		return fmt.Errorf("hash function must be 'sha256' or 'sha3', got '%s'", c.HashFunction)
	}

	return nil
}

// WithMaxCycles sets the cycle cap
func (c *Config) WithMaxCycles(n uint64) *Config {
	c.MaxCycles = n
	return c
}

// WithAddressSpace sets the number of addressable memory words
func (c *Config) WithAddressSpace(words uint64) *Config {
	c.AddressSpace = words
	return c
}

// WithStartOffset sets the initial program counter
func (c *Config) WithStartOffset(offset int) *Config {
	c.StartOffset = offset
	return c
}

// WithStrict toggles strict assembly and tape parsing
func (c *Config) WithStrict(strict bool) *Config {
	c.Strict = strict
	return c
}

// WithMaxMacroDepth sets the macro nesting bound
func (c *Config) WithMaxMacroDepth(depth int) *Config {
	c.MaxMacroDepth = depth
	return c
}

// WithSecurityParameter sets the security parameter
func (c *Config) WithSecurityParameter(lambda int) *Config {
	c.SecurityParameter = lambda
	return c
}

// WithHashFunction sets the transcript hash function
func (c *Config) WithHashFunction(hashFunc string) *Config {
	c.HashFunction = hashFunc
	return c
}

// Clone creates a copy of the configuration
func (c *Config) Clone() *Config {
	clone := *c
	return &clone
}
