package protocols

import (
	"fmt"

	"github.com/vybium/vybium-crypto/pkg/vybium-crypto/field"
	"github.com/vybium/vybium-crypto/pkg/vybium-crypto/hash"
)

// CurrentVersion is the version of the zkMIPS instruction set and table
// layout. It changes whenever either changes.
const CurrentVersion uint32 = 1

// Claim contains the public information of a computation: the program that
// ran, the public tape it was given and the answer it produced.
type Claim struct {
	ProgramDigest hash.Digest

	Version  uint32
	WordSize uint32

	// PublicInput is the embedded public tape
	PublicInput []field.Element

	// PublicOutput is the answer
	PublicOutput []field.Element
}

// NewClaim creates a claim for a program digest
func NewClaim(programDigest hash.Digest, wordSize int) *Claim {
	return &Claim{
		ProgramDigest: programDigest,
		Version:       CurrentVersion,
		WordSize:      uint32(wordSize),
	}
}

// WithInput sets the public input from tape words
func (c *Claim) WithInput(words []uint32) *Claim {
	c.PublicInput = make([]field.Element, len(words))
	for i, w := range words {
		c.PublicInput[i] = field.New(uint64(w))
	}
	return c
}

// WithOutput sets the answer
func (c *Claim) WithOutput(answer uint32) *Claim {
	c.PublicOutput = []field.Element{field.New(uint64(answer))}
	return c
}

// Answer returns the claimed answer
func (c *Claim) Answer() (field.Element, error) {
	if len(c.PublicOutput) != 1 {
		return field.Zero, fmt.Errorf("claim must carry exactly one output, got %d", len(c.PublicOutput))
	}
	return c.PublicOutput[0], nil
}

// Validate checks if the claim is well-formed
func (c *Claim) Validate() error {
	if c.WordSize != 16 && c.WordSize != 32 {
		return fmt.Errorf("unsupported word size %d", c.WordSize)
	}
	if len(c.PublicOutput) != 1 {
		return fmt.Errorf("claim must carry exactly one output, got %d", len(c.PublicOutput))
	}
	return nil
}

// Hash computes the digest of the claim absorbed before any challenge is
// sampled.
func (c *Claim) Hash() (hash.Digest, error) {
	if err := c.Validate(); err != nil {
		return hash.Digest{}, fmt.Errorf("invalid claim: %w", err)
	}

	elements := make([]field.Element, 0, len(c.ProgramDigest)+3+len(c.PublicInput)+len(c.PublicOutput))
	elements = append(elements, c.ProgramDigest[:]...)
	elements = append(elements,
		field.New(uint64(c.Version)),
		field.New(uint64(c.WordSize)),
		field.New(uint64(len(c.PublicInput))))
	elements = append(elements, c.PublicInput...)
	elements = append(elements, c.PublicOutput...)

	return hash.HashVarlen(elements), nil
}
