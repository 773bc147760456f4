package alu

import (
	"fmt"

	"github.com/vybium/vybium-crypto/pkg/vybium-crypto/field"
	"github.com/vybium/vybium-crypto/pkg/vybium-crypto/hash"

	"github.com/vybium/vybium-zkmips/internal/vybium-zkmips/protocols"
	"github.com/vybium/vybium-zkmips/internal/vybium-zkmips/utils"
)

// Challenges is one independent set of Fiat-Shamir challenges for the
// permutation and lookup arguments.
type Challenges struct {
	// Memory permutation: alpha - sum(w_i * (space, addr, ts, write, value))
	MemoryAlpha   field.Element
	MemoryWeights [5]field.Element

	// Program lookup: gamma - sum(w_i * (pc, opcode, dst, kind1, val1, kind2, val2))
	ProgramGamma   field.Element
	ProgramWeights [7]field.Element

	// Tape lookup: delta - sum(w_i * (tape, index, value))
	TapeDelta   field.Element
	TapeWeights [3]field.Element

	// Range lookup: beta - value
	RangeBeta field.Element
}

const challengesPerRepetition = 1 + 5 + 1 + 7 + 1 + 3 + 1

// Repetitions returns the number of independent challenge sets needed for
// lambda bits of soundness when an argument spans n rows: every set gives
// about 64 - ceil(log2 n) bits over the Goldilocks field.
func Repetitions(lambda, n int) (int, error) {
	if lambda <= 0 {
		return 0, fmt.Errorf("%w: %d", ErrInvalidSecurityParameter, lambda)
	}
	bits := 64 - utils.Log2Ceil(n)
	if bits <= 0 {
		return 0, fmt.Errorf("%w: %d rows leave no soundness per repetition", ErrInvalidSecurityParameter, n)
	}
	return utils.CeilDiv(lambda, bits), nil
}

// SampleChallenges absorbs the claim digest and every table commitment into
// a fresh channel, then draws repetitions challenge sets.
func SampleChallenges(hashFunc string, claim hash.Digest, commitments []hash.Digest, repetitions int) []Challenges {
	channel := utils.NewChannel(hashFunc)
	channel.SendElements(claim[:])
	for _, root := range commitments {
		channel.SendElements(root[:])
	}

	out := make([]Challenges, repetitions)
	for r := range out {
		e := channel.ReceiveRandomFieldElements(challengesPerRepetition)
		c := &out[r]
		c.MemoryAlpha, e = e[0], e[1:]
		copy(c.MemoryWeights[:], e)
		e = e[len(c.MemoryWeights):]
		c.ProgramGamma, e = e[0], e[1:]
		copy(c.ProgramWeights[:], e)
		e = e[len(c.ProgramWeights):]
		c.TapeDelta, e = e[0], e[1:]
		copy(c.TapeWeights[:], e)
		e = e[len(c.TapeWeights):]
		c.RangeBeta = e[0]
	}
	return out
}

// memoryDen is alpha minus the compressed access
func (c *Challenges) memoryDen(space, addr, ts, write, value field.Element) field.Element {
	w := &c.MemoryWeights
	return c.MemoryAlpha.Sub(w[0].Mul(space).Add(w[1].Mul(addr)).Add(w[2].Mul(ts)).Add(w[3].Mul(write)).Add(w[4].Mul(value)))
}

// programDen is gamma minus the compressed instruction at pc
func (c *Challenges) programDen(values []field.Element) field.Element {
	return c.ProgramGamma.Sub(protocols.Compress(c.ProgramWeights[:], values))
}

// tapeDen is delta minus the compressed tape word
func (c *Challenges) tapeDen(tape, index, value field.Element) field.Element {
	return c.TapeDelta.Sub(protocols.Compress(c.TapeWeights[:], []field.Element{tape, index, value}))
}

// rangeDen is beta minus value
func (c *Challenges) rangeDen(value field.Element) field.Element {
	return c.RangeBeta.Sub(value)
}
