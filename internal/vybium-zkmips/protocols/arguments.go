package protocols

import (
	"errors"
	"fmt"

	"github.com/vybium/vybium-crypto/pkg/vybium-crypto/field"

	"github.com/vybium/vybium-zkmips/internal/vybium-zkmips/translate"
)

// ErrChallengeCollision is returned when a challenge equals a compressed
// row, which happens with negligible probability.
var ErrChallengeCollision = errors.New(translate.From("challenge equals a compressed row"))

// CrossTableArgumentType defines the type of cross-table argument
type CrossTableArgumentType int

const (
	// PermutationArgumentType proves two tables contain the same multiset of rows
	// with a running product RP[i] = RP[i-1] * (challenge - row[i])
	PermutationArgumentType CrossTableArgumentType = iota

	// LookupArgumentType proves the rows of one table appear in another with a
	// log-derivative sum LD[i] = LD[i-1] + m[i]/(challenge - row[i])
	LookupArgumentType
)

func (t CrossTableArgumentType) String() string {
	switch t {
	case PermutationArgumentType:
		return "permutation"
	case LookupArgumentType:
		return "lookup"
	}
	return fmt.Sprintf("argument(%d)", int(t))
}

// CrossTableArgument links the terminal values of two tables
type CrossTableArgument struct {
	Name   string
	Type   CrossTableArgumentType
	Source string
	Target string
}

// Compress folds a row into one element: sum of weights[i] * values[i].
func Compress(weights, values []field.Element) field.Element {
	acc := field.Zero
	for i, v := range values {
		acc = acc.Add(weights[i].Mul(v))
	}
	return acc
}

// RunningProduct returns RP where RP[i] = RP[i-1] * (challenge - symbols[i])
// and RP[-1] = initial.
func RunningProduct(symbols []field.Element, initial, challenge field.Element) []field.Element {
	out := make([]field.Element, len(symbols))
	acc := initial
	for i, symbol := range symbols {
		acc = acc.Mul(challenge.Sub(symbol))
		out[i] = acc
	}
	return out
}

// RunningLogDerivative returns LD where LD[i] = LD[i-1] + m[i]/(challenge - symbols[i])
// and LD[-1] = initial.
func RunningLogDerivative(symbols, multiplicities []field.Element, initial, challenge field.Element) ([]field.Element, error) {
	out := make([]field.Element, len(symbols))
	acc := initial
	for i, symbol := range symbols {
		m := field.One
		if multiplicities != nil {
			m = multiplicities[i]
		}
		if !m.IsZero() {
			denominator := challenge.Sub(symbol)
			if denominator.IsZero() {
				return nil, fmt.Errorf("%w: symbol %d", ErrChallengeCollision, i)
			}
			acc = acc.Add(m.Mul(denominator.Inverse()))
		}
		out[i] = acc
	}
	return out, nil
}

// LogDerivativeStep is the polynomial form of one log-derivative update
//
//	diff = sum(m[k] / d[k])
//
// cleared of denominators: diff * prod(d) - sum(m[k] * prod(d[j], j != k)).
// It is zero exactly when the update is correct and no denominator is zero.
func LogDerivativeStep(diff field.Element, denominators, multiplicities []field.Element) field.Element {
	prod := field.One
	for _, d := range denominators {
		prod = prod.Mul(d)
	}
	acc := diff.Mul(prod)
	for k := range denominators {
		term := multiplicities[k]
		for j, d := range denominators {
			if j != k {
				term = term.Mul(d)
			}
		}
		acc = acc.Sub(term)
	}
	return acc
}
