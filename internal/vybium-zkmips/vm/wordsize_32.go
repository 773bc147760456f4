//go:build !zkmips16

package vm

// RegisterLength is the machine word width in bits.
const RegisterLength = 32

// ShiftBits is the number of low bits of a shift amount that are honoured.
const ShiftBits = 5
