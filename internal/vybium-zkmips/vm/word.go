package vm

const (
	// WordMask keeps the low RegisterLength bits of a value.
	WordMask = uint32(1<<RegisterLength - 1)

	// SignBit is the two's complement sign bit of a word.
	SignBit = uint32(1) << (RegisterLength - 1)

	// NumRegisters is the size of the register file.
	NumRegisters = 32
)

// Wrap reduces v modulo 2^RegisterLength.
func Wrap(v uint64) uint32 {
	return uint32(v) & WordMask
}

// Signed interprets a word as a two's complement integer.
func Signed(w uint32) int64 {
	w &= WordMask
	if w&SignBit != 0 {
		return int64(w) - int64(1)<<RegisterLength
	}
	return int64(w)
}

// FitsWord reports whether v is representable as a word, either unsigned or
// as a two's complement negative.
func FitsWord(v int64) bool {
	return v >= -(int64(1)<<(RegisterLength-1)) && v <= int64(WordMask)
}
