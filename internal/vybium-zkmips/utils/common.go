package utils

// Log2Ceil returns the smallest k with 2^k >= n.
func Log2Ceil(n int) int {
	k := 0
	for (1 << k) < n {
		k++
	}
	return k
}

// NextPowerOfTwo returns the smallest power of 2 >= n
func NextPowerOfTwo(n int) int {
	if n <= 0 {
		return 1
	}
	return 1 << Log2Ceil(n)
}

// CeilDiv returns ceil(a / b) for positive b.
func CeilDiv(a, b int) int {
	return (a + b - 1) / b
}
