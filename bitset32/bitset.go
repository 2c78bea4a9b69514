// ============================================================================
// BITSET32: VICTIM-SET BITFIELD PRIMITIVES
// ============================================================================
//
// Word-level helpers for the 32-bit candidate set carried inside every steal
// request. Bit i corresponds to intra-partition worker i. All operations are
// branch-light wrappers over math/bits so the victim selector stays
// allocation-free on the hot path.
//
// Compiler optimizations:
//   - //go:nosplit for stack management elimination
//   - //go:inline for call overhead reduction

package bitset32

import "math/bits"

// Set returns w with bit n set. Out-of-range n is a no-op.
//
//go:nosplit
//go:inline
func Set(w uint32, n int32) uint32 {
	if uint32(n) >= 32 {
		return w
	}
	return w | 1<<uint32(n)
}

// Clear returns w with bit n cleared. Out-of-range n is a no-op.
//
//go:nosplit
//go:inline
func Clear(w uint32, n int32) uint32 {
	if uint32(n) >= 32 {
		return w
	}
	return w &^ (1 << uint32(n))
}

// IsSet reports whether bit n of w is set.
//
//go:nosplit
//go:inline
func IsSet(w uint32, n int32) bool {
	return uint32(n) < 32 && w&(1<<uint32(n)) != 0
}

// Popcount returns the number of set bits in w.
//
//go:nosplit
//go:inline
func Popcount(w uint32) int32 {
	return int32(bits.OnesCount32(w))
}

// LSB returns the index of the lowest set bit, or -1 when w is empty.
//
//go:nosplit
//go:inline
func LSB(w uint32) int32 {
	if w == 0 {
		return -1
	}
	return int32(bits.TrailingZeros32(w))
}

// IsEmpty reports whether no bit is set.
//
//go:nosplit
//go:inline
func IsEmpty(w uint32) bool {
	return w == 0
}

// SetUpTo returns a mask with bits [0, n) set. n is clamped to 32.
//
//go:nosplit
//go:inline
func SetUpTo(n int32) uint32 {
	if n <= 0 {
		return 0
	}
	if n >= 32 {
		return ^uint32(0)
	}
	return 1<<uint32(n) - 1
}
