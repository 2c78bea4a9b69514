// utils.go — low-level helpers shared by debug, partition, sched & main.
package utils

import (
	"os"
	"unsafe"
)

///////////////////////////////////////////////////////////////////////////////
// Tiny zero-alloc conversions
///////////////////////////////////////////////////////////////////////////////

// B2s converts a []byte to string without an allocation.
//
//go:nosplit
//go:inline
func B2s(b []byte) string {
	if len(b) == 0 {
		return ""
	}
	return unsafe.String(&b[0], len(b)) // caller must keep b immutable
}

// Itoa formats a signed integer without fmt. Cold paths only.
func Itoa(v int) string {
	if v == 0 {
		return "0"
	}
	var buf [21]byte
	neg := v < 0
	u := uint64(v)
	if neg {
		u = uint64(-v)
	}
	i := len(buf)
	for u > 0 {
		i--
		buf[i] = byte('0' + u%10)
		u /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}

// PrintWarning writes directly to stderr, bypassing fmt and buffering.
//
//go:nosplit
func PrintWarning(msg string) {
	_, _ = os.Stderr.WriteString(msg)
}

///////////////////////////////////////////////////////////////////////////////
// Bit mixing
///////////////////////////////////////////////////////////////////////////////

// Mix64 is the splitmix64 finalizer. Used to expand worker IDs into PRNG
// seed material with full avalanche.
//
//go:nosplit
//go:inline
func Mix64(x uint64) uint64 {
	x ^= x >> 30
	x *= 0xbf58476d1ce4e5b9
	x ^= x >> 27
	x *= 0x94d049bb133111eb
	x ^= x >> 31
	return x
}
