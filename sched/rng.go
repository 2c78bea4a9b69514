// rng.go — Per-worker xorshift64 PRNG
//
// Victim selection needs a fast thread-local source; each worker carries its
// own state seeded from ID+1000 through the splitmix64 finalizer, so no two
// workers share a stream and the zero-state trap is avoided.

package sched

// randU64 advances the worker's xorshift64 state.
//
//go:nosplit
//go:inline
func (w *Worker) randU64() uint64 {
	x := w.rng
	x ^= x << 13
	x ^= x >> 7
	x ^= x << 17
	w.rng = x
	return x
}

// randN draws uniformly from [0, n). n must be positive.
//
//go:nosplit
//go:inline
func (w *Worker) randN(n int32) int32 {
	return int32(w.randU64() % uint64(n))
}
