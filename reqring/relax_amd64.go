// ════════════════════════════════════════════════════════════════════════════════════════════════
// CPU Relaxation - AMD64 Architecture
// ────────────────────────────────────────────────────────────────────────────────────────────────
// Project: Task-Parallel Runtime
// Component: x86-64 Spin-Wait Hint
//
// Description:
//   Emits the PAUSE instruction inside producer retry loops so contending
//   workers back off at pipeline granularity instead of burning full-rate
//   speculative loads on a contended tail cursor.
//
// ════════════════════════════════════════════════════════════════════════════════════════════════

//go:build amd64 && !noasm && !nocgo

package reqring

/*
#ifdef __x86_64__
static inline void cpu_pause() {
    __asm__ __volatile__("pause" ::: "memory");
}
#else
#error "This file requires x86-64 architecture"
#endif
*/
import "C"

// cpuRelax emits one x86-64 PAUSE.
//
//go:nosplit
//go:inline
func cpuRelax() {
	C.cpu_pause()
}
