// relax_stub.go — Fallback no-op for cpuRelax on non-x86 systems
//
// Provides a safe no-op drop-in for platforms lacking a PAUSE instruction,
// so producer retry loops compile unchanged on ARM, RISC-V and TinyGo.
//
//go:build !amd64 || noasm || nocgo

package reqring

//go:nosplit
//go:inline
func cpuRelax() {}
