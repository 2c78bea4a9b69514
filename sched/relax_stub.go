// relax_stub.go — Fallback no-op for cpuRelax on non-x86 systems
//
// Provides a safe no-op drop-in for platforms lacking a PAUSE instruction,
// so the idle poll loop compiles unchanged on ARM, RISC-V and TinyGo.
//
//go:build !amd64 || noasm || nocgo

package sched

//go:nosplit
//go:inline
func cpuRelax() {}
