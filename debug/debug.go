// ─────────────────────────────────────────────────────────────────────────────
// [Filename]: debug.go — Cold-path diagnostic logging (zero-alloc)
//
// Purpose:
//   - Logs infrequent error and protocol events without heap pressure.
//   - Serializes multi-worker output through the runtime's only mutex.
//   - Hosts the termination-detection trace gate (DebugTD).
//
// Notes:
//   - Avoids fmt entirely; messages are concatenated and written to fd 2.
//   - The print lock is never taken on the scheduling hot path — only on
//     warnings, fatal diagnostics and the optional TD trace.
//
// ⚠️ Never invoke in hot loops — use only in failure diagnostics.
// ─────────────────────────────────────────────────────────────────────────────

package debug

import (
	"sync"

	"taskrt/utils"
)

// printLock serializes diagnostic output across workers. This is the only
// lock in the runtime.
var printLock sync.Mutex

// tdTrace gates the termination-detection trace. Set once at init, before
// workers start; read-only afterwards.
var tdTrace bool

// EnableTD switches the termination-detection trace on or off.
// Must be called before workers are started.
func EnableTD(on bool) {
	tdTrace = on
}

// DropError logs error messages with a custom alloc-free print strategy.
//
//go:nosplit
func DropError(prefix string, err error) {
	printLock.Lock()
	if err != nil {
		utils.PrintWarning(prefix + ": " + err.Error() + "\n")
	} else {
		utils.PrintWarning(prefix + "\n")
	}
	printLock.Unlock()
}

// DropMessage logs debug messages for cold-path diagnostics: init phases,
// channel retry warnings, teardown summaries.
//
//go:nosplit
func DropMessage(prefix, message string) {
	printLock.Lock()
	utils.PrintWarning(prefix + ": " + message + "\n")
	printLock.Unlock()
}

// DropTD emits one termination-detection trace line for a worker.
// No-op unless EnableTD(true) was called at init.
//
//go:nosplit
func DropTD(worker int, event, detail string) {
	if !tdTrace {
		return
	}
	printLock.Lock()
	utils.PrintWarning("TD[" + utils.Itoa(worker) + "] " + event + ": " + detail + "\n")
	printLock.Unlock()
}

// Fatal reports an unrecoverable protocol violation and halts the process.
// Invariant breaks cannot be recovered; continuing would corrupt bookkeeping.
func Fatal(prefix, message string) {
	printLock.Lock()
	utils.PrintWarning("FATAL " + prefix + ": " + message + "\n")
	printLock.Unlock()
	panic(prefix + ": " + message)
}
