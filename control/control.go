// control.go — Global termination flag and shutdown coordination
// ============================================================================
// RUNTIME CONTROL ORCHESTRATION
// ============================================================================
//
// Control provides the one piece of process-wide mutable state the scheduler
// core is allowed to share outside its channel endpoints: the tasking_done
// flag. Workers poll it between tasks and inside channel retry loops; the
// root sets it exactly once per run when it observes global quiescence.
//
// Threading model:
//   • The root (worker 0) is the only writer during a run
//   • All workers poll via Done() in their hot loops
//   • Reset() exists for reinitialization between runs and for tests
//
// Memory ordering: release on set, acquire on read. A worker that observes
// Done() == true may exit its loop immediately; any in-flight messages are
// abandoned by design at that point.

package control

import "sync/atomic"

var done uint32 // 1 = global quiescence declared, workers drain and exit

// SignalDone declares global termination. Called by the root once both of
// its subtrees are idle and its own deque is empty.
//
//go:nosplit
//go:inline
func SignalDone() {
	atomic.StoreUint32(&done, 1)
}

// Done reports whether global termination has been declared.
//
//go:nosplit
//go:inline
func Done() bool {
	return atomic.LoadUint32(&done) == 1
}

// Reset re-arms the flag for the next scheduling run.
//
//go:nosplit
//go:inline
func Reset() {
	atomic.StoreUint32(&done, 0)
}
