// ============================================================================
// QUIESCENCE AND TERMINATION DETECTION
// ============================================================================
//
// A worker that has burnt its last steal request converts it to Failed and
// parks it on the parent's lifeline queue — from then on it is silent until
// fed or released. Idleness aggregates up the tree as Failed requests
// ascend; the root observes both subtrees idle with an empty deque of its
// own and declares global termination through the runtime-wide flag.

package sched

import (
	"taskrt/constants"
	"taskrt/control"
	"taskrt/debug"
	"taskrt/types"
	"taskrt/utils"
)

// subtreesIdle reports whether every existing child subtree has gone idle.
// Vacuously true at leaves.
func (w *Worker) subtreesIdle() bool {
	return (w.tree.LeftChild == -1 || w.tree.LeftSubtreeIdle) &&
		(w.tree.RightChild == -1 || w.tree.RightSubtreeIdle)
}

// lastRequestFailed handles the final outstanding request of an idle worker
// returning with nowhere left to go.
//
// Non-root: the request ascends to the parent in Failed state and the worker
// enters quiescence. Root: there is no parent — if the whole partition is
// already idle this is global termination; otherwise the root keeps its one
// request circulating so it can still acquire work.
func (w *Worker) lastRequestFailed(req *stealReq) {
	if !w.subtreesIdle() {
		// A child subtree has not reported idle yet, so work may still
		// exist below. Keep the request circulating; give up only when a
		// return coincides with a fully idle subtree, so that a Failed
		// request always certifies the whole subtree beneath its sender.
		w.rearm(req, types.StateIdle)
		return
	}

	if w.pid != 0 {
		req.State = types.StateFailed
		req.Retry = 0
		w.tree.WaitingForTasks = true
		debug.DropTD(int(w.id), "quiescent", "failed request to parent pID "+
			utils.Itoa(int(w.tree.Parent)))
		sendReq(reqChans[w.part.Global(w.tree.Parent)], req)
		return
	}

	// Partition root with an idle tree: retire the request and stop.
	w.pushChan(w.slotOf(req.Chan))
	w.requested--
	if w.dropped > 0 {
		w.requested -= w.dropped
		w.dropped = 0
	}
	w.tree.WaitingForTasks = true
	w.assertBookkeeping()
	w.checkTermination()
}

// checkTermination declares global termination when the master observes an
// idle tree and holds no work of its own. Called from the idle phase only:
// a task in flight on this worker counts as work.
func (w *Worker) checkTermination() {
	if w.id != constants.MasterID || control.Done() {
		return
	}
	if w.inTask || !w.subtreesIdle() || !w.deq.Empty() {
		return
	}
	debug.DropTD(int(w.id), "termination", "both subtrees idle, no local work")
	control.SignalDone()
}
