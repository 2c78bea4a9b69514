// ============================================================================
// TASK TRANSPORT AND WORK SHARING
// ============================================================================
//
// recvTask polls the worker's task inboxes in slot order. A hit returns the
// inbox handle to the channel stack and reconciles the outstanding-request
// bookkeeping — including the quiescent-reset path when the parent has just
// reactivated this worker through a lifeline. A miss arms a new steal.
//
// shareWork is the downward half of the lifeline protocol: before a worker
// settles into its own backlog it answers every retained Failed request,
// clearing the matching subtree-idle flag as tasks flow down.

package sched

import (
	"taskrt/debug"
	"taskrt/types"
	"taskrt/utils"
)

// chanOf builds the global inbox handle for one of this worker's slots.
func (w *Worker) chanOf(slot int32) types.ChanID {
	return w.id*opts.MaxSteal + slot
}

// slotOf recovers the local slot index from one of this worker's handles.
func (w *Worker) slotOf(ch types.ChanID) int32 {
	slot := ch - w.id*opts.MaxSteal
	if slot < 0 || slot >= opts.MaxSteal {
		debug.Fatal("chanstack", "handle "+utils.Itoa(int(ch))+
			" does not belong to worker "+utils.Itoa(int(w.id)))
	}
	return slot
}

// pollTaskInboxes drains every task inbox once, splicing arrived batches
// into the deque and reconciling the outstanding-request bookkeeping per
// message. Reports whether anything arrived.
func (w *Worker) pollTaskInboxes() bool {
	got := false
	var msg types.TaskMsg
	for slot := int32(0); slot < opts.MaxSteal; slot++ {
		if !taskChans[w.chanOf(slot)].Pop(&msg) {
			continue
		}

		// Critical section: the conservation law is re-established before
		// this block exits.
		w.pushChan(slot)
		if w.tree.WaitingForTasks {
			// The parent fed our lifeline: leave quiescence. All other
			// requests were dropped, so every inbox must be home again.
			if w.chanTop != opts.MaxSteal {
				debug.Fatal("recvtask", "quiescent reset with "+
					utils.Itoa(int(w.chanTop))+" of "+
					utils.Itoa(int(opts.MaxSteal))+" inboxes")
			}
			w.requested = 1
			w.dropped = 0
			w.tree.WaitingForTasks = false
			debug.DropTD(int(w.id), "resumed", "task from worker "+
				utils.Itoa(int(msg.Donor)))
		} else if w.dropped > 0 {
			// Partial drops: fold them back so the pump regains budget.
			w.requested -= w.dropped
			w.dropped = 0
		}
		w.requested--
		w.assertBookkeeping()

		w.lastVictim = msg.Donor
		w.ctr.StealsCompleted++
		w.stealsWindow++

		w.deq.PushChain(msg.Head, msg.Count)
		got = true
	}
	if got {
		w.updateHasTasks()
	}
	return got
}

// recvTask polls the task inboxes. On a hit one task comes back for
// immediate execution with the rest of the batch left in the deque. On a
// full miss a new steal request is armed (budget permitting) and nil is
// returned.
func (w *Worker) recvTask(idle bool) *types.Task {
	if w.pollTaskInboxes() {
		t := w.deq.PopBot()
		w.updateHasTasks()
		return t
	}
	w.trySendStealRequest(idle)
	return nil
}

// shareWork drains the lifeline queue while tasks remain, reactivating
// quiescent subtrees before this worker buries itself in its own backlog.
func (w *Worker) shareWork() {
	var req stealReq
	for !w.lifelines.empty() && !w.deq.Empty() {
		if !w.lifelines.dequeue(&req) {
			return
		}
		if req.State != types.StateFailed {
			debug.Fatal("lifeline", "retained request in state "+req.State.String())
		}
		w.surrender(&req, true)
		switch req.PID {
		case w.tree.LeftChild:
			w.tree.LeftSubtreeIdle = false
		case w.tree.RightChild:
			w.tree.RightSubtreeIdle = false
		}
		debug.DropTD(int(w.id), "lifeline-fed", "child pID "+utils.Itoa(int(req.PID)))
	}
}
