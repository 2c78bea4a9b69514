// ============================================================================
// REQUEST TRANSPORT AND CLASSIFICATION
// ============================================================================
//
// Sending is non-blocking with an instrumented bounded retry: the inboxes
// are sized so a send can only fail transiently while the receiver drains.
// Receiving classifies by state — Failed requests are lifeline traffic from
// this worker's children and are absorbed on the spot; only Working/Idle
// requests surface to the caller.

package sched

import (
	"runtime"

	"taskrt/config"
	"taskrt/constants"
	"taskrt/control"
	"taskrt/debug"
	"taskrt/reqring"
	"taskrt/types"
	"taskrt/utils"
)

// stealReq keeps the wire-type name short inside the scheduler core.
type stealReq = types.StealRequest

// sendReq pushes req into dst's inbox, retrying until it lands. Every third
// consecutive failure drops a warning; if global termination arrives during
// the loop the message is abandoned silently; persistent failure means the
// inbox was under-sized and the worker halts.
func sendReq(dst *reqring.Ring, req *stealReq) {
	fails := 0
	for !dst.Push(req) {
		fails++
		if fails%constants.SendRetryWarn == 0 {
			debug.DropMessage("sendreq", "worker "+utils.Itoa(int(req.ID))+
				" request blocked, "+utils.Itoa(fails)+" retries")
			runtime.Gosched()
		}
		if control.Done() {
			return
		}
		if fails >= constants.SendRetryFatal {
			debug.Fatal("sendreq", "worker blocked — request inbox under-sized")
		}
		cpuRelax()
	}
}

// recvReq pops the next Working/Idle request into out. Failed requests are
// consumed inline: the sender must be one of this worker's children going
// quiescent, so the matching subtree flag is raised and the request parks on
// the lifeline queue. Returns false when the inbox holds nothing further.
func (w *Worker) recvReq(out *stealReq) bool {
	for reqChans[w.id].Pop(out) {
		if out.State != types.StateFailed {
			return true
		}
		w.absorbFailed(out)
	}
	return false
}

// absorbFailed parks a child's Failed request on the lifeline queue and
// marks that subtree idle.
func (w *Worker) absorbFailed(req *stealReq) {
	switch req.PID {
	case w.tree.LeftChild:
		if w.tree.LeftSubtreeIdle {
			debug.Fatal("lifeline", "left subtree of "+utils.Itoa(int(w.id))+" already idle")
		}
		w.tree.LeftSubtreeIdle = true
	case w.tree.RightChild:
		if w.tree.RightSubtreeIdle {
			debug.Fatal("lifeline", "right subtree of "+utils.Itoa(int(w.id))+" already idle")
		}
		w.tree.RightSubtreeIdle = true
	default:
		debug.Fatal("lifeline", "worker "+utils.Itoa(int(w.id))+
			" received Failed from non-child pID "+utils.Itoa(int(req.PID)))
	}
	if !w.lifelines.enqueue(req) {
		debug.Fatal("lifeline", "lifeline queue overflow at worker "+utils.Itoa(int(w.id)))
	}
	debug.DropTD(int(w.id), "subtree-idle", "child pID "+utils.Itoa(int(req.PID)))
	// Termination is re-evaluated from the idle phase of the run loop, where
	// no task is in flight on this worker.
}

// serviceRequests drains the request inbox, answering each request with
// tasks, a forward, or — for our own returning requests — the give-up
// protocol.
func (w *Worker) serviceRequests() {
	var req stealReq
	for w.recvReq(&req) {
		w.handleRequest(&req)
	}
}

// handleRequest routes one Working/Idle request.
func (w *Worker) handleRequest(req *stealReq) {
	if req.ID == w.id {
		w.handleOwnReturn(req)
		return
	}
	if !w.deq.Empty() {
		w.surrender(req, false)
		return
	}
	w.forward(req)
}

// forward passes a foreign request along: pick the next victim, charge one
// hop unless the request is travelling home, send.
func (w *Worker) forward(req *stealReq) {
	dst := w.nextVictim(req)
	assertVictimInvariant(w, req, dst)
	if dst != req.ID {
		req.Retry++
	}
	w.ctr.RequestsForwarded++
	sendReq(reqChans[dst], req)
}

// surrender answers a steal request with tasks: one task, or half the deque
// when the request asks for it. lifeline marks replies that reactivate a
// quiescent child.
func (w *Worker) surrender(req *stealReq, lifeline bool) {
	var head *types.Task
	var n int32
	if w.stealHalfFor(req) {
		head, n = w.deq.StealHalf()
	} else {
		head = w.deq.StealOne()
		n = 1
	}
	if head == nil {
		debug.Fatal("surrender", "worker "+utils.Itoa(int(w.id))+" surrendering from empty deque")
	}
	w.updateHasTasks()

	msg := types.TaskMsg{Head: head, Count: n, Donor: w.id}
	if !taskChans[req.Chan].Push(&msg) {
		// One inbox belongs to one outstanding request; a full inbox means
		// two victims answered the same request.
		debug.Fatal("surrender", "task inbox "+utils.Itoa(int(req.Chan))+" already occupied")
	}
	w.lastThief = req.ID
	w.ctr.TasksSent += uint64(n)
	if lifeline {
		w.ctr.TasksShared += uint64(n)
	}
}

// stealHalfFor decides how much a victim hands over for req.
func (w *Worker) stealHalfFor(req *stealReq) bool {
	switch opts.Strategy {
	case config.StealHalf:
		return true
	case config.StealAdaptative:
		return req.StealHalf
	}
	return false
}

// handleOwnReturn processes this worker's own request arriving back after
// exhausting its forwarding budget (or finding no candidates).
func (w *Worker) handleOwnReturn(req *stealReq) {
	if !w.deq.Empty() || w.inTask {
		// Work arrived (or is running) meanwhile; the request is simply
		// retired.
		w.pushChan(w.slotOf(req.Chan))
		w.requested--
		w.assertBookkeeping()
		return
	}

	if req.State == types.StateWorking {
		// Dispatched while busy, returned to an idle worker: one more full
		// circulation, now flagged Idle.
		w.rearm(req, types.StateIdle)
		return
	}

	if req.State != types.StateIdle {
		debug.Fatal("request", "own return in state "+req.State.String())
	}

	if w.outstanding() > 1 {
		w.dropRequest(req)
		return
	}
	w.lastRequestFailed(req)
}

// rearm resets a request for a fresh circulation in the given state and
// dispatches it.
func (w *Worker) rearm(req *stealReq, state types.WorkerState) {
	req.State = state
	req.Retry = 0
	req.Victims = initialVictims(w.part.NumWorkersRT())
	dst := w.nextVictim(req)
	assertVictimInvariant(w, req, dst)
	sendReq(reqChans[dst], req)
}

// dropRequest abandons one of several outstanding requests during the
// descent into quiescence: the inbox handle returns to the stack while
// `requested` keeps the slot booked until the recv_task reconciliation.
func (w *Worker) dropRequest(req *stealReq) {
	w.pushChan(w.slotOf(req.Chan))
	w.dropped++
	w.ctr.RequestsDropped++
	w.assertBookkeeping()
	debug.DropTD(int(w.id), "dropped", utils.Itoa(int(w.dropped))+" of "+
		utils.Itoa(int(opts.MaxSteal)))
}
