// ============================================================================
// STEAL-ATTEMPT PUMP AND ADAPTIVE CONTROLLER
// ============================================================================
//
// trySendStealRequest is the single entry point for emitting steal traffic:
// it gates on the outstanding budget, retunes the adaptive policy at window
// boundaries, builds the request around a lent task inbox, and dispatches it
// to the first victim.

package sched

import (
	"taskrt/bitset32"
	"taskrt/config"
	"taskrt/types"
)

// initialVictims is the dense candidate mask over one partition: every
// intra-partition worker set, up to num_workers_rt. The originator's own bit
// falls off at dispatch.
func initialVictims(n int32) uint32 {
	return bitset32.SetUpTo(n)
}

// trySendStealRequest arms one steal request when the budget allows.
// idle selects the request state: an idle worker's request keeps its Idle
// tag through every forward, a busy worker steals opportunistically in
// Working state.
func (w *Worker) trySendStealRequest(idle bool) {
	if w.requested == opts.MaxSteal {
		return // budget exhausted
	}

	w.adaptiveRetune()

	req := stealReq{
		Chan:      w.chanOf(w.popChan()),
		ID:        w.id,
		Retry:     0,
		Partition: w.part.Number,
		PID:       w.pid,
		Victims:   initialVictims(w.part.NumWorkersRT()),
		State:     types.StateWorking,
		StealHalf: w.requestStealHalf(),
	}
	if idle {
		req.State = types.StateIdle
	}

	dst := w.initialVictim(&req)
	assertVictimInvariant(w, &req, dst)
	sendReq(reqChans[dst], &req)

	w.requested++
	w.ctr.RequestsSent++
	if opts.Strategy == config.StealAdaptative {
		if req.StealHalf {
			w.ctr.RequestsStealHalf++
		} else {
			w.ctr.RequestsStealOne++
		}
	}
	w.assertBookkeeping()
}

// requestStealHalf computes the policy bit attached to an outgoing request.
func (w *Worker) requestStealHalf() bool {
	switch opts.Strategy {
	case config.StealHalf:
		return true
	case config.StealAdaptative:
		return w.stealHalf
	}
	return false
}

// adaptiveRetune flips the steal-half policy at window boundaries. The
// window closes after AdaptativeInterval completed steals; the decision is
// the integer ratio of tasks executed to steals in that window:
//
//	stealhalf ∧ ratio < 2   → steal-one  (halves are not paying)
//	¬stealhalf ∧ ratio == 1 → steal-half (one task per steal, degenerate)
//
// At most one flip per window.
func (w *Worker) adaptiveRetune() {
	if opts.Strategy != config.StealAdaptative {
		return
	}
	if w.stealsWindow != opts.AdaptativeInterval {
		return
	}
	ratio := w.tasksWindow / opts.AdaptativeInterval
	if w.stealHalf && ratio < 2 {
		w.stealHalf = false
	} else if !w.stealHalf && ratio == 1 {
		w.stealHalf = true
	}
	w.stealsWindow = 0
	w.tasksWindow = 0
}
