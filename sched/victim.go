// ============================================================================
// VICTIM SELECTION
// ============================================================================
//
// Chooses where a steal request travels next. Selection works in pID space
// (bit positions of the request's victim set) and translates to global IDs
// only at the send boundary.
//
// Selection order for a request held by this worker:
//   1. the holder's own bit is cleared — a request never targets its holder
//   2. originator first dispatch: uniform random pick (optionally biased to
//      the last victim / last thief)
//   3. exhausted budget or empty candidate set: bounce home to req.ID
//   4. otherwise: mask known-idle subtrees, pick a random remaining bit

package sched

import (
	"sync/atomic"

	"taskrt/bitset32"
	"taskrt/constants"
	"taskrt/debug"
	"taskrt/utils"
)

// markIdleSubtree clears bit n and every descendant of n in the complete
// binary tree over nWorkers. No-op for n == -1.
func markIdleSubtree(victims uint32, n, nWorkers int32) uint32 {
	if n < 0 || n >= nWorkers {
		return victims
	}
	victims = bitset32.Clear(victims, n)
	victims = markIdleSubtree(victims, 2*n+1, nWorkers)
	return markIdleSubtree(victims, 2*n+2, nWorkers)
}

// randomVictim picks a random set bit of victims that is not self.
// Fast path: up to three uniform draws over the partition. Slow path:
// popcount, then the set bits listed in a fixed 32-entry scratch array on the
// stack, sliced to the popcount. Returns -1 only when
// no eligible candidate exists. Never returns self.
func (w *Worker) randomVictim(victims uint32, self int32) int32 {
	n := w.part.NumWorkersRT()

	for i := 0; i < 3; i++ {
		cand := w.randN(n)
		if cand != self && bitset32.IsSet(victims, cand) {
			return cand
		}
	}

	victims = bitset32.Clear(victims, self)
	count := bitset32.Popcount(victims)
	if count == 0 {
		return -1
	}
	var scratch [constants.MaxWorkers]int32
	list := scratch[:0]
	for rest := victims; rest != 0; {
		bit := bitset32.LSB(rest)
		list = append(list, bit)
		rest = bitset32.Clear(rest, bit)
	}
	pick := list[w.randN(count)]
	if pick == self {
		debug.Fatal("victim", "random_victim selected self")
	}
	return pick
}

// nextVictim chooses the next holder for req, mutating its victim set, and
// returns a global worker ID — either the next victim or req.ID when the
// request must travel home.
func (w *Worker) nextVictim(req *stealReq) int32 {
	n := w.part.NumWorkersRT()
	req.Victims = bitset32.Clear(req.Victims, w.pid)

	if req.ID == w.id {
		// Originator dispatch. Uniform random pick; reject-and-resample
		// until the draw is another worker.
		if n == 1 {
			return req.ID // sole worker: straight to the bounce-back path
		}
		for {
			cand := w.randN(n)
			if cand != w.pid {
				return w.part.Global(cand)
			}
		}
	}

	if req.Retry == w.maxAttempts {
		return req.ID // budget exhausted, deliver back to the thief
	}

	// Mask out subtrees known to hold no work.
	if w.tree.LeftSubtreeIdle && w.tree.RightSubtreeIdle {
		req.Victims = markIdleSubtree(req.Victims, w.pid, n)
	} else {
		if w.tree.LeftSubtreeIdle {
			req.Victims = markIdleSubtree(req.Victims, w.tree.LeftChild, n)
		}
		if w.tree.RightSubtreeIdle {
			req.Victims = markIdleSubtree(req.Victims, w.tree.RightChild, n)
		}
	}

	pid := w.randomVictim(req.Victims, w.pid)
	if pid == -1 {
		return req.ID
	}
	return w.part.Global(pid)
}

// stealFrom applies the Last-Victim / Last-Thief bias to an originator
// dispatch. The hint is used only when it is a live co-partition worker,
// not ourselves, and plausibly has tasks; otherwise selection falls back to
// nextVictim.
func (w *Worker) stealFrom(req *stealReq, hint int32) int32 {
	if hint >= 0 && hint != w.id && w.part.PID(hint) != -1 && likelyHasTasks(hint) {
		req.Victims = bitset32.Clear(req.Victims, w.pid)
		return hint
	}
	return w.nextVictim(req)
}

// initialVictim resolves the first destination of a freshly built request.
func (w *Worker) initialVictim(req *stealReq) int32 {
	switch {
	case opts.StealLastVictim:
		return w.stealFrom(req, w.lastVictim)
	case opts.StealLastThief:
		return w.stealFrom(req, w.lastThief)
	default:
		return w.nextVictim(req)
	}
}

// ─────────────────────────── victim check ─────────────────────────────────

// taskFlag is one cache-line-padded "probably has tasks" flag.
//
//go:notinheap
//go:align 64
type taskFlag struct {
	v uint32
	_ [constants.CacheLineSize - 4]byte
}

// likelyHasTasks reports whether a victim is worth targeting. Advisory:
// false positives only cost one extra forward. Unconditionally true when the
// victim-check optimization is disabled.
//
//go:nosplit
//go:inline
func likelyHasTasks(id int32) bool {
	if !opts.VictimCheck {
		return true
	}
	return atomic.LoadUint32(&hasTasks[id].v) != 0
}

// updateHasTasks publishes this worker's deque occupancy. Maintained at
// every occupancy transition; skipped entirely when the check is disabled.
//
//go:nosplit
//go:inline
func (w *Worker) updateHasTasks() {
	if !opts.VictimCheck {
		return
	}
	if w.deq.Empty() {
		atomic.StoreUint32(&hasTasks[w.id].v, 0)
	} else {
		atomic.StoreUint32(&hasTasks[w.id].v, 1)
	}
}

// assertVictimInvariant validates the selector post-condition on every
// forward: the destination is the origin or a live co-partition worker, and
// never the current holder.
func assertVictimInvariant(w *Worker, req *stealReq, dst int32) {
	if dst == w.id && req.ID != w.id {
		debug.Fatal("victim", "worker "+utils.Itoa(int(w.id))+" forwarding to self")
	}
	if dst != req.ID && w.part.PID(dst) == -1 {
		debug.Fatal("victim", "destination "+utils.Itoa(int(dst))+" outside partition")
	}
}
