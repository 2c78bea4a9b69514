// ============================================================================
// WORKER: PER-THREAD SCHEDULER STATE AND MAIN LOOP
// ============================================================================
//
// One Worker record per OS thread. Everything a worker touches on the hot
// path lives either in this record (deque, channel stack, tree state,
// counters, PRNG) or in the fixed endpoint arrays in init.go, keyed by
// global worker ID. There is no other shared mutable state.
//
// The hot loop:
//   execute local task → service request inbox → poll task inboxes →
//   on task miss, try_send_steal_request
//
// A worker never blocks on a channel: sends and receives are non-blocking,
// and the only spin is the instrumented retry inside sendReq.

package sched

import (
	"runtime"

	"taskrt/config"
	"taskrt/constants"
	"taskrt/control"
	"taskrt/debug"
	"taskrt/deque"
	"taskrt/partition"
	"taskrt/types"
	"taskrt/utils"
)

// Counters aggregates one worker's per-run statistics. Snapshot feeds these
// into runstats at teardown.
type Counters struct {
	TasksExecuted     uint64 // task bodies run on this worker
	TasksSent         uint64 // tasks surrendered to thieves
	TasksShared       uint64 // tasks surrendered through lifeline replies (subset of TasksSent)
	RequestsSent      uint64 // steal requests dispatched
	RequestsStealOne  uint64 // dispatched with stealhalf clear (adaptive)
	RequestsStealHalf uint64 // dispatched with stealhalf set (adaptive)
	RequestsForwarded uint64 // foreign requests passed along
	StealsCompleted   uint64 // task batches received
	RequestsDropped   uint64 // own requests abandoned during quiescence
}

// Worker is the complete per-thread scheduler context.
type Worker struct {
	id   int32 // global worker ID, index into endpoint arrays
	pid  int32 // intra-partition index, bit position in victim sets
	part *partition.Partition

	deq  *deque.Deque
	tree WorkerTree

	lifelines lifelineQueue

	// chanStack holds the task-inbox slots not currently lent out inside an
	// outstanding steal request. chanTop == MaxSteal ⇔ nothing outstanding
	// (modulo dropped requests awaiting reconciliation).
	chanStack [constants.MaxStealLimit]int32
	chanTop   int32

	requested int32 // outstanding steal requests (incl. dropped, unreconciled)
	dropped   int32 // abandoned requests whose inboxes are already back

	maxAttempts int32 // forwarding budget for requests this worker originates

	// Adaptive controller state.
	stealHalf    bool  // current policy bit attached to outgoing requests
	stealsWindow int32 // steals completed in the current window
	tasksWindow  int32 // tasks executed in the current window

	// Biased victim-selection hints. Global IDs, -1 when unset.
	lastVictim int32 // worker that last donated tasks to us
	lastThief  int32 // worker that last stole from us

	rng uint64 // xorshift64 state, seeded from ID+1000

	// inTask marks a popped task in flight on this worker: the deque may be
	// empty while work is still running, which must not read as idleness.
	inTask bool

	ctr Counters
}

// newWorker builds one worker record with a full channel stack and a seeded
// PRNG. Endpoint rings are allocated separately in Init.
func newWorker(id, pid int32, part *partition.Partition) *Worker {
	w := &Worker{
		id:         id,
		pid:        pid,
		part:       part,
		deq:        deque.New(int(opts.TaskPrealloc)),
		tree:       initTree(pid, part.NumWorkersRT()),
		lastVictim: -1,
		lastThief:  -1,
	}
	for slot := opts.MaxSteal - 1; slot >= 0; slot-- {
		w.chanStack[w.chanTop] = slot
		w.chanTop++
	}
	w.maxAttempts = opts.MaxStealAttempts
	if w.maxAttempts == constants.MaxStealAttemptsAuto {
		w.maxAttempts = part.NumWorkersRT() - 1
	}
	if opts.Strategy == config.StealHalf {
		w.stealHalf = true
	}
	// The +1000 keeps the xorshift state nonzero for every worker ID; the
	// first draws are decorrelated through Mix64.
	w.rng = utils.Mix64(uint64(id)+1000) | 1
	return w
}

// ID returns the worker's global ID.
func (w *Worker) ID() int32 { return w.id }

// WorkerID implements types.ExecContext.
func (w *Worker) WorkerID() int32 { return w.id }

// Spawn enqueues a child task on this worker's own deque. Implements
// types.ExecContext; only legal from a task body running on this worker.
func (w *Worker) Spawn(fn types.TaskFn) {
	t := w.deq.Get()
	t.Fn = fn
	w.deq.PushBot(t)
	w.updateHasTasks()
}

// execute runs one task body and recycles its record.
func (w *Worker) execute(t *types.Task) {
	fn := t.Fn
	fn(w)
	w.deq.Put(t)
	w.ctr.TasksExecuted++
	w.tasksWindow++
}

// run is the worker main loop. It returns when global termination has been
// declared and acknowledged.
func (w *Worker) run() {
	miss := 0
	for !control.Done() {
		// Local work phase: drain own deque, feeding lifelines and serving
		// thieves between tasks.
		for {
			t := w.deq.PopBot()
			if t == nil {
				break
			}
			w.inTask = true
			w.updateHasTasks()
			w.shareWork()
			w.serviceRequests()
			// Steal ahead: keep a Working-state request in flight so the
			// next batch can overlap with local execution.
			if !w.pollTaskInboxes() {
				w.trySendStealRequest(false)
			}
			w.execute(t)
			w.inTask = false
			if control.Done() {
				return
			}
		}
		w.updateHasTasks()
		w.checkTermination()
		if control.Done() {
			return
		}

		// Idle phase: poll task inboxes (arming a steal on miss), keep
		// forwarding foreign requests, then back off politely.
		if t := w.recvTask(true); t != nil {
			miss = 0
			w.execute(t)
			continue
		}
		w.serviceRequests()
		if miss++; miss >= spinBudget {
			miss = 0
			runtime.Gosched()
		} else {
			cpuRelax()
		}
	}
}

// spinBudget bounds consecutive empty polls before yielding the thread.
const spinBudget = 64

// runPinned locks the worker to an OS thread, applies CPU affinity, runs the
// loop and signals completion exactly once.
func (w *Worker) runPinned(done chan<- struct{}) {
	runtime.LockOSThread()
	setAffinity(int(w.id))
	defer func() {
		runtime.UnlockOSThread()
		close(done)
	}()
	w.run()
}

// ─────────────────────────── channel stack ────────────────────────────────

// popChan lends out a task-inbox slot for a new steal request.
func (w *Worker) popChan() int32 {
	if w.chanTop == 0 {
		debug.Fatal("chanstack", "worker "+utils.Itoa(int(w.id))+" pop on empty stack")
	}
	w.chanTop--
	return w.chanStack[w.chanTop]
}

// pushChan returns a task-inbox slot to the stack.
func (w *Worker) pushChan(slot int32) {
	if w.chanTop == opts.MaxSteal {
		debug.Fatal("chanstack", "worker "+utils.Itoa(int(w.id))+" push on full stack")
	}
	w.chanStack[w.chanTop] = slot
	w.chanTop++
}

// outstanding reports the number of steal requests still live in the system
// (sent and neither satisfied, retired, nor dropped).
func (w *Worker) outstanding() int32 { return w.requested - w.dropped }

// assertBookkeeping checks the channel-conservation law. Valid outside the
// recv_task reconciliation window:
//
//	requested + chanTop == MaxSteal + dropped
func (w *Worker) assertBookkeeping() {
	if w.requested < 0 || w.requested > opts.MaxSteal {
		debug.Fatal("bookkeeping", "worker "+utils.Itoa(int(w.id))+
			" requested="+utils.Itoa(int(w.requested)))
	}
	if w.dropped < 0 || w.dropped > opts.MaxSteal-1 {
		debug.Fatal("bookkeeping", "worker "+utils.Itoa(int(w.id))+
			" dropped="+utils.Itoa(int(w.dropped)))
	}
	if w.requested+w.chanTop != opts.MaxSteal+w.dropped {
		debug.Fatal("bookkeeping", "worker "+utils.Itoa(int(w.id))+
			" requested="+utils.Itoa(int(w.requested))+
			" stack="+utils.Itoa(int(w.chanTop))+
			" dropped="+utils.Itoa(int(w.dropped)))
	}
}
