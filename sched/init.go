// ============================================================================
// RUNTIME INIT / TEARDOWN AND PUBLIC API
// ============================================================================
//
// Init allocates every per-worker resource after partition assignment:
// request inboxes sized so a send can never fail permanently, MaxSteal task
// inboxes per worker, padded victim-check flags, worker records with seeded
// PRNGs. Run drives the partition to global quiescence; Exit tears down
// after termination has been observed and hands back the counters.
//
// The only process-wide mutable state outside these fixed endpoint arrays is
// the tasking_done flag in control.

package sched

import (
	"errors"

	"taskrt/config"
	"taskrt/constants"
	"taskrt/control"
	"taskrt/debug"
	"taskrt/partition"
	"taskrt/reqring"
	"taskrt/taskring"
	"taskrt/types"
	"taskrt/utils"
)

// Endpoint arrays, keyed by global worker ID (task inboxes by
// worker ID × MaxSteal + slot). Written once in Init, read-only afterwards.
var (
	opts      config.Options
	parts     []*partition.Partition
	workers   []*Worker
	reqChans  []*reqring.Ring
	taskChans []*taskring.Ring
	hasTasks  []taskFlag
)

// nextPow2 rounds up to the next power of two for ring sizing.
func nextPow2(v int) int {
	n := 1
	for n < v {
		n <<= 1
	}
	return n
}

// Init builds the runtime for the given options. Must complete before Run;
// calling it twice without Exit in between is a configuration bug.
func Init(o config.Options) error {
	if workers != nil {
		return errors.New("sched: already initialized")
	}
	if err := o.Validate(); err != nil {
		return err
	}
	opts = o
	debug.EnableTD(o.DebugTD)
	control.Reset()

	parts = partition.Set(o.NumWorkers, o.Partitions)

	reqChans = make([]*reqring.Ring, o.NumWorkers)
	taskChans = make([]*taskring.Ring, int(o.NumWorkers)*int(o.MaxSteal))
	hasTasks = make([]taskFlag, o.NumWorkers)
	workers = make([]*Worker, o.NumWorkers)

	for _, p := range parts {
		for pid := int32(0); pid < p.NumWorkersRT(); pid++ {
			id := p.Global(pid)
			// Request inbox holds every request the partition can have in
			// flight at once; the manager's also absorbs the Failed wave.
			capacity := int(o.MaxSteal) * int(o.NumWorkers)
			if id == p.Manager {
				capacity *= 2
			}
			reqChans[id] = reqring.New(nextPow2(capacity))
			for slot := int32(0); slot < o.MaxSteal; slot++ {
				taskChans[id*o.MaxSteal+slot] = taskring.New(constants.TaskInboxCap)
			}
			workers[id] = newWorker(id, pid, p)
		}
	}
	debug.DropMessage("sched", "initialized "+utils.Itoa(int(o.NumWorkers))+
		" workers, max_steal "+utils.Itoa(int(o.MaxSteal))+
		", strategy "+o.Strategy.String())
	return nil
}

// Run seeds the master with the root task, releases the other workers on
// their own pinned threads, and drives the master loop on the calling
// thread until global termination. Returns once every worker has exited.
func Run(root types.TaskFn) {
	if workers == nil {
		debug.Fatal("sched", "Run before Init")
	}
	n := int(opts.NumWorkers)
	dones := make([]chan struct{}, n)
	for id := 1; id < n; id++ {
		dones[id] = make(chan struct{})
		go workers[id].runPinned(dones[id])
	}

	master := workers[constants.MasterID]
	if root != nil {
		master.Spawn(root)
	}
	master.runPinned0()

	for id := 1; id < n; id++ {
		<-dones[id]
	}
}

// runPinned0 runs the master loop on the caller's thread.
func (w *Worker) runPinned0() {
	setAffinity(int(w.id))
	w.run()
}

// Exit snapshots the counters and releases every endpoint. Only legal after
// the scheduler has observed global quiescence (Run returned).
func Exit() []WorkerStats {
	if workers == nil {
		debug.Fatal("sched", "Exit before Init")
	}
	stats := Snapshot()
	workers = nil
	reqChans = nil
	taskChans = nil
	hasTasks = nil
	parts = nil
	debug.DropMessage("sched", "teardown complete")
	return stats
}

// WorkerStats pairs one worker's identity with its run counters.
type WorkerStats struct {
	ID        int32
	Partition int32
	Counters  Counters
}

// Snapshot copies the per-worker counters. Callers must ensure the workers
// are not running (after Run, or from tests driving workers directly).
func Snapshot() []WorkerStats {
	out := make([]WorkerStats, 0, len(workers))
	for _, w := range workers {
		out = append(out, WorkerStats{
			ID:        w.id,
			Partition: w.part.Number,
			Counters:  w.ctr,
		})
	}
	return out
}
