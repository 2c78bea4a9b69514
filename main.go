// ════════════════════════════════════════════════════════════════════════════════════════════════
// Task-Parallel Runtime - Main Entry Point
// ────────────────────────────────────────────────────────────────────────────────────────────────
// Project: Channel-Based Work-Stealing Runtime
// Component: Demo Harness & System Orchestration
//
// Description:
//   Phased bootstrap around one scheduling run: load options, build the
//   partitioned worker set, drive a synthetic divide-and-conquer workload to
//   global quiescence under GC guardrails, then persist the run statistics.
//
// Architecture:
//   - Phase 0: Options loading (JSON override file optional)
//   - Phase 1: Runtime construction and thread pinning
//   - Phase 2: Workload execution with GC disabled
//   - Phase 3: Statistics flush and teardown
//
// ════════════════════════════════════════════════════════════════════════════════════════════════

package main

import (
	"os"
	"os/signal"
	"runtime"
	rtdebug "runtime/debug"
	"sync/atomic"
	"syscall"
	"time"

	"taskrt/config"
	"taskrt/constants"
	"taskrt/control"
	"taskrt/debug"
	"taskrt/runstats"
	"taskrt/sched"
	"taskrt/types"
	"taskrt/utils"
)

const (
	// spawnDepth sizes the demo workload: a full binary spawn tree of
	// 2^(spawnDepth+1)-1 trivial tasks.
	spawnDepth = 16

	// statsPath is where the run report lands.
	statsPath = "taskrt_stats.db"
)

// tasksRun counts executed demo tasks across all workers.
var tasksRun int64

// spawnTree builds the recursive demo task: count, then fan out two
// children until the depth budget is spent.
func spawnTree(depth int) types.TaskFn {
	return func(ctx types.ExecContext) {
		atomic.AddInt64(&tasksRun, 1)
		if depth > 0 {
			ctx.Spawn(spawnTree(depth - 1))
			ctx.Spawn(spawnTree(depth - 1))
		}
	}
}

// main orchestrates the complete system lifecycle in distinct phases.
func main() {
	// PHASE 0: Options loading
	opts := config.Defaults()
	if len(os.Args) > 1 {
		loaded, err := config.Load(os.Args[1])
		if err != nil {
			debug.DropError("config", err)
			os.Exit(1)
		}
		opts = loaded
	}
	debug.DropMessage("INIT", utils.Itoa(int(opts.NumWorkers))+" workers, strategy "+
		opts.Strategy.String())

	// PHASE 1: Runtime construction
	if err := sched.Init(opts); err != nil {
		debug.DropError("init", err)
		os.Exit(1)
	}
	setupSignalHandling()

	// PHASE 2: Workload execution under GC guardrails. The scheduler
	// allocates nothing after init; GC stays parked for the whole run.
	runtime.LockOSThread()
	rtdebug.SetGCPercent(-1)

	started := time.Now()
	sched.Run(spawnTree(spawnDepth))
	finished := time.Now()

	rtdebug.SetGCPercent(100)
	var memstats runtime.MemStats
	runtime.ReadMemStats(&memstats)
	if memstats.HeapAlloc > constants.HeapSoftLimit {
		runtime.GC()
		debug.DropMessage("GC", "heap trimmed after run")
	}
	if memstats.HeapAlloc > constants.HeapHardLimit {
		panic("heap usage exceeded hard cap — task records leaking")
	}

	want := int64(1)<<(spawnDepth+1) - 1
	debug.DropMessage("DONE", utils.Itoa(int(atomic.LoadInt64(&tasksRun)))+" of "+
		utils.Itoa(int(want))+" tasks in "+
		utils.Itoa(int(finished.Sub(started).Microseconds()))+"µs")

	// PHASE 3: Statistics flush and teardown
	stats := sched.Exit()
	flushStats(&opts, started, finished, stats)
}

// flushStats persists the run report and drops its one-line JSON summary.
func flushStats(opts *config.Options, started, finished time.Time,
	stats []sched.WorkerStats) {

	sink, err := runstats.Open(statsPath)
	if err != nil {
		debug.DropError("stats open", err)
		return
	}
	defer sink.Close()

	runID, err := sink.RecordRun(opts, started, finished, stats)
	if err != nil {
		debug.DropError("stats record", err)
		return
	}
	blob, err := sink.SummaryJSON(runID)
	if err != nil {
		debug.DropError("stats summary", err)
		return
	}
	debug.DropMessage("STATS", utils.B2s(blob))
}

// setupSignalHandling converts SIGINT/SIGTERM into a cooperative shutdown:
// workers observe tasking_done and drain out instead of dying mid-protocol.
func setupSignalHandling() {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigs
		debug.DropMessage("SIGNAL", "shutdown requested")
		control.SignalDone()
	}()
}
