// sched_test.go — End-to-end runs: full Init/Run/Exit cycles on real worker
// threads, watching only externally observable outcomes (task counts and
// termination) to stay independent of scheduling order.
package sched

import (
	"sync/atomic"
	"testing"
	"time"

	"taskrt/config"
	"taskrt/control"
	"taskrt/types"
)

// runWatched runs fn and fails the test if the scheduler does not reach
// termination within the deadline.
func runWatched(t *testing.T, fn func()) {
	t.Helper()
	done := make(chan struct{})
	go func() {
		fn()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(90 * time.Second):
		t.Fatal("scheduler failed to terminate")
	}
}

// TestRunTwoWorkersOneProducer is the two-worker scenario: the root
// produces 1000 trivial tasks, both workers drain them, the root detects
// termination.
func TestRunTwoWorkersOneProducer(t *testing.T) {
	setup(t, func(o *config.Options) { o.NumWorkers = 2 })

	var executed int64
	runWatched(t, func() {
		Run(func(ctx types.ExecContext) {
			for i := 0; i < 1000; i++ {
				ctx.Spawn(func(types.ExecContext) {
					atomic.AddInt64(&executed, 1)
				})
			}
		})
	})
	if !control.Done() {
		t.Fatal("termination flag must be set after Run")
	}
	if got := atomic.LoadInt64(&executed); got != 1000 {
		t.Fatalf("executed = %d, want 1000", got)
	}
	total := uint64(0)
	for _, s := range Snapshot() {
		total += s.Counters.TasksExecuted
	}
	if total != 1001 { // 1000 children + the producer task itself
		t.Fatalf("counter total = %d, want 1001", total)
	}
}

// TestImmediateQuiescence is the empty-run scenario: four workers, no
// tasks. Every non-root worker issues at least one steal, nothing executes,
// the root observes an idle tree.
func TestImmediateQuiescence(t *testing.T) {
	setup(t, func(o *config.Options) { o.NumWorkers = 4 })

	runWatched(t, func() { Run(nil) })
	if !control.Done() {
		t.Fatal("termination flag must be set")
	}
	for _, s := range Snapshot() {
		if s.Counters.TasksExecuted != 0 {
			t.Fatalf("worker %d executed %d tasks in an empty run",
				s.ID, s.Counters.TasksExecuted)
		}
		if s.ID != 0 && s.Counters.RequestsSent == 0 {
			t.Fatalf("idle worker %d never sent a steal request", s.ID)
		}
	}
	master := workers[0]
	if !master.tree.LeftSubtreeIdle || !master.tree.RightSubtreeIdle {
		t.Fatal("root must have observed both subtrees idle")
	}
}

// TestRunSoleWorker covers num_workers_rt == 1 end to end: the bounce-back
// path self-terminates after the local work drains.
func TestRunSoleWorker(t *testing.T) {
	setup(t, func(o *config.Options) { o.NumWorkers = 1 })

	var executed int64
	runWatched(t, func() {
		Run(func(ctx types.ExecContext) {
			for i := 0; i < 10; i++ {
				ctx.Spawn(func(types.ExecContext) { atomic.AddInt64(&executed, 1) })
			}
		})
	})
	if atomic.LoadInt64(&executed) != 10 {
		t.Fatalf("executed = %d, want 10", executed)
	}
}

// TestRunSpawnTree drives a binary spawn tree across eight workers under
// the adaptive strategy with victim checks on — the kitchen-sink liveness
// run. Every spawned task must execute exactly once.
func TestRunSpawnTree(t *testing.T) {
	setup(t, func(o *config.Options) {
		o.NumWorkers = 8
		o.Strategy = config.StealAdaptative
		o.VictimCheck = true
	})

	const depth = 10 // 2^11 - 1 tasks including the root
	var executed int64
	var spawn func(d int) types.TaskFn
	spawn = func(d int) types.TaskFn {
		return func(ctx types.ExecContext) {
			atomic.AddInt64(&executed, 1)
			if d > 0 {
				ctx.Spawn(spawn(d - 1))
				ctx.Spawn(spawn(d - 1))
			}
		}
	}
	runWatched(t, func() { Run(spawn(depth)) })

	want := int64(1)<<(depth+1) - 1
	if got := atomic.LoadInt64(&executed); got != want {
		t.Fatalf("executed = %d, want %d", got, want)
	}
	total := uint64(0)
	for _, s := range Snapshot() {
		total += s.Counters.TasksExecuted
	}
	if total != uint64(want) {
		t.Fatalf("counter total = %d, want %d", total, want)
	}
}

// TestRunLastVictimBias is a liveness run under the Last-Victim policy; the
// bias must not disturb completion or termination.
func TestRunLastVictimBias(t *testing.T) {
	setup(t, func(o *config.Options) {
		o.NumWorkers = 4
		o.StealLastVictim = true
		o.VictimCheck = true
	})

	var executed int64
	runWatched(t, func() {
		Run(func(ctx types.ExecContext) {
			for i := 0; i < 200; i++ {
				ctx.Spawn(func(types.ExecContext) { atomic.AddInt64(&executed, 1) })
			}
		})
	})
	if atomic.LoadInt64(&executed) != 200 {
		t.Fatalf("executed = %d, want 200", executed)
	}
}

// TestReinitAfterExit verifies a clean second lifecycle on the same
// process: Exit must leave no residue behind.
func TestReinitAfterExit(t *testing.T) {
	o := config.Defaults()
	o.NumWorkers = 2
	if err := Init(o); err != nil {
		t.Fatalf("first Init: %v", err)
	}
	runWatched(t, func() { Run(nil) })
	Exit()

	if err := Init(o); err != nil {
		t.Fatalf("second Init: %v", err)
	}
	var executed int64
	runWatched(t, func() {
		Run(func(ctx types.ExecContext) {
			ctx.Spawn(func(types.ExecContext) { atomic.AddInt64(&executed, 1) })
		})
	})
	Exit()
	if atomic.LoadInt64(&executed) != 1 {
		t.Fatalf("executed = %d, want 1", executed)
	}
}

// TestInitRejectsDoubleInit pins the double-Init guard.
func TestInitRejectsDoubleInit(t *testing.T) {
	setup(t, nil)
	if err := Init(config.Defaults()); err == nil {
		t.Fatal("second Init without Exit must fail")
	}
}
