// victim_test.go — Victim-selection laws
package sched

import (
	"testing"

	"taskrt/bitset32"
	"taskrt/config"
	"taskrt/types"
)

// setup initializes the runtime for direct, single-threaded driving and
// tears it down with the test.
func setup(t *testing.T, mod func(*config.Options)) {
	t.Helper()
	o := config.Defaults()
	if mod != nil {
		mod(&o)
	}
	if err := Init(o); err != nil {
		t.Fatalf("Init: %v", err)
	}
	t.Cleanup(func() { Exit() })
}

// TestMarkIdleSubtree verifies recursive descendant clearing and the -1
// no-op.
func TestMarkIdleSubtree(t *testing.T) {
	full := bitset32.SetUpTo(7)
	// Subtree of node 1 in a 7-worker tree: {1, 3, 4}.
	got := markIdleSubtree(full, 1, 7)
	want := full &^ (1<<1 | 1<<3 | 1<<4)
	if got != want {
		t.Fatalf("markIdleSubtree = %#b, want %#b", got, want)
	}
	if markIdleSubtree(full, -1, 7) != full {
		t.Fatal("markIdleSubtree(-1) must be a no-op")
	}
	// Root subtree clears everything.
	if markIdleSubtree(full, 0, 7) != 0 {
		t.Fatal("root subtree must clear the whole set")
	}
}

// TestRandomVictimLaws checks: never self, -1 only on empty sets, and
// uniform draws land on set bits.
func TestRandomVictimLaws(t *testing.T) {
	setup(t, func(o *config.Options) { o.NumWorkers = 8 })
	w := workers[3]

	if w.randomVictim(0, w.pid) != -1 {
		t.Fatal("empty set must yield -1")
	}
	// Only our own bit set: still no candidate.
	if w.randomVictim(bitset32.Set(0, w.pid), w.pid) != -1 {
		t.Fatal("self-only set must yield -1")
	}
	victims := bitset32.SetUpTo(8)
	for i := 0; i < 1000; i++ {
		pick := w.randomVictim(victims, w.pid)
		if pick == w.pid {
			t.Fatal("random_victim returned self")
		}
		if pick < 0 || pick >= 8 || !bitset32.IsSet(victims, pick) {
			t.Fatalf("pick %d outside candidate set", pick)
		}
	}
	// Sparse set exercises the popcount slow path.
	sparse := bitset32.Set(bitset32.Set(0, 1), 6)
	for i := 0; i < 1000; i++ {
		pick := w.randomVictim(sparse, w.pid)
		if pick != 1 && pick != 6 {
			t.Fatalf("sparse pick %d", pick)
		}
	}
}

// TestNextVictimOriginDispatch verifies the originator's uniform first hop:
// never self, always in-partition.
func TestNextVictimOriginDispatch(t *testing.T) {
	setup(t, func(o *config.Options) { o.NumWorkers = 4 })
	w := workers[1]
	for i := 0; i < 500; i++ {
		req := stealReq{ID: w.id, PID: w.pid, Victims: initialVictims(4), State: types.StateIdle}
		dst := w.nextVictim(&req)
		if dst == w.id {
			t.Fatal("origin dispatch must not target self")
		}
		if w.part.PID(dst) == -1 {
			t.Fatalf("dispatch target %d outside partition", dst)
		}
		if bitset32.IsSet(req.Victims, w.pid) {
			t.Fatal("originator bit must be cleared at dispatch")
		}
	}
}

// TestNextVictimBudgetBounce verifies that an exhausted request travels
// home, and that an empty candidate set does the same.
func TestNextVictimBudgetBounce(t *testing.T) {
	setup(t, func(o *config.Options) { o.NumWorkers = 4 })
	holder := workers[2]

	exhausted := stealReq{ID: 1, PID: 1, Retry: holder.maxAttempts,
		Victims: initialVictims(4), State: types.StateIdle}
	if dst := holder.nextVictim(&exhausted); dst != 1 {
		t.Fatalf("exhausted request routed to %d, want origin 1", dst)
	}

	empty := stealReq{ID: 1, PID: 1, Retry: 0, Victims: bitset32.Set(0, holder.pid),
		State: types.StateIdle}
	if dst := holder.nextVictim(&empty); dst != 1 {
		t.Fatalf("candidate-less request routed to %d, want origin 1", dst)
	}
}

// TestNextVictimForwardNeverHolder checks the forward path against the
// holder-exclusion invariant with idle-subtree masking active.
func TestNextVictimForwardNeverHolder(t *testing.T) {
	setup(t, func(o *config.Options) { o.NumWorkers = 8 })
	holder := workers[1]
	holder.tree.LeftSubtreeIdle = true // masks pIDs {3, 7}
	for i := 0; i < 500; i++ {
		req := stealReq{ID: 5, PID: 5, Retry: 1, Victims: initialVictims(8) &^ (1 << 5),
			State: types.StateIdle}
		dst := holder.nextVictim(&req)
		if dst == holder.id {
			t.Fatal("forward must never target the holder")
		}
		if dst == 5 {
			continue // home bounce is always legal
		}
		pid := holder.part.PID(dst)
		if pid == 3 || pid == 7 {
			t.Fatalf("forward targeted masked idle subtree member %d", pid)
		}
	}
}

// TestNextVictimSoleWorker covers num_workers_rt == 1: the bounce-back path
// fires immediately.
func TestNextVictimSoleWorker(t *testing.T) {
	setup(t, func(o *config.Options) { o.NumWorkers = 1 })
	w := workers[0]
	req := stealReq{ID: w.id, PID: w.pid, Victims: initialVictims(1), State: types.StateIdle}
	if dst := w.nextVictim(&req); dst != w.id {
		t.Fatalf("sole worker dispatch routed to %d", dst)
	}
}

// TestStealFromBias verifies the Last-Victim bias: a valid hint wins the
// first hop, an invalid one falls back to random selection.
func TestStealFromBias(t *testing.T) {
	setup(t, func(o *config.Options) {
		o.NumWorkers = 4
		o.StealLastVictim = true
	})
	w := workers[0]

	w.lastVictim = 2
	req := stealReq{ID: w.id, PID: w.pid, Victims: initialVictims(4), State: types.StateIdle}
	if dst := w.initialVictim(&req); dst != 2 {
		t.Fatalf("biased dispatch routed to %d, want hint 2", dst)
	}

	// Stale hint: falls back, never self.
	w.lastVictim = -1
	for i := 0; i < 200; i++ {
		req := stealReq{ID: w.id, PID: w.pid, Victims: initialVictims(4), State: types.StateIdle}
		if dst := w.initialVictim(&req); dst == w.id {
			t.Fatal("fallback dispatch must not target self")
		}
	}

	// Hint pointing at ourselves is rejected.
	w.lastVictim = w.id
	req = stealReq{ID: w.id, PID: w.pid, Victims: initialVictims(4), State: types.StateIdle}
	if dst := w.initialVictim(&req); dst == w.id {
		t.Fatal("self hint must be rejected")
	}
}

// TestVictimCheckFlag verifies the padded has-tasks flag tracks deque
// occupancy and gates hint usage.
func TestVictimCheckFlag(t *testing.T) {
	setup(t, func(o *config.Options) {
		o.NumWorkers = 4
		o.VictimCheck = true
		o.StealLastVictim = true
	})
	w := workers[1]

	if likelyHasTasks(w.id) {
		t.Fatal("fresh worker must read as task-less")
	}
	w.Spawn(func(types.ExecContext) {})
	if !likelyHasTasks(w.id) {
		t.Fatal("spawn must publish occupancy")
	}

	// A hint that reads occupied is honored every time; one that reads
	// empty falls back to random selection, which cannot keep landing on
	// the hinted worker.
	thief := workers[0]
	for i := 0; i < 50; i++ {
		req := stealReq{ID: thief.id, PID: thief.pid, Victims: initialVictims(4), State: types.StateIdle}
		if dst := thief.stealFrom(&req, w.id); dst != w.id {
			t.Fatalf("occupied hint %d skipped for %d", w.id, dst)
		}
	}
	missed := false
	for i := 0; i < 50; i++ {
		req := stealReq{ID: thief.id, PID: thief.pid, Victims: initialVictims(4), State: types.StateIdle}
		if thief.stealFrom(&req, 2) != 2 { // worker 2 has no tasks
			missed = true
			break
		}
	}
	if !missed {
		t.Fatal("bias never skipped a victim that reads empty")
	}

	// Drain and verify the flag drops.
	if tk := w.deq.PopBot(); tk == nil {
		t.Fatal("expected resident task")
	}
	w.updateHasTasks()
	if likelyHasTasks(w.id) {
		t.Fatal("drained worker must read as task-less")
	}
}
