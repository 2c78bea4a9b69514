// ─────────────────────────────────────────────────────────────────────────────
// [Filename]: constants.go — Runtime-Wide Scheduler Tunables
//
// Purpose:
//   - Defines the compile-time limits of the work-stealing core: worker caps,
//     steal budgets, adaptive window, channel sizing and cache geometry.
//   - Defines the memory guardrails used by the demo event loop.
//
// Notes:
//   - Victim sets are 32-bit bitfields, so a partition never exceeds 32 workers.
//   - Channel capacities derived here guarantee that a request send can only
//     fail transiently, never permanently, under a correct configuration.
//
// ⚠️ No runtime logic here — all values must be compile-time resolvable
// ─────────────────────────────────────────────────────────────────────────────

package constants

// ───────────────────────────── Worker Topology ─────────────────────────────

const (
	// MaxWorkers bounds the number of workers in one partition. The victim
	// bitfield in a steal request is a uint32, one bit per intra-partition
	// worker, which fixes the ceiling at 32.
	MaxWorkers = 32

	// MasterID is the root of the worker tree. Worker 0 owns termination
	// detection for its partition.
	MasterID = 0

	// CacheLineSize is the isolation unit for per-worker shared flags and
	// ring cursors. All padded structures in the runtime assume 64 bytes.
	CacheLineSize = 64
)

// ───────────────────────────── Steal Budgets ────────────────────────────────

const (
	// DefaultMaxSteal is the per-worker budget of concurrent outstanding
	// steal requests, and therefore also the number of SPSC task inboxes each
	// worker owns. One inbox handle travels inside each outstanding request.
	DefaultMaxSteal = 1

	// MaxStealLimit bounds the configurable budget so per-worker inbox and
	// channel-stack storage can live in fixed arrays.
	MaxStealLimit = 8

	// MaxStealAttemptsAuto selects the default forwarding budget of
	// num_workers_rt-1 hops at init time.
	MaxStealAttemptsAuto = -1

	// StealAdaptativeInterval is the adaptive-policy window: the controller
	// re-evaluates steal-one vs steal-half every this many completed steals.
	StealAdaptativeInterval = 25

	// LifelineCap bounds the per-worker queue of retained failed requests.
	// A tree node has at most two children, so at most two lifelines.
	LifelineCap = 2
)

// ─────────────────────────── Channel Geometry ──────────────────────────────

const (
	// TaskInboxCap is the slot count of one SPSC task inbox. A task inbox is
	// bound to exactly one outstanding steal request at a time and carries at
	// most one task-batch message for it, so one slot suffices.
	TaskInboxCap = 1

	// SendRetryWarn is the number of consecutive failed channel sends after
	// which a warning is dropped. Persistent failure past SendRetryFatal
	// spins indicates an under-sized inbox, which is a configuration bug.
	SendRetryWarn  = 3
	SendRetryFatal = 1 << 22
)

// ─────────────────────────── Memory Guardrails ─────────────────────────────

const (
	// HeapSoftLimit triggers a manual GC cycle in the demo loop when exceeded.
	// The scheduler itself allocates nothing after init.
	HeapSoftLimit = 128 << 20 // 128 MiB

	// HeapHardLimit aborts the process if exceeded. A breach means task
	// payloads are leaking outside the freelist discipline.
	HeapHardLimit = 512 << 20 // 512 MiB
)
