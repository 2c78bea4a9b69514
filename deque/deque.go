// ============================================================================
// DEQUE: OWNER-PRIVATE TASK DEQUE WITH FREELIST ARENA
// ============================================================================
//
// Doubly-linked task deque, LIFO at the owner end and FIFO at the steal end.
// All stealing in this runtime is message-based: a victim unlinks tasks from
// its own deque and ships them through a task inbox. The deque itself is
// therefore touched by exactly one thread and needs no atomics, no locks and
// no version counters.
//
// Architecture overview:
//   - top ... bot doubly-linked through Task.Prev / Task.Next
//   - PushBot/PopBot: owner working set (LIFO, newest first)
//   - StealOne/StealHalf: oldest tasks unlinked as a Next-chained batch
//   - Per-deque freelist recycles Task records; the preallocated pool keeps
//     steady-state scheduling allocation-free
//
// Ownership model:
//   - A task record obtained from Get is owned by the caller until it is
//     either executed and returned with Put, or shipped inside a TaskMsg
//   - Records freed by a thief land in the thief's freelist, not the
//     spawner's; populations drift between workers but never leak

package deque

import "taskrt/types"

// Deque is one worker's private task store plus its task-record freelist.
type Deque struct {
	top *types.Task // steal (FIFO) end, oldest task
	bot *types.Task // owner (LIFO) end, newest task
	n   int32       // resident task count

	free  *types.Task // freelist head, linked through Next
	freeN int32       // freelist population
}

// New constructs a deque with prealloc task records seeded in the freelist.
func New(prealloc int) *Deque {
	d := &Deque{}
	for i := 0; i < prealloc; i++ {
		d.Put(&types.Task{})
	}
	return d
}

// Get pops a recycled task record, or allocates when the freelist is dry.
// The record comes back zeroed.
func (d *Deque) Get() *types.Task {
	t := d.free
	if t == nil {
		return &types.Task{}
	}
	d.free = t.Next
	d.freeN--
	t.Next = nil
	return t
}

// Put recycles an executed task record into the freelist.
func (d *Deque) Put(t *types.Task) {
	*t = types.Task{Next: d.free}
	d.free = t
	d.freeN++
}

// FreeLen reports the freelist population.
func (d *Deque) FreeLen() int32 { return d.freeN }

// PushBot appends a task at the owner end.
func (d *Deque) PushBot(t *types.Task) {
	t.Next = nil
	t.Prev = d.bot
	if d.bot != nil {
		d.bot.Next = t
	} else {
		d.top = t
	}
	d.bot = t
	d.n++
}

// PopBot removes and returns the newest task, or nil when empty.
func (d *Deque) PopBot() *types.Task {
	t := d.bot
	if t == nil {
		return nil
	}
	d.bot = t.Prev
	if d.bot != nil {
		d.bot.Next = nil
	} else {
		d.top = nil
	}
	t.Prev = nil
	d.n--
	return t
}

// StealOne unlinks the oldest task, or returns nil when empty.
func (d *Deque) StealOne() *types.Task {
	t := d.top
	if t == nil {
		return nil
	}
	d.top = t.Next
	if d.top != nil {
		d.top.Prev = nil
	} else {
		d.bot = nil
	}
	t.Next = nil
	d.n--
	return t
}

// StealHalf unlinks half the deque (minimum one task) from the steal end and
// returns it as a Next-linked chain in FIFO order, plus the chain length.
// Returns (nil, 0) when the deque is empty.
func (d *Deque) StealHalf() (*types.Task, int32) {
	if d.n == 0 {
		return nil, 0
	}
	k := d.n / 2
	if k == 0 {
		k = 1
	}
	head := d.top
	tail := head
	for i := int32(1); i < k; i++ {
		tail = tail.Next
	}
	d.top = tail.Next
	if d.top != nil {
		d.top.Prev = nil
	} else {
		d.bot = nil
	}
	tail.Next = nil
	head.Prev = nil
	d.n -= k
	return head, k
}

// PushChain splices an incoming Next-linked chain of n tasks at the owner
// end, preserving chain order (chain head ends up oldest of the new block).
func (d *Deque) PushChain(head *types.Task, n int32) {
	if head == nil || n == 0 {
		return
	}
	// Rebuild Prev links; in-flight chains carry Next only.
	head.Prev = d.bot
	if d.bot != nil {
		d.bot.Next = head
	} else {
		d.top = head
	}
	t := head
	for t.Next != nil {
		t.Next.Prev = t
		t = t.Next
	}
	d.bot = t
	d.n += n
}

// Len reports the resident task count.
func (d *Deque) Len() int32 { return d.n }

// Empty reports whether no task is resident.
func (d *Deque) Empty() bool { return d.n == 0 }
