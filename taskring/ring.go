// ============================================================================
// TASKRING: LOCK-FREE SPSC TASK INBOX
// ============================================================================
//
// Bounded single-producer/single-consumer ring carrying 16-byte TaskMsg
// descriptors. A task inbox is owned by the thief that embedded its handle in
// a steal request; the producer side belongs to whichever victim currently
// holds that request. The channel-handle lifecycle in sched guarantees one
// (thief, victim) pair per inbox at a time, so the SPSC discipline holds.
//
// Core properties:
//   - Sequence-based slot availability signaling
//   - Separated head/tail cursors on isolated cache lines
//   - Power-of-2 sizing with bit masking for O(1) operations
//   - Push returns false when full, Pop returns false when empty
//   - Zero allocation during steady-state operation
//
// Compiler optimizations:
//   - //go:nosplit for stack management elimination
//   - //go:inline for call overhead reduction

package taskring

import (
	"sync/atomic"

	"taskrt/types"
)

// slot pairs one task message with its ticket.
//
// Layout: 16-byte payload + 8-byte ticket + 8-byte pad = 32 bytes,
// two slots per cache line.
//
//go:notinheap
//go:align 32
type slot struct {
	val types.TaskMsg // 16B - fixed-size payload
	seq uint64        // 8B  - slot ticket number
	_   [8]byte       // 8B  - alignment pad
}

// published tags a slot ticket as holding an unread message, so a one-slot
// ring can tell "filled at ticket t-1" apart from "drained at ticket t-1".
const published = uint64(1) << 63

// Ring is a lock-free single-producer/single-consumer task channel.
//
//go:notinheap
//go:align 64
type Ring struct {
	_    [64]byte // cache-line isolation (consumer head)
	head uint64   // consumer cursor

	_    [64]byte // cache-line isolation (producer tail)
	tail uint64   // producer cursor

	_ [64]byte // further isolation from neighbors

	mask uint64 // == len(buf) - 1 (bitmask for modulo)
	step uint64 // == len(buf)     (precomputed stride for wraparound)
	buf  []slot // backing ring buffer
}

// New constructs a ring with power-of-two size.
// Panics if size is not valid. Caller must ensure sizing discipline.
func New(size int) *Ring {
	if size <= 0 || size&(size-1) != 0 {
		panic("taskring: size must be >0 and power of two")
	}
	r := &Ring{
		mask: uint64(size - 1),
		step: uint64(size),
		buf:  make([]slot, size),
	}
	for i := range r.buf {
		r.buf[i].seq = uint64(i)
	}
	return r
}

// Push attempts to enqueue one message. Single producer only.
// Returns false if the slot is not yet ready (queue full).
//
//go:nosplit
//go:inline
func (r *Ring) Push(msg *types.TaskMsg) bool {
	t := r.tail
	s := &r.buf[t&r.mask]
	if atomic.LoadUint64(&s.seq) != t {
		return false
	}
	s.val = *msg
	atomic.StoreUint64(&s.seq, (t+1)|published)
	r.tail = t + 1
	return true
}

// Pop copies the next message into out. Single consumer only.
// Returns false when the ring is empty.
//
//go:nosplit
//go:inline
func (r *Ring) Pop(out *types.TaskMsg) bool {
	h := r.head
	s := &r.buf[h&r.mask]
	if atomic.LoadUint64(&s.seq) != (h+1)|published {
		return false
	}
	*out = s.val
	atomic.StoreUint64(&s.seq, h+r.step)
	r.head = h + 1
	return true
}

// Len reports the number of buffered messages as seen by the consumer,
// by walking published tickets from the head. Advisory.
//
//go:nosplit
func (r *Ring) Len() int {
	n := uint64(0)
	for h := r.head; n < r.step; h++ {
		if atomic.LoadUint64(&r.buf[h&r.mask].seq) != (h+1)|published {
			break
		}
		n++
	}
	return int(n)
}
