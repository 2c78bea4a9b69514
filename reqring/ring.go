// ============================================================================
// REQRING: LOCK-FREE MPSC STEAL-REQUEST INBOX
// ============================================================================
//
// Bounded multi-producer/single-consumer ring carrying 32-byte StealRequest
// messages between workers. Every worker owns exactly one inbox; any worker
// in the partition may push into it, only the owner pops.
//
// Architecture overview:
//   - Sequence-ticketed slots (Vyukov scheme): producers claim a slot by
//     CAS on the tail cursor, publish by bumping the slot ticket
//   - Consumer cursor is plain memory, touched by one thread only
//   - Head/tail cursors on isolated cache lines
//   - Power-of-2 sizing with bit masking for O(1) wraparound
//
// Safety model:
//   - Push returns false when the ring is full. No backoff logic here;
//     the retry policy (warn, fatal, termination check) lives in sched.
//   - Pop copies the message out; slot memory is recycled immediately.
//   - FIFO order is preserved per channel.
//
// Compiler optimizations:
//   - //go:nosplit for stack management elimination
//   - //go:inline for call overhead reduction

package reqring

import (
	"sync/atomic"

	"taskrt/types"
)

// slot pairs one request payload with its ticket.
//
// Layout: 32-byte payload + 8-byte ticket + 24-byte pad = 64 bytes,
// one slot per cache line so producers never false-share.
//
//go:notinheap
//go:align 64
type slot struct {
	val types.StealRequest // 32B - fixed-size payload
	seq uint64             // 8B  - slot ticket number
	_   [24]byte           // 24B - pad to cache line
}

// Ring is a bounded lock-free MPSC queue of steal requests.
//
//go:notinheap
//go:align 64
type Ring struct {
	_    [64]byte // cache-line isolation (consumer head)
	head uint64   // consumer cursor (single reader, plain ops)

	_    [64]byte // cache-line isolation (producer tail)
	tail uint64   // producer cursor (CAS-claimed)

	_ [64]byte // further isolation from neighbors

	mask uint64 // == len(buf) - 1 (bitmask for modulo)
	step uint64 // == len(buf)     (precomputed stride for wraparound)
	buf  []slot // backing ring buffer
}

// New constructs a ring with power-of-two size.
// Panics if size is not valid. Caller must ensure sizing discipline.
func New(size int) *Ring {
	if size <= 0 || size&(size-1) != 0 {
		panic("reqring: size must be >0 and power of two")
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

// Push attempts to enqueue one request. Safe for concurrent producers.
// Returns false when the ring is full.
//
//go:nosplit
func (r *Ring) Push(req *types.StealRequest) bool {
	for {
		t := atomic.LoadUint64(&r.tail)
		s := &r.buf[t&r.mask]
		seq := atomic.LoadUint64(&s.seq)
		switch {
		case seq == t:
			// Slot free at this ticket: claim it.
			if atomic.CompareAndSwapUint64(&r.tail, t, t+1) {
				s.val = *req
				atomic.StoreUint64(&s.seq, t+1)
				return true
			}
		case seq < t:
			// Slot still holds an unconsumed message one lap behind: full.
			return false
		default:
			// Another producer claimed t between our loads; retry.
			cpuRelax()
		}
	}
}

// Pop copies the next message into out. Single consumer only.
// Returns false when the ring is empty.
//
//go:nosplit
func (r *Ring) Pop(out *types.StealRequest) bool {
	h := r.head
	s := &r.buf[h&r.mask]
	if atomic.LoadUint64(&s.seq) != h+1 {
		return false
	}
	*out = s.val
	atomic.StoreUint64(&s.seq, h+r.step)
	r.head = h + 1
	return true
}

// Len reports the number of buffered messages. Advisory: concurrent
// producers may change it before the caller acts on it.
//
//go:nosplit
//go:inline
func (r *Ring) Len() int {
	t := atomic.LoadUint64(&r.tail)
	h := r.head
	if t < h {
		return 0
	}
	return int(t - h)
}

// Cap returns the slot count.
//
//go:nosplit
//go:inline
func (r *Ring) Cap() int {
	return int(r.step)
}
