// tree.go — Worker-tree indices and lifeline state
//
// Workers of one partition form a complete binary tree over their pIDs:
// pID 0 is the root, children of i are 2i+1 and 2i+2. The tree carries two
// protocols: Failed steal requests ascend one hop from child to parent, and
// shared tasks descend along retained lifelines. Subtree-idle flags are
// written only by the owning parent, so they need no synchronization.

package sched

import (
	"taskrt/constants"
	"taskrt/types"
)

// WorkerTree is the per-worker view of the partition's binary tree.
type WorkerTree struct {
	Parent     int32 // pID of the parent, -1 at the root
	LeftChild  int32 // pID of the left child, -1 when absent
	RightChild int32 // pID of the right child, -1 when absent

	// Subtree-idle flags. false→true on receiving a Failed request from the
	// corresponding child; true→false on sending tasks down that lifeline.
	LeftSubtreeIdle  bool
	RightSubtreeIdle bool

	// WaitingForTasks marks local quiescence: this worker has given up
	// stealing and its last request rests on the parent's lifeline queue.
	WaitingForTasks bool
}

// initTree computes the tree indices for pid in a partition of n workers.
func initTree(pid, n int32) WorkerTree {
	t := WorkerTree{Parent: -1, LeftChild: -1, RightChild: -1}
	if pid > 0 {
		t.Parent = (pid - 1) / 2
	}
	if l := 2*pid + 1; l < n {
		t.LeftChild = l
	}
	if r := 2*pid + 2; r < n {
		t.RightChild = r
	}
	return t
}

// lifelineQueue retains up to one Failed steal request per child until this
// worker has tasks to push back down.
type lifelineQueue struct {
	buf   [constants.LifelineCap]types.StealRequest
	head  int32
	count int32
}

// enqueue appends a retained request. The capacity-2 bound is structural
// (one per child); overflow is a protocol violation handled by the caller.
func (q *lifelineQueue) enqueue(req *types.StealRequest) bool {
	if q.count == constants.LifelineCap {
		return false
	}
	q.buf[(q.head+q.count)%constants.LifelineCap] = *req
	q.count++
	return true
}

// dequeue removes the oldest retained request.
func (q *lifelineQueue) dequeue(out *types.StealRequest) bool {
	if q.count == 0 {
		return false
	}
	*out = q.buf[q.head]
	q.head = (q.head + 1) % constants.LifelineCap
	q.count--
	return true
}

// empty reports whether no lifeline is pending.
func (q *lifelineQueue) empty() bool { return q.count == 0 }

// len reports the number of retained requests.
func (q *lifelineQueue) len() int32 { return q.count }
