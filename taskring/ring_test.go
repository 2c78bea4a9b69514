// ring_test.go — Functional verification of the lock-free SPSC task inbox
package taskring

import (
	"testing"
	"time"

	"taskrt/types"
)

// TestNewPanicsOnBadSize validates that the constructor panics
// on non-power-of-two or non-positive sizes.
func TestNewPanicsOnBadSize(t *testing.T) {
	bad := []int{0, 3, 6}
	for _, sz := range bad {
		func() {
			defer func() {
				if recover() == nil {
					t.Fatalf("New(%d) should panic", sz)
				}
			}()
			_ = New(sz)
		}()
	}
}

// TestCapacityOneRoundTrip exercises the production geometry: a one-slot
// inbox accepts exactly one message until it is drained.
func TestCapacityOneRoundTrip(t *testing.T) {
	r := New(1)
	task := &types.Task{}
	msg := types.TaskMsg{Head: task, Count: 1, Donor: 4}

	if !r.Push(&msg) {
		t.Fatal("first push should succeed")
	}
	if r.Push(&msg) {
		t.Fatal("second push into one-slot inbox should fail")
	}
	var got types.TaskMsg
	if !r.Pop(&got) || got.Head != task || got.Count != 1 || got.Donor != 4 {
		t.Fatalf("pop = %+v", got)
	}
	if !r.Push(&msg) {
		t.Fatal("slot should be reusable after drain")
	}
}

// TestChainTransfer verifies that a linked task chain survives the copy
// through the inbox with its links intact.
func TestChainTransfer(t *testing.T) {
	r := New(2)
	a, b, c := &types.Task{}, &types.Task{}, &types.Task{}
	a.Next, b.Next = b, c

	if !r.Push(&types.TaskMsg{Head: a, Count: 3, Donor: 0}) {
		t.Fatal("push failed")
	}
	var got types.TaskMsg
	if !r.Pop(&got) {
		t.Fatal("pop failed")
	}
	if got.Head != a || got.Head.Next != b || got.Head.Next.Next != c {
		t.Fatal("chain links lost in transfer")
	}
	if got.Count != 3 {
		t.Fatalf("Count = %d, want 3", got.Count)
	}
}

// TestCrossThreadTransfer moves messages between a producer goroutine and a
// consumer goroutine and verifies delivery order.
func TestCrossThreadTransfer(t *testing.T) {
	r := New(4)
	const n = 1000

	go func() {
		for i := int32(0); i < n; i++ {
			msg := types.TaskMsg{Count: 1, Donor: i}
			for !r.Push(&msg) {
			}
		}
	}()

	deadline := time.Now().Add(5 * time.Second)
	var got types.TaskMsg
	for i := int32(0); i < n; {
		if r.Pop(&got) {
			if got.Donor != i {
				t.Fatalf("out of order: got %d, want %d", got.Donor, i)
			}
			i++
			continue
		}
		if time.Now().After(deadline) {
			t.Fatalf("stalled at message %d", i)
		}
	}
}

// BenchmarkPushPop measures uncontended single-thread throughput.
func BenchmarkPushPop(b *testing.B) {
	r := New(8)
	msg := types.TaskMsg{Count: 1}
	var got types.TaskMsg
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		r.Push(&msg)
		r.Pop(&got)
	}
}
