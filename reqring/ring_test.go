// ring_test.go — Functional verification of the lock-free MPSC request inbox
package reqring

import (
	"sync"
	"testing"

	"taskrt/types"
)

// TestNewPanicsOnBadSize validates that the constructor panics
// on non-power-of-two or non-positive sizes.
func TestNewPanicsOnBadSize(t *testing.T) {
	bad := []int{0, 3, 1000, -8}
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

// TestPushPopRoundTrip confirms single message round-trip integrity
// and checks that the inbox is empty afterwards.
func TestPushPopRoundTrip(t *testing.T) {
	r := New(8)
	req := types.StealRequest{ID: 3, PID: 3, Retry: 1, Victims: 0b1010, State: types.StateIdle}

	if !r.Push(&req) {
		t.Fatal("Push should succeed")
	}
	var got types.StealRequest
	if !r.Pop(&got) || got != req {
		t.Fatalf("expected %+v, got %+v", req, got)
	}
	if r.Pop(&got) {
		t.Fatal("inbox should be empty")
	}
}

// TestPushFailsWhenFull fills the inbox and verifies that further
// pushes are rejected without blocking.
func TestPushFailsWhenFull(t *testing.T) {
	r := New(4)
	req := types.StealRequest{ID: 7}
	for i := 0; i < 4; i++ {
		if !r.Push(&req) {
			t.Fatalf("push %d unexpectedly failed", i)
		}
	}
	if r.Push(&req) {
		t.Fatal("push into full inbox should return false")
	}
	if r.Len() != 4 {
		t.Fatalf("Len = %d, want 4", r.Len())
	}
}

// TestFIFOOrder verifies per-channel FIFO delivery.
func TestFIFOOrder(t *testing.T) {
	r := New(16)
	for i := int32(0); i < 10; i++ {
		if !r.Push(&types.StealRequest{ID: i}) {
			t.Fatalf("push %d failed", i)
		}
	}
	var got types.StealRequest
	for i := int32(0); i < 10; i++ {
		if !r.Pop(&got) || got.ID != i {
			t.Fatalf("pop %d = %+v", i, got)
		}
	}
}

// TestConcurrentProducers hammers the inbox from several producers and
// verifies that every message survives exactly once.
func TestConcurrentProducers(t *testing.T) {
	const producers = 8
	const perProducer = 2048

	r := New(256)
	seen := make(map[int32]int, producers*perProducer)
	done := make(chan struct{})

	go func() {
		defer close(done)
		var got types.StealRequest
		for n := 0; n < producers*perProducer; {
			if r.Pop(&got) {
				seen[got.ID]++
				n++
			}
		}
	}()

	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				req := types.StealRequest{ID: int32(p*perProducer + i)}
				for !r.Push(&req) {
				}
			}
		}(p)
	}
	wg.Wait()
	<-done

	if len(seen) != producers*perProducer {
		t.Fatalf("unique messages = %d, want %d", len(seen), producers*perProducer)
	}
	for id, n := range seen {
		if n != 1 {
			t.Fatalf("message %d delivered %d times", id, n)
		}
	}
}

// BenchmarkPushPop measures uncontended single-thread throughput.
func BenchmarkPushPop(b *testing.B) {
	r := New(1024)
	req := types.StealRequest{ID: 1}
	var got types.StealRequest
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		r.Push(&req)
		r.Pop(&got)
	}
}
