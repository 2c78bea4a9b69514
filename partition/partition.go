// ============================================================================
// PARTITION: ISOLATED WORKER POOLS
// ============================================================================
//
// A partition is a group of workers that steal only from each other. The
// runtime carves the global worker range into contiguous partitions at init;
// every steal request carries its origin partition number and circulates
// strictly inside it. Cross-partition traffic does not exist.
//
// Identity mapping:
//   - global ID: index into the runtime-wide endpoint arrays
//   - pID:       dense intra-partition index, bit position in victim sets
//   - manager:   the partition's tree root (pID 0)

package partition

import (
	"taskrt/constants"
	"taskrt/debug"
	"taskrt/utils"
)

// Partition describes one isolated worker pool.
type Partition struct {
	Number  int32   // partition index
	Workers []int32 // global worker IDs in dense pID order
	Manager int32   // global ID of the tree root (Workers[0])
}

// NumWorkersRT reports the runtime worker count of this partition. Victim
// bitfields, tree indices and MaxStealAttempts defaults all derive from it.
func (p *Partition) NumWorkersRT() int32 {
	return int32(len(p.Workers))
}

// PID maps a global worker ID to its intra-partition index, or -1 when the
// worker is not a member.
func (p *Partition) PID(global int32) int32 {
	for i, id := range p.Workers {
		if id == global {
			return int32(i)
		}
	}
	return -1
}

// Global maps an intra-partition index back to the global worker ID.
// Fatal on out-of-range pIDs: victim selection must never manufacture one.
func (p *Partition) Global(pid int32) int32 {
	if pid < 0 || pid >= p.NumWorkersRT() {
		debug.Fatal("partition", "pID "+utils.Itoa(int(pid))+" out of range")
	}
	return p.Workers[pid]
}

// Set carves total workers into contiguous partitions of the given sizes and
// returns one descriptor per partition. Sizes must be positive, sum to
// total, and respect the 32-worker victim-set ceiling.
func Set(total int32, sizes []int32) []*Partition {
	if len(sizes) == 0 {
		sizes = []int32{total}
	}
	parts := make([]*Partition, 0, len(sizes))
	next := int32(0)
	for i, n := range sizes {
		if n <= 0 || n > constants.MaxWorkers {
			debug.Fatal("partition", "invalid partition size "+utils.Itoa(int(n)))
		}
		workers := make([]int32, n)
		for j := int32(0); j < n; j++ {
			workers[j] = next + j
		}
		parts = append(parts, &Partition{
			Number:  int32(i),
			Workers: workers,
			Manager: workers[0],
		})
		next += n
	}
	if next != total {
		debug.Fatal("partition", "partition sizes sum to "+utils.Itoa(int(next))+
			", want "+utils.Itoa(int(total)))
	}
	return parts
}
