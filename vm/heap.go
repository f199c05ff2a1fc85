package vm

import (
	"fmt"

	"github.com/dustin/go-humanize"
)

// ---------------------------------------------------------------------------
// Heap: allocation accounting
// ---------------------------------------------------------------------------

// vectorHeaderSize is the accounted size of a Vector struct.
const vectorHeaderSize = 64

// HeapStats is a point-in-time copy of the allocation counters.
type HeapStats struct {
	Allocs    uint64
	Frees     uint64
	LiveBytes int64
	PeakBytes int64
}

// Live returns the number of allocations not yet freed.
func (s HeapStats) Live() int64 {
	return int64(s.Allocs) - int64(s.Frees)
}

func (s HeapStats) String() string {
	return fmt.Sprintf("allocs=%d frees=%d live=%s peak=%s",
		s.Allocs, s.Frees,
		humanize.IBytes(uint64(max(s.LiveBytes, 0))),
		humanize.IBytes(uint64(max(s.PeakBytes, 0))))
}

// Heap counts every block handed out for vector headers, vector data and
// table entries. It enforces an optional byte limit and supports fault
// injection for testing failure paths.
type Heap struct {
	stats HeapStats
	limit int64

	// failAfter counts down successful allocations; when it reaches zero the
	// next allocation fails. Negative disables injection.
	failAfter int
}

func newHeap(limit int64) *Heap {
	return &Heap{limit: limit, failAfter: -1}
}

// Stats returns a copy of the counters.
func (h *Heap) Stats() HeapStats {
	return h.stats
}

// Limit returns the byte limit, or 0 if unlimited.
func (h *Heap) Limit() int64 {
	return h.limit
}

// FailAfter arms fault injection: n more allocations succeed and the one
// after fails. A negative n disarms it.
func (h *Heap) FailAfter(n int) {
	h.failAfter = n
}

// reserve accounts for size bytes. It returns a reason string on failure.
func (h *Heap) reserve(size int64) (string, bool) {
	if h.failAfter == 0 {
		h.failAfter = -1
		return "injected allocation failure", false
	}
	if h.limit > 0 && h.stats.LiveBytes+size > h.limit {
		return fmt.Sprintf("%s requested with %s of %s in use",
			humanize.IBytes(uint64(size)),
			humanize.IBytes(uint64(h.stats.LiveBytes)),
			humanize.IBytes(uint64(h.limit))), false
	}
	if h.failAfter > 0 {
		h.failAfter--
	}
	h.stats.Allocs++
	h.stats.LiveBytes += size
	h.stats.PeakBytes = max(h.stats.PeakBytes, h.stats.LiveBytes)
	return "", true
}

func (h *Heap) free(size int64) {
	h.stats.Frees++
	h.stats.LiveBytes -= size
}

// alloc accounts for size bytes or raises AllocationFailure.
func (vm *VM) alloc(size int64) {
	if reason, ok := vm.heap.reserve(size); !ok {
		vm.Raise(AllocationFailure, "%s", reason)
	}
}

// Heap returns the VM's allocation ledger.
func (vm *VM) Heap() *Heap {
	return vm.heap
}
