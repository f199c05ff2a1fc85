package vm

import "math"

// ---------------------------------------------------------------------------
// GrowthPolicy: capacity heuristics shared by every resizable buffer
// ---------------------------------------------------------------------------

const (
	// MaxCapacity is the largest element count any vector or table may hold.
	MaxCapacity = math.MaxInt32 - 512

	// InitCapacity is the capacity of a fresh table and the floor for shrinking.
	InitCapacity = 8

	// linearGrowthBytes is the buffer size above which growth switches from
	// doubling to fixed-size increments.
	linearGrowthBytes = 500 * 1024

	// shrinkSlack bounds how far above its length a shrunk buffer may stay.
	shrinkSlack = 700000
)

// GrowCapacity returns the capacity a buffer of elemSize-byte elements should
// have to hold requested elements, starting from current. Small buffers double
// (plus a constant so zero grows); large buffers grow by a fixed byte budget.
// The result is clamped to MaxCapacity. ok is false when requested alone is
// out of range.
func GrowCapacity(current, requested, elemSize int) (capacity int, ok bool) {
	if requested < 0 || requested > MaxCapacity || elemSize <= 0 {
		return current, false
	}
	if current < 0 {
		current = 0
	}
	for current < requested {
		if current*elemSize < linearGrowthBytes {
			current = current*2 + 8
		} else {
			current += linearGrowthBytes / elemSize
		}
	}
	if current > MaxCapacity {
		current = MaxCapacity
	}
	return current, true
}

// ShrinkTarget returns the capacity a buffer holding length elements should
// be shrunk to. Callers shrink only when their capacity exceeds it.
func ShrinkTarget(length int) int {
	target := min(length*5, length+shrinkSlack)
	return max(InitCapacity, target)
}
