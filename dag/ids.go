package dag

import "sync/atomic"

// IDAllocator hands out monotonically increasing message ids shared by
// every source step in a graph run. A single allocator is owned by the
// Coordinator and threaded to source step factories through StepDeps, so
// ids stay unique across sources without sources needing a reference to
// the Coordinator itself.
type IDAllocator struct {
	next atomic.Int64
}

// NewIDAllocator returns an allocator starting at 1.
func NewIDAllocator() *IDAllocator {
	return &IDAllocator{}
}

// Next returns the next id.
func (a *IDAllocator) Next() int64 {
	return a.next.Add(1)
}
