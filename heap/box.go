package heap

import (
	taskruntime "github.com/sable-lang/task-runtime"
)

// Box is a single allocation from a task-local heap: a reference count, the
// type descriptor it was allocated for, and the zero-filled body.
//
// Ref is caller-managed. The allocator zero-fills it along with the body and
// never inspects it again; generated code applies its own initial-count
// convention (increment on share, decrement and free at zero on drop).
type Box struct {
	Ref  uint32
	Desc *taskruntime.TypeDescriptor
	Body []byte

	slot uint32
	live bool
}

// Live reports whether the box is currently allocated. It exists for the
// validator and for leak reporting; generated code never consults it.
func (b *Box) Live() bool {
	return b.live
}

// Origin records where a tracked box was allocated.
type Origin struct {
	File string
	Line int
}
