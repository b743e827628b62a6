// Package heap implements the two allocators of the task runtime.
//
// # Task-Local Heap
//
// Local hands out reference-counted boxes tagged with a type descriptor.
// It is owned by one task, runs the cooperative collection hook before every
// allocation, and enforces no reference-count protocol itself; counting is
// driven entirely by generated code.
//
// # Exchange Heap
//
// Exchange is a shared linear arena addressed by byte offsets, used for
// values transferred between tasks. There is no ownership tracking and no
// collection; allocate, free and realloc serialize on an internal mutex,
// making it the only cross-thread resource in this layer.
//
// # Validation
//
// Validate is a debug-only invariant check on box headers, inserted by the
// compiler when box checking is enabled. Violations are fatal.
package heap
