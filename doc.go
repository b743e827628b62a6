// Package taskruntime provides the boundary layer of the Sable task runtime:
// the entry points generated code calls to allocate memory, grow dynamic
// buffers, switch between the growable managed stack and the fixed native
// stack, and forward unwinding decisions across that boundary.
//
// # Architecture Overview
//
// The library is organized into several packages with distinct
// responsibilities:
//
//	taskruntime/     Root package with type descriptors and shared vocabulary
//	├── upcall/      The entry-point surface generated code calls
//	├── bridge/      Managed/native stack switching and guard bookkeeping
//	├── task/        Task execution contexts and the segmented managed stack
//	├── heap/        Task-local box allocator and the shared exchange heap
//	├── buffer/      Growable fill/alloc buffers in exchange memory
//	├── shape/       Structural compare/log interpreter over descriptors
//	├── unwind/      Platform personality routine forwarding
//	└── errors/      Structured error types for debugging
//
// # Quick Start
//
// Create a task over a shared exchange heap and drive the upcall surface:
//
//	kernel := heap.NewExchange()
//	t := task.New("main", kernel)
//	defer t.Shutdown()
//
//	box, err := upcall.Malloc(t, taskruntime.Scalar(taskruntime.KindU64))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	box.Ref = 1
//	upcall.Free(t, box)
//
// # Stacks
//
// Each task runs on a chain of dynamically allocated stack segments. Nearly
// every upcall begins on the managed stack and immediately switches to the
// native stack through the bridge; the task's published stack-limit guard is
// disabled for the duration of the crossing and restored on return. Unwinding
// across the boundary is unsupported and aborts the process.
//
// # Heaps
//
// The task-local heap hands out reference-counted boxes tagged with a type
// descriptor; the reference-count protocol is enforced by generated code, not
// by the allocator. The exchange heap is a shared linear arena with no
// ownership tracking, used for values transferred between tasks; it is the
// only cross-thread resource in this layer and serializes internally.
//
// # Thread Safety
//
// A task and everything it owns is driven by one goroutine at a time. Only
// the exchange heap may be shared across goroutines.
package taskruntime
