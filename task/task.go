package task

import (
	"sync/atomic"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	taskruntime "github.com/sable-lang/task-runtime"
	"github.com/sable-lang/task-runtime/heap"
)

var nextID atomic.Uint64

// Task is one execution context: a name, the two heap handles, and the
// stack state the boundary layer reads and mutates. Tasks are created by
// the scheduler; exactly one goroutine executes a task's logic at a time,
// so none of the task-owned state is locked.
type Task struct {
	id     uint64
	name   string
	kernel *heap.Exchange
	boxed  *heap.Local

	// Stack state. limit is the published stack-limit guard; zero means the
	// fast-path overflow check is disabled (the task is running on the
	// native stack). sp tracks the most recently published stack pointer.
	seg      *Segment
	limit    uint64
	sp       uint64
	onNative bool
	failed   bool

	stackSize uint32
}

// Option configures a task at creation.
type Option func(*Task, *[]heap.LocalOption)

// WithCollectHook installs the cooperative collection trigger on the task's
// local heap.
func WithCollectHook(h taskruntime.CollectHook) Option {
	return func(_ *Task, lo *[]heap.LocalOption) {
		*lo = append(*lo, heap.WithCollectHook(h))
	}
}

// WithTracking enables allocation-origin tracking on the task's local heap.
func WithTracking() Option {
	return func(_ *Task, lo *[]heap.LocalOption) {
		*lo = append(*lo, heap.WithTracking())
	}
}

// WithStackSize sets the minimum size of new stack segments.
func WithStackSize(n uint32) Option {
	return func(t *Task, _ *[]heap.LocalOption) {
		t.stackSize = n
	}
}

// New creates a task named name over the shared kernel heap. The task gets
// its own local heap and an initial stack segment.
func New(name string, kernel *heap.Exchange, opts ...Option) *Task {
	t := &Task{
		id:        nextID.Add(1),
		name:      name,
		kernel:    kernel,
		stackSize: MinStackSize,
	}
	var localOpts []heap.LocalOption
	for _, opt := range opts {
		opt(t, &localOpts)
	}
	t.boxed = heap.NewLocal(name, localOpts...)

	// Every task starts with one segment; generated prologues grow from
	// there on demand.
	if _, err := t.NewStack(t.stackSize, nil); err != nil {
		// The initial segment allocates from the Go heap and cannot fail
		// for sane sizes; treat failure as a construction bug.
		Logger().Fatal("initial stack segment", zap.String("task", name), zap.Error(err))
	}
	return t
}

// ID returns the task's identity.
func (t *Task) ID() uint64 { return t.id }

// Name returns the task's name.
func (t *Task) Name() string { return t.name }

// Kernel returns the shared exchange heap.
func (t *Task) Kernel() *heap.Exchange { return t.kernel }

// Boxed returns the task-local box heap.
func (t *Task) Boxed() *heap.Local { return t.boxed }

// StackLimit returns the published stack-limit guard. Zero means overflow
// checks are disabled.
func (t *Task) StackLimit() uint64 { return t.limit }

// PublishLimit republishes the stack-limit guard.
func (t *Task) PublishLimit(v uint64) { t.limit = v }

// StackPointer returns the most recently published stack pointer.
func (t *Task) StackPointer() uint64 { return t.sp }

// SetStackPointer records the live stack pointer. Generated code publishes
// it on entry to upcalls so alignment checks see the real value.
func (t *Task) SetStackPointer(sp uint64) { t.sp = sp }

// OnNativeStack reports whether the task is currently running native code.
func (t *Task) OnNativeStack() bool { return t.onNative }

// SetOnNative flips the native-stack flag. Only the bridge calls this.
func (t *Task) SetOnNative(v bool) { t.onNative = v }

// Failed reports whether the task has failed.
func (t *Task) Failed() bool { return t.failed }

// Fail marks the task failed. Failure is unilateral and immediate: the
// scheduler will not resume the task, and nothing here propagates a
// cancellation signal through in-flight native calls.
func (t *Task) Fail() {
	if t.failed {
		return
	}
	t.failed = true
	Logger().Error("task failed", zap.String("task", t.name), zap.Uint64("id", t.id))
}

// Shutdown tears the task down: releases all stack segments and closes the
// local heap, reporting leaked boxes. The kernel heap is shared and stays
// up.
func (t *Task) Shutdown() error {
	var err error
	for t.seg != nil {
		err = multierr.Append(err, t.DelStack())
	}
	err = multierr.Append(err, t.boxed.Close())
	return err
}
