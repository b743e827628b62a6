package upcall

import (
	"fmt"

	"go.uber.org/zap"

	taskruntime "github.com/sable-lang/task-runtime"
	"github.com/sable-lang/task-runtime/bridge"
	"github.com/sable-lang/task-runtime/buffer"
	"github.com/sable-lang/task-runtime/errors"
	"github.com/sable-lang/task-runtime/heap"
	"github.com/sable-lang/task-runtime/shape"
	"github.com/sable-lang/task-runtime/task"
	"github.com/sable-lang/task-runtime/unwind"
)

// Fail marks the task failed on behalf of a generated assertion. The
// expression text and source position come from the compiled program.
func Fail(t *task.Task, expr, file string, line int) error {
	traceEntry("fail", t.Name())
	return bridge.SwitchToNative(t, func() error {
		Logger().Error(fmt.Sprintf("upcall fail '%s', %s:%d", expr, file, line),
			zap.String("task", t.Name()))
		t.Fail()
		return errors.TaskFailed(t.Name(), expr, file, line)
	})
}

// Malloc allocates a zero-filled box of td's shape on the task's local
// heap. The box comes back with a zero reference count; the caller takes
// ownership and sets the count.
func Malloc(t *task.Task, td *taskruntime.TypeDescriptor) (*heap.Box, error) {
	traceEntry("malloc", t.Name())
	var b *heap.Box
	err := bridge.SwitchToNative(t, func() error {
		var err error
		b, err = t.Boxed().Allocate(td)
		return err
	})
	if err != nil {
		return nil, err
	}
	return b, nil
}

// Free returns a box to the task's local heap. Freeing nil is a no-op.
func Free(t *task.Task, b *heap.Box) error {
	traceEntry("free", t.Name())
	return bridge.SwitchToNative(t, func() error {
		t.Boxed().Free(b)
		return nil
	})
}

// ValidateBox checks the box's header invariants and aborts on corruption.
// It runs on whatever stack the caller is on: validation sits on the hot
// path of compiled pointer writes and must not pay for a stack switch.
func ValidateBox(b *heap.Box) {
	heap.Validate(b)
}

// SharedMalloc allocates n bytes on the exchange heap and returns the
// block's offset.
func SharedMalloc(t *task.Task, n uint32) (uint32, error) {
	traceEntry("shared_malloc", t.Name())
	var off uint32
	err := bridge.SwitchToNative(t, func() error {
		var err error
		off, err = t.Kernel().Malloc(n)
		return err
	})
	return off, err
}

// SharedFree releases an exchange-heap block. Freeing offset zero is a
// no-op.
func SharedFree(t *task.Task, off uint32) error {
	traceEntry("shared_free", t.Name())
	return bridge.SwitchToNative(t, func() error {
		return t.Kernel().Free(off)
	})
}

// SharedRealloc resizes an exchange-heap block, preserving its contents up
// to the smaller of the old and new sizes.
func SharedRealloc(t *task.Task, off, n uint32) (uint32, error) {
	traceEntry("shared_realloc", t.Name())
	var moved uint32
	err := bridge.SwitchToNative(t, func() error {
		var err error
		moved, err = t.Kernel().Realloc(off, n)
		return err
	})
	return moved, err
}

// VecGrow ensures the growable buffer at *ref can hold newSize bytes,
// updating *ref if the buffer had to move.
func VecGrow(t *task.Task, ref *uint32, newSize uint32) error {
	traceEntry("vec_grow", t.Name())
	return bridge.SwitchToNative(t, func() error {
		return buffer.GrowTo(t.Kernel(), ref, newSize)
	})
}

// StrConcat joins two NUL-terminated string buffers into a fresh buffer,
// keeping a single terminator between them.
func StrConcat(t *task.Task, lhs, rhs uint32) (uint32, error) {
	traceEntry("str_concat", t.Name())
	var out uint32
	err := bridge.SwitchToNative(t, func() error {
		var err error
		out, err = buffer.Concat(t.Kernel(), lhs, rhs)
		return err
	})
	return out, err
}

// NewStack pushes a fresh stack segment sized for at least size bytes,
// copies args to its aligned top, and returns the new stack pointer.
func NewStack(t *task.Task, size uint32, args []byte) (uint64, error) {
	traceEntry("new_stack", t.Name())
	var sp uint64
	err := bridge.SwitchToNative(t, func() error {
		var err error
		sp, err = t.NewStack(size, args)
		return err
	})
	return sp, err
}

// DelStack pops the current stack segment and republishes the previous
// segment's guard.
func DelStack(t *task.Task) error {
	traceEntry("del_stack", t.Name())
	return bridge.SwitchToNative(t, func() error {
		return t.DelStack()
	})
}

// ResetStackLimit republishes the guard for the segment containing sp. It
// is called immediately after returning to the managed stack, so it must
// not switch stacks: a switch would clobber the very limit being restored.
func ResetStackLimit(t *task.Task, sp uint64) error {
	traceEntry("reset_stack_limit", t.Name())
	return t.ResetStackLimit(sp)
}

// CmpType compares two values of td's shape and stores 1 in *result when
// the relation given by mode holds, 0 otherwise.
func CmpType(t *task.Task, result *int8, td *taskruntime.TypeDescriptor, subs []*taskruntime.TypeDescriptor, a, b []byte, mode shape.CmpMode) error {
	traceEntry("cmp_type", t.Name())
	return bridge.SwitchToNative(t, func() error {
		return shape.Compare(result, td, subs, a, b, mode)
	})
}

// LogType renders a value of td's shape and emits it at the given level.
func LogType(t *task.Task, td *taskruntime.TypeDescriptor, data []byte, level uint32) error {
	traceEntry("log_type", t.Name())
	return bridge.SwitchToNative(t, func() error {
		return shape.Log(td, data, level)
	})
}

// Personality forwards an unwinder callback to the platform personality
// routine, switching to the native stack only when the task is still on a
// managed segment.
func Personality(t *task.Task, platform unwind.PersonalityFunc, version int32, actions unwind.Action, class uint64, exc *unwind.Exception, ctx *unwind.Context) unwind.ReasonCode {
	traceEntry("personality", t.Name())
	return unwind.Personality(t, platform, version, actions, class, exc, ctx)
}
