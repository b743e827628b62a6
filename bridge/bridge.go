package bridge

import (
	"go.uber.org/zap"

	"github.com/sable-lang/task-runtime/task"
)

// NativeFunc is a unit of native code invoked across the stack boundary.
// Results flow back through the closed-over argument record; the error is
// an explicit status, never an unwind. Native code that cannot express its
// failure as an error value must not be called through the bridge.
type NativeFunc func() error

const spAlign = 16

// SwitchToNative runs fn on the native stack. It verifies stack alignment,
// disables overflow checks for the duration of the crossing, and on the way
// out recomputes the guard from the task's active segment whether or not fn
// returns normally. Recomputing rather than replaying a saved value matters:
// fn may have grown or shrunk the segment chain, and the guard must track
// whichever segment is active on return.
//
// If fn panics, the unwind would have to cross from native frames back into
// managed ones; the two stacks use incompatible unwind metadata, so this is
// unsupported rather than unimplemented. The bridge logs and aborts.
func SwitchToNative(t *task.Task, fn NativeFunc) error {
	checkStackAlignment(t)

	wasNative := t.OnNativeStack()
	t.SetOnNative(true)
	// Native frames, including the morestack-style shim prologues, must see
	// "enough stack": a zero guard disables the fast-path check.
	t.PublishLimit(0)

	var err error
	defer func() {
		t.SetOnNative(wasNative)
		if wasNative {
			t.PublishLimit(0)
		} else {
			t.RecordStackLimit()
		}
		if r := recover(); r != nil {
			Logger().Fatal("native code threw an exception across the stack boundary",
				zap.String("task", t.Name()),
				zap.Any("panic", r))
		}
	}()
	err = fn()
	return err
}

// SwitchToManaged is the inverse: starting from the native stack, it runs
// fn on the managed stack, re-enabling the guard for the duration. This is
// the reentry path used when native code calls back into managed code.
//
// A panic out of fn means managed code failed after reentering the managed
// stack; unwinding back through the native frames below it cannot work, so
// the bridge logs and aborts.
func SwitchToManaged(t *task.Task, fn NativeFunc) error {
	// The crossing into native code disabled the guard; restore it for the
	// managed frames about to run.
	wasNative := t.OnNativeStack()
	t.SetOnNative(false)
	if err := t.ResetStackLimit(t.StackPointer()); err != nil {
		Logger().Fatal("no live segment for managed reentry",
			zap.String("task", t.Name()),
			zap.Error(err))
	}

	var err error
	defer func() {
		t.SetOnNative(wasNative)
		t.PublishLimit(0)
		if r := recover(); r != nil {
			Logger().Fatal("task failed after reentering the managed stack",
				zap.String("task", t.Name()),
				zap.Any("panic", r))
		}
	}()
	err = fn()
	return err
}

// checkStackAlignment asserts the published stack pointer meets the native
// ABI requirement. Upcalls begin on the managed stack and happen often
// enough to catch most stack bugs, including at the start of landing pads.
func checkStackAlignment(t *task.Task) {
	if sp := t.StackPointer(); sp%spAlign != 0 {
		Logger().Fatal("misaligned stack pointer at boundary",
			zap.String("task", t.Name()),
			zap.Uint64("sp", sp))
	}
}
