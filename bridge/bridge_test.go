package bridge

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"

	"github.com/sable-lang/task-runtime/heap"
	"github.com/sable-lang/task-runtime/task"
)

func withPanicOnFatal(t *testing.T) {
	t.Helper()
	prev := Logger()
	SetLogger(zaptest.NewLogger(t, zaptest.WrapOptions(zap.WithFatalHook(zapcore.WriteThenPanic))))
	t.Cleanup(func() { SetLogger(prev) })
}

func newTask(t *testing.T) *task.Task {
	t.Helper()
	tk := task.New("test", heap.NewExchange())
	t.Cleanup(func() {
		if err := tk.Shutdown(); err != nil {
			t.Errorf("shutdown: %v", err)
		}
	})
	return tk
}

func TestSwitchToNative_GuardSaveRestore(t *testing.T) {
	tk := newTask(t)
	before := tk.StackLimit()
	require.NotZero(t, before)

	err := SwitchToNative(tk, func() error {
		require.True(t, tk.OnNativeStack())
		require.Zero(t, tk.StackLimit(), "guard must be disabled on the native stack")
		return nil
	})
	require.NoError(t, err)
	require.False(t, tk.OnNativeStack())
	require.Equal(t, before, tk.StackLimit())
}

func TestSwitchToNative_RestoresGuardOnError(t *testing.T) {
	tk := newTask(t)
	before := tk.StackLimit()
	fail := errors.New("native status")

	err := SwitchToNative(tk, func() error { return fail })
	require.ErrorIs(t, err, fail)
	require.Equal(t, before, tk.StackLimit(), "restore must happen on the error path too")
	require.False(t, tk.OnNativeStack())
}

func TestSwitchPair_GuardUnchanged(t *testing.T) {
	tk := newTask(t)
	before := tk.StackLimit()

	err := SwitchToNative(tk, func() error {
		return SwitchToManaged(tk, func() error {
			require.False(t, tk.OnNativeStack())
			require.Equal(t, before, tk.StackLimit(),
				"managed reentry must see the segment guard again")
			return nil
		})
	})
	require.NoError(t, err)
	require.Equal(t, before, tk.StackLimit())
	require.False(t, tk.OnNativeStack())
}

func TestSwitchToNative_NestedCrossings(t *testing.T) {
	tk := newTask(t)
	before := tk.StackLimit()

	err := SwitchToNative(tk, func() error {
		return SwitchToManaged(tk, func() error {
			// Managed code performing another upcall while already one
			// crossing deep.
			return SwitchToNative(tk, func() error {
				require.True(t, tk.OnNativeStack())
				return nil
			})
		})
	})
	require.NoError(t, err)
	require.Equal(t, before, tk.StackLimit())
	require.False(t, tk.OnNativeStack())
}

func TestSwitchToNative_GuardTracksStackGrowth(t *testing.T) {
	tk := newTask(t)
	before := tk.StackLimit()

	// The crossing must not replay the pre-crossing guard over a segment
	// pushed by the bridged code: on return the published limit belongs to
	// the new segment.
	err := SwitchToNative(tk, func() error {
		_, err := tk.NewStack(8192, nil)
		return err
	})
	require.NoError(t, err)
	require.NotEqual(t, before, tk.StackLimit())
	require.Equal(t, tk.Segment().Base()+task.RedZone, tk.StackLimit())

	err = SwitchToNative(tk, func() error {
		return tk.DelStack()
	})
	require.NoError(t, err)
	require.Equal(t, before, tk.StackLimit())
}

func TestSwitchToNative_PanicAborts(t *testing.T) {
	withPanicOnFatal(t)
	tk := newTask(t)

	require.Panics(t, func() {
		_ = SwitchToNative(tk, func() error {
			panic("unwind from native code")
		})
	})
	// The abort fires after guard restore, so even the fatal path leaves
	// the task's published state consistent for the crash report.
	require.NotZero(t, tk.StackLimit())
}

func TestSwitchToManaged_PanicAborts(t *testing.T) {
	withPanicOnFatal(t)
	tk := newTask(t)

	require.Panics(t, func() {
		_ = SwitchToNative(tk, func() error {
			return SwitchToManaged(tk, func() error {
				panic("managed failure after reentry")
			})
		})
	})
}

func TestSwitchToNative_MisalignedStackAborts(t *testing.T) {
	withPanicOnFatal(t)
	tk := newTask(t)
	tk.SetStackPointer(tk.StackPointer() + 3)

	require.Panics(t, func() {
		_ = SwitchToNative(tk, func() error { return nil })
	})
}
