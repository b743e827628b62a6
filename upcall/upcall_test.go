package upcall

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	taskruntime "github.com/sable-lang/task-runtime"
	"github.com/sable-lang/task-runtime/buffer"
	"github.com/sable-lang/task-runtime/errors"
	"github.com/sable-lang/task-runtime/heap"
	"github.com/sable-lang/task-runtime/shape"
	"github.com/sable-lang/task-runtime/task"
	"github.com/sable-lang/task-runtime/unwind"
)

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

func TestMallocValidateFree(t *testing.T) {
	tk := newTask(t)
	guard := tk.StackLimit()

	td := &taskruntime.TypeDescriptor{
		Name: "pair", Size: 16, Align: 8, Kind: taskruntime.KindRecord,
	}
	box, err := Malloc(tk, td)
	require.NoError(t, err)
	require.Len(t, box.Body, 16)
	for _, b := range box.Body {
		require.Zero(t, b, "fresh boxes are zero-filled")
	}

	box.Ref = 1
	ValidateBox(box)

	require.NoError(t, Free(tk, box))
	require.Zero(t, tk.Boxed().Live())
	require.Equal(t, guard, tk.StackLimit(), "guard unchanged across the sequence")
}

func TestMalloc_NilDescriptor(t *testing.T) {
	tk := newTask(t)
	_, err := Malloc(tk, nil)
	require.Error(t, err)
}

func TestFail_MarksTaskFailed(t *testing.T) {
	tk := newTask(t)

	err := Fail(tk, "x > 0", "main.sb", 42)
	require.Error(t, err)
	require.True(t, tk.Failed())

	var re *errors.Error
	require.ErrorAs(t, err, &re)
	require.Equal(t, errors.PhaseTask, re.Phase)
	require.Equal(t, errors.KindTaskFailed, re.Kind)

	// Failing twice is harmless.
	_ = Fail(tk, "x > 0", "main.sb", 42)
	require.True(t, tk.Failed())
}

func TestFail_LogMessage(t *testing.T) {
	core, logs := observer.New(zapcore.ErrorLevel)
	prev := Logger()
	SetLogger(zap.New(core))
	t.Cleanup(func() { SetLogger(prev) })

	tk := newTask(t)
	_ = Fail(tk, "len(v) > 0", "lib/core.sb", 17)

	entries := logs.All()
	require.Len(t, entries, 1)
	require.Equal(t, "upcall fail 'len(v) > 0', lib/core.sb:17", entries[0].Message)
}

func TestSharedMallocFree(t *testing.T) {
	tk := newTask(t)

	off, err := SharedMalloc(tk, 64)
	require.NoError(t, err)
	require.NotZero(t, off)

	require.NoError(t, tk.Kernel().Write(off, []byte("payload")))
	got, err := tk.Kernel().Read(off, 7)
	require.NoError(t, err)
	require.Equal(t, []byte("payload"), got)

	require.NoError(t, SharedFree(tk, off))
	require.NoError(t, SharedFree(tk, 0), "freeing the null offset is a no-op")
}

func TestSharedRealloc_PreservesPrefix(t *testing.T) {
	tk := newTask(t)

	off, err := SharedMalloc(tk, 8)
	require.NoError(t, err)
	require.NoError(t, tk.Kernel().Write(off, []byte("12345678")))

	moved, err := SharedRealloc(tk, off, 256)
	require.NoError(t, err)
	got, err := tk.Kernel().Read(moved, 8)
	require.NoError(t, err)
	require.Equal(t, []byte("12345678"), got)

	require.NoError(t, SharedFree(tk, moved))
}

func TestVecGrow(t *testing.T) {
	tk := newTask(t)

	ref, err := buffer.New(tk.Kernel(), []byte{1, 2, 3, 4})
	require.NoError(t, err)

	require.NoError(t, VecGrow(tk, &ref, 10))

	fill, err := buffer.Fill(tk.Kernel(), ref)
	require.NoError(t, err)
	require.Equal(t, uint32(10), fill)

	data, err := buffer.Bytes(tk.Kernel(), ref)
	require.NoError(t, err)
	require.Equal(t, []byte{1, 2, 3, 4}, data[:4], "existing elements survive the move")

	// Growing within capacity is idempotent.
	before := ref
	require.NoError(t, VecGrow(tk, &ref, 10))
	require.Equal(t, before, ref)

	require.NoError(t, buffer.Free(tk.Kernel(), ref))
}

func TestStrConcat(t *testing.T) {
	tk := newTask(t)

	lhs, err := buffer.New(tk.Kernel(), []byte("abc\x00"))
	require.NoError(t, err)
	rhs, err := buffer.New(tk.Kernel(), []byte("de\x00"))
	require.NoError(t, err)

	out, err := StrConcat(tk, lhs, rhs)
	require.NoError(t, err)

	fill, err := buffer.Fill(tk.Kernel(), out)
	require.NoError(t, err)
	require.Equal(t, uint32(6), fill, "one terminator is shared, not doubled")

	data, err := buffer.Bytes(tk.Kernel(), out)
	require.NoError(t, err)
	require.Equal(t, []byte("abcde\x00"), data)

	for _, ref := range []uint32{lhs, rhs, out} {
		require.NoError(t, buffer.Free(tk.Kernel(), ref))
	}
}

func TestNewStackDelStack(t *testing.T) {
	tk := newTask(t)
	guard := tk.StackLimit()
	depth := tk.SegmentDepth()

	args := []byte{9, 8, 7, 6}
	sp, err := NewStack(tk, 4096, args)
	require.NoError(t, err)
	require.Zero(t, sp%16)
	require.Equal(t, depth+1, tk.SegmentDepth())
	require.Equal(t, tk.Segment().Base()+task.RedZone, tk.StackLimit(),
		"published guard belongs to the new segment")

	require.NoError(t, DelStack(tk))
	require.Equal(t, depth, tk.SegmentDepth())
	require.Equal(t, guard, tk.StackLimit(), "popping restores the previous guard")
}

func TestNewStackDelStack_NestedGuards(t *testing.T) {
	tk := newTask(t)

	guards := []uint64{tk.StackLimit()}
	for i := 0; i < 3; i++ {
		_, err := NewStack(tk, 4096, nil)
		require.NoError(t, err)
		require.Equal(t, tk.Segment().Base()+task.RedZone, tk.StackLimit())
		guards = append(guards, tk.StackLimit())
	}

	for i := 3; i > 0; i-- {
		require.NoError(t, DelStack(tk))
		require.Equal(t, guards[i-1], tk.StackLimit(),
			"guard after shrink equals the guard before the matching grow")
	}
}

func TestResetStackLimit(t *testing.T) {
	tk := newTask(t)
	guard := tk.StackLimit()

	// Simulate the state right after returning to the managed stack: the
	// crossing disabled the guard and the republish has not happened yet.
	tk.PublishLimit(0)
	require.NoError(t, ResetStackLimit(tk, tk.StackPointer()))
	require.Equal(t, guard, tk.StackLimit())

	err := ResetStackLimit(tk, 3)
	require.Error(t, err, "pointer outside every segment")
}

func TestCmpType(t *testing.T) {
	tk := newTask(t)
	td := taskruntime.Scalar(taskruntime.KindI32)

	var result int8
	a := []byte{0xFE, 0xFF, 0xFF, 0xFF} // -2
	b := []byte{0x01, 0x00, 0x00, 0x00} // 1

	require.NoError(t, CmpType(tk, &result, td, nil, a, b, shape.CmpLt))
	require.Equal(t, int8(1), result)

	require.NoError(t, CmpType(tk, &result, td, nil, a, b, shape.CmpEq))
	require.Equal(t, int8(0), result)
}

func TestLogType(t *testing.T) {
	tk := newTask(t)
	td := taskruntime.Scalar(taskruntime.KindU16)

	require.NoError(t, LogType(tk, td, []byte{0x39, 0x05}, shape.LevelInfo))
}

func TestPersonality_RoutesThroughBridge(t *testing.T) {
	tk := newTask(t)
	guard := tk.StackLimit()

	exc := &unwind.Exception{Class: 0x53_42_4C_41_4E_47_00_00}
	called := false
	platform := func(version int32, actions unwind.Action, class uint64, got *unwind.Exception, ctx *unwind.Context) unwind.ReasonCode {
		called = true
		require.True(t, tk.OnNativeStack())
		require.Same(t, exc, got)
		return unwind.ContinueUnwind
	}

	rc := Personality(tk, platform, 1, unwind.ActionSearchPhase, exc.Class, exc, &unwind.Context{})
	require.True(t, called)
	require.Equal(t, unwind.ContinueUnwind, rc)
	require.Equal(t, guard, tk.StackLimit())
}
