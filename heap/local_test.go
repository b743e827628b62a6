package heap

import (
	"testing"

	"github.com/stretchr/testify/require"

	taskruntime "github.com/sable-lang/task-runtime"
	"github.com/sable-lang/task-runtime/errors"
)

func TestLocal_AllocateFree(t *testing.T) {
	l := NewLocal("test")
	td := taskruntime.Record("pair",
		taskruntime.Scalar(taskruntime.KindU64),
		taskruntime.Scalar(taskruntime.KindU64))

	box, err := l.Allocate(td)
	require.NoError(t, err)
	require.NotNil(t, box)
	require.Equal(t, uint32(0), box.Ref, "reference count is caller-initialized")
	require.Same(t, td, box.Desc)
	require.Len(t, box.Body, 16)
	for _, b := range box.Body {
		require.Zero(t, b, "body must be zero-filled")
	}
	require.Equal(t, 1, l.Live())
	require.Equal(t, uint64(16), l.LiveBytes())

	l.Free(box)
	require.Equal(t, 0, l.Live())
	require.Zero(t, l.LiveBytes())
	require.False(t, box.Live())
}

func TestLocal_CollectHookRunsBeforeAllocate(t *testing.T) {
	calls := 0
	l := NewLocal("test", WithCollectHook(func() { calls++ }))
	td := taskruntime.Scalar(taskruntime.KindU32)

	for i := 0; i < 3; i++ {
		box, err := l.Allocate(td)
		require.NoError(t, err)
		l.Free(box)
	}
	require.Equal(t, 3, calls)
}

func TestLocal_ReusedSlotIsZeroed(t *testing.T) {
	l := NewLocal("test")
	td := taskruntime.Scalar(taskruntime.KindU64)

	box, err := l.Allocate(td)
	require.NoError(t, err)
	box.Ref = 1
	copy(box.Body, []byte{0xde, 0xad, 0xbe, 0xef})
	l.Free(box)

	reused, err := l.Allocate(td)
	require.NoError(t, err)
	require.Same(t, box, reused, "freed slot should be reused")
	require.Equal(t, uint32(0), reused.Ref)
	for _, b := range reused.Body {
		require.Zero(t, b)
	}
}

func TestLocal_RefcountProtocol(t *testing.T) {
	// Drive a simple increment-on-share, free-at-zero protocol and check no
	// box is freed while its count is nonzero.
	l := NewLocal("test")
	td := taskruntime.Scalar(taskruntime.KindI64)

	share := func(b *Box) { b.Ref++ }
	drop := func(b *Box) {
		require.Greater(t, b.Ref, uint32(0))
		b.Ref--
		if b.Ref == 0 {
			l.Free(b)
		}
	}

	box, err := l.Allocate(td)
	require.NoError(t, err)
	share(box)
	share(box)
	drop(box)
	require.True(t, box.Live(), "box with nonzero count must stay live")
	drop(box)
	require.False(t, box.Live())
	require.Equal(t, 0, l.Live())
}

func TestLocal_NilDescriptor(t *testing.T) {
	l := NewLocal("test")
	_, err := l.Allocate(nil)
	require.ErrorIs(t, err, &errors.Error{Phase: errors.PhaseAlloc, Kind: errors.KindInvalidInput})
}

func TestLocal_OveralignedDescriptor(t *testing.T) {
	l := NewLocal("test")
	_, err := l.Allocate(&taskruntime.TypeDescriptor{Name: "wide", Size: 32, Align: 16})
	require.Error(t, err)
}

func TestLocal_TrackingReportsLeaks(t *testing.T) {
	l := NewLocal("test", WithTracking())
	td := taskruntime.Scalar(taskruntime.KindU8)

	box, err := l.Allocate(td)
	require.NoError(t, err)
	require.Len(t, l.Leaks(), 1)

	err = l.Close()
	require.ErrorIs(t, err, &errors.Error{Phase: errors.PhaseAlloc, Kind: errors.KindLeak})

	l.Free(box)
	require.Empty(t, l.Leaks())
}

func TestLocal_CloseClean(t *testing.T) {
	l := NewLocal("test")
	box, err := l.Allocate(taskruntime.Scalar(taskruntime.KindU8))
	require.NoError(t, err)
	l.Free(box)
	require.NoError(t, l.Close())
}
