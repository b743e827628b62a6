package heap

import (
	"fmt"
	"runtime"

	"go.uber.org/zap"

	taskruntime "github.com/sable-lang/task-runtime"
	"github.com/sable-lang/task-runtime/errors"
)

// Local is the reference-counted, task-local box heap. It is owned by
// exactly one task and requires no locking; the owning task's goroutine is
// the only caller.
//
// The allocator enforces no reference-count protocol itself. It hands out
// boxes with a zeroed count and reclaims whatever Free is given; counting is
// the business of generated code and the cooperative collector.
type Local struct {
	task     string
	hook     taskruntime.CollectHook
	entries  []*Box
	freeList []uint32
	origins  map[*Box]Origin
	tracking bool
	live     int
	liveSize uint64
}

// LocalOption configures a task-local heap.
type LocalOption func(*Local)

// WithCollectHook installs the cooperative collection trigger invoked before
// every allocation.
func WithCollectHook(h taskruntime.CollectHook) LocalOption {
	return func(l *Local) { l.hook = h }
}

// WithTracking enables allocation-origin tracking for leak diagnostics.
func WithTracking() LocalOption {
	return func(l *Local) { l.tracking = true }
}

// NewLocal creates a task-local heap for the named task.
func NewLocal(task string, opts ...LocalOption) *Local {
	l := &Local{
		task:     task,
		entries:  make([]*Box, 0, 64),
		freeList: make([]uint32, 0, 16),
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.tracking {
		l.origins = make(map[*Box]Origin)
	}
	return l
}

// Allocate returns a box for the given descriptor. The collection hook runs
// first and may reclaim unreachable boxes. The box body and reference count
// are zero-filled; the descriptor field is set.
func (l *Local) Allocate(td *taskruntime.TypeDescriptor) (*Box, error) {
	if td == nil {
		return nil, errors.InvalidInput(errors.PhaseAlloc, "allocate with nil type descriptor")
	}
	if td.Align > taskruntime.MaxBoxAlign {
		return nil, errors.New(errors.PhaseAlloc, errors.KindInvalidInput).
			Task(l.task).
			Shape(td.Name).
			Detail("descriptor alignment %d exceeds %d", td.Align, taskruntime.MaxBoxAlign).
			Build()
	}

	if l.hook != nil {
		l.hook()
	}

	box := l.take()
	if uint32(cap(box.Body)) >= td.Size {
		box.Body = box.Body[:td.Size]
		clear(box.Body)
	} else {
		box.Body = make([]byte, td.Size)
	}
	box.Ref = 0
	box.Desc = td
	box.live = true

	if l.tracking {
		if _, file, line, ok := runtime.Caller(1); ok {
			l.origins[box] = Origin{File: file, Line: line}
		}
	}

	l.live++
	l.liveSize += uint64(td.Size)
	debugf("malloc(%s) = box slot %d size %d", td.Name, box.slot, td.Size)
	return box, nil
}

// Free returns a box to the pool. The caller guarantees the box is not
// referenced elsewhere; no reference-count check happens here. Freeing nil
// is a no-op.
func (l *Local) Free(b *Box) {
	if b == nil {
		return
	}
	if !b.live {
		// Double free is undefined behavior; diagnose and carry on.
		Logger().Error("free of dead box", zap.String("task", l.task))
		return
	}
	if l.tracking {
		delete(l.origins, b)
	}
	debugf("free box slot %d", b.slot)
	l.live--
	l.liveSize -= uint64(len(b.Body))
	b.live = false
	b.Ref = 0
	b.Desc = nil
	l.freeList = append(l.freeList, b.slot)
}

// Live returns the number of currently allocated boxes.
func (l *Local) Live() int {
	return l.live
}

// LiveBytes returns the total body bytes of currently allocated boxes.
func (l *Local) LiveBytes() uint64 {
	return l.liveSize
}

// Leaks returns the allocation origins of boxes still live. Empty unless
// tracking is enabled.
func (l *Local) Leaks() []Origin {
	if !l.tracking {
		return nil
	}
	out := make([]Origin, 0, len(l.origins))
	for _, o := range l.origins {
		out = append(out, o)
	}
	return out
}

// Close verifies the heap is empty and invalidates it. Live boxes are
// reported as a leak error, with origins when tracking is on.
func (l *Local) Close() error {
	if l.live == 0 {
		l.entries = nil
		l.freeList = nil
		return nil
	}
	err := errors.Leak(errors.PhaseAlloc, l.live, "boxes")
	err.Task = l.task
	if l.tracking {
		for _, o := range l.origins {
			err.Path = append(err.Path, fmt.Sprintf("%s:%d", o.File, o.Line))
		}
	}
	return err
}

func (l *Local) take() *Box {
	if n := len(l.freeList); n > 0 {
		slot := l.freeList[n-1]
		l.freeList = l.freeList[:n-1]
		return l.entries[slot]
	}
	box := &Box{slot: uint32(len(l.entries))}
	l.entries = append(l.entries, box)
	return box
}
