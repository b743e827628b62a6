package task

import (
	"sync/atomic"

	"go.uber.org/zap"

	taskruntime "github.com/sable-lang/task-runtime"
	"github.com/sable-lang/task-runtime/errors"
)

const (
	// MinStackSize is the smallest segment handed out.
	MinStackSize = 4096

	// RedZone is the guard distance above a segment's base. The published
	// stack-limit guard sits RedZone bytes into the segment so prologue
	// checks trip before the real bottom.
	RedZone = 128

	stackAlign = 16
)

// Segment is one contiguous region of the managed stack. Segments form a
// strict LIFO chain per task; exactly one is active. Bases are synthetic
// addresses so guard values and stack pointers order like real pointers
// while the backing store is owned memory.
type Segment struct {
	base uint64
	mem  []byte
	prev *Segment

	// savedSP is the stack pointer published before this segment was
	// pushed, restored when it is popped.
	savedSP uint64
}

// Base returns the segment's synthetic base address.
func (s *Segment) Base() uint64 { return s.base }

// Size returns the segment size in bytes.
func (s *Segment) Size() uint32 { return uint32(len(s.mem)) }

// contains reports whether the synthetic address falls inside the segment.
func (s *Segment) contains(addr uint64) bool {
	return addr >= s.base && addr <= s.base+uint64(len(s.mem))
}

// guard returns the limit value to publish while this segment is active.
func (s *Segment) guard() uint64 {
	return s.base + RedZone
}

// Synthetic address space for segments. Bases are spaced so segments never
// overlap and stay 16-aligned.
var nextSegBase atomic.Uint64

func init() {
	nextSegBase.Store(1 << 20)
}

func allocSegBase(size uint32) uint64 {
	span := uint64(taskruntime.AlignUp(size+stackAlign, stackAlign))
	return nextSegBase.Add(span) - span
}

// Segment returns the active stack segment.
func (t *Task) Segment() *Segment { return t.seg }

// NewStack pushes a fresh stack segment of at least size bytes, copies the
// args blob onto its top so the about-to-run code finds its arguments at
// the returned stack pointer, links the segment behind the current one, and
// publishes the new stack-limit guard. Returns the new stack pointer.
//
// Grow/shrink pairs must nest strictly; that is a caller contract enforced
// by the code generator, not checked here.
func (t *Task) NewStack(size uint32, args []byte) (uint64, error) {
	if len(args) > int(size) {
		return 0, errors.InvalidInput(errors.PhaseStack,
			"args blob (%d bytes) larger than requested segment (%d)", len(args), size)
	}
	segSize := taskruntime.AlignUp(size+uint32(len(args))+RedZone, stackAlign)
	if segSize < MinStackSize {
		segSize = MinStackSize
	}

	seg := &Segment{
		base:    allocSegBase(segSize),
		mem:     make([]byte, segSize),
		prev:    t.seg,
		savedSP: t.sp,
	}

	// Arguments land at the top, at an aligned stack pointer.
	spOff := (segSize - uint32(len(args))) &^ (stackAlign - 1)
	copy(seg.mem[spOff:], args)

	t.seg = seg
	t.sp = seg.base + uint64(spOff)
	t.limit = seg.guard()

	Logger().Debug("new stack segment",
		zap.String("task", t.name),
		zap.Uint64("base", seg.base),
		zap.Uint32("size", segSize),
		zap.Uint64("sp", t.sp))
	return t.sp, nil
}

// DelStack pops the active segment, frees it, and restores the previous
// segment's stack pointer and guard. The guard is recomputed from the
// restored segment rather than replayed from a snapshot: a snapshot taken
// mid-crossing would hold the disabled (zero) guard.
func (t *Task) DelStack() error {
	seg := t.seg
	if seg == nil {
		return errors.InvalidInput(errors.PhaseStack, "segment chain underflow")
	}
	t.seg = seg.prev
	t.sp = seg.savedSP
	t.RecordStackLimit()
	seg.mem = nil
	seg.prev = nil

	Logger().Debug("del stack segment",
		zap.String("task", t.name),
		zap.Uint64("base", seg.base))
	return nil
}

// RecordStackLimit republishes the active segment's guard, or zero when no
// segment is live. The bridge calls this after every return to the managed
// stack so the published limit always tracks the segment that is actually
// executing, whatever the bridged code did to the chain.
func (t *Task) RecordStackLimit() {
	if t.seg != nil {
		t.limit = t.seg.guard()
		return
	}
	t.limit = 0
}

// ResetStackLimit recomputes the guard from the live stack pointer and
// republishes it. Landing pads call this after returning from native code
// so subsequent guard checks see the managed stack again. It must run on
// the managed stack: the stack pointer it measures has to be the real one.
func (t *Task) ResetStackLimit(sp uint64) error {
	for seg := t.seg; seg != nil; seg = seg.prev {
		if seg.contains(sp) {
			t.sp = sp
			t.limit = seg.guard()
			return nil
		}
	}
	return errors.NotFound(errors.PhaseStack, "segment containing stack pointer", sp)
}

// SegmentDepth returns the number of segments in the chain.
func (t *Task) SegmentDepth() int {
	n := 0
	for seg := t.seg; seg != nil; seg = seg.prev {
		n++
	}
	return n
}
