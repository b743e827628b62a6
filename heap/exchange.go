package heap

import (
	"encoding/binary"
	"sync"

	taskruntime "github.com/sable-lang/task-runtime"
	"github.com/sable-lang/task-runtime/errors"
)

// Block alignment and the reserved null offset. Offset 0 is never handed
// out, so a zero offset always means "no allocation".
const (
	exchangeAlign = 8
	exchangeBase  = exchangeAlign
)

// DefaultExchangeCapacity bounds the arena unless overridden.
const DefaultExchangeCapacity = 1 << 28

type span struct {
	off  uint32
	size uint32
}

// Exchange is the shared, cross-task heap: a linear arena handing out byte
// offsets with no ownership tracking. Objects here are intended for
// explicit, compiler-tracked transfer between tasks, so there is no
// reference counting and no collection hook.
//
// It is the only resource in this layer touched from multiple goroutines;
// every operation serializes on an internal mutex.
type Exchange struct {
	mu       sync.Mutex
	data     []byte
	blocks   map[uint32]uint32 // live block offset -> rounded size
	free     []span
	capacity uint32
}

// ExchangeOption configures an exchange heap.
type ExchangeOption func(*Exchange)

// WithCapacity caps the arena at n bytes. Allocations past the cap fail
// with an exhaustion error rather than growing.
func WithCapacity(n uint32) ExchangeOption {
	return func(e *Exchange) { e.capacity = n }
}

// NewExchange creates an empty exchange heap.
func NewExchange(opts ...ExchangeOption) *Exchange {
	e := &Exchange{
		data:     make([]byte, exchangeBase),
		blocks:   make(map[uint32]uint32),
		capacity: DefaultExchangeCapacity,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Malloc allocates n zero-filled bytes and returns the block offset.
func (e *Exchange) Malloc(n uint32) (uint32, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.malloc(n)
}

// Free returns a block to the heap. Freeing offset 0 is a no-op; freeing an
// unknown offset is an error.
func (e *Exchange) Free(off uint32) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.release(off)
}

// Realloc resizes the block at off, preserving content up to the smaller of
// the old and new sizes. The block may move; the returned offset supersedes
// off. Realloc(0, n) behaves like Malloc(n).
func (e *Exchange) Realloc(off, n uint32) (uint32, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if off == 0 {
		return e.malloc(n)
	}
	size, ok := e.blocks[off]
	if !ok {
		return 0, errors.NotFound(errors.PhaseAlloc, "exchange block", off)
	}
	rounded := taskruntime.AlignUp(n, exchangeAlign)
	if rounded <= size {
		return off, nil
	}

	moved, err := e.malloc(n)
	if err != nil {
		return 0, err
	}
	copy(e.data[moved:moved+size], e.data[off:off+size])
	if err := e.release(off); err != nil {
		return 0, err
	}
	return moved, nil
}

// Read copies length bytes starting at off.
func (e *Exchange) Read(off, length uint32) ([]byte, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.check(off, length); err != nil {
		return nil, err
	}
	out := make([]byte, length)
	copy(out, e.data[off:])
	return out, nil
}

// Write copies data into the heap starting at off.
func (e *Exchange) Write(off uint32, data []byte) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.check(off, uint32(len(data))); err != nil {
		return err
	}
	copy(e.data[off:], data)
	return nil
}

// ReadU32 reads a little-endian uint32 at off.
func (e *Exchange) ReadU32(off uint32) (uint32, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.check(off, 4); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(e.data[off:]), nil
}

// WriteU32 writes a little-endian uint32 at off.
func (e *Exchange) WriteU32(off, value uint32) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.check(off, 4); err != nil {
		return err
	}
	binary.LittleEndian.PutUint32(e.data[off:], value)
	return nil
}

// BlockSize returns the rounded size of the live block at off.
func (e *Exchange) BlockSize(off uint32) (uint32, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	size, ok := e.blocks[off]
	return size, ok
}

// Live returns the number of outstanding blocks.
func (e *Exchange) Live() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.blocks)
}

// Close verifies the heap is empty and releases the arena. Outstanding
// blocks are reported as a leak error.
func (e *Exchange) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if n := len(e.blocks); n > 0 {
		return errors.Leak(errors.PhaseAlloc, n, "exchange blocks")
	}
	e.data = nil
	e.free = nil
	return nil
}

// malloc and release run under e.mu.

func (e *Exchange) malloc(n uint32) (uint32, error) {
	size := taskruntime.AlignUp(n, exchangeAlign)
	if size == 0 {
		size = exchangeAlign
	}

	// First fit over the free list.
	for i, s := range e.free {
		if s.size < size {
			continue
		}
		off := s.off
		if rest := s.size - size; rest > 0 {
			e.free[i] = span{off: off + size, size: rest}
		} else {
			e.free = append(e.free[:i], e.free[i+1:]...)
		}
		clear(e.data[off : off+size])
		e.blocks[off] = size
		debugf("shared malloc(%d) = %#x (reused)", n, off)
		return off, nil
	}

	off := uint32(len(e.data))
	if uint64(off)+uint64(size) > uint64(e.capacity) {
		return 0, errors.Exhausted(errors.PhaseAlloc, n, "exchange heap")
	}
	e.data = append(e.data, make([]byte, size)...)
	e.blocks[off] = size
	debugf("shared malloc(%d) = %#x", n, off)
	return off, nil
}

func (e *Exchange) release(off uint32) error {
	if off == 0 {
		return nil
	}
	size, ok := e.blocks[off]
	if !ok {
		return errors.NotFound(errors.PhaseAlloc, "exchange block", off)
	}
	delete(e.blocks, off)
	e.coalesce(span{off: off, size: size})
	debugf("shared free(%#x)", off)
	return nil
}

// coalesce inserts a span into the free list, merging with any adjacent
// spans so the arena does not fragment into unusable slivers.
func (e *Exchange) coalesce(s span) {
	for i := 0; i < len(e.free); {
		f := e.free[i]
		switch {
		case f.off+f.size == s.off:
			s = span{off: f.off, size: f.size + s.size}
		case s.off+s.size == f.off:
			s = span{off: s.off, size: s.size + f.size}
		default:
			i++
			continue
		}
		e.free = append(e.free[:i], e.free[i+1:]...)
	}
	e.free = append(e.free, s)
}

func (e *Exchange) check(off, length uint32) error {
	end := uint64(off) + uint64(length)
	if off == 0 || end > uint64(len(e.data)) {
		return errors.OutOfBounds(errors.PhaseAlloc, off, uint32(len(e.data)))
	}
	return nil
}
