// Package buffer implements growable, capacity/fill-tracked byte sequences
// stored in the exchange heap.
//
// A buffer is an exchange-heap block holding an 8-byte header followed by
// inline data:
//
//	offset 0  fill   u32  logical length, including the terminator
//	offset 4  alloc  u32  data capacity
//	offset 8  data   [alloc]byte
//
// The invariant fill <= alloc always holds. Terminated buffers follow the
// shared-terminator convention: the last logical element is a sentinel, and
// concatenation counts the sentinel slot once rather than twice.
package buffer

import (
	"github.com/sable-lang/task-runtime/errors"
	"github.com/sable-lang/task-runtime/heap"
)

// HeaderSize is the byte size of the fill/alloc header.
const HeaderSize = 8

// New allocates a buffer holding data, with fill and alloc both set to
// len(data). Returns the buffer's exchange-heap offset.
func New(eh *heap.Exchange, data []byte) (uint32, error) {
	n := uint32(len(data))
	ref, err := eh.Malloc(HeaderSize + n)
	if err != nil {
		return 0, err
	}
	if err := writeHeader(eh, ref, n, n); err != nil {
		return 0, err
	}
	if err := eh.Write(ref+HeaderSize, data); err != nil {
		return 0, err
	}
	return ref, nil
}

// Fill returns the buffer's logical length.
func Fill(eh *heap.Exchange, ref uint32) (uint32, error) {
	return eh.ReadU32(ref)
}

// Cap returns the buffer's data capacity.
func Cap(eh *heap.Exchange, ref uint32) (uint32, error) {
	return eh.ReadU32(ref + 4)
}

// Bytes returns a copy of the buffer's filled data.
func Bytes(eh *heap.Exchange, ref uint32) ([]byte, error) {
	fill, err := Fill(eh, ref)
	if err != nil {
		return nil, err
	}
	return eh.Read(ref+HeaderSize, fill)
}

// Free releases the buffer's block.
func Free(eh *heap.Exchange, ref uint32) error {
	return eh.Free(ref)
}

// GrowTo ensures capacity of at least newSize, then sets fill to newSize.
// Capacity only ever grows; calling with newSize at or below the current
// capacity leaves capacity and content untouched, so the operation is
// idempotent. Newly exposed bytes between the old and new fill are
// unspecified and must be written by the caller.
//
// The block may move. *ref is updated in place.
func GrowTo(eh *heap.Exchange, ref *uint32, newSize uint32) error {
	if ref == nil {
		return errors.InvalidInput(errors.PhaseBuffer, "grow with nil buffer handle")
	}
	alloc, err := Cap(eh, *ref)
	if err != nil {
		return err
	}

	if newSize > alloc {
		// Grow geometrically so repeated one-element pushes stay cheap.
		next := alloc * 2
		if next < newSize {
			next = newSize
		}
		moved, err := eh.Realloc(*ref, HeaderSize+next)
		if err != nil {
			return err
		}
		*ref = moved
		alloc = next
	}
	return writeHeader(eh, *ref, newSize, alloc)
}

// Concat allocates a fresh buffer holding lhs and rhs joined under the
// shared-terminator convention: the result's fill is lhs.fill + rhs.fill - 1,
// with lhs contributing everything up to its terminator and rhs contributing
// all of its data including the terminator.
func Concat(eh *heap.Exchange, lhs, rhs uint32) (uint32, error) {
	lfill, err := Fill(eh, lhs)
	if err != nil {
		return 0, err
	}
	rfill, err := Fill(eh, rhs)
	if err != nil {
		return 0, err
	}
	if lfill == 0 || rfill == 0 {
		return 0, errors.InvalidInput(errors.PhaseBuffer,
			"concat operand missing terminator (fill %d, %d)", lfill, rfill)
	}

	fill := lfill + rfill - 1
	out, err := eh.Malloc(HeaderSize + fill)
	if err != nil {
		return 0, err
	}
	if err := concatInto(eh, out, lhs, rhs, lfill, rfill, fill); err != nil {
		// A failure here means an operand header was corrupt; don't leak
		// the output block on top of it.
		_ = eh.Free(out)
		return 0, err
	}
	return out, nil
}

func concatInto(eh *heap.Exchange, out, lhs, rhs, lfill, rfill, fill uint32) error {
	if err := writeHeader(eh, out, fill, fill); err != nil {
		return err
	}
	head, err := eh.Read(lhs+HeaderSize, lfill-1)
	if err != nil {
		return err
	}
	tail, err := eh.Read(rhs+HeaderSize, rfill)
	if err != nil {
		return err
	}
	if err := eh.Write(out+HeaderSize, head); err != nil {
		return err
	}
	return eh.Write(out+HeaderSize+lfill-1, tail)
}

func writeHeader(eh *heap.Exchange, ref, fill, alloc uint32) error {
	if fill > alloc {
		return errors.InvalidInput(errors.PhaseBuffer, "fill %d exceeds alloc %d", fill, alloc)
	}
	if err := eh.WriteU32(ref, fill); err != nil {
		return err
	}
	return eh.WriteU32(ref+4, alloc)
}
