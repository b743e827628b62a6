package taskruntime

// MaxBoxAlign is the largest body alignment a type descriptor may request
// for a task-local box.
const MaxBoxAlign = 8

// MaxBoxDebugSize bounds box body sizes checked by the debug validator.
// Larger boxes are not necessarily wrong, but in practice indicate a
// corrupted descriptor.
const MaxBoxDebugSize = 4096

// TypeDescriptor is immutable metadata describing a value's layout and the
// operations that apply to it. Descriptors are owned by compiled-code
// metadata; the runtime never allocates or frees them.
//
// A descriptor carries either glue routines (Drop, Cmp, Print) emitted for
// the type, or a structural shape (Kind plus Elems) interpreted by the
// shape package when no glue exists.
type TypeDescriptor struct {
	Name  string
	Size  uint32
	Align uint32
	Kind  Kind

	// Elems holds nested descriptors for aggregate shapes: record fields,
	// tuple slots, tag arms, the vec element. Nil for scalars.
	Elems []*TypeDescriptor

	// Param is the index into the sub-descriptor slice for KindParam shapes.
	Param int

	// Glue routines. Nil means "interpret the shape instead".
	Drop  func(body []byte)
	Cmp   func(a, b []byte) int
	Print func(body []byte) string
}

// Scalar returns a descriptor for a fixed-width primitive kind.
func Scalar(k Kind) *TypeDescriptor {
	size := k.ScalarSize()
	align := size
	if align > MaxBoxAlign {
		align = MaxBoxAlign
	}
	return &TypeDescriptor{Name: k.String(), Size: size, Align: align, Kind: k}
}

// Record returns a descriptor for a record with the given field descriptors.
// Field offsets follow natural alignment; total size is padded to the
// record's own alignment.
func Record(name string, fields ...*TypeDescriptor) *TypeDescriptor {
	td := &TypeDescriptor{Name: name, Kind: KindRecord, Elems: fields, Align: 1}
	var off uint32
	for _, f := range fields {
		off = AlignUp(off, f.Align)
		off += f.Size
		if f.Align > td.Align {
			td.Align = f.Align
		}
	}
	td.Size = AlignUp(off, td.Align)
	return td
}

// Param returns a descriptor resolved through the sub-descriptor slice at
// comparison/log time.
func Param(index int) *TypeDescriptor {
	return &TypeDescriptor{Name: "param", Kind: KindParam, Param: index}
}

// AlignUp rounds n up to the next multiple of align. align must be a power
// of two.
func AlignUp(n, align uint32) uint32 {
	if align <= 1 {
		return n
	}
	return (n + align - 1) &^ (align - 1)
}

// CollectHook is the cooperative collection trigger called before every
// task-local allocation. The scheduler binds it to the owning task; the
// allocator stays agnostic to how, or whether, cycles get reclaimed.
type CollectHook func()
