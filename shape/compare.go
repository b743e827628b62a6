package shape

import (
	"encoding/binary"
	"math"
	"strconv"

	taskruntime "github.com/sable-lang/task-runtime"
	"github.com/sable-lang/task-runtime/errors"
)

// CmpMode selects the comparison a caller wants out of the interpreter.
type CmpMode uint8

const (
	CmpEq CmpMode = iota
	CmpLt
	CmpLe
)

func (m CmpMode) String() string {
	switch m {
	case CmpEq:
		return "eq"
	case CmpLt:
		return "lt"
	case CmpLe:
		return "le"
	default:
		return "unknown"
	}
}

// Compare walks the descriptor's shape over the two value bodies and writes
// the comparison outcome (1 true, 0 false) to result. subs resolves
// KindParam nodes for generic types; it may be nil for concrete shapes.
func Compare(result *int8, td *taskruntime.TypeDescriptor, subs []*taskruntime.TypeDescriptor, a, b []byte, mode CmpMode) error {
	if result == nil {
		return errors.InvalidInput(errors.PhaseShape, "compare with nil result")
	}
	if td == nil {
		return errors.InvalidInput(errors.PhaseShape, "compare with nil descriptor")
	}

	c, err := cmp(td, subs, a, b, nil)
	if err != nil {
		return err
	}
	var out bool
	switch mode {
	case CmpEq:
		out = c == 0
	case CmpLt:
		out = c < 0
	case CmpLe:
		out = c <= 0
	default:
		return errors.InvalidInput(errors.PhaseShape, "unknown comparison mode %d", mode)
	}
	if out {
		*result = 1
	} else {
		*result = 0
	}
	return nil
}

func cmp(td *taskruntime.TypeDescriptor, subs []*taskruntime.TypeDescriptor, a, b []byte, path []string) (int, error) {
	if td.Cmp != nil {
		return td.Cmp(a, b), nil
	}

	k := td.Kind
	if k.IsScalar() {
		return cmpScalar(td, a, b, path)
	}

	switch k {
	case taskruntime.KindNil:
		return 0, nil

	case taskruntime.KindRecord, taskruntime.KindTup:
		var off uint32
		for i, f := range td.Elems {
			off = taskruntime.AlignUp(off, f.Align)
			fa, err := slice(a, off, f.Size, td, path)
			if err != nil {
				return 0, err
			}
			fb, err := slice(b, off, f.Size, td, path)
			if err != nil {
				return 0, err
			}
			c, err := cmp(f, subs, fa, fb, append(path, elemName(f, i)))
			if err != nil || c != 0 {
				return c, err
			}
			off += f.Size
		}
		return 0, nil

	case taskruntime.KindTag:
		da, err := readU32(a, 0, td, path)
		if err != nil {
			return 0, err
		}
		db, err := readU32(b, 0, td, path)
		if err != nil {
			return 0, err
		}
		if da != db {
			return cmpU64(uint64(da), uint64(db)), nil
		}
		if int(da) >= len(td.Elems) {
			return 0, shapeErr(td, path, "discriminant %d out of range (%d arms)", da, len(td.Elems))
		}
		arm := td.Elems[da]
		armOff := taskruntime.AlignUp(4, arm.Align)
		aa, err := slice(a, armOff, arm.Size, td, path)
		if err != nil {
			return 0, err
		}
		ab, err := slice(b, armOff, arm.Size, td, path)
		if err != nil {
			return 0, err
		}
		return cmp(arm, subs, aa, ab, append(path, arm.Name))

	case taskruntime.KindParam:
		if td.Param < 0 || td.Param >= len(subs) {
			return 0, shapeErr(td, path, "type parameter %d unresolved (%d sub-descriptors)", td.Param, len(subs))
		}
		return cmp(subs[td.Param], subs, a, b, path)

	default:
		// Box, vec, str and fn bodies hold heap references; structural
		// comparison of those goes through their glue routines.
		return 0, errors.New(errors.PhaseShape, errors.KindUnsupported).
			Shape(k.String()).
			Path(path...).
			Detail("no structural comparison for this shape").
			Build()
	}
}

func cmpScalar(td *taskruntime.TypeDescriptor, a, b []byte, path []string) (int, error) {
	size := td.Kind.ScalarSize()
	ba, err := slice(a, 0, size, td, path)
	if err != nil {
		return 0, err
	}
	bb, err := slice(b, 0, size, td, path)
	if err != nil {
		return 0, err
	}

	switch td.Kind {
	case taskruntime.KindF32:
		return cmpF64(float64(math.Float32frombits(binary.LittleEndian.Uint32(ba))),
			float64(math.Float32frombits(binary.LittleEndian.Uint32(bb)))), nil
	case taskruntime.KindF64:
		return cmpF64(math.Float64frombits(binary.LittleEndian.Uint64(ba)),
			math.Float64frombits(binary.LittleEndian.Uint64(bb))), nil
	}

	ua, ub := readUint(ba), readUint(bb)
	if td.Kind.Signed() {
		return cmpI64(signExtend(ua, size), signExtend(ub, size)), nil
	}
	return cmpU64(ua, ub), nil
}

func readUint(b []byte) uint64 {
	switch len(b) {
	case 1:
		return uint64(b[0])
	case 2:
		return uint64(binary.LittleEndian.Uint16(b))
	case 4:
		return uint64(binary.LittleEndian.Uint32(b))
	default:
		return binary.LittleEndian.Uint64(b)
	}
}

func signExtend(u uint64, size uint32) int64 {
	shift := 64 - size*8
	return int64(u<<shift) >> shift
}

func cmpU64(a, b uint64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func cmpI64(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func cmpF64(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func slice(data []byte, off, size uint32, td *taskruntime.TypeDescriptor, path []string) ([]byte, error) {
	if uint64(off)+uint64(size) > uint64(len(data)) {
		return nil, shapeErr(td, path, "body truncated: need %d bytes at offset %d, have %d", size, off, len(data))
	}
	return data[off : off+size], nil
}

func readU32(data []byte, off uint32, td *taskruntime.TypeDescriptor, path []string) (uint32, error) {
	b, err := slice(data, off, 4, td, path)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

func shapeErr(td *taskruntime.TypeDescriptor, path []string, detail string, args ...any) *errors.Error {
	return errors.New(errors.PhaseShape, errors.KindInvalidInput).
		Shape(td.Name).
		Path(path...).
		Detail(detail, args...).
		Build()
}

func elemName(f *taskruntime.TypeDescriptor, i int) string {
	if f.Name != "" {
		return f.Name
	}
	return "elem" + strconv.Itoa(i)
}
