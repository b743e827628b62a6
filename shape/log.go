package shape

import (
	"encoding/binary"
	"fmt"
	"math"
	"strings"

	"go.uber.org/zap"

	taskruntime "github.com/sable-lang/task-runtime"
	"github.com/sable-lang/task-runtime/errors"
)

// Verbosity levels for value logging, matching the levels generated code
// passes to log statements.
const (
	LevelError uint32 = iota
	LevelWarn
	LevelInfo
	LevelDebug
)

// Log renders the value body under the descriptor's shape and emits it at
// the given verbosity level.
func Log(td *taskruntime.TypeDescriptor, data []byte, level uint32) error {
	s, err := Format(td, nil, data)
	if err != nil {
		return err
	}
	msg := "log " + td.Name
	field := zap.String("value", s)
	switch level {
	case LevelError:
		Logger().Error(msg, field)
	case LevelWarn:
		Logger().Warn(msg, field)
	case LevelInfo:
		Logger().Info(msg, field)
	default:
		Logger().Debug(msg, field)
	}
	return nil
}

// Format renders a value body as human-readable text by walking the
// descriptor's shape. subs resolves KindParam nodes; it may be nil.
func Format(td *taskruntime.TypeDescriptor, subs []*taskruntime.TypeDescriptor, data []byte) (string, error) {
	if td == nil {
		return "", errors.InvalidInput(errors.PhaseShape, "format with nil descriptor")
	}
	var b strings.Builder
	if err := format(&b, td, subs, data, nil); err != nil {
		return "", err
	}
	return b.String(), nil
}

func format(b *strings.Builder, td *taskruntime.TypeDescriptor, subs []*taskruntime.TypeDescriptor, data []byte, path []string) error {
	if td.Print != nil {
		b.WriteString(td.Print(data))
		return nil
	}

	k := td.Kind
	if k.IsScalar() {
		return formatScalar(b, td, data, path)
	}

	switch k {
	case taskruntime.KindNil:
		b.WriteString("()")
		return nil

	case taskruntime.KindRecord, taskruntime.KindTup:
		opener, closer := "(", ")"
		if k == taskruntime.KindRecord {
			b.WriteString(td.Name)
			opener, closer = "{", "}"
		}
		b.WriteString(opener)
		var off uint32
		for i, f := range td.Elems {
			if i > 0 {
				b.WriteString(", ")
			}
			off = taskruntime.AlignUp(off, f.Align)
			fd, err := slice(data, off, f.Size, td, path)
			if err != nil {
				return err
			}
			if err := format(b, f, subs, fd, append(path, elemName(f, i))); err != nil {
				return err
			}
			off += f.Size
		}
		b.WriteString(closer)
		return nil

	case taskruntime.KindTag:
		disc, err := readU32(data, 0, td, path)
		if err != nil {
			return err
		}
		if int(disc) >= len(td.Elems) {
			return shapeErr(td, path, "discriminant %d out of range (%d arms)", disc, len(td.Elems))
		}
		arm := td.Elems[disc]
		b.WriteString(td.Name)
		b.WriteByte('.')
		b.WriteString(arm.Name)
		if arm.Size > 0 {
			armOff := taskruntime.AlignUp(4, arm.Align)
			ad, err := slice(data, armOff, arm.Size, td, path)
			if err != nil {
				return err
			}
			b.WriteByte('(')
			if err := format(b, arm, subs, ad, append(path, arm.Name)); err != nil {
				return err
			}
			b.WriteByte(')')
		}
		return nil

	case taskruntime.KindParam:
		if td.Param < 0 || td.Param >= len(subs) {
			return shapeErr(td, path, "type parameter %d unresolved (%d sub-descriptors)", td.Param, len(subs))
		}
		return format(b, subs[td.Param], subs, data, path)

	default:
		return errors.New(errors.PhaseShape, errors.KindUnsupported).
			Shape(k.String()).
			Path(path...).
			Detail("no structural printer for this shape").
			Build()
	}
}

func formatScalar(b *strings.Builder, td *taskruntime.TypeDescriptor, data []byte, path []string) error {
	size := td.Kind.ScalarSize()
	raw, err := slice(data, 0, size, td, path)
	if err != nil {
		return err
	}

	switch td.Kind {
	case taskruntime.KindBool:
		if raw[0] != 0 {
			b.WriteString("true")
		} else {
			b.WriteString("false")
		}
	case taskruntime.KindChar:
		fmt.Fprintf(b, "%q", rune(binary.LittleEndian.Uint32(raw)))
	case taskruntime.KindF32:
		fmt.Fprintf(b, "%g", math.Float32frombits(binary.LittleEndian.Uint32(raw)))
	case taskruntime.KindF64:
		fmt.Fprintf(b, "%g", math.Float64frombits(binary.LittleEndian.Uint64(raw)))
	default:
		u := readUint(raw)
		if td.Kind.Signed() {
			fmt.Fprintf(b, "%d", signExtend(u, size))
		} else {
			fmt.Fprintf(b, "%d", u)
		}
	}
	return nil
}
