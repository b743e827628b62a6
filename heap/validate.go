package heap

import (
	"go.uber.org/zap"

	taskruntime "github.com/sable-lang/task-runtime"
)

// Validate asserts the box header invariants: reference count above zero,
// non-nil descriptor, alignment within the box limit, and size within the
// debug bound. It exists to catch use-after-free and corruption during
// development; a violation is fatal, not recoverable. Nil is a no-op.
//
// Generated code inserts validate calls when built with box checking; see
// the compiler's codegen options.
func Validate(b *Box) {
	if b == nil {
		return
	}
	if !b.live {
		fatalBox(b, "validate of dead box")
	}
	if b.Ref == 0 {
		fatalBox(b, "reference count is zero")
	}
	if b.Desc == nil {
		fatalBox(b, "nil type descriptor")
	}
	if b.Desc.Align > taskruntime.MaxBoxAlign {
		fatalBox(b, "descriptor alignment out of range")
	}
	// Might not really be true for large user types, but in practice a size
	// past this bound means the descriptor pointer is garbage.
	if b.Desc.Size > taskruntime.MaxBoxDebugSize {
		fatalBox(b, "descriptor size out of range")
	}
}

func fatalBox(b *Box, msg string) {
	fields := []zap.Field{zap.Uint32("slot", b.slot), zap.Uint32("ref", b.Ref)}
	if b.Desc != nil {
		fields = append(fields,
			zap.String("shape", b.Desc.Name),
			zap.Uint32("size", b.Desc.Size),
			zap.Uint32("align", b.Desc.Align),
		)
	}
	Logger().Fatal("box validation failed: "+msg, fields...)
}
