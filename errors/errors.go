package errors

import (
	"fmt"
	"strings"
)

// Phase indicates where in the boundary layer the error occurred
type Phase string

const (
	PhaseTask   Phase = "task"   // task lifecycle
	PhaseBridge Phase = "bridge" // managed/native stack switching
	PhaseAlloc  Phase = "alloc"  // task-local and exchange heaps
	PhaseStack  Phase = "stack"  // segmented stack growth/shrink
	PhaseBuffer Phase = "buffer" // growable buffer operations
	PhaseShape  Phase = "shape"  // structural compare/log interpreter
	PhaseUnwind Phase = "unwind" // personality forwarding
)

// Kind categorizes the error
type Kind string

const (
	KindExhausted    Kind = "exhausted"
	KindOutOfBounds  Kind = "out_of_bounds"
	KindInvalidInput Kind = "invalid_input"
	KindCorruptBox   Kind = "corrupt_box"
	KindMisaligned   Kind = "misaligned"
	KindCrossUnwind  Kind = "cross_unwind"
	KindNotFound     Kind = "not_found"
	KindLeak         Kind = "leak"
	KindUnsupported  Kind = "unsupported"
	KindTaskFailed   Kind = "task_failed"
)

// Error is the structured error type used throughout the runtime
type Error struct {
	Value  any
	Cause  error
	Phase  Phase
	Kind   Kind
	Task   string
	Shape  string
	Detail string
	Path   []string
}

// Error implements the error interface
func (e *Error) Error() string {
	var b strings.Builder

	b.WriteByte('[')
	b.WriteString(string(e.Phase))
	b.WriteString("] ")
	b.WriteString(string(e.Kind))

	if len(e.Path) > 0 {
		b.WriteString(" at ")
		b.WriteString(strings.Join(e.Path, "."))
	}

	if e.Task != "" {
		b.WriteString(" (task ")
		b.WriteString(e.Task)
		b.WriteByte(')')
	}

	if e.Shape != "" {
		b.WriteString(": shape ")
		b.WriteString(e.Shape)
	}

	if e.Detail != "" {
		if e.Shape != "" {
			b.WriteString(" - ")
		} else {
			b.WriteString(": ")
		}
		b.WriteString(e.Detail)
	}

	if e.Cause != nil {
		b.WriteString(" (caused by: ")
		b.WriteString(e.Cause.Error())
		b.WriteByte(')')
	}

	return b.String()
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Phase == t.Phase && e.Kind == t.Kind
	}
	return false
}

// Builder provides structured error construction
type Builder struct {
	err Error
}

// New creates a new error builder
func New(phase Phase, kind Kind) *Builder {
	return &Builder{
		err: Error{
			Phase: phase,
			Kind:  kind,
		},
	}
}

// Path sets the field path
func (b *Builder) Path(path ...string) *Builder {
	b.err.Path = path
	return b
}

// Task sets the owning task name
func (b *Builder) Task(name string) *Builder {
	b.err.Task = name
	return b
}

// Shape sets the shape/descriptor name
func (b *Builder) Shape(s string) *Builder {
	b.err.Shape = s
	return b
}

// Value sets the offending value
func (b *Builder) Value(v any) *Builder {
	b.err.Value = v
	return b
}

// Cause sets the underlying error
func (b *Builder) Cause(err error) *Builder {
	b.err.Cause = err
	return b
}

// Detail sets the human-readable detail message
func (b *Builder) Detail(msg string, args ...any) *Builder {
	if len(args) > 0 {
		b.err.Detail = fmt.Sprintf(msg, args...)
	} else {
		b.err.Detail = msg
	}
	return b
}

// Build returns the constructed error
func (b *Builder) Build() *Error {
	return &b.err
}

// Convenience constructors for common error patterns

// Exhausted creates an allocation failure error
func Exhausted(phase Phase, size uint32, what string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindExhausted,
		Detail: fmt.Sprintf("failed to allocate %d bytes for %s", size, what),
		Value:  size,
	}
}

// OutOfBounds creates an out of bounds error
func OutOfBounds(phase Phase, offset, length uint32) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindOutOfBounds,
		Detail: fmt.Sprintf("offset %#x out of bounds (heap size %d)", offset, length),
		Value:  offset,
	}
}

// CorruptBox creates a box invariant violation error
func CorruptBox(detail string, args ...any) *Error {
	return &Error{
		Phase:  PhaseAlloc,
		Kind:   KindCorruptBox,
		Detail: fmt.Sprintf(detail, args...),
	}
}

// Misaligned creates a stack alignment error
func Misaligned(phase Phase, sp uint64, align uint32) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindMisaligned,
		Detail: fmt.Sprintf("stack pointer %#x not aligned to %d", sp, align),
		Value:  sp,
	}
}

// CrossUnwind creates a cross-boundary unwind error. The condition is fatal
// wherever it is detected; the error value exists for diagnostics only.
func CrossUnwind(detail string, recovered any) *Error {
	return &Error{
		Phase:  PhaseBridge,
		Kind:   KindCrossUnwind,
		Detail: detail,
		Value:  recovered,
	}
}

// NotFound creates a not-found error
func NotFound(phase Phase, what string, value any) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindNotFound,
		Detail: fmt.Sprintf("%s %v not found", what, value),
		Value:  value,
	}
}

// Leak creates a leak report error for task teardown
func Leak(phase Phase, count int, what string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindLeak,
		Detail: fmt.Sprintf("%d %s still live at shutdown", count, what),
		Value:  count,
	}
}

// Unsupported creates an unsupported operation error
func Unsupported(phase Phase, what string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindUnsupported,
		Detail: what,
	}
}

// InvalidInput creates an invalid input error
func InvalidInput(phase Phase, detail string, args ...any) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidInput,
		Detail: fmt.Sprintf(detail, args...),
	}
}

// TaskFailed creates a task failure error carrying the failure site
func TaskFailed(task, expr, file string, line int) *Error {
	return &Error{
		Phase:  PhaseTask,
		Kind:   KindTaskFailed,
		Task:   task,
		Detail: fmt.Sprintf("fail '%s', %s:%d", expr, file, line),
	}
}

// Wrap wraps an existing error with additional context
func Wrap(phase Phase, kind Kind, cause error, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   kind,
		Detail: detail,
		Cause:  cause,
	}
}
