// Package errors provides structured error types for the task runtime.
//
// Errors are categorized by Phase (where the error occurred) and Kind (error
// category). The Error type includes rich context: the owning task, the shape
// path for interpreter errors, and a cause chain.
//
// Use the Builder for structured error construction:
//
//	err := errors.New(errors.PhaseShape, errors.KindInvalidInput).
//		Path("point", "x").
//		Shape("record").
//		Detail("field body truncated").
//		Build()
//
// Or use convenience constructors for common patterns:
//
//	err := errors.Exhausted(errors.PhaseAlloc, 4096, "box body")
//	err := errors.OutOfBounds(errors.PhaseBuffer, off, size)
//
// All errors implement the standard error interface and support errors.Is/As.
package errors
