package errors

import (
	"errors"
	"strings"
	"testing"
)

func TestError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *Error
		contains []string
	}{
		{
			name: "full error",
			err: &Error{
				Phase:  PhaseShape,
				Kind:   KindInvalidInput,
				Path:   []string{"point", "x"},
				Task:   "worker-3",
				Shape:  "record",
				Detail: "field body truncated",
			},
			contains: []string{"[shape]", "invalid_input", "point.x", "worker-3", "record", "field body truncated"},
		},
		{
			name: "minimal error",
			err: &Error{
				Phase: PhaseBuffer,
				Kind:  KindOutOfBounds,
			},
			contains: []string{"[buffer]", "out_of_bounds"},
		},
		{
			name: "error with cause",
			err: &Error{
				Phase:  PhaseAlloc,
				Kind:   KindExhausted,
				Detail: "heap full",
				Cause:  errors.New("underlying error"),
			},
			contains: []string{"[alloc]", "exhausted", "heap full", "caused by", "underlying error"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := tt.err.Error()
			for _, s := range tt.contains {
				if !strings.Contains(msg, s) {
					t.Errorf("Error() = %q, expected to contain %q", msg, s)
				}
			}
		})
	}
}

func TestError_Is(t *testing.T) {
	err := Exhausted(PhaseAlloc, 64, "box body")

	if !errors.Is(err, &Error{Phase: PhaseAlloc, Kind: KindExhausted}) {
		t.Error("expected Is to match on Phase+Kind")
	}
	if errors.Is(err, &Error{Phase: PhaseBuffer, Kind: KindExhausted}) {
		t.Error("expected Is to reject different phase")
	}
	if errors.Is(err, errors.New("plain")) {
		t.Error("expected Is to reject non-Error target")
	}
}

func TestError_Unwrap(t *testing.T) {
	cause := errors.New("mmap failed")
	err := Wrap(PhaseStack, KindExhausted, cause, "new segment")

	if !errors.Is(err, cause) {
		t.Error("expected Unwrap chain to reach cause")
	}
}

func TestBuilder(t *testing.T) {
	err := New(PhaseUnwind, KindCrossUnwind).
		Task("main").
		Detail("reentered after %d frames", 3).
		Value(3).
		Build()

	if err.Task != "main" {
		t.Errorf("Task = %q", err.Task)
	}
	if err.Detail != "reentered after 3 frames" {
		t.Errorf("Detail = %q", err.Detail)
	}
	if err.Value != 3 {
		t.Errorf("Value = %v", err.Value)
	}
}

func TestTaskFailed(t *testing.T) {
	err := TaskFailed("main", "x > 0", "lib/core.sb", 42)
	msg := err.Error()
	for _, s := range []string{"task_failed", "main", "x > 0", "lib/core.sb:42"} {
		if !strings.Contains(msg, s) {
			t.Errorf("Error() = %q, expected to contain %q", msg, s)
		}
	}
}
