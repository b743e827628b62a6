// Package unwind forwards platform exception-unwinding decisions across the
// stack boundary. The personality routine runs on the stack of the last
// function that threw or landed, which is sometimes the native stack; when
// it runs on the managed stack it must switch, because the platform
// routine's handler-table lookups assume native-stack frame layout.
package unwind

import (
	"sync"

	"go.uber.org/zap"

	"github.com/sable-lang/task-runtime/bridge"
	"github.com/sable-lang/task-runtime/task"
)

// ReasonCode is the platform unwinder's verdict for one propagation step.
type ReasonCode int32

const (
	NoReason               ReasonCode = 0
	ForeignExceptionCaught ReasonCode = 1
	FatalPhase2Error       ReasonCode = 2
	FatalPhase1Error       ReasonCode = 3
	NormalStop             ReasonCode = 4
	EndOfStack             ReasonCode = 5
	HandlerFound           ReasonCode = 6
	InstallContext         ReasonCode = 7
	ContinueUnwind         ReasonCode = 8
)

// Action flags describe what the unwinder is doing at this landing pad.
type Action int32

const (
	ActionSearchPhase  Action = 1
	ActionCleanupPhase Action = 2
	ActionHandlerFrame Action = 4
	ActionForceUnwind  Action = 8
	ActionEndOfStack   Action = 16
)

// Exception is the platform exception header. Received and passed through
// unchanged; this layer never inspects the private words.
type Exception struct {
	Class   uint64
	Private [2]uint64
}

// Context is the opaque platform unwind context, passed through unchanged.
type Context struct {
	IP  uint64
	CFA uint64
}

// PersonalityFunc is the underlying platform personality routine.
type PersonalityFunc func(version int32, actions Action, class uint64, exc *Exception, ctx *Context) ReasonCode

// Personality decides how to handle one step of exception propagation. If
// the task is on the managed stack it switches to the native stack to
// invoke the platform routine; if already on the native stack it invokes it
// directly.
//
// This runs inside unwind machinery where throwing again is never safe: any
// failure of the platform routine itself is fatal.
func Personality(t *task.Task, platform PersonalityFunc, version int32, actions Action, class uint64, exc *Exception, ctx *Context) ReasonCode {
	var rc ReasonCode
	run := func() error {
		rc = invoke(t, platform, version, actions, class, exc, ctx)
		return nil
	}
	if t.OnNativeStack() {
		_ = run()
	} else if err := bridge.SwitchToNative(t, run); err != nil {
		Logger().Fatal("personality switch failed",
			zap.String("task", t.Name()),
			zap.Error(err))
	}
	return rc
}

func invoke(t *task.Task, platform PersonalityFunc, version int32, actions Action, class uint64, exc *Exception, ctx *Context) (rc ReasonCode) {
	defer func() {
		if r := recover(); r != nil {
			Logger().Fatal("personality routine failed inside unwind machinery",
				zap.String("task", t.Name()),
				zap.Any("panic", r))
		}
	}()
	return platform(version, actions, class, exc, ctx)
}

var (
	logger     *zap.Logger
	loggerOnce sync.Once
)

// Logger returns the unwind package's logger instance.
// It uses a no-op logger by default.
func Logger() *zap.Logger {
	loggerOnce.Do(func() {
		if logger == nil {
			logger = zap.NewNop()
		}
	})
	return logger
}

// SetLogger configures the unwind package's logger.
func SetLogger(l *zap.Logger) {
	logger = l
}
