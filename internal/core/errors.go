package core

import (
	"errors"
	"fmt"
	"runtime"
	"slices"
	"strings"
)

// Exported variables.
var (
	// ErrArity marks calls whose argument count the stubbed operation cannot accept.
	ErrArity = errors.New("arity mismatch")
	// ErrNotStubbed marks calls that no stub handler matched.
	ErrNotStubbed = errors.New("not stubbed")
	// ErrTypeMismatch marks arguments or results whose types do not fit the operation.
	ErrTypeMismatch = errors.New("type mismatch")
	// ErrTargetUnsupported marks targets or operations that cannot be intercepted.
	ErrTargetUnsupported = errors.New("target does not support interception")
)

// NotStubbedError reports a call that a stub exists for, but that neither an
// argument-specific handler nor a default handler matched.
type NotStubbedError struct {
	StubError

	Args       []any
	Registered [][]any
}

// Unwrap exposes the base StubError.
func (e *NotStubbedError) Unwrap() error {
	return &e.StubError
}

// StubArityError reports a call or With registration whose argument count is
// incompatible with the original operation.
type StubArityError struct {
	StubError

	Args     []any
	Expected string
	Got      int
}

// Unwrap exposes the base StubError.
func (e *StubArityError) Unwrap() error {
	return &e.StubError
}

// StubError is the base of every error impstub returns. It carries the
// operation name and the frames of the code that triggered it.
type StubError struct {
	Op     string
	Msg    string
	Frames []runtime.Frame

	kind error
}

// CallSite returns the file:line of the caller that triggered the error, or
// an empty string if no frame outside impstub was captured.
func (e *StubError) CallSite() string {
	if len(e.Frames) == 0 {
		return ""
	}

	return fmt.Sprintf("%s:%d", e.Frames[0].File, e.Frames[0].Line)
}

func (e *StubError) Error() string {
	return e.Msg
}

func (e *StubError) Unwrap() error {
	return e.kind
}

// unexported constants.
const (
	maxFrames  = 32
	modulePath = "github.com/toejough/impstub"
)

func newArityError(format func(any) string, name string, sig Signature, args []any) *StubArityError {
	msg := fmt.Sprintf("arity mismatch on `%s`: expected %s, called with %d\ncall: %s",
		name, sig.Expected(), len(args), inspectCall(format, name, args))
	if params := sig.RenderParams(); params != "" {
		msg += fmt.Sprintf("\nsignature: %s(%s)", name, params)
	}

	return &StubArityError{
		StubError: newStubError(name, ErrArity, msg),
		Args:      slices.Clone(args),
		Expected:  sig.Expected(),
		Got:       len(args),
	}
}

func newMismatchError(name string, err error) *StubError {
	mismatch := newStubError(name, ErrTypeMismatch, fmt.Sprintf("type mismatch on `%s`: %v", name, err))

	return &mismatch
}

func newNotStubbedError(format func(any) string, name string, args []any, registered [][]any) *NotStubbedError {
	msg := inspectCall(format, name, args) + " not stubbed."

	if len(registered) > 0 {
		lines := make([]string, len(registered))
		for i, reg := range registered {
			lines[i] = "    - " + inspectCall(format, name, reg)
		}

		msg += "\nStubs:\n" + strings.Join(lines, "\n")

		if diff := argsDiff(format, name, closestArgs(registered, args), args); diff != "" {
			msg += "\nClosest:\n" + diff
		}
	}

	return &NotStubbedError{
		StubError:  newStubError(name, ErrNotStubbed, msg),
		Args:       args,
		Registered: registered,
	}
}

func newStubError(name string, kind error, msg string) StubError {
	return StubError{Op: name, Msg: msg, Frames: callerFrames(), kind: kind}
}

// newUnstubbedError reports an operation that has no active stub at all.
func newUnstubbedError(name string) *NotStubbedError {
	return &NotStubbedError{StubError: newStubError(name, ErrNotStubbed, "`"+name+"` not stubbed.")}
}

func newUnsupportedError(name, format string, args ...any) *StubError {
	err := newStubError(name, ErrTargetUnsupported, fmt.Sprintf(format, args...))

	return &err
}

// callerFrames captures the stack, dropping frames that belong to impstub
// itself (other than its tests), reflect, and the runtime.
func callerFrames() []runtime.Frame {
	pcs := make([]uintptr, maxFrames)
	count := runtime.Callers(3, pcs) //nolint:mnd // skip Callers, callerFrames and newStubError
	frames := runtime.CallersFrames(pcs[:count])

	var kept []runtime.Frame

	for {
		frame, more := frames.Next()
		if !isInternalFrame(frame) {
			kept = append(kept, frame)
		}

		if !more {
			break
		}
	}

	return kept
}

func inspectCall(format func(any) string, name string, args []any) string {
	return "`" + name + "(" + formatArgs(format, args) + ")`"
}

func isInternalFrame(frame runtime.Frame) bool {
	switch {
	case strings.HasPrefix(frame.Function, "reflect."), strings.HasPrefix(frame.Function, "runtime."):
		return true
	case strings.HasSuffix(frame.File, "_test.go"):
		return false
	default:
		return strings.HasPrefix(frame.Function, modulePath+".") ||
			strings.HasPrefix(frame.Function, modulePath+"/internal/")
	}
}
