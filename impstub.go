// Package impstub provides test doubles for Go: stubs that temporarily replace
// an operation on a live object, and call spies that record whatever is
// called on them.
//
// An operation is an exported func-typed field of a struct. Stubbing it swaps
// the field for a trampoline that routes every call through the active stub
// until Unstub or UnstubAll restores the original value.
//
// This is the public API entry point. Implementation lives in internal/core.
package impstub

import (
	"github.com/toejough/impstub/internal/core"
	"go.uber.org/zap"
)

// Call is an immutable record of one invocation's arguments and callback.
type Call = core.Call

// CallSpy is a freestanding double that records calls per method name.
type CallSpy = core.CallSpy

// HandlerFunc is the untyped form of a stub handler.
type HandlerFunc = core.HandlerFunc

// Key identifies one interceptable operation on one target.
type Key = core.Key

// NotStubbedError reports a stubbed call that no handler matched.
type NotStubbedError = core.NotStubbedError

// Option configures a Registry.
type Option = core.Option

// Registry holds the active stubs.
type Registry = core.Registry

// Returns configures a CallSpy's return values by method name.
type Returns = core.Returns

// Signature describes an operation's arity.
type Signature = core.Signature

// Stub intercepts one operation on one target.
type Stub = core.Stub

// StubArityError reports an argument count the original operation cannot accept.
type StubArityError = core.StubArityError

// StubError is the base of every error impstub returns.
type StubError = core.StubError

// Exported constants.
const (
	// Unbounded is Signature.Max for variadic operations.
	Unbounded = core.Unbounded
)

// Exported variables.
var (
	ErrArity             = core.ErrArity
	ErrNotStubbed        = core.ErrNotStubbed
	ErrTargetUnsupported = core.ErrTargetUnsupported
	ErrTypeMismatch      = core.ErrTypeMismatch
)

// CallThrough invokes the original implementation of a stubbed operation.
func CallThrough(target any, name string, args []any, callback any) ([]any, error) {
	return core.Default().CallThrough(target, name, args, callback)
}

// Default returns the process-wide registry behind the package-level functions.
func Default() *Registry {
	return core.Default()
}

// Install stubs target's named operation with handler, or updates the default
// handler if it is already stubbed. The handler is a func of the operation's
// type or a HandlerFunc; nil installs a stub with no default handler.
func Install(target any, name string, handler any) (*Stub, error) {
	return core.Default().Install(target, name, handler)
}

// NewCallSpy returns a spy configured with returns.
func NewCallSpy(returns Returns) *CallSpy {
	return core.NewCallSpy(returns)
}

// NewRegistry returns an empty registry, independent of Default.
func NewRegistry(options ...Option) *Registry {
	return core.NewRegistry(options...)
}

// NormalizeName maps a spied name to the form its accessors use.
func NormalizeName(name string) string {
	return core.NormalizeName(name)
}

// SignatureOf determines the arity of target's named operation.
func SignatureOf(target any, name string) Signature {
	return core.SignatureOf(target, name)
}

// Tap wraps target's named operation: the original still runs, and tap sees
// its results and the call.
func Tap(target any, name string, tap func(results []any, call *Call)) (*Stub, error) {
	return core.Default().Tap(target, name, tap)
}

// Unstub restores target's named operation, if it is stubbed.
func Unstub(target any, name string) {
	core.Default().Remove(target, name)
}

// UnstubAll restores every operation stubbed through the default registry.
func UnstubAll() {
	core.Default().RemoveAll()
}

// WithFormatter sets how argument values render in error messages.
func WithFormatter(format func(any) string) Option {
	return core.WithFormatter(format)
}

// WithLogger sets the logger a registry reports installs and teardowns to.
func WithLogger(logger *zap.Logger) Option {
	return core.WithLogger(logger)
}
