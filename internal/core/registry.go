package core

import (
	"reflect"
	"sync"

	"go.uber.org/zap"
)

// Option configures a Registry.
type Option func(*Registry) *Registry

// Registry maps each intercepted operation to its active Stub. Trampolines
// installed in targets look their stub up here on every call, so a target
// never forwards to a stub from an earlier stub/unstub cycle.
//
// The map is guarded by a mutex so parallel tests can stub distinct
// operations. Installing and tearing down the same operation concurrently is
// not supported.
type Registry struct {
	mu     sync.Mutex
	stubs  map[Key]*Stub
	logger *zap.Logger
	format func(any) string
}

// Default returns the process-wide registry used by the package-level API.
func Default() *Registry {
	return defaultRegistry
}

// NewRegistry returns an empty registry.
func NewRegistry(options ...Option) *Registry {
	registry := &Registry{
		stubs:  make(map[Key]*Stub),
		logger: zap.NewNop(),
		format: defaultFormatter,
	}

	for _, o := range options {
		registry = o(registry)
	}

	return registry
}

// WithFormatter sets how argument values are rendered in error messages.
func WithFormatter(format func(any) string) Option {
	return func(r *Registry) *Registry {
		if format != nil {
			r.format = format
		}

		return r
	}
}

// WithLogger sets the logger that records installs, updates and teardowns.
func WithLogger(logger *zap.Logger) Option {
	return func(r *Registry) *Registry {
		if logger != nil {
			r.logger = logger
		}

		return r
	}
}

// CallThrough invokes the original implementation preserved by the active
// stub for target's named operation.
func (r *Registry) CallThrough(target any, name string, args []any, callback any) ([]any, error) {
	stub, ok := r.Lookup(target, name)
	if !ok {
		return nil, newUnstubbedError(name)
	}

	return stub.CallOriginal(args, callback)
}

// Install stubs target's named operation with handler and returns the stub.
// If the operation is already stubbed, only the default handler is updated.
// An operation stubbed by another registry cannot be stubbed until that
// registry tears its stub down.
func (r *Registry) Install(target any, name string, handler any) (*Stub, error) {
	stub, _, _, err := r.install(target, name, handler)

	return stub, err
}

// InstallScoped stubs target's named operation like Install and returns a
// release func that undoes only this install. A stub it created is torn down.
// A stub that already existed gets back the default handler it had before.
func (r *Registry) InstallScoped(target any, name string, handler any) (*Stub, func(), error) {
	stub, previous, created, err := r.install(target, name, handler)
	if err != nil {
		return nil, nil, err
	}

	if created {
		return stub, stub.Teardown, nil
	}

	return stub, func() { stub.reset(previous) }, nil
}

// Key returns the identity of target's named operation.
func (r *Registry) Key(target any, name string) (Key, error) {
	resolved, err := resolveSlot(target, name)
	if err != nil {
		return Key{}, err
	}

	return resolved.key(), nil
}

// Len returns the number of active stubs.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.stubs)
}

// Lookup returns the active stub for target's named operation.
func (r *Registry) Lookup(target any, name string) (*Stub, bool) {
	key, err := r.Key(target, name)
	if err != nil {
		return nil, false
	}

	return r.lookup(key)
}

// Remove tears down the stub for target's named operation, if there is one.
func (r *Registry) Remove(target any, name string) {
	key, err := r.Key(target, name)
	if err != nil {
		return
	}

	r.mu.Lock()
	stub, ok := r.stubs[key]
	delete(r.stubs, key)
	r.mu.Unlock()

	if ok {
		stub.restore()
	}
}

// RemoveAll tears down every active stub.
func (r *Registry) RemoveAll() {
	r.mu.Lock()
	stubs := make([]*Stub, 0, len(r.stubs))

	for key, stub := range r.stubs {
		stubs = append(stubs, stub)
		delete(r.stubs, key)
	}

	r.mu.Unlock()

	for _, stub := range stubs {
		stub.restore()
	}
}

// Tap stubs target's named operation with a handler that calls the original
// implementation, hands its results and the call to tap, and returns the
// results unchanged.
func (r *Registry) Tap(target any, name string, tap func(results []any, call *Call)) (*Stub, error) {
	var handler HandlerFunc = func(call *Call) []any {
		results, err := r.CallThrough(target, name, call.Args(), call.Callback())
		if err != nil {
			panic(err)
		}

		if tap != nil {
			tap(results, call)
		}

		return results
	}

	return r.Install(target, name, handler)
}

// install reports whether it created the stub. When it only updated an
// active stub, it also returns the default handler that update replaced.
func (r *Registry) install(target any, name string, h any) (*Stub, *handler, bool, error) {
	resolved, err := resolveSlot(target, name)
	if err != nil {
		return nil, nil, false, err
	}

	key := resolved.key()

	r.mu.Lock()

	if stub, ok := r.stubs[key]; ok {
		r.mu.Unlock()

		previous := stub.defaultHandler

		return stub, previous, false, stub.Do(h)
	}

	if !claim(key, r) {
		r.mu.Unlock()

		return nil, nil, false, newUnsupportedError(name,
			"`%s` on %s is already stubbed by another registry", name, resolved.owner)
	}

	stub, err := newStub(r, resolved, h)
	if err != nil {
		release(key, r)
		r.mu.Unlock()

		return nil, nil, false, err
	}

	r.stubs[key] = stub
	r.mu.Unlock()

	stub.install()

	return stub, nil, true, nil
}

func (r *Registry) detach(stub *Stub) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.stubs[stub.key] == stub {
		delete(r.stubs, stub.key)
	}
}

func (r *Registry) lookup(key Key) (*Stub, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	stub, ok := r.stubs[key]

	return stub, ok
}

// trampoline builds the func installed in a stubbed field. It holds only the
// key, never the stub, and panics with the stub's error when a call fails.
func (r *Registry) trampoline(key Key, funcType reflect.Type) reflect.Value {
	return reflect.MakeFunc(funcType, func(in []reflect.Value) []reflect.Value {
		stub, ok := r.lookup(key)
		if !ok {
			panic(newUnstubbedError(key.Name))
		}

		args, callback := splitIn(funcType, in)

		results, err := stub.Call(args, callback)
		if err != nil {
			panic(err)
		}

		out, err := outValues(funcType, results)
		if err != nil {
			panic(newMismatchError(key.Name, err))
		}

		return out
	})
}

// unexported variables.
var (
	//nolint:gochecknoglobals // Process-wide registry backing the package-level API
	defaultRegistry = NewRegistry()
	// fieldOwners records which registry intercepts each field. A field holds
	// one trampoline at a time, so only one registry may own it.
	//nolint:gochecknoglobals // shared by every registry in the process
	fieldOwners = struct {
		mu     sync.Mutex
		owners map[Key]*Registry
	}{owners: make(map[Key]*Registry)}
)

// claim makes r the owner of key's field, unless another registry owns it.
func claim(key Key, r *Registry) bool {
	fieldOwners.mu.Lock()
	defer fieldOwners.mu.Unlock()

	if owner, ok := fieldOwners.owners[key]; ok && owner != r {
		return false
	}

	fieldOwners.owners[key] = r

	return true
}

func release(key Key, r *Registry) {
	fieldOwners.mu.Lock()
	defer fieldOwners.mu.Unlock()

	if fieldOwners.owners[key] == r {
		delete(fieldOwners.owners, key)
	}
}

// splitIn flattens trampoline arguments into positional args (expanding a
// variadic tail) and the trailing callback, if the operation takes one.
func splitIn(funcType reflect.Type, in []reflect.Value) ([]any, any) {
	sig := signatureFromType(funcType)

	var callback any

	if sig.Callback {
		last := in[len(in)-1]
		in = in[:len(in)-1]

		if !last.IsNil() {
			callback = last.Interface()
		}
	}

	args := make([]any, 0, len(in))

	for i, value := range in {
		if sig.Variadic() && i == len(in)-1 {
			for j := range value.Len() {
				args = append(args, value.Index(j).Interface())
			}

			continue
		}

		args = append(args, value.Interface())
	}

	return args, callback
}
