package core

import (
	"fmt"
	"reflect"
	"slices"

	"go.uber.org/zap"
)

// HandlerFunc is the untyped form of a stub handler. It receives the call and
// returns the operation's results in order; a nil slice means zero values.
type HandlerFunc func(call *Call) []any

// Stub intercepts one operation on one target. Calls route through Call,
// which validates arity and dispatches to an argument-specific handler
// registered with With, or to the default handler.
type Stub struct {
	registry  *Registry
	key       Key
	slot      *slot
	signature Signature

	// original is restored into the field on teardown; callable is what
	// CallOriginal invokes (original, or a shim to a shadowed method).
	original reflect.Value
	callable reflect.Value

	defaultHandler *handler
	lookup         []lookupEntry
	installed      bool
}

// Call validates the argument count, resolves a handler, and invokes it.
func (s *Stub) Call(args []any, callback any) ([]any, error) {
	if !s.signature.Accepts(len(args)) {
		return nil, newArityError(s.registry.format, s.slot.name, s.signature, args)
	}

	h, err := s.resolve(args)
	if err != nil {
		return nil, err
	}

	return h.invoke(NewCall(args, callback))
}

// CallOriginal invokes the implementation the stub replaced.
func (s *Stub) CallOriginal(args []any, callback any) ([]any, error) {
	if !s.signature.Accepts(len(args)) {
		return nil, newArityError(s.registry.format, s.slot.name, s.signature, args)
	}

	if s.callable.IsNil() {
		return nil, newUnsupportedError(s.slot.name,
			"`%s` on %s has no original implementation to call", s.slot.name, s.slot.owner)
	}

	original := &handler{op: s.slot.name, fn: s.callable, funcType: s.slot.field.Type()}

	return original.invoke(NewCall(args, callback))
}

// Do sets the default handler. A nil handler keeps the current one.
func (s *Stub) Do(h any) error {
	if h == nil {
		return nil
	}

	normalized, err := s.newHandler(h)
	if err != nil {
		return err
	}

	s.defaultHandler = normalized
	s.registry.logger.Debug("stub handler updated", zap.String("op", s.slot.name), zap.Stringer("key", s.key))

	return nil
}

// Installed reports whether the stub is still intercepting its operation.
func (s *Stub) Installed() bool {
	return s.installed
}

// Name returns the stubbed operation's name.
func (s *Stub) Name() string {
	return s.slot.name
}

// Signature returns the arity of the original operation.
func (s *Stub) Signature() Signature {
	return s.signature
}

func (s *Stub) String() string {
	return fmt.Sprintf("impstub.Stub{%s(%s) on %s}", s.slot.name, s.signature.RenderParams(), s.slot.owner)
}

// Teardown restores the original implementation and removes the stub from
// its registry. Calling it again is a no-op.
func (s *Stub) Teardown() {
	s.registry.detach(s)
	s.restore()
}

// With registers h for calls whose arguments exactly equal args, replacing any
// handler previously registered for the same arguments.
func (s *Stub) With(args []any, h any) error {
	if !s.signature.Accepts(len(args)) {
		return newArityError(s.registry.format, s.slot.name, s.signature, args)
	}

	if h == nil {
		return newUnsupportedError(s.slot.name, "nil handler for %s", inspectCall(s.registry.format, s.slot.name, args))
	}

	normalized, err := s.newHandler(h)
	if err != nil {
		return err
	}

	s.registry.logger.Debug("stub argument handler registered",
		zap.String("op", s.slot.name),
		zap.String("args", formatArgs(s.registry.format, args)),
	)

	for i, entry := range s.lookup {
		if argsEqual(entry.args, args) {
			s.lookup[i].handler = normalized

			return nil
		}
	}

	s.lookup = append(s.lookup, lookupEntry{args: slices.Clone(args), handler: normalized})

	return nil
}

// install replaces the field with a trampoline that finds this stub's key in
// the registry on every call.
func (s *Stub) install() {
	s.slot.field.Set(s.registry.trampoline(s.key, s.slot.field.Type()))
	s.installed = true
	s.registry.logger.Debug("stub installed",
		zap.String("op", s.slot.name),
		zap.String("target", s.slot.owner),
		zap.Stringer("key", s.key),
	)
}

func (s *Stub) newHandler(h any) (*handler, error) {
	switch typed := h.(type) {
	case HandlerFunc:
		return &handler{op: s.slot.name, generic: typed, funcType: s.slot.field.Type()}, nil
	case func(*Call) []any:
		return &handler{op: s.slot.name, generic: typed, funcType: s.slot.field.Type()}, nil
	}

	value := reflect.ValueOf(h)
	fieldType := s.slot.field.Type()

	if value.Kind() != reflect.Func || !value.Type().ConvertibleTo(fieldType) {
		return nil, newUnsupportedError(s.slot.name,
			"handler for `%s` must be %s or impstub.HandlerFunc, got %T", s.slot.name, fieldType, h)
	}

	if value.IsNil() {
		return nil, newUnsupportedError(s.slot.name, "nil handler for `%s`", s.slot.name)
	}

	return &handler{op: s.slot.name, fn: value.Convert(fieldType), funcType: fieldType}, nil
}

func (s *Stub) registered() [][]any {
	registered := make([][]any, len(s.lookup))
	for i, entry := range s.lookup {
		registered[i] = entry.args
	}

	return registered
}

// reset puts back a default handler saved before a scoped update. A stub torn
// down in the meantime is left alone.
func (s *Stub) reset(previous *handler) {
	if !s.installed {
		return
	}

	s.defaultHandler = previous
	s.registry.logger.Debug("stub handler reset", zap.String("op", s.slot.name), zap.Stringer("key", s.key))
}

func (s *Stub) resolve(args []any) (*handler, error) {
	for _, entry := range s.lookup {
		if argsEqual(entry.args, args) {
			return entry.handler, nil
		}
	}

	if s.defaultHandler != nil {
		return s.defaultHandler, nil
	}

	s.registry.logger.Debug("call not stubbed",
		zap.String("op", s.slot.name),
		zap.String("args", formatArgs(s.registry.format, args)),
	)

	return nil, newNotStubbedError(s.registry.format, s.slot.name, args, s.registered())
}

func (s *Stub) restore() {
	if !s.installed {
		return
	}

	s.slot.field.Set(s.original)
	s.installed = false
	release(s.key, s.registry)
	s.registry.logger.Debug("stub torn down", zap.String("op", s.slot.name), zap.Stringer("key", s.key))
}

// handler is a normalized stub handler: either a typed func matching the
// operation, or a HandlerFunc.
type handler struct {
	op       string
	fn       reflect.Value
	generic  HandlerFunc
	funcType reflect.Type
}

func (h *handler) invoke(call *Call) ([]any, error) {
	if h.generic != nil {
		return h.generic(call), nil
	}

	in, err := inValues(signatureFromType(h.funcType), call)
	if err != nil {
		return nil, newMismatchError(h.op, err)
	}

	out := h.fn.Call(in)
	results := make([]any, len(out))

	for i, value := range out {
		results[i] = value.Interface()
	}

	return results, nil
}

type lookupEntry struct {
	args    []any
	handler *handler
}

// newStub preserves the slot's original implementation and builds a stub
// around it. The stub is not installed yet.
func newStub(registry *Registry, resolved *slot, h any) (*Stub, error) {
	original, callable := resolved.original()

	stub := &Stub{
		registry:  registry,
		key:       resolved.key(),
		slot:      resolved,
		signature: resolved.signature(),
		original:  original,
		callable:  callable,
	}

	if err := stub.Do(h); err != nil {
		return nil, err
	}

	return stub, nil
}

// inValues converts a call into reflect arguments for a func of sig's type.
func inValues(sig Signature, call *Call) ([]reflect.Value, error) {
	in := make([]reflect.Value, 0, call.NumArgs()+1)

	for i, arg := range call.args {
		value, err := valueFor(sig.paramType(i), arg)
		if err != nil {
			return nil, fmt.Errorf("argument %d: %w", i, err)
		}

		in = append(in, value)
	}

	if cbType := sig.callbackType(); cbType != nil {
		value, err := valueFor(cbType, call.callback)
		if err != nil {
			return nil, fmt.Errorf("callback: %w", err)
		}

		in = append(in, value)
	}

	return in, nil
}

// outValues converts handler results into reflect results for funcType.
// Results handed to an operation without results are discarded.
func outValues(funcType reflect.Type, results []any) ([]reflect.Value, error) {
	out := make([]reflect.Value, funcType.NumOut())

	if results == nil || len(out) == 0 {
		for i := range out {
			out[i] = reflect.Zero(funcType.Out(i))
		}

		return out, nil
	}

	if len(results) != len(out) {
		//nolint:err113 // validation error with dynamic context
		return nil, fmt.Errorf("handler returned %d values, operation returns %d", len(results), len(out))
	}

	for i, result := range results {
		value, err := valueFor(funcType.Out(i), result)
		if err != nil {
			return nil, fmt.Errorf("result %d: %w", i, err)
		}

		out[i] = value
	}

	return out, nil
}

func valueFor(typ reflect.Type, value any) (reflect.Value, error) {
	if value == nil {
		return reflect.Zero(typ), nil
	}

	reflected := reflect.ValueOf(value)
	if !reflected.Type().AssignableTo(typ) {
		//nolint:err113 // validation error with dynamic context
		return reflect.Value{}, fmt.Errorf("cannot use %T as %s", value, typ)
	}

	return reflected, nil
}
