package core

import (
	"reflect"
	"strconv"
)

// Exported constants.
const (
	// Unbounded is Signature.Max for operations with a variadic tail.
	Unbounded = -1
)

// Signature describes the parameter shape of an operation: how many positional
// arguments it takes, and whether it takes a trailing callback.
//
// A trailing non-variadic parameter of func kind is the callback. It is not
// counted by Min or Max and is passed separately from the positional args.
type Signature struct {
	Min      int
	Max      int
	Callback bool

	// Type is the operation's func type, or nil if it could not be determined.
	Type reflect.Type
}

// SignatureOf determines the arity of the named operation on target. An
// operation that cannot be resolved to a func type is treated as fully
// variable.
func SignatureOf(target any, name string) Signature {
	resolved, err := resolveSlot(target, name)
	if err != nil {
		return variableSignature()
	}

	return resolved.signature()
}

// Accepts reports whether a call with count positional arguments fits.
func (s Signature) Accepts(count int) bool {
	if s.Variadic() {
		return count >= s.Min
	}

	return count == s.Min
}

// Expected describes the accepted argument count, e.g. "2" or "at least 1".
func (s Signature) Expected() string {
	if s.Variadic() {
		return "at least " + strconv.Itoa(s.Min)
	}

	return strconv.Itoa(s.Min)
}

// Variadic reports whether the operation accepts an unbounded tail.
func (s Signature) Variadic() bool {
	return s.Max == Unbounded
}

// paramType returns the type of the positional parameter at index, or the
// empty interface when the signature carries no func type.
func (s Signature) paramType(index int) reflect.Type {
	if s.Type == nil {
		return anyType
	}

	if s.Variadic() && index >= s.Min {
		return s.Type.In(s.Type.NumIn() - 1).Elem()
	}

	return s.Type.In(index)
}

func (s Signature) callbackType() reflect.Type {
	if !s.Callback || s.Type == nil {
		return nil
	}

	return s.Type.In(s.Type.NumIn() - 1)
}

// unexported variables.
var (
	//nolint:gochecknoglobals // reflect.Type of the empty interface
	anyType = reflect.TypeFor[any]()
)

func signatureFromType(funcType reflect.Type) Signature {
	count := funcType.NumIn()

	if funcType.IsVariadic() {
		return Signature{Min: count - 1, Max: Unbounded, Type: funcType}
	}

	callback := count > 0 && funcType.In(count-1).Kind() == reflect.Func
	if callback {
		count--
	}

	return Signature{Min: count, Max: count, Callback: callback, Type: funcType}
}

func variableSignature() Signature {
	return Signature{Min: 0, Max: Unbounded}
}
