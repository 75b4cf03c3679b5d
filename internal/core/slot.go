package core

import (
	"fmt"
	"reflect"
)

// Key identifies one interceptable operation: the address of the field
// holding it, the field's func type, and the operation name. A promoted field
// has the same key whether it is reached through the outer or the embedded
// struct.
type Key struct {
	Slot uintptr
	Type reflect.Type
	Name string
}

func (k Key) String() string {
	return fmt.Sprintf("%s@%#x", k.Name, k.Slot)
}

// slot is a resolved operation: the settable func field on a live target and,
// when the field shadows one, the embedded method of the same name.
type slot struct {
	name   string
	owner  string
	field  reflect.Value
	method reflect.Value
}

func (s *slot) key() Key {
	return Key{Slot: s.field.Addr().Pointer(), Type: s.field.Type(), Name: s.name}
}

// original returns the implementation a stub preserves: the field's current
// value, or a pass-through shim to the shadowed method when the field is nil.
func (s *slot) original() (current, callable reflect.Value) {
	current = reflect.ValueOf(s.field.Interface())
	if !current.IsNil() || !s.method.IsValid() {
		return current, current
	}

	method := s.method

	shim := reflect.MakeFunc(s.field.Type(), func(in []reflect.Value) []reflect.Value {
		if s.field.Type().IsVariadic() {
			return method.CallSlice(in)
		}

		return method.Call(in)
	})

	return current, shim
}

func (s *slot) signature() Signature {
	if s.field.IsNil() && s.method.IsValid() {
		return signatureFromType(s.method.Type())
	}

	return signatureFromType(s.field.Type())
}

// resolveSlot finds the named operation on target, which must be a non-nil
// pointer to a struct exposing the operation as an exported func field.
func resolveSlot(target any, name string) (*slot, error) {
	value := reflect.ValueOf(target)
	if !value.IsValid() || value.Kind() != reflect.Pointer || value.IsNil() ||
		value.Elem().Kind() != reflect.Struct {
		return nil, newUnsupportedError(name,
			"cannot stub `%s`: target must be a non-nil pointer to a struct, got %T", name, target)
	}

	owner := fmt.Sprintf("%T", target)
	elem := value.Elem()

	field, ok := elem.Type().FieldByName(name)
	if !ok || field.Type.Kind() != reflect.Func {
		if value.MethodByName(name).IsValid() {
			return nil, newUnsupportedError(name,
				"`%s` is a method of %s and cannot be replaced; expose it as a func field", name, owner)
		}

		return nil, newUnsupportedError(name, "%s does not respond to `%s`", owner, name)
	}

	if !field.IsExported() {
		return nil, newUnsupportedError(name, "`%s` on %s is unexported and cannot be replaced", name, owner)
	}

	fieldValue, err := elem.FieldByIndexErr(field.Index)
	if err != nil {
		return nil, newUnsupportedError(name, "cannot reach `%s` on %s: %v", name, owner, err)
	}

	return &slot{
		name:   name,
		owner:  owner,
		field:  fieldValue,
		method: shadowedMethod(elem, name, field.Type),
	}, nil
}

// shadowedMethod searches the embedded structs of elem, shallowest first, for
// a method called name whose type matches the field it is shadowed by.
func shadowedMethod(elem reflect.Value, name string, fieldType reflect.Type) reflect.Value {
	level := []reflect.Value{elem}

	for len(level) > 0 {
		var next []reflect.Value

		for _, current := range level {
			for i := range current.NumField() {
				if !current.Type().Field(i).Anonymous {
					continue
				}

				embedded := current.Field(i)
				if embedded.Kind() == reflect.Pointer {
					if embedded.IsNil() {
						continue
					}

					embedded = embedded.Elem()
				}

				if method := methodOf(embedded, name); method.IsValid() &&
					method.Type().ConvertibleTo(fieldType) {
					return method
				}

				if embedded.Kind() == reflect.Struct {
					next = append(next, embedded)
				}
			}
		}

		level = next
	}

	return reflect.Value{}
}

func methodOf(value reflect.Value, name string) reflect.Value {
	if value.CanAddr() {
		if method := value.Addr().MethodByName(name); method.IsValid() {
			return method
		}
	}

	return value.MethodByName(name)
}
