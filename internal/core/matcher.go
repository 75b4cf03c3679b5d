package core

import (
	"reflect"

	"github.com/google/go-cmp/cmp"
)

// argsEqual reports whether two positional argument lists are exactly equal.
// Values compare deeply, except call spies, which compare by identity.
func argsEqual(expected, actual []any) bool {
	if len(expected) != len(actual) {
		return false
	}

	for i := range expected {
		if !valuesEqual(expected[i], actual[i]) {
			return false
		}
	}

	return true
}

// valuesEqual checks if two values are equal. Unlike reflect.DeepEqual, two
// distinct spies are never equal, even with identical configuration.
func valuesEqual(a, b any) bool {
	return cmp.Equal(a, b, equalityOptions...)
}

// unexported variables.
var (
	//nolint:gochecknoglobals // Immutable comparison options shared by every lookup
	equalityOptions = []cmp.Option{
		cmp.Comparer(func(x, y *CallSpy) bool { return x == y }),
		cmp.Exporter(func(reflect.Type) bool { return true }),
	}
)
