package core

import (
	"slices"
	"strings"
)

// Call is an immutable record of one invocation: its positional arguments and
// the callback it was given, if any.
type Call struct {
	args     []any
	callback any
}

// NewCall records args and callback. The args slice is copied.
func NewCall(args []any, callback any) *Call {
	return &Call{args: slices.Clone(args), callback: callback}
}

// Arg returns the positional argument at index, or nil if there is none.
func (c *Call) Arg(index int) any {
	if index < 0 || index >= len(c.args) {
		return nil
	}

	return c.args[index]
}

// Args returns a copy of the positional arguments.
func (c *Call) Args() []any {
	return slices.Clone(c.args)
}

// Callback returns the callback passed with the call, or nil.
func (c *Call) Callback() any {
	return c.callback
}

// NumArgs returns the number of positional arguments.
func (c *Call) NumArgs() int {
	return len(c.args)
}

// String renders the call's arguments, e.g. ("bob", 3).
func (c *Call) String() string {
	return "(" + formatArgs(defaultFormatter, c.args) + ")"
}

func formatArgs(format func(any) string, args []any) string {
	parts := make([]string, len(args))
	for i, arg := range args {
		parts[i] = format(arg)
	}

	return strings.Join(parts, ", ")
}
