package core

import (
	"fmt"
	"regexp"
	"slices"
	"sort"
	"strings"
	"sync"
)

// Returns configures a CallSpy: method name to either a literal return value
// or a func(*Call) any computing one.
type Returns map[string]any

// CallSpy is a freestanding double. Any method name can be called on it; the
// first call to a name defines that name's spied behavior, which records every
// call and returns the configured value, or the spy itself when none is
// configured, so calls can chain.
//
// Calls are queried through accessors derived from the spied name: for "greet",
// "greet_calls", "greet_call_count", "greet_last_called_with",
// "greet_called_with" and "greet_called?". Each accessor is defined on first
// use and memoized.
//
// Spies compare by identity only.
type CallSpy struct {
	mu        sync.Mutex
	returns   Returns
	calls     map[string][]*Call
	spied     map[string]func(*Call) any
	accessors map[string]func() any
}

// NewCallSpy returns a spy configured with returns. The map is copied.
func NewCallSpy(returns Returns) *CallSpy {
	configured := make(Returns, len(returns))
	for name, value := range returns {
		configured[name] = value
	}

	return &CallSpy{
		returns:   configured,
		calls:     make(map[string][]*Call),
		spied:     make(map[string]func(*Call) any),
		accessors: make(map[string]func() any),
	}
}

// NormalizeName replaces characters that cannot appear in an identifier:
// "!" becomes "_bang" and "?" becomes "_predicate".
func NormalizeName(name string) string {
	return nameReplacer.Replace(name)
}

// Call invokes the spied method name with args and returns its value.
func (s *CallSpy) Call(name string, args ...any) any {
	return s.spiedMethod(name)(NewCall(args, nil))
}

// CallCount returns how many times name has been called.
func (s *CallSpy) CallCount(name string) int {
	count, _ := s.query(NormalizeName(name), suffixCallCount).(int)

	return count
}

// CallWithCallback invokes the spied method name with args and a callback.
func (s *CallSpy) CallWithCallback(name string, callback any, args ...any) any {
	return s.spiedMethod(name)(NewCall(args, callback))
}

// Called reports whether name has been called at least once.
func (s *CallSpy) Called(name string) bool {
	called, _ := s.query(NormalizeName(name), suffixCalled).(bool)

	return called
}

// CalledWith is an alias of LastCalledWith.
func (s *CallSpy) CalledWith(name string) *Call {
	call, _ := s.query(NormalizeName(name), suffixCalledWith).(*Call)

	return call
}

// Calls returns the calls made to name, oldest first.
func (s *CallSpy) Calls(name string) []*Call {
	calls, _ := s.query(NormalizeName(name), suffixCalls).([]*Call)

	return calls
}

// Equal reports whether other is this very spy.
func (s *CallSpy) Equal(other any) bool {
	spy, ok := other.(*CallSpy)

	return ok && spy == s
}

// Handler adapts the spied method name into a stub handler: each stubbed call
// is recorded on the spy and returns the spy's value as its only result.
func (s *CallSpy) Handler(name string) HandlerFunc {
	return func(call *Call) []any {
		return []any{s.spiedMethod(name)(call)}
	}
}

// LastCalledWith returns the most recent call to name, or nil if there is none.
func (s *CallSpy) LastCalledWith(name string) *Call {
	call, _ := s.query(NormalizeName(name), suffixLastCalledWith).(*Call)

	return call
}

// RespondsTo reports whether name has been defined on the spy, either as a
// spied method or as an accessor.
func (s *CallSpy) RespondsTo(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, spied := s.spied[name]
	_, accessor := s.accessors[name]

	return spied || accessor
}

// Send dispatches name dynamically: accessor names (see CallSpy) return the
// accessor's value, any other name is a spied call with args.
func (s *CallSpy) Send(name string, args ...any) any {
	for _, pattern := range accessorPatterns {
		if match := pattern.FindStringSubmatch(name); match != nil {
			return s.accessor(name, NormalizeName(match[1]), match[2])()
		}
	}

	return s.Call(name, args...)
}

func (s *CallSpy) String() string {
	s.mu.Lock()
	names := make([]string, 0, len(s.calls))

	for name := range s.calls {
		names = append(names, name)
	}
	s.mu.Unlock()

	sort.Strings(names)

	return fmt.Sprintf("impstub.CallSpy{%p: %s}", s, strings.Join(names, ", "))
}

// accessor returns the memoized accessor registered under accessorName,
// defining it first if needed.
func (s *CallSpy) accessor(accessorName, spiedName, suffix string) func() any {
	s.mu.Lock()
	defer s.mu.Unlock()

	if fn, ok := s.accessors[accessorName]; ok {
		return fn
	}

	var fn func() any

	switch suffix {
	case suffixCalls:
		fn = func() any { return s.callsOf(spiedName) }
	case suffixLastCalledWith, suffixCalledWith:
		fn = func() any {
			calls := s.callsOf(spiedName)
			if len(calls) == 0 {
				return nil
			}

			return calls[len(calls)-1]
		}
	case suffixCallCount:
		fn = func() any { return len(s.callsOf(spiedName)) }
	default:
		fn = func() any { return len(s.callsOf(spiedName)) > 0 }
	}

	s.accessors[accessorName] = fn

	return fn
}

func (s *CallSpy) callsOf(normalized string) []*Call {
	s.mu.Lock()
	defer s.mu.Unlock()

	return slices.Clone(s.calls[normalized])
}

// query runs the accessor for a normalized spied name and suffix.
func (s *CallSpy) query(normalized, suffix string) any {
	return s.accessor(normalized+suffix, normalized, suffix)()
}

// returnValue builds the function computing name's return value.
func (s *CallSpy) returnValue(name string) func(*Call) any {
	value := s.returns[name]

	switch typed := value.(type) {
	case func(*Call) any:
		return typed
	case nil:
		return func(*Call) any { return s }
	default:
		return func(*Call) any { return typed }
	}
}

// spiedMethod returns the memoized behavior for name, defining it first if
// needed. Calls are logged under the normalized name.
func (s *CallSpy) spiedMethod(name string) func(*Call) any {
	s.mu.Lock()
	defer s.mu.Unlock()

	if fn, ok := s.spied[name]; ok {
		return fn
	}

	normalized := NormalizeName(name)
	value := s.returnValue(name)

	fn := func(call *Call) any {
		s.mu.Lock()
		s.calls[normalized] = append(s.calls[normalized], call)
		s.mu.Unlock()

		return value(call)
	}

	s.spied[name] = fn

	return fn
}

// unexported constants.
const (
	suffixCallCount      = "_call_count"
	suffixCalled         = "_called?"
	suffixCalledWith     = "_called_with"
	suffixCalls          = "_calls"
	suffixLastCalledWith = "_last_called_with"
)

// unexported variables.
var (
	// accessorPatterns are tried in order; "_last_called_with" must precede
	// "_called_with".
	//
	//nolint:gochecknoglobals // Compiled once
	accessorPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(\w+)(` + suffixCalls + `)$`),
		regexp.MustCompile(`(\w+)(` + suffixLastCalledWith + `)$`),
		regexp.MustCompile(`(\w+)(` + suffixCalledWith + `)$`),
		regexp.MustCompile(`(\w+)(` + suffixCallCount + `)$`),
		regexp.MustCompile(`(\w+)(` + regexp.QuoteMeta(suffixCalled) + `)$`),
	}
	//nolint:gochecknoglobals // Immutable replacer
	nameReplacer = strings.NewReplacer("!", "_bang", "?", "_predicate")
)
