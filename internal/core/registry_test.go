package core_test

import (
	"errors"
	"fmt"
	"reflect"
	"sync"
	"testing"

	. "github.com/onsi/gomega"
	"github.com/toejough/impstub/internal/core"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
	"pgregory.net/rapid"
)

// TestRegistry_RemoveRestoresOriginal verifies teardown puts back the exact
// func the stub replaced.
func TestRegistry_RemoveRestoresOriginal(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	reg := core.NewRegistry()
	greeter := newGreeter()
	before := fieldPointer(greeter, "Greet")

	stub, err := reg.Install(greeter, "Greet", func(string) string { return "stubbed" })
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(fieldPointer(greeter, "Greet")).NotTo(Equal(before))
	g.Expect(reg.Len()).To(Equal(1))

	reg.Remove(greeter, "Greet")

	g.Expect(fieldPointer(greeter, "Greet")).To(Equal(before))
	g.Expect(greeter.Greet("bob")).To(Equal("hello bob"))
	g.Expect(reg.Len()).To(BeZero())
	g.Expect(stub.Installed()).To(BeFalse())

	reg.Remove(greeter, "Greet")
	stub.Teardown()
	g.Expect(greeter.Greet("bob")).To(Equal("hello bob"))
}

// TestRegistry_InstallTwiceUpdatesHandler verifies a second install keeps the
// same stub and its argument handlers.
func TestRegistry_InstallTwiceUpdatesHandler(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	reg := core.NewRegistry()
	greeter := newGreeter()

	first, err := reg.Install(greeter, "Greet", func(string) string { return "first" })
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(first.With([]any{"alice"}, func(string) string { return "alice" })).To(Succeed())

	second, err := reg.Install(greeter, "Greet", func(string) string { return "second" })
	g.Expect(err).NotTo(HaveOccurred())

	g.Expect(second).To(BeIdenticalTo(first))
	g.Expect(reg.Len()).To(Equal(1))
	g.Expect(greeter.Greet("bob")).To(Equal("second"))
	g.Expect(greeter.Greet("alice")).To(Equal("alice"))

	second.Teardown()
	g.Expect(greeter.Greet("bob")).To(Equal("hello bob"))
}

// TestRegistry_RemoveAll verifies every stub is torn down and every original
// restored.
func TestRegistry_RemoveAll(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	reg := core.NewRegistry()
	one, two := newGreeter(), newGreeter()

	for _, target := range []*Greeter{one, two} {
		for _, op := range []string{"Greet", "Fetch"} {
			_, err := reg.Install(target, op, core.HandlerFunc(func(*core.Call) []any { return nil }))
			g.Expect(err).NotTo(HaveOccurred())
		}
	}

	g.Expect(reg.Len()).To(Equal(4))

	reg.RemoveAll()

	g.Expect(reg.Len()).To(BeZero())
	g.Expect(one.Greet("a")).To(Equal("hello a"))
	g.Expect(two.Fetch("b")).To(Equal("body of b"))
}

// TestRegistry_StaleTrampolineFails verifies a copy of a trampoline taken
// while stubbed does not keep forwarding to a torn-down stub.
func TestRegistry_StaleTrampolineFails(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	reg := core.NewRegistry()
	greeter := newGreeter()

	_, err := reg.Install(greeter, "Greet", func(string) string { return "first" })
	g.Expect(err).NotTo(HaveOccurred())

	stale := greeter.Greet

	reg.Remove(greeter, "Greet")
	g.Expect(func() { stale("bob") }).To(PanicWith(MatchError(core.ErrNotStubbed)))

	_, err = reg.Install(greeter, "Greet", func(string) string { return "second" })
	g.Expect(err).NotTo(HaveOccurred())

	g.Expect(stale("bob")).To(Equal("second"))
	g.Expect(greeter.Greet("bob")).To(Equal("second"))
}

// TestRegistry_FieldOwnedByOneRegistry verifies a second registry cannot stub
// a field another registry intercepts, so teardown always restores the real
// original.
func TestRegistry_FieldOwnedByOneRegistry(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	first, second := core.NewRegistry(), core.NewRegistry()
	greeter := newGreeter()
	before := fieldPointer(greeter, "Greet")

	_, err := first.Install(greeter, "Greet", func(string) string { return "first" })
	g.Expect(err).NotTo(HaveOccurred())

	_, err = second.Install(greeter, "Greet", func(string) string { return "second" })
	g.Expect(err).To(MatchError(core.ErrTargetUnsupported))
	g.Expect(err.Error()).To(ContainSubstring("already stubbed by another registry"))
	g.Expect(second.Len()).To(BeZero())
	g.Expect(greeter.Greet("bob")).To(Equal("first"))

	first.RemoveAll()
	g.Expect(fieldPointer(greeter, "Greet")).To(Equal(before))
	g.Expect(greeter.Greet("bob")).To(Equal("hello bob"))

	stub, err := second.Install(greeter, "Greet", func(string) string { return "second" })
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(greeter.Greet("bob")).To(Equal("second"))

	_, err = first.Install(greeter, "Greet", nil)
	g.Expect(err).To(MatchError(core.ErrTargetUnsupported))

	stub.Teardown()
	g.Expect(fieldPointer(greeter, "Greet")).To(Equal(before))
	g.Expect(greeter.Greet("bob")).To(Equal("hello bob"))
}

// TestRegistry_InstallScoped verifies releasing a scoped install on an
// already stubbed operation restores the previous default handler and keeps
// the stub, while releasing a fresh one tears it down.
func TestRegistry_InstallScoped(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	reg := core.NewRegistry()
	greeter := newGreeter()

	outer, err := reg.Install(greeter, "Greet", func(string) string { return "outer" })
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(outer.With([]any{"special"}, func(string) string { return "special" })).To(Succeed())

	inner, release, err := reg.InstallScoped(greeter, "Greet", func(string) string { return "inner" })
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(inner).To(BeIdenticalTo(outer))
	g.Expect(greeter.Greet("bob")).To(Equal("inner"))
	g.Expect(greeter.Greet("special")).To(Equal("special"))

	release()

	g.Expect(outer.Installed()).To(BeTrue())
	g.Expect(greeter.Greet("bob")).To(Equal("outer"))
	g.Expect(greeter.Greet("special")).To(Equal("special"))

	outer.Teardown()

	fresh, release, err := reg.InstallScoped(greeter, "Greet", func(string) string { return "fresh" })
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(greeter.Greet("bob")).To(Equal("fresh"))

	release()

	g.Expect(fresh.Installed()).To(BeFalse())
	g.Expect(reg.Len()).To(BeZero())
	g.Expect(greeter.Greet("bob")).To(Equal("hello bob"))

	_, _, err = reg.InstallScoped(greeter, "Missing", nil)
	g.Expect(err).To(MatchError(core.ErrTargetUnsupported))
}

// TestRegistry_KeyIdentity verifies keys distinguish operations and targets,
// and that a promoted field has one key however it is reached.
func TestRegistry_KeyIdentity(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	reg := core.NewRegistry()
	one, two := newGreeter(), newGreeter()

	greetOne, err := reg.Key(one, "Greet")
	g.Expect(err).NotTo(HaveOccurred())

	greetTwo, err := reg.Key(two, "Greet")
	g.Expect(err).NotTo(HaveOccurred())

	sumOne, err := reg.Key(one, "Sum")
	g.Expect(err).NotTo(HaveOccurred())

	again, err := reg.Key(one, "Greet")
	g.Expect(err).NotTo(HaveOccurred())

	g.Expect(greetOne).To(Equal(again))
	g.Expect(greetOne).NotTo(Equal(greetTwo))
	g.Expect(greetOne).NotTo(Equal(sumOne))
	g.Expect(greetOne.String()).To(HavePrefix("Greet@0x"))

	outer := &Outer{Inner: &Inner{Ping: func() string { return "pong" }}}

	viaOuter, err := reg.Key(outer, "Ping")
	g.Expect(err).NotTo(HaveOccurred())

	viaInner, err := reg.Key(outer.Inner, "Ping")
	g.Expect(err).NotTo(HaveOccurred())

	g.Expect(viaOuter).To(Equal(viaInner))
}

// TestRegistry_PromotedFieldSharesStub verifies stubbing through the outer
// struct intercepts calls made through the embedded one.
func TestRegistry_PromotedFieldSharesStub(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	reg := core.NewRegistry()
	outer := &Outer{Inner: &Inner{Ping: func() string { return "pong" }}}

	stub, err := reg.Install(outer, "Ping", func() string { return "stubbed" })
	g.Expect(err).NotTo(HaveOccurred())

	found, ok := reg.Lookup(outer.Inner, "Ping")
	g.Expect(ok).To(BeTrue())
	g.Expect(found).To(BeIdenticalTo(stub))
	g.Expect(outer.Inner.Ping()).To(Equal("stubbed"))

	reg.Remove(outer.Inner, "Ping")
	g.Expect(outer.Ping()).To(Equal("pong"))
}

// TestRegistry_UnsupportedTargets verifies targets and names that cannot be
// intercepted are refused with ErrTargetUnsupported.
func TestRegistry_UnsupportedTargets(t *testing.T) {
	t.Parallel()

	number := 3

	tests := []struct {
		name    string
		target  any
		op      string
		message string
	}{
		{name: "nil", target: nil, op: "Greet", message: "target must be a non-nil pointer to a struct, got <nil>"},
		{name: "struct value", target: Greeter{}, op: "Greet", message: "got core_test.Greeter"},
		{name: "nil pointer", target: (*Greeter)(nil), op: "Greet", message: "got *core_test.Greeter"},
		{name: "pointer to non-struct", target: &number, op: "Greet", message: "got *int"},
		{name: "method", target: newGreeter(), op: "Describe", message: "`Describe` is a method of *core_test.Greeter"},
		{name: "missing", target: newGreeter(), op: "Nope", message: "*core_test.Greeter does not respond to `Nope`"},
		{name: "unexported", target: newGreeter(), op: "secret", message: "`secret` on *core_test.Greeter is unexported"},
		{name: "not a func", target: &Outer{Inner: &Inner{}}, op: "Label", message: "does not respond to `Label`"},
		{name: "nil embedded pointer", target: &Outer{}, op: "Ping", message: "cannot reach `Ping` on *core_test.Outer"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			g := NewWithT(t)

			reg := core.NewRegistry()

			_, err := reg.Install(tt.target, tt.op, func() {})
			g.Expect(err).To(MatchError(core.ErrTargetUnsupported))
			g.Expect(err.Error()).To(ContainSubstring(tt.message))

			_, err = reg.Key(tt.target, tt.op)
			g.Expect(err).To(MatchError(core.ErrTargetUnsupported))

			_, ok := reg.Lookup(tt.target, tt.op)
			g.Expect(ok).To(BeFalse())
			g.Expect(reg.Len()).To(BeZero())
		})
	}
}

// TestRegistry_ErrorsReportCallSite verifies errors point at the caller rather
// than at impstub internals.
func TestRegistry_ErrorsReportCallSite(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	reg := core.NewRegistry()

	_, err := reg.Install(newGreeter(), "Nope", nil)

	var stubErr *core.StubError
	g.Expect(errors.As(err, &stubErr)).To(BeTrue())
	g.Expect(stubErr.Op).To(Equal("Nope"))
	g.Expect(stubErr.CallSite()).To(ContainSubstring("registry_test.go:"))
}

// TestRegistry_CallThrough verifies the preserved original is reachable while
// stubbed, and that unstubbed operations report ErrNotStubbed.
func TestRegistry_CallThrough(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	reg := core.NewRegistry()
	greeter := newGreeter()

	_, err := reg.CallThrough(greeter, "Greet", []any{"bob"}, nil)
	g.Expect(err).To(MatchError(core.ErrNotStubbed))

	_, err = reg.Install(greeter, "Greet", func(string) string { return "stubbed" })
	g.Expect(err).NotTo(HaveOccurred())

	results, err := reg.CallThrough(greeter, "Greet", []any{"bob"}, nil)
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(results).To(Equal([]any{"hello bob"}))
}

// TestRegistry_Tap verifies a tap observes the original's results without
// changing them.
func TestRegistry_Tap(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	reg := core.NewRegistry()
	greeter := newGreeter()

	var (
		seenResults []any
		seenArgs    []any
	)

	_, err := reg.Tap(greeter, "Fetch", func(results []any, call *core.Call) {
		seenResults = results
		seenArgs = call.Args()
	})
	g.Expect(err).NotTo(HaveOccurred())

	body, fetchErr := greeter.Fetch("x")
	g.Expect(fetchErr).NotTo(HaveOccurred())
	g.Expect(body).To(Equal("body of x"))
	g.Expect(seenArgs).To(Equal([]any{"x"}))
	g.Expect(seenResults).To(Equal([]any{"body of x", nil}))
}

// TestRegistry_LogsLifecycle verifies installs, argument handlers and
// teardowns are logged at debug level.
func TestRegistry_LogsLifecycle(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	observed, logs := observer.New(zap.DebugLevel)
	reg := core.NewRegistry(core.WithLogger(zap.New(observed)))
	greeter := newGreeter()

	stub, err := reg.Install(greeter, "Greet", nil)
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(stub.With([]any{"alice"}, func(string) string { return "a" })).To(Succeed())

	stub.Teardown()

	g.Expect(logs.FilterMessage("stub installed").Len()).To(Equal(1))
	g.Expect(logs.FilterMessage("stub argument handler registered").Len()).To(Equal(1))
	g.Expect(logs.FilterMessage("stub torn down").Len()).To(Equal(1))

	installed := logs.FilterMessage("stub installed").All()[0]
	g.Expect(installed.ContextMap()).To(HaveKeyWithValue("op", "Greet"))
	g.Expect(installed.ContextMap()).To(HaveKeyWithValue("target", "*core_test.Greeter"))
}

// TestRegistry_WithFormatter verifies diagnostics render arguments with the
// configured formatter.
func TestRegistry_WithFormatter(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	reg := core.NewRegistry(core.WithFormatter(func(value any) string { return fmt.Sprintf("<%v>", value) }))
	greeter := newGreeter()

	stub, err := reg.Install(greeter, "Greet", nil)
	g.Expect(err).NotTo(HaveOccurred())

	_, err = stub.Call([]any{"bob"}, nil)
	g.Expect(err).To(MatchError("`Greet(<bob>)` not stubbed."))
}

// TestRegistry_ConcurrentDistinctOperations verifies parallel callers can
// stub, call and tear down distinct operations on a shared registry.
func TestRegistry_ConcurrentDistinctOperations(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	const workers = 16

	reg := core.NewRegistry()

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		results []string
	)

	for i := range workers {
		wg.Go(func() {
			greeter := newGreeter()
			reply := fmt.Sprintf("worker %d", i)

			stub, err := reg.Install(greeter, "Greet", func(string) string { return reply })
			if err != nil {
				panic(err)
			}

			got := greeter.Greet("x")

			stub.Teardown()

			mu.Lock()
			results = append(results, got)
			mu.Unlock()
		})
	}

	wg.Wait()

	g.Expect(results).To(HaveLen(workers))
	g.Expect(results).To(ContainElement("worker 0"))
	g.Expect(results).To(ContainElement(fmt.Sprintf("worker %d", workers-1)))
	g.Expect(reg.Len()).To(BeZero())
}

// TestRegistry_StubUnstubCycles_Property proves any sequence of installs and
// teardowns leaves unstubbed operations holding their original funcs, and the
// registry holding exactly the stubbed ones.
func TestRegistry_StubUnstubCycles_Property(t *testing.T) {
	t.Parallel()

	ops := []string{"Greet", "Sum", "Fetch", "Reset"}
	actions := []string{"install", "remove", "teardown", "removeAll"}

	rapid.Check(t, func(rt *rapid.T) {
		reg := core.NewRegistry()
		greeter := newGreeter()

		originals := make(map[string]uintptr, len(ops))
		for _, op := range ops {
			originals[op] = fieldPointer(greeter, op)
		}

		stubbed := make(map[string]bool)
		steps := rapid.IntRange(1, 30).Draw(rt, "steps")

		for range steps {
			action := rapid.SampledFrom(actions).Draw(rt, "action")
			op := rapid.SampledFrom(ops).Draw(rt, "op")

			switch action {
			case "install":
				if _, err := reg.Install(greeter, op, nil); err != nil {
					rt.Fatalf("install %s: %v", op, err)
				}

				stubbed[op] = true
			case "remove":
				reg.Remove(greeter, op)
				delete(stubbed, op)
			case "teardown":
				if stub, ok := reg.Lookup(greeter, op); ok {
					stub.Teardown()
				}

				delete(stubbed, op)
			default:
				reg.RemoveAll()
				clear(stubbed)
			}

			if reg.Len() != len(stubbed) {
				rt.Fatalf("registry holds %d stubs, want %d", reg.Len(), len(stubbed))
			}

			for _, name := range ops {
				restored := fieldPointer(greeter, name) == originals[name]
				if restored == stubbed[name] {
					rt.Fatalf("%s: stubbed=%v but field restored=%v", name, stubbed[name], restored)
				}
			}
		}

		reg.RemoveAll()

		if greeter.Greet("bob") != "hello bob" || greeter.Sum(1, 2) != 3 {
			rt.Fatalf("originals not restored after RemoveAll")
		}
	})
}

// fieldPointer returns the code pointer of target's named func field.
func fieldPointer(target *Greeter, name string) uintptr {
	return reflect.ValueOf(target).Elem().FieldByName(name).Pointer()
}
