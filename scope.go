package impstub

import "github.com/toejough/impstub/internal/core"

// TestReporter is the minimal interface StubT needs from test frameworks.
// *testing.T and *testing.B satisfy it.
type TestReporter interface {
	Helper()
	Fatalf(format string, args ...any)
}

// Scoped stubs target's named operation for the duration of fn, and restores
// it on every exit path, including a panic in fn. If the operation was
// already stubbed, only its previous default handler is restored.
func Scoped(target any, name string, handler any, fn func(stub *Stub)) error {
	stub, release, err := core.Default().InstallScoped(target, name, handler)
	if err != nil {
		return err
	}

	defer release()

	fn(stub)

	return nil
}

// StubT stubs target's named operation for the rest of the test. If t
// supports Cleanup (like *testing.T), the stub is removed when the test
// completes, or its previous default handler restored if the operation was
// already stubbed. Setup failures fail the test.
func StubT(t TestReporter, target any, name string, handler any) *Stub {
	t.Helper()

	stub, release, err := core.Default().InstallScoped(target, name, handler)
	if err != nil {
		t.Fatalf("impstub: %v", err)

		return nil
	}

	if cr, ok := t.(cleanupRegistrar); ok {
		cr.Cleanup(release)
	}

	return stub
}

// cleanupRegistrar is the interface needed for registering cleanup functions.
// This is satisfied by *testing.T and *testing.B.
type cleanupRegistrar interface {
	Cleanup(cleanupFunc func())
}
