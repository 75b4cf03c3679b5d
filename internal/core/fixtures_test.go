package core_test

import (
	"fmt"
	"strings"
)

// Base provides a Hello method that Shadowing's nil Hello field shadows.
type Base struct{}

func (Base) Hello(name string) string {
	return "hello " + name
}

// Greeter exposes its operations as func fields, the way hand-written Go
// stubs do.
type Greeter struct {
	Greet  func(name string) string
	Sum    func(nums ...int) int
	Format func(format string, args ...any) string
	Walk   func(root string, visit func(path string) error) error
	Fetch  func(url string) (string, error)
	Reset  func()
	Spy    func(spy any) string

	secret func() string
}

func (g *Greeter) Describe() string {
	return "greeter"
}

// Inner is embedded by pointer in Outer, so its fields are promoted.
type Inner struct {
	Ping func() string
}

type Outer struct {
	*Inner

	Label string
}

type Shadowing struct {
	Base

	Hello func(name string) string
}

func newGreeter() *Greeter {
	return &Greeter{
		Greet: func(name string) string { return "hello " + name },
		Sum: func(nums ...int) int {
			total := 0
			for _, n := range nums {
				total += n
			}

			return total
		},
		Format: fmt.Sprintf,
		Walk: func(root string, visit func(path string) error) error {
			for _, part := range strings.Split(root, "/") {
				if err := visit(part); err != nil {
					return err
				}
			}

			return nil
		},
		Fetch:  func(url string) (string, error) { return "body of " + url, nil },
		Reset:  func() {},
		Spy:    func(spy any) string { return "original" },
		secret: func() string { return "secret" },
	}
}
