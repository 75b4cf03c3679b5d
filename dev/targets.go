//go:build targ

package main

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"github.com/toejough/go-reorder"
	"github.com/toejough/targ"
	"github.com/toejough/targ/sh"
)

// Check tidies, modernizes, tests, reorders and lints impstub.
func Check() error {
	fmt.Println("Checking impstub...")

	return targ.Deps(Tidy, Modernize, CheckCoverage, ReorderDecls, Lint)
}

// CheckCoverage runs the tests and fails if any function of the root or core
// package falls under the coverage floor.
func CheckCoverage() error {
	if err := targ.Deps(Test); err != nil {
		return err
	}

	fmt.Println("Checking per-function coverage...")

	report, err := stdout("go", "tool", "cover", "-func="+coverageFile)
	if err != nil {
		return err
	}

	funcs := []funcCoverage{}

	for line := range strings.SplitSeq(report, "\n") {
		if line == "" || strings.Contains(line, "total:") {
			continue
		}

		percent, err := strconv.ParseFloat(percentPattern.FindString(line), 64)
		if err != nil {
			return fmt.Errorf("unreadable coverage line %q: %w", line, err)
		}

		funcs = append(funcs, funcCoverage{line: line, percent: percent})
	}

	if len(funcs) == 0 {
		return errNoCoverage
	}

	slices.SortStableFunc(funcs, func(a, b funcCoverage) int {
		return int(a.percent*10) - int(b.percent*10)
	})

	var under []string

	for _, fc := range funcs {
		if fc.percent < coverageFloor {
			under = append(under, fc.line)
		}
	}

	if len(under) > 0 {
		return fmt.Errorf("%w (%.0f%%):\n  %s", errUnderCovered, coverageFloor, strings.Join(under, "\n  "))
	}

	fmt.Printf("All %d functions at or above %.0f%%.\n", len(funcs), coverageFloor)

	return nil
}

// Lint runs golangci-lint with the repo's config.
func Lint() error {
	fmt.Println("Linting...")

	return sh.Run("golangci-lint", "run")
}

// Modernize rewrites outdated Go patterns in place.
func Modernize() error {
	fmt.Println("Modernizing...")

	return sh.Run("go", "run", "golang.org/x/tools/go/analysis/passes/modernize/cmd/modernize@latest",
		"-fix", "./...")
}

// ReorderDecls sorts the declarations of every hand-written Go file.
func ReorderDecls() error {
	fmt.Println("Reordering declarations...")

	files, err := goFiles()
	if err != nil {
		return err
	}

	changed := 0

	for _, path := range files {
		content, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}

		sorted, err := reorder.Source(string(content))
		if err != nil {
			fmt.Printf("  skipped %s: %v\n", path, err)

			continue
		}

		if sorted == string(content) {
			continue
		}

		if err := os.WriteFile(path, []byte(sorted), 0o600); err != nil {
			return fmt.Errorf("write %s: %w", path, err)
		}

		fmt.Printf("  reordered %s\n", path)

		changed++
	}

	fmt.Printf("%d of %d file(s) reordered.\n", changed, len(files))

	return nil
}

// Test runs every package with the race detector and records coverage of the
// library packages.
func Test() error {
	fmt.Println("Testing...")

	return sh.Run("go", "test", "-race", "-count=1", "-timeout=2m",
		"-coverpkg=./,./internal/...", "-coverprofile="+coverageFile, "./...")
}

// Tidy runs go mod tidy.
func Tidy() error {
	fmt.Println("Tidying modules...")

	return sh.Run("go", "mod", "tidy")
}

type funcCoverage struct {
	line    string
	percent float64
}

const (
	coverageFile  = "coverage.out"
	coverageFloor = 80.0
)

var (
	errNoCoverage   = errors.New("coverage report is empty")
	errUnderCovered = errors.New("functions under the coverage floor")
	percentPattern  = regexp.MustCompile(`\d+\.\d`)
)

// goFiles lists the module's hand-written Go files, skipping the example
// pack, hidden directories and generated code.
func goFiles() ([]string, error) {
	var files []string

	err := filepath.WalkDir(".", func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if entry.IsDir() {
			if path != "." && (strings.HasPrefix(entry.Name(), "_") || strings.HasPrefix(entry.Name(), ".")) {
				return filepath.SkipDir
			}

			return nil
		}

		if filepath.Ext(path) != ".go" {
			return nil
		}

		generated, err := isGenerated(path)
		if err != nil {
			return err
		}

		if !generated {
			files = append(files, path)
		}

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list Go files: %w", err)
	}

	return files, nil
}

func isGenerated(path string) (bool, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return false, fmt.Errorf("read %s: %w", path, err)
	}

	head, _, _ := bytes.Cut(content, []byte("\npackage "))

	return bytes.Contains(head, []byte("Code generated")) || bytes.Contains(head, []byte("DO NOT EDIT")), nil
}

// stdout runs a command and returns its trimmed stdout. Stderr passes through.
func stdout(command string, args ...string) (string, error) {
	var buf bytes.Buffer

	cmd := exec.Command(command, args...)
	cmd.Stdout = &buf
	cmd.Stderr = os.Stderr
	err := cmd.Run()

	return strings.TrimSpace(buf.String()), err
}
