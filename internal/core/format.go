package core

import (
	"fmt"
	"strings"

	"github.com/akedrou/textdiff"
	"github.com/k0kubun/pp/v3"
)

// defaultFormatter renders values for diagnostics without color or line info,
// so messages are stable in test output and CI logs.
func defaultFormatter(value any) string {
	if s, ok := value.(fmt.Stringer); ok && isSpy(value) {
		return s.String()
	}

	return plainPrinter().Sprint(value)
}

// argsDiff renders a unified diff between a registered argument list and the
// argument list of an unmatched call, one argument per line.
func argsDiff(format func(any) string, name string, registered, actual []any) string {
	return textdiff.Unified(
		"registered "+name,
		"called "+name,
		argLines(format, registered),
		argLines(format, actual),
	)
}

func argLines(format func(any) string, args []any) string {
	var builder strings.Builder

	for i, arg := range args {
		fmt.Fprintf(&builder, "%d: %s\n", i, format(arg))
	}

	return builder.String()
}

// closestArgs picks the registered argument list that shares the most leading
// positions with actual, preferring lists of the same length.
func closestArgs(registered [][]any, actual []any) []any {
	best := -1
	bestScore := -1

	for i, args := range registered {
		score := 0
		if len(args) == len(actual) {
			score += len(actual) + 1
		}

		for pos := 0; pos < len(args) && pos < len(actual); pos++ {
			if valuesEqual(args[pos], actual[pos]) {
				score++
			}
		}

		if score > bestScore {
			best, bestScore = i, score
		}
	}

	if best < 0 {
		return nil
	}

	return registered[best]
}

func isSpy(value any) bool {
	_, ok := value.(*CallSpy)

	return ok
}

func plainPrinter() *pp.PrettyPrinter {
	printer := pp.New()
	printer.SetColoringEnabled(false)
	printer.WithLineInfo = false

	return printer
}
