package audit

import "fmt"

// Log records audit events.
type Log struct {
	Record func(event string, fields ...any) int
}

// NewLog returns a log that prints events.
func NewLog() *Log {
	return &Log{
		Record: func(event string, fields ...any) int {
			fmt.Println(append([]any{event}, fields...)...)

			return len(fields)
		},
	}
}

// Transfer records a transfer between two accounts and returns how many
// fields were recorded.
func Transfer(log *Log, from, to string, cents int) int {
	if cents == 0 {
		return log.Record("noop")
	}

	return log.Record("transfer", "from", from, "to", to, "cents", cents)
}
