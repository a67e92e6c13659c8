package logger

import (
	"context"
	"errors"
	"strings"
	"time"
)

// Status maps an error to the status enum used in summary lines.
func Status(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "cancelled"
	default:
		return "fail"
	}
}

// Took is the millisecond-rounded time elapsed since start.
func Took(start time.Time) time.Duration { return RoundMS(time.Since(start)) }

// RoundMS clamps negatives to zero and rounds to whole milliseconds.
func RoundMS(d time.Duration) time.Duration {
	return max(d, 0).Round(time.Millisecond)
}

// SummarizeStrings renders at most limit values as a comma list.
// The bool is true when values were left out.
func SummarizeStrings(values []string, limit int) (string, bool) {
	n := min(max(limit, 0), len(values))
	return strings.Join(values[:n], ", "), n < len(values)
}
