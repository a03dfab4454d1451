// Package errx wraps package sentinel errors with context while keeping both
// the sentinel and the underlying cause reachable through errors.Is/As.
package errx

import "fmt"

// Wrap returns an error that matches sentinel and cause.
// The message reads "<sentinel>: <cause>".
func Wrap(sentinel, cause error) error {
	if cause == nil {
		return sentinel
	}
	return fmt.Errorf("%w: %w", sentinel, cause)
}

// With appends formatted context to sentinel. The format is appended
// verbatim to the sentinel message, so callers supply their own separator
// (usually ": " or " "). A %w verb in format wraps an additional cause.
func With(sentinel error, format string, args ...any) error {
	return fmt.Errorf("%w"+format, append([]any{sentinel}, args...)...)
}
