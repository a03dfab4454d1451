package logging

import "fmt"

// Sink consumes diagnostic records.
// Implementations must be safe for concurrent use.
type Sink interface {
	// Write persists or forwards a single event.
	// Implementations should not modify the event.
	Write(event *Event) error

	// Close flushes any buffered data and releases resources.
	Close() error
}

// SinkName returns a short label for s, used in metrics and log lines.
// Sinks may provide their own by implementing Name() string.
func SinkName(s Sink) string {
	if n, ok := s.(interface{ Name() string }); ok {
		return n.Name()
	}
	return fmt.Sprintf("%T", s)
}
