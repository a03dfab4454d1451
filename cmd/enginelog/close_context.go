package main

import (
	"context"
	"time"
)

// drainContext bounds how long shutdown may spend delivering queued events
// to sinks. timeout <= 0 waits for the drain to finish.
func drainContext(timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout > 0 {
		return context.WithTimeout(context.Background(), timeout)
	}
	return context.WithCancel(context.Background())
}
