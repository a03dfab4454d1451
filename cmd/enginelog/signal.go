package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
)

// contextWithSignal returns a context that is cancelled on the first SIGINT
// or SIGTERM. The returned cancel func also releases the signal handler.
func contextWithSignal(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case sig := <-sigCh:
			slog.Info("shutting down", "signal", sig.String())
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigCh)
	}()
	return ctx, cancel
}
