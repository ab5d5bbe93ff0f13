package shutdown

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

// NotifyContext returns a context canceled on the first SIGINT/SIGTERM,
// mirroring the teacher's main.go signal.Notify/cancel goroutine. A
// second signal does not cancel anything further; Coordinator.Drain's own
// shutdownOnce guard is what makes repeated signals a no-op, not the
// context.
func NotifyContext(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case <-sigCh:
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigCh)
	}()
	return ctx, cancel
}
