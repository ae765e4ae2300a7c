package scheduler

import (
	"context"
	"fmt"
	"time"
)

// Every invokes fn once per interval until ctx is done.
// Invocations never overlap: fn runs on the calling goroutine, and ticks that
// fire while fn is still running are dropped rather than queued.
func Every(ctx context.Context, interval time.Duration, fn func(time.Time)) error {
	if interval <= 0 {
		return fmt.Errorf("scheduler: interval must be > 0 (got %s)", interval)
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case t := <-ticker.C:
			// A tick and a cancellation can be ready together; cancellation wins.
			if ctx.Err() != nil {
				return nil
			}
			fn(t)
		}
	}
}
