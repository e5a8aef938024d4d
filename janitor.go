// janitor.go bounds memory use by periodically evicting old requests.
package main

import (
	"context"
	"log/slog"
	"time"
)

// runJanitor sweeps expired requests from the store on a fixed interval until
// the context is cancelled. It is just another caller of the store's atomic
// operations; the store's lock is the only synchronization with in-flight
// transitions.
func runJanitor(ctx context.Context, store *RequestStore, interval, retention time.Duration, logger *slog.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if removed := store.SweepExpired(now, retention); removed > 0 {
				logger.Info("swept expired requests", "removed", removed)
			}
		}
	}
}
