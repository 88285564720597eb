// internal/sweep/runner.go
package sweep

import (
	"context"
	"time"

	"leadrouter/internal/common/logger"
	"leadrouter/internal/common/observability"
)

// SweepFunc is one sweep invocation at the given wall-clock time.
type SweepFunc func(ctx context.Context, now time.Time) error

// RunPeriodic drives a sweep on a fixed interval until the context is
// cancelled. Each tick takes the per-sweep lock; a tick that loses the lock
// is skipped, not queued. The first run fires immediately.
func RunPeriodic(ctx context.Context, name string, interval time.Duration, lock *Lock, obs *observability.Observability, log logger.Logger, fn SweepFunc) {
	log = log.WithFields(map[string]interface{}{"sweep": name})
	log.Info("sweep runner started", map[string]interface{}{
		"interval": interval.String(),
	})

	run := func() {
		acquired, release, err := lock.Acquire(ctx, name)
		if err != nil {
			log.Error("sweep lock error", map[string]interface{}{"error": err})
			return
		}
		if !acquired {
			log.Debug("sweep already running elsewhere, skipping tick", nil)
			return
		}
		defer release()

		start := time.Now()
		status := "completed"
		if err := fn(ctx, time.Now().UTC()); err != nil {
			status = "failed"
			log.Error("sweep run failed", map[string]interface{}{"error": err})
		}
		obs.RecordSweep(ctx, name, status)
		obs.RecordSweepDuration(ctx, name, time.Since(start))
	}

	run()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			log.Info("sweep runner stopped", nil)
			return
		case <-ticker.C:
			run()
		}
	}
}
