package db

import (
	"context"
	"log/slog"
	"math/rand"
	"time"
)

// Pruner deletes cache entries fetched before cutoff.
type Pruner interface {
	PruneOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// StartPruneJob removes entries older than maxAge every interval (with jitter)
// until ctx is done. A non-positive maxAge disables the job.
func StartPruneJob(ctx context.Context, p Pruner, interval, maxAge time.Duration) {
	if maxAge <= 0 {
		slog.Info("replay cache prune job disabled (no max age configured)", slog.String("component", "cache_prune"))
		return
	}
	if interval <= 0 {
		interval = time.Hour
	}
	slog.Info("replay cache prune job starting",
		slog.Duration("interval", interval),
		slog.Duration("max_age", maxAge),
		slog.String("component", "cache_prune"))

	go func() {
		pruneOnce(ctx, p, maxAge)
		for {
			// ±20% jitter so several bots sharing a database spread their deletes
			jitterRange := int64(interval / 5)
			var jitter time.Duration
			if jitterRange > 0 {
				//nolint:gosec // G404: math/rand is sufficient for scheduling jitter, not used for security
				jitter = time.Duration(rand.Int63n(jitterRange*2) - jitterRange)
			}
			select {
			case <-ctx.Done():
				slog.Info("replay cache prune job stopped", slog.String("component", "cache_prune"))
				return
			case <-time.After(interval + jitter):
			}
			pruneOnce(ctx, p, maxAge)
		}
	}()
}

func pruneOnce(ctx context.Context, p Pruner, maxAge time.Duration) {
	ctx2, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	n, err := p.PruneOlderThan(ctx2, time.Now().Add(-maxAge))
	if err != nil {
		slog.Warn("replay cache prune failed", slog.Any("err", err), slog.String("component", "cache_prune"))
		return
	}
	if n > 0 {
		slog.Info("replay cache pruned", slog.Int64("deleted", n), slog.String("component", "cache_prune"))
	}
}
