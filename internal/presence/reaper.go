package presence

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Reaper is the background sweep that treats participants without a recent
// heartbeat as left. Best-effort cleanup: viewer counts may transiently
// overcount by at most one grace window.
type Reaper struct {
	repo     *Repository
	grace    time.Duration
	interval time.Duration
	logger   *zap.Logger
}

// NewReaper creates a stale-participant reaper.
func NewReaper(repo *Repository, grace, interval time.Duration, logger *zap.Logger) *Reaper {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reaper{repo: repo, grace: grace, interval: interval, logger: logger}
}

// Run sweeps on the configured interval until ctx is cancelled.
func (r *Reaper) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			r.logger.Info("presence reaper stopping")
			return
		case <-ticker.C:
			r.Sweep(ctx)
		}
	}
}

// Sweep performs one reaping pass.
func (r *Reaper) Sweep(ctx context.Context) {
	n, err := r.repo.ReapStale(ctx, r.grace)
	if err != nil {
		r.logger.Warn("reap stale participants", zap.Error(err))
		return
	}
	if n > 0 {
		r.logger.Info("reaped stale participants", zap.Int("count", n))
	}
}
