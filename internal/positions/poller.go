package positions

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Poller re-runs reconciliation on a fixed timer, independent of user
// actions. Cancellation is cooperative: a teardown mid-cycle stops the
// loop at the next check.
type Poller struct {
	reconciler *Reconciler
	interval   time.Duration
	logger     *zap.Logger
}

// NewPoller builds a reconciliation poller.
func NewPoller(reconciler *Reconciler, interval time.Duration, logger *zap.Logger) *Poller {
	if logger == nil {
		logger = zap.NewNop()
	}
	if interval <= 0 {
		interval = time.Minute
	}
	return &Poller{reconciler: reconciler, interval: interval, logger: logger}
}

// Run polls until ctx is cancelled. Reconcile errors are logged and the
// loop keeps going; the next tick gets a fresh attempt.
func (p *Poller) Run(ctx context.Context, userID, address string) error {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		validated, err := p.reconciler.Reconcile(ctx, userID, address)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			p.logger.Warn("reconcile cycle failed", zap.Error(err))
		} else {
			p.logger.Info("reconcile cycle complete",
				zap.String("address", address),
				zap.Int("validated", len(validated)),
			)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
