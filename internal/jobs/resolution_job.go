package jobs

import (
	"context"
	"time"

	"wendao-market/internal/services"
)

// NewResolutionJob runs the resolution sweep on an interval
func NewResolutionJob(resolution *services.MarketResolutionService, interval time.Duration) *Periodic {
	return newPeriodic("ResolutionSweep", interval, func(ctx context.Context) {
		report, err := resolution.RunSweep(ctx, time.Now())
		if err != nil {
			log.WithError(err).Error("[ResolutionSweep] Sweep failed")
			return
		}
		for _, e := range report.Errors {
			if e.Soft {
				log.Warnf("[ResolutionSweep] Market %s will be retried: %s", e.MarketID, e.Error)
			} else {
				log.Errorf("[ResolutionSweep] Market %s needs attention: %s", e.MarketID, e.Error)
			}
		}
	})
}

// NewReconcileJob re-runs payouts for resolved markets with unpaid winners
func NewReconcileJob(payouts *services.PayoutService, interval time.Duration) *Periodic {
	return newPeriodic("PayoutReconcile", interval, func(ctx context.Context) {
		if _, err := payouts.Reconcile(ctx); err != nil {
			log.WithError(err).Error("[PayoutReconcile] Reconcile failed")
		}
	})
}
