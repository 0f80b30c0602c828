package scheduler

import (
	"context"

	"go.uber.org/zap"
)

// RecoverClaimsJob finishes settlements abandoned by a crashed process.
// Recovered keys are logged one by one since each already holds money.
func (s *Scheduler) RecoverClaimsJob(ctx context.Context) (int, error) {
	recovered, err := s.reconciler.RecoverStaleClaims(ctx)
	if recovered > 0 {
		s.logger(ctx).Info("scheduler.claims.recovered", zap.Int("count", recovered))
	}
	return recovered, err
}
