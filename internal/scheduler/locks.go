package scheduler

import (
	"context"

	"go.uber.org/zap"
)

func runLockKey(job string) string {
	return "worker:run:" + job
}

// acquireRunLock keeps two worker replicas from running the same job in the
// same tick. Without redis every replica runs; the settlement guard still
// keeps side effects single.
func (s *Scheduler) acquireRunLock(ctx context.Context, job string) (func(), bool) {
	if s.locker == nil {
		return func() {}, true
	}
	key := runLockKey(job)
	token, ok, err := s.locker.TryLock(ctx, key, s.cfg.LockTTL)
	if err != nil {
		s.log.Warn("scheduler run lock unavailable", zap.String("job", job), zap.Error(err))
		return func() {}, true
	}
	if !ok {
		s.log.Debug("scheduler.job.skipped", zap.String("job", job), zap.String("reason", "locked"))
		return nil, false
	}
	return func() {
		if err := s.locker.Release(context.WithoutCancel(ctx), key, token); err != nil {
			s.log.Warn("release scheduler run lock", zap.String("job", job), zap.Error(err))
		}
	}, true
}
