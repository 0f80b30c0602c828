package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/coursepay/internal/clock"
	obsmetrics "github.com/smallbiznis/coursepay/internal/observability/metrics"
	reconciledomain "github.com/smallbiznis/coursepay/internal/reconcile/domain"
	"github.com/smallbiznis/coursepay/internal/settlement/lock"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	JobRevalidatePending = "revalidate_pending"
	JobRecoverClaims     = "recover_claims"
)

var ErrInvalidConfig = errors.New("invalid_scheduler_config")

type Params struct {
	fx.In

	Log        *zap.Logger
	GenID      *snowflake.Node
	Clock      clock.Clock
	Reconciler reconciledomain.Service
	Config     Config                    `optional:"true"`
	Locker     *lock.Locker              `optional:"true"`
	Metrics    *obsmetrics.WorkerMetrics `optional:"true"`
}

type Scheduler struct {
	log        *zap.Logger
	cfg        Config
	genID      *snowflake.Node
	clock      clock.Clock
	reconciler reconciledomain.Service
	locker     *lock.Locker
	metrics    *obsmetrics.WorkerMetrics
}

func New(p Params) (*Scheduler, error) {
	if p.Log == nil || p.GenID == nil || p.Clock == nil || p.Reconciler == nil {
		return nil, ErrInvalidConfig
	}
	return &Scheduler{
		log:        p.Log.Named("scheduler").With(zap.String("component", "scheduler")),
		cfg:        p.Config.withDefaults(),
		genID:      p.GenID,
		clock:      p.Clock,
		reconciler: p.Reconciler,
		locker:     p.Locker,
		metrics:    p.Metrics,
	}, nil
}

func (s *Scheduler) runJob(
	parent context.Context,
	name string,
	timeout time.Duration,
	fn func(ctx context.Context) (int, error),
) error {
	start := s.clock.Now()
	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()

	release, ok := s.acquireRunLock(ctx, name)
	if !ok {
		s.metrics.IncBatchDeferred(name, obsmetrics.WorkerDeferredReasonInFlight)
		return nil
	}
	defer release()

	ctx, run := s.startJobRun(ctx, name)
	s.logJobStart(ctx, run)
	s.metrics.IncJobRun(name)

	processed, err := fn(ctx)
	run.AddProcessed(processed)
	s.metrics.AddBatchProcessed(name, "payment_record", processed)
	if processed == 0 && err == nil {
		s.metrics.IncBatchDeferred(name, obsmetrics.WorkerDeferredReasonEmptyBatch)
	}
	s.metrics.ObserveJobDuration(name, s.clock.Now().Sub(start))
	if err != nil {
		run.IncError()
	}
	s.logJobFinish(ctx, run)
	if err == nil {
		return nil
	}

	isTimeout := errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled)
	if isTimeout {
		s.metrics.IncJobTimeout(name)
	}
	s.metrics.IncJobError(name, err)
	if isTimeout {
		s.logger(ctx).Warn("job timed out",
			zap.String("job", name),
			zap.Duration("timeout", timeout),
			zap.Error(err),
		)
		return nil
	}

	return fmt.Errorf("%s: %w", name, err)
}

// RunOnce runs every enabled job a single time.
func (s *Scheduler) RunOnce(parent context.Context) error {
	var err error

	jobs := []struct {
		Name string
		Run  func(context.Context) (int, error)
	}{
		{JobRecoverClaims, s.RecoverClaimsJob},
		{JobRevalidatePending, s.RevalidatePendingJob},
	}

	for _, job := range jobs {
		if !s.isJobEnabled(job.Name) {
			continue
		}
		err = errors.Join(err, s.runJob(parent, job.Name, s.cfg.JobTimeout, job.Run))
	}

	return err
}

func (s *Scheduler) RunForever(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.RunInterval)
	defer ticker.Stop()
	nextRun := s.clock.Now().Add(s.cfg.RunInterval)

	for {
		runLag := s.clock.Now().Sub(nextRun)
		if runLag > 0 {
			s.metrics.ObserveRunLoopLag(runLag)
		}
		if err := s.RunOnce(ctx); err != nil {
			s.log.Warn("scheduler run failed", zap.Error(err))
		}
		nextRun = nextRun.Add(s.cfg.RunInterval)

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// RevalidatePendingJob polls the gateway for payments stuck in pending.
func (s *Scheduler) RevalidatePendingJob(ctx context.Context) (int, error) {
	return s.reconciler.RevalidatePending(ctx)
}

func (s *Scheduler) isJobEnabled(jobName string) bool {
	if len(s.cfg.EnabledJobs) == 0 {
		return true
	}
	for _, enabled := range s.cfg.EnabledJobs {
		if strings.EqualFold(enabled, jobName) {
			return true
		}
	}
	return false
}
