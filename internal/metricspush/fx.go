package metricspush

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/smallbiznis/coursepay/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const defaultInterval = 30 * time.Second

var Module = fx.Module("metrics.push",
	fx.Provide(NewPusher),
	fx.Invoke(Start),
)

// Start pushes the default registry on an interval and once more on stop so
// the last job counters are not lost.
func Start(lc fx.Lifecycle, cfg config.Config, pusher Pusher, log *zap.Logger) {
	if pusher == nil {
		return
	}
	log = log.Named("metrics.push")

	interval := cfg.MetricsPush.Interval
	if interval <= 0 {
		interval = defaultInterval
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			log.Info("starting metrics push", zap.Duration("interval", interval))
			go func() {
				defer close(done)
				ticker := time.NewTicker(interval)
				defer ticker.Stop()
				for {
					select {
					case <-ticker.C:
						pushOnce(ctx, pusher, prometheus.DefaultGatherer, log)
					case <-ctx.Done():
						return
					}
				}
			}()
			return nil
		},
		OnStop: func(stopCtx context.Context) error {
			cancel()
			<-done
			pushOnce(stopCtx, pusher, prometheus.DefaultGatherer, log)
			return nil
		},
	})
}

func pushOnce(ctx context.Context, pusher Pusher, gatherer prometheus.Gatherer, log *zap.Logger) {
	ctx, cancel := context.WithTimeout(ctx, defaultPushTimeout)
	defer cancel()
	if err := pusher.Push(ctx, gatherer); err != nil {
		log.Warn("metrics push failed", zap.Error(err))
	}
}
