package monitoring

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/retain-cli/internal/config"
)

// Checker runs periodic dataset health checks in the background.
type Checker struct {
	collector *Collector
	alerter   *Alerter
	cfg       config.MonitoringConfig
}

// NewChecker creates a background health checker.
func NewChecker(collector *Collector, alerter *Alerter, cfg config.MonitoringConfig) *Checker {
	return &Checker{
		collector: collector,
		alerter:   alerter,
		cfg:       cfg,
	}
}

// Run starts the periodic check loop. It blocks until ctx is cancelled.
func (c *Checker) Run(ctx context.Context) {
	interval := time.Duration(c.cfg.CheckIntervalSecs) * time.Second
	if interval <= 0 {
		interval = 5 * time.Minute
	}

	log := zap.L().With(zap.String("component", "monitoring.checker"))
	log.Info("starting health checker",
		zap.Duration("interval", interval),
		zap.Strings("datasets", c.cfg.Datasets),
	)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info("health checker stopped")
			return
		case <-ticker.C:
			for _, dataset := range c.cfg.Datasets {
				c.check(ctx, log, dataset)
			}
		}
	}
}

func (c *Checker) check(ctx context.Context, log *zap.Logger, dataset string) {
	snap, err := c.collector.Collect(ctx, dataset)
	if err != nil {
		log.Error("monitoring: failed to collect metrics",
			zap.String("dataset", dataset),
			zap.Error(err),
		)
		return
	}

	alerts := c.alerter.Evaluate(snap)
	if len(alerts) == 0 {
		log.Debug("monitoring: no alerts triggered", zap.String("dataset", dataset))
		return
	}

	sent := c.alerter.SendAlerts(ctx, alerts)
	log.Info("monitoring: health check complete",
		zap.String("dataset", dataset),
		zap.Int("alerts_triggered", len(alerts)),
		zap.Int("alerts_sent", sent),
	)
}
