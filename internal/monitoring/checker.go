package monitoring

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/stock-researcher/internal/config"
)

const defaultCheckInterval = 5 * time.Minute

// Checker periodically collects run statistics and sends alerts.
type Checker struct {
	collector *Collector
	alerter   *Alerter
	interval  time.Duration
	lookback  int
}

// NewChecker creates a background alert checker.
func NewChecker(collector *Collector, alerter *Alerter, cfg config.MonitoringConfig) *Checker {
	interval := time.Duration(cfg.CheckIntervalSecs) * time.Second
	if interval <= 0 {
		interval = defaultCheckInterval
	}
	return &Checker{
		collector: collector,
		alerter:   alerter,
		interval:  interval,
		lookback:  cfg.LookbackWindowHours,
	}
}

// Interval returns the time between checks.
func (c *Checker) Interval() time.Duration { return c.interval }

// Run checks on every tick until ctx is cancelled.
func (c *Checker) Run(ctx context.Context) {
	log := zap.L().With(zap.String("component", "monitoring.checker"))
	log.Info("monitoring: starting run health checker",
		zap.Duration("interval", c.interval),
		zap.Int("lookback_hours", c.lookback),
	)

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info("monitoring: run health checker stopped")
			return
		case <-ticker.C:
			if _, err := c.Check(ctx); err != nil {
				log.Error("monitoring: run health check failed", zap.Error(err))
			}
		}
	}
}

// Check runs one collection and alert pass, returning the alerts raised.
func (c *Checker) Check(ctx context.Context) ([]Alert, error) {
	snap, err := c.collector.Collect(ctx, c.lookback)
	if err != nil {
		return nil, err
	}

	alerts := c.alerter.Evaluate(snap)
	if len(alerts) == 0 {
		zap.L().Debug("monitoring: no alerts triggered", zap.Int("runs", snap.RunsTotal))
		return nil, nil
	}

	sent := c.alerter.SendAlerts(ctx, alerts)
	zap.L().Info("monitoring: alert check complete",
		zap.Int("alerts_triggered", len(alerts)),
		zap.Int("alerts_sent", sent),
	)
	return alerts, nil
}
