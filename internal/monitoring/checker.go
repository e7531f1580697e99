package monitoring

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/solvmetria/internal/config"
)

// Checker runs periodic quality checks in the background and keeps the
// latest snapshot.
type Checker struct {
	collector *Collector
	alerter   *Alerter
	metrics   *Metrics
	cfg       config.MonitoringConfig

	mu     sync.RWMutex
	latest *QualitySnapshot
}

// NewChecker creates a background quality checker. metrics may be nil.
func NewChecker(collector *Collector, alerter *Alerter, metrics *Metrics, cfg config.MonitoringConfig) *Checker {
	return &Checker{
		collector: collector,
		alerter:   alerter,
		metrics:   metrics,
		cfg:       cfg,
	}
}

// Latest returns the most recent snapshot, or nil before the first check.
func (c *Checker) Latest() *QualitySnapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.latest
}

// Run checks once immediately and then periodically. It blocks until ctx
// is cancelled.
func (c *Checker) Run(ctx context.Context) {
	interval := time.Duration(c.cfg.CheckIntervalSecs) * time.Second
	if interval <= 0 {
		interval = 5 * time.Minute
	}

	log := zap.L().With(zap.String("component", "monitoring.checker"))
	log.Info("starting quality checker", zap.Duration("interval", interval))

	c.Check(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info("quality checker stopped")
			return
		case <-ticker.C:
			c.Check(ctx)
		}
	}
}

// Check collects one snapshot, records it and raises alerts.
func (c *Checker) Check(ctx context.Context) *QualitySnapshot {
	log := zap.L().With(zap.String("component", "monitoring.checker"))

	snap, err := c.collector.Collect(ctx)
	if err != nil {
		log.Error("monitoring: failed to collect quality snapshot", zap.Error(err))
		return nil
	}

	c.mu.Lock()
	c.latest = snap
	c.mu.Unlock()
	c.metrics.Observe(snap)

	alerts := c.alerter.Evaluate(snap)
	for _, a := range alerts {
		c.metrics.ObserveAlert(a.Type)
	}
	if len(alerts) == 0 {
		log.Debug("monitoring: no alerts triggered",
			zap.Int("municipalities", snap.Municipalities),
			zap.Float64("avg_score", snap.AvgScore),
		)
		return snap
	}

	sent := c.alerter.SendAlerts(ctx, alerts)
	log.Info("monitoring: quality check complete",
		zap.Int("alerts_triggered", len(alerts)),
		zap.Int("alerts_sent", sent),
	)
	return snap
}
