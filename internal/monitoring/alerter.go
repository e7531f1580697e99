package monitoring

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/solvmetria/internal/config"
	"github.com/sells-group/solvmetria/internal/scorer"
)

// AlertType identifies the kind of alert.
type AlertType string

const (
	AlertDatasetUnavailable AlertType = "dataset_unavailable"
	AlertLowAverageScore    AlertType = "low_average_score"
	AlertLowTierShare       AlertType = "low_tier_share"
)

// Alert represents a single alert to be sent.
type Alert struct {
	Type      AlertType      `json:"type"`
	Severity  string         `json:"severity"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// Alerter evaluates a QualitySnapshot against configured thresholds
// and sends alerts via webhook when thresholds are breached.
type Alerter struct {
	cfg    config.MonitoringConfig
	client *http.Client
}

// NewAlerter creates a new Alerter with the given monitoring config.
func NewAlerter(cfg config.MonitoringConfig) *Alerter {
	return &Alerter{
		cfg:    cfg,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

// Evaluate checks the snapshot against thresholds and returns any alerts.
func (a *Alerter) Evaluate(snap *QualitySnapshot) []Alert {
	var alerts []Alert
	now := time.Now().UTC()

	if snap.LoadError != "" {
		return append(alerts, Alert{
			Type:     AlertDatasetUnavailable,
			Severity: "high",
			Message:  fmt.Sprintf("Dataset %s could not be loaded: %s", snap.Source, snap.LoadError),
			Details: map[string]any{
				"source": snap.Source,
			},
			Timestamp: now,
		})
	}
	if snap.Municipalities == 0 {
		return alerts
	}

	if a.cfg.MinAvgScore > 0 && snap.AvgScore < a.cfg.MinAvgScore {
		alerts = append(alerts, Alert{
			Type:     AlertLowAverageScore,
			Severity: "medium",
			Message: fmt.Sprintf(
				"Average ICD %.1f is below threshold %.1f across %d municipalities",
				snap.AvgScore, a.cfg.MinAvgScore, snap.Municipalities,
			),
			Details: map[string]any{
				"avg_score":      snap.AvgScore,
				"threshold":      a.cfg.MinAvgScore,
				"municipalities": snap.Municipalities,
			},
			Timestamp: now,
		})
	}

	if a.cfg.MaxLowTierShare > 0 && snap.LowTierShare > a.cfg.MaxLowTierShare {
		alerts = append(alerts, Alert{
			Type:     AlertLowTierShare,
			Severity: "high",
			Message: fmt.Sprintf(
				"%.1f%% of municipalities have a Low ICD, above threshold %.1f%% (%d / %d)",
				snap.LowTierShare*100, a.cfg.MaxLowTierShare*100,
				snap.TierCounts[scorer.TierLow], snap.Municipalities,
			),
			Details: map[string]any{
				"low_tier_share": snap.LowTierShare,
				"threshold":      a.cfg.MaxLowTierShare,
				"low":            snap.TierCounts[scorer.TierLow],
				"municipalities": snap.Municipalities,
			},
			Timestamp: now,
		})
	}

	return alerts
}

// SendAlerts delivers alerts to the configured webhook URL.
// Returns the number of alerts successfully sent.
func (a *Alerter) SendAlerts(ctx context.Context, alerts []Alert) int {
	if a.cfg.WebhookURL == "" || len(alerts) == 0 {
		return 0
	}

	sent := 0
	for _, alert := range alerts {
		if err := a.sendWebhook(ctx, alert); err != nil {
			zap.L().Error("monitoring: failed to send alert",
				zap.String("type", string(alert.Type)),
				zap.Error(err),
			)
			continue
		}
		zap.L().Info("monitoring: alert sent",
			zap.String("type", string(alert.Type)),
			zap.String("severity", alert.Severity),
		)
		sent++
	}
	return sent
}

// sendWebhook posts a single alert to the webhook URL.
func (a *Alerter) sendWebhook(ctx context.Context, alert Alert) error {
	payload, err := json.Marshal(alert)
	if err != nil {
		return eris.Wrap(err, "monitoring: marshal alert")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.cfg.WebhookURL, bytes.NewReader(payload))
	if err != nil {
		return eris.Wrap(err, "monitoring: create webhook request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return eris.Wrap(err, "monitoring: webhook request")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode >= 400 {
		return eris.Errorf("monitoring: webhook returned status %d", resp.StatusCode)
	}
	return nil
}
