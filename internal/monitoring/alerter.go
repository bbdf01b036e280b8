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

	"github.com/sells-group/retain-cli/internal/config"
	"github.com/sells-group/retain-cli/internal/resilience"
)

// AlertType identifies the kind of alert.
type AlertType string

const (
	AlertHighRiskShare    AlertType = "high_risk_share"
	AlertAttritionRate    AlertType = "attrition_rate"
	AlertStaleCalibration AlertType = "stale_calibration"
)

// Alert represents a single alert to be sent.
type Alert struct {
	Type      AlertType      `json:"type"`
	Severity  string         `json:"severity"`
	Dataset   string         `json:"dataset"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// Alerter evaluates a MetricsSnapshot against configured thresholds
// and sends alerts via webhook when thresholds are breached. Webhook
// delivery runs through a circuit breaker so a dead endpoint is not
// hammered on every check.
type Alerter struct {
	cfg     config.MonitoringConfig
	client  *http.Client
	breaker *resilience.CircuitBreaker
}

// NewAlerter creates an Alerter with the given monitoring config.
func NewAlerter(cfg config.MonitoringConfig) *Alerter {
	return &Alerter{
		cfg:    cfg,
		client: &http.Client{Timeout: 10 * time.Second},
		breaker: resilience.NewCircuitBreaker(resilience.FromCircuitConfig(
			cfg.BreakerFailureThreshold, cfg.BreakerResetSecs,
		)),
	}
}

// Evaluate checks the snapshot against thresholds and returns any alerts.
func (a *Alerter) Evaluate(snap *MetricsSnapshot) []Alert {
	var alerts []Alert
	now := time.Now().UTC()

	// A handful of scored employees is too noisy a base for a share.
	if snap.EmployeesScored >= 5 && snap.HighRiskShare > a.cfg.HighRiskShareThreshold {
		alerts = append(alerts, Alert{
			Type:     AlertHighRiskShare,
			Severity: "high",
			Dataset:  snap.DatasetID,
			Message: fmt.Sprintf(
				"High-risk share %.1f%% exceeds threshold %.1f%% (%d of %d scored employees)",
				snap.HighRiskShare*100, a.cfg.HighRiskShareThreshold*100,
				snap.HighRisk, snap.EmployeesScored,
			),
			Details: map[string]any{
				"high_risk_share": snap.HighRiskShare,
				"threshold":       a.cfg.HighRiskShareThreshold,
				"high_risk":       snap.HighRisk,
				"scored":          snap.EmployeesScored,
			},
			Timestamp: now,
		})
	}

	if a.cfg.AttritionRateThreshold > 0 && snap.LabeledSamples >= 20 &&
		snap.AttritionRate > a.cfg.AttritionRateThreshold {
		alerts = append(alerts, Alert{
			Type:     AlertAttritionRate,
			Severity: "high",
			Dataset:  snap.DatasetID,
			Message: fmt.Sprintf(
				"Attrition rate %.1f%% exceeds threshold %.1f%% (%d labeled outcomes)",
				snap.AttritionRate*100, a.cfg.AttritionRateThreshold*100,
				snap.LabeledSamples,
			),
			Details: map[string]any{
				"attrition_rate":  snap.AttritionRate,
				"threshold":       a.cfg.AttritionRateThreshold,
				"labeled_samples": snap.LabeledSamples,
			},
			Timestamp: now,
		})
	}

	if a.cfg.ThresholdsMaxAgeHours > 0 {
		maxAge := float64(a.cfg.ThresholdsMaxAgeHours)
		switch {
		case snap.ThresholdsComputedAt.IsZero():
			alerts = append(alerts, Alert{
				Type:      AlertStaleCalibration,
				Severity:  "medium",
				Dataset:   snap.DatasetID,
				Message:   "Dataset has never been calibrated; scores use documented defaults",
				Timestamp: now,
			})
		case snap.ThresholdsAgeHours > maxAge:
			alerts = append(alerts, Alert{
				Type:     AlertStaleCalibration,
				Severity: "medium",
				Dataset:  snap.DatasetID,
				Message: fmt.Sprintf(
					"Thresholds are %.0fh old, past the %dh limit; recalibration recommended",
					snap.ThresholdsAgeHours, a.cfg.ThresholdsMaxAgeHours,
				),
				Details: map[string]any{
					"age_hours":     snap.ThresholdsAgeHours,
					"max_age_hours": a.cfg.ThresholdsMaxAgeHours,
				},
				Timestamp: now,
			})
		}
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
		err := a.breaker.Execute(ctx, func(ctx context.Context) error {
			return a.sendWebhook(ctx, alert)
		})
		if err != nil {
			zap.L().Error("monitoring: failed to send alert",
				zap.String("type", string(alert.Type)),
				zap.String("dataset", alert.Dataset),
				zap.Error(err),
			)
			continue
		}
		zap.L().Info("monitoring: alert sent",
			zap.String("type", string(alert.Type)),
			zap.String("dataset", alert.Dataset),
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
		return resilience.NewTransientError(eris.Wrap(err, "monitoring: webhook request"), 0)
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode >= 400 {
		err := eris.Errorf("monitoring: webhook returned status %d", resp.StatusCode)
		if resilience.IsTransientHTTPStatus(resp.StatusCode) {
			return resilience.NewTransientError(err, resp.StatusCode)
		}
		return err
	}
	return nil
}
