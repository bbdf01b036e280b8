// Package monitoring watches dataset health: the spread of risk levels
// across scored employees, the observed attrition rate, and the age of
// the calibrated thresholds. Breaches are delivered to a webhook.
package monitoring

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/retain-cli/internal/model"
	"github.com/sells-group/retain-cli/internal/store"
)

// MetricsSnapshot holds a point-in-time view of one dataset's health.
type MetricsSnapshot struct {
	DatasetID string `json:"dataset_id"`

	// Scored-result metrics.
	EmployeesScored int     `json:"employees_scored"`
	HighRisk        int     `json:"high_risk"`
	MediumRisk      int     `json:"medium_risk"`
	LowRisk         int     `json:"low_risk"`
	HighRiskShare   float64 `json:"high_risk_share"`
	AvgRiskScore    float64 `json:"avg_risk_score"`
	AvgConfidence   float64 `json:"avg_confidence"`
	StaleResults    int     `json:"stale_results"`

	// Outcome metrics.
	AttritionRate  float64 `json:"attrition_rate"`
	LabeledSamples int     `json:"labeled_samples"`

	// Calibration metrics. ThresholdsComputedAt is zero when the
	// dataset has never been calibrated.
	ThresholdsComputedAt time.Time `json:"thresholds_computed_at"`
	ThresholdsAgeHours   float64   `json:"thresholds_age_hours"`

	CollectedAt time.Time `json:"collected_at"`
}

// MetricsStore is the persistence slice the collector reads from.
type MetricsStore interface {
	ListResults(ctx context.Context, datasetID string, limit int) ([]model.ChurnReasoningResult, error)
	AttritionRate(ctx context.Context, datasetID string) (float64, int, error)
	GetThresholds(ctx context.Context, datasetID string) (*model.DatasetThresholds, error)
}

// Collector gathers dataset health metrics from the store.
type Collector struct {
	store MetricsStore

	// nowFunc allows test injection of time.
	nowFunc func() time.Time
}

// NewCollector creates a metrics collector.
func NewCollector(st MetricsStore) *Collector {
	return &Collector{store: st, nowFunc: time.Now}
}

// Collect gathers a snapshot for the given dataset.
func (c *Collector) Collect(ctx context.Context, datasetID string) (*MetricsSnapshot, error) {
	now := c.nowFunc().UTC()
	snap := &MetricsSnapshot{
		DatasetID:   datasetID,
		CollectedAt: now,
	}

	results, err := c.store.ListResults(ctx, datasetID, 0)
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: list results")
	}

	snap.EmployeesScored = len(results)
	var totalScore, totalConfidence float64
	for i := range results {
		r := &results[i]
		switch r.RiskLevel {
		case model.RiskHigh:
			snap.HighRisk++
		case model.RiskMedium:
			snap.MediumRisk++
		case model.RiskLow:
			snap.LowRisk++
		}
		if !r.Fresh(now) {
			snap.StaleResults++
		}
		totalScore += r.RiskScore
		totalConfidence += r.Confidence
	}
	if snap.EmployeesScored > 0 {
		n := float64(snap.EmployeesScored)
		snap.HighRiskShare = float64(snap.HighRisk) / n
		snap.AvgRiskScore = totalScore / n
		snap.AvgConfidence = totalConfidence / n
	}

	rate, labeled, err := c.store.AttritionRate(ctx, datasetID)
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: attrition rate")
	}
	snap.AttritionRate = rate
	snap.LabeledSamples = labeled

	th, err := c.store.GetThresholds(ctx, datasetID)
	switch {
	case eris.Is(err, store.ErrNotFound):
		// Never calibrated; ThresholdsComputedAt stays zero.
	case err != nil:
		return nil, eris.Wrap(err, "monitoring: get thresholds")
	default:
		snap.ThresholdsComputedAt = th.ComputedAt
		snap.ThresholdsAgeHours = now.Sub(th.ComputedAt).Hours()
	}

	return snap, nil
}
