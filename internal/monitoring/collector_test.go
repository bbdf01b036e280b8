package monitoring

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/retain-cli/internal/model"
	"github.com/sells-group/retain-cli/internal/store"
)

type mockMetricsStore struct {
	results    []model.ChurnReasoningResult
	rate       float64
	labeled    int
	thresholds *model.DatasetThresholds
	listErr    error
	rateErr    error
}

func (m *mockMetricsStore) ListResults(context.Context, string, int) ([]model.ChurnReasoningResult, error) {
	return m.results, m.listErr
}

func (m *mockMetricsStore) AttritionRate(context.Context, string) (float64, int, error) {
	return m.rate, m.labeled, m.rateErr
}

func (m *mockMetricsStore) GetThresholds(context.Context, string) (*model.DatasetThresholds, error) {
	if m.thresholds == nil {
		return nil, store.ErrNotFound
	}
	return m.thresholds, nil
}

func result(level model.RiskLevel, score, conf float64, validUntil time.Time) model.ChurnReasoningResult {
	return model.ChurnReasoningResult{
		RiskLevel:       level,
		RiskScore:       score,
		Confidence:      conf,
		CacheValidUntil: validUntil,
	}
}

func TestCollect_AggregatesResults(t *testing.T) {
	now := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)
	fresh := now.Add(time.Hour)
	stale := now.Add(-time.Hour)

	st := &mockMetricsStore{
		results: []model.ChurnReasoningResult{
			result(model.RiskHigh, 0.8, 0.9, fresh),
			result(model.RiskHigh, 0.7, 0.7, stale),
			result(model.RiskMedium, 0.5, 0.8, fresh),
			result(model.RiskLow, 0.2, 0.6, fresh),
		},
		rate:    0.15,
		labeled: 120,
		thresholds: &model.DatasetThresholds{
			DatasetID:  "acme",
			ComputedAt: now.Add(-48 * time.Hour),
		},
	}

	c := NewCollector(st)
	c.nowFunc = func() time.Time { return now }

	snap, err := c.Collect(context.Background(), "acme")
	require.NoError(t, err)

	assert.Equal(t, "acme", snap.DatasetID)
	assert.Equal(t, 4, snap.EmployeesScored)
	assert.Equal(t, 2, snap.HighRisk)
	assert.Equal(t, 1, snap.MediumRisk)
	assert.Equal(t, 1, snap.LowRisk)
	assert.InDelta(t, 0.5, snap.HighRiskShare, 1e-9)
	assert.InDelta(t, 0.55, snap.AvgRiskScore, 1e-9)
	assert.InDelta(t, 0.75, snap.AvgConfidence, 1e-9)
	assert.Equal(t, 1, snap.StaleResults)
	assert.InDelta(t, 0.15, snap.AttritionRate, 1e-9)
	assert.Equal(t, 120, snap.LabeledSamples)
	assert.InDelta(t, 48, snap.ThresholdsAgeHours, 1e-9)
}

func TestCollect_EmptyDataset(t *testing.T) {
	c := NewCollector(&mockMetricsStore{})

	snap, err := c.Collect(context.Background(), "empty")
	require.NoError(t, err)

	assert.Equal(t, 0, snap.EmployeesScored)
	assert.Zero(t, snap.HighRiskShare)
	assert.Zero(t, snap.AvgRiskScore)
	assert.True(t, snap.ThresholdsComputedAt.IsZero())
}

func TestCollect_NeverCalibrated(t *testing.T) {
	st := &mockMetricsStore{
		results: []model.ChurnReasoningResult{
			result(model.RiskLow, 0.1, 0.5, time.Now().Add(time.Hour)),
		},
	}
	c := NewCollector(st)

	snap, err := c.Collect(context.Background(), "acme")
	require.NoError(t, err)

	assert.True(t, snap.ThresholdsComputedAt.IsZero())
	assert.Zero(t, snap.ThresholdsAgeHours)
}

func TestCollect_StoreError(t *testing.T) {
	c := NewCollector(&mockMetricsStore{listErr: assert.AnError})

	_, err := c.Collect(context.Background(), "acme")
	require.ErrorIs(t, err, assert.AnError)
}
