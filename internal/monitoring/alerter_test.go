package monitoring

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/retain-cli/internal/config"
)

func healthySnapshot() *MetricsSnapshot {
	return &MetricsSnapshot{
		DatasetID:            "acme",
		EmployeesScored:      100,
		HighRisk:             10,
		HighRiskShare:        0.10,
		AttritionRate:        0.08,
		LabeledSamples:       200,
		ThresholdsComputedAt: time.Now().UTC().Add(-2 * time.Hour),
		ThresholdsAgeHours:   2,
	}
}

func defaultMonitoringConfig() config.MonitoringConfig {
	return config.MonitoringConfig{
		HighRiskShareThreshold: 0.25,
		AttritionRateThreshold: 0.20,
		ThresholdsMaxAgeHours:  168,
	}
}

func TestEvaluate_HealthySnapshot(t *testing.T) {
	a := NewAlerter(defaultMonitoringConfig())

	alerts := a.Evaluate(healthySnapshot())

	assert.Empty(t, alerts)
}

func TestEvaluate_HighRiskShare(t *testing.T) {
	a := NewAlerter(defaultMonitoringConfig())

	snap := healthySnapshot()
	snap.HighRisk = 40
	snap.HighRiskShare = 0.40

	alerts := a.Evaluate(snap)

	require.Len(t, alerts, 1)
	assert.Equal(t, AlertHighRiskShare, alerts[0].Type)
	assert.Equal(t, "high", alerts[0].Severity)
	assert.Equal(t, "acme", alerts[0].Dataset)
	assert.Contains(t, alerts[0].Message, "40.0%")
}

func TestEvaluate_HighRiskShareSkipsSmallSamples(t *testing.T) {
	a := NewAlerter(defaultMonitoringConfig())

	snap := healthySnapshot()
	snap.EmployeesScored = 3
	snap.HighRisk = 3
	snap.HighRiskShare = 1.0

	alerts := a.Evaluate(snap)

	assert.Empty(t, alerts)
}

func TestEvaluate_AttritionRate(t *testing.T) {
	a := NewAlerter(defaultMonitoringConfig())

	snap := healthySnapshot()
	snap.AttritionRate = 0.30

	alerts := a.Evaluate(snap)

	require.Len(t, alerts, 1)
	assert.Equal(t, AlertAttritionRate, alerts[0].Type)
}

func TestEvaluate_AttritionRateDisabled(t *testing.T) {
	cfg := defaultMonitoringConfig()
	cfg.AttritionRateThreshold = 0
	a := NewAlerter(cfg)

	snap := healthySnapshot()
	snap.AttritionRate = 0.90

	assert.Empty(t, a.Evaluate(snap))
}

func TestEvaluate_StaleCalibration(t *testing.T) {
	a := NewAlerter(defaultMonitoringConfig())

	snap := healthySnapshot()
	snap.ThresholdsAgeHours = 169

	alerts := a.Evaluate(snap)

	require.Len(t, alerts, 1)
	assert.Equal(t, AlertStaleCalibration, alerts[0].Type)
	assert.Equal(t, "medium", alerts[0].Severity)
}

func TestEvaluate_NeverCalibrated(t *testing.T) {
	a := NewAlerter(defaultMonitoringConfig())

	snap := healthySnapshot()
	snap.ThresholdsComputedAt = time.Time{}
	snap.ThresholdsAgeHours = 0

	alerts := a.Evaluate(snap)

	require.Len(t, alerts, 1)
	assert.Equal(t, AlertStaleCalibration, alerts[0].Type)
	assert.Contains(t, alerts[0].Message, "never been calibrated")
}

func TestEvaluate_MultipleBreaches(t *testing.T) {
	a := NewAlerter(defaultMonitoringConfig())

	snap := healthySnapshot()
	snap.HighRiskShare = 0.50
	snap.AttritionRate = 0.30
	snap.ThresholdsAgeHours = 200

	assert.Len(t, a.Evaluate(snap), 3)
}

func TestSendAlerts_DeliversToWebhook(t *testing.T) {
	var received atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		received.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	cfg := defaultMonitoringConfig()
	cfg.WebhookURL = srv.URL
	a := NewAlerter(cfg)

	alerts := []Alert{
		{Type: AlertHighRiskShare, Severity: "high", Dataset: "acme"},
		{Type: AlertStaleCalibration, Severity: "medium", Dataset: "acme"},
	}

	sent := a.SendAlerts(context.Background(), alerts)

	assert.Equal(t, 2, sent)
	assert.Equal(t, int32(2), received.Load())
}

func TestSendAlerts_NoWebhookConfigured(t *testing.T) {
	a := NewAlerter(defaultMonitoringConfig())

	sent := a.SendAlerts(context.Background(), []Alert{{Type: AlertHighRiskShare}})

	assert.Equal(t, 0, sent)
}

func TestSendAlerts_BreakerOpensOnRepeatedFailure(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	cfg := defaultMonitoringConfig()
	cfg.WebhookURL = srv.URL
	cfg.BreakerFailureThreshold = 2
	a := NewAlerter(cfg)

	alerts := []Alert{
		{Type: AlertHighRiskShare},
		{Type: AlertAttritionRate},
		{Type: AlertStaleCalibration},
		{Type: AlertHighRiskShare},
	}

	sent := a.SendAlerts(context.Background(), alerts)

	assert.Equal(t, 0, sent)
	// The breaker opens after two failures; later alerts never reach
	// the endpoint.
	assert.Equal(t, int32(2), hits.Load())
}
