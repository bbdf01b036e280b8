package providers

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/retain-cli/internal/model"
	"github.com/sells-group/retain-cli/internal/thresholds"
)

func TestStageClassify(t *testing.T) {
	ctx := context.Background()

	t.Run("uncalibrated uses fixed bands and default hazard", func(t *testing.T) {
		cal := thresholds.New(nil, 0)
		emp := &model.Employee{ID: "e1", DatasetID: "acme", TenureMonths: 2}

		res, err := NewStage(cal).Classify(ctx, emp)
		require.NoError(t, err)

		assert.Equal(t, model.ComponentStage, res.Kind)
		assert.Equal(t, string(model.StageOnboarding), res.StageName)
		assert.InDelta(t, 0.15*1.6, res.Score, 1e-9)
		assert.InDelta(t, 0.4, res.Confidence, 1e-9)
		assert.NotEmpty(t, res.Recommendations)
	})

	t.Run("calibrated bands and recorded hazard", func(t *testing.T) {
		cal := thresholds.New(nil, 0)
		cal.ComputeTenureStages(ctx, "acme", []float64{3, 6, 12, 24, 36, 48, 60, 84, 120, 180})
		cal.SetBaseHazardRate(ctx, "acme", 0.2, 100)

		emp := &model.Employee{ID: "e1", DatasetID: "acme", TenureMonths: 150}
		res, err := NewStage(cal).Classify(ctx, emp)
		require.NoError(t, err)

		assert.Equal(t, string(model.StageLongTenured), res.StageName)
		assert.InDelta(t, 0.2*1.1, res.Score, 1e-9)
		assert.InDelta(t, 0.7, res.Confidence, 1e-9)
	})

	t.Run("mid tenure is the most stable stage", func(t *testing.T) {
		cal := thresholds.New(nil, 0)
		emp := &model.Employee{ID: "e1", DatasetID: "acme", TenureMonths: 100}

		res, err := NewStage(cal).Classify(ctx, emp)
		require.NoError(t, err)
		assert.Equal(t, string(model.StageLongTenured), res.StageName)

		emp.TenureMonths = 60
		res2, err := NewStage(cal).Classify(ctx, emp)
		require.NoError(t, err)
		assert.Equal(t, string(model.StageVeteran), res2.StageName)
		assert.Less(t, res2.Score, res.Score)
	})
}
