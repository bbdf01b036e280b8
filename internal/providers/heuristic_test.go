package providers

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/retain-cli/internal/model"
	"github.com/sells-group/retain-cli/internal/thresholds"
)

func TestHeuristicEvaluate(t *testing.T) {
	ctx := context.Background()

	t.Run("calibrated rules trigger", func(t *testing.T) {
		cal := thresholds.New(nil, 0)
		cal.ComputeSalaryTiers(ctx, "acme", []float64{40000, 70000, 100000})

		emp := &model.Employee{
			ID: "e1", DatasetID: "acme",
			Salary:               50000,
			MonthsSinceRaise:     24,
			MonthsSincePromotion: 12,
			WeeklyHours:          40,
			ManagerChanges:       3,
			LastReviewScore:      4.5,
		}

		res, err := NewHeuristic(cal, nil).Evaluate(ctx, emp)
		require.NoError(t, err)

		assert.Equal(t, model.ComponentHeuristic, res.Kind)
		assert.ElementsMatch(t, []string{
			"salary below dataset tier",
			"no raise in over 18 months",
			"repeated manager changes",
		}, res.TriggeredRules)
		assert.Contains(t, res.Alerts, "Compensation below market")
		assert.Contains(t, res.Alerts, "Compensation review overdue")

		// Triggered weight 2.5 out of 5.1 total, all rules evaluable.
		assert.InDelta(t, 2.5/5.1, res.Score, 1e-9)
		assert.Equal(t, 1.0, res.Coverage)
		assert.Equal(t, 1.0, res.Confidence)
	})

	t.Run("workload rules use calibrated ranges", func(t *testing.T) {
		cal := thresholds.New(nil, 0)
		cal.ComputeFeatureRanges(ctx, "acme", map[string][]float64{
			"weekly_hours": {35, 38, 40, 40, 42, 44, 45, 48, 50, 60},
		})

		emp := &model.Employee{
			ID: "e1", DatasetID: "acme",
			Salary:          80000,
			WeeklyHours:     59,
			LastReviewScore: 4.0,
		}

		res, err := NewHeuristic(cal, nil).Evaluate(ctx, emp)
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{
			"workload above dataset norm",
			"chronic overtime",
		}, res.TriggeredRules)
	})

	t.Run("missing data reduces coverage", func(t *testing.T) {
		cal := thresholds.New(nil, 0)
		emp := &model.Employee{ID: "e1", DatasetID: "acme"} // all zero

		res, err := NewHeuristic(cal, nil).Evaluate(ctx, emp)
		require.NoError(t, err)

		// Only the stagnation and manager-change rules are evaluable
		// on an all-zero record, and none trigger.
		assert.Empty(t, res.TriggeredRules)
		assert.Zero(t, res.Score)
		assert.InDelta(t, 3.0/7.0, res.Coverage, 1e-9)
	})
}

func TestLoadRules(t *testing.T) {
	dir := t.TempDir()

	t.Run("valid file", func(t *testing.T) {
		path := filepath.Join(dir, "rules.yaml")
		require.NoError(t, os.WriteFile(path, []byte(`
rules:
  - name: raise overdue
    when: raise_stagnant
    threshold: 12
    alert: Raise review overdue
  - when: overtime
    threshold: 55
`), 0o644))

		rules, err := LoadRules(path)
		require.NoError(t, err)
		require.Len(t, rules, 2)
		assert.Equal(t, "raise overdue", rules[0].Name)
		assert.Equal(t, 1.0, rules[0].Weight)
		assert.Equal(t, "overtime", rules[1].Name) // name defaults to the condition
	})

	t.Run("unknown condition rejected", func(t *testing.T) {
		path := filepath.Join(dir, "bad.yaml")
		require.NoError(t, os.WriteFile(path, []byte(`
rules:
  - name: bogus
    when: astrology
`), 0o644))

		_, err := LoadRules(path)
		assert.Error(t, err)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := LoadRules(filepath.Join(dir, "nope.yaml"))
		assert.Error(t, err)
	})
}
