package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/retain-cli/internal/model"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	st, err := NewSQLite(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func testEmployee(id, datasetID string) model.Employee {
	return model.Employee{
		ID:                   id,
		DatasetID:            datasetID,
		Name:                 "Sam Ortiz",
		Department:           "Engineering",
		Role:                 "Backend Engineer",
		Status:               model.EmployeeActive,
		Salary:               82000,
		TenureMonths:         26,
		WeeklyHours:          43,
		ProjectCount:         3,
		ManagerChanges:       1,
		MonthsSinceRaise:     9,
		MonthsSincePromotion: 14,
		RemoteRatio:          0.6,
		LastReviewScore:      4.1,
		ELTV:                 310000,
	}
}

// --- Employees ---

func TestSQLite_Employees_UpsertAndGet(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	emp := testEmployee("emp-1", "acme")
	n, err := st.UpsertEmployees(ctx, []model.Employee{emp})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, err := st.GetEmployee(ctx, "emp-1")
	require.NoError(t, err)
	assert.Equal(t, "Sam Ortiz", got.Name)
	assert.Equal(t, model.EmployeeActive, got.Status)
	assert.InDelta(t, 82000.0, got.Salary, 0.001)
	assert.InDelta(t, 26.0, got.TenureMonths, 0.001)
	assert.False(t, got.UpdatedAt.IsZero())
}

func TestSQLite_Employees_UpsertOverwrites(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	emp := testEmployee("emp-1", "acme")
	_, err := st.UpsertEmployees(ctx, []model.Employee{emp})
	require.NoError(t, err)

	emp.Salary = 95000
	emp.Status = model.EmployeeDeparted
	_, err = st.UpsertEmployees(ctx, []model.Employee{emp})
	require.NoError(t, err)

	got, err := st.GetEmployee(ctx, "emp-1")
	require.NoError(t, err)
	assert.InDelta(t, 95000.0, got.Salary, 0.001)
	assert.Equal(t, model.EmployeeDeparted, got.Status)
}

func TestSQLite_Employees_Missing(t *testing.T) {
	st := newTestSQLiteStore(t)

	_, err := st.GetEmployee(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSQLite_Employees_GeneratesIDs(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	emp := testEmployee("", "acme")
	n, err := st.UpsertEmployees(ctx, []model.Employee{emp})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	ids, err := st.ListEmployeeIDs(ctx, "acme")
	require.NoError(t, err)
	require.Len(t, ids, 1)
	assert.NotEmpty(t, ids[0])
}

func TestSQLite_ListEmployeeIDs_FiltersByDataset(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	_, err := st.UpsertEmployees(ctx, []model.Employee{
		testEmployee("a-1", "acme"),
		testEmployee("a-2", "acme"),
		testEmployee("b-1", "globex"),
	})
	require.NoError(t, err)

	ids, err := st.ListEmployeeIDs(ctx, "acme")
	require.NoError(t, err)
	assert.Equal(t, []string{"a-1", "a-2"}, ids)
}

// --- Predictions ---

func TestSQLite_Predictions_RoundTrip(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	_, err := st.UpsertEmployees(ctx, []model.Employee{testEmployee("emp-1", "acme")})
	require.NoError(t, err)

	earlier := &model.Prediction{
		EmployeeID:  "emp-1",
		DatasetID:   "acme",
		Probability: 0.41,
		Confidence:  0.7,
		CreatedAt:   time.Now().UTC().Add(-time.Hour),
	}
	require.NoError(t, st.UpsertPrediction(ctx, earlier))

	latest := &model.Prediction{
		EmployeeID:  "emp-1",
		DatasetID:   "acme",
		Probability: 0.65,
		Confidence:  0.8,
		Attributions: []model.Attribution{
			{Feature: "salary", Value: 82000, Impact: -0.12},
			{Feature: "weekly_hours", Value: 43, Impact: 0.08},
		},
	}
	require.NoError(t, st.UpsertPrediction(ctx, latest))

	got, err := st.LatestPrediction(ctx, "emp-1")
	require.NoError(t, err)
	assert.InDelta(t, 0.65, got.Probability, 0.001)
	require.Len(t, got.Attributions, 2)
	assert.Equal(t, "salary", got.Attributions[0].Feature)
	assert.InDelta(t, -0.12, got.Attributions[0].Impact, 0.001)
	assert.Nil(t, got.Outcome)
}

func TestSQLite_Predictions_Missing(t *testing.T) {
	st := newTestSQLiteStore(t)

	_, err := st.LatestPrediction(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSQLite_Predictions_SampleQueries(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	_, err := st.UpsertEmployees(ctx, []model.Employee{testEmployee("emp-1", "acme")})
	require.NoError(t, err)

	departed := true
	stayed := false
	preds := []*model.Prediction{
		{EmployeeID: "emp-1", DatasetID: "acme", Probability: 0.8, Confidence: 0.9, Outcome: &departed,
			Attributions: []model.Attribution{{Feature: "salary", Impact: -0.3}}},
		{EmployeeID: "emp-1", DatasetID: "acme", Probability: 0.3, Confidence: 0.6, Outcome: &stayed,
			Attributions: []model.Attribution{{Feature: "tenure_months", Impact: 0.1}}},
		{EmployeeID: "emp-1", DatasetID: "acme", Probability: 0.5, Confidence: 0.5},
	}
	for _, p := range preds {
		require.NoError(t, st.UpsertPrediction(ctx, p))
	}

	probs, err := st.ListProbabilities(ctx, "acme")
	require.NoError(t, err)
	assert.ElementsMatch(t, []float64{0.8, 0.3, 0.5}, probs)

	mags, err := st.ListSHAPMagnitudes(ctx, "acme")
	require.NoError(t, err)
	assert.ElementsMatch(t, []float64{0.3, 0.1}, mags)

	labeled, err := st.ListLabeledOutcomes(ctx, "acme")
	require.NoError(t, err)
	require.Len(t, labeled, 2)
	for _, lo := range labeled {
		if lo.Departed {
			assert.InDelta(t, 0.8, lo.Probability, 0.001)
		} else {
			assert.InDelta(t, 0.3, lo.Probability, 0.001)
		}
	}
}

// --- Interviews ---

func TestSQLite_Interviews_RoundTrip(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	_, err := st.UpsertEmployees(ctx, []model.Employee{testEmployee("emp-1", "acme")})
	require.NoError(t, err)

	older := &model.Interview{
		EmployeeID:  "emp-1",
		DatasetID:   "acme",
		Kind:        "pulse",
		Sentiment:   0.7,
		Notes:       "settling in well",
		ConductedAt: time.Now().UTC().Add(-48 * time.Hour),
	}
	newer := &model.Interview{
		EmployeeID: "emp-1",
		DatasetID:  "acme",
		Kind:       "stay",
		Sentiment:  0.3,
		Notes:      "frustrated with on-call load",
	}
	require.NoError(t, st.AddInterview(ctx, older))
	require.NoError(t, st.AddInterview(ctx, newer))

	ivs, err := st.ListInterviews(ctx, "emp-1")
	require.NoError(t, err)
	require.Len(t, ivs, 2)
	assert.Equal(t, "stay", ivs[0].Kind)
	assert.Equal(t, "pulse", ivs[1].Kind)

	scores, err := st.ListSentimentScores(ctx, "acme")
	require.NoError(t, err)
	assert.ElementsMatch(t, []float64{0.7, 0.3}, scores)
}

// --- Results and risk history ---

func TestSQLite_Results_UpsertGetAndList(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	now := time.Now().UTC().Truncate(time.Second)
	res := &model.ChurnReasoningResult{
		ID:              "res-1",
		EmployeeID:      "emp-1",
		DatasetID:       "acme",
		RiskScore:       0.62,
		RiskLevel:       model.RiskMedium,
		Confidence:      0.8,
		CalculatedAt:    now,
		CacheValidUntil: now.Add(time.Hour),
	}
	require.NoError(t, st.UpsertResult(ctx, res))

	got, err := st.GetResult(ctx, "emp-1")
	require.NoError(t, err)
	assert.Equal(t, "res-1", got.ID)
	assert.InDelta(t, 0.62, got.RiskScore, 0.001)
	assert.Equal(t, model.RiskMedium, got.RiskLevel)

	// Re-upserting replaces the current row rather than appending.
	res.RiskScore = 0.45
	res.CalculatedAt = now.Add(time.Minute)
	require.NoError(t, st.UpsertResult(ctx, res))

	list, err := st.ListResults(ctx, "acme", 10)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.InDelta(t, 0.45, list[0].RiskScore, 0.001)
}

func TestSQLite_Results_Missing(t *testing.T) {
	st := newTestSQLiteStore(t)

	_, err := st.GetResult(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSQLite_RiskDeltas(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	base := time.Now().UTC().Add(-3 * time.Hour).Truncate(time.Second)
	scores := []float64{0.30, 0.50, 0.45}
	for i, score := range scores {
		res := &model.ChurnReasoningResult{
			ID:              "res",
			EmployeeID:      "emp-1",
			DatasetID:       "acme",
			RiskScore:       score,
			RiskLevel:       model.RiskMedium,
			CalculatedAt:    base.Add(time.Duration(i) * time.Hour),
			CacheValidUntil: base.Add(time.Duration(i+1) * time.Hour),
		}
		require.NoError(t, st.UpsertResult(ctx, res))
	}

	deltas, err := st.ListRiskDeltas(ctx, "acme")
	require.NoError(t, err)
	require.Len(t, deltas, 2)
	assert.InDelta(t, 0.20, deltas[0], 0.001)
	assert.InDelta(t, -0.05, deltas[1], 0.001)
}

// --- Feature values ---

func TestSQLite_FeatureValues(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	a := testEmployee("emp-1", "acme")
	a.WeeklyHours = 38
	b := testEmployee("emp-2", "acme")
	b.WeeklyHours = 52
	_, err := st.UpsertEmployees(ctx, []model.Employee{a, b})
	require.NoError(t, err)

	vals, err := st.ListFeatureValues(ctx, "acme", "weekly_hours")
	require.NoError(t, err)
	assert.ElementsMatch(t, []float64{38, 52}, vals)
}

func TestSQLite_FeatureValues_RejectsUnknownColumn(t *testing.T) {
	st := newTestSQLiteStore(t)

	_, err := st.ListFeatureValues(context.Background(), "acme", "id; DROP TABLE employees")
	assert.Error(t, err)
}

// --- Attrition rate ---

func TestSQLite_AttritionRate(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	active := testEmployee("emp-1", "acme")
	gone := testEmployee("emp-2", "acme")
	gone.Status = model.EmployeeDeparted
	other := testEmployee("emp-3", "globex")
	_, err := st.UpsertEmployees(ctx, []model.Employee{active, gone, other})
	require.NoError(t, err)

	rate, total, err := st.AttritionRate(ctx, "acme")
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	assert.InDelta(t, 0.5, rate, 0.001)

	rate, total, err = st.AttritionRate(ctx, "empty")
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Zero(t, rate)
}

// --- Thresholds ---

func TestSQLite_Thresholds_RoundTrip(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	th := &model.DatasetThresholds{
		DatasetID:  "acme",
		ComputedAt: time.Now().UTC().Truncate(time.Second),
		SampleSize: 120,
		Risk:       model.RiskBands{High: 0.75, Medium: 0.45},
		Salary:     model.SalaryTiers{P33: 59800, P67: 80200},
	}
	require.NoError(t, st.UpsertThresholds(ctx, th))

	got, err := st.GetThresholds(ctx, "acme")
	require.NoError(t, err)
	assert.Equal(t, 120, got.SampleSize)
	assert.InDelta(t, 0.75, got.Risk.High, 0.001)
	assert.InDelta(t, 59800.0, got.Salary.P33, 0.001)

	th.SampleSize = 140
	th.Risk.High = 0.8
	require.NoError(t, st.UpsertThresholds(ctx, th))

	got, err = st.GetThresholds(ctx, "acme")
	require.NoError(t, err)
	assert.Equal(t, 140, got.SampleSize)
	assert.InDelta(t, 0.8, got.Risk.High, 0.001)
}

func TestSQLite_Thresholds_Missing(t *testing.T) {
	st := newTestSQLiteStore(t)

	_, err := st.GetThresholds(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}
