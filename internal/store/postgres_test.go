package store

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/retain-cli/internal/model"
	"github.com/sells-group/retain-cli/internal/resilience"
)

// newMockPostgresStore creates a PostgresStore backed by pgxmock for unit testing.
func newMockPostgresStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })

	s := &PostgresStore{
		pool:  mock,
		retry: resilience.RetryConfig{MaxAttempts: 1},
	}
	return s, mock
}

func TestPostgresStore_GetEmployee(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	now := time.Now().UTC()

	rows := pgxmock.NewRows([]string{
		"id", "dataset_id", "name", "department", "role", "status",
		"salary", "tenure_months", "weekly_hours", "project_count", "manager_changes",
		"months_since_raise", "months_since_promotion", "remote_ratio", "last_review_score", "eltv", "updated_at",
	}).AddRow(
		"emp-1", "acme", "Sam Ortiz", "Engineering", "Backend Engineer", "active",
		82000.0, 26.0, 43.0, 3, 1,
		9.0, 14.0, 0.6, 4.1, 310000.0, now,
	)
	mock.ExpectQuery(`SELECT id, dataset_id, .* FROM employees WHERE id = \$1`).
		WithArgs("emp-1").
		WillReturnRows(rows)

	got, err := s.GetEmployee(context.Background(), "emp-1")
	require.NoError(t, err)
	assert.Equal(t, "Sam Ortiz", got.Name)
	assert.Equal(t, model.EmployeeActive, got.Status)
	assert.InDelta(t, 82000.0, got.Salary, 0.001)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetEmployee_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT id, dataset_id, .* FROM employees WHERE id = \$1`).
		WithArgs("nope").
		WillReturnError(pgx.ErrNoRows)

	_, err := s.GetEmployee(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_LatestPrediction(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	now := time.Now().UTC()

	attrs, err := json.Marshal([]model.Attribution{{Feature: "salary", Value: 82000, Impact: -0.12}})
	require.NoError(t, err)

	rows := pgxmock.NewRows([]string{
		"id", "employee_id", "dataset_id", "probability", "confidence", "attributions", "outcome", "created_at",
	}).AddRow("pred-1", "emp-1", "acme", 0.65, 0.8, attrs, (*bool)(nil), now)
	mock.ExpectQuery(`SELECT id, employee_id, .* FROM predictions WHERE employee_id = \$1`).
		WithArgs("emp-1").
		WillReturnRows(rows)

	got, err := s.LatestPrediction(context.Background(), "emp-1")
	require.NoError(t, err)
	assert.InDelta(t, 0.65, got.Probability, 0.001)
	require.Len(t, got.Attributions, 1)
	assert.Equal(t, "salary", got.Attributions[0].Feature)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpsertPrediction(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`INSERT INTO predictions .* ON CONFLICT`).
		WithArgs(pgxmock.AnyArg(), "emp-1", "acme", 0.65, 0.8, pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	p := &model.Prediction{EmployeeID: "emp-1", DatasetID: "acme", Probability: 0.65, Confidence: 0.8}
	require.NoError(t, s.UpsertPrediction(context.Background(), p))
	assert.NotEmpty(t, p.ID)
	assert.False(t, p.CreatedAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetResult(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	res := model.ChurnReasoningResult{
		ID:         "res-1",
		EmployeeID: "emp-1",
		DatasetID:  "acme",
		RiskScore:  0.62,
		RiskLevel:  model.RiskMedium,
	}
	payload, err := json.Marshal(res)
	require.NoError(t, err)

	mock.ExpectQuery(`SELECT payload FROM churn_results WHERE employee_id = \$1`).
		WithArgs("emp-1").
		WillReturnRows(pgxmock.NewRows([]string{"payload"}).AddRow(payload))

	got, err := s.GetResult(context.Background(), "emp-1")
	require.NoError(t, err)
	assert.Equal(t, "res-1", got.ID)
	assert.InDelta(t, 0.62, got.RiskScore, 0.001)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetResult_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT payload FROM churn_results`).
		WithArgs("nope").
		WillReturnError(pgx.ErrNoRows)

	_, err := s.GetResult(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpsertResult_WritesHistory(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	now := time.Now().UTC()
	res := &model.ChurnReasoningResult{
		ID:              "res-1",
		EmployeeID:      "emp-1",
		DatasetID:       "acme",
		RiskScore:       0.62,
		RiskLevel:       model.RiskMedium,
		CalculatedAt:    now,
		CacheValidUntil: now.Add(time.Hour),
	}

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO churn_results .* ON CONFLICT`).
		WithArgs("emp-1", "acme", 0.62, string(model.RiskMedium), pgxmock.AnyArg(), now, now.Add(time.Hour)).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(`INSERT INTO risk_history`).
		WithArgs(pgxmock.AnyArg(), "emp-1", "acme", 0.62, now).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	require.NoError(t, s.UpsertResult(context.Background(), res))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListProbabilities(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	rows := pgxmock.NewRows([]string{"probability"}).AddRow(0.8).AddRow(0.3)
	mock.ExpectQuery(`SELECT probability FROM predictions WHERE dataset_id = \$1`).
		WithArgs("acme").
		WillReturnRows(rows)

	probs, err := s.ListProbabilities(context.Background(), "acme")
	require.NoError(t, err)
	assert.Equal(t, []float64{0.8, 0.3}, probs)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_AttritionRate(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT COALESCE\(SUM\(CASE WHEN status = 'departed'`).
		WithArgs("acme").
		WillReturnRows(pgxmock.NewRows([]string{"departed", "total"}).AddRow(3, 12))

	rate, total, err := s.AttritionRate(context.Background(), "acme")
	require.NoError(t, err)
	assert.Equal(t, 12, total)
	assert.InDelta(t, 0.25, rate, 0.001)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListFeatureValues_RejectsUnknownColumn(t *testing.T) {
	s, _ := newMockPostgresStore(t)

	_, err := s.ListFeatureValues(context.Background(), "acme", "payload")
	assert.Error(t, err)
}

func TestPostgresStore_UpsertThresholds(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	computedAt := time.Now().UTC()
	mock.ExpectExec(`INSERT INTO dataset_thresholds .* ON CONFLICT`).
		WithArgs("acme", pgxmock.AnyArg(), computedAt, 120).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	th := &model.DatasetThresholds{
		DatasetID:  "acme",
		ComputedAt: computedAt,
		SampleSize: 120,
	}
	require.NoError(t, s.UpsertThresholds(context.Background(), th))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetThresholds(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	th := model.DatasetThresholds{DatasetID: "acme", SampleSize: 120, Risk: model.RiskBands{High: 0.75, Medium: 0.45}}
	payload, err := json.Marshal(th)
	require.NoError(t, err)

	mock.ExpectQuery(`SELECT payload FROM dataset_thresholds WHERE dataset_id = \$1`).
		WithArgs("acme").
		WillReturnRows(pgxmock.NewRows([]string{"payload"}).AddRow(payload))

	got, err := s.GetThresholds(context.Background(), "acme")
	require.NoError(t, err)
	assert.InDelta(t, 0.75, got.Risk.High, 0.001)
	assert.NoError(t, mock.ExpectationsWereMet())
}
