package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/retain-cli/internal/db"
	"github.com/sells-group/retain-cli/internal/model"
	"github.com/sells-group/retain-cli/internal/resilience"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
	retry   resilience.RetryConfig
}

// PoolConfig holds optional connection pool tuning parameters. The
// retry fields shape the write retry loop; zero values keep the
// defaults. Set retry_jitter_fraction to a negative value for
// deterministic backoff without jitter.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`

	RetryMaxAttempts      int     `yaml:"retry_max_attempts" mapstructure:"retry_max_attempts"`
	RetryInitialBackoffMs int     `yaml:"retry_initial_backoff_ms" mapstructure:"retry_initial_backoff_ms"`
	RetryMaxBackoffMs     int     `yaml:"retry_max_backoff_ms" mapstructure:"retry_max_backoff_ms"`
	RetryMultiplier       float64 `yaml:"retry_multiplier" mapstructure:"retry_multiplier"`
	RetryJitterFraction   float64 `yaml:"retry_jitter_fraction" mapstructure:"retry_jitter_fraction"`
}

// preparedStatements lists queries to prepare on each new connection for
// faster execution of the most frequently used store operations.
var preparedStatements = map[string]string{
	"get_employee": `SELECT id, dataset_id, name, department, role, status,
		salary, tenure_months, weekly_hours, project_count, manager_changes,
		months_since_raise, months_since_promotion, remote_ratio, last_review_score, eltv, updated_at
		FROM employees WHERE id = $1`,
	"latest_prediction": `SELECT id, employee_id, dataset_id, probability, confidence, attributions, outcome, created_at
		FROM predictions WHERE employee_id = $1 ORDER BY created_at DESC LIMIT 1`,
	"get_result":     `SELECT payload FROM churn_results WHERE employee_id = $1`,
	"get_thresholds": `SELECT payload FROM dataset_thresholds WHERE dataset_id = $1`,
	"list_interviews": `SELECT id, employee_id, dataset_id, kind, sentiment, notes, conducted_at
		FROM interviews WHERE employee_id = $1 ORDER BY conducted_at DESC`,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	// Apply pool sizing from config with sensible defaults.
	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	// Prepare frequently-used statements on each new connection.
	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}

	retry := resilience.DefaultRetryConfig()
	if poolCfg != nil {
		retry = resilience.FromRetryConfig(
			poolCfg.RetryMaxAttempts,
			poolCfg.RetryInitialBackoffMs,
			poolCfg.RetryMaxBackoffMs,
			poolCfg.RetryMultiplier,
			poolCfg.RetryJitterFraction,
		)
	}
	retry.OnRetry = resilience.RetryLogger("postgres", "write")

	return &PostgresStore{
		pool:    pool,
		closeFn: pool.Close,
		retry:   retry,
	}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS employees (
	id                     TEXT PRIMARY KEY,
	dataset_id             TEXT NOT NULL,
	name                   TEXT NOT NULL DEFAULT '',
	department             TEXT NOT NULL DEFAULT '',
	role                   TEXT NOT NULL DEFAULT '',
	status                 TEXT NOT NULL DEFAULT 'active',
	salary                 DOUBLE PRECISION NOT NULL DEFAULT 0,
	tenure_months          DOUBLE PRECISION NOT NULL DEFAULT 0,
	weekly_hours           DOUBLE PRECISION NOT NULL DEFAULT 0,
	project_count          INTEGER NOT NULL DEFAULT 0,
	manager_changes        INTEGER NOT NULL DEFAULT 0,
	months_since_raise     DOUBLE PRECISION NOT NULL DEFAULT 0,
	months_since_promotion DOUBLE PRECISION NOT NULL DEFAULT 0,
	remote_ratio           DOUBLE PRECISION NOT NULL DEFAULT 0,
	last_review_score      DOUBLE PRECISION NOT NULL DEFAULT 0,
	eltv                   DOUBLE PRECISION NOT NULL DEFAULT 0,
	updated_at             TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS predictions (
	id           TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	employee_id  TEXT NOT NULL REFERENCES employees(id),
	dataset_id   TEXT NOT NULL,
	probability  DOUBLE PRECISION NOT NULL,
	confidence   DOUBLE PRECISION NOT NULL,
	attributions JSONB,
	outcome      BOOLEAN,
	created_at   TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS interviews (
	id           TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	employee_id  TEXT NOT NULL REFERENCES employees(id),
	dataset_id   TEXT NOT NULL,
	kind         TEXT NOT NULL,
	sentiment    DOUBLE PRECISION NOT NULL,
	notes        TEXT NOT NULL DEFAULT '',
	conducted_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS churn_results (
	employee_id       TEXT PRIMARY KEY,
	dataset_id        TEXT NOT NULL,
	risk_score        DOUBLE PRECISION NOT NULL,
	risk_level        TEXT NOT NULL,
	payload           JSONB NOT NULL,
	calculated_at     TIMESTAMPTZ NOT NULL,
	cache_valid_until TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS risk_history (
	id            TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	employee_id   TEXT NOT NULL,
	dataset_id    TEXT NOT NULL,
	risk_score    DOUBLE PRECISION NOT NULL,
	calculated_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS dataset_thresholds (
	dataset_id  TEXT PRIMARY KEY,
	payload     JSONB NOT NULL,
	computed_at TIMESTAMPTZ NOT NULL,
	sample_size INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_employees_dataset ON employees(dataset_id);
CREATE INDEX IF NOT EXISTS idx_predictions_employee ON predictions(employee_id, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_predictions_dataset ON predictions(dataset_id);
CREATE INDEX IF NOT EXISTS idx_interviews_employee ON interviews(employee_id);
CREATE INDEX IF NOT EXISTS idx_interviews_dataset ON interviews(dataset_id);
CREATE INDEX IF NOT EXISTS idx_churn_results_dataset ON churn_results(dataset_id);
CREATE INDEX IF NOT EXISTS idx_risk_history_employee ON risk_history(employee_id, calculated_at);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

// employeeColumns is the column order used by the bulk upsert.
var employeeColumns = []string{
	"id", "dataset_id", "name", "department", "role", "status",
	"salary", "tenure_months", "weekly_hours", "project_count", "manager_changes",
	"months_since_raise", "months_since_promotion", "remote_ratio", "last_review_score", "eltv",
	"updated_at",
}

func (s *PostgresStore) UpsertEmployees(ctx context.Context, employees []model.Employee) (int, error) {
	if len(employees) == 0 {
		return 0, nil
	}

	now := time.Now().UTC()
	rows := make([][]any, 0, len(employees))
	for i := range employees {
		e := &employees[i]
		if e.ID == "" {
			e.ID = uuid.New().String()
		}
		if e.UpdatedAt.IsZero() {
			e.UpdatedAt = now
		}
		rows = append(rows, []any{
			e.ID, e.DatasetID, e.Name, e.Department, e.Role, string(e.Status),
			e.Salary, e.TenureMonths, e.WeeklyHours, e.ProjectCount, e.ManagerChanges,
			e.MonthsSinceRaise, e.MonthsSincePromotion, e.RemoteRatio, e.LastReviewScore, e.ELTV,
			e.UpdatedAt,
		})
	}

	var affected int64
	err := resilience.Do(ctx, s.retry, func(ctx context.Context) error {
		n, err := db.BulkUpsert(ctx, s.pool, db.UpsertConfig{
			Table:        "employees",
			Columns:      employeeColumns,
			ConflictKeys: []string{"id"},
		}, rows)
		if err != nil {
			return markTransientDB(err)
		}
		affected = n
		return nil
	})
	if err != nil {
		return 0, eris.Wrap(err, "postgres: upsert employees")
	}
	return int(affected), nil
}

func (s *PostgresStore) GetEmployee(ctx context.Context, employeeID string) (*model.Employee, error) {
	row := s.pool.QueryRow(ctx, preparedStatements["get_employee"], employeeID)

	var e model.Employee
	err := row.Scan(
		&e.ID, &e.DatasetID, &e.Name, &e.Department, &e.Role, &e.Status,
		&e.Salary, &e.TenureMonths, &e.WeeklyHours, &e.ProjectCount, &e.ManagerChanges,
		&e.MonthsSinceRaise, &e.MonthsSincePromotion, &e.RemoteRatio, &e.LastReviewScore, &e.ELTV, &e.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get employee %s", employeeID)
	}
	return &e, nil
}

func (s *PostgresStore) ListEmployeeIDs(ctx context.Context, datasetID string) ([]string, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id FROM employees WHERE dataset_id = $1 ORDER BY id`, datasetID)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list employee ids")
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, eris.Wrap(err, "postgres: scan employee id")
		}
		ids = append(ids, id)
	}
	return ids, eris.Wrap(rows.Err(), "postgres: list employee ids iterate")
}

func (s *PostgresStore) UpsertPrediction(ctx context.Context, p *model.Prediction) error {
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}

	attrJSON, err := json.Marshal(p.Attributions)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal attributions")
	}

	err = resilience.Do(ctx, s.retry, func(ctx context.Context) error {
		_, execErr := s.pool.Exec(ctx,
			`INSERT INTO predictions (id, employee_id, dataset_id, probability, confidence, attributions, outcome, created_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			 ON CONFLICT (id) DO UPDATE SET
			   probability = EXCLUDED.probability,
			   confidence = EXCLUDED.confidence,
			   attributions = EXCLUDED.attributions,
			   outcome = EXCLUDED.outcome`,
			p.ID, p.EmployeeID, p.DatasetID, p.Probability, p.Confidence, attrJSON, p.Outcome, p.CreatedAt,
		)
		return markTransientDB(execErr)
	})
	return eris.Wrap(err, "postgres: upsert prediction")
}

func (s *PostgresStore) LatestPrediction(ctx context.Context, employeeID string) (*model.Prediction, error) {
	row := s.pool.QueryRow(ctx, preparedStatements["latest_prediction"], employeeID)

	var p model.Prediction
	var attrJSON []byte
	err := row.Scan(&p.ID, &p.EmployeeID, &p.DatasetID, &p.Probability, &p.Confidence, &attrJSON, &p.Outcome, &p.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: latest prediction %s", employeeID)
	}
	if len(attrJSON) > 0 {
		if err := json.Unmarshal(attrJSON, &p.Attributions); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal attributions")
		}
	}
	return &p, nil
}

func (s *PostgresStore) ListProbabilities(ctx context.Context, datasetID string) ([]float64, error) {
	return s.listFloats(ctx,
		`SELECT probability FROM predictions WHERE dataset_id = $1`, datasetID,
		"postgres: list probabilities")
}

func (s *PostgresStore) ListSHAPMagnitudes(ctx context.Context, datasetID string) ([]float64, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT attributions FROM predictions WHERE dataset_id = $1 AND attributions IS NOT NULL`,
		datasetID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list shap magnitudes")
	}
	defer rows.Close()

	var out []float64
	for rows.Next() {
		var attrJSON []byte
		if err := rows.Scan(&attrJSON); err != nil {
			return nil, eris.Wrap(err, "postgres: scan attributions")
		}
		out = appendMagnitudes(out, string(attrJSON))
	}
	return out, eris.Wrap(rows.Err(), "postgres: list shap magnitudes iterate")
}

func (s *PostgresStore) ListLabeledOutcomes(ctx context.Context, datasetID string) ([]model.LabeledOutcome, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT probability, outcome FROM predictions WHERE dataset_id = $1 AND outcome IS NOT NULL`,
		datasetID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list labeled outcomes")
	}
	defer rows.Close()

	var out []model.LabeledOutcome
	for rows.Next() {
		var lo model.LabeledOutcome
		if err := rows.Scan(&lo.Probability, &lo.Departed); err != nil {
			return nil, eris.Wrap(err, "postgres: scan labeled outcome")
		}
		out = append(out, lo)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list labeled outcomes iterate")
}

func (s *PostgresStore) AddInterview(ctx context.Context, iv *model.Interview) error {
	if iv.ID == "" {
		iv.ID = uuid.New().String()
	}
	if iv.ConductedAt.IsZero() {
		iv.ConductedAt = time.Now().UTC()
	}

	err := resilience.Do(ctx, s.retry, func(ctx context.Context) error {
		_, execErr := s.pool.Exec(ctx,
			`INSERT INTO interviews (id, employee_id, dataset_id, kind, sentiment, notes, conducted_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			iv.ID, iv.EmployeeID, iv.DatasetID, iv.Kind, iv.Sentiment, iv.Notes, iv.ConductedAt,
		)
		return markTransientDB(execErr)
	})
	return eris.Wrap(err, "postgres: add interview")
}

func (s *PostgresStore) ListInterviews(ctx context.Context, employeeID string) ([]model.Interview, error) {
	rows, err := s.pool.Query(ctx, preparedStatements["list_interviews"], employeeID)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list interviews")
	}
	defer rows.Close()

	var out []model.Interview
	for rows.Next() {
		var iv model.Interview
		if err := rows.Scan(&iv.ID, &iv.EmployeeID, &iv.DatasetID, &iv.Kind, &iv.Sentiment, &iv.Notes, &iv.ConductedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan interview")
		}
		out = append(out, iv)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list interviews iterate")
}

func (s *PostgresStore) ListSentimentScores(ctx context.Context, datasetID string) ([]float64, error) {
	return s.listFloats(ctx,
		`SELECT sentiment FROM interviews WHERE dataset_id = $1`, datasetID,
		"postgres: list sentiment scores")
}

func (s *PostgresStore) UpsertResult(ctx context.Context, res *model.ChurnReasoningResult) error {
	payload, err := json.Marshal(res)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal result")
	}

	err = resilience.Do(ctx, s.retry, func(ctx context.Context) error {
		tx, txErr := s.pool.Begin(ctx)
		if txErr != nil {
			return markTransientDB(txErr)
		}
		defer tx.Rollback(ctx)

		if _, txErr = tx.Exec(ctx,
			`INSERT INTO churn_results (employee_id, dataset_id, risk_score, risk_level, payload, calculated_at, cache_valid_until)
			 VALUES ($1, $2, $3, $4, $5, $6, $7)
			 ON CONFLICT (employee_id) DO UPDATE SET
			   dataset_id = EXCLUDED.dataset_id,
			   risk_score = EXCLUDED.risk_score,
			   risk_level = EXCLUDED.risk_level,
			   payload = EXCLUDED.payload,
			   calculated_at = EXCLUDED.calculated_at,
			   cache_valid_until = EXCLUDED.cache_valid_until`,
			res.EmployeeID, res.DatasetID, res.RiskScore, string(res.RiskLevel), payload, res.CalculatedAt, res.CacheValidUntil,
		); txErr != nil {
			return markTransientDB(txErr)
		}

		// Append to the history feed used for risk-change calibration.
		if _, txErr = tx.Exec(ctx,
			`INSERT INTO risk_history (id, employee_id, dataset_id, risk_score, calculated_at) VALUES ($1, $2, $3, $4, $5)`,
			uuid.New().String(), res.EmployeeID, res.DatasetID, res.RiskScore, res.CalculatedAt,
		); txErr != nil {
			return markTransientDB(txErr)
		}

		return markTransientDB(tx.Commit(ctx))
	})
	return eris.Wrapf(err, "postgres: upsert result %s", res.EmployeeID)
}

func (s *PostgresStore) GetResult(ctx context.Context, employeeID string) (*model.ChurnReasoningResult, error) {
	var payload []byte
	err := s.pool.QueryRow(ctx, preparedStatements["get_result"], employeeID).Scan(&payload)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get result %s", employeeID)
	}

	var res model.ChurnReasoningResult
	if err := json.Unmarshal(payload, &res); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal result")
	}
	return &res, nil
}

func (s *PostgresStore) ListResults(ctx context.Context, datasetID string, limit int) ([]model.ChurnReasoningResult, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.pool.Query(ctx,
		`SELECT payload FROM churn_results WHERE dataset_id = $1
		 ORDER BY calculated_at DESC LIMIT $2`,
		datasetID, limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list results")
	}
	defer rows.Close()

	var out []model.ChurnReasoningResult
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, eris.Wrap(err, "postgres: scan result")
		}
		var res model.ChurnReasoningResult
		if err := json.Unmarshal(payload, &res); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal result")
		}
		out = append(out, res)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list results iterate")
}

func (s *PostgresStore) ListRiskDeltas(ctx context.Context, datasetID string) ([]float64, error) {
	return s.listFloats(ctx,
		`SELECT delta FROM (
		   SELECT risk_score - lag(risk_score) OVER (PARTITION BY employee_id ORDER BY calculated_at) AS delta
		   FROM risk_history WHERE dataset_id = $1
		 ) d WHERE delta IS NOT NULL`,
		datasetID, "postgres: list risk deltas")
}

func (s *PostgresStore) ListFeatureValues(ctx context.Context, datasetID, feature string) ([]float64, error) {
	col, ok := featureColumns[feature]
	if !ok {
		return nil, eris.Errorf("postgres: unknown feature %q", feature)
	}
	return s.listFloats(ctx,
		`SELECT `+col+` FROM employees WHERE dataset_id = $1`, datasetID,
		"postgres: list feature values")
}

func (s *PostgresStore) AttritionRate(ctx context.Context, datasetID string) (float64, int, error) {
	var departed, total int
	err := s.pool.QueryRow(ctx,
		`SELECT COALESCE(SUM(CASE WHEN status = 'departed' THEN 1 ELSE 0 END), 0), COUNT(*)
		 FROM employees WHERE dataset_id = $1`,
		datasetID,
	).Scan(&departed, &total)
	if err != nil {
		return 0, 0, eris.Wrap(err, "postgres: attrition rate")
	}
	if total == 0 {
		return 0, 0, nil
	}
	return float64(departed) / float64(total), total, nil
}

func (s *PostgresStore) GetThresholds(ctx context.Context, datasetID string) (*model.DatasetThresholds, error) {
	var payload []byte
	err := s.pool.QueryRow(ctx, preparedStatements["get_thresholds"], datasetID).Scan(&payload)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get thresholds %s", datasetID)
	}

	var th model.DatasetThresholds
	if err := json.Unmarshal(payload, &th); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal thresholds")
	}
	return &th, nil
}

func (s *PostgresStore) UpsertThresholds(ctx context.Context, th *model.DatasetThresholds) error {
	payload, err := json.Marshal(th)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal thresholds")
	}

	err = resilience.Do(ctx, s.retry, func(ctx context.Context) error {
		_, execErr := s.pool.Exec(ctx,
			`INSERT INTO dataset_thresholds (dataset_id, payload, computed_at, sample_size)
			 VALUES ($1, $2, $3, $4)
			 ON CONFLICT (dataset_id) DO UPDATE SET
			   payload = EXCLUDED.payload,
			   computed_at = EXCLUDED.computed_at,
			   sample_size = EXCLUDED.sample_size`,
			th.DatasetID, payload, th.ComputedAt, th.SampleSize,
		)
		return markTransientDB(execErr)
	})
	return eris.Wrapf(err, "postgres: upsert thresholds %s", th.DatasetID)
}

func (s *PostgresStore) listFloats(ctx context.Context, query, datasetID, wrapMsg string) ([]float64, error) {
	rows, err := s.pool.Query(ctx, query, datasetID)
	if err != nil {
		return nil, eris.Wrap(err, wrapMsg)
	}
	defer rows.Close()

	var out []float64
	for rows.Next() {
		var v float64
		if err := rows.Scan(&v); err != nil {
			return nil, eris.Wrap(err, wrapMsg+" scan")
		}
		out = append(out, v)
	}
	return out, eris.Wrap(rows.Err(), wrapMsg+" iterate")
}
