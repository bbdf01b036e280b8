package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/retain-cli/internal/model"
)

// featureColumns whitelists employee columns usable as calibration
// features. Keys match the names persisted in DatasetThresholds.
var featureColumns = map[string]string{
	"salary":                 "salary",
	"tenure_months":          "tenure_months",
	"weekly_hours":           "weekly_hours",
	"project_count":          "project_count",
	"manager_changes":        "manager_changes",
	"months_since_raise":     "months_since_raise",
	"months_since_promotion": "months_since_promotion",
	"remote_ratio":           "remote_ratio",
	"last_review_score":      "last_review_score",
	"eltv":                   "eltv",
}

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS employees (
	id                     TEXT PRIMARY KEY,
	dataset_id             TEXT NOT NULL,
	name                   TEXT NOT NULL DEFAULT '',
	department             TEXT NOT NULL DEFAULT '',
	role                   TEXT NOT NULL DEFAULT '',
	status                 TEXT NOT NULL DEFAULT 'active',
	salary                 REAL NOT NULL DEFAULT 0,
	tenure_months          REAL NOT NULL DEFAULT 0,
	weekly_hours           REAL NOT NULL DEFAULT 0,
	project_count          INTEGER NOT NULL DEFAULT 0,
	manager_changes        INTEGER NOT NULL DEFAULT 0,
	months_since_raise     REAL NOT NULL DEFAULT 0,
	months_since_promotion REAL NOT NULL DEFAULT 0,
	remote_ratio           REAL NOT NULL DEFAULT 0,
	last_review_score      REAL NOT NULL DEFAULT 0,
	eltv                   REAL NOT NULL DEFAULT 0,
	updated_at             DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS predictions (
	id           TEXT PRIMARY KEY,
	employee_id  TEXT NOT NULL REFERENCES employees(id),
	dataset_id   TEXT NOT NULL,
	probability  REAL NOT NULL,
	confidence   REAL NOT NULL,
	attributions TEXT,
	outcome      INTEGER,
	created_at   DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS interviews (
	id           TEXT PRIMARY KEY,
	employee_id  TEXT NOT NULL REFERENCES employees(id),
	dataset_id   TEXT NOT NULL,
	kind         TEXT NOT NULL,
	sentiment    REAL NOT NULL,
	notes        TEXT NOT NULL DEFAULT '',
	conducted_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS churn_results (
	employee_id      TEXT PRIMARY KEY,
	dataset_id       TEXT NOT NULL,
	risk_score       REAL NOT NULL,
	risk_level       TEXT NOT NULL,
	payload          TEXT NOT NULL,
	calculated_at    DATETIME NOT NULL,
	cache_valid_until DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS risk_history (
	id            TEXT PRIMARY KEY,
	employee_id   TEXT NOT NULL,
	dataset_id    TEXT NOT NULL,
	risk_score    REAL NOT NULL,
	calculated_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS dataset_thresholds (
	dataset_id  TEXT PRIMARY KEY,
	payload     TEXT NOT NULL,
	computed_at DATETIME NOT NULL,
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

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

const sqliteEmployeeUpsert = `
INSERT INTO employees (
	id, dataset_id, name, department, role, status,
	salary, tenure_months, weekly_hours, project_count, manager_changes,
	months_since_raise, months_since_promotion, remote_ratio, last_review_score, eltv, updated_at
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (id) DO UPDATE SET
	dataset_id = excluded.dataset_id,
	name = excluded.name,
	department = excluded.department,
	role = excluded.role,
	status = excluded.status,
	salary = excluded.salary,
	tenure_months = excluded.tenure_months,
	weekly_hours = excluded.weekly_hours,
	project_count = excluded.project_count,
	manager_changes = excluded.manager_changes,
	months_since_raise = excluded.months_since_raise,
	months_since_promotion = excluded.months_since_promotion,
	remote_ratio = excluded.remote_ratio,
	last_review_score = excluded.last_review_score,
	eltv = excluded.eltv,
	updated_at = excluded.updated_at`

func (s *SQLiteStore) UpsertEmployees(ctx context.Context, employees []model.Employee) (int, error) {
	if len(employees) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: begin upsert employees")
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, sqliteEmployeeUpsert)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: prepare upsert employees")
	}
	defer stmt.Close()

	now := time.Now().UTC()
	for i := range employees {
		e := &employees[i]
		if e.ID == "" {
			e.ID = uuid.New().String()
		}
		if e.UpdatedAt.IsZero() {
			e.UpdatedAt = now
		}
		if _, err := stmt.ExecContext(ctx,
			e.ID, e.DatasetID, e.Name, e.Department, e.Role, string(e.Status),
			e.Salary, e.TenureMonths, e.WeeklyHours, e.ProjectCount, e.ManagerChanges,
			e.MonthsSinceRaise, e.MonthsSincePromotion, e.RemoteRatio, e.LastReviewScore, e.ELTV, e.UpdatedAt,
		); err != nil {
			return 0, eris.Wrapf(err, "sqlite: upsert employee %s", e.ID)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, eris.Wrap(err, "sqlite: commit upsert employees")
	}
	return len(employees), nil
}

func (s *SQLiteStore) GetEmployee(ctx context.Context, employeeID string) (*model.Employee, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, dataset_id, name, department, role, status,
		        salary, tenure_months, weekly_hours, project_count, manager_changes,
		        months_since_raise, months_since_promotion, remote_ratio, last_review_score, eltv, updated_at
		 FROM employees WHERE id = ?`,
		employeeID,
	)

	var e model.Employee
	err := row.Scan(
		&e.ID, &e.DatasetID, &e.Name, &e.Department, &e.Role, &e.Status,
		&e.Salary, &e.TenureMonths, &e.WeeklyHours, &e.ProjectCount, &e.ManagerChanges,
		&e.MonthsSinceRaise, &e.MonthsSincePromotion, &e.RemoteRatio, &e.LastReviewScore, &e.ELTV, &e.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get employee %s", employeeID)
	}
	return &e, nil
}

func (s *SQLiteStore) ListEmployeeIDs(ctx context.Context, datasetID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id FROM employees WHERE dataset_id = ? ORDER BY id`, datasetID)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list employee ids")
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan employee id")
		}
		ids = append(ids, id)
	}
	return ids, eris.Wrap(rows.Err(), "sqlite: list employee ids iterate")
}

func (s *SQLiteStore) UpsertPrediction(ctx context.Context, p *model.Prediction) error {
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}

	attrJSON, err := json.Marshal(p.Attributions)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal attributions")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO predictions (id, employee_id, dataset_id, probability, confidence, attributions, outcome, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (id) DO UPDATE SET
		   probability = excluded.probability,
		   confidence = excluded.confidence,
		   attributions = excluded.attributions,
		   outcome = excluded.outcome`,
		p.ID, p.EmployeeID, p.DatasetID, p.Probability, p.Confidence, string(attrJSON), p.Outcome, p.CreatedAt,
	)
	return eris.Wrap(err, "sqlite: upsert prediction")
}

func (s *SQLiteStore) LatestPrediction(ctx context.Context, employeeID string) (*model.Prediction, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, employee_id, dataset_id, probability, confidence, attributions, outcome, created_at
		 FROM predictions WHERE employee_id = ?
		 ORDER BY created_at DESC LIMIT 1`,
		employeeID,
	)
	return scanPrediction(row)
}

func (s *SQLiteStore) ListProbabilities(ctx context.Context, datasetID string) ([]float64, error) {
	return s.listFloats(ctx,
		`SELECT probability FROM predictions WHERE dataset_id = ?`, datasetID,
		"sqlite: list probabilities")
}

func (s *SQLiteStore) ListSHAPMagnitudes(ctx context.Context, datasetID string) ([]float64, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT attributions FROM predictions WHERE dataset_id = ? AND attributions IS NOT NULL`,
		datasetID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list shap magnitudes")
	}
	defer rows.Close()

	var out []float64
	for rows.Next() {
		var attrJSON string
		if err := rows.Scan(&attrJSON); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan attributions")
		}
		out = appendMagnitudes(out, attrJSON)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list shap magnitudes iterate")
}

func (s *SQLiteStore) ListLabeledOutcomes(ctx context.Context, datasetID string) ([]model.LabeledOutcome, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT probability, outcome FROM predictions WHERE dataset_id = ? AND outcome IS NOT NULL`,
		datasetID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list labeled outcomes")
	}
	defer rows.Close()

	var out []model.LabeledOutcome
	for rows.Next() {
		var lo model.LabeledOutcome
		if err := rows.Scan(&lo.Probability, &lo.Departed); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan labeled outcome")
		}
		out = append(out, lo)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list labeled outcomes iterate")
}

func (s *SQLiteStore) AddInterview(ctx context.Context, iv *model.Interview) error {
	if iv.ID == "" {
		iv.ID = uuid.New().String()
	}
	if iv.ConductedAt.IsZero() {
		iv.ConductedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO interviews (id, employee_id, dataset_id, kind, sentiment, notes, conducted_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		iv.ID, iv.EmployeeID, iv.DatasetID, iv.Kind, iv.Sentiment, iv.Notes, iv.ConductedAt,
	)
	return eris.Wrap(err, "sqlite: add interview")
}

func (s *SQLiteStore) ListInterviews(ctx context.Context, employeeID string) ([]model.Interview, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, employee_id, dataset_id, kind, sentiment, notes, conducted_at
		 FROM interviews WHERE employee_id = ?
		 ORDER BY conducted_at DESC`,
		employeeID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list interviews")
	}
	defer rows.Close()

	var out []model.Interview
	for rows.Next() {
		var iv model.Interview
		if err := rows.Scan(&iv.ID, &iv.EmployeeID, &iv.DatasetID, &iv.Kind, &iv.Sentiment, &iv.Notes, &iv.ConductedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan interview")
		}
		out = append(out, iv)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list interviews iterate")
}

func (s *SQLiteStore) ListSentimentScores(ctx context.Context, datasetID string) ([]float64, error) {
	return s.listFloats(ctx,
		`SELECT sentiment FROM interviews WHERE dataset_id = ?`, datasetID,
		"sqlite: list sentiment scores")
}

func (s *SQLiteStore) UpsertResult(ctx context.Context, res *model.ChurnReasoningResult) error {
	payload, err := json.Marshal(res)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal result")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin upsert result")
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO churn_results (employee_id, dataset_id, risk_score, risk_level, payload, calculated_at, cache_valid_until)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (employee_id) DO UPDATE SET
		   dataset_id = excluded.dataset_id,
		   risk_score = excluded.risk_score,
		   risk_level = excluded.risk_level,
		   payload = excluded.payload,
		   calculated_at = excluded.calculated_at,
		   cache_valid_until = excluded.cache_valid_until`,
		res.EmployeeID, res.DatasetID, res.RiskScore, string(res.RiskLevel), string(payload), res.CalculatedAt, res.CacheValidUntil,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: upsert result %s", res.EmployeeID)
	}

	// Append to the history feed used for risk-change calibration.
	_, err = tx.ExecContext(ctx,
		`INSERT INTO risk_history (id, employee_id, dataset_id, risk_score, calculated_at) VALUES (?, ?, ?, ?, ?)`,
		uuid.New().String(), res.EmployeeID, res.DatasetID, res.RiskScore, res.CalculatedAt,
	)
	if err != nil {
		return eris.Wrap(err, "sqlite: insert risk history")
	}

	return eris.Wrap(tx.Commit(), "sqlite: commit upsert result")
}

func (s *SQLiteStore) GetResult(ctx context.Context, employeeID string) (*model.ChurnReasoningResult, error) {
	var payload string
	err := s.db.QueryRowContext(ctx,
		`SELECT payload FROM churn_results WHERE employee_id = ?`, employeeID,
	).Scan(&payload)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get result %s", employeeID)
	}

	var res model.ChurnReasoningResult
	if err := json.Unmarshal([]byte(payload), &res); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal result")
	}
	return &res, nil
}

func (s *SQLiteStore) ListResults(ctx context.Context, datasetID string, limit int) ([]model.ChurnReasoningResult, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT payload FROM churn_results WHERE dataset_id = ?
		 ORDER BY calculated_at DESC LIMIT ?`,
		datasetID, limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list results")
	}
	defer rows.Close()

	var out []model.ChurnReasoningResult
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan result")
		}
		var res model.ChurnReasoningResult
		if err := json.Unmarshal([]byte(payload), &res); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal result")
		}
		out = append(out, res)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list results iterate")
}

func (s *SQLiteStore) ListRiskDeltas(ctx context.Context, datasetID string) ([]float64, error) {
	return s.listFloats(ctx,
		`SELECT delta FROM (
		   SELECT risk_score - lag(risk_score) OVER (PARTITION BY employee_id ORDER BY calculated_at) AS delta
		   FROM risk_history WHERE dataset_id = ?
		 ) WHERE delta IS NOT NULL`,
		datasetID, "sqlite: list risk deltas")
}

func (s *SQLiteStore) ListFeatureValues(ctx context.Context, datasetID, feature string) ([]float64, error) {
	col, ok := featureColumns[feature]
	if !ok {
		return nil, eris.Errorf("sqlite: unknown feature %q", feature)
	}
	return s.listFloats(ctx,
		`SELECT `+col+` FROM employees WHERE dataset_id = ?`, datasetID,
		"sqlite: list feature values")
}

func (s *SQLiteStore) AttritionRate(ctx context.Context, datasetID string) (float64, int, error) {
	var departed, total int
	err := s.db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(CASE WHEN status = 'departed' THEN 1 ELSE 0 END), 0), COUNT(*)
		 FROM employees WHERE dataset_id = ?`,
		datasetID,
	).Scan(&departed, &total)
	if err != nil {
		return 0, 0, eris.Wrap(err, "sqlite: attrition rate")
	}
	if total == 0 {
		return 0, 0, nil
	}
	return float64(departed) / float64(total), total, nil
}

func (s *SQLiteStore) GetThresholds(ctx context.Context, datasetID string) (*model.DatasetThresholds, error) {
	var payload string
	err := s.db.QueryRowContext(ctx,
		`SELECT payload FROM dataset_thresholds WHERE dataset_id = ?`, datasetID,
	).Scan(&payload)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get thresholds %s", datasetID)
	}

	var th model.DatasetThresholds
	if err := json.Unmarshal([]byte(payload), &th); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal thresholds")
	}
	return &th, nil
}

func (s *SQLiteStore) UpsertThresholds(ctx context.Context, th *model.DatasetThresholds) error {
	payload, err := json.Marshal(th)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal thresholds")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO dataset_thresholds (dataset_id, payload, computed_at, sample_size)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT (dataset_id) DO UPDATE SET
		   payload = excluded.payload,
		   computed_at = excluded.computed_at,
		   sample_size = excluded.sample_size`,
		th.DatasetID, string(payload), th.ComputedAt, th.SampleSize,
	)
	return eris.Wrapf(err, "sqlite: upsert thresholds %s", th.DatasetID)
}

// helpers

func (s *SQLiteStore) listFloats(ctx context.Context, query, datasetID, wrapMsg string) ([]float64, error) {
	rows, err := s.db.QueryContext(ctx, query, datasetID)
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

type scannable interface {
	Scan(dest ...any) error
}

func scanPrediction(row scannable) (*model.Prediction, error) {
	var p model.Prediction
	var attrJSON sql.NullString
	err := row.Scan(&p.ID, &p.EmployeeID, &p.DatasetID, &p.Probability, &p.Confidence, &attrJSON, &p.Outcome, &p.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrap(err, "store: scan prediction")
	}
	if attrJSON.Valid && attrJSON.String != "" && attrJSON.String != "null" {
		if err := json.Unmarshal([]byte(attrJSON.String), &p.Attributions); err != nil {
			return nil, eris.Wrap(err, "store: unmarshal attributions")
		}
	}
	return &p, nil
}

// appendMagnitudes decodes one attributions array and appends the
// absolute impacts. Malformed rows are skipped rather than failing the
// whole sample query.
func appendMagnitudes(out []float64, attrJSON string) []float64 {
	var attrs []model.Attribution
	if err := json.Unmarshal([]byte(attrJSON), &attrs); err != nil {
		return out
	}
	for _, a := range attrs {
		impact := a.Impact
		if impact < 0 {
			impact = -impact
		}
		out = append(out, impact)
	}
	return out
}
