// Package store persists employees, model predictions, interviews,
// computed risk results, and calibrated thresholds. Two backends are
// provided: Postgres for shared deployments and SQLite for local use.
package store

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/retain-cli/internal/model"
)

// ErrNotFound is returned by point lookups when no row matches.
// Callers distinguish it from infrastructure failures with eris.Is.
var ErrNotFound = eris.New("store: not found")

// Store defines the persistence interface for the risk engine.
type Store interface {
	// Employees
	UpsertEmployees(ctx context.Context, employees []model.Employee) (int, error)
	GetEmployee(ctx context.Context, employeeID string) (*model.Employee, error)
	ListEmployeeIDs(ctx context.Context, datasetID string) ([]string, error)

	// Model predictions
	UpsertPrediction(ctx context.Context, p *model.Prediction) error
	LatestPrediction(ctx context.Context, employeeID string) (*model.Prediction, error)
	ListProbabilities(ctx context.Context, datasetID string) ([]float64, error)
	ListSHAPMagnitudes(ctx context.Context, datasetID string) ([]float64, error)
	ListLabeledOutcomes(ctx context.Context, datasetID string) ([]model.LabeledOutcome, error)

	// Interviews
	AddInterview(ctx context.Context, iv *model.Interview) error
	ListInterviews(ctx context.Context, employeeID string) ([]model.Interview, error)
	ListSentimentScores(ctx context.Context, datasetID string) ([]float64, error)

	// Risk results
	UpsertResult(ctx context.Context, res *model.ChurnReasoningResult) error
	GetResult(ctx context.Context, employeeID string) (*model.ChurnReasoningResult, error)
	ListResults(ctx context.Context, datasetID string, limit int) ([]model.ChurnReasoningResult, error)
	ListRiskDeltas(ctx context.Context, datasetID string) ([]float64, error)

	// Calibration samples
	ListFeatureValues(ctx context.Context, datasetID, feature string) ([]float64, error)
	AttritionRate(ctx context.Context, datasetID string) (float64, int, error)

	// Thresholds
	GetThresholds(ctx context.Context, datasetID string) (*model.DatasetThresholds, error)
	UpsertThresholds(ctx context.Context, th *model.DatasetThresholds) error

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
