// Package reasoning fuses the four component risk signals into a single
// classified ChurnReasoningResult per employee. Providers run
// concurrently and must return a neutral low-confidence result rather
// than fail on missing data; a provider error aborts the whole
// calculation for that employee.
package reasoning

import (
	"context"

	"github.com/sells-group/retain-cli/internal/model"
)

// MLProvider supplies the model-predicted attrition probability with
// per-feature attributions.
type MLProvider interface {
	Score(ctx context.Context, emp *model.Employee) (model.ComponentResult, error)
}

// HeuristicProvider evaluates configured business rules against the
// employee record.
type HeuristicProvider interface {
	Evaluate(ctx context.Context, emp *model.Employee) (model.ComponentResult, error)
}

// StageProvider classifies the employee's tenure stage and its baseline
// hazard.
type StageProvider interface {
	Classify(ctx context.Context, emp *model.Employee) (model.ComponentResult, error)
}

// InterviewProvider aggregates recorded interview sentiment into a
// signed risk adjustment. The returned Score is the adjustment, not a
// probability.
type InterviewProvider interface {
	Analyze(ctx context.Context, emp *model.Employee) (model.ComponentResult, error)
}

// Providers bundles the four component sources handed to the
// aggregator.
type Providers struct {
	ML        MLProvider
	Heuristic HeuristicProvider
	Stage     StageProvider
	Interview InterviewProvider
}

// ResultStore is the slice of the persistence layer the aggregator
// needs: employee lookup plus read/upsert of computed results.
type ResultStore interface {
	GetEmployee(ctx context.Context, employeeID string) (*model.Employee, error)
	GetResult(ctx context.Context, employeeID string) (*model.ChurnReasoningResult, error)
	UpsertResult(ctx context.Context, res *model.ChurnReasoningResult) error
}
