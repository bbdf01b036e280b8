package model

import "time"

// ComponentKind identifies one of the four independent risk signals.
type ComponentKind string

const (
	ComponentML        ComponentKind = "ml"
	ComponentHeuristic ComponentKind = "heuristic"
	ComponentStage     ComponentKind = "stage"
	ComponentInterview ComponentKind = "interview"
)

// Attribution is a per-feature SHAP contribution from the ML model.
// Impact is signed: positive pushes the prediction toward attrition.
type Attribution struct {
	Feature string  `json:"feature"`
	Value   float64 `json:"value"`
	Impact  float64 `json:"impact"`
}

// ComponentResult is one provider's (score, confidence) pair plus its
// provider-specific evidence. Immutable once produced; the aggregator
// embeds copies in the final result.
type ComponentResult struct {
	Kind       ComponentKind `json:"kind"`
	Score      float64       `json:"score"`      // 0.0-1.0; the interview component carries a signed adjustment instead
	Confidence float64       `json:"confidence"` // 0.0-1.0

	// ML evidence.
	Attributions []Attribution `json:"attributions,omitempty"`

	// Heuristic evidence.
	TriggeredRules []string `json:"triggered_rules,omitempty"`
	Alerts         []string `json:"alerts,omitempty"`
	Coverage       float64  `json:"coverage,omitempty"` // fraction of rules evaluable

	// Stage evidence.
	StageName string `json:"stage_name,omitempty"`

	// Interview evidence.
	Insights       []string `json:"insights,omitempty"`
	AvgSentiment   float64  `json:"avg_sentiment,omitempty"`
	InterviewCount int      `json:"interview_count,omitempty"`

	// Shared.
	Recommendations []string `json:"recommendations,omitempty"`
}

// Prediction is a persisted model output for one employee. Outcome is
// filled in once the ground truth is known, making the row usable as a
// labeled sample for classification-threshold search.
type Prediction struct {
	ID           string        `json:"id"`
	EmployeeID   string        `json:"employee_id"`
	DatasetID    string        `json:"dataset_id"`
	Probability  float64       `json:"probability"`
	Confidence   float64       `json:"confidence"`
	Attributions []Attribution `json:"attributions,omitempty"`
	Outcome      *bool         `json:"outcome,omitempty"`
	CreatedAt    time.Time     `json:"created_at"`
}

// LabeledOutcome pairs a predicted probability with the observed result.
type LabeledOutcome struct {
	Probability float64 `json:"probability"`
	Departed    bool    `json:"departed"`
}
