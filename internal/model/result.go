package model

import "time"

// RiskLevel is the final classification of an employee's attrition risk.
type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

// WeightedComponent records one blended component as it entered the
// final calculation: the raw score, the provider's confidence, and the
// normalized weight actually applied.
type WeightedComponent struct {
	Score      float64 `json:"score"`
	Confidence float64 `json:"confidence"`
	Weight     float64 `json:"weight"`
}

// ReasoningBreakdown explains exactly how the final score was produced.
// Produced once per aggregation and never mutated afterward.
type ReasoningBreakdown struct {
	ML        WeightedComponent `json:"ml"`
	Heuristic WeightedComponent `json:"heuristic"`
	Stage     WeightedComponent `json:"stage"`

	InterviewAdjustment float64 `json:"interview_adjustment"`
	FinalScore          float64 `json:"final_score"`
	FinalConfidence     float64 `json:"final_confidence"`

	Calculation string `json:"calculation"`
	Rationale   string `json:"rationale"`
}

// ChurnReasoningResult is the unit of work product: one employee's
// fused risk decision with full supporting evidence. Superseded, not
// versioned, on recomputation.
type ChurnReasoningResult struct {
	ID         string    `json:"id"`
	EmployeeID string    `json:"employee_id"`
	DatasetID  string    `json:"dataset_id"`
	RiskScore  float64   `json:"risk_score"`
	RiskLevel  RiskLevel `json:"risk_level"`
	Confidence float64   `json:"confidence"`

	Components map[ComponentKind]ComponentResult `json:"components"`
	Breakdown  ReasoningBreakdown                `json:"breakdown"`

	Summary         string   `json:"summary"`
	Recommendations []string `json:"recommendations,omitempty"`
	Alerts          []string `json:"alerts,omitempty"`

	CalculatedAt    time.Time `json:"calculated_at"`
	CacheValidUntil time.Time `json:"cache_valid_until"`
}

// Fresh reports whether the cached result is still within its validity
// window at the given time.
func (r *ChurnReasoningResult) Fresh(now time.Time) bool {
	return now.Before(r.CacheValidUntil)
}
