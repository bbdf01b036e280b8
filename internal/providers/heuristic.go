package providers

import (
	"context"

	"github.com/sells-group/retain-cli/internal/model"
	"github.com/sells-group/retain-cli/internal/thresholds"
)

// Heuristic evaluates the configured retention rules against the
// employee record, using calibrated dataset bands where a rule needs
// them.
type Heuristic struct {
	cal   *thresholds.Calibrator
	rules []RuleConfig
}

// NewHeuristic builds the rule provider. A nil or empty rule set falls
// back to DefaultRules.
func NewHeuristic(cal *thresholds.Calibrator, rules []RuleConfig) *Heuristic {
	if len(rules) == 0 {
		rules = DefaultRules()
	}
	return &Heuristic{cal: cal, rules: rules}
}

// Evaluate runs every rule. The score is the triggered fraction of
// evaluable rule weight; confidence reports coverage, the fraction of
// rules whose inputs were present. No evaluable rules at all yields
// the neutral default.
func (h *Heuristic) Evaluate(ctx context.Context, emp *model.Employee) (model.ComponentResult, error) {
	var (
		triggered       []string
		alerts          []string
		evaluable       int
		weightTotal     float64
		weightTriggered float64
	)

	for _, r := range h.rules {
		hit, ok := h.evalRule(ctx, emp, r)
		if !ok {
			continue
		}
		evaluable++
		weightTotal += r.Weight
		if hit {
			weightTriggered += r.Weight
			triggered = append(triggered, r.Name)
			if r.Alert != "" {
				alerts = append(alerts, r.Alert)
			}
		}
	}

	if evaluable == 0 || weightTotal <= 0 {
		return model.ComponentResult{
			Kind:       model.ComponentHeuristic,
			Score:      neutralScore,
			Confidence: neutralConfidence,
		}, nil
	}

	coverage := float64(evaluable) / float64(len(h.rules))
	return model.ComponentResult{
		Kind:           model.ComponentHeuristic,
		Score:          clamp01(weightTriggered / weightTotal),
		Confidence:     clamp01(coverage),
		TriggeredRules: triggered,
		Alerts:         alerts,
		Coverage:       coverage,
	}, nil
}

// evalRule reports (triggered, evaluable) for one rule.
func (h *Heuristic) evalRule(ctx context.Context, emp *model.Employee, r RuleConfig) (bool, bool) {
	switch r.When {
	case condSalaryLowTier:
		if emp.Salary <= 0 {
			return false, false
		}
		return h.cal.SalaryTier(ctx, emp.DatasetID, emp.Salary) == model.SalaryLow, true

	case condRaiseStagnant:
		if emp.MonthsSinceRaise < 0 {
			return false, false
		}
		return emp.MonthsSinceRaise > r.Threshold, true

	case condPromotionStagnant:
		if emp.MonthsSincePromotion < 0 {
			return false, false
		}
		return emp.MonthsSincePromotion > r.Threshold, true

	case condWorkloadHigh:
		if emp.WeeklyHours <= 0 {
			return false, false
		}
		rank := h.cal.PercentileRank(ctx, emp.DatasetID, "weekly_hours", emp.WeeklyHours)
		return rank >= r.Threshold, true

	case condManagerChurn:
		if emp.ManagerChanges < 0 {
			return false, false
		}
		return float64(emp.ManagerChanges) >= r.Threshold, true

	case condOvertime:
		if emp.WeeklyHours <= 0 {
			return false, false
		}
		return emp.WeeklyHours > r.Threshold, true

	case condReviewLow:
		if emp.LastReviewScore <= 0 {
			return false, false
		}
		return emp.LastReviewScore < r.Threshold, true
	}
	return false, false
}
