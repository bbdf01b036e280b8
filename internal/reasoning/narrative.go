package reasoning

import (
	"context"
	"fmt"
	"strings"

	"github.com/sells-group/retain-cli/internal/model"
)

const (
	maxRecommendations = 5
	maxAlerts          = 5
	maxSummaryRules    = 3
)

// buildCalculation renders each weighted term plus the interview
// adjustment so a reviewer can reproduce the final score by hand.
func buildCalculation(b model.ReasoningBreakdown) string {
	return fmt.Sprintf("ml %.2f×%.3f + heuristic %.2f×%.3f + stage %.2f×%.3f + interview %+.2f = %.3f",
		b.ML.Score, b.ML.Weight,
		b.Heuristic.Score, b.Heuristic.Weight,
		b.Stage.Score, b.Stage.Weight,
		b.InterviewAdjustment, b.FinalScore,
	)
}

// buildSummary writes the prose rationale: risk label and score, an ML
// confidence caveat when it is weak, the tenure stage, the top
// triggered rules, and interview sentiment when interviews exist.
func (a *Aggregator) buildSummary(ctx context.Context, emp *model.Employee, res *model.ChurnReasoningResult) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "%s is at %s attrition risk (score %.2f).", displayName(emp), res.RiskLevel, res.RiskScore)

	ml := res.Components[model.ComponentML]
	if ml.Confidence <= 0.5 {
		fmt.Fprintf(&sb, " Model confidence is limited (%.0f%%), so rule and stage signals carry more of the decision.", ml.Confidence*100)
	}

	if stage := res.Components[model.ComponentStage]; stage.StageName != "" {
		fmt.Fprintf(&sb, " Tenure stage: %s.", stage.StageName)
	}

	if heur := res.Components[model.ComponentHeuristic]; len(heur.TriggeredRules) > 0 {
		rules := heur.TriggeredRules
		if len(rules) > maxSummaryRules {
			rules = rules[:maxSummaryRules]
		}
		fmt.Fprintf(&sb, " Triggered rules: %s.", strings.Join(rules, ", "))
	}

	if iv := res.Components[model.ComponentInterview]; iv.InterviewCount > 0 {
		label := a.calibrator.SentimentLabel(ctx, emp.DatasetID, iv.AvgSentiment)
		fmt.Fprintf(&sb, " Interview sentiment over %d conversation(s) is %s (avg %.2f).",
			iv.InterviewCount, strings.ToLower(string(label)), iv.AvgSentiment)
	}

	return sb.String()
}

func displayName(emp *model.Employee) string {
	if emp.Name != "" {
		return emp.Name
	}
	return "Employee " + emp.ID
}

// mergeRecommendations orders interview guidance first, then heuristic
// alerts rephrased as actions, then stage guidance. Deduplicated,
// capped, and marked urgent on a high-risk label.
func mergeRecommendations(level model.RiskLevel, interview, heuristicAlerts, stage []string) []string {
	merged := make([]string, 0, len(interview)+len(heuristicAlerts)+len(stage))
	merged = append(merged, interview...)
	for _, alert := range heuristicAlerts {
		merged = append(merged, "Address: "+alert)
	}
	merged = append(merged, stage...)

	merged = dedupeCap(merged, maxRecommendations)
	if level == model.RiskHigh && len(merged) > 0 {
		merged[0] = "URGENT: " + merged[0]
	}
	return merged
}

// mergeAlerts consolidates the risk-label alert, component alerts, and
// sentiment-derived alerts.
func (a *Aggregator) mergeAlerts(ctx context.Context, datasetID string, res *model.ChurnReasoningResult) []string {
	var alerts []string
	if res.RiskLevel == model.RiskHigh {
		alerts = append(alerts, fmt.Sprintf("High attrition risk (score %.2f)", res.RiskScore))
	}

	alerts = append(alerts, res.Components[model.ComponentHeuristic].Alerts...)
	alerts = append(alerts, res.Components[model.ComponentInterview].Alerts...)

	if iv := res.Components[model.ComponentInterview]; iv.InterviewCount > 0 {
		if a.calibrator.SentimentLabel(ctx, datasetID, iv.AvgSentiment) == model.SentimentConcerning {
			alerts = append(alerts, fmt.Sprintf("Very negative interview sentiment (avg %.2f)", iv.AvgSentiment))
		}
	}

	return dedupeCap(alerts, maxAlerts)
}

// dedupeCap keeps first occurrences in order, up to n entries.
func dedupeCap(items []string, n int) []string {
	seen := make(map[string]struct{}, len(items))
	out := make([]string, 0, len(items))
	for _, it := range items {
		if it == "" {
			continue
		}
		if _, ok := seen[it]; ok {
			continue
		}
		seen[it] = struct{}{}
		out = append(out, it)
		if len(out) == n {
			break
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
