package thresholds

import (
	"context"
	"sort"

	"go.uber.org/zap"

	"github.com/sells-group/retain-cli/internal/model"
)

// Method selects the objective for the classification-threshold search.
type Method string

const (
	MethodF1        Method = "f1"
	MethodPrecision Method = "precision"
	MethodRecall    Method = "recall"
	MethodCost      Method = "cost"
)

// DefaultCostRatio weights a false negative (missed leaver) against a
// false positive in the cost objective.
const DefaultCostRatio = 5.0

// confusion holds classification counts at one candidate threshold.
type confusion struct {
	tp, fp, fn, tn int
}

func confusionAt(outcomes []model.LabeledOutcome, threshold float64) confusion {
	var m confusion
	for _, o := range outcomes {
		predicted := o.Probability >= threshold
		switch {
		case predicted && o.Departed:
			m.tp++
		case predicted && !o.Departed:
			m.fp++
		case !predicted && o.Departed:
			m.fn++
		default:
			m.tn++
		}
	}
	return m
}

func (m confusion) precision() float64 {
	if m.tp+m.fp == 0 {
		return 0
	}
	return float64(m.tp) / float64(m.tp+m.fp)
}

func (m confusion) recall() float64 {
	if m.tp+m.fn == 0 {
		return 0
	}
	return float64(m.tp) / float64(m.tp+m.fn)
}

func (m confusion) f1() float64 {
	p, r := m.precision(), m.recall()
	if p+r == 0 {
		return 0
	}
	return 2 * p * r / (p + r)
}

// OptimalThreshold searches for the classification cut-point that best
// serves the given objective. Fewer than 50 labeled samples return the
// 0.5 default. Ties keep the first (lowest) candidate.
func OptimalThreshold(outcomes []model.LabeledOutcome, method Method, costRatio float64) float64 {
	if len(outcomes) < minLabeledSamples {
		return defaultClassification
	}
	if costRatio <= 0 {
		costRatio = DefaultCostRatio
	}

	switch method {
	case MethodPrecision:
		return thresholdForRecallFloor(outcomes)
	case MethodRecall:
		return thresholdForPrecisionFloor(outcomes)
	case MethodCost:
		return gridSearch(outcomes, func(m confusion) float64 {
			// Lower is better; negate so the grid keeps the maximum.
			return -(float64(m.fp) + costRatio*float64(m.fn))
		})
	default: // MethodF1
		return gridSearch(outcomes, confusion.f1)
	}
}

// gridSearch scans thresholds in [0.1, 0.9) step 0.01 and keeps the
// first candidate maximizing the objective.
func gridSearch(outcomes []model.LabeledOutcome, objective func(confusion) float64) float64 {
	best := 0.1
	bestValue := objective(confusionAt(outcomes, best))
	for i := 1; i < 80; i++ {
		t := 0.1 + 0.01*float64(i)
		if v := objective(confusionAt(outcomes, t)); v > bestValue {
			best, bestValue = t, v
		}
	}
	return best
}

// candidateThresholds returns the sorted distinct probabilities, the
// knots of the precision/recall curve.
func candidateThresholds(outcomes []model.LabeledOutcome) []float64 {
	seen := make(map[float64]struct{}, len(outcomes))
	var out []float64
	for _, o := range outcomes {
		if _, ok := seen[o.Probability]; ok {
			continue
		}
		seen[o.Probability] = struct{}{}
		out = append(out, o.Probability)
	}
	sort.Float64s(out)
	return out
}

// thresholdForRecallFloor picks the largest threshold at which recall
// still exceeds 0.5, maximizing precision under a recall floor.
func thresholdForRecallFloor(outcomes []model.LabeledOutcome) float64 {
	candidates := candidateThresholds(outcomes)
	for i := len(candidates) - 1; i >= 0; i-- {
		if confusionAt(outcomes, candidates[i]).recall() > 0.5 {
			return candidates[i]
		}
	}
	return 0.5
}

// thresholdForPrecisionFloor picks the smallest threshold at which
// precision still exceeds 0.3, maximizing recall under a precision
// floor.
func thresholdForPrecisionFloor(outcomes []model.LabeledOutcome) float64 {
	for _, t := range candidateThresholds(outcomes) {
		if confusionAt(outcomes, t).precision() > 0.3 {
			return t
		}
	}
	return 0.3
}

// ComputeOptimalThreshold runs the search and persists the chosen
// threshold and method into the dataset's cached entry. Below the
// minimum sample size the default is returned and nothing is cached.
func (c *Calibrator) ComputeOptimalThreshold(ctx context.Context, datasetID string, outcomes []model.LabeledOutcome, method Method, costRatio float64) float64 {
	threshold := OptimalThreshold(outcomes, method, costRatio)
	if len(outcomes) < minLabeledSamples {
		return threshold
	}

	c.mutate(ctx, datasetID, len(outcomes), func(th *model.DatasetThresholds) {
		th.Classification = model.Classification{Threshold: threshold, Method: string(method)}
	})

	zap.L().Info("thresholds: optimal classification threshold",
		zap.String("dataset", datasetKey(datasetID)),
		zap.String("method", string(method)),
		zap.Float64("threshold", threshold),
		zap.Int("samples", len(outcomes)),
	)
	return threshold
}

// Classify applies the dataset's optimal threshold (default 0.5) to a
// probability.
func (c *Calibrator) Classify(ctx context.Context, datasetID string, probability float64) bool {
	threshold := defaultClassification
	if th := c.Cached(ctx, datasetID); th != nil && th.Classification.Threshold > 0 {
		threshold = th.Classification.Threshold
	}
	return probability >= threshold
}
