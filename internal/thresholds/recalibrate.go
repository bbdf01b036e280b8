package thresholds

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/retain-cli/internal/model"
)

// CalibrationFeatures are the employee columns whose distributions are
// tracked for percentile-rank and anomaly queries.
var CalibrationFeatures = []string{
	"salary",
	"tenure_months",
	"weekly_hours",
	"project_count",
	"remote_ratio",
	"last_review_score",
}

// SampleSource supplies the empirical series a full recalibration
// consumes. The store satisfies this.
type SampleSource interface {
	ListProbabilities(ctx context.Context, datasetID string) ([]float64, error)
	ListSHAPMagnitudes(ctx context.Context, datasetID string) ([]float64, error)
	ListSentimentScores(ctx context.Context, datasetID string) ([]float64, error)
	ListRiskDeltas(ctx context.Context, datasetID string) ([]float64, error)
	ListLabeledOutcomes(ctx context.Context, datasetID string) ([]model.LabeledOutcome, error)
	ListFeatureValues(ctx context.Context, datasetID, feature string) ([]float64, error)
	AttritionRate(ctx context.Context, datasetID string) (float64, int, error)
}

// RecalibrateOptions tunes a full recalibration pass. Zero values fall
// back to the documented defaults.
type RecalibrateOptions struct {
	Method           Method
	CostRatio        float64
	HighPercentile   float64 // default 85
	MediumPercentile float64 // default 60
}

func (o RecalibrateOptions) withDefaults() RecalibrateOptions {
	if o.Method == "" {
		o.Method = MethodF1
	}
	if o.CostRatio <= 0 {
		o.CostRatio = DefaultCostRatio
	}
	if o.HighPercentile <= 0 {
		o.HighPercentile = 85
	}
	if o.MediumPercentile <= 0 {
		o.MediumPercentile = 60
	}
	return o
}

// Recalibrate recomputes every threshold group for a dataset from live
// samples. Insufficient sample sizes degrade to documented defaults;
// only sample-query failures are errors.
func (c *Calibrator) Recalibrate(ctx context.Context, src SampleSource, datasetID string, opts RecalibrateOptions) error {
	key := datasetKey(datasetID)
	opts = opts.withDefaults()

	probs, err := src.ListProbabilities(ctx, datasetID)
	if err != nil {
		return eris.Wrap(err, "thresholds: list probabilities")
	}
	c.ComputeRiskThresholds(ctx, datasetID, probs, opts.HighPercentile, opts.MediumPercentile)

	if salaries, err := src.ListFeatureValues(ctx, datasetID, "salary"); err != nil {
		return eris.Wrap(err, "thresholds: list salaries")
	} else if len(salaries) > 0 {
		c.ComputeSalaryTiers(ctx, datasetID, salaries)
	}

	if tenures, err := src.ListFeatureValues(ctx, datasetID, "tenure_months"); err != nil {
		return eris.Wrap(err, "thresholds: list tenures")
	} else if len(tenures) > 0 {
		c.ComputeTenureStages(ctx, datasetID, tenures)
	}

	if hours, err := src.ListFeatureValues(ctx, datasetID, "weekly_hours"); err != nil {
		return eris.Wrap(err, "thresholds: list weekly hours")
	} else if len(hours) > 0 {
		c.ComputeWorkloadBands(ctx, datasetID, hours)
	}

	if eltv, err := src.ListFeatureValues(ctx, datasetID, "eltv"); err != nil {
		return eris.Wrap(err, "thresholds: list eltv")
	} else if len(eltv) > 0 {
		c.ComputeELTVBands(ctx, datasetID, eltv)
	}

	columns := make(map[string][]float64, len(CalibrationFeatures))
	for _, feature := range CalibrationFeatures {
		values, err := src.ListFeatureValues(ctx, datasetID, feature)
		if err != nil {
			return eris.Wrapf(err, "thresholds: list feature %s", feature)
		}
		if len(values) > 0 {
			columns[feature] = values
		}
	}
	c.ComputeFeatureRanges(ctx, datasetID, columns)

	shap, err := src.ListSHAPMagnitudes(ctx, datasetID)
	if err != nil {
		return eris.Wrap(err, "thresholds: list shap magnitudes")
	}
	c.ComputeSHAPThresholds(ctx, datasetID, shap)

	sentiments, err := src.ListSentimentScores(ctx, datasetID)
	if err != nil {
		return eris.Wrap(err, "thresholds: list sentiment scores")
	}
	c.ComputeSentimentThresholds(ctx, datasetID, sentiments)

	deltas, err := src.ListRiskDeltas(ctx, datasetID)
	if err != nil {
		return eris.Wrap(err, "thresholds: list risk deltas")
	}
	c.ComputeRiskChangeThresholds(ctx, datasetID, deltas)

	rate, n, err := src.AttritionRate(ctx, datasetID)
	if err != nil {
		return eris.Wrap(err, "thresholds: attrition rate")
	}
	c.SetBaseHazardRate(ctx, datasetID, rate, n)

	outcomes, err := src.ListLabeledOutcomes(ctx, datasetID)
	if err != nil {
		return eris.Wrap(err, "thresholds: list labeled outcomes")
	}
	c.ComputeOptimalThreshold(ctx, datasetID, outcomes, opts.Method, opts.CostRatio)

	zap.L().Info("thresholds: recalibration complete",
		zap.String("dataset", key),
		zap.Int("probability_samples", len(probs)),
		zap.Int("shap_samples", len(shap)),
		zap.Int("sentiment_samples", len(sentiments)),
		zap.Int("delta_samples", len(deltas)),
		zap.Int("labeled_samples", len(outcomes)),
	)
	return nil
}
