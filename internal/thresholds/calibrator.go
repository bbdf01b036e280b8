package thresholds

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/retain-cli/internal/model"
)

// Minimum sample sizes below which compute methods return their
// documented fallbacks and write nothing to the cache.
const (
	minRiskSamples      = 10
	minSHAPSamples      = 100
	minSentimentSamples = 10
	minChangeSamples    = 20
	minLabeledSamples   = 50
)

// Hard defaults used when a dataset has no cached thresholds or the
// cached entry is stale.
const (
	defaultRiskHigh   = 0.6
	defaultRiskMedium = 0.3

	defaultSHAPCritical = 0.3
	defaultSHAPHigh     = 0.15
	defaultSHAPMedium   = 0.05
	defaultSHAPLow      = 0.02

	defaultSentimentPositive = 0.6
	defaultSentimentNegative = 0.4

	defaultChangeSignificant = 0.2
	defaultChangeModerate    = 0.1

	defaultClassification = 0.5
)

// DefaultTTL bounds how long a computed DatasetThresholds entry is
// trusted before reads fall back to defaults.
const DefaultTTL = time.Hour

// CacheStore persists computed thresholds across processes. Reads treat
// any error as a cache miss; this package never fails a caller because
// persistence is unavailable.
type CacheStore interface {
	GetThresholds(ctx context.Context, datasetID string) (*model.DatasetThresholds, error)
	UpsertThresholds(ctx context.Context, th *model.DatasetThresholds) error
}

// Calibrator computes and serves per-dataset decision boundaries. It
// keeps an in-memory cache in front of the optional CacheStore; both
// are TTL-gated on read.
type Calibrator struct {
	store CacheStore // may be nil for memory-only operation
	ttl   time.Duration
	now   func() time.Time // injectable for testing

	mu    sync.RWMutex
	cache map[string]*model.DatasetThresholds
}

// New creates a Calibrator. A zero ttl means DefaultTTL.
func New(store CacheStore, ttl time.Duration) *Calibrator {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Calibrator{
		store: store,
		ttl:   ttl,
		now:   time.Now,
		cache: make(map[string]*model.DatasetThresholds),
	}
}

// WithNow sets a fixed clock for testing.
func (c *Calibrator) WithNow(fn func() time.Time) *Calibrator {
	c.now = fn
	return c
}

func datasetKey(datasetID string) string {
	if datasetID == "" {
		return model.DefaultDatasetKey
	}
	return datasetID
}

// Cached returns the dataset's thresholds if present and fresh, nil
// otherwise. Stale entries are treated as absent, not deleted eagerly.
func (c *Calibrator) Cached(ctx context.Context, datasetID string) *model.DatasetThresholds {
	key := datasetKey(datasetID)
	now := c.now()

	c.mu.RLock()
	th, ok := c.cache[key]
	c.mu.RUnlock()
	if ok && !th.Stale(now, c.ttl) {
		return th
	}

	// A stale or missing memory copy may hide a fresher row written by
	// another process (a calibrate run against the shared store), so
	// fall through to the store read, which re-checks freshness.
	if c.store == nil {
		return nil
	}
	stored, err := c.store.GetThresholds(ctx, key)
	if err != nil {
		zap.L().Warn("thresholds: cache read failed",
			zap.String("dataset", key),
			zap.Error(err),
		)
		return nil
	}
	if stored == nil || stored.Stale(now, c.ttl) {
		return nil
	}

	c.mu.Lock()
	c.cache[key] = stored
	c.mu.Unlock()
	return stored
}

// mutate applies fn to a copy of the dataset's entry (stale or fresh;
// created if absent), refreshes its timestamp, swaps the copy in, and
// writes it through to the store. Cached entries are never modified in
// place, so readers can hold them without locking.
func (c *Calibrator) mutate(ctx context.Context, datasetID string, sampleSize int, fn func(th *model.DatasetThresholds)) {
	key := datasetKey(datasetID)

	c.mu.Lock()
	th := &model.DatasetThresholds{DatasetID: key}
	if prev, ok := c.cache[key]; ok {
		*th = *prev
		if prev.Features != nil {
			th.Features = make(map[string]model.FeatureRange, len(prev.Features))
			for k, v := range prev.Features {
				th.Features[k] = v
			}
		}
	}
	fn(th)
	th.ComputedAt = c.now()
	th.SampleSize = sampleSize
	c.cache[key] = th
	snapshot := *th
	c.mu.Unlock()

	if c.store == nil {
		return
	}
	if err := c.store.UpsertThresholds(ctx, &snapshot); err != nil {
		zap.L().Warn("thresholds: cache write failed",
			zap.String("dataset", key),
			zap.Error(err),
		)
	}
}

// ComputeRiskThresholds derives the dynamic high/medium risk cut-points
// from observed probabilities. Fewer than 10 samples degrade to a
// median-derived fallback (median+0.2, median), and no samples at all
// to the hard default (0.6, 0.3); neither fallback is cached. The
// returned pair always satisfies high > medium.
func (c *Calibrator) ComputeRiskThresholds(ctx context.Context, datasetID string, samples []float64, highPct, medPct float64) (high, medium float64) {
	if highPct <= 0 {
		highPct = 85
	}
	if medPct <= 0 {
		medPct = 60
	}

	if len(samples) == 0 {
		return defaultRiskHigh, defaultRiskMedium
	}
	if len(samples) < minRiskSamples {
		med := Median(samples)
		return med + 0.2, med
	}

	high = Percentile(samples, highPct)
	medium = Percentile(samples, medPct)
	if high <= medium {
		high = medium + 0.05
	}

	c.mutate(ctx, datasetID, len(samples), func(th *model.DatasetThresholds) {
		th.Risk = model.RiskBands{High: high, Medium: medium}
	})

	zap.L().Info("thresholds: risk bands computed",
		zap.String("dataset", datasetKey(datasetID)),
		zap.Float64("high", high),
		zap.Float64("medium", medium),
		zap.Int("samples", len(samples)),
	)
	return high, medium
}

// ComputeSalaryTiers derives tertile boundaries from observed salaries.
// Meaningful only at larger N; callers gate on sample size upstream.
func (c *Calibrator) ComputeSalaryTiers(ctx context.Context, datasetID string, values []float64) model.SalaryTiers {
	if len(values) == 0 {
		return model.SalaryTiers{}
	}
	tiers := model.SalaryTiers{
		P33: Percentile(values, 33),
		P67: Percentile(values, 67),
	}
	c.mutate(ctx, datasetID, len(values), func(th *model.DatasetThresholds) {
		th.Salary = tiers
	})
	return tiers
}

// ComputeTenureStages derives the quintile cut-points separating the
// five tenure stages.
func (c *Calibrator) ComputeTenureStages(ctx context.Context, datasetID string, values []float64) model.TenureBands {
	if len(values) == 0 {
		return model.TenureBands{}
	}
	bands := model.TenureBands{
		P20: Percentile(values, 20),
		P40: Percentile(values, 40),
		P60: Percentile(values, 60),
		P80: Percentile(values, 80),
	}
	c.mutate(ctx, datasetID, len(values), func(th *model.DatasetThresholds) {
		th.Tenure = bands
	})
	return bands
}

// ComputeFeatureRanges stores the empirical distribution of each given
// feature for later percentile-rank and anomaly queries.
func (c *Calibrator) ComputeFeatureRanges(ctx context.Context, datasetID string, columns map[string][]float64) {
	ranges := make(map[string]model.FeatureRange, len(columns))
	var n int
	for feature, values := range columns {
		if len(values) == 0 {
			continue
		}
		sorted := sortedCopy(values)
		ranges[feature] = model.FeatureRange{
			Min:  sorted[0],
			Max:  sorted[len(sorted)-1],
			P10:  Percentile(values, 10),
			P25:  Percentile(values, 25),
			P50:  Percentile(values, 50),
			P75:  Percentile(values, 75),
			P90:  Percentile(values, 90),
			Mean: Mean(values),
			Std:  StdDev(values),
		}
		if len(values) > n {
			n = len(values)
		}
	}
	if len(ranges) == 0 {
		return
	}
	c.mutate(ctx, datasetID, n, func(th *model.DatasetThresholds) {
		if th.Features == nil {
			th.Features = make(map[string]model.FeatureRange)
		}
		for k, v := range ranges {
			th.Features[k] = v
		}
	})
}

// ComputeELTVBands derives quartile boundaries of estimated lifetime
// value.
func (c *Calibrator) ComputeELTVBands(ctx context.Context, datasetID string, values []float64) model.ELTVBands {
	if len(values) == 0 {
		return model.ELTVBands{}
	}
	bands := model.ELTVBands{
		P25: Percentile(values, 25),
		P50: Percentile(values, 50),
		P75: Percentile(values, 75),
	}
	c.mutate(ctx, datasetID, len(values), func(th *model.DatasetThresholds) {
		th.ELTV = bands
	})
	return bands
}

// ComputeWorkloadBands derives percentile boundaries of weekly hours.
func (c *Calibrator) ComputeWorkloadBands(ctx context.Context, datasetID string, values []float64) model.WorkloadBands {
	if len(values) == 0 {
		return model.WorkloadBands{}
	}
	bands := model.WorkloadBands{
		P50: Percentile(values, 50),
		P75: Percentile(values, 75),
		P90: Percentile(values, 90),
	}
	c.mutate(ctx, datasetID, len(values), func(th *model.DatasetThresholds) {
		th.Workload = bands
	})
	return bands
}

// SetBaseHazardRate records the dataset's historical attrition fraction.
func (c *Calibrator) SetBaseHazardRate(ctx context.Context, datasetID string, rate float64, sampleSize int) {
	if sampleSize <= 0 {
		return
	}
	c.mutate(ctx, datasetID, sampleSize, func(th *model.DatasetThresholds) {
		th.BaseHazardRate = rate
	})
}

// ComputeSHAPThresholds derives impact-level cut-points from absolute
// attribution magnitudes. Fewer than 100 values return the fixed
// defaults uncached.
func (c *Calibrator) ComputeSHAPThresholds(ctx context.Context, datasetID string, shapValues []float64) model.SHAPBands {
	if len(shapValues) < minSHAPSamples {
		return defaultSHAPBands()
	}

	magnitudes := make([]float64, len(shapValues))
	for i, v := range shapValues {
		if v < 0 {
			v = -v
		}
		magnitudes[i] = v
	}

	bands := model.SHAPBands{
		Critical: Percentile(magnitudes, 90),
		High:     Percentile(magnitudes, 75),
		Medium:   Percentile(magnitudes, 50),
		Low:      Percentile(magnitudes, 25),
	}
	c.mutate(ctx, datasetID, len(shapValues), func(th *model.DatasetThresholds) {
		th.SHAP = bands
	})
	return bands
}

// ComputeSentimentThresholds derives polarity cut-points (p75/p25) from
// observed sentiment scores. Fewer than 10 values return (0.6, 0.4).
func (c *Calibrator) ComputeSentimentThresholds(ctx context.Context, datasetID string, scores []float64) model.SentimentBands {
	if len(scores) < minSentimentSamples {
		return model.SentimentBands{Positive: defaultSentimentPositive, Negative: defaultSentimentNegative}
	}
	bands := model.SentimentBands{
		Positive: Percentile(scores, 75),
		Negative: Percentile(scores, 25),
	}
	c.mutate(ctx, datasetID, len(scores), func(th *model.DatasetThresholds) {
		th.Sentiment = bands
	})
	return bands
}

// ComputeRiskChangeThresholds derives delta-alert cut-points from the
// standard deviation of observed score deltas. Fewer than 20 values
// return the fixed defaults.
func (c *Calibrator) ComputeRiskChangeThresholds(ctx context.Context, datasetID string, deltas []float64) model.ChangeBands {
	if len(deltas) < minChangeSamples {
		return model.ChangeBands{
			Significant: defaultChangeSignificant,
			Moderate:    defaultChangeModerate,
			Std:         defaultChangeModerate,
		}
	}
	sigma := StdDev(deltas)
	bands := model.ChangeBands{
		Significant: 2 * sigma,
		Moderate:    sigma,
		Std:         sigma,
	}
	c.mutate(ctx, datasetID, len(deltas), func(th *model.DatasetThresholds) {
		th.Change = bands
	})
	return bands
}

func defaultSHAPBands() model.SHAPBands {
	return model.SHAPBands{
		Critical: defaultSHAPCritical,
		High:     defaultSHAPHigh,
		Medium:   defaultSHAPMedium,
		Low:      defaultSHAPLow,
	}
}

// RiskLevel classifies a probability against the dataset's dynamic
// bands, defaults when uncalibrated or stale. The high check is >=.
func (c *Calibrator) RiskLevel(ctx context.Context, datasetID string, probability float64) model.RiskLevel {
	high, medium := defaultRiskHigh, defaultRiskMedium
	if th := c.Cached(ctx, datasetID); th != nil && th.Risk.High > 0 {
		high, medium = th.Risk.High, th.Risk.Medium
	}
	return model.RiskLevel(classify(probability, []band{
		{high, string(model.RiskHigh)},
		{medium, string(model.RiskMedium)},
	}, string(model.RiskLow)))
}

// SalaryTier classifies a salary against the dataset tertiles. Without
// calibrated tiers every salary is reported as medium.
func (c *Calibrator) SalaryTier(ctx context.Context, datasetID string, salary float64) model.SalaryTier {
	th := c.Cached(ctx, datasetID)
	if th == nil || th.Salary.P67 <= 0 {
		return model.SalaryMedium
	}
	return model.SalaryTier(classify(salary, []band{
		{th.Salary.P67, string(model.SalaryHigh)},
		{th.Salary.P33, string(model.SalaryMedium)},
	}, string(model.SalaryLow)))
}

// TenureStage classifies tenure months against the dataset quintiles.
// Without calibrated bands a fixed month scale is used.
func (c *Calibrator) TenureStage(ctx context.Context, datasetID string, tenureMonths float64) model.TenureStage {
	bands := model.TenureBands{P20: 6, P40: 18, P60: 48, P80: 96}
	if th := c.Cached(ctx, datasetID); th != nil && th.Tenure.P80 > 0 {
		bands = th.Tenure
	}
	return model.TenureStage(classify(tenureMonths, []band{
		{bands.P80, string(model.StageLongTenured)},
		{bands.P60, string(model.StageVeteran)},
		{bands.P40, string(model.StageEstablished)},
		{bands.P20, string(model.StageRamping)},
	}, string(model.StageOnboarding)))
}

// SHAPImpactLevel buckets an attribution magnitude by the dataset's
// SHAP bands, falling back to the fixed defaults when none are cached.
func (c *Calibrator) SHAPImpactLevel(ctx context.Context, datasetID string, value float64) model.ImpactLevel {
	bands := defaultSHAPBands()
	if th := c.Cached(ctx, datasetID); th != nil && th.SHAP.Critical > 0 {
		bands = th.SHAP
	}
	if value < 0 {
		value = -value
	}
	return model.ImpactLevel(classify(value, []band{
		{bands.Critical, string(model.ImpactCritical)},
		{bands.High, string(model.ImpactHigh)},
		{bands.Medium, string(model.ImpactMedium)},
		{bands.Low, string(model.ImpactLow)},
	}, string(model.ImpactMinimal)))
}

// SentimentLabel classifies an interview sentiment score.
func (c *Calibrator) SentimentLabel(ctx context.Context, datasetID string, score float64) model.SentimentLabel {
	pos, neg := defaultSentimentPositive, defaultSentimentNegative
	if th := c.Cached(ctx, datasetID); th != nil && th.Sentiment.Positive > 0 {
		pos, neg = th.Sentiment.Positive, th.Sentiment.Negative
	}
	return model.SentimentLabel(classify(score, []band{
		{pos, string(model.SentimentPositive)},
		{neg, string(model.SentimentNeutral)},
	}, string(model.SentimentConcerning)))
}

// RiskChangeSeverity classifies a score delta. Magnitude picks the
// band; the sign distinguishes critical (rising) from high (falling)
// at the significant level.
func (c *Calibrator) RiskChangeSeverity(ctx context.Context, datasetID string, delta float64) model.ChangeSeverity {
	significant, moderate := defaultChangeSignificant, defaultChangeModerate
	if th := c.Cached(ctx, datasetID); th != nil && th.Change.Significant > 0 {
		significant, moderate = th.Change.Significant, th.Change.Moderate
	}

	magnitude := delta
	if magnitude < 0 {
		magnitude = -magnitude
	}
	switch {
	case magnitude >= significant && delta > 0:
		return model.ChangeCritical
	case magnitude >= significant:
		return model.ChangeHigh
	case magnitude >= moderate:
		return model.ChangeModerate
	default:
		return model.ChangeLow
	}
}

// PercentileRank interpolates where a value falls within a feature's
// stored distribution, clamped to [0,100]. Unknown features rank 50.
func (c *Calibrator) PercentileRank(ctx context.Context, datasetID, feature string, value float64) float64 {
	th := c.Cached(ctx, datasetID)
	if th == nil {
		return 50
	}
	fr, ok := th.Features[feature]
	if !ok {
		return 50
	}

	points := []struct {
		value float64
		rank  float64
	}{
		{fr.Min, 0},
		{fr.P10, 10},
		{fr.P25, 25},
		{fr.P50, 50},
		{fr.P75, 75},
		{fr.P90, 90},
		{fr.Max, 100},
	}

	if value <= points[0].value {
		return 0
	}
	if value >= points[len(points)-1].value {
		return 100
	}
	for i := 1; i < len(points); i++ {
		if value > points[i].value {
			continue
		}
		lo, hi := points[i-1], points[i]
		if hi.value == lo.value {
			return hi.rank
		}
		frac := (value - lo.value) / (hi.value - lo.value)
		return lo.rank + frac*(hi.rank-lo.rank)
	}
	return 100
}

// IsAnomalous flags values in either tail of a feature's distribution.
// The threshold is a percentile width (default 10): below the 10th or
// above the 90th percentile.
func (c *Calibrator) IsAnomalous(ctx context.Context, datasetID, feature string, value, threshold float64) bool {
	if threshold <= 0 {
		threshold = 10
	}
	rank := c.PercentileRank(ctx, datasetID, feature, value)
	return rank < threshold || rank > 100-threshold
}

// TTL exposes the configured cache lifetime.
func (c *Calibrator) TTL() time.Duration {
	return c.ttl
}
