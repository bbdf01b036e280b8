package reasoning

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/sells-group/retain-cli/internal/model"
	"github.com/sells-group/retain-cli/internal/store"
	"github.com/sells-group/retain-cli/internal/thresholds"
)

// Weights configures the confidence-adjusted blend. Zero values fall
// back to the defaults below.
type Weights struct {
	ML             float64
	Heuristic      float64
	Stage          float64
	InterviewClamp float64
}

// DefaultWeights returns the standard blend: ML carries half the
// signal, heuristics under a third, stage the remainder, with the
// interview adjustment capped at ±0.3.
func DefaultWeights() Weights {
	return Weights{ML: 0.50, Heuristic: 0.30, Stage: 0.20, InterviewClamp: 0.3}
}

// DefaultCacheTTL bounds how long a persisted result is served without
// recomputation.
const DefaultCacheTTL = time.Hour

// Aggregator orchestrates one risk calculation: concurrent provider
// fan-out, dynamic weighting, classification, and persistence.
type Aggregator struct {
	store      ResultStore
	calibrator *thresholds.Calibrator
	providers  Providers
	weights    Weights
	cacheTTL   time.Duration
	limiter    *rate.Limiter
	now        func() time.Time
}

// New builds an Aggregator. Zero weights and a zero TTL take the
// package defaults.
func New(st ResultStore, cal *thresholds.Calibrator, p Providers, w Weights, cacheTTL time.Duration) *Aggregator {
	def := DefaultWeights()
	if w.ML <= 0 {
		w.ML = def.ML
	}
	if w.Heuristic <= 0 {
		w.Heuristic = def.Heuristic
	}
	if w.Stage <= 0 {
		w.Stage = def.Stage
	}
	if w.InterviewClamp <= 0 {
		w.InterviewClamp = def.InterviewClamp
	}
	if cacheTTL <= 0 {
		cacheTTL = DefaultCacheTTL
	}
	return &Aggregator{
		store:      st,
		calibrator: cal,
		providers:  p,
		weights:    w,
		cacheTTL:   cacheTTL,
		now:        time.Now,
	}
}

// WithNow overrides the clock. Tests only.
func (a *Aggregator) WithNow(fn func() time.Time) *Aggregator {
	a.now = fn
	return a
}

// Calculate produces the fused risk result for one employee. A stored
// result still inside its validity window short-circuits the
// computation unless forceRefresh is set. A missing employee record is
// fatal; a failing provider aborts the call; a failing persistence
// write is logged and the computed result is returned anyway.
func (a *Aggregator) Calculate(ctx context.Context, employeeID string, forceRefresh bool) (*model.ChurnReasoningResult, error) {
	if !forceRefresh {
		if cached := a.cachedResult(ctx, employeeID); cached != nil {
			return cached, nil
		}
	}

	emp, err := a.store.GetEmployee(ctx, employeeID)
	if err != nil {
		return nil, eris.Wrap(err, fmt.Sprintf("reasoning: fetch employee %s", employeeID))
	}

	var mlRes, heurRes, stageRes, intRes model.ComponentResult

	// Fan out the four providers plus the threshold lookup, join all.
	// The Cached call warms the calibrator's in-memory entry so the
	// classification below is a fast hit.
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		r, err := a.providers.ML.Score(gctx, emp)
		if err != nil {
			return eris.Wrap(err, "reasoning: ml component")
		}
		mlRes = r
		return nil
	})
	g.Go(func() error {
		r, err := a.providers.Heuristic.Evaluate(gctx, emp)
		if err != nil {
			return eris.Wrap(err, "reasoning: heuristic component")
		}
		heurRes = r
		return nil
	})
	g.Go(func() error {
		r, err := a.providers.Stage.Classify(gctx, emp)
		if err != nil {
			return eris.Wrap(err, "reasoning: stage component")
		}
		stageRes = r
		return nil
	})
	g.Go(func() error {
		r, err := a.providers.Interview.Analyze(gctx, emp)
		if err != nil {
			return eris.Wrap(err, "reasoning: interview component")
		}
		intRes = r
		return nil
	})
	g.Go(func() error {
		a.calibrator.Cached(gctx, emp.DatasetID)
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	wML, wHeur, wStage := a.dynamicWeights(mlRes.Confidence, heurRes.Confidence, stageRes.Confidence)

	adjustment := clampRange(intRes.Score, -a.weights.InterviewClamp, a.weights.InterviewClamp)
	blended := wML*clamp01(mlRes.Score) + wHeur*clamp01(heurRes.Score) + wStage*clamp01(stageRes.Score)
	finalScore := clamp01(blended + adjustment)

	level := a.calibrator.RiskLevel(ctx, emp.DatasetID, finalScore)
	confidence := clamp01(mlRes.Confidence)*wML + clamp01(heurRes.Confidence)*wHeur + clamp01(stageRes.Confidence)*wStage

	now := a.now()
	res := &model.ChurnReasoningResult{
		ID:         uuid.NewString(),
		EmployeeID: emp.ID,
		DatasetID:  emp.DatasetID,
		RiskScore:  finalScore,
		RiskLevel:  level,
		Confidence: confidence,
		Components: map[model.ComponentKind]model.ComponentResult{
			model.ComponentML:        mlRes,
			model.ComponentHeuristic: heurRes,
			model.ComponentStage:     stageRes,
			model.ComponentInterview: intRes,
		},
		Breakdown: model.ReasoningBreakdown{
			ML:                  model.WeightedComponent{Score: clamp01(mlRes.Score), Confidence: clamp01(mlRes.Confidence), Weight: wML},
			Heuristic:           model.WeightedComponent{Score: clamp01(heurRes.Score), Confidence: clamp01(heurRes.Confidence), Weight: wHeur},
			Stage:               model.WeightedComponent{Score: clamp01(stageRes.Score), Confidence: clamp01(stageRes.Confidence), Weight: wStage},
			InterviewAdjustment: adjustment,
			FinalScore:          finalScore,
			FinalConfidence:     confidence,
		},
		CalculatedAt:    now,
		CacheValidUntil: now.Add(a.cacheTTL),
	}
	res.Breakdown.Calculation = buildCalculation(res.Breakdown)
	res.Summary = a.buildSummary(ctx, emp, res)
	res.Breakdown.Rationale = res.Summary
	res.Recommendations = mergeRecommendations(level, intRes.Recommendations, heurRes.Alerts, stageRes.Recommendations)
	res.Alerts = a.mergeAlerts(ctx, emp.DatasetID, res)

	if err := a.store.UpsertResult(ctx, res); err != nil {
		zap.L().Warn("reasoning: persist result failed",
			zap.String("employee_id", emp.ID),
			zap.Error(err),
		)
	}

	zap.L().Info("reasoning: calculated risk",
		zap.String("employee_id", emp.ID),
		zap.String("dataset_id", emp.DatasetID),
		zap.Float64("risk_score", finalScore),
		zap.String("risk_level", string(level)),
		zap.Float64("confidence", confidence),
	)
	return res, nil
}

// cachedResult returns a stored result still inside its validity
// window, or nil. Store errors read as a miss.
func (a *Aggregator) cachedResult(ctx context.Context, employeeID string) *model.ChurnReasoningResult {
	cached, err := a.store.GetResult(ctx, employeeID)
	if err != nil {
		if !eris.Is(err, store.ErrNotFound) {
			zap.L().Warn("reasoning: result cache read failed",
				zap.String("employee_id", employeeID),
				zap.Error(err),
			)
		}
		return nil
	}
	if cached == nil || !cached.Fresh(a.now()) {
		return nil
	}
	zap.L().Debug("reasoning: serving cached result", zap.String("employee_id", employeeID))
	return cached
}

// dynamicWeights scales each base weight by (0.5 + 0.5·confidence) and
// renormalizes to sum 1. A zero-confidence component keeps half its
// base influence so an outage mutes a signal instead of erasing it.
func (a *Aggregator) dynamicWeights(mlConf, heurConf, stageConf float64) (wML, wHeur, wStage float64) {
	adjML := a.weights.ML * (0.5 + 0.5*clamp01(mlConf))
	adjHeur := a.weights.Heuristic * (0.5 + 0.5*clamp01(heurConf))
	adjStage := a.weights.Stage * (0.5 + 0.5*clamp01(stageConf))

	sum := adjML + adjHeur + adjStage
	if sum <= 0 {
		third := 1.0 / 3.0
		return third, third, third
	}
	return adjML / sum, adjHeur / sum, adjStage / sum
}

func clamp01(v float64) float64 {
	return clampRange(v, 0, 1)
}

func clampRange(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
