// Package providers ships the store-backed component sources consumed
// by the reasoning aggregator. Each provider degrades to a neutral
// low-confidence result when its data is missing; only infrastructure
// failures surface as errors.
package providers

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/retain-cli/internal/model"
	"github.com/sells-group/retain-cli/internal/store"
)

// Neutral (score, confidence) returned when a signal has no data.
const (
	neutralScore      = 0.5
	neutralConfidence = 0.1
)

// PredictionSource reads persisted model predictions.
type PredictionSource interface {
	LatestPrediction(ctx context.Context, employeeID string) (*model.Prediction, error)
}

// ML surfaces the most recent persisted model prediction as the ML
// component.
type ML struct {
	src PredictionSource
}

// NewML builds the ML component provider.
func NewML(src PredictionSource) *ML {
	return &ML{src: src}
}

// Score returns the latest prediction's probability, confidence, and
// feature attributions. No stored prediction yields the neutral
// default with no attributions.
func (m *ML) Score(ctx context.Context, emp *model.Employee) (model.ComponentResult, error) {
	p, err := m.src.LatestPrediction(ctx, emp.ID)
	if err != nil {
		if eris.Is(err, store.ErrNotFound) {
			return model.ComponentResult{
				Kind:       model.ComponentML,
				Score:      neutralScore,
				Confidence: neutralConfidence,
			}, nil
		}
		return model.ComponentResult{}, eris.Wrap(err, "providers: latest prediction")
	}

	return model.ComponentResult{
		Kind:         model.ComponentML,
		Score:        clamp01(p.Probability),
		Confidence:   clamp01(p.Confidence),
		Attributions: p.Attributions,
	}, nil
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
