package providers

import (
	"context"

	"github.com/sells-group/retain-cli/internal/model"
	"github.com/sells-group/retain-cli/internal/thresholds"
)

// Hazard multipliers relative to the dataset base attrition rate.
// Early tenure and very long tenure both run hot; mid-tenure is the
// most stable.
var stageHazard = map[model.TenureStage]float64{
	model.StageOnboarding:  1.6,
	model.StageRamping:     1.2,
	model.StageEstablished: 0.9,
	model.StageVeteran:     0.8,
	model.StageLongTenured: 1.1,
}

var stageAdvice = map[model.TenureStage]string{
	model.StageOnboarding:  "Assign an onboarding buddy and hold 30/60/90 day check-ins",
	model.StageRamping:     "Clarify first-year growth expectations",
	model.StageEstablished: "Discuss the next-role growth path",
	model.StageVeteran:     "Recognize tenure and revisit the compensation band",
	model.StageLongTenured: "Offer rotation opportunities to counter stagnation",
}

// Default base attrition rate applied when the dataset has no recorded
// rate.
const defaultBaseHazard = 0.15

// Stage scores attrition risk from the employee's position in the
// dataset's tenure distribution.
type Stage struct {
	cal *thresholds.Calibrator
}

// NewStage builds the tenure-stage provider.
func NewStage(cal *thresholds.Calibrator) *Stage {
	return &Stage{cal: cal}
}

// Classify maps tenure to its calibrated quintile stage and scales the
// dataset's base hazard by the stage multiplier. Confidence is higher
// when the dataset has calibrated tenure bands and a recorded rate.
func (s *Stage) Classify(ctx context.Context, emp *model.Employee) (model.ComponentResult, error) {
	stage := s.cal.TenureStage(ctx, emp.DatasetID, emp.TenureMonths)

	base := defaultBaseHazard
	confidence := 0.4
	if th := s.cal.Cached(ctx, emp.DatasetID); th != nil {
		if th.BaseHazardRate > 0 {
			base = th.BaseHazardRate
		}
		if th.Tenure != (model.TenureBands{}) {
			confidence = 0.7
		}
	}

	mult, ok := stageHazard[stage]
	if !ok {
		mult = 1.0
	}

	res := model.ComponentResult{
		Kind:       model.ComponentStage,
		Score:      clamp01(base * mult),
		Confidence: confidence,
		StageName:  string(stage),
	}
	if advice, ok := stageAdvice[stage]; ok {
		res.Recommendations = []string{advice}
	}
	return res, nil
}
