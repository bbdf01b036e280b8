package providers

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/retain-cli/internal/model"
	"github.com/sells-group/retain-cli/internal/thresholds"
)

// Sentiment distance from neutral maps to the risk adjustment at this
// slope before the ±0.3 clamp.
const sentimentSlope = 0.6

var jobSearchKeywords = []string{
	"recruiter",
	"interviewing elsewhere",
	"another offer",
	"job search",
	"external opportunity",
	"looking around",
}

// InterviewSource reads recorded interviews for one employee.
type InterviewSource interface {
	ListInterviews(ctx context.Context, employeeID string) ([]model.Interview, error)
}

// InterviewAnalyzer turns recorded stay/exit/pulse conversations into a
// signed risk adjustment with supporting insights.
type InterviewAnalyzer struct {
	src InterviewSource
	cal *thresholds.Calibrator
}

// NewInterviewAnalyzer builds the interview provider.
func NewInterviewAnalyzer(src InterviewSource, cal *thresholds.Calibrator) *InterviewAnalyzer {
	return &InterviewAnalyzer{src: src, cal: cal}
}

// Analyze averages interview sentiment into an adjustment: negative
// sentiment pushes risk up, positive pulls it down. Zero interviews
// yield a zero adjustment at zero confidence.
func (a *InterviewAnalyzer) Analyze(ctx context.Context, emp *model.Employee) (model.ComponentResult, error) {
	ivs, err := a.src.ListInterviews(ctx, emp.ID)
	if err != nil {
		return model.ComponentResult{}, eris.Wrap(err, "providers: list interviews")
	}
	if len(ivs) == 0 {
		return model.ComponentResult{Kind: model.ComponentInterview}, nil
	}

	var sum float64
	var notes strings.Builder
	for _, iv := range ivs {
		sum += iv.Sentiment
		notes.WriteString(" ")
		notes.WriteString(iv.Notes)
	}
	avg := sum / float64(len(ivs))

	adjustment := (0.5 - avg) * sentimentSlope
	adjustment = math.Max(-0.3, math.Min(0.3, adjustment))

	res := model.ComponentResult{
		Kind:           model.ComponentInterview,
		Score:          adjustment,
		Confidence:     math.Min(0.9, 0.3+0.2*float64(len(ivs))),
		AvgSentiment:   avg,
		InterviewCount: len(ivs),
	}

	label := a.cal.SentimentLabel(ctx, emp.DatasetID, avg)
	switch label {
	case model.SentimentConcerning:
		res.Insights = append(res.Insights,
			fmt.Sprintf("Interview sentiment is concerning (avg %.2f over %d conversation(s))", avg, len(ivs)))
		res.Recommendations = append(res.Recommendations,
			"Schedule a follow-up conversation on recent feedback")
	case model.SentimentPositive:
		res.Insights = append(res.Insights,
			fmt.Sprintf("Interview sentiment is positive (avg %.2f)", avg))
	default:
		res.Insights = append(res.Insights,
			fmt.Sprintf("Interview sentiment is neutral (avg %.2f)", avg))
	}

	if hits := matchKeywords(jobSearchKeywords, notes.String()); len(hits) > 0 {
		res.Insights = append(res.Insights,
			"Notes mention external opportunities: "+strings.Join(hits, ", "))
		res.Alerts = append(res.Alerts, "Mentions of external job search")
		res.Recommendations = append(res.Recommendations,
			"Discuss career growth before an external offer lands")
	}

	return res, nil
}

// matchKeywords returns the keywords appearing case-insensitively in
// the given texts.
func matchKeywords(keywords []string, texts ...string) []string {
	var combined string
	for _, t := range texts {
		if t != "" {
			combined += " " + strings.ToLower(t)
		}
	}
	if combined == "" {
		return nil
	}

	var matched []string
	for _, kw := range keywords {
		if strings.Contains(combined, strings.ToLower(kw)) {
			matched = append(matched, kw)
		}
	}
	return matched
}
