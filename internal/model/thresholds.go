package model

import "time"

// DefaultDatasetKey scopes thresholds that were computed without an
// explicit customer dataset.
const DefaultDatasetKey = "global"

// SalaryTier buckets an employee's salary against dataset tertiles.
type SalaryTier string

const (
	SalaryLow    SalaryTier = "low"
	SalaryMedium SalaryTier = "medium"
	SalaryHigh   SalaryTier = "high"
)

// TenureStage names the five quintile bands of dataset tenure.
type TenureStage string

const (
	StageOnboarding  TenureStage = "onboarding"
	StageRamping     TenureStage = "ramping"
	StageEstablished TenureStage = "established"
	StageVeteran     TenureStage = "veteran"
	StageLongTenured TenureStage = "long_tenured"
)

// ImpactLevel buckets an absolute SHAP magnitude.
type ImpactLevel string

const (
	ImpactCritical ImpactLevel = "critical"
	ImpactHigh     ImpactLevel = "high"
	ImpactMedium   ImpactLevel = "medium"
	ImpactLow      ImpactLevel = "low"
	ImpactMinimal  ImpactLevel = "minimal"
)

// SentimentLabel classifies an interview sentiment score.
type SentimentLabel string

const (
	SentimentPositive   SentimentLabel = "Positive"
	SentimentNeutral    SentimentLabel = "Neutral"
	SentimentConcerning SentimentLabel = "Concerning"
)

// ChangeSeverity classifies a risk-score delta between two calculations.
type ChangeSeverity string

const (
	ChangeCritical ChangeSeverity = "critical"
	ChangeHigh     ChangeSeverity = "high"
	ChangeModerate ChangeSeverity = "moderate"
	ChangeLow      ChangeSeverity = "low"
)

// RiskBands holds the dynamic high/medium cut-points for risk labels.
// Invariant after computation: High > Medium.
type RiskBands struct {
	High   float64 `json:"high"`
	Medium float64 `json:"medium"`
}

// SalaryTiers holds the tertile boundaries of the salary distribution.
type SalaryTiers struct {
	P33 float64 `json:"p33"`
	P67 float64 `json:"p67"`
}

// TenureBands holds the four quintile cut-points (p20/p40/p60/p80, in
// months) separating the five tenure stages.
type TenureBands struct {
	P20 float64 `json:"p20"`
	P40 float64 `json:"p40"`
	P60 float64 `json:"p60"`
	P80 float64 `json:"p80"`
}

// FeatureRange stores the empirical shape of one numeric feature.
type FeatureRange struct {
	Min  float64 `json:"min"`
	Max  float64 `json:"max"`
	P10  float64 `json:"p10"`
	P25  float64 `json:"p25"`
	P50  float64 `json:"p50"`
	P75  float64 `json:"p75"`
	P90  float64 `json:"p90"`
	Mean float64 `json:"mean"`
	Std  float64 `json:"std"`
}

// ELTVBands holds quartile boundaries of estimated lifetime value.
type ELTVBands struct {
	P25 float64 `json:"p25"`
	P50 float64 `json:"p50"`
	P75 float64 `json:"p75"`
}

// WorkloadBands holds percentile boundaries of weekly hours.
type WorkloadBands struct {
	P50 float64 `json:"p50"`
	P75 float64 `json:"p75"`
	P90 float64 `json:"p90"`
}

// SHAPBands holds magnitude cut-points for attribution impact levels.
type SHAPBands struct {
	Critical float64 `json:"critical"`
	High     float64 `json:"high"`
	Medium   float64 `json:"medium"`
	Low      float64 `json:"low"`
}

// SentimentBands holds the polarity cut-points (p75/p25).
type SentimentBands struct {
	Positive float64 `json:"positive"`
	Negative float64 `json:"negative"`
}

// ChangeBands holds the standard-deviation derived risk-change alerts.
type ChangeBands struct {
	Significant float64 `json:"significant"` // 2 sigma
	Moderate    float64 `json:"moderate"`    // 1 sigma
	Std         float64 `json:"std"`
}

// Classification holds the selected optimal classification threshold.
type Classification struct {
	Threshold float64 `json:"threshold"`
	Method    string  `json:"method"`
}

// DatasetThresholds is the full set of statistically derived cut-points
// for one customer dataset. Created or overwritten by explicit compute
// calls; treated as absent once older than the configured TTL.
type DatasetThresholds struct {
	DatasetID  string    `json:"dataset_id"`
	ComputedAt time.Time `json:"computed_at"`
	SampleSize int       `json:"sample_size"`

	Risk           RiskBands               `json:"risk"`
	Salary         SalaryTiers             `json:"salary"`
	Tenure         TenureBands             `json:"tenure"`
	Features       map[string]FeatureRange `json:"features,omitempty"`
	ELTV           ELTVBands               `json:"eltv"`
	Workload       WorkloadBands           `json:"workload"`
	BaseHazardRate float64                 `json:"base_hazard_rate"`
	SHAP           SHAPBands               `json:"shap"`
	Sentiment      SentimentBands          `json:"sentiment"`
	Change         ChangeBands             `json:"change"`
	Classification Classification          `json:"classification"`
}

// Stale reports whether the entry is older than ttl at the given time.
func (t *DatasetThresholds) Stale(now time.Time, ttl time.Duration) bool {
	return now.Sub(t.ComputedAt) >= ttl
}
