package providers

import (
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// Rule condition names accepted in the rules file.
const (
	condSalaryLowTier     = "salary_low_tier"
	condRaiseStagnant     = "raise_stagnant"
	condPromotionStagnant = "promotion_stagnant"
	condWorkloadHigh      = "workload_high"
	condManagerChurn      = "manager_churn"
	condOvertime          = "overtime"
	condReviewLow         = "review_low"
)

// RuleConfig is one configurable retention rule. Threshold semantics
// depend on the condition: months for the stagnation rules, a
// percentile rank for workload_high, a count for manager_churn, weekly
// hours for overtime, and a review score for review_low.
type RuleConfig struct {
	Name      string  `yaml:"name"`
	When      string  `yaml:"when"`
	Weight    float64 `yaml:"weight"`
	Threshold float64 `yaml:"threshold,omitempty"`
	Alert     string  `yaml:"alert,omitempty"`
}

// DefaultRules is the built-in rule set used when no rules file is
// configured.
func DefaultRules() []RuleConfig {
	return []RuleConfig{
		{Name: "salary below dataset tier", When: condSalaryLowTier, Weight: 1.0, Alert: "Compensation below market"},
		{Name: "no raise in over 18 months", When: condRaiseStagnant, Weight: 0.8, Threshold: 18, Alert: "Compensation review overdue"},
		{Name: "no promotion in over 30 months", When: condPromotionStagnant, Weight: 0.6, Threshold: 30},
		{Name: "workload above dataset norm", When: condWorkloadHigh, Weight: 0.9, Threshold: 90, Alert: "Sustained workload above dataset norm"},
		{Name: "repeated manager changes", When: condManagerChurn, Weight: 0.7, Threshold: 2},
		{Name: "chronic overtime", When: condOvertime, Weight: 0.5, Threshold: 50},
		{Name: "weak last review", When: condReviewLow, Weight: 0.6, Threshold: 2.5},
	}
}

// LoadRules reads a rule set from a YAML file. Missing weights default
// to 1.0; unknown conditions fail the load rather than silently never
// triggering.
func LoadRules(path string) ([]RuleConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "providers: read rules %s", path)
	}

	var cfg struct {
		Rules []RuleConfig `yaml:"rules"`
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, eris.Wrap(err, "providers: parse rules")
	}
	if len(cfg.Rules) == 0 {
		return nil, eris.Errorf("providers: no rules defined in %s", path)
	}

	known := map[string]struct{}{
		condSalaryLowTier:     {},
		condRaiseStagnant:     {},
		condPromotionStagnant: {},
		condWorkloadHigh:      {},
		condManagerChurn:      {},
		condOvertime:          {},
		condReviewLow:         {},
	}
	for i := range cfg.Rules {
		r := &cfg.Rules[i]
		if _, ok := known[r.When]; !ok {
			return nil, eris.Errorf("providers: unknown rule condition %q", r.When)
		}
		if r.Name == "" {
			r.Name = r.When
		}
		if r.Weight <= 0 {
			r.Weight = 1.0
		}
	}
	return cfg.Rules, nil
}
