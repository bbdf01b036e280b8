package main

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/retain-cli/internal/model"
)

func sampleScoreResult() *model.ChurnReasoningResult {
	return &model.ChurnReasoningResult{
		EmployeeID:   "emp-1042",
		DatasetID:    "acme",
		RiskScore:    0.731,
		RiskLevel:    model.RiskHigh,
		Confidence:   0.82,
		Summary:      "High attrition risk driven by workload and flat compensation.",
		Alerts:       []string{"risk rose 0.21 since last calculation"},
		Recommendations: []string{
			"Schedule a compensation review",
			"Reduce concurrent project load",
		},
		CalculatedAt: time.Date(2026, 4, 2, 9, 30, 0, 0, time.UTC),
	}
}

func TestPrintResult_JSON(t *testing.T) {
	var buf bytes.Buffer

	require.NoError(t, printResult(&buf, sampleScoreResult(), "json"))

	var decoded model.ChurnReasoningResult
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, "emp-1042", decoded.EmployeeID)
	assert.InDelta(t, 0.731, decoded.RiskScore, 1e-9)

	// Should be indented.
	assert.Contains(t, buf.String(), "  ")
}

func TestPrintResult_Text(t *testing.T) {
	var buf bytes.Buffer

	require.NoError(t, printResult(&buf, sampleScoreResult(), "text"))

	out := buf.String()
	assert.Contains(t, out, "employee:   emp-1042")
	assert.Contains(t, out, "risk:       high (0.731)")
	assert.Contains(t, out, "alerts:")
	assert.Contains(t, out, "risk rose 0.21")
	assert.Contains(t, out, "recommendations:")
	assert.Contains(t, out, "Schedule a compensation review")
}

func TestPrintResult_TextOmitsEmptySections(t *testing.T) {
	var buf bytes.Buffer

	res := sampleScoreResult()
	res.Alerts = nil
	res.Recommendations = nil

	require.NoError(t, printResult(&buf, res, "text"))

	out := buf.String()
	assert.NotContains(t, out, "alerts:")
	assert.NotContains(t, out, "recommendations:")
}

func TestPrintResult_UnknownFormat(t *testing.T) {
	var buf bytes.Buffer

	err := printResult(&buf, sampleScoreResult(), "yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown format")
}

func TestPrintBatchSummary_OrderedByRisk(t *testing.T) {
	var buf bytes.Buffer

	results := map[string]*model.ChurnReasoningResult{
		"e-1": {EmployeeID: "e-1", RiskScore: 0.20, RiskLevel: model.RiskLow},
		"e-2": {EmployeeID: "e-2", RiskScore: 0.85, RiskLevel: model.RiskHigh},
		"e-3": {EmployeeID: "e-3", RiskScore: 0.50, RiskLevel: model.RiskMedium},
	}

	printBatchSummary(&buf, []string{"e-1", "e-2", "e-3", "e-4"}, results)

	out := buf.String()
	assert.Contains(t, out, "scored 3/4 employees (high: 1, medium: 1, low: 1)")

	// Highest risk first.
	first := bytes.Index(buf.Bytes(), []byte("e-2"))
	second := bytes.Index(buf.Bytes(), []byte("e-3"))
	third := bytes.Index(buf.Bytes(), []byte("e-1"))
	assert.Less(t, first, second)
	assert.Less(t, second, third)
}

func TestPrintBatchSummary_Empty(t *testing.T) {
	var buf bytes.Buffer

	printBatchSummary(&buf, nil, nil)

	assert.Contains(t, buf.String(), "scored 0/0 employees")
}
