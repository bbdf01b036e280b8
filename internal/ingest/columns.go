package ingest

import (
	"strconv"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/retain-cli/internal/model"
)

// columnAliases maps normalized header names to canonical fields.
// HR exports are wildly inconsistent about naming, so each field
// accepts the variants seen in real rosters.
var columnAliases = map[string]string{
	"id":          "id",
	"employee_id": "id",
	"emp_id":      "id",

	"name":          "name",
	"full_name":     "name",
	"employee_name": "name",

	"department": "department",
	"dept":       "department",

	"role":      "role",
	"title":     "role",
	"job_title": "role",

	"status":            "status",
	"employment_status": "status",

	"salary":        "salary",
	"annual_salary": "salary",
	"base_salary":   "salary",

	"tenure_months": "tenure_months",
	"tenure":        "tenure_months",

	"weekly_hours":     "weekly_hours",
	"hours_per_week":   "weekly_hours",
	"avg_weekly_hours": "weekly_hours",

	"project_count": "project_count",
	"projects":      "project_count",

	"manager_changes": "manager_changes",

	"months_since_raise": "months_since_raise",
	"last_raise_months":  "months_since_raise",

	"months_since_promotion": "months_since_promotion",
	"last_promotion_months":  "months_since_promotion",

	"remote_ratio": "remote_ratio",
	"remote":       "remote_ratio",

	"last_review_score":  "last_review_score",
	"review_score":       "last_review_score",
	"performance_rating": "last_review_score",

	"eltv":           "eltv",
	"lifetime_value": "eltv",
}

// mapHeader resolves each header cell to a canonical field index.
// At minimum the roster must carry a name or id column.
func mapHeader(header []string) (map[string]int, error) {
	cols := make(map[string]int, len(header))
	for i, h := range header {
		norm := normalizeHeader(h)
		field, ok := columnAliases[norm]
		if !ok {
			continue
		}
		if _, dup := cols[field]; dup {
			continue // first occurrence wins
		}
		cols[field] = i
	}

	if _, ok := cols["name"]; !ok {
		if _, ok := cols["id"]; !ok {
			return nil, eris.New("ingest: roster needs a name or id column")
		}
	}
	return cols, nil
}

func normalizeHeader(h string) string {
	h = strings.ToLower(strings.TrimSpace(h))
	h = strings.ReplaceAll(h, " ", "_")
	h = strings.ReplaceAll(h, "-", "_")
	return h
}

func buildEmployee(record []string, cols map[string]int, datasetID string) (model.Employee, error) {
	get := func(field string) string {
		i, ok := cols[field]
		if !ok || i >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[i])
	}

	emp := model.Employee{
		DatasetID:  datasetID,
		ID:         get("id"),
		Name:       get("name"),
		Department: get("department"),
		Role:       get("role"),
		Status:     model.EmployeeActive,
	}
	if emp.ID == "" && emp.Name == "" {
		return emp, eris.New("missing both id and name")
	}

	switch strings.ToLower(get("status")) {
	case "", "active", "employed", "current":
		emp.Status = model.EmployeeActive
	case "departed", "terminated", "resigned", "former":
		emp.Status = model.EmployeeDeparted
	default:
		return emp, eris.Errorf("unrecognized status %q", get("status"))
	}

	numeric := []struct {
		field string
		dst   *float64
	}{
		{"salary", &emp.Salary},
		{"tenure_months", &emp.TenureMonths},
		{"weekly_hours", &emp.WeeklyHours},
		{"months_since_raise", &emp.MonthsSinceRaise},
		{"months_since_promotion", &emp.MonthsSincePromotion},
		{"remote_ratio", &emp.RemoteRatio},
		{"last_review_score", &emp.LastReviewScore},
		{"eltv", &emp.ELTV},
	}
	for _, n := range numeric {
		raw := get(n.field)
		if raw == "" {
			continue
		}
		v, err := parseNumber(raw)
		if err != nil {
			return emp, eris.Errorf("bad %s value %q", n.field, raw)
		}
		*n.dst = v
	}

	for _, n := range []struct {
		field string
		dst   *int
	}{
		{"project_count", &emp.ProjectCount},
		{"manager_changes", &emp.ManagerChanges},
	} {
		raw := get(n.field)
		if raw == "" {
			continue
		}
		v, err := parseNumber(raw)
		if err != nil {
			return emp, eris.Errorf("bad %s value %q", n.field, raw)
		}
		*n.dst = int(v)
	}

	return emp, nil
}

// parseNumber tolerates currency symbols and thousands separators.
func parseNumber(raw string) (float64, error) {
	cleaned := strings.NewReplacer("$", "", ",", "", "%", "").Replace(raw)
	return strconv.ParseFloat(strings.TrimSpace(cleaned), 64)
}
