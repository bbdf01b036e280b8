package model

import "time"

// EmployeeStatus tracks whether an employee is still with the company.
type EmployeeStatus string

const (
	EmployeeActive   EmployeeStatus = "active"
	EmployeeDeparted EmployeeStatus = "departed"
)

// Employee is the reference record risk scoring runs against. Numeric
// fields feed both the heuristic rules and the per-dataset feature
// range calibration.
type Employee struct {
	ID         string         `json:"id"`
	DatasetID  string         `json:"dataset_id"`
	Name       string         `json:"name"`
	Department string         `json:"department"`
	Role       string         `json:"role"`
	Status     EmployeeStatus `json:"status"`

	Salary               float64 `json:"salary"`
	TenureMonths         float64 `json:"tenure_months"`
	WeeklyHours          float64 `json:"weekly_hours"`
	ProjectCount         int     `json:"project_count"`
	ManagerChanges       int     `json:"manager_changes"` // within the last 24 months
	MonthsSinceRaise     float64 `json:"months_since_raise"`
	MonthsSincePromotion float64 `json:"months_since_promotion"`
	RemoteRatio          float64 `json:"remote_ratio"` // 0.0 fully on-site, 1.0 fully remote
	LastReviewScore      float64 `json:"last_review_score"`
	ELTV                 float64 `json:"eltv"` // estimated lifetime value in dollars

	UpdatedAt time.Time `json:"updated_at"`
}

// Interview is one recorded stay/exit/pulse conversation with a
// sentiment score in [0,1] (0 = very negative).
type Interview struct {
	ID          string    `json:"id"`
	EmployeeID  string    `json:"employee_id"`
	DatasetID   string    `json:"dataset_id"`
	Kind        string    `json:"kind"` // stay, exit, pulse
	Sentiment   float64   `json:"sentiment"`
	Notes       string    `json:"notes"`
	ConductedAt time.Time `json:"conducted_at"`
}
