package planner

import (
	"github.com/shopspring/decimal"

	"resplan/internal/category"
	"resplan/internal/effort"
)

// Plan is a recalculated schedule and cost for every allocation of a snapshot.
type Plan struct {
	ID             string  `json:"id"`
	AsOf           string  `json:"as_of"`
	GeneratedAt    string  `json:"generated_at"`
	CapacityFactor float64 `json:"capacity_factor"`
	Lines          []Line  `json:"lines"`
	Totals         Totals  `json:"totals"`
}

// Line is the plan of one allocation.
type Line struct {
	AllocationID   string            `json:"allocation_id"`
	Resource       string            `json:"resource"`
	Category       category.Category `json:"category"`
	Complexity     string            `json:"complexity,omitempty"`
	Template       string            `json:"template,omitempty"`
	TaskName       string            `json:"task_name,omitempty"`
	TierLevel      int               `json:"tier_level"`
	Terminal       bool              `json:"terminal,omitempty"`
	Start          string            `json:"start,omitempty"`
	End            string            `json:"end,omitempty"`
	CalendarDays   int               `json:"calendar_days"`
	PaddingDays    int               `json:"padding_days,omitempty"`
	EffortHours    float64           `json:"effort_hours"`
	DurationDays   int               `json:"duration_days"`
	CostProject    decimal.Decimal   `json:"cost_project"`
	CostMonthly    decimal.Decimal   `json:"cost_monthly"`
	Strategy       string            `json:"strategy,omitempty"`
	Variance       *effort.Variance  `json:"variance,omitempty"`
	Error          string            `json:"error,omitempty"`
	EndDateChanged bool              `json:"end_date_changed,omitempty"`
	CostChanged    bool              `json:"cost_changed,omitempty"`
}

// Totals sums the lines of a plan that computed without error.
type Totals struct {
	Lines       int             `json:"lines"`
	Errors      int             `json:"errors"`
	Changed     int             `json:"changed"`
	EffortHours float64         `json:"effort_hours"`
	CostProject decimal.Decimal `json:"cost_project"`
}
