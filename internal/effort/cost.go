package effort

import (
	"fmt"
	"math"
	"time"

	"github.com/shopspring/decimal"

	"resplan/internal/calendar"
	"resplan/internal/category"
)

const (
	MinAllocation = 0.1
	MaxAllocation = 1.0
)

// CostRequest describes one project cost computation.
type CostRequest struct {
	Complexity string
	Resource   string
	Category   category.Category
	TierLevel  int
	// AllocationPercentage is the share of a workday spent on the task (0.1–1.0).
	// Zero means full time.
	AllocationPercentage float64
	Template             *TaskTemplate
}

// Breakdown explains how a Cost was derived.
type Breakdown struct {
	Category                category.Category `json:"category"`
	Strategy                string            `json:"strategy"`
	Complexity              string            `json:"complexity"`
	TierLevel               int               `json:"tier_level"`
	ResourceID              string            `json:"resource_id,omitempty"`
	ResourceName            string            `json:"resource_name,omitempty"`
	BaseHours               float64           `json:"base_hours"`
	SkillMultiplier         float64           `json:"skill_multiplier"`
	AdjustedSkillMultiplier float64           `json:"adjusted_skill_multiplier"`
	ComplexityMultiplier    float64           `json:"complexity_multiplier"`
	RiskMultiplier          float64           `json:"risk_multiplier"`
	AllocationPercentage    float64           `json:"allocation_percentage"`
	HoursPerDay             float64           `json:"hours_per_day"`
	Legacy                  bool              `json:"legacy,omitempty"`
}

// Cost is the money and time of one task. A missing resource or complexity yields
// a zero Cost with Error set.
type Cost struct {
	TotalCost    decimal.Decimal `json:"total_cost"`
	EffortHours  float64         `json:"effort_hours"`
	DurationDays int             `json:"duration_days"`
	HourlyRate   decimal.Decimal `json:"hourly_rate"`
	Breakdown    Breakdown       `json:"breakdown"`
	Error        string          `json:"error,omitempty"`
}

// ProjectCost converts the selected effort into duration and currency. Duration is
// derived from effort hours and the allocation percentage, never from nominal days.
func (m *Model) ProjectCost(req CostRequest, settings Settings, costs []CostTier) Cost {
	tier, ok := ResolveCostTier(costs, req.Resource)
	if !ok {
		return Cost{Error: fmt.Sprintf("no cost tier for resource %q", req.Resource)}
	}

	tierLevel := req.TierLevel
	if tierLevel == 0 {
		tierLevel = DefaultTierLevel
	}
	eff := m.SelectiveEffort(EffortRequest{
		Category:   req.Category,
		Complexity: req.Complexity,
		TierLevel:  tierLevel,
		Template:   req.Template,
	}, settings)
	if eff.Error != "" {
		return Cost{Error: eff.Error}
	}

	pct := ClampAllocation(req.AllocationPercentage)
	hours := eff.AdjustedHours
	duration := int(math.Ceil(snap(hours / (pct * m.hoursPerDay))))

	return Cost{
		TotalCost:    decimal.NewFromFloat(hours).Mul(tier.PerHourCost).Round(0),
		EffortHours:  hours,
		DurationDays: duration,
		HourlyRate:   tier.PerHourCost,
		Breakdown: Breakdown{
			Category:                req.Category,
			Strategy:                eff.Strategy,
			Complexity:              req.Complexity,
			TierLevel:               tierLevel,
			ResourceID:              tier.ID,
			ResourceName:            tier.Name,
			BaseHours:               eff.BaseHours,
			SkillMultiplier:         eff.SkillMultiplier,
			AdjustedSkillMultiplier: eff.AdjustedSkillMultiplier,
			ComplexityMultiplier:    eff.ComplexityMultiplier,
			RiskMultiplier:          eff.RiskMultiplier,
			AllocationPercentage:    pct,
			HoursPerDay:             m.hoursPerDay,
			Legacy:                  eff.Legacy,
		},
	}
}

// ClampAllocation limits pct to [0.1, 1.0]; zero means full time.
func ClampAllocation(pct float64) float64 {
	if pct == 0 || math.IsNaN(pct) {
		return MaxAllocation
	}
	if pct < MinAllocation {
		return MinAllocation
	}
	if pct > MaxAllocation {
		return MaxAllocation
	}
	return pct
}

// MonthlyCost spreads a project cost evenly over the months between start and end.
func MonthlyCost(projectCost decimal.Decimal, start, end time.Time) decimal.Decimal {
	months := calendar.MonthsBetween(start, end)
	if months < 1 {
		months = 1
	}
	return projectCost.Div(decimal.NewFromInt(int64(months))).Round(2)
}

// Span is a dated, costed stretch of work, planned or actual.
type Span struct {
	Start time.Time
	End   time.Time
	Cost  decimal.Decimal
}

// Variance compares actual against planned work. Positive numbers are overruns.
type Variance struct {
	DurationDays   int             `json:"duration_days"`
	Cost           decimal.Decimal `json:"cost"`
	CostPercentage float64         `json:"cost_percentage"`
}

// ComputeVariance returns actual minus plan in business days and cost. Durations are
// only compared when both spans are fully dated.
func ComputeVariance(plan, actual Span, holidays calendar.DateSet) Variance {
	var v Variance
	if !plan.Start.IsZero() && !plan.End.IsZero() && !actual.Start.IsZero() && !actual.End.IsZero() {
		planned := calendar.CountBusinessDays(plan.Start, plan.End, holidays)
		spent := calendar.CountBusinessDays(actual.Start, actual.End, holidays)
		v.DurationDays = spent - planned
	}
	v.Cost = actual.Cost.Sub(plan.Cost)
	if !plan.Cost.IsZero() {
		v.CostPercentage = v.Cost.Div(plan.Cost).Mul(decimal.NewFromInt(100)).Round(2).InexactFloat64()
	}
	return v
}
