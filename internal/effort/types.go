package effort

import (
	"strings"

	"github.com/shopspring/decimal"

	"resplan/internal/category"
)

// Complexity is one configured complexity level. The pointer fields belong to the
// enhanced effort model; when BaseEffortHours is nil the legacy flat Hours apply.
type Complexity struct {
	ID                   string   `json:"id" yaml:"id"`
	Days                 float64  `json:"days" yaml:"days"`
	Hours                float64  `json:"hours" yaml:"hours"`
	BaseEffortHours      *float64 `json:"base_effort_hours,omitempty" yaml:"base_effort_hours,omitempty"`
	ComplexityMultiplier *float64 `json:"complexity_multiplier,omitempty" yaml:"complexity_multiplier,omitempty"`
	RiskFactor           *float64 `json:"risk_factor,omitempty" yaml:"risk_factor,omitempty"`
	SkillSensitivity     *float64 `json:"skill_sensitivity,omitempty" yaml:"skill_sensitivity,omitempty"`
}

// Settings maps lowercase complexity ids to their configuration.
type Settings map[string]Complexity

// Lookup finds a complexity level case-insensitively.
func (s Settings) Lookup(complexity string) (Complexity, bool) {
	c, ok := s[normalizeKey(complexity)]
	return c, ok
}

// NominalDays returns the configured day count of a complexity level.
func (s Settings) NominalDays(complexity string) (float64, bool) {
	c, ok := s.Lookup(complexity)
	if !ok {
		return 0, false
	}
	return c.Days, true
}

// CostTier is the hourly rate of a resource.
type CostTier struct {
	ID          string          `json:"id" yaml:"id"`
	Name        string          `json:"name" yaml:"name"`
	PerHourCost decimal.Decimal `json:"per_hour_cost" yaml:"per_hour_cost"`
	Level       int             `json:"level,omitempty" yaml:"level,omitempty"`
}

// ResolveCostTier finds a cost record by id first, then by case-insensitive name.
func ResolveCostTier(costs []CostTier, ref string) (CostTier, bool) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return CostTier{}, false
	}
	for _, c := range costs {
		if c.ID == ref {
			return c, true
		}
	}
	for _, c := range costs {
		if strings.EqualFold(strings.TrimSpace(c.Name), ref) {
			return c, true
		}
	}
	return CostTier{}, false
}

// TemplateEstimate is a flat per-complexity estimate of a task template.
type TemplateEstimate struct {
	Hours float64 `json:"hours" yaml:"hours"`
	Days  float64 `json:"days" yaml:"days"`
}

// TaskTemplate describes recurring support or maintenance work with flat estimates.
type TaskTemplate struct {
	Name      string                      `json:"name" yaml:"name"`
	Category  category.Category           `json:"category" yaml:"category"`
	Estimates map[string]TemplateEstimate `json:"estimates" yaml:"estimates"`
}

// Estimate returns the template estimate for a complexity level.
func (t *TaskTemplate) Estimate(complexity string) (TemplateEstimate, bool) {
	if t == nil {
		return TemplateEstimate{}, false
	}
	est, ok := t.Estimates[normalizeKey(complexity)]
	return est, ok
}

func normalizeKey(value string) string {
	return strings.ToLower(strings.TrimSpace(value))
}
