package effort

import (
	"fmt"
	"math"

	"resplan/internal/category"
)

const (
	DefaultTierLevel   = 2
	DefaultHoursPerDay = 8.0
	DefaultSensitivity = 0.5
	DefaultBuffer      = 0.2
)

// TierTable maps a tier level (1 Junior .. 5 Principal) to its effort multiplier.
type TierTable map[int]float64

// DefaultTierTable returns the standard multipliers: juniors need more hours,
// seniors fewer.
func DefaultTierTable() TierTable {
	return TierTable{
		1: 1.4,
		2: 1.0,
		3: 0.8,
		4: 0.7,
		5: 0.6,
	}
}

// Options configures a Model. Zero values take the package defaults.
type Options struct {
	TierMultipliers    TierTable
	HoursPerDay        float64
	DefaultSensitivity float64
	DefaultBuffer      float64
}

// Model computes effort and cost. It holds only configuration and is safe for
// concurrent use.
type Model struct {
	tiers       TierTable
	hoursPerDay float64
	sensitivity float64
	buffer      float64
	strategies  map[category.Category]Strategy
}

// New returns a Model with defaults filled in.
func New(opts Options) *Model {
	tiers := opts.TierMultipliers
	if len(tiers) == 0 {
		tiers = DefaultTierTable()
	}
	hoursPerDay := opts.HoursPerDay
	if hoursPerDay <= 0 {
		hoursPerDay = DefaultHoursPerDay
	}
	sensitivity := opts.DefaultSensitivity
	if sensitivity <= 0 || sensitivity > 1 {
		sensitivity = DefaultSensitivity
	}
	buffer := opts.DefaultBuffer
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	return &Model{
		tiers:       tiers,
		hoursPerDay: hoursPerDay,
		sensitivity: sensitivity,
		buffer:      buffer,
		strategies: map[category.Category]Strategy{
			category.Project: tierAdjustedStrategy{},
		},
	}
}

// HoursPerDay returns the configured nominal workday length.
func (m *Model) HoursPerDay() float64 {
	return m.hoursPerDay
}

// Buffer returns the default schedule buffer.
func (m *Model) Buffer() float64 {
	return m.buffer
}

// TierMultiplier returns the raw multiplier for tier, falling back to the default tier.
func (m *Model) TierMultiplier(tier int) float64 {
	if v, ok := m.tiers[tier]; ok {
		return v
	}
	if v, ok := m.tiers[DefaultTierLevel]; ok {
		return v
	}
	return 1
}

// Effort is the outcome of an effort computation. Error is set when the referenced
// complexity or template estimate is missing; all numbers are then zero.
type Effort struct {
	Strategy                string  `json:"strategy"`
	BaseHours               float64 `json:"base_hours"`
	AdjustedHours           float64 `json:"adjusted_hours"`
	SkillMultiplier         float64 `json:"skill_multiplier"`
	AdjustedSkillMultiplier float64 `json:"adjusted_skill_multiplier"`
	ComplexityMultiplier    float64 `json:"complexity_multiplier"`
	RiskMultiplier          float64 `json:"risk_multiplier"`
	Legacy                  bool    `json:"legacy,omitempty"`
	Error                   string  `json:"error,omitempty"`
}

// TierAdjustedEffort scales the base effort of a complexity level by its complexity
// multiplier, risk factor and the sensitivity-dampened tier multiplier. Levels without
// base_effort_hours keep their flat legacy hours.
func (m *Model) TierAdjustedEffort(complexity string, tier int, settings Settings) Effort {
	cfg, ok := settings.Lookup(complexity)
	if !ok {
		return Effort{Strategy: StrategyTierAdjusted, Error: fmt.Sprintf("complexity %q not configured", complexity)}
	}

	if cfg.BaseEffortHours == nil {
		return Effort{
			Strategy:                StrategyTierAdjusted,
			BaseHours:               cfg.Hours,
			AdjustedHours:           cfg.Hours,
			SkillMultiplier:         1,
			AdjustedSkillMultiplier: 1,
			ComplexityMultiplier:    1,
			RiskMultiplier:          1,
			Legacy:                  true,
		}
	}

	complexityMult := valueOr(cfg.ComplexityMultiplier, 1)
	risk := valueOr(cfg.RiskFactor, 1)
	sensitivity := valueOr(cfg.SkillSensitivity, m.sensitivity)
	if sensitivity < 0 {
		sensitivity = 0
	}
	if sensitivity > 1 {
		sensitivity = 1
	}

	tierMult := m.TierMultiplier(tier)
	adjustedTier := 1 + (tierMult-1)*sensitivity
	base := *cfg.BaseEffortHours

	return Effort{
		Strategy:                StrategyTierAdjusted,
		BaseHours:               base,
		AdjustedHours:           round(base*complexityMult*risk*adjustedTier, 2),
		SkillMultiplier:         tierMult,
		AdjustedSkillMultiplier: round(adjustedTier, 4),
		ComplexityMultiplier:    complexityMult,
		RiskMultiplier:          risk,
	}
}

// EffortRequest selects the effort strategy for one task.
type EffortRequest struct {
	Category   category.Category
	Complexity string
	TierLevel  int
	Template   *TaskTemplate
}

// SelectiveEffort dispatches on category: only project work without a template uses
// tier-adjusted effort. Support, maintenance, unknown and templated work use a flat
// lookup that never depends on tier.
func (m *Model) SelectiveEffort(req EffortRequest, settings Settings) Effort {
	return m.strategyFor(req).Effort(m, req, settings)
}

func (m *Model) strategyFor(req EffortRequest) Strategy {
	if req.Template != nil {
		return flatStrategy{}
	}
	if s, ok := m.strategies[req.Category]; ok {
		return s
	}
	return flatStrategy{}
}

func valueOr(v *float64, fallback float64) float64 {
	if v == nil {
		return fallback
	}
	return *v
}

func round(v float64, places int) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	scale := math.Pow(10, float64(places))
	return math.Round(v*scale) / scale
}

// snap strips binary noise before floor/ceil.
func snap(v float64) float64 {
	return round(v, 9)
}
