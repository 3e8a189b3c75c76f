package effort

import "fmt"

const (
	StrategyTierAdjusted = "tier-adjusted"
	StrategyFlat         = "flat"
)

// Strategy computes effort for one category of work.
type Strategy interface {
	Name() string
	Effort(m *Model, req EffortRequest, settings Settings) Effort
}

type tierAdjustedStrategy struct{}

func (tierAdjustedStrategy) Name() string { return StrategyTierAdjusted }

func (tierAdjustedStrategy) Effort(m *Model, req EffortRequest, settings Settings) Effort {
	return m.TierAdjustedEffort(req.Complexity, req.TierLevel, settings)
}

type flatStrategy struct{}

func (flatStrategy) Name() string { return StrategyFlat }

// Effort reads the template estimate, or the complexity's legacy hours when no
// template applies. Multipliers are always 1.
func (flatStrategy) Effort(_ *Model, req EffortRequest, settings Settings) Effort {
	var hours float64
	if req.Template != nil {
		est, ok := req.Template.Estimate(req.Complexity)
		if !ok {
			return Effort{
				Strategy: StrategyFlat,
				Error:    fmt.Sprintf("template %q has no %q estimate", req.Template.Name, req.Complexity),
			}
		}
		hours = est.Hours
	} else {
		cfg, ok := settings.Lookup(req.Complexity)
		if !ok {
			return Effort{Strategy: StrategyFlat, Error: fmt.Sprintf("complexity %q not configured", req.Complexity)}
		}
		hours = cfg.Hours
	}
	return Effort{
		Strategy:                StrategyFlat,
		BaseHours:               hours,
		AdjustedHours:           hours,
		SkillMultiplier:         1,
		AdjustedSkillMultiplier: 1,
		ComplexityMultiplier:    1,
		RiskMultiplier:          1,
	}
}
