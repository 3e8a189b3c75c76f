package effort

import (
	"fmt"
	"math"
)

// Range is an inclusive interval of days.
type Range struct {
	Low  int `json:"low"`
	High int `json:"high"`
}

// Estimate is a three-point (PERT) estimate in days.
type Estimate struct {
	Optimistic        int     `json:"optimistic"`
	Realistic         float64 `json:"realistic"`
	Pessimistic       int     `json:"pessimistic"`
	Expected          int     `json:"expected"`
	StandardDeviation int     `json:"standard_deviation"`
	Confidence68      Range   `json:"confidence_68"`
	Confidence95      Range   `json:"confidence_95"`
	Error             string  `json:"error,omitempty"`
}

// ThreePointEstimate derives optimistic (70%) and pessimistic (150%) bounds from the
// nominal days of a complexity level and combines them with the PERT weighting.
func ThreePointEstimate(complexity string, settings Settings) Estimate {
	cfg, ok := settings.Lookup(complexity)
	if !ok {
		return Estimate{Error: fmt.Sprintf("complexity %q not configured", complexity)}
	}
	days := cfg.Days
	optimistic := int(math.Floor(snap(days * 0.7)))
	pessimistic := int(math.Ceil(snap(days * 1.5)))
	expected := int(math.Round(snap((float64(optimistic) + 4*days + float64(pessimistic)) / 6)))
	stdDev := int(math.Round(snap(float64(pessimistic-optimistic) / 6)))

	return Estimate{
		Optimistic:        optimistic,
		Realistic:         days,
		Pessimistic:       pessimistic,
		Expected:          expected,
		StandardDeviation: stdDev,
		Confidence68:      Range{Low: nonNegative(expected - stdDev), High: expected + stdDev},
		Confidence95:      Range{Low: nonNegative(expected - 2*stdDev), High: expected + 2*stdDev},
	}
}

// BufferedDuration pads days by buffer (0.2 = 20%). A non-positive buffer uses the
// model default.
func (m *Model) BufferedDuration(days float64, buffer float64) int {
	if days <= 0 {
		return 0
	}
	if buffer <= 0 {
		buffer = m.buffer
	}
	return int(math.Ceil(snap(days * (1 + buffer))))
}

func nonNegative(v int) int {
	if v < 0 {
		return 0
	}
	return v
}
