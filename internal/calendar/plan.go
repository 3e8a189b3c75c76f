package calendar

import (
	"fmt"
	"math"
	"strings"
	"time"

	"resplan/internal/category"
)

// DaysSource resolves the nominal effort days of a complexity level.
type DaysSource interface {
	NominalDays(complexity string) (float64, bool)
}

// Options configures an Engine. Zero values take the package defaults.
type Options struct {
	CapacityFactor float64
}

// Engine plans end dates against a fixed holiday and leave calendar.
type Engine struct {
	capacityFactor float64
	holidays       []Holiday
	leaves         []Leave
}

// NewEngine returns an Engine bound to the given calendar snapshot.
func NewEngine(holidays []Holiday, leaves []Leave, opts Options) *Engine {
	cf := opts.CapacityFactor
	if cf == 0 {
		cf = DefaultCapacityFactor
	}
	return &Engine{
		capacityFactor: NormalizeCapacityFactor(cf),
		holidays:       holidays,
		leaves:         leaves,
	}
}

// CapacityFactor returns the engine default capacity factor.
func (e *Engine) CapacityFactor() float64 {
	return e.capacityFactor
}

// PlanRequest describes one end-date computation.
type PlanRequest struct {
	Start      time.Time
	Complexity string
	Resource   string
	Category   category.Category
	Settings   DaysSource

	// CapacityFactor overrides the engine default when non-zero.
	CapacityFactor float64
	// ExcludeCollectiveHolidays drops collective holidays from the exclusion set.
	ExcludeCollectiveHolidays bool
}

// PlanResult is the outcome of PlanEndDate. Error is set when a referenced
// complexity level is unknown; End then equals Start.
type PlanResult struct {
	Start         time.Time `json:"start"`
	End           time.Time `json:"end"`
	EffortDays    float64   `json:"effort_days"`
	CalendarDays  int       `json:"calendar_days"`
	HalfDayLeaves int       `json:"half_day_leaves"`
	PaddingDays   int       `json:"padding_days"`
	Error         string    `json:"error,omitempty"`
}

// PlanEndDate turns a start date and a complexity estimate into a concrete end date
// for the resource, honoring holidays, full-day leave and half-day leave padding.
func (e *Engine) PlanEndDate(req PlanRequest) (PlanResult, error) {
	if req.Start.IsZero() {
		return PlanResult{}, fmt.Errorf("%w: start date is required", ErrInvalidDate)
	}
	start := Day(req.Start)
	result := PlanResult{Start: start, End: start}

	effortDays := 1.0
	if req.Category.UsesComplexity() {
		key := strings.ToLower(strings.TrimSpace(req.Complexity))
		var ok bool
		if req.Settings != nil {
			effortDays, ok = req.Settings.NominalDays(key)
		}
		if !ok {
			result.Error = fmt.Sprintf("complexity %q not configured", req.Complexity)
			return result, nil
		}
	}
	result.EffortDays = effortDays

	cf := e.capacityFactor
	if req.CapacityFactor != 0 {
		cf = NormalizeCapacityFactor(req.CapacityFactor)
	}
	result.CalendarDays = RealisticDuration(effortDays, cf)

	exclusions, halfDays, err := e.exclusions(req.Resource, !req.ExcludeCollectiveHolidays)
	if err != nil {
		return PlanResult{}, err
	}

	end := AddBusinessDays(start, result.CalendarDays, exclusions)

	for _, d := range halfDays {
		if d.Before(start) || d.After(end) || IsWeekend(d) || exclusions.Contains(d) {
			continue
		}
		result.HalfDayLeaves++
	}
	if result.HalfDayLeaves > 0 {
		result.PaddingDays = int(math.Ceil(float64(result.HalfDayLeaves) * HalfDayWeight))
		end = AddBusinessDays(end, result.PaddingDays, exclusions)
	}

	result.End = end
	return result, nil
}

// Exclusions returns the excluded dates for resource: national holidays, collective
// holidays when includeCollective is set, and the resource's full-day leave.
func (e *Engine) Exclusions(resource string, includeCollective bool) (DateSet, error) {
	set, _, err := e.exclusions(resource, includeCollective)
	return set, err
}

func (e *Engine) exclusions(resource string, includeCollective bool) (DateSet, []time.Time, error) {
	set := make(DateSet)
	for _, h := range e.holidays {
		if h.Type == HolidayCollective && !includeCollective {
			continue
		}
		days, err := h.Days()
		if err != nil {
			return nil, nil, fmt.Errorf("holiday %q: %w", h.Name, err)
		}
		for _, d := range days {
			set.Add(d)
		}
	}

	var halfDays []time.Time
	for _, l := range e.leaves {
		if !strings.EqualFold(strings.TrimSpace(l.Member), strings.TrimSpace(resource)) {
			continue
		}
		days, err := l.Days()
		if err != nil {
			return nil, nil, fmt.Errorf("leave for %s: %w", l.Member, err)
		}
		if l.Type == LeaveHalf {
			halfDays = append(halfDays, days...)
			continue
		}
		for _, d := range days {
			set.Add(d)
		}
	}
	return set, halfDays, nil
}
