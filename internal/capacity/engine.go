package capacity

import (
	"fmt"
	"math"
	"strings"
)

const (
	DefaultThreshold                = 1.2
	DefaultHighUtilization          = 0.8
	DefaultMaxConcurrentAllocations = 5
	DefaultAlternativeLimit         = 3
	LimitedAllocations              = 3

	availableBelow = 60.0
	moderateBelow  = 90.0
)

// DefaultCompletionPhases are the task names that mark an allocation as finished.
func DefaultCompletionPhases() []string {
	return []string{"Completed", "Idle"}
}

// Options configures an Engine. Zero values take the package defaults.
type Options struct {
	DefaultThreshold         float64
	CompletionPhases         []string
	HighUtilization          float64
	MaxConcurrentAllocations int
	AlternativeLimit         int
}

// Engine evaluates resource capacity over caller-supplied snapshots. It holds only the
// configuration passed to New.
type Engine struct {
	threshold        float64
	completion       map[string]struct{}
	highUtilization  float64
	maxConcurrent    int
	alternativeLimit int
}

func New(opts Options) *Engine {
	threshold := opts.DefaultThreshold
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	phases := opts.CompletionPhases
	if len(phases) == 0 {
		phases = DefaultCompletionPhases()
	}
	completion := make(map[string]struct{}, len(phases))
	for _, phase := range phases {
		completion[normalize(phase)] = struct{}{}
	}
	high := opts.HighUtilization
	if high <= 0 {
		high = DefaultHighUtilization
	}
	maxConcurrent := opts.MaxConcurrentAllocations
	if maxConcurrent <= 0 {
		maxConcurrent = DefaultMaxConcurrentAllocations
	}
	alternatives := opts.AlternativeLimit
	if alternatives <= 0 {
		alternatives = DefaultAlternativeLimit
	}
	return &Engine{
		threshold:        threshold,
		completion:       completion,
		highUtilization:  high,
		maxConcurrent:    maxConcurrent,
		alternativeLimit: alternatives,
	}
}

// DefaultThreshold returns the threshold used for members without their own.
func (e *Engine) DefaultThreshold() float64 {
	return e.threshold
}

// Threshold returns the over-allocation threshold of a member.
func (e *Engine) Threshold(m Member) float64 {
	if m.OverAllocationThreshold > 0 {
		return m.OverAllocationThreshold
	}
	return e.threshold
}

// IsTerminal reports whether the allocation is in a completion phase.
func (e *Engine) IsTerminal(a Allocation) bool {
	_, ok := e.completion[normalize(a.TaskName)]
	return ok
}

// FindMember looks a member up by case-insensitive name.
func FindMember(members []Member, name string) (Member, bool) {
	key := normalize(name)
	if key == "" {
		return Member{}, false
	}
	for _, m := range members {
		if normalize(m.Name) == key {
			return m, true
		}
	}
	return Member{}, false
}

// ActiveAllocations returns the non-terminal allocations of a resource that overlap
// the range, skipping the allocation with id exclude.
func (e *Engine) ActiveAllocations(name string, allocations []Allocation, dr *DateRange, exclude string) []Allocation {
	key := normalize(name)
	var out []Allocation
	for _, a := range allocations {
		if normalize(a.Resource) != key || e.IsTerminal(a) {
			continue
		}
		if exclude != "" && a.ID == exclude {
			continue
		}
		if dr != nil && !dr.Overlaps(a.Plan.TaskStart, a.Plan.TaskEnd) {
			continue
		}
		out = append(out, a)
	}
	return out
}

// CalculateUtilization sums the weights of the active allocations of a resource,
// optionally only those overlapping dr.
func (e *Engine) CalculateUtilization(name string, allocations []Allocation, members []Member, dr *DateRange) Utilization {
	member, ok := FindMember(members, name)
	if !ok {
		return Utilization{ResourceName: name, Error: notFound(name)}
	}
	active := e.ActiveAllocations(member.Name, allocations, dr, "")
	current := sumWeights(active)
	maxCapacity := maxCapacityOf(member)
	return Utilization{
		ResourceName:          member.Name,
		CurrentUtilization:    current,
		UtilizationPercentage: round(current/maxCapacity*100, 2),
		ActiveAllocations:     len(active),
		MaxCapacity:           maxCapacity,
	}
}

// DetectOverAllocation compares the utilization of a resource against its threshold.
func (e *Engine) DetectOverAllocation(name string, allocations []Allocation, members []Member) OverAllocation {
	member, ok := FindMember(members, name)
	if !ok {
		return OverAllocation{ResourceName: name, Threshold: e.threshold, Error: notFound(name)}
	}
	active := e.ActiveAllocations(member.Name, allocations, nil, "")
	current := sumWeights(active)
	threshold := e.Threshold(member)
	out := OverAllocation{
		ResourceName:       member.Name,
		IsOverAllocated:    current > threshold,
		CurrentUtilization: current,
		Threshold:          threshold,
		Amount:             round(math.Max(0, current-threshold), 4),
	}
	if out.IsOverAllocated {
		out.ConflictingAllocations = conflictsOf(active)
	}
	return out
}

func conflictsOf(allocations []Allocation) []Conflict {
	out := make([]Conflict, 0, len(allocations))
	for _, a := range allocations {
		out = append(out, Conflict{
			AllocationID:         a.ID,
			TaskName:             a.TaskName,
			Category:             a.Category,
			Complexity:           a.Complexity,
			AllocationPercentage: a.Weight(),
			Start:                a.Plan.TaskStart,
			End:                  a.Plan.TaskEnd,
		})
	}
	return out
}

func sumWeights(allocations []Allocation) float64 {
	total := 0.0
	for _, a := range allocations {
		total += a.Weight()
	}
	return round(total, 4)
}

func maxCapacityOf(m Member) float64 {
	if m.MaxCapacity > 0 {
		return m.MaxCapacity
	}
	return DefaultMaxCapacity
}

func notFound(name string) string {
	return fmt.Sprintf("resource %q not found", name)
}

func normalize(value string) string {
	return strings.ToLower(strings.TrimSpace(value))
}

func round(v float64, places int) float64 {
	scale := math.Pow(10, float64(places))
	return math.Round(v*scale) / scale
}
