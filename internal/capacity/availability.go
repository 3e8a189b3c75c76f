package capacity

import (
	"math"
	"sort"
)

// GetResourceAvailability reports the headroom left below the member's threshold.
func (e *Engine) GetResourceAvailability(name string, allocations []Allocation, members []Member) Availability {
	member, ok := FindMember(members, name)
	if !ok {
		return Availability{ResourceName: name, Threshold: e.threshold, Error: notFound(name)}
	}
	util := e.CalculateUtilization(member.Name, allocations, members, nil)
	threshold := e.Threshold(member)
	headroom := round(math.Max(0, threshold-util.CurrentUtilization), 4)
	return Availability{
		ResourceName:        member.Name,
		Available:           util.CurrentUtilization < threshold,
		CurrentUtilization:  util.CurrentUtilization,
		Threshold:           threshold,
		AvailableCapacity:   headroom,
		AvailablePercentage: round(headroom*100, 2),
		Status:              statusFor(util, threshold),
	}
}

// statusFor buckets a utilization: below 60% of max capacity is available, below 90%
// moderate, anything else under the threshold high, and at or over the threshold
// over capacity.
func statusFor(u Utilization, threshold float64) Status {
	switch {
	case u.CurrentUtilization >= threshold:
		return StatusOverCapacity
	case u.UtilizationPercentage < availableBelow:
		return StatusAvailable
	case u.UtilizationPercentage < moderateBelow:
		return StatusModerateUtilization
	default:
		return StatusHighUtilization
	}
}

// ResourceState derives the load state of a resource from its active allocation count
// and utilization.
func (e *Engine) ResourceState(name string, allocations []Allocation, members []Member) State {
	member, ok := FindMember(members, name)
	if !ok {
		return State{ResourceName: name, Error: notFound(name)}
	}
	util := e.CalculateUtilization(member.Name, allocations, members, nil)
	return State{
		ResourceName:       member.Name,
		State:              e.loadState(member, util),
		ActiveAllocations:  util.ActiveAllocations,
		CurrentUtilization: util.CurrentUtilization,
	}
}

func (e *Engine) loadState(m Member, u Utilization) LoadState {
	switch {
	case u.CurrentUtilization > e.Threshold(m):
		return LoadOverCapacity
	case u.ActiveAllocations >= e.maxConcurrent || u.CurrentUtilization >= u.MaxCapacity:
		return LoadAtCapacity
	case u.ActiveAllocations >= LimitedAllocations:
		return LoadLimited
	default:
		return LoadAvailable
	}
}

// GetUtilizationSummary returns one entry per active member, most utilized first.
func (e *Engine) GetUtilizationSummary(allocations []Allocation, members []Member) []SummaryEntry {
	entries := make([]SummaryEntry, 0, len(members))
	for _, m := range members {
		if !m.Active {
			continue
		}
		util := e.CalculateUtilization(m.Name, allocations, members, nil)
		threshold := e.Threshold(m)
		tier := m.TierLevel
		if tier == 0 {
			tier = DefaultTierLevel
		}
		entries = append(entries, SummaryEntry{
			ResourceName:          m.Name,
			TierLevel:             tier,
			CurrentUtilization:    util.CurrentUtilization,
			UtilizationPercentage: util.UtilizationPercentage,
			ActiveAllocations:     util.ActiveAllocations,
			Threshold:             threshold,
			IsOverAllocated:       util.CurrentUtilization > threshold,
			Status:                statusFor(util, threshold),
			State:                 e.loadState(m, util),
		})
	}
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].UtilizationPercentage != entries[j].UtilizationPercentage {
			return entries[i].UtilizationPercentage > entries[j].UtilizationPercentage
		}
		return entries[i].ResourceName < entries[j].ResourceName
	})
	return entries
}
