package capacity

import (
	"fmt"
	"sort"
	"strings"

	"resplan/internal/effort"
)

// ValidateAllocation checks a proposed allocation against the existing commitments of
// its resource. Business-rule problems are reported as issues, never as Go errors.
// Over-threshold requests only block under StrictEnforcement.
func (e *Engine) ValidateAllocation(req Request, existing []Allocation, members []Member, opts ValidateOptions) Validation {
	out := Validation{Valid: true, Threshold: e.threshold}

	member, ok := FindMember(members, req.Resource)
	if !ok {
		out.addError(CodeResourceNotFound, "resource", notFound(req.Resource))
		return out
	}
	out.Threshold = e.Threshold(member)
	if !member.Active {
		out.addWarning(CodeInactiveResource, "resource", fmt.Sprintf("resource %q is inactive", member.Name))
	}

	if req.AllocationPercentage < effort.MinAllocation || req.AllocationPercentage > effort.MaxAllocation {
		out.addError(CodeInvalidPercentage, "allocation_percentage", fmt.Sprintf(
			"allocation percentage %s must be between %s and %s",
			percent(req.AllocationPercentage), percent(effort.MinAllocation), percent(effort.MaxAllocation)))
	}
	if !req.Start.IsZero() && !req.End.IsZero() && req.End.Before(req.Start) {
		out.addError(CodeInvalidDateRange, "end", "end date precedes start date")
	}
	if !out.Valid {
		return out
	}

	var dr *DateRange
	if !req.Start.IsZero() || !req.End.IsZero() {
		dr = &DateRange{Start: req.Start, End: req.End}
	}
	active := e.ActiveAllocations(member.Name, existing, dr, req.ID)
	out.CurrentUtilization = sumWeights(active)
	out.ProjectedUtilization = round(out.CurrentUtilization+req.AllocationPercentage, 4)

	if out.ProjectedUtilization > out.Threshold {
		msg := fmt.Sprintf("projected utilization %s would exceed capacity threshold %s (over-allocation)",
			percent(out.ProjectedUtilization), percent(out.Threshold))
		if opts.StrictEnforcement {
			out.addError(CodeOverAllocation, "allocation_percentage", msg)
		} else {
			out.addWarning(CodeOverAllocation, "allocation_percentage", msg)
		}
		out.Conflicts = conflictsOf(active)
		out.Alternatives = e.alternatives(member, req, existing, members, dr)
		if len(out.Alternatives) > 0 {
			out.addRecommendation(CodeAlternativeResource, "resource",
				"consider "+strings.Join(out.Alternatives, ", ")+" instead")
		}
		return out
	}

	if out.ProjectedUtilization >= e.highUtilization {
		out.addRecommendation(CodeHighUtilization, "allocation_percentage", fmt.Sprintf(
			"high utilization: %s would be at %s", member.Name, percent(out.ProjectedUtilization)))
	}
	return out
}

// alternatives returns active members that could take the request without crossing
// their own threshold, least loaded first.
func (e *Engine) alternatives(requested Member, req Request, existing []Allocation, members []Member, dr *DateRange) []string {
	type candidate struct {
		name    string
		current float64
	}
	var candidates []candidate
	for _, m := range members {
		if !m.Active || normalize(m.Name) == normalize(requested.Name) {
			continue
		}
		current := sumWeights(e.ActiveAllocations(m.Name, existing, dr, req.ID))
		if round(current+req.AllocationPercentage, 4) > e.Threshold(m) {
			continue
		}
		candidates = append(candidates, candidate{name: m.Name, current: current})
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].current != candidates[j].current {
			return candidates[i].current < candidates[j].current
		}
		return candidates[i].name < candidates[j].name
	})
	if len(candidates) > e.alternativeLimit {
		candidates = candidates[:e.alternativeLimit]
	}
	names := make([]string, 0, len(candidates))
	for _, c := range candidates {
		names = append(names, c.name)
	}
	return names
}

func (v *Validation) addError(code, field, msg string) {
	v.Valid = false
	v.Errors = append(v.Errors, Issue{Code: code, Severity: SeverityError, Field: field, Message: msg})
}

func (v *Validation) addWarning(code, field, msg string) {
	v.Warnings = append(v.Warnings, Issue{Code: code, Severity: SeverityWarning, Field: field, Message: msg})
}

func (v *Validation) addRecommendation(code, field, msg string) {
	v.Recommendations = append(v.Recommendations, Issue{Code: code, Severity: SeverityInfo, Field: field, Message: msg})
}

func percent(v float64) string {
	return fmt.Sprintf("%g%%", round(v*100, 2))
}
