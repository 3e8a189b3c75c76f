package planner

import (
	"fmt"
	"math"
	"time"

	"github.com/shopspring/decimal"

	"resplan/internal/calendar"
	"resplan/internal/capacity"
	"resplan/internal/dataset"
	"resplan/internal/effort"
)

// Engines bundles the configured engines a recalculation runs with.
type Engines struct {
	Calendar *calendar.Engine
	Effort   *effort.Model
	Capacity *capacity.Engine
}

type RecalcOptions struct {
	AsOf                      time.Time
	ExcludeCollectiveHolidays bool
	// IncludeTerminal also re-plans allocations in a completion phase.
	IncludeTerminal bool
}

type RecalcResult struct {
	Plan        Plan
	Allocations []capacity.Allocation
}

// Recalculate re-plans every allocation of the snapshot: end date from the plan start,
// project and monthly cost, and variance against actuals when present. The returned
// allocations carry the refreshed plan and variance records; the snapshot itself is
// not modified.
func Recalculate(snap *dataset.Snapshot, engines Engines, opts RecalcOptions) (RecalcResult, error) {
	if snap == nil {
		return RecalcResult{}, fmt.Errorf("snapshot is required")
	}
	if engines.Calendar == nil || engines.Effort == nil || engines.Capacity == nil {
		return RecalcResult{}, fmt.Errorf("calendar, effort and capacity engines are required")
	}
	if opts.AsOf.IsZero() {
		opts.AsOf = time.Now().UTC().Truncate(24 * time.Hour)
	}

	holidays, err := engines.Calendar.Exclusions("", !opts.ExcludeCollectiveHolidays)
	if err != nil {
		return RecalcResult{}, err
	}

	asOf := calendar.Key(opts.AsOf)
	plan := Plan{
		ID:             fmt.Sprintf("PLAN-%s", asOf),
		AsOf:           asOf,
		GeneratedAt:    time.Now().UTC().Format(time.RFC3339),
		CapacityFactor: engines.Calendar.CapacityFactor(),
		Totals:         Totals{CostProject: decimal.Zero},
	}
	updated := make([]capacity.Allocation, 0, len(snap.Allocations))

	for _, alloc := range snap.Allocations {
		line := Line{
			AllocationID: alloc.ID,
			Resource:     alloc.Resource,
			Category:     alloc.Category,
			Complexity:   alloc.Complexity,
			Template:     alloc.Template,
			TaskName:     alloc.TaskName,
			TierLevel:    capacity.DefaultTierLevel,
			Terminal:     engines.Capacity.IsTerminal(alloc),
			CostProject:  decimal.Zero,
			CostMonthly:  decimal.Zero,
		}
		if member, ok := capacity.FindMember(snap.Members, alloc.Resource); ok && member.TierLevel != 0 {
			line.TierLevel = member.TierLevel
		}
		if line.Terminal && !opts.IncludeTerminal {
			plan.Lines = append(plan.Lines, line)
			updated = append(updated, alloc)
			continue
		}

		next, err := recalcLine(snap, engines, opts, holidays, alloc, &line)
		if err != nil {
			return RecalcResult{}, fmt.Errorf("allocation %s: %w", alloc.ID, err)
		}
		plan.Lines = append(plan.Lines, line)
		updated = append(updated, next)
	}

	plan.Totals = totals(plan.Lines)
	if err := ValidatePlan(plan); err != nil {
		return RecalcResult{}, err
	}
	return RecalcResult{Plan: plan, Allocations: updated}, nil
}

func recalcLine(snap *dataset.Snapshot, engines Engines, opts RecalcOptions, holidays calendar.DateSet, alloc capacity.Allocation, line *Line) (capacity.Allocation, error) {
	var tmpl *effort.TaskTemplate
	if alloc.Template != "" {
		t, ok := snap.Template(alloc.Template)
		if !ok {
			line.Error = fmt.Sprintf("template %q not found", alloc.Template)
			return alloc, nil
		}
		tmpl = t
	}

	cost := engines.Effort.ProjectCost(effort.CostRequest{
		Complexity:           alloc.Complexity,
		Resource:             alloc.Resource,
		Category:             alloc.Category,
		TierLevel:            line.TierLevel,
		AllocationPercentage: alloc.Weight(),
		Template:             tmpl,
	}, snap.Settings, snap.Costs)
	if cost.Error != "" {
		line.Error = cost.Error
		return alloc, nil
	}
	line.EffortHours = cost.EffortHours
	line.DurationDays = cost.DurationDays
	line.CostProject = cost.TotalCost
	line.Strategy = cost.Breakdown.Strategy

	if alloc.Plan.TaskStart.IsZero() {
		line.Error = "plan task_start is not set"
		return alloc, nil
	}
	res, err := engines.Calendar.PlanEndDate(calendar.PlanRequest{
		Start:                     alloc.Plan.TaskStart,
		Complexity:                alloc.Complexity,
		Resource:                  alloc.Resource,
		Category:                  alloc.Category,
		Settings:                  snap.Settings,
		ExcludeCollectiveHolidays: opts.ExcludeCollectiveHolidays,
	})
	if err != nil {
		return alloc, err
	}
	if res.Error != "" {
		line.Error = res.Error
		return alloc, nil
	}
	line.Start = calendar.Key(res.Start)
	line.End = calendar.Key(res.End)
	line.CalendarDays = res.CalendarDays
	line.PaddingDays = res.PaddingDays
	line.CostMonthly = effort.MonthlyCost(cost.TotalCost, res.Start, res.End)

	next := alloc
	next.Plan.TaskEnd = res.End
	next.Plan.CostProject = cost.TotalCost
	next.Plan.CostMonthly = line.CostMonthly
	line.EndDateChanged = alloc.Plan.TaskEnd.IsZero() || calendar.Key(alloc.Plan.TaskEnd) != line.End
	line.CostChanged = !alloc.Plan.CostProject.Equal(cost.TotalCost)

	if !alloc.Actual.TaskStart.IsZero() || !alloc.Actual.Cost.IsZero() {
		v := effort.ComputeVariance(
			effort.Span{Start: res.Start, End: res.End, Cost: cost.TotalCost},
			effort.Span{Start: alloc.Actual.TaskStart, End: alloc.Actual.TaskEnd, Cost: alloc.Actual.Cost},
			holidays,
		)
		line.Variance = &v
		next.Variance = v
	}
	return next, nil
}

func totals(lines []Line) Totals {
	t := Totals{CostProject: decimal.Zero}
	for _, line := range lines {
		t.Lines++
		if line.Error != "" {
			t.Errors++
			continue
		}
		if line.EndDateChanged || line.CostChanged {
			t.Changed++
		}
		t.EffortHours += line.EffortHours
		t.CostProject = t.CostProject.Add(line.CostProject)
	}
	t.EffortHours = math.Round(t.EffortHours*100) / 100
	return t
}
