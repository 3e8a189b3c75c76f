package planner

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/shopspring/decimal"

	"resplan/internal/calendar"
	"resplan/internal/capacity"
	"resplan/internal/category"
	"resplan/internal/dataset"
	"resplan/internal/effort"
)

func mustDate(t *testing.T, s string) time.Time {
	t.Helper()
	d, err := calendar.ParseDate(s)
	if err != nil {
		t.Fatalf("parse %s: %v", s, err)
	}
	return d
}

func fptr(v float64) *float64 {
	return &v
}

func testSnapshot(t *testing.T) *dataset.Snapshot {
	return &dataset.Snapshot{
		Settings: effort.Settings{
			"low":    {ID: "low", Days: 1, Hours: 16},
			"medium": {ID: "medium", Days: 5, Hours: 40, BaseEffortHours: fptr(40), ComplexityMultiplier: fptr(1.5), RiskFactor: fptr(1.1), SkillSensitivity: fptr(0.5)},
		},
		Costs: []effort.CostTier{
			{ID: "r-alice", Name: "Alice", PerHourCost: decimal.NewFromInt(50)},
			{ID: "r-bob", Name: "Bob", PerHourCost: decimal.NewFromInt(40)},
		},
		Members: []capacity.Member{
			{Name: "Alice", TierLevel: 3, MaxCapacity: 1, Active: true},
		},
		Allocations: []capacity.Allocation{
			{ID: "a1", Resource: "Alice", Category: category.Project, Complexity: "medium", TaskName: "Development", AllocationPercentage: fptr(0.5),
				Plan: capacity.PlanRecord{TaskStart: mustDate(t, "2024-01-01")}},
			{ID: "a2", Resource: "Bob", Category: category.Support, Complexity: "low", TaskName: "Development",
				Plan:   capacity.PlanRecord{TaskStart: mustDate(t, "2024-01-05")},
				Actual: capacity.ActualRecord{TaskStart: mustDate(t, "2024-01-05"), TaskEnd: mustDate(t, "2024-01-12"), Cost: decimal.NewFromInt(800)}},
			{ID: "a3", Resource: "Alice", Category: category.Project, Complexity: "medium", TaskName: "Completed",
				Plan: capacity.PlanRecord{TaskStart: mustDate(t, "2023-11-01"), TaskEnd: mustDate(t, "2023-11-10")}},
			{ID: "a4", Resource: "Alice", Category: category.Project, Complexity: "epic", TaskName: "Planning",
				Plan: capacity.PlanRecord{TaskStart: mustDate(t, "2024-01-01")}},
			{ID: "a5", Resource: "Alice", Category: category.Support, Complexity: "low", TaskName: "Planning"},
		},
	}
}

func testEngines(snap *dataset.Snapshot) Engines {
	return Engines{
		Calendar: calendar.NewEngine(snap.Holidays, snap.Leaves, calendar.Options{}),
		Effort:   effort.New(effort.Options{}),
		Capacity: capacity.New(capacity.Options{}),
	}
}

func TestRecalculate(t *testing.T) {
	snap := testSnapshot(t)
	res, err := Recalculate(snap, testEngines(snap), RecalcOptions{AsOf: mustDate(t, "2024-01-02")})
	if err != nil {
		t.Fatalf("recalculate: %v", err)
	}
	plan := res.Plan
	if got, want := plan.ID, "PLAN-2024-01-02"; got != want {
		t.Fatalf("plan id = %s, want %s", got, want)
	}
	if len(plan.Lines) != 5 {
		t.Fatalf("lines = %d, want 5", len(plan.Lines))
	}

	a1 := plan.Lines[0]
	if a1.TierLevel != 3 || a1.EffortHours != 59.4 || !a1.CostProject.Equal(decimal.NewFromInt(2970)) {
		t.Fatalf("a1 cost line = %#v", a1)
	}
	if a1.End != "2024-01-09" || a1.CalendarDays != 6 || a1.Strategy != effort.StrategyTierAdjusted {
		t.Fatalf("a1 schedule = %#v", a1)
	}
	if a1.DurationDays != 15 {
		t.Fatalf("a1 duration = %d, want 15", a1.DurationDays)
	}
	if !a1.CostMonthly.Equal(decimal.NewFromInt(2970)) || !a1.EndDateChanged {
		t.Fatalf("a1 monthly/changed = %#v", a1)
	}

	a2 := plan.Lines[1]
	if a2.End != "2024-01-09" || !a2.CostProject.Equal(decimal.NewFromInt(640)) || a2.Strategy != effort.StrategyFlat {
		t.Fatalf("a2 line = %#v", a2)
	}
	if a2.Variance == nil || a2.Variance.DurationDays != 3 || !a2.Variance.Cost.Equal(decimal.NewFromInt(160)) || a2.Variance.CostPercentage != 25 {
		t.Fatalf("a2 variance = %#v", a2.Variance)
	}

	if a3 := plan.Lines[2]; !a3.Terminal || a3.End != "" || a3.Error != "" {
		t.Fatalf("terminal allocation should be skipped: %#v", a3)
	}
	if a4 := plan.Lines[3]; a4.Error == "" {
		t.Fatalf("expected unknown complexity error on a4")
	}
	if a5 := plan.Lines[4]; a5.Error != "plan task_start is not set" {
		t.Fatalf("a5 error = %q", a5.Error)
	}

	want := Totals{Lines: 5, Errors: 2, Changed: 2, EffortHours: 75.4, CostProject: decimal.NewFromInt(3610)}
	if diff := cmp.Diff(want, plan.Totals, cmp.Comparer(func(a, b decimal.Decimal) bool { return a.Equal(b) })); diff != "" {
		t.Fatalf("totals mismatch (-want +got):\n%s", diff)
	}

	updated := res.Allocations[0]
	if calendar.Key(updated.Plan.TaskEnd) != "2024-01-09" || !updated.Plan.CostProject.Equal(decimal.NewFromInt(2970)) {
		t.Fatalf("allocation plan not refreshed: %#v", updated.Plan)
	}
	if !snap.Allocations[0].Plan.TaskEnd.IsZero() {
		t.Fatalf("snapshot must not be modified")
	}
	if res.Allocations[1].Variance.DurationDays != 3 {
		t.Fatalf("variance not written back: %#v", res.Allocations[1].Variance)
	}
}

func TestRecalculateIsStableOnSecondPass(t *testing.T) {
	snap := testSnapshot(t)
	engines := testEngines(snap)
	first, err := Recalculate(snap, engines, RecalcOptions{AsOf: mustDate(t, "2024-01-02")})
	if err != nil {
		t.Fatalf("first pass: %v", err)
	}
	snap.Allocations = first.Allocations
	second, err := Recalculate(snap, engines, RecalcOptions{AsOf: mustDate(t, "2024-01-02")})
	if err != nil {
		t.Fatalf("second pass: %v", err)
	}
	if second.Plan.Totals.Changed != 0 {
		t.Fatalf("second pass changed %d lines", second.Plan.Totals.Changed)
	}
}

func TestRecalculateHonorsHolidays(t *testing.T) {
	snap := testSnapshot(t)
	snap.Holidays = []calendar.Holiday{{Name: "Founders day", Date: mustDate(t, "2024-01-03"), Type: calendar.HolidayCollective}}
	engines := testEngines(snap)

	with, err := Recalculate(snap, engines, RecalcOptions{AsOf: mustDate(t, "2024-01-02")})
	if err != nil {
		t.Fatalf("recalculate: %v", err)
	}
	if got := with.Plan.Lines[0].End; got != "2024-01-10" {
		t.Fatalf("end with collective holiday = %s, want 2024-01-10", got)
	}

	without, err := Recalculate(snap, engines, RecalcOptions{AsOf: mustDate(t, "2024-01-02"), ExcludeCollectiveHolidays: true})
	if err != nil {
		t.Fatalf("recalculate: %v", err)
	}
	if got := without.Plan.Lines[0].End; got != "2024-01-09" {
		t.Fatalf("end without collective holiday = %s, want 2024-01-09", got)
	}
}

func TestRecalculateRequiresEngines(t *testing.T) {
	if _, err := Recalculate(testSnapshot(t), Engines{}, RecalcOptions{}); err == nil {
		t.Fatalf("expected error without engines")
	}
	if _, err := Recalculate(nil, Engines{}, RecalcOptions{}); err == nil {
		t.Fatalf("expected error without snapshot")
	}
}

func TestWriteAndLoadPlan(t *testing.T) {
	snap := testSnapshot(t)
	res, err := Recalculate(snap, testEngines(snap), RecalcOptions{AsOf: mustDate(t, "2024-01-02")})
	if err != nil {
		t.Fatalf("recalculate: %v", err)
	}
	dir := t.TempDir()
	path, err := WritePlan(dir, res.Plan)
	if err != nil {
		t.Fatalf("write plan: %v", err)
	}
	if want := filepath.Join(dir, "2024-01-02.plan.json"); path != want {
		t.Fatalf("plan path = %s, want %s", path, want)
	}

	resolved, err := ResolvePlanPath(dir)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	loaded, err := LoadPlan(resolved)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded.ID != res.Plan.ID || len(loaded.Lines) != len(res.Plan.Lines) {
		t.Fatalf("loaded plan differs: %#v", loaded)
	}
	if !loaded.Lines[0].CostProject.Equal(res.Plan.Lines[0].CostProject) {
		t.Fatalf("cost lost in round trip")
	}
}

func TestValidatePlan(t *testing.T) {
	tests := []struct {
		name string
		plan Plan
		ok   bool
	}{
		{name: "empty id", plan: Plan{AsOf: "2024-01-01"}},
		{name: "no lines", plan: Plan{ID: "PLAN", AsOf: "2024-01-01"}, ok: true},
		{name: "missing resource", plan: Plan{ID: "PLAN", AsOf: "2024-01-01", Lines: []Line{{AllocationID: "a"}}}},
		{name: "inverted", plan: Plan{ID: "PLAN", AsOf: "2024-01-01", Lines: []Line{{AllocationID: "a", Resource: "x", Start: "2024-02-01", End: "2024-01-01"}}}},
		{name: "duplicate", plan: Plan{ID: "PLAN", AsOf: "2024-01-01", Lines: []Line{{AllocationID: "a", Resource: "x"}, {AllocationID: "a", Resource: "x"}}}},
	}
	for _, tt := range tests {
		err := ValidatePlan(tt.plan)
		if tt.ok && err != nil {
			t.Fatalf("%s: unexpected error %v", tt.name, err)
		}
		if !tt.ok && err == nil {
			t.Fatalf("%s: expected error", tt.name)
		}
	}
}
