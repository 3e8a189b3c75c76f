package dataset

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/shopspring/decimal"

	"resplan/internal/calendar"
	"resplan/internal/capacity"
	"resplan/internal/category"
)

const complexityYML = `
complexity:
  - id: low
    days: 2
    hours: 16
  - id: Medium
    days: 5
    hours: 40
    base_effort_hours: 40
    complexity_multiplier: 1.5
    risk_factor: 1.1
    skill_sensitivity: 0.5
`

const costsYML = `
resources:
  - id: r-alice
    name: Alice
    per_hour_cost: 55.5
    level: 3
  - name: Bob
    per_hour_cost: 40
`

const membersYML = `
members:
  - name: Alice
    tier_level: 3
    over_allocation_threshold: 1.1
  - name: Bob
    active: false
`

const allocationsYML = `
allocations:
  - id: a1
    resource: Alice
    category: project
    complexity: MEDIUM
    task_name: Development
    allocation_percentage: 0.6
    plan:
      task_start: 2024-01-01
      task_end: 2024-01-31
      cost_project: 3663
  - id: a2
    resource: Bob
    category: Support
    template: Patch cycle
    workload: 0.5
`

const calendarYML = `
holidays:
  - name: New Year
    date: 2024-01-01
  - name: Winter break
    date: 2024-12-24
    end_date: 2024-12-26
    type: collective
leaves:
  - member: Alice
    start_date: 2024-01-08
    end_date: 2024-01-09
  - member: Alice
    start_date: 2024-01-15
    type: half
`

const templatesYML = `
templates:
  - name: Patch cycle
    category: Maintenance
    estimates:
      low: {hours: 4, days: 1}
      medium: {hours: 8, days: 1}
`

func writeDataDir(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	return dir
}

func fullDataDir(t *testing.T) string {
	return writeDataDir(t, map[string]string{
		ComplexityFile:  complexityYML,
		CostsFile:       costsYML,
		MembersFile:     membersYML,
		AllocationsFile: allocationsYML,
		CalendarFile:    calendarYML,
		TemplatesFile:   templatesYML,
	})
}

func TestLoadValidWorkspace(t *testing.T) {
	snap, err := Load(fullDataDir(t))
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	medium, ok := snap.Settings.Lookup("medium")
	if !ok || medium.BaseEffortHours == nil || *medium.BaseEffortHours != 40 {
		t.Fatalf("medium complexity not loaded: %#v", medium)
	}
	if len(snap.Costs) != 2 || !snap.Costs[0].PerHourCost.Equal(decimal.RequireFromString("55.5")) {
		t.Fatalf("costs = %#v", snap.Costs)
	}

	wantMembers := []capacity.Member{
		{Name: "Alice", TierLevel: 3, MaxCapacity: 1, OverAllocationThreshold: 1.1, MaxHoursPerWeek: 40, Active: true},
		{Name: "Bob", TierLevel: 2, MaxCapacity: 1, MaxHoursPerWeek: 40, Active: false},
	}
	if diff := cmp.Diff(wantMembers, snap.Members); diff != "" {
		t.Fatalf("members mismatch (-want +got):\n%s", diff)
	}

	if len(snap.Allocations) != 2 {
		t.Fatalf("allocations = %d, want 2", len(snap.Allocations))
	}
	a1 := snap.Allocations[0]
	if a1.Category != category.Project || a1.Complexity != "medium" || a1.Weight() != 0.6 {
		t.Fatalf("a1 = %#v", a1)
	}
	if calendar.Key(a1.Plan.TaskStart) != "2024-01-01" || !a1.Plan.CostProject.Equal(decimal.NewFromInt(3663)) {
		t.Fatalf("a1 plan = %#v", a1.Plan)
	}
	if a2, _ := snap.Allocation("a2"); a2.Weight() != 0.5 || a2.Template != "Patch cycle" {
		t.Fatalf("a2 = %#v", a2)
	}

	if len(snap.Holidays) != 2 || snap.Holidays[0].Type != calendar.HolidayNational || snap.Holidays[1].Type != calendar.HolidayCollective {
		t.Fatalf("holidays = %#v", snap.Holidays)
	}
	if len(snap.Leaves) != 2 || snap.Leaves[0].Type != calendar.LeaveFull || snap.Leaves[1].Type != calendar.LeaveHalf {
		t.Fatalf("leaves = %#v", snap.Leaves)
	}

	tmpl, ok := snap.Template("patch CYCLE")
	if !ok || tmpl.Category != category.Maintenance {
		t.Fatalf("template lookup failed: %#v", tmpl)
	}
	if est, ok := tmpl.Estimate("Medium"); !ok || est.Hours != 8 {
		t.Fatalf("template estimate = %#v", est)
	}
}

func TestLoadOptionalFiles(t *testing.T) {
	dir := writeDataDir(t, map[string]string{
		ComplexityFile: complexityYML,
		CostsFile:      costsYML,
		MembersFile:    membersYML,
	})
	snap, err := Load(dir)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(snap.Allocations) != 0 || len(snap.Holidays) != 0 || len(snap.Templates) != 0 {
		t.Fatalf("expected empty optional data, got %#v", snap)
	}
}

func TestLoadMissingRequiredFile(t *testing.T) {
	dir := writeDataDir(t, map[string]string{ComplexityFile: complexityYML})
	_, err := Load(dir)
	if err == nil || !strings.Contains(err.Error(), CostsFile) {
		t.Fatalf("expected missing costs error, got %v", err)
	}
}

func TestLoadAggregatesValidationErrors(t *testing.T) {
	dir := writeDataDir(t, map[string]string{
		ComplexityFile: "complexity:\n  - id: low\n    days: -1\n",
		CostsFile:      "resources:\n  - id: x\n",
		MembersFile:    "members:\n  - name: Alice\n    tier_level: 9\n",
	})
	_, err := Load(dir)
	var vErrs ValidationErrors
	if !errors.As(err, &vErrs) {
		t.Fatalf("expected ValidationErrors, got %v", err)
	}
	fields := make([]string, 0, len(vErrs))
	for _, e := range vErrs {
		fields = append(fields, e.Field)
	}
	want := []string{
		"complexity[0].hours",
		"complexity[0].days",
		"resources[0].per_hour_cost",
		"members[0].tier_level",
	}
	if diff := cmp.Diff(want, fields); diff != "" {
		t.Fatalf("validation fields mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadUnknownTemplateReference(t *testing.T) {
	dir := writeDataDir(t, map[string]string{
		ComplexityFile:  complexityYML,
		CostsFile:       costsYML,
		MembersFile:     membersYML,
		AllocationsFile: allocationsYML,
	})
	_, err := Load(dir)
	if err == nil || !strings.Contains(err.Error(), `unknown template "Patch cycle"`) {
		t.Fatalf("expected unknown template error, got %v", err)
	}
}

func TestParseAllocationsRejectsBadRecords(t *testing.T) {
	yml := `
allocations:
  - id: a1
    resource: ""
    category: Project
    allocation_percentage: 1.5
    plan:
      task_start: 2024-02-01
      task_end: 2024-01-01
  - id: a1
    resource: Bob
    category: Support
    actual:
      task_start: not-a-date
`
	_, err := ParseAllocations([]byte(yml), "allocations.yml")
	var vErrs ValidationErrors
	if !errors.As(err, &vErrs) {
		t.Fatalf("expected ValidationErrors, got %v", err)
	}
	msg := vErrs.Error()
	for _, want := range []string{
		"allocations[0].resource",
		"allocations[0].allocation_percentage",
		"allocations[0].plan.task_end",
		"allocations[1].actual.task_start",
		`duplicate allocation id "a1"`,
	} {
		if !strings.Contains(msg, want) {
			t.Fatalf("expected %q in:\n%s", want, msg)
		}
	}
}

func TestParseCalendarRejectsInvertedLeave(t *testing.T) {
	yml := `
leaves:
  - member: Alice
    start_date: 2024-01-09
    end_date: 2024-01-08
    type: sabbatical
`
	_, _, err := ParseCalendar([]byte(yml), "calendar.yml")
	if err == nil {
		t.Fatalf("expected error")
	}
	if !strings.Contains(err.Error(), "leaves[0].end_date") || !strings.Contains(err.Error(), "leaves[0].type") {
		t.Fatalf("unexpected error %v", err)
	}
}

func TestParseYAMLSyntaxError(t *testing.T) {
	_, err := ParseMembers([]byte("members: [\n"), "members.yml")
	var vErrs ValidationErrors
	if !errors.As(err, &vErrs) || vErrs[0].Field != "yaml" {
		t.Fatalf("expected yaml validation error, got %v", err)
	}
}

func TestEncodeAllocationsPreservesRecords(t *testing.T) {
	in, err := ParseAllocations([]byte(allocationsYML), "allocations.yml")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	data, err := EncodeAllocations(in)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	out, err := ParseAllocations(data, "encoded.yml")
	if err != nil {
		t.Fatalf("reparse: %v\n%s", err, data)
	}
	if diff := cmp.Diff(in, out, cmp.Comparer(func(a, b decimal.Decimal) bool { return a.Equal(b) })); diff != "" {
		t.Fatalf("allocations changed through encode (-in +out):\n%s", diff)
	}
}

func TestCreateAndApplyProposal(t *testing.T) {
	dataDir := fullDataDir(t)
	proposalsRoot := filepath.Join(t.TempDir(), "proposals")

	snap, err := Load(dataDir)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	pct := 0.3
	updated := append(snap.Allocations, capacity.Allocation{
		ID:                   "a3",
		Resource:             "Alice",
		Category:             category.Support,
		Complexity:           "low",
		TaskName:             "Planning",
		AllocationPercentage: &pct,
	})

	meta, err := CreateProposal("cli", dataDir, proposalsRoot, updated, "add a3")
	if err != nil {
		t.Fatalf("create proposal: %v", err)
	}
	if meta.DiffFile == "" {
		t.Fatalf("expected a diff file")
	}
	diff, err := os.ReadFile(filepath.Join(meta.ProposalDir, meta.DiffFile))
	if err != nil {
		t.Fatalf("read diff: %v", err)
	}
	if !strings.Contains(string(diff), "+  - id: a3") {
		t.Fatalf("diff does not add a3:\n%s", diff)
	}

	before, _ := os.ReadFile(filepath.Join(dataDir, AllocationsFile))
	if strings.Contains(string(before), "a3") {
		t.Fatalf("proposal must not modify the data directory")
	}

	if _, err := ApplyProposal(meta.ProposalDir, false); err == nil {
		t.Fatalf("expected confirmation error")
	}
	if _, err := ApplyProposal(meta.ProposalDir, true); err != nil {
		t.Fatalf("apply: %v", err)
	}
	after, err := Load(dataDir)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if _, ok := after.Allocation("a3"); !ok {
		t.Fatalf("a3 not applied")
	}

	if _, err := ApplyProposal(meta.ProposalDir, true); err == nil || !strings.Contains(err.Error(), "changed since proposal") {
		t.Fatalf("expected stale proposal error, got %v", err)
	}
}

func TestCreateProposalRejectsInvalidAllocations(t *testing.T) {
	dataDir := fullDataDir(t)
	bad := 2.0
	_, err := CreateProposal("cli", dataDir, t.TempDir(), []capacity.Allocation{{ID: "x", Resource: "Alice", Category: category.Project, AllocationPercentage: &bad}}, "")
	if err == nil {
		t.Fatalf("expected validation error")
	}
	if _, err := CreateProposal(" ", dataDir, t.TempDir(), nil, ""); err == nil {
		t.Fatalf("expected actor error")
	}
}
