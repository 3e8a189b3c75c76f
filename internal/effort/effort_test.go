package effort

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/shopspring/decimal"

	"resplan/internal/calendar"
	"resplan/internal/category"
)

var decimalEqual = cmp.Comparer(func(a, b decimal.Decimal) bool { return a.Equal(b) })

func ptr(v float64) *float64 {
	return &v
}

func testSettings() Settings {
	return Settings{
		"low":           {ID: "low", Days: 2, Hours: 4},
		"medium":        {ID: "medium", Days: 5, Hours: 16, BaseEffortHours: ptr(40), ComplexityMultiplier: ptr(1.5), RiskFactor: ptr(1.1), SkillSensitivity: ptr(0.5)},
		"high":          {ID: "high", Days: 10, Hours: 13.37},
		"sophisticated": {ID: "sophisticated", Days: 20, Hours: 80, BaseEffortHours: ptr(120)},
	}
}

func testCosts() []CostTier {
	return []CostTier{
		{ID: "r-1", Name: "Senior Dev", PerHourCost: decimal.NewFromInt(50), Level: 3},
		{ID: "r-2", Name: "Contractor", PerHourCost: decimal.RequireFromString("72.5")},
	}
}

func TestTierAdjustedEffort(t *testing.T) {
	m := New(Options{})
	tests := []struct {
		tier int
		want float64
	}{
		{tier: 1, want: 79.2},
		{tier: 2, want: 66},
		{tier: 3, want: 59.4},
		{tier: 4, want: 56.1},
		{tier: 5, want: 52.8},
		{tier: 9, want: 66},
	}
	for _, tt := range tests {
		got := m.TierAdjustedEffort("medium", tt.tier, testSettings())
		if got.Error != "" {
			t.Fatalf("tier %d: unexpected error %s", tt.tier, got.Error)
		}
		if got.AdjustedHours != tt.want {
			t.Fatalf("tier %d: adjusted = %v, want %v", tt.tier, got.AdjustedHours, tt.want)
		}
		if got.BaseHours != 40 || got.ComplexityMultiplier != 1.5 || got.RiskMultiplier != 1.1 {
			t.Fatalf("tier %d: unexpected multipliers %#v", tt.tier, got)
		}
	}
}

func TestTierAdjustedEffortDefaultsMultipliers(t *testing.T) {
	got := New(Options{}).TierAdjustedEffort("Sophisticated", 1, testSettings())
	// 120 * 1 * 1 * (1 + 0.4*0.5)
	if got.AdjustedHours != 144 {
		t.Fatalf("adjusted = %v, want 144", got.AdjustedHours)
	}
}

func TestTierAdjustedEffortLegacyPreservesHours(t *testing.T) {
	m := New(Options{})
	for tier := 1; tier <= 5; tier++ {
		got := m.TierAdjustedEffort("high", tier, testSettings())
		if !got.Legacy {
			t.Fatalf("expected legacy path")
		}
		if got.AdjustedHours != 13.37 || got.BaseHours != 13.37 {
			t.Fatalf("tier %d: legacy hours changed: %#v", tier, got)
		}
	}
}

func TestTierAdjustedEffortMonotonicInTier(t *testing.T) {
	m := New(Options{})
	for _, sensitivity := range []float64{0.1, 0.25, 0.5, 0.75, 1} {
		settings := Settings{"x": {BaseEffortHours: ptr(37), ComplexityMultiplier: ptr(1.3), RiskFactor: ptr(1.2), SkillSensitivity: ptr(sensitivity)}}
		prev := m.TierAdjustedEffort("x", 1, settings).AdjustedHours
		for tier := 2; tier <= 5; tier++ {
			cur := m.TierAdjustedEffort("x", tier, settings).AdjustedHours
			if cur > prev {
				t.Fatalf("sensitivity %v: tier %d hours %v exceed tier %d hours %v", sensitivity, tier, cur, tier-1, prev)
			}
			prev = cur
		}
	}
}

func TestTierAdjustedEffortZeroSensitivityIgnoresTier(t *testing.T) {
	m := New(Options{})
	settings := Settings{"x": {BaseEffortHours: ptr(10), SkillSensitivity: ptr(0)}}
	for tier := 1; tier <= 5; tier++ {
		if got := m.TierAdjustedEffort("x", tier, settings).AdjustedHours; got != 10 {
			t.Fatalf("tier %d: adjusted = %v, want 10", tier, got)
		}
	}
}

func TestTierAdjustedEffortCustomTable(t *testing.T) {
	m := New(Options{TierMultipliers: TierTable{1: 2, 2: 1}})
	settings := Settings{"x": {BaseEffortHours: ptr(10), SkillSensitivity: ptr(1)}}
	if got := m.TierAdjustedEffort("x", 1, settings).AdjustedHours; got != 20 {
		t.Fatalf("adjusted = %v, want 20", got)
	}
}

func TestTierAdjustedEffortUnknownComplexity(t *testing.T) {
	got := New(Options{}).TierAdjustedEffort("nope", 2, testSettings())
	if got.Error == "" || got.AdjustedHours != 0 {
		t.Fatalf("expected zero effort with error, got %#v", got)
	}
}

func TestSelectiveEffortDispatch(t *testing.T) {
	m := New(Options{})
	template := &TaskTemplate{
		Name:      "Patch cycle",
		Category:  category.Maintenance,
		Estimates: map[string]TemplateEstimate{"medium": {Hours: 6, Days: 1}},
	}
	tests := []struct {
		name     string
		req      EffortRequest
		strategy string
		hours    float64
	}{
		{name: "project", req: EffortRequest{Category: category.Project, Complexity: "medium", TierLevel: 1}, strategy: StrategyTierAdjusted, hours: 79.2},
		{name: "support", req: EffortRequest{Category: category.Support, Complexity: "medium", TierLevel: 1}, strategy: StrategyFlat, hours: 16},
		{name: "maintenance", req: EffortRequest{Category: category.Maintenance, Complexity: "low", TierLevel: 5}, strategy: StrategyFlat, hours: 4},
		{name: "unknown category", req: EffortRequest{Category: "Research", Complexity: "medium", TierLevel: 1}, strategy: StrategyFlat, hours: 16},
		{name: "templated project", req: EffortRequest{Category: category.Project, Complexity: "medium", TierLevel: 1, Template: template}, strategy: StrategyFlat, hours: 6},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := m.SelectiveEffort(tt.req, testSettings())
			if got.Error != "" {
				t.Fatalf("unexpected error %s", got.Error)
			}
			if got.Strategy != tt.strategy {
				t.Fatalf("strategy = %s, want %s", got.Strategy, tt.strategy)
			}
			if got.AdjustedHours != tt.hours {
				t.Fatalf("hours = %v, want %v", got.AdjustedHours, tt.hours)
			}
		})
	}

	missing := m.SelectiveEffort(EffortRequest{Category: category.Support, Complexity: "low", Template: template}, testSettings())
	if missing.Error == "" {
		t.Fatalf("expected error for missing template estimate")
	}
}

func TestProjectCost(t *testing.T) {
	m := New(Options{})
	got := m.ProjectCost(CostRequest{
		Complexity: "medium",
		Resource:   "senior dev",
		Category:   category.Project,
	}, testSettings(), testCosts())
	if got.Error != "" {
		t.Fatalf("unexpected error %s", got.Error)
	}
	if got.EffortHours != 66 {
		t.Fatalf("effort = %v, want 66", got.EffortHours)
	}
	if !got.TotalCost.Equal(decimal.NewFromInt(3300)) {
		t.Fatalf("total = %s, want 3300", got.TotalCost)
	}
	if got.DurationDays != 9 {
		t.Fatalf("duration = %d, want 9", got.DurationDays)
	}
	if got.Breakdown.TierLevel != DefaultTierLevel || got.Breakdown.ResourceID != "r-1" {
		t.Fatalf("unexpected breakdown %#v", got.Breakdown)
	}

	half := m.ProjectCost(CostRequest{
		Complexity:           "medium",
		Resource:             "r-1",
		Category:             category.Project,
		AllocationPercentage: 0.5,
	}, testSettings(), testCosts())
	if half.DurationDays != 17 {
		t.Fatalf("half-time duration = %d, want 17", half.DurationDays)
	}
	if !half.TotalCost.Equal(got.TotalCost) {
		t.Fatalf("allocation must not change cost: %s vs %s", half.TotalCost, got.TotalCost)
	}

	clamped := m.ProjectCost(CostRequest{
		Complexity:           "low",
		Resource:             "r-1",
		Category:             category.Support,
		AllocationPercentage: 0.01,
	}, testSettings(), testCosts())
	if clamped.Breakdown.AllocationPercentage != MinAllocation || clamped.DurationDays != 5 {
		t.Fatalf("clamped allocation: %#v", clamped)
	}
}

func TestProjectCostRoundsCurrency(t *testing.T) {
	got := New(Options{}).ProjectCost(CostRequest{Complexity: "high", Resource: "contractor", Category: category.Support}, testSettings(), testCosts())
	// 13.37 * 72.5 = 969.325
	if !got.TotalCost.Equal(decimal.NewFromInt(969)) {
		t.Fatalf("total = %s, want 969", got.TotalCost)
	}
}

func TestProjectCostResolvesIDBeforeName(t *testing.T) {
	costs := []CostTier{
		{ID: "r-1", Name: "alice", PerHourCost: decimal.NewFromInt(50)},
		{ID: "alice", Name: "someone", PerHourCost: decimal.NewFromInt(80)},
	}
	got := New(Options{}).ProjectCost(CostRequest{Complexity: "low", Resource: "alice", Category: category.Support}, testSettings(), costs)
	if !got.HourlyRate.Equal(decimal.NewFromInt(80)) {
		t.Fatalf("rate = %s, want 80", got.HourlyRate)
	}
}

func TestProjectCostMissingReferences(t *testing.T) {
	m := New(Options{})
	tests := []CostRequest{
		{Complexity: "medium", Resource: "ghost", Category: category.Project},
		{Complexity: "nope", Resource: "r-1", Category: category.Project},
		{Complexity: "nope", Resource: "r-1", Category: category.Support},
	}
	for _, req := range tests {
		got := m.ProjectCost(req, testSettings(), testCosts())
		if got.Error == "" {
			t.Fatalf("%#v: expected error field", req)
		}
		if !got.TotalCost.IsZero() || got.EffortHours != 0 || got.DurationDays != 0 {
			t.Fatalf("%#v: expected zero cost, got %#v", req, got)
		}
	}
}

func TestSupportCostInvariantUnderTier(t *testing.T) {
	m := New(Options{})
	for _, cat := range []category.Category{category.Support, category.Maintenance} {
		base := m.ProjectCost(CostRequest{Complexity: "medium", Resource: "r-1", Category: cat, TierLevel: 1}, testSettings(), testCosts())
		for tier := 2; tier <= 5; tier++ {
			got := m.ProjectCost(CostRequest{Complexity: "medium", Resource: "r-1", Category: cat, TierLevel: tier}, testSettings(), testCosts())
			if !got.TotalCost.Equal(base.TotalCost) || got.EffortHours != base.EffortHours {
				t.Fatalf("%s tier %d: cost %s hours %v differ from tier 1 %s/%v", cat, tier, got.TotalCost, got.EffortHours, base.TotalCost, base.EffortHours)
			}
		}
	}
}

func TestProjectCostIdempotent(t *testing.T) {
	m := New(Options{})
	req := CostRequest{Complexity: "medium", Resource: "Senior Dev", Category: category.Project, TierLevel: 4, AllocationPercentage: 0.6}
	first := m.ProjectCost(req, testSettings(), testCosts())
	second := m.ProjectCost(req, testSettings(), testCosts())
	if diff := cmp.Diff(first, second, decimalEqual); diff != "" {
		t.Fatalf("ProjectCost not idempotent (-first +second):\n%s", diff)
	}
}

func TestThreePointEstimate(t *testing.T) {
	got := ThreePointEstimate("high", testSettings())
	want := Estimate{
		Optimistic:        7,
		Realistic:         10,
		Pessimistic:       15,
		Expected:          10,
		StandardDeviation: 1,
		Confidence68:      Range{Low: 9, High: 11},
		Confidence95:      Range{Low: 8, High: 12},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("ThreePointEstimate mismatch (-want +got):\n%s", diff)
	}

	if missing := ThreePointEstimate("nope", testSettings()); missing.Error == "" {
		t.Fatalf("expected error for unknown complexity")
	}
}

func TestBufferedDuration(t *testing.T) {
	m := New(Options{})
	if got := m.BufferedDuration(10, 0); got != 12 {
		t.Fatalf("default buffer = %d, want 12", got)
	}
	if got := m.BufferedDuration(10, 0.5); got != 15 {
		t.Fatalf("50%% buffer = %d, want 15", got)
	}
	if got := m.BufferedDuration(0, 0.5); got != 0 {
		t.Fatalf("zero days = %d, want 0", got)
	}
}

func TestMonthlyCost(t *testing.T) {
	jan1 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	tests := []struct {
		end  time.Time
		want string
	}{
		{end: time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC), want: "1000"},
		{end: time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC), want: "3000"},
		{end: jan1, want: "3000"},
		{end: time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC), want: "500"},
		{end: time.Date(2024, 2, 15, 0, 0, 0, 0, time.UTC), want: "1500"},
	}
	for _, tt := range tests {
		got := MonthlyCost(decimal.NewFromInt(3000), jan1, tt.end)
		if !got.Equal(decimal.RequireFromString(tt.want)) {
			t.Fatalf("MonthlyCost(end=%s) = %s, want %s", tt.end.Format(calendar.DateLayout), got, tt.want)
		}
	}
}

func TestComputeVariance(t *testing.T) {
	plan := Span{
		Start: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		End:   time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC),
		Cost:  decimal.NewFromInt(1000),
	}
	actual := Span{
		Start: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		End:   time.Date(2024, 1, 9, 0, 0, 0, 0, time.UTC),
		Cost:  decimal.NewFromInt(1250),
	}
	got := ComputeVariance(plan, actual, nil)
	if got.DurationDays != 2 {
		t.Fatalf("duration variance = %d, want 2", got.DurationDays)
	}
	if !got.Cost.Equal(decimal.NewFromInt(250)) || got.CostPercentage != 25 {
		t.Fatalf("cost variance = %s (%v%%), want 250 (25%%)", got.Cost, got.CostPercentage)
	}

	undated := ComputeVariance(Span{Cost: decimal.Zero}, Span{Cost: decimal.NewFromInt(10)}, nil)
	if undated.DurationDays != 0 || undated.CostPercentage != 0 {
		t.Fatalf("undated variance = %#v", undated)
	}
}
