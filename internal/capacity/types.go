package capacity

import (
	"time"

	"github.com/shopspring/decimal"

	"resplan/internal/category"
	"resplan/internal/effort"
)

const (
	DefaultTierLevel       = 2
	DefaultMaxCapacity     = 1.0
	DefaultMaxHoursPerWeek = 40.0
)

// Member is a team member that allocations are assigned to. Name is the natural key.
type Member struct {
	Name      string `json:"name"`
	TierLevel int    `json:"tier_level"`
	// MaxCapacity is the share of full time the member can carry (1.0 = 100%).
	MaxCapacity float64 `json:"max_capacity"`
	// OverAllocationThreshold of zero means the engine default.
	OverAllocationThreshold float64 `json:"over_allocation_threshold,omitempty"`
	MaxHoursPerWeek         float64 `json:"max_hours_per_week"`
	Active                  bool    `json:"active"`
}

// PlanRecord is the planned schedule and cost of an allocation.
type PlanRecord struct {
	TaskStart   time.Time       `json:"task_start"`
	TaskEnd     time.Time       `json:"task_end"`
	CostProject decimal.Decimal `json:"cost_project"`
	CostMonthly decimal.Decimal `json:"cost_monthly"`
}

// ActualRecord is what really happened.
type ActualRecord struct {
	TaskStart time.Time       `json:"task_start"`
	TaskEnd   time.Time       `json:"task_end"`
	Cost      decimal.Decimal `json:"cost"`
}

// Allocation assigns a resource to a task. The engine reads allocations; it never
// creates or removes them.
type Allocation struct {
	ID         string            `json:"id"`
	Resource   string            `json:"resource"`
	Category   category.Category `json:"category"`
	Complexity string            `json:"complexity"`
	// TaskName is the lifecycle phase. Completion phases are excluded from capacity.
	TaskName             string   `json:"task_name"`
	Template             string   `json:"template,omitempty"`
	AllocationPercentage *float64 `json:"allocation_percentage,omitempty"`
	// Workload is the legacy name of AllocationPercentage.
	Workload *float64        `json:"workload,omitempty"`
	Plan     PlanRecord      `json:"plan"`
	Actual   ActualRecord    `json:"actual"`
	Variance effort.Variance `json:"variance"`
}

// Weight returns the share of the resource taken by the allocation: the allocation
// percentage, else the legacy workload, else full time.
func (a Allocation) Weight() float64 {
	if a.AllocationPercentage != nil {
		return *a.AllocationPercentage
	}
	if a.Workload != nil {
		return *a.Workload
	}
	return 1.0
}

// DateRange restricts capacity sums to allocations overlapping [Start, End]. A zero
// bound is open.
type DateRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// IsZero reports whether both bounds are open.
func (r DateRange) IsZero() bool {
	return r.Start.IsZero() && r.End.IsZero()
}

// Overlaps reports whether an allocation planned over [start, end] intersects r.
// Allocations without dates always overlap.
func (r DateRange) Overlaps(start, end time.Time) bool {
	if !r.End.IsZero() && !start.IsZero() && start.After(r.End) {
		return false
	}
	if !r.Start.IsZero() && !end.IsZero() && end.Before(r.Start) {
		return false
	}
	return true
}

// Conflict is an existing allocation that contributes to an over-allocation.
type Conflict struct {
	AllocationID         string            `json:"allocation_id"`
	TaskName             string            `json:"task_name"`
	Category             category.Category `json:"category"`
	Complexity           string            `json:"complexity"`
	AllocationPercentage float64           `json:"allocation_percentage"`
	Start                time.Time         `json:"start"`
	End                  time.Time         `json:"end"`
}

// Utilization is the committed load of one resource.
type Utilization struct {
	ResourceName          string  `json:"resource_name"`
	CurrentUtilization    float64 `json:"current_utilization"`
	UtilizationPercentage float64 `json:"utilization_percentage"`
	ActiveAllocations     int     `json:"active_allocations"`
	MaxCapacity           float64 `json:"max_capacity"`
	Error                 string  `json:"error,omitempty"`
}

// OverAllocation reports whether a resource is above its threshold.
type OverAllocation struct {
	ResourceName           string     `json:"resource_name"`
	IsOverAllocated        bool       `json:"is_over_allocated"`
	CurrentUtilization     float64    `json:"current_utilization"`
	Threshold              float64    `json:"over_allocation_threshold"`
	Amount                 float64    `json:"over_allocation_amount"`
	ConflictingAllocations []Conflict `json:"conflicting_allocations"`
	Error                  string     `json:"error,omitempty"`
}

type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
	SeverityInfo    Severity = "info"
)

// Issue codes.
const (
	CodeResourceNotFound    = "resource_not_found"
	CodeInvalidPercentage   = "invalid_allocation_percentage"
	CodeInvalidDateRange    = "invalid_date_range"
	CodeOverAllocation      = "over_allocation"
	CodeHighUtilization     = "high_utilization"
	CodeInactiveResource    = "inactive_resource"
	CodeAlternativeResource = "alternative_resources"
)

// Issue is one finding of an allocation validation.
type Issue struct {
	Code     string   `json:"code"`
	Severity Severity `json:"severity"`
	Field    string   `json:"field,omitempty"`
	Message  string   `json:"message"`
}

// Request is a proposed allocation. ID is set when an existing allocation is edited
// so that it is not counted twice.
type Request struct {
	ID                   string            `json:"id,omitempty"`
	Resource             string            `json:"resource"`
	Category             category.Category `json:"category,omitempty"`
	Complexity           string            `json:"complexity,omitempty"`
	AllocationPercentage float64           `json:"allocation_percentage"`
	Start                time.Time         `json:"start"`
	End                  time.Time         `json:"end"`
}

// ValidateOptions controls how over-threshold requests are treated.
type ValidateOptions struct {
	StrictEnforcement bool
}

// Validation is the outcome of ValidateAllocation.
type Validation struct {
	Valid                bool       `json:"is_valid"`
	Errors               []Issue    `json:"errors"`
	Warnings             []Issue    `json:"warnings"`
	Recommendations      []Issue    `json:"recommendations"`
	Conflicts            []Conflict `json:"conflicts"`
	CurrentUtilization   float64    `json:"current_utilization"`
	ProjectedUtilization float64    `json:"projected_utilization"`
	Threshold            float64    `json:"over_allocation_threshold"`
	Alternatives         []string   `json:"alternatives,omitempty"`
}

// Status is the availability bucket of a resource.
type Status string

const (
	StatusAvailable           Status = "available"
	StatusModerateUtilization Status = "moderate-utilization"
	StatusHighUtilization     Status = "high-utilization"
	StatusOverCapacity        Status = "over-capacity"
)

// Availability is the headroom left on a resource.
type Availability struct {
	ResourceName        string  `json:"resource_name"`
	Available           bool    `json:"available"`
	CurrentUtilization  float64 `json:"current_utilization"`
	Threshold           float64 `json:"over_allocation_threshold"`
	AvailableCapacity   float64 `json:"available_capacity"`
	AvailablePercentage float64 `json:"available_percentage"`
	Status              Status  `json:"status"`
	Error               string  `json:"error,omitempty"`
}

// LoadState is the derived workload state of a resource.
type LoadState string

const (
	LoadAvailable    LoadState = "available"
	LoadLimited      LoadState = "limited"
	LoadAtCapacity   LoadState = "at-capacity"
	LoadOverCapacity LoadState = "over-capacity"
)

// State describes how loaded a resource is.
type State struct {
	ResourceName       string    `json:"resource_name"`
	State              LoadState `json:"state"`
	ActiveAllocations  int       `json:"active_allocations"`
	CurrentUtilization float64   `json:"current_utilization"`
	Error              string    `json:"error,omitempty"`
}

// SummaryEntry is one row of the utilization summary.
type SummaryEntry struct {
	ResourceName          string    `json:"resource_name"`
	TierLevel             int       `json:"tier_level"`
	CurrentUtilization    float64   `json:"current_utilization"`
	UtilizationPercentage float64   `json:"utilization_percentage"`
	ActiveAllocations     int       `json:"active_allocations"`
	Threshold             float64   `json:"over_allocation_threshold"`
	IsOverAllocated       bool      `json:"is_over_allocated"`
	Status                Status    `json:"status"`
	State                 LoadState `json:"state"`
}
