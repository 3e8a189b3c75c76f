package dataset

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"resplan/internal/calendar"
	"resplan/internal/capacity"
	"resplan/internal/category"
	"resplan/internal/effort"
)

type rawAllocationsFile struct {
	Allocations []rawAllocation `yaml:"allocations"`
}

type rawAllocation struct {
	ID                   string       `yaml:"id"`
	Resource             string       `yaml:"resource"`
	Category             string       `yaml:"category"`
	Complexity           string       `yaml:"complexity,omitempty"`
	TaskName             string       `yaml:"task_name,omitempty"`
	Template             string       `yaml:"template,omitempty"`
	AllocationPercentage *float64     `yaml:"allocation_percentage,omitempty"`
	Workload             *float64     `yaml:"workload,omitempty"`
	Plan                 rawPlan      `yaml:"plan,omitempty"`
	Actual               rawActual    `yaml:"actual,omitempty"`
	Variance             *rawVariance `yaml:"variance,omitempty"`
}

type rawPlan struct {
	TaskStart   string   `yaml:"task_start,omitempty"`
	TaskEnd     string   `yaml:"task_end,omitempty"`
	CostProject *float64 `yaml:"cost_project,omitempty"`
	CostMonthly *float64 `yaml:"cost_monthly,omitempty"`
}

type rawActual struct {
	TaskStart string   `yaml:"task_start,omitempty"`
	TaskEnd   string   `yaml:"task_end,omitempty"`
	Cost      *float64 `yaml:"cost,omitempty"`
}

type rawVariance struct {
	DurationDays   int     `yaml:"duration_days"`
	Cost           float64 `yaml:"cost"`
	CostPercentage float64 `yaml:"cost_percentage"`
}

// ParseAllocations unmarshals and validates the allocation collection.
func ParseAllocations(data []byte, source string) ([]capacity.Allocation, error) {
	var raw rawAllocationsFile
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, yamlError(source, err)
	}
	var errs ValidationErrors
	ids := make(map[string]struct{})
	allocations := make([]capacity.Allocation, 0, len(raw.Allocations))
	for idx, ra := range raw.Allocations {
		path := fmt.Sprintf("allocations[%d]", idx)
		a, allocErrs := validateAllocation(ra, path, source)
		errs = append(errs, allocErrs...)
		if a.ID != "" {
			if _, exists := ids[a.ID]; exists {
				errs = append(errs, ValidationError{File: source, Field: path + ".id", Message: fmt.Sprintf("duplicate allocation id %q", a.ID)})
			}
			ids[a.ID] = struct{}{}
		}
		allocations = append(allocations, a)
	}
	if len(errs) > 0 {
		return nil, errs
	}
	return allocations, nil
}

func validateAllocation(raw rawAllocation, path, source string) (capacity.Allocation, ValidationErrors) {
	var errs ValidationErrors

	if strings.TrimSpace(raw.ID) == "" {
		errs = append(errs, ValidationError{File: source, Field: path + ".id", Message: "id is required"})
	}
	if strings.TrimSpace(raw.Resource) == "" {
		errs = append(errs, ValidationError{File: source, Field: path + ".resource", Message: "resource is required"})
	}
	if strings.TrimSpace(raw.Category) == "" {
		errs = append(errs, ValidationError{File: source, Field: path + ".category", Message: "category is required"})
	}
	cat, _ := category.Parse(raw.Category)

	if raw.AllocationPercentage != nil {
		if v := *raw.AllocationPercentage; v < effort.MinAllocation || v > effort.MaxAllocation {
			errs = append(errs, ValidationError{File: source, Field: path + ".allocation_percentage", Message: "must be between 0.1 and 1.0"})
		}
	}
	if raw.Workload != nil && *raw.Workload <= 0 {
		errs = append(errs, ValidationError{File: source, Field: path + ".workload", Message: "must be positive"})
	}

	planStart, planEnd, planErrs := optionalRange(source, path+".plan", raw.Plan.TaskStart, raw.Plan.TaskEnd)
	errs = append(errs, planErrs...)
	actualStart, actualEnd, actualErrs := optionalRange(source, path+".actual", raw.Actual.TaskStart, raw.Actual.TaskEnd)
	errs = append(errs, actualErrs...)

	a := capacity.Allocation{
		ID:                   strings.TrimSpace(raw.ID),
		Resource:             strings.TrimSpace(raw.Resource),
		Category:             cat,
		Complexity:           strings.ToLower(strings.TrimSpace(raw.Complexity)),
		TaskName:             strings.TrimSpace(raw.TaskName),
		Template:             strings.TrimSpace(raw.Template),
		AllocationPercentage: copyFloat(raw.AllocationPercentage),
		Workload:             copyFloat(raw.Workload),
		Plan: capacity.PlanRecord{
			TaskStart:   planStart,
			TaskEnd:     planEnd,
			CostProject: decimalOf(raw.Plan.CostProject),
			CostMonthly: decimalOf(raw.Plan.CostMonthly),
		},
		Actual: capacity.ActualRecord{
			TaskStart: actualStart,
			TaskEnd:   actualEnd,
			Cost:      decimalOf(raw.Actual.Cost),
		},
	}
	if raw.Variance != nil {
		a.Variance = effort.Variance{
			DurationDays:   raw.Variance.DurationDays,
			Cost:           decimal.NewFromFloat(raw.Variance.Cost),
			CostPercentage: raw.Variance.CostPercentage,
		}
	}
	return a, errs
}

func optionalRange(source, path, startValue, endValue string) (time.Time, time.Time, ValidationErrors) {
	var errs ValidationErrors
	var start, end time.Time
	var err error
	if strings.TrimSpace(startValue) != "" {
		if start, err = calendar.ParseDate(startValue); err != nil {
			errs = append(errs, ValidationError{File: source, Field: path + ".task_start", Message: "must be a YYYY-MM-DD date"})
		}
	}
	if strings.TrimSpace(endValue) != "" {
		if end, err = calendar.ParseDate(endValue); err != nil {
			errs = append(errs, ValidationError{File: source, Field: path + ".task_end", Message: "must be a YYYY-MM-DD date"})
		}
	}
	if !start.IsZero() && !end.IsZero() && end.Before(start) {
		errs = append(errs, ValidationError{File: source, Field: path + ".task_end", Message: "must not precede task_start"})
	}
	return start, end, errs
}

// EncodeAllocations renders allocations in the allocations.yml format.
func EncodeAllocations(allocations []capacity.Allocation) ([]byte, error) {
	out := rawAllocationsFile{Allocations: make([]rawAllocation, 0, len(allocations))}
	for _, a := range allocations {
		ra := rawAllocation{
			ID:                   a.ID,
			Resource:             a.Resource,
			Category:             a.Category.String(),
			Complexity:           a.Complexity,
			TaskName:             a.TaskName,
			Template:             a.Template,
			AllocationPercentage: copyFloat(a.AllocationPercentage),
			Workload:             copyFloat(a.Workload),
			Plan: rawPlan{
				TaskStart:   formatDate(a.Plan.TaskStart),
				TaskEnd:     formatDate(a.Plan.TaskEnd),
				CostProject: floatOf(a.Plan.CostProject),
				CostMonthly: floatOf(a.Plan.CostMonthly),
			},
			Actual: rawActual{
				TaskStart: formatDate(a.Actual.TaskStart),
				TaskEnd:   formatDate(a.Actual.TaskEnd),
				Cost:      floatOf(a.Actual.Cost),
			},
		}
		if a.Variance.DurationDays != 0 || !a.Variance.Cost.IsZero() || a.Variance.CostPercentage != 0 {
			ra.Variance = &rawVariance{
				DurationDays:   a.Variance.DurationDays,
				Cost:           a.Variance.Cost.InexactFloat64(),
				CostPercentage: a.Variance.CostPercentage,
			}
		}
		out.Allocations = append(out.Allocations, ra)
	}

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(out); err != nil {
		return nil, fmt.Errorf("encode allocations: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("encode allocations: %w", err)
	}
	return buf.Bytes(), nil
}

func decimalOf(v *float64) decimal.Decimal {
	if v == nil {
		return decimal.Zero
	}
	return decimal.NewFromFloat(*v)
}

func floatOf(d decimal.Decimal) *float64 {
	if d.IsZero() {
		return nil
	}
	v := d.InexactFloat64()
	return &v
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return calendar.Key(t)
}
