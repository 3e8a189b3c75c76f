package service

import (
	"fmt"
	"strings"
	"time"

	"resplan/internal/calendar"
	"resplan/internal/capacity"
	"resplan/internal/category"
	"resplan/internal/config"
	"resplan/internal/dataset"
	"resplan/internal/effort"
	"resplan/internal/planner"
	"resplan/internal/report"
)

// Service binds the engines to one dataset snapshot. It is read-only after New and
// safe for concurrent use.
type Service struct {
	snap     *dataset.Snapshot
	cfg      config.Config
	calendar *calendar.Engine
	effort   *effort.Model
	capacity *capacity.Engine
}

// New builds the engines for snap from cfg.
func New(snap *dataset.Snapshot, cfg config.Config) (*Service, error) {
	if snap == nil {
		return nil, fmt.Errorf("snapshot is required")
	}
	return &Service{
		snap:     snap,
		cfg:      cfg,
		calendar: calendar.NewEngine(snap.Holidays, snap.Leaves, cfg.CalendarOptions()),
		effort:   effort.New(cfg.EffortOptions()),
		capacity: capacity.New(cfg.CapacityOptions()),
	}, nil
}

// Open loads the data directory and builds a Service over it.
func Open(dataDir string, cfg config.Config) (*Service, error) {
	snap, err := dataset.Load(dataDir)
	if err != nil {
		return nil, err
	}
	return New(snap, cfg)
}

func (s *Service) Snapshot() *dataset.Snapshot {
	return s.snap
}

func (s *Service) Config() config.Config {
	return s.cfg
}

func (s *Service) Engines() planner.Engines {
	return planner.Engines{Calendar: s.calendar, Effort: s.effort, Capacity: s.capacity}
}

func (s *Service) CapacityEngine() *capacity.Engine {
	return s.capacity
}

// EndDateInput asks for the planned end of a task starting on StartDate.
type EndDateInput struct {
	StartDate                 string  `json:"start_date"`
	Complexity                string  `json:"complexity"`
	Resource                  string  `json:"resource,omitempty"`
	Category                  string  `json:"category,omitempty"`
	CapacityFactor            float64 `json:"capacity_factor,omitempty"`
	ExcludeCollectiveHolidays bool    `json:"exclude_collective_holidays,omitempty"`
}

type EndDateOutput struct {
	Start         string  `json:"start"`
	End           string  `json:"end"`
	EffortDays    float64 `json:"effort_days"`
	CalendarDays  int     `json:"calendar_days"`
	HalfDayLeaves int     `json:"half_day_leaves"`
	PaddingDays   int     `json:"padding_days"`
	Error         string  `json:"error,omitempty"`
}

// EndDate plans the end date of a task. Unparseable dates are returned as errors
// wrapping calendar.ErrInvalidDate; an unknown complexity is reported in-band.
func (s *Service) EndDate(in EndDateInput) (EndDateOutput, error) {
	start, err := calendar.ParseDate(in.StartDate)
	if err != nil {
		return EndDateOutput{}, fmt.Errorf("start_date: %w", err)
	}
	res, err := s.calendar.PlanEndDate(calendar.PlanRequest{
		Start:                     start,
		Complexity:                in.Complexity,
		Resource:                  in.Resource,
		Category:                  categoryOf(in.Category),
		Settings:                  s.snap.Settings,
		CapacityFactor:            in.CapacityFactor,
		ExcludeCollectiveHolidays: in.ExcludeCollectiveHolidays,
	})
	if err != nil {
		return EndDateOutput{}, err
	}
	return EndDateOutput{
		Start:         calendar.Key(res.Start),
		End:           calendar.Key(res.End),
		EffortDays:    res.EffortDays,
		CalendarDays:  res.CalendarDays,
		HalfDayLeaves: res.HalfDayLeaves,
		PaddingDays:   res.PaddingDays,
		Error:         res.Error,
	}, nil
}

// CostInput asks for the cost of a task. A zero TierLevel takes the member's tier.
type CostInput struct {
	Complexity           string  `json:"complexity"`
	Resource             string  `json:"resource"`
	Category             string  `json:"category,omitempty"`
	TierLevel            int     `json:"tier_level,omitempty"`
	AllocationPercentage float64 `json:"allocation_percentage,omitempty"`
	Template             string  `json:"template,omitempty"`
}

// Cost prices a task against the snapshot's cost tiers.
func (s *Service) Cost(in CostInput) effort.Cost {
	var tmpl *effort.TaskTemplate
	if strings.TrimSpace(in.Template) != "" {
		t, ok := s.snap.Template(in.Template)
		if !ok {
			return effort.Cost{Error: fmt.Sprintf("template %q not found", in.Template)}
		}
		tmpl = t
	}
	return s.effort.ProjectCost(effort.CostRequest{
		Complexity:           in.Complexity,
		Resource:             in.Resource,
		Category:             categoryOf(in.Category),
		TierLevel:            s.tierOf(in.Resource, in.TierLevel),
		AllocationPercentage: in.AllocationPercentage,
		Template:             tmpl,
	}, s.snap.Settings, s.snap.Costs)
}

type EstimateOutput struct {
	Complexity string `json:"complexity"`
	effort.Estimate
	Buffer           float64 `json:"buffer"`
	BufferedDuration int     `json:"buffered_duration"`
}

// Estimate returns the three-point estimate of a complexity level and its nominal days
// padded by buffer. A non-positive buffer takes the configured default.
func (s *Service) Estimate(complexity string, buffer float64) EstimateOutput {
	out := EstimateOutput{
		Complexity: strings.ToLower(strings.TrimSpace(complexity)),
		Estimate:   effort.ThreePointEstimate(complexity, s.snap.Settings),
		Buffer:     buffer,
	}
	if out.Estimate.Error != "" {
		return out
	}
	if out.Buffer <= 0 {
		out.Buffer = s.effort.Buffer()
	}
	out.BufferedDuration = s.effort.BufferedDuration(out.Estimate.Realistic, out.Buffer)
	return out
}

// ValidateInput is a proposed allocation. Strict overrides the configured enforcement
// mode when set.
type ValidateInput struct {
	ID                   string  `json:"id,omitempty"`
	Resource             string  `json:"resource"`
	Category             string  `json:"category,omitempty"`
	Complexity           string  `json:"complexity,omitempty"`
	AllocationPercentage float64 `json:"allocation_percentage"`
	StartDate            string  `json:"start_date,omitempty"`
	EndDate              string  `json:"end_date,omitempty"`
	Strict               *bool   `json:"strict,omitempty"`
}

// Validate checks a proposed allocation against the snapshot's current allocations.
func (s *Service) Validate(in ValidateInput) (capacity.Validation, error) {
	req, err := s.Request(in)
	if err != nil {
		return capacity.Validation{}, err
	}
	strict := s.cfg.Strict
	if in.Strict != nil {
		strict = *in.Strict
	}
	return s.capacity.ValidateAllocation(req, s.snap.Allocations, s.snap.Members, capacity.ValidateOptions{StrictEnforcement: strict}), nil
}

// Request converts the input into a capacity request, parsing its optional dates.
func (s *Service) Request(in ValidateInput) (capacity.Request, error) {
	start, err := optionalDate(in.StartDate)
	if err != nil {
		return capacity.Request{}, fmt.Errorf("start_date: %w", err)
	}
	end, err := optionalDate(in.EndDate)
	if err != nil {
		return capacity.Request{}, fmt.Errorf("end_date: %w", err)
	}
	return capacity.Request{
		ID:                   in.ID,
		Resource:             in.Resource,
		Category:             categoryOf(in.Category),
		Complexity:           in.Complexity,
		AllocationPercentage: in.AllocationPercentage,
		Start:                start,
		End:                  end,
	}, nil
}

// ResourceCapacity is every capacity view of one resource.
type ResourceCapacity struct {
	Utilization    capacity.Utilization    `json:"utilization"`
	Availability   capacity.Availability   `json:"availability"`
	OverAllocation capacity.OverAllocation `json:"over_allocation"`
	State          capacity.State          `json:"state"`
}

// Resource reports the capacity of one resource, optionally restricted to a window for
// utilization. An unknown resource is reported in-band on each view.
func (s *Service) Resource(name string, window *capacity.DateRange) ResourceCapacity {
	allocs, members := s.snap.Allocations, s.snap.Members
	return ResourceCapacity{
		Utilization:    s.capacity.CalculateUtilization(name, allocs, members, window),
		Availability:   s.capacity.GetResourceAvailability(name, allocs, members),
		OverAllocation: s.capacity.DetectOverAllocation(name, allocs, members),
		State:          s.capacity.ResourceState(name, allocs, members),
	}
}

// Overview builds the team capacity report as of asOf.
func (s *Service) Overview(asOf time.Time, window *capacity.DateRange) (report.Capacity, error) {
	return report.BuildCapacity(s.capacity, s.snap.Allocations, s.snap.Members, report.Options{AsOf: asOf, Window: window})
}

// Window parses an optional utilization window. Both bounds empty means no window.
func Window(from, to string) (*capacity.DateRange, error) {
	start, err := optionalDate(from)
	if err != nil {
		return nil, fmt.Errorf("from: %w", err)
	}
	end, err := optionalDate(to)
	if err != nil {
		return nil, fmt.Errorf("to: %w", err)
	}
	dr := capacity.DateRange{Start: start, End: end}
	if dr.IsZero() {
		return nil, nil
	}
	if !start.IsZero() && !end.IsZero() && end.Before(start) {
		return nil, fmt.Errorf("window end %s precedes start %s: %w", to, from, calendar.ErrInvalidDate)
	}
	return &dr, nil
}

func (s *Service) tierOf(resource string, requested int) int {
	if requested != 0 {
		return requested
	}
	if member, ok := capacity.FindMember(s.snap.Members, resource); ok && member.TierLevel != 0 {
		return member.TierLevel
	}
	return capacity.DefaultTierLevel
}

// categoryOf defaults an empty category to project work.
func categoryOf(value string) category.Category {
	if strings.TrimSpace(value) == "" {
		return category.Project
	}
	c, _ := category.Parse(value)
	return c
}

func optionalDate(value string) (time.Time, error) {
	if strings.TrimSpace(value) == "" {
		return time.Time{}, nil
	}
	return calendar.ParseDate(value)
}
