package dataset

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"resplan/internal/calendar"
	"resplan/internal/capacity"
	"resplan/internal/category"
	"resplan/internal/effort"
)

type rawComplexityFile struct {
	Complexity []rawComplexity `yaml:"complexity"`
}

type rawComplexity struct {
	ID                   string   `yaml:"id"`
	Days                 *float64 `yaml:"days"`
	Hours                *float64 `yaml:"hours"`
	BaseEffortHours      *float64 `yaml:"base_effort_hours"`
	ComplexityMultiplier *float64 `yaml:"complexity_multiplier"`
	RiskFactor           *float64 `yaml:"risk_factor"`
	SkillSensitivity     *float64 `yaml:"skill_sensitivity"`
}

type rawCostsFile struct {
	Resources []rawCost `yaml:"resources"`
}

type rawCost struct {
	ID          string   `yaml:"id"`
	Name        string   `yaml:"name"`
	PerHourCost *float64 `yaml:"per_hour_cost"`
	Level       int      `yaml:"level"`
}

type rawMembersFile struct {
	Members []rawMember `yaml:"members"`
}

type rawMember struct {
	Name                    string   `yaml:"name"`
	TierLevel               *int     `yaml:"tier_level"`
	MaxCapacity             *float64 `yaml:"max_capacity"`
	OverAllocationThreshold *float64 `yaml:"over_allocation_threshold"`
	MaxHoursPerWeek         *float64 `yaml:"max_hours_per_week"`
	Active                  *bool    `yaml:"active"`
}

type rawCalendarFile struct {
	Holidays []rawHoliday `yaml:"holidays"`
	Leaves   []rawLeave   `yaml:"leaves"`
}

type rawHoliday struct {
	Name    string `yaml:"name"`
	Date    string `yaml:"date"`
	EndDate string `yaml:"end_date"`
	Type    string `yaml:"type"`
}

type rawLeave struct {
	Member    string `yaml:"member"`
	StartDate string `yaml:"start_date"`
	EndDate   string `yaml:"end_date"`
	Type      string `yaml:"type"`
}

type rawTemplatesFile struct {
	Templates []rawTemplate `yaml:"templates"`
}

type rawTemplate struct {
	Name      string                         `yaml:"name"`
	Category  string                         `yaml:"category"`
	Estimates map[string]rawTemplateEstimate `yaml:"estimates"`
}

type rawTemplateEstimate struct {
	Hours *float64 `yaml:"hours"`
	Days  *float64 `yaml:"days"`
}

// ParseComplexity unmarshals and validates complexity settings.
func ParseComplexity(data []byte, source string) (effort.Settings, error) {
	var raw rawComplexityFile
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, yamlError(source, err)
	}
	var errs ValidationErrors
	if len(raw.Complexity) == 0 {
		errs = append(errs, ValidationError{File: source, Field: "complexity", Message: "must contain at least one complexity level"})
	}
	settings := make(effort.Settings, len(raw.Complexity))
	for idx, rc := range raw.Complexity {
		path := fmt.Sprintf("complexity[%d]", idx)
		id := strings.ToLower(strings.TrimSpace(rc.ID))
		if id == "" {
			errs = append(errs, ValidationError{File: source, Field: path + ".id", Message: "id is required"})
		} else if _, exists := settings[id]; exists {
			errs = append(errs, ValidationError{File: source, Field: path + ".id", Message: fmt.Sprintf("duplicate complexity id %q", id)})
		}
		if rc.Days == nil {
			errs = append(errs, ValidationError{File: source, Field: path + ".days", Message: "days is required"})
		}
		if rc.Hours == nil {
			errs = append(errs, ValidationError{File: source, Field: path + ".hours", Message: "hours is required"})
		}
		errs = append(errs, nonNegative(source, path+".days", rc.Days)...)
		errs = append(errs, nonNegative(source, path+".hours", rc.Hours)...)
		errs = append(errs, nonNegative(source, path+".base_effort_hours", rc.BaseEffortHours)...)
		errs = append(errs, nonNegative(source, path+".complexity_multiplier", rc.ComplexityMultiplier)...)
		errs = append(errs, nonNegative(source, path+".risk_factor", rc.RiskFactor)...)
		if rc.SkillSensitivity != nil && (*rc.SkillSensitivity < 0 || *rc.SkillSensitivity > 1) {
			errs = append(errs, ValidationError{File: source, Field: path + ".skill_sensitivity", Message: "must be between 0.0 and 1.0"})
		}
		settings[id] = effort.Complexity{
			ID:                   id,
			Days:                 deref(rc.Days),
			Hours:                deref(rc.Hours),
			BaseEffortHours:      copyFloat(rc.BaseEffortHours),
			ComplexityMultiplier: copyFloat(rc.ComplexityMultiplier),
			RiskFactor:           copyFloat(rc.RiskFactor),
			SkillSensitivity:     copyFloat(rc.SkillSensitivity),
		}
	}
	if len(errs) > 0 {
		return nil, errs
	}
	return settings, nil
}

// ParseCosts unmarshals and validates resource cost tiers.
func ParseCosts(data []byte, source string) ([]effort.CostTier, error) {
	var raw rawCostsFile
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, yamlError(source, err)
	}
	var errs ValidationErrors
	ids := make(map[string]struct{})
	costs := make([]effort.CostTier, 0, len(raw.Resources))
	for idx, rc := range raw.Resources {
		path := fmt.Sprintf("resources[%d]", idx)
		id := strings.TrimSpace(rc.ID)
		name := strings.TrimSpace(rc.Name)
		if id == "" && name == "" {
			errs = append(errs, ValidationError{File: source, Field: path, Message: "id or name is required"})
		}
		if id != "" {
			if _, exists := ids[id]; exists {
				errs = append(errs, ValidationError{File: source, Field: path + ".id", Message: fmt.Sprintf("duplicate resource id %q", id)})
			}
			ids[id] = struct{}{}
		}
		if rc.PerHourCost == nil {
			errs = append(errs, ValidationError{File: source, Field: path + ".per_hour_cost", Message: "per_hour_cost is required"})
		} else {
			errs = append(errs, nonNegative(source, path+".per_hour_cost", rc.PerHourCost)...)
		}
		if rc.Level != 0 && (rc.Level < 1 || rc.Level > 5) {
			errs = append(errs, ValidationError{File: source, Field: path + ".level", Message: "must be between 1 and 5"})
		}
		costs = append(costs, effort.CostTier{
			ID:          id,
			Name:        name,
			PerHourCost: decimal.NewFromFloat(deref(rc.PerHourCost)),
			Level:       rc.Level,
		})
	}
	if len(errs) > 0 {
		return nil, errs
	}
	return costs, nil
}

// ParseMembers unmarshals and validates team members, filling in defaults.
func ParseMembers(data []byte, source string) ([]capacity.Member, error) {
	var raw rawMembersFile
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, yamlError(source, err)
	}
	var errs ValidationErrors
	names := make(map[string]struct{})
	members := make([]capacity.Member, 0, len(raw.Members))
	for idx, rm := range raw.Members {
		path := fmt.Sprintf("members[%d]", idx)
		name := strings.TrimSpace(rm.Name)
		if name == "" {
			errs = append(errs, ValidationError{File: source, Field: path + ".name", Message: "name is required"})
		} else {
			key := strings.ToLower(name)
			if _, exists := names[key]; exists {
				errs = append(errs, ValidationError{File: source, Field: path + ".name", Message: fmt.Sprintf("duplicate member %q", name)})
			}
			names[key] = struct{}{}
		}

		m := capacity.Member{
			Name:            name,
			TierLevel:       capacity.DefaultTierLevel,
			MaxCapacity:     capacity.DefaultMaxCapacity,
			MaxHoursPerWeek: capacity.DefaultMaxHoursPerWeek,
			Active:          true,
		}
		if rm.TierLevel != nil {
			if *rm.TierLevel < 1 || *rm.TierLevel > 5 {
				errs = append(errs, ValidationError{File: source, Field: path + ".tier_level", Message: "must be between 1 and 5"})
			}
			m.TierLevel = *rm.TierLevel
		}
		if rm.MaxCapacity != nil {
			if *rm.MaxCapacity <= 0 {
				errs = append(errs, ValidationError{File: source, Field: path + ".max_capacity", Message: "must be positive"})
			}
			m.MaxCapacity = *rm.MaxCapacity
		}
		if rm.OverAllocationThreshold != nil {
			if *rm.OverAllocationThreshold <= 0 {
				errs = append(errs, ValidationError{File: source, Field: path + ".over_allocation_threshold", Message: "must be positive"})
			}
			m.OverAllocationThreshold = *rm.OverAllocationThreshold
		}
		if rm.MaxHoursPerWeek != nil {
			if *rm.MaxHoursPerWeek <= 0 {
				errs = append(errs, ValidationError{File: source, Field: path + ".max_hours_per_week", Message: "must be positive"})
			}
			m.MaxHoursPerWeek = *rm.MaxHoursPerWeek
		}
		if rm.Active != nil {
			m.Active = *rm.Active
		}
		members = append(members, m)
	}
	if len(errs) > 0 {
		return nil, errs
	}
	return members, nil
}

// ParseCalendar unmarshals and validates holidays and leave records.
func ParseCalendar(data []byte, source string) ([]calendar.Holiday, []calendar.Leave, error) {
	var raw rawCalendarFile
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, nil, yamlError(source, err)
	}
	var errs ValidationErrors
	holidays := make([]calendar.Holiday, 0, len(raw.Holidays))
	for idx, rh := range raw.Holidays {
		path := fmt.Sprintf("holidays[%d]", idx)
		start, end, rangeErrs := parseRange(source, path, "date", rh.Date, rh.EndDate)
		errs = append(errs, rangeErrs...)
		ht := calendar.HolidayType(strings.ToLower(strings.TrimSpace(rh.Type)))
		switch ht {
		case "":
			ht = calendar.HolidayNational
		case calendar.HolidayNational, calendar.HolidayCollective:
		default:
			errs = append(errs, ValidationError{File: source, Field: path + ".type", Message: fmt.Sprintf("invalid holiday type %q (expected national or collective)", rh.Type)})
		}
		holidays = append(holidays, calendar.Holiday{Name: strings.TrimSpace(rh.Name), Date: start, End: end, Type: ht})
	}

	leaves := make([]calendar.Leave, 0, len(raw.Leaves))
	for idx, rl := range raw.Leaves {
		path := fmt.Sprintf("leaves[%d]", idx)
		if strings.TrimSpace(rl.Member) == "" {
			errs = append(errs, ValidationError{File: source, Field: path + ".member", Message: "member is required"})
		}
		start, end, rangeErrs := parseRange(source, path, "start_date", rl.StartDate, rl.EndDate)
		errs = append(errs, rangeErrs...)
		lt := calendar.LeaveType(strings.ToLower(strings.TrimSpace(rl.Type)))
		switch lt {
		case "":
			lt = calendar.LeaveFull
		case calendar.LeaveFull, calendar.LeaveHalf:
		default:
			errs = append(errs, ValidationError{File: source, Field: path + ".type", Message: fmt.Sprintf("invalid leave type %q (expected full or half)", rl.Type)})
		}
		leaves = append(leaves, calendar.Leave{Member: strings.TrimSpace(rl.Member), Start: start, End: end, Type: lt})
	}
	if len(errs) > 0 {
		return nil, nil, errs
	}
	return holidays, leaves, nil
}

// ParseTemplates unmarshals and validates task templates.
func ParseTemplates(data []byte, source string) ([]effort.TaskTemplate, error) {
	var raw rawTemplatesFile
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, yamlError(source, err)
	}
	var errs ValidationErrors
	names := make(map[string]struct{})
	templates := make([]effort.TaskTemplate, 0, len(raw.Templates))
	for idx, rt := range raw.Templates {
		path := fmt.Sprintf("templates[%d]", idx)
		name := strings.TrimSpace(rt.Name)
		if name == "" {
			errs = append(errs, ValidationError{File: source, Field: path + ".name", Message: "name is required"})
		} else {
			key := strings.ToLower(name)
			if _, exists := names[key]; exists {
				errs = append(errs, ValidationError{File: source, Field: path + ".name", Message: fmt.Sprintf("duplicate template %q", name)})
			}
			names[key] = struct{}{}
		}
		cat, ok := category.Parse(rt.Category)
		if !ok {
			errs = append(errs, ValidationError{File: source, Field: path + ".category", Message: fmt.Sprintf("invalid category %q", rt.Category)})
		}
		if len(rt.Estimates) == 0 {
			errs = append(errs, ValidationError{File: source, Field: path + ".estimates", Message: "must contain at least one estimate"})
		}
		estimates := make(map[string]effort.TemplateEstimate, len(rt.Estimates))
		for complexity, est := range rt.Estimates {
			estPath := fmt.Sprintf("%s.estimates.%s", path, complexity)
			if est.Hours == nil {
				errs = append(errs, ValidationError{File: source, Field: estPath + ".hours", Message: "hours is required"})
			}
			errs = append(errs, nonNegative(source, estPath+".hours", est.Hours)...)
			errs = append(errs, nonNegative(source, estPath+".days", est.Days)...)
			estimates[strings.ToLower(strings.TrimSpace(complexity))] = effort.TemplateEstimate{Hours: deref(est.Hours), Days: deref(est.Days)}
		}
		templates = append(templates, effort.TaskTemplate{Name: name, Category: cat, Estimates: estimates})
	}
	if len(errs) > 0 {
		return nil, sortErrors(errs)
	}
	return templates, nil
}

func parseRange(source, path, startField, startValue, endValue string) (time.Time, time.Time, ValidationErrors) {
	var errs ValidationErrors
	start, err := calendar.ParseDate(startValue)
	if err != nil {
		errs = append(errs, ValidationError{File: source, Field: path + "." + startField, Message: "must be a YYYY-MM-DD date"})
	}
	var end time.Time
	if strings.TrimSpace(endValue) != "" {
		end, err = calendar.ParseDate(endValue)
		if err != nil {
			errs = append(errs, ValidationError{File: source, Field: path + ".end_date", Message: "must be a YYYY-MM-DD date"})
		} else if !start.IsZero() && end.Before(start) {
			errs = append(errs, ValidationError{File: source, Field: path + ".end_date", Message: "must not precede " + startField})
		}
	}
	return start, end, errs
}

// sortErrors orders problems found while ranging over maps.
func sortErrors(errs ValidationErrors) ValidationErrors {
	sort.SliceStable(errs, func(i, j int) bool {
		return errs[i].Field < errs[j].Field
	})
	return errs
}

func yamlError(source string, err error) ValidationErrors {
	return ValidationErrors{{
		File:    source,
		Field:   "yaml",
		Message: err.Error(),
	}}
}

func nonNegative(source, field string, v *float64) ValidationErrors {
	if v != nil && *v < 0 {
		return ValidationErrors{{File: source, Field: field, Message: "must not be negative"}}
	}
	return nil
}

func deref(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}

func copyFloat(v *float64) *float64 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}
