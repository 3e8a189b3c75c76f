package dataset

import (
	"fmt"
	"strings"

	"resplan/internal/calendar"
	"resplan/internal/capacity"
	"resplan/internal/effort"
)

// Snapshot is the caller-owned data the engines compute over, loaded from a
// workspace data directory.
type Snapshot struct {
	Settings    effort.Settings
	Costs       []effort.CostTier
	Members     []capacity.Member
	Allocations []capacity.Allocation
	Holidays    []calendar.Holiday
	Leaves      []calendar.Leave
	Templates   []effort.TaskTemplate
}

// Template finds a task template by case-insensitive name.
func (s *Snapshot) Template(name string) (*effort.TaskTemplate, bool) {
	key := strings.ToLower(strings.TrimSpace(name))
	if s == nil || key == "" {
		return nil, false
	}
	for i := range s.Templates {
		if strings.ToLower(s.Templates[i].Name) == key {
			return &s.Templates[i], true
		}
	}
	return nil, false
}

// Allocation finds an allocation by id.
func (s *Snapshot) Allocation(id string) (capacity.Allocation, bool) {
	if s == nil {
		return capacity.Allocation{}, false
	}
	for _, a := range s.Allocations {
		if a.ID == id {
			return a, true
		}
	}
	return capacity.Allocation{}, false
}

// ValidationError captures a single field-specific validation issue.
type ValidationError struct {
	File    string
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("%s: %s", e.File, e.Message)
	}
	return fmt.Sprintf("%s: %s: %s", e.File, e.Field, e.Message)
}

// ValidationErrors aggregates multiple validation problems.
type ValidationErrors []ValidationError

func (errs ValidationErrors) Error() string {
	parts := make([]string, 0, len(errs))
	for _, e := range errs {
		parts = append(parts, e.Error())
	}
	return strings.Join(parts, "\n")
}
