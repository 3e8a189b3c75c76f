package report

import (
	"fmt"
	"sort"
	"time"

	"resplan/internal/artifact"
	"resplan/internal/calendar"
	"resplan/internal/capacity"
)

const (
	CapacitySchemaVersion = 1
	CapacitySuffix        = ".capacity.json"
)

// Capacity is a point-in-time view of team capacity.
type Capacity struct {
	SchemaVersion    int                       `json:"schema_version"`
	AsOf             string                    `json:"as_of"`
	DefaultThreshold float64                   `json:"default_threshold"`
	Window           *capacity.DateRange       `json:"window,omitempty"`
	Summary          []capacity.SummaryEntry   `json:"summary"`
	Availability     []capacity.Availability   `json:"availability"`
	OverAllocations  []capacity.OverAllocation `json:"over_allocations"`
	Changes          []StatusChange            `json:"changes,omitempty"`
}

// StatusChange records a resource whose availability status moved between reports.
type StatusChange struct {
	Resource  string          `json:"resource"`
	OldStatus capacity.Status `json:"old_status"`
	NewStatus capacity.Status `json:"new_status"`
}

type Options struct {
	AsOf time.Time
	// Window restricts the utilization columns of the summary to allocations
	// overlapping it. Status, availability and over-allocation stay unrestricted.
	Window *capacity.DateRange
}

// BuildCapacity evaluates every active member of the snapshot.
func BuildCapacity(engine *capacity.Engine, allocations []capacity.Allocation, members []capacity.Member, opts Options) (Capacity, error) {
	if engine == nil {
		return Capacity{}, fmt.Errorf("capacity engine is required")
	}
	if opts.AsOf.IsZero() {
		return Capacity{}, fmt.Errorf("report as_of is required")
	}

	rep := Capacity{
		SchemaVersion:    CapacitySchemaVersion,
		AsOf:             calendar.Key(opts.AsOf),
		DefaultThreshold: engine.DefaultThreshold(),
		Window:           opts.Window,
		Summary:          engine.GetUtilizationSummary(allocations, members),
		Availability:     []capacity.Availability{},
		OverAllocations:  []capacity.OverAllocation{},
	}
	if opts.Window != nil {
		for i := range rep.Summary {
			u := engine.CalculateUtilization(rep.Summary[i].ResourceName, allocations, members, opts.Window)
			rep.Summary[i].CurrentUtilization = u.CurrentUtilization
			rep.Summary[i].UtilizationPercentage = u.UtilizationPercentage
			rep.Summary[i].ActiveAllocations = u.ActiveAllocations
		}
		sort.SliceStable(rep.Summary, func(i, j int) bool {
			if rep.Summary[i].UtilizationPercentage != rep.Summary[j].UtilizationPercentage {
				return rep.Summary[i].UtilizationPercentage > rep.Summary[j].UtilizationPercentage
			}
			return rep.Summary[i].ResourceName < rep.Summary[j].ResourceName
		})
	}

	for _, entry := range rep.Summary {
		rep.Availability = append(rep.Availability, engine.GetResourceAvailability(entry.ResourceName, allocations, members))
		if over := engine.DetectOverAllocation(entry.ResourceName, allocations, members); over.IsOverAllocated {
			rep.OverAllocations = append(rep.OverAllocations, over)
		}
	}
	return rep, nil
}

// DiffStatus lists resources whose availability status differs between two reports,
// ordered by resource name. Resources new in cur are reported with an empty old status.
func DiffStatus(prev, cur Capacity) []StatusChange {
	old := make(map[string]capacity.Status, len(prev.Availability))
	for _, a := range prev.Availability {
		old[a.ResourceName] = a.Status
	}
	var changes []StatusChange
	for _, a := range cur.Availability {
		if before, ok := old[a.ResourceName]; ok && before == a.Status {
			continue
		}
		changes = append(changes, StatusChange{Resource: a.ResourceName, OldStatus: old[a.ResourceName], NewStatus: a.Status})
	}
	sort.SliceStable(changes, func(i, j int) bool {
		return changes[i].Resource < changes[j].Resource
	})
	return changes
}

// WriteCapacity stores the report under dir as <as-of>.capacity.json.
func WriteCapacity(dir string, rep Capacity) (string, error) {
	if rep.AsOf == "" {
		return "", fmt.Errorf("report as_of is required")
	}
	asOf, err := calendar.ParseDate(rep.AsOf)
	if err != nil {
		return "", fmt.Errorf("report as_of: %w", err)
	}
	rep.SchemaVersion = CapacitySchemaVersion
	path := artifact.PathForDate(dir, asOf, CapacitySuffix)
	if err := artifact.WriteJSON(path, rep); err != nil {
		return "", fmt.Errorf("write capacity report: %w", err)
	}
	return path, nil
}

func LoadCapacity(path string) (*Capacity, error) {
	var rep Capacity
	if err := artifact.ReadJSON(path, &rep); err != nil {
		return nil, err
	}
	if rep.SchemaVersion != CapacitySchemaVersion {
		return nil, fmt.Errorf("unsupported capacity report schema_version %d", rep.SchemaVersion)
	}
	if rep.AsOf == "" {
		return nil, fmt.Errorf("capacity report missing as_of")
	}
	return &rep, nil
}

// LatestCapacityPath returns the most recent capacity report in dir.
func LatestCapacityPath(dir string) (string, error) {
	return artifact.LatestPath(dir, CapacitySuffix)
}
