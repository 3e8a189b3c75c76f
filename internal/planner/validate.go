package planner

import (
	"fmt"
	"strings"
)

func ValidatePlan(plan Plan) error {
	if strings.TrimSpace(plan.ID) == "" {
		return fmt.Errorf("plan id is required")
	}
	if strings.TrimSpace(plan.AsOf) == "" {
		return fmt.Errorf("plan as_of is required")
	}
	seen := make(map[string]struct{}, len(plan.Lines))
	for idx, line := range plan.Lines {
		if err := ValidateLine(line); err != nil {
			return fmt.Errorf("plan line %d: %w", idx, err)
		}
		if _, dup := seen[line.AllocationID]; dup {
			return fmt.Errorf("plan line %d: duplicate allocation_id %q", idx, line.AllocationID)
		}
		seen[line.AllocationID] = struct{}{}
	}
	return nil
}

func ValidateLine(line Line) error {
	if strings.TrimSpace(line.AllocationID) == "" {
		return fmt.Errorf("allocation_id is required")
	}
	if strings.TrimSpace(line.Resource) == "" {
		return fmt.Errorf("resource is required")
	}
	if line.Error != "" {
		return nil
	}
	if line.Start != "" && line.End != "" && line.End < line.Start {
		return fmt.Errorf("end %s precedes start %s", line.End, line.Start)
	}
	if line.CostProject.IsNegative() {
		return fmt.Errorf("cost_project must not be negative")
	}
	return nil
}
