package planner

import (
	"fmt"
	"os"
	"time"

	"resplan/internal/artifact"
)

// PlanSuffix names plan reports as <as-of>.plan.json.
const PlanSuffix = ".plan.json"

// WritePlan stores plan under dir, named by its as-of date, and returns the path.
func WritePlan(dir string, plan Plan) (string, error) {
	if err := ValidatePlan(plan); err != nil {
		return "", err
	}
	asOf, err := time.Parse("2006-01-02", plan.AsOf)
	if err != nil {
		return "", fmt.Errorf("plan as_of: %w", err)
	}
	path := artifact.PathForDate(dir, asOf, PlanSuffix)
	if err := artifact.WriteJSON(path, plan); err != nil {
		return "", fmt.Errorf("write plan: %w", err)
	}
	return path, nil
}

func LoadPlan(path string) (Plan, error) {
	var plan Plan
	if err := artifact.ReadJSON(path, &plan); err != nil {
		return Plan{}, fmt.Errorf("load plan: %w", err)
	}
	if err := ValidatePlan(plan); err != nil {
		return Plan{}, err
	}
	return plan, nil
}

// ResolvePlanPath accepts a plan file or a plans directory, in which case the most
// recent plan in it is used.
func ResolvePlanPath(inputPath string) (string, error) {
	if inputPath == "" {
		return "", fmt.Errorf("plan path is required")
	}
	info, err := os.Stat(inputPath)
	if err != nil {
		return "", fmt.Errorf("stat plan path: %w", err)
	}
	if info.IsDir() {
		return artifact.LatestPath(inputPath, PlanSuffix)
	}
	return inputPath, nil
}
