package integration_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"resplan/integration/harness"
)

const testAsOf = "2025-01-15"

func TestCLISmoke(t *testing.T) {
	binPath := harness.BuildBinary(t)
	workspace := harness.Workspace(t, "workspace-min")
	runDir := t.TempDir()

	stdout, stderr, code := harness.Run(t, binPath, runDir, []string{"--help"})
	if code != 0 {
		t.Fatalf("resplan --help exit code %d\nstdout:\n%s\nstderr:\n%s", code, stdout, stderr)
	}
	if !strings.Contains(stdout+stderr, "resource capacity and effort-cost planning") {
		t.Fatalf("expected help output to include header\nstdout:\n%s\nstderr:\n%s", stdout, stderr)
	}

	var end struct {
		Start string `json:"start"`
		End   string `json:"end"`
		Error string `json:"error"`
	}
	harness.RunJSON(t, binPath, runDir, []string{
		"end-date",
		"--workspace", workspace,
		"--start", "2025-01-13",
		"--complexity", "medium",
	}, &end)
	if end.Error != "" {
		t.Fatalf("end-date error: %s", end.Error)
	}
	if end.Start != "2025-01-13" || end.End <= end.Start {
		t.Fatalf("end-date = %+v, want an end after 2025-01-13", end)
	}

	var cost struct {
		TotalCost    decimal.Decimal `json:"total_cost"`
		EffortHours  float64         `json:"effort_hours"`
		DurationDays int             `json:"duration_days"`
		Error        string          `json:"error"`
	}
	harness.RunJSON(t, binPath, runDir, []string{
		"cost",
		"--workspace", workspace,
		"--resource", "Alice",
		"--complexity", "medium",
	}, &cost)
	if cost.Error != "" {
		t.Fatalf("cost error: %s", cost.Error)
	}
	if !cost.TotalCost.Equal(decimal.NewFromInt(2970)) || cost.EffortHours != 59.4 {
		t.Fatalf("cost = %s over %v hours, want 2970 over 59.4 hours", cost.TotalCost, cost.EffortHours)
	}

	harness.RunJSON(t, binPath, runDir, []string{
		"cost",
		"--workspace", workspace,
		"--resource", "Nobody",
		"--complexity", "medium",
	}, &cost)
	if cost.Error == "" {
		t.Fatalf("expected an in-band error for an unknown resource")
	}

	var summary []struct {
		ResourceName string `json:"resource_name"`
		Status       string `json:"status"`
	}
	harness.RunJSON(t, binPath, runDir, []string{
		"capacity", "summary",
		"--workspace", workspace,
		"--as-of", testAsOf,
	}, &summary)
	if len(summary) != 2 {
		t.Fatalf("capacity summary has %d entries, want 2", len(summary))
	}

	auditPath := filepath.Join(workspace, "audit", "audit.sqlite")
	if _, err := os.Stat(auditPath); err != nil {
		t.Fatalf("audit db not written at %s: %v", auditPath, err)
	}
	requireAuditEvents(t, auditPath, []string{
		"end_date_started",
		"end_date_finished",
		"cost_started",
		"cost_finished",
		"capacity_summary_started",
		"capacity_summary_finished",
	})
	requireFinishedWithoutError(t, auditPath, "cost")

	entries, err := os.ReadDir(runDir)
	if err != nil {
		t.Fatalf("read run dir: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected nothing written to the working directory, found %d entries", len(entries))
	}

	engineAudit := filepath.Join(harness.RepoRoot(t), "audit", "audit.sqlite")
	if _, err := os.Stat(engineAudit); err == nil {
		t.Fatalf("repo audit db should not exist at %s", engineAudit)
	} else if !os.IsNotExist(err) {
		t.Fatalf("stat repo audit db: %v", err)
	}
}

func TestCLIStrictValidation(t *testing.T) {
	binPath := harness.BuildBinary(t)
	workspace := harness.Workspace(t, "workspace-min")
	runDir := t.TempDir()

	args := []string{
		"allocation", "validate",
		"--workspace", workspace,
		"--resource", "Alice",
		"--allocation", "0.8",
		"--start", "2025-01-13",
		"--end", "2025-01-31",
	}
	stdout, stderr, code := harness.Run(t, binPath, runDir, args)
	if code != 0 {
		t.Fatalf("lenient validate exit code %d\nstdout:\n%s\nstderr:\n%s", code, stdout, stderr)
	}
	if !strings.Contains(stdout, `"is_valid": true`) {
		t.Fatalf("expected a valid result in lenient mode\nstdout:\n%s", stdout)
	}

	stdout, stderr, code = harness.RunWithEnv(t, binPath, runDir, args, map[string]string{"RESPLAN_STRICT": "true"})
	if code == 0 {
		t.Fatalf("expected strict validate to fail\nstdout:\n%s\nstderr:\n%s", stdout, stderr)
	}
	if !strings.Contains(stderr, "allocation rejected") {
		t.Fatalf("expected rejection message\nstderr:\n%s", stderr)
	}

	requireAuditEvents(t, filepath.Join(workspace, "audit", "audit.sqlite"), []string{
		"allocation_validate_started",
		"allocation_validate_finished",
	})
}
