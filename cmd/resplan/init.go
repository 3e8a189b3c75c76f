package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"resplan/internal/audit"
	"resplan/internal/config"
	"resplan/internal/dataset"
	"resplan/internal/workspace"
)

func runInit(args []string, workspacePath string) error {
	fs := flag.NewFlagSet("init", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	template := fs.String("template", "minimal", "Workspace template (default: minimal)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *template != "minimal" {
		return fmt.Errorf("unknown template: %s", *template)
	}
	if strings.TrimSpace(workspacePath) == "" {
		return fmt.Errorf("--workspace is required")
	}

	root, err := workspace.ResolveRoot(workspacePath)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return fmt.Errorf("create workspace root: %w", err)
	}
	ws, err := workspace.Resolve(root)
	if err != nil {
		return err
	}

	logger := audit.NewLogger(ws.AuditDBPath)
	defer func() {
		_ = logger.Close()
	}()
	startPayload := map[string]any{
		"workspace": ws.Root,
		"template":  *template,
	}
	logAudit(os.Stderr, logger, config.DefaultActor, "workspace_init_started", startPayload)
	var finishErr error
	defer func() {
		finishPayload := map[string]any{
			"workspace": ws.Root,
			"template":  *template,
		}
		if finishErr != nil {
			finishPayload["error"] = finishErr.Error()
		}
		logAudit(os.Stderr, logger, config.DefaultActor, "workspace_init_finished", finishPayload)
	}()

	if err := ws.EnsureDirs(); err != nil {
		finishErr = err
		return finishErr
	}

	settings, err := config.Default().Encode()
	if err != nil {
		finishErr = err
		return finishErr
	}
	files := []struct {
		path     string
		contents string
	}{
		{ws.SettingsPath, settings},
		{ws.DataFile(dataset.ComplexityFile), minimalComplexityTemplate},
		{ws.DataFile(dataset.CostsFile), minimalCostsTemplate},
		{ws.DataFile(dataset.MembersFile), minimalMembersTemplate},
		{ws.DataFile(dataset.AllocationsFile), minimalAllocationsTemplate},
		{ws.DataFile(dataset.CalendarFile), minimalCalendarTemplate},
		{ws.DataFile(dataset.TemplatesFile), minimalTaskTemplatesTemplate},
	}
	for _, f := range files {
		if err := writeFileIfMissing(f.path, f.contents); err != nil {
			finishErr = err
			return finishErr
		}
	}

	if _, err := dataset.Load(ws.DataDir); err != nil {
		finishErr = fmt.Errorf("validate initialized data: %w", err)
		return finishErr
	}

	fmt.Fprintf(os.Stdout, "Initialized workspace: %s\n", ws.Root)
	fmt.Fprintln(os.Stdout, "Next steps:")
	fmt.Fprintf(os.Stdout, "  %s --workspace %s capacity summary\n", appName, ws.Root)
	fmt.Fprintf(os.Stdout, "  %s --workspace %s cost --resource Alice --complexity medium\n", appName, ws.Root)
	fmt.Fprintf(os.Stdout, "  %s --workspace %s plan recalc\n", appName, ws.Root)
	return nil
}

const minimalComplexityTemplate = `complexity:
  - id: low
    days: 2
    hours: 16
    base_effort_hours: 16
  - id: medium
    days: 5
    hours: 40
    base_effort_hours: 40
    complexity_multiplier: 1.5
    risk_factor: 1.1
    skill_sensitivity: 0.5
  - id: high
    days: 10
    hours: 80
    base_effort_hours: 80
    complexity_multiplier: 2
    risk_factor: 1.2
    skill_sensitivity: 0.6
  - id: sophisticated
    days: 20
    hours: 160
    base_effort_hours: 160
    complexity_multiplier: 2.5
    risk_factor: 1.3
    skill_sensitivity: 0.7
`

const minimalCostsTemplate = `resources:
  - id: res-alice
    name: Alice
    per_hour_cost: 50
    level: 3
  - id: res-bob
    name: Bob
    per_hour_cost: 40
    level: 2
`

const minimalMembersTemplate = `members:
  - name: Alice
    tier_level: 3
  - name: Bob
    tier_level: 2
    max_hours_per_week: 32
`

const minimalAllocationsTemplate = `allocations: []
`

const minimalCalendarTemplate = `holidays:
  - name: New Year
    date: 2025-01-01
leaves: []
`

const minimalTaskTemplatesTemplate = `templates:
  - name: Patch cycle
    category: Maintenance
    estimates:
      low: {hours: 4, days: 1}
      medium: {hours: 8, days: 1}
`
