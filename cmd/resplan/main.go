package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"resplan/internal/audit"
	"resplan/internal/calendar"
	"resplan/internal/config"
	"resplan/internal/service"
	"resplan/internal/workspace"
)

const appName = "resplan"

func main() {
	flag.String("workspace", "", "Path to workspace root")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "%s: resource capacity and effort-cost planning\n\n", appName)
		fmt.Fprintf(os.Stderr, "Usage:\n  %s [command] [flags]\n\n", appName)
		fmt.Fprintln(os.Stderr, "Commands:")
		fmt.Fprintln(os.Stderr, "  init        Initialize a new workspace")
		fmt.Fprintln(os.Stderr, "  end-date    Plan the end date of a task")
		fmt.Fprintln(os.Stderr, "  cost        Estimate the effort and cost of a task")
		fmt.Fprintln(os.Stderr, "  estimate    Three-point estimate of a complexity level")
		fmt.Fprintln(os.Stderr, "  capacity    Inspect team capacity")
		fmt.Fprintln(os.Stderr, "  allocation  Validate, propose and apply allocations")
		fmt.Fprintln(os.Stderr, "  plan        Recalculate and show allocation plans")
		fmt.Fprintln(os.Stderr, "  report      Write capacity reports")
		fmt.Fprintln(os.Stderr, "  serve       Serve the HTTP API")
		fmt.Fprintln(os.Stderr, "  help        Show this help")
		fmt.Fprintln(os.Stderr, "\nFlags:")
		flag.PrintDefaults()
	}

	workspacePath, remaining, err := extractWorkspaceFlag(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	args := remaining
	if len(args) == 0 || args[0] == "help" || args[0] == "-h" || args[0] == "--help" {
		flag.Usage()
		return
	}

	commands := map[string]func([]string, string) error{
		"init":       runInit,
		"end-date":   runEndDate,
		"cost":       runCost,
		"estimate":   runEstimate,
		"capacity":   runCapacity,
		"allocation": runAllocation,
		"plan":       runPlan,
		"report":     runReport,
		"serve":      runServe,
	}
	run, ok := commands[args[0]]
	if !ok {
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", args[0])
		flag.Usage()
		os.Exit(1)
	}
	if err := run(args[1:], workspacePath); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func extractWorkspaceFlag(args []string) (string, []string, error) {
	var workspacePath string
	remaining := make([]string, 0, len(args))
	for i := 0; i < len(args); i++ {
		arg := args[i]
		if arg == "--workspace" {
			if i+1 >= len(args) {
				return "", nil, fmt.Errorf("--workspace requires a value")
			}
			workspacePath = args[i+1]
			i++
			continue
		}
		if strings.HasPrefix(arg, "--workspace=") {
			workspacePath = strings.TrimPrefix(arg, "--workspace=")
			continue
		}
		remaining = append(remaining, arg)
	}
	return workspacePath, remaining, nil
}

// session is the per-command state every workspace command shares.
type session struct {
	ws     *workspace.Workspace
	cfg    config.Config
	logger *audit.Logger
	stderr io.Writer
}

// openSession resolves the workspace and loads its settings. Flags bound with
// bindConfigFlags are applied on top when the flag set is parsed.
func openSession(root string) (*session, error) {
	root = strings.TrimSpace(root)
	if root == "" {
		return nil, fmt.Errorf("--workspace is required")
	}
	ws, err := workspace.Resolve(root)
	if err != nil {
		return nil, err
	}
	if err := ws.EnsureDirs(); err != nil {
		return nil, err
	}
	cfg, err := config.Load(ws.SettingsPath)
	if err != nil {
		return nil, err
	}
	return &session{ws: ws, cfg: cfg, logger: audit.NewLogger(ws.AuditDBPath), stderr: os.Stderr}, nil
}

func (s *session) service() (*service.Service, error) {
	return service.Open(s.ws.DataDir, s.cfg)
}

// begin logs <event>_started and returns a func that logs <event>_finished with the
// payload and the error, if any.
func (s *session) begin(event string, payload map[string]any) func(finish map[string]any, err error) {
	start := map[string]any{"workspace": s.ws.Root}
	for k, v := range payload {
		start[k] = v
	}
	logAudit(s.stderr, s.logger, s.cfg.Actor, event+"_started", start)
	return func(finish map[string]any, err error) {
		if finish == nil {
			finish = map[string]any{}
		}
		if err != nil {
			finish["error"] = err.Error()
		}
		logAudit(s.stderr, s.logger, s.cfg.Actor, event+"_finished", finish)
	}
}

// logAudit writes an audit event; a failure is reported on w and does not fail the
// command.
func logAudit(w io.Writer, logger *audit.Logger, actor, eventType string, payload any) {
	if err := logger.LogEvent(actor, eventType, payload); err != nil {
		fmt.Fprintf(w, "audit log failed: %s: %v\n", eventType, err)
	}
}

func (s *session) resolveDir(flagName, value, fallback string) (string, error) {
	if value == "" {
		return fallback, nil
	}
	resolved, err := s.ws.ResolvePath(value)
	if err != nil {
		return "", fmt.Errorf("resolve --%s: %w", flagName, err)
	}
	return resolved, nil
}

// bindConfigFlags registers the engine tuning flags with the loaded settings as
// defaults, so explicit flags override resplan.env and the environment.
func bindConfigFlags(fs *flag.FlagSet, cfg *config.Config) {
	fs.Float64Var(&cfg.CapacityFactor, "capacity-factor", cfg.CapacityFactor, "Capacity factor in (0, 1] (default from settings or 0.85)")
	fs.Float64Var(&cfg.DefaultThreshold, "threshold", cfg.DefaultThreshold, "Default over-allocation threshold (default from settings or 1.2)")
	fs.Float64Var(&cfg.HighUtilization, "high-utilization", cfg.HighUtilization, "Projected utilization that triggers a recommendation (default 0.8)")
	fs.Float64Var(&cfg.HoursPerDay, "hours-per-day", cfg.HoursPerDay, "Working hours per day (default 8)")
	fs.BoolVar(&cfg.Strict, "strict", cfg.Strict, "Block allocations that exceed the threshold")
}

func parseAsOf(value string) (time.Time, error) {
	if value == "" {
		return calendar.Day(time.Now().UTC()), nil
	}
	asOf, err := calendar.ParseDate(value)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse --as-of: %w", err)
	}
	return asOf, nil
}

func printJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode output: %w", err)
	}
	data = append(data, '\n')
	_, err = os.Stdout.Write(data)
	return err
}

func checkFormat(format string) error {
	switch format {
	case "json", "text":
		return nil
	default:
		return fmt.Errorf("unknown --format %q (want json or text)", format)
	}
}

func writeFileIfMissing(path string, contents string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("stat %s: %w", path, err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("ensure dir for %s: %w", path, err)
	}
	return os.WriteFile(path, []byte(contents), 0o644)
}

func subcommand(name string, args []string, subs map[string]func([]string, string) error, workspacePath string) error {
	if len(args) == 0 || args[0] == "help" || args[0] == "-h" || args[0] == "--help" {
		return fmt.Errorf("%s %s: missing subcommand", appName, name)
	}
	run, ok := subs[args[0]]
	if !ok {
		return fmt.Errorf("%s %s: unknown subcommand %q", appName, name, args[0])
	}
	return run(args[1:], workspacePath)
}
