package main

import (
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"os"

	"resplan/internal/calendar"
	"resplan/internal/report"
	"resplan/internal/service"
)

func runReport(args []string, workspacePath string) error {
	return subcommand("report", args, map[string]func([]string, string) error{
		"capacity": runReportCapacity,
	}, workspacePath)
}

func runReportCapacity(args []string, workspacePath string) error {
	s, err := openSession(workspacePath)
	if err != nil {
		return err
	}
	flags := flag.NewFlagSet("report capacity", flag.ContinueOnError)
	flags.SetOutput(os.Stderr)
	asOfStr := flags.String("as-of", "", "As-of date (YYYY-MM-DD, default: today UTC)")
	from := flags.String("from", "", "Utilization window start (YYYY-MM-DD)")
	to := flags.String("to", "", "Utilization window end (YYYY-MM-DD)")
	outDir := flags.String("out-dir", "", "Directory to write reports (default: <workspace>/artifacts/reports)")
	bindConfigFlags(flags, &s.cfg)
	if err := flags.Parse(args); err != nil {
		return err
	}
	asOf, err := parseAsOf(*asOfStr)
	if err != nil {
		return err
	}
	window, err := service.Window(*from, *to)
	if err != nil {
		return err
	}
	dir, err := s.resolveDir("out-dir", *outDir, s.ws.ReportsDir)
	if err != nil {
		return err
	}

	finish := s.begin("report_capacity", map[string]any{"as_of": calendar.Key(asOf), "out_dir": dir})
	svc, err := s.service()
	if err != nil {
		finish(nil, err)
		return err
	}
	rep, err := svc.Overview(asOf, window)
	if err != nil {
		finish(nil, err)
		return err
	}

	previous := ""
	if latest, err := report.LatestCapacityPath(dir); err == nil {
		prev, err := report.LoadCapacity(latest)
		if err != nil {
			finish(nil, err)
			return err
		}
		if prev.AsOf != rep.AsOf {
			rep.Changes = report.DiffStatus(*prev, rep)
			previous = latest
		}
	} else if !errors.Is(err, fs.ErrNotExist) {
		finish(nil, err)
		return err
	}

	path, err := report.WriteCapacity(dir, rep)
	if err != nil {
		finish(nil, err)
		return err
	}
	finish(map[string]any{
		"report_path":    path,
		"previous":       previous,
		"changes":        len(rep.Changes),
		"over_allocated": len(rep.OverAllocations),
	}, nil)

	fmt.Fprintf(os.Stdout, "Wrote capacity report: %s\n", path)
	fmt.Fprintf(os.Stdout, "%s, %s over-allocated\n", pluralize(len(rep.Summary), "member"), pluralize(len(rep.OverAllocations), "member"))
	for _, c := range rep.Changes {
		old := string(c.OldStatus)
		if old == "" {
			old = "new"
		}
		fmt.Fprintf(os.Stdout, "  %s: %s -> %s\n", c.Resource, old, c.NewStatus)
	}
	return nil
}
