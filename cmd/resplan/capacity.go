package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/dustin/go-humanize"

	"resplan/internal/calendar"
	"resplan/internal/capacity"
	"resplan/internal/service"
)

func runCapacity(args []string, workspacePath string) error {
	return subcommand("capacity", args, map[string]func([]string, string) error{
		"summary":      runCapacitySummary,
		"availability": runCapacityAvailability,
		"check":        runCapacityCheck,
	}, workspacePath)
}

func runCapacitySummary(args []string, workspacePath string) error {
	s, err := openSession(workspacePath)
	if err != nil {
		return err
	}
	fs := flag.NewFlagSet("capacity summary", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	from := fs.String("from", "", "Only count allocations overlapping from this date (YYYY-MM-DD)")
	to := fs.String("to", "", "Only count allocations overlapping up to this date (YYYY-MM-DD)")
	asOfStr := fs.String("as-of", "", "As-of date (YYYY-MM-DD, default: today UTC)")
	format := fs.String("format", "json", "Output format: json or text")
	bindConfigFlags(fs, &s.cfg)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := checkFormat(*format); err != nil {
		return err
	}
	window, err := service.Window(*from, *to)
	if err != nil {
		return err
	}
	asOf, err := parseAsOf(*asOfStr)
	if err != nil {
		return err
	}

	finish := s.begin("capacity_summary", map[string]any{"from": *from, "to": *to, "as_of": calendar.Key(asOf)})
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
	finish(map[string]any{"members": len(rep.Summary), "over_allocated": len(rep.OverAllocations)}, nil)

	if *format == "text" {
		for _, e := range rep.Summary {
			fmt.Fprintf(os.Stdout, "%-20s tier %d  %6s%%  %-20s %-13s %s\n",
				e.ResourceName, e.TierLevel, humanize.FtoaWithDigits(e.UtilizationPercentage, 2),
				e.Status, e.State, pluralize(e.ActiveAllocations, "allocation"))
		}
		return nil
	}
	return printJSON(rep.Summary)
}

func runCapacityAvailability(args []string, workspacePath string) error {
	s, err := openSession(workspacePath)
	if err != nil {
		return err
	}
	fs := flag.NewFlagSet("capacity availability", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	resource := fs.String("resource", "", "Resource name (default: every active member)")
	format := fs.String("format", "json", "Output format: json or text")
	bindConfigFlags(fs, &s.cfg)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := checkFormat(*format); err != nil {
		return err
	}

	finish := s.begin("capacity_availability", map[string]any{"resource": *resource})
	svc, err := s.service()
	if err != nil {
		finish(nil, err)
		return err
	}
	var out []capacity.Availability
	if *resource != "" {
		out = append(out, svc.Resource(*resource, nil).Availability)
	} else {
		today, _ := parseAsOf("")
		rep, err := svc.Overview(today, nil)
		if err != nil {
			finish(nil, err)
			return err
		}
		out = rep.Availability
	}
	finish(map[string]any{"resources": len(out)}, nil)

	if *format == "text" {
		for _, a := range out {
			if a.Error != "" {
				fmt.Fprintf(os.Stdout, "%-20s %s\n", a.ResourceName, a.Error)
				continue
			}
			fmt.Fprintf(os.Stdout, "%-20s %-20s %s%% free (%s of %s used)\n",
				a.ResourceName, a.Status, humanize.FtoaWithDigits(a.AvailablePercentage, 2),
				humanize.FtoaWithDigits(a.CurrentUtilization, 4), humanize.FtoaWithDigits(a.Threshold, 4))
		}
		return nil
	}
	if *resource != "" {
		return printJSON(out[0])
	}
	return printJSON(out)
}

func runCapacityCheck(args []string, workspacePath string) error {
	s, err := openSession(workspacePath)
	if err != nil {
		return err
	}
	fs := flag.NewFlagSet("capacity check", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	resource := fs.String("resource", "", "Resource name (default: every active member)")
	fail := fs.Bool("fail", false, "Exit non-zero when any resource is over-allocated")
	format := fs.String("format", "json", "Output format: json or text")
	bindConfigFlags(fs, &s.cfg)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := checkFormat(*format); err != nil {
		return err
	}

	finish := s.begin("capacity_check", map[string]any{"resource": *resource})
	svc, err := s.service()
	if err != nil {
		finish(nil, err)
		return err
	}
	engine := svc.CapacityEngine()
	snap := svc.Snapshot()
	var names []string
	if *resource != "" {
		names = []string{*resource}
	} else {
		for _, m := range snap.Members {
			if m.Active {
				names = append(names, m.Name)
			}
		}
	}
	results := make([]capacity.OverAllocation, 0, len(names))
	var over []string
	for _, name := range names {
		res := engine.DetectOverAllocation(name, snap.Allocations, snap.Members)
		results = append(results, res)
		if res.IsOverAllocated {
			over = append(over, res.ResourceName)
		}
	}
	finish(map[string]any{"checked": len(results), "over_allocated": over}, nil)

	if *format == "text" {
		for _, r := range results {
			switch {
			case r.Error != "":
				fmt.Fprintf(os.Stdout, "%-20s %s\n", r.ResourceName, r.Error)
			case r.IsOverAllocated:
				fmt.Fprintf(os.Stdout, "%-20s OVER by %s (%s across %s)\n", r.ResourceName,
					humanize.FtoaWithDigits(r.Amount, 4), humanize.FtoaWithDigits(r.CurrentUtilization, 4),
					pluralize(len(r.ConflictingAllocations), "allocation"))
			default:
				fmt.Fprintf(os.Stdout, "%-20s ok (%s of %s)\n", r.ResourceName,
					humanize.FtoaWithDigits(r.CurrentUtilization, 4), humanize.FtoaWithDigits(r.Threshold, 4))
			}
		}
	} else if err := printJSON(results); err != nil {
		return err
	}
	if *fail && len(over) > 0 {
		return fmt.Errorf("over-allocated: %s", strings.Join(over, ", "))
	}
	return nil
}

func pluralize(n int, noun string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s", noun)
	}
	return fmt.Sprintf("%s %ss", humanize.Comma(int64(n)), noun)
}
