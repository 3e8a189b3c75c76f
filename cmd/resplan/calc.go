package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/dustin/go-humanize"

	"resplan/internal/service"
)

func runEndDate(args []string, workspacePath string) error {
	s, err := openSession(workspacePath)
	if err != nil {
		return err
	}
	fs := flag.NewFlagSet("end-date", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	var in service.EndDateInput
	fs.StringVar(&in.StartDate, "start", "", "Task start date (YYYY-MM-DD)")
	fs.StringVar(&in.Complexity, "complexity", "", "Complexity level")
	fs.StringVar(&in.Resource, "resource", "", "Resource name, for leave lookups")
	fs.StringVar(&in.Category, "category", "Project", "Project, Support or Maintenance")
	fs.BoolVar(&in.ExcludeCollectiveHolidays, "exclude-collective", false, "Do not treat collective holidays as non-working days")
	format := fs.String("format", "json", "Output format: json or text")
	bindConfigFlags(fs, &s.cfg)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := checkFormat(*format); err != nil {
		return err
	}

	finish := s.begin("end_date", map[string]any{"start": in.StartDate, "complexity": in.Complexity, "resource": in.Resource})
	svc, err := s.service()
	if err != nil {
		finish(nil, err)
		return err
	}
	out, err := svc.EndDate(in)
	if err != nil {
		finish(nil, err)
		return err
	}
	finish(map[string]any{"end": out.End, "calendar_days": out.CalendarDays, "result_error": out.Error}, nil)

	if *format == "text" {
		if out.Error != "" {
			return fmt.Errorf("%s", out.Error)
		}
		fmt.Fprintf(os.Stdout, "%s -> %s: %s working days (%s effort days", out.Start, out.End,
			humanize.Comma(int64(out.CalendarDays)), humanize.Ftoa(out.EffortDays))
		if out.PaddingDays > 0 {
			fmt.Fprintf(os.Stdout, ", %s padding for half-day leave", humanize.Comma(int64(out.PaddingDays)))
		}
		fmt.Fprintln(os.Stdout, ")")
		return nil
	}
	return printJSON(out)
}

func runCost(args []string, workspacePath string) error {
	s, err := openSession(workspacePath)
	if err != nil {
		return err
	}
	fs := flag.NewFlagSet("cost", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	var in service.CostInput
	fs.StringVar(&in.Resource, "resource", "", "Resource id or name")
	fs.StringVar(&in.Complexity, "complexity", "", "Complexity level")
	fs.StringVar(&in.Category, "category", "Project", "Project, Support or Maintenance")
	fs.IntVar(&in.TierLevel, "tier", 0, "Tier level 1-5 (default: the member's tier)")
	fs.Float64Var(&in.AllocationPercentage, "allocation", 0, "Share of a workday, 0.1-1.0 (default: full time)")
	fs.StringVar(&in.Template, "template", "", "Task template name")
	format := fs.String("format", "json", "Output format: json or text")
	bindConfigFlags(fs, &s.cfg)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := checkFormat(*format); err != nil {
		return err
	}
	if in.Resource == "" {
		return fmt.Errorf("--resource is required")
	}

	finish := s.begin("cost", map[string]any{"resource": in.Resource, "complexity": in.Complexity, "category": in.Category})
	svc, err := s.service()
	if err != nil {
		finish(nil, err)
		return err
	}
	out := svc.Cost(in)
	finish(map[string]any{"total_cost": out.TotalCost.String(), "effort_hours": out.EffortHours, "result_error": out.Error}, nil)

	if *format == "text" {
		if out.Error != "" {
			return fmt.Errorf("%s", out.Error)
		}
		fmt.Fprintf(os.Stdout, "%s: %s hours over %s days at %s/h = %s\n",
			out.Breakdown.ResourceName,
			humanize.Ftoa(out.EffortHours),
			humanize.Comma(int64(out.DurationDays)),
			humanize.FormatFloat("#,###.##", out.HourlyRate.InexactFloat64()),
			humanize.FormatFloat("#,###.##", out.TotalCost.InexactFloat64()))
		return nil
	}
	return printJSON(out)
}

func runEstimate(args []string, workspacePath string) error {
	s, err := openSession(workspacePath)
	if err != nil {
		return err
	}
	fs := flag.NewFlagSet("estimate", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	complexity := fs.String("complexity", "", "Complexity level")
	buffer := fs.Float64("buffer", 0, "Schedule buffer, e.g. 0.2 for 20% (default from settings)")
	format := fs.String("format", "json", "Output format: json or text")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := checkFormat(*format); err != nil {
		return err
	}
	if *complexity == "" {
		return fmt.Errorf("--complexity is required")
	}

	finish := s.begin("estimate", map[string]any{"complexity": *complexity, "buffer": *buffer})
	svc, err := s.service()
	if err != nil {
		finish(nil, err)
		return err
	}
	out := svc.Estimate(*complexity, *buffer)
	finish(map[string]any{"expected": out.Expected, "buffered_duration": out.BufferedDuration, "result_error": out.Error}, nil)

	if *format == "text" {
		if out.Error != "" {
			return fmt.Errorf("%s", out.Error)
		}
		fmt.Fprintf(os.Stdout, "%s: %d / %s / %d days, expected %d ± %d (68%% %d-%d, 95%% %d-%d); with %s%% buffer %d days\n",
			out.Complexity, out.Optimistic, humanize.Ftoa(out.Realistic), out.Pessimistic,
			out.Expected, out.StandardDeviation,
			out.Confidence68.Low, out.Confidence68.High, out.Confidence95.Low, out.Confidence95.High,
			humanize.Ftoa(out.Buffer*100), out.BufferedDuration)
		return nil
	}
	return printJSON(out)
}
