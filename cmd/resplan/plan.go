package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/dustin/go-humanize"

	"resplan/internal/calendar"
	"resplan/internal/dataset"
	"resplan/internal/planner"
)

func runPlan(args []string, workspacePath string) error {
	return subcommand("plan", args, map[string]func([]string, string) error{
		"recalc": runPlanRecalc,
		"show":   runPlanShow,
	}, workspacePath)
}

func runPlanRecalc(args []string, workspacePath string) error {
	s, err := openSession(workspacePath)
	if err != nil {
		return err
	}
	fs := flag.NewFlagSet("plan recalc", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	asOfStr := fs.String("as-of", "", "As-of date (YYYY-MM-DD, default: today UTC)")
	outDir := fs.String("out-dir", "", "Directory to write plans (default: <workspace>/artifacts/plans)")
	excludeCollective := fs.Bool("exclude-collective", false, "Do not treat collective holidays as non-working days")
	includeTerminal := fs.Bool("include-terminal", false, "Also re-plan allocations in a completion phase")
	propose := fs.Bool("propose", false, "Write a proposal updating allocations.yml with the recalculated plans")
	note := fs.String("note", "", "Optional proposal note")
	bindConfigFlags(fs, &s.cfg)
	if err := fs.Parse(args); err != nil {
		return err
	}
	asOf, err := parseAsOf(*asOfStr)
	if err != nil {
		return err
	}
	dir, err := s.resolveDir("out-dir", *outDir, s.ws.PlansDir)
	if err != nil {
		return err
	}

	finish := s.begin("plan_recalc", map[string]any{
		"as_of":              calendar.Key(asOf),
		"out_dir":            dir,
		"exclude_collective": *excludeCollective,
		"include_terminal":   *includeTerminal,
		"propose":            *propose,
	})
	svc, err := s.service()
	if err != nil {
		finish(nil, err)
		return err
	}
	res, err := planner.Recalculate(svc.Snapshot(), svc.Engines(), planner.RecalcOptions{
		AsOf:                      asOf,
		ExcludeCollectiveHolidays: *excludeCollective,
		IncludeTerminal:           *includeTerminal,
	})
	if err != nil {
		finish(nil, err)
		return err
	}
	path, err := planner.WritePlan(dir, res.Plan)
	if err != nil {
		finish(nil, err)
		return err
	}

	finishPayload := map[string]any{
		"plan_path": path,
		"plan_id":   res.Plan.ID,
		"lines":     res.Plan.Totals.Lines,
		"errors":    res.Plan.Totals.Errors,
		"changed":   res.Plan.Totals.Changed,
	}
	var meta *dataset.ProposalMetadata
	if *propose && res.Plan.Totals.Changed > 0 {
		meta, err = dataset.CreateProposal(s.cfg.Actor, s.ws.DataDir, s.ws.ProposalsDir, res.Allocations, proposalNote(*note, res.Plan))
		if err != nil {
			finish(finishPayload, err)
			return err
		}
		finishPayload["proposal_dir"] = meta.ProposalDir
	}
	finish(finishPayload, nil)

	t := res.Plan.Totals
	fmt.Fprintf(os.Stdout, "Wrote plan: %s\n", path)
	fmt.Fprintf(os.Stdout, "%s, %s changed, %s with errors; %s effort hours, total cost %s\n",
		pluralize(t.Lines, "allocation"), humanize.Comma(int64(t.Changed)), humanize.Comma(int64(t.Errors)),
		humanize.FtoaWithDigits(t.EffortHours, 2), humanize.FormatFloat("#,###.##", t.CostProject.InexactFloat64()))
	for _, line := range res.Plan.Lines {
		if line.Error != "" {
			fmt.Fprintf(os.Stderr, "  %s (%s): %s\n", line.AllocationID, line.Resource, line.Error)
		}
	}
	if meta != nil {
		fmt.Fprintf(os.Stdout, "Proposal created: %s\n", meta.ProposalDir)
	} else if *propose {
		fmt.Fprintln(os.Stdout, "No changes to propose")
	}
	return nil
}

func proposalNote(note string, plan planner.Plan) string {
	if strings.TrimSpace(note) != "" {
		return note
	}
	return fmt.Sprintf("plan recalculation %s", plan.ID)
}

func runPlanShow(args []string, workspacePath string) error {
	s, err := openSession(workspacePath)
	if err != nil {
		return err
	}
	fs := flag.NewFlagSet("plan show", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	planArg := fs.String("plan", "", "Plan file or plans directory (default: latest in <workspace>/artifacts/plans)")
	format := fs.String("format", "json", "Output format: json or text")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := checkFormat(*format); err != nil {
		return err
	}
	input, err := s.resolveDir("plan", *planArg, s.ws.PlansDir)
	if err != nil {
		return err
	}
	path, err := planner.ResolvePlanPath(input)
	if err != nil {
		return err
	}
	plan, err := planner.LoadPlan(path)
	if err != nil {
		return err
	}
	if *format == "json" {
		return printJSON(plan)
	}
	fmt.Fprintf(os.Stdout, "%s (as of %s, capacity factor %s)\n", plan.ID, plan.AsOf, humanize.Ftoa(plan.CapacityFactor))
	for _, line := range plan.Lines {
		switch {
		case line.Error != "":
			fmt.Fprintf(os.Stdout, "  %-12s %-16s error: %s\n", line.AllocationID, line.Resource, line.Error)
		case line.Terminal && line.End == "":
			fmt.Fprintf(os.Stdout, "  %-12s %-16s %s\n", line.AllocationID, line.Resource, line.TaskName)
		default:
			fmt.Fprintf(os.Stdout, "  %-12s %-16s %s -> %s  %s h  %s\n", line.AllocationID, line.Resource,
				line.Start, line.End, humanize.FtoaWithDigits(line.EffortHours, 2),
				humanize.FormatFloat("#,###.##", line.CostProject.InexactFloat64()))
		}
	}
	return nil
}
