package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"resplan/internal/capacity"
	"resplan/internal/dataset"
	"resplan/internal/service"
)

func runAllocation(args []string, workspacePath string) error {
	return subcommand("allocation", args, map[string]func([]string, string) error{
		"validate": runAllocationValidate,
		"propose":  runAllocationPropose,
		"apply":    runAllocationApply,
	}, workspacePath)
}

func bindRequestFlags(fs *flag.FlagSet, in *service.ValidateInput) {
	fs.StringVar(&in.ID, "id", "", "Allocation id; set when editing an existing allocation")
	fs.StringVar(&in.Resource, "resource", "", "Resource name")
	fs.StringVar(&in.Category, "category", "Project", "Project, Support or Maintenance")
	fs.StringVar(&in.Complexity, "complexity", "", "Complexity level")
	fs.Float64Var(&in.AllocationPercentage, "allocation", 0, "Share of capacity, 0.1-1.0")
	fs.StringVar(&in.StartDate, "start", "", "Planned start date (YYYY-MM-DD)")
	fs.StringVar(&in.EndDate, "end", "", "Planned end date (YYYY-MM-DD)")
}

func runAllocationValidate(args []string, workspacePath string) error {
	s, err := openSession(workspacePath)
	if err != nil {
		return err
	}
	fs := flag.NewFlagSet("allocation validate", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	var in service.ValidateInput
	bindRequestFlags(fs, &in)
	format := fs.String("format", "json", "Output format: json or text")
	bindConfigFlags(fs, &s.cfg)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := checkFormat(*format); err != nil {
		return err
	}

	finish := s.begin("allocation_validate", map[string]any{
		"resource":   in.Resource,
		"allocation": in.AllocationPercentage,
		"strict":     s.cfg.Strict,
	})
	svc, err := s.service()
	if err != nil {
		finish(nil, err)
		return err
	}
	res, err := svc.Validate(in)
	if err != nil {
		finish(nil, err)
		return err
	}
	finish(map[string]any{"valid": res.Valid, "projected": res.ProjectedUtilization, "errors": len(res.Errors), "warnings": len(res.Warnings)}, nil)

	if *format == "text" {
		printIssues(res)
	} else if err := printJSON(res); err != nil {
		return err
	}
	if !res.Valid {
		return fmt.Errorf("allocation rejected: %s", issueMessages(res.Errors))
	}
	return nil
}

func runAllocationPropose(args []string, workspacePath string) error {
	s, err := openSession(workspacePath)
	if err != nil {
		return err
	}
	fs := flag.NewFlagSet("allocation propose", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	var in service.ValidateInput
	bindRequestFlags(fs, &in)
	taskName := fs.String("task-name", "Planning", "Lifecycle phase of the task")
	template := fs.String("template", "", "Task template name")
	note := fs.String("note", "", "Optional proposal note")
	proposalsDir := fs.String("proposals-dir", "", "Directory to write proposals (default: <workspace>/artifacts/proposals)")
	bindConfigFlags(fs, &s.cfg)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if in.Resource == "" {
		return fmt.Errorf("--resource is required")
	}
	dir, err := s.resolveDir("proposals-dir", *proposalsDir, s.ws.ProposalsDir)
	if err != nil {
		return err
	}

	finish := s.begin("allocation_propose", map[string]any{
		"resource":      in.Resource,
		"allocation":    in.AllocationPercentage,
		"proposals_dir": dir,
	})
	meta, res, err := proposeAllocation(s, in, *taskName, *template, dir, *note)
	if err != nil {
		finish(map[string]any{"resource": in.Resource}, err)
		return err
	}
	finish(map[string]any{
		"proposal_dir": meta.ProposalDir,
		"proposal_id":  meta.ID,
		"projected":    res.ProjectedUtilization,
		"warnings":     len(res.Warnings),
	}, nil)

	for _, w := range res.Warnings {
		fmt.Fprintf(os.Stderr, "warning: %s\n", w.Message)
	}
	for _, r := range res.Recommendations {
		fmt.Fprintf(os.Stderr, "recommendation: %s\n", r.Message)
	}
	fmt.Fprintf(os.Stdout, "Proposal created: %s\n", meta.ProposalDir)
	if meta.DiffFile != "" {
		fmt.Fprintf(os.Stdout, "Diff: %s\n", filepath.Join(meta.ProposalDir, meta.DiffFile))
	}
	return nil
}

// proposeAllocation validates the request and, when allowed, writes a proposal with
// the allocation added, or replaced when its id already exists.
func proposeAllocation(s *session, in service.ValidateInput, taskName, template, dir, note string) (*dataset.ProposalMetadata, capacity.Validation, error) {
	svc, err := s.service()
	if err != nil {
		return nil, capacity.Validation{}, err
	}
	res, err := svc.Validate(in)
	if err != nil {
		return nil, res, err
	}
	if !res.Valid {
		return nil, res, fmt.Errorf("allocation rejected: %s", issueMessages(res.Errors))
	}
	req, err := svc.Request(in)
	if err != nil {
		return nil, res, err
	}
	snap := svc.Snapshot()
	if template != "" {
		if _, ok := snap.Template(template); !ok {
			return nil, res, fmt.Errorf("template %q not found", template)
		}
	}

	pct := req.AllocationPercentage
	alloc := capacity.Allocation{
		ID:                   req.ID,
		Resource:             req.Resource,
		Category:             req.Category,
		Complexity:           req.Complexity,
		TaskName:             taskName,
		Template:             template,
		AllocationPercentage: &pct,
		Plan:                 capacity.PlanRecord{TaskStart: req.Start, TaskEnd: req.End},
	}
	if alloc.ID == "" {
		alloc.ID = uuid.NewString()
	}

	allocations := make([]capacity.Allocation, 0, len(snap.Allocations)+1)
	replaced := false
	for _, existing := range snap.Allocations {
		if existing.ID == alloc.ID {
			alloc.Actual = existing.Actual
			allocations = append(allocations, alloc)
			replaced = true
			continue
		}
		allocations = append(allocations, existing)
	}
	if !replaced {
		allocations = append(allocations, alloc)
	}

	meta, err := dataset.CreateProposal(s.cfg.Actor, s.ws.DataDir, dir, allocations, note)
	if err != nil {
		return nil, res, err
	}
	return meta, res, nil
}

func runAllocationApply(args []string, workspacePath string) error {
	s, err := openSession(workspacePath)
	if err != nil {
		return err
	}
	fs := flag.NewFlagSet("allocation apply", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	proposalPath := fs.String("proposal", "", "Path to proposal directory")
	confirm := fs.Bool("i-understand", false, "Explicitly confirm applying allocation changes")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *proposalPath == "" {
		return fmt.Errorf("--proposal path is required")
	}
	if !*confirm {
		return fmt.Errorf("--i-understand flag is required to apply")
	}
	absProposalPath, err := s.ws.ResolvePath(*proposalPath)
	if err != nil {
		return fmt.Errorf("resolve --proposal: %w", err)
	}

	finish := s.begin("allocation_apply", map[string]any{"proposal": absProposalPath})
	meta, err := dataset.ApplyProposal(absProposalPath, *confirm)
	if err != nil {
		finish(map[string]any{"proposal": absProposalPath}, err)
		return err
	}
	finish(map[string]any{"proposal_id": meta.ID, "data_dir": meta.DataDir, "proposed_by": meta.Actor}, nil)

	fmt.Fprintf(os.Stdout, "Applied proposal %s to %s\n", meta.ID, meta.DataDir)
	return nil
}

func printIssues(res capacity.Validation) {
	status := "valid"
	if !res.Valid {
		status = "rejected"
	}
	fmt.Fprintf(os.Stdout, "%s: projected utilization %.0f%% (threshold %.0f%%)\n",
		status, res.ProjectedUtilization*100, res.Threshold*100)
	groups := []struct {
		label  string
		issues []capacity.Issue
	}{
		{"error", res.Errors},
		{"warning", res.Warnings},
		{"recommendation", res.Recommendations},
	}
	for _, g := range groups {
		for _, issue := range g.issues {
			fmt.Fprintf(os.Stdout, "  %s [%s]: %s\n", g.label, issue.Code, issue.Message)
		}
	}
	for _, c := range res.Conflicts {
		fmt.Fprintf(os.Stdout, "  conflict: %s %s at %.0f%%\n", c.AllocationID, c.TaskName, c.AllocationPercentage*100)
	}
}

func issueMessages(issues []capacity.Issue) string {
	msgs := make([]string, 0, len(issues))
	for _, issue := range issues {
		msgs = append(msgs, issue.Message)
	}
	return strings.Join(msgs, "; ")
}
