package main

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"resplan/internal/audit"
	"resplan/internal/config"
	"resplan/internal/workspace"
)

func TestBeginLogsStartedAndFinished(t *testing.T) {
	root := t.TempDir()
	logger := audit.NewLogger(filepath.Join(root, "audit", "audit.sqlite"))
	t.Cleanup(func() { _ = logger.Close() })
	var stderr bytes.Buffer
	s := &session{ws: &workspace.Workspace{Root: root}, cfg: config.Default(), logger: logger, stderr: &stderr}

	finish := s.begin("cost", map[string]any{"resource": "Alice"})
	finish(nil, errors.New("complexity not found"))

	events, err := logger.Events("")
	if err != nil {
		t.Fatalf("events: %v", err)
	}
	if len(events) != 2 || events[0].Type != "cost_started" || events[1].Type != "cost_finished" {
		t.Fatalf("events = %#v", events)
	}
	if got, want := events[1].Payload["error"], "complexity not found"; got != want {
		t.Fatalf("finished error = %v, want %q", got, want)
	}
	if events[0].Payload["workspace"] != root || events[0].Actor != config.DefaultActor {
		t.Fatalf("started event = %#v", events[0])
	}
	if stderr.Len() != 0 {
		t.Fatalf("unexpected stderr: %s", stderr.String())
	}
}

func TestBeginReportsAuditFailures(t *testing.T) {
	root := t.TempDir()
	blocker := filepath.Join(root, "not-a-dir")
	if err := os.WriteFile(blocker, []byte("x"), 0o644); err != nil {
		t.Fatalf("write blocker: %v", err)
	}
	logger := audit.NewLogger(filepath.Join(blocker, "audit.sqlite"))
	var stderr bytes.Buffer
	s := &session{ws: &workspace.Workspace{Root: root}, cfg: config.Default(), logger: logger, stderr: &stderr}

	finish := s.begin("plan_recalc", nil)
	finish(map[string]any{"lines": 2}, nil)

	out := stderr.String()
	for _, event := range []string{"plan_recalc_started", "plan_recalc_finished"} {
		if !strings.Contains(out, "audit log failed: "+event) {
			t.Fatalf("stderr missing failure for %s:\n%s", event, out)
		}
	}
}
