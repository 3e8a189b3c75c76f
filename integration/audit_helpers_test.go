package integration_test

import (
	"testing"

	"resplan/internal/audit"
)

func loadAuditEvents(t *testing.T, dbPath string) []audit.Event {
	t.Helper()
	logger := audit.NewLogger(dbPath)
	defer func() {
		_ = logger.Close()
	}()
	events, err := logger.Events("")
	if err != nil {
		t.Fatalf("read audit events from %s: %v", dbPath, err)
	}
	return events
}

func requireAuditEvents(t *testing.T, dbPath string, want []string) {
	t.Helper()
	types := make(map[string]int)
	for _, ev := range loadAuditEvents(t, dbPath) {
		types[ev.Type]++
	}
	for _, eventType := range want {
		if types[eventType] == 0 {
			t.Fatalf("missing audit event %s in %s", eventType, dbPath)
		}
	}
}

// requireFinishedWithoutError checks that every <name>_finished event carries no error.
func requireFinishedWithoutError(t *testing.T, dbPath, name string) {
	t.Helper()
	found := false
	for _, ev := range loadAuditEvents(t, dbPath) {
		if ev.Type != name+"_finished" {
			continue
		}
		found = true
		if msg, ok := ev.Payload["error"]; ok {
			t.Fatalf("%s finished with error: %v", name, msg)
		}
		if ev.Actor == "" {
			t.Fatalf("%s event %d has no actor", name, ev.ID)
		}
	}
	if !found {
		t.Fatalf("no %s_finished event in %s", name, dbPath)
	}
}
