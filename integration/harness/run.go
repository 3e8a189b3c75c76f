package harness

import (
	"bytes"
	"encoding/json"
	"os"
	"os/exec"
	"sort"
	"strings"
	"testing"
)

// Run executes the CLI in the provided working directory.
func Run(t *testing.T, binPath, workDir string, args []string) (string, string, int) {
	t.Helper()
	return run(t, binPath, workDir, args, nil)
}

// RunWithEnv executes the CLI with environment overrides.
func RunWithEnv(t *testing.T, binPath, workDir string, args []string, env map[string]string) (string, string, int) {
	t.Helper()
	return run(t, binPath, workDir, args, env)
}

// MustRun executes the CLI and fails the test on a non-zero exit code. It returns stdout.
func MustRun(t *testing.T, binPath, workDir string, args []string) string {
	t.Helper()
	stdout, stderr, code := run(t, binPath, workDir, args, nil)
	if code != 0 {
		t.Fatalf("resplan %s exit code %d\nstdout:\n%s\nstderr:\n%s", strings.Join(args, " "), code, stdout, stderr)
	}
	return stdout
}

// RunJSON executes the CLI, requires success and decodes stdout into v.
func RunJSON(t *testing.T, binPath, workDir string, args []string, v any) {
	t.Helper()
	stdout := MustRun(t, binPath, workDir, args)
	if err := json.Unmarshal([]byte(stdout), v); err != nil {
		t.Fatalf("decode output of resplan %s: %v\nstdout:\n%s", strings.Join(args, " "), err, stdout)
	}
}

func run(t *testing.T, binPath, workDir string, args []string, env map[string]string) (string, string, int) {
	t.Helper()

	cmd := exec.Command(binPath, args...)
	cmd.Dir = workDir
	cmd.Env = mergeEnv(env)

	var stdout bytes.Buffer
	var stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	exitCode := 0
	if err != nil {
		if ee, ok := err.(*exec.ExitError); ok {
			exitCode = ee.ExitCode()
		} else {
			t.Fatalf("run %s: %v", binPath, err)
		}
	}

	return stdout.String(), stderr.String(), exitCode
}

// mergeEnv layers overrides on the current environment. RESPLAN_* variables from the
// developer's shell are dropped so runs only see the workspace settings file.
func mergeEnv(overrides map[string]string) []string {
	env := make(map[string]string, len(overrides))
	for _, entry := range os.Environ() {
		key, val, _ := strings.Cut(entry, "=")
		if strings.HasPrefix(key, "RESPLAN_") {
			continue
		}
		env[key] = val
	}

	for k, v := range overrides {
		env[k] = v
	}

	merged := make([]string, 0, len(env))
	for k, v := range env {
		merged = append(merged, k+"="+v)
	}
	sort.Strings(merged)
	return merged
}
