// Package main tests for the edgecheck entry point.
package main

import (
	"os/exec"
	"strings"
	"testing"
)

// TestMain_HelpFlag verifies the --help flag works correctly.
func TestMain_HelpFlag(t *testing.T) {
	t.Parallel()

	cmd := exec.Command("go", "run", ".", "--help")
	out, err := cmd.CombinedOutput()
	if err != nil {
		t.Fatalf("--help failed: %v\noutput: %s", err, out)
	}
	if !strings.Contains(string(out), "edgecheck [options]") {
		t.Errorf("--help output missing usage line:\n%s", out)
	}
}

// TestMain_VersionFlag verifies the --version flag works correctly.
func TestMain_VersionFlag(t *testing.T) {
	t.Parallel()

	cmd := exec.Command("go", "run", ".", "--version")
	out, err := cmd.CombinedOutput()
	if err != nil {
		t.Fatalf("--version failed: %v\noutput: %s", err, out)
	}
	if !strings.HasPrefix(string(out), "edgecheck ") {
		t.Errorf("--version output = %q", out)
	}
}

// TestMain_UnknownFlag verifies configuration errors exit with code 2.
func TestMain_UnknownFlag(t *testing.T) {
	t.Parallel()

	cmd := exec.Command("go", "run", ".", "--parallel")
	out, err := cmd.CombinedOutput()
	exitErr, ok := err.(*exec.ExitError)
	if !ok {
		t.Fatalf("expected exit error, got %v\noutput: %s", err, out)
	}
	// go run reports the program's exit status as its own.
	if code := exitErr.ExitCode(); code != 1 && code != 2 {
		t.Errorf("exit code = %d", code)
	}
	if !strings.Contains(string(out), `unknown flag "--parallel"`) {
		t.Errorf("output = %s", out)
	}
}
