// Package edgecheck provides public constants for CI scripts and tools
// that drive the edgecheck harness.
package edgecheck

// Exit codes returned by the edgecheck CLI.
const (
	// ExitSuccess indicates every selected test passed.
	ExitSuccess = 0

	// ExitTestFailure indicates at least one test failed, timed out or was
	// killed by a signal.
	ExitTestFailure = 1

	// ExitConfigError indicates an invalid configuration, suite file or
	// fixture set. No test was run.
	ExitConfigError = 2

	// ExitEnvError indicates the harness could not run at all (work
	// directory, own executable).
	ExitEnvError = 3
)
