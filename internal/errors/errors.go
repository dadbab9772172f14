// Package errors provides structured error types and exit codes for edgecheck.
package errors

import (
	"errors"
	"fmt"
)

// Exit codes returned by the edgecheck binary.
const (
	ExitSuccess          = 0 // Every selected case passed
	ExitTestFailure      = 1 // At least one case failed, timed out or crashed; or a runtime error
	ExitConfigError      = 2 // Invalid configuration, suite file or fixture set
	ExitEnvironmentError = 3 // The harness itself cannot run (own executable, work dir, ...)
)

// ErrorKind represents the type of error.
type ErrorKind int

const (
	KindRuntime ErrorKind = iota
	KindConfig
	KindFixture
	KindNotFound
	KindEnvironment
)

// HarnessError is the base error type for edgecheck.
type HarnessError struct {
	Kind    ErrorKind
	Message string
	Case    string // Case ID if applicable
	Cause   error  // Underlying error
}

func (e *HarnessError) Error() string {
	msg := e.Message
	if e.Case != "" {
		msg = fmt.Sprintf("[%s] %s", e.Case, e.Message)
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	return msg
}

func (e *HarnessError) Unwrap() error {
	return e.Cause
}

// ExitCode returns the appropriate exit code for this error.
func (e *HarnessError) ExitCode() int {
	switch e.Kind {
	case KindConfig, KindFixture:
		return ExitConfigError
	case KindEnvironment:
		return ExitEnvironmentError
	default:
		return ExitTestFailure
	}
}

// New creates a new runtime error.
func New(message string) *HarnessError {
	return &HarnessError{
		Kind:    KindRuntime,
		Message: message,
	}
}

// Config creates a new configuration error.
func Config(message string) *HarnessError {
	return &HarnessError{
		Kind:    KindConfig,
		Message: message,
	}
}

// Configf creates a new configuration error with formatting.
func Configf(format string, args ...interface{}) *HarnessError {
	return Config(fmt.Sprintf(format, args...))
}

// Fixture creates an error for a broken suite: a referenced fixture is
// missing or malformed. These abort registration instead of failing one case.
func Fixture(caseID, message string, cause error) *HarnessError {
	return &HarnessError{
		Kind:    KindFixture,
		Case:    caseID,
		Message: message,
		Cause:   cause,
	}
}

// Environment creates a new environment error.
func Environment(message string) *HarnessError {
	return &HarnessError{
		Kind:    KindEnvironment,
		Message: message,
	}
}

// WrapKind wraps an error with additional context and an explicit kind.
func WrapKind(kind ErrorKind, err error, message string) *HarnessError {
	return &HarnessError{
		Kind:    kind,
		Message: message,
		Cause:   err,
	}
}

// NotFound creates a not found error.
func NotFound(what, name string) *HarnessError {
	return &HarnessError{
		Kind:    KindNotFound,
		Message: fmt.Sprintf("%s not found: %s", what, name),
	}
}

// IsKind reports whether any HarnessError in err's chain has the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var he *HarnessError
	for err != nil {
		if !errors.As(err, &he) {
			return false
		}
		if he.Kind == kind {
			return true
		}
		err = he.Cause
	}
	return false
}

// GetExitCode returns the exit code for an error.
func GetExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var he *HarnessError
	if errors.As(err, &he) {
		return he.ExitCode()
	}
	return ExitTestFailure
}
