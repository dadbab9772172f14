// Package runner executes conformance cases one at a time, each in its own
// sandboxed child process, and reports the results.
package runner

import (
	"context"
	"os/exec"

	"github.com/AndreyAkinshin/edgecheck/internal/cases"
	"github.com/AndreyAkinshin/edgecheck/internal/logging"
	"github.com/AndreyAkinshin/edgecheck/internal/output"
	"github.com/AndreyAkinshin/edgecheck/internal/sandbox"
)

// Executor runs one child command to a terminal outcome.
// *sandbox.Sandbox implements it.
type Executor interface {
	Run(ctx context.Context, cmd *exec.Cmd) sandbox.Outcome
}

// CommandFunc builds the child command that runs c.
type CommandFunc func(c *cases.Case) *exec.Cmd

// Summary tallies one run.
type Summary struct {
	Total    int
	Passed   int
	Failed   int
	TimedOut int
	Crashed  int
}

// AllPassed reports whether every case passed.
func (s Summary) AllPassed() bool {
	return s.Passed == s.Total
}

// Runner sequences case execution.
type Runner struct {
	exec    Executor
	command CommandFunc
	out     *output.Writer
}

// New creates a Runner.
func New(exec Executor, command CommandFunc, out *output.Writer) *Runner {
	return &Runner{exec: exec, command: command, out: out}
}

// Run executes cases in order and prints one terminal line per case followed
// by the pass-count summary. Cases not started before ctx is cancelled are
// counted as failed without running.
func (r *Runner) Run(ctx context.Context, list []*cases.Case) Summary {
	log := logging.Logger().With("component", "runner")
	log.Debug("running suite", "cases", len(list))

	sum := Summary{Total: len(list)}
	for _, c := range list {
		if ctx.Err() != nil {
			sum.Failed++
			continue
		}

		r.out.TestStart(c.ID())
		outcome := r.exec.Run(ctx, r.command(c))
		log.Debug("case finished", "case", c.ID(), "state", outcome.State, "duration", outcome.Duration)

		switch outcome.State {
		case sandbox.Completed:
			if outcome.Verdict.Passed {
				r.out.TestPassed()
				sum.Passed++
			} else {
				r.out.TestFailed(outcome.Diagnostic)
				sum.Failed++
			}
		case sandbox.TimedOut:
			r.out.TestTimedOut(outcome.Diagnostic)
			sum.TimedOut++
		case sandbox.Crashed:
			r.out.TestSignaled(outcome.Diagnostic)
			sum.Crashed++
		default:
			r.out.TestFailed(outcome.Diagnostic)
			sum.Failed++
		}
	}

	r.out.Summary(sum.Passed, sum.Total)
	return sum
}
