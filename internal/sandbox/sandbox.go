// Package sandbox runs one unit of work in a child process, enforcing a
// wall-clock budget and classifying how the child ended.
//
// The child publishes exactly one JSON verdict on file descriptor 3. The
// parent reads it concurrently while waiting and never blocks on it for
// longer than RetrieveWait once the child has exited.
package sandbox

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"syscall"
	"time"

	"golang.org/x/sys/unix"

	"github.com/AndreyAkinshin/edgecheck/internal/config"
	"github.com/AndreyAkinshin/edgecheck/internal/logging"
)

// VerdictFD is the child's file descriptor for the verdict pipe.
const VerdictFD = 3

// VerdictEnv marks a child started by Run; Publish refuses to write to
// VerdictFD without it.
const VerdictEnv = "EDGECHECK_VERDICT_FD"

// maxVerdictSize bounds what the parent buffers from a child.
const maxVerdictSize = 1 << 20

// DefaultRetrieveWait bounds the verdict read after the child exited.
const DefaultRetrieveWait = 2 * time.Second

// ErrNoVerdict is reported when a child exits without publishing.
var ErrNoVerdict = errors.New("no verdict received")

// State is the terminal state of one sandboxed run.
type State int

const (
	// Completed means the child published a verdict before the deadline.
	Completed State = iota
	// TimedOut means the child was killed at the deadline.
	TimedOut
	// Crashed means the child was terminated by a signal.
	Crashed
	// ChannelEmpty means the child exited without a usable verdict.
	ChannelEmpty
)

func (s State) String() string {
	switch s {
	case Completed:
		return "completed"
	case TimedOut:
		return "timed out"
	case Crashed:
		return "crashed"
	case ChannelEmpty:
		return "channel empty"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Verdict is what a child reports about its unit.
type Verdict struct {
	Passed  bool   `json:"passed"`
	Message string `json:"message,omitempty"`
}

// Outcome describes how one sandboxed run ended.
type Outcome struct {
	State State
	// Verdict is the child's report; only meaningful when State is Completed.
	Verdict Verdict
	// Diagnostic is the verdict message for Completed runs and a synthetic
	// description otherwise.
	Diagnostic string
	// Signal names the terminating signal of a Crashed run.
	Signal string
	// ExitCode is the child's exit status, or -1 when it did not exit normally.
	ExitCode int
	Duration time.Duration
}

// Passed reports whether the child completed and its unit passed.
func (o Outcome) Passed() bool {
	return o.State == Completed && o.Verdict.Passed
}

// Sandbox runs child processes one at a time.
type Sandbox struct {
	// Timeout is the wall-clock budget of one child.
	Timeout time.Duration
	// Stdout and Stderr receive the child's output when the command does
	// not set its own.
	Stdout io.Writer
	Stderr io.Writer
	// RetrieveWait bounds the verdict read after exit; zero means
	// DefaultRetrieveWait.
	RetrieveWait time.Duration
}

// New creates a sandbox with the given budget that forwards child output to
// the process's own stdout and stderr.
func New(timeout time.Duration) *Sandbox {
	return &Sandbox{
		Timeout: timeout,
		Stdout:  os.Stdout,
		Stderr:  os.Stderr,
	}
}

type readResult struct {
	data []byte
	err  error
}

// Run starts cmd, waits for it within the budget and classifies the result.
// Run owns cmd: it sets ExtraFiles and the process group. Cancelling ctx
// kills the child like a timeout. Exactly one terminal state is returned
// and the child has been reaped when Run returns.
func (s *Sandbox) Run(ctx context.Context, cmd *exec.Cmd) Outcome {
	log := logging.Logger().With("component", "sandbox")

	r, w, err := os.Pipe()
	if err != nil {
		return Outcome{
			State:      ChannelEmpty,
			Diagnostic: fmt.Sprintf("error failed to create verdict channel: %v", err),
			ExitCode:   -1,
		}
	}
	defer r.Close()

	cmd.ExtraFiles = []*os.File{w}
	if cmd.Env == nil {
		cmd.Env = os.Environ()
	}
	cmd.Env = append(cmd.Env, fmt.Sprintf("%s=%d", VerdictEnv, VerdictFD))
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.WaitDelay = s.retrieveWait()
	if cmd.Stdout == nil {
		cmd.Stdout = s.Stdout
	}
	if cmd.Stderr == nil {
		cmd.Stderr = s.Stderr
	}

	start := time.Now()
	if err := cmd.Start(); err != nil {
		w.Close()
		return Outcome{
			State:      ChannelEmpty,
			Diagnostic: fmt.Sprintf("error failed to start child: %v", err),
			ExitCode:   -1,
		}
	}
	w.Close()
	pid := cmd.Process.Pid
	log.Debug("child started", "pid", pid, "args", cmd.Args)

	received := make(chan readResult, 1)
	go func() {
		data, err := io.ReadAll(io.LimitReader(r, maxVerdictSize))
		received <- readResult{data: data, err: err}
	}()

	exited := make(chan error, 1)
	go func() {
		exited <- cmd.Wait()
	}()

	timer := time.NewTimer(s.Timeout)
	defer timer.Stop()

	var waitErr error
	select {
	case waitErr = <-exited:
	case <-timer.C:
		s.kill(pid)
		<-exited
		log.Debug("child timed out", "pid", pid, "timeout", s.Timeout)
		return s.timedOut(time.Since(start))
	case <-ctx.Done():
		s.kill(pid)
		<-exited
		log.Debug("child cancelled", "pid", pid, "cause", ctx.Err())
		return s.timedOut(time.Since(start))
	}
	elapsed := time.Since(start)

	outcome := classifyExit(cmd.ProcessState)
	outcome.Duration = elapsed
	if outcome.State == Crashed {
		log.Debug("child crashed", "pid", pid, "signal", outcome.Signal, "duration", elapsed)
		return outcome
	}

	verdict, err := s.retrieve(r, received)
	if err != nil {
		if waitErr != nil && !isExitError(waitErr) {
			err = fmt.Errorf("%w (wait: %v)", err, waitErr)
		}
		outcome.State = ChannelEmpty
		outcome.Diagnostic = fmt.Sprintf("error %v (%s)", err, cmd.ProcessState)
		log.Debug("child published no verdict", "pid", pid, "exit", outcome.ExitCode, "error", err)
		return outcome
	}

	outcome.State = Completed
	outcome.Verdict = verdict
	outcome.Diagnostic = verdict.Message
	log.Debug("child completed", "pid", pid, "passed", verdict.Passed, "duration", elapsed)
	return outcome
}

func (s *Sandbox) retrieveWait() time.Duration {
	if s.RetrieveWait > 0 {
		return s.RetrieveWait
	}
	return DefaultRetrieveWait
}

func (s *Sandbox) timedOut(elapsed time.Duration) Outcome {
	return Outcome{
		State:      TimedOut,
		Diagnostic: fmt.Sprintf("Timed out after %s seconds.", config.Duration(s.Timeout).Seconds()),
		ExitCode:   -1,
		Duration:   elapsed,
	}
}

// kill terminates the child's whole process group.
func (s *Sandbox) kill(pid int) {
	if err := unix.Kill(-pid, unix.SIGKILL); err != nil && !errors.Is(err, unix.ESRCH) {
		logging.Logger().Debug("kill process group", "pid", pid, "error", err)
		_ = unix.Kill(pid, unix.SIGKILL)
	}
}

// retrieve collects the verdict bytes, waiting at most RetrieveWait. Closing
// the read end unblocks a reader held up by a leaked write end.
func (s *Sandbox) retrieve(r *os.File, received <-chan readResult) (Verdict, error) {
	var res readResult
	timer := time.NewTimer(s.retrieveWait())
	defer timer.Stop()
	select {
	case res = <-received:
	case <-timer.C:
		r.Close()
		res = <-received
		if res.err == nil {
			res.err = errors.New("verdict channel still open after exit")
		}
	}

	data := bytes.TrimSpace(res.data)
	if len(data) == 0 {
		if res.err != nil {
			return Verdict{}, fmt.Errorf("%w: %v", ErrNoVerdict, res.err)
		}
		return Verdict{}, ErrNoVerdict
	}

	var v Verdict
	if err := json.Unmarshal(data, &v); err != nil {
		return Verdict{}, fmt.Errorf("malformed verdict: %w", err)
	}
	return v, nil
}

func classifyExit(state *os.ProcessState) Outcome {
	out := Outcome{ExitCode: state.ExitCode()}
	ws, ok := state.Sys().(syscall.WaitStatus)
	if !ok || !ws.Signaled() {
		return out
	}
	name := unix.SignalName(ws.Signal())
	if name == "" {
		name = ws.Signal().String()
	}
	out.State = Crashed
	out.Signal = name
	out.Diagnostic = fmt.Sprintf("Received signal %s.", name)
	return out
}

func isExitError(err error) bool {
	var exitErr *exec.ExitError
	return errors.As(err, &exitErr)
}
