package sandbox

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
)

// Unit is the work a child performs. It returns "" on success or a
// diagnostic describing the failure.
type Unit interface {
	Run() string
}

// UnitFunc adapts a function to Unit.
type UnitFunc func() string

// Run calls f.
func (f UnitFunc) Run() string { return f() }

// Publish writes the verdict to the parent over VerdictFD. It must be
// called at most once per child.
func Publish(v Verdict) error {
	if os.Getenv(VerdictEnv) != strconv.Itoa(VerdictFD) {
		return fmt.Errorf("verdict channel unavailable: %s is not set", VerdictEnv)
	}
	f := os.NewFile(VerdictFD, "verdict")
	if f == nil {
		return fmt.Errorf("verdict channel (fd %d) unavailable", VerdictFD)
	}
	defer f.Close()
	if err := json.NewEncoder(f).Encode(v); err != nil {
		return fmt.Errorf("publish verdict: %w", err)
	}
	return nil
}

// Serve runs u and publishes its verdict.
func Serve(u Unit) error {
	msg := u.Run()
	return Publish(Verdict{Passed: msg == "", Message: msg})
}
