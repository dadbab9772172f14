// Package config provides configuration loading and validation for edgecheck.
package config

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the harness configuration. It is built once per process and
// passed explicitly to the runner, the sandbox and every case.
type Config struct {
	// Suite is the registration file listing the cases to run.
	Suite string `yaml:"suite,omitempty"`

	// BuildDir holds the compiled library artifacts (<module>.so).
	BuildDir string `yaml:"build_dir,omitempty"`

	// DataDir holds the input/ and expected/ fixture trees.
	DataDir string `yaml:"data_dir,omitempty"`

	// WorkDir is where the library writes its output files.
	WorkDir string `yaml:"work_dir,omitempty"`

	// Timeout is the wall-clock budget of one case.
	Timeout Duration `yaml:"timeout,omitempty"`

	// Verbose selects multi-line diagnostics with inputs and results.
	Verbose bool `yaml:"verbose,omitempty"`

	// Color is "auto", "always" or "never".
	Color ColorMode `yaml:"color,omitempty"`
}

// ColorMode selects when console output is colored.
type ColorMode string

const (
	ColorAuto   ColorMode = "auto"
	ColorAlways ColorMode = "always"
	ColorNever  ColorMode = "never"
)

// Duration is a time.Duration that decodes from "20s" style strings or from
// a bare number of seconds.
type Duration time.Duration

// ParseDuration accepts Go duration syntax or an integer number of seconds.
func ParseDuration(s string) (Duration, error) {
	s = strings.TrimSpace(s)
	if n, err := strconv.Atoi(s); err == nil {
		return Duration(time.Duration(n) * time.Second), nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q (use seconds or Go syntax like 20s)", s)
	}
	return Duration(d), nil
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: timeout must be a scalar", value.Line)
	}
	parsed, err := ParseDuration(value.Value)
	if err != nil {
		return fmt.Errorf("line %d: %w", value.Line, err)
	}
	*d = parsed
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Seconds renders the duration the way diagnostics report it: whole seconds
// without a unit when integral, otherwise the Go duration string.
func (d Duration) Seconds() string {
	std := time.Duration(d)
	if std%time.Second == 0 {
		return strconv.FormatInt(int64(std/time.Second), 10)
	}
	return strconv.FormatFloat(std.Seconds(), 'f', -1, 64)
}

// InputPath returns the path of an input fixture.
func (c *Config) InputPath(name, ext string) string {
	return filepath.Join(c.DataDir, "input", name+ext)
}

// ExpectedPath returns the path of an expected (golden) fixture.
func (c *Config) ExpectedPath(name, ext string) string {
	return filepath.Join(c.DataDir, "expected", name+ext)
}

// ArtifactPath returns the path of the compiled library for a module.
func (c *Config) ArtifactPath(module string) string {
	return filepath.Join(c.BuildDir, module+".so")
}

// OutputPath returns where a library output file named name is written.
func (c *Config) OutputPath(name string) string {
	return filepath.Join(c.WorkDir, name)
}

// UseColor resolves the color mode against whether stdout is a terminal.
func (c *Config) UseColor(terminal bool) bool {
	switch c.Color {
	case ColorAlways:
		return true
	case ColorNever:
		return false
	default:
		return terminal
	}
}
