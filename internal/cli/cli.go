// Package cli provides command-line interface functionality for edgecheck.
package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/AndreyAkinshin/edgecheck/internal/errors"
	"github.com/AndreyAkinshin/edgecheck/internal/output"
)

// Version is set at build time.
var Version = "dev"

// childCommand is the hidden first argument that turns the binary into a
// sandbox child running one case.
const childCommand = "__child"

// Help text alignment width for flags.
const helpFlagWidth = 24

// Options holds parsed command-line flags.
type Options struct {
	Filter     string
	List       bool
	NoColor    bool
	Verbose    bool
	Debug      bool
	Help       bool
	Version    bool
	ConfigPath string
	Suite      string
	BuildDir   string
	DataDir    string
	WorkDir    string
	Timeout    string
	Completion string
}

// Run executes the CLI with the given arguments and returns an exit code.
func Run(args []string) int {
	return run(args, output.New(), os.Getenv)
}

func run(args []string, w *output.Writer, getenv func(string) string) int {
	if len(args) > 0 && args[0] == childCommand {
		return cmdChild(args[1:], w, getenv)
	}

	opts, err := parseFlags(args)
	if err != nil {
		w.ErrorPrefix("%v", err)
		w.Errorln("Run 'edgecheck --help' for usage.")
		return errors.ExitConfigError
	}

	switch {
	case opts.Help:
		printUsage(w)
		return errors.ExitSuccess
	case opts.Version:
		w.Println("edgecheck %s", Version)
		return errors.ExitSuccess
	case opts.Completion != "":
		return cmdCompletion(opts.Completion, w)
	}

	if opts.List {
		return cmdList(opts, w, getenv)
	}
	return cmdRun(opts, w, getenv)
}

// parseFlags manually parses flags from arguments.
//
// Manual parsing keeps the single-dash long forms (-nc) and both
// "--flag value" and "--flag=value" spellings.
func parseFlags(args []string) (*Options, error) {
	opts := &Options{}

	values := map[string]*string{
		"-f":           &opts.Filter,
		"--filter":     &opts.Filter,
		"-t":           &opts.Timeout,
		"--timeout":    &opts.Timeout,
		"--config":     &opts.ConfigPath,
		"--suite":      &opts.Suite,
		"--build-dir":  &opts.BuildDir,
		"--data-dir":   &opts.DataDir,
		"--work-dir":   &opts.WorkDir,
		"--completion": &opts.Completion,
	}
	switches := map[string]*bool{
		"-l":         &opts.List,
		"--list":     &opts.List,
		"-nc":        &opts.NoColor,
		"--no-color": &opts.NoColor,
		"-v":         &opts.Verbose,
		"--verbose":  &opts.Verbose,
		"--debug":    &opts.Debug,
		"-h":         &opts.Help,
		"--help":     &opts.Help,
		"--version":  &opts.Version,
	}

	for i := 0; i < len(args); i++ {
		arg := args[i]

		if sw, ok := switches[arg]; ok {
			*sw = true
			continue
		}
		if dst, ok := values[arg]; ok {
			if i+1 >= len(args) {
				return nil, fmt.Errorf("%s requires a value", arg)
			}
			i++
			*dst = args[i]
			continue
		}
		if name, value, ok := strings.Cut(arg, "="); ok {
			if dst, known := values[name]; known && strings.HasPrefix(name, "--") {
				*dst = value
				continue
			}
		}
		if strings.HasPrefix(arg, "-") {
			return nil, fmt.Errorf("unknown flag %q", arg)
		}
		return nil, fmt.Errorf("unexpected argument %q", arg)
	}

	return opts, nil
}

func printUsage(w *output.Writer) {
	w.HelpTitle("edgecheck - conformance tests for the edge detection library")

	w.HelpSection("Usage:")
	w.HelpUsage("edgecheck [options]")

	w.HelpSection("Options:")
	for _, f := range flagSpecs {
		w.HelpFlag(f.usage(), f.Desc, helpFlagWidth)
	}

	w.HelpSection("Environment:")
	w.HelpEnvVar("EDGECHECK_TIMEOUT", "Per-test timeout", helpFlagWidth)
	w.HelpEnvVar("EDGECHECK_BUILD_DIR", "Library artifacts directory", helpFlagWidth)
	w.HelpEnvVar("EDGECHECK_DATA_DIR", "Fixture directory", helpFlagWidth)

	w.HelpSection("Examples:")
	w.HelpExample("edgecheck", "Run every test")
	w.HelpExample("edgecheck -f '^image\\.'", "Run the image module tests")
	w.HelpExample("edgecheck -l -nc", "List tests in plain text")
	w.HelpExample("eval \"$(edgecheck --completion bash)\"", "Enable bash completion")
	w.Println("")
}
