package cli

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"strconv"
	"syscall"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	edgecases "github.com/AndreyAkinshin/edgecheck/internal/cases"
	"github.com/AndreyAkinshin/edgecheck/internal/config"
	"github.com/AndreyAkinshin/edgecheck/internal/errors"
	"github.com/AndreyAkinshin/edgecheck/internal/logging"
	"github.com/AndreyAkinshin/edgecheck/internal/native"
	"github.com/AndreyAkinshin/edgecheck/internal/output"
	"github.com/AndreyAkinshin/edgecheck/internal/runner"
	"github.com/AndreyAkinshin/edgecheck/internal/sandbox"
)

// Environment handed from the parent to sandbox children.
const (
	childConfigEnv = "EDGECHECK_CHILD_CONFIG"
	childDebugEnv  = "EDGECHECK_DEBUG"
)

// buildConfig layers defaults, the configuration file, environment
// variables and flags, then resolves every path against the current
// directory.
func buildConfig(opts *Options, getenv func(string) string) (*config.Config, error) {
	path := opts.ConfigPath
	if path == "" {
		path = config.DefaultConfigFile
	}
	cfg, err := config.LoadOptional(path, opts.ConfigPath != "")
	if err != nil {
		return nil, errors.WrapKind(errors.KindConfig, err, "invalid configuration")
	}
	if err := cfg.ApplyEnv(getenv); err != nil {
		return nil, errors.WrapKind(errors.KindConfig, err, "invalid environment")
	}

	for dst, value := range map[*string]string{
		&cfg.Suite:    opts.Suite,
		&cfg.BuildDir: opts.BuildDir,
		&cfg.DataDir:  opts.DataDir,
		&cfg.WorkDir:  opts.WorkDir,
	} {
		if value != "" {
			*dst = value
		}
	}
	if opts.Timeout != "" {
		d, err := config.ParseDuration(opts.Timeout)
		if err != nil {
			return nil, errors.WrapKind(errors.KindConfig, err, "invalid --timeout")
		}
		cfg.Timeout = d
	}
	if opts.Verbose {
		cfg.Verbose = true
	}
	if opts.NoColor {
		cfg.Color = config.ColorNever
	}

	if err := config.Validate(cfg); err != nil {
		return nil, errors.WrapKind(errors.KindConfig, err, "invalid configuration")
	}

	cwd, err := os.Getwd()
	if err != nil {
		return nil, errors.WrapKind(errors.KindEnvironment, err, "cannot determine working directory")
	}
	if err := cfg.Resolve(cwd); err != nil {
		return nil, errors.WrapKind(errors.KindEnvironment, err, "cannot resolve paths")
	}
	return cfg, nil
}

// setup builds the configuration, applies color and logging settings, and
// loads and filters the suite.
func setup(opts *Options, w *output.Writer, getenv func(string) string) (*config.Config, []*edgecases.Case, error) {
	if opts.Debug {
		logging.SetLogger(logging.NewDebugLogger(os.Stderr, "edgecheck"))
	}

	cfg, err := buildConfig(opts, getenv)
	if err != nil {
		return nil, nil, err
	}
	w.SetColor(cfg.UseColor(w.Color()))

	all, err := edgecases.Load(cfg)
	if err != nil {
		return nil, nil, err
	}
	selected, err := edgecases.Filter(all, opts.Filter)
	if err != nil {
		return nil, nil, err
	}
	if len(selected) == 0 && opts.Filter != "" {
		w.Warning("no tests match %q", opts.Filter)
	}
	return cfg, selected, nil
}

// cmdList prints the selected test names grouped by type.
func cmdList(opts *Options, w *output.Writer, getenv func(string) string) int {
	_, selected, err := setup(opts, w, getenv)
	if err != nil {
		w.ErrorPrefix("%v", err)
		return errors.GetExitCode(err)
	}

	titleCase := cases.Title(language.English)
	types, byType := edgecases.Group(selected)
	for i, t := range types {
		if i > 0 {
			w.Println("")
		}
		w.Section(titleCase.String(t))
		ids := make([]string, len(byType[t]))
		for j, c := range byType[t] {
			ids[j] = c.ID()
		}
		w.List(ids)
	}
	return errors.ExitSuccess
}

// cmdRun runs the selected tests, each in its own child process.
func cmdRun(opts *Options, w *output.Writer, getenv func(string) string) int {
	cfg, selected, err := setup(opts, w, getenv)
	if err != nil {
		w.ErrorPrefix("%v", err)
		return errors.GetExitCode(err)
	}

	if err := os.MkdirAll(cfg.WorkDir, 0755); err != nil {
		w.ErrorPrefix("cannot create work directory: %v", err)
		return errors.ExitEnvironmentError
	}
	exe, err := os.Executable()
	if err != nil {
		w.ErrorPrefix("cannot locate own executable: %v", err)
		return errors.ExitEnvironmentError
	}

	// Children inherit the parent's resolved color decision.
	childCfg := *cfg
	childCfg.Color = config.ColorNever
	if w.Color() {
		childCfg.Color = config.ColorAlways
	}
	encoded, err := childCfg.Encode()
	if err != nil {
		w.ErrorPrefix("cannot encode configuration: %v", err)
		return errors.ExitEnvironmentError
	}

	env := append(os.Environ(), childConfigEnv+"="+string(encoded))
	if opts.Debug {
		env = append(env, childDebugEnv+"=1")
	}
	command := func(c *edgecases.Case) *exec.Cmd {
		cmd := exec.Command(exe, childCommand, strconv.Itoa(c.Index), c.ID())
		cmd.Dir = cfg.WorkDir
		cmd.Env = env
		return cmd
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sum := runner.New(sandbox.New(cfg.Timeout.Std()), command, w).Run(ctx, selected)
	if !sum.AllPassed() {
		return errors.ExitTestFailure
	}
	return errors.ExitSuccess
}

// cmdChild runs one case inside a sandbox child and publishes its verdict.
// Arguments are the case's suite index and ID.
func cmdChild(args []string, w *output.Writer, getenv func(string) string) int {
	if getenv(childDebugEnv) != "" {
		logging.SetLogger(logging.NewDebugLogger(os.Stderr, "child"))
	}

	c, cfg, err := childCase(args, getenv)
	if err != nil {
		w.ErrorPrefix("%v", err)
		return errors.GetExitCode(err)
	}

	// The parent resolved auto to always or never before encoding.
	w.SetColor(cfg.Color == config.ColorAlways)
	env := edgecases.Env{Config: cfg, Verbose: cfg.Verbose, Style: w.Style()}

	native.DieOnFault()
	unit := sandbox.UnitFunc(func() string {
		defer native.FlushStdio()
		return c.Run(env)
	})
	if err := sandbox.Serve(unit); err != nil {
		w.ErrorPrefix("%v", err)
		return errors.ExitEnvironmentError
	}
	return errors.ExitSuccess
}

func childCase(args []string, getenv func(string) string) (*edgecases.Case, *config.Config, error) {
	if len(args) != 2 {
		return nil, nil, errors.Configf("%s expects <index> <id>, got %d arguments", childCommand, len(args))
	}
	index, err := strconv.Atoi(args[0])
	if err != nil {
		return nil, nil, errors.Configf("invalid case index %q", args[0])
	}

	encoded := getenv(childConfigEnv)
	if encoded == "" {
		return nil, nil, errors.Configf("%s is not set; %s is started by edgecheck itself", childConfigEnv, childCommand)
	}
	cfg, err := config.Decode([]byte(encoded))
	if err != nil {
		return nil, nil, errors.WrapKind(errors.KindConfig, err, "invalid child configuration")
	}

	all, err := edgecases.Load(cfg)
	if err != nil {
		return nil, nil, err
	}
	if index < 0 || index >= len(all) || all[index].ID() != args[1] {
		return nil, nil, errors.NotFound("case", fmt.Sprintf("%s at index %d", args[1], index))
	}
	return all[index], cfg, nil
}
