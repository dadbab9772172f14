package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/AndreyAkinshin/edgecheck/internal/config"
	"github.com/AndreyAkinshin/edgecheck/internal/errors"
	"github.com/AndreyAkinshin/edgecheck/internal/output"
)

// TestMain lets the test binary act as a sandbox child, the way the real
// binary re-executes itself.
func TestMain(m *testing.M) {
	if len(os.Args) > 1 && os.Args[1] == childCommand {
		os.Exit(Run(os.Args[1:]))
	}
	os.Exit(m.Run())
}

func newTestWriter() (*output.Writer, *bytes.Buffer, *bytes.Buffer) {
	var stdout, stderr bytes.Buffer
	return output.NewWithWriters(&stdout, &stderr, false), &stdout, &stderr
}

func noEnv(string) string { return "" }

func TestParseFlags(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		args    []string
		want    Options
		wantErr bool
	}{
		{name: "no flags", args: nil, want: Options{}},
		{name: "short filter", args: []string{"-f", "image"}, want: Options{Filter: "image"}},
		{name: "long filter with equals", args: []string{"--filter=^main"}, want: Options{Filter: "^main"}},
		{name: "list", args: []string{"-l"}, want: Options{List: true}},
		{name: "no color single dash", args: []string{"-nc"}, want: Options{NoColor: true}},
		{name: "no color long", args: []string{"--no-color"}, want: Options{NoColor: true}},
		{name: "verbose and debug", args: []string{"-v", "--debug"}, want: Options{Verbose: true, Debug: true}},
		{name: "timeout", args: []string{"-t", "5"}, want: Options{Timeout: "5"}},
		{
			name: "paths",
			args: []string{"--config", "c.yaml", "--suite=s.yaml", "--build-dir", "out", "--data-dir", "d", "--work-dir", "w"},
			want: Options{ConfigPath: "c.yaml", Suite: "s.yaml", BuildDir: "out", DataDir: "d", WorkDir: "w"},
		},
		{name: "help", args: []string{"--help"}, want: Options{Help: true}},
		{name: "version", args: []string{"--version"}, want: Options{Version: true}},
		{name: "missing value", args: []string{"-f"}, wantErr: true},
		{name: "unknown flag", args: []string{"--parallel"}, wantErr: true},
		{name: "short flag with equals", args: []string{"-f=x"}, wantErr: true},
		{name: "positional argument", args: []string{"image"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := parseFlags(tt.args)
			if tt.wantErr {
				if err == nil {
					t.Errorf("parseFlags(%v) expected error", tt.args)
				}
				return
			}
			if err != nil {
				t.Fatalf("parseFlags(%v) error = %v", tt.args, err)
			}
			if *got != tt.want {
				t.Errorf("parseFlags(%v) = %+v, want %+v", tt.args, *got, tt.want)
			}
		})
	}
}

func TestRun_HelpAndVersion(t *testing.T) {
	t.Parallel()

	w, stdout, _ := newTestWriter()
	if code := run([]string{"--help"}, w, noEnv); code != 0 {
		t.Errorf("--help exit code = %d", code)
	}
	if !strings.Contains(stdout.String(), "--filter <regex>") {
		t.Errorf("help output missing filter flag:\n%s", stdout.String())
	}

	w, stdout, _ = newTestWriter()
	if code := run([]string{"--version"}, w, noEnv); code != 0 {
		t.Errorf("--version exit code = %d", code)
	}
	if stdout.String() != "edgecheck "+Version+"\n" {
		t.Errorf("version output = %q", stdout.String())
	}
}

func TestRun_BadFlag(t *testing.T) {
	t.Parallel()

	w, _, stderr := newTestWriter()
	if code := run([]string{"--bogus"}, w, noEnv); code != errors.ExitConfigError {
		t.Errorf("exit code = %d, want %d", code, errors.ExitConfigError)
	}
	if !strings.Contains(stderr.String(), `unknown flag "--bogus"`) {
		t.Errorf("stderr = %q", stderr.String())
	}
}

func TestBuildConfig_Layering(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "edgecheck.yaml")
	writeFile(t, cfgPath, "build_dir: from-file\ndata_dir: from-file\ntimeout: 7\nverbose: false\n")

	env := map[string]string{config.EnvDataDir: "from-env", config.EnvTimeout: "9s"}
	opts := &Options{ConfigPath: cfgPath, Timeout: "3", Verbose: true, NoColor: true, WorkDir: dir}

	cfg, err := buildConfig(opts, func(k string) string { return env[k] })
	if err != nil {
		t.Fatalf("buildConfig() error = %v", err)
	}

	if !strings.HasSuffix(cfg.BuildDir, "from-file") || !filepath.IsAbs(cfg.BuildDir) {
		t.Errorf("BuildDir = %q, want absolute path ending in from-file", cfg.BuildDir)
	}
	if !strings.HasSuffix(cfg.DataDir, "from-env") {
		t.Errorf("DataDir = %q, want env override", cfg.DataDir)
	}
	if cfg.Timeout.Std() != 3*time.Second {
		t.Errorf("Timeout = %v, want flag override 3s", cfg.Timeout.Std())
	}
	if !cfg.Verbose {
		t.Error("Verbose = false, want flag override")
	}
	if cfg.Color != config.ColorNever {
		t.Errorf("Color = %q, want never", cfg.Color)
	}
	if cfg.WorkDir != dir {
		t.Errorf("WorkDir = %q, want %q", cfg.WorkDir, dir)
	}
}

func TestBuildConfig_Errors(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	unknownKey := filepath.Join(dir, "unknown.yaml")
	writeFile(t, unknownKey, "parallel: 4\n")

	tests := []struct {
		name string
		opts *Options
		env  map[string]string
	}{
		{"explicit config missing", &Options{ConfigPath: filepath.Join(dir, "missing.yaml")}, nil},
		{"unknown config key", &Options{ConfigPath: unknownKey}, nil},
		{"bad timeout flag", &Options{WorkDir: dir, Timeout: "soon"}, nil},
		{"bad timeout env", &Options{WorkDir: dir}, map[string]string{config.EnvTimeout: "soon"}},
		{"negative timeout", &Options{WorkDir: dir, Timeout: "-1"}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := buildConfig(tt.opts, func(k string) string { return tt.env[k] })
			if err == nil {
				t.Fatal("buildConfig() expected error")
			}
			if code := errors.GetExitCode(err); code != errors.ExitConfigError {
				t.Errorf("exit code = %d, want %d", code, errors.ExitConfigError)
			}
		})
	}
}

func TestRun_List(t *testing.T) {
	t.Parallel()

	args := suiteArgs(t, `
tests:
  - {kind: scale_image, type: image, input: a, expected: a}
  - {kind: convolve, type: convolution, input: a, expected: a, kernel: k}
  - {kind: read_broken_image, type: image, input: broken}
`)

	w, stdout, stderr := newTestWriter()
	code := run(append(args, "-l", "-nc"), w, noEnv)
	if code != 0 {
		t.Fatalf("exit code = %d, stderr = %s", code, stderr.String())
	}

	want := "Image\n" +
		"  - image.scale_image.a\n" +
		"  - image.read_image_from_file.broken\n" +
		"\n" +
		"Convolution\n" +
		"  - convolution.convolve.a\n"
	if stdout.String() != want {
		t.Errorf("list output =\n%s\nwant\n%s", stdout.String(), want)
	}
}

func TestRun_ListWithFilter(t *testing.T) {
	t.Parallel()

	args := suiteArgs(t, `
tests:
  - {kind: scale_image, type: image, input: a, expected: a}
  - {kind: convolve, type: convolution, input: a, expected: a, kernel: k}
`)

	w, stdout, _ := newTestWriter()
	if code := run(append(args, "-l", "-nc", "-f", "convolve"), w, noEnv); code != 0 {
		t.Fatalf("exit code = %d", code)
	}
	if strings.Contains(stdout.String(), "scale_image") {
		t.Errorf("filtered list still contains scale_image:\n%s", stdout.String())
	}
}

func TestRun_FilterMatchesNothing(t *testing.T) {
	t.Parallel()

	args := suiteArgs(t, `
tests:
  - {kind: scale_image, type: image, input: a, expected: a}
`)

	w, stdout, stderr := newTestWriter()
	if code := run(append(args, "-l", "-nc", "-f", "^derivation"), w, noEnv); code != 0 {
		t.Fatalf("exit code = %d", code)
	}
	if stdout.Len() != 0 {
		t.Errorf("expected no listed tests, got:\n%s", stdout.String())
	}
	if stderr.String() != "warning: no tests match \"^derivation\"\n" {
		t.Errorf("stderr = %q", stderr.String())
	}
}

func TestRun_MissingFixtureAbortsLoading(t *testing.T) {
	t.Parallel()

	args := suiteArgs(t, `
tests:
  - {kind: scale_image, type: image, input: nope, expected: a}
`)

	w, stdout, stderr := newTestWriter()
	if code := run(append(args, "-nc"), w, noEnv); code != errors.ExitConfigError {
		t.Errorf("exit code = %d, want %d", code, errors.ExitConfigError)
	}
	if stdout.Len() != 0 {
		t.Errorf("no test should run, got stdout:\n%s", stdout.String())
	}
	if !strings.Contains(stderr.String(), "missing fixture") {
		t.Errorf("stderr = %q", stderr.String())
	}
}

// TestRun_EndToEnd runs real sandbox children (this test binary re-executed
// through TestMain) against a build directory without usable artifacts.
func TestRun_EndToEnd(t *testing.T) {
	t.Parallel()

	args := suiteArgs(t, `
tests:
  - {kind: scale_image, type: image, input: a, expected: a}
  - {kind: convolve, type: convolution, input: a, expected: a, kernel: k}
`)
	buildDir := args[5]
	// An artifact that exists but is not a shared object.
	writeFile(t, filepath.Join(buildDir, "convolution.so"), "not an ELF file")

	w, stdout, stderr := newTestWriter()
	code := run(append(args, "-nc", "-t", "60"), w, noEnv)
	if code != errors.ExitTestFailure {
		t.Errorf("exit code = %d, want %d\nstderr: %s", code, errors.ExitTestFailure, stderr.String())
	}

	got := stdout.String()
	for _, want := range []string{
		"Running test image.scale_image.a\nFAIL: Failed to build image.\n",
		"Running test convolution.convolve.a\nFAIL: failed to load ",
		"\nPassed 0 out of 2 tests.\n",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("output missing %q:\n%s", want, got)
		}
	}
}

func TestCmdChild_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		args []string
		env  map[string]string
	}{
		{"no arguments", nil, nil},
		{"bad index", []string{"x", "image.scale_image.a"}, nil},
		{"no configuration", []string{"0", "image.scale_image.a"}, nil},
		{"bad configuration", []string{"0", "image.scale_image.a"}, map[string]string{childConfigEnv: "timeout: [\n"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			w, _, stderr := newTestWriter()
			code := run(append([]string{childCommand}, tt.args...), w, func(k string) string { return tt.env[k] })
			if code != errors.ExitConfigError {
				t.Errorf("exit code = %d, want %d", code, errors.ExitConfigError)
			}
			if stderr.Len() == 0 {
				t.Error("expected an error message on stderr")
			}
		})
	}
}

func TestChildCase_SuiteMismatch(t *testing.T) {
	t.Parallel()

	args := suiteArgs(t, `
tests:
  - {kind: scale_image, type: image, input: a, expected: a}
`)
	opts, err := parseFlags(args)
	if err != nil {
		t.Fatal(err)
	}
	cfg, err := buildConfig(opts, noEnv)
	if err != nil {
		t.Fatal(err)
	}
	encoded, err := cfg.Encode()
	if err != nil {
		t.Fatal(err)
	}
	getenv := func(k string) string {
		if k == childConfigEnv {
			return string(encoded)
		}
		return ""
	}

	if c, _, err := childCase([]string{"0", "image.scale_image.a"}, getenv); err != nil || c.ID() != "image.scale_image.a" {
		t.Errorf("childCase() = %v, %v", c, err)
	}
	if _, _, err := childCase([]string{"0", "image.scale_image.b"}, getenv); !errors.IsKind(err, errors.KindNotFound) {
		t.Errorf("childCase() error = %v, want a not found error for mismatched id", err)
	}
	if _, _, err := childCase([]string{"3", "image.scale_image.a"}, getenv); err == nil {
		t.Error("childCase() expected error for out-of-range index")
	}
}

// suiteArgs writes suite and fixtures into a temp tree and returns the
// path flags pointing at it. Fixtures a (input and expected), k and
// broken exist; nothing exists in the build directory.
func suiteArgs(t *testing.T, suite string) []string {
	t.Helper()
	root := t.TempDir()
	data := filepath.Join(root, "data")
	build := filepath.Join(root, "bin")
	work := filepath.Join(root, "work")
	for _, d := range []string{filepath.Join(data, "input"), filepath.Join(data, "expected"), build} {
		if err := os.MkdirAll(d, 0755); err != nil {
			t.Fatal(err)
		}
	}
	writeFile(t, filepath.Join(data, "input", "a.matrix"), "1 1\n0\n")
	writeFile(t, filepath.Join(data, "expected", "a.matrix"), "1 1\n0\n")
	writeFile(t, filepath.Join(data, "input", "k.matrix"), "1 1\n1\n")
	writeFile(t, filepath.Join(data, "input", "broken.pgm"), "P2 1\n")
	suitePath := filepath.Join(root, "suite.yaml")
	writeFile(t, suitePath, suite)

	return []string{
		"--config", filepath.Join(root, "none.yaml"),
		"--suite", suitePath,
		"--build-dir", build,
		"--data-dir", data,
		"--work-dir", work,
	}
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}
