package cli

import (
	"fmt"
	"strings"

	"github.com/AndreyAkinshin/edgecheck/internal/errors"
	"github.com/AndreyAkinshin/edgecheck/internal/output"
)

// flagSpec describes one command-line flag for help and completion.
type flagSpec struct {
	Short string // e.g. "-f"; empty when there is no short form
	Long  string // e.g. "--filter"
	Value string // placeholder for flags that take a value
	Desc  string
}

func (f flagSpec) usage() string {
	names := f.Long
	if f.Short != "" {
		names = f.Short + ", " + f.Long
	}
	if f.Value != "" {
		names += " <" + f.Value + ">"
	}
	return names
}

var flagSpecs = []flagSpec{
	{"-f", "--filter", "regex", "Only run tests whose name matches regex"},
	{"-l", "--list", "", "List tests without running them"},
	{"-nc", "--no-color", "", "Disable colored output"},
	{"-v", "--verbose", "", "Show inputs and results of failed tests"},
	{"-t", "--timeout", "dur", "Per-test timeout (seconds or 20s style)"},
	{"", "--config", "path", "Configuration file (default edgecheck.yaml)"},
	{"", "--suite", "path", "Suite file (default tests/suite.yaml)"},
	{"", "--build-dir", "dir", "Library artifacts (default bin)"},
	{"", "--data-dir", "dir", "Fixtures (default tests/data)"},
	{"", "--work-dir", "dir", "Where the library writes files (default .)"},
	{"", "--debug", "", "Log harness internals to stderr"},
	{"", "--completion", "shell", "Print a bash, zsh or fish completion script"},
	{"-h", "--help", "", "Show this help"},
	{"", "--version", "", "Show version"},
}

// cmdCompletion prints the completion script for shell.
func cmdCompletion(shell string, w *output.Writer) int {
	switch shell {
	case "bash":
		w.Print("%s", generateBashCompletion("edgecheck"))
	case "zsh":
		w.Print("%s", generateZshCompletion("edgecheck"))
	case "fish":
		w.Print("%s", generateFishCompletion("edgecheck"))
	default:
		w.ErrorPrefix("unsupported shell %q (use bash, zsh, or fish)", shell)
		return errors.ExitConfigError
	}
	return errors.ExitSuccess
}

// allFlagNames returns every spelling accepted by parseFlags.
func allFlagNames() []string {
	var names []string
	for _, f := range flagSpecs {
		if f.Short != "" {
			names = append(names, f.Short)
		}
		names = append(names, f.Long)
	}
	return names
}

// listTestsCommand prints one test ID per line for dynamic filter completion.
func listTestsCommand(cmdName string) string {
	return cmdName + ` --list --no-color 2>/dev/null | sed -n 's/^  - //p'`
}

func generateBashCompletion(cmdName string) string {
	funcName := "_" + strings.ReplaceAll(cmdName, "-", "_") + "_completions"

	return fmt.Sprintf(`# %[1]s bash completion
# Add to ~/.bashrc: eval "$(%[1]s --completion bash)"

%[2]s() {
    local cur prev words cword
    _init_completion || return

    case "${prev}" in
        -f|--filter)
            COMPREPLY=($(compgen -W "$(%[3]s)" -- "${cur}"))
            return
            ;;
        --config|--suite)
            _filedir
            return
            ;;
        --build-dir|--data-dir|--work-dir)
            _filedir -d
            return
            ;;
        --completion)
            COMPREPLY=($(compgen -W "bash zsh fish" -- "${cur}"))
            return
            ;;
        -t|--timeout)
            return
            ;;
    esac

    COMPREPLY=($(compgen -W "%[4]s" -- "${cur}"))
}

complete -F %[2]s %[1]s
`, cmdName, funcName, listTestsCommand(cmdName), strings.Join(allFlagNames(), " "))
}

func generateZshCompletion(cmdName string) string {
	funcName := "_" + strings.ReplaceAll(cmdName, "-", "_")

	var specs []string
	for _, f := range flagSpecs {
		action := ""
		switch f.Value {
		case "regex":
			action = ":test:_" + funcName[1:] + "_tests"
		case "path":
			action = ":file:_files"
		case "dir":
			action = ":directory:_files -/"
		case "shell":
			action = ":shell:(bash zsh fish)"
		case "dur":
			action = ":timeout: "
		}
		desc := strings.ReplaceAll(f.Desc, "'", "")
		if f.Short != "" {
			specs = append(specs, fmt.Sprintf("        '(%s %s)'{%s,%s}'[%s]%s'", f.Short, f.Long, f.Short, f.Long, desc, action))
		} else {
			specs = append(specs, fmt.Sprintf("        '%s[%s]%s'", f.Long, desc, action))
		}
	}

	return fmt.Sprintf(`#compdef %[1]s
# %[1]s zsh completion
# Add to ~/.zshrc: eval "$(%[1]s --completion zsh)"

%[2]s_tests() {
    local -a tests
    tests=(${(f)"$(%[3]s)"})
    _describe -t tests 'test' tests
}

%[2]s() {
    _arguments -s \
%[4]s
}

compdef %[2]s %[1]s
`, cmdName, funcName, listTestsCommand(cmdName), strings.Join(specs, " \\\n"))
}

func generateFishCompletion(cmdName string) string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf(`# %[1]s fish completion
# Add to config: %[1]s --completion fish | source

# Disable file completion by default
complete -c %[1]s -f

`, cmdName))

	for _, f := range flagSpecs {
		line := "complete -c " + cmdName
		if f.Short != "" {
			// fish only knows single-letter short options; -nc is an old-style option.
			if len(f.Short) == 2 {
				line += " -s " + f.Short[1:]
			} else {
				line += " -o " + f.Short[1:]
			}
		}
		line += " -l " + strings.TrimPrefix(f.Long, "--")
		switch f.Value {
		case "regex":
			line += fmt.Sprintf(" -xa '(%s)'", listTestsCommand(cmdName))
		case "path":
			line += " -rF"
		case "dir":
			line += " -xa '(__fish_complete_directories)'"
		case "shell":
			line += " -xa 'bash zsh fish'"
		case "dur":
			line += " -x"
		}
		line += fmt.Sprintf(" -d '%s'\n", strings.ReplaceAll(f.Desc, "'", ""))
		sb.WriteString(line)
	}

	return sb.String()
}
