// Package output provides formatted console output for the harness.
package output

import (
	"fmt"
	"io"
	"os"
	"strings"
)

// ANSI color codes.
const (
	reset     = "\033[0m"
	bold      = "\033[1m"
	underline = "\033[4m"
	overline  = "\033[53m"
	red       = "\033[91m"
	green     = "\033[92m"
	orange    = "\033[93m"
	blue      = "\033[94m"
)

// Semantic color roles.
const (
	colorHeader  = blue + bold
	colorFrame   = underline + overline
	colorPass    = green
	colorFail    = red
	colorTimeout = orange
	colorSignal  = orange
)

// Writer handles console output formatting.
type Writer struct {
	out   io.Writer
	err   io.Writer
	color bool
}

// New creates a new Writer on stdout/stderr, colored when stdout is a terminal.
func New() *Writer {
	return &Writer{
		out:   os.Stdout,
		err:   os.Stderr,
		color: isTerminal(),
	}
}

// NewWithWriters creates a Writer with custom io.Writers (for testing).
func NewWithWriters(out, err io.Writer, color bool) *Writer {
	return &Writer{
		out:   out,
		err:   err,
		color: color,
	}
}

// SetColor enables or disables ANSI colors.
func (w *Writer) SetColor(color bool) {
	w.color = color
}

// Color reports whether ANSI colors are enabled.
func (w *Writer) Color() bool {
	return w.color
}

// Style returns the diagnostic style matching this writer's color setting.
func (w *Writer) Style() Style {
	return Style{Color: w.color}
}

// Print writes to stdout.
func (w *Writer) Print(format string, args ...interface{}) {
	fmt.Fprintf(w.out, format, args...)
}

// Println writes a line to stdout.
func (w *Writer) Println(format string, args ...interface{}) {
	fmt.Fprintf(w.out, format+"\n", args...)
}

// Error writes to stderr.
func (w *Writer) Error(format string, args ...interface{}) {
	fmt.Fprintf(w.err, format, args...)
}

// Errorln writes a line to stderr.
func (w *Writer) Errorln(format string, args ...interface{}) {
	fmt.Fprintf(w.err, format+"\n", args...)
}

// Warning prints a warning message to stderr.
func (w *Writer) Warning(format string, args ...interface{}) {
	if w.color {
		w.Errorln(orange+"warning: "+format+reset, args...)
	} else {
		w.Errorln("warning: "+format, args...)
	}
}

// ErrorPrefix prints an error message with the edgecheck prefix to stderr.
func (w *Writer) ErrorPrefix(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	if w.color {
		w.Errorln("%sedgecheck:%s %s", red, reset, msg)
	} else {
		w.Errorln("edgecheck: %s", msg)
	}
}

// TestStart announces a test case.
func (w *Writer) TestStart(id string) {
	if w.color {
		w.Println("%sRunning test %s %s", colorHeader, id, reset)
	} else {
		w.Println("Running test %s", id)
	}
}

// TestPassed prints the pass line.
func (w *Writer) TestPassed() {
	if w.color {
		w.Println("%sPASS%s", colorPass, reset)
	} else {
		w.Println("PASS")
	}
	w.Println("")
}

// TestFailed prints a failure line with its diagnostic.
func (w *Writer) TestFailed(diagnostic string) {
	if w.color {
		w.Println("%sFAIL:%s %s", colorFail, reset, diagnostic)
	} else {
		w.Println("FAIL: %s", diagnostic)
	}
	w.Println("")
}

// TestTimedOut prints the timeout line.
func (w *Writer) TestTimedOut(diagnostic string) {
	if w.color {
		w.Println("%sFAIL: %s%s", colorTimeout, diagnostic, reset)
	} else {
		w.Println("FAIL: %s", diagnostic)
	}
	w.Println("")
}

// TestSignaled prints the abnormal-termination line.
func (w *Writer) TestSignaled(diagnostic string) {
	if w.color {
		w.Println("%sSIGNAL: %s%s", colorSignal, diagnostic, reset)
	} else {
		w.Println("SIGNAL: %s", diagnostic)
	}
	w.Println("")
}

// Summary prints the final pass count.
func (w *Writer) Summary(passed, total int) {
	w.Println("")
	if w.color {
		w.Println("%s%sPassed %d out of %d tests.%s", colorFrame, colorHeader, passed, total, reset)
	} else {
		w.Println("Passed %d out of %d tests.", passed, total)
	}
}

// Section prints a section header.
func (w *Writer) Section(title string) {
	if w.color {
		w.Println("%s%s%s", colorHeader, title, reset)
	} else {
		w.Println("%s", title)
	}
}

// List prints a list of items.
func (w *Writer) List(items []string) {
	for _, item := range items {
		w.Println("  - %s", item)
	}
}

// HelpTitle formats the main help title.
func (w *Writer) HelpTitle(title string) {
	if w.color {
		w.Println("%s%s%s", colorHeader, title, reset)
	} else {
		w.Println("%s", title)
	}
}

// HelpSection formats a section header (e.g., "Options:").
func (w *Writer) HelpSection(title string) {
	w.Println("")
	if w.color {
		w.Println("%s%s%s", bold, title, reset)
	} else {
		w.Println("%s", title)
	}
}

// HelpUsage formats a usage line.
func (w *Writer) HelpUsage(usage string) {
	w.Println("  %s", usage)
}

// HelpFlag formats a flag with its description.
func (w *Writer) HelpFlag(name, description string, width int) {
	if w.color {
		w.Println("  %s%-*s%s  %s", blue, width, name, reset, description)
	} else {
		w.Println("  %-*s  %s", width, name, description)
	}
}

// HelpEnvVar formats an environment variable.
func (w *Writer) HelpEnvVar(name, description string, width int) {
	if w.color {
		w.Println("  %s%-*s%s  %s", green, width, name, reset, description)
	} else {
		w.Println("  %-*s  %s", width, name, description)
	}
}

// HelpExample formats an example command.
func (w *Writer) HelpExample(command, description string) {
	w.Println("  %s", command)
	if description != "" {
		w.Println("      %s", description)
	}
}

// Style decorates diagnostic text. The zero value produces plain text.
type Style struct {
	Color bool
}

// Fail highlights a diagnostic headline.
func (s Style) Fail(text string) string {
	if !s.Color {
		return text
	}
	return colorFail + text + reset
}

// Bold emphasizes a label.
func (s Style) Bold(text string) string {
	if !s.Color {
		return text
	}
	return bold + text + reset
}

// Labeled renders "label: value" with an emphasized label. Multi-line values
// start on the next line.
func (s Style) Labeled(label, value string) string {
	if strings.Contains(value, "\n") {
		return s.Bold(label+":") + "\n" + value
	}
	return s.Bold(label+":") + " " + value
}

// isTerminal returns true if stdout is a terminal.
func isTerminal() bool {
	if fi, _ := os.Stdout.Stat(); fi != nil {
		return (fi.Mode() & os.ModeCharDevice) != 0
	}
	return false
}
