// Package presenter provides consistent CLI output for user-facing messages:
// status lines, parsed calls, dispatch outcomes, patch results with colored
// diffs and confirmation prompts.
package presenter

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/fatih/color"
	"github.com/pkg/errors"

	"github.com/jingkaihe/devlet/pkg/anchor"
	"github.com/jingkaihe/devlet/pkg/calls"
	"github.com/jingkaihe/devlet/pkg/dev"
	llmtypes "github.com/jingkaihe/devlet/pkg/types/llm"
)

// Presenter defines the interface for consistent CLI output
type Presenter interface {
	Error(err error, context string)
	Success(message string)
	Warning(message string)
	Info(message string)
	Section(title string)
	Prompt(question string, options ...string) string
	Confirm(question string) bool
	Stats(usage llmtypes.Usage)
	Calls(records []calls.Record)
	Dispatched(results []dev.DispatchResult)
	Patch(result anchor.Result)
	Batch(result anchor.BatchResult)
	Separator()
	SetQuiet(quiet bool)
	IsQuiet() bool
}

// TerminalPresenter implements Presenter for terminal output
type TerminalPresenter struct {
	output      io.Writer
	errorOutput io.Writer
	input       *bufio.Reader
	colorMode   ColorMode
	quiet       bool
}

// ColorMode represents different color output modes
type ColorMode int

const (
	// ColorAuto leaves the decision to terminal detection
	ColorAuto ColorMode = iota
	ColorAlways
	ColorNever
)

// New creates a TerminalPresenter on the standard streams.
func New() *TerminalPresenter {
	return NewWithOptions(os.Stdout, os.Stderr, detectColorMode())
}

// NewWithWriters creates a TerminalPresenter on the given writers with the
// color mode taken from the environment.
func NewWithWriters(output, errorOutput io.Writer) *TerminalPresenter {
	return NewWithOptions(output, errorOutput, detectColorMode())
}

// NewWithOptions creates a TerminalPresenter with custom settings. Prompts
// read from stdin unless WithInput is used.
func NewWithOptions(output, errorOutput io.Writer, colorMode ColorMode) *TerminalPresenter {
	presenter := &TerminalPresenter{
		output:      output,
		errorOutput: errorOutput,
		input:       bufio.NewReader(os.Stdin),
		colorMode:   colorMode,
	}

	switch colorMode {
	case ColorAlways:
		color.NoColor = false
	case ColorNever:
		color.NoColor = true
	case ColorAuto:
	}

	return presenter
}

// WithInput makes prompts read from r.
func (p *TerminalPresenter) WithInput(r io.Reader) *TerminalPresenter {
	p.input = bufio.NewReader(r)
	return p
}

func detectColorMode() ColorMode {
	if os.Getenv("NO_COLOR") != "" {
		return ColorNever
	}

	switch os.Getenv("DEVLET_COLOR") {
	case "always", "force":
		return ColorAlways
	case "never", "off":
		return ColorNever
	default:
		return ColorAuto
	}
}

// Error displays an error message to stderr
func (p *TerminalPresenter) Error(err error, context string) {
	if err == nil {
		return
	}

	errorColor := color.New(color.FgRed, color.Bold)
	if context != "" {
		errorColor.Fprintf(p.errorOutput, "[ERROR] %s: %v\n", context, err)
	} else {
		errorColor.Fprintf(p.errorOutput, "[ERROR] %v\n", err)
	}
}

func (p *TerminalPresenter) Success(message string) {
	if p.quiet {
		return
	}
	color.New(color.FgGreen, color.Bold).Fprintf(p.output, "✓ %s\n", message)
}

func (p *TerminalPresenter) Warning(message string) {
	if p.quiet {
		return
	}
	color.New(color.FgYellow, color.Bold).Fprintf(p.output, "⚠ %s\n", message)
}

func (p *TerminalPresenter) Info(message string) {
	if p.quiet {
		return
	}
	fmt.Fprintf(p.output, "%s\n", message)
}

// Section displays a section header with consistent formatting
func (p *TerminalPresenter) Section(title string) {
	if p.quiet {
		return
	}

	headerColor := color.New(color.Bold)
	headerColor.Fprintf(p.output, "%s\n", title)
	headerColor.Fprintf(p.output, "%s\n", strings.Repeat("-", len(title)))
}

// Prompt writes a question to the error output and reads one line of input.
// It returns "" when the input is closed.
func (p *TerminalPresenter) Prompt(question string, options ...string) string {
	promptColor := color.New(color.FgCyan)

	if len(options) > 0 {
		promptColor.Fprintf(p.errorOutput, "%s [%s]: ", question, strings.Join(options, "/"))
	} else {
		promptColor.Fprintf(p.errorOutput, "%s: ", question)
	}

	response, err := p.input.ReadString('\n')
	if err != nil && response == "" {
		return ""
	}
	return strings.TrimSpace(response)
}

// Confirm asks a yes/no question. Anything but y or yes is a no.
func (p *TerminalPresenter) Confirm(question string) bool {
	switch strings.ToLower(p.Prompt(question, "y", "N")) {
	case "y", "yes":
		return true
	default:
		return false
	}
}

// Stats displays token usage
func (p *TerminalPresenter) Stats(usage llmtypes.Usage) {
	if p.quiet {
		return
	}
	color.New(color.FgCyan, color.Bold).Fprintf(p.output, "[Usage Stats] Input tokens: %d | Output tokens: %d | Total: %d\n",
		usage.InputTokens, usage.OutputTokens, usage.TotalTokens())
}

// Calls lists parsed tool calls with their parameters in key order.
func (p *TerminalPresenter) Calls(records []calls.Record) {
	if p.quiet {
		return
	}
	if len(records) == 0 {
		fmt.Fprintln(p.output, "No tool calls in the reply.")
		return
	}

	nameColor := color.New(color.FgMagenta, color.Bold)
	keyColor := color.New(color.Faint)
	for i, r := range records {
		nameColor.Fprintf(p.output, "%d. %s\n", i+1, r.Operation)
		keys := make([]string, 0, len(r.Parameters))
		for k := range r.Parameters {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			keyColor.Fprintf(p.output, "   %s: ", k)
			fmt.Fprintln(p.output, preview(r.Parameters[k], 80))
		}
	}
}

// Dispatched reports the outcome of every dispatched call.
func (p *TerminalPresenter) Dispatched(results []dev.DispatchResult) {
	for _, r := range results {
		switch {
		case r.Err != nil:
			p.Error(r.Err, r.Call.Operation)
		case r.Result.IsError():
			p.Error(errors.New(r.Result.Error), r.Call.Operation)
		default:
			p.Success(fmt.Sprintf("%s (%s)", r.Call.Operation, r.Tool))
			if r.Result.Result != "" && !p.quiet {
				p.diff(r.Result.Result)
			}
		}
	}
}

// Patch reports a single anchored insertion.
func (p *TerminalPresenter) Patch(result anchor.Result) {
	if !result.Success {
		p.Error(resultError(result.Err, result.Message), result.Path)
		return
	}
	p.Success(fmt.Sprintf("%s: %s (%s)", result.Message, result.Path, result.Outcome))
	if result.BackupPath != "" {
		p.Info("backup: " + result.BackupPath)
	}
	if result.Diff != "" && !p.quiet {
		p.diff(result.Diff)
	}
}

// Batch reports a batch of anchored insertions.
func (p *TerminalPresenter) Batch(result anchor.BatchResult) {
	if !result.Success {
		p.Error(resultError(result.Err, result.Message), result.Path)
		return
	}
	if result.SuccessCount < result.Total {
		p.Warning(result.Message)
	} else {
		p.Success(result.Message)
	}
	if p.quiet {
		return
	}
	for i, o := range result.Outcomes {
		fmt.Fprintf(p.output, "  %d: %s\n", i+1, o)
	}
	if result.BackupPath != "" {
		p.Info("backup: " + result.BackupPath)
	}
	if result.Diff != "" {
		p.diff(result.Diff)
	}
}

// diff prints text, coloring unified diff lines.
func (p *TerminalPresenter) diff(text string) {
	added := color.New(color.FgGreen)
	removed := color.New(color.FgRed)
	hunk := color.New(color.FgCyan)
	for _, line := range strings.Split(strings.TrimRight(text, "\n"), "\n") {
		switch {
		case strings.HasPrefix(line, "+++"), strings.HasPrefix(line, "---"):
			color.New(color.Bold).Fprintln(p.output, line)
		case strings.HasPrefix(line, "@@"):
			hunk.Fprintln(p.output, line)
		case strings.HasPrefix(line, "+"):
			added.Fprintln(p.output, line)
		case strings.HasPrefix(line, "-"):
			removed.Fprintln(p.output, line)
		default:
			fmt.Fprintln(p.output, line)
		}
	}
}

func resultError(err error, message string) error {
	if err != nil {
		return err
	}
	return errors.New(message)
}

func preview(s string, max int) string {
	s = strings.ReplaceAll(s, "\n", "⏎")
	if r := []rune(s); len(r) > max {
		return string(r[:max]) + "…"
	}
	return s
}

// Separator displays a visual separator
func (p *TerminalPresenter) Separator() {
	if p.quiet {
		return
	}
	color.New(color.Faint).Fprintf(p.output, "%s\n", strings.Repeat("-", 60))
}

func (p *TerminalPresenter) SetQuiet(quiet bool) {
	p.quiet = quiet
}

func (p *TerminalPresenter) IsQuiet() bool {
	return p.quiet
}

var defaultPresenter = New()

// Default returns the presenter behind the package level functions.
func Default() *TerminalPresenter {
	return defaultPresenter
}

// Error displays an error message using the default presenter instance.
func Error(err error, context string) {
	defaultPresenter.Error(err, context)
}

// Success displays a success message using the default presenter instance.
func Success(message string) {
	defaultPresenter.Success(message)
}

// Warning displays a warning message using the default presenter instance.
func Warning(message string) {
	defaultPresenter.Warning(message)
}

// Info displays an informational message using the default presenter instance.
func Info(message string) {
	defaultPresenter.Info(message)
}

// Section displays a section header using the default presenter instance.
func Section(title string) {
	defaultPresenter.Section(title)
}

// SetQuiet enables or disables quiet mode for the default presenter instance.
func SetQuiet(quiet bool) {
	defaultPresenter.SetQuiet(quiet)
}
