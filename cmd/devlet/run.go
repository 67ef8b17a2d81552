package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jingkaihe/devlet/pkg/calls"
	"github.com/jingkaihe/devlet/pkg/dev"
	"github.com/jingkaihe/devlet/pkg/llm"
	"github.com/jingkaihe/devlet/pkg/logger"
	"github.com/jingkaihe/devlet/pkg/presenter"
	llmtypes "github.com/jingkaihe/devlet/pkg/types/llm"
)

// RunOptions contains all options for the run command
type RunOptions struct {
	to       string
	dispatch string
	yes      bool
	files    []string
	json     bool
	quiet    bool

	// stdinConsumed is set when the query was read from stdin, which leaves
	// confirmations to the controlling terminal.
	stdinConsumed bool
	stdout        io.Writer
	stderr        io.Writer
	input         io.Reader
}

// openTTY opens the controlling terminal for confirmations.
var openTTY = func() (io.ReadCloser, error) {
	return os.Open("/dev/tty")
}

var runOptions = &RunOptions{}

var runCmd = &cobra.Command{
	Use:   "run [query]",
	Short: "Send a query to the model and dispatch the tool calls in its reply",
	Long: `Send a query to the model together with the relevant files of the target directory.
Inline directives such as "@/read main.go" are expanded before the query is sent.
The tool calls found in the reply are listed and, depending on --dispatch, executed.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithCancel(cmd.Context())
		defer cancel()

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
		defer signal.Stop(sigCh)
		go func() {
			select {
			case <-sigCh:
				presenter.Warning("Cancellation requested, shutting down...")
				cancel()
			case <-ctx.Done():
			}
		}()

		runOptions.stdinConsumed = stdinPiped()
		query, err := readInput(args, os.Stdin, runOptions.stdinConsumed)
		if err != nil {
			return err
		}
		if strings.TrimSpace(query) == "" {
			return errors.New("no query provided")
		}

		return runQuery(ctx, viper.GetViper(), runOptions, query)
	},
}

func runQuery(ctx context.Context, v *viper.Viper, opts *RunOptions, query string) error {
	stdout, stderr := opts.stdout, opts.stderr
	if stdout == nil {
		stdout = os.Stdout
	}
	if stderr == nil {
		stderr = os.Stderr
	}
	out := presenter.NewWithWriters(stdout, stderr)
	out.SetQuiet(opts.quiet || opts.json)

	llmConfig, err := llm.GetConfigFromViper(v)
	if err != nil {
		return err
	}
	model, err := llm.NewModel(ctx, llmConfig)
	if err != nil {
		return err
	}
	config, err := devConfig(v)
	if err != nil {
		return err
	}
	if opts.dispatch != "" {
		config.Dispatch = opts.dispatch
	}
	state, err := newState(v, opts.to)
	if err != nil {
		return err
	}
	d, err := dev.New(model, dev.WithState(state), dev.WithConfig(config))
	if err != nil {
		return err
	}

	mode, err := dev.ParseDispatchMode(config.Dispatch)
	if err != nil {
		return err
	}
	if opts.yes {
		mode = dev.DispatchAlways
	}

	listed := false
	result, err := d.Forward(ctx, dev.Request{
		Query:        query,
		To:           opts.to,
		ContextFiles: opts.files,
		Dispatch:     mode,
		Handler:      &llmtypes.ConsoleMessageHandler{Silent: out.IsQuiet(), Out: stdout},
		Confirm: func(_ context.Context, records []calls.Record) (bool, error) {
			// the dialog stays on stderr so stdout carries only the result
			asker := presenter.NewWithWriters(stderr, stderr)
			asker.Section("Tool calls")
			asker.Calls(records)
			listed = true

			input, closeInput, err := confirmInput(opts)
			if err != nil {
				asker.Warning(fmt.Sprintf("Cannot ask for confirmation (%v), %d call(s) not dispatched. Pass --yes or --dispatch always to run them.", err, len(records)))
				return false, nil
			}
			defer closeInput()
			return asker.WithInput(input).Confirm(fmt.Sprintf("Dispatch %d call(s)?", len(records))), nil
		},
	})
	if err != nil {
		return err
	}
	logger.G(ctx).WithField("request_id", result.RequestID).Debug("query finished")

	if opts.json {
		return printJSON(stdout, result)
	}

	out.Info("")
	if !listed {
		out.Section("Tool calls")
		out.Calls(result.Calls)
	}
	out.Dispatched(result.Dispatched)
	out.Stats(result.Usage)

	if result.Err != nil {
		return errors.Wrap(result.Err, "some calls failed")
	}
	return nil
}

// confirmInput picks where the confirmation answer is read from. Once the
// query drained stdin only the terminal can answer.
func confirmInput(opts *RunOptions) (io.Reader, func(), error) {
	if opts.stdinConsumed {
		tty, err := openTTY()
		if err != nil {
			return nil, nil, errors.Wrap(err, "stdin was used for the query and no terminal is available")
		}
		return tty, func() { tty.Close() }, nil
	}
	if opts.input != nil {
		return opts.input, func() {}, nil
	}
	return os.Stdin, func() {}, nil
}

func init() {
	flags := runCmd.Flags()
	flags.StringVar(&runOptions.to, "to", ".", "Directory the query works in")
	flags.StringVar(&runOptions.dispatch, "dispatch", "", "Dispatch mode for parsed calls (never, confirm, always)")
	flags.BoolVarP(&runOptions.yes, "yes", "y", false, "Dispatch without asking")
	flags.StringSliceVarP(&runOptions.files, "file", "f", nil, "Context file relative to --to, skips file selection (repeatable)")
	flags.BoolVar(&runOptions.json, "json", false, "Print the full result as JSON")
	flags.BoolVarP(&runOptions.quiet, "quiet", "q", false, "Only print errors")
}
