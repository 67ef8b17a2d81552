// Package dev runs a query end to end: it gathers file context, expands
// inline directives, asks the model, parses the tool calls out of the reply
// and dispatches them.
package dev

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"

	"github.com/jingkaihe/devlet/pkg/calls"
	"github.com/jingkaihe/devlet/pkg/directive"
	"github.com/jingkaihe/devlet/pkg/llm/prompts"
	"github.com/jingkaihe/devlet/pkg/logger"
	"github.com/jingkaihe/devlet/pkg/selector"
	"github.com/jingkaihe/devlet/pkg/telemetry"
	"github.com/jingkaihe/devlet/pkg/tools"
	llmtypes "github.com/jingkaihe/devlet/pkg/types/llm"
	tooltypes "github.com/jingkaihe/devlet/pkg/types/tools"
)

// DefaultTimeout bounds a model call when none is configured.
const DefaultTimeout = 5 * time.Minute

// ErrDeclined is recorded on every call when the confirmation is refused.
var ErrDeclined = errors.New("dispatch declined")

// ConfirmFunc is asked once before the parsed calls are dispatched.
type ConfirmFunc func(ctx context.Context, records []calls.Record) (bool, error)

// Request is one query to run.
type Request struct {
	Query string
	// To is the directory the query works in, the store's base by default.
	To string
	// ContextFiles, relative to To, replace file selection when set.
	ContextFiles []string
	// Dispatch overrides the configured mode.
	Dispatch DispatchMode
	Confirm  ConfirmFunc
	Handler  llmtypes.MessageHandler
	Options  llmtypes.GenerateOptions
}

// DispatchResult is the outcome of one parsed call.
type DispatchResult struct {
	Call   calls.Record         `json:"call"`
	Tool   string               `json:"tool,omitempty"`
	Result tooltypes.ToolResult `json:"result"`
	Err    error                `json:"-"`
}

// Succeeded reports whether the call ran without error.
func (d DispatchResult) Succeeded() bool {
	return d.Err == nil && !d.Result.IsError()
}

// Result is everything a Forward produced.
type Result struct {
	RequestID    string               `json:"request_id"`
	Prompt       string               `json:"prompt"`
	Query        string               `json:"query"`
	Expansion    *directive.Expansion `json:"-"`
	ContextFiles []string             `json:"context_files"`
	Reply        string               `json:"reply"`
	Usage        llmtypes.Usage       `json:"usage"`
	Calls        []calls.Record       `json:"calls"`
	Unterminated []calls.Span         `json:"unterminated,omitempty"`
	Dispatched   []DispatchResult     `json:"dispatched,omitempty"`
	Err          error                `json:"-"`
}

// Dev wires the model, the tool registry and the text protocol together.
type Dev struct {
	model    llmtypes.Model
	registry *tools.Registry
	state    tooltypes.State
	lister   *selector.Lister
	selector selector.Selector
	scanner  *directive.Scanner
	parser   *calls.Parser
	config   Config
}

type Option func(*Dev)

func WithRegistry(r *tools.Registry) Option {
	return func(d *Dev) { d.registry = r }
}

func WithState(s tooltypes.State) Option {
	return func(d *Dev) { d.state = s }
}

func WithSelector(s selector.Selector) Option {
	return func(d *Dev) { d.selector = s }
}

func WithLister(l *selector.Lister) Option {
	return func(d *Dev) { d.lister = l }
}

func WithConfig(c Config) Option {
	return func(d *Dev) { d.config = c }
}

// New creates a Dev around model. Unset collaborators get defaults built
// from the configuration: the built-in tools on the local filesystem and
// keyword file selection.
func New(model llmtypes.Model, opts ...Option) (*Dev, error) {
	if model == nil {
		return nil, errors.New("model is required")
	}
	d := &Dev{model: model}
	for _, opt := range opts {
		opt(d)
	}

	if _, err := ParseDispatchMode(d.config.Dispatch); err != nil {
		return nil, err
	}
	if d.registry == nil {
		d.registry = tools.DefaultRegistry()
	}
	if d.state == nil {
		d.state = tools.NewBasicState()
	}
	if d.lister == nil {
		var listerOpts []selector.ListerOption
		listerOpts = append(listerOpts, selector.WithInclude(d.config.Context.Include))
		if len(d.config.Context.Ignore) > 0 {
			listerOpts = append(listerOpts, selector.WithIgnore(d.config.Context.Ignore...))
		}
		lister, err := selector.NewLister(d.state.Store(), listerOpts...)
		if err != nil {
			return nil, err
		}
		d.lister = lister
	}
	if d.selector == nil {
		switch d.config.Context.Selector {
		case "", "keyword":
			d.selector = selector.NewKeywordSelector(d.state.Store(), d.config.Context.MaxFiles)
		case "model":
			d.selector = selector.NewModelSelector(model, d.config.Context.MaxFiles)
		default:
			return nil, errors.Errorf("unknown context selector %q", d.config.Context.Selector)
		}
	}
	d.scanner = directive.NewScanner(
		directive.WithPrefix(d.config.Directive.Prefix),
		directive.WithSkipUnknown(d.config.Directive.SkipUnknown),
	)
	d.parser = calls.NewParser(d.config.Calls.Tag)
	return d, nil
}

// Registry returns the tools calls are dispatched to.
func (d *Dev) Registry() *tools.Registry {
	return d.registry
}

// Forward runs req. Errors that stop the run are returned; failures of
// individual calls are collected on the Result, and Result.Err aggregates
// them.
func (d *Dev) Forward(ctx context.Context, req Request) (result *Result, err error) {
	requestID := uuid.NewString()
	ctx = logger.WithLogger(ctx, logger.G(ctx).WithField("request_id", requestID))
	ctx, span := telemetry.StartSpan(ctx, "dev.forward", attribute.String("request_id", requestID))
	defer func() { telemetry.EndSpan(span, err) }()
	log := logger.G(ctx)

	result = &Result{RequestID: requestID}

	to := req.To
	if to == "" {
		to = "."
	}
	root, err := d.state.Store().Abs(to)
	if err != nil {
		return nil, errors.Wrap(err, "failed to resolve target directory")
	}

	result.ContextFiles, err = d.contextFiles(ctx, root, req)
	if err != nil {
		return nil, err
	}
	files, err := selector.Load(ctx, d.state.Store(), root, result.ContextFiles, d.config.Context.MaxBytes)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load context files")
	}

	expansion, err := d.scanner.Expand(ctx, req.Query, d.registry.DirectiveTable(d.state))
	if err != nil {
		return nil, errors.Wrap(err, "failed to expand query")
	}
	result.Expansion = expansion
	result.Query = expansion.Text

	result.Prompt, err = prompts.RenderRequest(prompts.RequestData{
		PWD:   root,
		Files: files,
		Query: expansion.Text,
		Tag:   d.parser.Tag,
		Tools: d.toolDescriptions(),
	})
	if err != nil {
		return nil, err
	}
	log.WithFields(logrus.Fields{"context_files": len(files), "prompt_bytes": len(result.Prompt)}).Debug("prompt rendered")

	resp, err := d.generate(ctx, result.Prompt, req)
	if err != nil {
		return nil, err
	}
	result.Reply = resp.Text
	result.Usage = resp.Usage

	parsed := d.parser.ParseDetailed(resp.Text)
	result.Calls = parsed.Records
	result.Unterminated = parsed.Unterminated
	for _, u := range parsed.Unterminated {
		log.WithFields(logrus.Fields{"operation": u.Operation, "offset": u.Offset}).Debug("ignoring unterminated call")
	}
	log.WithField("calls", len(result.Calls)).Info("reply parsed")

	result.Dispatched, err = d.dispatch(ctx, req, result.Calls)
	if err != nil {
		return nil, err
	}
	for _, dr := range result.Dispatched {
		if !dr.Succeeded() {
			result.Err = multierror.Append(result.Err, dispatchError(dr))
		}
	}
	return result, nil
}

func (d *Dev) contextFiles(ctx context.Context, root string, req Request) ([]string, error) {
	if len(req.ContextFiles) > 0 {
		return req.ContextFiles, nil
	}
	candidates, err := d.lister.List(ctx, root)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list context candidates")
	}
	selected, err := d.selector.Select(ctx, selector.Request{Root: root, Query: req.Query, Candidates: candidates})
	if err != nil {
		if ctx.Err() != nil {
			return nil, err
		}
		logger.G(ctx).WithError(err).Warn("file selection failed, continuing without context")
		return nil, nil
	}
	return selected, nil
}

func (d *Dev) generate(ctx context.Context, prompt string, req Request) (llmtypes.Response, error) {
	timeout := d.config.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	resp, err := d.model.Generate(ctx, prompt, req.Options, req.Handler)
	if err != nil {
		return resp, errors.Wrap(err, "model call failed")
	}
	logger.G(ctx).WithFields(logrus.Fields{
		"model":         resp.Model,
		"input_tokens":  resp.Usage.InputTokens,
		"output_tokens": resp.Usage.OutputTokens,
		"elapsed":       time.Since(start).String(),
	}).Info("model replied")
	return resp, nil
}

func (d *Dev) toolDescriptions() []prompts.Tool {
	var out []prompts.Tool
	for _, t := range d.registry.Tools() {
		schema, err := json.Marshal(t.GenerateSchema())
		if err != nil {
			schema = []byte("{}")
		}
		out = append(out, prompts.Tool{Name: t.Name(), Description: t.Description(), Schema: string(schema)})
	}
	return out
}

// Dispatch runs records against the registry under mode, asking confirm
// first when mode is DispatchConfirm.
func (d *Dev) Dispatch(ctx context.Context, mode DispatchMode, confirm ConfirmFunc, records []calls.Record) ([]DispatchResult, error) {
	return d.dispatch(ctx, Request{Dispatch: mode, Confirm: confirm}, records)
}

func (d *Dev) dispatch(ctx context.Context, req Request, records []calls.Record) ([]DispatchResult, error) {
	if len(records) == 0 {
		return nil, nil
	}
	mode := req.Dispatch
	if mode == "" {
		mode, _ = ParseDispatchMode(d.config.Dispatch)
	}
	log := logger.G(ctx).WithField("mode", mode)

	switch mode {
	case DispatchNever:
		log.Debug("dispatch disabled")
		return nil, nil
	case DispatchConfirm:
		if req.Confirm == nil {
			log.Info("no confirmation available, calls not dispatched")
			return nil, nil
		}
		ok, err := req.Confirm(ctx, records)
		if err != nil {
			return nil, errors.Wrap(err, "confirmation failed")
		}
		if !ok {
			log.Info("dispatch declined")
			results := make([]DispatchResult, len(records))
			for i, r := range records {
				results[i] = DispatchResult{Call: r, Err: ErrDeclined}
			}
			return results, nil
		}
	case DispatchAlways:
	default:
		return nil, errors.Errorf("invalid dispatch mode %q", mode)
	}

	results := make([]DispatchResult, 0, len(records))
	for _, r := range records {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		results = append(results, d.dispatchOne(ctx, r))
	}
	return results, nil
}

func (d *Dev) dispatchOne(ctx context.Context, r calls.Record) DispatchResult {
	log := logger.G(ctx).WithField("operation", r.Operation)
	tool, ok := d.registry.Lookup(r.Operation)
	if !ok {
		log.Warn("unknown operation in reply")
		return DispatchResult{
			Call: r,
			Err:  errors.Wrapf(directive.ErrUnknownOperation, "%q at offset %d", r.Operation, r.Offset),
		}
	}

	result := d.registry.Run(ctx, d.state, tool.Name(), tools.CallParams(tool, r.Parameters))
	if result.IsError() {
		log.WithField("error", result.Error).Warn("call failed")
	} else {
		log.Info("call dispatched")
	}
	return DispatchResult{Call: r, Tool: tool.Name(), Result: result}
}

func dispatchError(dr DispatchResult) error {
	if dr.Err != nil {
		return errors.Wrapf(dr.Err, "%s", dr.Call.Operation)
	}
	return errors.Errorf("%s: %s", dr.Call.Operation, dr.Result.Error)
}
