// Package tools provides the operations that model replies and inline
// directives can invoke, a registry that resolves them by name, and the
// execution path with validation, tracing, and error handling.
package tools

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/invopop/jsonschema"
	"github.com/mitchellh/mapstructure"
	"github.com/pkg/errors"
	"go.opentelemetry.io/otel/attribute"

	"github.com/jingkaihe/devlet/pkg/directive"
	"github.com/jingkaihe/devlet/pkg/logger"
	"github.com/jingkaihe/devlet/pkg/telemetry"
	tooltypes "github.com/jingkaihe/devlet/pkg/types/tools"
)

// ErrUnknownTool is returned when no tool is registered under a name.
var ErrUnknownTool = errors.New("unknown tool")

func GenerateSchema[T any]() *jsonschema.Schema {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
	}
	var v T

	return reflector.Reflect(v)
}

// decodeParams fills T from string parameters, converting numbers and
// booleans as needed.
func decodeParams[T any](params tooltypes.Params) (T, error) {
	var out T
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &out,
		TagName:          "json",
		WeaklyTypedInput: true,
	})
	if err != nil {
		return out, errors.Wrap(err, "failed to create decoder")
	}
	if err := decoder.Decode(map[string]string(params)); err != nil {
		return out, errors.Wrap(err, "invalid input")
	}
	return out, nil
}

// Registry resolves tools by name or alias, ignoring case and a leading "/".
type Registry struct {
	tools   map[string]tooltypes.Tool
	ordered []tooltypes.Tool
}

// NewRegistry creates a registry holding tools.
func NewRegistry(tools ...tooltypes.Tool) *Registry {
	r := &Registry{tools: make(map[string]tooltypes.Tool)}
	for _, t := range tools {
		r.Register(t)
	}
	return r
}

// DefaultRegistry returns a registry with every built-in tool.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(&InsertTool{})
	r.Register(&InsertMultipleTool{})
	r.Register(&ExtractTool{})
	r.Register(&FileReadTool{}, "read")
	r.Register(&FileWriteTool{}, "write")
	r.Register(&ListTool{})
	return r
}

func toolKey(name string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(name), "/"))
}

// Register adds tool under its name and the given aliases. A later
// registration under the same name replaces the earlier one.
func (r *Registry) Register(tool tooltypes.Tool, aliases ...string) {
	if _, exists := r.tools[toolKey(tool.Name())]; !exists {
		r.ordered = append(r.ordered, tool)
	} else {
		for i, t := range r.ordered {
			if toolKey(t.Name()) == toolKey(tool.Name()) {
				r.ordered[i] = tool
			}
		}
	}
	r.tools[toolKey(tool.Name())] = tool
	for _, alias := range aliases {
		r.tools[toolKey(alias)] = tool
	}
}

func (r *Registry) Lookup(name string) (tooltypes.Tool, bool) {
	t, ok := r.tools[toolKey(name)]
	return t, ok
}

// Tools returns the registered tools in registration order.
func (r *Registry) Tools() []tooltypes.Tool {
	return append([]tooltypes.Tool(nil), r.ordered...)
}

// Names returns every name and alias the registry resolves, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Run validates the parameters and executes the named tool.
func (r *Registry) Run(ctx context.Context, state tooltypes.State, name string, params tooltypes.Params) tooltypes.ToolResult {
	tool, ok := r.Lookup(name)
	if !ok {
		return tooltypes.ToolResult{
			Error: errors.Wrapf(ErrUnknownTool, "failed to find tool %q", name).Error(),
		}
	}

	ctx, span := telemetry.StartSpan(ctx, fmt.Sprintf("tools.run_tool.%s", tool.Name()), tool.TracingKVs(params)...)

	if err := tool.ValidateInput(state, params); err != nil {
		telemetry.EndSpan(span, err)
		return tooltypes.ToolResult{Error: err.Error()}
	}

	result := tool.Execute(ctx, state, params)
	if result.IsError() {
		logger.G(ctx).WithField("tool", tool.Name()).WithField("error", result.Error).Debug("tool failed")
		telemetry.EndSpan(span, errors.New(result.Error))
	} else {
		telemetry.EndSpan(span, nil)
	}
	return result
}

// DirectiveTable exposes the registry as an operation table for inline
// directives. Each tool takes as many arguments as it has positional
// parameters; a failing tool aborts the expansion.
func (r *Registry) DirectiveTable(state tooltypes.State) directive.Table {
	return directiveTable{registry: r, state: state}
}

type directiveTable struct {
	registry *Registry
	state    tooltypes.State
}

func (t directiveTable) Lookup(name string) (directive.Operation, bool) {
	tool, ok := t.registry.Lookup(name)
	if !ok {
		return nil, false
	}
	return directiveOperation{table: t, tool: tool}, true
}

type directiveOperation struct {
	table directiveTable
	tool  tooltypes.Tool
}

func (o directiveOperation) Arity() int {
	return len(o.tool.Positional())
}

func (o directiveOperation) Call(ctx context.Context, args []string) (string, error) {
	params := PositionalParams(o.tool, args)
	result := o.table.registry.Run(ctx, o.table.state, o.tool.Name(), params)
	if result.IsError() {
		return "", errors.New(result.Error)
	}
	return result.Result, nil
}

// PositionalParams names args after the tool's positional parameters.
// Surplus arguments are dropped.
func PositionalParams(tool tooltypes.Tool, args []string) tooltypes.Params {
	names := tool.Positional()
	params := tooltypes.Params{}
	for i, arg := range args {
		if i >= len(names) {
			break
		}
		params[names[i]] = arg
	}
	return params
}

// CallParams adapts the parameters of a parsed call to tool. A call carrying
// only the single value parameter binds it to the first positional parameter.
func CallParams(tool tooltypes.Tool, params map[string]string) tooltypes.Params {
	out := tooltypes.Params{}
	for k, v := range params {
		out[k] = v
	}
	value, ok := out["value"]
	names := tool.Positional()
	if ok && len(out) == 1 && len(names) > 0 && names[0] != "value" {
		delete(out, "value")
		out[names[0]] = value
	}
	return out
}

func pathKV(path string) []attribute.KeyValue {
	if path == "" {
		return nil
	}
	return []attribute.KeyValue{attribute.String("file_path", path)}
}
