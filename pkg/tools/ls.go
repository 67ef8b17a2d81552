package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/invopop/jsonschema"
	"github.com/pkg/errors"
	"go.opentelemetry.io/otel/attribute"

	tooltypes "github.com/jingkaihe/devlet/pkg/types/tools"
)

const maxListEntries = 500

// ListTool lists the entries of a directory.
type ListTool struct{}

type ListInput struct {
	Path    string `json:"path" jsonschema:"description=The directory to list,default=."`
	Pattern string `json:"pattern" jsonschema:"description=A glob such as **/*.go,default=*"`
}

func (t *ListTool) Name() string {
	return "ls"
}

func (t *ListTool) GenerateSchema() *jsonschema.Schema {
	return GenerateSchema[ListInput]()
}

func (t *ListTool) Positional() []string {
	return []string{"path", "pattern"}
}

func (t *ListTool) Description() string {
	return `Lists a directory. Directories end with "/".

Parameters:
- path: the directory to list (default: the working directory)
- pattern: a glob relative to path, "**" matches across directories (default: *)
`
}

func (t *ListTool) ValidateInput(_ tooltypes.State, params tooltypes.Params) error {
	input, err := decodeParams[ListInput](params)
	if err != nil {
		return err
	}
	if input.Pattern != "" && !doublestar.ValidatePattern(input.Pattern) {
		return errors.Errorf("invalid pattern %q", input.Pattern)
	}
	return nil
}

func (t *ListTool) TracingKVs(params tooltypes.Params) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String("path", params["path"]),
		attribute.String("pattern", params["pattern"]),
	}
}

func (t *ListTool) Execute(ctx context.Context, state tooltypes.State, params tooltypes.Params) tooltypes.ToolResult {
	input, err := decodeParams[ListInput](params)
	if err != nil {
		return tooltypes.ToolResult{Error: err.Error()}
	}
	if input.Path == "" {
		input.Path = "."
	}
	if input.Pattern == "" {
		input.Pattern = "*"
	}

	root, err := state.Store().Abs(input.Path)
	if err != nil {
		return tooltypes.ToolResult{Error: err.Error()}
	}
	entries, err := state.Store().Glob(ctx, root, input.Pattern)
	if err != nil {
		return tooltypes.ToolResult{Error: err.Error()}
	}

	var b strings.Builder
	for i, e := range entries {
		if i == maxListEntries {
			fmt.Fprintf(&b, "... and %d more\n", len(entries)-maxListEntries)
			break
		}
		b.WriteString(e.Path)
		if e.Dir {
			b.WriteString("/")
		}
		b.WriteString("\n")
	}
	return tooltypes.ToolResult{Result: strings.TrimSuffix(b.String(), "\n"), Metadata: entries}
}
