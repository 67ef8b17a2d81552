package tools

import (
	"context"
	"fmt"

	"github.com/invopop/jsonschema"
	"go.opentelemetry.io/otel/attribute"

	"github.com/jingkaihe/devlet/pkg/anchor"
	"github.com/jingkaihe/devlet/pkg/store"
)

// Params are the named string parameters of a tool invocation.
type Params map[string]string

type Tool interface {
	GenerateSchema() *jsonschema.Schema
	Name() string
	Description() string
	// Positional names the parameters filled, in order, by directive arguments.
	Positional() []string
	ValidateInput(state State, params Params) error
	Execute(ctx context.Context, state State, params Params) ToolResult
	TracingKVs(params Params) []attribute.KeyValue
}

type ToolResult struct {
	Result   string `json:"result"`
	Error    string `json:"error,omitempty"`
	Metadata any    `json:"metadata,omitempty"`
}

// Errorf builds a failed ToolResult.
func Errorf(format string, args ...any) ToolResult {
	return ToolResult{Error: fmt.Sprintf(format, args...)}
}

func (t ToolResult) IsError() bool {
	return t.Error != ""
}

func (t ToolResult) String() string {
	return StringifyToolResult(t.Result, t.Error)
}

// StringifyToolResult renders a result the way it is fed back to the model.
func StringifyToolResult(result, err string) string {
	out := ""
	if err != "" {
		out = fmt.Sprintf(`<error>
%s
</error>
`, err)
	}
	if result == "" {
		result = "(No output)"
	}
	out += fmt.Sprintf(`<result>
%s
</result>
`, result)
	return out
}

// State is what tools share while serving one request.
type State interface {
	Store() store.Store
	Patcher() *anchor.Patcher
	// Backup is the default for tools that can back up the file they change.
	Backup() bool
	// CreateIfMissing is the default for anchored insertions.
	CreateIfMissing() bool
	LockFile(path string)
	UnlockFile(path string)
}
