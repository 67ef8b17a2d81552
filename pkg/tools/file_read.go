package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/invopop/jsonschema"
	"github.com/pkg/errors"
	"go.opentelemetry.io/otel/attribute"

	tooltypes "github.com/jingkaihe/devlet/pkg/types/tools"
	"github.com/jingkaihe/devlet/pkg/utils"
)

const (
	MaxOutputBytes = 100_000 // 100KB
)

type FileReadTool struct{}

type FileReadInput struct {
	FilePath    string `json:"file_path" jsonschema:"description=The path of the file to read,required"`
	Offset      int    `json:"offset" jsonschema:"description=The 1-indexed line number to start reading from,default=1"`
	LineLimit   int    `json:"line_limit" jsonschema:"description=The maximum number of lines to read,default=0"`
	LineNumbers *bool  `json:"line_numbers,omitempty" jsonschema:"description=Prefix every line with its number,default=true"`
}

func (r *FileReadTool) GenerateSchema() *jsonschema.Schema {
	return GenerateSchema[FileReadInput]()
}

func (r *FileReadTool) Name() string {
	return "file_read"
}

func (r *FileReadTool) Positional() []string {
	return []string{"file_path"}
}

func (r *FileReadTool) Description() string {
	return `Reads a file and returns its contents with line numbers.

Parameters:
- file_path: the path of the file to read
- offset: the 1-indexed line to start from (default: 1)
- line_limit: the maximum number of lines to return (default: all)
- line_numbers: set to false for the raw text

Output is capped at 100KB.

Example:

 1: def hello():
 2:    print("Hello world")
`
}

func (r *FileReadTool) ValidateInput(_ tooltypes.State, params tooltypes.Params) error {
	input, err := decodeParams[FileReadInput](params)
	if err != nil {
		return err
	}
	if input.FilePath == "" {
		return errors.New("file_path is required")
	}
	if input.Offset < 0 {
		return errors.New("offset must be a non-negative integer")
	}
	if input.LineLimit < 0 {
		return errors.New("line_limit must be a non-negative integer")
	}
	return nil
}

func (r *FileReadTool) TracingKVs(params tooltypes.Params) []attribute.KeyValue {
	return pathKV(params["file_path"])
}

func (r *FileReadTool) Execute(ctx context.Context, state tooltypes.State, params tooltypes.Params) tooltypes.ToolResult {
	input, err := decodeParams[FileReadInput](params)
	if err != nil {
		return tooltypes.ToolResult{Error: err.Error()}
	}
	path, err := state.Store().Abs(input.FilePath)
	if err != nil {
		return tooltypes.ToolResult{Error: err.Error()}
	}
	content, err := state.Store().Read(ctx, path)
	if err != nil {
		return tooltypes.Errorf("failed to read file: %s", err)
	}
	if utils.IsBinary(content) {
		return tooltypes.Errorf("%s is a binary file", path)
	}

	offset := input.Offset
	if offset == 0 {
		offset = 1
	}
	lines := strings.Split(strings.TrimSuffix(content, "\n"), "\n")
	if content == "" {
		lines = nil
	}
	if offset > len(lines) && offset > 1 {
		return tooltypes.Errorf("file has only %d lines, which is less than the requested offset %d", len(lines), offset)
	}
	if offset <= len(lines) {
		lines = lines[offset-1:]
	}
	if input.LineLimit > 0 && input.LineLimit < len(lines) {
		lines = lines[:input.LineLimit]
	}

	var result string
	if resolveFlag(input.LineNumbers, true) {
		result = utils.ContentWithLineNumber(lines, offset)
	} else {
		result = strings.Join(lines, "\n")
	}
	if out, truncated := utils.Truncate(result, MaxOutputBytes); truncated {
		result = out + fmt.Sprintf("\n\n... [truncated due to max output bytes limit of %d]", MaxOutputBytes)
	}
	return tooltypes.ToolResult{Result: strings.TrimSuffix(result, "\n")}
}
