package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/invopop/jsonschema"
	"github.com/pkg/errors"
	"go.opentelemetry.io/otel/attribute"
	"gopkg.in/yaml.v3"

	"github.com/jingkaihe/devlet/pkg/anchor"
	tooltypes "github.com/jingkaihe/devlet/pkg/types/tools"
)

// InsertTool writes content between a pair of anchors in a file.
type InsertTool struct{}

type InsertInput struct {
	FilePath        string `json:"file_path" jsonschema:"description=The path of the file to modify,required"`
	StartAnchor     string `json:"start_anchor" jsonschema:"description=Literal text marking the start of the region,required"`
	EndAnchor       string `json:"end_anchor" jsonschema:"description=Literal text marking the end of the region,required"`
	Content         string `json:"content" jsonschema:"description=Text placed between the anchors"`
	CreateIfMissing *bool  `json:"create_if_missing,omitempty" jsonschema:"description=Create the file when it does not exist"`
	Backup          *bool  `json:"backup,omitempty" jsonschema:"description=Keep a copy of the previous content next to the file"`
}

func (t *InsertTool) Name() string {
	return "insert"
}

func (t *InsertTool) GenerateSchema() *jsonschema.Schema {
	return GenerateSchema[InsertInput]()
}

func (t *InsertTool) Positional() []string {
	return []string{"file_path", "start_anchor", "end_anchor", "content"}
}

func (t *InsertTool) Description() string {
	return `Replaces the text between two anchors in a file.

Parameters:
- file_path: the file to modify
- start_anchor: literal text marking the start of the region
- end_anchor: literal text marking the end of the region
- content: the new text between the anchors
- create_if_missing: create the file when it does not exist (optional)
- backup: keep the previous content as <file_path>.bak (optional)

The first start_anchor and the first end_anchor after it delimit the region.
When the anchors are not in the file, the anchored block is appended at the end.
Anchors are matched literally.
`
}

func (t *InsertTool) ValidateInput(_ tooltypes.State, params tooltypes.Params) error {
	input, err := decodeParams[InsertInput](params)
	if err != nil {
		return err
	}
	if input.FilePath == "" {
		return errors.New("file_path is required")
	}
	return nil
}

func (t *InsertTool) TracingKVs(params tooltypes.Params) []attribute.KeyValue {
	return pathKV(params["file_path"])
}

func (t *InsertTool) Execute(ctx context.Context, state tooltypes.State, params tooltypes.Params) tooltypes.ToolResult {
	input, err := decodeParams[InsertInput](params)
	if err != nil {
		return tooltypes.ToolResult{Error: err.Error()}
	}

	unlock := lockPath(state, input.FilePath)
	defer unlock()

	res := state.Patcher().Insert(ctx, anchor.InsertRequest{
		Path: input.FilePath,
		Patch: anchor.Patch{
			StartAnchor: input.StartAnchor,
			EndAnchor:   input.EndAnchor,
			Content:     input.Content,
		},
		CreateIfMissing: resolveFlag(input.CreateIfMissing, state.CreateIfMissing()),
		Backup:          resolveFlag(input.Backup, state.Backup()),
	})
	if !res.Success {
		return tooltypes.ToolResult{Error: res.Message, Metadata: res}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s: %s\n", res.Message, res.Path)
	if res.BackupPath != "" {
		fmt.Fprintf(&b, "backup: %s\n", res.BackupPath)
	}
	b.WriteString(res.Diff)
	return tooltypes.ToolResult{Result: strings.TrimRight(b.String(), "\n"), Metadata: res}
}

// InsertMultipleTool applies several anchored insertions to one file in order.
type InsertMultipleTool struct{}

type InsertMultipleInput struct {
	FilePath        string `json:"file_path" jsonschema:"description=The path of the file to modify,required"`
	Insertions      string `json:"insertions" jsonschema:"description=A YAML or JSON list of objects with start_anchor end_anchor and content,required"`
	CreateIfMissing *bool  `json:"create_if_missing,omitempty" jsonschema:"description=Create the file when it does not exist"`
	Backup          *bool  `json:"backup,omitempty" jsonschema:"description=Keep a copy of the previous content next to the file"`
}

func (t *InsertMultipleTool) Name() string {
	return "insert_multiple"
}

func (t *InsertMultipleTool) GenerateSchema() *jsonschema.Schema {
	return GenerateSchema[InsertMultipleInput]()
}

func (t *InsertMultipleTool) Positional() []string {
	return []string{"file_path", "insertions"}
}

func (t *InsertMultipleTool) Description() string {
	return `Applies several anchored insertions to one file, in order.

Parameters:
- file_path: the file to modify
- insertions: a YAML or JSON list, each item with start_anchor, end_anchor and content
- create_if_missing: create the file from all insertions when it does not exist (optional)
- backup: keep the content from before the whole batch as <file_path>.bak (optional)

Each insertion sees the result of the previous ones. Items missing an anchor are skipped.
`
}

// ParseInsertions decodes a YAML or JSON list of patches.
func ParseInsertions(raw string) ([]anchor.Patch, error) {
	var patches []anchor.Patch
	if err := yaml.Unmarshal([]byte(raw), &patches); err != nil {
		return nil, errors.Wrap(err, "insertions must be a list of start_anchor/end_anchor/content objects")
	}
	return patches, nil
}

func (t *InsertMultipleTool) ValidateInput(_ tooltypes.State, params tooltypes.Params) error {
	input, err := decodeParams[InsertMultipleInput](params)
	if err != nil {
		return err
	}
	if input.FilePath == "" {
		return errors.New("file_path is required")
	}
	patches, err := ParseInsertions(input.Insertions)
	if err != nil {
		return err
	}
	if len(patches) == 0 {
		return errors.New("insertions must not be empty")
	}
	return nil
}

func (t *InsertMultipleTool) TracingKVs(params tooltypes.Params) []attribute.KeyValue {
	return pathKV(params["file_path"])
}

func (t *InsertMultipleTool) Execute(ctx context.Context, state tooltypes.State, params tooltypes.Params) tooltypes.ToolResult {
	input, err := decodeParams[InsertMultipleInput](params)
	if err != nil {
		return tooltypes.ToolResult{Error: err.Error()}
	}
	patches, err := ParseInsertions(input.Insertions)
	if err != nil {
		return tooltypes.ToolResult{Error: err.Error()}
	}

	unlock := lockPath(state, input.FilePath)
	defer unlock()

	res := state.Patcher().InsertMultiple(ctx, anchor.BatchRequest{
		Path:            input.FilePath,
		Patches:         patches,
		CreateIfMissing: resolveFlag(input.CreateIfMissing, state.CreateIfMissing()),
		Backup:          resolveFlag(input.Backup, state.Backup()),
	})
	if !res.Success {
		return tooltypes.ToolResult{Error: res.Message, Metadata: res}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s: %s\n", res.Message, res.Path)
	for i, o := range res.Outcomes {
		fmt.Fprintf(&b, "  %d: %s\n", i+1, o)
	}
	if res.BackupPath != "" {
		fmt.Fprintf(&b, "backup: %s\n", res.BackupPath)
	}
	b.WriteString(res.Diff)
	return tooltypes.ToolResult{Result: strings.TrimRight(b.String(), "\n"), Metadata: res}
}

// ExtractTool returns the text between a pair of anchors.
type ExtractTool struct{}

type ExtractInput struct {
	FilePath    string `json:"file_path" jsonschema:"description=The file to read,required"`
	StartAnchor string `json:"start_anchor" jsonschema:"description=Literal text marking the start of the region,required"`
	EndAnchor   string `json:"end_anchor" jsonschema:"description=Literal text marking the end of the region,required"`
}

func (t *ExtractTool) Name() string {
	return "extract"
}

func (t *ExtractTool) GenerateSchema() *jsonschema.Schema {
	return GenerateSchema[ExtractInput]()
}

func (t *ExtractTool) Positional() []string {
	return []string{"file_path", "start_anchor", "end_anchor"}
}

func (t *ExtractTool) Description() string {
	return "Returns the text between the first start_anchor and the next end_anchor in a file."
}

func (t *ExtractTool) ValidateInput(_ tooltypes.State, params tooltypes.Params) error {
	input, err := decodeParams[ExtractInput](params)
	if err != nil {
		return err
	}
	if input.FilePath == "" {
		return errors.New("file_path is required")
	}
	if input.StartAnchor == "" || input.EndAnchor == "" {
		return anchor.ErrMalformedPatch
	}
	return nil
}

func (t *ExtractTool) TracingKVs(params tooltypes.Params) []attribute.KeyValue {
	return pathKV(params["file_path"])
}

func (t *ExtractTool) Execute(ctx context.Context, state tooltypes.State, params tooltypes.Params) tooltypes.ToolResult {
	input, err := decodeParams[ExtractInput](params)
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
	region, ok := anchor.Extract(content, input.StartAnchor, input.EndAnchor)
	if !ok {
		return tooltypes.Errorf("anchors %q and %q not found in %s", input.StartAnchor, input.EndAnchor, path)
	}
	return tooltypes.ToolResult{Result: region}
}

// lockPath locks the resolved form of path so relative and absolute spellings
// of one file share a lock.
func lockPath(state tooltypes.State, path string) func() {
	if abs, err := state.Store().Abs(path); err == nil {
		path = abs
	}
	state.LockFile(path)
	return func() { state.UnlockFile(path) }
}
