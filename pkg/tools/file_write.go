package tools

import (
	"context"
	"fmt"

	"github.com/aymanbagabas/go-udiff"
	"github.com/invopop/jsonschema"
	"github.com/pkg/errors"
	"go.opentelemetry.io/otel/attribute"

	tooltypes "github.com/jingkaihe/devlet/pkg/types/tools"
)

// FileWriteTool provides functionality to write files
type FileWriteTool struct{}

type FileWriteInput struct {
	FilePath string `json:"file_path" jsonschema:"description=The path of the file to write,required"`
	Text     string `json:"text" jsonschema:"description=The full new text of the file,required"`
	Backup   *bool  `json:"backup,omitempty" jsonschema:"description=Keep a copy of the previous content next to the file"`
}

// FileWriteMetadata describes a completed write.
type FileWriteMetadata struct {
	FilePath   string `json:"file_path"`
	BackupPath string `json:"backup_path,omitempty"`
	Created    bool   `json:"created"`
	Size       int    `json:"size"`
}

func (t *FileWriteTool) Name() string {
	return "file_write"
}

func (t *FileWriteTool) GenerateSchema() *jsonschema.Schema {
	return GenerateSchema[FileWriteInput]()
}

func (t *FileWriteTool) Positional() []string {
	return []string{"file_path", "text"}
}

func (t *FileWriteTool) Description() string {
	return `Writes a file with the given text. An existing file is overwritten.

Parameters:
- file_path: the path of the file to write
- text: the full text of the file
- backup: keep the previous content as <file_path>.bak (optional)

Prefer the insert tool to change a region of an existing file.
`
}

func (t *FileWriteTool) ValidateInput(_ tooltypes.State, params tooltypes.Params) error {
	input, err := decodeParams[FileWriteInput](params)
	if err != nil {
		return err
	}
	if input.FilePath == "" {
		return errors.New("file_path is required")
	}
	return nil
}

func (t *FileWriteTool) TracingKVs(params tooltypes.Params) []attribute.KeyValue {
	return pathKV(params["file_path"])
}

func (t *FileWriteTool) Execute(ctx context.Context, state tooltypes.State, params tooltypes.Params) tooltypes.ToolResult {
	input, err := decodeParams[FileWriteInput](params)
	if err != nil {
		return tooltypes.ToolResult{Error: err.Error()}
	}
	s := state.Store()
	path, err := s.Abs(input.FilePath)
	if err != nil {
		return tooltypes.ToolResult{Error: err.Error()}
	}

	state.LockFile(path)
	defer state.UnlockFile(path)

	exists, err := s.Exists(ctx, path)
	if err != nil {
		return tooltypes.ToolResult{Error: err.Error()}
	}

	meta := FileWriteMetadata{FilePath: path, Created: !exists, Size: len(input.Text)}
	var previous string
	if exists {
		if previous, err = s.Read(ctx, path); err != nil {
			return tooltypes.Errorf("failed to read file: %s", err)
		}
		if resolveFlag(input.Backup, state.Backup()) {
			meta.BackupPath = state.Patcher().BackupPath(path)
			if err := s.Write(ctx, meta.BackupPath, previous); err != nil {
				return tooltypes.Errorf("failed to write backup: %s", err)
			}
		}
	}

	if err := s.Write(ctx, path, input.Text); err != nil {
		return tooltypes.Errorf("failed to write file: %s", err)
	}

	result := fmt.Sprintf("file %s has been written successfully", path)
	if meta.BackupPath != "" {
		result += fmt.Sprintf("\nbackup: %s", meta.BackupPath)
	}
	if diff := udiff.Unified(path, path, previous, input.Text); diff != "" {
		result += "\n" + diff
	}
	return tooltypes.ToolResult{Result: result, Metadata: meta}
}
