package toolbuiltin

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spoonos-ai/spoonbot/pkg/security"
	"github.com/spoonos-ai/spoonbot/pkg/tool"
)

var writeFileSchema = &tool.JSONSchema{
	Type: "object",
	Properties: map[string]any{
		"path": map[string]any{
			"type":        "string",
			"description": "The file path to write to (must be within workspace)",
		},
		"content": map[string]any{
			"type":        "string",
			"description": "The content to write",
		},
	},
	Required: []string{"path", "content"},
}

// WriteFileTool writes file contents inside the workspace boundary, creating
// parent directories as needed.
type WriteFileTool struct {
	validator *security.PathValidator
}

// NewWriteFileTool builds a write tool gated by the given path validator.
func NewWriteFileTool(validator *security.PathValidator) *WriteFileTool {
	if validator == nil {
		validator = security.NewPathValidator("")
	}
	return &WriteFileTool{validator: validator}
}

func (t *WriteFileTool) Name() string { return "write_file" }

func (t *WriteFileTool) Description() string {
	return fmt.Sprintf(
		"Write content to a file at the given path. Creates parent directories if needed. "+
			"Files must be within the workspace: %s", t.validator.Workspace())
}

func (t *WriteFileTool) Schema() *tool.JSONSchema { return writeFileSchema }

func (t *WriteFileTool) Execute(ctx context.Context, args map[string]any) (string, error) {
	path, err := stringArg(args, "path")
	if err != nil {
		return "", err
	}
	content, err := stringArg(args, "content")
	if err != nil {
		return "", err
	}

	resolved, err := t.validator.ValidateWrite(path)
	if err != nil {
		return fmt.Sprintf("Security Error: %v", err), nil
	}

	// Parent is within the workspace once the write check passed.
	if err := os.MkdirAll(filepath.Dir(resolved), 0o755); err != nil {
		if os.IsPermission(err) {
			return fmt.Sprintf("Error: Permission denied: %s", path), nil
		}
		return fmt.Sprintf("Error writing file: %v", err), nil
	}
	if err := os.WriteFile(resolved, []byte(content), 0o644); err != nil {
		if os.IsPermission(err) {
			return fmt.Sprintf("Error: Permission denied: %s", path), nil
		}
		return fmt.Sprintf("Error writing file: %v", err), nil
	}
	return fmt.Sprintf("Successfully wrote %d bytes to %s", len(content), path), nil
}
