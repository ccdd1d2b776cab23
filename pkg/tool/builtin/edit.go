package toolbuiltin

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spoonos-ai/spoonbot/pkg/security"
	"github.com/spoonos-ai/spoonbot/pkg/tool"
)

var editFileSchema = &tool.JSONSchema{
	Type: "object",
	Properties: map[string]any{
		"path": map[string]any{
			"type":        "string",
			"description": "The file path to edit (must be within workspace)",
		},
		"old_text": map[string]any{
			"type":        "string",
			"description": "The exact text to find and replace",
		},
		"new_text": map[string]any{
			"type":        "string",
			"description": "The text to replace with",
		},
	},
	Required: []string{"path", "old_text", "new_text"},
}

// EditFileTool replaces one occurrence of old_text with new_text. The match
// must be unique so the model cannot silently clobber unrelated content.
type EditFileTool struct {
	validator *security.PathValidator
}

// NewEditFileTool builds an edit tool gated by the given path validator.
func NewEditFileTool(validator *security.PathValidator) *EditFileTool {
	if validator == nil {
		validator = security.NewPathValidator("")
	}
	return &EditFileTool{validator: validator}
}

func (t *EditFileTool) Name() string { return "edit_file" }

func (t *EditFileTool) Description() string {
	return fmt.Sprintf(
		"Edit a file by replacing old_text with new_text. The old_text must exist "+
			"exactly once in the file. Files must be within the workspace: %s",
		t.validator.Workspace())
}

func (t *EditFileTool) Schema() *tool.JSONSchema { return editFileSchema }

func (t *EditFileTool) Execute(ctx context.Context, args map[string]any) (string, error) {
	path, err := stringArg(args, "path")
	if err != nil {
		return "", err
	}
	oldText, err := stringArg(args, "old_text")
	if err != nil {
		return "", err
	}
	newText, err := stringArg(args, "new_text")
	if err != nil {
		return "", err
	}

	// Editing modifies the file, so the stricter write rules apply.
	resolved, err := t.validator.ValidateWrite(path)
	if err != nil {
		return fmt.Sprintf("Security Error: %v", err), nil
	}

	data, err := os.ReadFile(resolved)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Sprintf("Error: File not found: %s", path), nil
		}
		if os.IsPermission(err) {
			return fmt.Sprintf("Error: Permission denied: %s", path), nil
		}
		return fmt.Sprintf("Error editing file: %v", err), nil
	}

	content := string(data)
	count := strings.Count(content, oldText)
	switch {
	case count == 0:
		return "Error: old_text not found in file. Make sure it matches exactly.", nil
	case count > 1:
		return fmt.Sprintf("Warning: old_text appears %d times. "+
			"Please provide more context to make it unique.", count), nil
	}

	updated := strings.Replace(content, oldText, newText, 1)
	if err := os.WriteFile(resolved, []byte(updated), 0o644); err != nil {
		if os.IsPermission(err) {
			return fmt.Sprintf("Error: Permission denied: %s", path), nil
		}
		return fmt.Sprintf("Error editing file: %v", err), nil
	}
	return fmt.Sprintf("Successfully edited %s", path), nil
}
