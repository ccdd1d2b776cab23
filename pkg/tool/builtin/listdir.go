package toolbuiltin

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/spoonos-ai/spoonbot/pkg/security"
	"github.com/spoonos-ai/spoonbot/pkg/tool"
)

var listDirSchema = &tool.JSONSchema{
	Type: "object",
	Properties: map[string]any{
		"path": map[string]any{
			"type":        "string",
			"description": "The directory path to list (must be within workspace)",
		},
		"show_hidden": map[string]any{
			"type":        "boolean",
			"description": "Show hidden files (default: false)",
		},
	},
	Required: []string{"path"},
}

// ListDirTool lists directory contents with type and size indicators.
type ListDirTool struct {
	validator *security.PathValidator
}

// NewListDirTool builds a listing tool gated by the given path validator.
func NewListDirTool(validator *security.PathValidator) *ListDirTool {
	if validator == nil {
		validator = security.NewPathValidator("")
	}
	return &ListDirTool{validator: validator}
}

func (t *ListDirTool) Name() string { return "list_dir" }

func (t *ListDirTool) Description() string {
	return fmt.Sprintf(
		"List the contents of a directory with file/folder indicators. "+
			"Directory must be within the workspace: %s", t.validator.Workspace())
}

func (t *ListDirTool) Schema() *tool.JSONSchema { return listDirSchema }

func (t *ListDirTool) Execute(ctx context.Context, args map[string]any) (string, error) {
	path, err := stringArg(args, "path")
	if err != nil {
		return "", err
	}
	showHidden, err := optionalBool(args, "show_hidden", false)
	if err != nil {
		return "", err
	}

	resolved, err := t.validator.ValidateDir(path)
	if err != nil {
		if errors.Is(err, security.ErrNotDirectory) {
			return fmt.Sprintf("Error: Not a directory: %s", path), nil
		}
		return fmt.Sprintf("Security Error: %v", err), nil
	}

	entries, err := os.ReadDir(resolved)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Sprintf("Error: Directory not found: %s", path), nil
		}
		if os.IsPermission(err) {
			return fmt.Sprintf("Error: Permission denied: %s", path), nil
		}
		return fmt.Sprintf("Error listing directory: %v", err), nil
	}

	var items []string
	for _, entry := range entries {
		name := entry.Name()
		if !showHidden && strings.HasPrefix(name, ".") {
			continue
		}
		items = append(items, t.formatEntry(resolved, entry))
	}

	if len(items) == 0 {
		return fmt.Sprintf("Directory %s is empty", path), nil
	}
	return strings.Join(items, "\n"), nil
}

func (t *ListDirTool) formatEntry(dir string, entry fs.DirEntry) string {
	name := entry.Name()
	full := filepath.Join(dir, name)

	// Stat follows symlinks, so a link to a directory lists as a directory.
	info, statErr := os.Stat(full)
	if statErr == nil && info.IsDir() {
		return fmt.Sprintf("[DIR]  %s/", name)
	}
	if entry.Type()&fs.ModeSymlink != 0 {
		target, err := filepath.EvalSymlinks(full)
		switch {
		case err != nil:
			return fmt.Sprintf("[LINK] %s -> (broken)", name)
		case !t.validator.Contains(target):
			return fmt.Sprintf("[LINK] %s -> (outside workspace)", name)
		default:
			return fmt.Sprintf("[LINK] %s", name)
		}
	}
	if statErr != nil {
		return fmt.Sprintf("[FILE] %s", name)
	}
	return fmt.Sprintf("[FILE] %s (%s)", name, formatSize(info.Size()))
}

func formatSize(size int64) string {
	switch {
	case size < 1024:
		return fmt.Sprintf("%dB", size)
	case size < 1024*1024:
		return fmt.Sprintf("%dKB", size/1024)
	default:
		return fmt.Sprintf("%dMB", size/(1024*1024))
	}
}
