package toolbuiltin

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spoonos-ai/spoonbot/pkg/security"
	"github.com/spoonos-ai/spoonbot/pkg/tool"
)

const (
	// Files larger than this are refused instead of flooding the model
	// context.
	maxReadFileBytes = 256 * 1024

	binarySniffLen = 8000
)

var readFileSchema = &tool.JSONSchema{
	Type: "object",
	Properties: map[string]any{
		"path": map[string]any{
			"type":        "string",
			"description": "The file path to read (must be within workspace)",
		},
		"offset": map[string]any{
			"type":        "integer",
			"description": "Line number to start reading from (1-based, default: 1)",
		},
		"limit": map[string]any{
			"type":        "integer",
			"description": "Maximum number of lines to return (default: all)",
		},
	},
	Required: []string{"path"},
}

// ReadFileTool reads file contents inside the workspace boundary.
type ReadFileTool struct {
	validator *security.PathValidator
	maxBytes  int64
}

// NewReadFileTool builds a read tool gated by the given path validator.
func NewReadFileTool(validator *security.PathValidator) *ReadFileTool {
	if validator == nil {
		validator = security.NewPathValidator("")
	}
	return &ReadFileTool{validator: validator, maxBytes: maxReadFileBytes}
}

func (t *ReadFileTool) Name() string { return "read_file" }

func (t *ReadFileTool) Description() string {
	return fmt.Sprintf(
		"Read the contents of a file at the given path. Files must be within the workspace: %s",
		t.validator.Workspace())
}

func (t *ReadFileTool) Schema() *tool.JSONSchema { return readFileSchema }

func (t *ReadFileTool) Execute(ctx context.Context, args map[string]any) (string, error) {
	path, err := stringArg(args, "path")
	if err != nil {
		return "", err
	}
	offset, err := optionalInt(args, "offset", 0)
	if err != nil {
		return "", err
	}
	limit, err := optionalInt(args, "limit", 0)
	if err != nil {
		return "", err
	}

	resolved, err := t.validator.ValidateRead(path)
	if err != nil {
		return fmt.Sprintf("Security Error: %v", err), nil
	}

	info, err := os.Stat(resolved)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Sprintf("Error: File not found: %s", path), nil
		}
		if os.IsPermission(err) {
			return fmt.Sprintf("Error: Permission denied: %s", path), nil
		}
		return fmt.Sprintf("Error reading file: %v", err), nil
	}
	if !info.Mode().IsRegular() {
		return fmt.Sprintf("Error: Not a file: %s", path), nil
	}
	if info.Size() > t.maxBytes {
		return fmt.Sprintf("Error: File too large: %s (%d bytes, max %d)",
			path, info.Size(), t.maxBytes), nil
	}

	data, err := os.ReadFile(resolved)
	if err != nil {
		if os.IsPermission(err) {
			return fmt.Sprintf("Error: Permission denied: %s", path), nil
		}
		return fmt.Sprintf("Error reading file: %v", err), nil
	}

	sniff := data
	if len(sniff) > binarySniffLen {
		sniff = sniff[:binarySniffLen]
	}
	if bytes.IndexByte(sniff, 0) >= 0 {
		return fmt.Sprintf("Error: Cannot read binary file: %s", path), nil
	}

	content := string(data)
	if offset > 0 || limit > 0 {
		lines := strings.Split(content, "\n")
		start := 0
		if offset > 0 {
			start = offset - 1
		}
		if start >= len(lines) {
			return fmt.Sprintf("Error: Offset %d is beyond end of file (%d lines)",
				offset, len(lines)), nil
		}
		end := len(lines)
		if limit > 0 && start+limit < end {
			end = start + limit
		}
		content = strings.Join(lines[start:end], "\n")
	}
	return content, nil
}
