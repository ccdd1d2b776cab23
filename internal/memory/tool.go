package memory

import (
	"context"
	"fmt"
	"strings"

	"github.com/spoonos-ai/spoonbot/pkg/tool"
)

// ManagementTool exposes the store to the model as a single "memory" tool
// with remember/note/search/forget/summary actions.
type ManagementTool struct {
	store *Store
}

// NewManagementTool wraps a store.
func NewManagementTool(store *Store) *ManagementTool {
	return &ManagementTool{store: store}
}

func (t *ManagementTool) Name() string {
	return "memory"
}

func (t *ManagementTool) Description() string {
	return `Manage agent memory. Actions:
- remember <content> [category]: Add a fact to long-term memory
- note <content>: Add a note to today's daily file
- search <query>: Search memory for matching content
- forget <content>: Remove a memory entry
- summary: Get memory summary`
}

func (t *ManagementTool) Schema() *tool.JSONSchema {
	return &tool.JSONSchema{
		Type: "object",
		Properties: map[string]any{
			"action": map[string]any{
				"type":        "string",
				"enum":        []string{"remember", "note", "search", "forget", "summary"},
				"description": "Action to perform",
			},
			"content": map[string]any{
				"type":        "string",
				"description": "Content for remember/note/forget",
			},
			"query": map[string]any{
				"type":        "string",
				"description": "Search query",
			},
			"category": map[string]any{
				"type":        "string",
				"description": "Category for remember (default: 'Facts')",
			},
		},
		Required: []string{"action"},
	}
}

func (t *ManagementTool) Execute(ctx context.Context, args map[string]any) (string, error) {
	if t.store == nil {
		return "Error: Memory store not initialized", nil
	}

	action, _ := args["action"].(string)
	content, _ := args["content"].(string)
	query, _ := args["query"].(string)
	category, _ := args["category"].(string)

	switch action {
	case "remember":
		if content == "" {
			return "Error: 'content' is required for 'remember' action", nil
		}
		if err := t.store.Remember(content, category); err != nil {
			return "", err
		}
		return fmt.Sprintf("Remembered: %s...", preview(content, 50)), nil

	case "note":
		if content == "" {
			return "Error: 'content' is required for 'note' action", nil
		}
		if err := t.store.Note(content); err != nil {
			return "", err
		}
		return fmt.Sprintf("Added note for today: %s...", preview(content, 50)), nil

	case "search":
		if query == "" {
			return "Error: 'query' is required for 'search' action", nil
		}
		results := t.store.Search(query)
		if len(results) == 0 {
			return "No results found", nil
		}
		return "Search results:\n" + strings.Join(results, "\n"), nil

	case "forget":
		if content == "" {
			return "Error: 'content' is required for 'forget' action", nil
		}
		if t.store.Forget(content) {
			p := content
			if len([]rune(content)) > 50 {
				p = preview(content, 50) + "..."
			}
			return fmt.Sprintf("Warning: Memory removed permanently: %s", p), nil
		}
		return "Memory not found", nil

	case "summary":
		return t.store.Summary(), nil
	}

	return fmt.Sprintf("Unknown action: %s", action), nil
}

// preview returns the first n runes of s.
func preview(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
