package mcp

import (
	"context"

	"github.com/spoonos-ai/spoonbot/pkg/tool"
)

// RemoteTool adapts one provider-hosted tool to the local tool contract. Its
// registry name is "provider:tool" so two providers can expose the same tool
// name without colliding.
type RemoteTool struct {
	client      *Client
	provider    string
	remoteName  string
	description string
	schema      *tool.JSONSchema
}

func newRemoteTool(client *Client, provider string, desc toolDescriptor) *RemoteTool {
	return &RemoteTool{
		client:      client,
		provider:    provider,
		remoteName:  desc.Name,
		description: desc.Description,
		schema:      schemaFromWire(desc.InputSchema),
	}
}

// Name returns the provider-prefixed tool name.
func (t *RemoteTool) Name() string {
	return t.provider + ":" + t.remoteName
}

// Provider returns the name of the provider hosting this tool.
func (t *RemoteTool) Provider() string {
	return t.provider
}

// RemoteName returns the tool's name as the provider advertises it.
func (t *RemoteTool) RemoteName() string {
	return t.remoteName
}

func (t *RemoteTool) Description() string {
	return t.description
}

func (t *RemoteTool) Schema() *tool.JSONSchema {
	return t.schema
}

// Execute forwards the call to the provider. Transport faults come back as
// text, so remote breakage reads like any other tool failure.
func (t *RemoteTool) Execute(ctx context.Context, args map[string]any) (string, error) {
	return t.client.CallTool(ctx, t.provider, t.remoteName, args), nil
}

// schemaFromWire converts a provider's inputSchema into the local schema
// shape. Absent or empty schemas become the empty object schema so every
// definition still advertises a parameters block.
func schemaFromWire(m map[string]any) *tool.JSONSchema {
	if len(m) == 0 {
		return tool.EmptyObjectSchema()
	}
	s := &tool.JSONSchema{Type: "object", Properties: map[string]any{}}
	if typ, ok := m["type"].(string); ok && typ != "" {
		s.Type = typ
	}
	if props, ok := m["properties"].(map[string]any); ok {
		s.Properties = props
	}
	if req, ok := m["required"].([]any); ok {
		for _, entry := range req {
			if name, ok := entry.(string); ok {
				s.Required = append(s.Required, name)
			}
		}
	}
	return s
}
