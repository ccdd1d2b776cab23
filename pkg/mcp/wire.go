package mcp

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// rpcRequest is one line on the subprocess channel.
type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int64  `json:"id"`
	Method  string `json:"method"`
	Params  any    `json:"params"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  json.RawMessage `json:"error"`
}

// callParams is the tools/call payload, shared by both transports.
type callParams struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

// toolDescriptor is one entry of a tools/list response.
type toolDescriptor struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	InputSchema map[string]any `json:"inputSchema"`
}

// decodeToolList accepts both framings seen in the wild: an object wrapping a
// "tools" array, or the bare array itself.
func decodeToolList(data []byte) ([]toolDescriptor, error) {
	var wrapped struct {
		Tools []toolDescriptor `json:"tools"`
	}
	if err := json.Unmarshal(data, &wrapped); err == nil {
		return wrapped.Tools, nil
	}
	var bare []toolDescriptor
	if err := json.Unmarshal(data, &bare); err != nil {
		return nil, fmt.Errorf("decode tools list: %w", err)
	}
	return bare, nil
}

// renderRPCResult turns one subprocess response line into conversation text.
func renderRPCResult(line []byte) string {
	var resp rpcResponse
	if err := json.Unmarshal(line, &resp); err != nil {
		return fmt.Sprintf("Error: %s", err)
	}
	if notNull(resp.Error) {
		return fmt.Sprintf("Error: %s", stringifyJSON(resp.Error))
	}
	if notNull(resp.Result) {
		return renderToolResult(resp.Result)
	}
	return "No response from MCP server"
}

// renderHTTPResult turns a tools/call response body into conversation text.
// Unlike the subprocess channel there is no JSON-RPC envelope; the body is the
// result itself, optionally carrying an error field.
func renderHTTPResult(body []byte) string {
	var probe struct {
		Error json.RawMessage `json:"error"`
	}
	if err := json.Unmarshal(body, &probe); err == nil && notNull(probe.Error) {
		return fmt.Sprintf("Error: %s", stringifyJSON(probe.Error))
	}
	return renderToolResult(body)
}

// renderToolResult extracts result.content[0].text when present, falling back
// to the raw JSON.
func renderToolResult(result json.RawMessage) string {
	var m map[string]any
	if err := json.Unmarshal(result, &m); err == nil {
		if text, ok := contentText(m); ok {
			return text
		}
	}
	return stringifyJSON(result)
}

func contentText(m map[string]any) (string, bool) {
	content, ok := m["content"].([]any)
	if !ok || len(content) == 0 {
		return "", false
	}
	first, ok := content[0].(map[string]any)
	if !ok {
		return "", false
	}
	text, ok := first["text"].(string)
	return text, ok
}

// stringifyJSON renders a raw JSON value for display: plain strings lose
// their quotes, everything else stays as its JSON text.
func stringifyJSON(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(bytes.TrimSpace(raw))
}

func notNull(raw json.RawMessage) bool {
	return len(raw) > 0 && !bytes.Equal(raw, []byte("null"))
}
