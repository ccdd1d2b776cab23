package model

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"strings"
	"time"

	anthropicsdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/spoonos-ai/spoonbot/pkg/message"
	"github.com/spoonos-ai/spoonbot/pkg/tool"
)

// AnthropicConfig wires a plain anthropic-sdk-go client into the Model interface.
type AnthropicConfig struct {
	APIKey     string
	BaseURL    string
	Model      string
	MaxTokens  int
	MaxRetries int
	HTTPClient *http.Client
}

type anthropicMessages interface {
	New(ctx context.Context, params anthropicsdk.MessageNewParams, opts ...option.RequestOption) (*anthropicsdk.Message, error)
}

type anthropicModel struct {
	msgs       anthropicMessages
	model      anthropicsdk.Model
	maxTokens  int
	maxRetries int
}

// NewAnthropic constructs an Anthropic-backed Model.
func NewAnthropic(cfg AnthropicConfig) (Model, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, errors.New("anthropic: api key required")
	}

	opts := []option.RequestOption{
		// Explicitly set the API key so it overrides any ANTHROPIC_AUTH_TOKEN
		// or ANTHROPIC_API_KEY from the environment (DefaultClientOptions).
		option.WithAPIKey(apiKey),
		// Also set auth token for gateways that require Authorization: Bearer.
		option.WithAuthToken(apiKey),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	if cfg.HTTPClient != nil {
		opts = append(opts, option.WithHTTPClient(cfg.HTTPClient))
	}

	client := anthropicsdk.NewClient(opts...)
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 4096
	}
	retries := cfg.MaxRetries
	if retries <= 0 {
		retries = 10
	}

	return &anthropicModel{
		msgs:       &client.Messages,
		model:      mapAnthropicModel(cfg.Model),
		maxTokens:  maxTokens,
		maxRetries: retries,
	}, nil
}

// Chat issues a non-streaming completion.
func (m *anthropicModel) Chat(ctx context.Context, req *Request) (*Response, error) {
	var resp *Response
	err := m.doWithRetry(ctx, func(ctx context.Context) error {
		params, err := m.buildParams(req)
		if err != nil {
			return err
		}

		msg, err := m.msgs.New(ctx, params)
		if err != nil {
			return err
		}
		resp = convertAnthropicResponse(msg)
		return nil
	})
	return resp, err
}

func (m *anthropicModel) buildParams(req *Request) (anthropicsdk.MessageNewParams, error) {
	systemBlocks, messageParams := convertAnthropicMessages(req.Messages)

	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = m.maxTokens
	}

	params := anthropicsdk.MessageNewParams{
		Model:     m.model,
		MaxTokens: int64(maxTokens),
		Messages:  messageParams,
	}
	if len(systemBlocks) > 0 {
		params.System = systemBlocks
	}
	if len(req.Tools) > 0 {
		tools, err := convertAnthropicTools(req.Tools)
		if err != nil {
			return anthropicsdk.MessageNewParams{}, err
		}
		params.Tools = tools
	}
	return params, nil
}

func (m *anthropicModel) doWithRetry(ctx context.Context, fn func(context.Context) error) error {
	attempts := 0
	for {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		// Check context before deciding to retry
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if !isAnthropicRetryable(err) || attempts >= m.maxRetries {
			return err
		}
		attempts++
		backoff := time.Duration(attempts*attempts) * 100 * time.Millisecond
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
	}
}

func isAnthropicRetryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var apiErr *anthropicsdk.Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode != http.StatusUnauthorized
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return true
		}
		//nolint:staticcheck // Temporary is deprecated but still the best signal for transient socket errors.
		return netErr.Temporary()
	}
	return true
}

// convertAnthropicMessages splits system turns out of the conversation and
// maps the rest onto the alternating user/assistant shape the API expects.
// Tool results travel as user messages carrying tool_result blocks.
func convertAnthropicMessages(msgs []message.Message) ([]anthropicsdk.TextBlockParam, []anthropicsdk.MessageParam) {
	var systemBlocks []anthropicsdk.TextBlockParam

	messageParams := make([]anthropicsdk.MessageParam, 0, len(msgs))
	for _, msg := range msgs {
		switch msg.Role {
		case message.RoleSystem:
			if trimmed := strings.TrimSpace(msg.Content); trimmed != "" {
				systemBlocks = append(systemBlocks, anthropicsdk.TextBlockParam{Text: trimmed})
			}
			continue
		case message.RoleAssistant:
			messageParams = append(messageParams, anthropicsdk.MessageParam{
				Role:    anthropicsdk.MessageParamRoleAssistant,
				Content: buildAnthropicAssistantContent(msg),
			})
		case message.RoleTool:
			messageParams = append(messageParams, anthropicsdk.MessageParam{
				Role:    anthropicsdk.MessageParamRoleUser,
				Content: buildAnthropicToolResult(msg),
			})
		default:
			text := msg.Content
			if strings.TrimSpace(text) == "" {
				text = "."
			}
			messageParams = append(messageParams, anthropicsdk.MessageParam{
				Role:    anthropicsdk.MessageParamRoleUser,
				Content: []anthropicsdk.ContentBlockParamUnion{anthropicsdk.NewTextBlock(text)},
			})
		}
	}

	if len(messageParams) == 0 {
		messageParams = append(messageParams, anthropicsdk.MessageParam{
			Role:    anthropicsdk.MessageParamRoleUser,
			Content: []anthropicsdk.ContentBlockParamUnion{anthropicsdk.NewTextBlock(".")},
		})
	}

	return systemBlocks, messageParams
}

func buildAnthropicAssistantContent(msg message.Message) []anthropicsdk.ContentBlockParamUnion {
	blocks := make([]anthropicsdk.ContentBlockParamUnion, 0, 1+len(msg.ToolCalls))
	if strings.TrimSpace(msg.Content) != "" {
		blocks = append(blocks, anthropicsdk.NewTextBlock(msg.Content))
	}
	for _, call := range msg.ToolCalls {
		id := strings.TrimSpace(call.ID)
		name := strings.TrimSpace(call.Name)
		if id == "" || name == "" {
			continue
		}
		blocks = append(blocks, anthropicsdk.NewToolUseBlock(id, call.Arguments, name))
	}
	if len(blocks) == 0 {
		blocks = append(blocks, anthropicsdk.NewTextBlock("."))
	}
	return blocks
}

func buildAnthropicToolResult(msg message.Message) []anthropicsdk.ContentBlockParamUnion {
	id := strings.TrimSpace(msg.ToolCallID)
	if id == "" {
		return []anthropicsdk.ContentBlockParamUnion{anthropicsdk.NewTextBlock(msg.Content)}
	}
	return []anthropicsdk.ContentBlockParamUnion{
		anthropicsdk.NewToolResultBlock(id, msg.Content, false),
	}
}

func convertAnthropicTools(tools []tool.Definition) ([]anthropicsdk.ToolUnionParam, error) {
	out := make([]anthropicsdk.ToolUnionParam, 0, len(tools))
	for _, def := range tools {
		if def.Function == nil {
			continue
		}
		name := strings.TrimSpace(def.Function.Name)
		if name == "" {
			continue
		}

		schema, err := encodeAnthropicSchema(def.Function.Parameters)
		if err != nil {
			return nil, fmt.Errorf("tool %s schema: %w", name, err)
		}

		param := anthropicsdk.ToolParam{
			Name:        name,
			InputSchema: schema,
		}
		if strings.TrimSpace(def.Function.Description) != "" {
			param.Description = anthropicsdk.String(def.Function.Description)
		}

		out = append(out, anthropicsdk.ToolUnionParam{OfTool: &param})
	}
	return out, nil
}

func encodeAnthropicSchema(raw *tool.JSONSchema) (anthropicsdk.ToolInputSchemaParam, error) {
	if raw == nil {
		return anthropicsdk.ToolInputSchemaParam{Type: "object"}, nil
	}
	data, err := json.Marshal(raw)
	if err != nil {
		return anthropicsdk.ToolInputSchemaParam{}, err
	}
	var schema anthropicsdk.ToolInputSchemaParam
	if err := json.Unmarshal(data, &schema); err != nil {
		return anthropicsdk.ToolInputSchemaParam{}, err
	}
	if schema.Type == "" {
		schema.Type = "object"
	}
	return schema, nil
}

func convertAnthropicResponse(msg *anthropicsdk.Message) *Response {
	var textParts []string
	var toolCalls []message.ToolCall
	for _, block := range msg.Content {
		if tc := toolCallFromBlock(block); tc != nil {
			toolCalls = append(toolCalls, *tc)
			continue
		}
		if block.Text != "" {
			textParts = append(textParts, block.Text)
		}
	}

	return &Response{
		Content:    strings.Join(textParts, ""),
		ToolCalls:  toolCalls,
		Model:      string(msg.Model),
		StopReason: string(msg.StopReason),
		Usage: Usage{
			InputTokens:  int(msg.Usage.InputTokens),
			OutputTokens: int(msg.Usage.OutputTokens),
		},
	}
}

func toolCallFromBlock(block anthropicsdk.ContentBlockUnion) *message.ToolCall {
	if block.Type != "tool_use" {
		return nil
	}
	id := strings.TrimSpace(block.ID)
	name := strings.TrimSpace(block.Name)
	if id == "" || name == "" {
		return nil
	}
	args := decodeJSON(block.Input)
	if len(args) == 0 && len(block.Input) > 0 {
		log.Printf("[model] tool_use %q has empty input (raw=%s)", name, string(block.Input))
	}
	return &message.ToolCall{
		ID:        id,
		Name:      name,
		Arguments: args,
	}
}

func decodeJSON(raw json.RawMessage) map[string]any {
	if len(raw) == 0 {
		return nil
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return map[string]any{"raw": string(raw)}
	}
	if v == nil {
		return nil
	}
	if m, ok := v.(map[string]any); ok {
		return m
	}
	return map[string]any{"value": v}
}

// Value of anthropicsdk.ModelClaudeSonnet4_5_20250929; the constant is not
// defined in the SDK version this module pins.
const defaultAnthropicModel = anthropicsdk.Model("claude-sonnet-4-5-20250929")

// mapAnthropicModel passes configured names through so gateway-specific
// aliases keep working, falling back to the default when unset.
func mapAnthropicModel(name string) anthropicsdk.Model {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return defaultAnthropicModel
	}
	return anthropicsdk.Model(trimmed)
}
