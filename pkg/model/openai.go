package model

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"

	"github.com/spoonos-ai/spoonbot/pkg/message"
	"github.com/spoonos-ai/spoonbot/pkg/tool"
)

// OpenAIConfig configures the OpenAI-backed Model.
type OpenAIConfig struct {
	APIKey     string
	BaseURL    string // Optional: for Azure or proxies
	Model      string // e.g., "gpt-4o", "gpt-4-turbo"
	MaxTokens  int
	MaxRetries int
	HTTPClient *http.Client
}

type openaiChatCompletions interface {
	New(ctx context.Context, params openai.ChatCompletionNewParams, opts ...option.RequestOption) (*openai.ChatCompletion, error)
}

type openaiModel struct {
	completions openaiChatCompletions
	model       string
	maxTokens   int
	maxRetries  int
}

const (
	defaultOpenAIModel      = "gpt-4o"
	defaultOpenAIMaxTokens  = 4096
	defaultOpenAIMaxRetries = 10
)

// NewOpenAI constructs an OpenAI-backed Model.
func NewOpenAI(cfg OpenAIConfig) (Model, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, errors.New("openai: api key required")
	}

	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	if cfg.HTTPClient != nil {
		opts = append(opts, option.WithHTTPClient(cfg.HTTPClient))
	}

	client := openai.NewClient(opts...)
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultOpenAIMaxTokens
	}
	retries := cfg.MaxRetries
	if retries <= 0 {
		retries = defaultOpenAIMaxRetries
	}

	modelName := strings.TrimSpace(cfg.Model)
	if modelName == "" {
		modelName = defaultOpenAIModel
	}

	return &openaiModel{
		completions: &client.Chat.Completions,
		model:       modelName,
		maxTokens:   maxTokens,
		maxRetries:  retries,
	}, nil
}

// Chat issues a non-streaming completion.
func (m *openaiModel) Chat(ctx context.Context, req *Request) (*Response, error) {
	params := m.buildParams(req)

	var resp *Response
	err := m.doWithRetry(ctx, func(ctx context.Context) error {
		completion, err := m.completions.New(ctx, params)
		if err != nil {
			return err
		}
		resp = convertOpenAIResponse(completion)
		return nil
	})
	return resp, err
}

func (m *openaiModel) buildParams(req *Request) openai.ChatCompletionNewParams {
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = m.maxTokens
	}

	params := openai.ChatCompletionNewParams{
		Model:               shared.ChatModel(m.model),
		MaxCompletionTokens: openai.Int(int64(maxTokens)),
		Messages:            convertOpenAIMessages(req.Messages),
	}
	if len(req.Tools) > 0 {
		params.Tools = convertOpenAITools(req.Tools)
	}
	return params
}

func (m *openaiModel) doWithRetry(ctx context.Context, fn func(context.Context) error) error {
	attempts := 0
	for {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if !isOpenAIRetryable(err) || attempts >= m.maxRetries {
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

func isOpenAIRetryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		// Don't retry authentication errors
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

func convertOpenAIMessages(msgs []message.Message) []openai.ChatCompletionMessageParamUnion {
	var result []openai.ChatCompletionMessageParamUnion

	for _, msg := range msgs {
		switch msg.Role {
		case message.RoleSystem:
			if trimmed := strings.TrimSpace(msg.Content); trimmed != "" {
				result = append(result, openai.SystemMessage(trimmed))
			}
		case message.RoleAssistant:
			result = append(result, buildOpenAIAssistantMessage(msg))
		case message.RoleTool:
			result = append(result, openai.ToolMessage(msg.Content, msg.ToolCallID))
		default: // user
			content := msg.Content
			if strings.TrimSpace(content) == "" {
				content = "."
			}
			result = append(result, openai.UserMessage(content))
		}
	}

	if len(result) == 0 {
		result = append(result, openai.UserMessage("."))
	}

	return result
}

func buildOpenAIAssistantMessage(msg message.Message) openai.ChatCompletionMessageParamUnion {
	assistantParam := openai.ChatCompletionAssistantMessageParam{}

	content := msg.Content
	if strings.TrimSpace(content) == "" {
		content = "."
	}
	assistantParam.Content = openai.ChatCompletionAssistantMessageParamContentUnion{
		OfString: openai.String(content),
	}

	if len(msg.ToolCalls) > 0 {
		var toolCalls []openai.ChatCompletionMessageToolCallParam
		for _, call := range msg.ToolCalls {
			id := strings.TrimSpace(call.ID)
			name := strings.TrimSpace(call.Name)
			if id == "" || name == "" {
				continue
			}

			argsJSON, _ := json.Marshal(call.Arguments) //nolint:errcheck
			toolCalls = append(toolCalls, openai.ChatCompletionMessageToolCallParam{
				ID: id,
				Function: openai.ChatCompletionMessageToolCallFunctionParam{
					Name:      name,
					Arguments: string(argsJSON),
				},
			})
		}
		assistantParam.ToolCalls = toolCalls
	}

	return openai.ChatCompletionMessageParamUnion{
		OfAssistant: &assistantParam,
	}
}

func convertOpenAITools(tools []tool.Definition) []openai.ChatCompletionToolParam {
	var result []openai.ChatCompletionToolParam
	for _, def := range tools {
		if def.Function == nil {
			continue
		}
		name := strings.TrimSpace(def.Function.Name)
		if name == "" {
			continue
		}

		param := openai.ChatCompletionToolParam{
			Function: shared.FunctionDefinitionParam{
				Name:       name,
				Parameters: convertFunctionParameters(def.Function.Parameters),
			},
		}
		if desc := strings.TrimSpace(def.Function.Description); desc != "" {
			param.Function.Description = openai.Opt(desc)
		}

		result = append(result, param)
	}
	return result
}

func convertFunctionParameters(schema *tool.JSONSchema) shared.FunctionParameters {
	if schema == nil {
		return shared.FunctionParameters{
			"type": "object",
		}
	}

	result := shared.FunctionParameters{
		"type":       schema.Type,
		"properties": schema.Properties,
	}
	if result["type"] == "" {
		result["type"] = "object"
	}
	if result["properties"] == nil {
		result["properties"] = map[string]any{}
	}
	if len(schema.Required) > 0 {
		result["required"] = schema.Required
	}
	return result
}

func convertOpenAIResponse(completion *openai.ChatCompletion) *Response {
	if completion == nil || len(completion.Choices) == 0 {
		return &Response{}
	}

	choice := completion.Choices[0]
	msg := choice.Message

	var toolCalls []message.ToolCall
	for _, tc := range msg.ToolCalls {
		toolCalls = append(toolCalls, message.ToolCall{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: parseJSONArgs(tc.Function.Arguments),
		})
	}

	return &Response{
		Content:    msg.Content,
		ToolCalls:  toolCalls,
		Model:      completion.Model,
		StopReason: choice.FinishReason,
		Usage: Usage{
			InputTokens:  int(completion.Usage.PromptTokens),
			OutputTokens: int(completion.Usage.CompletionTokens),
		},
	}
}

func parseJSONArgs(raw string) map[string]any {
	if raw == "" {
		return nil
	}
	var args map[string]any
	if err := json.Unmarshal([]byte(raw), &args); err != nil {
		return map[string]any{"raw": raw}
	}
	return args
}
