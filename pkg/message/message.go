package message

// Conversation roles understood by the chat-completion providers.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// Message represents a single conversational turn. It is purposefully minimal
// to keep the history layer independent from concrete model providers.
type Message struct {
	Role    string
	Content string

	// ToolCalls carries the tool invocations requested by an assistant turn.
	ToolCalls []ToolCall

	// ToolCallID and ToolName link a tool-result turn back to the call that
	// produced it.
	ToolCallID string
	ToolName   string
}

// ToolCall mirrors the shape of a tool invocation produced by the assistant.
type ToolCall struct {
	ID        string
	Name      string
	Arguments map[string]any
}

// NewSystemMessage builds a system turn. Providers lift these out of the
// conversation and into their native system-prompt slot.
func NewSystemMessage(content string) Message {
	return Message{Role: RoleSystem, Content: content}
}

// NewUserMessage builds a plain user turn.
func NewUserMessage(content string) Message {
	return Message{Role: RoleUser, Content: content}
}

// NewAssistantMessage builds an assistant turn, optionally carrying tool calls.
func NewAssistantMessage(content string, calls []ToolCall) Message {
	return Message{Role: RoleAssistant, Content: content, ToolCalls: calls}
}

// NewToolResultMessage builds the turn that reports a tool outcome back to the
// model.
func NewToolResultMessage(callID, toolName, output string) Message {
	return Message{Role: RoleTool, ToolCallID: callID, ToolName: toolName, Content: output}
}

// CloneMessage performs a deep clone, duplicating nested maps to avoid
// mutation leaks between callers.
func CloneMessage(msg Message) Message {
	clone := Message{
		Role:       msg.Role,
		Content:    msg.Content,
		ToolCallID: msg.ToolCallID,
		ToolName:   msg.ToolName,
	}
	clone.ToolCalls = cloneToolCalls(msg.ToolCalls)
	return clone
}

// CloneMessages clones an entire slice of messages.
func CloneMessages(msgs []Message) []Message {
	if len(msgs) == 0 {
		return []Message{}
	}
	out := make([]Message, len(msgs))
	for i, msg := range msgs {
		out[i] = CloneMessage(msg)
	}
	return out
}

func cloneToolCalls(calls []ToolCall) []ToolCall {
	if len(calls) == 0 {
		return nil
	}
	out := make([]ToolCall, len(calls))
	for i, call := range calls {
		out[i] = ToolCall{ID: call.ID, Name: call.Name, Arguments: cloneMap(call.Arguments)}
	}
	return out
}

func cloneMap(input map[string]any) map[string]any {
	if input == nil {
		return nil
	}
	dup := make(map[string]any, len(input))
	for k, v := range input {
		dup[k] = v
	}
	return dup
}
