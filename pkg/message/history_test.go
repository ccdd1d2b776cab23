package message

import "testing"

func TestHistoryAppendAndSnapshot(t *testing.T) {
	h := NewHistory()
	h.Append(NewUserMessage("hello"))
	h.Append(NewAssistantMessage("hi", nil))

	if h.Len() != 2 {
		t.Fatalf("len = %d, want 2", h.Len())
	}

	snapshot := h.All()
	if snapshot[0].Content != "hello" || snapshot[1].Content != "hi" {
		t.Fatalf("unexpected snapshot order: %+v", snapshot)
	}

	// Mutating the snapshot must not leak back into the history.
	snapshot[0].Content = "mutated"
	if got := h.All()[0].Content; got != "hello" {
		t.Fatalf("history mutated through snapshot: %q", got)
	}
}

func TestHistoryCloneIsolatesToolCallArguments(t *testing.T) {
	args := map[string]any{"path": "a.txt"}
	h := NewHistory()
	h.Append(NewAssistantMessage("", []ToolCall{{ID: "c1", Name: "read_file", Arguments: args}}))

	args["path"] = "b.txt"
	got := h.All()[0].ToolCalls[0].Arguments["path"]
	if got != "a.txt" {
		t.Fatalf("arguments not cloned on append: %v", got)
	}

	snap := h.All()
	snap[0].ToolCalls[0].Arguments["path"] = "c.txt"
	if got := h.All()[0].ToolCalls[0].Arguments["path"]; got != "a.txt" {
		t.Fatalf("arguments not cloned on read: %v", got)
	}
}

func TestHistoryLast(t *testing.T) {
	h := NewHistory()
	if _, ok := h.Last(); ok {
		t.Fatal("expected no last message on empty history")
	}

	h.Append(NewToolResultMessage("c1", "shell", "ok"))
	last, ok := h.Last()
	if !ok {
		t.Fatal("expected last message")
	}
	if last.Role != RoleTool || last.ToolCallID != "c1" || last.ToolName != "shell" {
		t.Fatalf("unexpected last message: %+v", last)
	}

	h.Reset()
	if h.Len() != 0 {
		t.Fatalf("len after reset = %d", h.Len())
	}
}
