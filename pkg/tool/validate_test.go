package tool

import (
	"encoding/json"
	"testing"
)

func TestCheckArgsTypes(t *testing.T) {
	schema := &JSONSchema{
		Type: "object",
		Properties: map[string]any{
			"s":   map[string]any{"type": "string"},
			"i":   map[string]any{"type": "integer"},
			"n":   map[string]any{"type": "number"},
			"b":   map[string]any{"type": "boolean"},
			"arr": map[string]any{"type": "array"},
			"obj": map[string]any{"type": "object"},
			"odd": map[string]any{"type": "uri"},
		},
	}

	tests := []struct {
		name    string
		args    map[string]any
		wantErr string
	}{
		{name: "all valid", args: map[string]any{
			"s": "x", "i": 3, "n": 1.5, "b": true,
			"arr": []any{1}, "obj": map[string]any{},
		}},
		{name: "float for integer", args: map[string]any{"i": 3.0}},
		{name: "json number for integer", args: map[string]any{"i": json.Number("42")}},
		{name: "integer for number", args: map[string]any{"n": 7}},
		{
			name:    "fractional float for integer",
			args:    map[string]any{"i": 3.5},
			wantErr: "Parameter 'i' has wrong type: expected integer, got number",
		},
		{
			name:    "string for boolean",
			args:    map[string]any{"b": "yes"},
			wantErr: "Parameter 'b' has wrong type: expected boolean, got string",
		},
		{
			name:    "object for array",
			args:    map[string]any{"arr": map[string]any{}},
			wantErr: "Parameter 'arr' has wrong type: expected array, got object",
		},
		// Types outside the known vocabulary never block a call.
		{name: "unknown declared type", args: map[string]any{"odd": 12}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CheckArgs(tt.args, schema)
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || err.Error() != tt.wantErr {
				t.Fatalf("error = %v, want %q", err, tt.wantErr)
			}
		})
	}
}

func TestCheckArgsRequired(t *testing.T) {
	schema := &JSONSchema{
		Type:       "object",
		Properties: map[string]any{"a": map[string]any{"type": "string"}},
		Required:   []string{"a", "b"},
	}

	err := CheckArgs(map[string]any{}, schema)
	if err == nil {
		t.Fatal("expected error")
	}
	want := "Missing required parameter: a; Missing required parameter: b"
	if err.Error() != want {
		t.Fatalf("error = %q, want %q", err.Error(), want)
	}

	// A nil value does not satisfy a required parameter.
	err = CheckArgs(map[string]any{"a": "x", "b": nil}, schema)
	if err == nil || err.Error() != "Missing required parameter: b" {
		t.Fatalf("error = %v, want missing b", err)
	}

	// Nil values for optional parameters skip the type check entirely.
	optional := &JSONSchema{
		Type:       "object",
		Properties: map[string]any{"a": map[string]any{"type": "string"}},
	}
	if err := CheckArgs(map[string]any{"a": nil}, optional); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestCheckArgsNilSchema(t *testing.T) {
	if err := CheckArgs(map[string]any{"anything": 1}, nil); err != nil {
		t.Fatalf("nil schema should accept all args: %v", err)
	}
	if err := CheckArgs(nil, &JSONSchema{Type: "object"}); err != nil {
		t.Fatalf("nil args with no requirements should pass: %v", err)
	}
}
