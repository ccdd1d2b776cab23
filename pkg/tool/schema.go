package tool

// JSONSchema captures the subset of JSON Schema we require for tool
// parameters. Properties values are kept as raw maps so schemas received from
// remote servers survive round-tripping untouched.
type JSONSchema struct {
	Type       string         `json:"type"`
	Properties map[string]any `json:"properties"`
	Required   []string       `json:"required,omitempty"`
}

// EmptyObjectSchema returns the schema advertised for tools that declare no
// parameters.
func EmptyObjectSchema() *JSONSchema {
	return &JSONSchema{Type: "object", Properties: map[string]any{}}
}

// Definition is the wire form of a tool passed to chat-completion APIs. It
// follows the OpenAI function-calling format, which the Anthropic adapter
// also converts from.
type Definition struct {
	Type     string    `json:"type"` // always "function"
	Function *Function `json:"function"`
}

// Function describes a callable tool.
type Function struct {
	Name        string      `json:"name"`
	Description string      `json:"description"`
	Parameters  *JSONSchema `json:"parameters"`
}

// Define builds the wire definition for a single tool. Tools without a schema
// advertise an empty object so every definition carries a parameters block.
func Define(t Tool) Definition {
	schema := t.Schema()
	if schema == nil {
		schema = EmptyObjectSchema()
	}
	return Definition{
		Type: "function",
		Function: &Function{
			Name:        t.Name(),
			Description: t.Description(),
			Parameters:  schema,
		},
	}
}
