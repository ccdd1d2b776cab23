// Package tool defines the contract every agent capability implements and the
// registry that dispatches model-issued tool calls.
package tool

import "context"

// Tool represents an executable capability exposed to the model.
type Tool interface {
	// Name returns the unique identifier of the tool.
	Name() string

	// Description gives a short human readable summary.
	Description() string

	// Schema describes the tool parameters. Nil means the tool does not
	// expect input.
	Schema() *JSONSchema

	// Execute runs the tool and returns its textual result. Expected
	// failures (bad input, missing files, blocked paths) are reported in
	// the returned text; the error is reserved for unexpected breakage.
	Execute(ctx context.Context, args map[string]any) (string, error)
}
