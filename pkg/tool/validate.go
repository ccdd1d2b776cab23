package tool

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
)

// CheckArgs verifies call arguments against a tool schema before execution:
// every required parameter must be present and non-nil, and parameters that
// declare one of the primitive JSON types must match it. Nil values and
// unknown type declarations skip the type check so remote schemas with richer
// vocabularies never block a call.
//
// All problems are collected and joined with "; " so the model sees the full
// list in a single round trip.
func CheckArgs(args map[string]any, schema *JSONSchema) error {
	if schema == nil {
		return nil
	}
	if args == nil {
		args = map[string]any{}
	}

	var problems []string

	for _, name := range schema.Required {
		if v, ok := args[name]; !ok || v == nil {
			problems = append(problems, fmt.Sprintf("Missing required parameter: %s", name))
		}
	}

	for _, name := range sortedKeys(schema.Properties) {
		value, ok := args[name]
		if !ok || value == nil {
			continue
		}
		declared := declaredType(schema.Properties[name])
		if declared == "" {
			continue
		}
		if !matchesType(value, declared) {
			problems = append(problems, fmt.Sprintf("Parameter '%s' has wrong type: expected %s, got %s",
				name, declared, jsonTypeName(value)))
		}
	}

	if len(problems) == 0 {
		return nil
	}
	return errors.New(strings.Join(problems, "; "))
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func declaredType(property any) string {
	def, ok := property.(map[string]any)
	if !ok {
		return ""
	}
	name, _ := def["type"].(string)
	return name
}

// matchesType reports whether value satisfies the declared JSON type. Types
// outside the known vocabulary validate as true.
func matchesType(value any, declared string) bool {
	switch declared {
	case "string":
		_, ok := value.(string)
		return ok
	case "integer":
		return isInteger(value)
	case "number":
		return isNumber(value)
	case "boolean":
		_, ok := value.(bool)
		return ok
	case "array":
		_, ok := value.([]any)
		return ok
	case "object":
		_, ok := value.(map[string]any)
		return ok
	default:
		return true
	}
}

func isNumber(value any) bool {
	switch v := value.(type) {
	case float32, float64:
		return true
	case int, int8, int16, int32, int64:
		return true
	case uint, uint8, uint16, uint32, uint64:
		return true
	case json.Number:
		_, err := v.Float64()
		return err == nil
	}
	return false
}

// isInteger accepts native integers plus whole-valued floats, because JSON
// decoding hands every number to us as float64.
func isInteger(value any) bool {
	switch v := value.(type) {
	case int, int8, int16, int32, int64:
		return true
	case uint, uint8, uint16, uint32, uint64:
		return true
	case float32:
		return math.Trunc(float64(v)) == float64(v)
	case float64:
		return math.Trunc(v) == v
	case json.Number:
		_, err := v.Int64()
		return err == nil
	}
	return false
}

// jsonTypeName names a runtime value using JSON vocabulary for error messages.
func jsonTypeName(value any) string {
	switch v := value.(type) {
	case nil:
		return "null"
	case bool:
		return "boolean"
	case string:
		return "string"
	case []any:
		return "array"
	case map[string]any:
		return "object"
	case float32, float64, json.Number:
		if isInteger(v) {
			return "integer"
		}
		return "number"
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return "integer"
	default:
		return fmt.Sprintf("%T", value)
	}
}
