// Package toolbuiltin provides the native tools every agent starts with:
// shell execution, file read/write/edit, directory listing, web fetching and
// background tasks. Every tool folds expected failures (blocked paths,
// missing files, bad input) into its textual result so the conversation can
// observe and recover from them; returned errors are reserved for broken
// plumbing.
package toolbuiltin

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// stringArg extracts a required string argument.
func stringArg(args map[string]any, key string) (string, error) {
	raw, ok := args[key]
	if !ok || raw == nil {
		return "", fmt.Errorf("%s is required", key)
	}
	value, err := coerceString(raw)
	if err != nil {
		return "", fmt.Errorf("%s must be string: %w", key, err)
	}
	return value, nil
}

// optionalString extracts an optional string argument, returning "" when the
// argument is absent.
func optionalString(args map[string]any, key string) (string, error) {
	raw, ok := args[key]
	if !ok || raw == nil {
		return "", nil
	}
	value, err := coerceString(raw)
	if err != nil {
		return "", fmt.Errorf("%s must be string: %w", key, err)
	}
	return value, nil
}

// optionalBool extracts an optional boolean argument.
func optionalBool(args map[string]any, key string, def bool) (bool, error) {
	raw, ok := args[key]
	if !ok || raw == nil {
		return def, nil
	}
	switch v := raw.(type) {
	case bool:
		return v, nil
	case string:
		trimmed := strings.TrimSpace(v)
		if trimmed == "" {
			return def, nil
		}
		parsed, err := strconv.ParseBool(trimmed)
		if err != nil {
			return false, fmt.Errorf("%s must be boolean: %w", key, err)
		}
		return parsed, nil
	default:
		return false, fmt.Errorf("%s must be boolean got %T", key, raw)
	}
}

// optionalInt extracts an optional integer argument. JSON decoding hands
// numbers over as float64, so whole-valued floats are accepted.
func optionalInt(args map[string]any, key string, def int) (int, error) {
	raw, ok := args[key]
	if !ok || raw == nil {
		return def, nil
	}
	switch v := raw.(type) {
	case int:
		return v, nil
	case int64:
		return int(v), nil
	case float64:
		if math.Trunc(v) != v {
			return 0, fmt.Errorf("%s must be integer got %v", key, v)
		}
		return int(v), nil
	case json.Number:
		parsed, err := v.Int64()
		if err != nil {
			return 0, fmt.Errorf("%s must be integer: %w", key, err)
		}
		return int(parsed), nil
	case string:
		parsed, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return 0, fmt.Errorf("%s must be integer: %w", key, err)
		}
		return parsed, nil
	default:
		return 0, fmt.Errorf("%s must be integer got %T", key, raw)
	}
}

func coerceString(value any) (string, error) {
	switch v := value.(type) {
	case string:
		return v, nil
	case json.Number:
		return v.String(), nil
	case fmt.Stringer:
		return v.String(), nil
	case []byte:
		return string(v), nil
	default:
		return "", fmt.Errorf("expected string got %T", value)
	}
}
