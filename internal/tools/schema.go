package tools

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/Zeyadelgabbas/speech-speech-ai-assistant/pkg/types"
)

// ValidateArgs checks a JSON argument string against the tool's parameter
// schema. It enforces the subset of JSON Schema the registry relies on:
// top-level object shape, required properties, and primitive property types.
// Unknown properties are rejected when the schema declares a property set,
// since a hallucinated argument name usually means the model misread the
// schema.
func ValidateArgs(def types.ToolDefinition, args string) error {
	if len(def.Parameters) == 0 {
		return nil
	}

	if strings.TrimSpace(args) == "" {
		args = "{}"
	}
	var obj map[string]any
	if err := json.Unmarshal([]byte(args), &obj); err != nil {
		return fmt.Errorf("arguments must be a JSON object: %v", err)
	}

	props, _ := def.Parameters["properties"].(map[string]any)

	for _, name := range requiredNames(def.Parameters["required"]) {
		if _, present := obj[name]; !present {
			return fmt.Errorf("missing required property %q", name)
		}
	}

	if props == nil {
		return nil
	}
	for name, value := range obj {
		schema, ok := props[name].(map[string]any)
		if !ok {
			return fmt.Errorf("unknown property %q", name)
		}
		declared, _ := schema["type"].(string)
		if declared == "" {
			continue
		}
		if err := checkType(declared, value); err != nil {
			return fmt.Errorf("property %q: %w", name, err)
		}
	}
	return nil
}

// requiredNames extracts the required-property list, which is []string in
// hand-built schemas and []any after a JSON round-trip.
func requiredNames(v any) []string {
	switch req := v.(type) {
	case []string:
		return req
	case []any:
		names := make([]string, 0, len(req))
		for _, r := range req {
			if s, ok := r.(string); ok {
				names = append(names, s)
			}
		}
		return names
	default:
		return nil
	}
}

// checkType matches a decoded JSON value against a JSON Schema type name.
func checkType(declared string, value any) error {
	if value == nil {
		// null is tolerated for any optional property.
		return nil
	}
	ok := false
	switch declared {
	case "string":
		_, ok = value.(string)
	case "number":
		_, ok = value.(float64)
	case "integer":
		f, isNum := value.(float64)
		ok = isNum && f == float64(int64(f))
	case "boolean":
		_, ok = value.(bool)
	case "array":
		_, ok = value.([]any)
	case "object":
		_, ok = value.(map[string]any)
	default:
		// Unrecognized schema type; do not reject what we cannot check.
		return nil
	}
	if !ok {
		return fmt.Errorf("expected %s, got %T", declared, value)
	}
	return nil
}
