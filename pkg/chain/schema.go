package chain

import (
	"errors"
	"fmt"
)

// ErrResponseSchema marks a model response that does not satisfy the spec's
// llm_response schema.
var ErrResponseSchema = errors.New("llm response schema violation")

// ValidateResponse walks the model's decoded JSON against the spec's
// llm_response schema. The schema dialect is deliberately small: json/object
// with required+properties, array with items, string, integer, number, and
// boolean with optional minimum/maximum bounds.
func (s *Spec) ValidateResponse(payload map[string]any) error {
	if err := validateNode(payload, s.LLMResponse, "$"); err != nil {
		return fmt.Errorf("%w: %s", ErrResponseSchema, err)
	}
	return nil
}

func validateNode(value any, schema map[string]any, path string) error {
	schemaType, _ := schema["type"].(string)
	switch schemaType {
	case "json", "object":
		obj, ok := value.(map[string]any)
		if !ok {
			return fmt.Errorf("%s: expected object", path)
		}
		required, _ := schema["required"].([]any)
		for _, f := range required {
			name, ok := f.(string)
			if !ok {
				return fmt.Errorf("%s: invalid required field name", path)
			}
			if _, present := obj[name]; !present {
				return fmt.Errorf("%s.%s: required field is missing", path, name)
			}
		}
		properties, _ := schema["properties"].(map[string]any)
		for key, rawFieldSchema := range properties {
			fieldValue, present := obj[key]
			if !present {
				continue
			}
			fieldSchema, ok := rawFieldSchema.(map[string]any)
			if !ok {
				return fmt.Errorf("%s.%s: field schema must be object", path, key)
			}
			if err := validateNode(fieldValue, fieldSchema, path+"."+key); err != nil {
				return err
			}
		}
		return nil

	case "array":
		arr, ok := value.([]any)
		if !ok {
			return fmt.Errorf("%s: expected array", path)
		}
		itemSchema, ok := schema["items"].(map[string]any)
		if !ok {
			return fmt.Errorf("%s: array schema must define items", path)
		}
		for i, item := range arr {
			if err := validateNode(item, itemSchema, fmt.Sprintf("%s[%d]", path, i)); err != nil {
				return err
			}
		}
		return nil

	case "string":
		if _, ok := value.(string); !ok {
			return fmt.Errorf("%s: expected string", path)
		}
		return nil

	case "integer":
		// encoding/json decodes all numbers as float64; integers must have
		// no fractional part.
		n, ok := value.(float64)
		if !ok || n != float64(int64(n)) {
			return fmt.Errorf("%s: expected integer", path)
		}
		return checkBounds(n, schema, path)

	case "number":
		n, ok := value.(float64)
		if !ok {
			return fmt.Errorf("%s: expected number", path)
		}
		return checkBounds(n, schema, path)

	case "boolean":
		if _, ok := value.(bool); !ok {
			return fmt.Errorf("%s: expected boolean", path)
		}
		return nil

	default:
		return fmt.Errorf("%s: unsupported schema type '%s'", path, schemaType)
	}
}

func checkBounds(n float64, schema map[string]any, path string) error {
	if minVal, ok := toFloat(schema["minimum"]); ok && n < minVal {
		return fmt.Errorf("%s: value is below minimum", path)
	}
	if maxVal, ok := toFloat(schema["maximum"]); ok && n > maxVal {
		return fmt.Errorf("%s: value is above maximum", path)
	}
	return nil
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}
