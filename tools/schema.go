// Argument schemas for tool calls.
//
// Information Hiding:
// - Schema reflection from argument structs hidden behind helpers
// - The JSON Schema subset used for checking hidden from tool authors

package tools

import (
	"encoding/json"
	"fmt"
	"math"

	"github.com/invopop/jsonschema"
)

// JSONSchema captures the subset of JSON Schema used for tool call checking.
type JSONSchema struct {
	Type       string                 `json:"type"`
	Properties map[string]interface{} `json:"properties,omitempty"`
	Required   []string               `json:"required,omitempty"`
}

// Map returns the schema as a generic map for provider tool definitions.
func (s *JSONSchema) Map() map[string]interface{} {
	if s == nil {
		return map[string]interface{}{"type": "object"}
	}
	raw, err := json.Marshal(s)
	if err != nil {
		return map[string]interface{}{"type": "object"}
	}
	var m map[string]interface{}
	if err := json.Unmarshal(raw, &m); err != nil {
		return map[string]interface{}{"type": "object"}
	}
	return m
}

// SchemaProvider is implemented by tools whose argument schema is reflected
// from a Go struct rather than derived from metadata.
type SchemaProvider interface {
	ArgsSchema() *JSONSchema
}

// SchemaFor returns the argument schema for a tool. Tools that implement
// SchemaProvider supply a reflected schema; for the rest the schema is
// derived from the declared parameter metadata.
func SchemaFor(t Tool) *JSONSchema {
	if sp, ok := t.(SchemaProvider); ok {
		if s := sp.ArgsSchema(); s != nil {
			return s
		}
	}

	meta := t.Metadata()
	schema := &JSONSchema{
		Type:       "object",
		Properties: make(map[string]interface{}, len(meta.Parameters)),
	}
	for _, p := range meta.Parameters {
		schema.Properties[p.Name] = map[string]interface{}{
			"type":        p.ParamType,
			"description": p.Description,
		}
		if p.Required {
			schema.Required = append(schema.Required, p.Name)
		}
	}
	return schema
}

// ReflectArgs builds a JSONSchema from an argument struct via reflection.
// Optional fields carry ",omitempty" in their json tags; everything else
// is required.
func ReflectArgs(v interface{}) *JSONSchema {
	reflected := jsonschema.Reflect(v)

	// Reflect produces a $ref into Definitions; flat argument structs have
	// exactly one definition.
	var inner *jsonschema.Schema
	for _, def := range reflected.Definitions {
		inner = def
	}
	if inner == nil {
		return &JSONSchema{Type: "object"}
	}

	raw, err := inner.MarshalJSON()
	if err != nil {
		return &JSONSchema{Type: "object"}
	}
	var schema JSONSchema
	if err := json.Unmarshal(raw, &schema); err != nil {
		return &JSONSchema{Type: "object"}
	}
	if schema.Type == "" {
		schema.Type = "object"
	}
	return &schema
}

// checkSchema verifies decoded arguments against a schema: required fields
// present, no unknown fields, primitive types matching. Unknown fields are
// rejected because invented argument names are exactly the failure mode
// this layer exists to surface.
func checkSchema(params map[string]interface{}, schema *JSONSchema) error {
	if schema == nil {
		return nil
	}
	if params == nil {
		params = map[string]interface{}{}
	}

	for _, field := range schema.Required {
		if _, exists := params[field]; !exists {
			return fmt.Errorf("missing required field: %s", field)
		}
	}

	for key, value := range params {
		propDef, ok := schema.Properties[key]
		if !ok {
			return fmt.Errorf("unknown field: %s", key)
		}

		expectedType := extractExpectedType(propDef)
		if expectedType == "" {
			continue
		}

		if err := validateType(value, expectedType); err != nil {
			return fmt.Errorf("field %s: %w", key, err)
		}
	}

	return nil
}

func extractExpectedType(definition interface{}) string {
	if def, ok := definition.(map[string]interface{}); ok {
		if value, ok := def["type"].(string); ok {
			return value
		}
	}
	return ""
}

func validateType(value interface{}, expected string) error {
	switch expected {
	case "string":
		if _, ok := value.(string); ok {
			return nil
		}
	case "number":
		if isNumber(value) {
			return nil
		}
	case "integer":
		if isInteger(value) {
			return nil
		}
	case "boolean":
		if _, ok := value.(bool); ok {
			return nil
		}
	case "object":
		if value == nil {
			break
		}
		if _, ok := value.(map[string]interface{}); ok {
			return nil
		}
	case "array":
		if _, ok := value.([]interface{}); ok {
			return nil
		}
	default:
		return fmt.Errorf("unsupported schema type %q", expected)
	}
	return fmt.Errorf("expected %s but got %T", expected, value)
}

func isNumber(value interface{}) bool {
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

func isInteger(value interface{}) bool {
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
