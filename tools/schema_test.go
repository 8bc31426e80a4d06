package tools

import (
	"context"
	"encoding/json"
	"testing"
)

func TestReflectArgsRequiredFields(t *testing.T) {
	schema := ReflectArgs(&activityArgs{})

	if schema.Type != "object" {
		t.Errorf("expected object schema, got %q", schema.Type)
	}
	if _, ok := schema.Properties["chembl_id"]; !ok {
		t.Error("chembl_id missing from properties")
	}
	if _, ok := schema.Properties["standard_type"]; !ok {
		t.Error("standard_type missing from properties")
	}

	required := make(map[string]bool)
	for _, f := range schema.Required {
		required[f] = true
	}
	if !required["chembl_id"] {
		t.Error("chembl_id should be required")
	}
	if required["standard_type"] {
		t.Error("standard_type carries omitempty and should be optional")
	}
}

type metadataOnlyTool struct {
	BaseTool
}

func (metadataOnlyTool) Metadata() ToolMetadata {
	return ToolMetadata{
		Name:        "metadata_only",
		Description: "schema derived from declared parameters",
		Parameters: []ToolParameter{
			{Name: "query", ParamType: "string", Description: "q", Required: true},
			{Name: "limit", ParamType: "integer", Description: "n", Required: false},
		},
	}
}

func (metadataOnlyTool) Execute(ctx context.Context, args json.RawMessage) (ToolResult, error) {
	return SuccessResult("ok"), nil
}

func TestSchemaForMetadataFallback(t *testing.T) {
	schema := SchemaFor(metadataOnlyTool{})

	if len(schema.Properties) != 2 {
		t.Fatalf("expected 2 properties, got %d", len(schema.Properties))
	}
	if len(schema.Required) != 1 || schema.Required[0] != "query" {
		t.Errorf("expected required=[query], got %v", schema.Required)
	}
}

func TestCheckSchemaRejections(t *testing.T) {
	schema := &JSONSchema{
		Type: "object",
		Properties: map[string]interface{}{
			"name":  map[string]interface{}{"type": "string"},
			"count": map[string]interface{}{"type": "integer"},
		},
		Required: []string{"name"},
	}

	tests := []struct {
		name    string
		params  map[string]interface{}
		wantErr bool
	}{
		{"valid", map[string]interface{}{"name": "x", "count": float64(3)}, false},
		{"missing required", map[string]interface{}{"count": float64(3)}, true},
		{"unknown field", map[string]interface{}{"name": "x", "extra": true}, true},
		{"wrong type", map[string]interface{}{"name": 7}, true},
		{"fractional integer", map[string]interface{}{"name": "x", "count": 1.5}, true},
		{"whole float as integer", map[string]interface{}{"name": "x", "count": 2.0}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := checkSchema(tt.params, schema)
			if tt.wantErr && err == nil {
				t.Fatal("expected error, got nil")
			}
			if !tt.wantErr && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestSchemaMapShape(t *testing.T) {
	m := ReflectArgs(&downloadProteinArgs{}).Map()
	if m["type"] != "object" {
		t.Errorf("expected type object, got %v", m["type"])
	}
	props, ok := m["properties"].(map[string]interface{})
	if !ok {
		t.Fatalf("properties should be a map, got %T", m["properties"])
	}
	if _, ok := props["target_query_string"]; !ok {
		t.Error("target_query_string missing from mapped schema")
	}
}
