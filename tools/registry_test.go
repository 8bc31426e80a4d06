package tools

import (
	"reflect"
	"strings"
	"testing"
)

func TestWithDefaultsRegistersSuite(t *testing.T) {
	reg := testRegistry(t)

	want := []string{
		"calculate_lipinski_descriptors",
		"download_protein_results",
		"generate_activity_data",
		"list_artifacts",
		"preview_artifact",
		"scatter_plot_lipinski",
		"select_target_from_query_results",
		"terminate_group_chat",
	}
	if got := reg.Names(); !reflect.DeepEqual(got, want) {
		t.Errorf("registered tools = %v, want %v", got, want)
	}
}

func TestRegisterDuplicate(t *testing.T) {
	reg := NewRegistry()
	if err := reg.Register(NewTerminateTool()); err != nil {
		t.Fatalf("first registration failed: %v", err)
	}
	if err := reg.Register(NewTerminateTool()); err == nil {
		t.Fatal("duplicate registration should fail")
	}
}

func TestDescriptionIsDeterministic(t *testing.T) {
	reg := testRegistry(t)

	first := reg.Description()
	second := reg.Description()
	if first != second {
		t.Fatal("description should be stable across calls")
	}
	if !strings.Contains(first, "Tool: download_protein_results") {
		t.Errorf("description missing tool entry:\n%s", first)
	}
	if !strings.Contains(first, "target_query_string (string)") {
		t.Errorf("description missing parameter detail:\n%s", first)
	}
}
