package tools

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
)

func TestScatterPlotRendersPNG(t *testing.T) {
	store := testStore(t)
	_, err := store.WriteCSV("CHEMBL240_IC50_lipinski.csv",
		[]string{"molecule_chembl_id", "Molecular Weight", "LogP"},
		[][]string{
			{"CHEMBL1", "432.52", "3.1"},
			{"CHEMBL2", "287.30", "1.8"},
			{"CHEMBL3", "", "2.2"}, // skipped: no weight
		})
	if err != nil {
		t.Fatalf("failed to seed descriptors: %v", err)
	}

	tool := NewScatterPlotTool(store)

	result, err := tool.Execute(context.Background(), json.RawMessage(
		`{"lipinski_file":"CHEMBL240_IC50_lipinski.csv","x_column":"Molecular Weight","y_column":"LogP"}`))
	if err != nil {
		t.Fatalf("execute failed: %v", err)
	}
	if !result.Success() {
		t.Fatalf("expected success, got: %v", result.Error)
	}

	var out struct {
		PlotFile string `json:"plot_file"`
		Points   int    `json:"points"`
	}
	if err := json.Unmarshal([]byte(result.Output), &out); err != nil {
		t.Fatalf("plot summary is not JSON: %v", err)
	}
	if out.Points != 2 {
		t.Errorf("expected 2 plotted points, got %d", out.Points)
	}
	if !strings.HasSuffix(out.PlotFile, "_scatter.png") {
		t.Errorf("unexpected plot artifact name: %s", out.PlotFile)
	}
	if !store.Exists(out.PlotFile) {
		t.Error("plot artifact not stored")
	}
}

func TestScatterPlotUnknownColumn(t *testing.T) {
	store := testStore(t)
	_, err := store.WriteCSV("d.csv",
		[]string{"molecule_chembl_id", "LogP"},
		[][]string{{"CHEMBL1", "3.1"}})
	if err != nil {
		t.Fatalf("failed to seed descriptors: %v", err)
	}

	tool := NewScatterPlotTool(store)

	result, err := tool.Execute(context.Background(), json.RawMessage(
		`{"lipinski_file":"d.csv","x_column":"Molecular Weight","y_column":"LogP"}`))
	if err != nil {
		t.Fatalf("execute failed: %v", err)
	}
	if result.Success() {
		t.Fatal("expected failure for missing column")
	}
	if !strings.Contains(result.Error.Error(), "Molecular Weight") {
		t.Errorf("error should name the missing column: %v", result.Error)
	}
}

func TestScatterPlotNoNumericData(t *testing.T) {
	store := testStore(t)
	_, err := store.WriteCSV("d.csv",
		[]string{"a", "b"},
		[][]string{{"x", "y"}})
	if err != nil {
		t.Fatalf("failed to seed descriptors: %v", err)
	}

	tool := NewScatterPlotTool(store)

	result, err := tool.Execute(context.Background(), json.RawMessage(
		`{"lipinski_file":"d.csv","x_column":"a","y_column":"b"}`))
	if err != nil {
		t.Fatalf("execute failed: %v", err)
	}
	if result.Success() {
		t.Fatal("expected failure when no rows parse as numbers")
	}
}
