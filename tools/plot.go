// Scatter Plot Tool - renders descriptor scatter plots to PNG artifacts.
//
// Information Hiding:
// - Plot styling and rendering backend hidden
// - Numeric parsing of CSV cells hidden

package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/richinex/symposium/storage"
)

// ScatterPlotTool plots two numeric columns of a stored descriptor CSV
// against each other.
type ScatterPlotTool struct {
	store *storage.ArtifactStore
}

// NewScatterPlotTool creates the plotting tool.
func NewScatterPlotTool(store *storage.ArtifactStore) *ScatterPlotTool {
	return &ScatterPlotTool{store: store}
}

type scatterArgs struct {
	LipinskiFile string `json:"lipinski_file" validate:"required,endswith=.csv"`
	XColumn      string `json:"x_column" validate:"required"`
	YColumn      string `json:"y_column" validate:"required"`
}

// Metadata returns the tool metadata.
func (t *ScatterPlotTool) Metadata() ToolMetadata {
	return ToolMetadata{
		Name:        "scatter_plot_lipinski",
		Description: "Render a scatter plot of two numeric columns from a saved Lipinski descriptor CSV and save it as a PNG artifact",
		Parameters: []ToolParameter{
			{Name: "lipinski_file", ParamType: "string", Description: "Name of a descriptor CSV artifact", Required: true},
			{Name: "x_column", ParamType: "string", Description: "Column for the x axis, e.g. 'Molecular Weight'", Required: true},
			{Name: "y_column", ParamType: "string", Description: "Column for the y axis, e.g. 'LogP'", Required: true},
		},
	}
}

// ArgsSchema returns the reflected argument schema.
func (t *ScatterPlotTool) ArgsSchema() *JSONSchema {
	return ReflectArgs(&scatterArgs{})
}

// Validate validates the arguments.
func (t *ScatterPlotTool) Validate(args json.RawMessage) error {
	var a scatterArgs
	return decodeArgs(args, &a)
}

// Execute reads the descriptor artifact and renders the plot.
func (t *ScatterPlotTool) Execute(ctx context.Context, args json.RawMessage) (ToolResult, error) {
	var a scatterArgs
	if err := decodeArgs(args, &a); err != nil {
		return FailureResult(err), nil
	}

	header, rows, err := t.store.ReadCSV(a.LipinskiFile)
	if err != nil {
		return FailureResult(fmt.Errorf("failed to read descriptors: %w", err)), nil
	}

	xIdx := columnIndex(header, a.XColumn)
	if xIdx < 0 {
		return FailureResultf("column '%s' not found in '%s' (columns: %s)",
			a.XColumn, a.LipinskiFile, strings.Join(header, ", ")), nil
	}
	yIdx := columnIndex(header, a.YColumn)
	if yIdx < 0 {
		return FailureResultf("column '%s' not found in '%s' (columns: %s)",
			a.YColumn, a.LipinskiFile, strings.Join(header, ", ")), nil
	}

	// Rows with non-numeric cells are skipped rather than failing the plot.
	pts := make(plotter.XYs, 0, len(rows))
	for _, row := range rows {
		if xIdx >= len(row) || yIdx >= len(row) {
			continue
		}
		x, errX := strconv.ParseFloat(strings.TrimSpace(row[xIdx]), 64)
		y, errY := strconv.ParseFloat(strings.TrimSpace(row[yIdx]), 64)
		if errX != nil || errY != nil {
			continue
		}
		pts = append(pts, plotter.XY{X: x, Y: y})
	}
	if len(pts) == 0 {
		return FailureResultf("no numeric data points for '%s' vs '%s' in '%s'",
			a.XColumn, a.YColumn, a.LipinskiFile), nil
	}

	p := plot.New()
	p.Title.Text = fmt.Sprintf("%s vs %s", a.XColumn, a.YColumn)
	p.X.Label.Text = a.XColumn
	p.Y.Label.Text = a.YColumn
	p.Add(plotter.NewGrid())

	scatter, err := plotter.NewScatter(pts)
	if err != nil {
		return FailureResult(fmt.Errorf("failed to build scatter: %w", err)), nil
	}
	scatter.GlyphStyle.Radius = vg.Points(2)
	p.Add(scatter)

	stem := strings.TrimSuffix(a.LipinskiFile, ".csv")
	name := fmt.Sprintf("%s_%s_vs_%s_scatter.png", stem, fileFragment(a.XColumn), fileFragment(a.YColumn))
	path, err := t.store.Path(name)
	if err != nil {
		return FailureResult(err), nil
	}
	if err := p.Save(6*vg.Inch, 4*vg.Inch, path); err != nil {
		return FailureResult(fmt.Errorf("failed to save plot: %w", err)), nil
	}

	meta, err := t.store.Stat(name)
	if err != nil {
		return FailureResult(err), nil
	}

	out, err := json.Marshal(struct {
		PlotFile string `json:"plot_file"`
		Points   int    `json:"points"`
		XColumn  string `json:"x_column"`
		YColumn  string `json:"y_column"`
		ByteSize int64  `json:"byte_size"`
	}{
		PlotFile: meta.Name,
		Points:   len(pts),
		XColumn:  a.XColumn,
		YColumn:  a.YColumn,
		ByteSize: meta.ByteSize,
	})
	if err != nil {
		return FailureResult(fmt.Errorf("failed to marshal plot summary: %w", err)), nil
	}
	return SuccessResult(string(out)), nil
}
