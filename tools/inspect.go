// Artifact Inspection Tools - let agents explore stored data without
// pulling whole files into the conversation.

package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/richinex/symposium/storage"
)

// ListArtifactsTool lists every stored artifact with its metadata.
type ListArtifactsTool struct {
	BaseTool
	store *storage.ArtifactStore
}

// NewListArtifactsTool creates the listing tool.
func NewListArtifactsTool(store *storage.ArtifactStore) *ListArtifactsTool {
	return &ListArtifactsTool{store: store}
}

// Metadata returns the tool metadata.
func (t *ListArtifactsTool) Metadata() ToolMetadata {
	return ToolMetadata{
		Name:        "list_artifacts",
		Description: "List all stored data artifacts (CSV files, plots) with sizes, row counts, and fingerprints",
		Parameters:  []ToolParameter{},
	}
}

// Execute lists stored artifacts.
func (t *ListArtifactsTool) Execute(ctx context.Context, args json.RawMessage) (ToolResult, error) {
	metas, err := t.store.List()
	if err != nil {
		return FailureResult(fmt.Errorf("failed to list artifacts: %w", err)), nil
	}
	if len(metas) == 0 {
		return SuccessResult("No artifacts stored yet"), nil
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Stored artifacts (%d):\n\n", len(metas)))
	for _, meta := range metas {
		sb.WriteString(fmt.Sprintf("- %s (%d lines, %d bytes, fingerprint %s)\n",
			meta.Name, meta.LineCount, meta.ByteSize, meta.Fingerprint))
		if len(meta.Columns) > 0 {
			sb.WriteString(fmt.Sprintf("  Columns: %s (%d rows)\n",
				strings.Join(meta.Columns, ", "), meta.RowCount))
		}
	}
	return SuccessResult(sb.String()), nil
}

// PreviewArtifactTool returns a line range of a stored artifact.
type PreviewArtifactTool struct {
	store *storage.ArtifactStore
}

// NewPreviewArtifactTool creates the preview tool.
func NewPreviewArtifactTool(store *storage.ArtifactStore) *PreviewArtifactTool {
	return &PreviewArtifactTool{store: store}
}

type previewArgs struct {
	File  string `json:"file" validate:"required"`
	Start int    `json:"start,omitempty" validate:"omitempty,gte=1"`
	End   int    `json:"end,omitempty" validate:"omitempty,gte=1"`
}

// Metadata returns the tool metadata.
func (t *PreviewArtifactTool) Metadata() ToolMetadata {
	return ToolMetadata{
		Name:        "preview_artifact",
		Description: "Show a line range of a stored artifact (1-indexed, inclusive). Defaults to the first lines of the file",
		Parameters: []ToolParameter{
			{Name: "file", ParamType: "string", Description: "Artifact name", Required: true},
			{Name: "start", ParamType: "integer", Description: "Start line (default 1)", Required: false},
			{Name: "end", ParamType: "integer", Description: "End line (default start+19)", Required: false},
		},
	}
}

// ArgsSchema returns the reflected argument schema.
func (t *PreviewArtifactTool) ArgsSchema() *JSONSchema {
	return ReflectArgs(&previewArgs{})
}

// Validate validates the arguments.
func (t *PreviewArtifactTool) Validate(args json.RawMessage) error {
	var a previewArgs
	if err := decodeArgs(args, &a); err != nil {
		return err
	}
	if a.End != 0 && a.Start != 0 && a.End < a.Start {
		return fmt.Errorf("end must be >= start")
	}
	return nil
}

// Execute returns the requested lines.
func (t *PreviewArtifactTool) Execute(ctx context.Context, args json.RawMessage) (ToolResult, error) {
	var a previewArgs
	if err := decodeArgs(args, &a); err != nil {
		return FailureResult(err), nil
	}

	if a.Start == 0 {
		a.Start = 1
	}
	if a.End == 0 {
		a.End = a.Start + 19
	}
	if a.End-a.Start+1 > DefaultPreviewLines {
		a.End = a.Start + DefaultPreviewLines - 1
	}

	lines, err := t.store.Lines(a.File, a.Start, a.End)
	if err != nil {
		return FailureResult(err), nil
	}

	return SuccessResult(fmt.Sprintf("Lines %d-%d of %s:\n\n%s",
		a.Start, a.Start+len(lines)-1, a.File, strings.Join(lines, "\n"))), nil
}
