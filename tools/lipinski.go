// Lipinski Descriptor Tool - per-molecule drug-likeness descriptors.
//
// Information Hiding:
// - Descriptor source (ChEMBL computed properties) hidden from callers
// - Molecule deduplication and batching hidden

package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/richinex/symposium/storage"
)

// Human-readable descriptor column names, fixed so downstream plotting can
// reference them.
var lipinskiColumns = []string{
	"molecule_chembl_id",
	"Molecular Weight",
	"H-Bond Donors",
	"H-Bond Acceptors",
	"Rotatable Bonds",
	"LogP",
}

// LipinskiDescriptorsTool computes Lipinski descriptors for every molecule
// in a stored activity artifact.
type LipinskiDescriptorsTool struct {
	client *ChEMBLClient
	store  *storage.ArtifactStore
}

// NewLipinskiDescriptorsTool creates the descriptor tool.
func NewLipinskiDescriptorsTool(client *ChEMBLClient, store *storage.ArtifactStore) *LipinskiDescriptorsTool {
	return &LipinskiDescriptorsTool{client: client, store: store}
}

type lipinskiArgs struct {
	ActivityFile string `json:"activity_file" validate:"required,endswith=.csv"`
}

// Metadata returns the tool metadata.
func (t *LipinskiDescriptorsTool) Metadata() ToolMetadata {
	return ToolMetadata{
		Name:        "calculate_lipinski_descriptors",
		Description: "Calculate Lipinski drug-likeness descriptors (molecular weight, H-bond donors/acceptors, rotatable bonds, LogP) for every molecule in a saved activity CSV",
		Parameters: []ToolParameter{
			{Name: "activity_file", ParamType: "string", Description: "Name of an activity CSV artifact, e.g. 'activity_data_CHEMBL240_IC50.csv'", Required: true},
		},
	}
}

// ArgsSchema returns the reflected argument schema.
func (t *LipinskiDescriptorsTool) ArgsSchema() *JSONSchema {
	return ReflectArgs(&lipinskiArgs{})
}

// Validate validates the arguments.
func (t *LipinskiDescriptorsTool) Validate(args json.RawMessage) error {
	var a lipinskiArgs
	return decodeArgs(args, &a)
}

// Execute reads the activity artifact, fetches descriptors, and stores the
// descriptor CSV.
func (t *LipinskiDescriptorsTool) Execute(ctx context.Context, args json.RawMessage) (ToolResult, error) {
	var a lipinskiArgs
	if err := decodeArgs(args, &a); err != nil {
		return FailureResult(err), nil
	}

	header, rows, err := t.store.ReadCSV(a.ActivityFile)
	if err != nil {
		return FailureResult(fmt.Errorf("failed to read activity data: %w", err)), nil
	}

	idIdx := columnIndex(header, "molecule_chembl_id")
	if idIdx < 0 {
		return FailureResultf("artifact '%s' has no molecule_chembl_id column", a.ActivityFile), nil
	}

	// Dedupe molecules preserving first-seen order so reruns produce
	// identical artifacts.
	seen := make(map[string]bool)
	var ids []string
	for _, row := range rows {
		if idIdx >= len(row) || row[idIdx] == "" {
			continue
		}
		if !seen[row[idIdx]] {
			seen[row[idIdx]] = true
			ids = append(ids, row[idIdx])
		}
	}
	if len(ids) == 0 {
		return FailureResultf("artifact '%s' contains no molecule IDs", a.ActivityFile), nil
	}

	props, err := t.client.FetchMoleculeProperties(ctx, ids)
	if err != nil {
		return FailureResult(fmt.Errorf("descriptor fetch failed: %w", err)), nil
	}

	out := make([][]string, 0, len(ids))
	for _, id := range ids {
		p, ok := props[id]
		if !ok {
			continue
		}
		out = append(out, []string{
			id,
			p.FullMolecularWeight,
			p.HBondDonors,
			p.HBondAcceptors,
			p.RotatableBonds,
			p.ALogP,
		})
	}
	if len(out) == 0 {
		return FailureResultf("no descriptor records returned for molecules in '%s'", a.ActivityFile), nil
	}

	name := lipinskiArtifactName(a.ActivityFile)
	meta, err := t.store.WriteCSV(name, lipinskiColumns, out)
	if err != nil {
		return FailureResult(fmt.Errorf("failed to store descriptors: %w", err)), nil
	}

	summary, err := summarize(meta)
	if err != nil {
		return FailureResult(err), nil
	}
	return SuccessResult(summary), nil
}

// lipinskiArtifactName derives the descriptor artifact name from the
// activity artifact: activity_data_{target}_{type}.csv becomes
// {target}_{type}_lipinski.csv.
func lipinskiArtifactName(activityFile string) string {
	stem := strings.TrimSuffix(activityFile, ".csv")
	stem = strings.TrimPrefix(stem, "activity_data_")
	return stem + "_lipinski.csv"
}
