// ChEMBL Data Tools - target search, target selection, activity download.
//
// Information Hiding:
// - REST endpoint layout and pagination hidden behind ChEMBLClient
// - Host allowlisting hidden from tool callers
// - CSV persistence delegated to the artifact store

package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/richinex/symposium/storage"
)

// DefaultChEMBLBaseURL is the public ChEMBL REST root.
const DefaultChEMBLBaseURL = "https://www.ebi.ac.uk/chembl/api/data"

// ChEMBLClient fetches target and bioactivity data from the ChEMBL REST API.
type ChEMBLClient struct {
	base         string
	client       *http.Client
	timeoutSecs  uint64
	allowedHosts []string
}

// NewChEMBLClient creates a client with the given base URL and timeout.
// An empty base URL selects the public ChEMBL API.
func NewChEMBLClient(baseURL string, timeoutSecs uint64) *ChEMBLClient {
	if baseURL == "" {
		baseURL = DefaultChEMBLBaseURL
	}
	if timeoutSecs == 0 {
		timeoutSecs = DefaultToolTimeout
	}
	c := &ChEMBLClient{
		base: strings.TrimRight(baseURL, "/"),
		client: &http.Client{
			Timeout: time.Duration(timeoutSecs) * time.Second,
		},
		timeoutSecs: timeoutSecs,
	}
	if u, err := url.Parse(c.base); err == nil && u.Hostname() != "" {
		c.allowedHosts = []string{u.Hostname()}
	}
	return c
}

// WithAllowedHosts overrides the hosts the client may contact.
func (c *ChEMBLClient) WithAllowedHosts(hosts []string) *ChEMBLClient {
	c.allowedHosts = hosts
	return c
}

// isHostAllowed checks if the URL's host is in the allowlist.
// Uses proper URL parsing to prevent bypass attacks.
func (c *ChEMBLClient) isHostAllowed(urlStr string) bool {
	if len(c.allowedHosts) == 0 {
		return true
	}

	u, err := url.Parse(urlStr)
	if err != nil {
		return false
	}

	host := u.Hostname()
	for _, allowed := range c.allowedHosts {
		if host == allowed || strings.HasSuffix(host, "."+allowed) {
			return true
		}
	}
	return false
}

// getJSON performs an allowlisted GET and decodes the JSON response into out.
func (c *ChEMBLClient) getJSON(ctx context.Context, rawURL string, out interface{}) error {
	if !c.isHostAllowed(rawURL) {
		return fmt.Errorf("access to host in '%s' is not allowed", rawURL)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return fmt.Errorf("request timed out after %d seconds", c.timeoutSecs)
		}
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return fmt.Errorf("chembl rate limit exceeded")
	case resp.StatusCode >= 500:
		return fmt.Errorf("chembl server error: %s", resp.Status)
	case resp.StatusCode != http.StatusOK:
		return fmt.Errorf("chembl request failed: %s", resp.Status)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// nextPageURL resolves a page_meta.next path against the client's base.
func (c *ChEMBLClient) nextPageURL(next string) (string, error) {
	if strings.HasPrefix(next, "http://") || strings.HasPrefix(next, "https://") {
		return next, nil
	}
	u, err := url.Parse(c.base)
	if err != nil {
		return "", fmt.Errorf("malformed base URL: %w", err)
	}
	return u.Scheme + "://" + u.Host + next, nil
}

// Target is one row of a target search result.
type Target struct {
	TargetChemblID string  `json:"target_chembl_id"`
	PrefName       string  `json:"pref_name"`
	Organism       string  `json:"organism"`
	TargetType     string  `json:"target_type"`
	Score          float64 `json:"score"`
}

type pageMeta struct {
	Limit      int    `json:"limit"`
	Next       string `json:"next"`
	Offset     int    `json:"offset"`
	TotalCount int    `json:"total_count"`
}

// SearchTargets runs a full text target search and returns up to limit rows.
func (c *ChEMBLClient) SearchTargets(ctx context.Context, query string, limit int) ([]Target, error) {
	if limit <= 0 {
		limit = 25
	}
	endpoint := fmt.Sprintf("%s/target/search.json?q=%s&limit=%d",
		c.base, url.QueryEscape(query), limit)

	var page struct {
		PageMeta pageMeta `json:"page_meta"`
		Targets  []Target `json:"targets"`
	}
	if err := c.getJSON(ctx, endpoint, &page); err != nil {
		return nil, err
	}
	return page.Targets, nil
}

// Activity is one bioactivity measurement. ChEMBL serializes numeric values
// as strings, so they stay strings until something needs to do math.
type Activity struct {
	MoleculeChemblID string `json:"molecule_chembl_id"`
	CanonicalSmiles  string `json:"canonical_smiles"`
	StandardType     string `json:"standard_type"`
	StandardRelation string `json:"standard_relation"`
	StandardValue    string `json:"standard_value"`
	StandardUnits    string `json:"standard_units"`
	PChemblValue     string `json:"pchembl_value"`
}

// Activities fetches bioactivity records for a target, following pagination
// until limit rows are collected or the result set ends.
func (c *ChEMBLClient) Activities(ctx context.Context, targetID, standardType string, limit int) ([]Activity, error) {
	if limit <= 0 {
		limit = DefaultActivityLimit
	}
	pageSize := 100
	if pageSize > limit {
		pageSize = limit
	}
	endpoint := fmt.Sprintf("%s/activity.json?target_chembl_id=%s&standard_type=%s&limit=%d",
		c.base, url.QueryEscape(targetID), url.QueryEscape(standardType), pageSize)

	var all []Activity
	for endpoint != "" && len(all) < limit {
		var page struct {
			PageMeta   pageMeta   `json:"page_meta"`
			Activities []Activity `json:"activities"`
		}
		if err := c.getJSON(ctx, endpoint, &page); err != nil {
			return nil, err
		}
		all = append(all, page.Activities...)

		if page.PageMeta.Next == "" || len(page.Activities) == 0 {
			break
		}
		next, err := c.nextPageURL(page.PageMeta.Next)
		if err != nil {
			return nil, err
		}
		endpoint = next
	}

	if len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}

// MoleculeProperties holds the computed descriptors ChEMBL exposes per
// molecule. Values are strings for the same reason Activity values are.
type MoleculeProperties struct {
	FullMolecularWeight string `json:"full_mwt"`
	ALogP               string `json:"alogp"`
	HBondAcceptors      string `json:"hba"`
	HBondDonors         string `json:"hbd"`
	RotatableBonds      string `json:"rtb"`
}

// moleculeBatchSize bounds how many molecule IDs go into one __in filter.
const moleculeBatchSize = 20

// FetchMoleculeProperties returns descriptor records keyed by molecule ID,
// fetched in batches.
func (c *ChEMBLClient) FetchMoleculeProperties(ctx context.Context, ids []string) (map[string]MoleculeProperties, error) {
	props := make(map[string]MoleculeProperties, len(ids))

	for start := 0; start < len(ids); start += moleculeBatchSize {
		end := start + moleculeBatchSize
		if end > len(ids) {
			end = len(ids)
		}
		batch := ids[start:end]

		endpoint := fmt.Sprintf("%s/molecule.json?molecule_chembl_id__in=%s&limit=%d",
			c.base, url.QueryEscape(strings.Join(batch, ";")), len(batch))

		var page struct {
			Molecules []struct {
				MoleculeChemblID   string              `json:"molecule_chembl_id"`
				MoleculeProperties *MoleculeProperties `json:"molecule_properties"`
			} `json:"molecules"`
		}
		if err := c.getJSON(ctx, endpoint, &page); err != nil {
			return nil, err
		}

		for _, m := range page.Molecules {
			if m.MoleculeProperties != nil {
				props[m.MoleculeChemblID] = *m.MoleculeProperties
			}
		}
	}

	return props, nil
}

// datasetSummary is what data tools hand back to the chat instead of rows.
// Agents reference the named artifact in later calls.
type datasetSummary struct {
	Columns   []string `json:"columns"`
	NumRows   int      `json:"num_rows"`
	CSVOutput string   `json:"csv_output"`
}

func summarize(meta storage.ArtifactMeta) (string, error) {
	out, err := json.Marshal(datasetSummary{
		Columns:   meta.Columns,
		NumRows:   meta.RowCount,
		CSVOutput: meta.Name,
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal summary: %w", err)
	}
	return string(out), nil
}

var unsafeFragment = regexp.MustCompile(`[^A-Za-z0-9_-]+`)

// fileFragment makes a query string safe to embed in an artifact name.
func fileFragment(s string) string {
	s = strings.TrimSpace(s)
	s = strings.ReplaceAll(s, " ", "_")
	return unsafeFragment.ReplaceAllString(s, "")
}

// DownloadProteinResultsTool searches ChEMBL targets and writes the results
// to a CSV artifact.
type DownloadProteinResultsTool struct {
	client *ChEMBLClient
	store  *storage.ArtifactStore
}

// NewDownloadProteinResultsTool creates the target search tool.
func NewDownloadProteinResultsTool(client *ChEMBLClient, store *storage.ArtifactStore) *DownloadProteinResultsTool {
	return &DownloadProteinResultsTool{client: client, store: store}
}

type downloadProteinArgs struct {
	TargetQueryString string `json:"target_query_string" validate:"required,min=2"`
}

// Metadata returns the tool metadata.
func (t *DownloadProteinResultsTool) Metadata() ToolMetadata {
	return ToolMetadata{
		Name:        "download_protein_results",
		Description: "Search ChEMBL for protein targets matching a query string and save the results as a CSV artifact",
		Parameters: []ToolParameter{
			{Name: "target_query_string", ParamType: "string", Description: "Protein or target name to search for, e.g. 'herg'", Required: true},
		},
	}
}

// ArgsSchema returns the reflected argument schema.
func (t *DownloadProteinResultsTool) ArgsSchema() *JSONSchema {
	return ReflectArgs(&downloadProteinArgs{})
}

// Validate validates the arguments.
func (t *DownloadProteinResultsTool) Validate(args json.RawMessage) error {
	var a downloadProteinArgs
	return decodeArgs(args, &a)
}

// Execute runs the target search and stores the result CSV.
func (t *DownloadProteinResultsTool) Execute(ctx context.Context, args json.RawMessage) (ToolResult, error) {
	var a downloadProteinArgs
	if err := decodeArgs(args, &a); err != nil {
		return FailureResult(err), nil
	}

	targets, err := t.client.SearchTargets(ctx, a.TargetQueryString, 25)
	if err != nil {
		return FailureResult(fmt.Errorf("target search failed: %w", err)), nil
	}
	if len(targets) == 0 {
		return FailureResultf("no targets found for query '%s'", a.TargetQueryString), nil
	}

	header := []string{"target_chembl_id", "pref_name", "organism", "target_type", "score"}
	rows := make([][]string, 0, len(targets))
	for _, tg := range targets {
		rows = append(rows, []string{
			tg.TargetChemblID,
			tg.PrefName,
			tg.Organism,
			tg.TargetType,
			strconv.FormatFloat(tg.Score, 'f', -1, 64),
		})
	}

	name := fmt.Sprintf("target_query_results_%s.csv", fileFragment(a.TargetQueryString))
	meta, err := t.store.WriteCSV(name, header, rows)
	if err != nil {
		return FailureResult(fmt.Errorf("failed to store results: %w", err)), nil
	}

	out, err := summarize(meta)
	if err != nil {
		return FailureResult(err), nil
	}
	return SuccessResult(out), nil
}

// SelectTargetTool resolves a ChEMBL target ID against previously downloaded
// query results. Selecting an ID that was never retrieved fails, so agents
// cannot invent targets.
type SelectTargetTool struct {
	store *storage.ArtifactStore
}

// NewSelectTargetTool creates the target selection tool.
func NewSelectTargetTool(store *storage.ArtifactStore) *SelectTargetTool {
	return &SelectTargetTool{store: store}
}

type selectTargetArgs struct {
	ChemblID          string `json:"chembl_id" validate:"required,startswith=CHEMBL"`
	TargetQueryString string `json:"target_query_string" validate:"required,min=2"`
}

// Metadata returns the tool metadata.
func (t *SelectTargetTool) Metadata() ToolMetadata {
	return ToolMetadata{
		Name:        "select_target_from_query_results",
		Description: "Select one target from previously downloaded query results by its ChEMBL ID. The ID must appear in the saved results",
		Parameters: []ToolParameter{
			{Name: "chembl_id", ParamType: "string", Description: "Target ChEMBL ID, e.g. 'CHEMBL240'", Required: true},
			{Name: "target_query_string", ParamType: "string", Description: "The query string used for the earlier search", Required: true},
		},
	}
}

// ArgsSchema returns the reflected argument schema.
func (t *SelectTargetTool) ArgsSchema() *JSONSchema {
	return ReflectArgs(&selectTargetArgs{})
}

// Validate validates the arguments.
func (t *SelectTargetTool) Validate(args json.RawMessage) error {
	var a selectTargetArgs
	return decodeArgs(args, &a)
}

// Execute looks the ID up in the stored query results.
func (t *SelectTargetTool) Execute(ctx context.Context, args json.RawMessage) (ToolResult, error) {
	var a selectTargetArgs
	if err := decodeArgs(args, &a); err != nil {
		return FailureResult(err), nil
	}

	name := fmt.Sprintf("target_query_results_%s.csv", fileFragment(a.TargetQueryString))
	header, rows, err := t.store.ReadCSV(name)
	if err != nil {
		return FailureResultf("no query results for '%s'; run download_protein_results first", a.TargetQueryString), nil
	}

	idx := columnIndex(header, "target_chembl_id")
	if idx < 0 {
		return FailureResultf("artifact '%s' has no target_chembl_id column", name), nil
	}

	for _, row := range rows {
		if idx < len(row) && row[idx] == a.ChemblID {
			selected := make(map[string]string, len(header))
			for i, col := range header {
				if i < len(row) {
					selected[col] = row[i]
				}
			}
			out, err := json.Marshal(selected)
			if err != nil {
				return FailureResult(fmt.Errorf("failed to marshal selection: %w", err)), nil
			}
			return SuccessResult(string(out)), nil
		}
	}

	return FailureResultf("chembl_id '%s' not found in query results '%s'", a.ChemblID, name), nil
}

// GenerateActivityDataTool downloads bioactivity measurements for a selected
// target and writes them to a CSV artifact.
type GenerateActivityDataTool struct {
	client *ChEMBLClient
	store  *storage.ArtifactStore
}

// NewGenerateActivityDataTool creates the activity download tool.
func NewGenerateActivityDataTool(client *ChEMBLClient, store *storage.ArtifactStore) *GenerateActivityDataTool {
	return &GenerateActivityDataTool{client: client, store: store}
}

type activityArgs struct {
	ChemblID     string `json:"chembl_id" validate:"required,startswith=CHEMBL"`
	StandardType string `json:"standard_type,omitempty" validate:"omitempty,oneof=IC50 EC50 Ki Kd Potency"`
}

// Metadata returns the tool metadata.
func (t *GenerateActivityDataTool) Metadata() ToolMetadata {
	return ToolMetadata{
		Name:        "generate_activity_data",
		Description: "Download bioactivity measurements for a target and save them as a CSV artifact",
		Parameters: []ToolParameter{
			{Name: "chembl_id", ParamType: "string", Description: "Target ChEMBL ID, e.g. 'CHEMBL240'", Required: true},
			{Name: "standard_type", ParamType: "string", Description: "Activity measurement type: IC50, EC50, Ki, Kd, or Potency (default IC50)", Required: false},
		},
	}
}

// ArgsSchema returns the reflected argument schema.
func (t *GenerateActivityDataTool) ArgsSchema() *JSONSchema {
	return ReflectArgs(&activityArgs{})
}

// Validate validates the arguments.
func (t *GenerateActivityDataTool) Validate(args json.RawMessage) error {
	var a activityArgs
	return decodeArgs(args, &a)
}

// Execute downloads activities, drops records without a canonical
// SMILES, and stores the result CSV.
func (t *GenerateActivityDataTool) Execute(ctx context.Context, args json.RawMessage) (ToolResult, error) {
	var a activityArgs
	if err := decodeArgs(args, &a); err != nil {
		return FailureResult(err), nil
	}
	if a.StandardType == "" {
		a.StandardType = "IC50"
	}

	activities, err := t.client.Activities(ctx, a.ChemblID, a.StandardType, DefaultActivityLimit)
	if err != nil {
		return FailureResult(fmt.Errorf("activity download failed: %w", err)), nil
	}
	if len(activities) == 0 {
		return FailureResultf("no %s activities found for target '%s'", a.StandardType, a.ChemblID), nil
	}

	header := []string{
		"molecule_chembl_id", "canonical_smiles", "standard_type",
		"standard_relation", "standard_value", "standard_units", "pchembl_value",
	}
	rows := make([][]string, 0, len(activities))
	for _, act := range activities {
		if act.CanonicalSmiles == "" {
			continue
		}
		rows = append(rows, []string{
			act.MoleculeChemblID,
			act.CanonicalSmiles,
			act.StandardType,
			act.StandardRelation,
			act.StandardValue,
			act.StandardUnits,
			act.PChemblValue,
		})
	}

	name := fmt.Sprintf("activity_data_%s_%s.csv", a.ChemblID, a.StandardType)
	meta, err := t.store.WriteCSV(name, header, rows)
	if err != nil {
		return FailureResult(fmt.Errorf("failed to store activities: %w", err)), nil
	}

	out, err := summarize(meta)
	if err != nil {
		return FailureResult(err), nil
	}
	return SuccessResult(out), nil
}

// columnIndex finds a column by name, or -1.
func columnIndex(header []string, name string) int {
	for i, col := range header {
		if col == name {
			return i
		}
	}
	return -1
}
