// Pre-built agent roster for the protein bioactivity group chat.
//
// Information Hiding:
// - System prompt text hidden
// - Per-agent tool permission sets hidden behind the builders

package cli

import (
	"github.com/richinex/symposium/agent"
	"github.com/richinex/symposium/llm"
	"github.com/richinex/symposium/tools"
)

const engineerPrompt = `You are a ChEMBL data engineer in a group analysis of protein bioactivity.

Follow the workflow step named in the latest status message. Your tools:
1. download_protein_results - search ChEMBL targets: {"target_query_string": "EGFR"}
2. select_target_from_query_results - pick one ID from the stored query results: {"chembl_id": "CHEMBL203", "target_query_string": "EGFR"}
3. generate_activity_data - fetch bioactivity records: {"chembl_id": "CHEMBL203", "standard_type": "IC50"}
4. calculate_lipinski_descriptors - compute descriptor columns: {"activity_file": "activity_data_CHEMBL203_IC50.csv"}
5. list_artifacts / preview_artifact - inspect stored CSV files

Rules:
- One workflow step at a time. Never run ahead of the announced step.
- Work from stored artifacts, not from memory. Preview a file instead of guessing its contents.
- Target selections go to human review. If a selection is rejected, propose a different ID from the query results.
- Report the returned summaries (file name, columns, row count). Never paste whole files into the chat.`

const plotterPrompt = `You are a cheminformatics plotter. When the workflow reaches the visualization step, render a scatter plot from the stored Lipinski descriptor file:

scatter_plot_lipinski - {"lipinski_file": "CHEMBL203_IC50_lipinski.csv", "x_column": "Molecular Weight", "y_column": "LogP"}

Use list_artifacts to find the descriptor file and preview_artifact to check its column names before plotting. Report the saved plot path when done.`

const managerPrompt = `You are the workflow manager closing out the analysis. When every earlier step has produced its artifact - target query results, a confirmed target, activity data, Lipinski descriptors, and the scatter plot - call terminate_group_chat with a short closing summary naming the produced files. Never call it while any step's outputs are missing.`

// rosterEntry describes one default participant.
type rosterEntry struct {
	name        string
	description string
	capability  string
	prompt      string
	tools       []string
}

var defaultRoster = []rosterEntry{
	{
		name:        "chembl_data_engineer",
		description: "Retrieves protein targets and bioactivity data from ChEMBL and derives Lipinski descriptors",
		capability:  "analyst",
		prompt:      engineerPrompt,
		tools: []string{
			"download_protein_results",
			"select_target_from_query_results",
			"generate_activity_data",
			"calculate_lipinski_descriptors",
			"list_artifacts",
			"preview_artifact",
		},
	},
	{
		name:        "cheminformatics_plotter",
		description: "Renders scatter plots of Lipinski descriptor columns",
		capability:  "plotter",
		prompt:      plotterPrompt,
		tools: []string{
			"scatter_plot_lipinski",
			"list_artifacts",
			"preview_artifact",
		},
	},
	{
		name:        "workflow_manager",
		description: "Watches for workflow completion and closes the conversation",
		capability:  "planner",
		prompt:      managerPrompt,
		tools: []string{
			"terminate_group_chat",
		},
	},
}

// DefaultRoster builds the three default participants against a provider
// and tool registry.
func DefaultRoster(provider llm.Provider, registry *tools.Registry) []agent.Speaker {
	speakers := make([]agent.Speaker, 0, len(defaultRoster))
	for _, entry := range defaultRoster {
		config := agent.NewBuilder(entry.name).
			Description(entry.description).
			Capability(entry.capability).
			SystemPrompt(entry.prompt).
			PermitAll(entry.tools...).
			Build()
		speakers = append(speakers, agent.New(config, provider, registry))
	}
	return speakers
}

// RosterInfo lists the default participants without building them.
func RosterInfo() []agent.Info {
	infos := make([]agent.Info, 0, len(defaultRoster))
	for _, entry := range defaultRoster {
		infos = append(infos, agent.Info{
			Name:        entry.name,
			Description: entry.description,
			Capability:  entry.capability,
		})
	}
	return infos
}
