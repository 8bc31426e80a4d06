// Workflow steps as data.
//
// Information Hiding:
// - Step ordering and lookup hidden behind Workflow
// - Output-completion checks hidden behind Satisfied/MissingOutputs

package orchestration

import (
	"fmt"
	"strings"

	"github.com/richinex/symposium/conversation"
)

// Step is one stage of a workflow. Steps are plain data; the controller
// interprets them.
type Step struct {
	// Name tags messages appended while the step is current.
	Name string `json:"name"`
	// Capability selects speakers under capability-matched scheduling.
	Capability string `json:"capability,omitempty"`
	// AllowedSpeakers restricts who may speak. Empty means everyone.
	AllowedSpeakers []string `json:"allowed_speakers,omitempty"`
	// RequiredOutputs are tool names whose successful results must be in
	// the transcript before the step is complete.
	RequiredOutputs []string `json:"required_outputs,omitempty"`
	// RequiresConfirmation suspends the advance past this step until a
	// human approves the guarded value.
	RequiresConfirmation bool `json:"requires_confirmation,omitempty"`
	// GuardKey names the value a confirmation protects, e.g. the ChEMBL
	// target ID the agents settled on.
	GuardKey string `json:"guard_key,omitempty"`
	// Instructions are shown to agents while the step is current.
	Instructions string `json:"instructions,omitempty"`
}

// Allows reports whether the named agent may speak during this step.
func (s Step) Allows(speaker string) bool {
	if len(s.AllowedSpeakers) == 0 {
		return true
	}
	for _, name := range s.AllowedSpeakers {
		if name == speaker {
			return true
		}
	}
	return false
}

// Workflow is an ordered sequence of steps.
type Workflow struct {
	steps []Step
}

// NewWorkflow creates a workflow from the given steps.
func NewWorkflow(steps ...Step) (*Workflow, error) {
	if len(steps) == 0 {
		return nil, fmt.Errorf("workflow needs at least one step")
	}
	seen := make(map[string]bool, len(steps))
	for _, s := range steps {
		if s.Name == "" {
			return nil, fmt.Errorf("workflow step without a name")
		}
		if seen[s.Name] {
			return nil, fmt.Errorf("duplicate workflow step '%s'", s.Name)
		}
		seen[s.Name] = true
	}
	return &Workflow{steps: steps}, nil
}

// DefaultWorkflow returns the protein bioactivity workflow: pick a target,
// pull its activity data, compute Lipinski descriptors, plot them, wrap up.
func DefaultWorkflow() *Workflow {
	wf, err := NewWorkflow(
		Step{
			Name:                 "select_target",
			Capability:           "analyst",
			RequiredOutputs:      []string{"download_protein_results", "select_target_from_query_results"},
			RequiresConfirmation: true,
			GuardKey:             "target_chembl_id",
			Instructions: "Search ChEMBL for the protein the user asked about, store the " +
				"query results, and select the single best target from them.",
		},
		Step{
			Name:            "fetch_activity",
			Capability:      "analyst",
			RequiredOutputs: []string{"generate_activity_data"},
			Instructions: "Fetch bioactivity data for the confirmed target and store it " +
				"as a CSV artifact.",
		},
		Step{
			Name:            "lipinski_descriptors",
			Capability:      "analyst",
			RequiredOutputs: []string{"calculate_lipinski_descriptors"},
			Instructions: "Compute Lipinski descriptors for the molecules in the stored " +
				"activity data.",
		},
		Step{
			Name:            "visualize",
			Capability:      "plotter",
			RequiredOutputs: []string{"scatter_plot_lipinski"},
			Instructions: "Plot two Lipinski descriptor columns against each other from " +
				"the stored descriptor file.",
		},
		Step{
			Name:            "wrap_up",
			Capability:      "planner",
			RequiredOutputs: []string{"terminate_group_chat"},
			Instructions: "Summarize what was produced, then call terminate_group_chat " +
				"with the summary.",
		},
	)
	if err != nil {
		panic(err) // static step list
	}
	return wf
}

// Len returns the number of steps.
func (w *Workflow) Len() int {
	return len(w.steps)
}

// Names returns the step names in order.
func (w *Workflow) Names() []string {
	names := make([]string, len(w.steps))
	for i, s := range w.steps {
		names[i] = s.Name
	}
	return names
}

// First returns the first step.
func (w *Workflow) First() Step {
	return w.steps[0]
}

// Final returns the last step.
func (w *Workflow) Final() Step {
	return w.steps[len(w.steps)-1]
}

// Step returns the named step.
func (w *Workflow) Step(name string) (Step, bool) {
	for _, s := range w.steps {
		if s.Name == name {
			return s, true
		}
	}
	return Step{}, false
}

// Next returns the step after the named one. ok is false for the final
// step and for unknown names.
func (w *Workflow) Next(name string) (Step, bool) {
	for i, s := range w.steps {
		if s.Name == name {
			if i+1 < len(w.steps) {
				return w.steps[i+1], true
			}
			return Step{}, false
		}
	}
	return Step{}, false
}

// IsFinal reports whether the named step is the last one.
func (w *Workflow) IsFinal(name string) bool {
	return w.Final().Name == name
}

// Satisfied reports whether every required output of the step exists as a
// successful tool result in the view. A proposal alone never counts.
func (w *Workflow) Satisfied(step Step, view conversation.View) bool {
	for _, tool := range step.RequiredOutputs {
		if !view.HasToolResult(tool) {
			return false
		}
	}
	return true
}

// MissingOutputs returns the required outputs not yet present in the view.
func (w *Workflow) MissingOutputs(step Step, view conversation.View) []string {
	var missing []string
	for _, tool := range step.RequiredOutputs {
		if !view.HasToolResult(tool) {
			missing = append(missing, tool)
		}
	}
	return missing
}

// Describe renders the workflow for agent prompts and the CLI.
func (w *Workflow) Describe() string {
	var b strings.Builder
	for i, s := range w.steps {
		fmt.Fprintf(&b, "%d. %s", i+1, s.Name)
		if len(s.RequiredOutputs) > 0 {
			fmt.Fprintf(&b, " (requires: %s)", strings.Join(s.RequiredOutputs, ", "))
		}
		if s.RequiresConfirmation {
			b.WriteString(" [human confirmation]")
		}
		b.WriteString("\n")
	}
	return b.String()
}
