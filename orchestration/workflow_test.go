package orchestration

import (
	"encoding/json"
	"testing"

	"github.com/richinex/symposium/conversation"
)

func TestDefaultWorkflowShape(t *testing.T) {
	wf := DefaultWorkflow()

	want := []string{"select_target", "fetch_activity", "lipinski_descriptors", "visualize", "wrap_up"}
	got := wf.Names()
	if len(got) != len(want) {
		t.Fatalf("expected %d steps, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("step %d: expected '%s', got '%s'", i, want[i], got[i])
		}
	}

	if !wf.IsFinal("wrap_up") {
		t.Error("expected wrap_up to be final")
	}
	if wf.IsFinal("visualize") {
		t.Error("visualize must not be final")
	}

	first := wf.First()
	if !first.RequiresConfirmation {
		t.Error("expected select_target to require confirmation")
	}
	if first.GuardKey != "target_chembl_id" {
		t.Errorf("expected guard key target_chembl_id, got '%s'", first.GuardKey)
	}

	final := wf.Final()
	if len(final.RequiredOutputs) != 1 || final.RequiredOutputs[0] != "terminate_group_chat" {
		t.Errorf("expected wrap_up to require terminate_group_chat, got %v", final.RequiredOutputs)
	}
}

func TestWorkflowNext(t *testing.T) {
	wf := DefaultWorkflow()

	next, ok := wf.Next("select_target")
	if !ok || next.Name != "fetch_activity" {
		t.Errorf("expected fetch_activity after select_target, got '%s' (ok=%v)", next.Name, ok)
	}

	if _, ok := wf.Next("wrap_up"); ok {
		t.Error("expected no step after the final one")
	}
	if _, ok := wf.Next("no_such_step"); ok {
		t.Error("expected no step after an unknown name")
	}
}

func TestNewWorkflowRejectsBadSteps(t *testing.T) {
	if _, err := NewWorkflow(); err == nil {
		t.Error("expected error for empty workflow")
	}
	if _, err := NewWorkflow(Step{}); err == nil {
		t.Error("expected error for unnamed step")
	}
	if _, err := NewWorkflow(Step{Name: "a"}, Step{Name: "a"}); err == nil {
		t.Error("expected error for duplicate step names")
	}
}

func TestSatisfiedRequiresSuccessfulResults(t *testing.T) {
	wf := DefaultWorkflow()
	step, ok := wf.Step("fetch_activity")
	if !ok {
		t.Fatal("fetch_activity step missing")
	}

	// A proposal referencing the tool is not a result.
	view := conversation.View{Messages: []conversation.Message{
		proposalMsg("chembl_data_engineer", "c1", "generate_activity_data"),
	}}
	if wf.Satisfied(step, view) {
		t.Error("a proposal alone must not satisfy a step")
	}

	// A failed result does not count either.
	view.Messages = append(view.Messages, failedResultMsg("c1", "generate_activity_data", "chembl server error"))
	if wf.Satisfied(step, view) {
		t.Error("a failed result must not satisfy a step")
	}
	missing := wf.MissingOutputs(step, view)
	if len(missing) != 1 || missing[0] != "generate_activity_data" {
		t.Errorf("expected generate_activity_data missing, got %v", missing)
	}

	view.Messages = append(view.Messages, resultMsg("c1", "generate_activity_data", `{"num_rows": 12}`))
	if !wf.Satisfied(step, view) {
		t.Error("expected step satisfied after a successful result")
	}
	if missing := wf.MissingOutputs(step, view); len(missing) != 0 {
		t.Errorf("expected nothing missing, got %v", missing)
	}
}

func TestStepAllows(t *testing.T) {
	open := Step{Name: "s"}
	if !open.Allows("anyone") {
		t.Error("expected empty allowed set to admit everyone")
	}

	closed := Step{Name: "s", AllowedSpeakers: []string{"a", "b"}}
	if !closed.Allows("a") {
		t.Error("expected listed speaker to be allowed")
	}
	if closed.Allows("c") {
		t.Error("expected unlisted speaker to be excluded")
	}
}

// Transcript builders shared across the package tests.

func textMsg(speaker, content, step string) conversation.Message {
	m := conversation.NewMessage(speaker, conversation.RoleAssistant, conversation.KindText, content)
	m.Step = step
	return m
}

func proposalMsg(speaker, callID, tool string) conversation.Message {
	m := conversation.NewMessage(speaker, conversation.RoleAssistant, conversation.KindProposal, "")
	m.ToolCalls = []conversation.ToolCall{{ID: callID, Name: tool, Arguments: json.RawMessage(`{}`)}}
	return m
}

func resultMsg(callID, tool, output string) conversation.Message {
	m := conversation.NewMessage("executor", conversation.RoleTool, conversation.KindToolResult, output)
	m.ToolResult = &conversation.ToolResult{CallID: callID, Name: tool, Output: output}
	return m
}

func failedResultMsg(callID, tool, errText string) conversation.Message {
	m := conversation.NewMessage("executor", conversation.RoleTool, conversation.KindToolResult, "error: "+errText)
	m.ToolResult = &conversation.ToolResult{CallID: callID, Name: tool, Error: errText}
	return m
}
