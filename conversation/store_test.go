package conversation

import (
	"errors"
	"fmt"
	"reflect"
	"testing"
)

func TestAppendAssignsContiguousOrdinals(t *testing.T) {
	store := NewStore("")

	for i := 0; i < 25; i++ {
		msg, err := store.Append(NewMessage("analyst", RoleAssistant, KindText, fmt.Sprintf("turn %d", i)))
		if err != nil {
			t.Fatalf("append %d: unexpected error: %v", i, err)
		}
		if msg.Ordinal != i {
			t.Errorf("append %d: expected ordinal %d, got %d", i, i, msg.Ordinal)
		}
	}

	view := store.Snapshot()
	for i, m := range view.Messages {
		if m.Ordinal != i {
			t.Errorf("position %d: expected ordinal %d, got %d", i, i, m.Ordinal)
		}
	}
}

func TestAppendTagsCurrentStep(t *testing.T) {
	store := NewStore("")
	if err := store.AdvancePhase("select_target"); err != nil {
		t.Fatalf("advance: unexpected error: %v", err)
	}

	msg, err := store.Append(NewMessage("analyst", RoleAssistant, KindText, "searching"))
	if err != nil {
		t.Fatalf("append: unexpected error: %v", err)
	}
	if msg.Step != "select_target" {
		t.Errorf("expected step 'select_target', got '%s'", msg.Step)
	}
}

func TestAppendAfterTerminate(t *testing.T) {
	store := NewStore("")
	if _, err := store.Append(NewMessage("analyst", RoleAssistant, KindText, "hello")); err != nil {
		t.Fatalf("append: unexpected error: %v", err)
	}

	if err := store.Terminate("completed"); err != nil {
		t.Fatalf("terminate: unexpected error: %v", err)
	}

	_, err := store.Append(NewMessage("analyst", RoleAssistant, KindText, "too late"))
	if !errors.Is(err, ErrConversationTerminated) {
		t.Fatalf("expected ErrConversationTerminated, got %v", err)
	}
	if store.Len() != 1 {
		t.Errorf("expected 1 message after terminated append, got %d", store.Len())
	}
}

func TestTerminateTwice(t *testing.T) {
	store := NewStore("")
	if err := store.Terminate("cancelled"); err != nil {
		t.Fatalf("first terminate: unexpected error: %v", err)
	}
	if err := store.Terminate("completed"); !errors.Is(err, ErrConversationTerminated) {
		t.Fatalf("expected ErrConversationTerminated, got %v", err)
	}

	_, reason := store.Terminated()
	if reason != "cancelled" {
		t.Errorf("expected reason 'cancelled' preserved, got '%s'", reason)
	}
}

func TestSnapshotIdempotent(t *testing.T) {
	store := NewStore("conv-1")
	for i := 0; i < 3; i++ {
		msg := NewMessage("plotter", RoleAssistant, KindProposal, "plot it")
		msg.ToolCalls = []ToolCall{{ID: fmt.Sprintf("call-%d", i), Name: "scatter_plot_lipinski", Arguments: []byte(`{"x_column":"LogP"}`)}}
		if _, err := store.Append(msg); err != nil {
			t.Fatalf("append: unexpected error: %v", err)
		}
	}
	if err := store.RecordCheckpoint("cp-1"); err != nil {
		t.Fatalf("record checkpoint: unexpected error: %v", err)
	}

	first := store.Snapshot()
	second := store.Snapshot()
	if !reflect.DeepEqual(first, second) {
		t.Fatal("expected equal snapshots without intervening append")
	}

	if _, err := store.Append(NewMessage("analyst", RoleAssistant, KindText, "more")); err != nil {
		t.Fatalf("append: unexpected error: %v", err)
	}
	third := store.Snapshot()
	if reflect.DeepEqual(first, third) {
		t.Fatal("expected snapshot to change after append")
	}
}

func TestSnapshotIsolation(t *testing.T) {
	store := NewStore("")
	msg := NewMessage("analyst", RoleAssistant, KindProposal, "lookup")
	msg.ToolCalls = []ToolCall{{ID: "c1", Name: "download_protein_results", Arguments: []byte(`{"target_query_string":"EGFR"}`)}}
	if _, err := store.Append(msg); err != nil {
		t.Fatalf("append: unexpected error: %v", err)
	}

	view := store.Snapshot()
	view.Messages[0].Content = "mutated"
	view.Messages[0].ToolCalls[0].Arguments[2] = 'X'
	view.Values["target_chembl_id"] = "CHEMBL999"

	fresh := store.Snapshot()
	if fresh.Messages[0].Content != "lookup" {
		t.Errorf("store content mutated through view: %s", fresh.Messages[0].Content)
	}
	if string(fresh.Messages[0].ToolCalls[0].Arguments) != `{"target_query_string":"EGFR"}` {
		t.Errorf("store arguments mutated through view: %s", fresh.Messages[0].ToolCalls[0].Arguments)
	}
	if _, ok := store.Value("target_chembl_id"); ok {
		t.Error("store values mutated through view")
	}
}

func TestAdvancePhaseBlockedByPendingCheckpoint(t *testing.T) {
	store := NewStore("")
	if err := store.AdvancePhase("select_target"); err != nil {
		t.Fatalf("advance: unexpected error: %v", err)
	}

	if err := store.RecordCheckpoint("cp-7"); err != nil {
		t.Fatalf("record checkpoint: unexpected error: %v", err)
	}
	if err := store.AdvancePhase("fetch_activity"); !errors.Is(err, ErrCheckpointPending) {
		t.Fatalf("expected ErrCheckpointPending, got %v", err)
	}
	if store.Step() != "select_target" {
		t.Errorf("step advanced past pending checkpoint: %s", store.Step())
	}

	store.ResolveCheckpoint("cp-7")
	if err := store.AdvancePhase("fetch_activity"); err != nil {
		t.Fatalf("advance after resolve: unexpected error: %v", err)
	}
	if store.Step() != "fetch_activity" {
		t.Errorf("expected step 'fetch_activity', got '%s'", store.Step())
	}
}

func TestHasToolResult(t *testing.T) {
	store := NewStore("")

	failed := NewMessage("controller", RoleTool, KindToolResult, "boom")
	failed.ToolResult = &ToolResult{CallID: "c1", Name: "generate_activity_data", Error: "timeout"}
	if _, err := store.Append(failed); err != nil {
		t.Fatalf("append: unexpected error: %v", err)
	}

	view := store.Snapshot()
	if view.HasToolResult("generate_activity_data") {
		t.Error("failed result should not count as a recorded output")
	}

	ok := NewMessage("controller", RoleTool, KindToolResult, "rows: 412")
	ok.ToolResult = &ToolResult{CallID: "c2", Name: "generate_activity_data", Output: "rows: 412"}
	if _, err := store.Append(ok); err != nil {
		t.Fatalf("append: unexpected error: %v", err)
	}

	view = store.Snapshot()
	if !view.HasToolResult("generate_activity_data") {
		t.Error("successful result not found")
	}
	if view.HasToolResult("scatter_plot_lipinski") {
		t.Error("unexpected result for tool that never ran")
	}
}

func TestRestoreRoundTrip(t *testing.T) {
	store := NewStore("conv-9")
	if err := store.AdvancePhase("select_target"); err != nil {
		t.Fatalf("advance: unexpected error: %v", err)
	}
	proposal := NewMessage("analyst", RoleAssistant, KindProposal, "searching")
	proposal.ToolCalls = []ToolCall{{ID: "c1", Name: "download_protein_results", Arguments: []byte(`{"target_query_string":"EGFR"}`)}}
	if _, err := store.Append(proposal); err != nil {
		t.Fatalf("append: unexpected error: %v", err)
	}
	store.CommitValue("target_chembl_id", "CHEMBL203")
	if err := store.AdvancePhase("fetch_activity"); err != nil {
		t.Fatalf("advance: unexpected error: %v", err)
	}

	view := store.Snapshot()
	restored := Restore(view)

	if !reflect.DeepEqual(view, restored.Snapshot()) {
		t.Fatal("expected restored snapshot to equal the persisted view")
	}

	// Mutating the source view must not reach the restored store.
	view.Messages[0].ToolCalls[0].Arguments[2] = 'X'
	if string(restored.Snapshot().Messages[0].ToolCalls[0].Arguments) != `{"target_query_string":"EGFR"}` {
		t.Error("restored store shares memory with the source view")
	}

	// Appending resumes the ordinal sequence in the restored step.
	msg, err := restored.Append(NewMessage("analyst", RoleAssistant, KindText, "resuming"))
	if err != nil {
		t.Fatalf("append after restore: unexpected error: %v", err)
	}
	if msg.Ordinal != 1 {
		t.Errorf("expected ordinal 1, got %d", msg.Ordinal)
	}
	if msg.Step != "fetch_activity" {
		t.Errorf("expected step 'fetch_activity', got '%s'", msg.Step)
	}
}

func TestRestoreDropsPendingCheckpoints(t *testing.T) {
	store := NewStore("conv-10")
	if err := store.AdvancePhase("select_target"); err != nil {
		t.Fatalf("advance: unexpected error: %v", err)
	}
	if err := store.RecordCheckpoint("cp-1"); err != nil {
		t.Fatalf("record checkpoint: unexpected error: %v", err)
	}

	view := store.Snapshot()
	if len(view.PendingCheckpoints) != 1 {
		t.Fatalf("expected 1 pending checkpoint in the view, got %d", len(view.PendingCheckpoints))
	}

	// The gate that requested the checkpoint died with its process. The
	// restored store must not stay blocked on a marker nobody can resolve.
	restored := Restore(view)
	if len(restored.Snapshot().PendingCheckpoints) != 0 {
		t.Error("expected restored store to drop pending checkpoint markers")
	}
	if err := restored.AdvancePhase("fetch_activity"); err != nil {
		t.Errorf("expected restored store to advance freely, got %v", err)
	}
}

func TestRestoreTerminated(t *testing.T) {
	store := NewStore("conv-11")
	if err := store.Terminate("completed"); err != nil {
		t.Fatalf("terminate: unexpected error: %v", err)
	}

	restored := Restore(store.Snapshot())
	terminated, reason := restored.Terminated()
	if !terminated || reason != "completed" {
		t.Errorf("expected terminated with reason 'completed', got %v '%s'", terminated, reason)
	}
	if _, err := restored.Append(NewMessage("analyst", RoleAssistant, KindText, "too late")); !errors.Is(err, ErrConversationTerminated) {
		t.Errorf("expected ErrConversationTerminated, got %v", err)
	}
}

func TestPendingProposal(t *testing.T) {
	store := NewStore("")

	proposal := NewMessage("analyst", RoleAssistant, KindProposal, "fetching")
	proposal.ToolCalls = []ToolCall{
		{ID: "c1", Name: "download_protein_results", Arguments: []byte(`{}`)},
		{ID: "c2", Name: "select_target_from_query_results", Arguments: []byte(`{}`)},
	}
	if _, err := store.Append(proposal); err != nil {
		t.Fatalf("append: unexpected error: %v", err)
	}

	if _, pending := store.Snapshot().PendingProposal(); !pending {
		t.Fatal("expected pending proposal before any results")
	}

	res := NewMessage("controller", RoleTool, KindToolResult, "done")
	res.ToolResult = &ToolResult{CallID: "c1", Name: "download_protein_results", Output: "done"}
	if _, err := store.Append(res); err != nil {
		t.Fatalf("append: unexpected error: %v", err)
	}

	if _, pending := store.Snapshot().PendingProposal(); !pending {
		t.Fatal("expected pending proposal while one call lacks a result")
	}

	rej := NewMessage("controller", RoleTool, KindRejection, "forbidden")
	rej.ToolResult = &ToolResult{CallID: "c2", Name: "select_target_from_query_results", Error: "forbidden"}
	if _, err := store.Append(rej); err != nil {
		t.Fatalf("append: unexpected error: %v", err)
	}

	if _, pending := store.Snapshot().PendingProposal(); pending {
		t.Fatal("expected no pending proposal once every call is settled")
	}
}
