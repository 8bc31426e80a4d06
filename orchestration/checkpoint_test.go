package orchestration

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/richinex/symposium/conversation"
)

func gateFixture(t *testing.T) (*Gate, *conversation.Store) {
	t.Helper()
	store := conversation.NewStore("conv-gate")
	if err := store.AdvancePhase("select_target"); err != nil {
		t.Fatalf("advance to first step: %v", err)
	}
	gate := NewGate(store).WithClock(func() time.Time {
		return time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)
	})
	return gate, store
}

func requestFixture(t *testing.T, gate *Gate) Checkpoint {
	t.Helper()
	cp, err := gate.Request("select_target", "target_chembl_id", "CHEMBL203",
		"Confirm the selected target.")
	if err != nil {
		t.Fatalf("request checkpoint: %v", err)
	}
	return cp
}

func TestRequestBlocksPhaseAdvance(t *testing.T) {
	gate, store := gateFixture(t)
	cp := requestFixture(t, gate)

	if cp.State != CheckpointPending {
		t.Fatalf("expected pending state, got %s", cp.State)
	}
	if cp.ConversationID != "conv-gate" || cp.ID == "" {
		t.Fatalf("checkpoint not bound to the conversation: %+v", cp)
	}

	err := store.AdvancePhase("fetch_activity")
	if !errors.Is(err, conversation.ErrCheckpointPending) {
		t.Fatalf("expected ErrCheckpointPending, got %v", err)
	}

	view := store.Snapshot()
	if len(view.PendingCheckpoints) != 1 || view.PendingCheckpoints[0] != cp.ID {
		t.Fatalf("store should track the pending checkpoint, got %v", view.PendingCheckpoints)
	}

	last, ok := view.Last()
	if !ok || last.Kind != conversation.KindStatus {
		t.Fatalf("expected a status announcement, got %+v", last)
	}
	if got := last.Content; got == "" || !containsAll(got, "select_target", "target_chembl_id", "CHEMBL203", "awaiting human review") {
		t.Fatalf("announcement missing detail: %q", got)
	}
}

func TestApproveCommitsProposedValue(t *testing.T) {
	gate, store := gateFixture(t)
	cp := requestFixture(t, gate)

	decided, err := gate.Approve(context.Background(), cp.ID, "reviewer")
	if err != nil {
		t.Fatalf("approve: %v", err)
	}
	if decided.State != CheckpointApproved || decided.DecidedBy != "reviewer" {
		t.Fatalf("unexpected decision record: %+v", decided)
	}
	if want := time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC); !decided.DecidedAt.Equal(want) {
		t.Fatalf("expected clock-injected DecidedAt %v, got %v", want, decided.DecidedAt)
	}
	if decided.Committed != "CHEMBL203" {
		t.Fatalf("expected committed value CHEMBL203, got %q", decided.Committed)
	}

	val, ok := store.Value("target_chembl_id")
	if !ok || val != "CHEMBL203" {
		t.Fatalf("expected committed store value, got %q (ok=%v)", val, ok)
	}
	if err := store.AdvancePhase("fetch_activity"); err != nil {
		t.Fatalf("advance should be unblocked after approval: %v", err)
	}
	if len(gate.Pending()) != 0 {
		t.Fatal("pending queue should be empty after the decision")
	}

	// The approval event must be in the transcript, and before any message
	// could rely on the committed value.
	if !hasApprovalEvent(store.Snapshot(), "CHEMBL203") {
		t.Fatal("expected an approval message naming the committed value")
	}
}

func TestAmendCommitsReplacement(t *testing.T) {
	gate, store := gateFixture(t)
	cp := requestFixture(t, gate)

	if _, err := gate.Amend(context.Background(), cp.ID, "reviewer", ""); err == nil {
		t.Fatal("expected an error for an empty amended value")
	}

	decided, err := gate.Amend(context.Background(), cp.ID, "reviewer", "CHEMBL25")
	if err != nil {
		t.Fatalf("amend: %v", err)
	}
	if decided.State != CheckpointAmended || decided.Committed != "CHEMBL25" {
		t.Fatalf("unexpected amendment record: %+v", decided)
	}

	val, ok := store.Value("target_chembl_id")
	if !ok || val != "CHEMBL25" {
		t.Fatalf("expected the replacement committed, got %q (ok=%v)", val, ok)
	}
	if !hasApprovalEvent(store.Snapshot(), "replaces") {
		t.Fatal("expected an amendment message noting the replacement")
	}
}

func TestRejectCommitsNothing(t *testing.T) {
	gate, store := gateFixture(t)
	cp := requestFixture(t, gate)

	decided, err := gate.Reject(context.Background(), cp.ID, "reviewer", "wrong organism")
	if err != nil {
		t.Fatalf("reject: %v", err)
	}
	if decided.State != CheckpointRejected || decided.Committed != "" {
		t.Fatalf("rejection must not commit: %+v", decided)
	}

	if _, ok := store.Value("target_chembl_id"); ok {
		t.Fatal("rejected value must not be committed")
	}
	if got := store.Step(); got != "select_target" {
		t.Fatalf("step should stay current after rejection, got %q", got)
	}
	if !hasApprovalEvent(store.Snapshot(), "wrong organism") {
		t.Fatal("expected the rejection reason in the transcript")
	}
	if !gate.RejectedBefore("select_target", "CHEMBL203") {
		t.Fatal("gate should remember the rejected value")
	}
	if gate.RejectedBefore("select_target", "CHEMBL25") {
		t.Fatal("a different value was never rejected")
	}
}

func TestCancelTerminatesConversation(t *testing.T) {
	gate, store := gateFixture(t)
	cp := requestFixture(t, gate)

	decided, err := gate.Cancel(context.Background(), cp.ID, "reviewer", "not today")
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if decided.State != CheckpointCancelled {
		t.Fatalf("expected cancelled state, got %s", decided.State)
	}

	terminated, reason := store.Terminated()
	if !terminated || reason != ReasonCancelled {
		t.Fatalf("expected termination %q, got %v %q", ReasonCancelled, terminated, reason)
	}
	if _, err := store.Append(conversation.NewMessage(
		"moderator", conversation.RoleSystem, conversation.KindStatus, "too late")); err == nil {
		t.Fatal("appends must fail after cancellation")
	}
}

func TestDecideTwiceAndUnknown(t *testing.T) {
	gate, _ := gateFixture(t)
	cp := requestFixture(t, gate)

	if _, err := gate.Approve(context.Background(), cp.ID, "reviewer"); err != nil {
		t.Fatalf("first approve: %v", err)
	}
	if _, err := gate.Reject(context.Background(), cp.ID, "reviewer", "changed my mind"); !errors.Is(err, ErrCheckpointDecided) {
		t.Fatalf("expected ErrCheckpointDecided, got %v", err)
	}
	if _, err := gate.Approve(context.Background(), "no-such-id", "reviewer"); !errors.Is(err, ErrUnknownCheckpoint) {
		t.Fatalf("expected ErrUnknownCheckpoint, got %v", err)
	}
}

func TestPendingOrderAndLookup(t *testing.T) {
	gate, _ := gateFixture(t)
	first := requestFixture(t, gate)
	second, err := gate.Request("select_target", "assay_type", "IC50", "Confirm the assay type.")
	if err != nil {
		t.Fatalf("second request: %v", err)
	}

	pending := gate.Pending()
	if len(pending) != 2 || pending[0].ID != first.ID || pending[1].ID != second.ID {
		t.Fatalf("expected request order preserved, got %+v", pending)
	}

	if _, ok := gate.Get(first.ID); !ok {
		t.Fatal("expected to find the first checkpoint by ID")
	}
	if cp, ok := gate.PendingForStep("select_target"); !ok || cp.ID != first.ID {
		t.Fatalf("expected the oldest pending checkpoint for the step, got %+v (ok=%v)", cp, ok)
	}
	if _, ok := gate.PendingForStep("fetch_activity"); ok {
		t.Fatal("no checkpoint was requested for fetch_activity")
	}
}

func TestAuditReceivesDecisions(t *testing.T) {
	gate, _ := gateFixture(t)
	audit := &recordingAudit{}
	gate.WithAudit(audit)
	cp := requestFixture(t, gate)

	if _, err := gate.Approve(context.Background(), cp.ID, "reviewer"); err != nil {
		t.Fatalf("approve: %v", err)
	}
	if len(audit.records) != 1 {
		t.Fatalf("expected one audit record, got %d", len(audit.records))
	}
	got := audit.records[0]
	if got.ID != cp.ID || got.State != CheckpointApproved || got.Committed != "CHEMBL203" {
		t.Fatalf("unexpected audit record: %+v", got)
	}
}

type recordingAudit struct {
	records []Checkpoint
}

func (r *recordingAudit) RecordCheckpoint(_ context.Context, cp Checkpoint) error {
	r.records = append(r.records, cp)
	return nil
}

var _ AuditLog = (*recordingAudit)(nil)

func hasApprovalEvent(view conversation.View, fragment string) bool {
	for _, m := range view.Messages {
		if m.Kind == conversation.KindApproval && strings.Contains(m.Content, fragment) {
			return true
		}
	}
	return false
}

func containsAll(s string, fragments ...string) bool {
	for _, f := range fragments {
		if !strings.Contains(s, f) {
			return false
		}
	}
	return true
}
