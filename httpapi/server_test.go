package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/richinex/symposium/conversation"
	"github.com/richinex/symposium/orchestration"
	"github.com/richinex/symposium/storage"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

func seededJournal(t *testing.T) *storage.InMemoryJournal {
	t.Helper()
	journal := storage.NewInMemoryJournal()
	view := conversation.View{
		ConversationID:     "conv-1",
		Step:               "fetch_activity",
		Values:             map[string]string{"target_chembl_id": "CHEMBL203"},
		PendingCheckpoints: []string{},
		Messages: []conversation.Message{
			{
				ID: "m-0", Ordinal: 0, Speaker: "moderator", Role: conversation.RoleSystem,
				Kind: conversation.KindStatus, Step: "select_target",
				Content: "entering step 'select_target'", CreatedAt: time.Now().UTC(),
			},
			{
				ID: "m-1", Ordinal: 1, Speaker: "engineer", Role: conversation.RoleAssistant,
				Kind: conversation.KindText, Step: "select_target",
				Content: "Searching for the EGFR target.", CreatedAt: time.Now().UTC(),
			},
		},
	}
	if err := journal.SaveConversation(context.Background(), view); err != nil {
		t.Fatalf("SaveConversation failed: %v", err)
	}
	return journal
}

func do(t *testing.T, s *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	s.Engine().ServeHTTP(w, req)
	return w
}

func TestTranscriptEndpoint(t *testing.T) {
	s := NewServer(seededJournal(t))

	w := do(t, s, "GET", "/conversations/conv-1/transcript", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var messages []conversation.Message
	if err := json.Unmarshal(w.Body.Bytes(), &messages); err != nil {
		t.Fatalf("failed to decode transcript: %v", err)
	}
	if len(messages) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(messages))
	}
	if messages[1].Speaker != "engineer" {
		t.Errorf("expected speaker 'engineer', got '%s'", messages[1].Speaker)
	}
	if messages[0].Ordinal != 0 || messages[1].Ordinal != 1 {
		t.Error("expected ordinal order preserved in export")
	}
}

func TestSnapshotEndpoint(t *testing.T) {
	s := NewServer(seededJournal(t))

	w := do(t, s, "GET", "/conversations/conv-1/snapshot", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var view conversation.View
	if err := json.Unmarshal(w.Body.Bytes(), &view); err != nil {
		t.Fatalf("failed to decode snapshot: %v", err)
	}
	if view.ConversationID != "conv-1" {
		t.Errorf("expected 'conv-1', got '%s'", view.ConversationID)
	}
	if view.Values["target_chembl_id"] != "CHEMBL203" {
		t.Errorf("expected committed value in snapshot, got '%s'", view.Values["target_chembl_id"])
	}
}

func TestTranscriptUnknownConversation(t *testing.T) {
	s := NewServer(storage.NewInMemoryJournal())

	w := do(t, s, "GET", "/conversations/nope/transcript", "")
	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", w.Code)
	}
}

func TestListConversationsEndpoint(t *testing.T) {
	s := NewServer(seededJournal(t))

	w := do(t, s, "GET", "/conversations", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var summaries []storage.ConversationSummary
	if err := json.Unmarshal(w.Body.Bytes(), &summaries); err != nil {
		t.Fatalf("failed to decode summaries: %v", err)
	}
	if len(summaries) != 1 {
		t.Fatalf("expected 1 summary, got %d", len(summaries))
	}
	if summaries[0].Messages != 2 {
		t.Errorf("expected message count 2, got %d", summaries[0].Messages)
	}
}

func TestPendingWithoutGate(t *testing.T) {
	s := NewServer(storage.NewInMemoryJournal())

	w := do(t, s, "GET", "/checkpoints", "")
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503 without a live gate, got %d", w.Code)
	}
	w = do(t, s, "POST", "/checkpoints/cp-1/approve", "")
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503 without a live gate, got %d", w.Code)
	}
}

func liveGate(t *testing.T) (*conversation.Store, *orchestration.Gate, orchestration.Checkpoint) {
	t.Helper()
	store := conversation.NewStore("conv-live")
	if err := store.AdvancePhase("select_target"); err != nil {
		t.Fatalf("advance: unexpected error: %v", err)
	}
	gate := orchestration.NewGate(store)
	cp, err := gate.Request("select_target", "target_chembl_id", "CHEMBL203", "Confirm the selected target.")
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	return store, gate, cp
}

func TestApproveEndpoint(t *testing.T) {
	store, gate, cp := liveGate(t)
	s := NewServer(storage.NewInMemoryJournal()).WithGate(gate)

	w := do(t, s, "GET", "/checkpoints", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var pending []orchestration.Checkpoint
	if err := json.Unmarshal(w.Body.Bytes(), &pending); err != nil {
		t.Fatalf("failed to decode pending list: %v", err)
	}
	if len(pending) != 1 || pending[0].ID != cp.ID {
		t.Fatalf("expected the requested checkpoint pending, got %+v", pending)
	}

	w = do(t, s, "POST", "/checkpoints/"+cp.ID+"/approve", `{"decided_by": "alice"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var decided orchestration.Checkpoint
	if err := json.Unmarshal(w.Body.Bytes(), &decided); err != nil {
		t.Fatalf("failed to decode decision: %v", err)
	}
	if decided.State != orchestration.CheckpointApproved {
		t.Errorf("expected state approved, got '%s'", decided.State)
	}
	if decided.DecidedBy != "alice" {
		t.Errorf("expected decider 'alice', got '%s'", decided.DecidedBy)
	}

	if value, ok := store.Value("target_chembl_id"); !ok || value != "CHEMBL203" {
		t.Errorf("expected approved value committed, got '%s' (ok=%v)", value, ok)
	}
	if len(gate.Pending()) != 0 {
		t.Error("expected no pending checkpoints after approval")
	}
}

func TestAmendEndpoint(t *testing.T) {
	store, gate, cp := liveGate(t)
	s := NewServer(storage.NewInMemoryJournal()).WithGate(gate)

	// A replacement value is mandatory.
	w := do(t, s, "POST", "/checkpoints/"+cp.ID+"/amend", `{"decided_by": "alice"}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing value, got %d", w.Code)
	}

	w = do(t, s, "POST", "/checkpoints/"+cp.ID+"/amend", `{"decided_by": "alice", "value": "CHEMBL25"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if value, _ := store.Value("target_chembl_id"); value != "CHEMBL25" {
		t.Errorf("expected amended value committed, got '%s'", value)
	}
}

func TestRejectEndpoint(t *testing.T) {
	store, gate, cp := liveGate(t)
	s := NewServer(storage.NewInMemoryJournal()).WithGate(gate)

	w := do(t, s, "POST", "/checkpoints/"+cp.ID+"/reject", `{"note": "wrong organism"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if _, ok := store.Value("target_chembl_id"); ok {
		t.Error("expected no value committed on reject")
	}

	// Deciding the same checkpoint again conflicts.
	w = do(t, s, "POST", "/checkpoints/"+cp.ID+"/approve", "")
	if w.Code != http.StatusConflict {
		t.Errorf("expected 409 for a decided checkpoint, got %d", w.Code)
	}
}

func TestCancelEndpoint(t *testing.T) {
	store, gate, cp := liveGate(t)
	s := NewServer(storage.NewInMemoryJournal()).WithGate(gate)

	w := do(t, s, "POST", "/checkpoints/"+cp.ID+"/cancel", `{"note": "rerun tomorrow"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	terminated, reason := store.Terminated()
	if !terminated || reason != orchestration.ReasonCancelled {
		t.Errorf("expected cancelled conversation, got %v '%s'", terminated, reason)
	}
}

func TestDecideUnknownCheckpoint(t *testing.T) {
	_, gate, _ := liveGate(t)
	s := NewServer(storage.NewInMemoryJournal()).WithGate(gate)

	w := do(t, s, "POST", "/checkpoints/no-such-id/approve", "")
	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", w.Code)
	}
}

func TestCheckpointHistoryEndpoint(t *testing.T) {
	journal := storage.NewInMemoryJournal()
	rec := storage.CheckpointRecord{
		ID: "cp-1", ConversationID: "conv-1", Step: "select_target",
		Key: "target_chembl_id", Proposed: "CHEMBL203", State: "approved",
		DecidedBy: "alice", Committed: "CHEMBL203",
	}
	if err := journal.RecordCheckpointDecision(context.Background(), rec); err != nil {
		t.Fatalf("RecordCheckpointDecision failed: %v", err)
	}
	s := NewServer(journal)

	w := do(t, s, "GET", "/conversations/conv-1/checkpoints", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var records []storage.CheckpointRecord
	if err := json.Unmarshal(w.Body.Bytes(), &records); err != nil {
		t.Fatalf("failed to decode records: %v", err)
	}
	if len(records) != 1 || records[0].Committed != "CHEMBL203" {
		t.Errorf("expected the recorded decision, got %+v", records)
	}
}
