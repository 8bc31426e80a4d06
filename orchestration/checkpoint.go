// Human checkpoint gate.
//
// A step that guards a value (the selected ChEMBL target, for instance)
// cannot advance on the agents' say-so alone. The gate parks the
// proposed value, blocks the phase advance, and commits only what a
// human approved or amended. The approval event lands in the transcript
// before the value lands in state.
//
// Information Hiding:
// - Pending queue and decided-state bookkeeping hidden
// - Commit ordering (approval event, then value) hidden

package orchestration

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/richinex/symposium/conversation"
)

// CheckpointState is the lifecycle state of a checkpoint.
type CheckpointState string

const (
	CheckpointPending   CheckpointState = "pending"
	CheckpointApproved  CheckpointState = "approved"
	CheckpointAmended   CheckpointState = "amended"
	CheckpointRejected  CheckpointState = "rejected"
	CheckpointCancelled CheckpointState = "cancelled"
)

// Checkpoint is one guarded value awaiting, or past, human review.
type Checkpoint struct {
	ID             string          `json:"id"`
	ConversationID string          `json:"conversation_id"`
	Step           string          `json:"step"`
	Key            string          `json:"key"`
	Proposed       string          `json:"proposed"`
	Prompt         string          `json:"prompt"`
	State          CheckpointState `json:"state"`
	DecidedBy      string          `json:"decided_by,omitempty"`
	Committed      string          `json:"committed,omitempty"`
	Note           string          `json:"note,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
	DecidedAt      time.Time       `json:"decided_at"`
}

// AuditLog records checkpoint decisions durably. Implemented by the
// storage package; nil disables auditing.
type AuditLog interface {
	RecordCheckpoint(ctx context.Context, cp Checkpoint) error
}

var (
	// ErrUnknownCheckpoint means no checkpoint with that ID exists.
	ErrUnknownCheckpoint = errors.New("unknown checkpoint")
	// ErrCheckpointDecided means the checkpoint was already decided.
	ErrCheckpointDecided = errors.New("checkpoint already decided")
)

// Gate owns the pending checkpoints of one conversation.
type Gate struct {
	mu           sync.Mutex
	store        *conversation.Store
	audit        AuditLog
	notify       func(conversation.Message)
	pending      map[string]*Checkpoint
	order        []string
	decided      map[string]CheckpointState
	lastRejected map[string]string
	now          func() time.Time
}

// NewGate creates a gate bound to a conversation store.
func NewGate(store *conversation.Store) *Gate {
	return &Gate{
		store:        store,
		pending:      make(map[string]*Checkpoint),
		decided:      make(map[string]CheckpointState),
		lastRejected: make(map[string]string),
		now:          time.Now,
	}
}

// WithAudit enables durable decision records.
func (g *Gate) WithAudit(audit AuditLog) *Gate {
	g.audit = audit
	return g
}

// WithClock overrides the clock. Tests use this for deterministic times.
func (g *Gate) WithClock(now func() time.Time) *Gate {
	g.now = now
	return g
}

// WithNotify registers a callback invoked with every message the gate
// appends. The controller journals gate-authored messages through it.
func (g *Gate) WithNotify(fn func(conversation.Message)) *Gate {
	g.notify = fn
	return g
}

// Request parks a proposed guarded value and marks the checkpoint
// pending on the store, which blocks AdvancePhase until it resolves.
// A status message announcing the pause is appended to the transcript.
func (g *Gate) Request(step, key, proposed, prompt string) (Checkpoint, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	cp := &Checkpoint{
		ID:             uuid.NewString(),
		ConversationID: g.store.ID(),
		Step:           step,
		Key:            key,
		Proposed:       proposed,
		Prompt:         prompt,
		State:          CheckpointPending,
		CreatedAt:      g.now().UTC(),
	}

	if err := g.store.RecordCheckpoint(cp.ID); err != nil {
		return Checkpoint{}, fmt.Errorf("record checkpoint: %w", err)
	}

	announce := fmt.Sprintf("checkpoint %s: step '%s' proposes %s = '%s'; awaiting human review",
		cp.ID, step, key, proposed)
	announced, err := g.store.Append(conversation.NewMessage(
		"moderator", conversation.RoleSystem, conversation.KindStatus, announce))
	if err != nil {
		g.store.ResolveCheckpoint(cp.ID)
		return Checkpoint{}, fmt.Errorf("announce checkpoint: %w", err)
	}
	if g.notify != nil {
		g.notify(announced)
	}

	g.pending[cp.ID] = cp
	g.order = append(g.order, cp.ID)
	return *cp, nil
}

// Approve commits the proposed value and resolves the checkpoint.
func (g *Gate) Approve(ctx context.Context, id, decider string) (Checkpoint, error) {
	return g.decide(ctx, id, decider, CheckpointApproved, "", "")
}

// Amend commits a reviewer-supplied replacement instead of the proposal.
func (g *Gate) Amend(ctx context.Context, id, decider, replacement string) (Checkpoint, error) {
	if replacement == "" {
		return Checkpoint{}, fmt.Errorf("amended value required")
	}
	return g.decide(ctx, id, decider, CheckpointAmended, replacement, "")
}

// Reject resolves the checkpoint without committing anything. The step
// stays current and agents must propose again.
func (g *Gate) Reject(ctx context.Context, id, decider, reason string) (Checkpoint, error) {
	return g.decide(ctx, id, decider, CheckpointRejected, "", reason)
}

// Cancel resolves the checkpoint and terminates the conversation.
func (g *Gate) Cancel(ctx context.Context, id, decider, reason string) (Checkpoint, error) {
	cp, err := g.decide(ctx, id, decider, CheckpointCancelled, "", reason)
	if err != nil {
		return Checkpoint{}, err
	}
	if err := g.store.Terminate(ReasonCancelled); err != nil {
		return cp, fmt.Errorf("terminate after cancel: %w", err)
	}
	return cp, nil
}

// decide applies one decision verb. The decision message is appended
// before any value is committed, so a committed guarded value always has
// a matching approval event in the transcript.
func (g *Gate) decide(ctx context.Context, id, decider string, state CheckpointState, replacement, note string) (Checkpoint, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	cp, exists := g.pending[id]
	if !exists {
		if prior, done := g.decided[id]; done {
			return Checkpoint{}, fmt.Errorf("%w: %s (%s)", ErrCheckpointDecided, id, prior)
		}
		return Checkpoint{}, fmt.Errorf("%w: %s", ErrUnknownCheckpoint, id)
	}

	var content string
	committed := ""
	switch state {
	case CheckpointApproved:
		committed = cp.Proposed
		content = fmt.Sprintf("approved %s = '%s'", cp.Key, committed)
	case CheckpointAmended:
		committed = replacement
		content = fmt.Sprintf("amended %s: '%s' replaces proposed '%s'", cp.Key, committed, cp.Proposed)
	case CheckpointRejected:
		content = fmt.Sprintf("rejected proposed %s = '%s'", cp.Key, cp.Proposed)
		if note != "" {
			content += ": " + note
		}
	case CheckpointCancelled:
		content = fmt.Sprintf("cancelled at checkpoint for %s = '%s'", cp.Key, cp.Proposed)
		if note != "" {
			content += ": " + note
		}
	default:
		return Checkpoint{}, fmt.Errorf("invalid checkpoint state '%s'", state)
	}

	msg := conversation.NewMessage(decider, conversation.RoleUser, conversation.KindApproval, content)
	appended, err := g.store.Append(msg)
	if err != nil {
		return Checkpoint{}, fmt.Errorf("record decision: %w", err)
	}
	if g.notify != nil {
		g.notify(appended)
	}

	if committed != "" {
		g.store.CommitValue(cp.Key, committed)
	}
	g.store.ResolveCheckpoint(id)

	cp.State = state
	cp.DecidedBy = decider
	cp.Committed = committed
	cp.Note = note
	cp.DecidedAt = g.now().UTC()

	delete(g.pending, id)
	g.decided[id] = state
	if state == CheckpointRejected {
		g.lastRejected[cp.Step] = cp.Proposed
	}
	for i, pid := range g.order {
		if pid == id {
			g.order = append(g.order[:i], g.order[i+1:]...)
			break
		}
	}

	if g.audit != nil {
		_ = g.audit.RecordCheckpoint(ctx, *cp) // best-effort audit
	}

	return *cp, nil
}

// Pending returns pending checkpoints in request order.
func (g *Gate) Pending() []Checkpoint {
	g.mu.Lock()
	defer g.mu.Unlock()

	out := make([]Checkpoint, 0, len(g.order))
	for _, id := range g.order {
		if cp, exists := g.pending[id]; exists {
			out = append(out, *cp)
		}
	}
	return out
}

// Get returns a pending checkpoint by ID.
func (g *Gate) Get(id string) (Checkpoint, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	cp, exists := g.pending[id]
	if !exists {
		return Checkpoint{}, false
	}
	return *cp, true
}

// RejectedBefore reports whether a reviewer already rejected this exact
// proposed value for the step. The controller will not re-request a
// checkpoint for a value a human turned down; the agents must surface a
// fresh one first.
func (g *Gate) RejectedBefore(step, proposed string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	last, rejected := g.lastRejected[step]
	return rejected && last == proposed
}

// PendingForStep returns the pending checkpoint for the named step, if
// one exists. The controller uses it to avoid duplicate requests.
func (g *Gate) PendingForStep(step string) (Checkpoint, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, id := range g.order {
		if cp, exists := g.pending[id]; exists && cp.Step == step {
			return *cp, true
		}
	}
	return Checkpoint{}, false
}
