// In-memory conversation journal.
//
// Information Hiding:
// - Map-based storage hidden behind ConversationJournal
// - Thread-safety via RWMutex hidden from callers
// - Defensive copies prevent external mutation of stored state

package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/richinex/symposium/conversation"
)

// InMemoryJournal implements ConversationJournal with process-local maps.
// Useful for testing and ephemeral runs. Thread-safe.
type InMemoryJournal struct {
	mu          sync.RWMutex
	views       map[string]conversation.View
	updated     map[string]time.Time
	checkpoints map[string][]CheckpointRecord
}

// NewInMemoryJournal creates an empty in-memory journal.
func NewInMemoryJournal() *InMemoryJournal {
	return &InMemoryJournal{
		views:       make(map[string]conversation.View),
		updated:     make(map[string]time.Time),
		checkpoints: make(map[string][]CheckpointRecord),
	}
}

// SaveConversation stores a copy of the complete conversation state.
func (m *InMemoryJournal) SaveConversation(_ context.Context, view conversation.View) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.views[view.ConversationID] = copyView(view)
	m.updated[view.ConversationID] = time.Now().UTC()
	return nil
}

// SaveMessage stores one message, replacing any earlier copy at the
// same ordinal.
func (m *InMemoryJournal) SaveMessage(_ context.Context, conversationID string, msg conversation.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	view, ok := m.views[conversationID]
	if !ok {
		view = conversation.View{
			ConversationID:     conversationID,
			Values:             map[string]string{},
			PendingCheckpoints: []string{},
			Messages:           []conversation.Message{},
		}
	}

	stored := copyMessage(msg)
	replaced := false
	for i := range view.Messages {
		if view.Messages[i].Ordinal == stored.Ordinal {
			view.Messages[i] = stored
			replaced = true
			break
		}
	}
	if !replaced {
		view.Messages = append(view.Messages, stored)
		sort.SliceStable(view.Messages, func(i, j int) bool {
			return view.Messages[i].Ordinal < view.Messages[j].Ordinal
		})
	}

	m.views[conversationID] = view
	m.updated[conversationID] = time.Now().UTC()
	return nil
}

// LoadConversation returns a copy of a stored conversation.
func (m *InMemoryJournal) LoadConversation(_ context.Context, id string) (conversation.View, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	view, ok := m.views[id]
	if !ok {
		return conversation.View{}, fmt.Errorf("%w: %s", ErrUnknownConversation, id)
	}
	return copyView(view), nil
}

// ListConversations lists stored conversations, most recently updated first.
func (m *InMemoryJournal) ListConversations(_ context.Context) ([]ConversationSummary, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	summaries := []ConversationSummary{}
	for id, view := range m.views {
		summaries = append(summaries, ConversationSummary{
			ID:         id,
			Step:       view.Step,
			Terminated: view.Terminated,
			Reason:     view.TerminationReason,
			Messages:   len(view.Messages),
			UpdatedAt:  m.updated[id],
		})
	}
	sort.Slice(summaries, func(i, j int) bool {
		if summaries[i].UpdatedAt.Equal(summaries[j].UpdatedAt) {
			return summaries[i].ID < summaries[j].ID
		}
		return summaries[i].UpdatedAt.After(summaries[j].UpdatedAt)
	})

	return summaries, nil
}

// DeleteConversation removes a conversation and its checkpoint records.
func (m *InMemoryJournal) DeleteConversation(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.views, id)
	delete(m.updated, id)
	delete(m.checkpoints, id)
	return nil
}

// Exists checks whether a conversation is stored.
func (m *InMemoryJournal) Exists(_ context.Context, id string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	_, ok := m.views[id]
	return ok, nil
}

// RecordCheckpointDecision appends a checkpoint audit record, replacing
// any earlier record with the same checkpoint ID.
func (m *InMemoryJournal) RecordCheckpointDecision(_ context.Context, rec CheckpointRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	records := m.checkpoints[rec.ConversationID]
	for i := range records {
		if records[i].ID == rec.ID {
			records[i] = rec
			m.checkpoints[rec.ConversationID] = records
			return nil
		}
	}
	m.checkpoints[rec.ConversationID] = append(records, rec)
	return nil
}

// CheckpointHistory returns a conversation's checkpoint records in
// request order.
func (m *InMemoryJournal) CheckpointHistory(_ context.Context, conversationID string) ([]CheckpointRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	records := m.checkpoints[conversationID]
	out := make([]CheckpointRecord, len(records))
	copy(out, records)
	return out, nil
}

// Close is a no-op for the in-memory journal.
func (m *InMemoryJournal) Close() error {
	return nil
}

func copyView(view conversation.View) conversation.View {
	out := view
	out.Values = make(map[string]string, len(view.Values))
	for k, v := range view.Values {
		out.Values[k] = v
	}
	out.PendingCheckpoints = make([]string, len(view.PendingCheckpoints))
	copy(out.PendingCheckpoints, view.PendingCheckpoints)
	out.Messages = make([]conversation.Message, len(view.Messages))
	for i, msg := range view.Messages {
		out.Messages[i] = copyMessage(msg)
	}
	return out
}

func copyMessage(msg conversation.Message) conversation.Message {
	out := msg
	if len(msg.ToolCalls) > 0 {
		out.ToolCalls = make([]conversation.ToolCall, len(msg.ToolCalls))
		copy(out.ToolCalls, msg.ToolCalls)
		for i := range out.ToolCalls {
			if len(msg.ToolCalls[i].Arguments) > 0 {
				out.ToolCalls[i].Arguments = append([]byte(nil), msg.ToolCalls[i].Arguments...)
			}
		}
	}
	if msg.ToolResult != nil {
		tr := *msg.ToolResult
		out.ToolResult = &tr
	}
	return out
}

// Verify InMemoryJournal implements the journal interface.
var _ ConversationJournal = (*InMemoryJournal)(nil)
