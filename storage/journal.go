// Package storage provides durable persistence for conversations,
// checkpoint decisions, and tool artifacts.
//
// Information Hiding:
// - Storage backend implementation details hidden behind interface
// - Allows swapping between memory and SQLite without API changes
// - Each backend encapsulates its own data structures and schema

package storage

import (
	"context"
	"errors"
	"time"

	"github.com/richinex/symposium/conversation"
)

// ErrUnknownConversation means no conversation with that ID is stored.
var ErrUnknownConversation = errors.New("unknown conversation")

// ConversationSummary describes a stored conversation for listings.
type ConversationSummary struct {
	ID         string    `json:"id"`
	Step       string    `json:"step"`
	Terminated bool      `json:"terminated"`
	Reason     string    `json:"reason,omitempty"`
	Messages   int       `json:"messages"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// CheckpointRecord is one audited checkpoint decision. The orchestration
// layer produces these; storage only keeps them.
type CheckpointRecord struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversation_id"`
	Step           string    `json:"step"`
	Key            string    `json:"key"`
	Proposed       string    `json:"proposed"`
	State          string    `json:"state"`
	DecidedBy      string    `json:"decided_by,omitempty"`
	Committed      string    `json:"committed,omitempty"`
	Note           string    `json:"note,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	DecidedAt      time.Time `json:"decided_at"`
}

// ConversationJournal persists conversation state. SaveConversation writes
// the full state, SaveMessage appends incrementally; replaying either is
// idempotent, keyed on the message ordinal.
type ConversationJournal interface {
	// SaveConversation persists the complete state of a conversation.
	SaveConversation(ctx context.Context, view conversation.View) error

	// SaveMessage persists one appended message.
	SaveMessage(ctx context.Context, conversationID string, msg conversation.Message) error

	// LoadConversation rebuilds a persisted view.
	// Returns ErrUnknownConversation if the ID is not stored.
	LoadConversation(ctx context.Context, id string) (conversation.View, error)

	// ListConversations lists stored conversations, most recent first.
	ListConversations(ctx context.Context) ([]ConversationSummary, error)

	// DeleteConversation removes a conversation and everything under it.
	DeleteConversation(ctx context.Context, id string) error

	// Exists checks whether a conversation is stored.
	Exists(ctx context.Context, id string) (bool, error)

	// RecordCheckpointDecision appends a checkpoint audit record.
	RecordCheckpointDecision(ctx context.Context, rec CheckpointRecord) error

	// CheckpointHistory returns a conversation's checkpoint records in
	// request order.
	CheckpointHistory(ctx context.Context, conversationID string) ([]CheckpointRecord, error)

	// Close releases backend resources.
	Close() error
}
