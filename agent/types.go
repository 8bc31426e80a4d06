// Package agent provides group chat participants.
//
// An agent here is a proposer, not an executor: it reads the shared
// transcript and produces one message or one set of tool calls per turn.
// Validation and execution stay with the controller.
package agent

import (
	"context"

	"github.com/richinex/symposium/conversation"
	"github.com/richinex/symposium/llm"
)

// Proposal is what an agent produces for one turn. Tool calls in a
// proposal are unvalidated; the controller decides whether they run.
type Proposal struct {
	Speaker   string
	Content   string
	ToolCalls []llm.ToolCall
	Usage     *llm.TokenUsage
}

// HasToolCalls reports whether the proposal asks for tool execution.
func (p Proposal) HasToolCalls() bool {
	return len(p.ToolCalls) > 0
}

// Info describes an agent to schedulers and listings.
type Info struct {
	Name        string
	Description string
	Capability  string
}

// Speaker is a conversation participant. The controller treats every
// proposal as untrusted input regardless of implementation.
type Speaker interface {
	Name() string
	Info() Info
	PermittedSet() map[string]bool
	Generate(ctx context.Context, view conversation.View) (Proposal, error)
}
