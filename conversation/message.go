// Package conversation defines the transcript model shared by the
// controller, tools, storage, and review surfaces, and the append-only
// store that owns it.
package conversation

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Roles identify who produced a message.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// Kind classifies a message's function in the transcript.
type Kind string

const (
	// KindText is plain content with no tool calls.
	KindText Kind = "text"
	// KindProposal is assistant content carrying one or more tool calls
	// that have not been executed yet.
	KindProposal Kind = "proposal"
	// KindToolResult records an executor outcome, success or failure.
	KindToolResult Kind = "tool_result"
	// KindRejection records a validator or policy rejection. Rejections are
	// appended, never swallowed, so agents and the human can see them.
	KindRejection Kind = "rejection"
	// KindApproval records a human checkpoint decision.
	KindApproval Kind = "approval"
	// KindStatus is controller bookkeeping visible to agents.
	KindStatus Kind = "status"
)

// ToolCall is a structured request to invoke a named tool. Arguments stay
// raw JSON until the validator decodes them against the tool's schema.
type ToolCall struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

// ToolResult records the outcome of one executed (or rejected) tool call.
type ToolResult struct {
	CallID string `json:"call_id,omitempty"`
	Name   string `json:"name"`
	Output string `json:"output,omitempty"`
	Error  string `json:"error,omitempty"`
}

// Success reports whether execution completed without error.
func (r ToolResult) Success() bool {
	return r.Error == ""
}

// Message is one transcript entry. Immutable once appended; the store
// assigns Ordinal and Step, callers never do.
type Message struct {
	ID         string      `json:"id"`
	Ordinal    int         `json:"ordinal"`
	Speaker    string      `json:"speaker"`
	Role       string      `json:"role"`
	Kind       Kind        `json:"kind"`
	Content    string      `json:"content"`
	ToolCalls  []ToolCall  `json:"tool_calls,omitempty"`
	ToolResult *ToolResult `json:"tool_result,omitempty"`
	Step       string      `json:"step,omitempty"`
	CreatedAt  time.Time   `json:"created_at"`
}

// NewMessage creates an unappended message with a fresh ID. Ordinal and Step
// are zero until Append assigns them.
func NewMessage(speaker, role string, kind Kind, content string) Message {
	return Message{
		ID:        uuid.NewString(),
		Speaker:   speaker,
		Role:      role,
		Kind:      kind,
		Content:   content,
		CreatedAt: time.Now().UTC(),
	}
}

// HasToolCalls reports whether the message proposes any tool invocation.
func (m Message) HasToolCalls() bool {
	return len(m.ToolCalls) > 0
}

// clone deep-copies the message so snapshot holders cannot mutate the store.
func (m Message) clone() Message {
	out := m
	if len(m.ToolCalls) > 0 {
		out.ToolCalls = make([]ToolCall, len(m.ToolCalls))
		for i, tc := range m.ToolCalls {
			cp := tc
			if tc.Arguments != nil {
				cp.Arguments = make(json.RawMessage, len(tc.Arguments))
				copy(cp.Arguments, tc.Arguments)
			}
			out.ToolCalls[i] = cp
		}
	}
	if m.ToolResult != nil {
		r := *m.ToolResult
		out.ToolResult = &r
	}
	return out
}
