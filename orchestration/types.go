// Package orchestration runs the group chat: turn scheduling, the
// termination policy, the human checkpoint gate, and the controller
// loop that ties them to the conversation store.
package orchestration

import (
	"github.com/richinex/symposium/conversation"
	"github.com/richinex/symposium/llm"
)

// Verdict is the termination policy's judgement of a conversation.
type Verdict int

const (
	// VerdictContinue means the conversation should keep going.
	VerdictContinue Verdict = iota
	// VerdictAwaitingHuman means a checkpoint is pending and the loop
	// must suspend until a reviewer decides.
	VerdictAwaitingHuman
	// VerdictTerminated means the conversation is over.
	VerdictTerminated
)

// String returns the verdict name for logs and status messages.
func (v Verdict) String() string {
	switch v {
	case VerdictContinue:
		return "continue"
	case VerdictAwaitingHuman:
		return "awaiting_human"
	case VerdictTerminated:
		return "terminated"
	default:
		return "unknown"
	}
}

// Decision is one evaluation of the termination policy.
type Decision struct {
	Verdict Verdict
	// Reason is the termination reason when Verdict is VerdictTerminated.
	Reason string
	// Note carries a transcript-visible explanation when the policy
	// refuses a termination request. Empty otherwise.
	Note string
}

// TokenStats tracks token usage across a conversation run.
type TokenStats struct {
	PromptTokens     uint32 `json:"prompt_tokens"`
	CompletionTokens uint32 `json:"completion_tokens"`
	TotalTokens      uint32 `json:"total_tokens"`
	LLMCalls         int    `json:"llm_calls"`
}

// AddUsage adds token usage from an LLM call.
func (ts *TokenStats) AddUsage(usage *llm.TokenUsage) {
	if usage == nil {
		return
	}
	ts.PromptTokens += usage.PromptTokens
	ts.CompletionTokens += usage.CompletionTokens
	ts.TotalTokens += usage.TotalTokens
}

// Turn records what happened in one round of the loop.
type Turn struct {
	Round    int      `json:"round"`
	Speaker  string   `json:"speaker"`
	Step     string   `json:"step"`
	Proposed []string `json:"proposed,omitempty"`
	Executed int      `json:"executed"`
	Rejected int      `json:"rejected"`
	Note     string   `json:"note,omitempty"`
}

// Result is the outcome of a conversation run.
type Result struct {
	ConversationID string            `json:"conversation_id"`
	Reason         string            `json:"reason"`
	Rounds         int               `json:"rounds"`
	Turns          []Turn            `json:"turns"`
	Stats          *TokenStats       `json:"stats,omitempty"`
	Final          conversation.View `json:"final"`
}

// Completed reports whether the run ended through the terminate tool
// rather than a stall, cap, or cancellation.
func (r Result) Completed() bool {
	return r.Reason == ReasonCompleted
}

// Termination reasons recorded on the store and in Result.Reason.
const (
	ReasonCompleted  = "completed"
	ReasonStalled    = "stalled"
	ReasonRoundLimit = "round limit reached"
	ReasonCancelled  = "cancelled"
	ReasonNoSpeaker  = "no eligible speaker"
)
