package conversation

// View is the read-only copy of conversation state handed to agents and
// policies. Agents never see the store itself.
type View struct {
	ConversationID     string            `json:"conversation_id"`
	Step               string            `json:"step"`
	Terminated         bool              `json:"terminated"`
	TerminationReason  string            `json:"termination_reason,omitempty"`
	PendingCheckpoints []string          `json:"pending_checkpoints,omitempty"`
	Values             map[string]string `json:"values,omitempty"`
	Messages           []Message         `json:"messages"`
}

// Last returns the most recent message, if any.
func (v View) Last() (Message, bool) {
	if len(v.Messages) == 0 {
		return Message{}, false
	}
	return v.Messages[len(v.Messages)-1], true
}

// LastSpeaker returns the speaker of the most recent assistant message.
// Used by round-robin scheduling.
func (v View) LastSpeaker() string {
	for i := len(v.Messages) - 1; i >= 0; i-- {
		if v.Messages[i].Role == RoleAssistant {
			return v.Messages[i].Speaker
		}
	}
	return ""
}

// HasToolResult reports whether a successful result for the named tool has
// been recorded anywhere in the transcript.
func (v View) HasToolResult(tool string) bool {
	for _, m := range v.Messages {
		if m.Kind == KindToolResult && m.ToolResult != nil &&
			m.ToolResult.Name == tool && m.ToolResult.Success() {
			return true
		}
	}
	return false
}

// PendingProposal returns the latest proposal message whose tool calls have
// no recorded results yet, if one exists. A proposal with an un-executed
// call means the conversation must continue.
func (v View) PendingProposal() (Message, bool) {
	executed := make(map[string]bool)
	for _, m := range v.Messages {
		if m.Kind == KindToolResult && m.ToolResult != nil && m.ToolResult.CallID != "" {
			executed[m.ToolResult.CallID] = true
		}
		if m.Kind == KindRejection && m.ToolResult != nil && m.ToolResult.CallID != "" {
			// A rejection settles the call: nothing left to execute.
			executed[m.ToolResult.CallID] = true
		}
	}
	for i := len(v.Messages) - 1; i >= 0; i-- {
		m := v.Messages[i]
		if m.Kind != KindProposal {
			continue
		}
		for _, tc := range m.ToolCalls {
			if !executed[tc.ID] {
				return m, true
			}
		}
	}
	return Message{}, false
}

// InStep returns the messages tagged with the given step, in order.
func (v View) InStep(step string) []Message {
	var out []Message
	for _, m := range v.Messages {
		if m.Step == step {
			out = append(out, m)
		}
	}
	return out
}
