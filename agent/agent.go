// Group chat participant backed by an LLM provider.
//
// This is deliberately not a ReAct loop: an agent produces exactly one
// proposal per turn and never executes anything itself. The controller
// validates, executes, and records; the agent only ever sees a read-only
// view of the transcript.
//
// Information Hiding:
// - Transcript-to-provider message projection hidden
// - Tool definition assembly hidden
// - LLM communication hidden

package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/richinex/symposium/conversation"
	"github.com/richinex/symposium/llm"
	"github.com/richinex/symposium/tools"
)

// Agent proposes messages and tool calls in the group chat.
type Agent struct {
	config   Config
	provider llm.Provider
	registry *tools.Registry
	verbose  bool
}

var _ Speaker = (*Agent)(nil)

// New creates an agent over a provider and the shared tool registry.
func New(config Config, provider llm.Provider, registry *tools.Registry) *Agent {
	return &Agent{
		config:   config,
		provider: provider,
		registry: registry,
	}
}

// Name returns the agent's name.
func (a *Agent) Name() string {
	return a.config.Name
}

// Description returns the agent's description.
func (a *Agent) Description() string {
	return a.config.Description
}

// Capability returns the agent's capability tag.
func (a *Agent) Capability() string {
	return a.config.Capability
}

// Info returns the agent's scheduler-facing description.
func (a *Agent) Info() Info {
	return Info{
		Name:        a.config.Name,
		Description: a.config.Description,
		Capability:  a.config.Capability,
	}
}

// PermittedSet returns the tools this agent may call.
func (a *Agent) PermittedSet() map[string]bool {
	return a.config.PermittedSet()
}

// Verbose enables progress output.
func (a *Agent) Verbose(enabled bool) *Agent {
	a.verbose = enabled
	return a
}

// Generate produces the agent's proposal for the current turn.
func (a *Agent) Generate(ctx context.Context, view conversation.View) (Proposal, error) {
	messages := a.replay(view)
	defs := a.definitions()

	if a.verbose {
		fmt.Printf("[%s] generating (history=%d messages, tools=%d)\n",
			a.config.Name, len(messages), len(defs))
	}

	var resp llm.LLMResponse
	var err error
	if len(defs) > 0 {
		resp, err = a.provider.ChatWithTools(ctx, messages, defs)
	} else {
		resp, err = a.provider.Chat(ctx, messages)
	}
	if err != nil {
		return Proposal{}, fmt.Errorf("agent '%s' generation failed: %w", a.config.Name, err)
	}

	return Proposal{
		Speaker:   a.config.Name,
		Content:   strings.TrimSpace(resp.Content),
		ToolCalls: resp.ToolCalls,
		Usage:     resp.Usage,
	}, nil
}

// definitions assembles provider tool definitions for the permitted set.
func (a *Agent) definitions() []llm.ToolDefinition {
	defs := make([]llm.ToolDefinition, 0, len(a.config.PermittedTools))
	for _, name := range a.config.PermittedTools {
		tool, exists := a.registry.Get(name)
		if !exists {
			continue
		}
		meta := tool.Metadata()
		defs = append(defs, llm.ToolDefinition{
			Name:        meta.Name,
			Description: meta.Description,
			Parameters:  tools.SchemaFor(tool).Map(),
		})
	}
	return defs
}

// systemPrompt renders the persona plus the ground rules of the chat.
func (a *Agent) systemPrompt(view conversation.View) string {
	var sb strings.Builder
	sb.WriteString(a.config.SystemPrompt)

	if len(a.config.PermittedTools) > 0 {
		sb.WriteString("\n\nYour tools:\n")
		sb.WriteString(a.registry.Describe(a.config.PermittedTools))
	}

	if view.Step != "" {
		sb.WriteString(fmt.Sprintf("\n\nCurrent workflow step: %s", view.Step))
	}

	sb.WriteString("\n\nGround rules:\n")
	sb.WriteString("- Speak only when you can advance the current step.\n")
	sb.WriteString("- Call only the tools listed above, with their exact names.\n")
	sb.WriteString("- Reference data files by the artifact names tools report; never paste raw rows.\n")
	sb.WriteString("- Do not claim a result exists until a tool has produced it.")

	return sb.String()
}

// replay projects the shared transcript into this agent's provider view.
// Own turns become assistant messages; everyone else's become user
// messages tagged with the speaker. Tool results pair with this agent's
// own calls via tool messages and appear as quoted text otherwise.
func (a *Agent) replay(view conversation.View) []llm.ChatMessage {
	messages := []llm.ChatMessage{llm.SystemMessage(a.systemPrompt(view))}

	// IDs of this agent's own calls, so results can be paired.
	ownCalls := make(map[string]bool)
	for _, m := range view.Messages {
		if m.Speaker == a.config.Name {
			for _, tc := range m.ToolCalls {
				ownCalls[tc.ID] = true
			}
		}
	}

	for _, m := range view.Messages {
		switch {
		case m.Speaker == a.config.Name && m.Role == conversation.RoleAssistant:
			messages = append(messages, llm.ChatMessage{
				Role:      "assistant",
				Content:   m.Content,
				ToolCalls: toProviderCalls(m.ToolCalls),
			})

		case m.ToolResult != nil && ownCalls[m.ToolResult.CallID]:
			// Covers both executed results and validator rejections of
			// this agent's calls; either way the call is answered.
			messages = append(messages, llm.ToolMessage(m.ToolResult.CallID, toolResultText(m)))

		case m.ToolResult != nil:
			messages = append(messages, llm.UserMessage(fmt.Sprintf(
				"[%s result for %s] %s", m.Speaker, m.ToolResult.Name, toolResultText(m))))

		case m.Role == conversation.RoleSystem || m.Kind == conversation.KindStatus:
			messages = append(messages, llm.UserMessage(fmt.Sprintf("[moderator] %s", m.Content)))

		default:
			messages = append(messages, llm.UserMessage(fmt.Sprintf("[%s] %s", m.Speaker, m.Content)))
		}
	}

	return messages
}

// toolResultText renders a recorded result (or rejection) for replay.
func toolResultText(m conversation.Message) string {
	payload, err := json.Marshal(m.ToolResult)
	if err != nil {
		return m.Content
	}
	return string(payload)
}

func toProviderCalls(calls []conversation.ToolCall) []llm.ToolCall {
	if len(calls) == 0 {
		return nil
	}
	out := make([]llm.ToolCall, len(calls))
	for i, c := range calls {
		out[i] = llm.ToolCall{ID: c.ID, Name: c.Name, Arguments: c.Arguments}
	}
	return out
}
