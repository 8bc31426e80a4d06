// Turn scheduling policies.
//
// Three ways to pick the next speaker: fixed rotation, capability
// matching, or an LLM adjudicator. The adjudicator is registry-bound:
// it can only ever pick a registered, step-eligible agent, and falls
// back to the deterministic rotation when its pick is not one.
//
// Information Hiding:
// - Rotation arithmetic hidden behind RoundRobin
// - Adjudication prompt and reply parsing hidden behind LLMAdjudicated

package orchestration

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/richinex/symposium/agent"
	"github.com/richinex/symposium/conversation"
	jsonutil "github.com/richinex/symposium/internal/json"
	"github.com/richinex/symposium/llm"
)

// ErrNoEligibleSpeaker means the current step's allowed-speaker set
// excludes every registered agent.
var ErrNoEligibleSpeaker = errors.New("no eligible speaker")

// Scheduler picks the next speaker for a turn.
type Scheduler interface {
	// Next returns the name of the agent who speaks next. Roster order is
	// registration order.
	Next(ctx context.Context, view conversation.View, roster []agent.Info, step Step) (string, error)
}

// RoundRobin rotates through the roster in registration order, skipping
// agents the step excludes. Deterministic.
type RoundRobin struct{}

var _ Scheduler = RoundRobin{}

// Next returns the first eligible agent after the previous assistant
// speaker, wrapping around.
func (RoundRobin) Next(_ context.Context, view conversation.View, roster []agent.Info, step Step) (string, error) {
	if len(roster) == 0 {
		return "", fmt.Errorf("%w: empty roster", ErrNoEligibleSpeaker)
	}

	start := 0
	if last := view.LastSpeaker(); last != "" {
		for i, a := range roster {
			if a.Name == last {
				start = i + 1
				break
			}
		}
	}

	for i := 0; i < len(roster); i++ {
		cand := roster[(start+i)%len(roster)]
		if step.Allows(cand.Name) {
			return cand.Name, nil
		}
	}
	return "", fmt.Errorf("%w: step '%s' permits none of the %d registered agents",
		ErrNoEligibleSpeaker, step.Name, len(roster))
}

// CapabilityMatched picks the first registered agent whose capability tag
// matches the current step's, respecting the step's allowed-speaker set.
// Steps without a capability, and capabilities no agent carries, fall
// back to rotation so the chat keeps moving. Deterministic.
type CapabilityMatched struct{}

var _ Scheduler = CapabilityMatched{}

// Next returns the first capability match, or the round-robin choice when
// there is none.
func (CapabilityMatched) Next(ctx context.Context, view conversation.View, roster []agent.Info, step Step) (string, error) {
	if step.Capability != "" {
		for _, cand := range roster {
			if cand.Capability == step.Capability && step.Allows(cand.Name) {
				return cand.Name, nil
			}
		}
	}
	return RoundRobin{}.Next(ctx, view, roster, step)
}

// adjudication is the reply shape the adjudicator LLM must produce.
type adjudication struct {
	Thought string `json:"thought,omitempty"`
	Speaker string `json:"speaker"`
}

// LLMAdjudicated asks an LLM to pick the next speaker given the roster
// and the recent transcript. Non-deterministic, but registry-bound: an
// unparseable reply or a name outside the eligible set falls back to the
// round-robin choice.
type LLMAdjudicated struct {
	client   *llm.Client
	fallback RoundRobin
	stats    *TokenStats
	// transcriptWindow caps how many recent messages the adjudicator sees.
	transcriptWindow int
}

var _ Scheduler = (*LLMAdjudicated)(nil)

// NewLLMAdjudicated creates an adjudicating scheduler.
func NewLLMAdjudicated(client *llm.Client) *LLMAdjudicated {
	return &LLMAdjudicated{
		client:           client,
		transcriptWindow: 10,
	}
}

// WithStats accumulates adjudication token usage into stats.
func (s *LLMAdjudicated) WithStats(stats *TokenStats) *LLMAdjudicated {
	s.stats = stats
	return s
}

// Next asks the LLM for a speaker, falling back to rotation on any
// parse failure or out-of-roster pick.
func (s *LLMAdjudicated) Next(ctx context.Context, view conversation.View, roster []agent.Info, step Step) (string, error) {
	eligible := make(map[string]bool, len(roster))
	var names []string
	for _, a := range roster {
		if step.Allows(a.Name) {
			eligible[a.Name] = true
			names = append(names, a.Name)
		}
	}
	if len(names) == 0 {
		return "", fmt.Errorf("%w: step '%s' permits none of the %d registered agents",
			ErrNoEligibleSpeaker, step.Name, len(roster))
	}

	messages := []llm.ChatMessage{
		llm.SystemMessage(s.prompt(roster, step, names)),
		llm.UserMessage(s.recentTranscript(view)),
	}

	reply, usage, err := s.client.ChatWithUsage(ctx, messages)
	if s.stats != nil {
		s.stats.LLMCalls++
		s.stats.AddUsage(usage)
	}
	if err != nil {
		return s.fallback.Next(ctx, view, roster, step)
	}

	pick, err := jsonutil.ExtractJSONFromResponse[adjudication](reply)
	if err != nil || !eligible[strings.TrimSpace(pick.Speaker)] {
		return s.fallback.Next(ctx, view, roster, step)
	}
	return strings.TrimSpace(pick.Speaker), nil
}

func (s *LLMAdjudicated) prompt(roster []agent.Info, step Step, eligible []string) string {
	var b strings.Builder
	b.WriteString("You moderate a group chat of specialized agents. Pick who speaks next.\n\nAgents:\n")
	for _, a := range roster {
		fmt.Fprintf(&b, "- %s (%s): %s\n", a.Name, a.Capability, a.Description)
	}
	fmt.Fprintf(&b, "\nCurrent workflow step: %s\n", step.Name)
	if step.Instructions != "" {
		fmt.Fprintf(&b, "Step goal: %s\n", step.Instructions)
	}
	fmt.Fprintf(&b, "Eligible speakers: %s\n", strings.Join(eligible, ", "))
	b.WriteString("\nRespond with JSON only: {\"thought\": \"...\", \"speaker\": \"<agent name>\"}")
	return b.String()
}

func (s *LLMAdjudicated) recentTranscript(view conversation.View) string {
	msgs := view.Messages
	if len(msgs) > s.transcriptWindow {
		msgs = msgs[len(msgs)-s.transcriptWindow:]
	}
	if len(msgs) == 0 {
		return "The conversation has not started. Pick the opening speaker."
	}

	var b strings.Builder
	b.WriteString("Recent transcript:\n")
	for _, m := range msgs {
		content := m.Content
		if len(content) > 240 {
			content = content[:240] + "..."
		}
		fmt.Fprintf(&b, "[%s] %s\n", m.Speaker, content)
	}
	b.WriteString("\nWho should speak next?")
	return b.String()
}
