package orchestration

import (
	"context"
	"errors"
	"testing"

	"github.com/richinex/symposium/agent"
	"github.com/richinex/symposium/conversation"
	"github.com/richinex/symposium/llm"
)

func testRoster() []agent.Info {
	return []agent.Info{
		{Name: "chembl_data_engineer", Description: "pulls ChEMBL bioactivity data", Capability: "analyst"},
		{Name: "cheminformatics_plotter", Description: "renders descriptor plots", Capability: "plotter"},
		{Name: "workflow_manager", Description: "keeps the chat on track", Capability: "planner"},
	}
}

func TestRoundRobinRotates(t *testing.T) {
	roster := testRoster()
	step := Step{Name: "s"}

	got, err := RoundRobin{}.Next(context.Background(), conversation.View{}, roster, step)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "chembl_data_engineer" {
		t.Errorf("expected opening speaker chembl_data_engineer, got '%s'", got)
	}

	view := conversation.View{Messages: []conversation.Message{
		textMsg("chembl_data_engineer", "fetched the targets", "s"),
	}}
	got, err = RoundRobin{}.Next(context.Background(), view, roster, step)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "cheminformatics_plotter" {
		t.Errorf("expected cheminformatics_plotter after the engineer, got '%s'", got)
	}

	view = conversation.View{Messages: []conversation.Message{
		textMsg("workflow_manager", "wrapping up", "s"),
	}}
	got, err = RoundRobin{}.Next(context.Background(), view, roster, step)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "chembl_data_engineer" {
		t.Errorf("expected rotation to wrap around, got '%s'", got)
	}
}

func TestRoundRobinSkipsExcludedSpeakers(t *testing.T) {
	step := Step{Name: "s", AllowedSpeakers: []string{"workflow_manager"}}

	got, err := RoundRobin{}.Next(context.Background(), conversation.View{}, testRoster(), step)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "workflow_manager" {
		t.Errorf("expected the only allowed speaker, got '%s'", got)
	}
}

func TestRoundRobinNoEligibleSpeaker(t *testing.T) {
	step := Step{Name: "s", AllowedSpeakers: []string{"ghost"}}
	if _, err := (RoundRobin{}).Next(context.Background(), conversation.View{}, testRoster(), step); !errors.Is(err, ErrNoEligibleSpeaker) {
		t.Errorf("expected ErrNoEligibleSpeaker, got %v", err)
	}

	if _, err := (RoundRobin{}).Next(context.Background(), conversation.View{}, nil, Step{Name: "s"}); !errors.Is(err, ErrNoEligibleSpeaker) {
		t.Errorf("expected ErrNoEligibleSpeaker for empty roster, got %v", err)
	}
}

func TestCapabilityMatched(t *testing.T) {
	step := Step{Name: "visualize", Capability: "plotter"}

	got, err := CapabilityMatched{}.Next(context.Background(), conversation.View{}, testRoster(), step)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "cheminformatics_plotter" {
		t.Errorf("expected capability match cheminformatics_plotter, got '%s'", got)
	}
}

func TestCapabilityMatchedRespectsAllowedSpeakers(t *testing.T) {
	step := Step{Name: "s", Capability: "analyst", AllowedSpeakers: []string{"workflow_manager"}}

	got, err := CapabilityMatched{}.Next(context.Background(), conversation.View{}, testRoster(), step)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// The analyst is excluded, so rotation picks the allowed speaker.
	if got != "workflow_manager" {
		t.Errorf("expected workflow_manager, got '%s'", got)
	}
}

func TestCapabilityMatchedFallsBackToRotation(t *testing.T) {
	step := Step{Name: "s", Capability: "chemist"} // nobody carries it
	view := conversation.View{Messages: []conversation.Message{
		textMsg("chembl_data_engineer", "done here", "s"),
	}}

	got, err := CapabilityMatched{}.Next(context.Background(), view, testRoster(), step)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "cheminformatics_plotter" {
		t.Errorf("expected rotation fallback to cheminformatics_plotter, got '%s'", got)
	}
}

func TestLLMAdjudicatedPicksFromReply(t *testing.T) {
	provider := &pickProvider{reply: `{"thought": "plots come next", "speaker": "cheminformatics_plotter"}`}
	sched := NewLLMAdjudicated(llm.NewClient(provider))

	got, err := sched.Next(context.Background(), conversation.View{}, testRoster(), Step{Name: "s"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "cheminformatics_plotter" {
		t.Errorf("expected the adjudicated pick, got '%s'", got)
	}
}

func TestLLMAdjudicatedIsRegistryBound(t *testing.T) {
	view := conversation.View{Messages: []conversation.Message{
		textMsg("chembl_data_engineer", "over to someone else", "s"),
	}}

	cases := []struct {
		name     string
		provider *pickProvider
	}{
		{"out of roster pick", &pickProvider{reply: `{"speaker": "charlatan"}`}},
		{"unparseable reply", &pickProvider{reply: "the plotter should speak next"}},
		{"provider error", &pickProvider{err: errors.New("rate limit exceeded")}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			sched := NewLLMAdjudicated(llm.NewClient(tc.provider))
			got, err := sched.Next(context.Background(), view, testRoster(), Step{Name: "s"})
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != "cheminformatics_plotter" {
				t.Errorf("expected round-robin fallback cheminformatics_plotter, got '%s'", got)
			}
		})
	}
}

func TestLLMAdjudicatedIgnoresExcludedPick(t *testing.T) {
	// The model picks a registered agent the step excludes; the fallback
	// must respect the allowed set too.
	provider := &pickProvider{reply: `{"speaker": "chembl_data_engineer"}`}
	sched := NewLLMAdjudicated(llm.NewClient(provider))
	step := Step{Name: "s", AllowedSpeakers: []string{"workflow_manager"}}

	got, err := sched.Next(context.Background(), conversation.View{}, testRoster(), step)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "workflow_manager" {
		t.Errorf("expected the allowed speaker, got '%s'", got)
	}
}

func TestLLMAdjudicatedNoEligibleSpeaker(t *testing.T) {
	provider := &pickProvider{reply: `{"speaker": "workflow_manager"}`}
	sched := NewLLMAdjudicated(llm.NewClient(provider))
	step := Step{Name: "s", AllowedSpeakers: []string{"ghost"}}

	if _, err := sched.Next(context.Background(), conversation.View{}, testRoster(), step); !errors.Is(err, ErrNoEligibleSpeaker) {
		t.Errorf("expected ErrNoEligibleSpeaker, got %v", err)
	}
}

func TestLLMAdjudicatedTracksStats(t *testing.T) {
	provider := &pickProvider{
		reply: `{"speaker": "workflow_manager"}`,
		usage: &llm.TokenUsage{PromptTokens: 40, CompletionTokens: 8, TotalTokens: 48},
	}
	stats := &TokenStats{}
	sched := NewLLMAdjudicated(llm.NewClient(provider)).WithStats(stats)

	if _, err := sched.Next(context.Background(), conversation.View{}, testRoster(), Step{Name: "s"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stats.LLMCalls != 1 {
		t.Errorf("expected 1 LLM call recorded, got %d", stats.LLMCalls)
	}
	if stats.TotalTokens != 48 {
		t.Errorf("expected 48 total tokens, got %d", stats.TotalTokens)
	}
}

// pickProvider is a canned-reply provider for adjudication tests.
type pickProvider struct {
	reply string
	usage *llm.TokenUsage
	err   error
}

var _ llm.Provider = (*pickProvider)(nil)

func (p *pickProvider) Name() string  { return "pick" }
func (p *pickProvider) Model() string { return "pick-1" }

func (p *pickProvider) Chat(_ context.Context, _ []llm.ChatMessage) (llm.LLMResponse, error) {
	if p.err != nil {
		return llm.LLMResponse{}, p.err
	}
	return llm.LLMResponse{Content: p.reply, Usage: p.usage}, nil
}

func (p *pickProvider) ChatWithFormat(ctx context.Context, messages []llm.ChatMessage, _ *llm.ResponseFormat) (llm.LLMResponse, error) {
	return p.Chat(ctx, messages)
}

func (p *pickProvider) ChatWithTools(ctx context.Context, messages []llm.ChatMessage, _ []llm.ToolDefinition) (llm.LLMResponse, error) {
	return p.Chat(ctx, messages)
}
