// Scripted agent.
//
// Replays a fixed queue of proposals instead of calling a provider.
// Tests and offline demos drive the controller with it; an exhausted
// script yields empty turns, which the stall limit eventually reaps.

package agent

import (
	"context"

	"github.com/richinex/symposium/conversation"
)

// Scripted is a rule-backed Speaker producing canned proposals in order.
type Scripted struct {
	config Config
	queue  []Proposal
	next   int
}

var _ Speaker = (*Scripted)(nil)

// NewScripted creates a scripted agent from a config and its lines.
func NewScripted(config Config, proposals ...Proposal) *Scripted {
	return &Scripted{config: config, queue: proposals}
}

// Name returns the agent's name.
func (s *Scripted) Name() string {
	return s.config.Name
}

// Info describes the agent to schedulers.
func (s *Scripted) Info() Info {
	return Info{
		Name:        s.config.Name,
		Description: s.config.Description,
		Capability:  s.config.Capability,
	}
}

// PermittedSet returns the agent's permitted tools as a set.
func (s *Scripted) PermittedSet() map[string]bool {
	return s.config.PermittedSet()
}

// Generate pops the next scripted proposal. Past the end of the script
// it returns empty proposals.
func (s *Scripted) Generate(ctx context.Context, _ conversation.View) (Proposal, error) {
	if err := ctx.Err(); err != nil {
		return Proposal{}, err
	}
	if s.next >= len(s.queue) {
		return Proposal{Speaker: s.config.Name}, nil
	}
	prop := s.queue[s.next]
	s.next++
	prop.Speaker = s.config.Name
	return prop, nil
}

// Remaining reports how many scripted proposals are left.
func (s *Scripted) Remaining() int {
	if s.next >= len(s.queue) {
		return 0
	}
	return len(s.queue) - s.next
}
