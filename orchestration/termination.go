// Termination policy.
//
// Decides after every round whether the conversation continues, waits
// for a human, or ends. Termination requests are honored only when the
// workflow has actually produced what it promised: an agent saying
// TERMINATE is a request, a successful terminate_group_chat result in
// the final step is proof.
//
// Information Hiding:
// - Sentinel detection hidden behind requestsTermination
// - Stall accounting hidden behind stallStreak

package orchestration

import (
	"fmt"
	"strings"

	"github.com/richinex/symposium/conversation"
	"github.com/richinex/symposium/tools"
)

// Default limits. The stall limit mirrors the ten consecutive
// auto-replies a group chat tolerates before giving up; the round limit
// is the hard cap on turns.
const (
	DefaultStallLimit = 10
	DefaultRoundLimit = 100
)

// TerminationPolicy evaluates a conversation after each round.
type TerminationPolicy struct {
	StallLimit int
	RoundLimit int
}

// DefaultTerminationPolicy returns the policy with default limits.
func DefaultTerminationPolicy() TerminationPolicy {
	return TerminationPolicy{
		StallLimit: DefaultStallLimit,
		RoundLimit: DefaultRoundLimit,
	}
}

// Evaluate returns the verdict for the conversation as of the given
// view. round is the number of completed rounds.
//
// An un-executed proposal always yields Continue: tool calls must be
// settled (executed or rejected) before any terminal verdict.
func (p TerminationPolicy) Evaluate(view conversation.View, wf *Workflow, round int) Decision {
	if view.Terminated {
		return Decision{Verdict: VerdictTerminated, Reason: view.TerminationReason}
	}

	if len(view.PendingCheckpoints) > 0 {
		return Decision{Verdict: VerdictAwaitingHuman}
	}

	if _, pending := view.PendingProposal(); pending {
		return Decision{Verdict: VerdictContinue}
	}

	current, ok := wf.Step(view.Step)
	if !ok {
		current = wf.First()
	}

	// Completion: the final step's outputs exist and we are standing on it.
	if wf.IsFinal(current.Name) && wf.Satisfied(current, view) {
		return Decision{Verdict: VerdictTerminated, Reason: ReasonCompleted}
	}

	if p.RoundLimit > 0 && round >= p.RoundLimit {
		return Decision{Verdict: VerdictTerminated, Reason: ReasonRoundLimit}
	}

	if p.StallLimit > 0 && stallStreak(view.Messages) >= p.StallLimit {
		return Decision{Verdict: VerdictTerminated, Reason: ReasonStalled}
	}

	// A termination request before the work is done is refused, with an
	// explanation the controller appends to the transcript.
	if requestsTermination(view) {
		missing := wf.MissingOutputs(current, view)
		if len(missing) == 0 {
			missing = wf.MissingOutputs(wf.Final(), view)
		}
		return Decision{
			Verdict: VerdictContinue,
			Note: fmt.Sprintf("termination requested but step '%s' is incomplete; still required: %s",
				current.Name, strings.Join(missing, ", ")),
		}
	}

	return Decision{Verdict: VerdictContinue}
}

// requestsTermination reports whether the latest message asks to end the
// conversation, either through the terminate tool's sentinel or a bare
// trailing TERMINATE.
func requestsTermination(view conversation.View) bool {
	last, ok := view.Last()
	if !ok {
		return false
	}
	content := strings.TrimSpace(last.Content)
	if strings.Contains(content, tools.TerminateSentinel) {
		return true
	}
	return strings.HasSuffix(content, "TERMINATE")
}

// stallStreak counts the trailing run of turns that made no progress.
// Progress is a tool call, a tool result, a human decision, a step
// boundary, or novel text; empty messages and a speaker repeating
// themselves verbatim are stalls.
func stallStreak(msgs []conversation.Message) int {
	streak := 0
	lastText := make(map[string]string)

	for i, m := range msgs {
		substantive := m.HasToolCalls() ||
			m.Kind == conversation.KindToolResult ||
			m.Kind == conversation.KindApproval

		if !substantive && i > 0 && m.Step != msgs[i-1].Step {
			substantive = true
		}

		text := strings.TrimSpace(m.Content)
		if !substantive && text != "" && text != lastText[m.Speaker] {
			substantive = true
		}

		if substantive {
			streak = 0
		} else {
			streak++
		}

		if text != "" {
			lastText[m.Speaker] = text
		}
	}
	return streak
}
