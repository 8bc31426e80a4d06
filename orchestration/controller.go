// Group chat controller.
//
// The turn loop: schedule a speaker, collect one proposal, validate and
// execute its tool calls, append everything to the transcript, evaluate
// termination, advance the workflow. Single-threaded and cooperative;
// exactly one generation call is outstanding at a time. Agents propose,
// the controller disposes.
//
// Information Hiding:
// - Turn sequencing and step advancement hidden
// - Checkpoint interplay hidden behind the gate and reviewer
// - Guarded-value extraction from tool results hidden

package orchestration

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/richinex/symposium/agent"
	"github.com/richinex/symposium/conversation"
	"github.com/richinex/symposium/llm"
	"github.com/richinex/symposium/tools"
)

// Reviewer decides pending checkpoints. Implementations block until the
// human acts: a CLI prompt, a TUI, or a parked HTTP decision.
type Reviewer interface {
	Review(ctx context.Context, gate *Gate, cp Checkpoint) error
}

// ReviewFunc adapts a function to the Reviewer interface.
type ReviewFunc func(ctx context.Context, gate *Gate, cp Checkpoint) error

// Review calls the function.
func (f ReviewFunc) Review(ctx context.Context, gate *Gate, cp Checkpoint) error {
	return f(ctx, gate, cp)
}

// Journal persists conversation state as it changes. Implemented by the
// storage package; nil keeps the transcript in memory only.
type Journal interface {
	SaveConversation(ctx context.Context, view conversation.View) error
	SaveMessage(ctx context.Context, conversationID string, msg conversation.Message) error
}

// ControllerConfig holds the loop limits.
type ControllerConfig struct {
	MaxRounds       int
	StallLimit      int
	TurnTimeoutSecs uint64
	ToolTimeoutSecs uint64
}

// DefaultControllerConfig returns the default limits.
func DefaultControllerConfig() ControllerConfig {
	return ControllerConfig{
		MaxRounds:       DefaultRoundLimit,
		StallLimit:      DefaultStallLimit,
		TurnTimeoutSecs: 120,
		ToolTimeoutSecs: tools.DefaultToolTimeout,
	}
}

// Controller runs one conversation to termination.
// Not safe for concurrent use; run separate conversations on separate
// controllers.
type Controller struct {
	agents    map[string]agent.Speaker
	roster    []agent.Info
	scheduler Scheduler
	workflow  *Workflow
	policy    TerminationPolicy
	validator *tools.CallValidator
	executor  *tools.Executor
	store     *conversation.Store
	gate      *Gate
	reviewer  Reviewer
	journal   Journal
	config    ControllerConfig
	stats     *TokenStats
	turns     []Turn
	verbose   bool
}

// NewController creates a controller over the given agents and store.
// Scheduling defaults to capability matching and the workflow to the
// protein bioactivity steps.
func NewController(agents []agent.Speaker, registry *tools.Registry, store *conversation.Store, config ControllerConfig) *Controller {
	agentMap := make(map[string]agent.Speaker, len(agents))
	roster := make([]agent.Info, 0, len(agents))
	for _, a := range agents {
		if _, dup := agentMap[a.Name()]; dup {
			continue
		}
		agentMap[a.Name()] = a
		roster = append(roster, a.Info())
	}

	if config.MaxRounds <= 0 {
		config.MaxRounds = DefaultRoundLimit
	}

	return &Controller{
		agents:    agentMap,
		roster:    roster,
		scheduler: CapabilityMatched{},
		workflow:  DefaultWorkflow(),
		policy: TerminationPolicy{
			StallLimit: config.StallLimit,
			RoundLimit: config.MaxRounds,
		},
		validator: tools.NewCallValidator(registry),
		executor:  tools.NewExecutor(tools.ToolConfig{TimeoutSecs: config.ToolTimeoutSecs}),
		store:     store,
		gate:      NewGate(store),
		config:    config,
		stats:     &TokenStats{},
	}
}

// WithScheduler overrides the scheduling policy.
func (c *Controller) WithScheduler(s Scheduler) *Controller {
	c.scheduler = s
	return c
}

// WithWorkflow overrides the workflow.
func (c *Controller) WithWorkflow(wf *Workflow) *Controller {
	c.workflow = wf
	return c
}

// WithReviewer attaches a human review surface. Without one, Run
// suspends and returns as soon as a checkpoint is requested.
func (c *Controller) WithReviewer(r Reviewer) *Controller {
	c.reviewer = r
	return c
}

// WithJournal persists messages and state transitions as they happen.
// Gate-authored messages are journaled through the notify hook so the
// incremental stream misses nothing.
func (c *Controller) WithJournal(j Journal) *Controller {
	c.journal = j
	c.gate.WithNotify(func(m conversation.Message) {
		_ = j.SaveMessage(context.Background(), c.store.ID(), m)
	})
	return c
}

// WithAudit wires checkpoint decisions to a durable audit log.
func (c *Controller) WithAudit(a AuditLog) *Controller {
	c.gate.WithAudit(a)
	return c
}

// Verbose enables progress output on stdout.
func (c *Controller) Verbose(enabled bool) *Controller {
	c.verbose = enabled
	return c
}

// Store returns the conversation store.
func (c *Controller) Store() *conversation.Store {
	return c.store
}

// Gate returns the checkpoint gate, for review surfaces.
func (c *Controller) Gate() *Gate {
	return c.gate
}

// Workflow returns the active workflow.
func (c *Controller) Workflow() *Workflow {
	return c.workflow
}

// Stats returns the accumulated token stats.
func (c *Controller) Stats() TokenStats {
	return *c.stats
}

// Run drives the conversation until a terminal verdict. On a fresh
// store the task seeds the transcript; on a resumed store the task is
// ignored and the loop picks up where the transcript left off.
func (c *Controller) Run(ctx context.Context, task string) (Result, error) {
	if len(c.roster) == 0 {
		return Result{}, fmt.Errorf("no agents registered")
	}

	if c.store.Len() == 0 {
		if err := c.seed(ctx, task); err != nil {
			return Result{}, err
		}
	}

	for round := 0; round < c.config.MaxRounds; round++ {
		if err := ctx.Err(); err != nil {
			c.terminate(ctx, ReasonCancelled)
			return c.result(), err
		}

		if res, done, err := c.awaitCheckpoints(ctx); done {
			return res, err
		}

		// Advance eagerly: a resumed conversation may already hold the
		// results and approvals the current step was waiting for.
		c.maybeAdvance(ctx)

		view := c.store.Snapshot()
		step := c.stepOf(view)

		speaker, err := c.scheduler.Next(ctx, view, c.roster, step)
		if err != nil {
			if errors.Is(err, ErrNoEligibleSpeaker) {
				c.status(ctx, fmt.Sprintf("no eligible speaker for step '%s'; closing the conversation", step.Name))
				c.terminate(ctx, ReasonNoSpeaker)
				return c.result(), nil
			}
			return c.result(), fmt.Errorf("scheduling failed: %w", err)
		}

		turn := Turn{Round: round, Speaker: speaker, Step: step.Name}
		c.takeTurn(ctx, speaker, step, &turn)
		c.turns = append(c.turns, turn)

		view = c.store.Snapshot()
		decision := c.policy.Evaluate(view, c.workflow, len(c.turns))
		switch decision.Verdict {
		case VerdictTerminated:
			c.status(ctx, "conversation closed: "+decision.Reason)
			c.terminate(ctx, decision.Reason)
			return c.result(), nil
		case VerdictAwaitingHuman:
			continue
		case VerdictContinue:
			if decision.Note != "" {
				c.status(ctx, decision.Note)
			}
		}

		c.maybeAdvance(ctx)

		if remaining := c.config.MaxRounds - (round + 1); remaining == 5 {
			c.status(ctx, "5 rounds remain before the conversation is closed")
		}
	}

	c.status(ctx, "conversation closed: "+ReasonRoundLimit)
	c.terminate(ctx, ReasonRoundLimit)
	return c.result(), nil
}

// seed enters the first step and appends the task as the opening
// human message.
func (c *Controller) seed(ctx context.Context, task string) error {
	first := c.workflow.First()
	if err := c.store.AdvancePhase(first.Name); err != nil {
		return fmt.Errorf("enter first step: %w", err)
	}
	if _, err := c.append(ctx, conversation.NewMessage(
		"human", conversation.RoleUser, conversation.KindText, task)); err != nil {
		return fmt.Errorf("seed task: %w", err)
	}
	c.status(ctx, fmt.Sprintf("entering step '%s': %s", first.Name, first.Instructions))
	c.checkpointView(ctx)
	return nil
}

// awaitCheckpoints suspends the loop while checkpoints are pending.
// done is true when the run must stop: no reviewer attached, a reviewer
// that declined to decide, or a cancel decision.
func (c *Controller) awaitCheckpoints(ctx context.Context) (Result, bool, error) {
	for {
		if err := ctx.Err(); err != nil {
			c.terminate(ctx, ReasonCancelled)
			return c.result(), true, err
		}

		pending := c.gate.Pending()
		if len(pending) == 0 {
			if terminated, _ := c.store.Terminated(); terminated {
				return c.result(), true, nil
			}
			return Result{}, false, nil
		}

		if c.reviewer == nil {
			return c.result(), true, nil
		}

		cp := pending[0]
		if c.verbose {
			fmt.Printf("[controller] checkpoint awaiting review: %s = '%s'\n", cp.Key, cp.Proposed)
		}
		if err := c.reviewer.Review(ctx, c.gate, cp); err != nil {
			return c.result(), true, fmt.Errorf("checkpoint review failed: %w", err)
		}
		if _, stillPending := c.gate.Get(cp.ID); stillPending {
			// Reviewer returned without deciding; suspend the run.
			return c.result(), true, nil
		}
		c.maybeAdvance(ctx)
	}
}

// takeTurn asks one agent for a proposal and settles every tool call in
// it. Failures become transcript messages, never silent drops.
func (c *Controller) takeTurn(ctx context.Context, speaker string, step Step, turn *Turn) {
	ag := c.agents[speaker]
	view := c.store.Snapshot()

	genCtx := ctx
	if c.config.TurnTimeoutSecs > 0 {
		var cancel context.CancelFunc
		genCtx, cancel = context.WithTimeout(ctx, time.Duration(c.config.TurnTimeoutSecs)*time.Second)
		defer cancel()
	}

	prop, err := ag.Generate(genCtx, view)
	if err != nil {
		note := fmt.Sprintf("'%s' failed to respond: %v", speaker, err)
		if errors.Is(err, context.DeadlineExceeded) {
			note = fmt.Sprintf("'%s' timed out after %d seconds", speaker, c.config.TurnTimeoutSecs)
		}
		turn.Note = note
		c.status(ctx, note)
		return
	}
	c.stats.LLMCalls++
	c.stats.AddUsage(prop.Usage)

	kind := conversation.KindText
	if prop.HasToolCalls() {
		kind = conversation.KindProposal
	}
	msg := conversation.NewMessage(speaker, conversation.RoleAssistant, kind, prop.Content)
	msg.ToolCalls = toConversationCalls(prop.ToolCalls)

	appended, err := c.append(ctx, msg)
	if err != nil {
		turn.Note = fmt.Sprintf("append failed: %v", err)
		return
	}
	if c.verbose {
		fmt.Printf("\n[%s] %s\n", speaker, prop.Content)
	}

	permitted := ag.PermittedSet()
	for _, call := range appended.ToolCalls {
		turn.Proposed = append(turn.Proposed, call.Name)
		tool, err := c.validator.Check(call.Name, call.Arguments, permitted)
		if err != nil {
			turn.Rejected++
			c.reject(ctx, speaker, call, err)
			continue
		}
		turn.Executed++
		c.execute(ctx, call, tool)
	}
}

// reject appends a rejection message paired to the offending call, so
// the proposing agent sees exactly why it was refused.
func (c *Controller) reject(ctx context.Context, speaker string, call conversation.ToolCall, cause error) {
	msg := conversation.NewMessage("moderator", conversation.RoleTool, conversation.KindRejection,
		fmt.Sprintf("tool call rejected: %v", cause))
	msg.ToolResult = &conversation.ToolResult{
		CallID: call.ID,
		Name:   call.Name,
		Error:  cause.Error(),
	}
	if _, err := c.append(ctx, msg); err != nil {
		return
	}
	if c.verbose {
		fmt.Printf("[controller] rejected %s from %s: %v\n", call.Name, speaker, cause)
	}
}

// execute runs one validated call and appends its result, success or
// failure. Timeouts become failure results.
func (c *Controller) execute(ctx context.Context, call conversation.ToolCall, tool tools.Tool) {
	toolCfg := tools.ToolConfig{TimeoutSecs: c.config.ToolTimeoutSecs}
	timeout := time.Duration(toolCfg.Timeout()) * time.Second
	res, err := c.executor.ExecuteWithTimeout(ctx, tool, call.Arguments, timeout)

	tr := conversation.ToolResult{CallID: call.ID, Name: call.Name}
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		tr.Error = fmt.Sprintf("tool '%s' timed out after %d seconds", call.Name, toolCfg.Timeout())
	case err != nil:
		tr.Error = err.Error()
	case res.Success():
		tr.Output = res.Output
	default:
		tr.Error = res.Error.Error()
	}

	content := tr.Output
	if tr.Error != "" {
		content = "error: " + tr.Error
	}
	msg := conversation.NewMessage("executor", conversation.RoleTool, conversation.KindToolResult, content)
	msg.ToolResult = &tr
	if _, err := c.append(ctx, msg); err != nil {
		return
	}
	if c.verbose {
		outcome := "ok"
		if tr.Error != "" {
			outcome = "failed: " + tr.Error
		}
		fmt.Printf("[controller] %s -> %s\n", call.Name, outcome)
	}
}

// maybeAdvance moves to the next step once the current one is satisfied
// and, where required, confirmed. Final steps never advance; the
// termination policy closes them.
func (c *Controller) maybeAdvance(ctx context.Context) {
	view := c.store.Snapshot()
	step := c.stepOf(view)

	if !c.workflow.Satisfied(step, view) {
		return
	}
	if c.workflow.IsFinal(step.Name) {
		return
	}

	if step.RequiresConfirmation {
		if _, committed := c.store.Value(step.GuardKey); !committed {
			if _, pending := c.gate.PendingForStep(step.Name); !pending {
				proposed := proposedGuardValue(view, step)
				if c.gate.RejectedBefore(step.Name, proposed) {
					// A human already turned this value down. Wait for
					// the agents to surface a different one.
					return
				}
				prompt := fmt.Sprintf("Step '%s' wants to continue with %s = '%s'. Approve, amend, reject, or cancel.",
					step.Name, step.GuardKey, proposed)
				if _, err := c.gate.Request(step.Name, step.GuardKey, proposed, prompt); err != nil && c.verbose {
					fmt.Printf("[controller] checkpoint request failed: %v\n", err)
				}
			}
			return
		}
	}

	next, ok := c.workflow.Next(step.Name)
	if !ok {
		return
	}
	if err := c.store.AdvancePhase(next.Name); err != nil {
		return
	}
	c.status(ctx, fmt.Sprintf("entering step '%s': %s", next.Name, next.Instructions))
	c.checkpointView(ctx)
}

// stepOf resolves the view's step marker against the workflow, falling
// back to the first step for blank or unknown markers.
func (c *Controller) stepOf(view conversation.View) Step {
	if view.Step == "" {
		return c.workflow.First()
	}
	if step, ok := c.workflow.Step(view.Step); ok {
		return step
	}
	return c.workflow.First()
}

// append writes through the store and journals best-effort.
func (c *Controller) append(ctx context.Context, msg conversation.Message) (conversation.Message, error) {
	appended, err := c.store.Append(msg)
	if err != nil {
		return conversation.Message{}, err
	}
	if c.journal != nil {
		_ = c.journal.SaveMessage(ctx, c.store.ID(), appended)
	}
	return appended, nil
}

// status appends controller bookkeeping visible to agents and humans.
func (c *Controller) status(ctx context.Context, content string) {
	if _, err := c.append(ctx, conversation.NewMessage(
		"moderator", conversation.RoleSystem, conversation.KindStatus, content)); err != nil {
		return
	}
	if c.verbose {
		fmt.Printf("[controller] %s\n", content)
	}
}

// terminate flags the store and journals the final state.
func (c *Controller) terminate(ctx context.Context, reason string) {
	if err := c.store.Terminate(reason); err != nil {
		return
	}
	c.checkpointView(ctx)
	if c.verbose {
		fmt.Printf("[controller] conversation terminated: %s\n", reason)
	}
}

// checkpointView journals the current state best-effort.
func (c *Controller) checkpointView(ctx context.Context) {
	if c.journal != nil {
		_ = c.journal.SaveConversation(ctx, c.store.Snapshot())
	}
}

// result summarizes the run as of now.
func (c *Controller) result() Result {
	view := c.store.Snapshot()
	reason := view.TerminationReason
	if !view.Terminated {
		if len(view.PendingCheckpoints) > 0 {
			reason = "awaiting human review"
		} else {
			reason = "suspended"
		}
	}
	return Result{
		ConversationID: view.ConversationID,
		Reason:         reason,
		Rounds:         len(c.turns),
		Turns:          c.turns,
		Stats:          c.stats,
		Final:          view,
	}
}

// proposedGuardValue digs the guarded key out of the step's most recent
// successful tool result. Selection tools echo the chosen row as JSON,
// which carries the key; an empty return means the reviewer must amend.
func proposedGuardValue(view conversation.View, step Step) string {
	msgs := view.InStep(step.Name)
	for i := len(msgs) - 1; i >= 0; i-- {
		m := msgs[i]
		if m.Kind != conversation.KindToolResult || m.ToolResult == nil || !m.ToolResult.Success() {
			continue
		}
		var payload map[string]interface{}
		if err := json.Unmarshal([]byte(m.ToolResult.Output), &payload); err != nil {
			continue
		}
		if v, exists := payload[step.GuardKey]; exists {
			return fmt.Sprintf("%v", v)
		}
	}
	return ""
}

// toConversationCalls converts provider tool calls to transcript calls.
func toConversationCalls(calls []llm.ToolCall) []conversation.ToolCall {
	if len(calls) == 0 {
		return nil
	}
	out := make([]conversation.ToolCall, len(calls))
	for i, call := range calls {
		out[i] = conversation.ToolCall{
			ID:        call.ID,
			Name:      call.Name,
			Arguments: call.Arguments,
		}
	}
	return out
}
