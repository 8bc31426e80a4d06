// Human review surfaces for checkpoint decisions.
//
// Information Hiding:
// - Prompt wording and key handling hidden
// - Gate verbs invoked on the human's behalf hidden

package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/richinex/symposium/orchestration"
)

// Review surface names accepted by the --review flag.
const (
	ReviewLine = "line"
	ReviewTUI  = "tui"
)

const reviewDecider = "human"

// LineReviewer prompts for checkpoint decisions on a plain input stream.
// Leaving the decision open (closing the input) suspends the run with
// the checkpoint still pending; it can be resumed later.
type LineReviewer struct {
	In  io.Reader
	Out io.Writer

	scanner *bufio.Scanner
}

// Review prints the checkpoint and reads one decision.
func (r *LineReviewer) Review(ctx context.Context, gate *orchestration.Gate, cp orchestration.Checkpoint) error {
	if r.scanner == nil {
		// One scanner for the lifetime of the reviewer, so input
		// buffered during an earlier review is not lost.
		r.scanner = bufio.NewScanner(r.In)
	}

	fmt.Fprintf(r.Out, "\n=== Checkpoint: %s ===\n", cp.Step)
	fmt.Fprintf(r.Out, "%s\n", cp.Prompt)
	fmt.Fprintf(r.Out, "Key:      %s\n", cp.Key)
	fmt.Fprintf(r.Out, "Proposed: %s\n", valueOrNone(cp.Proposed))

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		choice, ok := r.ask("[a]pprove  a[m]end  [r]eject  [c]ancel")
		if !ok {
			return r.inputClosed()
		}

		switch strings.ToLower(choice) {
		case "a", "approve":
			_, err := gate.Approve(ctx, cp.ID, reviewDecider)
			return err
		case "m", "amend":
			for {
				value, ok := r.ask("replacement value")
				if !ok {
					return r.inputClosed()
				}
				if value == "" {
					fmt.Fprintln(r.Out, "amendment needs a value")
					continue
				}
				_, err := gate.Amend(ctx, cp.ID, reviewDecider, value)
				return err
			}
		case "r", "reject":
			reason, ok := r.ask("reason")
			if !ok {
				return r.inputClosed()
			}
			_, err := gate.Reject(ctx, cp.ID, reviewDecider, reason)
			return err
		case "c", "cancel":
			reason, ok := r.ask("reason")
			if !ok {
				return r.inputClosed()
			}
			_, err := gate.Cancel(ctx, cp.ID, reviewDecider, reason)
			return err
		default:
			fmt.Fprintf(r.Out, "unrecognized choice %q\n", choice)
		}
	}
}

func (r *LineReviewer) ask(label string) (string, bool) {
	fmt.Fprintf(r.Out, "%s > ", label)
	if !r.scanner.Scan() {
		return "", false
	}
	return strings.TrimSpace(r.scanner.Text()), true
}

func (r *LineReviewer) inputClosed() error {
	if err := r.scanner.Err(); err != nil {
		return fmt.Errorf("read review input: %w", err)
	}
	fmt.Fprintln(r.Out, "input closed; checkpoint left pending")
	return nil
}

// TUIReviewer renders the checkpoint decision in a small terminal UI.
// Quitting without deciding suspends the run with the checkpoint still
// pending.
type TUIReviewer struct{}

// Review runs the decision UI and applies the chosen gate verb.
func (TUIReviewer) Review(ctx context.Context, gate *orchestration.Gate, cp orchestration.Checkpoint) error {
	p := tea.NewProgram(newReviewModel(cp), tea.WithContext(ctx))
	final, err := p.Run()
	if err != nil {
		return fmt.Errorf("review ui failed: %w", err)
	}
	m, ok := final.(reviewModel)
	if !ok {
		return fmt.Errorf("review ui returned unexpected model %T", final)
	}

	// Gate verbs run here, after the program has released the
	// terminal, never inside Update.
	switch m.verb {
	case reviewApprove:
		_, err = gate.Approve(ctx, cp.ID, reviewDecider)
	case reviewAmend:
		_, err = gate.Amend(ctx, cp.ID, reviewDecider, m.value)
	case reviewReject:
		_, err = gate.Reject(ctx, cp.ID, reviewDecider, m.note)
	case reviewCancel:
		_, err = gate.Cancel(ctx, cp.ID, reviewDecider, m.note)
	}
	return err
}

type reviewVerb int

const (
	reviewUndecided reviewVerb = iota
	reviewApprove
	reviewAmend
	reviewReject
	reviewCancel
)

type reviewMode int

const (
	modeChoose reviewMode = iota
	modeAmendValue
	modeRejectNote
	modeCancelNote
)

var (
	reviewTitleStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Bold(true)
	reviewLabelStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	reviewValueStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Bold(true)
	reviewHelpStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("8")).Italic(true)
)

type reviewModel struct {
	checkpoint orchestration.Checkpoint
	input      textinput.Model
	mode       reviewMode
	verb       reviewVerb
	value      string
	note       string
}

func newReviewModel(cp orchestration.Checkpoint) reviewModel {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.CharLimit = 256
	return reviewModel{checkpoint: cp, input: ti}
}

func (m reviewModel) Init() tea.Cmd {
	return nil
}

func (m reviewModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	keyMsg, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}

	if m.mode == modeChoose {
		switch keyMsg.String() {
		case "a":
			m.verb = reviewApprove
			return m, tea.Quit
		case "m":
			m.mode = modeAmendValue
			m.input.Placeholder = "replacement value"
			m.input.Focus()
		case "r":
			m.mode = modeRejectNote
			m.input.Placeholder = "reason (optional)"
			m.input.Focus()
		case "c":
			m.mode = modeCancelNote
			m.input.Placeholder = "reason (optional)"
			m.input.Focus()
		case "q", "esc", "ctrl+c":
			return m, tea.Quit
		}
		return m, nil
	}

	switch keyMsg.String() {
	case "enter":
		text := strings.TrimSpace(m.input.Value())
		switch m.mode {
		case modeAmendValue:
			if text == "" {
				// An amendment without a value cannot commit.
				return m, nil
			}
			m.verb = reviewAmend
			m.value = text
		case modeRejectNote:
			m.verb = reviewReject
			m.note = text
		case modeCancelNote:
			m.verb = reviewCancel
			m.note = text
		}
		return m, tea.Quit
	case "esc":
		m.mode = modeChoose
		m.input.Blur()
		m.input.SetValue("")
		return m, nil
	case "ctrl+c":
		return m, tea.Quit
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m reviewModel) View() string {
	var b strings.Builder
	b.WriteString(reviewTitleStyle.Render("Checkpoint review"))
	b.WriteString("\n\n")
	b.WriteString(reviewLabelStyle.Render("Step:     ") + m.checkpoint.Step + "\n")
	b.WriteString(reviewLabelStyle.Render("Key:      ") + m.checkpoint.Key + "\n")
	b.WriteString(reviewLabelStyle.Render("Proposed: ") + reviewValueStyle.Render(valueOrNone(m.checkpoint.Proposed)) + "\n\n")
	b.WriteString(m.checkpoint.Prompt)
	b.WriteString("\n\n")
	if m.mode == modeChoose {
		b.WriteString(reviewHelpStyle.Render("[a] approve  [m] amend  [r] reject  [c] cancel  [q] leave pending"))
	} else {
		b.WriteString(m.input.View())
		b.WriteString("\n")
		b.WriteString(reviewHelpStyle.Render("[enter] confirm  [esc] back"))
	}
	b.WriteString("\n")
	return b.String()
}

func valueOrNone(v string) string {
	if v == "" {
		return "(none; amend to supply one)"
	}
	return v
}
