// Command execution for CLI commands.
//
// Information Hiding:
// - Controller and storage wiring hidden
// - Output formatting hidden

package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/richinex/symposium/config"
	"github.com/richinex/symposium/conversation"
	"github.com/richinex/symposium/httpapi"
	"github.com/richinex/symposium/llm"
	"github.com/richinex/symposium/orchestration"
	"github.com/richinex/symposium/storage"
	"github.com/richinex/symposium/tools"
)

// Options holds CLI execution options. Zero values defer to the
// environment-derived settings.
type Options struct {
	Provider    string
	Model       string
	MaxRounds   int
	StallLimit  int
	DBPath      string
	ArtifactDir string
	ReviewMode  string
	Verbose     bool
}

// DefaultOptions returns default CLI options.
func DefaultOptions() Options {
	return Options{
		ReviewMode: ReviewLine,
	}
}

// Run starts a fresh group chat over the given task.
func Run(ctx context.Context, task string, opts Options) error {
	cfg, err := loadSettings(opts)
	if err != nil {
		return err
	}

	provider, err := createProvider(cfg)
	if err != nil {
		return err
	}

	journal, err := storage.OpenSqlite(cfg.Storage.DBPath)
	if err != nil {
		return err
	}
	defer journal.Close()

	registry, err := buildRegistry(cfg)
	if err != nil {
		return err
	}

	store := conversation.NewStore("")
	fmt.Printf("Conversation %s\n", store.ID())

	return drive(ctx, task, store, journal, provider, registry, cfg, opts)
}

// Review resumes a stored conversation, beginning with any checkpoint
// left pending. Without an ID it lists the stored conversations.
func Review(ctx context.Context, conversationID string, opts Options) error {
	if conversationID == "" {
		journal, err := openJournal(opts)
		if err != nil {
			return err
		}
		defer journal.Close()
		return listConversations(ctx, journal)
	}

	cfg, err := loadSettings(opts)
	if err != nil {
		return err
	}

	journal, err := storage.OpenSqlite(cfg.Storage.DBPath)
	if err != nil {
		return err
	}
	defer journal.Close()

	view, err := journal.LoadConversation(ctx, conversationID)
	if err != nil {
		return err
	}
	if view.Terminated {
		fmt.Printf("Conversation %s already finished: %s\n", conversationID, view.TerminationReason)
		return nil
	}

	provider, err := createProvider(cfg)
	if err != nil {
		return err
	}

	registry, err := buildRegistry(cfg)
	if err != nil {
		return err
	}

	store := conversation.Restore(view)
	fmt.Printf("Resuming conversation %s at step '%s'\n", store.ID(), view.Step)

	return drive(ctx, "", store, journal, provider, registry, cfg, opts)
}

// Serve exposes stored conversations and checkpoint history over HTTP.
func Serve(ctx context.Context, addr string, opts Options) error {
	journal, err := openJournal(opts)
	if err != nil {
		return err
	}
	defer journal.Close()

	server := httpapi.NewServer(journal)
	srv := &http.Server{Addr: addr, Handler: server.Engine()}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), serveShutdownTimeout)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	fmt.Printf("Review API listening on %s\n", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Export prints a stored conversation's messages as ordered JSON.
func Export(ctx context.Context, conversationID string, opts Options) error {
	journal, err := openJournal(opts)
	if err != nil {
		return err
	}
	defer journal.Close()

	view, err := journal.LoadConversation(ctx, conversationID)
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(view.Messages, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode transcript: %w", err)
	}
	fmt.Println(string(data))
	return nil
}

// ListAgents lists the default participants and their tools.
func ListAgents() {
	fmt.Println("Available agents:")
	fmt.Println()

	for _, entry := range defaultRoster {
		fmt.Printf("  %s (%s)\n", entry.name, entry.capability)
		fmt.Printf("    %s\n", entry.description)
		fmt.Printf("    Tools: %s\n", strings.Join(entry.tools, ", "))
		fmt.Println()
	}
}

// ListTools lists all available tools.
func ListTools(verbose bool) error {
	dir, err := os.MkdirTemp("", "symposium-tools-*")
	if err != nil {
		return err
	}
	defer os.RemoveAll(dir)

	artifacts, err := storage.NewArtifactStore(dir)
	if err != nil {
		return err
	}

	client := tools.NewChEMBLClient("", tools.DefaultToolTimeout)
	registry, err := tools.WithDefaults(client, artifacts)
	if err != nil {
		return err
	}

	fmt.Println("Available tools:")
	fmt.Println()

	for _, name := range registry.Names() {
		tool, exists := registry.Get(name)
		if !exists {
			continue
		}
		meta := tool.Metadata()
		fmt.Printf("  %s\n", meta.Name)
		fmt.Printf("    %s\n", meta.Description)

		if verbose && len(meta.Parameters) > 0 {
			fmt.Println("    Parameters:")
			for _, param := range meta.Parameters {
				req := ""
				if param.Required {
					req = "*"
				}
				fmt.Printf("      %s%s: %s - %s\n", param.Name, req, param.ParamType, param.Description)
			}
		}
		fmt.Println()
	}
	return nil
}

// Helper functions

// drive wires the controller over a fresh or restored store and runs it.
func drive(ctx context.Context, task string, store *conversation.Store, journal *storage.SqliteJournal, provider llm.Provider, registry *tools.Registry, cfg config.Settings, opts Options) error {
	reviewer, err := reviewerFor(opts.ReviewMode)
	if err != nil {
		return err
	}

	controllerCfg := orchestration.ControllerConfig{
		MaxRounds:       cfg.Controller.MaxRounds,
		StallLimit:      cfg.Controller.StallLimit,
		TurnTimeoutSecs: uint64(cfg.Controller.TurnTimeoutSecs),
		ToolTimeoutSecs: uint64(cfg.Controller.ToolTimeoutSecs),
	}

	controller := orchestration.NewController(DefaultRoster(provider, registry), registry, store, controllerCfg).
		WithJournal(journal).
		WithAudit(checkpointAudit{journal: journal}).
		WithReviewer(reviewer).
		Verbose(opts.Verbose)

	result, err := controller.Run(ctx, task)
	if err != nil {
		return err
	}

	printResult(result, opts.Verbose)
	return nil
}

// loadSettings resolves configuration, with flags overriding environment.
func loadSettings(opts Options) (config.Settings, error) {
	if opts.Provider == "" {
		return config.Settings{}, fmt.Errorf("--provider is required for this command")
	}

	cfg, err := config.New(opts.Provider)
	if err != nil {
		return config.Settings{}, err
	}

	if opts.Model != "" {
		cfg.LLM.Model = opts.Model
	}
	if opts.MaxRounds > 0 {
		cfg.Controller.MaxRounds = opts.MaxRounds
	}
	if opts.StallLimit > 0 {
		cfg.Controller.StallLimit = opts.StallLimit
	}
	if opts.DBPath != "" {
		cfg.Storage.DBPath = opts.DBPath
	}
	if opts.ArtifactDir != "" {
		cfg.Storage.ArtifactDir = opts.ArtifactDir
	}
	return cfg, nil
}

// openJournal opens the SQLite journal without touching LLM settings.
func openJournal(opts Options) (*storage.SqliteJournal, error) {
	path := opts.DBPath
	if path == "" {
		path = config.StorageFromEnv().DBPath
	}
	return storage.OpenSqlite(path)
}

// buildRegistry assembles the tool suite over the artifact store.
func buildRegistry(cfg config.Settings) (*tools.Registry, error) {
	artifacts, err := storage.NewArtifactStore(cfg.Storage.ArtifactDir)
	if err != nil {
		return nil, err
	}
	client := tools.NewChEMBLClient(cfg.ChEMBL.BaseURL, uint64(cfg.Controller.ToolTimeoutSecs))
	return tools.WithDefaults(client, artifacts)
}

func createProvider(cfg config.Settings) (llm.Provider, error) {
	providerType, err := llm.ParseProviderType(cfg.LLM.Provider)
	if err != nil {
		return nil, err
	}

	apiKey, err := config.APIKeyFor(cfg.LLM.Provider)
	if err != nil {
		return nil, err
	}

	return providerType.
		Model(cfg.LLM.Model).
		MaxTokens(cfg.LLM.MaxTokens).
		Temperature(float32(cfg.LLM.Temperature)).
		APIKey(apiKey)
}

func reviewerFor(mode string) (orchestration.Reviewer, error) {
	switch mode {
	case "", ReviewLine:
		return &LineReviewer{In: os.Stdin, Out: os.Stdout}, nil
	case ReviewTUI:
		return TUIReviewer{}, nil
	default:
		return nil, fmt.Errorf("unknown review mode %q (want %s or %s)", mode, ReviewLine, ReviewTUI)
	}
}

// checkpointAudit adapts the journal's checkpoint table to the gate's
// audit interface.
type checkpointAudit struct {
	journal storage.ConversationJournal
}

func (a checkpointAudit) RecordCheckpoint(ctx context.Context, cp orchestration.Checkpoint) error {
	return a.journal.RecordCheckpointDecision(ctx, storage.CheckpointRecord{
		ID:             cp.ID,
		ConversationID: cp.ConversationID,
		Step:           cp.Step,
		Key:            cp.Key,
		Proposed:       cp.Proposed,
		State:          string(cp.State),
		DecidedBy:      cp.DecidedBy,
		Committed:      cp.Committed,
		Note:           cp.Note,
		CreatedAt:      cp.CreatedAt,
		DecidedAt:      cp.DecidedAt,
	})
}

func listConversations(ctx context.Context, journal *storage.SqliteJournal) error {
	summaries, err := journal.ListConversations(ctx)
	if err != nil {
		return err
	}
	if len(summaries) == 0 {
		fmt.Println("No stored conversations.")
		return nil
	}

	fmt.Println("Stored conversations:")
	for _, s := range summaries {
		state := "open"
		if s.Terminated {
			state = s.Reason
		}
		fmt.Printf("  %s  step=%s  messages=%d  %s  (%s)\n",
			s.ID, s.Step, s.Messages, state, s.UpdatedAt.Format(time.RFC3339))
	}
	return nil
}

const (
	maxTurnNoteLen       = 120
	serveShutdownTimeout = 5 * time.Second
)

func printResult(result orchestration.Result, verbose bool) {
	fmt.Printf("\nConversation %s: %s after %d rounds\n", result.ConversationID, result.Reason, result.Rounds)

	if len(result.Final.PendingCheckpoints) > 0 {
		fmt.Printf("A checkpoint is still pending; resume with 'symposium review %s'\n", result.ConversationID)
	}

	if verbose && len(result.Turns) > 0 {
		fmt.Println("\n--- Turns ---")
		for _, turn := range result.Turns {
			line := fmt.Sprintf("[%d] %s (%s)", turn.Round, turn.Speaker, turn.Step)
			if turn.Executed > 0 || turn.Rejected > 0 {
				line += fmt.Sprintf(" executed=%d rejected=%d", turn.Executed, turn.Rejected)
			}
			if turn.Note != "" {
				line += " " + truncateString(turn.Note, maxTurnNoteLen)
			}
			fmt.Println(line)
		}
		fmt.Println("-------------")
	}

	printTokenStats(result.Stats)
}

// printTokenStats prints token usage statistics.
func printTokenStats(stats *orchestration.TokenStats) {
	if stats == nil {
		return
	}
	fmt.Printf("\nToken Usage:\n")
	fmt.Printf("  LLM calls: %d\n", stats.LLMCalls)
	fmt.Printf("  Prompt tokens: %d\n", stats.PromptTokens)
	fmt.Printf("  Completion tokens: %d\n", stats.CompletionTokens)
	fmt.Printf("  Total tokens: %d\n", stats.TotalTokens)
}

// truncateString truncates a string to maxLen runes, preserving UTF-8 boundaries.
func truncateString(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	return string(runes[:maxLen]) + "..."
}
