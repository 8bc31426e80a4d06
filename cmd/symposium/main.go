// Package main provides the symposium CLI entry point.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/richinex/symposium/cli"
	"github.com/spf13/cobra"
)

var (
	// Global flags
	provider string
	verbose  bool
)

func main() {
	// Load .env file if present (ignore "file not found" errors)
	if err := godotenv.Load(); err != nil {
		if !os.IsNotExist(err) {
			fmt.Fprintf(os.Stderr, "Warning: failed to load .env file: %v\n", err)
		}
	}

	rootCmd := &cobra.Command{
		Use:   "symposium",
		Short: "Multi-agent group chat over ChEMBL bioactivity data",
		Long: `A controller that moderates a group chat of LLM agents working through
a protein bioactivity analysis: query ChEMBL for a target, confirm the
selection with a human, fetch activity data, compute Lipinski
descriptors, and plot the result.

Target selections pause the run for human review. Decide them inline
(line prompt or --review tui), or later through 'review' and the HTTP
API exposed by 'serve'.`,
	}

	// Global flags
	rootCmd.PersistentFlags().StringVarP(&provider, "provider", "p", "", "LLM provider (openai, anthropic, deepseek, gemini)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Show verbose output")

	// Add commands
	rootCmd.AddCommand(runCmd())
	rootCmd.AddCommand(reviewCmd())
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(exportCmd())
	rootCmd.AddCommand(agentsCmd())
	rootCmd.AddCommand(toolsCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runCmd() *cobra.Command {
	var model string
	var maxRounds int
	var stallLimit int
	var dbPath string
	var artifactDir string
	var reviewMode string

	cmd := &cobra.Command{
		Use:   "run [task]",
		Short: "Start a group chat over a bioactivity analysis task",
		Long: `Start a fresh group chat. The agents walk the workflow steps:
select_target, fetch_activity, lipinski_descriptors, visualize, wrap_up.

The run pauses at the target selection checkpoint for human review.
Quitting the review leaves the checkpoint pending; resume later with
'symposium review <conversation-id>'.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := cli.Options{
				Provider:    provider,
				Model:       model,
				MaxRounds:   maxRounds,
				StallLimit:  stallLimit,
				DBPath:      dbPath,
				ArtifactDir: artifactDir,
				ReviewMode:  reviewMode,
				Verbose:     verbose,
			}
			return cli.Run(context.Background(), args[0], opts)
		},
	}

	cmd.Flags().StringVar(&model, "model", "", "Override the provider's default model")
	cmd.Flags().IntVar(&maxRounds, "rounds", 0, "Maximum conversation rounds (default from SYMPOSIUM_MAX_ROUNDS)")
	cmd.Flags().IntVar(&stallLimit, "stall", 0, "Rounds without progress before stopping (default from SYMPOSIUM_STALL_LIMIT)")
	cmd.Flags().StringVar(&dbPath, "db", "", "SQLite journal path (default from SYMPOSIUM_DB_PATH)")
	cmd.Flags().StringVar(&artifactDir, "artifacts", "", "Artifact directory (default from SYMPOSIUM_ARTIFACT_DIR)")
	cmd.Flags().StringVar(&reviewMode, "review", cli.ReviewLine, "Checkpoint review surface: line or tui")

	return cmd
}

func reviewCmd() *cobra.Command {
	var model string
	var dbPath string
	var artifactDir string
	var reviewMode string

	cmd := &cobra.Command{
		Use:   "review [conversation-id]",
		Short: "Resume a stored conversation and decide pending checkpoints",
		Long: `Resume a conversation from the journal. Pending checkpoints come up
for review first, then the group chat continues where it stopped.

Without a conversation ID, lists the stored conversations.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			conversationID := ""
			if len(args) > 0 {
				conversationID = args[0]
			}
			opts := cli.Options{
				Provider:    provider,
				Model:       model,
				DBPath:      dbPath,
				ArtifactDir: artifactDir,
				ReviewMode:  reviewMode,
				Verbose:     verbose,
			}
			return cli.Review(context.Background(), conversationID, opts)
		},
	}

	cmd.Flags().StringVar(&model, "model", "", "Override the provider's default model")
	cmd.Flags().StringVar(&dbPath, "db", "", "SQLite journal path (default from SYMPOSIUM_DB_PATH)")
	cmd.Flags().StringVar(&artifactDir, "artifacts", "", "Artifact directory (default from SYMPOSIUM_ARTIFACT_DIR)")
	cmd.Flags().StringVar(&reviewMode, "review", cli.ReviewLine, "Checkpoint review surface: line or tui")

	return cmd
}

func serveCmd() *cobra.Command {
	var addr string
	var dbPath string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve stored conversations and checkpoint history over HTTP",
		Long: `Expose the journal over HTTP: transcripts, snapshots, and checkpoint
history, CORS-enabled for a browser reviewer.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := cli.Options{
				DBPath:  dbPath,
				Verbose: verbose,
			}
			return cli.Serve(context.Background(), addr, opts)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", ":8080", "Listen address")
	cmd.Flags().StringVar(&dbPath, "db", "", "SQLite journal path (default from SYMPOSIUM_DB_PATH)")

	return cmd
}

func exportCmd() *cobra.Command {
	var dbPath string

	cmd := &cobra.Command{
		Use:   "export [conversation-id]",
		Short: "Print a stored conversation's messages as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := cli.Options{
				DBPath:  dbPath,
				Verbose: verbose,
			}
			return cli.Export(context.Background(), args[0], opts)
		},
	}

	cmd.Flags().StringVar(&dbPath, "db", "", "SQLite journal path (default from SYMPOSIUM_DB_PATH)")

	return cmd
}

func agentsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "agents",
		Short: "List the default participants",
		RunE: func(cmd *cobra.Command, args []string) error {
			cli.ListAgents()
			return nil
		},
	}
}

func toolsCmd() *cobra.Command {
	var verboseTools bool

	cmd := &cobra.Command{
		Use:   "tools",
		Short: "List available tools",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cli.ListTools(verboseTools)
		},
	}

	cmd.Flags().BoolVarP(&verboseTools, "verbose", "V", false, "Show tool parameters")

	return cmd
}
