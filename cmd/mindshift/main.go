// mindshift is the CLI front end for the Mind Shifting session engine.
// Run without arguments to start an interactive session; subcommands cover
// resume, status, undo and usage reporting.
package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"mindshift/internal/assist"
	"mindshift/internal/config"
	"mindshift/internal/engine"
	"mindshift/internal/logging"
	"mindshift/internal/protocol"
	"mindshift/internal/session"
	"mindshift/internal/store"
	"mindshift/internal/usage"
)

var (
	// Global flags
	verbose   bool
	dataDir   string
	sessionID string
	userID    string
	noAI      bool

	// Logger
	logger *zap.Logger
)

// app holds the wired runtime, built once per command invocation.
type app struct {
	cfg      *config.Config
	db       *store.LocalStore
	sessions *session.Store
	tracker  *usage.Tracker
	pre      *protocol.Preloader
	eng      *engine.Engine
}

var rootCmd = &cobra.Command{
	Use:   "mindshift",
	Short: "mindshift - structured Mind Shifting session engine",
	Long: `mindshift runs Mind Shifting sessions: a strictly scripted, step-by-step
treatment protocol. Responses are deterministic and protocol-mandated; an
optional AI gateway only rephrases scripted wording around the user's own
words, it never decides what happens next.

Run without arguments to start a new interactive session.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Initialize logger
		zcfg := zap.NewProductionConfig()
		if verbose {
			zcfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = zcfg.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return logging.Initialize(resolveDataDir())
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
		logging.CloseAll()
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSession(cmd.Context(), false)
	},
}

var resumeCmd = &cobra.Command{
	Use:   "resume",
	Short: "Resume a previous session",
	Long: `Reloads a persisted session, replays its transcript, and continues from
the exact step where it left off. Requires --session.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if sessionID == "" {
			return fmt.Errorf("--session is required for resume")
		}
		return runSession(cmd.Context(), true)
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the state of a session",
	RunE: func(cmd *cobra.Command, args []string) error {
		if sessionID == "" {
			return fmt.Errorf("--session is required for status")
		}
		a, err := buildApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.close()

		st, err := a.eng.Status(sessionID, userID)
		if err != nil {
			return err
		}

		fmt.Printf("Session:   %s (user %s)\n", st.SessionID, st.UserID)
		fmt.Printf("Phase:     %s\n", st.Phase)
		fmt.Printf("Step:      %s\n", st.Step)
		if st.ProblemStatement != "" {
			fmt.Printf("Problem:   %s\n", st.ProblemStatement)
		}
		fmt.Printf("Responses: %d\n", st.ResponseCount)
		fmt.Printf("Started:   %s\n", st.StartTime.Format(time.RFC3339))
		fmt.Printf("Activity:  %s\n", st.LastActivity.Format(time.RFC3339))
		fmt.Printf("Complete:  %v\n", st.SessionComplete)
		fmt.Printf("AI tokens: %d ($%.4f est)\n", st.TokensUsed, st.CostUSD)
		return nil
	},
}

var undoCmd = &cobra.Command{
	Use:   "undo [step]",
	Short: "Roll a session back to an earlier step",
	Long: `Rolls the session back to the named step. The answers given at and after
that step are discarded and the derived session state is rebuilt from the
answers that remain. An unknown step name restarts the session.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if sessionID == "" {
			return fmt.Errorf("--session is required for undo")
		}
		a, err := buildApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.close()

		res, err := a.eng.Undo(sessionID, userID, protocol.StepID(args[0]))
		if err != nil {
			return err
		}
		fmt.Printf("Rolled back to %s (%d answers cleared)\n\n", res.Step, res.ClearedResponses)
		fmt.Println(res.Message)
		return nil
	},
}

var usageCmd = &cobra.Command{
	Use:   "usage",
	Short: "Show AI token usage and estimated cost",
	RunE: func(cmd *cobra.Command, args []string) error {
		tracker, err := usage.NewTracker(resolveDataDir())
		if err != nil {
			return err
		}
		stats := tracker.Stats()

		fmt.Printf("Total: %d tokens (%d in / %d out), $%.4f est\n",
			stats.Total.Total, stats.Total.Input, stats.Total.Output, stats.Total.Cost)
		if len(stats.ByOperation) > 0 {
			fmt.Println("\nBy operation:")
			for op, tc := range stats.ByOperation {
				fmt.Printf("  %-12s %8d tokens  $%.4f\n", op, tc.Total, tc.Cost)
			}
		}
		if len(stats.BySession) > 0 {
			fmt.Println("\nBy session:")
			for id, tc := range stats.BySession {
				fmt.Printf("  %-24s %8d tokens  $%.4f\n", id, tc.Total, tc.Cost)
			}
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose logging")
	rootCmd.PersistentFlags().StringVar(&dataDir, "data-dir", "", "data directory (default ~/.mindshift)")
	rootCmd.PersistentFlags().StringVar(&sessionID, "session", "", "session id")
	rootCmd.PersistentFlags().StringVar(&userID, "user", "local", "user id")
	rootCmd.PersistentFlags().BoolVar(&noAI, "no-ai", false, "disable the AI assistance gateway")

	rootCmd.AddCommand(resumeCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(undoCmd)
	rootCmd.AddCommand(usageCmd)
}

func resolveDataDir() string {
	if dataDir != "" {
		return dataDir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".mindshift"
	}
	return filepath.Join(home, ".mindshift")
}

// buildApp wires the full runtime from configuration.
func buildApp(ctx context.Context) (*app, error) {
	dir := resolveDataDir()
	cfg, err := config.Load(dir)
	if err != nil {
		return nil, err
	}

	db, err := store.NewLocalStore(cfg.Storage.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open session database: %w", err)
	}

	tracker, err := usage.NewTracker(dir)
	if err != nil {
		db.Close()
		return nil, err
	}

	reg := protocol.NewRegistry()
	pre := protocol.NewPreloader(reg, cfg.Protocol.OverridesPath)
	if err := pre.Start(); err != nil {
		logger.Warn("overrides watcher unavailable", zap.Error(err))
	}

	var provider assist.Provider
	if !noAI && cfg.LLM.Provider == "gemini" && cfg.LLM.APIKey != "" {
		p, err := assist.NewGeminiProvider(ctx, cfg.LLM.APIKey, cfg.LLM.Model)
		if err != nil {
			logger.Warn("AI gateway unavailable, running scripted-only", zap.Error(err))
		} else {
			provider = p
		}
	}
	gateway := assist.NewGateway(provider, tracker, cfg.LLM.Model, cfg.LLMTimeout())

	sessions := session.NewStore(reg, db.Sessions())
	eng := engine.New(reg, pre, sessions, gateway, db.Transcripts(), tracker, engine.Params{
		MaxWords:       cfg.Engine.MaxWords,
		MaxAutoAdvance: cfg.Engine.MaxAutoAdvance,
	})

	return &app{cfg: cfg, db: db, sessions: sessions, tracker: tracker, pre: pre, eng: eng}, nil
}

func (a *app) close() {
	if sessionID != "" {
		if err := a.sessions.PersistSync(sessionID); err != nil {
			logger.Warn("final persist failed", zap.Error(err))
		}
	}
	_ = a.tracker.Save()
	a.pre.Stop()
	if err := a.db.Close(); err != nil {
		logger.Warn("database close failed", zap.Error(err))
	}
}

// runSession drives the interactive read/respond loop.
func runSession(ctx context.Context, resume bool) error {
	a, err := buildApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	if sessionID == "" {
		sessionID = uuid.NewString()
		fmt.Printf("(session %s)\n\n", sessionID)
	}

	if resume {
		res, err := a.eng.Resume(ctx, sessionID, userID)
		if err != nil {
			return err
		}
		for _, t := range res.Transcript {
			fmt.Printf("> %s\n%s\n\n", t.UserInput, t.Response)
		}
		fmt.Println(res.Message)
	} else {
		res, err := a.eng.Start(sessionID, userID)
		if err != nil {
			return err
		}
		fmt.Println(res.Message)
	}

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("\n> ")
		if !scanner.Scan() {
			break
		}
		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}
		if input == "/quit" || input == "/exit" {
			break
		}

		res, err := a.eng.Continue(ctx, sessionID, userID, input)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			continue
		}
		fmt.Printf("\n%s\n", res.Message)

		if res.SessionComplete {
			counts := a.tracker.SessionCounts(sessionID)
			fmt.Printf("\n(session complete - %d AI tokens, $%.4f est)\n", counts.Total, counts.Cost)
			break
		}
	}
	return scanner.Err()
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
