package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/schaermu/gitshelf/internal/config"
	"github.com/schaermu/gitshelf/internal/fsys"
	"github.com/schaermu/gitshelf/internal/git"
	"github.com/schaermu/gitshelf/internal/shelf"
	"github.com/spf13/cobra"
)

var (
	// Set by goreleaser
	version = "dev"
	commit  = "none"
	date    = "unknown"

	// Global flags
	shelfFile string
	fakeRoot  string
	logLevel  string
	logFormat string
	jobs      int

	// Create command flags
	dryRun      bool
	skipDeletes bool
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "gitshelf",
	Short: "Keep a tree of git checkouts and symlinks in line with a manifest",
	Long: `gitshelf reads a shelf manifest listing books, each either a git checkout
(path, remote, branch/tag/commit) or a symbolic link (path, target), and brings
the working tree into agreement with it.

Books that already exist are verified rather than recreated. Existing symlinks
are never re-pointed; use "gitshelf status" to find links that diverge.`,
	SilenceUsage: true,
}

var createCmd = &cobra.Command{
	Use:     "create",
	Aliases: []string{"sync", "reconcile"},
	Short:   "Create missing books and move checkouts to their declared revision",
	Long: `Create clones every git book that does not exist yet, fetches and checks out
the declared revision for checkouts that are elsewhere, and creates missing
symbolic links (including their parent directories).

A failing book is reported and the remaining books are still processed. The
command exits non-zero if any book failed.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runShelf(shelf.ModeReconcile)
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Report how each book compares with the manifest",
	Long: `Status reports, for every book, whether it exists and whether it matches the
manifest: the working copy status of git books and the actual target of
symbolic links. Nothing is modified.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runShelf(shelf.ModeStatus)
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("gitshelf %s\n", version)
		fmt.Printf("  commit: %s\n", commit)
		fmt.Printf("  built:  %s\n", date)
	},
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVar(&shelfFile, "gitshelf", config.DefaultFile, "path to the gitshelf YAML manifest")
	rootCmd.PersistentFlags().StringVar(&fakeRoot, "fakeroot", "", "path to prepend to every book path, to test shelves that use absolute paths")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "text", "log format (text, json)")
	rootCmd.PersistentFlags().IntVar(&jobs, "jobs", 1, "number of books to process concurrently")

	// Create command flags
	createCmd.Flags().BoolVar(&dryRun, "dry-run", false, "show which books would be reconciled without changing anything")
	createCmd.Flags().BoolVar(&skipDeletes, "skip-deletes", false, "skip deletes of books no longer on the shelf (gitshelf never deletes books)")

	rootCmd.AddCommand(createCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(versionCmd)
}

func runShelf(mode shelf.Mode) error {
	ctx, cancel := setupSignalHandler()
	defer cancel()

	logger := setupLogger()

	cfg, err := loadConfig(logger)
	if err != nil {
		return fmt.Errorf("failed to load manifest: %w", err)
	}

	if skipDeletes {
		logger.Debug("--skip-deletes has no effect, books are never deleted")
	}

	gitClient := git.NewShellClient(cfg.Auth.SSHKeyFile, cfg.Auth.HTTPSTokenFile)
	reconciler := shelf.New(gitClient, fsys.OS{}, logger, shelf.Options{
		Root:   fakeRoot,
		DryRun: dryRun,
		Jobs:   jobs,
	})

	report := reconciler.Run(ctx, cfg.Books, mode)
	return report.Err()
}

func setupLogger() *slog.Logger {
	// Parse log level
	var level slog.Level
	switch logLevel {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	// Create handler based on format
	var handler slog.Handler
	opts := &slog.HandlerOptions{Level: level}

	if logFormat == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	return slog.New(handler)
}

func loadConfig(logger *slog.Logger) (*config.Config, error) {
	path := shelfFile
	if path == "" {
		path = config.DefaultFile
	}

	logger.Info("loading manifest", "path", path)

	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}

	logger.Debug("manifest loaded",
		"books", len(cfg.Books),
		"auth", cfg.AuthMethod(),
		"fakeroot", fakeRoot)

	return cfg, nil
}

func setupSignalHandler() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigCh
		cancel()
	}()

	return ctx, cancel
}
