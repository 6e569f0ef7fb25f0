package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/torifo/echo-news/internal/update"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

var (
	flagConfig  string
	flagVerbose bool

	logger = slog.Default()
)

var rootCmd = &cobra.Command{
	Use:   "echo-news",
	Short: "Aggregated, deduplicated news from several news APIs",
	Long: `echo-news queries GNews and Currents in parallel, merges near-duplicate
stories and prints the result.

Without an own API key the shared keys are used, which are capped per day.
Set an own key with "echo-news config set-key".`,
	Args:              cobra.NoArgs,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: setup,
	RunE:              runFetch,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "path to config file")
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "log requests, retries and deduplication to stderr")

	registerFetchFlags(rootCmd)

	versionCmd.Flags().BoolVar(&flagCheckUpdate, "check", false, "check GitHub for a newer release")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(openCmd)
	rootCmd.AddCommand(pruneCmd)
	rootCmd.AddCommand(statsCmd)
}

var flagCheckUpdate bool

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "echo-news %s (commit: %s, built: %s)\n", version, commit, date)
		if !flagCheckUpdate {
			return nil
		}
		res, err := update.Checker{}.Check(cmd.Context(), version)
		if err != nil {
			return err
		}
		if res == nil {
			fmt.Fprintln(out, "You are on the latest release.")
			return nil
		}
		fmt.Fprintf(out, "A newer release is available: %s %s\n", res.LatestVersion, res.URL)
		return nil
	},
}

func setup(cmd *cobra.Command, args []string) error {
	level := slog.LevelWarn
	if flagVerbose {
		level = slog.LevelDebug
	}
	logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	loadDotEnv()
	return nil
}

// loadDotEnv reads shared keys from a .env next to the executable or in the
// working directory. Variables already set win.
func loadDotEnv() {
	var paths []string
	if exe, err := os.Executable(); err == nil {
		paths = append(paths, filepath.Join(filepath.Dir(exe), ".env"))
	}
	paths = append(paths, ".env")

	for _, p := range paths {
		if _, err := os.Stat(p); err != nil {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			logger.Warn("reading .env", "path", p, "error", err)
			continue
		}
		logger.Debug("loaded .env", "path", p)
	}
}

func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		printError(os.Stderr, err)
		os.Exit(1)
	}
}

func SetVersionInfo(v, c, d string) {
	version = v
	commit = c
	date = d
}
