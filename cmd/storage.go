package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/torifo/echo-news/internal/cache"
	"github.com/torifo/echo-news/internal/config"
	"github.com/torifo/echo-news/internal/news"
	"github.com/torifo/echo-news/internal/tui"
)

var flagPruneOlderThan string

var pruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Remove old articles from the history",
	Long: `Delete articles fetched longer ago than the retention period and reclaim disk space.

Uses the retention value from config (default: 30d) unless overridden with --older-than.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(flagConfig)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}

		db, err := cache.Open(config.CachePath())
		if err != nil {
			return fmt.Errorf("opening cache: %w", err)
		}
		defer db.Close()

		retention := cfg.RetentionDuration()
		if flagPruneOlderThan != "" {
			d, err := parseSince(flagPruneOlderThan)
			if err != nil {
				return fmt.Errorf("invalid --older-than value: %w", err)
			}
			retention = d
		}

		deleted, err := db.Prune(retention)
		if err != nil {
			return fmt.Errorf("pruning: %w", err)
		}

		out := cmd.OutOrStdout()
		if deleted == 0 {
			fmt.Fprintln(out, "Nothing to prune.")
		} else {
			fmt.Fprintf(out, "Pruned %d article(s) older than %s.\n", deleted, formatDuration(retention))
		}
		return nil
	},
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show history statistics",
	RunE: func(cmd *cobra.Command, args []string) error {
		dbPath := config.CachePath()
		db, err := cache.Open(dbPath)
		if err != nil {
			return fmt.Errorf("opening cache: %w", err)
		}
		defer db.Close()

		count, size, err := db.Stats(dbPath)
		if err != nil {
			return fmt.Errorf("reading stats: %w", err)
		}

		byProvider, err := db.CountByProvider()
		if err != nil {
			return fmt.Errorf("reading stats: %w", err)
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "History: %s\n", dbPath)
		fmt.Fprintf(out, "Articles: %d\n", count)
		for _, p := range news.All() {
			fmt.Fprintf(out, "  %-9s %d\n", tui.DisplayName(p), byProvider[p])
		}
		fmt.Fprintf(out, "Size: %s\n", formatBytes(size))
		if last := db.LastRunAt(); !last.IsZero() {
			fmt.Fprintf(out, "Last run: %s\n", last.Local().Format("2006-01-02 15:04"))
		}
		return nil
	},
}

// parseSince accepts "Nd" day syntax besides Go durations.
func parseSince(s string) (time.Duration, error) {
	return config.ParseDays(s)
}

func init() {
	pruneCmd.Flags().StringVar(&flagPruneOlderThan, "older-than", "", "override retention period (e.g., 30d, 720h)")
}

func formatDuration(d time.Duration) string {
	h := d.Hours()
	days := int(h / 24)
	if days > 0 {
		return fmt.Sprintf("%dd", days)
	}
	return fmt.Sprintf("%dh", int(h))
}

func formatBytes(b int64) string {
	switch {
	case b >= 1<<20:
		return fmt.Sprintf("%.1f MB", float64(b)/(1<<20))
	case b >= 1<<10:
		return fmt.Sprintf("%.1f KB", float64(b)/(1<<10))
	default:
		return fmt.Sprintf("%d B", b)
	}
}
