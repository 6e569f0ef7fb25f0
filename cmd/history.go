package cmd

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"
	"github.com/torifo/echo-news/internal/browser"
	"github.com/torifo/echo-news/internal/cache"
	"github.com/torifo/echo-news/internal/config"
	"github.com/torifo/echo-news/internal/news"
	"github.com/torifo/echo-news/internal/tui"
)

var (
	flagHistorySince    string
	flagHistoryProvider string
	flagHistorySearch   string
	flagHistoryLimit    int
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List previously fetched articles",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		opts, err := historyQuery(flagHistorySince, flagHistoryProvider, flagHistorySearch, flagHistoryLimit, time.Now())
		if err != nil {
			return err
		}

		db, err := cache.Open(config.CachePath())
		if err != nil {
			return fmt.Errorf("opening cache: %w", err)
		}
		defer db.Close()

		entries, err := db.GetArticles(opts)
		if err != nil {
			return err
		}
		fmt.Fprint(cmd.OutOrStdout(), tui.RenderHistory(entries, 80, time.Now()))
		return nil
	},
}

func historyQuery(since, provider, search string, limit int, now time.Time) (cache.QueryOpts, error) {
	opts := cache.QueryOpts{Search: search, Limit: limit}
	if since != "" {
		d, err := parseSince(since)
		if err != nil {
			return opts, fmt.Errorf("invalid --since value: %w", err)
		}
		opts.Since = now.Add(-d)
	}
	if provider != "" {
		p, err := news.ParseProvider(provider)
		if err != nil {
			return opts, err
		}
		opts.Providers = []news.Provider{p}
	}
	return opts, nil
}

var openCmd = &cobra.Command{
	Use:   "open <n>",
	Short: "Open the n-th article of the last run in the browser",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		n, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("invalid article number %q", args[0])
		}

		db, err := cache.Open(config.CachePath())
		if err != nil {
			return fmt.Errorf("opening cache: %w", err)
		}
		defer db.Close()

		entries, err := db.LastRun()
		if err != nil {
			return err
		}
		e, err := pick(entries, n)
		if err != nil {
			return err
		}
		if err := browser.Open(cmd.Context(), e.URL); err != nil {
			return fmt.Errorf("opening %s: %w", e.URL, err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Opened [%d] %s\n", n, e.Title)
		return nil
	},
}

// pick returns the 1-based n-th entry.
func pick(entries []cache.Entry, n int) (cache.Entry, error) {
	if len(entries) == 0 {
		return cache.Entry{}, fmt.Errorf("no previous run, fetch some news first")
	}
	if n < 1 || n > len(entries) {
		return cache.Entry{}, fmt.Errorf("article %d out of range (1-%d)", n, len(entries))
	}
	return entries[n-1], nil
}

func init() {
	historyCmd.Flags().StringVar(&flagHistorySince, "since", "7d", "only articles fetched within this duration (e.g., 7d, 24h)")
	historyCmd.Flags().StringVar(&flagHistoryProvider, "provider", "", "only articles from gnews or currents")
	historyCmd.Flags().StringVar(&flagHistorySearch, "search", "", "match title or description")
	historyCmd.Flags().IntVar(&flagHistoryLimit, "limit", 20, "maximum number of articles")
}
