package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"github.com/torifo/echo-news/internal/aggregate"
	"github.com/torifo/echo-news/internal/cache"
	"github.com/torifo/echo-news/internal/config"
	"github.com/torifo/echo-news/internal/news"
	"github.com/torifo/echo-news/internal/provider"
	"github.com/torifo/echo-news/internal/quota"
	"github.com/torifo/echo-news/internal/tui"
)

type fetchFlags struct {
	topic    string
	lang     string
	country  string
	category string
	sort     string
	from     string
	to       string
	limit    int
	source   string
	showURL  bool
	json     bool
	noDedup  bool
	quota    bool
}

var ff fetchFlags

func registerFetchFlags(c *cobra.Command) {
	f := c.Flags()
	f.StringVar(&ff.topic, "topic", "", "keyword search")
	f.StringVar(&ff.lang, "lang", "ja", "language code")
	f.StringVar(&ff.country, "country", "", "country code (e.g. jp, us)")
	f.StringVar(&ff.category, "category", "", "category, Currents only (technology, sports, finance, ...)")
	f.StringVar(&ff.sort, "sort", "publishedAt", "order publishedAt|relevance, GNews only")
	f.StringVar(&ff.from, "from", "", "earliest publish date (YYYY-MM-DD)")
	f.StringVar(&ff.to, "to", "", "latest publish date (YYYY-MM-DD)")
	f.IntVar(&ff.limit, "limit", 10, "number of articles to show")
	f.StringVar(&ff.source, "source", "all", "provider gnews|currents|all")
	f.BoolVar(&ff.showURL, "url", false, "show article URLs")
	f.BoolVar(&ff.json, "json", false, "print JSON")
	f.BoolVar(&ff.noDedup, "no-dedup", false, "keep near-duplicate stories")
	f.BoolVar(&ff.quota, "quota", false, "show today's remaining requests and exit")
}

// applyDefaults fills flags the user did not give from the config file.
func applyDefaults(f *fetchFlags, changed func(string) bool, d config.Defaults) {
	if !changed("lang") && d.Lang != "" {
		f.lang = d.Lang
	}
	if !changed("limit") && d.Limit > 0 {
		f.limit = d.Limit
	}
	if !changed("source") && d.Source != "" {
		f.source = d.Source
	}
	if !changed("sort") && d.Sort != "" {
		f.sort = d.Sort
	}
}

func buildRequest(f fetchFlags, keys map[news.Provider]news.KeyInfo) aggregate.Request {
	return aggregate.Request{
		Selection: news.Selection(f.source),
		Options: news.FetchOptions{
			Topic:    f.topic,
			Lang:     f.lang,
			Country:  f.country,
			Category: f.category,
			Sort:     news.SortOrder(f.sort),
			From:     f.from,
			To:       f.to,
		},
		Limit:     f.limit,
		SkipDedup: f.noDedup,
		Keys:      keys,
	}
}

func newClientFactory(store *quota.Store, logger *slog.Logger) aggregate.ClientFactory {
	return func(p news.Provider, key string) (provider.Client, error) {
		return provider.New(p, key,
			provider.WithLogger(logger),
			provider.WithRateLimitRecorder(store),
		)
	}
}

func openQuota() *quota.Store {
	return quota.NewStore(quota.FileBackend{Path: config.QuotaPath()})
}

func runFetch(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(flagConfig)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	store := openQuota()
	out := cmd.OutOrStdout()

	if ff.quota {
		usage, err := store.Usage()
		if err != nil {
			return fmt.Errorf("reading quota: %w", err)
		}
		fmt.Fprintln(out, tui.RenderQuota(usage, news.SelectAll))
		return nil
	}

	f := ff
	applyDefaults(&f, cmd.Flags().Changed, cfg.Defaults)
	req := buildRequest(f, config.ResolveKeys(cfg, os.Getenv))

	agg := aggregate.New(store, newClientFactory(store, logger), aggregate.WithLogger(logger))
	if err := agg.Check(req); err != nil {
		return explain(err)
	}

	ctx := cmd.Context()
	var res *aggregate.Result
	fetch := func(ctx context.Context) error {
		var err error
		res, err = agg.Aggregate(ctx, req)
		return err
	}
	if showSpinner(f.json) {
		err = tui.Spin(ctx, os.Stderr, "Fetching news...", fetch)
	} else {
		err = fetch(ctx)
	}
	if err != nil {
		return explain(err)
	}

	for _, r := range res.Refused {
		printWarning(os.Stderr, "%s skipped: shared key daily limit reached (%d/%d)", tui.DisplayName(r.Provider), r.Used, r.Limit)
	}
	for _, w := range res.Warnings {
		printWarning(os.Stderr, "%s failed: %v", tui.DisplayName(w.Provider), w.Err)
	}
	if dispatched := len(req.Selection.Providers()) - len(res.Refused); dispatched > 0 && len(res.Warnings) == dispatched {
		return fmt.Errorf("all providers failed")
	}

	remember(cfg, res.Articles)

	if f.json {
		return tui.WriteJSON(out, res.Articles)
	}
	if len(res.Articles) == 0 {
		fmt.Fprintln(out, "\n  No articles found.")
		return nil
	}
	printArticles(out, res.Articles, f.showURL)

	usage, err := store.Usage()
	if err != nil {
		logger.Warn("reading quota", "error", err)
		return nil
	}
	fmt.Fprintln(out, tui.RenderQuota(usage, req.Selection))
	return nil
}

func printArticles(w io.Writer, articles []news.Article, showURL bool) {
	for i, a := range articles {
		fmt.Fprint(w, tui.RenderArticle(a, i+1, showURL, time.Local))
	}
	fmt.Fprint(w, tui.RenderSummary(len(articles)))
}

// remember records the run in the article history. Failures only cost the
// history, so they are logged.
func remember(cfg *config.Config, articles []news.Article) {
	db, err := cache.Open(config.CachePath())
	if err != nil {
		logger.Warn("opening history", "error", err)
		return
	}
	defer db.Close()

	if err := db.RecordRun(articles); err != nil {
		logger.Warn("recording history", "error", err)
		return
	}
	// Auto-prune old articles after each run
	if n, err := db.Prune(cfg.RetentionDuration()); err != nil {
		logger.Warn("pruning history", "error", err)
	} else if n > 0 {
		logger.Debug("pruned history", "articles", n)
	}
}

func showSpinner(jsonOut bool) bool {
	if jsonOut {
		return false
	}
	fd := os.Stderr.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
