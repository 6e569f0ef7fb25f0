// Package aggregate fans a request out to the selected providers, records
// quota usage for the ones that answered and merges their articles.
package aggregate

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/torifo/echo-news/internal/dedup"
	"github.com/torifo/echo-news/internal/news"
	"github.com/torifo/echo-news/internal/provider"
	"github.com/torifo/echo-news/internal/quota"
	"golang.org/x/sync/errgroup"
)

// QuotaStore is the part of quota.Store the coordinator needs.
type QuotaStore interface {
	IsSharedAllowed(p news.Provider, isOwn bool) (bool, error)
	SharedUsed(p news.Provider) (int, error)
	Policy(p news.Provider) (quota.Policy, error)
	Increment(p news.Provider, isOwn bool) error
}

// ClientFactory builds the client of a provider for one key.
type ClientFactory func(p news.Provider, key string) (provider.Client, error)

type Request struct {
	Selection news.Selection
	Options   news.FetchOptions
	Limit     int
	SkipDedup bool
	Keys      map[news.Provider]news.KeyInfo
}

type Result struct {
	Articles []news.Article
	// Warnings holds providers that were dispatched but failed.
	Warnings []ProviderFailure
	// Refused holds providers skipped because their shared cap is spent.
	Refused []Refusal
}

type Aggregator struct {
	store   QuotaStore
	clients ClientFactory
	logger  *slog.Logger
}

type Option func(*Aggregator)

func WithLogger(l *slog.Logger) Option {
	return func(a *Aggregator) { a.logger = l }
}

func New(store QuotaStore, clients ClientFactory, opts ...Option) *Aggregator {
	a := &Aggregator{store: store, clients: clients, logger: slog.Default()}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Validate checks a request without touching quota or network.
func Validate(req Request) error {
	if req.Limit < 1 {
		return &ValidationError{Field: "limit", Reason: "must be a positive integer"}
	}
	providers := req.Selection.Providers()
	if len(providers) == 0 {
		return &ValidationError{Field: "source", Reason: fmt.Sprintf("unknown source %q (valid: gnews, currents, all)", req.Selection)}
	}
	if !req.Options.Sort.Valid() {
		return &ValidationError{Field: "sort", Reason: fmt.Sprintf("unknown order %q (valid: publishedAt, relevance)", req.Options.Sort)}
	}

	from, err := parseDate("from", req.Options.From)
	if err != nil {
		return err
	}
	to, err := parseDate("to", req.Options.To)
	if err != nil {
		return err
	}
	if !from.IsZero() && !to.IsZero() && from.After(to) {
		return &ValidationError{Field: "from", Reason: "must not be after to"}
	}

	for _, p := range providers {
		if req.Keys[p].Key == "" {
			return &ValidationError{Field: "key", Reason: fmt.Sprintf("no API key for %s", p)}
		}
	}
	return nil
}

func parseDate(field, s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	return time.Time{}, &ValidationError{Field: field, Reason: fmt.Sprintf("%q is not YYYY-MM-DD or RFC 3339", s)}
}

// Check validates the request and reports, as a *QuotaExceededError, every
// selected provider whose shared cap is spent. Callers use it to refuse a
// request before anything is fetched.
func (a *Aggregator) Check(req Request) error {
	if err := Validate(req); err != nil {
		return err
	}
	_, refused, err := a.gate(req)
	if err != nil {
		return err
	}
	if len(refused) > 0 {
		return &QuotaExceededError{Refusals: refused}
	}
	return nil
}

func (a *Aggregator) gate(req Request) (admitted []news.Provider, refused []Refusal, err error) {
	for _, p := range req.Selection.Providers() {
		isOwn := req.Keys[p].IsOwn
		ok, err := a.store.IsSharedAllowed(p, isOwn)
		if err != nil {
			return nil, nil, fmt.Errorf("checking quota for %s: %w", p, err)
		}
		if ok {
			admitted = append(admitted, p)
			continue
		}
		used, err := a.store.SharedUsed(p)
		if err != nil {
			return nil, nil, fmt.Errorf("reading shared usage for %s: %w", p, err)
		}
		pol, err := a.store.Policy(p)
		if err != nil {
			return nil, nil, err
		}
		refused = append(refused, Refusal{Provider: p, Used: used, Limit: pol.SharedLimit})
	}
	return admitted, refused, nil
}

type outcome struct {
	articles []news.Article
	err      error
}

// Aggregate fetches from every admitted provider concurrently and waits for
// all of them. A failing provider only costs its own articles; the call
// fails for invalid requests or an unreadable quota store.
func (a *Aggregator) Aggregate(ctx context.Context, req Request) (*Result, error) {
	if err := Validate(req); err != nil {
		return nil, err
	}
	admitted, refused, err := a.gate(req)
	if err != nil {
		return nil, err
	}
	res := &Result{Refused: refused}
	for _, r := range refused {
		a.logger.Warn("provider refused, shared quota spent", "provider", string(r.Provider), "used", r.Used, "limit", r.Limit)
	}

	opts := req.Options
	opts.Limit = req.Limit

	outcomes := make([]outcome, len(admitted))
	var g errgroup.Group
	for i, p := range admitted {
		i, p := i, p
		g.Go(func() error {
			outcomes[i] = a.fetch(ctx, p, req.Keys[p].Key, opts)
			return nil
		})
	}
	_ = g.Wait()

	var pool []news.Article
	for i, p := range admitted {
		o := outcomes[i]
		if o.err != nil {
			a.logger.Warn("provider failed", "provider", string(p), "error", o.err)
			res.Warnings = append(res.Warnings, ProviderFailure{Provider: p, Err: o.err})
			continue
		}
		if err := a.store.Increment(p, req.Keys[p].IsOwn); err != nil {
			a.logger.Error("recording usage", "provider", string(p), "error", err)
		}
		a.logger.Debug("provider answered", "provider", string(p), "articles", len(o.articles))
		pool = append(pool, o.articles...)
	}

	if !req.SkipDedup {
		before := len(pool)
		pool = dedup.Deduplicate(pool)
		a.logger.Debug("deduplicated", "before", before, "after", len(pool))
	}
	if len(pool) > req.Limit {
		pool = pool[:req.Limit]
	}
	res.Articles = pool
	return res, nil
}

func (a *Aggregator) fetch(ctx context.Context, p news.Provider, key string, opts news.FetchOptions) outcome {
	client, err := a.clients(p, key)
	if err != nil {
		return outcome{err: err}
	}
	articles, err := client.Fetch(ctx, opts)
	return outcome{articles: articles, err: err}
}
