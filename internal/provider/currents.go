package provider

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"

	"github.com/torifo/echo-news/internal/news"
)

const currentsBaseURL = "https://api.currentsapi.services/v1"

type currentsClient struct {
	apiKey   string
	baseURL  string
	http     *http.Client
	retrier  *Retrier
	recorder RateLimitRecorder
	logger   *slog.Logger
}

type currentsResponse struct {
	Status string            `json:"status"`
	News   []currentsArticle `json:"news"`
}

type currentsArticle struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	URL         string   `json:"url"`
	Author      string   `json:"author"`
	Image       string   `json:"image"`
	Language    string   `json:"language"`
	Category    []string `json:"category"`
	Published   string   `json:"published"`
}

func (c *currentsClient) Name() news.Provider { return news.Currents }

func (c *currentsClient) Fetch(ctx context.Context, opts news.FetchOptions) ([]news.Article, error) {
	endpoint := c.baseURL + "/latest-news"
	if opts.Topic != "" {
		endpoint = c.baseURL + "/search"
	}

	params := url.Values{}
	params.Set("apiKey", c.apiKey)
	params.Set("language", firstNonEmpty(opts.Lang, "ja"))
	setIf(params, "keywords", opts.Topic)
	setIf(params, "country", opts.Country)
	setIf(params, "category", opts.Category)
	setIf(params, "start_date", opts.From)
	setIf(params, "end_date", opts.To)

	var (
		resp   currentsResponse
		header http.Header
	)
	err := c.retrier.Do(ctx, func(ctx context.Context) error {
		resp = currentsResponse{}
		h, err := getJSON(ctx, c.http, endpoint, params, &resp)
		header = h
		return err
	})
	if err != nil {
		return nil, &FetchError{Provider: news.Currents, Err: err}
	}

	c.recordRateLimit(header)

	limit := opts.Limit
	if limit <= 0 {
		limit = 20
	}
	raws := resp.News
	if len(raws) > limit {
		raws = raws[:limit]
	}

	articles := make([]news.Article, 0, len(raws))
	for _, raw := range raws {
		if raw.URL == "" {
			continue
		}
		articles = append(articles, news.Article{
			ID:          news.ArticleID(raw.URL),
			Title:       raw.Title,
			Description: raw.Description,
			URL:         raw.URL,
			Source:      firstNonEmpty(raw.Author, "Currents"),
			Provider:    news.Currents,
			PublishedAt: parseTime(raw.Published),
		})
	}
	return articles, nil
}

// recordRateLimit forwards X-RateLimit-Remaining/Limit when both are present.
func (c *currentsClient) recordRateLimit(h http.Header) {
	if c.recorder == nil || h == nil {
		return
	}
	remaining, err := strconv.Atoi(h.Get("X-RateLimit-Remaining"))
	if err != nil {
		return
	}
	limit, err := strconv.Atoi(h.Get("X-RateLimit-Limit"))
	if err != nil {
		return
	}
	if err := c.recorder.RecordAuthoritativeRemaining(news.Currents, remaining, limit); err != nil {
		c.logger.Warn("storing rate limit", "error", err)
	}
}
