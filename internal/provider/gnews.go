package provider

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/torifo/echo-news/internal/news"
)

const (
	gnewsBaseURL = "https://gnews.io/api/v4"
	// gnewsMaxPerRequest is the page size cap of the free plan.
	gnewsMaxPerRequest = 10
)

type gnewsClient struct {
	apiKey  string
	baseURL string
	http    *http.Client
	retrier *Retrier
}

type gnewsResponse struct {
	TotalArticles int            `json:"totalArticles"`
	Articles      []gnewsArticle `json:"articles"`
}

type gnewsArticle struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Content     string `json:"content"`
	URL         string `json:"url"`
	Image       string `json:"image"`
	PublishedAt string `json:"publishedAt"`
	Source      struct {
		Name string `json:"name"`
		URL  string `json:"url"`
	} `json:"source"`
}

func (c *gnewsClient) Name() news.Provider { return news.GNews }

func (c *gnewsClient) Fetch(ctx context.Context, opts news.FetchOptions) ([]news.Article, error) {
	endpoint := c.baseURL + "/top-headlines"
	if opts.Topic != "" {
		endpoint = c.baseURL + "/search"
	}

	limit := opts.Limit
	if limit <= 0 {
		limit = 10
	}

	params := url.Values{}
	params.Set("apikey", c.apiKey)
	params.Set("lang", firstNonEmpty(opts.Lang, "ja"))
	params.Set("max", strconv.Itoa(min(limit, gnewsMaxPerRequest)))
	setIf(params, "q", opts.Topic)
	setIf(params, "country", opts.Country)
	setIf(params, "sortby", string(opts.Sort))
	setIf(params, "from", opts.From)
	setIf(params, "to", opts.To)

	var resp gnewsResponse
	err := c.retrier.Do(ctx, func(ctx context.Context) error {
		resp = gnewsResponse{}
		_, err := getJSON(ctx, c.http, endpoint, params, &resp)
		return err
	})
	if err != nil {
		return nil, &FetchError{Provider: news.GNews, Err: err}
	}

	articles := make([]news.Article, 0, len(resp.Articles))
	for _, raw := range resp.Articles {
		if raw.URL == "" {
			continue
		}
		articles = append(articles, news.Article{
			ID:          news.ArticleID(raw.URL),
			Title:       raw.Title,
			Description: raw.Description,
			URL:         raw.URL,
			Source:      raw.Source.Name,
			Provider:    news.GNews,
			PublishedAt: parseTime(raw.PublishedAt),
			Content:     raw.Content,
		})
	}
	return articles, nil
}

func setIf(v url.Values, key, value string) {
	if value != "" {
		v.Set(key, value)
	}
}
