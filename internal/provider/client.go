// Package provider implements the upstream news API clients.
package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/torifo/echo-news/internal/news"
)

// Client fetches normalized articles from one upstream.
type Client interface {
	Name() news.Provider
	Fetch(ctx context.Context, opts news.FetchOptions) ([]news.Article, error)
}

// RateLimitRecorder receives the remaining-quota figures an upstream reports
// about itself.
type RateLimitRecorder interface {
	RecordAuthoritativeRemaining(p news.Provider, remaining, limit int) error
}

// FetchError is returned when a provider could not deliver articles.
type FetchError struct {
	Provider news.Provider
	Err      error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetching %s: %v", e.Provider, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// StatusError is a non-2xx upstream response.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("upstream returned %d", e.Code)
	}
	return fmt.Sprintf("upstream returned %d: %s", e.Code, e.Body)
}

type settings struct {
	httpClient *http.Client
	baseURL    string
	retry      RetryPolicy
	logger     *slog.Logger
	recorder   RateLimitRecorder
}

type Option func(*settings)

func WithHTTPClient(c *http.Client) Option {
	return func(s *settings) { s.httpClient = c }
}

// WithBaseURL points the client at another API root, e.g. a test server.
func WithBaseURL(u string) Option {
	return func(s *settings) { s.baseURL = u }
}

func WithRetryPolicy(p RetryPolicy) Option {
	return func(s *settings) { s.retry = p }
}

func WithLogger(l *slog.Logger) Option {
	return func(s *settings) { s.logger = l }
}

// WithRateLimitRecorder receives upstream rate-limit headers where the
// provider exposes them.
func WithRateLimitRecorder(r RateLimitRecorder) Option {
	return func(s *settings) { s.recorder = r }
}

// New returns the client for p authenticated with key.
func New(p news.Provider, key string, opts ...Option) (Client, error) {
	s := settings{
		httpClient: &http.Client{Timeout: 15 * time.Second},
		retry:      DefaultRetryPolicy,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(&s)
	}
	logger := s.logger.With("provider", string(p))

	switch p {
	case news.GNews:
		return &gnewsClient{
			apiKey:  key,
			baseURL: firstNonEmpty(s.baseURL, gnewsBaseURL),
			http:    s.httpClient,
			retrier: NewRetrier(s.retry, logger),
		}, nil
	case news.Currents:
		return &currentsClient{
			apiKey:   key,
			baseURL:  firstNonEmpty(s.baseURL, currentsBaseURL),
			http:     s.httpClient,
			retrier:  NewRetrier(s.retry, logger),
			recorder: s.recorder,
			logger:   logger,
		}, nil
	default:
		return nil, fmt.Errorf("unknown provider %q", p)
	}
}

// getJSON issues one GET and decodes a 2xx JSON body into out.
func getJSON(ctx context.Context, c *http.Client, endpoint string, params url.Values, out any) (http.Header, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "echo-news")

	resp, err := c.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, &StatusError{Code: resp.StatusCode, Body: string(b)}
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}
	return resp.Header, nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

// parseTime accepts the timestamp layouts the upstreams are known to send.
func parseTime(s string) time.Time {
	layouts := []string{
		time.RFC3339Nano,
		"2006-01-02 15:04:05 -0700",
		"2006-01-02 15:04:05 Z0700",
		"2006-01-02 15:04:05",
	}
	for _, l := range layouts {
		if t, err := time.Parse(l, s); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}
