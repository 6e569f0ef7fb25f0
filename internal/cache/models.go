package cache

import (
	"time"

	"github.com/torifo/echo-news/internal/news"
)

// Entry is an article as kept in the history.
type Entry struct {
	news.Article
	FetchedAt time.Time
}

type QueryOpts struct {
	// Since filters on fetch time.
	Since     time.Time
	Providers []news.Provider
	Search    string
	Limit     int
}
