package tui

import (
	"encoding/json"
	"io"

	"github.com/torifo/echo-news/internal/news"
)

// WriteJSON writes articles as an indented JSON array. An empty result is
// written as [].
func WriteJSON(w io.Writer, articles []news.Article) error {
	if articles == nil {
		articles = []news.Article{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(articles)
}
