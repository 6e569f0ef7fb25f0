package news

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"
)

// Provider identifies an upstream news API.
type Provider string

const (
	GNews    Provider = "gnews"
	Currents Provider = "currents"
)

// All returns every provider in dispatch order.
func All() []Provider {
	return []Provider{GNews, Currents}
}

// ParseProvider validates a provider name given on the command line.
func ParseProvider(s string) (Provider, error) {
	for _, p := range All() {
		if string(p) == s {
			return p, nil
		}
	}
	return "", fmt.Errorf("unknown provider %q (valid: gnews, currents)", s)
}

// Selection is the provider choice of a single request.
type Selection string

const (
	SelectGNews    Selection = "gnews"
	SelectCurrents Selection = "currents"
	SelectAll      Selection = "all"
)

func ParseSelection(s string) (Selection, error) {
	switch Selection(s) {
	case SelectGNews, SelectCurrents, SelectAll:
		return Selection(s), nil
	default:
		return "", fmt.Errorf("unknown source %q (valid: gnews, currents, all)", s)
	}
}

// Providers expands the selection in dispatch order.
func (s Selection) Providers() []Provider {
	switch s {
	case SelectGNews:
		return []Provider{GNews}
	case SelectCurrents:
		return []Provider{Currents}
	case SelectAll:
		return All()
	default:
		return nil
	}
}

// Includes reports whether p is part of the selection.
func (s Selection) Includes(p Provider) bool {
	for _, sp := range s.Providers() {
		if sp == p {
			return true
		}
	}
	return false
}

type SortOrder string

const (
	SortPublishedAt SortOrder = "publishedAt"
	SortRelevance   SortOrder = "relevance"
)

func (s SortOrder) Valid() bool {
	return s == "" || s == SortPublishedAt || s == SortRelevance
}

// Article is a normalized news item. RelatedURLs is only ever set by
// deduplication.
type Article struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	URL         string    `json:"url"`
	Source      string    `json:"source"`
	Provider    Provider  `json:"provider"`
	PublishedAt time.Time `json:"publishedAt"`
	Content     string    `json:"content,omitempty"`
	RelatedURLs []string  `json:"relatedUrls,omitempty"`
}

// KeyInfo is the credential used for one provider. IsOwn is false when the
// process-wide shared key is in use.
type KeyInfo struct {
	Key   string
	IsOwn bool
}

// FetchOptions are the filters forwarded to every provider. Category is
// only understood by Currents and Sort only by GNews.
type FetchOptions struct {
	Topic    string
	Lang     string
	Country  string
	Category string
	Sort     SortOrder
	From     string
	To       string
	Limit    int
}

// ArticleID derives the content-addressed id of an article from its URL.
func ArticleID(url string) string {
	sum := sha256.Sum256([]byte(url))
	return hex.EncodeToString(sum[:])
}
