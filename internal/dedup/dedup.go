// Package dedup collapses near-duplicate articles into representative groups.
package dedup

import (
	"unicode/utf8"

	"github.com/agnivade/levenshtein"
	"github.com/torifo/echo-news/internal/news"
)

// Threshold is the minimum title similarity for two articles to be grouped.
const Threshold = 0.85

// Similarity returns the normalized edit distance similarity of two titles
// in [0, 1]. Comparison is case- and whitespace-sensitive.
func Similarity(a, b string) float64 {
	maxLen := max(utf8.RuneCountInString(a), utf8.RuneCountInString(b))
	if maxLen == 0 {
		return 1.0
	}
	return 1 - float64(levenshtein.ComputeDistance(a, b))/float64(maxLen)
}

// Deduplicate groups articles around anchors taken in input order. A member
// joins a group when it shares the anchor's id or its title is at least
// Threshold similar to the anchor's title. Members are only ever compared
// with the anchor, so groups are not transitively similar.
//
// Each group is replaced by its representative: the member with the longest
// content text, carrying the other members' URLs in RelatedURLs.
func Deduplicate(articles []news.Article) []news.Article {
	assigned := make([]bool, len(articles))
	var groups [][]news.Article

	for i, anchor := range articles {
		if assigned[i] {
			continue
		}
		assigned[i] = true
		group := []news.Article{anchor}

		for j, other := range articles {
			if assigned[j] {
				continue
			}
			if other.ID == anchor.ID || Similarity(anchor.Title, other.Title) >= Threshold {
				assigned[j] = true
				group = append(group, other)
			}
		}
		groups = append(groups, group)
	}

	out := make([]news.Article, 0, len(groups))
	for _, g := range groups {
		out = append(out, representative(g))
	}
	return out
}

func representative(group []news.Article) news.Article {
	best := group[0]
	for _, a := range group[1:] {
		if contentLength(a) > contentLength(best) {
			best = a
		}
	}

	var related []string
	for _, a := range group {
		if a.URL != best.URL {
			related = append(related, a.URL)
		}
	}
	if len(related) > 0 {
		best.RelatedURLs = related
	}
	return best
}

func contentLength(a news.Article) int {
	if a.Content != "" {
		return utf8.RuneCountInString(a.Content)
	}
	return utf8.RuneCountInString(a.Description)
}
