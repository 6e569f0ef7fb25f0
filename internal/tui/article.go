// Package tui renders articles, quota and history for the terminal and
// drives the progress spinner.
package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/mattn/go-runewidth"
	"github.com/torifo/echo-news/internal/news"
)

const (
	// TextWidth is the display width of separators and wrapped text.
	TextWidth = 56
	indent    = "     "
)

// DisplayName is the human label of a provider.
func DisplayName(p news.Provider) string {
	switch p {
	case news.GNews:
		return "GNews"
	case news.Currents:
		return "Currents"
	}
	return string(p)
}

func Separator() string {
	return separatorStyle.Render(strings.Repeat("━", TextWidth))
}

func formatDate(t time.Time, loc *time.Location) string {
	if t.IsZero() {
		return "-"
	}
	if loc == nil {
		loc = time.Local
	}
	return t.In(loc).Format("2006-01-02 15:04")
}

// RenderArticle renders one numbered article block, times shown in loc.
func RenderArticle(a news.Article, index int, showURL bool, loc *time.Location) string {
	var b strings.Builder
	b.WriteString(Separator() + "\n")
	b.WriteString(indexStyle.Render(fmt.Sprintf(" [%d]  ", index)) + titleStyle.Render(a.Title) + "\n")
	b.WriteString(metaStyle.Render(fmt.Sprintf("%s%s  |  %s  |  %s", indent, a.Source, formatDate(a.PublishedAt, loc), a.Provider)) + "\n")
	if a.Description != "" {
		for _, line := range wrapText(a.Description, TextWidth) {
			b.WriteString(indent + line + "\n")
		}
	}
	if showURL {
		b.WriteString(linkStyle.Render(indent+a.URL) + "\n")
		for _, u := range a.RelatedURLs {
			b.WriteString(relatedStyle.Render(indent+"  also: "+u) + "\n")
		}
	} else if n := len(a.RelatedURLs); n > 0 {
		b.WriteString(relatedStyle.Render(fmt.Sprintf("%s+%d similar", indent, n)) + "\n")
	}
	return b.String()
}

// RenderSummary closes an article list.
func RenderSummary(count int) string {
	return Separator() + "\n" + metaStyle.Render(fmt.Sprintf("\n  %d article(s) shown\n", count)) + "\n"
}

// wrapText breaks text into lines of at most width display columns. Lines
// break at spaces; runs without spaces (CJK text) break anywhere.
func wrapText(text string, width int) []string {
	var (
		lines []string
		cur   strings.Builder
		curW  int
	)
	flush := func() {
		if curW > 0 {
			lines = append(lines, cur.String())
			cur.Reset()
			curW = 0
		}
	}

	for _, word := range strings.Fields(text) {
		ww := runewidth.StringWidth(word)
		if curW > 0 && curW+1+ww <= width {
			cur.WriteByte(' ')
			cur.WriteString(word)
			curW += 1 + ww
			continue
		}
		flush()
		for ww > width {
			head := runewidth.Truncate(word, width, "")
			if head == "" {
				// a single rune wider than the line
				head = string([]rune(word)[:1])
			}
			lines = append(lines, head)
			word = word[len(head):]
			ww = runewidth.StringWidth(word)
		}
		cur.WriteString(word)
		curW = ww
	}
	flush()
	return lines
}

func truncateStr(s string, n int) string {
	if n <= 0 {
		return ""
	}
	if runewidth.StringWidth(s) <= n {
		return s
	}
	if n <= 3 {
		return runewidth.Truncate(s, n, "")
	}
	return runewidth.Truncate(s, n, "...")
}
