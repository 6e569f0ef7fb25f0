package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/torifo/echo-news/internal/cache"
)

func relativeTime(t time.Time, now time.Time) string {
	d := now.Sub(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh", int(d.Hours()))
	case d < 7*24*time.Hour:
		return fmt.Sprintf("%dd", int(d.Hours()/24))
	default:
		return t.Format("Jan 2")
	}
}

// RenderHistory lists stored articles, one title line and one meta line
// each, titles cut to width.
func RenderHistory(entries []cache.Entry, width int, now time.Time) string {
	if len(entries) == 0 {
		return "  No articles in history.\n"
	}
	if width < 10 {
		width = TextWidth
	}

	var b strings.Builder
	for i, e := range entries {
		b.WriteString(indexStyle.Render(fmt.Sprintf("%3d ", i+1)) + titleStyle.Render(truncateStr(e.Title, width-4)) + "\n")
		meta := fmt.Sprintf("    %s · %s · fetched %s", e.Source, e.Provider, relativeTime(e.FetchedAt, now))
		b.WriteString(metaStyle.Render(meta) + "\n")
	}
	return b.String()
}
