package tui

import (
	"fmt"
	"io"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"
	"github.com/torifo/echo-news/internal/news"
	"github.com/torifo/echo-news/internal/quota"
)

// quotaLevel maps the remaining share of a daily limit to red (<=15%),
// yellow (<=35%) or green.
func quotaLevel(remaining, limit int) int {
	if limit <= 0 {
		return 0
	}
	ratio := float64(remaining) / float64(limit)
	switch {
	case ratio <= 0.15:
		return 0
	case ratio <= 0.35:
		return 1
	default:
		return 2
	}
}

// RenderQuota lists today's remaining requests for the selected providers.
func RenderQuota(usage quota.Usage, sel news.Selection) string {
	var b strings.Builder
	b.WriteString(metaStyle.Render("\n  Remaining requests today:") + "\n")
	for _, p := range sel.Providers() {
		u, ok := usage[p]
		if !ok {
			continue
		}
		rem, limit := u.Remaining(), u.Limit()
		figure := quotaStyles[quotaLevel(rem, limit)].Render(fmt.Sprintf("%d/%d", rem, limit))
		b.WriteString(fmt.Sprintf("    %-9s: %s\n", DisplayName(p), figure))
	}
	return b.String()
}

// KeyStatus is one row of the config overview.
type KeyStatus struct {
	Provider news.Provider
	// MaskedKey is empty when the shared key is in use.
	MaskedKey string
	Usage     quota.ProviderUsage
}

// WriteConfigStatus prints which key each provider uses and today's usage.
func WriteConfigStatus(w io.Writer, rows []KeyStatus) error {
	table := tablewriter.NewTable(w,
		tablewriter.WithConfig(tablewriter.Config{
			Row: tw.CellConfig{
				Formatting: tw.CellFormatting{AutoWrap: tw.WrapNone},
				Alignment:  tw.CellAlignment{Global: tw.AlignLeft},
			},
			Header: tw.CellConfig{
				Formatting: tw.CellFormatting{AutoFormat: tw.On},
				Alignment:  tw.CellAlignment{Global: tw.AlignLeft},
			},
		}),
		tablewriter.WithRendition(tw.Rendition{
			Borders: tw.BorderNone,
			Settings: tw.Settings{
				Separators: tw.Separators{ShowHeader: tw.Off},
			},
		}),
	)

	data := make([][]string, 0, len(rows))
	for _, r := range rows {
		key := ownTagStyle.Render("own") + " " + r.MaskedKey
		shared := "-"
		if r.MaskedKey == "" {
			key = sharedTagStyle.Render("shared")
			shared = fmt.Sprintf("%d/%d", r.Usage.SharedUsed, r.Usage.SharedLimit)
		}
		data = append(data, []string{
			DisplayName(r.Provider),
			key,
			fmt.Sprintf("%d/%d", r.Usage.Limit()-r.Usage.Remaining(), r.Usage.Limit()),
			shared,
		})
	}

	table.Header([]string{"provider", "key", "used today", "shared used"})
	table.Bulk(data)
	if err := table.Render(); err != nil {
		return err
	}

	var sharedOnly []string
	for _, r := range rows {
		if r.MaskedKey == "" {
			sharedOnly = append(sharedOnly, fmt.Sprintf("%s %d/day", DisplayName(r.Provider), r.Usage.TotalLimit))
		}
	}
	if len(sharedOnly) > 0 {
		fmt.Fprintln(w, metaStyle.Render("\n  An own key raises the limit to "+strings.Join(sharedOnly, ", ")+"."))
	}
	fmt.Fprintln(w, metaStyle.Render("  Set a key: echo-news config set-key <gnews|currents> <key>"))
	return nil
}
