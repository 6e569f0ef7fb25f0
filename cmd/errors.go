package cmd

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/torifo/echo-news/internal/aggregate"
	"github.com/torifo/echo-news/internal/news"
)

var signupURL = map[news.Provider]string{
	news.GNews:    "https://gnews.io/",
	news.Currents: "https://currentsapi.services/",
}

// CLIError is an error with a hint on how to fix it.
type CLIError struct {
	Summary    string
	Suggestion string
	Err        error
}

func (e *CLIError) Error() string { return e.Summary }

func (e *CLIError) Unwrap() error { return e.Err }

func setKeyHint(p news.Provider) string {
	return fmt.Sprintf("echo-news config set-key %s <key>  (get one at %s)", p, signupURL[p])
}

// explain attaches fix-it hints to the errors a user can act on.
func explain(err error) error {
	var qe *aggregate.QuotaExceededError
	if errors.As(err, &qe) {
		hints := make([]string, 0, len(qe.Refusals))
		for _, r := range qe.Refusals {
			hints = append(hints, setKeyHint(r.Provider))
		}
		return &CLIError{
			Summary:    qe.Error(),
			Suggestion: "an own key has no shared limit:\n    " + strings.Join(hints, "\n    "),
			Err:        err,
		}
	}

	var ve *aggregate.ValidationError
	if errors.As(err, &ve) && ve.Field == "key" {
		var missing []string
		for _, p := range news.All() {
			if strings.HasSuffix(ve.Reason, string(p)) {
				missing = append(missing, setKeyHint(p))
			}
		}
		return &CLIError{
			Summary:    ve.Error(),
			Suggestion: strings.Join(missing, "\n    "),
			Err:        err,
		}
	}
	return err
}

func printError(w io.Writer, err error) {
	red := color.New(color.FgRed, color.Bold)
	var ce *CLIError
	if errors.As(err, &ce) {
		red.Fprintf(w, "Error: %s\n", ce.Summary)
		if ce.Suggestion != "" {
			color.New(color.FgCyan).Fprintf(w, "  %s\n", ce.Suggestion)
		}
		return
	}
	red.Fprintf(w, "Error: %v\n", err)
}

func printWarning(w io.Writer, format string, args ...any) {
	color.New(color.FgYellow).Fprintf(w, "warning: "+format+"\n", args...)
}
