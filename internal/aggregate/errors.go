package aggregate

import (
	"errors"
	"fmt"
	"strings"

	"github.com/torifo/echo-news/internal/news"
)

var (
	ErrInvalidRequest = errors.New("invalid request")
	ErrQuotaExceeded  = errors.New("shared quota exceeded")
)

// ValidationError rejects a request before any quota check or fetch.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool { return target == ErrInvalidRequest }

// Refusal describes one provider excluded because its shared cap is spent.
type Refusal struct {
	Provider news.Provider
	Used     int
	Limit    int
}

// QuotaExceededError lists every provider refused for the request.
type QuotaExceededError struct {
	Refusals []Refusal
}

func (e *QuotaExceededError) Error() string {
	parts := make([]string, 0, len(e.Refusals))
	for _, r := range e.Refusals {
		parts = append(parts, fmt.Sprintf("%s (%d/%d today)", r.Provider, r.Used, r.Limit))
	}
	return "shared key daily limit reached for " + strings.Join(parts, ", ")
}

func (e *QuotaExceededError) Is(target error) bool { return target == ErrQuotaExceeded }

// ProviderFailure is a non-fatal fetch failure of one provider.
type ProviderFailure struct {
	Provider news.Provider
	Err      error
}

func (f ProviderFailure) Error() string {
	return fmt.Sprintf("%s: %v", f.Provider, f.Err)
}
