// Package browser hands article links to the desktop's URL opener.
package browser

import (
	"context"
	"fmt"
	"net/url"
	"os/exec"
	"runtime"
)

// Validate accepts only absolute http(s) URLs.
func Validate(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("refusing to open URL with scheme %q (only http/https allowed)", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("invalid URL %q: missing host", rawURL)
	}
	return nil
}

// command returns the opener for goos.
func command(goos, rawURL string) (string, []string) {
	switch goos {
	case "darwin":
		return "open", []string{rawURL}
	case "windows":
		// rundll32 avoids cmd /c start and its shell interpretation
		return "rundll32", []string{"url.dll,FileProtocolHandler", rawURL}
	default:
		return "xdg-open", []string{rawURL}
	}
}

// Open starts the opener and does not wait for the browser.
func Open(ctx context.Context, rawURL string) error {
	if err := Validate(rawURL); err != nil {
		return err
	}
	name, args := command(runtime.GOOS, rawURL)
	if err := exec.CommandContext(ctx, name, args...).Start(); err != nil {
		return fmt.Errorf("starting %s: %w", name, err)
	}
	return nil
}
