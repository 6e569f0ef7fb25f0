// Package update asks GitHub whether a newer release exists.
package update

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
)

const defaultBaseURL = "https://api.github.com"

// Repo is the GitHub repository releases are published to.
const Repo = "torifo/echo-news"

// Result holds the outcome of a version check.
type Result struct {
	LatestVersion string
	URL           string
}

type ghRelease struct {
	TagName string `json:"tag_name"`
	HTMLURL string `json:"html_url"`
}

type Checker struct {
	BaseURL string
	Client  *http.Client
}

// Check returns the latest release when it is newer than currentVersion,
// or nil when up to date. Development builds are never up to date.
func (c Checker) Check(ctx context.Context, currentVersion string) (*Result, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	base := c.BaseURL
	if base == "" {
		base = defaultBaseURL
	}
	client := c.Client
	if client == nil {
		client = http.DefaultClient
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base+"/repos/"+Repo+"/releases/latest", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/vnd.github+json")

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("checking for updates: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("checking for updates: unexpected status %d", resp.StatusCode)
	}

	var release ghRelease
	if err := json.NewDecoder(resp.Body).Decode(&release); err != nil {
		return nil, fmt.Errorf("decoding release: %w", err)
	}

	latest := strings.TrimPrefix(release.TagName, "v")
	if latest == "" || !newer(latest, strings.TrimPrefix(currentVersion, "v")) {
		return nil, nil
	}
	return &Result{LatestVersion: latest, URL: release.HTMLURL}, nil
}

// newer compares dotted numeric versions. Anything unparsable as current,
// such as "dev", is older than every release.
func newer(latest, current string) bool {
	l, ok := parseVersion(latest)
	if !ok {
		return false
	}
	c, ok := parseVersion(current)
	if !ok {
		return true
	}
	for i := 0; i < len(l) || i < len(c); i++ {
		var a, b int
		if i < len(l) {
			a = l[i]
		}
		if i < len(c) {
			b = c[i]
		}
		if a != b {
			return a > b
		}
	}
	return false
}

func parseVersion(v string) ([]int, bool) {
	// drop pre-release and build suffixes
	if i := strings.IndexAny(v, "-+"); i >= 0 {
		v = v[:i]
	}
	parts := strings.Split(v, ".")
	out := make([]int, len(parts))
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil {
			return nil, false
		}
		out[i] = n
	}
	return out, true
}
