// Package update asks the GitHub releases API whether a newer pyguard is out.
package update

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Repo is the GitHub repository pyguard releases are published under.
const Repo = "altantutar/pyguard"

// ErrDevBuild is returned for unreleased builds, which have nothing to compare.
var ErrDevBuild = errors.New("development build")

// Result holds the outcome of a version check.
type Result struct {
	Latest  string
	Current string
	Install string
}

// NeedsUpdate reports whether Latest names a different release than Current.
// A leading "v" is ignored on both sides.
func (r *Result) NeedsUpdate() bool {
	if r.Current == "dev" {
		return false
	}
	return normalize(r.Latest) != normalize(r.Current)
}

func normalize(v string) string {
	return strings.TrimPrefix(strings.TrimSpace(v), "v")
}

type release struct {
	TagName string `json:"tag_name"`
}

// Checker queries one repository's latest release.
type Checker struct {
	BaseURL string
	Repo    string
	Client  *http.Client
}

// NewChecker returns a Checker for the public pyguard repository with a
// short timeout so a slow network never holds up the CLI.
func NewChecker() *Checker {
	return &Checker{
		BaseURL: "https://api.github.com",
		Repo:    Repo,
		Client:  &http.Client{Timeout: 2 * time.Second},
	}
}

// Latest fetches the newest release tag and pairs it with current.
func (c *Checker) Latest(ctx context.Context, current string) (*Result, error) {
	if current == "dev" {
		return nil, ErrDevBuild
	}
	url := fmt.Sprintf("%s/repos/%s/releases/latest", strings.TrimRight(c.BaseURL, "/"), c.Repo)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("building release request: %w", err)
	}
	req.Header.Set("Accept", "application/vnd.github+json")

	resp, err := c.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching latest release: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetching latest release: unexpected status %s", resp.Status)
	}

	var rel release
	if err := json.NewDecoder(resp.Body).Decode(&rel); err != nil {
		return nil, fmt.Errorf("decoding latest release: %w", err)
	}
	if rel.TagName == "" {
		return nil, errors.New("latest release has no tag")
	}

	return &Result{
		Latest:  rel.TagName,
		Current: current,
		Install: fmt.Sprintf("go install github.com/%s/cmd/pyguard@%s", c.Repo, rel.TagName),
	}, nil
}
