// Package jira fetches issue titles and descriptions to seed stories.
// Access is read-only; nothing is ever written back to Jira.
package jira

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	v3 "github.com/ctreminiom/go-atlassian/v2/jira/v3"

	"github.com/johnazariah/aura-sub015/internal/config"
)

// Issue is the subset of a Jira issue a story cares about.
type Issue struct {
	Key         string
	URL         string
	Title       string
	Description string
}

// Client wraps the go-atlassian v3 client.
type Client struct {
	jira *v3.Client
}

// NewClient creates a basic-auth Jira Cloud client from config.
func NewClient(cfg config.JiraConfig) (*Client, error) {
	if cfg.SiteURL == "" {
		return nil, fmt.Errorf("jira site_url is not configured")
	}
	if cfg.Email == "" || cfg.APIToken == "" {
		return nil, fmt.Errorf("jira email and api_token are required")
	}

	site := strings.TrimRight(cfg.SiteURL, "/")
	client, err := v3.New(&http.Client{Timeout: 30 * time.Second}, site)
	if err != nil {
		return nil, fmt.Errorf("create jira client: %w", err)
	}
	client.Auth.SetBasicAuth(cfg.Email, cfg.APIToken)
	client.Auth.SetUserAgent("aura/1.0")

	return &Client{jira: client}, nil
}

// issueKeyPattern matches PROJ-123 style keys.
var issueKeyPattern = regexp.MustCompile(`^[A-Z][A-Z0-9]+-\d+$`)

// ParseIssueKey extracts the issue key from an issue URL or a bare key.
// Accepts https://site/browse/PROJ-123 and PROJ-123 forms.
func ParseIssueKey(issueURL string) (string, error) {
	raw := strings.TrimSpace(issueURL)
	if issueKeyPattern.MatchString(raw) {
		return raw, nil
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("parse issue URL %q: %w", issueURL, err)
	}
	segments := strings.Split(strings.Trim(u.Path, "/"), "/")
	key := segments[len(segments)-1]
	if !issueKeyPattern.MatchString(key) {
		return "", fmt.Errorf("no issue key in URL %q", issueURL)
	}
	return key, nil
}

// FetchIssue retrieves the issue behind issueURL. The ADF description
// is flattened to markdown-ish plain text.
func (c *Client) FetchIssue(ctx context.Context, issueURL string) (*Issue, error) {
	key, err := ParseIssueKey(issueURL)
	if err != nil {
		return nil, err
	}

	issue, resp, err := c.jira.Issue.Get(ctx, key, []string{"summary", "description"}, nil)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("fetch issue %s (status %d): %w", key, resp.StatusCode, err)
		}
		return nil, fmt.Errorf("fetch issue %s: %w", key, err)
	}

	out := &Issue{Key: key, URL: issueURL}
	if issue.Fields != nil {
		out.Title = issue.Fields.Summary
		out.Description = adfToText(issue.Fields.Description)
	}
	return out, nil
}

// CheckAuth verifies the credentials against the current user endpoint.
func (c *Client) CheckAuth(ctx context.Context) error {
	if _, _, err := c.jira.MySelf.Details(ctx, nil); err != nil {
		return fmt.Errorf("jira auth check: %w", err)
	}
	return nil
}
