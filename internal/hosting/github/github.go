// Package github implements hosting.Provider on the GitHub REST API.
package github

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strings"

	gogithub "github.com/google/go-github/v82/github"

	"github.com/johnazariah/aura-sub015/internal/hosting"
)

var _ hosting.Provider = (*Provider)(nil)

func init() {
	hosting.Register(hosting.ProviderGitHub, newProvider)
}

// Provider talks to GitHub through go-github.
type Provider struct {
	client *gogithub.Client
	owner  string
	repo   string
}

func newProvider(remoteURL string, cfg hosting.Config) (hosting.Provider, error) {
	token := cfg.Token
	if token == "" {
		token = os.Getenv("GITHUB_TOKEN")
	}
	if token == "" {
		return nil, fmt.Errorf("no GitHub token: set hosting.token in config or GITHUB_TOKEN in the environment")
	}

	owner, repo := hosting.SplitOwnerRepo(remoteURL)
	if owner == "" || repo == "" {
		return nil, fmt.Errorf("cannot parse owner/repo from remote %q", remoteURL)
	}

	client := gogithub.NewClient(&http.Client{
		Transport: &tokenTransport{token: token},
	})

	// GitHub Enterprise uses /api/v3 under the instance host.
	if cfg.BaseURL != "" {
		base := strings.TrimSuffix(cfg.BaseURL, "/")
		var err error
		client.BaseURL, err = client.BaseURL.Parse(base + "/api/v3/")
		if err != nil {
			return nil, fmt.Errorf("parse base URL %q: %w", cfg.BaseURL, err)
		}
	}

	return &Provider{client: client, owner: owner, repo: repo}, nil
}

// tokenTransport adds the Authorization header to every request.
type tokenTransport struct {
	token string
	base  http.RoundTripper
}

func (t *tokenTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	clone := req.Clone(req.Context())
	clone.Header.Set("Authorization", "Bearer "+t.token)
	base := t.base
	if base == nil {
		base = http.DefaultTransport
	}
	return base.RoundTrip(clone)
}

func (p *Provider) Name() hosting.ProviderType { return hosting.ProviderGitHub }

func (p *Provider) OwnerRepo() (string, string) { return p.owner, p.repo }

// CheckAuth fetches the authenticated user.
func (p *Provider) CheckAuth(ctx context.Context) error {
	if _, _, err := p.client.Users.Get(ctx, ""); err != nil {
		return fmt.Errorf("github auth check: %w", err)
	}
	return nil
}

// CreatePR opens a pull request.
func (p *Provider) CreatePR(ctx context.Context, opts hosting.PRCreateOptions) (*hosting.PR, error) {
	pr, _, err := p.client.PullRequests.Create(ctx, p.owner, p.repo, &gogithub.NewPullRequest{
		Title: gogithub.Ptr(opts.Title),
		Body:  gogithub.Ptr(opts.Body),
		Head:  gogithub.Ptr(opts.Head),
		Base:  gogithub.Ptr(opts.Base),
		Draft: gogithub.Ptr(opts.Draft),
	})
	if err != nil {
		return nil, fmt.Errorf("create PR: %w", err)
	}
	return mapPR(pr), nil
}

// GetPR fetches a pull request by number.
func (p *Provider) GetPR(ctx context.Context, number int) (*hosting.PR, error) {
	pr, _, err := p.client.PullRequests.Get(ctx, p.owner, p.repo, number)
	if err != nil {
		return nil, fmt.Errorf("get PR %d: %w", number, err)
	}
	return mapPR(pr), nil
}

// FindPRByBranch returns the open PR whose head is branch.
func (p *Provider) FindPRByBranch(ctx context.Context, branch string) (*hosting.PR, error) {
	prs, _, err := p.client.PullRequests.List(ctx, p.owner, p.repo, &gogithub.PullRequestListOptions{
		Head:        p.owner + ":" + branch,
		State:       "open",
		ListOptions: gogithub.ListOptions{PerPage: 1},
	})
	if err != nil {
		return nil, fmt.Errorf("find PR for branch %q: %w", branch, err)
	}
	if len(prs) == 0 {
		return nil, hosting.ErrNoPRFound
	}
	return mapPR(prs[0]), nil
}

func mapPR(pr *gogithub.PullRequest) *hosting.PR {
	out := &hosting.PR{
		Number:  pr.GetNumber(),
		Title:   pr.GetTitle(),
		Body:    pr.GetBody(),
		State:   pr.GetState(),
		HTMLURL: pr.GetHTMLURL(),
		Draft:   pr.GetDraft(),
	}
	if pr.Head != nil {
		out.HeadBranch = pr.Head.GetRef()
	}
	if pr.Base != nil {
		out.BaseBranch = pr.Base.GetRef()
	}
	if pr.GetMerged() {
		out.State = "merged"
	}
	return out
}
