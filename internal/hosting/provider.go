// Package hosting abstracts pull request creation over git hosting
// providers. Implementations exist for GitHub and GitLab; the finalizer
// only needs the small surface below.
package hosting

import (
	"context"
	"errors"
)

// ProviderType identifies a hosting provider.
type ProviderType string

const (
	ProviderGitHub  ProviderType = "github"
	ProviderGitLab  ProviderType = "gitlab"
	ProviderUnknown ProviderType = "unknown"
)

// ErrNoPRFound is returned when no open PR exists for a branch.
var ErrNoPRFound = errors.New("no pull request found for branch")

// Provider is the hosting API surface used during finalization.
type Provider interface {
	// CreatePR opens a pull request (GitLab: merge request).
	CreatePR(ctx context.Context, opts PRCreateOptions) (*PR, error)
	// GetPR fetches a pull request by number (GitLab: IID).
	GetPR(ctx context.Context, number int) (*PR, error)
	// FindPRByBranch returns the open PR whose source is branch, or
	// ErrNoPRFound.
	FindPRByBranch(ctx context.Context, branch string) (*PR, error)
	// CheckAuth validates the configured token.
	CheckAuth(ctx context.Context) error

	Name() ProviderType
	OwnerRepo() (string, string)
}

// PR is the provider-neutral view of a pull request.
type PR struct {
	Number     int    `json:"number"`
	Title      string `json:"title"`
	Body       string `json:"body"`
	State      string `json:"state"`
	HeadBranch string `json:"headBranch"`
	BaseBranch string `json:"baseBranch"`
	HTMLURL    string `json:"htmlUrl"`
	Draft      bool   `json:"draft"`
}

// PRCreateOptions describe a PR to open.
type PRCreateOptions struct {
	Title string
	Body  string
	Head  string
	Base  string
	Draft bool
}

// Config selects and authenticates a provider. Zero value means detect
// the provider from the remote URL and read the token from the
// provider's default environment variable.
type Config struct {
	// Provider is "github", "gitlab", or "" for detection.
	Provider string
	// BaseURL points at a self-hosted instance; empty for the cloud.
	BaseURL string
	// Token overrides the environment lookup.
	Token string
}
