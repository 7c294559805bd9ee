package hosting

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetect(t *testing.T) {
	tests := []struct {
		name string
		url  string
		want ProviderType
	}{
		{"github ssh", "git@github.com:acme/widget.git", ProviderGitHub},
		{"github https", "https://github.com/acme/widget.git", ProviderGitHub},
		{"github enterprise", "git@github.corp.example.com:acme/widget.git", ProviderGitHub},
		{"gitlab ssh", "git@gitlab.com:acme/widget.git", ProviderGitLab},
		{"gitlab https", "https://gitlab.com/acme/widget.git", ProviderGitLab},
		{"gitlab self-hosted", "https://gitlab.internal.example.io/acme/widget.git", ProviderGitLab},
		{"unknown host", "git@bitbucket.org:acme/widget.git", ProviderUnknown},
		{"empty", "", ProviderUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Detect(tt.url))
		})
	}
}

func TestSplitOwnerRepo(t *testing.T) {
	tests := []struct {
		name  string
		url   string
		owner string
		repo  string
	}{
		{"scp", "git@github.com:acme/widget.git", "acme", "widget"},
		{"https", "https://github.com/acme/widget.git", "acme", "widget"},
		{"ssh with port", "ssh://git@github.com:22/acme/widget.git", "acme", "widget"},
		{"gitlab subgroup", "git@gitlab.com:acme/platform/widget.git", "acme/platform", "widget"},
		{"no repo", "git@github.com:acme", "acme", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			owner, repo := SplitOwnerRepo(tt.url)
			assert.Equal(t, tt.owner, owner)
			assert.Equal(t, tt.repo, repo)
		})
	}
}

type fakeProvider struct{ pt ProviderType }

func (f *fakeProvider) CreatePR(context.Context, PRCreateOptions) (*PR, error) { return nil, nil }
func (f *fakeProvider) GetPR(context.Context, int) (*PR, error)               { return nil, nil }
func (f *fakeProvider) FindPRByBranch(context.Context, string) (*PR, error)   { return nil, nil }
func (f *fakeProvider) CheckAuth(context.Context) error                       { return nil }
func (f *fakeProvider) Name() ProviderType                                    { return f.pt }
func (f *fakeProvider) OwnerRepo() (string, string)                           { return "", "" }

func TestNewDetectsFromRemote(t *testing.T) {
	pt := ProviderType("fakehub")
	Register(pt, func(remoteURL string, cfg Config) (Provider, error) {
		return &fakeProvider{pt: pt}, nil
	})
	defer delete(constructors, pt)

	p, err := New("git@example.com:a/b.git", Config{Provider: "fakehub"})
	require.NoError(t, err)
	assert.Equal(t, pt, p.Name())
}

func TestNewUnknownRemote(t *testing.T) {
	_, err := New("git@bitbucket.org:a/b.git", Config{})
	assert.ErrorContains(t, err, "cannot detect hosting provider")
}

func TestNewUnsupportedProvider(t *testing.T) {
	_, err := New("git@github.com:a/b.git", Config{Provider: "sourcehut"})
	assert.ErrorContains(t, err, "unsupported hosting provider")
}
