package hosting

import (
	"regexp"
	"strings"
)

var (
	githubHost = regexp.MustCompile(`(^|[@/.])github(\.[a-z0-9-]+)*\.[a-z]+[:/]`)
	gitlabHost = regexp.MustCompile(`(^|[@/.])gitlab(\.[a-z0-9-]+)*\.[a-z]+[:/]`)
)

// Detect classifies a remote URL by its host. Self-hosted instances
// match as long as the hostname starts with "github." or "gitlab."
// (github.corp.example.com style).
func Detect(remoteURL string) ProviderType {
	url := strings.ToLower(strings.TrimSpace(remoteURL))
	switch {
	case githubHost.MatchString(url):
		return ProviderGitHub
	case gitlabHost.MatchString(url):
		return ProviderGitLab
	default:
		return ProviderUnknown
	}
}

// SplitOwnerRepo extracts the owner path and repository name from a
// remote URL in scp, ssh, or http(s) form. GitLab subgroups stay in the
// owner part ("group/subgroup", "repo").
func SplitOwnerRepo(remoteURL string) (owner, repo string) {
	raw := strings.TrimSuffix(strings.TrimSpace(remoteURL), ".git")

	switch {
	case strings.HasPrefix(raw, "ssh://"):
		raw = strings.TrimPrefix(raw, "ssh://")
		if i := strings.Index(raw, "/"); i != -1 {
			raw = strings.TrimLeft(raw[i+1:], "/")
		}
	case strings.HasPrefix(raw, "http://"), strings.HasPrefix(raw, "https://"):
		raw = strings.TrimPrefix(strings.TrimPrefix(raw, "https://"), "http://")
		if i := strings.Index(raw, "/"); i != -1 {
			raw = raw[i+1:]
		}
	default:
		// scp form: git@host:owner/repo
		if i := strings.Index(raw, ":"); i != -1 {
			raw = raw[i+1:]
		}
	}

	parts := strings.Split(raw, "/")
	if len(parts) < 2 {
		return raw, ""
	}
	return strings.Join(parts[:len(parts)-1], "/"), parts[len(parts)-1]
}
