package git

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockRunner replays canned responses keyed by the joined argument string
// and records every invocation.
type mockRunner struct {
	responses map[string]string
	errors    map[string]error
	calls     []string
}

func newMockRunner() *mockRunner {
	return &mockRunner{
		responses: make(map[string]string),
		errors:    make(map[string]error),
	}
}

func (m *mockRunner) Run(_ context.Context, _ string, name string, args ...string) (string, error) {
	key := name + " " + strings.Join(args, " ")
	m.calls = append(m.calls, key)
	if err, ok := m.errors[key]; ok {
		return "", err
	}
	return m.responses[key], nil
}

func newTestContext(t *testing.T, runner CommandRunner) *Context {
	t.Helper()
	g, err := NewContext(context.Background(), t.TempDir(), WithRunner(runner))
	require.NoError(t, err)
	return g
}

func TestNewContextRejectsNonRepo(t *testing.T) {
	m := newMockRunner()
	m.errors["git rev-parse --git-dir"] = fmt.Errorf("fatal: not a git repository")

	_, err := NewContext(context.Background(), t.TempDir(), WithRunner(m))
	assert.ErrorIs(t, err, ErrNotGitRepo)
}

func TestCurrentBranch(t *testing.T) {
	m := newMockRunner()
	m.responses["git rev-parse --abbrev-ref HEAD"] = "feature/story-abc12345"
	g := newTestContext(t, m)

	branch, err := g.CurrentBranch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "feature/story-abc12345", branch)
}

func TestDefaultBranchPrefersOriginHead(t *testing.T) {
	m := newMockRunner()
	m.responses["git symbolic-ref refs/remotes/origin/HEAD"] = "refs/remotes/origin/trunk"
	g := newTestContext(t, m)

	branch, err := g.DefaultBranch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "trunk", branch)
}

func TestDefaultBranchFallsBackToMain(t *testing.T) {
	m := newMockRunner()
	m.errors["git symbolic-ref refs/remotes/origin/HEAD"] = fmt.Errorf("no origin")
	g := newTestContext(t, m)

	branch, err := g.DefaultBranch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "main", branch)
	assert.Contains(t, m.calls, "git rev-parse --verify refs/heads/main")
}

func TestCommitNothingToCommit(t *testing.T) {
	m := newMockRunner()
	m.errors["git commit -m msg"] = fmt.Errorf("nothing to commit, working tree clean")
	g := newTestContext(t, m)

	err := g.Commit(context.Background(), "msg")
	assert.ErrorIs(t, err, ErrNothingToCommit)
}

func TestAddWorktreePrunesStaleRegistrations(t *testing.T) {
	m := newMockRunner()
	boom := errors.New("fatal: '/wt' already registered")
	m.errors["git worktree add -b feature/x /wt main"] = boom
	m.errors["git worktree add /wt feature/x"] = boom
	g := newTestContext(t, m)

	err := g.AddWorktree(context.Background(), "/wt", "feature/x", "main")
	assert.Error(t, err)
	assert.Contains(t, m.calls, "git worktree prune")
}

func TestListWorktreesParsesPorcelain(t *testing.T) {
	m := newMockRunner()
	m.responses["git worktree list --porcelain"] = strings.Join([]string{
		"worktree /repo",
		"HEAD aaaa",
		"branch refs/heads/main",
		"",
		"worktree /repo-wt-abc12345",
		"HEAD bbbb",
		"branch refs/heads/feature/story-abc12345",
	}, "\n")
	g := newTestContext(t, m)

	wts, err := g.ListWorktrees(context.Background())
	require.NoError(t, err)
	require.Len(t, wts, 2)
	assert.Equal(t, "main", wts[0].Branch)
	assert.Equal(t, "/repo-wt-abc12345", wts[1].Path)
	assert.Equal(t, "feature/story-abc12345", wts[1].Branch)
}

func TestGetWorktreeByPath(t *testing.T) {
	m := newMockRunner()
	m.responses["git worktree list --porcelain"] = "worktree /wt\nHEAD cccc\nbranch refs/heads/b"
	g := newTestContext(t, m)

	wt, err := g.GetWorktreeByPath(context.Background(), "/wt")
	require.NoError(t, err)
	assert.Equal(t, "b", wt.Branch)

	_, err = g.GetWorktreeByPath(context.Background(), "/missing")
	assert.ErrorIs(t, err, ErrWorktreeNotFound)
}
