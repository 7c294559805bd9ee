// Package git wraps the git CLI for repository, branch, and worktree
// operations.
package git

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
)

// Context manages git operations for a repository. The zero value is not
// usable; create one with NewContext.
type Context struct {
	repoPath string        // Path to the main repository
	workDir  string        // Current working directory for commands (defaults to repoPath)
	runner   CommandRunner // Command runner (defaults to ExecRunner)
}

// ContextOption configures Context.
type ContextOption func(*Context)

// WithRunner sets a custom command runner for git operations.
// This is primarily used for testing to inject mock command execution.
func WithRunner(runner CommandRunner) ContextOption {
	return func(g *Context) {
		g.runner = runner
	}
}

// NewContext creates a new git context for the repository.
// It validates that the path is a git repository and applies any options.
func NewContext(ctx context.Context, repoPath string, opts ...ContextOption) (*Context, error) {
	absPath, err := filepath.Abs(repoPath)
	if err != nil {
		return nil, fmt.Errorf("resolve path: %w", err)
	}

	g := &Context{
		repoPath: absPath,
		workDir:  absPath,
		runner:   NewExecRunner(),
	}
	for _, opt := range opts {
		opt(g)
	}

	if _, err := g.runGit(ctx, "rev-parse", "--git-dir"); err != nil {
		return nil, ErrNotGitRepo
	}
	return g, nil
}

// RepoPath returns the path to the main repository.
func (g *Context) RepoPath() string {
	return g.repoPath
}

// WorkDir returns the current working directory for git commands.
// This is the repo path unless working in a worktree.
func (g *Context) WorkDir() string {
	return g.workDir
}

// InWorktree returns a new Context that operates in the specified worktree.
func (g *Context) InWorktree(worktreePath string) *Context {
	return &Context{
		repoPath: g.repoPath,
		workDir:  worktreePath,
		runner:   g.runner,
	}
}

// CurrentBranch returns the current branch name.
func (g *Context) CurrentBranch(ctx context.Context) (string, error) {
	branch, err := g.runGit(ctx, "rev-parse", "--abbrev-ref", "HEAD")
	if err != nil {
		return "", &GitError{Op: "get current branch", Err: err}
	}
	return branch, nil
}

// DefaultBranch returns the repository's default branch. It consults the
// origin HEAD when present and falls back to main, then master, then the
// currently checked out branch.
func (g *Context) DefaultBranch(ctx context.Context) (string, error) {
	if ref, err := g.runGit(ctx, "symbolic-ref", "refs/remotes/origin/HEAD"); err == nil {
		return strings.TrimPrefix(ref, "refs/remotes/origin/"), nil
	}
	for _, candidate := range []string{"main", "master"} {
		if g.BranchExists(ctx, candidate) {
			return candidate, nil
		}
	}
	return g.CurrentBranch(ctx)
}

// Checkout switches to the specified ref (branch, tag, or commit).
func (g *Context) Checkout(ctx context.Context, ref string) error {
	if _, err := g.runGit(ctx, "checkout", ref); err != nil {
		return &GitError{Op: "checkout", Err: err}
	}
	return nil
}

// CreateBranch creates a new branch at HEAD.
func (g *Context) CreateBranch(ctx context.Context, name string) error {
	if _, err := g.runGit(ctx, "branch", name); err != nil {
		if strings.Contains(err.Error(), "already exists") {
			return ErrBranchExists
		}
		return &GitError{Op: "create branch", Err: err}
	}
	return nil
}

// DeleteBranch deletes a branch. If force is true, uses -D instead of -d.
func (g *Context) DeleteBranch(ctx context.Context, name string, force bool) error {
	flag := "-d"
	if force {
		flag = "-D"
	}
	if _, err := g.runGit(ctx, "branch", flag, name); err != nil {
		return &GitError{Op: "delete branch", Err: err}
	}
	return nil
}

// BranchExists checks if a branch exists.
func (g *Context) BranchExists(ctx context.Context, name string) bool {
	_, err := g.runGit(ctx, "rev-parse", "--verify", "refs/heads/"+name)
	return err == nil
}

// StageAll stages all changes (git add -A).
func (g *Context) StageAll(ctx context.Context) error {
	if _, err := g.runGit(ctx, "add", "-A"); err != nil {
		return &GitError{Op: "stage all", Err: err}
	}
	return nil
}

// Commit creates a commit with the given message.
// Returns ErrNothingToCommit if there are no staged changes.
func (g *Context) Commit(ctx context.Context, message string) error {
	output, err := g.runGit(ctx, "commit", "-m", message)
	if err != nil {
		if strings.Contains(output, "nothing to commit") ||
			strings.Contains(err.Error(), "nothing to commit") {
			return ErrNothingToCommit
		}
		return &GitError{Op: "commit", Output: output, Err: err}
	}
	return nil
}

// MergeBase returns the merge base of two refs.
func (g *Context) MergeBase(ctx context.Context, a, b string) (string, error) {
	base, err := g.runGit(ctx, "merge-base", a, b)
	if err != nil {
		return "", &GitError{Op: "merge-base", Err: err}
	}
	return base, nil
}

// SquashTo collapses all commits after base into the index, leaving the
// working tree untouched. Follow with Commit to produce the single commit.
func (g *Context) SquashTo(ctx context.Context, base string) error {
	if _, err := g.runGit(ctx, "reset", "--soft", base); err != nil {
		return &GitError{Op: "squash reset", Err: err}
	}
	return nil
}

// Push pushes the branch to the remote.
// If setUpstream is true, uses -u to set upstream tracking.
func (g *Context) Push(ctx context.Context, remote, branch string, setUpstream bool) error {
	args := []string{"push"}
	if setUpstream {
		args = append(args, "-u")
	}
	args = append(args, remote, branch)
	if _, err := g.runGit(ctx, args...); err != nil {
		return &GitError{Op: "push", Err: err}
	}
	return nil
}

// ForcePush force-pushes the branch, required after squashing published
// history.
func (g *Context) ForcePush(ctx context.Context, remote, branch string) error {
	if _, err := g.runGit(ctx, "push", "--force-with-lease", remote, branch); err != nil {
		return &GitError{Op: "force push", Err: err}
	}
	return nil
}

// Status returns the working tree status in short format.
func (g *Context) Status(ctx context.Context) (string, error) {
	status, err := g.runGit(ctx, "status", "--short")
	if err != nil {
		return "", &GitError{Op: "status", Err: err}
	}
	return status, nil
}

// IsClean returns true if the working tree has no uncommitted changes.
func (g *Context) IsClean(ctx context.Context) (bool, error) {
	status, err := g.Status(ctx)
	if err != nil {
		return false, err
	}
	return status == "", nil
}

// HeadCommit returns the current HEAD commit SHA.
func (g *Context) HeadCommit(ctx context.Context) (string, error) {
	sha, err := g.runGit(ctx, "rev-parse", "HEAD")
	if err != nil {
		return "", &GitError{Op: "get HEAD commit", Err: err}
	}
	return sha, nil
}

// CommitCount returns the number of commits on HEAD that base does not have.
func (g *Context) CommitCount(ctx context.Context, base string) (int, error) {
	out, err := g.runGit(ctx, "rev-list", "--count", base+"..HEAD")
	if err != nil {
		return 0, &GitError{Op: "rev-list count", Err: err}
	}
	var n int
	if _, err := fmt.Sscanf(out, "%d", &n); err != nil {
		return 0, fmt.Errorf("parse commit count %q: %w", out, err)
	}
	return n, nil
}

// GetRemoteURL returns the URL of the specified remote.
func (g *Context) GetRemoteURL(ctx context.Context, remote string) (string, error) {
	url, err := g.runGit(ctx, "remote", "get-url", remote)
	if err != nil {
		return "", &GitError{Op: "get remote URL", Err: err}
	}
	return url, nil
}

// runGit executes a git command and returns stdout.
func (g *Context) runGit(ctx context.Context, args ...string) (string, error) {
	return g.runner.Run(ctx, g.workDir, "git", args...)
}

// RunGit executes a git command and returns stdout.
// This is the public version of runGit for use by external packages.
func (g *Context) RunGit(ctx context.Context, args ...string) (string, error) {
	return g.runGit(ctx, args...)
}
