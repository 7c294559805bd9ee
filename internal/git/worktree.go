package git

import (
	"context"
	"strings"
	"sync"
)

// WorktreeInfo represents an active git worktree.
type WorktreeInfo struct {
	Path   string // Filesystem path to the worktree
	Branch string // Branch checked out in the worktree
	Commit string // HEAD commit SHA
}

// worktreeMu serializes compound worktree operations. Concurrent creation
// can interleave with pruning and corrupt git's registration files.
var worktreeMu sync.Mutex

// AddWorktree creates a worktree at path on a new branch derived from
// baseBranch. If the branch already exists the worktree is attached to it.
// Stale registrations (directory deleted but git still tracks it) are
// pruned and the creation retried.
func (g *Context) AddWorktree(ctx context.Context, path, branch, baseBranch string) error {
	worktreeMu.Lock()
	defer worktreeMu.Unlock()

	if _, err := g.runGit(ctx, "worktree", "add", "-b", branch, path, baseBranch); err == nil {
		return nil
	}
	if _, err := g.runGit(ctx, "worktree", "add", path, branch); err == nil {
		return nil
	}

	_, _ = g.runGit(ctx, "worktree", "prune")

	if _, err := g.runGit(ctx, "worktree", "add", "-b", branch, path, baseBranch); err == nil {
		return nil
	}
	_, err := g.runGit(ctx, "worktree", "add", path, branch)
	if err != nil {
		return &GitError{Op: "add worktree", Err: err}
	}
	return nil
}

// RemoveWorktree removes a worktree and its registration. Escalates to
// --force when the plain removal is refused.
func (g *Context) RemoveWorktree(ctx context.Context, path string) error {
	worktreeMu.Lock()
	defer worktreeMu.Unlock()

	if _, err := g.runGit(ctx, "worktree", "remove", path); err != nil {
		if _, err := g.runGit(ctx, "worktree", "remove", "--force", path); err != nil {
			return &GitError{Op: "remove worktree", Err: err}
		}
	}
	return nil
}

// PruneWorktrees removes stale worktree administrative files.
func (g *Context) PruneWorktrees(ctx context.Context) error {
	if _, err := g.runGit(ctx, "worktree", "prune"); err != nil {
		return &GitError{Op: "prune worktrees", Err: err}
	}
	return nil
}

// ListWorktrees returns all active worktrees.
func (g *Context) ListWorktrees(ctx context.Context) ([]WorktreeInfo, error) {
	output, err := g.runGit(ctx, "worktree", "list", "--porcelain")
	if err != nil {
		return nil, &GitError{Op: "list worktrees", Err: err}
	}

	var worktrees []WorktreeInfo
	var current WorktreeInfo

	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			if current.Path != "" {
				worktrees = append(worktrees, current)
				current = WorktreeInfo{}
			}
			continue
		}

		switch {
		case strings.HasPrefix(line, "worktree "):
			current.Path = strings.TrimPrefix(line, "worktree ")
		case strings.HasPrefix(line, "HEAD "):
			current.Commit = strings.TrimPrefix(line, "HEAD ")
		case strings.HasPrefix(line, "branch "):
			ref := strings.TrimPrefix(line, "branch ")
			current.Branch = strings.TrimPrefix(ref, "refs/heads/")
		case line == "detached":
			current.Branch = "(detached)"
		}
	}
	if current.Path != "" {
		worktrees = append(worktrees, current)
	}
	return worktrees, nil
}

// GetWorktreeByPath returns information about a specific worktree by path.
func (g *Context) GetWorktreeByPath(ctx context.Context, path string) (*WorktreeInfo, error) {
	worktrees, err := g.ListWorktrees(ctx)
	if err != nil {
		return nil, err
	}
	for _, wt := range worktrees {
		if wt.Path == path {
			return &wt, nil
		}
	}
	return nil, ErrWorktreeNotFound
}
