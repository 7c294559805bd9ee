// Package worktree manages per-story git worktrees.
package worktree

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/johnazariah/aura-sub015/internal/errors"
	"github.com/johnazariah/aura-sub015/internal/git"
	"github.com/johnazariah/aura-sub015/internal/store"
	"github.com/johnazariah/aura-sub015/internal/story"
)

// Manager ensures each story executes in an isolated worktree on its own
// branch, and tears it down when the story goes away.
type Manager struct {
	store  store.Store
	runner git.CommandRunner
	logger *slog.Logger
}

// Option configures the Manager.
type Option func(*Manager)

// WithRunner injects a command runner, used by tests.
func WithRunner(r git.CommandRunner) Option {
	return func(m *Manager) { m.runner = r }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) { m.logger = l }
}

// NewManager creates a worktree manager backed by the given store.
func NewManager(st store.Store, opts ...Option) *Manager {
	m := &Manager{
		store:  st,
		runner: git.NewExecRunner(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Path returns the sibling worktree directory for the story:
// <repoParent>/<repoName>-wt-<shortID>.
func Path(repositoryPath, shortID string) string {
	parent := filepath.Dir(repositoryPath)
	name := filepath.Base(repositoryPath)
	return filepath.Join(parent, fmt.Sprintf("%s-wt-%s", name, shortID))
}

// Branch returns the story's feature branch name.
func Branch(shortID string) string {
	return "feature/story-" + shortID
}

// Ensure returns the story's worktree path, creating the worktree when it
// does not exist yet. A recorded path that is still valid is returned as
// is; an invalid one (directory gone, branch mismatch) is recreated. The
// story's worktree fields are persisted on change.
func (m *Manager) Ensure(ctx context.Context, st *story.Story) (string, error) {
	if st.RepositoryPath == "" {
		return "", errors.New(errors.KindWorktreeUnavailable,
			"story %s has no repository", st.ShortID())
	}

	if st.WorktreePath != "" && m.isValid(ctx, st) {
		return st.WorktreePath, nil
	}

	g, err := git.NewContext(ctx, st.RepositoryPath, git.WithRunner(m.runner))
	if err != nil {
		return "", errors.Wrap(errors.KindWorktreeUnavailable, err,
			"open repository %s", st.RepositoryPath)
	}

	base, err := g.DefaultBranch(ctx)
	if err != nil {
		return "", errors.Wrap(errors.KindWorktreeUnavailable, err,
			"resolve default branch")
	}

	path := Path(st.RepositoryPath, st.ShortID())
	branch := Branch(st.ShortID())
	if err := g.AddWorktree(ctx, path, branch, base); err != nil {
		return "", errors.Wrap(errors.KindWorktreeUnavailable, err,
			"create worktree for story %s", st.ShortID())
	}

	st.WorktreePath = path
	st.GitBranch = branch
	if err := m.store.Update(ctx, st); err != nil {
		return "", fmt.Errorf("persist worktree fields: %w", err)
	}

	m.logger.Info("worktree created",
		"story_id", st.ID, "path", path, "branch", branch)
	return path, nil
}

// Destroy removes the story's worktree and branch. A missing directory is
// tolerated; removal failures are logged and returned but the story fields
// are cleared regardless so deletion can proceed.
func (m *Manager) Destroy(ctx context.Context, st *story.Story) error {
	if st.WorktreePath == "" {
		return nil
	}

	g, gerr := git.NewContext(ctx, st.RepositoryPath, git.WithRunner(m.runner))
	var removeErr error
	if gerr == nil {
		if _, err := os.Stat(st.WorktreePath); os.IsNotExist(err) {
			_ = g.PruneWorktrees(ctx)
		} else if err := g.RemoveWorktree(ctx, st.WorktreePath); err != nil {
			m.logger.Warn("worktree removal failed",
				"story_id", st.ID, "path", st.WorktreePath, "error", err)
			removeErr = err
		}
		if st.GitBranch != "" {
			// Best effort; the branch may be merged or already gone.
			_ = g.DeleteBranch(ctx, st.GitBranch, true)
		}
	}

	st.WorktreePath = ""
	st.GitBranch = ""
	if err := m.store.Update(ctx, st); err != nil {
		return fmt.Errorf("clear worktree fields: %w", err)
	}
	return removeErr
}

// isValid reports whether the recorded worktree still exists and has the
// recorded branch checked out.
func (m *Manager) isValid(ctx context.Context, st *story.Story) bool {
	info, err := os.Stat(st.WorktreePath)
	if err != nil || !info.IsDir() {
		return false
	}
	g, err := git.NewContext(ctx, st.RepositoryPath, git.WithRunner(m.runner))
	if err != nil {
		return false
	}
	branch, err := g.InWorktree(st.WorktreePath).CurrentBranch(ctx)
	if err != nil {
		return false
	}
	return branch == st.GitBranch
}
