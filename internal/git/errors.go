package git

import (
	"errors"
	"fmt"
)

var (
	// ErrNotGitRepo indicates the path is not inside a git repository.
	ErrNotGitRepo = errors.New("not a git repository")
	// ErrNothingToCommit indicates a commit was attempted with no changes.
	ErrNothingToCommit = errors.New("nothing to commit")
	// ErrBranchExists indicates a branch with that name already exists.
	ErrBranchExists = errors.New("branch already exists")
	// ErrWorktreeNotFound indicates no worktree matched the query.
	ErrWorktreeNotFound = errors.New("worktree not found")
)

// GitError wraps a failed git operation with the operation name.
type GitError struct {
	Op     string
	Output string
	Err    error
}

func (e *GitError) Error() string {
	if e.Output != "" {
		return fmt.Sprintf("git %s: %s", e.Op, e.Output)
	}
	return fmt.Sprintf("git %s: %v", e.Op, e.Err)
}

func (e *GitError) Unwrap() error {
	return e.Err
}
