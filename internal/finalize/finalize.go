// Package finalize turns a finished story's worktree into a commit,
// optionally squashed, pushed, and opened as a pull request.
package finalize

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/johnazariah/aura-sub015/internal/errors"
	"github.com/johnazariah/aura-sub015/internal/git"
	"github.com/johnazariah/aura-sub015/internal/hosting"
	"github.com/johnazariah/aura-sub015/internal/store"
	"github.com/johnazariah/aura-sub015/internal/story"
)

// Options control one finalize invocation.
type Options struct {
	// Message overrides the story-derived commit message.
	Message string
	// Squash collapses the branch history into one commit against the
	// merge base with the default branch.
	Squash bool
	// Push publishes the branch to the remote.
	Push bool
	// CreatePR opens a pull request; implies Push.
	CreatePR bool
	// Draft marks the created PR as a draft.
	Draft bool
	// Remote names the push target; defaults to origin.
	Remote string
}

// Outcome reports what finalization actually did. Finalize is
// idempotent, so a retry may report fewer actions than the first run.
type Outcome struct {
	Commit         string `json:"commit"`
	Squashed       bool   `json:"squashed"`
	Pushed         bool   `json:"pushed"`
	PullRequestURL string `json:"pullRequestUrl,omitempty"`
}

// ProviderFactory builds a hosting provider for a remote URL. Swapped
// out in tests.
type ProviderFactory func(remoteURL string, cfg hosting.Config) (hosting.Provider, error)

// Finalizer commits, squashes, pushes, and records completion. A
// failure leaves the story untouched so the operation can be retried.
type Finalizer struct {
	store       store.Store
	hostingCfg  hosting.Config
	runner      git.CommandRunner
	newProvider ProviderFactory
	logger      *slog.Logger
}

// Option configures the Finalizer.
type Option func(*Finalizer)

// WithRunner sets the git command runner.
func WithRunner(r git.CommandRunner) Option {
	return func(f *Finalizer) { f.runner = r }
}

// WithProviderFactory sets the hosting provider factory.
func WithProviderFactory(pf ProviderFactory) Option {
	return func(f *Finalizer) { f.newProvider = pf }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(f *Finalizer) { f.logger = l }
}

// New creates a finalizer.
func New(st store.Store, hostingCfg hosting.Config, opts ...Option) *Finalizer {
	f := &Finalizer{
		store:       st,
		hostingCfg:  hostingCfg,
		runner:      git.NewExecRunner(),
		newProvider: hosting.New,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Finalize commits the worktree, optionally squashes and publishes, and
// marks the story completed. Any failure is reported as kind
// finalize_failure with the story state preserved.
func (f *Finalizer) Finalize(ctx context.Context, st *story.Story, opts Options) (*Outcome, error) {
	if st.WorktreePath == "" || st.GitBranch == "" {
		return nil, errors.New(errors.KindFinalizeFailure,
			"story %s has no worktree to finalize", st.ID)
	}
	if opts.Remote == "" {
		opts.Remote = "origin"
	}

	repo, err := git.NewContext(ctx, st.RepositoryPath, git.WithRunner(f.runner))
	if err != nil {
		return nil, errors.Wrap(errors.KindFinalizeFailure, err, "open repository")
	}
	wt := repo.InWorktree(st.WorktreePath)

	message := opts.Message
	if message == "" {
		message = commitMessage(st)
	}

	outcome := &Outcome{}

	if err := wt.StageAll(ctx); err != nil {
		return nil, errors.Wrap(errors.KindFinalizeFailure, err, "stage changes")
	}
	// A clean tree is fine; the agents may have committed as they went.
	if err := wt.Commit(ctx, message); err != nil && err != git.ErrNothingToCommit {
		return nil, errors.Wrap(errors.KindFinalizeFailure, err, "commit changes")
	}

	defaultBranch, err := repo.DefaultBranch(ctx)
	if err != nil {
		return nil, errors.Wrap(errors.KindFinalizeFailure, err, "resolve default branch")
	}

	if opts.Squash {
		squashed, err := f.squash(ctx, wt, defaultBranch, message)
		if err != nil {
			return nil, err
		}
		outcome.Squashed = squashed
	}

	if outcome.Commit, err = wt.HeadCommit(ctx); err != nil {
		return nil, errors.Wrap(errors.KindFinalizeFailure, err, "read HEAD")
	}

	if opts.Push || opts.CreatePR {
		if err := f.push(ctx, wt, opts.Remote, st.GitBranch, outcome.Squashed); err != nil {
			return nil, err
		}
		outcome.Pushed = true
	}

	if opts.CreatePR {
		prURL, err := f.ensurePR(ctx, repo, st, opts, defaultBranch)
		if err != nil {
			return nil, err
		}
		outcome.PullRequestURL = prURL
		st.PullRequestURL = prURL
	}

	now := time.Now().UTC()
	st.CompletedAt = &now
	st.Status = story.StatusCompleted
	if err := f.store.Update(ctx, st); err != nil {
		return nil, errors.Wrap(errors.KindFinalizeFailure, err, "persist completion")
	}

	f.logger.Info("story finalized",
		"story_id", st.ID, "commit", outcome.Commit,
		"pushed", outcome.Pushed, "pr", outcome.PullRequestURL)
	return outcome, nil
}

// squash collapses the branch history into a single commit when there
// is more than one commit past the merge base.
func (f *Finalizer) squash(ctx context.Context, wt *git.Context, defaultBranch, message string) (bool, error) {
	base, err := wt.MergeBase(ctx, defaultBranch, "HEAD")
	if err != nil {
		return false, errors.Wrap(errors.KindFinalizeFailure, err, "find merge base")
	}
	count, err := wt.CommitCount(ctx, base)
	if err != nil {
		return false, errors.Wrap(errors.KindFinalizeFailure, err, "count commits")
	}
	if count <= 1 {
		return false, nil
	}
	if err := wt.SquashTo(ctx, base); err != nil {
		return false, errors.Wrap(errors.KindFinalizeFailure, err, "squash history")
	}
	if err := wt.Commit(ctx, message); err != nil {
		return false, errors.Wrap(errors.KindFinalizeFailure, err, "commit squashed history")
	}
	return true, nil
}

func (f *Finalizer) push(ctx context.Context, wt *git.Context, remote, branch string, squashed bool) error {
	if squashed {
		// Squashing rewrites any previously pushed history.
		if err := wt.ForcePush(ctx, remote, branch); err != nil {
			return errors.Wrap(errors.KindFinalizeFailure, err, "force push branch")
		}
		return nil
	}
	if err := wt.Push(ctx, remote, branch, true); err != nil {
		return errors.Wrap(errors.KindFinalizeFailure, err, "push branch")
	}
	return nil
}

// ensurePR reuses an existing open PR for the branch or creates one.
func (f *Finalizer) ensurePR(ctx context.Context, repo *git.Context, st *story.Story, opts Options, defaultBranch string) (string, error) {
	remoteURL, err := repo.GetRemoteURL(ctx, opts.Remote)
	if err != nil {
		return "", errors.Wrap(errors.KindFinalizeFailure, err, "read remote URL")
	}
	provider, err := f.newProvider(remoteURL, f.hostingCfg)
	if err != nil {
		return "", errors.Wrap(errors.KindFinalizeFailure, err, "create hosting provider")
	}

	if pr, err := provider.FindPRByBranch(ctx, st.GitBranch); err == nil {
		return pr.HTMLURL, nil
	} else if err != hosting.ErrNoPRFound {
		return "", errors.Wrap(errors.KindFinalizeFailure, err, "look up existing PR")
	}

	pr, err := provider.CreatePR(ctx, hosting.PRCreateOptions{
		Title: st.Title,
		Body:  prBody(st),
		Head:  st.GitBranch,
		Base:  defaultBranch,
		Draft: opts.Draft,
	})
	if err != nil {
		return "", errors.Wrap(errors.KindFinalizeFailure, err, "create PR")
	}
	return pr.HTMLURL, nil
}

func commitMessage(st *story.Story) string {
	var b strings.Builder
	b.WriteString(st.Title)
	if st.Description != "" {
		b.WriteString("\n\n")
		b.WriteString(st.Description)
	}
	fmt.Fprintf(&b, "\n\nStory: %s", st.ShortID())
	return b.String()
}

func prBody(st *story.Story) string {
	var b strings.Builder
	if st.Description != "" {
		b.WriteString(st.Description)
		b.WriteString("\n\n")
	}
	fmt.Fprintf(&b, "Story `%s`", st.ShortID())
	if st.IssueURL != "" {
		fmt.Fprintf(&b, " for %s", st.IssueURL)
	}
	var completed, skipped int
	for _, step := range st.Steps {
		switch step.Status {
		case story.StepCompleted:
			completed++
		case story.StepSkipped:
			skipped++
		}
	}
	fmt.Fprintf(&b, ": %d steps completed", completed)
	if skipped > 0 {
		fmt.Fprintf(&b, ", %d skipped", skipped)
	}
	b.WriteString(".")
	return b.String()
}
