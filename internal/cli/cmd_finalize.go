// Package cli implements the aura command-line interface.
package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/johnazariah/aura-sub015/internal/finalize"
)

// newFinalizeCmd creates the finalize command
func newFinalizeCmd() *cobra.Command {
	var opts finalize.Options

	cmd := &cobra.Command{
		Use:   "finalize <story>",
		Short: "Commit a finished story",
		Long: `Finalize a story whose final gate passed: commit the worktree,
optionally squash the branch to a single commit, push it, and open a
pull request on the configured hosting provider.

Example:
  aura finalize 3f2a91b4
  aura finalize 3f2a91b4 --squash --push --pr
  aura finalize 3f2a91b4 --pr --draft -m "Add cursor pagination"`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := openApp(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			st, err := resolveStory(ctx, a, args[0])
			if err != nil {
				return err
			}
			st, outcome, err := a.engine.Finalize(ctx, st.ID, opts)
			if err != nil {
				return err
			}

			fmt.Printf("Story %s finalized\n", st.ShortID())
			fmt.Printf("   Commit:  %s\n", outcome.Commit)
			if outcome.Squashed {
				fmt.Println("   Squashed to a single commit")
			}
			if outcome.Pushed {
				fmt.Printf("   Pushed:  %s\n", st.GitBranch)
			}
			if outcome.PullRequestURL != "" {
				fmt.Printf("   PR:      %s\n", outcome.PullRequestURL)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&opts.Message, "message", "m", "", "commit message (default: story title and description)")
	cmd.Flags().BoolVar(&opts.Squash, "squash", false, "squash the branch to a single commit")
	cmd.Flags().BoolVar(&opts.Push, "push", false, "push the branch to the remote")
	cmd.Flags().BoolVar(&opts.CreatePR, "pr", false, "open a pull request (implies --push)")
	cmd.Flags().BoolVar(&opts.Draft, "draft", false, "open the pull request as a draft")
	cmd.Flags().StringVar(&opts.Remote, "remote", "", "remote to push to (default: origin)")
	return cmd
}
