// Package cli implements the aura command-line interface.
package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// newCancelCmd creates the cancel command
func newCancelCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <story>",
		Short: "Cancel a story",
		Long: `Move a story to cancelled. The worktree is kept so partial work can
be inspected; delete the story to remove it.

Example:
  aura cancel 3f2a91b4`,
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
			st, err = a.engine.Cancel(ctx, st.ID)
			if err != nil {
				return err
			}
			fmt.Printf("Story %s is %s\n", st.ShortID(), st.Status)
			return nil
		},
	}
}
