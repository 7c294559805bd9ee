// Package cli implements the aura command-line interface.
package cli

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

// newDeleteCmd creates the delete command
func newDeleteCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:     "delete <story>",
		Aliases: []string{"rm"},
		Short:   "Delete a story",
		Long: `Delete a story and its steps. The story's worktree and branch are
removed as well; committed work on the branch is lost unless it was
pushed or finalized.

Example:
  aura delete 3f2a91b4
  aura delete 3f2a91b4 --force    # skip confirmation`,
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

			if !force {
				fmt.Printf("Delete story %s %q and its worktree? [y/N] ", st.ShortID(), st.Title)
				reader := bufio.NewReader(os.Stdin)
				answer, _ := reader.ReadString('\n')
				if strings.ToLower(strings.TrimSpace(answer)) != "y" {
					fmt.Println("Aborted.")
					return nil
				}
			}

			if err := a.engine.Delete(ctx, st.ID); err != nil {
				return err
			}
			fmt.Printf("Story %s deleted\n", st.ShortID())
			return nil
		},
	}
	cmd.Flags().BoolVarP(&force, "force", "f", false, "skip confirmation")
	return cmd
}
