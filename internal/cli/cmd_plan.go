// Package cli implements the aura command-line interface.
package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// newPlanCmd creates the plan command
func newPlanCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "plan <story>",
		Short: "Decompose a story into wave-layered steps",
		Long: `Decompose an analyzed story into steps grouped into waves. Steps in
the same wave have no dependencies on each other and may run in
parallel; each wave is followed by a verification gate.

'aura run' plans implicitly; use plan to review the step layout
before anything executes.

Example:
  aura plan 3f2a91b4`,
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
			st, err = a.engine.Plan(ctx, st.ID)
			if err != nil {
				return err
			}

			fmt.Printf("Plan for %s: %d steps in %d waves\n",
				st.ShortID(), len(st.Steps), st.MaxWave())
			printSteps(st, false)
			return nil
		},
	}
}
