// Package cli implements the aura command-line interface.
package cli

import (
	"github.com/spf13/cobra"
)

// newRemediateCmd creates the remediate command
func newRemediateCmd() *cobra.Command {
	var noRun bool

	cmd := &cobra.Command{
		Use:   "remediate <story>",
		Short: "Re-run the wave behind a failed gate",
		Long: `Reopen the current wave of a story whose gate failed: failed steps
become pending again with their previous output preserved as rework
context, and the wave is dispatched anew. Use --no-run to only
reopen the wave.

Example:
  aura remediate 3f2a91b4`,
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
			st, err = a.engine.Remediate(ctx, st.ID)
			if err != nil {
				return err
			}
			if noRun {
				reportRunOutcome(st)
				return nil
			}

			stop := a.watchProgress(st)
			st, err = a.engine.Run(ctx, st.ID)
			stop()
			if err != nil {
				return err
			}
			reportRunOutcome(st)
			return nil
		},
	}
	cmd.Flags().BoolVar(&noRun, "no-run", false, "reopen the wave without dispatching it")
	return cmd
}
