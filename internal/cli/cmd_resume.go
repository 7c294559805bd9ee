// Package cli implements the aura command-line interface.
package cli

import (
	"github.com/spf13/cobra"
)

// newResumeCmd creates the resume command
func newResumeCmd() *cobra.Command {
	var noRun bool

	cmd := &cobra.Command{
		Use:   "resume <story>",
		Short: "Resume a story paused at a passing gate",
		Long: `Advance a story that is paused at a passing gate to its next wave
and keep running it. Use --no-run to only advance the wave.

Example:
  aura resume 3f2a91b4`,
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
			st, err = a.engine.ResumeGate(ctx, st.ID)
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
	cmd.Flags().BoolVar(&noRun, "no-run", false, "advance the wave without dispatching it")
	return cmd
}
