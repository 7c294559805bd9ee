// Package cli implements the aura command-line interface.
package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/johnazariah/aura-sub015/internal/story"
)

// newRunCmd creates the run command
func newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run <story>",
		Short: "Execute a story",
		Long: `Execute a story end to end: analyze and plan if that has not
happened yet, then dispatch waves of steps to the configured
executor inside the story's worktree, verifying between waves.

Run stops when:
  - a gate fails                      (fix and 'aura remediate')
  - a gate passes under pause_always  ('aura resume' continues)
  - steps await approval              ('aura approve' them, run again)
  - the final gate passes             ('aura finalize' commits)

Interrupting with Ctrl-C cancels the story; in-flight steps are
recorded as cancelled.

Example:
  aura run 3f2a91b4`,
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

			if st.Status == story.StatusCreated {
				if !quiet {
					fmt.Println("Analyzing story...")
				}
				if st, err = a.engine.Analyze(ctx, st.ID); err != nil {
					return err
				}
			}
			if st.Status == story.StatusAnalyzed {
				if !quiet {
					fmt.Println("Planning story...")
				}
				if st, err = a.engine.Plan(ctx, st.ID); err != nil {
					return err
				}
				if !quiet {
					fmt.Printf("Planned %d steps in %d waves\n", len(st.Steps), st.MaxWave())
				}
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
}

// reportRunOutcome tells the user why the run loop stopped and what to
// do next.
func reportRunOutcome(st *story.Story) {
	switch st.Status {
	case story.StatusGatePending:
		if st.CurrentWave >= st.MaxWave() {
			fmt.Printf("All %d waves passed. Finalize with: aura finalize %s\n",
				st.MaxWave(), st.ShortID())
			return
		}
		fmt.Printf("Wave %d passed; gates are paused. Continue with: aura resume %s\n",
			st.CurrentWave, st.ShortID())
	case story.StatusGateFailed:
		fmt.Printf("Gate failed on wave %d. Inspect with: aura show %s\n",
			st.CurrentWave, st.ShortID())
		fmt.Printf("Then retry the wave with: aura remediate %s\n", st.ShortID())
	case story.StatusExecuting:
		fmt.Printf("Steps are awaiting approval. Review with: aura show %s\n", st.ShortID())
	case story.StatusCancelled:
		fmt.Println("Run cancelled.")
	default:
		fmt.Printf("Story %s is now %s\n", st.ShortID(), st.Status)
	}
}
