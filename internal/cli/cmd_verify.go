// Package cli implements the aura command-line interface.
package cli

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/johnazariah/aura-sub015/internal/verify"
)

// newVerifyCmd creates the verify command
func newVerifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "verify [story]",
		Short: "Run verification without a story",
		Long: `Detect the projects under a directory and run their verification
steps (build, vet, lint, format check), exactly as a gate would.
With a story argument the story's worktree is verified; without one,
the current directory.

Example:
  aura verify             # verify the current directory
  aura verify 3f2a91b4    # verify the story's worktree`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			root := "."
			if len(args) == 1 {
				a, err := openApp(ctx)
				if err != nil {
					return err
				}
				defer func() { _ = a.Close() }()
				st, err := resolveStory(ctx, a, args[0])
				if err != nil {
					return err
				}
				if st.WorktreePath == "" {
					return fmt.Errorf("story %s has no worktree yet", st.ShortID())
				}
				root = st.WorktreePath
			}

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			engine := verify.NewEngine(
				verify.WithStepTimeout(cfg.Verify.StepTimeout),
				verify.WithExcludes(cfg.Verify.Exclude...),
			)

			result, err := engine.Run(ctx, root)
			if err != nil {
				return err
			}

			for _, sr := range result.StepResults {
				glyph := color.GreenString("✓")
				if !sr.Success {
					glyph = color.RedString("✗")
				}
				fmt.Printf("%s %s %s (%s)\n", glyph, sr.Step.Type, sr.Step.WorkDir, sr.Step.Command)
				if !sr.Success && sr.Stderr != "" {
					fmt.Println(sr.Stderr)
				}
			}
			fmt.Println(result.Summary())
			if !result.Success {
				return fmt.Errorf("verification failed")
			}
			return nil
		},
	}
}
