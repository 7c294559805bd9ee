// Package cli implements the aura command-line interface.
package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/johnazariah/aura-sub015/internal/analyzer"
)

// newAnalyzeCmd creates the analyze command
func newAnalyzeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "analyze <story>",
		Short: "Analyze a story without executing it",
		Long: `Run the analysis step for a story: the model reads the story and
the repository and produces requirements, constraints and likely
affected files. 'aura run' does this implicitly; use analyze to
inspect the result before planning.

Example:
  aura analyze 3f2a91b4`,
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
			st, err = a.engine.Analyze(ctx, st.ID)
			if err != nil {
				return err
			}

			ac, err := analyzer.Unmarshal(st.AnalyzedContext)
			if err != nil {
				return err
			}
			fmt.Printf("Analysis for %s:\n\n%s\n", st.ShortID(), ac.Summary)
			if len(ac.CoreRequirements) > 0 {
				fmt.Println("\nRequirements:")
				for _, r := range ac.CoreRequirements {
					fmt.Printf("  - %s\n", r)
				}
			}
			if len(ac.TechnicalConstraints) > 0 {
				fmt.Println("\nConstraints:")
				for _, c := range ac.TechnicalConstraints {
					fmt.Printf("  - %s\n", c)
				}
			}
			if len(ac.AffectedFiles) > 0 {
				fmt.Println("\nLikely affected files:")
				for _, f := range ac.AffectedFiles {
					fmt.Printf("  - %s\n", f)
				}
			}
			if ac.SuggestedApproach != "" {
				fmt.Printf("\nSuggested approach: %s\n", ac.SuggestedApproach)
			}
			return nil
		},
	}
}
