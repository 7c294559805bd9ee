// Package cli implements the aura command-line interface.
package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/johnazariah/aura-sub015/internal/analyzer"
	"github.com/johnazariah/aura-sub015/internal/gate"
	"github.com/johnazariah/aura-sub015/internal/story"
)

// newShowCmd creates the show command
func newShowCmd() *cobra.Command {
	var showAnalysis bool
	var showOutput bool

	cmd := &cobra.Command{
		Use:   "show <story>",
		Short: "Show story details",
		Long: `Show story details including status, waves, steps and the last
gate result.

Examples:
  aura show 3f2a91b4               # Basic story info
  aura show 3f2a91b4 --analysis    # Include the analysis summary
  aura show 3f2a91b4 --output      # Include step outputs`,
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

			if jsonOut {
				return json.NewEncoder(os.Stdout).Encode(st)
			}

			fmt.Printf("%s  %s\n", st.ShortID(), st.Title)
			fmt.Printf("   Status:     %s\n", statusColor(st.Status).Sprint(st.Status))
			fmt.Printf("   Automation: %s\n", st.AutomationMode)
			fmt.Printf("   Gates:      %s\n", st.GateMode)
			fmt.Printf("   Repository: %s\n", st.RepositoryPath)
			if st.WorktreePath != "" {
				fmt.Printf("   Worktree:   %s (%s)\n", st.WorktreePath, st.GitBranch)
			}
			if st.IssueURL != "" {
				fmt.Printf("   Issue:      %s\n", st.IssueURL)
			}
			if st.PullRequestURL != "" {
				fmt.Printf("   PR:         %s\n", st.PullRequestURL)
			}
			if st.Description != "" {
				fmt.Printf("\n%s\n", st.Description)
			}

			if showAnalysis && len(st.AnalyzedContext) > 0 {
				ac, err := analyzer.Unmarshal(st.AnalyzedContext)
				if err == nil {
					fmt.Printf("\nAnalysis: %s\n", ac.Summary)
					for _, r := range ac.CoreRequirements {
						fmt.Printf("  - %s\n", r)
					}
				}
			}

			if len(st.Steps) > 0 {
				printSteps(st, showOutput)
			}

			if result, err := gate.Unmarshal(st.GateResult); err == nil && result != nil {
				fmt.Printf("\nGate (wave %d): %s", result.Wave,
					gateOutcome(result))
				if result.Summary != "" {
					fmt.Printf(" - %s", result.Summary)
				}
				fmt.Println()
				for _, f := range result.Failures {
					fmt.Printf("   %s %s (exit %d)\n", f.Step, f.Command, f.ExitCode)
				}
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&showAnalysis, "analysis", false, "include the analysis summary")
	cmd.Flags().BoolVar(&showOutput, "output", false, "include step outputs and errors")
	return cmd
}

func printSteps(st *story.Story, withOutput bool) {
	for wave := 1; wave <= st.MaxWave(); wave++ {
		marker := " "
		if wave == st.CurrentWave {
			marker = "▸"
		}
		fmt.Printf("\n%s Wave %d\n", marker, wave)
		for _, step := range st.StepsInWave(wave) {
			fmt.Printf("   %s %s", stepGlyph(step.Status), step.Name)
			var notes []string
			if step.Attempts > 1 {
				notes = append(notes, fmt.Sprintf("attempt %d", step.Attempts))
			}
			if step.Approval == story.ApprovalRejected {
				notes = append(notes, "rejected")
			} else if step.RequiresConfirmation && step.Approval == story.ApprovalNone {
				notes = append(notes, "needs approval")
			}
			if step.NeedsRework {
				notes = append(notes, "rework")
			}
			if len(notes) > 0 {
				fmt.Printf("  (%s)", strings.Join(notes, ", "))
			}
			fmt.Println()
			if withOutput {
				if step.Output != "" {
					fmt.Printf("     %s\n", truncate(step.Output, 200))
				}
				if step.Error != "" {
					fmt.Printf("     error: %s\n", step.Error)
				}
			}
		}
	}
}

func gateOutcome(r *gate.Result) string {
	if r.Passed() {
		return statusColor(story.StatusCompleted).Sprint("passed")
	}
	if r.Unavailable {
		return statusColor(story.StatusGatePending).Sprint("unavailable")
	}
	return statusColor(story.StatusFailed).Sprint("failed")
}
