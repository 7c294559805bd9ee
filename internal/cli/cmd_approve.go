// Package cli implements the aura command-line interface.
package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/johnazariah/aura-sub015/internal/story"
)

// newApproveCmd creates the approve command
func newApproveCmd() *cobra.Command {
	var feedback string

	cmd := &cobra.Command{
		Use:   "approve <story> [step]",
		Short: "Approve pending steps",
		Long: `Approve a step that is waiting for approval. Without a step
argument, all waiting steps in the current wave are approved.

The step may be named by its id prefix or by its name.

Example:
  aura approve 3f2a91b4                 # approve everything waiting
  aura approve 3f2a91b4 "add cursor"    # approve one step
  aura approve 3f2a91b4 9c1d --feedback "prefer the v2 API"`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return decideSteps(cmd, args, true, feedback)
		},
	}
	cmd.Flags().StringVar(&feedback, "feedback", "", "guidance passed to the agent with the step")
	return cmd
}

// newRejectCmd creates the reject command
func newRejectCmd() *cobra.Command {
	var feedback string

	cmd := &cobra.Command{
		Use:   "reject <story> <step>",
		Short: "Reject a pending step",
		Long: `Reject a step that is waiting for approval. Rejected steps are
skipped on the next run; downstream steps still execute.

Example:
  aura reject 3f2a91b4 "drop the table" --feedback "too risky"`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return decideSteps(cmd, args, false, feedback)
		},
	}
	cmd.Flags().StringVar(&feedback, "feedback", "", "reason recorded on the step")
	return cmd
}

func decideSteps(cmd *cobra.Command, args []string, approved bool, feedback string) error {
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

	var targets []*story.Step
	if len(args) == 2 {
		step := findStep(st, args[1])
		if step == nil {
			return fmt.Errorf("step %q not found in story %s", args[1], st.ShortID())
		}
		targets = []*story.Step{step}
	} else {
		for _, step := range st.StepsInWave(st.CurrentWave) {
			if step.Status == story.StepPending && step.Approval == story.ApprovalNone {
				targets = append(targets, step)
			}
		}
		if len(targets) == 0 {
			fmt.Println("No steps are waiting for approval.")
			return nil
		}
	}

	verb := "Approved"
	if !approved {
		verb = "Rejected"
	}
	for _, step := range targets {
		if _, err := a.engine.Approve(ctx, st.ID, step.ID, approved, feedback); err != nil {
			return err
		}
		fmt.Printf("%s: %s\n", verb, step.Name)
	}
	fmt.Printf("\nContinue with: aura run %s\n", st.ShortID())
	return nil
}

// findStep matches a step by id prefix or case-insensitive name.
func findStep(st *story.Story, ref string) *story.Step {
	for _, step := range st.Steps {
		if strings.HasPrefix(step.ID, ref) {
			return step
		}
	}
	for _, step := range st.Steps {
		if strings.EqualFold(step.Name, ref) {
			return step
		}
	}
	return nil
}
