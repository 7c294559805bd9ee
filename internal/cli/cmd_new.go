// Package cli implements the aura command-line interface.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/johnazariah/aura-sub015/internal/jira"
	"github.com/johnazariah/aura-sub015/internal/orchestrator"
	"github.com/johnazariah/aura-sub015/internal/story"
)

// newNewCmd creates the new story command
func newNewCmd() *cobra.Command {
	var (
		description string
		repo        string
		fromIssue   string
		automation  string
		gateMode    string
		dispatch    string
		parallel    int
	)

	cmd := &cobra.Command{
		Use:   "new [title]",
		Short: "Create a new story",
		Long: `Create a new story to be orchestrated by aura.

The title is required unless --from-issue is given, in which case the
issue summary becomes the title and its description seeds the story
description.

Automation modes:
  assisted          every step needs approval before dispatch
  autonomous        only risky steps pause for confirmation (default)
  full_autonomous   nothing pauses

Gate modes:
  auto_proceed   passing gates advance to the next wave (default)
  pause_always   every gate waits for 'aura resume'

Example:
  aura new "Fix authentication timeout"
  aura new "Add dark mode" -d "Toggle in settings, respect OS theme"
  aura new --from-issue PROJ-123
  aura new "Refactor parser" --automation assisted --gate-mode pause_always`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := openApp(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			var title, issueURL string
			if len(args) == 1 {
				title = args[0]
			}

			if fromIssue != "" {
				client, err := jira.NewClient(a.cfg.Jira)
				if err != nil {
					return fmt.Errorf("jira is not configured: %w", err)
				}
				issue, err := client.FetchIssue(ctx, fromIssue)
				if err != nil {
					return fmt.Errorf("fetch issue: %w", err)
				}
				issueURL = issue.URL
				if title == "" {
					title = issue.Title
				}
				if description == "" {
					description = issue.Description
				}
				if !quiet {
					fmt.Printf("Imported %s: %s\n", issue.Key, issue.Title)
				}
			}
			if title == "" {
				return fmt.Errorf("a title is required (or use --from-issue)")
			}

			if repo == "" {
				repo, err = os.Getwd()
				if err != nil {
					return err
				}
			}

			req := orchestrator.CreateRequest{
				Title:          title,
				Description:    description,
				RepositoryPath: repo,
				IssueURL:       issueURL,
				AutomationMode: story.AutomationMode(automation),
				GateMode:       story.GateMode(gateMode),
				DispatchTarget: dispatch,
				MaxParallelism: parallel,
			}
			if automation == "" {
				req.AutomationMode = a.cfg.AutomationMode
			}
			if gateMode == "" {
				req.GateMode = a.cfg.GateMode
			}
			if dispatch == "" {
				req.DispatchTarget = a.cfg.Executor.Default
			}
			if parallel == 0 {
				req.MaxParallelism = a.cfg.MaxParallelism
			}

			st, err := a.engine.Create(ctx, req)
			if err != nil {
				return err
			}

			fmt.Printf("Story created: %s\n", st.ShortID())
			fmt.Printf("   Title:      %s\n", st.Title)
			fmt.Printf("   Automation: %s\n", st.AutomationMode)
			fmt.Printf("   Gates:      %s\n", st.GateMode)
			if st.IssueURL != "" {
				fmt.Printf("   Issue:      %s\n", st.IssueURL)
			}
			fmt.Println("\nNext steps:")
			fmt.Printf("  aura run %s     - Analyze, plan and execute\n", st.ShortID())
			fmt.Printf("  aura show %s    - View story details\n", st.ShortID())
			return nil
		},
	}
	cmd.Flags().StringVarP(&description, "description", "d", "", "story description")
	cmd.Flags().StringVar(&repo, "repo", "", "repository path (default: current directory)")
	cmd.Flags().StringVar(&fromIssue, "from-issue", "", "Jira issue key or URL to import")
	cmd.Flags().StringVar(&automation, "automation", "", "automation mode (assisted, autonomous, full_autonomous)")
	cmd.Flags().StringVar(&gateMode, "gate-mode", "", "gate mode (auto_proceed, pause_always)")
	cmd.Flags().StringVar(&dispatch, "dispatch", "", "executor to dispatch steps to (agent-cli, llm)")
	cmd.Flags().IntVarP(&parallel, "parallel", "p", 0, "max concurrent steps per wave")
	return cmd
}
