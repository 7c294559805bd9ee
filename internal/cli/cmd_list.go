// Package cli implements the aura command-line interface.
package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/johnazariah/aura-sub015/internal/store"
	"github.com/johnazariah/aura-sub015/internal/story"
)

// newListCmd creates the list command
func newListCmd() *cobra.Command {
	var status string

	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List stories",
		Long: `List all stories in the current project.

Example:
  aura list
  aura list --status executing`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := openApp(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			stories, err := a.engine.List(ctx, store.Filter{Status: story.Status(status)})
			if err != nil {
				return fmt.Errorf("list stories: %w", err)
			}

			if jsonOut {
				return json.NewEncoder(os.Stdout).Encode(stories)
			}

			if len(stories) == 0 {
				fmt.Println("No stories found. Create one with: aura new \"Your story\"")
				return nil
			}

			// Print stories in table format
			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tSTATUS\tWAVE\tTITLE")
			fmt.Fprintln(w, "──\t──────\t────\t─────")
			for _, st := range stories {
				wave := "-"
				if st.CurrentWave > 0 {
					wave = fmt.Sprintf("%d", st.CurrentWave)
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
					st.ShortID(),
					statusColor(st.Status).Sprint(st.Status),
					wave,
					truncate(st.Title, 50))
			}
			w.Flush()
			return nil
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "filter by status")
	return cmd
}
