// Package cli implements the aura command-line interface.
package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/johnazariah/aura-sub015/internal/export"
)

// newExportCmd creates the export command
func newExportCmd() *cobra.Command {
	var outDir string
	var artifacts []string

	cmd := &cobra.Command{
		Use:   "export <story>",
		Short: "Export story artifacts as markdown",
		Long: `Export a story's research, plan and change log as markdown files,
suitable for attaching to a pull request or review.

Artifacts: research, plan, changes (default: all available)

Example:
  aura export 3f2a91b4
  aura export 3f2a91b4 --out docs/stories
  aura export 3f2a91b4 --artifact plan --artifact changes`,
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

			var include []export.Artifact
			for _, name := range artifacts {
				include = append(include, export.Artifact(name))
			}

			res, err := export.New().Export(ctx, st, outDir, include)
			if err != nil {
				return err
			}
			for _, exp := range res.Exported {
				fmt.Printf("Wrote %s\n", exp.Path)
			}
			for _, warn := range res.Warnings {
				fmt.Printf("Warning: %s\n", warn)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&outDir, "out", "o", "", "output directory (default: .aura/export/<story>)")
	cmd.Flags().StringArrayVar(&artifacts, "artifact", nil, "artifact to export (research, plan, changes)")
	return cmd
}
