// Package cli implements the aura command-line interface.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/johnazariah/aura-sub015/internal/config"
)

// newInitCmd creates the init command
func newInitCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize aura in the current project",
		Long: `Initialize aura in the current directory.

Creates .aura/config.yaml with default settings. Edit it to pick the
model, executor and hosting provider, or override individual values
with AURA_* environment variables.

Example:
  aura init
  aura init --force    # overwrite an existing config`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cwd, err := os.Getwd()
			if err != nil {
				return err
			}
			if config.IsInitialized(cwd) && !force {
				return fmt.Errorf("aura is already initialized here (use --force to overwrite)")
			}

			cfg := config.Default()
			if err := cfg.Save(cwd); err != nil {
				return err
			}

			fmt.Printf("Initialized aura in %s\n", config.Path(cwd))
			if !quiet {
				fmt.Println("\nNext steps:")
				fmt.Println("  aura new \"Your story\"    Create a story")
				fmt.Println("  aura run <story>         Execute it")
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "overwrite existing configuration")
	return cmd
}
