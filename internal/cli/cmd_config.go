// Package cli implements the aura command-line interface.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// newConfigCmd creates the config command
func newConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Show the effective configuration",
		Long: `Print the effective configuration: defaults merged with
.aura/config.yaml and AURA_* environment overrides. Secrets such as
tokens are redacted.

Example:
  aura config`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			redacted := *cfg
			if redacted.Hosting.Token != "" {
				redacted.Hosting.Token = "<redacted>"
			}
			if redacted.Jira.APIToken != "" {
				redacted.Jira.APIToken = "<redacted>"
			}

			data, err := yaml.Marshal(&redacted)
			if err != nil {
				return fmt.Errorf("marshal config: %w", err)
			}
			_, err = os.Stdout.Write(data)
			return err
		},
	}
}
