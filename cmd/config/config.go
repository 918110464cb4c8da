// Package config prints or saves the effective configuration.
package config

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/tphakala/ppe-go/internal/conf"
)

// Command creates the config command.
func Command(settings *conf.Settings) *cobra.Command {
	var (
		showSecrets bool
		save        bool
		file        string
	)

	cmd := &cobra.Command{
		Use:   "config",
		Short: "Print or save the effective configuration",
		Long: "Print the configuration after defaults, config file, environment and flags are applied. Credentials are masked unless --show-secrets is set.\n" +
			"With --save the effective configuration, flag overrides included, replaces the active config.yaml or the file given by --file.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if save {
				path := file
				if path == "" {
					found, err := conf.FindConfigFile()
					if err != nil {
						return err
					}
					path = found
				}
				if err := conf.SaveYAMLConfig(path, settings); err != nil {
					return err
				}
				_, err := fmt.Fprintf(cmd.OutOrStdout(), "Saved configuration to %s\n", path)
				return err
			}

			view := settings.Redacted()
			if showSecrets {
				view = settings
			}
			data, err := yaml.Marshal(view)
			if err != nil {
				return fmt.Errorf("error marshaling settings to YAML: %w", err)
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}

	cmd.Flags().BoolVar(&showSecrets, "show-secrets", false, "Print credentials in clear text")
	cmd.Flags().BoolVar(&save, "save", false, "Write the effective configuration instead of printing it")
	cmd.Flags().StringVar(&file, "file", "", "Target file for --save, defaults to the active config.yaml")
	return cmd
}
