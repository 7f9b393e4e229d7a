package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vietdv277/stratus/internal/config"
)

var configForce bool

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage the stratus config file",
	Long: `Manage the stratus config file (~/.stratus.yaml unless --config is set).

Settings are resolved from flags, then STRATUS_* environment variables,
then the config file, then built-in defaults.`,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a config file with the current settings",
	Long: `Write the resolved settings to the config file so later runs pick
them up without flags.

Examples:
  stratus config init                       # Defaults to ~/.stratus.yaml
  stratus config init -r eu-west-1 --force  # Replace an existing file`,
	Args:        cobra.NoArgs,
	Annotations: map[string]string{skipValidation: "true"},
	RunE:        runConfigInit,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the resolved configuration",
	Long: `Print the settings stratus would use, after flags, environment
variables and the config file are merged.

Examples:
  stratus config show
  STRATUS_REGION=us-east-1 stratus config show`,
	Args:        cobra.NoArgs,
	Annotations: map[string]string{skipValidation: "true"},
	RunE:        runConfigShow,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)

	configInitCmd.Flags().BoolVar(&configForce, "force", false, "overwrite an existing config file")
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	path := configPath
	if path == "" {
		path = config.DefaultPath()
	}

	if err := config.Save(cfg, path, configForce); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", path)
	return nil
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	data, err := cfg.Marshal()
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	_, err = cmd.OutOrStdout().Write(data)
	if err == nil {
		if verr := cfg.Validate(); verr != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "Warning: %v\n", verr)
		}
	}
	return err
}
