package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/vietdv277/stratus/internal/aws"
	"github.com/vietdv277/stratus/internal/config"
	"github.com/vietdv277/stratus/internal/logger"
	"github.com/vietdv277/stratus/internal/ui"
)

// skipValidation marks commands that must run even with an invalid config.
const skipValidation = "skip-validation"

var (
	// Global flags
	configPath string

	// cfg is resolved once per invocation in PersistentPreRunE.
	cfg *config.Config
)

// flagKeys maps command-line flags to config keys.
var flagKeys = map[string]string{
	"profile":     config.KeyProfile,
	"region":      config.KeyRegion,
	"log-level":   config.KeyLogLevel,
	"output":      config.KeyOutput,
	"environment": config.KeyEnvironment,
	"cidr":        config.KeyCIDR,
	"nat-timeout": config.KeyNatWaitTimeout,
}

// newClient builds the AWS client for a command. Tests replace it.
var newClient = func(ctx context.Context, c *config.Config) (*aws.Client, error) {
	client, err := aws.NewClient(ctx, aws.WithProfile(c.Profile), aws.WithRegion(c.Region))
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS client: %w", err)
	}
	return client, nil
}

var rootCmd = &cobra.Command{
	Use:   "stratus",
	Short: "Stratus - provision and tear down AWS VPC topologies",
	Long: `Stratus builds a production-shaped VPC in one command and removes it
again in the right order.

A created VPC has an internet gateway, three public and three private
subnets spread over three availability zones, one NAT gateway with an
Elastic IP, and a public and a private route table.

Examples:
  stratus create                          # Production VPC in ap-south-1
  stratus create -e Staging --cidr 10.0.0.0/16 -r eu-west-1
  stratus delete vpc-0abc1234 --dry-run   # Show what would be removed
  stratus delete                          # Pick the VPC interactively
  stratus vpc ls                          # List VPCs
  stratus status                          # Show identity and settings`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: initConfig,
}

// Execute runs the root command. SIGINT and SIGTERM cancel the command's
// context so waits stop and a failed create can roll back.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	logger.Sync()

	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringP("profile", "p", "", "AWS profile to use")
	rootCmd.PersistentFlags().StringP("region", "r", "", "AWS region to use (default ap-south-1)")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default ~/.stratus.yaml)")
	rootCmd.PersistentFlags().String("log-level", "", "log level: debug, info, warn, error (default info)")
	rootCmd.PersistentFlags().StringP("output", "o", "", "output format: table, json, yaml (default table)")
}

func initConfig(cmd *cobra.Command, _ []string) error {
	v := viper.New()
	for flag, key := range flagKeys {
		if f := cmd.Flags().Lookup(flag); f != nil {
			if err := v.BindPFlag(key, f); err != nil {
				return fmt.Errorf("failed to bind flag %s: %w", flag, err)
			}
		}
	}

	loaded, err := config.Load(v, configPath)
	if err != nil {
		return err
	}
	if cmd.Annotations[skipValidation] == "" {
		if err := loaded.Validate(); err != nil {
			return fmt.Errorf("invalid configuration: %w", err)
		}
	}
	cfg = loaded

	level := cfg.LogLevel
	if level == "" {
		level = config.Defaults().LogLevel
	}
	if err := logger.Initialize(level); err != nil {
		return err
	}
	return nil
}

// outputFormat returns the resolved -o value.
func outputFormat() (ui.Format, error) {
	return ui.ParseFormat(cfg.Output)
}

// progressWriter is where step-by-step lines go: stdout for tables, stderr
// when stdout carries json or yaml.
func progressWriter(cmd *cobra.Command, f ui.Format) io.Writer {
	if f.Structured() {
		return cmd.ErrOrStderr()
	}
	return cmd.OutOrStdout()
}
