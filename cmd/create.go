package cmd

import (
	"errors"
	"io"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/vietdv277/stratus/internal/logger"
	"github.com/vietdv277/stratus/internal/provision"
	"github.com/vietdv277/stratus/internal/ui"
)

var noRollback bool

var createCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a VPC with public and private subnets",
	Long: `Create a VPC with an internet gateway, three public and three private
subnets, a NAT gateway and the route tables that tie them together.

If any step fails, everything created so far is removed again in reverse
order. Pass --no-rollback to keep the partial topology for inspection.

Examples:
  stratus create                               # Production VPC, 10.0.0.0/16
  stratus create -e Staging                    # Resources named Staging-*
  stratus create --nat-timeout 15m -o json     # Machine-readable summary
  stratus create --no-rollback                 # Leave resources on failure`,
	Args: cobra.NoArgs,
	RunE: runCreate,
}

func init() {
	rootCmd.AddCommand(createCmd)

	createCmd.Flags().StringP("environment", "e", "", "environment name used in resource names and tags (default Production)")
	createCmd.Flags().String("cidr", "", "VPC CIDR block (default 10.0.0.0/16)")
	createCmd.Flags().Duration("nat-timeout", 0, "how long to wait for the NAT gateway (default 10m)")
	createCmd.Flags().BoolVar(&noRollback, "no-rollback", false, "keep created resources when a step fails")
}

func runCreate(cmd *cobra.Command, args []string) error {
	format, err := outputFormat()
	if err != nil {
		return err
	}

	client, err := newClient(cmd.Context(), cfg)
	if err != nil {
		return err
	}

	opts := provision.Options{
		Environment:    cfg.Environment,
		CIDR:           cfg.CIDR,
		NatWaitTimeout: cfg.NatWaitTimeout,
		Rollback:       !noRollback,
		NatDeletePoll:  cfg.Teardown.RetryOptions(),
	}
	progress := ui.NewProgress(progressWriter(cmd, format))
	p := provision.New(client, opts, logger.Logger.With(zap.String("command", "create")), progress)

	summary, runErr := p.Run(cmd.Context())
	if summary == nil {
		return runErr
	}

	if runErr != nil {
		// Partial topology left behind by --no-rollback.
		if err := ui.Render(cmd.ErrOrStderr(), format, summary, func(w io.Writer) error {
			return ui.PrintPartialSummary(w, summary)
		}); err != nil {
			return errors.Join(runErr, err)
		}
		return runErr
	}

	return ui.Render(cmd.OutOrStdout(), format, summary, func(w io.Writer) error {
		return ui.PrintSummary(w, summary)
	})
}
