package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/vietdv277/stratus/internal/aws"
	"github.com/vietdv277/stratus/internal/decommission"
	"github.com/vietdv277/stratus/internal/logger"
	"github.com/vietdv277/stratus/internal/ui"
)

var (
	deleteDryRun bool
	deleteYes    bool
)

var deleteCmd = &cobra.Command{
	Use:   "delete [vpc-id]",
	Short: "Delete a VPC and everything in it",
	Long: `Delete a VPC together with its NAT gateways, Elastic IPs, subnets,
route tables and internet gateways, in dependency order.

Running delete on a VPC that is already gone does nothing. Elastic IPs
still attached to something else are left alone, as is the main route
table, which goes away with the VPC.

If no VPC ID is provided, an interactive selector will be shown.

Examples:
  stratus delete vpc-0abc1234             # Asks for confirmation
  stratus delete vpc-0abc1234 --yes       # No prompt
  stratus delete vpc-0abc1234 --dry-run   # Only show what would be removed
  stratus delete                          # Interactive VPC selector`,
	Args: cobra.MaximumNArgs(1),
	RunE: runDelete,
}

func init() {
	rootCmd.AddCommand(deleteCmd)

	deleteCmd.Flags().BoolVar(&deleteDryRun, "dry-run", false, "list what would be removed without removing it")
	deleteCmd.Flags().BoolVarP(&deleteYes, "yes", "y", false, "skip the confirmation prompt")
}

func runDelete(cmd *cobra.Command, args []string) error {
	format, err := outputFormat()
	if err != nil {
		return err
	}

	client, err := newClient(cmd.Context(), cfg)
	if err != nil {
		return err
	}

	vpcID, err := resolveDeleteTarget(cmd, client, args)
	if errors.Is(err, ui.ErrCancelled) {
		fmt.Fprintln(cmd.ErrOrStderr(), "Aborted")
		return nil
	}
	if err != nil {
		return err
	}

	if !deleteDryRun && !deleteYes {
		if !ui.Interactive() {
			return fmt.Errorf("refusing to delete %s without --yes when not running on a terminal", vpcID)
		}
		ok, err := confirm(cmd.InOrStdin(), cmd.ErrOrStderr(),
			fmt.Sprintf("Delete %s and every resource in it? [y/N]: ", vpcID))
		if err != nil {
			return err
		}
		if !ok {
			fmt.Fprintln(cmd.ErrOrStderr(), "Aborted")
			return nil
		}
	}

	opts := decommission.Options{
		DryRun:        deleteDryRun,
		NatDeletePoll: cfg.Teardown.RetryOptions(),
	}
	progress := ui.NewProgress(progressWriter(cmd, format))
	d := decommission.New(client, opts, logger.Logger.With(zap.String("command", "delete")), progress)

	report, runErr := d.Run(cmd.Context(), vpcID)
	if report == nil {
		return runErr
	}

	out := cmd.OutOrStdout()
	if runErr != nil {
		out = cmd.ErrOrStderr()
	}
	if err := ui.Render(out, format, report, func(w io.Writer) error {
		return ui.PrintTeardownReport(w, report)
	}); err != nil {
		return errors.Join(runErr, err)
	}
	return runErr
}

// resolveDeleteTarget returns the VPC ID from args or, on a terminal, from
// the interactive selector.
func resolveDeleteTarget(cmd *cobra.Command, client *aws.Client, args []string) (string, error) {
	if len(args) > 0 {
		return args[0], nil
	}
	if !ui.Interactive() {
		return "", decommission.ErrVPCIDRequired
	}

	vpcs, err := client.ListVPCs(cmd.Context())
	if err != nil {
		return "", fmt.Errorf("failed to list VPCs: %w", err)
	}

	selected, err := ui.SelectVPC(vpcs, cmd.ErrOrStderr())
	if err != nil {
		return "", err
	}
	return selected.ID, nil
}

// confirm asks a yes/no question; anything but y or yes is a no.
func confirm(in io.Reader, out io.Writer, prompt string) (bool, error) {
	fmt.Fprint(out, prompt)

	answer, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return false, fmt.Errorf("failed to read answer: %w", err)
	}

	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "y", "yes":
		return true, nil
	default:
		return false, nil
	}
}
