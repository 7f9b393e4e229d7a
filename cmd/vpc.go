package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/vietdv277/stratus/internal/ui"
)

var vpcCmd = &cobra.Command{
	Use:   "vpc",
	Short: "Inspect VPCs",
	Long:  `Read-only views of VPCs, their subnets and their route tables.`,
}

var vpcLsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List all VPCs",
	Long: `List all VPCs with their CIDR, environment, state and default flag.
The environment column is set for VPCs created by stratus.

Examples:
  stratus vpc ls              # List all VPCs
  stratus vpc ls -p prod      # List VPCs using production profile
  stratus vpc ls -o json      # JSON array`,
	Args: cobra.NoArgs,
	RunE: runVPCList,
}

var vpcDescribeCmd = &cobra.Command{
	Use:   "describe <vpc-id>",
	Short: "Show a VPC with its gateways, subnets and routes",
	Long: `Show a VPC together with its internet and NAT gateways, subnets and
route tables.

Examples:
  stratus vpc describe vpc-12345678`,
	Args: cobra.ExactArgs(1),
	RunE: runVPCDescribe,
}

var vpcSubnetsCmd = &cobra.Command{
	Use:   "subnets <vpc-id>",
	Short: "List subnets in a VPC",
	Long: `List all subnets in a VPC with their CIDR, AZ, free addresses and
whether instances get a public IP.

Examples:
  stratus vpc subnets vpc-12345678`,
	Args: cobra.ExactArgs(1),
	RunE: runVPCSubnets,
}

var vpcRoutesCmd = &cobra.Command{
	Use:   "routes <vpc-id>",
	Short: "List route tables and routes in a VPC",
	Long: `List the route tables of a VPC, one row per route.

Examples:
  stratus vpc routes vpc-12345678`,
	Args: cobra.ExactArgs(1),
	RunE: runVPCRoutes,
}

func init() {
	rootCmd.AddCommand(vpcCmd)

	vpcCmd.AddCommand(vpcLsCmd)
	vpcCmd.AddCommand(vpcDescribeCmd)
	vpcCmd.AddCommand(vpcSubnetsCmd)
	vpcCmd.AddCommand(vpcRoutesCmd)
}

func runVPCList(cmd *cobra.Command, args []string) error {
	format, err := outputFormat()
	if err != nil {
		return err
	}

	client, err := newClient(cmd.Context(), cfg)
	if err != nil {
		return err
	}

	vpcs, err := client.ListVPCs(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to list VPCs: %w", err)
	}

	if len(vpcs) == 0 && !format.Structured() {
		fmt.Fprintln(cmd.OutOrStdout(), "No VPCs found")
		return nil
	}

	return ui.Render(cmd.OutOrStdout(), format, vpcs, func(w io.Writer) error {
		return ui.PrintVPCTable(w, vpcs)
	})
}

func runVPCDescribe(cmd *cobra.Command, args []string) error {
	format, err := outputFormat()
	if err != nil {
		return err
	}

	client, err := newClient(cmd.Context(), cfg)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	vpcID := args[0]

	vpc, err := client.DescribeVPC(ctx, vpcID)
	if err != nil {
		return fmt.Errorf("failed to describe VPC: %w", err)
	}
	if vpc == nil {
		return fmt.Errorf("VPC %s not found", vpcID)
	}

	details := &ui.VPCDetails{VPC: *vpc}
	if details.InternetGateways, err = client.ListInternetGateways(ctx, vpcID); err != nil {
		return fmt.Errorf("failed to list internet gateways: %w", err)
	}
	if details.NatGateways, err = client.ListNatGateways(ctx, vpcID); err != nil {
		return fmt.Errorf("failed to list NAT gateways: %w", err)
	}
	if details.Subnets, err = client.ListSubnets(ctx, vpcID); err != nil {
		return fmt.Errorf("failed to list subnets: %w", err)
	}
	if details.RouteTables, err = client.ListRouteTables(ctx, vpcID); err != nil {
		return fmt.Errorf("failed to list route tables: %w", err)
	}

	return ui.Render(cmd.OutOrStdout(), format, details, func(w io.Writer) error {
		return ui.PrintVPCDetails(w, details)
	})
}

func runVPCSubnets(cmd *cobra.Command, args []string) error {
	format, err := outputFormat()
	if err != nil {
		return err
	}

	client, err := newClient(cmd.Context(), cfg)
	if err != nil {
		return err
	}

	subnets, err := client.ListSubnets(cmd.Context(), args[0])
	if err != nil {
		return fmt.Errorf("failed to list subnets: %w", err)
	}

	if len(subnets) == 0 && !format.Structured() {
		fmt.Fprintln(cmd.OutOrStdout(), "No subnets found in this VPC")
		return nil
	}

	return ui.Render(cmd.OutOrStdout(), format, subnets, func(w io.Writer) error {
		return ui.PrintSubnetTable(w, subnets)
	})
}

func runVPCRoutes(cmd *cobra.Command, args []string) error {
	format, err := outputFormat()
	if err != nil {
		return err
	}

	client, err := newClient(cmd.Context(), cfg)
	if err != nil {
		return err
	}

	tables, err := client.ListRouteTables(cmd.Context(), args[0])
	if err != nil {
		return fmt.Errorf("failed to list route tables: %w", err)
	}

	if len(tables) == 0 && !format.Structured() {
		fmt.Fprintln(cmd.OutOrStdout(), "No route tables found in this VPC")
		return nil
	}

	return ui.Render(cmd.OutOrStdout(), format, tables, func(w io.Writer) error {
		return ui.PrintRouteTables(w, tables)
	})
}
