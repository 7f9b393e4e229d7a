package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/vietdv277/stratus/internal/aws"
	"github.com/vietdv277/stratus/internal/ui"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the active profile, region and authentication status",
	Long: `Display the settings stratus will use and verify that the
credentials they resolve to are valid.

Examples:
  stratus status
  stratus status -p staging -r eu-west-1`,
	Args: cobra.NoArgs,
	RunE: runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()

	fmt.Fprintln(out, "Current Status")
	fmt.Fprintln(out, ui.MutedStyle.Render("─────────────────────────────────"))
	fmt.Fprintln(out)

	profile := cfg.Profile
	if profile == "" {
		profile = ui.MutedStyle.Render("(default chain)")
	}
	fmt.Fprintf(out, "Profile:     %s\n", ui.NameStyle.Render(profile))
	region := cfg.Region
	if pr := aws.ProfileRegion(cfg.Profile); pr != "" && pr != cfg.Region {
		region += ui.MutedStyle.Render(" (profile default " + pr + ")")
	}
	fmt.Fprintf(out, "Region:      %s\n", region)
	fmt.Fprintf(out, "Environment: %s\n", cfg.Environment)
	fmt.Fprintf(out, "CIDR:        %s\n", cfg.CIDR)
	fmt.Fprintln(out)

	displayAuth(cmd, out)

	profiles, err := aws.ListProfiles()
	if err != nil || len(profiles) == 0 {
		return nil
	}
	fmt.Fprintln(out)
	fmt.Fprintln(out, "Profiles:")
	for _, p := range profiles {
		marker := "  "
		if p.Name == cfg.Profile {
			marker = "* "
		}
		profileRegion := p.Region
		if profileRegion == "" {
			profileRegion = "-"
		}
		fmt.Fprintf(out, "  %s%-24s %s\n", marker, p.Name, ui.MutedStyle.Render(profileRegion))
	}
	return nil
}

func displayAuth(cmd *cobra.Command, out io.Writer) {
	fmt.Fprint(out, "Auth:        ")

	client, err := newClient(cmd.Context(), cfg)
	var identity *aws.CallerIdentity
	if err == nil {
		identity, err = client.GetCallerIdentity(cmd.Context())
	}
	if err != nil {
		fmt.Fprintln(out, ui.FailedStyle.Render("✗ Not authenticated"))
		fmt.Fprintf(out, "             %s\n", ui.MutedStyle.Render(err.Error()))
		fmt.Fprintln(out)
		fmt.Fprintln(out, "To authenticate:")
		if cfg.Profile != "" {
			fmt.Fprintf(out, "  aws sso login --profile %s\n", cfg.Profile)
		} else {
			fmt.Fprintln(out, "  aws configure")
		}
		return
	}

	fmt.Fprintln(out, ui.OKStyle.Render("✓ Authenticated"))
	fmt.Fprintf(out, "Account:     %s\n", identity.Account)
	fmt.Fprintf(out, "User:        %s\n", identity.UserID)
	if identity.Arn != "" {
		fmt.Fprintf(out, "ARN:         %s\n", ui.MutedStyle.Render(identity.Arn))
	}
}
