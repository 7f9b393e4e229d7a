package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vietdv277/stratus/internal/aws"
	"github.com/vietdv277/stratus/internal/aws/awsfake"
	"github.com/vietdv277/stratus/internal/config"
	"github.com/vietdv277/stratus/internal/decommission"
	"github.com/vietdv277/stratus/internal/ui"
	pkgtypes "github.com/vietdv277/stratus/pkg/types"
)

// setup isolates the command tree from the machine it runs on and routes
// every AWS call to fake.
func setup(t *testing.T, fake *awsfake.EC2) {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	t.Setenv("STRATUS_TEARDOWN_INITIAL_DELAY", "1ms")
	t.Setenv("STRATUS_TEARDOWN_MAX_DELAY", "1ms")

	orig := newClient
	newClient = func(_ context.Context, c *config.Config) (*aws.Client, error) {
		return aws.NewClientWithAPI(c.Region, fake, awsfake.NewSTS()), nil
	}
	t.Cleanup(func() { newClient = orig })
}

// execute runs the root command with args. Flag values are reset first
// since the command tree is package state.
func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	resetFlags(rootCmd)

	var stdout, stderr bytes.Buffer
	rootCmd.SetArgs(args)
	rootCmd.SetOut(&stdout)
	rootCmd.SetErr(&stderr)
	rootCmd.SetIn(strings.NewReader(""))

	err := rootCmd.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

func resetFlags(c *cobra.Command) {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	c.Flags().VisitAll(reset)
	c.PersistentFlags().VisitAll(reset)
	for _, sub := range c.Commands() {
		resetFlags(sub)
	}
}

func TestCreateInspectDelete(t *testing.T) {
	fake := awsfake.New()
	setup(t, fake)

	stdout, stderr, err := execute(t, "create", "-e", "Staging", "-o", "json")
	require.NoError(t, err)
	assert.Contains(t, stderr, "Created VPC")

	var summary pkgtypes.ProvisionSummary
	require.NoError(t, json.Unmarshal([]byte(stdout), &summary))
	assert.Equal(t, "Staging", summary.Environment)
	assert.Equal(t, "ap-south-1", summary.Region)
	require.NotEmpty(t, summary.VPCID)

	t.Run("ls", func(t *testing.T) {
		stdout, _, err := execute(t, "vpc", "ls", "-o", "json")
		require.NoError(t, err)

		var vpcs []pkgtypes.VPC
		require.NoError(t, json.Unmarshal([]byte(stdout), &vpcs))
		require.Len(t, vpcs, 1)
		assert.Equal(t, "Staging", vpcs[0].Environment)
	})

	t.Run("describe", func(t *testing.T) {
		stdout, _, err := execute(t, "vpc", "describe", summary.VPCID, "-o", "json")
		require.NoError(t, err)

		var details ui.VPCDetails
		require.NoError(t, json.Unmarshal([]byte(stdout), &details))
		assert.Len(t, details.Subnets, 6)
		assert.Len(t, details.NatGateways, 1)
		assert.Len(t, details.InternetGateways, 1)
		assert.Len(t, details.RouteTables, 3)
	})

	t.Run("subnets and routes", func(t *testing.T) {
		stdout, _, err := execute(t, "vpc", "subnets", summary.VPCID)
		require.NoError(t, err)
		assert.Contains(t, stdout, "6 subnets")

		stdout, _, err = execute(t, "vpc", "routes", summary.VPCID)
		require.NoError(t, err)
		assert.Contains(t, stdout, "3 route tables")
		assert.Contains(t, stdout, summary.NatGatewayID)
	})

	t.Run("dry run", func(t *testing.T) {
		stdout, _, err := execute(t, "delete", summary.VPCID, "--dry-run", "-o", "json")
		require.NoError(t, err)

		var report pkgtypes.TeardownReport
		require.NoError(t, json.Unmarshal([]byte(stdout), &report))
		assert.True(t, report.DryRun)
		assert.Positive(t, report.Count("planned"))
		assert.Equal(t, 1, fake.Live()["vpc"])
	})

	stdout, _, err = execute(t, "delete", summary.VPCID, "--yes")
	require.NoError(t, err)
	assert.Contains(t, stdout, "deleted")
	for kind, n := range fake.Live() {
		assert.Zero(t, n, kind)
	}

	stdout, _, err = execute(t, "delete", summary.VPCID, "--yes")
	require.NoError(t, err)
	assert.Contains(t, stdout, "Nothing to delete for "+summary.VPCID)
}

func TestCreateRollsBack(t *testing.T) {
	fake := awsfake.New()
	fake.FailOn["CreateNatGateway"] = awsfake.APIError("InsufficientCapacity", "no capacity")
	setup(t, fake)

	stdout, _, err := execute(t, "create")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to create nat-gateway")
	assert.Contains(t, stdout, "Rolling back")
	for kind, n := range fake.Live() {
		assert.Zero(t, n, kind)
	}
}

func TestCreateNoRollback(t *testing.T) {
	fake := awsfake.New()
	fake.FailOn["AllocateAddress"] = awsfake.APIError("AddressLimitExceeded", "too many addresses")
	setup(t, fake)

	_, stderr, err := execute(t, "create", "--no-rollback")
	require.Error(t, err)
	assert.Contains(t, stderr, "Resources created before the failure")
	assert.Equal(t, 1, fake.Live()["vpc"])
	assert.Equal(t, 6, fake.Live()["subnet"])
}

func TestInvalidConfiguration(t *testing.T) {
	setup(t, awsfake.New())

	tests := []struct {
		name string
		args []string
		want string
	}{
		{"host bits", []string{"create", "--cidr", "10.0.0.1/16"}, "host bits"},
		{"output", []string{"vpc", "ls", "-o", "xml"}, "output must be one of"},
		{"log level", []string{"status", "--log-level", "loud"}, "log_level must be one of"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := execute(t, tt.args...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), "invalid configuration")
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestDeleteNeedsTerminalWithoutArgs(t *testing.T) {
	if ui.Interactive() {
		t.Skip("stdin and stdout are a terminal")
	}
	setup(t, awsfake.New())

	_, _, err := execute(t, "delete")
	assert.ErrorIs(t, err, decommission.ErrVPCIDRequired)

	_, _, err = execute(t, "delete", "vpc-12345678")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "without --yes")
}

func TestConfigInitAndShow(t *testing.T) {
	setup(t, awsfake.New())
	path := filepath.Join(t.TempDir(), "stratus.yaml")

	stdout, _, err := execute(t, "config", "init", "--config", path, "-r", "eu-west-1")
	require.NoError(t, err)
	assert.Contains(t, stdout, "Wrote "+path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "region: eu-west-1")

	_, _, err = execute(t, "config", "init", "--config", path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")

	stdout, _, err = execute(t, "config", "show", "--config", path)
	require.NoError(t, err)
	assert.Contains(t, stdout, "region: eu-west-1")
	assert.Contains(t, stdout, "environment: Production")
}

func TestStatus(t *testing.T) {
	setup(t, awsfake.New())

	stdout, _, err := execute(t, "status", "-r", "us-east-1")
	require.NoError(t, err)
	assert.Contains(t, stdout, "Authenticated")
	assert.Contains(t, stdout, "123456789012")
	assert.Contains(t, stdout, "us-east-1")
}

func TestVersion(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	stdout, _, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, stdout, "Stratus CLI")
	assert.Contains(t, stdout, Version)
}

func TestConfirm(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{"y\n", true},
		{"YES\n", true},
		{" yes ", true},
		{"n\n", false},
		{"\n", false},
		{"", false},
		{"maybe\n", false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			var prompt bytes.Buffer
			got, err := confirm(strings.NewReader(tt.input), &prompt, "Delete? ")
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, "Delete? ", prompt.String())
		})
	}
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("closed") }

func TestConfirmReadError(t *testing.T) {
	_, err := confirm(failingReader{}, &bytes.Buffer{}, "Delete? ")
	assert.Error(t, err)
}

func TestStatusListsProfiles(t *testing.T) {
	setup(t, awsfake.New())
	home := os.Getenv("HOME")
	require.NoError(t, os.MkdirAll(filepath.Join(home, ".aws"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(home, ".aws", "config"),
		[]byte("[default]\nregion = us-west-2\n\n[profile staging]\nregion = eu-west-1\n"), 0o600))

	stdout, _, err := execute(t, "status", "-p", "staging")
	require.NoError(t, err)
	assert.Contains(t, stdout, "profile default eu-west-1")
	assert.Contains(t, stdout, "* staging")
	assert.Contains(t, stdout, "us-west-2")
}
