package decommission

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/vietdv277/stratus/internal/aws"
	"github.com/vietdv277/stratus/internal/aws/awsfake"
	"github.com/vietdv277/stratus/internal/provision"
	"github.com/vietdv277/stratus/internal/retry"
	"github.com/vietdv277/stratus/internal/topology"
	pkgtypes "github.com/vietdv277/stratus/pkg/types"
)

type recorder struct {
	lines []string
}

func (r *recorder) Printf(format string, args ...any) {
	r.lines = append(r.lines, fmt.Sprintf(format, args...))
}

var fastPoll = []retry.Option{
	retry.WithInitialDelay(time.Millisecond),
	retry.WithMaxDelay(time.Millisecond),
}

// provisioned builds a full topology in a fresh fake.
func provisioned(t *testing.T, env string) (*awsfake.EC2, *aws.Client, *pkgtypes.ProvisionSummary) {
	t.Helper()
	fake := awsfake.New()
	client := aws.NewClientWithAPI("ap-south-1", fake, awsfake.NewSTS())

	opts := provision.DefaultOptions()
	opts.Environment = env
	summary, err := provision.New(client, opts, zaptest.NewLogger(t), nil).Run(context.Background())
	require.NoError(t, err)
	return fake, client, summary
}

func newDecommissioner(t *testing.T, client *aws.Client, mutate func(*Options)) (*Decommissioner, *recorder) {
	t.Helper()
	opts := Options{NatDeletePoll: fastPoll}
	if mutate != nil {
		mutate(&opts)
	}
	out := &recorder{}
	return New(client, opts, zaptest.NewLogger(t), out), out
}

func actions(report *pkgtypes.TeardownReport, kind topology.Kind, action string) []string {
	var ids []string
	for _, a := range report.Actions {
		if a.Kind == string(kind) && a.Action == action {
			ids = append(ids, a.ID)
		}
	}
	return ids
}

func TestProvisionThenDecommission(t *testing.T) {
	ctx := context.Background()
	fake, client, summary := provisioned(t, "Test")

	tables, err := client.ListRouteTables(ctx, summary.VPCID)
	require.NoError(t, err)
	var mainID string
	for _, rt := range tables {
		if rt.Main() {
			mainID = rt.ID
		}
	}
	require.NotEmpty(t, mainID)

	d, out := newDecommissioner(t, client, nil)
	report, err := d.Run(ctx, summary.VPCID)
	require.NoError(t, err)

	assert.Equal(t, summary.VPCID, report.VPCID)
	assert.Equal(t, "ap-south-1", report.Region)
	assert.Equal(t, []string{summary.NatGatewayID}, actions(report, topology.KindNatGateway, ActionDeleted))
	assert.Equal(t, []string{summary.ElasticIP.AllocationID}, actions(report, topology.KindElasticIP, ActionReleased))
	assert.ElementsMatch(t,
		append(summary.PublicSubnetIDs(), summary.PrivateSubnetIDs()...),
		actions(report, topology.KindSubnet, ActionDeleted))
	assert.ElementsMatch(t,
		[]string{summary.PublicRouteTableID, summary.PrivateRouteTableID},
		actions(report, topology.KindRouteTable, ActionDeleted))
	assert.Equal(t, []string{mainID}, actions(report, topology.KindRouteTable, ActionSkipped))
	assert.Equal(t, []string{summary.InternetGatewayID}, actions(report, topology.KindInternetGateway, ActionDetached))
	assert.Equal(t, []string{summary.InternetGatewayID}, actions(report, topology.KindInternetGateway, ActionDeleted))
	assert.Equal(t, []string{summary.VPCID}, actions(report, topology.KindVPC, ActionDeleted))

	for kind, n := range fake.Live() {
		assert.Zero(t, n, "%s left behind", kind)
	}
	assert.Equal(t, 2, fake.CallCount("DeleteRouteTable"))
	assert.NotEmpty(t, out.lines)
}

func TestTeardownFollowsDependencyOrder(t *testing.T) {
	fake, client, summary := provisioned(t, "Test")
	d, _ := newDecommissioner(t, client, nil)

	_, err := d.Run(context.Background(), summary.VPCID)
	require.NoError(t, err)

	last := map[string]int{}
	first := map[string]int{}
	for i, c := range fake.Calls() {
		if _, ok := first[c]; !ok {
			first[c] = i
		}
		last[c] = i
	}
	sequence := []string{"DeleteNatGateway", "ReleaseAddress", "DeleteSubnet", "DeleteRouteTable", "DetachInternetGateway", "DeleteInternetGateway", "DeleteVpc"}
	for i := 1; i < len(sequence); i++ {
		assert.Less(t, last[sequence[i-1]], first[sequence[i]], "%s before %s", sequence[i-1], sequence[i])
	}
}

func TestRunTwiceIsNoop(t *testing.T) {
	ctx := context.Background()
	fake, client, summary := provisioned(t, "Test")
	d, _ := newDecommissioner(t, client, nil)

	_, err := d.Run(ctx, summary.VPCID)
	require.NoError(t, err)
	mutations := len(fake.Calls())

	report, err := d.Run(ctx, summary.VPCID)
	require.NoError(t, err)
	assert.Empty(t, report.Actions)

	for _, c := range fake.Calls()[mutations:] {
		assert.True(t, strings.HasPrefix(c, "Describe"), "second run called %s", c)
	}
}

func TestAttachedAddressIsKept(t *testing.T) {
	ctx := context.Background()
	fake, client, summary := provisioned(t, "Test")

	attached := fake.SeedAddress(map[string]string{topology.TagVPCID: summary.VPCID}, "eni-0123")
	unrelated := fake.SeedAddress(nil, "")

	d, _ := newDecommissioner(t, client, nil)
	report, err := d.Run(ctx, summary.VPCID)
	require.NoError(t, err)

	assert.Equal(t, []string{attached}, actions(report, topology.KindElasticIP, ActionSkipped))
	assert.NotContains(t, actions(report, topology.KindElasticIP, ActionReleased), unrelated)
	assert.Equal(t, 2, fake.Live()["elastic-ip"])
	assert.Equal(t, 1, fake.CallCount("ReleaseAddress"))
}

func TestNatGatewayPolling(t *testing.T) {
	ctx := context.Background()

	t.Run("waits until deleted", func(t *testing.T) {
		fake, client, summary := provisioned(t, "Test")
		fake.NatDeletePolls = 4
		d, out := newDecommissioner(t, client, nil)

		_, err := d.Run(ctx, summary.VPCID)
		require.NoError(t, err)
		assert.Contains(t, strings.Join(out.lines, "\n"), "Waiting for NAT gateways to be deleted (check 3")
	})

	t.Run("gives up", func(t *testing.T) {
		fake, client, summary := provisioned(t, "Test")
		fake.NatDeletePolls = 1000
		d, _ := newDecommissioner(t, client, func(o *Options) {
			o.NatDeletePoll = append(o.NatDeletePoll, retry.WithMaxRetries(3))
		})

		_, err := d.Run(ctx, summary.VPCID)
		require.ErrorIs(t, err, ErrNatGatewaysStillDeleting)
		assert.ErrorIs(t, err, retry.ErrExhausted)
		assert.Zero(t, fake.CallCount("ReleaseAddress"))
		assert.Zero(t, fake.CallCount("DeleteSubnet"))
		assert.Equal(t, 6, fake.Live()["subnet"])
	})

	t.Run("already deleting", func(t *testing.T) {
		fake, client, summary := provisioned(t, "Test")
		fake.NatDeletePolls = 2
		require.NoError(t, client.DeleteNatGateway(ctx, summary.NatGatewayID))

		d, _ := newDecommissioner(t, client, nil)
		report, err := d.Run(ctx, summary.VPCID)
		require.NoError(t, err)

		assert.Equal(t, 1, fake.CallCount("DeleteNatGateway"))
		require.NotEmpty(t, report.Actions)
		assert.Equal(t, "already deleting", report.Actions[0].Reason)
	})
}

func TestDryRun(t *testing.T) {
	ctx := context.Background()
	fake, client, summary := provisioned(t, "Test")
	before := fake.Live()
	mutations := len(fake.Calls())

	d, out := newDecommissioner(t, client, func(o *Options) { o.DryRun = true })
	report, err := d.Run(ctx, summary.VPCID)
	require.NoError(t, err)

	assert.True(t, report.DryRun)
	assert.Equal(t, before, fake.Live())
	for _, c := range fake.Calls()[mutations:] {
		assert.True(t, strings.HasPrefix(c, "Describe"), "dry run called %s", c)
	}

	assert.Zero(t, report.Count(ActionDeleted))
	assert.Equal(t, 1, report.Count(ActionSkipped))
	// nat, eip, 6 subnets, 2 route tables, igw detach + delete, vpc
	assert.Equal(t, 13, report.Count(ActionPlanned))
	assert.Contains(t, strings.Join(out.lines, "\n"), "Would remove elastic-ip")
}

func TestRunErrors(t *testing.T) {
	ctx := context.Background()

	t.Run("missing VPC ID", func(t *testing.T) {
		d, _ := newDecommissioner(t, aws.NewClientWithAPI("ap-south-1", awsfake.New(), nil), nil)
		_, err := d.Run(ctx, "")
		assert.ErrorIs(t, err, ErrVPCIDRequired)
	})

	t.Run("discovery failure aborts", func(t *testing.T) {
		fake, client, summary := provisioned(t, "Test")
		fake.FailOn["DescribeSubnets"] = awsfake.APIError("RequestLimitExceeded", "slow down")

		d, _ := newDecommissioner(t, client, nil)
		report, err := d.Run(ctx, summary.VPCID)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to remove subnet")
		assert.Contains(t, err.Error(), "RequestLimitExceeded")
		assert.Equal(t, 1, report.Count(ActionReleased))
		assert.Zero(t, fake.CallCount("DeleteVpc"))
	})

	t.Run("foreign dependency", func(t *testing.T) {
		fake, client, summary := provisioned(t, "Test")
		fake.FailOn["DeleteVpc"] = awsfake.APIError("DependencyViolation", "has dependencies")

		d, _ := newDecommissioner(t, client, nil)
		_, err := d.Run(ctx, summary.VPCID)
		require.Error(t, err)
		assert.True(t, aws.IsDependencyViolation(err))
		assert.Contains(t, err.Error(), "dependencies stratus did not create")
	})

	t.Run("unknown VPC", func(t *testing.T) {
		client := aws.NewClientWithAPI("ap-south-1", awsfake.New(), nil)
		d, _ := newDecommissioner(t, client, nil)

		report, err := d.Run(ctx, "vpc-doesnotexist")
		require.NoError(t, err)
		assert.Empty(t, report.Actions)
	})
}
