package aws

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vietdv277/stratus/internal/aws/awsfake"
	"github.com/vietdv277/stratus/internal/retry"
	"github.com/vietdv277/stratus/internal/topology"
)

func newTestClient(t *testing.T) (*Client, *awsfake.EC2) {
	t.Helper()
	fake := awsfake.New()
	return NewClientWithAPI("ap-south-1", fake, awsfake.NewSTS()), fake
}

// buildNetwork creates a VPC with an attached gateway and one public subnet.
func buildNetwork(t *testing.T, c *Client) (vpcID, igwID, subnetID string) {
	t.Helper()
	ctx := context.Background()

	vpcID, err := c.CreateVPC(ctx, "10.0.0.0/16", topology.Tags("dev", topology.VPCName("dev"), ""))
	require.NoError(t, err)
	igwID, err = c.CreateInternetGateway(ctx, nil)
	require.NoError(t, err)
	require.NoError(t, c.AttachInternetGateway(ctx, igwID, vpcID))
	subnet, err := c.CreateSubnet(ctx, vpcID, "10.0.1.0/24", "ap-south-1a", nil)
	require.NoError(t, err)
	return vpcID, igwID, subnet.ID
}

func TestCreateVPCAndEnableDNS(t *testing.T) {
	ctx := context.Background()
	c, fake := newTestClient(t)

	vpcID, err := c.CreateVPC(ctx, "10.0.0.0/16", topology.Tags("dev", "dev-VPC", ""))
	require.NoError(t, err)
	require.NoError(t, c.EnableVPCDNS(ctx, vpcID))

	hostnames, support := fake.DNS(vpcID)
	assert.True(t, hostnames)
	assert.True(t, support)
	assert.Equal(t, 2, fake.CallCount("ModifyVpcAttribute"))

	vpc, err := c.DescribeVPC(ctx, vpcID)
	require.NoError(t, err)
	require.NotNil(t, vpc)
	assert.Equal(t, "dev-VPC", vpc.Name)
	assert.Equal(t, "10.0.0.0/16", vpc.CIDR)
}

func TestDescribeVPCMissing(t *testing.T) {
	c, _ := newTestClient(t)

	vpc, err := c.DescribeVPC(context.Background(), "vpc-missing")
	require.NoError(t, err)
	assert.Nil(t, vpc)
}

func TestListAvailabilityZones(t *testing.T) {
	c, fake := newTestClient(t)
	fake.Zones = []string{"ap-south-1a", "ap-south-1b"}

	zones, err := c.ListAvailabilityZones(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"ap-south-1a", "ap-south-1b"}, zones)
}

func TestCreateSubnetAndMapPublicIP(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestClient(t)
	vpcID, _, subnetID := buildNetwork(t, c)

	require.NoError(t, c.EnableMapPublicIP(ctx, subnetID))

	subnets, err := c.ListSubnets(ctx, vpcID)
	require.NoError(t, err)
	require.Len(t, subnets, 1)
	assert.True(t, subnets[0].Public)
	assert.Equal(t, "ap-south-1a", subnets[0].AZ)
	assert.Equal(t, 251, subnets[0].AvailableIPs)
}

func TestNatGatewayWait(t *testing.T) {
	ctx := context.Background()

	t.Run("available", func(t *testing.T) {
		c, _ := newTestClient(t)
		_, _, subnetID := buildNetwork(t, c)
		eip, err := c.AllocateAddress(ctx, map[string]string{topology.TagName: "dev-NAT-EIP"})
		require.NoError(t, err)
		assert.Equal(t, "dev-NAT-EIP", eip.Name)

		natID, err := c.CreateNatGateway(ctx, subnetID, eip.AllocationID, nil)
		require.NoError(t, err)
		require.NoError(t, c.WaitNatGatewayAvailable(ctx, natID, time.Minute))
	})

	t.Run("failed", func(t *testing.T) {
		c, fake := newTestClient(t)
		fake.FailNatGateways = true
		_, _, subnetID := buildNetwork(t, c)
		eip, err := c.AllocateAddress(ctx, nil)
		require.NoError(t, err)

		natID, err := c.CreateNatGateway(ctx, subnetID, eip.AllocationID, nil)
		require.NoError(t, err)

		err = c.WaitNatGatewayAvailable(ctx, natID, time.Minute)
		require.ErrorIs(t, err, ErrNatGatewayFailed)
		assert.Contains(t, err.Error(), "insufficient free addresses")
	})
}

func TestListAddressesDeduplicates(t *testing.T) {
	ctx := context.Background()
	c, fake := newTestClient(t)

	tagged := fake.SeedAddress(map[string]string{topology.TagVPCID: "vpc-1"}, "")
	untagged := fake.SeedAddress(nil, "")
	fake.SeedAddress(map[string]string{topology.TagVPCID: "vpc-2"}, "")

	addrs, err := c.ListAddresses(ctx, "vpc-1", []string{tagged, untagged})
	require.NoError(t, err)

	var ids []string
	for _, a := range addrs {
		ids = append(ids, a.AllocationID)
	}
	assert.ElementsMatch(t, []string{tagged, untagged}, ids)
}

func TestCreateRouteTargets(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestClient(t)
	vpcID, igwID, subnetID := buildNetwork(t, c)

	rtID, err := c.CreateRouteTable(ctx, vpcID, map[string]string{topology.TagName: "dev-Public-RT"})
	require.NoError(t, err)

	require.NoError(t, c.CreateRoute(ctx, rtID, topology.DefaultRoute, igwID))
	assert.ErrorContains(t, c.CreateRoute(ctx, rtID, "10.9.0.0/16", "pcx-123"), "unsupported route target")

	assocID, err := c.AssociateRouteTable(ctx, rtID, subnetID)
	require.NoError(t, err)
	assert.NotEmpty(t, assocID)

	tables, err := c.ListRouteTables(ctx, vpcID)
	require.NoError(t, err)
	require.Len(t, tables, 2)

	var public bool
	for _, rt := range tables {
		if rt.ID != rtID {
			assert.True(t, rt.Main())
			continue
		}
		public = true
		assert.Equal(t, "dev-Public-RT", rt.Name)
		require.Len(t, rt.Routes, 2)
		assert.True(t, rt.Routes[0].Local())
		assert.Equal(t, igwID, rt.Routes[1].Target)
		require.Len(t, rt.Associations, 1)
		assert.Equal(t, subnetID, rt.Associations[0].SubnetID)
	}
	assert.True(t, public)
}

func TestDeletesAreIdempotent(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestClient(t)
	vpcID, igwID, subnetID := buildNetwork(t, c)

	require.NoError(t, c.DetachInternetGateway(ctx, igwID, vpcID))
	require.NoError(t, c.DetachInternetGateway(ctx, igwID, vpcID))
	require.NoError(t, c.DeleteInternetGateway(ctx, igwID))
	require.NoError(t, c.DeleteInternetGateway(ctx, igwID))
	require.NoError(t, c.DeleteSubnet(ctx, subnetID))
	require.NoError(t, c.DeleteSubnet(ctx, subnetID))
	require.NoError(t, c.DeleteVPC(ctx, vpcID))
	require.NoError(t, c.DeleteVPC(ctx, vpcID))
	require.NoError(t, c.ReleaseAddress(ctx, "eipalloc-missing"))
	require.NoError(t, c.DeleteNatGateway(ctx, "nat-missing"))
	require.NoError(t, c.DeleteRouteTable(ctx, "rtb-missing"))
}

func TestDeleteVPCWithDependencies(t *testing.T) {
	c, _ := newTestClient(t)
	vpcID, _, _ := buildNetwork(t, c)

	err := c.DeleteVPC(context.Background(), vpcID)
	require.Error(t, err)
	assert.True(t, IsDependencyViolation(err))
}

func TestGetCallerIdentity(t *testing.T) {
	c, _ := newTestClient(t)

	id, err := c.GetCallerIdentity(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "123456789012", id.Account)
}

func TestWaitNatGatewaysDeleted(t *testing.T) {
	ctx := context.Background()

	setup := func(t *testing.T, polls int) (*Client, string) {
		c, fake := newTestClient(t)
		fake.NatDeletePolls = polls
		_, _, subnetID := buildNetwork(t, c)
		eip, err := c.AllocateAddress(ctx, nil)
		require.NoError(t, err)
		natID, err := c.CreateNatGateway(ctx, subnetID, eip.AllocationID, nil)
		require.NoError(t, err)
		require.NoError(t, c.WaitNatGatewayAvailable(ctx, natID, time.Minute))
		require.NoError(t, c.DeleteNatGateway(ctx, natID))
		return c, natID
	}

	t.Run("gone after a few polls", func(t *testing.T) {
		c, natID := setup(t, 3)
		var retries int
		err := c.WaitNatGatewaysDeleted(ctx, []string{natID},
			retry.WithInitialDelay(time.Millisecond),
			retry.WithMaxDelay(time.Millisecond),
			retry.WithOnRetry(func(int, time.Duration, error) { retries++ }),
		)
		require.NoError(t, err)
		assert.Equal(t, 2, retries)
	})

	t.Run("exhausted", func(t *testing.T) {
		c, natID := setup(t, 100)
		err := c.WaitNatGatewaysDeleted(ctx, []string{natID},
			retry.WithMaxRetries(2),
			retry.WithInitialDelay(time.Millisecond),
		)
		require.ErrorIs(t, err, ErrNatGatewaysStillDeleting)
		assert.ErrorIs(t, err, retry.ErrExhausted)
	})

	t.Run("nothing to wait for", func(t *testing.T) {
		c, _ := newTestClient(t)
		assert.NoError(t, c.WaitNatGatewaysDeleted(ctx, nil))
	})
}
