package topology

import (
	"net/netip"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNames(t *testing.T) {
	t.Parallel()
	tests := []struct {
		got  string
		want string
	}{
		{VPCName("Production"), "Production-VPC"},
		{InternetGatewayName("Production"), "Production-IGW"},
		{SubnetName("Test", TierPublic, 1), "Test-Public-Subnet-AZ1"},
		{SubnetName("Test", TierPrivate, 3), "Test-Private-Subnet-AZ3"},
		{ElasticIPName("Test"), "Test-NAT-EIP"},
		{NatGatewayName("Test"), "Test-NAT"},
		{RouteTableName("Test", TierPublic), "Test-Public-RT"},
		{RouteTableName("Test", TierPrivate), "Test-Private-RT"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.got)
	}
}

func TestTags(t *testing.T) {
	t.Parallel()
	assert.Equal(t, map[string]string{
		TagName:        "Test-VPC",
		TagEnvironment: "Test",
	}, Tags("Test", "Test-VPC", ""))

	assert.Equal(t, "vpc-1", Tags("Test", "Test-IGW", "vpc-1")[TagVPCID])
}

func TestSubnetPools_DisjointAndSized(t *testing.T) {
	t.Parallel()
	require.Len(t, PublicSubnetCIDRs, ZoneCount)
	require.Len(t, PrivateSubnetCIDRs, ZoneCount)

	all := append(append([]string(nil), SubnetCIDRs(TierPublic)...), SubnetCIDRs(TierPrivate)...)
	for i, a := range all {
		pa := netip.MustParsePrefix(a)
		for _, b := range all[i+1:] {
			assert.False(t, pa.Overlaps(netip.MustParsePrefix(b)), "%s overlaps %s", a, b)
		}
	}
}
