package awsfake

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func code(t *testing.T, err error) string {
	t.Helper()
	var apiErr smithy.APIError
	require.True(t, errors.As(err, &apiErr), "expected API error, got %v", err)
	return apiErr.ErrorCode()
}

func TestCreateVpcAddsMainRouteTable(t *testing.T) {
	ctx := context.Background()
	f := New()

	out, err := f.CreateVpc(ctx, &ec2.CreateVpcInput{CidrBlock: aws.String("10.0.0.0/16")})
	require.NoError(t, err)
	vpcID := aws.ToString(out.Vpc.VpcId)

	rts, err := f.DescribeRouteTables(ctx, &ec2.DescribeRouteTablesInput{
		Filters: []ec2types.Filter{{Name: aws.String("vpc-id"), Values: []string{vpcID}}},
	})
	require.NoError(t, err)
	require.Len(t, rts.RouteTables, 1)
	assert.True(t, aws.ToBool(rts.RouteTables[0].Associations[0].Main))
	assert.Equal(t, "local", aws.ToString(rts.RouteTables[0].Routes[0].GatewayId))

	_, err = f.DeleteRouteTable(ctx, &ec2.DeleteRouteTableInput{RouteTableId: rts.RouteTables[0].RouteTableId})
	assert.Equal(t, "DependencyViolation", code(t, err))

	_, err = f.DeleteVpc(ctx, &ec2.DeleteVpcInput{VpcId: aws.String(vpcID)})
	require.NoError(t, err)
	assert.Equal(t, 0, f.Live()["route-table"])
}

func TestNatGatewayLifecycle(t *testing.T) {
	ctx := context.Background()
	f := New()
	f.NatDeletePolls = 2

	vpc, _ := f.CreateVpc(ctx, &ec2.CreateVpcInput{CidrBlock: aws.String("10.0.0.0/16")})
	igw, _ := f.CreateInternetGateway(ctx, &ec2.CreateInternetGatewayInput{})
	_, err := f.AttachInternetGateway(ctx, &ec2.AttachInternetGatewayInput{
		InternetGatewayId: igw.InternetGateway.InternetGatewayId,
		VpcId:             vpc.Vpc.VpcId,
	})
	require.NoError(t, err)
	subnet, err := f.CreateSubnet(ctx, &ec2.CreateSubnetInput{
		VpcId:            vpc.Vpc.VpcId,
		CidrBlock:        aws.String("10.0.1.0/24"),
		AvailabilityZone: aws.String("ap-south-1a"),
	})
	require.NoError(t, err)
	eip, _ := f.AllocateAddress(ctx, &ec2.AllocateAddressInput{Domain: ec2types.DomainTypeVpc})

	nat, err := f.CreateNatGateway(ctx, &ec2.CreateNatGatewayInput{
		SubnetId:     subnet.Subnet.SubnetId,
		AllocationId: eip.AllocationId,
	})
	require.NoError(t, err)
	assert.Equal(t, ec2types.NatGatewayStatePending, nat.NatGateway.State)

	describe := func() ec2types.NatGatewayState {
		out, err := f.DescribeNatGateways(ctx, &ec2.DescribeNatGatewaysInput{NatGatewayIds: []string{aws.ToString(nat.NatGateway.NatGatewayId)}})
		require.NoError(t, err)
		return out.NatGateways[0].State
	}
	assert.Equal(t, ec2types.NatGatewayStateAvailable, describe())

	_, err = f.ReleaseAddress(ctx, &ec2.ReleaseAddressInput{AllocationId: eip.AllocationId})
	assert.Equal(t, "InvalidIPAddress.InUse", code(t, err))
	_, err = f.DeleteSubnet(ctx, &ec2.DeleteSubnetInput{SubnetId: subnet.Subnet.SubnetId})
	assert.Equal(t, "DependencyViolation", code(t, err))

	_, err = f.DeleteNatGateway(ctx, &ec2.DeleteNatGatewayInput{NatGatewayId: nat.NatGateway.NatGatewayId})
	require.NoError(t, err)
	assert.Equal(t, ec2types.NatGatewayStateDeleting, describe())
	assert.Equal(t, ec2types.NatGatewayStateDeleted, describe())

	_, err = f.ReleaseAddress(ctx, &ec2.ReleaseAddressInput{AllocationId: eip.AllocationId})
	require.NoError(t, err)
	_, err = f.DeleteSubnet(ctx, &ec2.DeleteSubnetInput{SubnetId: subnet.Subnet.SubnetId})
	require.NoError(t, err)
}

func TestNatGatewayFailsWithoutInternetGateway(t *testing.T) {
	ctx := context.Background()
	f := New()

	vpc, _ := f.CreateVpc(ctx, &ec2.CreateVpcInput{CidrBlock: aws.String("10.0.0.0/16")})
	subnet, _ := f.CreateSubnet(ctx, &ec2.CreateSubnetInput{
		VpcId:            vpc.Vpc.VpcId,
		CidrBlock:        aws.String("10.0.1.0/24"),
		AvailabilityZone: aws.String("ap-south-1a"),
	})
	eip, _ := f.AllocateAddress(ctx, &ec2.AllocateAddressInput{Domain: ec2types.DomainTypeVpc})
	nat, err := f.CreateNatGateway(ctx, &ec2.CreateNatGatewayInput{
		SubnetId:     subnet.Subnet.SubnetId,
		AllocationId: eip.AllocationId,
	})
	require.NoError(t, err)

	out, err := f.DescribeNatGateways(ctx, &ec2.DescribeNatGatewaysInput{NatGatewayIds: []string{aws.ToString(nat.NatGateway.NatGatewayId)}})
	require.NoError(t, err)
	assert.Equal(t, ec2types.NatGatewayStateFailed, out.NatGateways[0].State)
	assert.Contains(t, aws.ToString(out.NatGateways[0].FailureMessage), "no Internet gateway")
}

func TestSubnetValidation(t *testing.T) {
	ctx := context.Background()
	f := New()
	vpc, _ := f.CreateVpc(ctx, &ec2.CreateVpcInput{CidrBlock: aws.String("10.0.0.0/16")})

	tests := []struct {
		name string
		cidr string
		zone string
		code string
	}{
		{"outside vpc", "10.1.0.0/24", "ap-south-1a", "InvalidSubnet.Range"},
		{"unknown zone", "10.0.9.0/24", "us-east-1a", "InvalidParameterValue"},
		{"overlap", "10.0.1.128/25", "ap-south-1a", "InvalidSubnet.Conflict"},
	}

	_, err := f.CreateSubnet(ctx, &ec2.CreateSubnetInput{
		VpcId: vpc.Vpc.VpcId, CidrBlock: aws.String("10.0.1.0/24"), AvailabilityZone: aws.String("ap-south-1a"),
	})
	require.NoError(t, err)

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.CreateSubnet(ctx, &ec2.CreateSubnetInput{
				VpcId: vpc.Vpc.VpcId, CidrBlock: aws.String(tt.cidr), AvailabilityZone: aws.String(tt.zone),
			})
			assert.Equal(t, tt.code, code(t, err))
		})
	}
}

func TestFailOnInjectsError(t *testing.T) {
	f := New()
	f.FailOn["CreateVpc"] = APIError("UnauthorizedOperation", "denied")

	_, err := f.CreateVpc(context.Background(), &ec2.CreateVpcInput{CidrBlock: aws.String("10.0.0.0/16")})
	assert.Equal(t, "UnauthorizedOperation", code(t, err))
	assert.Equal(t, []string{"CreateVpc"}, f.Calls())
	assert.Equal(t, 0, f.Live()["vpc"])
}

func TestUnknownFilterIsRejected(t *testing.T) {
	f := New()
	_, err := f.DescribeVpcs(context.Background(), &ec2.DescribeVpcsInput{
		Filters: []ec2types.Filter{{Name: aws.String("cidr-blok"), Values: []string{"x"}}},
	})
	assert.Equal(t, "InvalidParameterValue", code(t, err))
}
