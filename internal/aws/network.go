package aws

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"

	"github.com/vietdv277/stratus/internal/retry"
	"github.com/vietdv277/stratus/internal/topology"
	pkgtypes "github.com/vietdv277/stratus/pkg/types"
)

// CreateVPC creates a VPC and returns its ID
func (c *Client) CreateVPC(ctx context.Context, cidr string, tags map[string]string) (string, error) {
	output, err := c.EC2.CreateVpc(ctx, &ec2.CreateVpcInput{
		CidrBlock:         aws.String(cidr),
		TagSpecifications: tagSpecifications(ec2types.ResourceTypeVpc, tags),
	})
	if err != nil {
		return "", err
	}
	return deref(output.Vpc.VpcId), nil
}

// EnableVPCDNS turns on DNS hostnames and DNS support. EC2 accepts only one
// attribute per ModifyVpcAttribute call.
func (c *Client) EnableVPCDNS(ctx context.Context, vpcID string) error {
	enabled := &ec2types.AttributeBooleanValue{Value: aws.Bool(true)}

	if _, err := c.EC2.ModifyVpcAttribute(ctx, &ec2.ModifyVpcAttributeInput{
		VpcId:              aws.String(vpcID),
		EnableDnsHostnames: enabled,
	}); err != nil {
		return fmt.Errorf("failed to enable DNS hostnames: %w", err)
	}

	if _, err := c.EC2.ModifyVpcAttribute(ctx, &ec2.ModifyVpcAttributeInput{
		VpcId:            aws.String(vpcID),
		EnableDnsSupport: enabled,
	}); err != nil {
		return fmt.Errorf("failed to enable DNS support: %w", err)
	}

	return nil
}

// DeleteVPC deletes a VPC. A VPC that is already gone is not an error.
func (c *Client) DeleteVPC(ctx context.Context, vpcID string) error {
	_, err := c.EC2.DeleteVpc(ctx, &ec2.DeleteVpcInput{VpcId: aws.String(vpcID)})
	return ignoreNotFound(err)
}

// CreateInternetGateway creates an internet gateway and returns its ID
func (c *Client) CreateInternetGateway(ctx context.Context, tags map[string]string) (string, error) {
	output, err := c.EC2.CreateInternetGateway(ctx, &ec2.CreateInternetGatewayInput{
		TagSpecifications: tagSpecifications(ec2types.ResourceTypeInternetGateway, tags),
	})
	if err != nil {
		return "", err
	}
	return deref(output.InternetGateway.InternetGatewayId), nil
}

// AttachInternetGateway attaches an internet gateway to a VPC
func (c *Client) AttachInternetGateway(ctx context.Context, igwID, vpcID string) error {
	_, err := c.EC2.AttachInternetGateway(ctx, &ec2.AttachInternetGatewayInput{
		InternetGatewayId: aws.String(igwID),
		VpcId:             aws.String(vpcID),
	})
	return err
}

// DetachInternetGateway detaches an internet gateway from a VPC
func (c *Client) DetachInternetGateway(ctx context.Context, igwID, vpcID string) error {
	_, err := c.EC2.DetachInternetGateway(ctx, &ec2.DetachInternetGatewayInput{
		InternetGatewayId: aws.String(igwID),
		VpcId:             aws.String(vpcID),
	})
	if isNotAttached(err) {
		return nil
	}
	return ignoreNotFound(err)
}

// DeleteInternetGateway deletes a detached internet gateway
func (c *Client) DeleteInternetGateway(ctx context.Context, igwID string) error {
	_, err := c.EC2.DeleteInternetGateway(ctx, &ec2.DeleteInternetGatewayInput{
		InternetGatewayId: aws.String(igwID),
	})
	return ignoreNotFound(err)
}

// CreateSubnet creates a subnet in one availability zone
func (c *Client) CreateSubnet(ctx context.Context, vpcID, cidr, zone string, tags map[string]string) (pkgtypes.Subnet, error) {
	output, err := c.EC2.CreateSubnet(ctx, &ec2.CreateSubnetInput{
		VpcId:             aws.String(vpcID),
		CidrBlock:         aws.String(cidr),
		AvailabilityZone:  aws.String(zone),
		TagSpecifications: tagSpecifications(ec2types.ResourceTypeSubnet, tags),
	})
	if err != nil {
		return pkgtypes.Subnet{}, err
	}
	return toSubnet(*output.Subnet), nil
}

// EnableMapPublicIP makes instances launched in the subnet get a public IP
func (c *Client) EnableMapPublicIP(ctx context.Context, subnetID string) error {
	_, err := c.EC2.ModifySubnetAttribute(ctx, &ec2.ModifySubnetAttributeInput{
		SubnetId:            aws.String(subnetID),
		MapPublicIpOnLaunch: &ec2types.AttributeBooleanValue{Value: aws.Bool(true)},
	})
	return err
}

// DeleteSubnet deletes a subnet
func (c *Client) DeleteSubnet(ctx context.Context, subnetID string) error {
	_, err := c.EC2.DeleteSubnet(ctx, &ec2.DeleteSubnetInput{SubnetId: aws.String(subnetID)})
	return ignoreNotFound(err)
}

// AllocateAddress allocates a VPC Elastic IP
func (c *Client) AllocateAddress(ctx context.Context, tags map[string]string) (pkgtypes.Address, error) {
	output, err := c.EC2.AllocateAddress(ctx, &ec2.AllocateAddressInput{
		Domain:            ec2types.DomainTypeVpc,
		TagSpecifications: tagSpecifications(ec2types.ResourceTypeElasticIp, tags),
	})
	if err != nil {
		return pkgtypes.Address{}, err
	}
	return pkgtypes.Address{
		AllocationID: deref(output.AllocationId),
		PublicIP:     deref(output.PublicIp),
		Name:         tags[topology.TagName],
	}, nil
}

// ReleaseAddress releases an Elastic IP
func (c *Client) ReleaseAddress(ctx context.Context, allocationID string) error {
	_, err := c.EC2.ReleaseAddress(ctx, &ec2.ReleaseAddressInput{
		AllocationId: aws.String(allocationID),
	})
	return ignoreNotFound(err)
}

// CreateNatGateway creates a public NAT gateway and returns its ID without
// waiting for it to become available
func (c *Client) CreateNatGateway(ctx context.Context, subnetID, allocationID string, tags map[string]string) (string, error) {
	output, err := c.EC2.CreateNatGateway(ctx, &ec2.CreateNatGatewayInput{
		SubnetId:          aws.String(subnetID),
		AllocationId:      aws.String(allocationID),
		TagSpecifications: tagSpecifications(ec2types.ResourceTypeNatgateway, tags),
	})
	if err != nil {
		return "", err
	}
	return deref(output.NatGateway.NatGatewayId), nil
}

// WaitNatGatewayAvailable blocks until the NAT gateway is available, fails,
// or maxWait elapses
func (c *Client) WaitNatGatewayAvailable(ctx context.Context, natID string, maxWait time.Duration) error {
	waiter := ec2.NewNatGatewayAvailableWaiter(c.EC2)

	err := waiter.Wait(ctx, &ec2.DescribeNatGatewaysInput{
		NatGatewayIds: []string{natID},
	}, maxWait)
	if err == nil {
		return nil
	}

	// The waiter only says "failure state"; fetch the reason.
	if gateways, derr := c.DescribeNatGateways(ctx, []string{natID}); derr == nil {
		for _, g := range gateways {
			if g.State == string(ec2types.NatGatewayStateFailed) {
				return fmt.Errorf("%w: %s: %s", ErrNatGatewayFailed, natID, g.FailureMessage)
			}
		}
	}

	return fmt.Errorf("NAT gateway %s did not become available: %w", natID, err)
}

// DeleteNatGateway requests deletion of a NAT gateway. Deletion completes
// asynchronously.
func (c *Client) DeleteNatGateway(ctx context.Context, natID string) error {
	_, err := c.EC2.DeleteNatGateway(ctx, &ec2.DeleteNatGatewayInput{
		NatGatewayId: aws.String(natID),
	})
	return ignoreNotFound(err)
}

// WaitNatGatewaysDeleted polls until every listed NAT gateway is deleted or
// no longer known to EC2. Polling backs off exponentially; when the retries
// run out the error wraps ErrNatGatewaysStillDeleting.
func (c *Client) WaitNatGatewaysDeleted(ctx context.Context, ids []string, opts ...retry.Option) error {
	if len(ids) == 0 {
		return nil
	}

	return retry.WithExponentialBackoff(ctx, func(ctx context.Context) error {
		gateways, err := c.DescribeNatGateways(ctx, ids)
		if err != nil {
			return retry.Fatal(fmt.Errorf("failed to describe NAT gateways: %w", err))
		}

		var pending []string
		for _, g := range gateways {
			if g.State != string(ec2types.NatGatewayStateDeleted) {
				pending = append(pending, g.ID+" ("+g.State+")")
			}
		}
		if len(pending) > 0 {
			return fmt.Errorf("%w: %s", ErrNatGatewaysStillDeleting, strings.Join(pending, ", "))
		}
		return nil
	}, opts...)
}

// CreateRouteTable creates a route table in a VPC and returns its ID
func (c *Client) CreateRouteTable(ctx context.Context, vpcID string, tags map[string]string) (string, error) {
	output, err := c.EC2.CreateRouteTable(ctx, &ec2.CreateRouteTableInput{
		VpcId:             aws.String(vpcID),
		TagSpecifications: tagSpecifications(ec2types.ResourceTypeRouteTable, tags),
	})
	if err != nil {
		return "", err
	}
	return deref(output.RouteTable.RouteTableId), nil
}

// CreateRoute adds a route. The target kind is taken from the ID prefix:
// igw-* for internet gateways, nat-* for NAT gateways.
func (c *Client) CreateRoute(ctx context.Context, routeTableID, destination, target string) error {
	input := &ec2.CreateRouteInput{
		RouteTableId:         aws.String(routeTableID),
		DestinationCidrBlock: aws.String(destination),
	}

	switch {
	case strings.HasPrefix(target, "igw-"):
		input.GatewayId = aws.String(target)
	case strings.HasPrefix(target, "nat-"):
		input.NatGatewayId = aws.String(target)
	default:
		return fmt.Errorf("unsupported route target %q", target)
	}

	_, err := c.EC2.CreateRoute(ctx, input)
	return err
}

// AssociateRouteTable associates a route table with a subnet and returns
// the association ID
func (c *Client) AssociateRouteTable(ctx context.Context, routeTableID, subnetID string) (string, error) {
	output, err := c.EC2.AssociateRouteTable(ctx, &ec2.AssociateRouteTableInput{
		RouteTableId: aws.String(routeTableID),
		SubnetId:     aws.String(subnetID),
	})
	if err != nil {
		return "", err
	}
	return deref(output.AssociationId), nil
}

// DisassociateRouteTable removes a subnet association
func (c *Client) DisassociateRouteTable(ctx context.Context, associationID string) error {
	_, err := c.EC2.DisassociateRouteTable(ctx, &ec2.DisassociateRouteTableInput{
		AssociationId: aws.String(associationID),
	})
	return ignoreNotFound(err)
}

// DeleteRouteTable deletes a route table
func (c *Client) DeleteRouteTable(ctx context.Context, routeTableID string) error {
	_, err := c.EC2.DeleteRouteTable(ctx, &ec2.DeleteRouteTableInput{
		RouteTableId: aws.String(routeTableID),
	})
	return ignoreNotFound(err)
}

// tagSpecifications converts a tag map into a single EC2 tag specification
// with keys in sorted order
func tagSpecifications(resourceType ec2types.ResourceType, tags map[string]string) []ec2types.TagSpecification {
	if len(tags) == 0 {
		return nil
	}

	keys := make([]string, 0, len(tags))
	for k := range tags {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	spec := ec2types.TagSpecification{ResourceType: resourceType}
	for _, k := range keys {
		spec.Tags = append(spec.Tags, ec2types.Tag{
			Key:   aws.String(k),
			Value: aws.String(tags[k]),
		})
	}
	return []ec2types.TagSpecification{spec}
}

func ignoreNotFound(err error) error {
	if IsNotFound(err) {
		return nil
	}
	return err
}
