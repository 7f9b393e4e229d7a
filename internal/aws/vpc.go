package aws

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"

	"github.com/vietdv277/stratus/internal/topology"
	pkgtypes "github.com/vietdv277/stratus/pkg/types"
)

// ListVPCs returns all VPCs
func (c *Client) ListVPCs(ctx context.Context) ([]pkgtypes.VPC, error) {
	var vpcs []pkgtypes.VPC

	p := ec2.NewDescribeVpcsPaginator(c.EC2, &ec2.DescribeVpcsInput{})
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for _, v := range page.Vpcs {
			vpcs = append(vpcs, toVPC(v))
		}
	}

	return vpcs, nil
}

// DescribeVPC returns a specific VPC, or nil if it does not exist
func (c *Client) DescribeVPC(ctx context.Context, vpcID string) (*pkgtypes.VPC, error) {
	output, err := c.EC2.DescribeVpcs(ctx, &ec2.DescribeVpcsInput{
		VpcIds: []string{vpcID},
	})
	if err != nil {
		if IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}

	if len(output.Vpcs) == 0 {
		return nil, nil
	}

	vpc := toVPC(output.Vpcs[0])
	return &vpc, nil
}

// ListAvailabilityZones returns the names of available zones in provider order
func (c *Client) ListAvailabilityZones(ctx context.Context) ([]string, error) {
	output, err := c.EC2.DescribeAvailabilityZones(ctx, &ec2.DescribeAvailabilityZonesInput{
		Filters: []ec2types.Filter{vpcFilter("state", "available")},
	})
	if err != nil {
		return nil, err
	}

	zones := make([]string, 0, len(output.AvailabilityZones))
	for _, z := range output.AvailabilityZones {
		zones = append(zones, deref(z.ZoneName))
	}
	return zones, nil
}

// ListSubnets returns all subnets, optionally filtered by VPC ID
func (c *Client) ListSubnets(ctx context.Context, vpcID string) ([]pkgtypes.Subnet, error) {
	input := &ec2.DescribeSubnetsInput{}
	if vpcID != "" {
		input.Filters = []ec2types.Filter{vpcFilter("vpc-id", vpcID)}
	}

	var subnets []pkgtypes.Subnet
	p := ec2.NewDescribeSubnetsPaginator(c.EC2, input)
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			if IsNotFound(err) {
				return nil, nil
			}
			return nil, err
		}
		for _, s := range page.Subnets {
			subnets = append(subnets, toSubnet(s))
		}
	}

	return subnets, nil
}

// ListRouteTables returns the route tables of a VPC
func (c *Client) ListRouteTables(ctx context.Context, vpcID string) ([]pkgtypes.RouteTable, error) {
	var tables []pkgtypes.RouteTable

	p := ec2.NewDescribeRouteTablesPaginator(c.EC2, &ec2.DescribeRouteTablesInput{
		Filters: []ec2types.Filter{vpcFilter("vpc-id", vpcID)},
	})
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			if IsNotFound(err) {
				return nil, nil
			}
			return nil, err
		}
		for _, rt := range page.RouteTables {
			tables = append(tables, toRouteTable(rt))
		}
	}

	return tables, nil
}

// ListInternetGateways returns internet gateways attached to a VPC
func (c *Client) ListInternetGateways(ctx context.Context, vpcID string) ([]pkgtypes.InternetGateway, error) {
	var gateways []pkgtypes.InternetGateway

	p := ec2.NewDescribeInternetGatewaysPaginator(c.EC2, &ec2.DescribeInternetGatewaysInput{
		Filters: []ec2types.Filter{vpcFilter("attachment.vpc-id", vpcID)},
	})
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			if IsNotFound(err) {
				return nil, nil
			}
			return nil, err
		}
		for _, g := range page.InternetGateways {
			gateways = append(gateways, toInternetGateway(g))
		}
	}

	return gateways, nil
}

// ListNatGateways returns NAT gateways of a VPC, including ones being deleted
func (c *Client) ListNatGateways(ctx context.Context, vpcID string) ([]pkgtypes.NatGateway, error) {
	return c.describeNatGateways(ctx, vpcFilter("vpc-id", vpcID))
}

// DescribeNatGateways returns the current view of specific NAT gateways.
// Unknown IDs are dropped rather than reported as errors.
func (c *Client) DescribeNatGateways(ctx context.Context, ids []string) ([]pkgtypes.NatGateway, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	return c.describeNatGateways(ctx, vpcFilter("nat-gateway-id", ids...))
}

func (c *Client) describeNatGateways(ctx context.Context, filters ...ec2types.Filter) ([]pkgtypes.NatGateway, error) {
	var gateways []pkgtypes.NatGateway

	p := ec2.NewDescribeNatGatewaysPaginator(c.EC2, &ec2.DescribeNatGatewaysInput{
		Filter: filters,
	})
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			if IsNotFound(err) {
				return nil, nil
			}
			return nil, err
		}
		for _, g := range page.NatGateways {
			gateways = append(gateways, toNatGateway(g))
		}
	}

	return gateways, nil
}

// ListAddresses returns Elastic IPs tagged with the VPC ID, plus any of the
// given allocation IDs. Each address appears once.
func (c *Client) ListAddresses(ctx context.Context, vpcID string, allocationIDs []string) ([]pkgtypes.Address, error) {
	queries := [][]ec2types.Filter{
		{vpcFilter("tag:"+topology.TagVPCID, vpcID)},
	}
	if len(allocationIDs) > 0 {
		queries = append(queries, []ec2types.Filter{vpcFilter("allocation-id", allocationIDs...)})
	}

	seen := make(map[string]bool)
	var addresses []pkgtypes.Address
	for _, filters := range queries {
		output, err := c.EC2.DescribeAddresses(ctx, &ec2.DescribeAddressesInput{Filters: filters})
		if err != nil {
			if IsNotFound(err) {
				continue
			}
			return nil, fmt.Errorf("failed to describe addresses: %w", err)
		}
		for _, a := range output.Addresses {
			addr := toAddress(a)
			if seen[addr.AllocationID] {
				continue
			}
			seen[addr.AllocationID] = true
			addresses = append(addresses, addr)
		}
	}

	return addresses, nil
}

func vpcFilter(name string, values ...string) ec2types.Filter {
	return ec2types.Filter{
		Name:   aws.String(name),
		Values: values,
	}
}

// toVPC converts an EC2 VPC to our VPC type
func toVPC(v ec2types.Vpc) pkgtypes.VPC {
	return pkgtypes.VPC{
		ID:          deref(v.VpcId),
		Name:        nameTag(v.Tags),
		CIDR:        deref(v.CidrBlock),
		Environment: tagValue(v.Tags, topology.TagEnvironment),
		State:       string(v.State),
		IsDefault:   derefBool(v.IsDefault),
		OwnerID:     deref(v.OwnerId),
	}
}

// toSubnet converts an EC2 Subnet to our Subnet type
func toSubnet(s ec2types.Subnet) pkgtypes.Subnet {
	return pkgtypes.Subnet{
		ID:           deref(s.SubnetId),
		Name:         nameTag(s.Tags),
		VPCID:        deref(s.VpcId),
		CIDR:         deref(s.CidrBlock),
		AZ:           deref(s.AvailabilityZone),
		AvailableIPs: int(derefInt32(s.AvailableIpAddressCount)),
		State:        string(s.State),
		Public:       derefBool(s.MapPublicIpOnLaunch),
	}
}

func toRouteTable(rt ec2types.RouteTable) pkgtypes.RouteTable {
	table := pkgtypes.RouteTable{
		ID:    deref(rt.RouteTableId),
		Name:  nameTag(rt.Tags),
		VPCID: deref(rt.VpcId),
	}

	for _, r := range rt.Routes {
		target := deref(r.GatewayId)
		if target == "" {
			target = deref(r.NatGatewayId)
		}
		table.Routes = append(table.Routes, pkgtypes.Route{
			Destination: deref(r.DestinationCidrBlock),
			Target:      target,
			State:       string(r.State),
		})
	}

	for _, a := range rt.Associations {
		table.Associations = append(table.Associations, pkgtypes.RouteTableAssociation{
			ID:       deref(a.RouteTableAssociationId),
			SubnetID: deref(a.SubnetId),
			Main:     derefBool(a.Main),
		})
	}

	return table
}

func toInternetGateway(g ec2types.InternetGateway) pkgtypes.InternetGateway {
	gw := pkgtypes.InternetGateway{
		ID:   deref(g.InternetGatewayId),
		Name: nameTag(g.Tags),
	}
	for _, a := range g.Attachments {
		gw.Attachments = append(gw.Attachments, deref(a.VpcId))
	}
	return gw
}

func toNatGateway(g ec2types.NatGateway) pkgtypes.NatGateway {
	gw := pkgtypes.NatGateway{
		ID:             deref(g.NatGatewayId),
		Name:           nameTag(g.Tags),
		VPCID:          deref(g.VpcId),
		SubnetID:       deref(g.SubnetId),
		State:          string(g.State),
		FailureMessage: deref(g.FailureMessage),
	}
	for _, a := range g.NatGatewayAddresses {
		if id := deref(a.AllocationId); id != "" {
			gw.AllocationIDs = append(gw.AllocationIDs, id)
		}
	}
	return gw
}

func toAddress(a ec2types.Address) pkgtypes.Address {
	return pkgtypes.Address{
		AllocationID:       deref(a.AllocationId),
		PublicIP:           deref(a.PublicIp),
		Name:               nameTag(a.Tags),
		AssociationID:      deref(a.AssociationId),
		NetworkInterfaceID: deref(a.NetworkInterfaceId),
	}
}

// nameTag extracts the Name tag
func nameTag(tags []ec2types.Tag) string {
	return tagValue(tags, topology.TagName)
}

func tagValue(tags []ec2types.Tag, key string) string {
	for _, tag := range tags {
		if deref(tag.Key) == key {
			return deref(tag.Value)
		}
	}
	return ""
}

// deref safely dereferences a string pointer
func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// derefBool safely dereferences a bool pointer
func derefBool(b *bool) bool {
	if b == nil {
		return false
	}
	return *b
}

// derefInt32 safely dereferences an int32 pointer
func derefInt32(i *int32) int32 {
	if i == nil {
		return 0
	}
	return *i
}
