// Package awsfake is an in-memory EC2 control plane for tests. It keeps
// enough state to enforce the dependency rules EC2 applies on delete, so
// workflows that get the ordering wrong fail the same way they would live.
package awsfake

import (
	"context"
	"fmt"
	"net/netip"
	"sort"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/aws/smithy-go"
)

// DefaultZones are returned by DescribeAvailabilityZones unless Zones is set.
var DefaultZones = []string{"ap-south-1a", "ap-south-1b", "ap-south-1c"}

type natGateway struct {
	gw          ec2types.NatGateway
	deletePolls int
}

// EC2 implements the EC2 operations stratus uses.
type EC2 struct {
	// Zones returned by DescribeAvailabilityZones.
	Zones []string
	// FailOn injects an error for the named operation, e.g. "CreateRoute".
	FailOn map[string]error
	// FailNatGateways makes new NAT gateways land in the failed state.
	FailNatGateways bool
	// NatDeletePolls is how many DescribeNatGateways calls a deleting NAT
	// gateway survives before it reports deleted.
	NatDeletePolls int

	mu          sync.Mutex
	seq         int
	calls       []string
	vpcs        map[string]*ec2types.Vpc
	dns         map[string][2]bool
	igws        map[string]*ec2types.InternetGateway
	subnets     map[string]*ec2types.Subnet
	addresses   map[string]*ec2types.Address
	nats        map[string]*natGateway
	routeTables map[string]*ec2types.RouteTable
}

// New returns an empty control plane.
func New() *EC2 {
	return &EC2{
		Zones:          append([]string(nil), DefaultZones...),
		FailOn:         make(map[string]error),
		NatDeletePolls: 1,
		vpcs:           make(map[string]*ec2types.Vpc),
		dns:            make(map[string][2]bool),
		igws:           make(map[string]*ec2types.InternetGateway),
		subnets:        make(map[string]*ec2types.Subnet),
		addresses:      make(map[string]*ec2types.Address),
		nats:           make(map[string]*natGateway),
		routeTables:    make(map[string]*ec2types.RouteTable),
	}
}

// APIError builds the error shape EC2 returns.
func APIError(code, format string, args ...any) error {
	return &smithy.GenericAPIError{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Fault:   smithy.FaultClient,
	}
}

// Calls returns the names of the operations invoked so far, in order.
func (f *EC2) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

// CallCount returns how often an operation was invoked.
func (f *EC2) CallCount(op string) int {
	n := 0
	for _, c := range f.Calls() {
		if c == op {
			n++
		}
	}
	return n
}

// DNS reports the DNS hostnames and DNS support attributes of a VPC.
func (f *EC2) DNS(vpcID string) (hostnames, support bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	d := f.dns[vpcID]
	return d[0], d[1]
}

// Live counts resources that still exist, keyed by kind. NAT gateways in
// the deleted state do not count.
func (f *EC2) Live() map[string]int {
	f.mu.Lock()
	defer f.mu.Unlock()

	nats := 0
	for _, n := range f.nats {
		if n.gw.State != ec2types.NatGatewayStateDeleted {
			nats++
		}
	}
	return map[string]int{
		"vpc":              len(f.vpcs),
		"internet-gateway": len(f.igws),
		"subnet":           len(f.subnets),
		"elastic-ip":       len(f.addresses),
		"nat-gateway":      nats,
		"route-table":      len(f.routeTables),
	}
}

// SeedAddress adds an Elastic IP that stratus did not create.
func (f *EC2) SeedAddress(tags map[string]string, networkInterfaceID string) string {
	f.mu.Lock()
	defer f.mu.Unlock()

	id := f.nextID("eipalloc")
	addr := &ec2types.Address{
		AllocationId: aws.String(id),
		PublicIp:     aws.String(fmt.Sprintf("198.51.100.%d", f.seq%250+1)),
		Domain:       ec2types.DomainTypeVpc,
		Tags:         toTags(tags),
	}
	if networkInterfaceID != "" {
		addr.NetworkInterfaceId = aws.String(networkInterfaceID)
		addr.AssociationId = aws.String(f.nextID("eipassoc"))
	}
	f.addresses[id] = addr
	return id
}

func (f *EC2) nextID(prefix string) string {
	f.seq++
	return fmt.Sprintf("%s-%08x", prefix, f.seq)
}

// begin records the call and returns any injected failure.
func (f *EC2) begin(op string) error {
	f.calls = append(f.calls, op)
	if err, ok := f.FailOn[op]; ok && err != nil {
		return err
	}
	return nil
}

func (f *EC2) DescribeAvailabilityZones(_ context.Context, params *ec2.DescribeAvailabilityZonesInput, _ ...func(*ec2.Options)) (*ec2.DescribeAvailabilityZonesOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.begin("DescribeAvailabilityZones"); err != nil {
		return nil, err
	}

	out := &ec2.DescribeAvailabilityZonesOutput{}
	for _, z := range f.Zones {
		ok, err := matches(params.Filters, func(name string) ([]string, bool) {
			if name == "state" {
				return []string{"available"}, true
			}
			return nil, false
		})
		if err != nil {
			return nil, err
		}
		if ok {
			out.AvailabilityZones = append(out.AvailabilityZones, ec2types.AvailabilityZone{
				ZoneName: aws.String(z),
				State:    ec2types.AvailabilityZoneStateAvailable,
			})
		}
	}
	return out, nil
}

func (f *EC2) CreateVpc(_ context.Context, params *ec2.CreateVpcInput, _ ...func(*ec2.Options)) (*ec2.CreateVpcOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.begin("CreateVpc"); err != nil {
		return nil, err
	}

	cidr := aws.ToString(params.CidrBlock)
	if _, err := netip.ParsePrefix(cidr); err != nil {
		return nil, APIError("InvalidParameterValue", "invalid CIDR %q", cidr)
	}

	id := f.nextID("vpc")
	vpc := &ec2types.Vpc{
		VpcId:     aws.String(id),
		CidrBlock: aws.String(cidr),
		State:     ec2types.VpcStateAvailable,
		IsDefault: aws.Bool(false),
		OwnerId:   aws.String("123456789012"),
		Tags:      specTags(params.TagSpecifications),
	}
	f.vpcs[id] = vpc
	f.dns[id] = [2]bool{false, true}

	mainID := f.nextID("rtb")
	f.routeTables[mainID] = &ec2types.RouteTable{
		RouteTableId: aws.String(mainID),
		VpcId:        aws.String(id),
		Routes:       []ec2types.Route{localRoute(cidr)},
		Associations: []ec2types.RouteTableAssociation{{
			RouteTableAssociationId: aws.String(f.nextID("rtbassoc")),
			RouteTableId:            aws.String(mainID),
			Main:                    aws.Bool(true),
		}},
	}

	cp := *vpc
	return &ec2.CreateVpcOutput{Vpc: &cp}, nil
}

func (f *EC2) ModifyVpcAttribute(_ context.Context, params *ec2.ModifyVpcAttributeInput, _ ...func(*ec2.Options)) (*ec2.ModifyVpcAttributeOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.begin("ModifyVpcAttribute"); err != nil {
		return nil, err
	}

	id := aws.ToString(params.VpcId)
	if _, ok := f.vpcs[id]; !ok {
		return nil, APIError("InvalidVpcID.NotFound", "The vpc ID '%s' does not exist", id)
	}
	if params.EnableDnsHostnames != nil && params.EnableDnsSupport != nil {
		return nil, APIError("InvalidParameterCombination", "only one attribute per request")
	}

	d := f.dns[id]
	if params.EnableDnsHostnames != nil {
		d[0] = aws.ToBool(params.EnableDnsHostnames.Value)
	}
	if params.EnableDnsSupport != nil {
		d[1] = aws.ToBool(params.EnableDnsSupport.Value)
	}
	f.dns[id] = d
	return &ec2.ModifyVpcAttributeOutput{}, nil
}

func (f *EC2) DescribeVpcs(_ context.Context, params *ec2.DescribeVpcsInput, _ ...func(*ec2.Options)) (*ec2.DescribeVpcsOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.begin("DescribeVpcs"); err != nil {
		return nil, err
	}

	for _, id := range params.VpcIds {
		if _, ok := f.vpcs[id]; !ok {
			return nil, APIError("InvalidVpcID.NotFound", "The vpc ID '%s' does not exist", id)
		}
	}

	out := &ec2.DescribeVpcsOutput{}
	for _, id := range sortedKeys(f.vpcs) {
		v := f.vpcs[id]
		if len(params.VpcIds) > 0 && !contains(params.VpcIds, id) {
			continue
		}
		ok, err := matches(params.Filters, func(name string) ([]string, bool) {
			if name == "vpc-id" {
				return []string{id}, true
			}
			return tagValues(v.Tags, name)
		})
		if err != nil {
			return nil, err
		}
		if ok {
			out.Vpcs = append(out.Vpcs, *v)
		}
	}
	return out, nil
}

func (f *EC2) DeleteVpc(_ context.Context, params *ec2.DeleteVpcInput, _ ...func(*ec2.Options)) (*ec2.DeleteVpcOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.begin("DeleteVpc"); err != nil {
		return nil, err
	}

	id := aws.ToString(params.VpcId)
	if _, ok := f.vpcs[id]; !ok {
		return nil, APIError("InvalidVpcID.NotFound", "The vpc ID '%s' does not exist", id)
	}
	for _, s := range f.subnets {
		if aws.ToString(s.VpcId) == id {
			return nil, dependency("vpc", id)
		}
	}
	for _, g := range f.igws {
		if attachedTo(g, id) {
			return nil, dependency("vpc", id)
		}
	}
	var mainID string
	for rid, rt := range f.routeTables {
		if aws.ToString(rt.VpcId) != id {
			continue
		}
		if !isMain(rt) {
			return nil, dependency("vpc", id)
		}
		mainID = rid
	}

	delete(f.routeTables, mainID)
	delete(f.vpcs, id)
	delete(f.dns, id)
	return &ec2.DeleteVpcOutput{}, nil
}

func (f *EC2) CreateInternetGateway(_ context.Context, params *ec2.CreateInternetGatewayInput, _ ...func(*ec2.Options)) (*ec2.CreateInternetGatewayOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.begin("CreateInternetGateway"); err != nil {
		return nil, err
	}

	id := f.nextID("igw")
	g := &ec2types.InternetGateway{
		InternetGatewayId: aws.String(id),
		Tags:              specTags(params.TagSpecifications),
	}
	f.igws[id] = g

	cp := *g
	return &ec2.CreateInternetGatewayOutput{InternetGateway: &cp}, nil
}

func (f *EC2) AttachInternetGateway(_ context.Context, params *ec2.AttachInternetGatewayInput, _ ...func(*ec2.Options)) (*ec2.AttachInternetGatewayOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.begin("AttachInternetGateway"); err != nil {
		return nil, err
	}

	igwID, vpcID := aws.ToString(params.InternetGatewayId), aws.ToString(params.VpcId)
	g, ok := f.igws[igwID]
	if !ok {
		return nil, APIError("InvalidInternetGatewayID.NotFound", "The internetGateway ID '%s' does not exist", igwID)
	}
	if _, ok := f.vpcs[vpcID]; !ok {
		return nil, APIError("InvalidVpcID.NotFound", "The vpc ID '%s' does not exist", vpcID)
	}
	if len(g.Attachments) > 0 {
		return nil, APIError("Resource.AlreadyAssociated", "resource %s is already attached", igwID)
	}

	g.Attachments = []ec2types.InternetGatewayAttachment{{
		VpcId: aws.String(vpcID),
		State: ec2types.AttachmentStatusAttached,
	}}
	return &ec2.AttachInternetGatewayOutput{}, nil
}

func (f *EC2) DetachInternetGateway(_ context.Context, params *ec2.DetachInternetGatewayInput, _ ...func(*ec2.Options)) (*ec2.DetachInternetGatewayOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.begin("DetachInternetGateway"); err != nil {
		return nil, err
	}

	igwID, vpcID := aws.ToString(params.InternetGatewayId), aws.ToString(params.VpcId)
	g, ok := f.igws[igwID]
	if !ok {
		return nil, APIError("InvalidInternetGatewayID.NotFound", "The internetGateway ID '%s' does not exist", igwID)
	}
	if !attachedTo(g, vpcID) {
		return nil, APIError("Gateway.NotAttached", "resource %s is not attached to network %s", igwID, vpcID)
	}
	for _, n := range f.nats {
		if aws.ToString(n.gw.VpcId) == vpcID && active(n) {
			return nil, APIError("DependencyViolation", "Network %s has some mapped public address(es). Please unmap those public address(es) before detaching the gateway.", vpcID)
		}
	}

	g.Attachments = nil
	return &ec2.DetachInternetGatewayOutput{}, nil
}

func (f *EC2) DeleteInternetGateway(_ context.Context, params *ec2.DeleteInternetGatewayInput, _ ...func(*ec2.Options)) (*ec2.DeleteInternetGatewayOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.begin("DeleteInternetGateway"); err != nil {
		return nil, err
	}

	id := aws.ToString(params.InternetGatewayId)
	g, ok := f.igws[id]
	if !ok {
		return nil, APIError("InvalidInternetGatewayID.NotFound", "The internetGateway ID '%s' does not exist", id)
	}
	if len(g.Attachments) > 0 {
		return nil, dependency("internetGateway", id)
	}
	delete(f.igws, id)
	return &ec2.DeleteInternetGatewayOutput{}, nil
}

func (f *EC2) DescribeInternetGateways(_ context.Context, params *ec2.DescribeInternetGatewaysInput, _ ...func(*ec2.Options)) (*ec2.DescribeInternetGatewaysOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.begin("DescribeInternetGateways"); err != nil {
		return nil, err
	}

	out := &ec2.DescribeInternetGatewaysOutput{}
	for _, id := range sortedKeys(f.igws) {
		g := f.igws[id]
		ok, err := matches(params.Filters, func(name string) ([]string, bool) {
			switch name {
			case "internet-gateway-id":
				return []string{id}, true
			case "attachment.vpc-id":
				var vpcs []string
				for _, a := range g.Attachments {
					vpcs = append(vpcs, aws.ToString(a.VpcId))
				}
				return vpcs, true
			}
			return tagValues(g.Tags, name)
		})
		if err != nil {
			return nil, err
		}
		if ok {
			out.InternetGateways = append(out.InternetGateways, *g)
		}
	}
	return out, nil
}

func (f *EC2) CreateSubnet(_ context.Context, params *ec2.CreateSubnetInput, _ ...func(*ec2.Options)) (*ec2.CreateSubnetOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.begin("CreateSubnet"); err != nil {
		return nil, err
	}

	vpcID := aws.ToString(params.VpcId)
	vpc, ok := f.vpcs[vpcID]
	if !ok {
		return nil, APIError("InvalidVpcID.NotFound", "The vpc ID '%s' does not exist", vpcID)
	}
	zone := aws.ToString(params.AvailabilityZone)
	if !contains(f.Zones, zone) {
		return nil, APIError("InvalidParameterValue", "Value (%s) for parameter availabilityZone is invalid", zone)
	}

	cidr := aws.ToString(params.CidrBlock)
	prefix, err := netip.ParsePrefix(cidr)
	if err != nil {
		return nil, APIError("InvalidParameterValue", "invalid CIDR %q", cidr)
	}
	vpcPrefix := netip.MustParsePrefix(aws.ToString(vpc.CidrBlock))
	if !vpcPrefix.Contains(prefix.Addr()) || prefix.Bits() < vpcPrefix.Bits() {
		return nil, APIError("InvalidSubnet.Range", "The CIDR '%s' is invalid.", cidr)
	}
	for _, s := range f.subnets {
		if aws.ToString(s.VpcId) == vpcID && netip.MustParsePrefix(aws.ToString(s.CidrBlock)).Overlaps(prefix) {
			return nil, APIError("InvalidSubnet.Conflict", "The CIDR '%s' conflicts with another subnet", cidr)
		}
	}

	id := f.nextID("subnet")
	s := &ec2types.Subnet{
		SubnetId:                aws.String(id),
		VpcId:                   aws.String(vpcID),
		CidrBlock:               aws.String(cidr),
		AvailabilityZone:        aws.String(zone),
		MapPublicIpOnLaunch:     aws.Bool(false),
		State:                   ec2types.SubnetStateAvailable,
		AvailableIpAddressCount: aws.Int32(int32(1<<(32-prefix.Bits())) - 5),
		Tags:                    specTags(params.TagSpecifications),
	}
	f.subnets[id] = s

	cp := *s
	return &ec2.CreateSubnetOutput{Subnet: &cp}, nil
}

func (f *EC2) ModifySubnetAttribute(_ context.Context, params *ec2.ModifySubnetAttributeInput, _ ...func(*ec2.Options)) (*ec2.ModifySubnetAttributeOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.begin("ModifySubnetAttribute"); err != nil {
		return nil, err
	}

	id := aws.ToString(params.SubnetId)
	s, ok := f.subnets[id]
	if !ok {
		return nil, APIError("InvalidSubnetID.NotFound", "The subnet ID '%s' does not exist", id)
	}
	if params.MapPublicIpOnLaunch != nil {
		s.MapPublicIpOnLaunch = aws.Bool(aws.ToBool(params.MapPublicIpOnLaunch.Value))
	}
	return &ec2.ModifySubnetAttributeOutput{}, nil
}

func (f *EC2) DescribeSubnets(_ context.Context, params *ec2.DescribeSubnetsInput, _ ...func(*ec2.Options)) (*ec2.DescribeSubnetsOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.begin("DescribeSubnets"); err != nil {
		return nil, err
	}

	out := &ec2.DescribeSubnetsOutput{}
	for _, id := range sortedKeys(f.subnets) {
		s := f.subnets[id]
		if len(params.SubnetIds) > 0 && !contains(params.SubnetIds, id) {
			continue
		}
		ok, err := matches(params.Filters, func(name string) ([]string, bool) {
			switch name {
			case "vpc-id":
				return []string{aws.ToString(s.VpcId)}, true
			case "subnet-id":
				return []string{id}, true
			}
			return tagValues(s.Tags, name)
		})
		if err != nil {
			return nil, err
		}
		if ok {
			out.Subnets = append(out.Subnets, *s)
		}
	}
	return out, nil
}

func (f *EC2) DeleteSubnet(_ context.Context, params *ec2.DeleteSubnetInput, _ ...func(*ec2.Options)) (*ec2.DeleteSubnetOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.begin("DeleteSubnet"); err != nil {
		return nil, err
	}

	id := aws.ToString(params.SubnetId)
	if _, ok := f.subnets[id]; !ok {
		return nil, APIError("InvalidSubnetID.NotFound", "The subnet ID '%s' does not exist", id)
	}
	for _, n := range f.nats {
		if aws.ToString(n.gw.SubnetId) == id && active(n) {
			return nil, dependency("subnet", id)
		}
	}

	for _, rt := range f.routeTables {
		var kept []ec2types.RouteTableAssociation
		for _, a := range rt.Associations {
			if aws.ToString(a.SubnetId) != id {
				kept = append(kept, a)
			}
		}
		rt.Associations = kept
	}
	delete(f.subnets, id)
	return &ec2.DeleteSubnetOutput{}, nil
}

func (f *EC2) AllocateAddress(_ context.Context, params *ec2.AllocateAddressInput, _ ...func(*ec2.Options)) (*ec2.AllocateAddressOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.begin("AllocateAddress"); err != nil {
		return nil, err
	}

	id := f.nextID("eipalloc")
	ip := fmt.Sprintf("203.0.113.%d", f.seq%250+1)
	f.addresses[id] = &ec2types.Address{
		AllocationId: aws.String(id),
		PublicIp:     aws.String(ip),
		Domain:       params.Domain,
		Tags:         specTags(params.TagSpecifications),
	}
	return &ec2.AllocateAddressOutput{
		AllocationId: aws.String(id),
		PublicIp:     aws.String(ip),
		Domain:       params.Domain,
	}, nil
}

func (f *EC2) DescribeAddresses(_ context.Context, params *ec2.DescribeAddressesInput, _ ...func(*ec2.Options)) (*ec2.DescribeAddressesOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.begin("DescribeAddresses"); err != nil {
		return nil, err
	}

	for _, id := range params.AllocationIds {
		if _, ok := f.addresses[id]; !ok {
			return nil, APIError("InvalidAllocationID.NotFound", "The allocation ID '%s' does not exist", id)
		}
	}

	out := &ec2.DescribeAddressesOutput{}
	for _, id := range sortedKeys(f.addresses) {
		a := f.addresses[id]
		if len(params.AllocationIds) > 0 && !contains(params.AllocationIds, id) {
			continue
		}
		ok, err := matches(params.Filters, func(name string) ([]string, bool) {
			switch name {
			case "allocation-id":
				return []string{id}, true
			case "domain":
				return []string{string(a.Domain)}, true
			}
			return tagValues(a.Tags, name)
		})
		if err != nil {
			return nil, err
		}
		if ok {
			out.Addresses = append(out.Addresses, *a)
		}
	}
	return out, nil
}

func (f *EC2) ReleaseAddress(_ context.Context, params *ec2.ReleaseAddressInput, _ ...func(*ec2.Options)) (*ec2.ReleaseAddressOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.begin("ReleaseAddress"); err != nil {
		return nil, err
	}

	id := aws.ToString(params.AllocationId)
	a, ok := f.addresses[id]
	if !ok {
		return nil, APIError("InvalidAllocationID.NotFound", "The allocation ID '%s' does not exist", id)
	}
	if a.AssociationId != nil || a.NetworkInterfaceId != nil {
		return nil, APIError("InvalidIPAddress.InUse", "Address %s is in use", aws.ToString(a.PublicIp))
	}
	delete(f.addresses, id)
	return &ec2.ReleaseAddressOutput{}, nil
}

func (f *EC2) CreateNatGateway(_ context.Context, params *ec2.CreateNatGatewayInput, _ ...func(*ec2.Options)) (*ec2.CreateNatGatewayOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.begin("CreateNatGateway"); err != nil {
		return nil, err
	}

	subnetID := aws.ToString(params.SubnetId)
	s, ok := f.subnets[subnetID]
	if !ok {
		return nil, APIError("InvalidSubnetID.NotFound", "The subnet ID '%s' does not exist", subnetID)
	}
	allocID := aws.ToString(params.AllocationId)
	a, ok := f.addresses[allocID]
	if !ok {
		return nil, APIError("InvalidAllocationID.NotFound", "The allocation ID '%s' does not exist", allocID)
	}
	if a.AssociationId != nil {
		return nil, APIError("Resource.AlreadyAssociated", "Elastic IP address [%s] is already associated", allocID)
	}

	id := f.nextID("nat")
	eni := f.nextID("eni")
	a.AssociationId = aws.String(f.nextID("eipassoc"))
	a.NetworkInterfaceId = aws.String(eni)

	vpcID := aws.ToString(s.VpcId)
	n := &natGateway{gw: ec2types.NatGateway{
		NatGatewayId: aws.String(id),
		SubnetId:     aws.String(subnetID),
		VpcId:        aws.String(vpcID),
		State:        ec2types.NatGatewayStatePending,
		NatGatewayAddresses: []ec2types.NatGatewayAddress{{
			AllocationId:       aws.String(allocID),
			PublicIp:           a.PublicIp,
			NetworkInterfaceId: aws.String(eni),
		}},
		Tags: specTags(params.TagSpecifications),
	}}

	hasIGW := false
	for _, g := range f.igws {
		if attachedTo(g, vpcID) {
			hasIGW = true
		}
	}
	if !hasIGW {
		n.gw.FailureMessage = aws.String("Network " + vpcID + " has no Internet gateway attached")
	} else if f.FailNatGateways {
		n.gw.FailureMessage = aws.String("Subnet has insufficient free addresses")
	}
	f.nats[id] = n

	cp := n.gw
	return &ec2.CreateNatGatewayOutput{NatGateway: &cp}, nil
}

func (f *EC2) DescribeNatGateways(_ context.Context, params *ec2.DescribeNatGatewaysInput, _ ...func(*ec2.Options)) (*ec2.DescribeNatGatewaysOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.begin("DescribeNatGateways"); err != nil {
		return nil, err
	}

	for _, id := range params.NatGatewayIds {
		if _, ok := f.nats[id]; !ok {
			return nil, APIError("NatGatewayNotFound", "NAT gateway %s was not found", id)
		}
	}

	out := &ec2.DescribeNatGatewaysOutput{}
	for _, id := range sortedKeys(f.nats) {
		n := f.nats[id]
		if len(params.NatGatewayIds) > 0 && !contains(params.NatGatewayIds, id) {
			continue
		}
		ok, err := matches(params.Filter, func(name string) ([]string, bool) {
			switch name {
			case "nat-gateway-id":
				return []string{id}, true
			case "vpc-id":
				return []string{aws.ToString(n.gw.VpcId)}, true
			case "subnet-id":
				return []string{aws.ToString(n.gw.SubnetId)}, true
			case "state":
				return []string{string(n.gw.State)}, true
			}
			return tagValues(n.gw.Tags, name)
		})
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		f.advance(n)
		out.NatGateways = append(out.NatGateways, n.gw)
	}
	return out, nil
}

// advance moves a NAT gateway one step through its lifecycle; EC2 makes
// progress between calls, the fake makes it on observation.
func (f *EC2) advance(n *natGateway) {
	switch n.gw.State {
	case ec2types.NatGatewayStatePending:
		if n.gw.FailureMessage != nil {
			n.gw.State = ec2types.NatGatewayStateFailed
			f.unmap(n)
		} else {
			n.gw.State = ec2types.NatGatewayStateAvailable
		}
	case ec2types.NatGatewayStateDeleting:
		n.deletePolls--
		if n.deletePolls <= 0 {
			n.gw.State = ec2types.NatGatewayStateDeleted
			f.unmap(n)
		}
	}
}

func (f *EC2) unmap(n *natGateway) {
	for _, na := range n.gw.NatGatewayAddresses {
		if a, ok := f.addresses[aws.ToString(na.AllocationId)]; ok {
			a.AssociationId = nil
			a.NetworkInterfaceId = nil
		}
	}
}

func (f *EC2) DeleteNatGateway(_ context.Context, params *ec2.DeleteNatGatewayInput, _ ...func(*ec2.Options)) (*ec2.DeleteNatGatewayOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.begin("DeleteNatGateway"); err != nil {
		return nil, err
	}

	id := aws.ToString(params.NatGatewayId)
	n, ok := f.nats[id]
	if !ok {
		return nil, APIError("NatGatewayNotFound", "NAT gateway %s was not found", id)
	}
	switch n.gw.State {
	case ec2types.NatGatewayStateDeleted, ec2types.NatGatewayStateDeleting:
	case ec2types.NatGatewayStateFailed:
		n.gw.State = ec2types.NatGatewayStateDeleted
	default:
		n.gw.State = ec2types.NatGatewayStateDeleting
		n.deletePolls = f.NatDeletePolls
	}
	return &ec2.DeleteNatGatewayOutput{NatGatewayId: aws.String(id)}, nil
}

func (f *EC2) CreateRouteTable(_ context.Context, params *ec2.CreateRouteTableInput, _ ...func(*ec2.Options)) (*ec2.CreateRouteTableOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.begin("CreateRouteTable"); err != nil {
		return nil, err
	}

	vpcID := aws.ToString(params.VpcId)
	vpc, ok := f.vpcs[vpcID]
	if !ok {
		return nil, APIError("InvalidVpcID.NotFound", "The vpc ID '%s' does not exist", vpcID)
	}

	id := f.nextID("rtb")
	rt := &ec2types.RouteTable{
		RouteTableId: aws.String(id),
		VpcId:        aws.String(vpcID),
		Routes:       []ec2types.Route{localRoute(aws.ToString(vpc.CidrBlock))},
		Tags:         specTags(params.TagSpecifications),
	}
	f.routeTables[id] = rt

	cp := *rt
	return &ec2.CreateRouteTableOutput{RouteTable: &cp}, nil
}

func (f *EC2) CreateRoute(_ context.Context, params *ec2.CreateRouteInput, _ ...func(*ec2.Options)) (*ec2.CreateRouteOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.begin("CreateRoute"); err != nil {
		return nil, err
	}

	id := aws.ToString(params.RouteTableId)
	rt, ok := f.routeTables[id]
	if !ok {
		return nil, APIError("InvalidRouteTableID.NotFound", "The routeTable ID '%s' does not exist", id)
	}
	dest := aws.ToString(params.DestinationCidrBlock)
	for _, r := range rt.Routes {
		if aws.ToString(r.DestinationCidrBlock) == dest {
			return nil, APIError("RouteAlreadyExists", "The route identified by %s already exists.", dest)
		}
	}

	route := ec2types.Route{
		DestinationCidrBlock: aws.String(dest),
		Origin:               ec2types.RouteOriginCreateRoute,
		State:                ec2types.RouteStateActive,
	}
	switch {
	case params.GatewayId != nil:
		if _, ok := f.igws[aws.ToString(params.GatewayId)]; !ok {
			return nil, APIError("InvalidGatewayID.NotFound", "The gateway ID '%s' does not exist", aws.ToString(params.GatewayId))
		}
		route.GatewayId = params.GatewayId
	case params.NatGatewayId != nil:
		n, ok := f.nats[aws.ToString(params.NatGatewayId)]
		if !ok || n.gw.State == ec2types.NatGatewayStateDeleted {
			return nil, APIError("InvalidNatGatewayID.NotFound", "The nat gateway ID '%s' does not exist", aws.ToString(params.NatGatewayId))
		}
		route.NatGatewayId = params.NatGatewayId
	default:
		return nil, APIError("MissingParameter", "a route target is required")
	}

	rt.Routes = append(rt.Routes, route)
	return &ec2.CreateRouteOutput{Return: aws.Bool(true)}, nil
}

func (f *EC2) AssociateRouteTable(_ context.Context, params *ec2.AssociateRouteTableInput, _ ...func(*ec2.Options)) (*ec2.AssociateRouteTableOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.begin("AssociateRouteTable"); err != nil {
		return nil, err
	}

	rtID, subnetID := aws.ToString(params.RouteTableId), aws.ToString(params.SubnetId)
	rt, ok := f.routeTables[rtID]
	if !ok {
		return nil, APIError("InvalidRouteTableID.NotFound", "The routeTable ID '%s' does not exist", rtID)
	}
	s, ok := f.subnets[subnetID]
	if !ok {
		return nil, APIError("InvalidSubnetID.NotFound", "The subnet ID '%s' does not exist", subnetID)
	}
	if aws.ToString(s.VpcId) != aws.ToString(rt.VpcId) {
		return nil, APIError("InvalidParameterValue", "route table %s and subnet %s belong to different networks", rtID, subnetID)
	}
	for _, other := range f.routeTables {
		for _, a := range other.Associations {
			if aws.ToString(a.SubnetId) == subnetID {
				return nil, APIError("Resource.AlreadyAssociated", "the specified association for route table %s conflicts with an existing association", rtID)
			}
		}
	}

	assocID := f.nextID("rtbassoc")
	rt.Associations = append(rt.Associations, ec2types.RouteTableAssociation{
		RouteTableAssociationId: aws.String(assocID),
		RouteTableId:            aws.String(rtID),
		SubnetId:                aws.String(subnetID),
		Main:                    aws.Bool(false),
	})
	return &ec2.AssociateRouteTableOutput{AssociationId: aws.String(assocID)}, nil
}

func (f *EC2) DisassociateRouteTable(_ context.Context, params *ec2.DisassociateRouteTableInput, _ ...func(*ec2.Options)) (*ec2.DisassociateRouteTableOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.begin("DisassociateRouteTable"); err != nil {
		return nil, err
	}

	assocID := aws.ToString(params.AssociationId)
	for _, rt := range f.routeTables {
		for i, a := range rt.Associations {
			if aws.ToString(a.RouteTableAssociationId) != assocID {
				continue
			}
			if aws.ToBool(a.Main) {
				return nil, APIError("InvalidParameterValue", "cannot disassociate the main route table association %s", assocID)
			}
			rt.Associations = append(rt.Associations[:i:i], rt.Associations[i+1:]...)
			return &ec2.DisassociateRouteTableOutput{}, nil
		}
	}
	return nil, APIError("InvalidAssociationID.NotFound", "The association ID '%s' does not exist", assocID)
}

func (f *EC2) DescribeRouteTables(_ context.Context, params *ec2.DescribeRouteTablesInput, _ ...func(*ec2.Options)) (*ec2.DescribeRouteTablesOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.begin("DescribeRouteTables"); err != nil {
		return nil, err
	}

	out := &ec2.DescribeRouteTablesOutput{}
	for _, id := range sortedKeys(f.routeTables) {
		rt := f.routeTables[id]
		if len(params.RouteTableIds) > 0 && !contains(params.RouteTableIds, id) {
			continue
		}
		ok, err := matches(params.Filters, func(name string) ([]string, bool) {
			switch name {
			case "vpc-id":
				return []string{aws.ToString(rt.VpcId)}, true
			case "route-table-id":
				return []string{id}, true
			case "association.main":
				return []string{fmt.Sprint(isMain(rt))}, true
			}
			return tagValues(rt.Tags, name)
		})
		if err != nil {
			return nil, err
		}
		if ok {
			cp := *rt
			cp.Routes = append([]ec2types.Route(nil), rt.Routes...)
			cp.Associations = append([]ec2types.RouteTableAssociation(nil), rt.Associations...)
			out.RouteTables = append(out.RouteTables, cp)
		}
	}
	return out, nil
}

func (f *EC2) DeleteRouteTable(_ context.Context, params *ec2.DeleteRouteTableInput, _ ...func(*ec2.Options)) (*ec2.DeleteRouteTableOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.begin("DeleteRouteTable"); err != nil {
		return nil, err
	}

	id := aws.ToString(params.RouteTableId)
	rt, ok := f.routeTables[id]
	if !ok {
		return nil, APIError("InvalidRouteTableID.NotFound", "The routeTable ID '%s' does not exist", id)
	}
	if len(rt.Associations) > 0 {
		return nil, dependency("routeTable", id)
	}
	delete(f.routeTables, id)
	return &ec2.DeleteRouteTableOutput{}, nil
}

func active(n *natGateway) bool {
	return n.gw.State != ec2types.NatGatewayStateDeleted && n.gw.State != ec2types.NatGatewayStateFailed
}

func dependency(kind, id string) error {
	return APIError("DependencyViolation", "The %s '%s' has dependencies and cannot be deleted.", kind, id)
}

func localRoute(cidr string) ec2types.Route {
	return ec2types.Route{
		DestinationCidrBlock: aws.String(cidr),
		GatewayId:            aws.String("local"),
		Origin:               ec2types.RouteOriginCreateRouteTable,
		State:                ec2types.RouteStateActive,
	}
}

func isMain(rt *ec2types.RouteTable) bool {
	for _, a := range rt.Associations {
		if aws.ToBool(a.Main) {
			return true
		}
	}
	return false
}

func attachedTo(g *ec2types.InternetGateway, vpcID string) bool {
	for _, a := range g.Attachments {
		if aws.ToString(a.VpcId) == vpcID {
			return true
		}
	}
	return false
}

// matches applies EC2 filter semantics: every filter must match, and a
// filter matches when any of its values equals any attribute value.
func matches(filters []ec2types.Filter, attr func(name string) ([]string, bool)) (bool, error) {
	for _, flt := range filters {
		name := aws.ToString(flt.Name)
		have, known := attr(name)
		if !known {
			return false, APIError("InvalidParameterValue", "The filter '%s' is invalid", name)
		}
		hit := false
		for _, want := range flt.Values {
			if contains(have, want) {
				hit = true
				break
			}
		}
		if !hit {
			return false, nil
		}
	}
	return true, nil
}

func tagValues(tags []ec2types.Tag, filter string) ([]string, bool) {
	key, ok := strings.CutPrefix(filter, "tag:")
	if !ok {
		return nil, false
	}
	for _, t := range tags {
		if aws.ToString(t.Key) == key {
			return []string{aws.ToString(t.Value)}, true
		}
	}
	return nil, true
}

func specTags(specs []ec2types.TagSpecification) []ec2types.Tag {
	var tags []ec2types.Tag
	for _, s := range specs {
		tags = append(tags, s.Tags...)
	}
	return tags
}

func toTags(m map[string]string) []ec2types.Tag {
	var tags []ec2types.Tag
	for _, k := range sortedKeys(m) {
		tags = append(tags, ec2types.Tag{Key: aws.String(k), Value: aws.String(m[k])})
	}
	return tags
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
