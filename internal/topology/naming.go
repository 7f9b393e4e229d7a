package topology

import "fmt"

// Tag keys written on every resource stratus creates.
const (
	TagName        = "Name"
	TagEnvironment = "stratus:environment"
	TagVPCID       = "stratus:vpc-id"
)

// Tier separates internet-routed subnets from NAT-routed ones.
type Tier string

const (
	TierPublic  Tier = "Public"
	TierPrivate Tier = "Private"
)

// ZoneCount is the number of availability zones the topology spans.
const ZoneCount = 3

// DefaultRoute is the destination of the single route in each custom table.
const DefaultRoute = "0.0.0.0/0"

// Subnet CIDR pools; index i is used in the i-th availability zone.
var (
	PublicSubnetCIDRs  = []string{"10.0.1.0/24", "10.0.2.0/24", "10.0.3.0/24"}
	PrivateSubnetCIDRs = []string{"10.0.11.0/24", "10.0.12.0/24", "10.0.13.0/24"}
)

// SubnetCIDRs returns the pool for a tier.
func SubnetCIDRs(tier Tier) []string {
	if tier == TierPublic {
		return PublicSubnetCIDRs
	}
	return PrivateSubnetCIDRs
}

func VPCName(env string) string {
	return fmt.Sprintf("%s-VPC", env)
}

func InternetGatewayName(env string) string {
	return fmt.Sprintf("%s-IGW", env)
}

// SubnetName numbers zones from 1.
func SubnetName(env string, tier Tier, zone int) string {
	return fmt.Sprintf("%s-%s-Subnet-AZ%d", env, tier, zone)
}

func ElasticIPName(env string) string {
	return fmt.Sprintf("%s-NAT-EIP", env)
}

func NatGatewayName(env string) string {
	return fmt.Sprintf("%s-NAT", env)
}

func RouteTableName(env string, tier Tier) string {
	return fmt.Sprintf("%s-%s-RT", env, tier)
}

// Tags returns the tag set for a resource. vpcID is empty for the VPC itself.
func Tags(env, name, vpcID string) map[string]string {
	tags := map[string]string{
		TagName:        name,
		TagEnvironment: env,
	}
	if vpcID != "" {
		tags[TagVPCID] = vpcID
	}
	return tags
}
