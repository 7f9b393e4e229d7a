package types

// AWSProfile represents an AWS CLI profile
type AWSProfile struct {
	Name   string
	Region string
	Source string // "credentials" or "config"
}

// ProvisionSummary lists every resource created by a provisioning run
type ProvisionSummary struct {
	Region              string   `json:"region" yaml:"region"`
	Environment         string   `json:"environment" yaml:"environment"`
	VPCID               string   `json:"vpc_id" yaml:"vpc_id"`
	CIDR                string   `json:"cidr" yaml:"cidr"`
	InternetGatewayID   string   `json:"internet_gateway_id" yaml:"internet_gateway_id"`
	NatGatewayID        string   `json:"nat_gateway_id" yaml:"nat_gateway_id"`
	ElasticIP           Address  `json:"elastic_ip" yaml:"elastic_ip"`
	PublicSubnets       []Subnet `json:"public_subnets" yaml:"public_subnets"`
	PrivateSubnets      []Subnet `json:"private_subnets" yaml:"private_subnets"`
	PublicRouteTableID  string   `json:"public_route_table_id" yaml:"public_route_table_id"`
	PrivateRouteTableID string   `json:"private_route_table_id" yaml:"private_route_table_id"`
}

// PublicSubnetIDs returns the IDs of the public subnets in zone order
func (s *ProvisionSummary) PublicSubnetIDs() []string {
	return subnetIDs(s.PublicSubnets)
}

// PrivateSubnetIDs returns the IDs of the private subnets in zone order
func (s *ProvisionSummary) PrivateSubnetIDs() []string {
	return subnetIDs(s.PrivateSubnets)
}

func subnetIDs(subnets []Subnet) []string {
	ids := make([]string, 0, len(subnets))
	for _, s := range subnets {
		ids = append(ids, s.ID)
	}
	return ids
}

// TeardownAction records what happened to one resource during decommissioning
type TeardownAction struct {
	Kind   string `json:"kind" yaml:"kind"`
	ID     string `json:"id" yaml:"id"`
	Action string `json:"action" yaml:"action"` // deleted, released, detached, skipped, planned
	Reason string `json:"reason,omitempty" yaml:"reason,omitempty"`
}

// TeardownReport is the result of a decommissioning run
type TeardownReport struct {
	Region  string           `json:"region" yaml:"region"`
	VPCID   string           `json:"vpc_id" yaml:"vpc_id"`
	DryRun  bool             `json:"dry_run,omitempty" yaml:"dry_run,omitempty"`
	Actions []TeardownAction `json:"actions" yaml:"actions"`
}

// Count returns how many actions of the given kind were recorded
func (r *TeardownReport) Count(action string) int {
	n := 0
	for _, a := range r.Actions {
		if a.Action == action {
			n++
		}
	}
	return n
}
