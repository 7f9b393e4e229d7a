package types

// VPC represents an AWS VPC
type VPC struct {
	ID          string `json:"id" yaml:"id"`
	Name        string `json:"name,omitempty" yaml:"name,omitempty"`
	CIDR        string `json:"cidr" yaml:"cidr"`
	Environment string `json:"environment,omitempty" yaml:"environment,omitempty"` // set on VPCs stratus created
	State       string `json:"state,omitempty" yaml:"state,omitempty"`
	IsDefault   bool   `json:"is_default,omitempty" yaml:"is_default,omitempty"`
	OwnerID     string `json:"owner_id,omitempty" yaml:"owner_id,omitempty"`
}

// Subnet represents an AWS VPC Subnet
type Subnet struct {
	ID           string `json:"id" yaml:"id"`
	Name         string `json:"name,omitempty" yaml:"name,omitempty"`
	VPCID        string `json:"vpc_id,omitempty" yaml:"vpc_id,omitempty"`
	CIDR         string `json:"cidr" yaml:"cidr"`
	AZ           string `json:"az" yaml:"az"`
	AvailableIPs int    `json:"available_ips,omitempty" yaml:"available_ips,omitempty"`
	State        string `json:"state,omitempty" yaml:"state,omitempty"`
	Public       bool   `json:"public" yaml:"public"` // MapPublicIpOnLaunch
}

// InternetGateway represents an internet gateway and the VPCs it is attached to
type InternetGateway struct {
	ID          string   `json:"id" yaml:"id"`
	Name        string   `json:"name,omitempty" yaml:"name,omitempty"`
	Attachments []string `json:"attachments,omitempty" yaml:"attachments,omitempty"`
}

// NatGateway represents a NAT gateway
type NatGateway struct {
	ID             string   `json:"id" yaml:"id"`
	Name           string   `json:"name,omitempty" yaml:"name,omitempty"`
	VPCID          string   `json:"vpc_id,omitempty" yaml:"vpc_id,omitempty"`
	SubnetID       string   `json:"subnet_id,omitempty" yaml:"subnet_id,omitempty"`
	State          string   `json:"state" yaml:"state"`
	FailureMessage string   `json:"failure_message,omitempty" yaml:"failure_message,omitempty"`
	AllocationIDs  []string `json:"allocation_ids,omitempty" yaml:"allocation_ids,omitempty"`
}

// Address represents an Elastic IP
type Address struct {
	AllocationID       string `json:"allocation_id" yaml:"allocation_id"`
	PublicIP           string `json:"public_ip" yaml:"public_ip"`
	Name               string `json:"name,omitempty" yaml:"name,omitempty"`
	AssociationID      string `json:"association_id,omitempty" yaml:"association_id,omitempty"`
	NetworkInterfaceID string `json:"network_interface_id,omitempty" yaml:"network_interface_id,omitempty"`
}

// Attached reports whether the address is still bound to something
func (a Address) Attached() bool {
	return a.AssociationID != "" || a.NetworkInterfaceID != ""
}

// Route is a single destination/target entry of a route table
type Route struct {
	Destination string `json:"destination" yaml:"destination"`
	Target      string `json:"target" yaml:"target"` // igw-*, nat-* or "local"
	State       string `json:"state,omitempty" yaml:"state,omitempty"`
}

// Local reports whether this is the implicit VPC-local route
func (r Route) Local() bool {
	return r.Target == "local"
}

// RouteTableAssociation links a route table to a subnet, or marks it main
type RouteTableAssociation struct {
	ID       string `json:"id" yaml:"id"`
	SubnetID string `json:"subnet_id,omitempty" yaml:"subnet_id,omitempty"`
	Main     bool   `json:"main,omitempty" yaml:"main,omitempty"`
}

// RouteTable represents a VPC route table
type RouteTable struct {
	ID           string                  `json:"id" yaml:"id"`
	Name         string                  `json:"name,omitempty" yaml:"name,omitempty"`
	VPCID        string                  `json:"vpc_id" yaml:"vpc_id"`
	Routes       []Route                 `json:"routes,omitempty" yaml:"routes,omitempty"`
	Associations []RouteTableAssociation `json:"associations,omitempty" yaml:"associations,omitempty"`
}

// Main reports whether the table is the VPC's main route table
func (rt RouteTable) Main() bool {
	for _, a := range rt.Associations {
		if a.Main {
			return true
		}
	}
	return false
}
