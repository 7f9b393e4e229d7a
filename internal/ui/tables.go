package ui

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	pkgtypes "github.com/vietdv277/stratus/pkg/types"
)

// PrintVPCTable prints VPCs in a styled box table
func PrintVPCTable(w io.Writer, vpcs []pkgtypes.VPC) error {
	t := newBoxTable(
		column{header: "ID", width: 24, style: IDStyle},
		column{header: "Name", width: 30, style: NameStyle},
		column{header: "CIDR", width: 18, style: IPStyle},
		column{header: "Environment", width: 14, style: NameStyle},
		column{header: "State", width: 12, styleFor: stateStyle},
		column{header: "Default", width: 8, style: MutedStyle},
	)
	for _, v := range vpcs {
		t.add(v.ID, v.Name, v.CIDR, v.Environment, v.State, formatBool(v.IsDefault))
	}

	if err := t.render(w); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "  %d VPCs\n", len(vpcs))
	return err
}

// PrintSubnetTable prints subnets in a styled box table
func PrintSubnetTable(w io.Writer, subnets []pkgtypes.Subnet) error {
	t := newBoxTable(
		column{header: "ID", width: 26, style: IDStyle},
		column{header: "Name", width: 30, style: NameStyle},
		column{header: "CIDR", width: 18, style: IPStyle},
		column{header: "AZ", width: 14, style: MutedStyle},
		column{header: "IPs", width: 6, style: MutedStyle},
		column{header: "Public", width: 6, style: MutedStyle},
	)
	for _, s := range subnets {
		t.add(s.ID, s.Name, s.CIDR, s.AZ, strconv.Itoa(s.AvailableIPs), formatBool(s.Public))
	}

	if err := t.render(w); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "  %d subnets\n", len(subnets))
	return err
}

// PrintRouteTables prints one row per route, grouped by route table
func PrintRouteTables(w io.Writer, tables []pkgtypes.RouteTable) error {
	t := newBoxTable(
		column{header: "Route Table", width: 24, style: IDStyle},
		column{header: "Name", width: 24, style: NameStyle},
		column{header: "Main", width: 4, style: MutedStyle},
		column{header: "Destination", width: 18, style: IPStyle},
		column{header: "Target", width: 24, style: IDStyle},
		column{header: "State", width: 9, styleFor: stateStyle},
		column{header: "Subnets", width: 7, style: MutedStyle},
	)
	for _, rt := range tables {
		subnets := 0
		for _, a := range rt.Associations {
			if a.SubnetID != "" {
				subnets++
			}
		}

		for i, r := range rt.Routes {
			if i == 0 {
				t.add(rt.ID, rt.Name, formatBool(rt.Main()), r.Destination, r.Target, r.State, strconv.Itoa(subnets))
				continue
			}
			t.add("", "", "", r.Destination, r.Target, r.State, "")
		}
		if len(rt.Routes) == 0 {
			t.add(rt.ID, rt.Name, formatBool(rt.Main()), "", "", "", strconv.Itoa(subnets))
		}
	}

	if err := t.render(w); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "  %d route tables\n", len(tables))
	return err
}

// summaryRule frames the provisioning summary.
var summaryRule = strings.Repeat("=", 60)

// PrintSummary prints everything a provisioning run created
func PrintSummary(w io.Writer, s *pkgtypes.ProvisionSummary) error {
	fmt.Fprintln(w)
	fmt.Fprintln(w, summaryRule)
	fmt.Fprintln(w, TitleStyle.Render("VPC Infrastructure Created Successfully!"))
	fmt.Fprintln(w, summaryRule)

	return printResources(w, s)
}

// PrintPartialSummary prints the resources a failed run left behind.
func PrintPartialSummary(w io.Writer, s *pkgtypes.ProvisionSummary) error {
	fmt.Fprintln(w, FailedStyle.Render("Resources created before the failure:"))
	return printResources(w, s)
}

func printResources(w io.Writer, s *pkgtypes.ProvisionSummary) error {
	t := newBoxTable(
		column{header: "Resource", width: 20, style: MutedStyle},
		column{header: "ID", width: 26, style: IDStyle},
		column{header: "Details", width: 30, style: NameStyle},
	)
	add := func(resource, id, details string) {
		if id != "" {
			t.add(resource, id, details)
		}
	}
	add("VPC", s.VPCID, s.CIDR)
	add("Internet Gateway", s.InternetGatewayID, "")
	add("NAT Gateway", s.NatGatewayID, "")
	add("Elastic IP", s.ElasticIP.AllocationID, s.ElasticIP.PublicIP)
	add("Public Route Table", s.PublicRouteTableID, "0.0.0.0/0 -> "+s.InternetGatewayID)
	add("Private Route Table", s.PrivateRouteTableID, "0.0.0.0/0 -> "+s.NatGatewayID)
	for _, sub := range s.PublicSubnets {
		add("Public Subnet", sub.ID, sub.CIDR+" "+sub.AZ)
	}
	for _, sub := range s.PrivateSubnets {
		add("Private Subnet", sub.ID, sub.CIDR+" "+sub.AZ)
	}

	if err := t.render(w); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "  Environment %s in %s\n", s.Environment, s.Region)
	return err
}

// PrintTeardownReport prints what a decommissioning run did
func PrintTeardownReport(w io.Writer, r *pkgtypes.TeardownReport) error {
	if len(r.Actions) == 0 {
		_, err := fmt.Fprintf(w, "Nothing to delete for %s\n", r.VPCID)
		return err
	}

	t := newBoxTable(
		column{header: "Kind", width: 18, style: MutedStyle},
		column{header: "ID", width: 26, style: IDStyle},
		column{header: "Action", width: 9, styleFor: stateStyle},
		column{header: "Reason", width: 34, style: HintStyle},
	)
	for _, a := range r.Actions {
		t.add(a.Kind, a.ID, a.Action, a.Reason)
	}

	if err := t.render(w); err != nil {
		return err
	}

	var counts []string
	for _, action := range []string{"deleted", "released", "detached", "skipped", "planned"} {
		if n := r.Count(action); n > 0 {
			counts = append(counts, fmt.Sprintf("%d %s", n, action))
		}
	}
	prefix := ""
	if r.DryRun {
		prefix = "Dry run: "
	}
	_, err := fmt.Fprintf(w, "  %s%s\n", prefix, strings.Join(counts, ", "))
	return err
}

// VPCDetails is everything `stratus vpc describe` shows about one VPC.
type VPCDetails struct {
	VPC              pkgtypes.VPC               `json:"vpc" yaml:"vpc"`
	InternetGateways []pkgtypes.InternetGateway `json:"internet_gateways" yaml:"internet_gateways"`
	NatGateways      []pkgtypes.NatGateway      `json:"nat_gateways" yaml:"nat_gateways"`
	Subnets          []pkgtypes.Subnet          `json:"subnets" yaml:"subnets"`
	RouteTables      []pkgtypes.RouteTable      `json:"route_tables" yaml:"route_tables"`
}

// PrintVPCDetails prints a VPC followed by its gateways, subnets and routes
func PrintVPCDetails(w io.Writer, d *VPCDetails) error {
	fmt.Fprintf(w, "%s %s\n", IDStyle.Render(d.VPC.ID), NameStyle.Render(d.VPC.Name))
	fmt.Fprintf(w, "  CIDR %s, state %s, owner %s\n\n", d.VPC.CIDR, d.VPC.State, d.VPC.OwnerID)

	gw := newBoxTable(
		column{header: "Gateway", width: 26, style: IDStyle},
		column{header: "Name", width: 24, style: NameStyle},
		column{header: "State", width: 10, styleFor: stateStyle},
		column{header: "Subnet", width: 26, style: MutedStyle},
	)
	for _, g := range d.InternetGateways {
		gw.add(g.ID, g.Name, "attached", "")
	}
	for _, n := range d.NatGateways {
		gw.add(n.ID, n.Name, n.State, n.SubnetID)
	}
	if err := gw.render(w); err != nil {
		return err
	}
	fmt.Fprintln(w)

	if err := PrintSubnetTable(w, d.Subnets); err != nil {
		return err
	}
	fmt.Fprintln(w)
	return PrintRouteTables(w, d.RouteTables)
}
