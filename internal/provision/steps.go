package provision

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/vietdv277/stratus/internal/topology"
	pkgtypes "github.com/vietdv277/stratus/pkg/types"
)

func (p *Provisioner) tags(name, vpcID string) map[string]string {
	return topology.Tags(p.opts.Environment, name, vpcID)
}

func (p *Provisioner) createVPC(ctx context.Context, r *run) error {
	id, err := p.api.CreateVPC(ctx, p.opts.CIDR, p.tags(topology.VPCName(p.opts.Environment), ""))
	if err != nil {
		return err
	}
	r.push("delete VPC "+id, func(ctx context.Context) error {
		return p.api.DeleteVPC(ctx, id)
	})
	r.summary.VPCID = id
	p.out.Printf("Created VPC: %s", id)

	// No wait on propagation: ModifyVpcAttribute is applied before it returns.
	if err := p.api.EnableVPCDNS(ctx, id); err != nil {
		return err
	}
	p.log.Debug("enabled VPC DNS", zap.String("vpc_id", id))
	return nil
}

func (p *Provisioner) createInternetGateway(ctx context.Context, r *run) error {
	vpcID := r.summary.VPCID

	id, err := p.api.CreateInternetGateway(ctx, p.tags(topology.InternetGatewayName(p.opts.Environment), vpcID))
	if err != nil {
		return err
	}
	r.push("delete internet gateway "+id, func(ctx context.Context) error {
		return p.api.DeleteInternetGateway(ctx, id)
	})

	if err := p.api.AttachInternetGateway(ctx, id, vpcID); err != nil {
		return fmt.Errorf("failed to attach %s: %w", id, err)
	}
	r.push("detach internet gateway "+id, func(ctx context.Context) error {
		return p.api.DetachInternetGateway(ctx, id, vpcID)
	})

	r.summary.InternetGatewayID = id
	p.out.Printf("Created and attached Internet Gateway: %s", id)
	return nil
}

func (p *Provisioner) createSubnets(ctx context.Context, r *run) error {
	zones, err := p.api.ListAvailabilityZones(ctx)
	if err != nil {
		return fmt.Errorf("failed to list availability zones: %w", err)
	}
	if len(zones) < topology.ZoneCount {
		return fmt.Errorf("%w: need %d, region has %d", ErrNotEnoughZones, topology.ZoneCount, len(zones))
	}
	zones = zones[:topology.ZoneCount]
	p.log.Debug("selected availability zones", zap.Strings("zones", zones))

	for _, tier := range []topology.Tier{topology.TierPublic, topology.TierPrivate} {
		cidrs := topology.SubnetCIDRs(tier)
		for i, zone := range zones {
			subnet, err := p.createSubnet(ctx, r, tier, i+1, cidrs[i], zone)
			if err != nil {
				return err
			}
			if tier == topology.TierPublic {
				r.summary.PublicSubnets = append(r.summary.PublicSubnets, subnet)
			} else {
				r.summary.PrivateSubnets = append(r.summary.PrivateSubnets, subnet)
			}
		}
	}
	return nil
}

func (p *Provisioner) createSubnet(ctx context.Context, r *run, tier topology.Tier, zoneNum int, cidr, zone string) (pkgtypes.Subnet, error) {
	vpcID := r.summary.VPCID
	name := topology.SubnetName(p.opts.Environment, tier, zoneNum)

	subnet, err := p.api.CreateSubnet(ctx, vpcID, cidr, zone, p.tags(name, vpcID))
	if err != nil {
		return pkgtypes.Subnet{}, fmt.Errorf("failed to create %s: %w", name, err)
	}
	r.push("delete subnet "+subnet.ID, func(ctx context.Context) error {
		return p.api.DeleteSubnet(ctx, subnet.ID)
	})

	if tier == topology.TierPublic {
		if err := p.api.EnableMapPublicIP(ctx, subnet.ID); err != nil {
			return pkgtypes.Subnet{}, fmt.Errorf("failed to enable public IPs on %s: %w", subnet.ID, err)
		}
		subnet.Public = true
	}

	p.out.Printf("Created %s subnet %s: %s (%s) in %s", tier, name, subnet.ID, cidr, zone)
	return subnet, nil
}

func (p *Provisioner) allocateAddress(ctx context.Context, r *run) error {
	addr, err := p.api.AllocateAddress(ctx, p.tags(topology.ElasticIPName(p.opts.Environment), r.summary.VPCID))
	if err != nil {
		return err
	}
	r.push("release elastic IP "+addr.AllocationID, func(ctx context.Context) error {
		return p.api.ReleaseAddress(ctx, addr.AllocationID)
	})

	r.summary.ElasticIP = addr
	p.out.Printf("Allocated Elastic IP: %s (%s)", addr.PublicIP, addr.AllocationID)
	return nil
}

func (p *Provisioner) createNatGateway(ctx context.Context, r *run) error {
	if len(r.summary.PublicSubnets) == 0 {
		return fmt.Errorf("no public subnet to place the NAT gateway in")
	}
	subnetID := r.summary.PublicSubnets[0].ID
	allocID := r.summary.ElasticIP.AllocationID
	name := topology.NatGatewayName(p.opts.Environment)

	id, err := p.api.CreateNatGateway(ctx, subnetID, allocID, p.tags(name, r.summary.VPCID))
	if err != nil {
		return err
	}
	r.push("delete NAT gateway "+id, func(ctx context.Context) error {
		if err := p.api.DeleteNatGateway(ctx, id); err != nil {
			return err
		}
		return p.api.WaitNatGatewaysDeleted(ctx, []string{id}, p.opts.NatDeletePoll...)
	})

	p.out.Printf("Created NAT Gateway: %s, waiting for it to become available...", id)
	if err := p.api.WaitNatGatewayAvailable(ctx, id, p.opts.NatWaitTimeout); err != nil {
		return err
	}

	r.summary.NatGatewayID = id
	p.out.Printf("NAT Gateway is available")
	return nil
}

func (p *Provisioner) createRouteTables(ctx context.Context, r *run) error {
	public, err := p.createRouteTable(ctx, r, topology.TierPublic, r.summary.InternetGatewayID, r.summary.PublicSubnetIDs())
	if err != nil {
		return err
	}
	r.summary.PublicRouteTableID = public

	private, err := p.createRouteTable(ctx, r, topology.TierPrivate, r.summary.NatGatewayID, r.summary.PrivateSubnetIDs())
	if err != nil {
		return err
	}
	r.summary.PrivateRouteTableID = private
	return nil
}

func (p *Provisioner) createRouteTable(ctx context.Context, r *run, tier topology.Tier, target string, subnetIDs []string) (string, error) {
	vpcID := r.summary.VPCID
	name := topology.RouteTableName(p.opts.Environment, tier)

	id, err := p.api.CreateRouteTable(ctx, vpcID, p.tags(name, vpcID))
	if err != nil {
		return "", fmt.Errorf("failed to create %s: %w", name, err)
	}
	r.push("delete route table "+id, func(ctx context.Context) error {
		return p.api.DeleteRouteTable(ctx, id)
	})

	if err := p.api.CreateRoute(ctx, id, topology.DefaultRoute, target); err != nil {
		return "", fmt.Errorf("failed to add default route to %s: %w", id, err)
	}

	for _, subnetID := range subnetIDs {
		assocID, err := p.api.AssociateRouteTable(ctx, id, subnetID)
		if err != nil {
			return "", fmt.Errorf("failed to associate %s with %s: %w", id, subnetID, err)
		}
		r.push("disassociate "+assocID, func(ctx context.Context) error {
			return p.api.DisassociateRouteTable(ctx, assocID)
		})
	}

	p.out.Printf("Created %s route table %s: %s (%s -> %s)", tier, name, id, topology.DefaultRoute, target)
	return id, nil
}
