package decommission

import (
	"context"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/vietdv277/stratus/internal/aws"
	"github.com/vietdv277/stratus/internal/topology"
)

const (
	natStateDeleting = "deleting"
	natStateDeleted  = "deleted"
)

func (d *Decommissioner) deleteNatGateways(ctx context.Context, r *run) error {
	gateways, err := d.api.ListNatGateways(ctx, r.vpcID)
	if err != nil {
		return fmt.Errorf("failed to list NAT gateways: %w", err)
	}

	var wait []string
	for _, g := range gateways {
		for _, alloc := range g.AllocationIDs {
			r.natAllocations[alloc] = true
		}
		if g.State == natStateDeleted {
			continue
		}

		wait = append(wait, g.ID)
		if g.State == natStateDeleting {
			d.record(r, topology.KindNatGateway, g.ID, ActionDeleted, "already deleting")
			continue
		}
		if !d.opts.DryRun {
			if err := d.api.DeleteNatGateway(ctx, g.ID); err != nil {
				return fmt.Errorf("failed to delete %s: %w", g.ID, err)
			}
		}
		d.record(r, topology.KindNatGateway, g.ID, ActionDeleted, "")
	}

	if d.opts.DryRun || len(wait) == 0 {
		return nil
	}

	d.out.Printf("Waiting for %d NAT gateway(s) to finish deleting...", len(wait))
	return d.api.WaitNatGatewaysDeleted(ctx, wait, d.pollOptions()...)
}

func (d *Decommissioner) releaseAddresses(ctx context.Context, r *run) error {
	allocIDs := make([]string, 0, len(r.natAllocations))
	for id := range r.natAllocations {
		allocIDs = append(allocIDs, id)
	}
	sort.Strings(allocIDs)

	addresses, err := d.api.ListAddresses(ctx, r.vpcID, allocIDs)
	if err != nil {
		return fmt.Errorf("failed to list elastic IPs: %w", err)
	}

	for _, a := range addresses {
		// In a dry run the NAT gateways still hold their addresses.
		freed := d.opts.DryRun && r.natAllocations[a.AllocationID]
		if a.Attached() && !freed {
			d.log.Info("keeping attached elastic IP",
				zap.String("allocation_id", a.AllocationID),
				zap.String("network_interface_id", a.NetworkInterfaceID))
			d.record(r, topology.KindElasticIP, a.AllocationID, ActionSkipped, "attached to "+attachment(a.NetworkInterfaceID, a.AssociationID))
			continue
		}

		if !d.opts.DryRun {
			if err := d.api.ReleaseAddress(ctx, a.AllocationID); err != nil {
				return fmt.Errorf("failed to release %s: %w", a.AllocationID, err)
			}
		}
		d.record(r, topology.KindElasticIP, a.AllocationID, ActionReleased, a.PublicIP)
	}
	return nil
}

func attachment(eni, assoc string) string {
	if eni != "" {
		return eni
	}
	return assoc
}

func (d *Decommissioner) deleteSubnets(ctx context.Context, r *run) error {
	subnets, err := d.api.ListSubnets(ctx, r.vpcID)
	if err != nil {
		return fmt.Errorf("failed to list subnets: %w", err)
	}

	for _, s := range subnets {
		if !d.opts.DryRun {
			if err := d.api.DeleteSubnet(ctx, s.ID); err != nil {
				return fmt.Errorf("failed to delete %s: %w", s.ID, err)
			}
		}
		d.record(r, topology.KindSubnet, s.ID, ActionDeleted, s.Name)
	}
	return nil
}

func (d *Decommissioner) deleteRouteTables(ctx context.Context, r *run) error {
	tables, err := d.api.ListRouteTables(ctx, r.vpcID)
	if err != nil {
		return fmt.Errorf("failed to list route tables: %w", err)
	}

	for _, rt := range tables {
		if rt.Main() {
			d.record(r, topology.KindRouteTable, rt.ID, ActionSkipped, "main route table")
			continue
		}
		if !d.opts.DryRun {
			if err := d.api.DeleteRouteTable(ctx, rt.ID); err != nil {
				return fmt.Errorf("failed to delete %s: %w", rt.ID, err)
			}
		}
		d.record(r, topology.KindRouteTable, rt.ID, ActionDeleted, rt.Name)
	}
	return nil
}

func (d *Decommissioner) deleteInternetGateways(ctx context.Context, r *run) error {
	gateways, err := d.api.ListInternetGateways(ctx, r.vpcID)
	if err != nil {
		return fmt.Errorf("failed to list internet gateways: %w", err)
	}

	for _, g := range gateways {
		if !d.opts.DryRun {
			if err := d.api.DetachInternetGateway(ctx, g.ID, r.vpcID); err != nil {
				return fmt.Errorf("failed to detach %s: %w", g.ID, err)
			}
		}
		d.record(r, topology.KindInternetGateway, g.ID, ActionDetached, "from "+r.vpcID)

		if !d.opts.DryRun {
			if err := d.api.DeleteInternetGateway(ctx, g.ID); err != nil {
				return fmt.Errorf("failed to delete %s: %w", g.ID, err)
			}
		}
		d.record(r, topology.KindInternetGateway, g.ID, ActionDeleted, g.Name)
	}
	return nil
}

func (d *Decommissioner) deleteVPC(ctx context.Context, r *run) error {
	vpc, err := d.api.DescribeVPC(ctx, r.vpcID)
	if err != nil {
		return fmt.Errorf("failed to describe %s: %w", r.vpcID, err)
	}
	if vpc == nil {
		d.log.Info("VPC already gone", zap.String("vpc_id", r.vpcID))
		return nil
	}

	if !d.opts.DryRun {
		if err := d.api.DeleteVPC(ctx, r.vpcID); err != nil {
			if aws.IsDependencyViolation(err) {
				return fmt.Errorf("%s still has dependencies stratus did not create: %w", r.vpcID, err)
			}
			return err
		}
	}
	d.record(r, topology.KindVPC, r.vpcID, ActionDeleted, vpc.Name)
	return nil
}
