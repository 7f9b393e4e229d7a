package decommission

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/vietdv277/stratus/internal/aws"
	"github.com/vietdv277/stratus/internal/retry"
	"github.com/vietdv277/stratus/internal/topology"
	pkgtypes "github.com/vietdv277/stratus/pkg/types"
)

var (
	// ErrVPCIDRequired is returned when Run is called without a VPC ID.
	ErrVPCIDRequired = errors.New("VPC ID is required")
	// ErrNatGatewaysStillDeleting is returned when NAT gateways are not
	// gone after the last poll.
	ErrNatGatewaysStillDeleting = aws.ErrNatGatewaysStillDeleting
)

// Actions recorded in a TeardownReport.
const (
	ActionDeleted  = "deleted"
	ActionReleased = "released"
	ActionDetached = "detached"
	ActionSkipped  = "skipped"
	ActionPlanned  = "planned"
)

// API is the part of the EC2 control plane the decommissioner drives.
// *aws.Client implements it.
type API interface {
	Region() string
	DescribeVPC(ctx context.Context, vpcID string) (*pkgtypes.VPC, error)
	DeleteVPC(ctx context.Context, vpcID string) error

	ListNatGateways(ctx context.Context, vpcID string) ([]pkgtypes.NatGateway, error)
	DeleteNatGateway(ctx context.Context, natID string) error
	WaitNatGatewaysDeleted(ctx context.Context, ids []string, opts ...retry.Option) error

	ListAddresses(ctx context.Context, vpcID string, allocationIDs []string) ([]pkgtypes.Address, error)
	ReleaseAddress(ctx context.Context, allocationID string) error

	ListSubnets(ctx context.Context, vpcID string) ([]pkgtypes.Subnet, error)
	DeleteSubnet(ctx context.Context, subnetID string) error

	ListRouteTables(ctx context.Context, vpcID string) ([]pkgtypes.RouteTable, error)
	DeleteRouteTable(ctx context.Context, routeTableID string) error

	ListInternetGateways(ctx context.Context, vpcID string) ([]pkgtypes.InternetGateway, error)
	DetachInternetGateway(ctx context.Context, igwID, vpcID string) error
	DeleteInternetGateway(ctx context.Context, igwID string) error
}

// Observer receives one human-readable line per action.
type Observer interface {
	Printf(format string, args ...any)
}

// Options configures a decommissioning run.
type Options struct {
	// DryRun discovers resources and reports the plan without deleting.
	DryRun bool
	// NatDeletePoll tunes the wait for NAT gateway deletion. The defaults
	// are those of retry.DefaultConfig.
	NatDeletePoll []retry.Option
}

type step func(ctx context.Context, r *run) error

// Decommissioner tears a VPC down.
type Decommissioner struct {
	api   API
	graph *topology.Graph
	opts  Options
	log   *zap.Logger
	out   Observer
	steps map[topology.Kind]step
}

// New returns a Decommissioner. A nil logger disables structured logs and a
// nil observer discards progress lines.
func New(api API, opts Options, log *zap.Logger, out Observer) *Decommissioner {
	if log == nil {
		log = zap.NewNop()
	}
	if out == nil {
		out = discard{}
	}

	d := &Decommissioner{
		api:   api,
		graph: topology.Default(),
		opts:  opts,
		log:   log,
		out:   out,
	}
	d.steps = map[topology.Kind]step{
		topology.KindNatGateway:      d.deleteNatGateways,
		topology.KindElasticIP:       d.releaseAddresses,
		topology.KindSubnet:          d.deleteSubnets,
		topology.KindRouteTable:      d.deleteRouteTables,
		topology.KindInternetGateway: d.deleteInternetGateways,
		topology.KindVPC:             d.deleteVPC,
	}
	return d
}

// Run removes every resource of the VPC. The first error aborts the run;
// the report then lists what was done before it.
func (d *Decommissioner) Run(ctx context.Context, vpcID string) (*pkgtypes.TeardownReport, error) {
	if vpcID == "" {
		return nil, ErrVPCIDRequired
	}

	order, err := d.graph.TeardownOrder()
	if err != nil {
		return nil, fmt.Errorf("failed to order resources: %w", err)
	}

	r := &run{
		vpcID: vpcID,
		report: pkgtypes.TeardownReport{
			Region: d.api.Region(),
			VPCID:  vpcID,
			DryRun: d.opts.DryRun,
		},
		natAllocations: make(map[string]bool),
	}

	d.log.Info("decommissioning VPC",
		zap.String("vpc_id", vpcID),
		zap.String("region", r.report.Region),
		zap.Bool("dry_run", d.opts.DryRun))

	for _, kind := range order {
		s, ok := d.steps[kind]
		if !ok {
			return &r.report, fmt.Errorf("no teardown step for %s", kind)
		}

		d.log.Debug("running step", zap.String("step", string(kind)), zap.String("vpc_id", vpcID))
		if err := s(ctx, r); err != nil {
			d.log.Error("decommissioning failed", zap.String("step", string(kind)), zap.Error(err))
			return &r.report, fmt.Errorf("failed to remove %s: %w", kind, err)
		}
	}

	return &r.report, nil
}

// record adds an action to the report and prints it. In dry-run mode
// mutating actions are recorded as planned.
func (d *Decommissioner) record(r *run, kind topology.Kind, id, action, reason string) {
	if d.opts.DryRun && action != ActionSkipped {
		if reason == "" {
			reason = action
		} else {
			reason = action + ", " + reason
		}
		action = ActionPlanned
	}
	r.report.Actions = append(r.report.Actions, pkgtypes.TeardownAction{
		Kind:   string(kind),
		ID:     id,
		Action: action,
		Reason: reason,
	})

	line := fmt.Sprintf("%s %s: %s", titles[action], kind, id)
	if reason != "" {
		line += " (" + reason + ")"
	}
	d.out.Printf("%s", line)
}

var titles = map[string]string{
	ActionDeleted:  "Deleted",
	ActionReleased: "Released",
	ActionDetached: "Detached",
	ActionSkipped:  "Skipped",
	ActionPlanned:  "Would remove",
}

// run is the state of one decommissioning attempt.
type run struct {
	vpcID  string
	report pkgtypes.TeardownReport
	// natAllocations are the elastic IPs referenced by the VPC's NAT
	// gateways; those gateways are gone before addresses are released.
	natAllocations map[string]bool
}

func (d *Decommissioner) pollOptions() []retry.Option {
	opts := []retry.Option{
		retry.WithOnRetry(func(attempt int, delay time.Duration, err error) {
			d.out.Printf("Waiting for NAT gateways to be deleted (check %d, next in %s)", attempt, delay)
			d.log.Debug("NAT gateways still deleting", zap.Int("attempt", attempt), zap.Error(err))
		}),
	}
	return append(opts, d.opts.NatDeletePoll...)
}

type discard struct{}

func (discard) Printf(string, ...any) {}
