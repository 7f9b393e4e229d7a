// Package provision builds a stratus VPC: one VPC, an internet gateway,
// three public and three private subnets, one NAT gateway with its elastic
// IP, and a public and a private route table.
//
// Steps run in the creation order derived from the topology graph. Every
// successful create pushes an undo action; when a later step fails the
// actions run in reverse so no partial topology is left behind.
package provision

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/vietdv277/stratus/internal/retry"
	"github.com/vietdv277/stratus/internal/topology"
	pkgtypes "github.com/vietdv277/stratus/pkg/types"
)

// ErrNotEnoughZones is returned when the region offers fewer than
// topology.ZoneCount available zones.
var ErrNotEnoughZones = errors.New("not enough availability zones")

const (
	DefaultEnvironment    = "Production"
	DefaultCIDR           = "10.0.0.0/16"
	DefaultNatWaitTimeout = 10 * time.Minute
)

// API is the part of the EC2 control plane the provisioner drives.
// *aws.Client implements it.
type API interface {
	Region() string
	ListAvailabilityZones(ctx context.Context) ([]string, error)

	CreateVPC(ctx context.Context, cidr string, tags map[string]string) (string, error)
	EnableVPCDNS(ctx context.Context, vpcID string) error
	DeleteVPC(ctx context.Context, vpcID string) error

	CreateInternetGateway(ctx context.Context, tags map[string]string) (string, error)
	AttachInternetGateway(ctx context.Context, igwID, vpcID string) error
	DetachInternetGateway(ctx context.Context, igwID, vpcID string) error
	DeleteInternetGateway(ctx context.Context, igwID string) error

	CreateSubnet(ctx context.Context, vpcID, cidr, zone string, tags map[string]string) (pkgtypes.Subnet, error)
	EnableMapPublicIP(ctx context.Context, subnetID string) error
	DeleteSubnet(ctx context.Context, subnetID string) error

	AllocateAddress(ctx context.Context, tags map[string]string) (pkgtypes.Address, error)
	ReleaseAddress(ctx context.Context, allocationID string) error

	CreateNatGateway(ctx context.Context, subnetID, allocationID string, tags map[string]string) (string, error)
	WaitNatGatewayAvailable(ctx context.Context, natID string, maxWait time.Duration) error
	DeleteNatGateway(ctx context.Context, natID string) error
	WaitNatGatewaysDeleted(ctx context.Context, ids []string, opts ...retry.Option) error

	CreateRouteTable(ctx context.Context, vpcID string, tags map[string]string) (string, error)
	CreateRoute(ctx context.Context, routeTableID, destination, target string) error
	AssociateRouteTable(ctx context.Context, routeTableID, subnetID string) (string, error)
	DisassociateRouteTable(ctx context.Context, associationID string) error
	DeleteRouteTable(ctx context.Context, routeTableID string) error
}

// Observer receives one human-readable line per step.
type Observer interface {
	Printf(format string, args ...any)
}

// Options configures a provisioning run.
type Options struct {
	Environment    string
	CIDR           string
	NatWaitTimeout time.Duration
	// Rollback undoes the partial topology when a step fails.
	Rollback bool
	// NatDeletePoll tunes the wait for NAT gateway deletion during rollback.
	NatDeletePoll []retry.Option
}

// DefaultOptions returns the options used by `stratus create` without flags.
func DefaultOptions() Options {
	return Options{
		Environment:    DefaultEnvironment,
		CIDR:           DefaultCIDR,
		NatWaitTimeout: DefaultNatWaitTimeout,
		Rollback:       true,
	}
}

type step func(ctx context.Context, r *run) error

// Provisioner creates the VPC topology.
type Provisioner struct {
	api   API
	graph *topology.Graph
	opts  Options
	log   *zap.Logger
	out   Observer
	steps map[topology.Kind]step
}

// New returns a Provisioner. A nil logger disables structured logs and a
// nil observer discards progress lines.
func New(api API, opts Options, log *zap.Logger, out Observer) *Provisioner {
	if log == nil {
		log = zap.NewNop()
	}
	if out == nil {
		out = discard{}
	}
	if opts.Environment == "" {
		opts.Environment = DefaultEnvironment
	}
	if opts.CIDR == "" {
		opts.CIDR = DefaultCIDR
	}
	if opts.NatWaitTimeout <= 0 {
		opts.NatWaitTimeout = DefaultNatWaitTimeout
	}

	p := &Provisioner{
		api:   api,
		graph: topology.Default(),
		opts:  opts,
		log:   log,
		out:   out,
	}
	p.steps = map[topology.Kind]step{
		topology.KindVPC:             p.createVPC,
		topology.KindInternetGateway: p.createInternetGateway,
		topology.KindSubnet:          p.createSubnets,
		topology.KindElasticIP:       p.allocateAddress,
		topology.KindNatGateway:      p.createNatGateway,
		topology.KindRouteTable:      p.createRouteTables,
	}
	return p
}

// Run creates the topology and returns what was built.
//
// On failure with rollback enabled the partial topology is removed and the
// summary is nil. With rollback disabled the summary holds the IDs created
// before the failure so the operator can clean up.
func (p *Provisioner) Run(ctx context.Context) (*pkgtypes.ProvisionSummary, error) {
	order, err := p.graph.CreationOrder()
	if err != nil {
		return nil, fmt.Errorf("failed to order resources: %w", err)
	}

	r := &run{
		summary: pkgtypes.ProvisionSummary{
			Region:      p.api.Region(),
			Environment: p.opts.Environment,
			CIDR:        p.opts.CIDR,
		},
	}

	p.log.Info("provisioning VPC",
		zap.String("environment", p.opts.Environment),
		zap.String("cidr", p.opts.CIDR),
		zap.String("region", r.summary.Region))

	for _, kind := range order {
		s, ok := p.steps[kind]
		if !ok {
			return nil, fmt.Errorf("no provisioning step for %s", kind)
		}

		p.log.Debug("running step", zap.String("step", string(kind)))
		if err := s(ctx, r); err != nil {
			err = fmt.Errorf("failed to create %s: %w", kind, err)
			p.log.Error("provisioning failed", zap.String("step", string(kind)), zap.Error(err))

			if !p.opts.Rollback {
				if r.summary.VPCID != "" {
					p.out.Printf("Rollback disabled; clean up with: stratus delete %s", r.summary.VPCID)
				}
				return &r.summary, err
			}
			if rerr := p.rollback(ctx, r); rerr != nil {
				return nil, errors.Join(err, fmt.Errorf("rollback incomplete: %w", rerr))
			}
			return nil, err
		}
	}

	return &r.summary, nil
}

// rollback runs the undo stack in reverse. It keeps going past failures so
// as much as possible is removed, and ignores cancellation of ctx since an
// interrupted run is the common reason to get here.
func (p *Provisioner) rollback(ctx context.Context, r *run) error {
	ctx = context.WithoutCancel(ctx)
	p.out.Printf("Rolling back %d actions...", len(r.undo))

	var errs []error
	for i := len(r.undo) - 1; i >= 0; i-- {
		u := r.undo[i]
		if err := u.fn(ctx); err != nil {
			p.log.Warn("undo failed", zap.String("action", u.desc), zap.Error(err))
			errs = append(errs, fmt.Errorf("%s: %w", u.desc, err))
			continue
		}
		p.out.Printf("  Rolled back: %s", u.desc)
	}
	return errors.Join(errs...)
}

type undo struct {
	desc string
	fn   func(ctx context.Context) error
}

// run is the state of one provisioning attempt.
type run struct {
	summary pkgtypes.ProvisionSummary
	undo    []undo
}

func (r *run) push(desc string, fn func(ctx context.Context) error) {
	r.undo = append(r.undo, undo{desc: desc, fn: fn})
}

type discard struct{}

func (discard) Printf(string, ...any) {}
