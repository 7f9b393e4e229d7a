// Package topology describes the resource kinds of a stratus VPC and the
// dependencies between them. Both the creation order and the teardown order
// are derived from one graph so the two workflows cannot drift apart.
package topology

import (
	"errors"
	"fmt"
	"strings"
)

// Kind is a class of cloud resource in the topology.
type Kind string

const (
	KindVPC             Kind = "vpc"
	KindInternetGateway Kind = "internet-gateway"
	KindSubnet          Kind = "subnet"
	KindElasticIP       Kind = "elastic-ip"
	KindNatGateway      Kind = "nat-gateway"
	KindRouteTable      Kind = "route-table"
)

// EdgeType says how a dependency constrains creation and teardown.
type EdgeType int

const (
	// Hard: the dependency is created first and deleted last.
	Hard EdgeType = iota
	// Soft: the dependency is created first; teardown is unconstrained.
	Soft
	// Association: the dependency is created first and also deleted first,
	// since deleting it drops the association with it.
	Association
)

func (t EdgeType) String() string {
	switch t {
	case Hard:
		return "hard"
	case Soft:
		return "soft"
	case Association:
		return "association"
	default:
		return fmt.Sprintf("EdgeType(%d)", int(t))
	}
}

// Edge records that From depends on To.
type Edge struct {
	From Kind
	To   Kind
	Type EdgeType
}

// ErrCycle is returned when the graph cannot be ordered.
var ErrCycle = errors.New("dependency cycle")

// Graph is a dependency graph over resource kinds. Kinds keep their
// declaration order, which breaks ties between independent kinds.
type Graph struct {
	kinds []Kind
	edges []Edge
}

// New returns a graph over the given kinds.
func New(kinds ...Kind) *Graph {
	return &Graph{kinds: append([]Kind(nil), kinds...)}
}

// Default returns the graph for the VPC topology managed by stratus.
func Default() *Graph {
	g := New(KindVPC, KindInternetGateway, KindSubnet, KindElasticIP, KindNatGateway, KindRouteTable)

	g.Depend(KindInternetGateway, KindVPC, Hard)
	g.Depend(KindSubnet, KindVPC, Hard)
	// The address lives outside the VPC but is tagged with its ID.
	g.Depend(KindElasticIP, KindVPC, Soft)
	g.Depend(KindNatGateway, KindSubnet, Hard)
	g.Depend(KindNatGateway, KindElasticIP, Hard)
	// A public NAT gateway needs the internet gateway attached, and the
	// gateway cannot be detached while the NAT still maps a public address.
	g.Depend(KindNatGateway, KindInternetGateway, Hard)
	g.Depend(KindRouteTable, KindVPC, Hard)
	g.Depend(KindRouteTable, KindInternetGateway, Hard)
	g.Depend(KindRouteTable, KindNatGateway, Soft)
	g.Depend(KindRouteTable, KindSubnet, Association)

	return g
}

// Depend adds an edge: from depends on to.
func (g *Graph) Depend(from, to Kind, t EdgeType) {
	g.edges = append(g.edges, Edge{From: from, To: to, Type: t})
}

// Kinds returns the kinds in declaration order.
func (g *Graph) Kinds() []Kind {
	return append([]Kind(nil), g.kinds...)
}

// Edges returns a copy of the edges.
func (g *Graph) Edges() []Edge {
	return append([]Edge(nil), g.edges...)
}

// CreationOrder returns kinds ordered so every dependency precedes its
// dependents. Ties go to the earliest declared kind.
func (g *Graph) CreationOrder() ([]Kind, error) {
	var before [][2]Kind
	for _, e := range g.edges {
		before = append(before, [2]Kind{e.To, e.From})
	}
	return g.sort(before, false)
}

// TeardownOrder returns kinds ordered so no kind is deleted while something
// that holds a hard reference to it still exists. Ties go to the latest
// declared kind.
func (g *Graph) TeardownOrder() ([]Kind, error) {
	var before [][2]Kind
	for _, e := range g.edges {
		switch e.Type {
		case Hard:
			before = append(before, [2]Kind{e.From, e.To})
		case Association:
			before = append(before, [2]Kind{e.To, e.From})
		}
	}
	return g.sort(before, true)
}

// sort runs Kahn's algorithm over pairs {a, b} meaning a goes before b.
func (g *Graph) sort(before [][2]Kind, reverseTies bool) ([]Kind, error) {
	index := make(map[Kind]int, len(g.kinds))
	for i, k := range g.kinds {
		index[k] = i
	}

	indegree := make(map[Kind]int, len(g.kinds))
	next := make(map[Kind][]Kind, len(g.kinds))
	for _, p := range before {
		if _, ok := index[p[0]]; !ok {
			return nil, fmt.Errorf("unknown kind %q", p[0])
		}
		if _, ok := index[p[1]]; !ok {
			return nil, fmt.Errorf("unknown kind %q", p[1])
		}
		next[p[0]] = append(next[p[0]], p[1])
		indegree[p[1]]++
	}

	done := make(map[Kind]bool, len(g.kinds))
	order := make([]Kind, 0, len(g.kinds))
	for len(order) < len(g.kinds) {
		pick := -1
		for i := range g.kinds {
			j := i
			if reverseTies {
				j = len(g.kinds) - 1 - i
			}
			k := g.kinds[j]
			if !done[k] && indegree[k] == 0 {
				pick = j
				break
			}
		}
		if pick < 0 {
			var stuck []string
			for _, k := range g.kinds {
				if !done[k] {
					stuck = append(stuck, string(k))
				}
			}
			return nil, fmt.Errorf("%w between %s", ErrCycle, strings.Join(stuck, ", "))
		}

		k := g.kinds[pick]
		done[k] = true
		order = append(order, k)
		for _, n := range next[k] {
			indegree[n]--
		}
	}

	return order, nil
}
