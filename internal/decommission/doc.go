// Package decommission removes a VPC and everything stratus put in it.
//
// Resources are discovered fresh on every run by filtering on the VPC ID
// (and, for elastic IPs, the stratus:vpc-id tag), then deleted in the
// teardown order derived from the topology graph. Resources that are
// already gone are skipped, so a second run finds nothing and succeeds.
package decommission
