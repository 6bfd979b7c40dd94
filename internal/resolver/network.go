package resolver

import (
	"context"
	"fmt"

	"github.com/picklr-io/resolvr/internal/inventory"
	"github.com/picklr-io/resolvr/internal/logging"
	"github.com/picklr-io/resolvr/internal/spec"
)

// DefaultVPCName is the network used when a spec names none.
const DefaultVPCName = "vpc0"

// DefaultSubnetPurpose is the subnet purpose used when a spec names none.
func DefaultSubnetPurpose(vpc string) string {
	return fmt.Sprintf("internal (%s)", vpc)
}

// NetworkResolver fills in the VPC name and subnet purpose of a spec.
type NetworkResolver struct {
	kinds kindSet
}

// NewNetworkResolver creates a network resolver.
func NewNetworkResolver() *NetworkResolver {
	return &NetworkResolver{kinds: kindSet{
		spec.KindCluster,
		spec.KindClassicLoadBalancer,
		spec.KindApplicationLoadBalancer,
		spec.KindSecurityGroup,
	}}
}

func (r *NetworkResolver) Name() string { return "network" }

func (r *NetworkResolver) Supports(kind spec.Kind) bool { return r.kinds.supports(kind) }

func (r *NetworkResolver) Resolve(ctx context.Context, s spec.Spec, inv inventory.Snapshot) (spec.Spec, error) {
	if !r.Supports(s.Kind()) {
		return nil, &UnsupportedResolverInvocationError{Resolver: r.Name(), Kind: s.Kind()}
	}
	loc := s.ResourceLocations()
	vpc, subnet, err := effectiveNetwork(ctx, inv, loc)
	if err != nil {
		return nil, &LookupError{Resolver: r.Name(), Err: err}
	}

	changed := false
	if loc.VPC == "" {
		loc.VPC = vpc
		changed = true
	}
	// Security groups belong to a VPC, not a subnet.
	if loc.Subnet == "" && s.Kind() != spec.KindSecurityGroup {
		loc.Subnet = subnet
		changed = true
	}
	if !changed {
		return s, nil
	}
	logging.Debug("resolved network", "resource", s.ID(), "vpc", loc.VPC, "subnet", loc.Subnet)
	return s.WithLocations(loc), nil
}

// effectiveNetwork returns the VPC name and subnet purpose a spec resolves
// to, without modifying it. Resolvers that scope lookups by network use
// it so they do not depend on running after NetworkResolver.
func effectiveNetwork(ctx context.Context, inv inventory.Snapshot, loc spec.Locations) (string, string, error) {
	vpc, subnet := loc.VPC, loc.Subnet
	if vpc == "" && subnet != "" {
		derived, err := vpcForSubnetPurpose(ctx, inv, loc, subnet)
		if err != nil {
			return "", "", err
		}
		vpc = derived
	}
	if vpc == "" {
		vpc = DefaultVPCName
	}
	if subnet == "" {
		subnet = DefaultSubnetPurpose(vpc)
	}
	return vpc, subnet, nil
}

func vpcForSubnetPurpose(ctx context.Context, inv inventory.Snapshot, loc spec.Locations, purpose string) (string, error) {
	subnets, err := inv.Subnets(ctx, inventory.DefaultProvider)
	if err != nil {
		return "", fmt.Errorf("failed to list subnets: %w", err)
	}
	networks, err := inv.Networks(ctx, inventory.DefaultProvider)
	if err != nil {
		return "", fmt.Errorf("failed to list networks: %w", err)
	}
	for _, region := range loc.RegionNames() {
		for _, sn := range subnets {
			if sn.Account != loc.Account || sn.Region != region || sn.Purpose != purpose {
				continue
			}
			for _, n := range networks {
				if n.ID == sn.VPCID && n.Account == loc.Account && n.Region == region {
					return n.Name, nil
				}
			}
		}
	}
	return "", fmt.Errorf("no network has a subnet with purpose %q in account %s", purpose, loc.Account)
}

func networkID(networks []inventory.Network, account, region, name string) string {
	for _, n := range networks {
		if n.Account == account && n.Region == region && n.Name == name {
			return n.ID
		}
	}
	return ""
}
