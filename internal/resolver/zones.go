package resolver

import (
	"context"
	"fmt"

	"github.com/picklr-io/resolvr/internal/inventory"
	"github.com/picklr-io/resolvr/internal/logging"
	"github.com/picklr-io/resolvr/internal/merge"
	"github.com/picklr-io/resolvr/internal/spec"
)

// AvailabilityZoneResolver assigns every zone with a matching subnet to
// regions that do not list zones explicitly. Explicit zones are kept as is.
type AvailabilityZoneResolver struct {
	kinds kindSet
}

// NewAvailabilityZoneResolver creates an availability zone resolver.
func NewAvailabilityZoneResolver() *AvailabilityZoneResolver {
	return &AvailabilityZoneResolver{kinds: kindSet{
		spec.KindCluster,
		spec.KindClassicLoadBalancer,
		spec.KindApplicationLoadBalancer,
	}}
}

func (r *AvailabilityZoneResolver) Name() string { return "availability-zones" }

func (r *AvailabilityZoneResolver) Supports(kind spec.Kind) bool { return r.kinds.supports(kind) }

func (r *AvailabilityZoneResolver) Resolve(ctx context.Context, s spec.Spec, inv inventory.Snapshot) (spec.Spec, error) {
	if !r.Supports(s.Kind()) {
		return nil, &UnsupportedResolverInvocationError{Resolver: r.Name(), Kind: s.Kind()}
	}
	loc := s.ResourceLocations()
	pending := false
	for _, region := range loc.Regions {
		if len(region.AvailabilityZones) == 0 {
			pending = true
		}
	}
	if !pending {
		return s, nil
	}

	vpc, purpose, err := effectiveNetwork(ctx, inv, loc)
	if err != nil {
		return nil, &LookupError{Resolver: r.Name(), Err: err}
	}
	networks, err := inv.Networks(ctx, inventory.DefaultProvider)
	if err != nil {
		return nil, &LookupError{Resolver: r.Name(), Err: fmt.Errorf("failed to list networks: %w", err)}
	}
	subnets, err := inv.Subnets(ctx, inventory.DefaultProvider)
	if err != nil {
		return nil, &LookupError{Resolver: r.Name(), Err: fmt.Errorf("failed to list subnets: %w", err)}
	}

	changed := false
	for i, region := range loc.Regions {
		if len(region.AvailabilityZones) > 0 {
			continue
		}
		vpcID := networkID(networks, loc.Account, region.Name, vpc)
		var zones []string
		for _, sn := range subnets {
			if vpcID != "" && sn.Account == loc.Account && sn.Region == region.Name && sn.VPCID == vpcID && sn.Purpose == purpose {
				zones = append(zones, sn.AvailabilityZone)
			}
		}
		zones = merge.Union(zones)
		if len(zones) == 0 {
			logging.Warn("no availability zones found", "resource", s.ID(), "region", region.Name, "vpc", vpc, "subnet", purpose)
			continue
		}
		loc.Regions[i].AvailabilityZones = zones
		changed = true
	}
	if !changed {
		return s, nil
	}
	return s.WithLocations(loc), nil
}
